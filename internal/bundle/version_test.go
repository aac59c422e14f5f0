package bundle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		name    string
		version string
		wantErr bool
	}{
		{"current version", CurrentVersion, false},
		{"same major older minor", "2.0.0", false},
		{"same major newer minor", "2.9.3", false},
		{"with v prefix", "v2.1.0", false},
		{"too old", "1.4.0", true},
		{"future major", "3.0.0", true},
		{"garbage", "not-a-version", true},
		{"empty", "", true},
		{"partial", "2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckVersion(tt.version)
			if tt.wantErr {
				require.Error(t, err)
				var versionErr *IncompatibleVersionError
				assert.True(t, errors.As(err, &versionErr))
				assert.Equal(t, tt.version, versionErr.Version)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckVersionReason(t *testing.T) {
	err := CheckVersion("1.0.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "older than")

	err = CheckVersion("99.0.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than")
}
