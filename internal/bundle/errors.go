package bundle

import (
	"errors"
	"fmt"
)

var (
	// ErrFileFormat indicates a missing file, a non-zip container or
	// undecodable JSON content.
	ErrFileFormat = errors.New("file is not a valid backup archive")
)

// SchemaError indicates a missing required top-level field.
type SchemaError struct {
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("backup is missing required field %q", e.Field)
}

// IncompatibleVersionError indicates the bundle's version is outside the
// supported range, either too old or from a future major version.
type IncompatibleVersionError struct {
	Version string
	Reason  string
}

func (e *IncompatibleVersionError) Error() string {
	return fmt.Sprintf("incompatible backup version %q: %s", e.Version, e.Reason)
}
