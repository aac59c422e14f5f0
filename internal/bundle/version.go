package bundle

import (
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// CheckVersion validates that version parses as a semantic version and that
// its major component falls inside the supported window.
func CheckVersion(version string) error {
	canonical := version
	if !strings.HasPrefix(canonical, "v") {
		canonical = "v" + canonical
	}

	if !semver.IsValid(canonical) {
		return &IncompatibleVersionError{Version: version, Reason: "not a valid semantic version"}
	}

	major, err := strconv.Atoi(strings.TrimPrefix(semver.Major(canonical), "v"))
	if err != nil {
		return &IncompatibleVersionError{Version: version, Reason: "not a valid semantic version"}
	}

	if major < MinSupportedMajor {
		return &IncompatibleVersionError{
			Version: version,
			Reason:  "older than the minimum supported version " + strconv.Itoa(MinSupportedMajor) + ".0.0",
		}
	}
	if major > SupportedMajor {
		return &IncompatibleVersionError{
			Version: version,
			Reason:  "newer than the supported version " + CurrentVersion + ", upgrade before restoring",
		}
	}
	return nil
}
