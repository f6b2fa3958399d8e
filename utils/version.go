package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a parsed dotted software version, e.g. "1.14.17".
type Version struct {
	Major, Minor, Patch uint64
}

// ParseVersion parses a dotted version string. A leading "v" and any
// pre-release suffix after "-" are tolerated, since validators gossip
// versions in several shapes.
func ParseVersion(s string) (Version, error) {
	var v Version
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if i := strings.IndexByte(s, '-'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return v, fmt.Errorf("empty version string")
	}
	parts := strings.SplitN(s, ".", 3)
	fields := []*uint64{&v.Major, &v.Minor, &v.Patch}
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
		*fields[i] = n
	}
	return v, nil
}

// Less reports whether v is older than other.
func (v Version) Less(other Version) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor < other.Minor
	}
	return v.Patch < other.Patch
}

// String returns the canonical dotted form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}
