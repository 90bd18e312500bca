package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ChannelNumber is a (major, minor) channel number. A number with major 0 is
// unassigned and sorts before every valid number.
type ChannelNumber struct {
	Major uint `json:"major"`
	Minor uint `json:"minor"`
}

// UnassignedChannelNumber is the sentinel used for hidden or pending members
var UnassignedChannelNumber = ChannelNumber{}

// NewChannelNumber creates a channel number
func NewChannelNumber(major, minor uint) ChannelNumber {
	return ChannelNumber{Major: major, Minor: minor}
}

// IsValid reports whether the number has been assigned
func (n ChannelNumber) IsValid() bool {
	return n.Major > 0
}

// Compare orders numbers by major, then minor
func (n ChannelNumber) Compare(other ChannelNumber) int {
	switch {
	case n.Major < other.Major:
		return -1
	case n.Major > other.Major:
		return 1
	case n.Minor < other.Minor:
		return -1
	case n.Minor > other.Minor:
		return 1
	default:
		return 0
	}
}

// Less reports whether n sorts before other
func (n ChannelNumber) Less(other ChannelNumber) bool {
	return n.Compare(other) < 0
}

// String formats the number as "major" or "major.minor"
func (n ChannelNumber) String() string {
	if n.Minor > 0 {
		return fmt.Sprintf("%d.%d", n.Major, n.Minor)
	}
	return strconv.FormatUint(uint64(n.Major), 10)
}

// ParseChannelNumber parses "12" or "12.3"
func ParseChannelNumber(s string) (ChannelNumber, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return UnassignedChannelNumber, fmt.Errorf("empty channel number")
	}

	majorStr, minorStr, hasMinor := strings.Cut(s, ".")
	major, err := strconv.ParseUint(majorStr, 10, 32)
	if err != nil {
		return UnassignedChannelNumber, fmt.Errorf("invalid channel number %q: %w", s, err)
	}

	var minor uint64
	if hasMinor {
		minor, err = strconv.ParseUint(minorStr, 10, 32)
		if err != nil {
			return UnassignedChannelNumber, fmt.Errorf("invalid channel number %q: %w", s, err)
		}
	}

	return ChannelNumber{Major: uint(major), Minor: uint(minor)}, nil
}
