package model

import (
	"strconv"
	"strings"
)

// Version is a dotted-numeric product build such as 12.1.2.172.
// The zero value means "not detected".
type Version struct {
	parts []int
}

// ParseVersion parses a dotted-numeric string. Surrounding whitespace and NUL
// bytes are ignored. Anything that does not parse yields the zero Version.
func ParseVersion(s string) Version {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
	if s == "" {
		return Version{}
	}
	fields := strings.Split(s, ".")
	parts := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			return Version{}
		}
		parts = append(parts, n)
	}
	return Version{parts: parts}
}

// Positive reports whether v is greater than 0.
func (v Version) Positive() bool {
	for _, p := range v.parts {
		if p > 0 {
			return true
		}
	}
	return false
}

func (v Version) String() string {
	if len(v.parts) == 0 {
		return "0"
	}
	s := make([]string, len(v.parts))
	for i, p := range v.parts {
		s[i] = strconv.Itoa(p)
	}
	return strings.Join(s, ".")
}
