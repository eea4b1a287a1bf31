package models

import (
	"fmt"
	"strings"
)

// AccessLevel is a principal's permission on a project. Levels are totally
// ordered: read < write < admin < owner. The zero value means no access.
type AccessLevel string

const (
	AccessNone  AccessLevel = ""
	AccessRead  AccessLevel = "read"
	AccessWrite AccessLevel = "write"
	AccessAdmin AccessLevel = "admin"
	AccessOwner AccessLevel = "owner"
)

// AccessLevels lists all granting levels in ascending order of privilege.
var AccessLevels = []AccessLevel{AccessRead, AccessWrite, AccessAdmin, AccessOwner}

// Rank returns the position of the level in the privilege order. AccessNone
// and unknown values rank 0.
func (l AccessLevel) Rank() int {
	switch l {
	case AccessRead:
		return 1
	case AccessWrite:
		return 2
	case AccessAdmin:
		return 3
	case AccessOwner:
		return 4
	default:
		return 0
	}
}

// AtLeast reports whether l grants at least min. AccessNone never satisfies
// any minimum.
func (l AccessLevel) AtLeast(min AccessLevel) bool {
	return l.Rank() > 0 && l.Rank() >= min.Rank()
}

// Valid reports whether l is one of the granting levels.
func (l AccessLevel) Valid() bool {
	return l.Rank() > 0
}

func (l AccessLevel) String() string {
	if l == AccessNone {
		return "none"
	}
	return string(l)
}

// ParseAccessLevel converts user input to an AccessLevel.
func ParseAccessLevel(raw string) (AccessLevel, error) {
	l := AccessLevel(strings.ToLower(strings.TrimSpace(raw)))
	if !l.Valid() {
		return AccessNone, fmt.Errorf("unknown access level %q", raw)
	}
	return l, nil
}
