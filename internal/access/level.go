// Package access matches role permissions against the actions the client offers.
package access

import "strings"

// Level is the access a permission set grants to one resource.
type Level int

const (
	// None means the resource is hidden.
	None Level = iota
	// ReadOnly allows listing and viewing.
	ReadOnly
	// ReadWrite allows creating and updating.
	ReadWrite
	// Admin allows everything, including deletion.
	Admin
)

// String returns the string representation of the access level.
func (l Level) String() string {
	switch l {
	case None:
		return "none"
	case ReadOnly:
		return "read-only"
	case ReadWrite:
		return "read-write"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParseLevel parses a string into an access Level.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "no-access":
		return None
	case "read-only", "readonly", "ro", "read":
		return ReadOnly
	case "read-write", "readwrite", "rw", "write":
		return ReadWrite
	case "admin":
		return Admin
	default:
		return None
	}
}

// CanRead returns true if the level allows read operations.
func (l Level) CanRead() bool {
	return l >= ReadOnly
}

// CanWrite returns true if the level allows write operations.
func (l Level) CanWrite() bool {
	return l >= ReadWrite
}

// CanAdmin returns true if the level allows admin operations.
func (l Level) CanAdmin() bool {
	return l >= Admin
}
