package access

import (
	"slices"
	"testing"
)

func TestSet_Allows(t *testing.T) {
	s := NewSet("users:read", "roles:*", "*:list", "invitations")

	tests := []struct {
		name       string
		permission string
		want       bool
	}{
		{"exact match", "users:read", true},
		{"exact miss", "users:write", false},
		{"action wildcard", "roles:delete", true},
		{"resource wildcard", "worksheets:list", true},
		{"bare resource grants every action", "invitations:resend", true},
		{"case insensitive", "USERS:Read", true},
		{"surrounding space", "  users:read ", true},
		{"unknown resource", "billing:read", false},
		{"empty permission", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Allows(tt.permission); got != tt.want {
				t.Errorf("Allows(%q) = %v, want %v", tt.permission, got, tt.want)
			}
		})
	}
}

func TestSet_NilAndEmpty(t *testing.T) {
	var nilSet *Set
	if nilSet.Allows("users:read") {
		t.Error("nil set must allow nothing")
	}
	if nilSet.Len() != 0 {
		t.Errorf("nil Len() = %d, want 0", nilSet.Len())
	}
	if NewSet().Allows("users:read") {
		t.Error("empty set must allow nothing")
	}
}

func TestSet_Wildcard(t *testing.T) {
	s := NewSet("*")
	for _, p := range []string{"users:read", "roles:delete", "anything"} {
		if !s.Allows(p) {
			t.Errorf("Allows(%q) = false, want true", p)
		}
	}
}

func TestSet_AddDropsDuplicatesAndInvalid(t *testing.T) {
	s := NewSet("users:read", "USERS:READ", " ", "roles:[")
	s.Add("roles:read", "users:read")

	want := []string{"users:read", "roles:read"}
	if got := s.Patterns(); !slices.Equal(got, want) {
		t.Errorf("Patterns() = %v, want %v", got, want)
	}
}

func TestSet_Level(t *testing.T) {
	s := NewSet("users:read", "roles:read", "roles:write", "invitations:*")

	tests := []struct {
		resource  string
		wantLevel Level
	}{
		{"users", ReadOnly},
		{"roles", ReadWrite},
		{"invitations", Admin},
		{"billing", None},
	}

	for _, tt := range tests {
		t.Run(tt.resource, func(t *testing.T) {
			got := s.Level(tt.resource)
			if got != tt.wantLevel {
				t.Errorf("Level(%q) = %v, want %v", tt.resource, got, tt.wantLevel)
			}
		})
	}
}

func TestSet_ReadOnlyCannotWrite(t *testing.T) {
	level := NewSet("users:read").Level("users")

	if !level.CanRead() {
		t.Error("CanRead() = false, want true")
	}
	if level.CanWrite() {
		t.Error("CanWrite() = true, want false")
	}
}

func TestSet_Filter(t *testing.T) {
	s := NewSet("users:*")
	got := s.Filter([]string{"users:read", "roles:read", "users:delete"})
	want := []string{"users:read", "users:delete"}
	if !slices.Equal(got, want) {
		t.Errorf("Filter() = %v, want %v", got, want)
	}
}

func TestLevel_AccessMethods(t *testing.T) {
	tests := []struct {
		level    Level
		canRead  bool
		canWrite bool
		canAdmin bool
	}{
		{None, false, false, false},
		{ReadOnly, true, false, false},
		{ReadWrite, true, true, false},
		{Admin, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			if tt.level.CanRead() != tt.canRead {
				t.Errorf("CanRead() = %v, want %v", tt.level.CanRead(), tt.canRead)
			}
			if tt.level.CanWrite() != tt.canWrite {
				t.Errorf("CanWrite() = %v, want %v", tt.level.CanWrite(), tt.canWrite)
			}
			if tt.level.CanAdmin() != tt.canAdmin {
				t.Errorf("CanAdmin() = %v, want %v", tt.level.CanAdmin(), tt.canAdmin)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"none":      None,
		"ro":        ReadOnly,
		"Read":      ReadOnly,
		"rw":        ReadWrite,
		" admin ":   Admin,
		"something": None,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
