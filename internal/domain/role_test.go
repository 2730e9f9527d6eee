package domain

import (
	"errors"
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		input string
		want  Role
		err   bool
	}{
		{input: "owner", want: RoleOwner},
		{input: "OWNER", want: RoleOwner},
		{input: " Admin ", want: RoleAdmin},
		{input: "member", want: RoleMember},
		{input: "GuEsT", want: RoleGuest},
		{input: "", err: true},
		{input: "superuser", err: true},
	}
	for _, tt := range tests {
		role, err := ParseRole(tt.input)
		if tt.err {
			if !errors.Is(err, ErrInvalidRole) {
				t.Fatalf("ParseRole(%q): expected ErrInvalidRole, got %v", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseRole(%q): unexpected error %v", tt.input, err)
		}
		if role != tt.want {
			t.Fatalf("ParseRole(%q) = %s, want %s", tt.input, role, tt.want)
		}
	}
}

func TestRoleOrdering(t *testing.T) {
	ordered := []Role{RoleGuest, RoleMember, RoleAdmin, RoleOwner}
	for i, lower := range ordered {
		for _, higher := range ordered[i+1:] {
			if !higher.Above(lower) {
				t.Fatalf("expected %s above %s", higher, lower)
			}
			if lower.AtLeast(higher) {
				t.Fatalf("did not expect %s at least %s", lower, higher)
			}
		}
		if !lower.AtLeast(lower) {
			t.Fatalf("expected %s at least itself", lower)
		}
	}
}
