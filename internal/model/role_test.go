package model

import (
	"errors"
	"testing"
)

func TestParseRole_KnownValues(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"CUSTOMER", RoleCustomer},
		{"SELLER", RoleSeller},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseRole(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
		})
	}
}

func TestParseRole_UnknownValue_ReturnsError(t *testing.T) {
	for _, in := range []string{"", "customer", "ADMIN", "SELLER "} {
		if _, err := ParseRole(in); err == nil {
			t.Errorf("ParseRole(%q) expected error", in)
		}
	}
}

func TestRole_ZeroValueIsInvalid(t *testing.T) {
	var r Role
	if r.Valid() {
		t.Error("zero Role should be invalid")
	}
	if !RoleCustomer.Valid() || !RoleSeller.Valid() {
		t.Error("defined roles should be valid")
	}
}

func TestAPIError_UnwrapReturnsCause(t *testing.T) {
	cause := errors.New("deadline")
	err := NewStoreUnavailableError(cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if err.Kind != KindUnavailable {
		t.Errorf("Kind = %v, want %v", err.Kind, KindUnavailable)
	}
}

func TestNewPage_ComputesTotalPages(t *testing.T) {
	tests := []struct {
		total int64
		size  int
		want  int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
	}
	for _, tt := range tests {
		p := NewPage[int](nil, tt.total, 0, tt.size)
		if p.TotalPages != tt.want {
			t.Errorf("total=%d size=%d: TotalPages = %d, want %d", tt.total, tt.size, p.TotalPages, tt.want)
		}
		if p.Content == nil {
			t.Error("Content should be non-nil")
		}
	}
}
