package validation

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsValidOrderNumber(t *testing.T) {
	tests := []struct {
		name   string
		number string
		valid  bool
	}{
		{
			name:   "valid number",
			number: "WL2410140042",
			valid:  true,
		},
		{
			name:   "wrong prefix",
			number: "WX2410140042",
			valid:  false,
		},
		{
			name:   "too short",
			number: "WL24101400",
			valid:  false,
		},
		{
			name:   "contains letters",
			number: "WL24101A0042",
			valid:  false,
		},
		{
			name:   "empty string",
			number: "",
			valid:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidOrderNumber(tt.number)
			if got != tt.valid {
				t.Fatalf("IsValidOrderNumber(%q) = %v, want %v", tt.number, got, tt.valid)
			}
		})
	}
}

func TestIsValidRating(t *testing.T) {
	for rating, want := range map[int]bool{0: false, 1: true, 3: true, 5: true, 6: false, -1: false} {
		if got := IsValidRating(rating); got != want {
			t.Fatalf("IsValidRating(%d) = %v, want %v", rating, got, want)
		}
	}
}

func TestChecker_CollectsAllFields(t *testing.T) {
	var c Checker
	c.Require("userId", "")
	c.Require("customer.name", "  ")
	c.Require("customer.phone", "0901234567")
	c.Check("items", false)

	err := c.Err()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var vErr *Error
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	want := []string{"userId", "customer.name", "items"}
	if fmt.Sprint(vErr.Fields) != fmt.Sprint(want) {
		t.Fatalf("fields = %v, want %v", vErr.Fields, want)
	}
}

func TestChecker_NoErrors(t *testing.T) {
	var c Checker
	c.Require("userId", "u-1")
	c.Check("items", true)

	if err := c.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIsError_Wrapped(t *testing.T) {
	err := fmt.Errorf("create order: %w", New("bad input", "phone"))
	if !IsError(err) {
		t.Fatalf("wrapped validation error not detected")
	}
	if IsError(errors.New("boom")) {
		t.Fatalf("plain error must not be a validation error")
	}
}

func TestNormalize(t *testing.T) {
	if got := NormalizeCouponCode("  summer10 "); got != "SUMMER10" {
		t.Fatalf("NormalizeCouponCode = %q", got)
	}
	if got := NormalizeEmail(" Alice@Example.COM "); got != "alice@example.com" {
		t.Fatalf("NormalizeEmail = %q", got)
	}
}
