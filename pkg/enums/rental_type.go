package enums

import (
	"fmt"
	"strings"
)

// RentalType describes the billing cadence of a listing.
type RentalType string

const (
	RentalTypeMonthly RentalType = "monthly"
	RentalTypeDaily   RentalType = "daily"
)

var validRentalTypes = []RentalType{
	RentalTypeMonthly,
	RentalTypeDaily,
}

// String returns the literal string for the rental type.
func (r RentalType) String() string {
	return string(r)
}

// IsValid reports whether the rental type is known.
func (r RentalType) IsValid() bool {
	for _, candidate := range validRentalTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRentalType converts raw input into a RentalType. Matching is case-insensitive
// so "MONTHLY" from older clients is accepted.
func ParseRentalType(value string) (RentalType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validRentalTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid rental type %q", value)
}
