package search

import (
	"github.com/angelmondragon/rentchain-properties/pkg/enums"
)

const (
	// EarthRadiusKm sets the distance unit for every geodistance computation.
	EarthRadiusKm = 6371.0
	// DefaultRadiusKm applies when coordinates are given without a radius.
	DefaultRadiusKm = 5.0
)

// Criteria is the optional filter set accepted by Search. Nil fields are not filtered on.
type Criteria struct {
	City       *string
	MinRent    *int64
	MaxRent    *int64
	RentalType *enums.RentalType
	Latitude   *float64
	Longitude  *float64
	RadiusKm   *float64
}

// Page bounds a search result window. A zero Limit returns every match.
type Page struct {
	Limit  int
	Offset int
}

// HasLocation reports whether a distance filter will be applied.
func (c Criteria) HasLocation() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// Radius returns the effective search radius in kilometers.
func (c Criteria) Radius() float64 {
	if c.RadiusKm == nil || *c.RadiusKm <= 0 {
		return DefaultRadiusKm
	}
	return *c.RadiusKm
}
