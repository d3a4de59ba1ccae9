package search

import "strings"

// Op is a comparison understood by every compiler.
type Op string

const (
	OpEq     Op = "eq"
	OpEqFold Op = "eq_fold"
	OpGte    Op = "gte"
	OpLte    Op = "lte"
)

// Column names a filterable properties column.
type Column string

const (
	ColumnCity        Column = "city"
	ColumnRentAmount  Column = "rent_amount"
	ColumnRentalType  Column = "rental_type"
	ColumnIsActive    Column = "is_active"
	ColumnIsAvailable Column = "is_available"
)

// Predicate is one store-agnostic condition.
type Predicate struct {
	Column Column
	Op     Op
	Value  any
}

// GeoDistance keeps rows strictly closer than RadiusKm to the point.
type GeoDistance struct {
	Latitude  float64
	Longitude float64
	RadiusKm  float64
}

// Filter is the conjunction of Predicates and the optional Geo condition.
type Filter struct {
	Predicates []Predicate
	Geo        *GeoDistance
}

// Build turns criteria into a filter. Active and available are always required.
func Build(c Criteria) Filter {
	preds := []Predicate{
		{Column: ColumnIsActive, Op: OpEq, Value: true},
		{Column: ColumnIsAvailable, Op: OpEq, Value: true},
	}
	if c.City != nil {
		if city := strings.TrimSpace(*c.City); city != "" {
			preds = append(preds, Predicate{Column: ColumnCity, Op: OpEqFold, Value: city})
		}
	}
	if c.MinRent != nil {
		preds = append(preds, Predicate{Column: ColumnRentAmount, Op: OpGte, Value: *c.MinRent})
	}
	if c.MaxRent != nil {
		preds = append(preds, Predicate{Column: ColumnRentAmount, Op: OpLte, Value: *c.MaxRent})
	}
	if c.RentalType != nil {
		preds = append(preds, Predicate{Column: ColumnRentalType, Op: OpEq, Value: string(*c.RentalType)})
	}

	f := Filter{Predicates: preds}
	if c.HasLocation() {
		f.Geo = &GeoDistance{Latitude: *c.Latitude, Longitude: *c.Longitude, RadiusKm: c.Radius()}
	}
	return f
}
