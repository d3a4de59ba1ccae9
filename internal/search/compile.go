package search

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// postgresDistanceSQL evaluates the great-circle distance in SQL. The cosine is clamped so
// acos never receives a value outside [-1, 1] for coincident points.
const postgresDistanceSQL = `? * acos(LEAST(1.0, GREATEST(-1.0, ` +
	`sin(radians(?)) * sin(radians(latitude)) + ` +
	`cos(radians(?)) * cos(radians(latitude)) * cos(radians(longitude) - radians(?))))) < ?`

// Apply adds the non-geographic predicates of f to the query.
func Apply(q *gorm.DB, f Filter) (*gorm.DB, error) {
	for _, p := range f.Predicates {
		expr, err := predicateExpr(p)
		if err != nil {
			return nil, err
		}
		q = q.Where(expr)
	}
	return q, nil
}

func predicateExpr(p Predicate) (clause.Expression, error) {
	col := clause.Column{Name: string(p.Column)}
	switch p.Op {
	case OpEq:
		return clause.Eq{Column: col, Value: p.Value}, nil
	case OpEqFold:
		return clause.Expr{SQL: "LOWER(?) = LOWER(?)", Vars: []any{col, p.Value}}, nil
	case OpGte:
		return clause.Gte{Column: col, Value: p.Value}, nil
	case OpLte:
		return clause.Lte{Column: col, Value: p.Value}, nil
	default:
		return nil, fmt.Errorf("unsupported operator %q", p.Op)
	}
}

// applyGeoPushdown filters by distance inside Postgres.
func applyGeoPushdown(q *gorm.DB, g GeoDistance) *gorm.DB {
	return q.
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Where(postgresDistanceSQL, EarthRadiusKm, g.Latitude, g.Latitude, g.Longitude, g.RadiusKm)
}

// applyGeoPrefilter narrows candidates to the geohash cells covering the circle. The exact
// distance check still has to run on the returned rows.
func applyGeoPrefilter(q *gorm.DB, g GeoDistance) *gorm.DB {
	q = q.Where("latitude IS NOT NULL AND longitude IS NOT NULL")
	cells := CoverCells(g.Latitude, g.Longitude, g.RadiusKm)
	if len(cells) == 0 {
		return q
	}
	likes := make([]clause.Expression, 0, len(cells))
	for _, cell := range cells {
		likes = append(likes, clause.Like{Column: clause.Column{Name: "geohash"}, Value: cell + "%"})
	}
	return q.Where(clause.Or(likes...))
}
