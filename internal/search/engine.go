package search

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/rentchain-properties/pkg/db/models"
	pkgerrors "github.com/angelmondragon/rentchain-properties/pkg/errors"
)

// Engine runs criteria searches over the properties table.
type Engine struct {
	db *gorm.DB
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

// Search returns the active, available properties matching c, newest first. On Postgres
// the distance filter runs in SQL; other dialects pre-filter by geohash and check the
// exact distance in memory before paging.
func (e *Engine) Search(ctx context.Context, c Criteria, page Page) ([]models.Property, error) {
	f := Build(c)

	q, err := Apply(e.db.WithContext(ctx).Model(&models.Property{}), f)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid search filter")
	}
	q = q.Order("created_at DESC").Order("id")

	pushdown := e.db.Dialector.Name() == "postgres"
	if f.Geo != nil {
		if pushdown {
			q = applyGeoPushdown(q, *f.Geo)
		} else {
			q = applyGeoPrefilter(q, *f.Geo)
		}
	}

	if f.Geo == nil || pushdown {
		if page.Limit > 0 {
			q = q.Limit(page.Limit).Offset(page.Offset)
		}
		var out []models.Property
		if err := q.Find(&out).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search properties")
		}
		return out, nil
	}

	var candidates []models.Property
	if err := q.Find(&candidates).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search properties")
	}
	return paginate(FilterByDistance(candidates, *f.Geo), page), nil
}

// FilterByDistance keeps the located properties strictly inside g.
func FilterByDistance(props []models.Property, g GeoDistance) []models.Property {
	out := props[:0]
	for _, p := range props {
		if p.Latitude == nil || p.Longitude == nil {
			continue
		}
		if g.Within(*p.Latitude, *p.Longitude) {
			out = append(out, p)
		}
	}
	return out
}

func paginate(props []models.Property, page Page) []models.Property {
	if page.Limit <= 0 {
		return props
	}
	if page.Offset >= len(props) {
		return []models.Property{}
	}
	end := page.Offset + page.Limit
	if end > len(props) {
		end = len(props)
	}
	return props[page.Offset:end]
}
