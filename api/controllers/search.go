package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/rentchain-properties/api/responses"
	"github.com/angelmondragon/rentchain-properties/api/validators"
	"github.com/angelmondragon/rentchain-properties/internal/properties"
	"github.com/angelmondragon/rentchain-properties/internal/search"
	"github.com/angelmondragon/rentchain-properties/pkg/db/models"
	"github.com/angelmondragon/rentchain-properties/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentchain-properties/pkg/errors"
	"github.com/angelmondragon/rentchain-properties/pkg/logger"
	"github.com/angelmondragon/rentchain-properties/pkg/pagination"
)

const maxSearchRadiusKm = 500

type propertySearcher interface {
	Search(ctx context.Context, c search.Criteria, page search.Page) ([]models.Property, error)
}

type propertyDescriber interface {
	Describe(ctx context.Context, props []models.Property) ([]properties.PropertyDTO, error)
}

// SearchProperties runs a public criteria search over active, available listings.
func SearchProperties(engine propertySearcher, describer propertyDescriber, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil || describer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "search unavailable"))
			return
		}

		criteria, err := criteriaFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pagination.FromQuery(r.URL.Query())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()))
			return
		}

		found, err := engine.Search(r.Context(), criteria, search.Page{
			Limit:  pagination.LimitWithBuffer(params.Limit),
			Offset: params.Offset(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		found, meta := pagination.Trim(found, params)

		items, err := describer.Describe(r.Context(), found)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if items == nil {
			items = []properties.PropertyDTO{}
		}
		responses.WritePage(w, items, meta)
	}
}

func criteriaFromQuery(r *http.Request) (search.Criteria, error) {
	var (
		c   search.Criteria
		err error
	)
	c.City = validators.OptionalQueryString(r, "city", 100)
	if c.MinRent, err = validators.OptionalQueryInt64(r, "minRent"); err != nil {
		return c, err
	}
	if c.MaxRent, err = validators.OptionalQueryInt64(r, "maxRent"); err != nil {
		return c, err
	}
	if raw := validators.OptionalQueryString(r, "rentalType", 20); raw != nil {
		rt, parseErr := enums.ParseRentalType(*raw)
		if parseErr != nil {
			return c, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid rentalType").WithDetails(map[string]any{"field": "rentalType"})
		}
		c.RentalType = &rt
	}
	if c.Latitude, err = validators.OptionalQueryFloat(r, "lat", -90, 90); err != nil {
		return c, err
	}
	if c.Longitude, err = validators.OptionalQueryFloat(r, "lng", -180, 180); err != nil {
		return c, err
	}
	if c.RadiusKm, err = validators.OptionalQueryFloat(r, "radiusKm", 0, maxSearchRadiusKm); err != nil {
		return c, err
	}
	return c, nil
}
