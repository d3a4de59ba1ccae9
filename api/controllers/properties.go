package controllers

import (
	"net/http"

	"github.com/angelmondragon/rentchain-properties/api/responses"
	"github.com/angelmondragon/rentchain-properties/api/validators"
	"github.com/angelmondragon/rentchain-properties/internal/properties"
	pkgerrors "github.com/angelmondragon/rentchain-properties/pkg/errors"
	"github.com/angelmondragon/rentchain-properties/pkg/logger"
	"github.com/angelmondragon/rentchain-properties/pkg/pagination"
)

// CreateProperty lists a new property for the caller.
func CreateProperty(svc properties.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "property service unavailable"))
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}

		var input properties.PropertyInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Create(r.Context(), principal, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

func UpdateProperty(svc properties.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "property service unavailable"))
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.PathUUID(r, "propertyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input properties.PropertyInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPropertyID(ctx, id.String())
		}
		dto, err := svc.Update(ctx, id, input, principal.OwnerAddress)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func DelistProperty(svc properties.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "property service unavailable"))
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.PathUUID(r, "propertyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPropertyID(ctx, id.String())
		}
		if err := svc.Delist(ctx, id, principal.OwnerAddress); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func GetProperty(svc properties.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "property service unavailable"))
			return
		}
		id, err := validators.PathUUID(r, "propertyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// ListMyProperties pages through the caller's listings, newest first.
func ListMyProperties(svc properties.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "property service unavailable"))
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		params, err := pagination.FromQuery(r.URL.Query())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()))
			return
		}

		items, err := svc.ListMine(r.Context(), principal.OwnerAddress, pagination.LimitWithBuffer(params.Limit), params.Offset())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, meta := pagination.Trim(items, params)
		responses.WritePage(w, page, meta)
	}
}
