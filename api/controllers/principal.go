package controllers

import (
	"net/http"

	"github.com/angelmondragon/rentchain-properties/api/middleware"
	"github.com/angelmondragon/rentchain-properties/api/responses"
	"github.com/angelmondragon/rentchain-properties/pkg/auth"
	pkgerrors "github.com/angelmondragon/rentchain-properties/pkg/errors"
	"github.com/angelmondragon/rentchain-properties/pkg/logger"
)

// requirePrincipal writes a 401 and returns false when the request carries no caller.
func requirePrincipal(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (auth.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok || p.OwnerAddress == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller context missing"))
		return auth.Principal{}, false
	}
	return p, true
}
