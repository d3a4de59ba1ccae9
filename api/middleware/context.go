package middleware

import (
	"context"

	"github.com/angelmondragon/rentchain-properties/pkg/auth"
)

type contextKey string

const ctxPrincipal contextKey = "principal"

// PrincipalFromContext returns the authenticated caller, if any.
func PrincipalFromContext(ctx context.Context) (auth.Principal, bool) {
	if ctx == nil {
		return auth.Principal{}, false
	}
	p, ok := ctx.Value(ctxPrincipal).(auth.Principal)
	return p, ok
}

// OwnerAddressFromContext returns the caller's lowercased ledger address or "".
func OwnerAddressFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.OwnerAddress
}

// WithPrincipal injects the caller into the context.
func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxPrincipal, p)
}
