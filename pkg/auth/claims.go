package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenClaims is the JWT issued by the account service. Wallet carries the ledger
// address; older tokens put it in the subject instead.
type AccessTokenClaims struct {
	UserID string `json:"id"`
	Wallet string `json:"wallet,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller handed to the domain services.
type Principal struct {
	OwnerID      string
	OwnerAddress string
	Roles        []string
}

// Principal maps the claims onto a caller identity.
func (c *AccessTokenClaims) Principal() Principal {
	address := strings.TrimSpace(c.Wallet)
	if address == "" {
		address = strings.TrimSpace(c.Subject)
	}
	p := Principal{
		OwnerID:      strings.TrimSpace(c.UserID),
		OwnerAddress: strings.ToLower(address),
	}
	if role := strings.TrimSpace(c.Role); role != "" {
		p.Roles = []string{strings.TrimPrefix(strings.ToUpper(role), "ROLE_")}
	}
	return p
}

// HasRole reports whether the principal carries role (compared case-insensitively).
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}
