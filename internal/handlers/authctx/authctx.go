package authctx

import (
	"context"

	"github.com/logistio/fleetauth/internal/service/auth"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// NewContext returns a context carrying verified access token claims
func NewContext(ctx context.Context, c *auth.AccessTokenClaims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// FromContext returns the claims stored by the auth middleware
func FromContext(ctx context.Context) (*auth.AccessTokenClaims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.AccessTokenClaims)
	return c, ok
}
