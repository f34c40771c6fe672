package middleware

import (
	"net/http"

	"github.com/logistio/fleetauth/internal/handlers/authctx"
	"github.com/logistio/fleetauth/internal/handlers/render"
	"github.com/logistio/fleetauth/internal/service/auth"
)

type verifier interface {
	Authenticate(tokenString string) (*auth.AccessTokenClaims, error)
}

// AuthMiddleware rejects requests without a valid bearer access token
// and stores the verified claims in the request context
func AuthMiddleware(v verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.BearerFromRequest(r)
			if !ok {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := v.Authenticate(token)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := authctx.NewContext(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
