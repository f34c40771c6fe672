package handlers

import (
	"net/http"

	"github.com/logistio/fleetauth/internal/handlers/middleware"
	"github.com/logistio/fleetauth/internal/logger"
	"github.com/logistio/fleetauth/internal/obs"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(authHandler *AuthHandler, l logger.Logger) http.Handler {
	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", authHandler.Handler()))
	root.Handle("GET /metrics", obs.Handler())

	return chain(root,
		middleware.LoggerMiddleware(l),
		middleware.SecurityHeadersMiddleware,
		obs.Instrument,
	)
}
