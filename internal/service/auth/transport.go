package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/logistio/fleetauth/internal/models"
)

// RefreshCookieName is the HttpOnly cookie carrying the refresh token.
// Non-browser clients may send the token in the request body instead;
// both transports are accepted equivalently.
const RefreshCookieName = "refreshtoken"

// SetRefreshCookie attaches the rotated refresh token to the response
func (s *Service) SetRefreshCookie(w http.ResponseWriter, refresh models.IssuedToken) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    refresh.Value,
		Path:     "/",
		MaxAge:   int(time.Until(refresh.ExpiresAt).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearRefreshCookie drops the cookie on logout
func (s *Service) ClearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// RefreshFromCookie extracts the refresh token from the request cookie
func RefreshFromCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// BearerFromRequest extracts the access token from the Authorization header
func BearerFromRequest(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}
