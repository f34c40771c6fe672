package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/logistio/fleetauth/internal/handlers/authctx"
	"github.com/logistio/fleetauth/internal/service/auth"
)

// Allow to use a function as token verifier
type verifierFunc func(tokenString string) (*auth.AccessTokenClaims, error)

func (f verifierFunc) Authenticate(tokenString string) (*auth.AccessTokenClaims, error) {
	return f(tokenString)
}

func TestAuthMiddleware(t *testing.T) {
	// Simple handler that try to get claims from context
	// If ok write the subject to response
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Must always be true cause middleware has to set claims or reject the request
		claims, ok := authctx.FromContext(r.Context())
		require.True(t, ok)

		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(claims.Subject))
		require.NoError(t, err, "should write subject to response")
	})

	t.Run("auth ok", func(t *testing.T) {
		var gotToken string

		// Verifier that always returns ok
		middleware := AuthMiddleware(verifierFunc(func(tokenString string) (*auth.AccessTokenClaims, error) {
			gotToken = tokenString
			claims := &auth.AccessTokenClaims{}
			claims.Subject = "test-user"
			return claims, nil
		}))

		srv := httptest.NewServer(middleware(handler))
		defer srv.Close()

		req, err := http.NewRequest("GET", srv.URL+"/test", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer some-access-token")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck

		require.Equalf(t, http.StatusOK, resp.StatusCode, "should return status OK. Resp: %s", string(body))
		require.Equal(t, "test-user", string(body), "should return subject in response")
		require.Equal(t, "some-access-token", gotToken, "verifier should receive the bearer token without prefix")
	})

	t.Run("auth fail", func(t *testing.T) {
		// Verifier that always fails
		middleware := AuthMiddleware(verifierFunc(func(tokenString string) (*auth.AccessTokenClaims, error) {
			return nil, errors.New("bad token")
		}))

		srv := httptest.NewServer(middleware(handler))
		defer srv.Close()

		req, err := http.NewRequest("GET", srv.URL+"/test", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer some-access-token")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck

		require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "should return status Unauthorized. Resp: %s", string(body))
		require.JSONEq(t,
			`{
				"error": "service_error",
				"message": "Unauthorized"
			}`,
			string(body),
		)
	})

	t.Run("missing authorization header", func(t *testing.T) {
		middleware := AuthMiddleware(verifierFunc(func(tokenString string) (*auth.AccessTokenClaims, error) {
			t.Fatal("verifier should not be called without a bearer token")
			return nil, nil
		}))

		srv := httptest.NewServer(middleware(handler))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/test")
		require.NoError(t, err, "should make request to test server")
		defer resp.Body.Close() // nolint:errcheck

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
