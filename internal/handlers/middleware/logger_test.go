package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type loggerFunc func(string, ...any)

func (f loggerFunc) Info(msg string, v ...any) { f(msg, v...) }

func TestLoggerMiddleware(t *testing.T) {
	newCapture := func() (*int, *string, *[]any, logger) {
		called := new(int)
		msg := new(string)
		args := new([]any)
		return called, msg, args, loggerFunc(func(m string, v ...any) {
			*called++
			*msg = m
			*args = v
		})
	}

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, err := w.Write([]byte("hi"))
		require.NoError(t, err, "should write response")
	})

	t.Run("logs request fields", func(t *testing.T) {
		called, msg, args, l := newCapture()

		middleware := LoggerMiddleware(l)
		srv := httptest.NewServer(middleware(h))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/test")
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck

		require.Equalf(t, http.StatusTeapot, resp.StatusCode, "should return status Teapot. Resp: %s", string(body))
		require.Equal(t, "hi", string(body), "should return 'hi' in response")

		require.Equal(t, 1, *called, "logger should be called once")
		require.Equal(t, "got HTTP request", *msg, "logger should log 'got HTTP request'")
		require.Len(t, *args, 12, "logger should log 12 fields")

		got := *args
		require.Equal(t, "request_id", got[0])
		require.NotEmpty(t, got[1], "request id should be generated")
		require.Equal(t, resp.Header.Get("X-Request-Id"), got[1], "logged id should match the response header")
		require.Equal(t, "method", got[2])
		require.Equal(t, "GET", got[3])
		require.Equal(t, "uri", got[4])
		require.Equal(t, "/test", got[5])
		require.Equal(t, "duration", got[6])
		require.NotEmpty(t, got[7], "duration should not be empty")
		require.Equal(t, "status", got[8])
		require.Equal(t, http.StatusTeapot, got[9])
		require.Equal(t, "size", got[10])
		require.Equal(t, 2, got[11], "size should be 2 (length of 'hi')")
	})

	t.Run("keeps the caller's request id", func(t *testing.T) {
		_, _, args, l := newCapture()

		middleware := LoggerMiddleware(l)
		srv := httptest.NewServer(middleware(h))
		defer srv.Close()

		req, err := http.NewRequest("GET", srv.URL+"/test", nil)
		require.NoError(t, err)
		req.Header.Set("X-Request-Id", "caller-supplied-id")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		require.Equal(t, "caller-supplied-id", resp.Header.Get("X-Request-Id"))
		require.Equal(t, "caller-supplied-id", (*args)[1], "logged id should be the caller's")
	})
}
