package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

// TokenFromRequest returns the bearer token of the request, or the token
// query parameter when there is no Authorization header.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

func verifyToken(expected string, r *http.Request) error {
	if expected == "" {
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(expected), []byte(TokenFromRequest(r))) != 1 {
		return errors.New("invalid auth token").
			WithType(ErrTypeUnauthorized).
			WithTag("remote_addr", r.RemoteAddr)
	}
	return nil
}

// VerifyAuthToken is a websocket handshake rejecting connections without the
// expected token. An empty token accepts every connection.
func VerifyAuthToken(token string) func(*websocket.Config, *http.Request) error {
	return func(c *websocket.Config, r *http.Request) error {
		if err := verifyToken(token, r); err != nil {
			logs.WithTag("path", r.URL.Path).Warn(err)
			return err
		}
		return nil
	}
}

// VerifyAuthTokenHandler rejects requests without the expected token. An
// empty token accepts every request.
func VerifyAuthTokenHandler(token string, next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := verifyToken(token, r); err != nil {
			logs.WithTag("path", r.URL.Path).Warn(err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	}
}
