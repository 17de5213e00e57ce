package httpx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(okHandler, mw("outer"), mw("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner"}, order)
}

type verifierFunc func(ctx context.Context, token string) (*jwtx.Claims, error)

func (f verifierFunc) Verify(ctx context.Context, token string) (*jwtx.Claims, error) {
	return f(ctx, token)
}

func TestAuthnMiddleware(t *testing.T) {
	v := verifierFunc(func(_ context.Context, token string) (*jwtx.Claims, error) {
		switch token {
		case "good":
			c := &jwtx.Claims{}
			c.Subject = "email|a@example.com"
			return c, nil
		case "old":
			return nil, errors.Join(jwtx.ErrInvalid, jwtx.ErrExpired)
		case "down":
			return nil, errors.New("key store unavailable")
		default:
			return nil, jwtx.ErrInvalid
		}
	})

	var seen string
	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := httpx.ClaimsFromContext(r.Context())
		require.True(t, ok)
		seen = c.Subject
	}), httpx.AuthnMiddleware(v))

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusOK},
		{"expired", "Bearer old", http.StatusUnauthorized},
		{"invalid", "Bearer junk", http.StatusUnauthorized},
		{"store outage", "Bearer down", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusUnauthorized {
				require.True(t, strings.HasPrefix(rec.Header().Get("WWW-Authenticate"), "Bearer"))
			}
		})
	}
	require.Equal(t, "email|a@example.com", seen)
}

func TestServiceTokenMiddleware(t *testing.T) {
	h := httpx.Chain(okHandler, httpx.ServiceTokenMiddleware("s3cret"))

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set("X-Service-Token", "s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	closed := httpx.Chain(okHandler, httpx.ServiceTokenMiddleware(""))
	rec = httptest.NewRecorder()
	req.Header.Set("X-Service-Token", "")
	closed.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
