package authsdk_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T, kid string) *jwtx.RS256Signer {
	t.Helper()
	pair, err := cryptox.GenerateRSAKeyPair(cryptox.MinRSABits)
	require.NoError(t, err)
	s, err := jwtx.NewSignerRS256(kid, pair.PrivatePEM)
	require.NoError(t, err)
	return s
}

func sign(t *testing.T, s jwtx.Signer, aud string) string {
	t.Helper()
	tok, err := s.Sign(jwtx.NewAccessClaims(jwtx.AccessClaims{
		Subject:  "phone-number|+6587304661",
		AMR:      []string{"otp"},
		Audience: aud,
		Issuer:   "warden",
		TTL:      time.Minute,
	}, time.Now()))
	require.NoError(t, err)
	return tok
}

func TestRemoteVerifier(t *testing.T) {
	first := newTestSigner(t, "k1")
	second := newTestSigner(t, "k2")

	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(first))

	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/.well-known/jwks.json", r.URL.Path)
		fetches.Add(1)
		writeJSON(w, http.StatusOK, keys.PublicJWKS())
	}))
	defer srv.Close()

	v := authsdk.NewRemoteVerifier(authsdk.NewSDKClient(srv.URL), "warden", "app")
	v.MinRefreshInterval = 0

	claims, err := v.Verify(t.Context(), sign(t, first, "app"))
	require.NoError(t, err)
	require.Equal(t, "+6587304661", claims.PhoneNumber)
	require.EqualValues(t, 1, fetches.Load())

	// Known kid, no refetch.
	_, err = v.Verify(t.Context(), sign(t, first, "app"))
	require.NoError(t, err)
	require.EqualValues(t, 1, fetches.Load())

	_, err = v.Verify(t.Context(), sign(t, first, "other"))
	require.ErrorIs(t, err, jwtx.ErrAudience)
	require.True(t, authsdk.IsTokenFault(err))

	// Rotation: the new kid triggers a refetch.
	require.NoError(t, keys.AddSigner(second))
	_, err = v.Verify(t.Context(), sign(t, second, "app"))
	require.NoError(t, err)
	require.EqualValues(t, 2, fetches.Load())
}

func TestRemoteVerifierThrottlesRefresh(t *testing.T) {
	known := newTestSigner(t, "k1")
	stranger := newTestSigner(t, "k-unknown")

	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(known))

	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		writeJSON(w, http.StatusOK, keys.PublicJWKS())
	}))
	defer srv.Close()

	v := authsdk.NewRemoteVerifier(authsdk.NewSDKClient(srv.URL), "warden")

	for range 3 {
		_, err := v.Verify(t.Context(), sign(t, stranger, "app"))
		require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	}
	require.EqualValues(t, 1, fetches.Load())
}

func TestRemoteVerifierUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	v := authsdk.NewRemoteVerifier(authsdk.NewSDKClient(srv.URL), "warden")

	_, err := v.Verify(t.Context(), sign(t, newTestSigner(t, "k1"), "app"))
	require.Error(t, err)
	require.False(t, authsdk.IsTokenFault(err))
}
