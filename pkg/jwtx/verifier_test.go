package jwtx_test

import (
	"context"
	"crypto/rsa"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testIssuer = "warden"

func newSigner(t *testing.T, kid string) *jwtx.RS256Signer {
	t.Helper()
	pair, err := cryptox.GenerateRSAKeyPair(2048)
	require.NoError(t, err)
	s, err := jwtx.NewSignerRS256(kid, pair.PrivatePEM)
	require.NoError(t, err)
	return s
}

func sampleClaims(now time.Time, ttl time.Duration) jwtx.Claims {
	return jwtx.NewAccessClaims(jwtx.AccessClaims{
		Subject:  "account|acc-1|a@example.com",
		AMR:      []string{"pwd"},
		Audience: "mobile",
		Issuer:   testIssuer,
		TTL:      ttl,
		Custom: map[string]string{
			jwtx.ClaimAccount: "acc-1",
			jwtx.ClaimEmail:   "a@example.com",
			jwtx.ClaimDevice:  "dev-1",
		},
		Flags: []string{"beta"},
	}, now)
}

type failingResolver struct{ err error }

func (f failingResolver) PublicKey(context.Context, string) (*rsa.PublicKey, error) {
	return nil, f.err
}

func TestSignAndVerify(t *testing.T) {
	ctx := context.Background()
	signer := newSigner(t, "kid-1")
	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))

	now := time.Now()
	token, err := signer.Sign(sampleClaims(now, time.Minute))
	require.NoError(t, err)

	v := jwtx.NewVerifier(keys, jwtx.VerifyOptions{Issuer: testIssuer, Audience: []string{"mobile"}})
	claims, err := v.Verify(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "account|acc-1|a@example.com", claims.Subject)
	require.Equal(t, []string{"pwd"}, claims.AMR)
	require.Equal(t, "acc-1", claims.Account)
	require.Equal(t, "dev-1", claims.Device)
	require.Equal(t, []string{"beta"}, claims.Flags)
	require.Equal(t, map[string]string{
		"account": "acc-1",
		"email":   "a@example.com",
		"device":  "dev-1",
	}, claims.Custom())
}

func TestVerifyFailures(t *testing.T) {
	ctx := context.Background()
	signer := newSigner(t, "kid-1")
	other := newSigner(t, "kid-1")
	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))

	now := time.Now()
	good, err := signer.Sign(sampleClaims(now, time.Minute))
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		v := jwtx.NewVerifier(keys, jwtx.VerifyOptions{
			Now: func() time.Time { return now.Add(2 * time.Minute) },
		})
		_, err := v.Verify(ctx, good)
		require.ErrorIs(t, err, jwtx.ErrInvalid)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		v := jwtx.NewVerifier(keys, jwtx.VerifyOptions{Issuer: "someone-else"})
		_, err := v.Verify(ctx, good)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("wrong audience", func(t *testing.T) {
		v := jwtx.NewVerifier(keys, jwtx.VerifyOptions{Audience: []string{"web"}})
		_, err := v.Verify(ctx, good)
		require.ErrorIs(t, err, jwtx.ErrAudience)
	})

	t.Run("bad signature", func(t *testing.T) {
		forged, err := other.Sign(sampleClaims(now, time.Minute))
		require.NoError(t, err)
		_, err = jwtx.NewVerifier(keys, jwtx.VerifyOptions{}).Verify(ctx, forged)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("unknown kid", func(t *testing.T) {
		tok, err := newSigner(t, "kid-2").Sign(sampleClaims(now, time.Minute))
		require.NoError(t, err)
		_, err = jwtx.NewVerifier(keys, jwtx.VerifyOptions{}).Verify(ctx, tok)
		require.ErrorIs(t, err, jwtx.ErrInvalid)
		require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, tok := range []string{"", "abc", strings.Repeat("x.", 2) + "x"} {
			_, err := jwtx.NewVerifier(keys, jwtx.VerifyOptions{}).Verify(ctx, tok)
			require.ErrorIs(t, err, jwtx.ErrInvalid, tok)
		}
	})

	t.Run("resolver outage passes through", func(t *testing.T) {
		outage := errors.New("redis down")
		_, err := jwtx.NewVerifier(failingResolver{outage}, jwtx.VerifyOptions{}).Verify(ctx, good)
		require.ErrorIs(t, err, outage)
		require.NotErrorIs(t, err, jwtx.ErrInvalid)
	})
}

func TestKeySetFromJWKS(t *testing.T) {
	a, b := newSigner(t, "a"), newSigner(t, "b")
	keys := jwtx.NewKeySet()
	require.False(t, keys.IsReady())

	require.NoError(t, keys.ResetFromJWKS(jwtx.JWKS{Keys: []jwtx.JWK{a.PublicJWK(), b.PublicJWK()}}))
	require.True(t, keys.IsReady())
	require.Len(t, keys.PublicJWKS().Keys, 2)

	pub, err := keys.PublicKey(context.Background(), "b")
	require.NoError(t, err)
	require.True(t, b.PublicKey().Equal(pub))

	err = keys.ResetFromJWKS(jwtx.JWKS{Keys: []jwtx.JWK{{Kty: "EC", Kid: "c"}}})
	require.Error(t, err)
	require.Len(t, keys.PublicJWKS().Keys, 2, "failed reset keeps old keys")
}

func TestJWKRoundTrip(t *testing.T) {
	s := newSigner(t, "kid-1")
	jwk := s.PublicJWK()
	require.Equal(t, "RSA", jwk.Kty)
	require.Equal(t, "RS256", jwk.Alg)
	require.Equal(t, "sig", jwk.Use)
	require.Equal(t, "AQAB", jwk.E)

	pub, err := jwk.RSAPublicKey()
	require.NoError(t, err)
	require.True(t, s.PublicKey().Equal(pub))
}
