package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func jwksKIDs(set jwtx.JWKS) []string {
	kids := make([]string, 0, len(set.Keys))
	for _, k := range set.Keys {
		kids = append(kids, k.Kid)
	}
	return kids
}

func TestActiveSignerIsStableUntilRotation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.keys.ActiveSigner(ctx)
	require.NoError(t, err)

	again, err := f.keys.ActiveSigner(ctx)
	require.NoError(t, err)
	require.Equal(t, first.KID(), again.KID())

	rec, err := f.store.SigningKeys().GetSigningKey(ctx, first.KID())
	require.NoError(t, err)
	require.WithinDuration(t, f.clock.Now().Add(testRotation+testCoolDown), rec.ExpiresAt, 0)

	f.advance(testRotation)
	next, err := f.keys.ActiveSigner(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first.KID(), next.KID())
}

func TestActiveSignerSharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	other := NewSigningKeyManager(f.store.SigningKeys(), f.cache.SigningKeys(), SigningKeyConfig{
		RotationPeriod: testRotation,
		CoolDownPeriod: testCoolDown,
		Now:            f.clock.Now,
	})

	a, err := f.keys.ActiveSigner(ctx)
	require.NoError(t, err)
	b, err := other.ActiveSigner(ctx)
	require.NoError(t, err)
	require.Equal(t, a.KID(), b.KID())
}

func TestActiveSignerLosesRotationRace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	winner, err := f.keys.ActiveSigner(ctx)
	require.NoError(t, err)

	loser := NewSigningKeyManager(f.store.SigningKeys(), &missOnceCache{SigningKeys: f.cache.SigningKeys()}, SigningKeyConfig{
		RotationPeriod: testRotation,
		CoolDownPeriod: testCoolDown,
		Now:            f.clock.Now,
	})
	got, err := loser.ActiveSigner(ctx)
	require.NoError(t, err)
	require.Equal(t, winner.KID(), got.KID(), "loser signs with the winner's key")

	// The loser's public half stays published, harmlessly.
	set, err := f.keys.VerificationKeys(ctx)
	require.NoError(t, err)
	require.Len(t, set.Keys, 2)
	require.Contains(t, jwksKIDs(set), winner.KID())
}

// A restart under a different master key finds an active key it can't
// unseal and must replace it rather than fail until the TTL runs out.
func TestActiveSignerReplacesUnsealableKey(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(cryptox.ResetMasterKeyForTesting)

	t.Setenv("AUTH_MASTER_KEY", "before-restart")
	cryptox.ResetMasterKeyForTesting()
	f := newFixture(t)
	before, err := f.keys.ActiveSigner(ctx)
	require.NoError(t, err)

	t.Setenv("AUTH_MASTER_KEY", "after-restart")
	cryptox.ResetMasterKeyForTesting()
	restarted := NewSigningKeyManager(f.store.SigningKeys(), f.cache.SigningKeys(), SigningKeyConfig{
		RotationPeriod: testRotation,
		CoolDownPeriod: testCoolDown,
		Now:            f.clock.Now,
	})

	after, err := restarted.ActiveSigner(ctx)
	require.NoError(t, err)
	require.NotEqual(t, before.KID(), after.KID())

	active, err := f.cache.SigningKeys().GetActiveKey(ctx)
	require.NoError(t, err)
	require.Equal(t, after.KID(), active.KID)

	again, err := restarted.ActiveSigner(ctx)
	require.NoError(t, err)
	require.Equal(t, after.KID(), again.KID())

	// Tokens from before the restart still verify.
	set, err := restarted.VerificationKeys(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{before.KID(), after.KID()}, jwksKIDs(set))
}

func TestActiveSignerCacheOutage(t *testing.T) {
	f := newFixture(t)
	m := NewSigningKeyManager(f.store.SigningKeys(), brokenCache{f.cache.SigningKeys()}, SigningKeyConfig{Now: f.clock.Now})

	_, err := m.ActiveSigner(context.Background())
	require.ErrorIs(t, err, errCacheDown)
}

func TestPublicKeyLookup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	signer, err := f.keys.ActiveSigner(ctx)
	require.NoError(t, err)

	pub, err := f.keys.PublicKey(ctx, signer.KID())
	require.NoError(t, err)
	require.True(t, pub.Equal(signer.PublicKey()))

	_, err = f.keys.PublicKey(ctx, "01UNKNOWN")
	require.ErrorIs(t, err, ErrInvalidToken)
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)

	// Past rotation + cool-down even a cached key stops resolving.
	f.advance(testRotation + testCoolDown)
	_, err = f.keys.PublicKey(ctx, signer.KID())
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)
}

func TestVerificationKeysOverlap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.keys.ActiveSigner(ctx)
	require.NoError(t, err)

	f.advance(testRotation + time.Minute)
	second, err := f.keys.ActiveSigner(ctx)
	require.NoError(t, err)

	set, err := f.keys.VerificationKeys(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{first.KID(), second.KID()}, jwksKIDs(set))
	for _, k := range set.Keys {
		require.Equal(t, "RSA", k.Kty)
		require.Equal(t, "RS256", k.Alg)
		require.Equal(t, "sig", k.Use)
	}

	// first was created rotation+1m ago; it drops out after its cool-down.
	f.advance(testCoolDown)
	set, err = f.keys.VerificationKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{second.KID()}, jwksKIDs(set))
}

func TestHousekeepingCleanup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	signer, err := f.keys.ActiveSigner(ctx)
	require.NoError(t, err)
	_, err = f.tokens.IssueSession(ctx, domain.PhoneNumberSubject("+6591234567"), "dev-1", domain.AMROTP, "app")
	require.NoError(t, err)

	hk := NewHousekeepingService(f.store, discardLogger(), time.Minute)
	hk.Now = f.clock.Now

	hk.Cleanup(ctx)
	_, err = f.store.SigningKeys().GetSigningKey(ctx, signer.KID())
	require.NoError(t, err, "live key survives")

	f.advance(testRotation + testCoolDown)
	hk.Cleanup(ctx)

	_, err = f.store.SigningKeys().GetSigningKey(ctx, signer.KID())
	require.Error(t, err)
	err = f.tokens.RevokeSession(ctx, "+6591234567", "dev-1", true)
	require.ErrorIs(t, err, ErrInvalidToken, "expired session was removed")
}

func TestHousekeepingStartStop(t *testing.T) {
	f := newFixture(t)
	hk := NewHousekeepingService(f.store, discardLogger(), 0)
	require.Equal(t, time.Hour, hk.Interval)

	hk.Start()
	hk.Stop()
}
