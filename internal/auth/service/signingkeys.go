package service

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/cache"
	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/metrics"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/idx"
	"github.com/aussiebroadwan/warden/pkg/jwtx"
	"github.com/aussiebroadwan/warden/pkg/slogx"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultKeyRotationPeriod = 24 * time.Hour
	DefaultKeyCoolDownPeriod = time.Hour

	verificationCacheSize = 64
	signerCacheSize       = 8

	// A lost put-if-absent race is followed by a re-read; if that key has
	// already been evicted we go round again.
	activeKeyAttempts = 3
)

type SigningKeyConfig struct {
	// RotationPeriod is how long one private key signs.
	RotationPeriod time.Duration
	// CoolDownPeriod is how long a key keeps verifying after it stops
	// signing. It must cover the longest access-token lifetime.
	CoolDownPeriod time.Duration
	RSABits        int

	Metrics *metrics.Metrics
	Now     func() time.Time
}

// errUnusableKey marks an active key this instance can't turn into a
// signer, typically because it was sealed under another master key.
var errUnusableKey = errors.New("active signing key unusable")

// verificationKey remembers the deadline so a cached entry can't outlive
// its durable record.
type verificationKey struct {
	pub       *rsa.PublicKey
	expiresAt time.Time
}

// SigningKeyManager owns the signing key lifecycle. Public halves are
// durable, the single active private half lives in the shared cache and
// expires after one rotation period, at which point the next caller
// generates a replacement.
type SigningKeyManager struct {
	store store.SigningKeys
	cache cache.SigningKeys
	cfg   SigningKeyConfig

	verification *expirable.LRU[string, verificationKey]
	signers      *expirable.LRU[string, jwtx.Signer]
}

var _ jwtx.KeyResolver = (*SigningKeyManager)(nil)

func NewSigningKeyManager(keys store.SigningKeys, c cache.SigningKeys, cfg SigningKeyConfig) *SigningKeyManager {
	if cfg.RotationPeriod <= 0 {
		cfg.RotationPeriod = DefaultKeyRotationPeriod
	}
	if cfg.CoolDownPeriod <= 0 {
		cfg.CoolDownPeriod = DefaultKeyCoolDownPeriod
	}
	if cfg.RSABits == 0 {
		cfg.RSABits = cryptox.MinRSABits
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &SigningKeyManager{
		store:        keys,
		cache:        c,
		cfg:          cfg,
		verification: expirable.NewLRU[string, verificationKey](verificationCacheSize, nil, cfg.CoolDownPeriod),
		signers:      expirable.NewLRU[string, jwtx.Signer](signerCacheSize, nil, cfg.RotationPeriod),
	}
}

// ActiveSigner returns the signer for the current private key, rotating
// when the cache no longer holds one or holds one we can't unseal.
func (m *SigningKeyManager) ActiveSigner(ctx context.Context) (jwtx.Signer, error) {
	for range activeKeyAttempts {
		var stale string

		active, err := m.cache.GetActiveKey(ctx)
		switch {
		case err == nil:
			signer, err := m.signerFor(active)
			if !errors.Is(err, errUnusableKey) {
				return signer, err
			}
			slogx.FromContext(ctx).Warn("replacing unusable signing key",
				slog.String("kid", active.KID),
				slog.Any("error", err),
			)
			stale = active.KID
		case !errors.Is(err, cache.ErrMiss):
			return nil, fmt.Errorf("load active signing key: %w", err)
		}

		signer, err := m.rotate(ctx, stale)
		if err != nil {
			return nil, err
		}
		if signer != nil {
			return signer, nil
		}
	}
	return nil, errors.New("no active signing key after rotation")
}

// rotate publishes a fresh key pair, replacing stale when it is set. It
// returns a nil signer when another instance got its key into the cache
// first.
func (m *SigningKeyManager) rotate(ctx context.Context, stale string) (jwtx.Signer, error) {
	l := slogx.FromContext(ctx)
	now := m.cfg.Now()

	pair, err := cryptox.GenerateRSAKeyPair(m.cfg.RSABits)
	if err != nil {
		return nil, err
	}

	kid := idx.NewAt(now).String()
	rec := domain.SigningKey{
		ID:           kid,
		PublicKeyPEM: pair.PublicPEM,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.cfg.RotationPeriod + m.cfg.CoolDownPeriod),
	}

	// The public half must be resolvable before anything can be signed.
	if err := m.store.CreateSigningKey(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist signing key: %w", err)
	}

	sealed, err := cryptox.EncryptPrivateKey(pair.PrivatePEM)
	if err != nil {
		return nil, fmt.Errorf("seal signing key: %w", err)
	}

	active := cache.ActiveKey{KID: kid, SealedPrivateKey: sealed}
	var stored bool
	if stale == "" {
		stored, err = m.cache.PutActiveKeyIfAbsent(ctx, active, m.cfg.RotationPeriod)
	} else {
		stored, err = m.cache.ReplaceActiveKey(ctx, stale, active, m.cfg.RotationPeriod)
	}
	if err != nil {
		return nil, fmt.Errorf("store active signing key: %w", err)
	}
	if !stored {
		l.Debug("lost signing key rotation race", slog.String("kid", kid))
		return nil, nil
	}

	signer, err := jwtx.NewSignerRS256(kid, pair.PrivatePEM)
	if err != nil {
		return nil, err
	}
	m.signers.Add(kid, signer)
	m.cfg.Metrics.KeyRotated()

	l.Info("signing key rotated",
		slog.String("kid", kid),
		slog.Time("expires_at", rec.ExpiresAt),
	)
	return signer, nil
}

func (m *SigningKeyManager) signerFor(active cache.ActiveKey) (jwtx.Signer, error) {
	if s, ok := m.signers.Get(active.KID); ok {
		return s, nil
	}

	privPEM, err := cryptox.DecryptPrivateKey(active.SealedPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: unseal %s: %w", errUnusableKey, active.KID, err)
	}

	s, err := jwtx.NewSignerRS256(active.KID, privPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errUnusableKey, active.KID, err)
	}
	m.signers.Add(active.KID, s)
	return s, nil
}

// PublicKey is the verification-key lookup: it resolves kid for token
// verification. Unknown and expired keys are token faults; store failures
// are returned as they are.
func (m *SigningKeyManager) PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	now := m.cfg.Now()

	if vk, ok := m.verification.Get(kid); ok {
		if now.Before(vk.expiresAt) {
			return vk.pub, nil
		}
		m.verification.Remove(kid)
		return nil, unknownKID(kid)
	}

	rec, err := m.store.GetSigningKey(ctx, kid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, unknownKID(kid)
		}
		return nil, fmt.Errorf("load signing key %s: %w", kid, err)
	}
	if rec.IsExpired(now) {
		return nil, unknownKID(kid)
	}

	pub, err := cryptox.ParseRSAPublicKey(rec.PublicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("signing key %s: %w", kid, err)
	}

	m.verification.Add(kid, verificationKey{pub: pub, expiresAt: rec.ExpiresAt})
	return pub, nil
}

// VerificationKeys lists every key that may still have live tokens.
func (m *SigningKeyManager) VerificationKeys(ctx context.Context) (jwtx.JWKS, error) {
	recs, err := m.store.ListValidSigningKeys(ctx, m.cfg.Now())
	if err != nil {
		return jwtx.JWKS{}, fmt.Errorf("list signing keys: %w", err)
	}

	set := jwtx.JWKS{Keys: make([]jwtx.JWK, 0, len(recs))}
	for _, rec := range recs {
		pub, err := cryptox.ParseRSAPublicKey(rec.PublicKeyPEM)
		if err != nil {
			slogx.FromContext(ctx).Error("skipping unparseable signing key",
				slog.String("kid", rec.ID),
				slog.Any("error", err),
			)
			continue
		}
		set.Keys = append(set.Keys, jwtx.NewRSAJWK(rec.ID, pub))
	}
	return set, nil
}

func unknownKID(kid string) error {
	return fmt.Errorf("%w: %w %q", ErrInvalidToken, jwtx.ErrUnknownKID, kid)
}
