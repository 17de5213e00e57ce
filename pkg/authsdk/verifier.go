package authsdk

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aussiebroadwan/warden/pkg/jwtx"
)

// DefaultMinRefreshInterval limits how often an unknown kid can trigger a
// JWKS fetch.
const DefaultMinRefreshInterval = 30 * time.Second

// RemoteVerifier verifies access tokens offline against the service's
// JWKS. The key set is fetched lazily and refetched when a token names a
// kid it hasn't seen, which is how it picks up rotated keys.
type RemoteVerifier struct {
	client   *SDKClient
	keys     *jwtx.KeySet
	verifier *jwtx.Verifier

	// MinRefreshInterval defaults to DefaultMinRefreshInterval.
	MinRefreshInterval time.Duration

	now         func() time.Time
	mu          sync.Mutex
	lastRefresh time.Time
}

var _ jwtx.KeyResolver = (*RemoteVerifier)(nil)

// NewRemoteVerifier creates a verifier for tokens issued by issuer. When
// audience is non-empty the token must be addressed to one of them.
func NewRemoteVerifier(client *SDKClient, issuer string, audience ...string) *RemoteVerifier {
	v := &RemoteVerifier{
		client:             client,
		keys:               jwtx.NewKeySet(),
		MinRefreshInterval: DefaultMinRefreshInterval,
		now:                time.Now,
	}
	v.verifier = jwtx.NewVerifier(v, jwtx.VerifyOptions{
		Issuer:   issuer,
		Audience: audience,
		Leeway:   5 * time.Second,
	})
	return v
}

// Verify implements httpx.TokenVerifier.
func (v *RemoteVerifier) Verify(ctx context.Context, token string) (*jwtx.Claims, error) {
	return v.verifier.Verify(ctx, token)
}

// PublicKey implements jwtx.KeyResolver.
func (v *RemoteVerifier) PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	pub, err := v.keys.PublicKey(ctx, kid)
	if err == nil {
		return pub, nil
	}

	if err := v.refresh(ctx); err != nil {
		return nil, err
	}
	return v.keys.PublicKey(ctx, kid)
}

// refresh refetches the key set unless that happened within
// MinRefreshInterval.
func (v *RemoteVerifier) refresh(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	if !v.lastRefresh.IsZero() && now.Sub(v.lastRefresh) < v.MinRefreshInterval {
		return nil
	}

	jwks, err := v.client.GetJWKS(ctx)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	if err := v.keys.ResetFromJWKS(jwtx.JWKS(*jwks)); err != nil {
		return fmt.Errorf("load jwks: %w", err)
	}
	v.lastRefresh = now
	return nil
}

// IsTokenFault reports whether err means the token itself was rejected,
// as opposed to the JWKS being unreachable.
func IsTokenFault(err error) bool {
	return errors.Is(err, jwtx.ErrInvalid)
}
