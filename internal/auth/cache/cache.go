// Package cache holds the short-lived, shared state: the active private
// signing key and the OTP counters. Drivers must make every read-modify-write
// atomic across instances.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// ActiveKey is the one private key currently used for signing, sealed
// under the master key.
type ActiveKey struct {
	KID              string `json:"kid"`
	SealedPrivateKey []byte `json:"key"`
}

type SigningKeys interface {
	// GetActiveKey returns ErrMiss once the rotation TTL has evicted the key.
	GetActiveKey(ctx context.Context) (ActiveKey, error)

	// PutActiveKeyIfAbsent stores key with ttl unless one is already active.
	// It reports whether key was stored.
	PutActiveKeyIfAbsent(ctx context.Context, key ActiveKey, ttl time.Duration) (bool, error)

	// ReplaceActiveKey stores key with ttl if the active key is still
	// staleKID or there is none. It reports whether key was stored.
	ReplaceActiveKey(ctx context.Context, staleKID string, key ActiveKey, ttl time.Duration) (bool, error)
}

type Otp interface {
	// ResendGuard returns how long the caller must still wait. When zero the
	// guard has been moved to now+resendAfter.
	ResendGuard(ctx context.Context, reference string, now time.Time, resendAfter time.Duration) (time.Duration, error)

	// IncrRateLimit counts one send in a fixed window starting at the first
	// send, returning the new count and the time left in the window.
	IncrRateLimit(ctx context.Context, reference string, window time.Duration) (int64, time.Duration, error)

	// SaveOtp stores the state and its attempt counter under token together.
	SaveOtp(ctx context.Context, token string, st domain.OtpState, attempts int, ttl time.Duration) error

	// GetOtp returns ErrMiss for unknown or evicted tokens.
	GetOtp(ctx context.Context, token string) (domain.OtpState, error)

	// DecrAttempts spends one attempt. A missing counter reads as -1.
	DecrAttempts(ctx context.Context, token string) (int64, error)

	// DeleteOtp drops the state and counter. It reports false when the
	// state was already gone, so exactly one caller claims a token.
	DeleteOtp(ctx context.Context, token string) (bool, error)
}

// Cache is the full set a driver provides.
type Cache interface {
	SigningKeys() SigningKeys
	Otp() Otp
	Ping(ctx context.Context) error
	Close() error
}
