package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Drivers implement it and expose
// sub-repositories so a transaction can only be opened from the root.
type Store interface {
	SigningKeys() SigningKeys
	RefreshTokens() RefreshTokens
	Identities() Identities

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing if it returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type SigningKeys interface {
	// CreateSigningKey stores the public half of a new key pair.
	CreateSigningKey(ctx context.Context, key domain.SigningKey) error

	// GetSigningKey fetches a key by kid, expired or not.
	GetSigningKey(ctx context.Context, kid string) (domain.SigningKey, error)

	// ListValidSigningKeys returns keys with expires_at after now, newest first.
	ListValidSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error)

	// DeleteExpiredSigningKeys removes keys past expires_at and reports how many.
	DeleteExpiredSigningKeys(ctx context.Context, now time.Time) (int64, error)
}

type RefreshTokens interface {
	// UpsertRefreshToken writes the row for t.ID, replacing any previous
	// session for the same device and identity.
	UpsertRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshToken finds a session by device and token fingerprint.
	GetRefreshToken(ctx context.Context, deviceID, tokenHash string) (domain.RefreshToken, error)

	// RotateRefreshToken swaps the token and sliding expiry, but only while
	// the stored hash still equals prevHash. Returns ErrNotFound otherwise.
	RotateRefreshToken(ctx context.Context, id, prevHash, nextHash string, expiresAt time.Time) error

	// DeleteRefreshToken removes a session by id, returning ErrNotFound if absent.
	DeleteRefreshToken(ctx context.Context, id string) error

	// DeleteExpiredRefreshTokens removes rows whose sliding or chain
	// deadline has passed.
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type Identities interface {
	GetIdentity(ctx context.Context, id string) (domain.Identity, error)

	// UpsertIdentityStatus records the latest status for an identity.
	UpsertIdentityStatus(ctx context.Context, id string, status domain.IdentityStatus, at time.Time) error
}
