package domain

import "time"

// SigningKey is the durable, public half of a signing key pair. The private
// half only ever lives in the cache.
type SigningKey struct {
	ID           string // kid (ULID)
	PublicKeyPEM []byte // PKIX
	CreatedAt    time.Time
	ExpiresAt    time.Time // created + rotation + cool-down
}

// IsExpired reports whether tokens signed by this key can no longer verify.
func (k *SigningKey) IsExpired(now time.Time) bool {
	return !now.Before(k.ExpiresAt)
}
