package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Claims describe an access token before signing and after verification.
type Claims struct {
	Subject  Subject
	AMR      AMR
	Audience string

	// Custom holds the subject claims plus "device".
	Custom map[string]string

	// Flags are computed from the client config when a token is issued, so
	// they are only meaningful on verified claims.
	Flags []string
}

// TokenPair is what login and refresh hand back to the device.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
}

// refreshTokenNamespace scopes RefreshTokenID so the same device and
// identity always land on the same row.
var refreshTokenNamespace = uuid.MustParse("5b0e7c86-9f3a-4f62-8a7e-2d4c1b9e6a10")

// RefreshTokenID derives the row id for a (device, identity) pair. Both
// parts are length-prefixed so no separator inside an id can make two
// pairs collide.
func RefreshTokenID(deviceID, identityID string) string {
	name := fmt.Sprintf("%d:%s%d:%s", len(deviceID), deviceID, len(identityID), identityID)
	return uuid.NewSHA1(refreshTokenNamespace, []byte(name)).String()
}

// RefreshToken is one device's session. Token is only populated right after
// issue; the store keeps TokenHash.
type RefreshToken struct {
	ID         string
	DeviceID   string
	IdentityID string
	Subject    string // serialized Subject
	Audience   string
	AMR        AMR

	Token     string
	TokenHash string

	CreatedAt          time.Time     // chain anchor, never changes
	ExpiresAt          time.Time     // sliding
	RefreshChainExpiry time.Duration // absolute ceiling from CreatedAt
}

// ChainExpiresAt is the point after which no refresh can succeed.
func (t *RefreshToken) ChainExpiresAt() time.Time {
	return t.CreatedAt.Add(t.RefreshChainExpiry)
}

// CanRefresh reports whether both the sliding and the chain deadline are
// still ahead of now.
func (t *RefreshToken) CanRefresh(now time.Time) bool {
	return now.Before(t.ExpiresAt) && now.Add(-t.RefreshChainExpiry).Before(t.CreatedAt)
}
