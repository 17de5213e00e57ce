package jwtx

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Every token fault wraps ErrInvalid, so callers can tell a bad token apart
// from a key store that is down. The specific cause is wrapped alongside.
var (
	ErrInvalid = errors.New("jwtx: invalid token")

	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrAudience    = errors.New("jwtx: audience mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

func invalid(cause error) error {
	return fmt.Errorf("%w: %w", ErrInvalid, cause)
}

// KeyResolver finds the public key for a kid. Implementations return an
// error wrapping ErrUnknownKID when the kid isn't (or is no longer) known;
// any other error is treated as an infrastructure failure.
type KeyResolver interface {
	PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// VerifyOptions captures what the verifier enforces.
type VerifyOptions struct {
	// Issuer the token must have. Empty means "don't care".
	Issuer string

	// Audience values of which the token must contain one. Empty means "don't care".
	Audience []string

	// Leeway allows small clock skew on exp/nbf/iat.
	Leeway time.Duration

	// Now overrides the clock, tests only.
	Now func() time.Time
}

// Verifier validates RS256 access tokens.
type Verifier struct {
	keys KeyResolver
	opts VerifyOptions
}

// NewVerifier creates a verifier that resolves keys through keys.
func NewVerifier(keys KeyResolver, opts VerifyOptions) *Verifier {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Verifier{keys: keys, opts: opts}
}

// Verify checks signature, expiry, issuer and audience and returns the claims.
func (v *Verifier) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.opts.Leeway),
		jwt.WithTimeFunc(v.opts.Now),
	)

	// keyErr holds a resolver failure that is not about the token itself.
	var keyErr error

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid", ErrMalformed)
		}

		pub, err := v.keys.PublicKey(ctx, kid)
		if err != nil {
			if !errors.Is(err, ErrUnknownKID) {
				keyErr = err
			}
			return nil, err
		}
		return pub, nil
	})

	switch {
	case keyErr != nil:
		return nil, keyErr
	case err == nil:
	case errors.Is(err, ErrUnknownKID):
		return nil, invalid(ErrUnknownKID)
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, invalid(ErrExpired)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return nil, invalid(ErrNotYetValid)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, invalid(ErrInvalidSig)
	default:
		return nil, invalid(fmt.Errorf("%w: %w", ErrMalformed, err))
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, invalid(ErrMalformed)
	}

	if err := claims.ValidateIssuer(v.opts.Issuer); err != nil {
		return nil, invalid(err)
	}
	if err := claims.ValidateAudience(v.opts.Audience); err != nil {
		return nil, invalid(err)
	}

	return claims, nil
}
