package jwtx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the access-token claims. Registered claims carry sub/aud/iss
// and the timestamps, the rest describe who the subject is.
type Claims struct {
	jwt.RegisteredClaims

	// Authentication Methods Reference ["otp"]
	//		"pwd": password
	//		"bio": biometric
	//		"net": trusted network / device
	//		"otp": one-time passcode
	//		"mfa": more than one of the above
	AMR []string `json:"amr,omitempty"`

	// Subject detail, which of these are set depends on the subject kind.
	Account     string `json:"account,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone-number,omitempty"`

	// Device the session is bound to.
	Device string `json:"device,omitempty"`

	// Feature flags active for the account at issue time.
	Flags []string `json:"flags,omitempty"`
}

// AccessClaims is the input for NewAccessClaims.
type AccessClaims struct {
	Subject  string
	AMR      []string
	Audience string
	Issuer   string
	TTL      time.Duration
	Custom   map[string]string
	Flags    []string
}

// NewAccessClaims builds claims for an access token issued at now.
// Custom keys outside the known set are ignored.
func NewAccessClaims(in AccessClaims, now time.Time) Claims {
	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    in.Issuer,
			Subject:   in.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(in.TTL)),
			ID:        uuid.NewString(),
		},
		AMR:   in.AMR,
		Flags: in.Flags,
	}
	if in.Audience != "" {
		c.Audience = jwt.ClaimStrings{in.Audience}
	}

	c.Account = in.Custom[ClaimAccount]
	c.Email = in.Custom[ClaimEmail]
	c.PhoneNumber = in.Custom[ClaimPhoneNumber]
	c.Device = in.Custom[ClaimDevice]
	return c
}

// Custom claim names.
const (
	ClaimAccount     = "account"
	ClaimEmail       = "email"
	ClaimPhoneNumber = "phone-number"
	ClaimDevice      = "device"
)

// Custom returns the non-empty custom claims as a map keyed by claim name.
func (c *Claims) Custom() map[string]string {
	out := make(map[string]string, 4)
	for k, v := range map[string]string{
		ClaimAccount:     c.Account,
		ClaimEmail:       c.Email,
		ClaimPhoneNumber: c.PhoneNumber,
		ClaimDevice:      c.Device,
	} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}
