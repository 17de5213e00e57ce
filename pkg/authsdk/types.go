package authsdk

import (
	"github.com/aussiebroadwan/warden/pkg/jwtx"
)

// ============================================================================
// Error Types
// ============================================================================

// ErrorResponse is the JSON error envelope every endpoint uses.
type ErrorResponse struct {
	// Error is the error code (e.g., "invalid-token", "too-many-otp-requests")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description,omitempty"`

	// RetryAfter is the number of seconds to wait before retrying (OTP sends)
	RetryAfter int `json:"retry_after,omitempty"`

	// RemainingAttempts is set when an OTP was wrong but may be retried
	RemainingAttempts *int `json:"remaining_attempts,omitempty"`
}

// ============================================================================
// Token Types
// ============================================================================

// TokenResponse is returned by refresh, login and session issuance.
type TokenResponse struct {
	// AccessToken is the RS256 JWT used to authenticate API requests
	AccessToken string `json:"access_token"`

	// RefreshToken is the opaque, single-use token bound to the device
	RefreshToken string `json:"refresh_token"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in"`
}

// IntrospectionResponse describes a token. When a token is inactive only
// Active is set.
type IntrospectionResponse struct {
	Active bool `json:"active"`

	Sub         string   `json:"sub,omitempty"`
	SubjectKind string   `json:"subject_kind,omitempty"`
	ClientID    string   `json:"client_id,omitempty"`
	AMR         []string `json:"amr,omitempty"`
	Iss         string   `json:"iss,omitempty"`
	Exp         int64    `json:"exp,omitempty"`
	Iat         int64    `json:"iat,omitempty"`
	Jti         string   `json:"jti,omitempty"`

	Account     string   `json:"account,omitempty"`
	Email       string   `json:"email,omitempty"`
	PhoneNumber string   `json:"phone_number,omitempty"`
	Device      string   `json:"device,omitempty"`
	Flags       []string `json:"flags,omitempty"`
}

// ============================================================================
// Login OTP Types
// ============================================================================

type LoginOtpSmsRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type LoginOtpEmailRequest struct {
	Email string `json:"email"`
}

// OtpSentResponse carries the token a code must be verified against.
type OtpSentResponse struct {
	Token string `json:"token"`

	// RetryAfter is the number of seconds before another code may be sent
	RetryAfter int `json:"retry_after"`
}

type OtpVerifyRequest struct {
	Token string `json:"token"`
	Otp   string `json:"otp"`
}

// ============================================================================
// Internal Types (service token required)
// ============================================================================

// SessionRequest starts a session for a subject the caller has already
// authenticated. Subject is "account|<id>|<email>", "phone-number|<phone>"
// or "email|<email>".
type SessionRequest struct {
	Subject  string `json:"subject"`
	DeviceID string `json:"device_id"`
	AMR      string `json:"amr"`
	ClientID string `json:"client_id"`
}

type RevokeSessionRequest struct {
	IdentityID string `json:"identity_id"`
	DeviceID   string `json:"device_id"`
	MustExist  bool   `json:"must_exist"`
}

type IdentityStatusRequest struct {
	Status string `json:"status"`

	// UpdatedAt orders concurrent updates; the server clock when omitted
	UpdatedAt int64 `json:"updated_at,omitempty"` // unix seconds
}

// OtpOptions override the client's OTP defaults. Durations are seconds;
// zero means default.
type OtpOptions struct {
	Profile          string `json:"profile,omitempty"`
	Expiration       int    `json:"expiration,omitempty"`
	ResendAfter      int    `json:"resend_after,omitempty"`
	RateLimitCount   int    `json:"rate_limit_count,omitempty"`
	RateLimitExpiry  int    `json:"rate_limit_expiry,omitempty"`
	VerifyLimitCount int    `json:"verify_limit_count,omitempty"`
}

type SmsOtpRequest struct {
	ClientID    string     `json:"client_id"`
	Reference   string     `json:"reference"`
	PhoneNumber string     `json:"phone_number"`
	Message     string     `json:"message"`
	Priority    string     `json:"priority,omitempty"`
	State       string     `json:"state,omitempty"`
	Options     OtpOptions `json:"options"`
}

type EmailOtpRequest struct {
	ClientID  string     `json:"client_id"`
	Reference string     `json:"reference"`
	From      string     `json:"from"`
	To        string     `json:"to"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	Priority  string     `json:"priority,omitempty"`
	State     string     `json:"state,omitempty"`
	Options   OtpOptions `json:"options"`
}

// OtpSendResult is the outcome of an internal send. Token is only set
// when Result is "ok".
type OtpSendResult struct {
	Result     string `json:"result"`
	Token      string `json:"token,omitempty"`
	RetryAfter int    `json:"retry_after"`
}

// OtpVerifyResult is the outcome of an internal verify. State is only set
// when Result is "valid".
type OtpVerifyResult struct {
	Result            string `json:"result"`
	State             string `json:"state,omitempty"`
	RemainingAttempts int    `json:"remaining_attempts,omitempty"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is returned by /livez and /readyz (readyz adds Checks).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports each dependency /readyz looks at.
type HealthChecks struct {
	Database string `json:"database"`
	Cache    string `json:"cache"`
	Signer   string `json:"signer"`
}

// ============================================================================
// JWKS Types
// ============================================================================

// JWKSResponse contains the JSON Web Key Set.
// This is returned from the GET /.well-known/jwks.json endpoint and contains
// public keys used to verify JWT signatures.
type JWKSResponse jwtx.JWKS
