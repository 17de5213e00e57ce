package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// CodePlaceholder is replaced with the generated code in message templates.
const CodePlaceholder = "{code}"

// OTP option defaults.
const (
	DefaultOtpProfile          = "unspecified"
	DefaultOtpExpiration       = 60 * time.Second
	DefaultOtpResendAfter      = 30 * time.Second
	DefaultOtpRateLimitCount   = 5
	DefaultOtpRateLimitExpiry  = 1800 * time.Second
	DefaultOtpVerifyLimitCount = 5
)

var profilePattern = regexp.MustCompile(`^[a-z]{2,15}$`)

// OtpOptions tune one send. Zero fields take the defaults, see WithDefaults.
type OtpOptions struct {
	Profile          string        `yaml:"profile"`
	Expiration       time.Duration `yaml:"expiration"`
	ResendAfter      time.Duration `yaml:"resendAfter"`
	RateLimitCount   int           `yaml:"rateLimitCount"`
	RateLimitExpiry  time.Duration `yaml:"rateLimitExpiry"`
	VerifyLimitCount int           `yaml:"verifyLimitCount"`
}

// DefaultOtpOptions returns the options used when nothing is configured.
func DefaultOtpOptions() OtpOptions {
	return OtpOptions{
		Profile:          DefaultOtpProfile,
		Expiration:       DefaultOtpExpiration,
		ResendAfter:      DefaultOtpResendAfter,
		RateLimitCount:   DefaultOtpRateLimitCount,
		RateLimitExpiry:  DefaultOtpRateLimitExpiry,
		VerifyLimitCount: DefaultOtpVerifyLimitCount,
	}
}

// WithDefaults fills zero fields from base. Negative values are kept so
// Validate can reject them.
func (o OtpOptions) WithDefaults(base OtpOptions) OtpOptions {
	if o.Profile == "" {
		o.Profile = base.Profile
	}
	if o.Expiration == 0 {
		o.Expiration = base.Expiration
	}
	if o.ResendAfter == 0 {
		o.ResendAfter = base.ResendAfter
	}
	if o.RateLimitCount == 0 {
		o.RateLimitCount = base.RateLimitCount
	}
	if o.RateLimitExpiry == 0 {
		o.RateLimitExpiry = base.RateLimitExpiry
	}
	if o.VerifyLimitCount == 0 {
		o.VerifyLimitCount = base.VerifyLimitCount
	}
	return o
}

// Validate checks the profile name and that every limit is positive.
// minOtpWindow is the finest duration the counters can hold.
const minOtpWindow = time.Millisecond

func (o OtpOptions) Validate() error {
	var errs []error
	if !profilePattern.MatchString(o.Profile) {
		errs = append(errs, fmt.Errorf("profile %q must match %s", o.Profile, profilePattern))
	}
	if o.Expiration < minOtpWindow {
		errs = append(errs, fmt.Errorf("expiration must be at least %s", minOtpWindow))
	}
	if o.ResendAfter < minOtpWindow {
		errs = append(errs, fmt.Errorf("resendAfter must be at least %s", minOtpWindow))
	}
	if o.RateLimitCount <= 0 {
		errs = append(errs, errors.New("rateLimitCount must be positive"))
	}
	if o.RateLimitExpiry < minOtpWindow {
		errs = append(errs, fmt.Errorf("rateLimitExpiry must be at least %s", minOtpWindow))
	}
	if o.VerifyLimitCount <= 0 {
		errs = append(errs, errors.New("verifyLimitCount must be positive"))
	}
	return errors.Join(errs...)
}

// Priority of an outbound message.
type Priority string

const (
	PriorityHigh Priority = "high"
	PriorityBulk Priority = "bulk"
)

// SmsOtpRequest asks for a code to be sent by SMS. Reference keys the
// rate limit and resend guard, e.g. "login/+6587304661".
type SmsOtpRequest struct {
	Reference   string
	PhoneNumber string // E.164, leading "+"
	Message     string // must contain {code}
	Priority    Priority
	State       []byte // echoed back on a valid verify
	Options     OtpOptions
}

func (r SmsOtpRequest) Validate() error {
	switch {
	case r.Reference == "":
		return errors.New("reference is required")
	case len(r.PhoneNumber) < 2 || r.PhoneNumber[0] != '+':
		return errors.New("phone number must start with '+'")
	case !containsCode(r.Message):
		return errors.New("message must contain " + CodePlaceholder)
	}
	return nil
}

// EmailOtpRequest asks for a code to be sent by email.
type EmailOtpRequest struct {
	Reference string
	From      string
	To        string
	Subject   string
	Body      string // must contain {code}
	Priority  Priority
	State     []byte
	Options   OtpOptions
}

func (r EmailOtpRequest) Validate() error {
	switch {
	case r.Reference == "":
		return errors.New("reference is required")
	case r.From == "":
		return errors.New("from is required")
	case r.To == "":
		return errors.New("to is required")
	case r.Subject == "":
		return errors.New("subject is required")
	case !containsCode(r.Body):
		return errors.New("body must contain " + CodePlaceholder)
	}
	return nil
}

func containsCode(s string) bool {
	return strings.Contains(s, CodePlaceholder)
}

// OtpState is what the cache holds per issued token.
type OtpState struct {
	Code     string    `json:"otp"`
	State    []byte    `json:"state,omitempty"`
	ExpireAt time.Time `json:"expireAt"`
}

type SendOtpResult string

const (
	SendOtpOk                     SendOtpResult = "ok"
	SendOtpBlockedEarlyRequest    SendOtpResult = "blocked-early-request"
	SendOtpBlockedTooManyRequests SendOtpResult = "blocked-too-many-requests"
)

// SendOtpOutcome is the result of a send. Token is empty unless Result is
// SendOtpOk.
type SendOtpOutcome struct {
	Result     SendOtpResult
	Token      string
	RetryAfter time.Duration
}

type VerifyOtpResult string

const (
	VerifyOtpValid   VerifyOtpResult = "valid"
	VerifyOtpInvalid VerifyOtpResult = "invalid"
	VerifyOtpExpired VerifyOtpResult = "expired"
	VerifyOtpBlocked VerifyOtpResult = "blocked"
)

// VerifyOtpOutcome is the result of a verify. State is only set when
// valid, Remaining only when invalid.
type VerifyOtpOutcome struct {
	Result    VerifyOtpResult
	State     []byte
	Remaining int
}
