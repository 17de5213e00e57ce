package domain

import (
	"time"
)

// Client token defaults.
const (
	DefaultAccessTokenExpiry  = 10 * time.Minute
	DefaultRefreshChainExpiry = 240 * time.Hour
)

// DefaultRefreshTokenExpiry is the sliding refresh window per AMR.
var DefaultRefreshTokenExpiry = map[AMR]time.Duration{
	AMRMFA:       30 * time.Minute,
	AMRPassword:  30 * time.Minute,
	AMRBiometric: 30 * time.Minute,
	AMRNetwork:   72 * time.Hour,
	AMROTP:       10 * time.Minute,
}

// Client is the per-audience configuration.
type Client struct {
	ID                    string     `yaml:"id"`
	RequestSigningEnabled bool       `yaml:"requestSigningEnabled"`
	MessageProfile        string     `yaml:"messageProfile"`
	JWT                   JWTConfig  `yaml:"jwt"`
	OTP                   OtpOptions `yaml:"otp"`
	LoginOtp              LoginOtp   `yaml:"loginOtp"`
	Flags                 Flags      `yaml:"flags"`
}

type JWTConfig struct {
	AccessTokenExpiry  time.Duration         `yaml:"accessTokenExpiry"`
	RefreshTokenExpiry map[AMR]time.Duration `yaml:"refreshTokenExpiry"`
	RefreshChainExpiry time.Duration         `yaml:"refreshChainExpiry"`
}

// LoginOtp configures passwordless login by code.
type LoginOtp struct {
	Expiry                    time.Duration `yaml:"expiry"`
	ResendAfter               time.Duration `yaml:"resendAfter"`
	MaxAllowedOTP             int           `yaml:"maxAllowedOTP"`
	DurationForMaxAllowedOTP  time.Duration `yaml:"durationForMaxAllowedOTP"`
	MaxAttemptForVerification int           `yaml:"maxAttemptForVerification"`
	Reference                 string        `yaml:"reference"`
	SMS                       LoginOtpSMS   `yaml:"sms"`
	Email                     LoginOtpEmail `yaml:"email"`
}

type LoginOtpSMS struct {
	OtpChallengeEnabled bool   `yaml:"otpChallengeEnabled"`
	Template            string `yaml:"template"`
}

type LoginOtpEmail struct {
	OtpChallengeEnabled bool   `yaml:"otpChallengeEnabled"`
	From                string `yaml:"from"`
	Template            string `yaml:"template"`
	Subject             string `yaml:"subject"`
}

// Flags lists per-account feature tags.
type Flags struct {
	Users []FlagUser `yaml:"users"`
}

type FlagUser struct {
	AccountID string    `yaml:"accountId"`
	Tags      []FlagTag `yaml:"tags"`
}

// FlagTag is active while nbf <= now < exp. A zero bound is open.
type FlagTag struct {
	Name string    `yaml:"name"`
	Nbf  time.Time `yaml:"nbf"`
	Exp  time.Time `yaml:"exp"`
}

func (t FlagTag) ActiveAt(now time.Time) bool {
	if !t.Nbf.IsZero() && now.Before(t.Nbf) {
		return false
	}
	if !t.Exp.IsZero() && !now.Before(t.Exp) {
		return false
	}
	return true
}

// ApplyDefaults fills every unset setting.
func (c *Client) ApplyDefaults() {
	if c.JWT.AccessTokenExpiry == 0 {
		c.JWT.AccessTokenExpiry = DefaultAccessTokenExpiry
	}
	if c.JWT.RefreshChainExpiry == 0 {
		c.JWT.RefreshChainExpiry = DefaultRefreshChainExpiry
	}
	if c.JWT.RefreshTokenExpiry == nil {
		c.JWT.RefreshTokenExpiry = make(map[AMR]time.Duration, len(DefaultRefreshTokenExpiry))
	}
	for amr, d := range DefaultRefreshTokenExpiry {
		if _, ok := c.JWT.RefreshTokenExpiry[amr]; !ok {
			c.JWT.RefreshTokenExpiry[amr] = d
		}
	}

	c.OTP = c.OTP.WithDefaults(DefaultOtpOptions())
	if c.MessageProfile == "" {
		c.MessageProfile = c.OTP.Profile
	}

	l := &c.LoginOtp
	if l.Expiry == 0 {
		l.Expiry = 3 * time.Minute
	}
	if l.ResendAfter == 0 {
		l.ResendAfter = time.Minute
	}
	if l.MaxAllowedOTP == 0 {
		l.MaxAllowedOTP = 5
	}
	if l.DurationForMaxAllowedOTP == 0 {
		l.DurationForMaxAllowedOTP = 30 * time.Minute
	}
	if l.MaxAttemptForVerification == 0 {
		l.MaxAttemptForVerification = 5
	}
	if l.Reference == "" {
		l.Reference = "login/"
	}
	if l.SMS.Template == "" {
		l.SMS.Template = "Your login code is " + CodePlaceholder
	}
	if l.Email.Template == "" {
		l.Email.Template = "<p>Your login code is <b>" + CodePlaceholder + "</b></p>"
	}
	if l.Email.Subject == "" {
		l.Email.Subject = "Your login code"
	}
}

// RefreshExpiry is the sliding window for sessions established with amr.
func (c *Client) RefreshExpiry(amr AMR) time.Duration {
	if d, ok := c.JWT.RefreshTokenExpiry[amr]; ok {
		return d
	}
	return DefaultRefreshTokenExpiry[amr]
}

// ActiveFlags returns the account's tags live at now.
func (c *Client) ActiveFlags(accountID string, now time.Time) []string {
	var out []string
	for _, u := range c.Flags.Users {
		if u.AccountID != accountID {
			continue
		}
		for _, t := range u.Tags {
			if t.ActiveAt(now) {
				out = append(out, t.Name)
			}
		}
	}
	return out
}

// LoginOtpOptions are the send options for passwordless login.
func (c *Client) LoginOtpOptions() OtpOptions {
	return OtpOptions{
		Profile:          c.MessageProfile,
		Expiration:       c.LoginOtp.Expiry,
		ResendAfter:      c.LoginOtp.ResendAfter,
		RateLimitCount:   c.LoginOtp.MaxAllowedOTP,
		RateLimitExpiry:  c.LoginOtp.DurationForMaxAllowedOTP,
		VerifyLimitCount: c.LoginOtp.MaxAttemptForVerification,
	}
}

// Clients is the registry, keyed by client id (the token audience).
type Clients map[string]Client

func (cs Clients) Lookup(id string) (Client, bool) {
	c, ok := cs[id]
	return c, ok
}
