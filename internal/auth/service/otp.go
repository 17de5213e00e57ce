package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/cache"
	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/messaging"
	"github.com/aussiebroadwan/warden/internal/auth/metrics"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/idx"
	"github.com/aussiebroadwan/warden/pkg/slogx"
	"github.com/google/uuid"
)

// Channels namespace the rate limit and resend guard, so the same
// reference can be used for SMS and email independently.
const (
	ChannelSms   = "sms"
	ChannelEmail = "email"
)

var otpReferenceNamespace = uuid.MustParse("0f3c2a71-6d8e-4b5a-9c1f-7e2d4a6b8c90")

// otpReferenceKey hashes the caller reference so arbitrary strings make
// safe cache keys.
func otpReferenceKey(channel, reference string) string {
	return uuid.NewSHA1(otpReferenceNamespace, []byte(channel+"."+reference)).String()
}

type OtpEngineConfig struct {
	// Defaults fill any option a request leaves unset.
	Defaults domain.OtpOptions
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

// OtpEngine issues codes and checks them. All counters live in the shared
// cache and are updated atomically there.
type OtpEngine struct {
	cache     cache.Otp
	messenger messaging.Messenger
	defaults  domain.OtpOptions
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewOtpEngine(c cache.Otp, m messaging.Messenger, cfg OtpEngineConfig) *OtpEngine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &OtpEngine{
		cache:     c,
		messenger: m,
		defaults:  cfg.Defaults.WithDefaults(domain.DefaultOtpOptions()),
		metrics:   cfg.Metrics,
		now:       cfg.Now,
	}
}

func (e *OtpEngine) options(o domain.OtpOptions) (domain.OtpOptions, error) {
	o = o.WithDefaults(e.defaults)
	if err := o.Validate(); err != nil {
		return domain.OtpOptions{}, fmt.Errorf("%w: %w", ErrInvalidOtpOptions, err)
	}
	return o, nil
}

// SendSms issues a code to a phone number.
func (e *OtpEngine) SendSms(ctx context.Context, req domain.SmsOtpRequest) (domain.SendOtpOutcome, error) {
	if err := req.Validate(); err != nil {
		return domain.SendOtpOutcome{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	opts, err := e.options(req.Options)
	if err != nil {
		return domain.SendOtpOutcome{}, err
	}
	if req.Priority == "" {
		req.Priority = domain.PriorityHigh
	}

	return e.send(ctx, ChannelSms, req.Reference, opts, req.State, func(code string) error {
		return e.messenger.SendSms(ctx, messaging.SmsMessage{
			ID:          idx.New().String(),
			Profile:     opts.Profile,
			Priority:    req.Priority,
			PhoneNumber: req.PhoneNumber,
			Message:     withCode(req.Message, code),
		})
	})
}

// SendEmail issues a code to an email address.
func (e *OtpEngine) SendEmail(ctx context.Context, req domain.EmailOtpRequest) (domain.SendOtpOutcome, error) {
	if err := req.Validate(); err != nil {
		return domain.SendOtpOutcome{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	opts, err := e.options(req.Options)
	if err != nil {
		return domain.SendOtpOutcome{}, err
	}
	if req.Priority == "" {
		req.Priority = domain.PriorityHigh
	}

	return e.send(ctx, ChannelEmail, req.Reference, opts, req.State, func(code string) error {
		return e.messenger.SendEmail(ctx, messaging.EmailMessage{
			ID:       idx.New().String(),
			Profile:  opts.Profile,
			Priority: req.Priority,
			From:     req.From,
			To:       []string{req.To},
			Subject:  withCode(req.Subject, code),
			Body:     withCode(req.Body, code),
		})
	})
}

func (e *OtpEngine) send(
	ctx context.Context,
	channel, reference string,
	opts domain.OtpOptions,
	state []byte,
	deliver func(code string) error,
) (domain.SendOtpOutcome, error) {
	l := slogx.FromContext(ctx).With(slog.String("channel", channel), slog.String("reference", reference))
	now := e.now()
	ref := otpReferenceKey(channel, reference)

	wait, err := e.cache.ResendGuard(ctx, ref, now, opts.ResendAfter)
	if err != nil {
		return domain.SendOtpOutcome{}, fmt.Errorf("otp resend guard: %w", err)
	}
	if wait > 0 {
		l.Info("otp send too early", slog.Duration("retry_after", wait))
		return e.sent(channel, domain.SendOtpOutcome{Result: domain.SendOtpBlockedEarlyRequest, RetryAfter: wait}), nil
	}

	count, left, err := e.cache.IncrRateLimit(ctx, ref, opts.RateLimitExpiry)
	if err != nil {
		return domain.SendOtpOutcome{}, fmt.Errorf("otp rate limit: %w", err)
	}
	if count > int64(opts.RateLimitCount) {
		l.Warn("otp send rate limited", slog.Int64("count", count), slog.Duration("retry_after", left))
		return e.sent(channel, domain.SendOtpOutcome{Result: domain.SendOtpBlockedTooManyRequests, RetryAfter: left}), nil
	}

	code, err := cryptox.GenerateNumericCode(cryptox.OTPDigits)
	if err != nil {
		return domain.SendOtpOutcome{}, err
	}
	token := uuid.NewString()

	st := domain.OtpState{Code: code, State: state, ExpireAt: now.Add(opts.Expiration)}
	if err := e.cache.SaveOtp(ctx, token, st, opts.VerifyLimitCount+1, opts.Expiration); err != nil {
		return domain.SendOtpOutcome{}, fmt.Errorf("otp save: %w", err)
	}

	if err := deliver(code); err != nil {
		return domain.SendOtpOutcome{}, fmt.Errorf("otp delivery: %w", err)
	}

	l.Info("otp sent", slog.String("profile", opts.Profile))
	return e.sent(channel, domain.SendOtpOutcome{Result: domain.SendOtpOk, Token: token, RetryAfter: opts.ResendAfter}), nil
}

func (e *OtpEngine) sent(channel string, out domain.SendOtpOutcome) domain.SendOtpOutcome {
	e.metrics.OtpSent(channel, string(out.Result))
	return out
}

// Verify checks code against token. Each call spends one attempt, and the
// last attempt reports Blocked whatever the code.
func (e *OtpEngine) Verify(ctx context.Context, token, code string) (domain.VerifyOtpOutcome, error) {
	out, err := e.verify(ctx, token, code)
	if err != nil {
		return out, err
	}
	e.metrics.OtpVerified(string(out.Result))
	slogx.FromContext(ctx).Info("otp verified", slog.String("result", string(out.Result)))
	return out, nil
}

func (e *OtpEngine) verify(ctx context.Context, token, code string) (domain.VerifyOtpOutcome, error) {
	if token == "" {
		return domain.VerifyOtpOutcome{Result: domain.VerifyOtpExpired}, nil
	}

	st, err := e.cache.GetOtp(ctx, token)
	switch {
	case errors.Is(err, cache.ErrMiss):
		return domain.VerifyOtpOutcome{Result: domain.VerifyOtpExpired}, nil
	case err != nil:
		return domain.VerifyOtpOutcome{}, fmt.Errorf("otp load: %w", err)
	}
	if st.ExpireAt.Before(e.now()) {
		return domain.VerifyOtpOutcome{Result: domain.VerifyOtpExpired}, nil
	}

	left, err := e.cache.DecrAttempts(ctx, token)
	if err != nil {
		return domain.VerifyOtpOutcome{}, fmt.Errorf("otp attempts: %w", err)
	}
	switch {
	case left == 0:
		return domain.VerifyOtpOutcome{Result: domain.VerifyOtpBlocked}, nil
	case left < 0:
		return domain.VerifyOtpOutcome{Result: domain.VerifyOtpExpired}, nil
	}

	if !cryptox.EqualConstantTime(st.Code, code) {
		return domain.VerifyOtpOutcome{Result: domain.VerifyOtpInvalid, Remaining: int(left)}, nil
	}
	return domain.VerifyOtpOutcome{Result: domain.VerifyOtpValid, State: st.State}, nil
}

// Discard drops a token so a verified code can't be replayed. It reports
// false when another caller discarded the token first; only the caller that
// gets true may act on the code.
func (e *OtpEngine) Discard(ctx context.Context, token string) (bool, error) {
	claimed, err := e.cache.DeleteOtp(ctx, token)
	if err != nil {
		return false, fmt.Errorf("otp discard: %w", err)
	}
	return claimed, nil
}

func withCode(template, code string) string {
	return strings.ReplaceAll(template, domain.CodePlaceholder, code)
}
