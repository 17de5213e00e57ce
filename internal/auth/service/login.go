package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// loginState rides along with a login code and comes back on verify.
type loginState struct {
	Client  string `json:"client"`
	Subject string `json:"subject"`
}

// LoginOtpService is passwordless login: a code sent to a phone number or
// email address that, once verified, starts a session for that recipient.
type LoginOtpService struct {
	Otp    *OtpEngine
	Tokens *TokenIssuer
}

func NewLoginOtpService(otp *OtpEngine, tokens *TokenIssuer) *LoginOtpService {
	return &LoginOtpService{Otp: otp, Tokens: tokens}
}

// LoginResult is a verify outcome plus, when Valid, the new session.
type LoginResult struct {
	Outcome domain.VerifyOtpOutcome
	Session *domain.TokenPair
}

func (s *LoginOtpService) SendSms(ctx context.Context, clientID, phoneNumber string) (domain.SendOtpOutcome, error) {
	client, err := s.Tokens.client(clientID)
	if err != nil {
		return domain.SendOtpOutcome{}, err
	}
	if !client.LoginOtp.SMS.OtpChallengeEnabled {
		return domain.SendOtpOutcome{}, fmt.Errorf("%w: sms", ErrOtpChallengeDisabled)
	}

	state, err := json.Marshal(loginState{Client: client.ID, Subject: domain.PhoneNumberSubject(phoneNumber).String()})
	if err != nil {
		return domain.SendOtpOutcome{}, err
	}

	return s.Otp.SendSms(ctx, domain.SmsOtpRequest{
		Reference:   client.LoginOtp.Reference + phoneNumber,
		PhoneNumber: phoneNumber,
		Message:     client.LoginOtp.SMS.Template,
		Priority:    domain.PriorityHigh,
		State:       state,
		Options:     client.LoginOtpOptions(),
	})
}

func (s *LoginOtpService) SendEmail(ctx context.Context, clientID, email string) (domain.SendOtpOutcome, error) {
	client, err := s.Tokens.client(clientID)
	if err != nil {
		return domain.SendOtpOutcome{}, err
	}
	if !client.LoginOtp.Email.OtpChallengeEnabled {
		return domain.SendOtpOutcome{}, fmt.Errorf("%w: email", ErrOtpChallengeDisabled)
	}

	state, err := json.Marshal(loginState{Client: client.ID, Subject: domain.EmailSubject(email).String()})
	if err != nil {
		return domain.SendOtpOutcome{}, err
	}

	return s.Otp.SendEmail(ctx, domain.EmailOtpRequest{
		Reference: client.LoginOtp.Reference + email,
		From:      client.LoginOtp.Email.From,
		To:        email,
		Subject:   client.LoginOtp.Email.Subject,
		Body:      client.LoginOtp.Email.Template,
		Priority:  domain.PriorityHigh,
		State:     state,
		Options:   client.LoginOtpOptions(),
	})
}

// Verify checks a login code and, when it is valid, issues a session on
// deviceID. A code that logged someone in is discarded.
func (s *LoginOtpService) Verify(ctx context.Context, clientID, deviceID, token, code string) (LoginResult, error) {
	if _, err := s.Tokens.client(clientID); err != nil {
		return LoginResult{}, err
	}
	if deviceID == "" {
		return LoginResult{}, fmt.Errorf("%w: device id is required", ErrInvalidRequest)
	}

	out, err := s.Otp.Verify(ctx, token, code)
	if err != nil {
		return LoginResult{}, err
	}
	if out.Result != domain.VerifyOtpValid {
		return LoginResult{Outcome: out}, nil
	}

	var st loginState
	if err := json.Unmarshal(out.State, &st); err != nil || st.Client == "" || st.Subject == "" {
		return LoginResult{}, fmt.Errorf("%w: not a login code", ErrInvalidToken)
	}
	if st.Client != clientID {
		return LoginResult{}, fmt.Errorf("%w: code issued to another client", ErrInvalidClient)
	}
	subject, err := domain.ParseSubject(st.Subject)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claimed, err := s.Otp.Discard(ctx, token)
	if err != nil {
		return LoginResult{}, err
	}
	if !claimed {
		// A concurrent verify of the same code got there first.
		return LoginResult{Outcome: domain.VerifyOtpOutcome{Result: domain.VerifyOtpExpired}}, nil
	}

	pair, err := s.Tokens.IssueSession(ctx, subject, deviceID, domain.AMROTP, clientID)
	if err != nil {
		return LoginResult{}, err
	}

	slogx.FromContext(ctx).Info("otp login", slog.String("client_id", clientID), slog.String("kind", string(subject.Kind)))
	return LoginResult{Outcome: domain.VerifyOtpOutcome{Result: domain.VerifyOtpValid}, Session: &pair}, nil
}
