package service

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/warden/pkg/jwtx"
)

var (
	ErrInvalidToken         = errors.New("invalid-token")
	ErrExpiredToken         = errors.New("expired-token")
	ErrAccountInactive      = errors.New("account-inactive-status")
	ErrInvalidClient        = errors.New("invalid-client")
	ErrInvalidOtpOptions    = errors.New("invalid-otp-options")
	ErrInvalidRequest       = errors.New("invalid-request")
	ErrOtpChallengeDisabled = errors.New("otp-challenge-disabled")
)

// tokenError folds jwtx token faults into the service sentinels and lets
// anything else (a key store outage) through untouched.
func tokenError(err error) error {
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return fmt.Errorf("%w: %w", ErrExpiredToken, err)
	case errors.Is(err, ErrInvalidToken):
		return err
	case errors.Is(err, jwtx.ErrInvalid):
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	default:
		return err
	}
}
