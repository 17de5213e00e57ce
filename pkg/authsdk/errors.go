package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Error codes returned in the "error" field.
const (
	ErrorCodeInvalidRequest         = "invalid-request"
	ErrorCodeInvalidToken           = "invalid-token"
	ErrorCodeExpiredToken           = "expired-token"
	ErrorCodeAccountInactive        = "account-inactive-status"
	ErrorCodeInvalidClient          = "invalid-client"
	ErrorCodeInvalidOtpOptions      = "invalid-otp-options"
	ErrorCodeOtpChallengeDisabled   = "otp-challenge-disabled"
	ErrorCodeTooEarlyOtpRequests    = "too-early-otp-requests"
	ErrorCodeTooManyOtpRequests     = "too-many-otp-requests"
	ErrorCodeInvalidOtp             = "invalid-otp"
	ErrorCodeExpiredOtp             = "expired-otp"
	ErrorCodeBlockedOtpVerification = "blocked-otp-verification"
	ErrorCodeRateLimitExceeded      = "rate-limit-exceeded"
	ErrorCodeUnauthorized           = "unauthorized"
	ErrorCodeServerError            = "server_error"

	// ErrorCodeNotReady is set client-side for a degraded /readyz.
	ErrorCodeNotReady = "not-ready"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	// StatusCode is the HTTP status code of the response
	StatusCode int

	// Code is the error code (see the ErrorCode constants)
	Code string

	// Description is a human-readable description of the error
	Description string

	// RetryAfter is set on OTP send blocks and rate limits
	RetryAfter time.Duration

	// RemainingAttempts is set on a wrong OTP
	RemainingAttempts *int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%s (HTTP %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches on Code, so errors.Is(err, authsdk.ErrExpiredToken) works for
// any response carrying that code.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrInvalidRequest         = &APIError{Code: ErrorCodeInvalidRequest}
	ErrInvalidToken           = &APIError{Code: ErrorCodeInvalidToken}
	ErrExpiredToken           = &APIError{Code: ErrorCodeExpiredToken}
	ErrAccountInactive        = &APIError{Code: ErrorCodeAccountInactive}
	ErrInvalidClient          = &APIError{Code: ErrorCodeInvalidClient}
	ErrInvalidOtpOptions      = &APIError{Code: ErrorCodeInvalidOtpOptions}
	ErrOtpChallengeDisabled   = &APIError{Code: ErrorCodeOtpChallengeDisabled}
	ErrTooEarlyOtpRequests    = &APIError{Code: ErrorCodeTooEarlyOtpRequests}
	ErrTooManyOtpRequests     = &APIError{Code: ErrorCodeTooManyOtpRequests}
	ErrInvalidOtp             = &APIError{Code: ErrorCodeInvalidOtp}
	ErrExpiredOtp             = &APIError{Code: ErrorCodeExpiredOtp}
	ErrBlockedOtpVerification = &APIError{Code: ErrorCodeBlockedOtpVerification}
	ErrRateLimitExceeded      = &APIError{Code: ErrorCodeRateLimitExceeded}
	ErrServerError            = &APIError{Code: ErrorCodeServerError}
	ErrNotReady               = &APIError{Code: ErrorCodeNotReady}
)

// parseErrorResponse turns a non-2xx response into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	// Success responses
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:        resp.StatusCode,
			Code:              errResp.Error,
			Description:       errResp.ErrorDescription,
			RetryAfter:        time.Duration(errResp.RetryAfter) * time.Second,
			RemainingAttempts: errResp.RemainingAttempts,
		}
	}

	// Fallback: create generic error from status code
	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
