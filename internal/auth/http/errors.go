package http

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// writeServiceError maps a service error to its status and code. Anything
// that isn't a service sentinel is an infrastructure fault and becomes a
// 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrorBody{
			Error:       authsdk.ErrorCodeInvalidRequest,
			Description: err.Error(),
		})
	case errors.Is(err, service.ErrInvalidOtpOptions):
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrorBody{
			Error:       authsdk.ErrorCodeInvalidOtpOptions,
			Description: err.Error(),
		})
	case errors.Is(err, service.ErrInvalidClient):
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrorBody{Error: authsdk.ErrorCodeInvalidClient})
	case errors.Is(err, service.ErrExpiredToken):
		httpx.WriteError(w, http.StatusUnauthorized, httpx.ErrorBody{Error: authsdk.ErrorCodeExpiredToken})
	case errors.Is(err, service.ErrInvalidToken):
		httpx.WriteError(w, http.StatusUnauthorized, httpx.ErrorBody{Error: authsdk.ErrorCodeInvalidToken})
	case errors.Is(err, service.ErrAccountInactive):
		httpx.WriteError(w, http.StatusForbidden, httpx.ErrorBody{Error: authsdk.ErrorCodeAccountInactive})
	case errors.Is(err, service.ErrOtpChallengeDisabled):
		httpx.WriteError(w, http.StatusForbidden, httpx.ErrorBody{Error: authsdk.ErrorCodeOtpChallengeDisabled})
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrorBody{Error: authsdk.ErrorCodeServerError})
	}
}

func writeInvalidRequest(w http.ResponseWriter, desc string) {
	httpx.WriteError(w, http.StatusBadRequest, httpx.ErrorBody{
		Error:       authsdk.ErrorCodeInvalidRequest,
		Description: desc,
	})
}

// writeBlockedSend reports a send the resend guard or rate limit refused.
func writeBlockedSend(w http.ResponseWriter, out domain.SendOtpOutcome) {
	code := authsdk.ErrorCodeTooManyOtpRequests
	if out.Result == domain.SendOtpBlockedEarlyRequest {
		code = authsdk.ErrorCodeTooEarlyOtpRequests
	}
	httpx.WriteError(w, http.StatusTooManyRequests, httpx.ErrorBody{
		Error:      code,
		RetryAfter: seconds(out.RetryAfter),
	})
}

// writeFailedVerify reports any verify outcome other than valid.
func writeFailedVerify(w http.ResponseWriter, out domain.VerifyOtpOutcome) {
	switch out.Result {
	case domain.VerifyOtpInvalid:
		remaining := out.Remaining
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrorBody{
			Error:     authsdk.ErrorCodeInvalidOtp,
			Remaining: &remaining,
		})
	case domain.VerifyOtpBlocked:
		httpx.WriteError(w, http.StatusForbidden, httpx.ErrorBody{Error: authsdk.ErrorCodeBlockedOtpVerification})
	default:
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrorBody{Error: authsdk.ErrorCodeExpiredOtp})
	}
}

// seconds rounds up so a client never retries early.
func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func tokenResponse(pair domain.TokenPair) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int(pair.ExpiresIn),
	}
}
