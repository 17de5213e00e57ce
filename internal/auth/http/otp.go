package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
)

// OtpHandler exposes the OTP engine to other services. Outcomes are
// returned as 200 results; only malformed requests and faults are errors.
type OtpHandler struct {
	Otp    *service.OtpEngine
	Tokens *service.TokenIssuer
}

// HandleSms serves POST /v1/otp/sms.
func (h *OtpHandler) HandleSms(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SmsOtpRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeInvalidRequest(w, "malformed JSON body")
		return
	}

	opts, priority, err := h.sendOptions(req.ClientID, req.Options, req.Priority)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out, err := h.Otp.SendSms(r.Context(), domain.SmsOtpRequest{
		Reference:   req.Reference,
		PhoneNumber: req.PhoneNumber,
		Message:     req.Message,
		Priority:    priority,
		State:       state(req.State),
		Options:     opts,
	})
	writeSendResult(w, r, out, err)
}

// HandleEmail serves POST /v1/otp/email.
func (h *OtpHandler) HandleEmail(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailOtpRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeInvalidRequest(w, "malformed JSON body")
		return
	}

	opts, priority, err := h.sendOptions(req.ClientID, req.Options, req.Priority)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out, err := h.Otp.SendEmail(r.Context(), domain.EmailOtpRequest{
		Reference: req.Reference,
		From:      req.From,
		To:        req.To,
		Subject:   req.Subject,
		Body:      req.Body,
		Priority:  priority,
		State:     state(req.State),
		Options:   opts,
	})
	writeSendResult(w, r, out, err)
}

// HandleVerify serves POST /v1/otp/verify.
func (h *OtpHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req authsdk.OtpVerifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeInvalidRequest(w, "malformed JSON body")
		return
	}
	if req.Token == "" {
		writeInvalidRequest(w, "token is required")
		return
	}

	out, err := h.Otp.Verify(r.Context(), req.Token, req.Otp)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.OtpVerifyResult{
		Result:            string(out.Result),
		State:             string(out.State),
		RemainingAttempts: out.Remaining,
	})
}

// sendOptions layers the request's options over the client's OTP
// defaults. Without a client id the engine defaults apply.
func (h *OtpHandler) sendOptions(clientID string, o authsdk.OtpOptions, priority string) (domain.OtpOptions, domain.Priority, error) {
	opts := domain.OtpOptions{
		Profile:          o.Profile,
		Expiration:       time.Duration(o.Expiration) * time.Second,
		ResendAfter:      time.Duration(o.ResendAfter) * time.Second,
		RateLimitCount:   o.RateLimitCount,
		RateLimitExpiry:  time.Duration(o.RateLimitExpiry) * time.Second,
		VerifyLimitCount: o.VerifyLimitCount,
	}

	if clientID != "" {
		client, ok := h.Tokens.Clients.Lookup(clientID)
		if !ok {
			return domain.OtpOptions{}, "", service.ErrInvalidClient
		}
		base := client.OTP
		base.Profile = client.MessageProfile
		opts = opts.WithDefaults(base)
	}

	switch p := domain.Priority(priority); p {
	case "", domain.PriorityHigh, domain.PriorityBulk:
		return opts, p, nil
	default:
		return domain.OtpOptions{}, "", fmt.Errorf("%w: unknown priority %q", service.ErrInvalidRequest, priority)
	}
}

func writeSendResult(w http.ResponseWriter, r *http.Request, out domain.SendOtpOutcome, err error) {
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.OtpSendResult{
		Result:     string(out.Result),
		Token:      out.Token,
		RetryAfter: seconds(out.RetryAfter),
	})
}

// state treats an empty string as no state.
func state(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}
