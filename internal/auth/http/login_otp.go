package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
)

// LoginOtpHandler serves passwordless login. Blocked sends and failed
// verifies are reported as errors so a device can treat them like any
// other rejected login.
type LoginOtpHandler struct {
	Login *service.LoginOtpService
}

// HandleSms serves POST /v1/login/otp/sms.
func (h *LoginOtpHandler) HandleSms(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginOtpSmsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeInvalidRequest(w, "malformed JSON body")
		return
	}

	out, err := h.Login.SendSms(r.Context(), clientID(r), strings.TrimSpace(req.PhoneNumber))
	h.writeSend(w, r, out, err)
}

// HandleEmail serves POST /v1/login/otp/email.
func (h *LoginOtpHandler) HandleEmail(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginOtpEmailRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeInvalidRequest(w, "malformed JSON body")
		return
	}

	out, err := h.Login.SendEmail(r.Context(), clientID(r), strings.TrimSpace(req.Email))
	h.writeSend(w, r, out, err)
}

func (h *LoginOtpHandler) writeSend(w http.ResponseWriter, r *http.Request, out domain.SendOtpOutcome, err error) {
	switch {
	case err != nil:
		writeServiceError(w, r, err)
	case out.Result != domain.SendOtpOk:
		writeBlockedSend(w, out)
	default:
		httpx.WriteJSON(w, http.StatusOK, authsdk.OtpSentResponse{
			Token:      out.Token,
			RetryAfter: seconds(out.RetryAfter),
		})
	}
}

// HandleVerify serves POST /v1/login/otp/verify and returns a session.
func (h *LoginOtpHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req authsdk.OtpVerifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeInvalidRequest(w, "malformed JSON body")
		return
	}
	if req.Token == "" || req.Otp == "" {
		writeInvalidRequest(w, "token and otp are required")
		return
	}

	res, err := h.Login.Verify(r.Context(), clientID(r), deviceID(r), req.Token, req.Otp)
	switch {
	case err != nil:
		writeServiceError(w, r, err)
	case res.Session == nil:
		writeFailedVerify(w, res.Outcome)
	default:
		httpx.WriteJSON(w, http.StatusOK, tokenResponse(*res.Session))
	}
}

func clientID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(authsdk.HeaderClientID))
}

func deviceID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(authsdk.HeaderDeviceID))
}
