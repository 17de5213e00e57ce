package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
)

// SessionsHandler lets trusted services start and end sessions for
// subjects they authenticated themselves (password, biometric, ...).
type SessionsHandler struct {
	Tokens *service.TokenIssuer
}

// HandleIssue serves POST /v1/sessions.
func (h *SessionsHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SessionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeInvalidRequest(w, "malformed JSON body")
		return
	}

	subject, err := domain.ParseSubject(req.Subject)
	if err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	pair, err := h.Tokens.IssueSession(r.Context(),
		subject,
		strings.TrimSpace(req.DeviceID),
		domain.AMR(req.AMR),
		req.ClientID,
	)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}

// HandleRevoke serves DELETE /v1/sessions.
func (h *SessionsHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RevokeSessionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeInvalidRequest(w, "malformed JSON body")
		return
	}
	if req.IdentityID == "" || req.DeviceID == "" {
		writeInvalidRequest(w, "identity_id and device_id are required")
		return
	}

	if err := h.Tokens.RevokeSession(r.Context(), req.IdentityID, req.DeviceID, req.MustExist); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
