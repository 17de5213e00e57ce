package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
)

// IdentitiesHandler serves PUT /v1/identities/{id}/status, through which
// the account service keeps the local status projection current.
type IdentitiesHandler struct {
	Tokens *service.TokenIssuer
}

func (h *IdentitiesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.IdentityStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeInvalidRequest(w, "malformed JSON body")
		return
	}

	status, err := domain.ParseIdentityStatus(req.Status)
	if err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	var at time.Time
	if req.UpdatedAt > 0 {
		at = time.Unix(req.UpdatedAt, 0)
	}

	if err := h.Tokens.UpdateIdentityStatus(r.Context(), r.PathValue("id"), status, at); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
