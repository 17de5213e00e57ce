package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/pkg/httpx"
)

// RefreshHandler serves POST /v1/token/refresh.
// Accepts application/x-www-form-urlencoded with refresh_token; the device
// and client come from the X-Device-ID and X-Client-ID headers.
type RefreshHandler struct {
	Tokens *service.TokenIssuer
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. Ensure the right content-type
	if !isForm(r) {
		writeInvalidRequest(w, "content type must be application/x-www-form-urlencoded")
		return
	}

	// 2. Parse the form body
	if err := r.ParseForm(); err != nil {
		writeInvalidRequest(w, "malformed form body")
		return
	}

	refresh := r.PostForm.Get("refresh_token")
	device := deviceID(r)
	client := clientID(r)
	if refresh == "" || device == "" || client == "" {
		writeInvalidRequest(w, "refresh_token, X-Device-ID and X-Client-ID are required")
		return
	}

	// 3. Rotate
	pair, err := h.Tokens.RotateSession(r.Context(), device, client, refresh)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}

func isForm(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "" || strings.HasPrefix(ct, "application/x-www-form-urlencoded")
}
