package http

import (
	"net/http"

	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// JWKSHandler exposes every key a live token may have been signed with.
func JWKSHandler(keys *service.SigningKeyManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks, err := keys.VerificationKeys(r.Context())
		if err != nil {
			slogx.FromContext(r.Context()).Error("failed to list verification keys", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrorBody{Error: authsdk.ErrorCodeServerError})
			return
		}
		httpx.WriteJSON(w, http.StatusOK, authsdk.JWKSResponse(jwks))
	}
}
