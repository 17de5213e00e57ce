package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/jwtx"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// IntrospectHandler serves POST /v1/token/introspect, modelled on RFC7662.
// The caller must itself present a valid bearer token.
type IntrospectHandler struct {
	Verifier httpx.TokenVerifier
}

func (h *IntrospectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if !isForm(r) {
		writeInvalidRequest(w, "content type must be application/x-www-form-urlencoded")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeInvalidRequest(w, "malformed form body")
		return
	}

	token := r.PostForm.Get("token")
	if token == "" {
		writeInvalidRequest(w, "token is required")
		return
	}

	claims, err := h.Verifier.Verify(ctx, token)
	switch {
	case errors.Is(err, jwtx.ErrInvalid):
		// Per RFC7662, return active=false without revealing why
		log.Debug("introspected token is inactive", "err", err)
		httpx.WriteJSON(w, http.StatusOK, authsdk.IntrospectionResponse{Active: false})
		return
	case err != nil:
		log.Error("introspection failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrorBody{Error: authsdk.ErrorCodeServerError})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, introspection(claims))
}

func introspection(c *jwtx.Claims) authsdk.IntrospectionResponse {
	out := authsdk.IntrospectionResponse{
		Active:      true,
		Sub:         c.Subject,
		AMR:         c.AMR,
		Iss:         c.Issuer,
		Jti:         c.ID,
		Account:     c.Account,
		Email:       c.Email,
		PhoneNumber: c.PhoneNumber,
		Device:      c.Device,
		Flags:       c.Flags,
	}
	if s, err := domain.ParseSubject(c.Subject); err == nil {
		out.SubjectKind = string(s.Kind)
	}
	if len(c.Audience) > 0 {
		out.ClientID = c.Audience[0]
	}
	if c.ExpiresAt != nil {
		out.Exp = c.ExpiresAt.Unix()
	}
	if c.IssuedAt != nil {
		out.Iat = c.IssuedAt.Unix()
	}
	return out
}
