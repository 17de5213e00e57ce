package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/metrics"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/jwtx"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

const TokenTypeBearer = "Bearer"

type TokenIssuerConfig struct {
	Issuer string
	// Leeway is the clock skew allowed on exp, nbf and iat.
	Leeway  time.Duration
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// TokenIssuer mints and verifies access tokens and keeps each device's
// refresh chain. A refresh token is single use: every rotation replaces it
// and extends the sliding expiry, but never past the chain expiry anchored
// at login.
type TokenIssuer struct {
	Keys    *SigningKeyManager
	Store   store.Store
	Clients domain.Clients

	issuer   string
	metrics  *metrics.Metrics
	now      func() time.Time
	verifier *jwtx.Verifier
}

func NewTokenIssuer(keys *SigningKeyManager, st store.Store, clients domain.Clients, cfg TokenIssuerConfig) *TokenIssuer {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TokenIssuer{
		Keys:    keys,
		Store:   st,
		Clients: clients,
		issuer:  cfg.Issuer,
		metrics: cfg.Metrics,
		now:     cfg.Now,
		verifier: jwtx.NewVerifier(keys, jwtx.VerifyOptions{
			Issuer: cfg.Issuer,
			Leeway: cfg.Leeway,
			Now:    cfg.Now,
		}),
	}
}

func (t *TokenIssuer) client(id string) (domain.Client, error) {
	c, ok := t.Clients.Lookup(id)
	if !ok {
		return domain.Client{}, fmt.Errorf("%w: %q", ErrInvalidClient, id)
	}
	return c, nil
}

// IssueAccessToken signs claims for claims.Audience.
func (t *TokenIssuer) IssueAccessToken(ctx context.Context, claims domain.Claims) (string, error) {
	client, err := t.client(claims.Audience)
	if err != nil {
		return "", err
	}
	return t.mint(ctx, client, claims, t.now())
}

func (t *TokenIssuer) mint(ctx context.Context, client domain.Client, claims domain.Claims, now time.Time) (string, error) {
	signer, err := t.Keys.ActiveSigner(ctx)
	if err != nil {
		return "", err
	}

	custom := claims.Subject.CustomClaims()
	maps.Copy(custom, claims.Custom)

	var flags []string
	if claims.Subject.Kind == domain.SubjectAccount {
		flags = client.ActiveFlags(claims.Subject.ID, now)
	}

	token, err := signer.Sign(jwtx.NewAccessClaims(jwtx.AccessClaims{
		Subject:  claims.Subject.String(),
		AMR:      []string{string(claims.AMR)},
		Audience: client.ID,
		Issuer:   t.issuer,
		TTL:      client.JWT.AccessTokenExpiry,
		Custom:   custom,
		Flags:    flags,
	}, now))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return token, nil
}

// VerifyAccessToken checks an access token and rebuilds its claims.
func (t *TokenIssuer) VerifyAccessToken(ctx context.Context, token string) (domain.Claims, error) {
	_, claims, err := t.verify(ctx, token)
	return claims, err
}

// Verify is VerifyAccessToken for HTTP callers that need the registered
// claims as well. Every token fault, including a subject or amr that can't
// be rebuilt, wraps jwtx.ErrInvalid.
func (t *TokenIssuer) Verify(ctx context.Context, token string) (*jwtx.Claims, error) {
	jc, _, err := t.verify(ctx, token)
	return jc, err
}

func (t *TokenIssuer) verify(ctx context.Context, token string) (*jwtx.Claims, domain.Claims, error) {
	jc, err := t.verifier.Verify(ctx, token)
	if err != nil {
		return nil, domain.Claims{}, tokenError(err)
	}
	claims, err := claimsFromJWT(jc)
	if err != nil {
		return nil, domain.Claims{}, fmt.Errorf("%w: %w", jwtx.ErrInvalid, err)
	}
	return jc, claims, nil
}

func claimsFromJWT(jc *jwtx.Claims) (domain.Claims, error) {
	subject, err := domain.ParseSubject(jc.Subject)
	if err != nil {
		return domain.Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if len(jc.AMR) != 1 {
		return domain.Claims{}, fmt.Errorf("%w: want one amr, got %d", ErrInvalidToken, len(jc.AMR))
	}
	amr, err := domain.ParseAMR(jc.AMR[0])
	if err != nil {
		return domain.Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	var aud string
	if len(jc.Audience) > 0 {
		aud = jc.Audience[0]
	}

	return domain.Claims{
		Subject:  subject,
		AMR:      amr,
		Audience: aud,
		Custom:   jc.Custom(),
		Flags:    jc.Flags,
	}, nil
}

// IssueSession starts a new refresh chain for subject on deviceID. Any
// previous chain for the same device and identity is replaced.
func (t *TokenIssuer) IssueSession(
	ctx context.Context,
	subject domain.Subject,
	deviceID string,
	amr domain.AMR,
	audience string,
) (domain.TokenPair, error) {
	if deviceID == "" {
		return domain.TokenPair{}, fmt.Errorf("%w: device id is required", ErrInvalidRequest)
	}
	if _, err := domain.ParseSubject(subject.String()); err != nil {
		return domain.TokenPair{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if _, err := domain.ParseAMR(string(amr)); err != nil {
		return domain.TokenPair{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	client, err := t.client(audience)
	if err != nil {
		return domain.TokenPair{}, err
	}

	now := t.now()
	access, err := t.mint(ctx, client, sessionClaims(subject, amr, audience, deviceID), now)
	if err != nil {
		return domain.TokenPair{}, err
	}

	refresh, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.TokenPair{}, err
	}

	row := domain.RefreshToken{
		ID:                 domain.RefreshTokenID(deviceID, subject.IdentityID()),
		DeviceID:           deviceID,
		IdentityID:         subject.IdentityID(),
		Subject:            subject.String(),
		Audience:           audience,
		AMR:                amr,
		TokenHash:          cryptox.FingerprintToken(refresh),
		CreatedAt:          now,
		ExpiresAt:          now.Add(client.RefreshExpiry(amr)),
		RefreshChainExpiry: client.JWT.RefreshChainExpiry,
	}
	if err := t.Store.RefreshTokens().UpsertRefreshToken(ctx, row); err != nil {
		return domain.TokenPair{}, fmt.Errorf("save refresh token: %w", err)
	}

	t.metrics.Session(metrics.SessionIssued)
	slogx.FromContext(ctx).Info("session issued",
		slog.String("session_id", row.ID),
		slog.String("client_id", audience),
		slog.String("amr", string(amr)),
	)

	return tokenPair(client, access, refresh), nil
}

// RotateSession trades a refresh token for a new pair. The presented token
// is spent whether or not the caller receives the response.
func (t *TokenIssuer) RotateSession(ctx context.Context, deviceID, audience, presented string) (domain.TokenPair, error) {
	pair, err := t.rotateSession(ctx, deviceID, audience, presented)
	if err != nil && (errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrExpiredToken) || errors.Is(err, ErrAccountInactive)) {
		t.metrics.Session(metrics.SessionRejected)
		slogx.FromContext(ctx).Info("refresh rejected", slog.String("reason", err.Error()))
	}
	return pair, err
}

func (t *TokenIssuer) rotateSession(ctx context.Context, deviceID, audience, presented string) (domain.TokenPair, error) {
	if deviceID == "" || presented == "" {
		return domain.TokenPair{}, ErrInvalidToken
	}

	now := t.now()
	prevHash := cryptox.FingerprintToken(presented)

	row, err := t.Store.RefreshTokens().GetRefreshToken(ctx, deviceID, prevHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrInvalidToken
		}
		return domain.TokenPair{}, fmt.Errorf("load refresh token: %w", err)
	}
	if row.Audience != audience {
		return domain.TokenPair{}, fmt.Errorf("%w: issued to another client", ErrInvalidToken)
	}
	if !row.CanRefresh(now) {
		return domain.TokenPair{}, ErrExpiredToken
	}

	client, err := t.client(audience)
	if err != nil {
		return domain.TokenPair{}, err
	}

	subject, err := domain.ParseSubject(row.Subject)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if subject.Kind == domain.SubjectAccount {
		if err := t.checkIdentity(ctx, subject.ID); err != nil {
			return domain.TokenPair{}, err
		}
	}

	access, err := t.mint(ctx, client, sessionClaims(subject, row.AMR, audience, deviceID), now)
	if err != nil {
		return domain.TokenPair{}, err
	}

	next, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.TokenPair{}, err
	}

	// Conditional on the hash we read, so of two concurrent refreshes with
	// the same token only one wins.
	err = t.Store.RefreshTokens().RotateRefreshToken(ctx, row.ID, prevHash, cryptox.FingerprintToken(next), now.Add(client.RefreshExpiry(row.AMR)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, fmt.Errorf("%w: refresh token already used", ErrInvalidToken)
		}
		return domain.TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	t.metrics.Session(metrics.SessionRotated)
	return tokenPair(client, access, next), nil
}

func (t *TokenIssuer) checkIdentity(ctx context.Context, id string) error {
	ident, err := t.Store.Identities().GetIdentity(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: unknown identity", ErrInvalidToken)
		}
		return fmt.Errorf("load identity: %w", err)
	}
	if ident.Status != domain.IdentityActive {
		return ErrAccountInactive
	}
	return nil
}

// RevokeSession ends the chain for identityID on deviceID. A missing chain
// is only an error when mustExist is set.
func (t *TokenIssuer) RevokeSession(ctx context.Context, identityID, deviceID string, mustExist bool) error {
	id := domain.RefreshTokenID(deviceID, identityID)
	err := t.Store.RefreshTokens().DeleteRefreshToken(ctx, id)
	switch {
	case err == nil:
		t.metrics.Session(metrics.SessionRevoked)
		slogx.FromContext(ctx).Info("session revoked", slog.String("session_id", id))
		return nil
	case errors.Is(err, store.ErrNotFound):
		if mustExist {
			return ErrInvalidToken
		}
		return nil
	default:
		return fmt.Errorf("delete refresh token: %w", err)
	}
}

// UpdateIdentityStatus records an identity status change. Older updates
// than the one stored are ignored.
func (t *TokenIssuer) UpdateIdentityStatus(ctx context.Context, id string, status domain.IdentityStatus, at time.Time) error {
	if id == "" {
		return fmt.Errorf("%w: identity id is required", ErrInvalidRequest)
	}
	if at.IsZero() {
		at = t.now()
	}
	if err := t.Store.Identities().UpsertIdentityStatus(ctx, id, status, at); err != nil {
		return fmt.Errorf("update identity status: %w", err)
	}
	slogx.FromContext(ctx).Info("identity status updated",
		slog.String("identity_id", id),
		slog.String("status", string(status)),
	)
	return nil
}

func sessionClaims(subject domain.Subject, amr domain.AMR, audience, deviceID string) domain.Claims {
	return domain.Claims{
		Subject:  subject,
		AMR:      amr,
		Audience: audience,
		Custom:   map[string]string{jwtx.ClaimDevice: deviceID},
	}
}

func tokenPair(client domain.Client, access, refresh string) domain.TokenPair {
	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int64(client.JWT.AccessTokenExpiry / time.Second),
	}
}
