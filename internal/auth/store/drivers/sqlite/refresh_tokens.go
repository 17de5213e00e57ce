package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
)

type refreshTokensRepo struct {
	db DBTX
}

const refreshTokenColumns = `id, device_id, identity_id, subject, audience, amr, token_hash,
	created_at, expires_at, chain_expiry_ms`

func (r *refreshTokensRepo) UpsertRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+refreshTokenColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			subject           = excluded.subject,
			audience          = excluded.audience,
			amr               = excluded.amr,
			token_hash        = excluded.token_hash,
			created_at        = excluded.created_at,
			expires_at        = excluded.expires_at,
			chain_expiry_ms   = excluded.chain_expiry_ms`,
		t.ID, t.DeviceID, t.IdentityID, t.Subject, t.Audience, string(t.AMR), t.TokenHash,
		toMillis(t.CreatedAt), toMillis(t.ExpiresAt), t.RefreshChainExpiry.Milliseconds(),
	)
	return err
}

func (r *refreshTokensRepo) GetRefreshToken(ctx context.Context, deviceID, tokenHash string) (domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens
		 WHERE device_id = ? AND token_hash = ?`,
		deviceID, tokenHash,
	)

	var (
		t                    domain.RefreshToken
		amr                  string
		createdAt, expiresAt int64
		chainMillis          int64
	)
	err := row.Scan(&t.ID, &t.DeviceID, &t.IdentityID, &t.Subject, &t.Audience, &amr, &t.TokenHash,
		&createdAt, &expiresAt, &chainMillis)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}

	t.AMR = domain.AMR(amr)
	t.CreatedAt = fromMillis(createdAt)
	t.ExpiresAt = fromMillis(expiresAt)
	t.RefreshChainExpiry = time.Duration(chainMillis) * time.Millisecond
	return t, nil
}

func (r *refreshTokensRepo) RotateRefreshToken(ctx context.Context, id, prevHash, nextHash string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET token_hash = ?, expires_at = ?
		 WHERE id = ? AND token_hash = ?`,
		nextHash, toMillis(expiresAt), id, prevHash,
	)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (r *refreshTokensRepo) DeleteRefreshToken(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	ms := toMillis(now)
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens
		 WHERE expires_at <= ? OR created_at + chain_expiry_ms <= ?`,
		ms, ms,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
