package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
)

type signingKeysRepo struct {
	db DBTX
}

const signingKeyColumns = `kid, public_key_pem, created_at, expires_at`

func (r *signingKeysRepo) CreateSigningKey(ctx context.Context, key domain.SigningKey) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO signing_keys (`+signingKeyColumns+`) VALUES (?, ?, ?, ?)`,
		key.ID, key.PublicKeyPEM, toMillis(key.CreatedAt), toMillis(key.ExpiresAt),
	)
	return err
}

func (r *signingKeysRepo) GetSigningKey(ctx context.Context, kid string) (domain.SigningKey, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+signingKeyColumns+` FROM signing_keys WHERE kid = ?`, kid)

	key, err := scanSigningKey(row)
	if err != nil {
		return domain.SigningKey{}, mapNotFound(err)
	}
	return key, nil
}

func (r *signingKeysRepo) ListValidSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+signingKeyColumns+` FROM signing_keys
		 WHERE expires_at > ?
		 ORDER BY created_at DESC, kid DESC`,
		toMillis(now),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.SigningKey
	for rows.Next() {
		key, err := scanSigningKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *signingKeysRepo) DeleteExpiredSigningKeys(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM signing_keys WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSigningKey(s scanner) (domain.SigningKey, error) {
	var (
		key                  domain.SigningKey
		createdAt, expiresAt int64
	)
	if err := s.Scan(&key.ID, &key.PublicKeyPEM, &createdAt, &expiresAt); err != nil {
		return domain.SigningKey{}, err
	}
	key.CreatedAt = fromMillis(createdAt)
	key.ExpiresAt = fromMillis(expiresAt)
	return key, nil
}
