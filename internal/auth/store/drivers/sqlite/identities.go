package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
)

type identitiesRepo struct {
	db DBTX
}

func (r *identitiesRepo) GetIdentity(ctx context.Context, id string) (domain.Identity, error) {
	var (
		ident     domain.Identity
		status    string
		updatedAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, status, updated_at FROM identities WHERE id = ?`, id,
	).Scan(&ident.ID, &status, &updatedAt)
	if err != nil {
		return domain.Identity{}, mapNotFound(err)
	}
	ident.Status = domain.IdentityStatus(status)
	ident.UpdatedAt = fromMillis(updatedAt)
	return ident, nil
}

// UpsertIdentityStatus ignores updates older than the one on file, so
// out-of-order deliveries can't resurrect a deactivated account.
func (r *identitiesRepo) UpsertIdentityStatus(ctx context.Context, id string, status domain.IdentityStatus, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identities (id, status, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			status     = excluded.status,
			updated_at = excluded.updated_at
		 WHERE excluded.updated_at >= identities.updated_at`,
		id, string(status), toMillis(at),
	)
	return err
}
