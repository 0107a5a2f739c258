package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/tracker/internal/auth/domain"
	"github.com/aussiebroadwan/tracker/internal/auth/store"
)

type passwordResetsRepo struct {
	q queryer
}

func (r *passwordResetsRepo) CreatePasswordReset(ctx context.Context, p domain.PasswordReset) error {
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO password_resets (id, user_id, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.TokenHash, formatTime(p.ExpiresAt), formatTime(created))
	return mapConstraint(err)
}

func (r *passwordResetsRepo) GetPasswordResetByHash(ctx context.Context, hash string) (domain.PasswordReset, error) {
	var (
		p                    domain.PasswordReset
		expiresAt, createdAt string
		usedAt               sql.NullString
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, used_at, created_at
		FROM password_resets WHERE token_hash = ?`, hash).
		Scan(&p.ID, &p.UserID, &p.TokenHash, &expiresAt, &usedAt, &createdAt)
	if err != nil {
		return domain.PasswordReset{}, mapNotFound(err)
	}

	if p.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return domain.PasswordReset{}, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.PasswordReset{}, err
	}
	if p.UsedAt, err = parseOptionalTime(usedAt); err != nil {
		return domain.PasswordReset{}, err
	}
	return p, nil
}

func (r *passwordResetsRepo) MarkPasswordResetUsed(ctx context.Context, id string, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE password_resets SET used_at = ? WHERE id = ? AND used_at IS NULL`,
		formatTime(at), id)
	if err != nil {
		return err
	}
	return expectOne(res, store.ErrNotFound)
}

func (r *passwordResetsRepo) DeleteStalePasswordResets(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM password_resets WHERE used_at IS NOT NULL OR expires_at <= ?`,
		formatTime(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
