package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/tracker/internal/auth/domain"
	"github.com/aussiebroadwan/tracker/internal/auth/store"
)

type refreshTokensRepo struct {
	q queryer
}

const refreshTokenColumns = `id, user_id, token_hash, created_at, expires_at, created_by_ip,
	revoked_at, revoked_by_ip, reason_revoked, replaced_by_id`

func scanRefreshToken(row interface{ Scan(...any) error }) (domain.RefreshToken, error) {
	var (
		t                    domain.RefreshToken
		createdAt, expiresAt string
		revokedAt            sql.NullString
		revokedByIP          sql.NullString
		reason, replacedBy   sql.NullString
	)
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &createdAt, &expiresAt, &t.CreatedByIP,
		&revokedAt, &revokedByIP, &reason, &replacedBy)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}

	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.RefreshToken{}, err
	}
	if t.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return domain.RefreshToken{}, err
	}
	if t.RevokedAt, err = parseOptionalTime(revokedAt); err != nil {
		return domain.RefreshToken{}, err
	}
	t.RevokedByIP = mapNullString(revokedByIP)
	t.ReasonRevoked = mapNullString(reason)
	t.ReplacedByID = mapNullString(replacedBy)
	return t, nil
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	created := t.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, created_at, expires_at, created_by_ip)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.TokenHash, formatTime(created), formatTime(t.ExpiresAt), t.CreatedByIP)
	return mapConstraint(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(
	ctx context.Context,
	userID, hash string,
) (domain.RefreshToken, error) {
	return scanRefreshToken(r.q.QueryRowContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE user_id = ? AND token_hash = ?`,
		userID, hash))
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, id string, rv domain.Revocation) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = ?, revoked_by_ip = ?, reason_revoked = ?, replaced_by_id = ?
		WHERE id = ? AND revoked_at IS NULL`,
		formatTime(rv.At), mapStringNull(rv.ByIP), mapStringNull(rv.Reason), mapStringNull(rv.ReplacedByID), id)
	if err != nil {
		return err
	}
	return expectOne(res, store.ErrNotFound)
}

func (r *refreshTokensRepo) RevokeAllUserRefreshTokens(
	ctx context.Context,
	userID string,
	rv domain.Revocation,
	now time.Time,
) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = ?, revoked_by_ip = ?, reason_revoked = ?
		WHERE user_id = ? AND revoked_at IS NULL AND expires_at > ?`,
		formatTime(rv.At), mapStringNull(rv.ByIP), mapStringNull(rv.Reason), userID, formatTime(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshTokensRepo) ListUserRefreshTokens(ctx context.Context, userID string) ([]domain.RefreshToken, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []domain.RefreshToken
	for rows.Next() {
		t, err := scanRefreshToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
