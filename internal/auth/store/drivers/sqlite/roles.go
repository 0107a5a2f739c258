package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/tracker/internal/auth/store"
)

type rolesRepo struct {
	q queryer
}

func (r *rolesRepo) AddUserRole(ctx context.Context, userID, role string) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_roles (user_id, role, assigned_at)
		SELECT ?, name, ? FROM roles WHERE name = ?`,
		userID, formatTime(time.Now()), role)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// Either the role is unknown or it was already assigned.
	var exists int
	err = r.q.QueryRowContext(ctx, `SELECT 1 FROM roles WHERE name = ?`, role).Scan(&exists)
	return mapNotFound(err)
}

func (r *rolesRepo) ListUserRoles(ctx context.Context, userID string) ([]string, error) {
	return r.names(ctx, `SELECT role FROM user_roles WHERE user_id = ? ORDER BY assigned_at, rowid`, userID)
}

func (r *rolesRepo) ListRoles(ctx context.Context) ([]string, error) {
	return r.names(ctx, `SELECT name FROM roles ORDER BY name`)
}

func (r *rolesRepo) names(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

var _ store.Roles = (*rolesRepo)(nil)
