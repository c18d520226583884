package store

import (
	"context"
	"fmt"

	"notabene.org/internal/auth"
)

// UserPermissionRepo persists permission grants. Grants cascade away with
// their user account at the schema level.
type UserPermissionRepo struct {
	tx DBTX
}

var _ auth.PermissionRepository = (*UserPermissionRepo)(nil)

func (r *UserPermissionRepo) ListByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.tx.QueryContext(ctx,
		`select permission_code from user_permissions where user_id=$1 order by permission_code`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (r *UserPermissionRepo) Replace(ctx context.Context, userID string, codes []string) error {
	if _, err := r.tx.ExecContext(ctx,
		`delete from user_permissions where user_id=$1`, userID); err != nil {
		return fmt.Errorf("clear permissions: %w", err)
	}
	for _, code := range codes {
		if _, err := r.tx.ExecContext(ctx,
			`insert into user_permissions(user_id, permission_code) values($1,$2)`,
			userID, code,
		); err != nil {
			return fmt.Errorf("grant permission %s: %w", code, err)
		}
	}
	return nil
}
