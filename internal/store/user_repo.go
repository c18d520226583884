package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"notabene.org/internal/auth"
)

const userAccountColumns = `id, login_name, full_name, email, phone, credential_hash,
	refresh_token, refresh_token_expiry, is_active,
	created_by, created_on, last_modified_by, last_modified_on`

// UserAccountRepo persists auth.UserAccount rows. Instances are created by
// the binder and live for one unit of work.
type UserAccountRepo struct {
	tx DBTX
}

var _ auth.UserRepository = (*UserAccountRepo)(nil)

func (r *UserAccountRepo) Create(ctx context.Context, u *auth.UserAccount) error {
	_, err := r.tx.ExecContext(ctx,
		`insert into user_accounts(`+userAccountColumns+`)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		u.ID, u.LoginName, u.FullName, u.Email, u.Phone, u.CredentialHash,
		u.RefreshToken, u.RefreshTokenExpiry, u.IsActive,
		u.CreatedBy, u.CreatedOn, u.LastModifiedBy, u.LastModifiedOn,
	)
	if err != nil {
		return fmt.Errorf("insert user account: %w", err)
	}
	return nil
}

func (r *UserAccountRepo) FindByID(ctx context.Context, id string) (*auth.UserAccount, error) {
	row := r.tx.QueryRowContext(ctx,
		`select `+userAccountColumns+` from user_accounts where id=$1`, id)
	return scanUserAccount(row)
}

func (r *UserAccountRepo) FindByLogin(ctx context.Context, loginName string) (*auth.UserAccount, error) {
	row := r.tx.QueryRowContext(ctx,
		`select `+userAccountColumns+` from user_accounts where login_name=$1`, loginName)
	return scanUserAccount(row)
}

func (r *UserAccountRepo) List(ctx context.Context) ([]*auth.UserAccount, error) {
	rows, err := r.tx.QueryContext(ctx,
		`select `+userAccountColumns+` from user_accounts order by login_name`)
	if err != nil {
		return nil, fmt.Errorf("list user accounts: %w", err)
	}
	defer rows.Close()

	var users []*auth.UserAccount
	for rows.Next() {
		u, err := scanUserAccount(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserAccountRepo) Update(ctx context.Context, u *auth.UserAccount) error {
	res, err := r.tx.ExecContext(ctx,
		`update user_accounts
		 set full_name=$2, email=$3, phone=$4, credential_hash=$5, is_active=$6,
		     last_modified_by=$7, last_modified_on=$8
		 where id=$1`,
		u.ID, u.FullName, u.Email, u.Phone, u.CredentialHash, u.IsActive,
		u.LastModifiedBy, u.LastModifiedOn,
	)
	if err != nil {
		return fmt.Errorf("update user account: %w", err)
	}
	return expectOneRow(res, auth.ErrNotFound)
}

func (r *UserAccountRepo) Delete(ctx context.Context, id string) error {
	res, err := r.tx.ExecContext(ctx, `delete from user_accounts where id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete user account: %w", err)
	}
	return expectOneRow(res, auth.ErrNotFound)
}

func (r *UserAccountRepo) SetRefreshToken(ctx context.Context, userID, token string, expiry time.Time) error {
	res, err := r.tx.ExecContext(ctx,
		`update user_accounts set refresh_token=$2, refresh_token_expiry=$3 where id=$1`,
		userID, token, expiry,
	)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	return expectOneRow(res, auth.ErrNotFound)
}

// SwapRefreshToken is the compare-and-swap the refresh flow relies on: the
// update only matches while the stored token still equals previous, so a
// concurrent rotation that committed first leaves zero rows here.
func (r *UserAccountRepo) SwapRefreshToken(ctx context.Context, userID, previous, next string, expiry time.Time) error {
	res, err := r.tx.ExecContext(ctx,
		`update user_accounts set refresh_token=$3, refresh_token_expiry=$4
		 where id=$1 and refresh_token=$2`,
		userID, previous, next, expiry,
	)
	if err != nil {
		return fmt.Errorf("swap refresh token: %w", err)
	}
	return expectOneRow(res, auth.ErrRotationConflict)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserAccount(row rowScanner) (*auth.UserAccount, error) {
	var (
		u            auth.UserAccount
		refreshToken sql.NullString
		refreshExp   sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.LoginName, &u.FullName, &u.Email, &u.Phone, &u.CredentialHash,
		&refreshToken, &refreshExp, &u.IsActive,
		&u.CreatedBy, &u.CreatedOn, &u.LastModifiedBy, &u.LastModifiedOn,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user account: %w", err)
	}
	// The pair is stored and surfaced together or not at all.
	if refreshToken.Valid && refreshExp.Valid {
		u.RefreshToken = &refreshToken.String
		u.RefreshTokenExpiry = &refreshExp.Time
	}
	return &u, nil
}

func expectOneRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
