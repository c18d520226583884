package auth

import (
	"context"
	"time"
)

// UserAccount is a stored login identity. RefreshToken and
// RefreshTokenExpiry are either both set or both nil.
type UserAccount struct {
	ID                 string
	LoginName          string
	FullName           string
	Email              string
	Phone              string
	CredentialHash     []byte
	RefreshToken       *string
	RefreshTokenExpiry *time.Time
	IsActive           bool
	CreatedBy          string
	CreatedOn          time.Time
	LastModifiedBy     string
	LastModifiedOn     time.Time
}

// HasActiveRefreshToken reports whether a server-side session exists.
func (u *UserAccount) HasActiveRefreshToken() bool {
	return u.RefreshToken != nil && u.RefreshTokenExpiry != nil
}

// UserPermission grants a single permission code to a user. The pair is
// unique per user and removed when the account is deleted.
type UserPermission struct {
	UserID         string
	PermissionCode string
}

// Session is the transient result of a login or refresh. It is never
// persisted; the refresh token value is stored on the account row for
// later comparison.
type Session struct {
	Token               string
	RefreshToken        string
	RefreshTokenExpires time.Time
}

// UserRepository persists user accounts. Implementations are bound to the
// transaction of the unit of work that created them.
type UserRepository interface {
	Create(ctx context.Context, u *UserAccount) error
	FindByID(ctx context.Context, id string) (*UserAccount, error)
	FindByLogin(ctx context.Context, loginName string) (*UserAccount, error)
	List(ctx context.Context) ([]*UserAccount, error)
	Update(ctx context.Context, u *UserAccount) error
	Delete(ctx context.Context, id string) error

	// SetRefreshToken unconditionally replaces the stored refresh token
	// and expiry (login path).
	SetRefreshToken(ctx context.Context, userID, token string, expiry time.Time) error

	// SwapRefreshToken replaces the stored refresh token only if it still
	// equals previous; otherwise ErrRotationConflict (refresh path).
	SwapRefreshToken(ctx context.Context, userID, previous, next string, expiry time.Time) error
}

// PermissionRepository persists user permission grants.
type PermissionRepository interface {
	ListByUser(ctx context.Context, userID string) ([]string, error)
	Replace(ctx context.Context, userID string, codes []string) error
}

// UnitOfWork scopes repository access to a single transaction. Obtaining a
// repository implicitly begins the transaction; Commit or Rollback finish
// it and release the underlying connection. Dispose is safe to defer: it
// rolls back anything still open and is a no-op after Commit/Rollback.
type UnitOfWork interface {
	Users(ctx context.Context) (UserRepository, error)
	Permissions(ctx context.Context) (PermissionRepository, error)
	Commit() error
	Rollback() error
	Dispose()
}

// UnitOfWorkFunc opens a fresh unit of work. Each logical operation uses
// exactly one.
type UnitOfWorkFunc func() UnitOfWork
