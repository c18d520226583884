package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"notabene.org/internal/ids"
)

// AccountService manages user accounts and their permission grants. Every
// operation runs in its own unit of work.
type AccountService struct {
	hasher   *CredentialHasher
	registry *PermissionRegistry
	uow      UnitOfWorkFunc
	now      func() time.Time
}

// NewAccount is the input for account creation.
type NewAccount struct {
	LoginName string
	FullName  string
	Email     string
	Phone     string
	Password  string
}

// AccountUpdate mutates the optional profile fields; nil leaves a field
// untouched.
type AccountUpdate struct {
	FullName *string
	Email    *string
	Phone    *string
	IsActive *bool
}

// AccountOption configures AccountService behavior.
type AccountOption func(*AccountService)

// WithAccountClock overrides the time source (useful for tests).
func WithAccountClock(fn func() time.Time) AccountOption {
	return func(s *AccountService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewAccountService wires the hasher, permission registry, and unit-of-work
// factory.
func NewAccountService(hasher *CredentialHasher, registry *PermissionRegistry, uow UnitOfWorkFunc, opts ...AccountOption) (*AccountService, error) {
	if hasher == nil || registry == nil || uow == nil {
		return nil, errors.New("auth: hasher, registry, and unit of work are required")
	}
	s := &AccountService{
		hasher:   hasher,
		registry: registry,
		uow:      uow,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create stores a new active account with a freshly derived credential hash.
func (s *AccountService) Create(ctx context.Context, actor string, in NewAccount) (*UserAccount, error) {
	in.LoginName = strings.TrimSpace(in.LoginName)
	if in.LoginName == "" {
		return nil, fmt.Errorf("%w: login name is required", ErrInvalidInput)
	}
	if in.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	work := s.uow()
	defer work.Dispose()

	users, err := work.Users(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := users.FindByLogin(ctx, in.LoginName); err == nil {
		return nil, fmt.Errorf("%w: login name %s", ErrAlreadyExists, in.LoginName)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	user := &UserAccount{
		ID:             ids.New(),
		LoginName:      in.LoginName,
		FullName:       strings.TrimSpace(in.FullName),
		Email:          strings.TrimSpace(in.Email),
		Phone:          strings.TrimSpace(in.Phone),
		CredentialHash: hash,
		IsActive:       true,
		CreatedBy:      actor,
		CreatedOn:      now,
		LastModifiedBy: actor,
		LastModifiedOn: now,
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	if err := work.Commit(); err != nil {
		return nil, fmt.Errorf("commit create user: %w", err)
	}
	return user, nil
}

// Get loads one account by id.
func (s *AccountService) Get(ctx context.Context, id string) (*UserAccount, error) {
	work := s.uow()
	defer work.Dispose()

	users, err := work.Users(ctx)
	if err != nil {
		return nil, err
	}
	user, err := users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := work.Commit(); err != nil {
		return nil, err
	}
	return user, nil
}

// List returns all accounts.
func (s *AccountService) List(ctx context.Context) ([]*UserAccount, error) {
	work := s.uow()
	defer work.Dispose()

	users, err := work.Users(ctx)
	if err != nil {
		return nil, err
	}
	list, err := users.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := work.Commit(); err != nil {
		return nil, err
	}
	return list, nil
}

// Update applies the non-nil fields of upd and touches the audit columns.
func (s *AccountService) Update(ctx context.Context, actor, id string, upd AccountUpdate) (*UserAccount, error) {
	work := s.uow()
	defer work.Dispose()

	users, err := work.Users(ctx)
	if err != nil {
		return nil, err
	}
	user, err := users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.FullName != nil {
		user.FullName = strings.TrimSpace(*upd.FullName)
	}
	if upd.Email != nil {
		user.Email = strings.TrimSpace(*upd.Email)
	}
	if upd.Phone != nil {
		user.Phone = strings.TrimSpace(*upd.Phone)
	}
	if upd.IsActive != nil {
		user.IsActive = *upd.IsActive
	}
	user.LastModifiedBy = actor
	user.LastModifiedOn = s.now().UTC()
	if err := users.Update(ctx, user); err != nil {
		return nil, err
	}
	if err := work.Commit(); err != nil {
		return nil, fmt.Errorf("commit update user: %w", err)
	}
	return user, nil
}

// Delete removes the account; permission grants go with it via the
// database cascade.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	work := s.uow()
	defer work.Dispose()

	users, err := work.Users(ctx)
	if err != nil {
		return err
	}
	if err := users.Delete(ctx, id); err != nil {
		return err
	}
	return work.Commit()
}

// SetPassword derives a new credential hash for the account.
func (s *AccountService) SetPassword(ctx context.Context, actor, id, password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	work := s.uow()
	defer work.Dispose()

	users, err := work.Users(ctx)
	if err != nil {
		return err
	}
	user, err := users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	user.CredentialHash = hash
	user.LastModifiedBy = actor
	user.LastModifiedOn = s.now().UTC()
	if err := users.Update(ctx, user); err != nil {
		return err
	}
	return work.Commit()
}

// Catalog returns every grantable permission grouped by feature.
func (s *AccountService) Catalog() []PermissionCategory {
	return s.registry.Categories()
}

// Permissions returns the codes granted to the account.
func (s *AccountService) Permissions(ctx context.Context, id string) ([]string, error) {
	work := s.uow()
	defer work.Dispose()

	perms, err := work.Permissions(ctx)
	if err != nil {
		return nil, err
	}
	codes, err := perms.ListByUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := work.Commit(); err != nil {
		return nil, err
	}
	return codes, nil
}

// ReplacePermissions swaps the account's grants for codes. The grant rows
// and the account's audit columns change in the same transaction, so both
// commit or roll back together. Unknown codes are rejected up front.
func (s *AccountService) ReplacePermissions(ctx context.Context, actor, id string, codes []string) error {
	cleaned := dedupeCodes(codes)
	for _, code := range cleaned {
		if !s.registry.Contains(code) {
			return fmt.Errorf("%w: unknown permission code %s", ErrInvalidInput, code)
		}
	}

	work := s.uow()
	defer work.Dispose()

	users, err := work.Users(ctx)
	if err != nil {
		return err
	}
	user, err := users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	perms, err := work.Permissions(ctx)
	if err != nil {
		return err
	}
	if err := perms.Replace(ctx, id, cleaned); err != nil {
		return err
	}
	user.LastModifiedBy = actor
	user.LastModifiedOn = s.now().UTC()
	if err := users.Update(ctx, user); err != nil {
		return err
	}
	return work.Commit()
}
