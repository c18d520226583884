package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

const refreshTokenBytes = 32

// SessionService orchestrates login and refresh. Each operation runs in
// exactly one unit of work; the expected failure outcomes are the sentinel
// errors in errors.go and are data at this boundary, not faults.
type SessionService struct {
	hasher *CredentialHasher
	signer *TokenSigner
	uow    UnitOfWorkFunc
	now    func() time.Time
}

// SessionOption configures SessionService behavior.
type SessionOption func(*SessionService)

// WithSessionClock overrides the time source (useful for tests).
func WithSessionClock(fn func() time.Time) SessionOption {
	return func(s *SessionService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewSessionService wires the hasher, signer, and unit-of-work factory.
func NewSessionService(hasher *CredentialHasher, signer *TokenSigner, uow UnitOfWorkFunc, opts ...SessionOption) (*SessionService, error) {
	if hasher == nil || signer == nil || uow == nil {
		return nil, errors.New("auth: hasher, signer, and unit of work are required")
	}
	s := &SessionService{
		hasher: hasher,
		signer: signer,
		uow:    uow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login authenticates credentials and issues a fresh token pair. A missing
// account and a wrong password produce the same ErrInvalidCredentials so
// the response does not reveal which check failed.
func (s *SessionService) Login(ctx context.Context, loginName, password string) (Session, error) {
	loginName = strings.TrimSpace(loginName)
	if loginName == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	work := s.uow()
	defer work.Dispose()

	users, err := work.Users(ctx)
	if err != nil {
		return Session{}, err
	}
	user, err := users.FindByLogin(ctx, loginName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !user.IsActive {
		return Session{}, ErrInvalidCredentials
	}
	if !s.hasher.Verify(user.CredentialHash, password) {
		return Session{}, ErrInvalidCredentials
	}

	session, err := s.issue(ctx, work, user, false)
	if err != nil {
		return Session{}, err
	}
	if err := work.Commit(); err != nil {
		return Session{}, fmt.Errorf("commit login: %w", err)
	}
	return session, nil
}

// Refresh rotates a session. The supplied access token may be expired but
// must otherwise validate; the supplied refresh token must match the
// stored value exactly and still be within its lifetime. Rotation is a
// compare-and-swap: if a concurrent refresh already replaced the stored
// token, this call fails with ErrInvalidToken instead of silently
// overwriting the winner.
func (s *SessionService) Refresh(ctx context.Context, accessToken, refreshToken string) (Session, error) {
	claims, err := s.signer.ExtractPrincipalAllowExpired(accessToken)
	if err != nil {
		return Session{}, ErrInvalidToken
	}
	if strings.TrimSpace(refreshToken) == "" {
		return Session{}, ErrInvalidToken
	}

	work := s.uow()
	defer work.Dispose()

	users, err := work.Users(ctx)
	if err != nil {
		return Session{}, err
	}
	user, err := users.FindByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrInvalidToken
		}
		return Session{}, err
	}
	if !user.IsActive {
		return Session{}, ErrInvalidToken
	}
	if !user.HasActiveRefreshToken() {
		return Session{}, ErrNoActiveSession
	}
	if subtle.ConstantTimeCompare([]byte(*user.RefreshToken), []byte(refreshToken)) != 1 {
		return Session{}, ErrInvalidToken
	}
	if user.RefreshTokenExpiry.Before(s.now().UTC()) {
		return Session{}, ErrRefreshTokenExpired
	}

	session, err := s.issue(ctx, work, user, true)
	if err != nil {
		return Session{}, err
	}
	if err := work.Commit(); err != nil {
		return Session{}, fmt.Errorf("commit refresh: %w", err)
	}
	return session, nil
}

// issue builds the access token from the user's current permission grants,
// generates a new opaque refresh token, and persists the rotation. When
// swap is true the update is predicated on the previously observed stored
// token.
func (s *SessionService) issue(ctx context.Context, work UnitOfWork, user *UserAccount, swap bool) (Session, error) {
	perms, err := work.Permissions(ctx)
	if err != nil {
		return Session{}, err
	}
	codes, err := perms.ListByUser(ctx, user.ID)
	if err != nil {
		return Session{}, err
	}

	token, _, err := s.signer.Build(user, codes)
	if err != nil {
		return Session{}, err
	}
	refresh, err := newOpaqueToken()
	if err != nil {
		return Session{}, err
	}
	expiry := s.now().UTC().Add(s.signer.RefreshTTL())

	users, err := work.Users(ctx)
	if err != nil {
		return Session{}, err
	}
	if swap {
		err = users.SwapRefreshToken(ctx, user.ID, *user.RefreshToken, refresh, expiry)
		if errors.Is(err, ErrRotationConflict) {
			return Session{}, ErrInvalidToken
		}
	} else {
		err = users.SetRefreshToken(ctx, user.ID, refresh, expiry)
	}
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:               token,
		RefreshToken:        refresh,
		RefreshTokenExpires: expiry,
	}, nil
}

// newOpaqueToken returns 256 bits of randomness as URL-safe text.
func newOpaqueToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
