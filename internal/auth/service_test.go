package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeStore is a shared in-memory backend; every unit of work opened from
// it sees the same rows, which lets tests observe rotation across calls.
type fakeStore struct {
	users       map[string]*UserAccount
	permissions map[string][]string

	// swapConflict forces SwapRefreshToken to report that a concurrent
	// rotation won the race.
	swapConflict bool

	commits   int
	rollbacks int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       make(map[string]*UserAccount),
		permissions: make(map[string][]string),
	}
}

func (f *fakeStore) uow() UnitOfWorkFunc {
	return func() UnitOfWork { return &fakeUnitOfWork{store: f} }
}

func (f *fakeStore) add(u *UserAccount) {
	cp := *u
	f.users[u.ID] = &cp
}

type fakeUnitOfWork struct {
	store    *fakeStore
	finished bool
}

func (w *fakeUnitOfWork) Users(context.Context) (UserRepository, error) {
	return &fakeUserRepo{store: w.store}, nil
}

func (w *fakeUnitOfWork) Permissions(context.Context) (PermissionRepository, error) {
	return &fakePermissionRepo{store: w.store}, nil
}

func (w *fakeUnitOfWork) Commit() error {
	if w.finished {
		return errors.New("already finished")
	}
	w.finished = true
	w.store.commits++
	return nil
}

func (w *fakeUnitOfWork) Rollback() error {
	if w.finished {
		return errors.New("already finished")
	}
	w.finished = true
	w.store.rollbacks++
	return nil
}

func (w *fakeUnitOfWork) Dispose() {
	if !w.finished {
		w.finished = true
		w.store.rollbacks++
	}
}

type fakeUserRepo struct {
	store *fakeStore
}

func (r *fakeUserRepo) Create(_ context.Context, u *UserAccount) error {
	cp := *u
	r.store.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (*UserAccount, error) {
	u, ok := r.store.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) FindByLogin(_ context.Context, loginName string) (*UserAccount, error) {
	for _, u := range r.store.users {
		if u.LoginName == loginName {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeUserRepo) List(context.Context) ([]*UserAccount, error) {
	var out []*UserAccount
	for _, u := range r.store.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeUserRepo) Update(_ context.Context, u *UserAccount) error {
	if _, ok := r.store.users[u.ID]; !ok {
		return ErrNotFound
	}
	cp := *u
	r.store.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.store.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.store.users, id)
	delete(r.store.permissions, id)
	return nil
}

func (r *fakeUserRepo) SetRefreshToken(_ context.Context, userID, token string, expiry time.Time) error {
	u, ok := r.store.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.RefreshToken = &token
	u.RefreshTokenExpiry = &expiry
	return nil
}

func (r *fakeUserRepo) SwapRefreshToken(_ context.Context, userID, previous, next string, expiry time.Time) error {
	u, ok := r.store.users[userID]
	if !ok {
		return ErrNotFound
	}
	if r.store.swapConflict || u.RefreshToken == nil || *u.RefreshToken != previous {
		return ErrRotationConflict
	}
	u.RefreshToken = &next
	u.RefreshTokenExpiry = &expiry
	return nil
}

type fakePermissionRepo struct {
	store *fakeStore
}

func (r *fakePermissionRepo) ListByUser(_ context.Context, userID string) ([]string, error) {
	return append([]string(nil), r.store.permissions[userID]...), nil
}

func (r *fakePermissionRepo) Replace(_ context.Context, userID string, codes []string) error {
	r.store.permissions[userID] = append([]string(nil), codes...)
	return nil
}

// ---------------------------------------------------------------------------

func newSessionFixture(t *testing.T, now func() time.Time) (*SessionService, *fakeStore, *TokenSigner) {
	t.Helper()
	hasher := NewCredentialHasher()
	signer, err := NewTokenSigner(testSignerConfig(), WithSignerClock(now))
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}
	store := newFakeStore()
	svc, err := NewSessionService(hasher, signer, store.uow(), WithSessionClock(now))
	if err != nil {
		t.Fatalf("NewSessionService: %v", err)
	}
	return svc, store, signer
}

func seedUser(t *testing.T, store *fakeStore, password string, active bool) *UserAccount {
	t.Helper()
	hash, err := NewCredentialHasher().Hash(password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	u := &UserAccount{
		ID:             "user-1",
		LoginName:      "jdoe",
		FullName:       "J. Doe",
		CredentialHash: hash,
		IsActive:       active,
	}
	store.add(u)
	store.permissions[u.ID] = []string{PermBookmarksView, PermSnippetsView}
	return u
}

func TestLoginSuccess(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, store, signer := newSessionFixture(t, func() time.Time { return now })
	seedUser(t, store, "s3cret", true)

	session, err := svc.Login(context.Background(), " jdoe ", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if session.Token == "" || session.RefreshToken == "" {
		t.Fatal("expected a token pair")
	}
	if want := now.Add(signer.RefreshTTL()); !session.RefreshTokenExpires.Equal(want) {
		t.Fatalf("refresh expiry = %v, want %v", session.RefreshTokenExpires, want)
	}

	claims, err := signer.ExtractPrincipal(session.Token)
	if err != nil {
		t.Fatalf("ExtractPrincipal: %v", err)
	}
	if claims.UserID() != "user-1" || claims.LoginName != "jdoe" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if len(claims.Permissions) != 2 {
		t.Fatalf("expected granted permissions in claims, got %v", claims.Permissions)
	}

	stored := store.users["user-1"]
	if !stored.HasActiveRefreshToken() || *stored.RefreshToken != session.RefreshToken {
		t.Fatal("refresh token was not persisted")
	}
	if store.commits != 1 {
		t.Fatalf("expected exactly one commit, got %d", store.commits)
	}
}

func TestLoginFailures(t *testing.T) {
	now := time.Now().UTC()
	svc, store, _ := newSessionFixture(t, func() time.Time { return now })
	seedUser(t, store, "s3cret", true)

	cases := []struct {
		name     string
		login    string
		password string
	}{
		{"unknown user", "nobody", "s3cret"},
		{"wrong password", "jdoe", "wrong"},
		{"blank login", "  ", "s3cret"},
		{"blank password", "jdoe", ""},
	}
	for _, tc := range cases {
		if _, err := svc.Login(context.Background(), tc.login, tc.password); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("%s: expected ErrInvalidCredentials, got %v", tc.name, err)
		}
	}
	if store.commits != 0 {
		t.Fatalf("failed logins committed %d times", store.commits)
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	now := time.Now().UTC()
	svc, store, _ := newSessionFixture(t, func() time.Time { return now })
	seedUser(t, store, "s3cret", false)

	if _, err := svc.Login(context.Background(), "jdoe", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for inactive account, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, store, _ := newSessionFixture(t, func() time.Time { return clock })
	seedUser(t, store, "s3cret", true)

	first, err := svc.Login(context.Background(), "jdoe", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	clock = clock.Add(5 * time.Minute)

	second, err := svc.Refresh(context.Background(), first.Token, first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// The superseded refresh token is dead from this point on.
	if _, err := svc.Refresh(context.Background(), first.Token, first.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("stale refresh token accepted: %v", err)
	}
}

func TestRefreshAcceptsExpiredAccessToken(t *testing.T) {
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := issued
	svc, store, _ := newSessionFixture(t, func() time.Time { return clock })
	seedUser(t, store, "s3cret", true)

	session, err := svc.Login(context.Background(), "jdoe", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Jump well past the access TTL but inside the refresh window.
	clock = issued.Add(2 * time.Hour)

	rotated, err := svc.Refresh(context.Background(), session.Token, session.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh with expired access token: %v", err)
	}
	if rotated.Token == "" {
		t.Fatal("expected a fresh access token")
	}
}

func TestRefreshFailures(t *testing.T) {
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := issued
	svc, store, signer := newSessionFixture(t, func() time.Time { return clock })
	user := seedUser(t, store, "s3cret", true)

	session, err := svc.Login(context.Background(), "jdoe", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := svc.Refresh(context.Background(), "not-a-token", session.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage access token: expected ErrInvalidToken, got %v", err)
	}
	if _, err := svc.Refresh(context.Background(), session.Token, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("blank refresh token: expected ErrInvalidToken, got %v", err)
	}
	if _, err := svc.Refresh(context.Background(), session.Token, "some-other-value"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("mismatched refresh token: expected ErrInvalidToken, got %v", err)
	}

	// Past the refresh window.
	clock = issued.Add(signer.RefreshTTL() + time.Minute)
	if _, err := svc.Refresh(context.Background(), session.Token, session.RefreshToken); !errors.Is(err, ErrRefreshTokenExpired) {
		t.Fatalf("expected ErrRefreshTokenExpired, got %v", err)
	}
	clock = issued

	// No server-side session at all.
	store.users[user.ID].RefreshToken = nil
	store.users[user.ID].RefreshTokenExpiry = nil
	if _, err := svc.Refresh(context.Background(), session.Token, session.RefreshToken); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}

	// Deactivated account.
	tok := session.RefreshToken
	exp := issued.Add(time.Hour)
	store.users[user.ID].RefreshToken = &tok
	store.users[user.ID].RefreshTokenExpiry = &exp
	store.users[user.ID].IsActive = false
	if _, err := svc.Refresh(context.Background(), session.Token, session.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for inactive account, got %v", err)
	}
}

func TestRefreshRotationConflict(t *testing.T) {
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, store, _ := newSessionFixture(t, func() time.Time { return issued })
	seedUser(t, store, "jdoe-pass", true)

	session, err := svc.Login(context.Background(), "jdoe", "jdoe-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// A concurrent refresh commits between this call's read and its swap.
	store.swapConflict = true

	if _, err := svc.Refresh(context.Background(), session.Token, session.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken on rotation conflict, got %v", err)
	}
	if store.commits != 1 {
		t.Fatalf("conflicting refresh committed; commits = %d", store.commits)
	}
}
