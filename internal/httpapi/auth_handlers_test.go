package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"notabene.org/internal/auth"
	"notabene.org/internal/obs"
	"notabene.org/internal/records"
)

func init() {
	obs.Init()
}

func testSigner(t *testing.T) *auth.TokenSigner {
	t.Helper()
	signer, err := auth.NewTokenSigner(auth.SignerConfig{
		Secret:   "handler-test-secret",
		Issuer:   "notabene-test",
		Audience: "notabene-clients",
	})
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}
	return signer
}

type stubSessions struct {
	session auth.Session
	err     error

	gotLogin    string
	gotPassword string
	gotToken    string
	gotRefresh  string
}

func (s *stubSessions) Login(_ context.Context, loginName, password string) (auth.Session, error) {
	s.gotLogin, s.gotPassword = loginName, password
	return s.session, s.err
}

func (s *stubSessions) Refresh(_ context.Context, accessToken, refreshToken string) (auth.Session, error) {
	s.gotToken, s.gotRefresh = accessToken, refreshToken
	return s.session, s.err
}

func newTestAPI(t *testing.T, deps Deps) *API {
	t.Helper()
	if deps.Verifier == nil {
		deps.Verifier = testSigner(t)
	}
	return New(ReadyProbe{}, "test", deps, Options{RateBurst: 1000, RatePerSecond: 1000})
}

func bearerFor(t *testing.T, signer *auth.TokenSigner, permissions ...string) string {
	t.Helper()
	token, _, err := signer.Build(&auth.UserAccount{
		ID:        "user-1",
		LoginName: "jdoe",
		IsActive:  true,
	}, permissions)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return "Bearer " + token
}

// counterValue scrapes the API's own metrics endpoint and returns the value
// of one series, or 0 when it has not been observed yet.
func counterValue(t *testing.T, api *API, series string) float64 {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics scrape status = %d", rec.Code)
	}
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if !strings.HasPrefix(line, series+" ") {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, series)), 64)
		if err != nil {
			t.Fatalf("parse %s: %v", series, err)
		}
		return v
	}
	return 0
}

func postJSON(t *testing.T, api *API, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func TestLoginSuccessEnvelope(t *testing.T) {
	expires := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	sessions := &stubSessions{session: auth.Session{
		Token:               "jwt-token",
		RefreshToken:        "refresh-token",
		RefreshTokenExpires: expires,
	}}
	api := newTestAPI(t, Deps{Sessions: sessions})

	body := strings.NewReader(`{"loginName":"jdoe","password":"s3cret"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", body)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token               string    `json:"token"`
		RefreshToken        string    `json:"refreshToken"`
		RefreshTokenExpires time.Time `json:"refreshTokenExpires"`
		Succeeded           bool      `json:"succeeded"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Succeeded || resp.Token != "jwt-token" || resp.RefreshToken != "refresh-token" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !resp.RefreshTokenExpires.Equal(expires) {
		t.Fatalf("expiry = %v, want %v", resp.RefreshTokenExpires, expires)
	}
	if sessions.gotLogin != "jdoe" || sessions.gotPassword != "s3cret" {
		t.Fatalf("service saw %q/%q", sessions.gotLogin, sessions.gotPassword)
	}
}

func TestLoginFailureEnvelope(t *testing.T) {
	sessions := &stubSessions{err: auth.ErrInvalidCredentials}
	api := newTestAPI(t, Deps{Sessions: sessions})

	body := strings.NewReader(`{"loginName":"jdoe","password":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", body)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var resp struct {
		Messages  []string `json:"messages"`
		Succeeded bool     `json:"succeeded"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Succeeded || len(resp.Messages) != 1 {
		t.Fatalf("unexpected failure envelope: %+v", resp)
	}
	// The message never reveals which of the two checks failed.
	if resp.Messages[0] != "invalid login name or password" {
		t.Fatalf("message = %q", resp.Messages[0])
	}
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	api := newTestAPI(t, Deps{Sessions: &stubSessions{}})

	for _, body := range []string{"", "{", `{"unknown":"field"}`} {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(body))
		rec := httptest.NewRecorder()
		api.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestLoginMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t, Deps{Sessions: &stubSessions{}})
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/login", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestRefreshFailureMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{auth.ErrInvalidToken, http.StatusUnauthorized},
		{auth.ErrNoActiveSession, http.StatusUnauthorized},
		{auth.ErrRefreshTokenExpired, http.StatusUnauthorized},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		api := newTestAPI(t, Deps{Sessions: &stubSessions{err: tc.err}})
		body := strings.NewReader(`{"token":"t","refreshToken":"r"}`)
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", body)
		rec := httptest.NewRecorder()
		api.Handler().ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("%v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
		var resp struct {
			Succeeded bool `json:"succeeded"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Succeeded {
			t.Errorf("%v: succeeded should be false", tc.err)
		}
	}
}

func TestRefreshSuccess(t *testing.T) {
	sessions := &stubSessions{session: auth.Session{
		Token:               "new-jwt",
		RefreshToken:        "new-refresh",
		RefreshTokenExpires: time.Now().Add(time.Hour),
	}}
	api := newTestAPI(t, Deps{Sessions: sessions})

	body := strings.NewReader(`{"token":"old-jwt","refreshToken":"old-refresh"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", body)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if sessions.gotToken != "old-jwt" || sessions.gotRefresh != "old-refresh" {
		t.Fatalf("service saw %q/%q", sessions.gotToken, sessions.gotRefresh)
	}
}

func TestLoginOutcomeCounters(t *testing.T) {
	const (
		okSeries     = `auth_logins_total{result="ok"}`
		deniedSeries = `auth_logins_total{result="invalid_credentials"}`
	)
	sessions := &stubSessions{session: auth.Session{
		Token:               "jwt-token",
		RefreshToken:        "refresh-token",
		RefreshTokenExpires: time.Now().Add(time.Hour),
	}}
	api := newTestAPI(t, Deps{Sessions: sessions})

	okBefore := counterValue(t, api, okSeries)
	deniedBefore := counterValue(t, api, deniedSeries)

	if rec := postJSON(t, api, "/v1/auth/login", `{"loginName":"jdoe","password":"pw"}`); rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	if got := counterValue(t, api, okSeries); got != okBefore+1 {
		t.Fatalf("%s = %v, want %v", okSeries, got, okBefore+1)
	}

	sessions.err = auth.ErrInvalidCredentials
	if rec := postJSON(t, api, "/v1/auth/login", `{"loginName":"jdoe","password":"wrong"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("login status = %d", rec.Code)
	}
	if got := counterValue(t, api, deniedSeries); got != deniedBefore+1 {
		t.Fatalf("%s = %v, want %v", deniedSeries, got, deniedBefore+1)
	}
}

func TestRefreshOutcomeCounters(t *testing.T) {
	const (
		okSeries      = `auth_token_refreshes_total{result="ok"}`
		invalidSeries = `auth_token_refreshes_total{result="invalid_token"}`
	)
	sessions := &stubSessions{session: auth.Session{
		Token:               "new-jwt",
		RefreshToken:        "new-refresh",
		RefreshTokenExpires: time.Now().Add(time.Hour),
	}}
	api := newTestAPI(t, Deps{Sessions: sessions})

	okBefore := counterValue(t, api, okSeries)
	invalidBefore := counterValue(t, api, invalidSeries)

	if rec := postJSON(t, api, "/v1/auth/refresh", `{"token":"t","refreshToken":"r"}`); rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d", rec.Code)
	}
	if got := counterValue(t, api, okSeries); got != okBefore+1 {
		t.Fatalf("%s = %v, want %v", okSeries, got, okBefore+1)
	}

	sessions.err = auth.ErrInvalidToken
	if rec := postJSON(t, api, "/v1/auth/refresh", `{"token":"t","refreshToken":"stale"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh status = %d", rec.Code)
	}
	if got := counterValue(t, api, invalidSeries); got != invalidBefore+1 {
		t.Fatalf("%s = %v, want %v", invalidSeries, got, invalidBefore+1)
	}
}

// recordServiceStub satisfies RecordService; tests override the behavior
// they exercise through the function fields.
type recordServiceStub struct {
	bookmarks []*records.Bookmark
}

func (s *recordServiceStub) CreateLookupType(context.Context, string, string, string) (*records.LookupType, error) {
	return nil, records.ErrNotFound
}
func (s *recordServiceStub) GetLookupType(context.Context, string) (*records.LookupType, error) {
	return nil, records.ErrNotFound
}
func (s *recordServiceStub) ListLookupTypes(context.Context) ([]*records.LookupType, error) {
	return nil, nil
}
func (s *recordServiceStub) UpdateLookupType(context.Context, string, string, string, string) (*records.LookupType, error) {
	return nil, records.ErrNotFound
}
func (s *recordServiceStub) DeleteLookupType(context.Context, string) error {
	return records.ErrNotFound
}
func (s *recordServiceStub) CreateLookup(context.Context, string, string, string, string) (*records.Lookup, error) {
	return nil, records.ErrNotFound
}
func (s *recordServiceStub) ListLookups(context.Context, string) ([]*records.Lookup, error) {
	return nil, nil
}
func (s *recordServiceStub) UpdateLookup(context.Context, string, string, string, string) (*records.Lookup, error) {
	return nil, records.ErrNotFound
}
func (s *recordServiceStub) DeleteLookup(context.Context, string) error { return records.ErrNotFound }
func (s *recordServiceStub) CreateBookmark(_ context.Context, actor, title, url, description string) (*records.Bookmark, error) {
	b := &records.Bookmark{ID: "bm-1", Title: title, URL: url, Description: description}
	b.CreatedBy = actor
	s.bookmarks = append(s.bookmarks, b)
	return b, nil
}
func (s *recordServiceStub) GetBookmark(_ context.Context, id string) (*records.Bookmark, error) {
	for _, b := range s.bookmarks {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, records.ErrNotFound
}
func (s *recordServiceStub) ListBookmarks(context.Context) ([]*records.Bookmark, error) {
	return s.bookmarks, nil
}
func (s *recordServiceStub) UpdateBookmark(context.Context, string, string, string, string, string) (*records.Bookmark, error) {
	return nil, records.ErrNotFound
}
func (s *recordServiceStub) DeleteBookmark(context.Context, string) error {
	return records.ErrNotFound
}
func (s *recordServiceStub) CreateSnippet(context.Context, string, string, string, string, string) (*records.Snippet, error) {
	return nil, records.ErrNotFound
}
func (s *recordServiceStub) GetSnippet(context.Context, string) (*records.Snippet, error) {
	return nil, records.ErrNotFound
}
func (s *recordServiceStub) ListSnippets(context.Context) ([]*records.Snippet, error) {
	return nil, nil
}
func (s *recordServiceStub) UpdateSnippet(context.Context, string, string, string, string, string, string) (*records.Snippet, error) {
	return nil, records.ErrNotFound
}
func (s *recordServiceStub) DeleteSnippet(context.Context, string) error {
	return records.ErrNotFound
}

func TestBookmarkCreateStampsActor(t *testing.T) {
	signer := testSigner(t)
	stub := &recordServiceStub{}
	api := newTestAPI(t, Deps{Verifier: signer, Records: stub})

	body := strings.NewReader(`{"title":"Go blog","url":"https://go.dev/blog"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/bookmarks", body)
	req.Header.Set(authHeader, bearerFor(t, signer, auth.PermBookmarksCreate))
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/v1/bookmarks/bm-1" {
		t.Fatalf("Location = %q", loc)
	}
	if len(stub.bookmarks) != 1 || stub.bookmarks[0].CreatedBy != "jdoe" {
		t.Fatalf("actor not taken from the principal: %+v", stub.bookmarks)
	}
}

func TestBookmarkNotFound(t *testing.T) {
	signer := testSigner(t)
	api := newTestAPI(t, Deps{Verifier: signer, Records: &recordServiceStub{}})

	req := httptest.NewRequest(http.MethodGet, "/v1/bookmarks/ghost", nil)
	req.Header.Set(authHeader, bearerFor(t, signer, auth.PermBookmarksView))
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
