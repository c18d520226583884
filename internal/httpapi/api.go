package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"notabene.org/internal/auth"
	"notabene.org/internal/obs"
	"notabene.org/internal/records"
)

// ReadyProbe reports readiness. Every operation needs the database, so a
// missing pool means the service cannot serve traffic.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return errors.New("database not configured")
	}
	return rp.DB.PingContext(ctx)
}

// TokenVerifier validates bearer tokens for the authn middleware.
type TokenVerifier interface {
	ExtractPrincipal(token string) (*auth.SessionClaims, error)
}

// SessionService is the login/refresh surface consumed by the auth handlers.
type SessionService interface {
	Login(ctx context.Context, loginName, password string) (auth.Session, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (auth.Session, error)
}

// AccountService is the user management surface consumed by the handlers.
type AccountService interface {
	Create(ctx context.Context, actor string, in auth.NewAccount) (*auth.UserAccount, error)
	Get(ctx context.Context, id string) (*auth.UserAccount, error)
	List(ctx context.Context) ([]*auth.UserAccount, error)
	Update(ctx context.Context, actor, id string, upd auth.AccountUpdate) (*auth.UserAccount, error)
	Delete(ctx context.Context, id string) error
	SetPassword(ctx context.Context, actor, id, password string) error
	Permissions(ctx context.Context, id string) ([]string, error)
	ReplacePermissions(ctx context.Context, actor, id string, codes []string) error
	Catalog() []auth.PermissionCategory
}

// RecordService is the record-module surface consumed by the handlers.
type RecordService interface {
	CreateLookupType(ctx context.Context, actor, name, description string) (*records.LookupType, error)
	GetLookupType(ctx context.Context, id string) (*records.LookupType, error)
	ListLookupTypes(ctx context.Context) ([]*records.LookupType, error)
	UpdateLookupType(ctx context.Context, actor, id, name, description string) (*records.LookupType, error)
	DeleteLookupType(ctx context.Context, id string) error

	CreateLookup(ctx context.Context, actor, lookupTypeID, name, value string) (*records.Lookup, error)
	ListLookups(ctx context.Context, lookupTypeID string) ([]*records.Lookup, error)
	UpdateLookup(ctx context.Context, actor, id, name, value string) (*records.Lookup, error)
	DeleteLookup(ctx context.Context, id string) error

	CreateBookmark(ctx context.Context, actor, title, url, description string) (*records.Bookmark, error)
	GetBookmark(ctx context.Context, id string) (*records.Bookmark, error)
	ListBookmarks(ctx context.Context) ([]*records.Bookmark, error)
	UpdateBookmark(ctx context.Context, actor, id, title, url, description string) (*records.Bookmark, error)
	DeleteBookmark(ctx context.Context, id string) error

	CreateSnippet(ctx context.Context, actor, title, language, body, description string) (*records.Snippet, error)
	GetSnippet(ctx context.Context, id string) (*records.Snippet, error)
	ListSnippets(ctx context.Context) ([]*records.Snippet, error)
	UpdateSnippet(ctx context.Context, actor, id, title, language, body, description string) (*records.Snippet, error)
	DeleteSnippet(ctx context.Context, id string) error
}

// Deps bundles the services the HTTP layer fronts.
type Deps struct {
	Verifier TokenVerifier
	Sessions SessionService
	Accounts AccountService
	Records  RecordService
}

// Options tunes the middleware stack.
type Options struct {
	RateBurst     int
	RatePerSecond int
	MaxBodyBytes  int64
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	deps       Deps
	opts       Options
}

func New(rp ReadyProbe, version string, deps Deps, opts Options) *API {
	if opts.RateBurst <= 0 {
		opts.RateBurst = 20
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 10
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		deps:       deps,
		opts:       opts,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// sessions
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)

	// user accounts
	a.mux.HandleFunc("/v1/users", a.handleUsersCollection)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)
	a.mux.HandleFunc("/v1/permissions", a.handlePermissionCatalog)

	// record modules
	a.mux.HandleFunc("/v1/lookup-types", a.handleLookupTypesCollection)
	a.mux.HandleFunc("/v1/lookup-types/", a.handleLookupTypeResource)
	a.mux.HandleFunc("/v1/lookups/", a.handleLookupResource)
	a.mux.HandleFunc("/v1/bookmarks", a.handleBookmarksCollection)
	a.mux.HandleFunc("/v1/bookmarks/", a.handleBookmarkResource)
	a.mux.HandleFunc("/v1/snippets", a.handleSnippetsCollection)
	a.mux.HandleFunc("/v1/snippets/", a.handleSnippetResource)

	// anything unrouted lands here
	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully assembled http.Handler: metrics around the
// whole stack, then request ids, logging, hardening, limits, and bearer
// authentication in front of the mux.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, a.opts.MaxBodyBytes)
	h = RateLimit(h, a.opts.RateBurst, a.opts.RatePerSecond)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "notabene-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "notabene-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
