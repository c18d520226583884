package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"notabene.org/internal/auth"
	"notabene.org/internal/records"
)

// ErrFinished is returned when a coordinator is used after Commit,
// Rollback, or Dispose.
var ErrFinished = errors.New("store: unit of work already finished")

// ErrNoDatabase is returned when a coordinator is opened without a
// configured pool, typically because db.dsn was left unset.
var ErrNoDatabase = errors.New("store: no database configured")

// Coordinator is the unit of work. It owns one pooled connection and at
// most one transaction, and caches exactly one repository instance per
// entity kind for its lifetime. A coordinator serves a single logical
// operation; it is not safe for concurrent use.
//
// It satisfies both auth.UnitOfWork and records.UnitOfWork.
type Coordinator struct {
	db     *sql.DB
	binder *Binder

	conn  *sql.Conn
	tx    *sql.Tx
	repos map[Kind]any
	done  bool
}

var (
	_ auth.UnitOfWork    = (*Coordinator)(nil)
	_ records.UnitOfWork = (*Coordinator)(nil)
)

// NewCoordinator creates a unit of work over the pool. Nothing is acquired
// until the first repository is requested.
func NewCoordinator(db *sql.DB, binder *Binder) *Coordinator {
	return &Coordinator{
		db:     db,
		binder: binder,
		repos:  make(map[Kind]any),
	}
}

// Begin acquires the connection and starts the transaction. It is
// idempotent: a second call on an open coordinator does nothing.
func (c *Coordinator) Begin(ctx context.Context) error {
	if c.done {
		return ErrFinished
	}
	if c.tx != nil {
		return nil
	}
	if c.db == nil {
		return ErrNoDatabase
	}
	if c.conn == nil {
		conn, err := c.db.Conn(ctx)
		if err != nil {
			return fmt.Errorf("acquire connection: %w", err)
		}
		c.conn = conn
	}
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	c.tx = tx
	return nil
}

// repository returns the cached instance for kind, constructing and
// caching it (and implicitly beginning the transaction) on first request.
func (c *Coordinator) repository(ctx context.Context, kind Kind) (any, error) {
	if c.done {
		return nil, ErrFinished
	}
	if repo, ok := c.repos[kind]; ok {
		return repo, nil
	}
	if err := c.Begin(ctx); err != nil {
		return nil, err
	}
	repo, err := c.binder.build(kind, c.tx)
	if err != nil {
		return nil, err
	}
	c.repos[kind] = repo
	return repo, nil
}

// Users returns the user account repository bound to this transaction.
func (c *Coordinator) Users(ctx context.Context) (auth.UserRepository, error) {
	repo, err := c.repository(ctx, KindUserAccount)
	if err != nil {
		return nil, err
	}
	r, ok := repo.(auth.UserRepository)
	if !ok {
		return nil, fmt.Errorf("store: kind %s bound to %T", KindUserAccount, repo)
	}
	return r, nil
}

// Permissions returns the permission grant repository.
func (c *Coordinator) Permissions(ctx context.Context) (auth.PermissionRepository, error) {
	repo, err := c.repository(ctx, KindUserPermission)
	if err != nil {
		return nil, err
	}
	r, ok := repo.(auth.PermissionRepository)
	if !ok {
		return nil, fmt.Errorf("store: kind %s bound to %T", KindUserPermission, repo)
	}
	return r, nil
}

// LookupTypes returns the lookup type repository.
func (c *Coordinator) LookupTypes(ctx context.Context) (records.LookupTypeRepository, error) {
	repo, err := c.repository(ctx, KindLookupType)
	if err != nil {
		return nil, err
	}
	r, ok := repo.(records.LookupTypeRepository)
	if !ok {
		return nil, fmt.Errorf("store: kind %s bound to %T", KindLookupType, repo)
	}
	return r, nil
}

// Lookups returns the lookup repository.
func (c *Coordinator) Lookups(ctx context.Context) (records.LookupRepository, error) {
	repo, err := c.repository(ctx, KindLookup)
	if err != nil {
		return nil, err
	}
	r, ok := repo.(records.LookupRepository)
	if !ok {
		return nil, fmt.Errorf("store: kind %s bound to %T", KindLookup, repo)
	}
	return r, nil
}

// Bookmarks returns the bookmark repository.
func (c *Coordinator) Bookmarks(ctx context.Context) (records.BookmarkRepository, error) {
	repo, err := c.repository(ctx, KindBookmark)
	if err != nil {
		return nil, err
	}
	r, ok := repo.(records.BookmarkRepository)
	if !ok {
		return nil, fmt.Errorf("store: kind %s bound to %T", KindBookmark, repo)
	}
	return r, nil
}

// Snippets returns the snippet repository.
func (c *Coordinator) Snippets(ctx context.Context) (records.SnippetRepository, error) {
	repo, err := c.repository(ctx, KindSnippet)
	if err != nil {
		return nil, err
	}
	r, ok := repo.(records.SnippetRepository)
	if !ok {
		return nil, fmt.Errorf("store: kind %s bound to %T", KindSnippet, repo)
	}
	return r, nil
}

// Commit commits the open transaction. Cleanup always runs, also when the
// commit itself fails, so the connection goes back to the pool.
func (c *Coordinator) Commit() error {
	if c.done {
		return ErrFinished
	}
	defer c.cleanup()
	if c.tx == nil {
		return nil
	}
	if err := c.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback rolls back the open transaction with the same cleanup
// guarantees as Commit.
func (c *Coordinator) Rollback() error {
	if c.done {
		return ErrFinished
	}
	defer c.cleanup()
	if c.tx == nil {
		return nil
	}
	if err := c.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Dispose abandons the unit of work: anything uncommitted is rolled back
// and the connection is released. Safe to defer and safe to call after
// Commit or Rollback.
func (c *Coordinator) Dispose() {
	if c.done {
		return
	}
	if c.tx != nil {
		_ = c.tx.Rollback()
	}
	c.cleanup()
}

func (c *Coordinator) cleanup() {
	c.tx = nil
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.repos = nil
	c.done = true
}
