// Package store implements the transactional persistence layer: a
// per-request unit of work (Coordinator) that binds one connection and one
// transaction to lazily created, type-keyed repositories (Binder).
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is the statement surface repositories run against. *sql.Tx
// satisfies it; repositories never see the pool directly.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Kind identifies an entity type in the binder registry. The set is
// closed and declared here; there is no runtime type discovery.
type Kind string

const (
	KindUserAccount    Kind = "user_account"
	KindUserPermission Kind = "user_permission"
	KindLookupType     Kind = "lookup_type"
	KindLookup         Kind = "lookup"
	KindBookmark       Kind = "bookmark"
	KindSnippet        Kind = "snippet"
)

// Constructor builds a repository bound to the given transaction.
type Constructor func(tx DBTX) any

// Binder maps entity kinds to repository constructors. It is assembled
// once at startup and shared by every coordinator.
type Binder struct {
	constructors map[Kind]Constructor
}

// NewBinder returns a binder pre-registered with every repository this
// service knows about.
func NewBinder() *Binder {
	b := &Binder{constructors: make(map[Kind]Constructor)}
	// Registration of the built-in kinds cannot collide.
	must := func(k Kind, c Constructor) {
		if err := b.Register(k, c); err != nil {
			panic(err)
		}
	}
	must(KindUserAccount, func(tx DBTX) any { return &UserAccountRepo{tx: tx} })
	must(KindUserPermission, func(tx DBTX) any { return &UserPermissionRepo{tx: tx} })
	must(KindLookupType, func(tx DBTX) any { return &LookupTypeRepo{tx: tx} })
	must(KindLookup, func(tx DBTX) any { return &LookupRepo{tx: tx} })
	must(KindBookmark, func(tx DBTX) any { return &BookmarkRepo{tx: tx} })
	must(KindSnippet, func(tx DBTX) any { return &SnippetRepo{tx: tx} })
	return b
}

// Register adds a constructor for kind; a duplicate registration is an
// error.
func (b *Binder) Register(kind Kind, c Constructor) error {
	if c == nil {
		return fmt.Errorf("store: nil constructor for kind %s", kind)
	}
	if _, exists := b.constructors[kind]; exists {
		return fmt.Errorf("store: kind %s already registered", kind)
	}
	b.constructors[kind] = c
	return nil
}

func (b *Binder) build(kind Kind, tx DBTX) (any, error) {
	c, ok := b.constructors[kind]
	if !ok {
		return nil, fmt.Errorf("store: no repository registered for kind %s", kind)
	}
	return c(tx), nil
}
