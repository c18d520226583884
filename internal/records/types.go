// Package records holds the record-keeping feature modules: reference
// lookup data, bookmarked links, and code snippets. The services here are
// deliberately thin; they exist to run CRUD through the shared unit of
// work.
package records

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("records: not found")
	ErrInvalidInput = errors.New("records: invalid input")
)

// Audit is the create/modify bookkeeping shared by every record type.
type Audit struct {
	CreatedBy      string
	CreatedOn      time.Time
	LastModifiedBy string
	LastModifiedOn time.Time
}

// LookupType is a category of reference data (e.g. "Country").
type LookupType struct {
	ID          string
	Name        string
	Description string
	Audit
}

// Lookup is a single reference value inside a lookup type.
type Lookup struct {
	ID           string
	LookupTypeID string
	Name         string
	Value        string
	Audit
}

// Bookmark is a saved link.
type Bookmark struct {
	ID          string
	Title       string
	URL         string
	Description string
	Audit
}

// Snippet is a stored piece of code.
type Snippet struct {
	ID          string
	Title       string
	Language    string
	Body        string
	Description string
	Audit
}

type LookupTypeRepository interface {
	Create(ctx context.Context, lt *LookupType) error
	FindByID(ctx context.Context, id string) (*LookupType, error)
	List(ctx context.Context) ([]*LookupType, error)
	Update(ctx context.Context, lt *LookupType) error
	Delete(ctx context.Context, id string) error
}

type LookupRepository interface {
	Create(ctx context.Context, l *Lookup) error
	FindByID(ctx context.Context, id string) (*Lookup, error)
	ListByType(ctx context.Context, lookupTypeID string) ([]*Lookup, error)
	Update(ctx context.Context, l *Lookup) error
	Delete(ctx context.Context, id string) error
	DeleteByType(ctx context.Context, lookupTypeID string) error
}

type BookmarkRepository interface {
	Create(ctx context.Context, b *Bookmark) error
	FindByID(ctx context.Context, id string) (*Bookmark, error)
	List(ctx context.Context) ([]*Bookmark, error)
	Update(ctx context.Context, b *Bookmark) error
	Delete(ctx context.Context, id string) error
}

type SnippetRepository interface {
	Create(ctx context.Context, sn *Snippet) error
	FindByID(ctx context.Context, id string) (*Snippet, error)
	List(ctx context.Context) ([]*Snippet, error)
	Update(ctx context.Context, sn *Snippet) error
	Delete(ctx context.Context, id string) error
}

// UnitOfWork scopes repository access to one transaction; all repositories
// obtained from it share that transaction.
type UnitOfWork interface {
	LookupTypes(ctx context.Context) (LookupTypeRepository, error)
	Lookups(ctx context.Context) (LookupRepository, error)
	Bookmarks(ctx context.Context) (BookmarkRepository, error)
	Snippets(ctx context.Context) (SnippetRepository, error)
	Commit() error
	Rollback() error
	Dispose()
}

// UnitOfWorkFunc opens a fresh unit of work.
type UnitOfWorkFunc func() UnitOfWork
