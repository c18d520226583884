package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"notabene.org/internal/ids"
)

// Service exposes CRUD for the record modules. Each call opens one unit of
// work and commits it on success.
type Service struct {
	uow UnitOfWorkFunc
	now func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService wires the unit-of-work factory.
func NewService(uow UnitOfWorkFunc, opts ...ServiceOption) (*Service, error) {
	if uow == nil {
		return nil, errors.New("records: unit of work is required")
	}
	s := &Service{uow: uow, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) stamp(actor string) Audit {
	now := s.now().UTC()
	return Audit{
		CreatedBy:      actor,
		CreatedOn:      now,
		LastModifiedBy: actor,
		LastModifiedOn: now,
	}
}

func (s *Service) touch(a *Audit, actor string) {
	a.LastModifiedBy = actor
	a.LastModifiedOn = s.now().UTC()
}

// --- Lookup types ---------------------------------------------------------

func (s *Service) CreateLookupType(ctx context.Context, actor, name, description string) (*LookupType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: lookup type name is required", ErrInvalidInput)
	}
	lt := &LookupType{
		ID:          ids.New(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Audit:       s.stamp(actor),
	}

	work := s.uow()
	defer work.Dispose()

	repo, err := work.LookupTypes(ctx)
	if err != nil {
		return nil, err
	}
	if err := repo.Create(ctx, lt); err != nil {
		return nil, err
	}
	if err := work.Commit(); err != nil {
		return nil, err
	}
	return lt, nil
}

func (s *Service) GetLookupType(ctx context.Context, id string) (*LookupType, error) {
	work := s.uow()
	defer work.Dispose()

	repo, err := work.LookupTypes(ctx)
	if err != nil {
		return nil, err
	}
	lt, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := work.Commit(); err != nil {
		return nil, err
	}
	return lt, nil
}

func (s *Service) ListLookupTypes(ctx context.Context) ([]*LookupType, error) {
	work := s.uow()
	defer work.Dispose()

	repo, err := work.LookupTypes(ctx)
	if err != nil {
		return nil, err
	}
	list, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := work.Commit(); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Service) UpdateLookupType(ctx context.Context, actor, id, name, description string) (*LookupType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: lookup type name is required", ErrInvalidInput)
	}

	work := s.uow()
	defer work.Dispose()

	repo, err := work.LookupTypes(ctx)
	if err != nil {
		return nil, err
	}
	lt, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	lt.Name = name
	lt.Description = strings.TrimSpace(description)
	s.touch(&lt.Audit, actor)
	if err := repo.Update(ctx, lt); err != nil {
		return nil, err
	}
	if err := work.Commit(); err != nil {
		return nil, err
	}
	return lt, nil
}

// DeleteLookupType removes a type and all of its lookups atomically: both
// repositories run on the same transaction.
func (s *Service) DeleteLookupType(ctx context.Context, id string) error {
	work := s.uow()
	defer work.Dispose()

	lookups, err := work.Lookups(ctx)
	if err != nil {
		return err
	}
	if err := lookups.DeleteByType(ctx, id); err != nil {
		return err
	}
	types, err := work.LookupTypes(ctx)
	if err != nil {
		return err
	}
	if err := types.Delete(ctx, id); err != nil {
		return err
	}
	return work.Commit()
}

// --- Lookups --------------------------------------------------------------

func (s *Service) CreateLookup(ctx context.Context, actor, lookupTypeID, name, value string) (*Lookup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: lookup name is required", ErrInvalidInput)
	}

	work := s.uow()
	defer work.Dispose()

	// The parent type must exist; a dangling lookup is invalid input, not
	// a storage fault.
	types, err := work.LookupTypes(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := types.FindByID(ctx, lookupTypeID); err != nil {
		return nil, err
	}

	l := &Lookup{
		ID:           ids.New(),
		LookupTypeID: lookupTypeID,
		Name:         name,
		Value:        strings.TrimSpace(value),
		Audit:        s.stamp(actor),
	}
	repo, err := work.Lookups(ctx)
	if err != nil {
		return nil, err
	}
	if err := repo.Create(ctx, l); err != nil {
		return nil, err
	}
	if err := work.Commit(); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) ListLookups(ctx context.Context, lookupTypeID string) ([]*Lookup, error) {
	work := s.uow()
	defer work.Dispose()

	repo, err := work.Lookups(ctx)
	if err != nil {
		return nil, err
	}
	list, err := repo.ListByType(ctx, lookupTypeID)
	if err != nil {
		return nil, err
	}
	if err := work.Commit(); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Service) UpdateLookup(ctx context.Context, actor, id, name, value string) (*Lookup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: lookup name is required", ErrInvalidInput)
	}

	work := s.uow()
	defer work.Dispose()

	repo, err := work.Lookups(ctx)
	if err != nil {
		return nil, err
	}
	l, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	l.Name = name
	l.Value = strings.TrimSpace(value)
	s.touch(&l.Audit, actor)
	if err := repo.Update(ctx, l); err != nil {
		return nil, err
	}
	if err := work.Commit(); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) DeleteLookup(ctx context.Context, id string) error {
	work := s.uow()
	defer work.Dispose()

	repo, err := work.Lookups(ctx)
	if err != nil {
		return err
	}
	if err := repo.Delete(ctx, id); err != nil {
		return err
	}
	return work.Commit()
}

// --- Bookmarks ------------------------------------------------------------

func (s *Service) CreateBookmark(ctx context.Context, actor, title, url, description string) (*Bookmark, error) {
	title = strings.TrimSpace(title)
	url = strings.TrimSpace(url)
	if title == "" || url == "" {
		return nil, fmt.Errorf("%w: bookmark title and url are required", ErrInvalidInput)
	}
	b := &Bookmark{
		ID:          ids.New(),
		Title:       title,
		URL:         url,
		Description: strings.TrimSpace(description),
		Audit:       s.stamp(actor),
	}

	work := s.uow()
	defer work.Dispose()

	repo, err := work.Bookmarks(ctx)
	if err != nil {
		return nil, err
	}
	if err := repo.Create(ctx, b); err != nil {
		return nil, err
	}
	if err := work.Commit(); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) GetBookmark(ctx context.Context, id string) (*Bookmark, error) {
	work := s.uow()
	defer work.Dispose()

	repo, err := work.Bookmarks(ctx)
	if err != nil {
		return nil, err
	}
	b, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := work.Commit(); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) ListBookmarks(ctx context.Context) ([]*Bookmark, error) {
	work := s.uow()
	defer work.Dispose()

	repo, err := work.Bookmarks(ctx)
	if err != nil {
		return nil, err
	}
	list, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := work.Commit(); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Service) UpdateBookmark(ctx context.Context, actor, id, title, url, description string) (*Bookmark, error) {
	title = strings.TrimSpace(title)
	url = strings.TrimSpace(url)
	if title == "" || url == "" {
		return nil, fmt.Errorf("%w: bookmark title and url are required", ErrInvalidInput)
	}

	work := s.uow()
	defer work.Dispose()

	repo, err := work.Bookmarks(ctx)
	if err != nil {
		return nil, err
	}
	b, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Title = title
	b.URL = url
	b.Description = strings.TrimSpace(description)
	s.touch(&b.Audit, actor)
	if err := repo.Update(ctx, b); err != nil {
		return nil, err
	}
	if err := work.Commit(); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) DeleteBookmark(ctx context.Context, id string) error {
	work := s.uow()
	defer work.Dispose()

	repo, err := work.Bookmarks(ctx)
	if err != nil {
		return err
	}
	if err := repo.Delete(ctx, id); err != nil {
		return err
	}
	return work.Commit()
}

// --- Snippets -------------------------------------------------------------

func (s *Service) CreateSnippet(ctx context.Context, actor, title, language, body, description string) (*Snippet, error) {
	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: snippet title and body are required", ErrInvalidInput)
	}
	sn := &Snippet{
		ID:          ids.New(),
		Title:       title,
		Language:    strings.TrimSpace(language),
		Body:        body,
		Description: strings.TrimSpace(description),
		Audit:       s.stamp(actor),
	}

	work := s.uow()
	defer work.Dispose()

	repo, err := work.Snippets(ctx)
	if err != nil {
		return nil, err
	}
	if err := repo.Create(ctx, sn); err != nil {
		return nil, err
	}
	if err := work.Commit(); err != nil {
		return nil, err
	}
	return sn, nil
}

func (s *Service) GetSnippet(ctx context.Context, id string) (*Snippet, error) {
	work := s.uow()
	defer work.Dispose()

	repo, err := work.Snippets(ctx)
	if err != nil {
		return nil, err
	}
	sn, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := work.Commit(); err != nil {
		return nil, err
	}
	return sn, nil
}

func (s *Service) ListSnippets(ctx context.Context) ([]*Snippet, error) {
	work := s.uow()
	defer work.Dispose()

	repo, err := work.Snippets(ctx)
	if err != nil {
		return nil, err
	}
	list, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := work.Commit(); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Service) UpdateSnippet(ctx context.Context, actor, id, title, language, body, description string) (*Snippet, error) {
	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: snippet title and body are required", ErrInvalidInput)
	}

	work := s.uow()
	defer work.Dispose()

	repo, err := work.Snippets(ctx)
	if err != nil {
		return nil, err
	}
	sn, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sn.Title = title
	sn.Language = strings.TrimSpace(language)
	sn.Body = body
	sn.Description = strings.TrimSpace(description)
	s.touch(&sn.Audit, actor)
	if err := repo.Update(ctx, sn); err != nil {
		return nil, err
	}
	if err := work.Commit(); err != nil {
		return nil, err
	}
	return sn, nil
}

func (s *Service) DeleteSnippet(ctx context.Context, id string) error {
	work := s.uow()
	defer work.Dispose()

	repo, err := work.Snippets(ctx)
	if err != nil {
		return err
	}
	if err := repo.Delete(ctx, id); err != nil {
		return err
	}
	return work.Commit()
}
