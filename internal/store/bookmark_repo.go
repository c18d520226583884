package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"notabene.org/internal/records"
)

// BookmarkRepo persists saved links.
type BookmarkRepo struct {
	tx DBTX
}

var _ records.BookmarkRepository = (*BookmarkRepo)(nil)

func (r *BookmarkRepo) Create(ctx context.Context, b *records.Bookmark) error {
	_, err := r.tx.ExecContext(ctx,
		`insert into bookmarks(id, title, url, description, `+auditColumns+`)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		b.ID, b.Title, b.URL, b.Description,
		b.CreatedBy, b.CreatedOn, b.LastModifiedBy, b.LastModifiedOn,
	)
	if err != nil {
		return fmt.Errorf("insert bookmark: %w", err)
	}
	return nil
}

func (r *BookmarkRepo) FindByID(ctx context.Context, id string) (*records.Bookmark, error) {
	row := r.tx.QueryRowContext(ctx,
		`select id, title, url, description, `+auditColumns+` from bookmarks where id=$1`, id)
	var b records.Bookmark
	err := row.Scan(&b.ID, &b.Title, &b.URL, &b.Description,
		&b.CreatedBy, &b.CreatedOn, &b.LastModifiedBy, &b.LastModifiedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, records.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan bookmark: %w", err)
	}
	return &b, nil
}

func (r *BookmarkRepo) List(ctx context.Context) ([]*records.Bookmark, error) {
	rows, err := r.tx.QueryContext(ctx,
		`select id, title, url, description, `+auditColumns+` from bookmarks order by title`)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	var out []*records.Bookmark
	for rows.Next() {
		var b records.Bookmark
		if err := rows.Scan(&b.ID, &b.Title, &b.URL, &b.Description,
			&b.CreatedBy, &b.CreatedOn, &b.LastModifiedBy, &b.LastModifiedOn); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (r *BookmarkRepo) Update(ctx context.Context, b *records.Bookmark) error {
	res, err := r.tx.ExecContext(ctx,
		`update bookmarks
		 set title=$2, url=$3, description=$4, last_modified_by=$5, last_modified_on=$6
		 where id=$1`,
		b.ID, b.Title, b.URL, b.Description, b.LastModifiedBy, b.LastModifiedOn,
	)
	if err != nil {
		return fmt.Errorf("update bookmark: %w", err)
	}
	return expectOneRow(res, records.ErrNotFound)
}

func (r *BookmarkRepo) Delete(ctx context.Context, id string) error {
	res, err := r.tx.ExecContext(ctx, `delete from bookmarks where id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	return expectOneRow(res, records.ErrNotFound)
}
