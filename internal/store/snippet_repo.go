package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"notabene.org/internal/records"
)

// SnippetRepo persists stored code snippets.
type SnippetRepo struct {
	tx DBTX
}

var _ records.SnippetRepository = (*SnippetRepo)(nil)

func (r *SnippetRepo) Create(ctx context.Context, sn *records.Snippet) error {
	_, err := r.tx.ExecContext(ctx,
		`insert into snippets(id, title, language, body, description, `+auditColumns+`)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		sn.ID, sn.Title, sn.Language, sn.Body, sn.Description,
		sn.CreatedBy, sn.CreatedOn, sn.LastModifiedBy, sn.LastModifiedOn,
	)
	if err != nil {
		return fmt.Errorf("insert snippet: %w", err)
	}
	return nil
}

func (r *SnippetRepo) FindByID(ctx context.Context, id string) (*records.Snippet, error) {
	row := r.tx.QueryRowContext(ctx,
		`select id, title, language, body, description, `+auditColumns+` from snippets where id=$1`, id)
	var sn records.Snippet
	err := row.Scan(&sn.ID, &sn.Title, &sn.Language, &sn.Body, &sn.Description,
		&sn.CreatedBy, &sn.CreatedOn, &sn.LastModifiedBy, &sn.LastModifiedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, records.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan snippet: %w", err)
	}
	return &sn, nil
}

func (r *SnippetRepo) List(ctx context.Context) ([]*records.Snippet, error) {
	rows, err := r.tx.QueryContext(ctx,
		`select id, title, language, body, description, `+auditColumns+` from snippets order by title`)
	if err != nil {
		return nil, fmt.Errorf("list snippets: %w", err)
	}
	defer rows.Close()

	var out []*records.Snippet
	for rows.Next() {
		var sn records.Snippet
		if err := rows.Scan(&sn.ID, &sn.Title, &sn.Language, &sn.Body, &sn.Description,
			&sn.CreatedBy, &sn.CreatedOn, &sn.LastModifiedBy, &sn.LastModifiedOn); err != nil {
			return nil, fmt.Errorf("scan snippet: %w", err)
		}
		out = append(out, &sn)
	}
	return out, rows.Err()
}

func (r *SnippetRepo) Update(ctx context.Context, sn *records.Snippet) error {
	res, err := r.tx.ExecContext(ctx,
		`update snippets
		 set title=$2, language=$3, body=$4, description=$5, last_modified_by=$6, last_modified_on=$7
		 where id=$1`,
		sn.ID, sn.Title, sn.Language, sn.Body, sn.Description, sn.LastModifiedBy, sn.LastModifiedOn,
	)
	if err != nil {
		return fmt.Errorf("update snippet: %w", err)
	}
	return expectOneRow(res, records.ErrNotFound)
}

func (r *SnippetRepo) Delete(ctx context.Context, id string) error {
	res, err := r.tx.ExecContext(ctx, `delete from snippets where id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete snippet: %w", err)
	}
	return expectOneRow(res, records.ErrNotFound)
}
