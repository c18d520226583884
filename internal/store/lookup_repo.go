package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"notabene.org/internal/records"
)

const auditColumns = `created_by, created_on, last_modified_by, last_modified_on`

// LookupTypeRepo persists reference data categories.
type LookupTypeRepo struct {
	tx DBTX
}

var _ records.LookupTypeRepository = (*LookupTypeRepo)(nil)

func (r *LookupTypeRepo) Create(ctx context.Context, lt *records.LookupType) error {
	_, err := r.tx.ExecContext(ctx,
		`insert into lookup_types(id, name, description, `+auditColumns+`)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		lt.ID, lt.Name, lt.Description,
		lt.CreatedBy, lt.CreatedOn, lt.LastModifiedBy, lt.LastModifiedOn,
	)
	if err != nil {
		return fmt.Errorf("insert lookup type: %w", err)
	}
	return nil
}

func (r *LookupTypeRepo) FindByID(ctx context.Context, id string) (*records.LookupType, error) {
	row := r.tx.QueryRowContext(ctx,
		`select id, name, description, `+auditColumns+` from lookup_types where id=$1`, id)
	var lt records.LookupType
	err := row.Scan(&lt.ID, &lt.Name, &lt.Description,
		&lt.CreatedBy, &lt.CreatedOn, &lt.LastModifiedBy, &lt.LastModifiedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, records.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan lookup type: %w", err)
	}
	return &lt, nil
}

func (r *LookupTypeRepo) List(ctx context.Context) ([]*records.LookupType, error) {
	rows, err := r.tx.QueryContext(ctx,
		`select id, name, description, `+auditColumns+` from lookup_types order by name`)
	if err != nil {
		return nil, fmt.Errorf("list lookup types: %w", err)
	}
	defer rows.Close()

	var out []*records.LookupType
	for rows.Next() {
		var lt records.LookupType
		if err := rows.Scan(&lt.ID, &lt.Name, &lt.Description,
			&lt.CreatedBy, &lt.CreatedOn, &lt.LastModifiedBy, &lt.LastModifiedOn); err != nil {
			return nil, fmt.Errorf("scan lookup type: %w", err)
		}
		out = append(out, &lt)
	}
	return out, rows.Err()
}

func (r *LookupTypeRepo) Update(ctx context.Context, lt *records.LookupType) error {
	res, err := r.tx.ExecContext(ctx,
		`update lookup_types
		 set name=$2, description=$3, last_modified_by=$4, last_modified_on=$5
		 where id=$1`,
		lt.ID, lt.Name, lt.Description, lt.LastModifiedBy, lt.LastModifiedOn,
	)
	if err != nil {
		return fmt.Errorf("update lookup type: %w", err)
	}
	return expectOneRow(res, records.ErrNotFound)
}

func (r *LookupTypeRepo) Delete(ctx context.Context, id string) error {
	res, err := r.tx.ExecContext(ctx, `delete from lookup_types where id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete lookup type: %w", err)
	}
	return expectOneRow(res, records.ErrNotFound)
}

// LookupRepo persists individual reference values.
type LookupRepo struct {
	tx DBTX
}

var _ records.LookupRepository = (*LookupRepo)(nil)

func (r *LookupRepo) Create(ctx context.Context, l *records.Lookup) error {
	_, err := r.tx.ExecContext(ctx,
		`insert into lookups(id, lookup_type_id, name, value, `+auditColumns+`)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		l.ID, l.LookupTypeID, l.Name, l.Value,
		l.CreatedBy, l.CreatedOn, l.LastModifiedBy, l.LastModifiedOn,
	)
	if err != nil {
		return fmt.Errorf("insert lookup: %w", err)
	}
	return nil
}

func (r *LookupRepo) FindByID(ctx context.Context, id string) (*records.Lookup, error) {
	row := r.tx.QueryRowContext(ctx,
		`select id, lookup_type_id, name, value, `+auditColumns+` from lookups where id=$1`, id)
	var l records.Lookup
	err := row.Scan(&l.ID, &l.LookupTypeID, &l.Name, &l.Value,
		&l.CreatedBy, &l.CreatedOn, &l.LastModifiedBy, &l.LastModifiedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, records.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan lookup: %w", err)
	}
	return &l, nil
}

func (r *LookupRepo) ListByType(ctx context.Context, lookupTypeID string) ([]*records.Lookup, error) {
	rows, err := r.tx.QueryContext(ctx,
		`select id, lookup_type_id, name, value, `+auditColumns+`
		 from lookups where lookup_type_id=$1 order by name`, lookupTypeID)
	if err != nil {
		return nil, fmt.Errorf("list lookups: %w", err)
	}
	defer rows.Close()

	var out []*records.Lookup
	for rows.Next() {
		var l records.Lookup
		if err := rows.Scan(&l.ID, &l.LookupTypeID, &l.Name, &l.Value,
			&l.CreatedBy, &l.CreatedOn, &l.LastModifiedBy, &l.LastModifiedOn); err != nil {
			return nil, fmt.Errorf("scan lookup: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (r *LookupRepo) Update(ctx context.Context, l *records.Lookup) error {
	res, err := r.tx.ExecContext(ctx,
		`update lookups
		 set name=$2, value=$3, last_modified_by=$4, last_modified_on=$5
		 where id=$1`,
		l.ID, l.Name, l.Value, l.LastModifiedBy, l.LastModifiedOn,
	)
	if err != nil {
		return fmt.Errorf("update lookup: %w", err)
	}
	return expectOneRow(res, records.ErrNotFound)
}

func (r *LookupRepo) Delete(ctx context.Context, id string) error {
	res, err := r.tx.ExecContext(ctx, `delete from lookups where id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete lookup: %w", err)
	}
	return expectOneRow(res, records.ErrNotFound)
}

func (r *LookupRepo) DeleteByType(ctx context.Context, lookupTypeID string) error {
	// Zero lookups under a type is fine here; the caller is deleting the
	// parent type.
	_, err := r.tx.ExecContext(ctx, `delete from lookups where lookup_type_id=$1`, lookupTypeID)
	if err != nil {
		return fmt.Errorf("delete lookups by type: %w", err)
	}
	return nil
}
