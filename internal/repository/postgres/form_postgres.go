package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"formsapi/internal/model"
	"formsapi/internal/repository"
)

// FormPostgres is a PostgreSQL implementation of repository.FormRepository.
type FormPostgres struct {
	db *sql.DB
}

// NewFormPostgres creates a new FormPostgres repository.
func NewFormPostgres(db *sql.DB) *FormPostgres {
	return &FormPostgres{db: db}
}

var _ repository.FormRepository = (*FormPostgres)(nil)

const formColumns = `f.id, f.name, f.description, f.schema, f.allow_excel_download,
		f.created_by, COALESCE(u.email, ''), f.created_at, f.updated_at`

func scanForm(s scanner) (*model.Form, error) {
	var (
		f         model.Form
		rawSchema []byte
		createdBy sql.NullString
	)
	if err := s.Scan(
		&f.ID,
		&f.Name,
		&f.Description,
		&rawSchema,
		&f.AllowExport,
		&createdBy,
		&f.CreatedByEmail,
		&f.CreatedAt,
		&f.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := decodeJSON(rawSchema, &f.Schema); err != nil {
		return nil, fmt.Errorf("decode schema of form %s: %w", f.ID, err)
	}
	f.CreatedBy = createdBy.String
	return &f, nil
}

// Create inserts a form row. The creator email is carried over from f.
func (r *FormPostgres) Create(ctx context.Context, f *model.Form) (*model.Form, error) {
	schema, err := json.Marshal(f.Schema)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	const q = `
		INSERT INTO forms (id, name, description, schema, allow_excel_download, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	out := *f
	if err := r.db.QueryRowContext(ctx, q,
		f.ID,
		f.Name,
		f.Description,
		schema,
		f.AllowExport,
		nullString(f.CreatedBy),
		f.CreatedAt,
		f.UpdatedAt,
	).Scan(&out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	return &out, nil
}

// FindByID fetches a single form with its creator email.
func (r *FormPostgres) FindByID(ctx context.Context, id string) (*model.Form, error) {
	q := `SELECT ` + formColumns + `
		FROM forms f
		LEFT JOIN users u ON u.id = f.created_by
		WHERE f.id = $1`
	f, err := scanForm(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, mapError(err)
	}
	return f, nil
}

// List returns forms newest first using LIMIT/OFFSET pagination and a total count.
func (r *FormPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Form], error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM forms`).Scan(&total); err != nil {
		return nil, err
	}

	q := `SELECT ` + formColumns + `
		FROM forms f
		LEFT JOIN users u ON u.id = f.created_by
		ORDER BY f.created_at DESC, f.id DESC
		LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, q, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Form, 0)
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Form]{Items: items, Total: total}, nil
}

// Update overwrites the editable columns and bumps updated_at.
func (r *FormPostgres) Update(ctx context.Context, f *model.Form) (*model.Form, error) {
	schema, err := json.Marshal(f.Schema)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	const q = `
		UPDATE forms
		SET name = $2, description = $3, schema = $4, allow_excel_download = $5, updated_at = $6
		WHERE id = $1
		RETURNING created_at, updated_at
	`
	out := *f
	if err := r.db.QueryRowContext(ctx, q,
		f.ID,
		f.Name,
		f.Description,
		schema,
		f.AllowExport,
		f.UpdatedAt,
	).Scan(&out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	return &out, nil
}

// Delete removes a form by ID; responses go with it through the foreign key cascade.
func (r *FormPostgres) Delete(ctx context.Context, id string) error {
	return execOne(ctx, r.db, `DELETE FROM forms WHERE id = $1`, id)
}
