package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"formsapi/internal/model"
	"formsapi/internal/repository"
)

// ResponsePostgres is a PostgreSQL implementation of repository.ResponseRepository.
type ResponsePostgres struct {
	db *sql.DB
}

// NewResponsePostgres creates a new ResponsePostgres repository.
func NewResponsePostgres(db *sql.DB) *ResponsePostgres {
	return &ResponsePostgres{db: db}
}

var _ repository.ResponseRepository = (*ResponsePostgres)(nil)

// Create inserts a response row. Data is stored as JSONB.
func (r *ResponsePostgres) Create(ctx context.Context, resp *model.Response) (*model.Response, error) {
	data, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("encode response data: %w", err)
	}
	const q = `
		INSERT INTO form_responses (id, form_id, user_id, response_data, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING submitted_at
	`
	out := *resp
	if err := r.db.QueryRowContext(ctx, q,
		resp.ID,
		resp.FormID,
		nullString(resp.UserID),
		data,
		resp.SubmittedAt,
	).Scan(&out.SubmittedAt); err != nil {
		return nil, mapError(err)
	}
	return &out, nil
}

// ListByForm returns the responses of a form newest first, with the form
// name and submitter email projected.
func (r *ResponsePostgres) ListByForm(ctx context.Context, formID string) ([]model.Response, error) {
	const q = `
		SELECT fr.id, fr.form_id, f.name, fr.user_id, COALESCE(u.email, ''), fr.response_data, fr.submitted_at
		FROM form_responses fr
		JOIN forms f ON f.id = fr.form_id
		LEFT JOIN users u ON u.id = fr.user_id
		WHERE fr.form_id = $1
		ORDER BY fr.submitted_at DESC, fr.id DESC
	`
	rows, err := r.db.QueryContext(ctx, q, formID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Response, 0)
	for rows.Next() {
		var (
			resp   model.Response
			userID sql.NullString
			raw    []byte
		)
		if err := rows.Scan(
			&resp.ID,
			&resp.FormID,
			&resp.FormName,
			&userID,
			&resp.UserEmail,
			&raw,
			&resp.SubmittedAt,
		); err != nil {
			return nil, err
		}
		if err := decodeJSON(raw, &resp.Data); err != nil {
			return nil, fmt.Errorf("decode response %s: %w", resp.ID, err)
		}
		resp.UserID = userID.String
		items = append(items, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
