package repository

import (
	"context"

	"formsapi/internal/model"
)

// ResponseRepository persists accepted submissions.
type ResponseRepository interface {
	Create(ctx context.Context, r *model.Response) (*model.Response, error)

	// ListByForm returns every response of a form, newest first.
	ListByForm(ctx context.Context, formID string) ([]model.Response, error)
}
