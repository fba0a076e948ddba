package repository

import (
	"context"

	"formsapi/internal/model"
)

// FormRepository persists form definitions. No business logic here.
type FormRepository interface {
	// Create inserts f and returns the stored form.
	Create(ctx context.Context, f *model.Form) (*model.Form, error)

	// FindByID returns ErrNotFound when the form does not exist.
	FindByID(ctx context.Context, id string) (*model.Form, error)

	// List returns forms newest first.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Form], error)

	// Update overwrites name, description, schema and the export flag.
	Update(ctx context.Context, f *model.Form) (*model.Form, error)

	// Delete removes the form and, by cascade, its responses.
	Delete(ctx context.Context, id string) error
}
