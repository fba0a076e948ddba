package repository

import (
	"context"

	"formsapi/internal/model"
)

// UserRepository persists accounts.
type UserRepository interface {
	// Create returns ErrConflict when username or email is taken.
	Create(ctx context.Context, u *model.User) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, pq PageQuery) (*PageResult[model.User], error)
	// Update overwrites profile fields and role.
	Update(ctx context.Context, u *model.User) (*model.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	Delete(ctx context.Context, id string) error
}
