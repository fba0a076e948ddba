package mocks

import (
	"context"

	"formsapi/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockResponseRepository struct {
	mock.Mock
}

func (m *MockResponseRepository) Create(ctx context.Context, r *model.Response) (*model.Response, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	if fn, ok := args.Get(0).(func(context.Context, *model.Response) *model.Response); ok {
		return fn(ctx, r), args.Error(1)
	}
	return args.Get(0).(*model.Response), args.Error(1)
}

func (m *MockResponseRepository) ListByForm(ctx context.Context, formID string) ([]model.Response, error) {
	args := m.Called(ctx, formID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Response), args.Error(1)
}
