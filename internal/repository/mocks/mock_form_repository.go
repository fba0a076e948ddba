package mocks

import (
	"context"

	"formsapi/internal/model"
	"formsapi/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockFormRepository struct {
	mock.Mock
}

func (m *MockFormRepository) Create(ctx context.Context, f *model.Form) (*model.Form, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	if fn, ok := args.Get(0).(func(context.Context, *model.Form) *model.Form); ok {
		return fn(ctx, f), args.Error(1)
	}
	return args.Get(0).(*model.Form), args.Error(1)
}

func (m *MockFormRepository) FindByID(ctx context.Context, id string) (*model.Form, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Form), args.Error(1)
}

func (m *MockFormRepository) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Form], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Form]), args.Error(1)
}

func (m *MockFormRepository) Update(ctx context.Context, f *model.Form) (*model.Form, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	if fn, ok := args.Get(0).(func(context.Context, *model.Form) *model.Form); ok {
		return fn(ctx, f), args.Error(1)
	}
	return args.Get(0).(*model.Form), args.Error(1)
}

func (m *MockFormRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
