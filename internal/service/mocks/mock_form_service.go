package mocks

import (
	"context"

	"formsapi/internal/attachment"
	"formsapi/internal/model"
	"formsapi/internal/policy"
	"formsapi/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockFormService struct {
	mock.Mock
}

func (m *MockFormService) Create(ctx context.Context, id policy.Identity, in service.FormInput) (*model.Form, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Form), args.Error(1)
}

func (m *MockFormService) List(ctx context.Context, id policy.Identity, limit, offset int) (*service.FormListResult, error) {
	args := m.Called(ctx, id, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FormListResult), args.Error(1)
}

func (m *MockFormService) Get(ctx context.Context, id policy.Identity, formID string) (*model.Form, error) {
	args := m.Called(ctx, id, formID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Form), args.Error(1)
}

func (m *MockFormService) Update(ctx context.Context, id policy.Identity, formID string, in service.FormInput) (*model.Form, error) {
	args := m.Called(ctx, id, formID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Form), args.Error(1)
}

func (m *MockFormService) Delete(ctx context.Context, id policy.Identity, formID string) error {
	args := m.Called(ctx, id, formID)
	return args.Error(0)
}

func (m *MockFormService) Submit(ctx context.Context, id policy.Identity, formID string, payload map[string]any, files map[string]attachment.File) (*model.Response, error) {
	args := m.Called(ctx, id, formID, payload, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Response), args.Error(1)
}

func (m *MockFormService) Responses(ctx context.Context, id policy.Identity, formID string) (*service.ResponseList, error) {
	args := m.Called(ctx, id, formID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ResponseList), args.Error(1)
}

func (m *MockFormService) Export(ctx context.Context, id policy.Identity, formID string) (*service.ExportFile, error) {
	args := m.Called(ctx, id, formID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExportFile), args.Error(1)
}
