// Package mocks holds testify doubles for the storage backends.
package mocks

import (
	"context"
	"io"
	"sync"

	"formsapi/internal/storage"

	"github.com/stretchr/testify/mock"
)

// PutFunc computes the ObjectInfo returned by a stubbed Put from its arguments.
type PutFunc func(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo

// MockStorage is a storage.Storage double. Successful Puts keep the uploaded
// bytes so tests can inspect them with Body.
type MockStorage struct {
	mock.Mock

	mu     sync.Mutex
	bodies map[string][]byte
}

var _ storage.Storage = (*MockStorage)(nil)

func (m *MockStorage) Put(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) (storage.ObjectInfo, error) {
	args := m.Called(ctx, key, r, opt)
	if err := args.Error(1); err != nil {
		return storage.ObjectInfo{}, err
	}

	var info storage.ObjectInfo
	switch v := args.Get(0).(type) {
	case PutFunc:
		info = v(ctx, key, r, opt)
	case func(context.Context, string, io.Reader, storage.PutObjectOptions) storage.ObjectInfo:
		info = v(ctx, key, r, opt)
	default:
		info = args.Get(0).(storage.ObjectInfo)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.mu.Lock()
	if m.bodies == nil {
		m.bodies = make(map[string][]byte)
	}
	m.bodies[key] = body
	m.mu.Unlock()
	return info, nil
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// Body returns what was uploaded under key, or nil.
func (m *MockStorage) Body(key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bodies[key]
}
