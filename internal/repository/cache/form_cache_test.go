package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formsapi/internal/config"
	"formsapi/internal/model"
	"formsapi/internal/repository"
	repoMocks "formsapi/internal/repository/mocks"
)

const ttl = 5 * time.Minute

func sampleForm() *model.Form {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return &model.Form{
		ID:          "form-1",
		Name:        "Contact",
		Schema:      model.Schema{Fields: []model.FieldDefinition{{Name: "email", Type: model.FieldEmail, Required: true}}},
		AllowExport: true,
		CreatedBy:   "user-1",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func encoded(t *testing.T, f *model.Form) string {
	t.Helper()
	b, err := json.Marshal(cachedForm{Form: *f, CreatedByID: f.CreatedBy})
	require.NoError(t, err)
	return string(b)
}

func TestFormCache_FindByID(t *testing.T) {
	ctx := context.Background()

	t.Run("zero ttl still expires", func(t *testing.T) {
		client, rmock := redismock.NewClientMock()
		repo := new(repoMocks.MockFormRepository)
		f := sampleForm()

		rmock.ExpectGet("formsapi:form:form-1").RedisNil()
		repo.On("FindByID", ctx, "form-1").Return(f, nil).Once()
		rmock.ExpectSet("formsapi:form:form-1", encoded(t, f), DefaultTTL).SetVal("OK")

		_, err := NewFormCache(repo, client, 0).FindByID(ctx, "form-1")

		require.NoError(t, err)
		assert.NoError(t, rmock.ExpectationsWereMet())
	})

	t.Run("miss loads and stores", func(t *testing.T) {
		client, rmock := redismock.NewClientMock()
		repo := new(repoMocks.MockFormRepository)
		f := sampleForm()

		rmock.ExpectGet("formsapi:form:form-1").RedisNil()
		repo.On("FindByID", ctx, "form-1").Return(f, nil).Once()
		rmock.ExpectSet("formsapi:form:form-1", encoded(t, f), ttl).SetVal("OK")

		got, err := NewFormCache(repo, client, ttl).FindByID(ctx, "form-1")

		require.NoError(t, err)
		assert.Equal(t, f, got)
		assert.NoError(t, rmock.ExpectationsWereMet())
		repo.AssertExpectations(t)
	})

	t.Run("hit skips repository", func(t *testing.T) {
		client, rmock := redismock.NewClientMock()
		repo := new(repoMocks.MockFormRepository)
		f := sampleForm()

		rmock.ExpectGet("formsapi:form:form-1").SetVal(encoded(t, f))

		got, err := NewFormCache(repo, client, ttl).FindByID(ctx, "form-1")

		require.NoError(t, err)
		assert.Equal(t, "user-1", got.CreatedBy)
		assert.Equal(t, f.Schema.Fields, got.Schema.Fields)
		assert.True(t, f.CreatedAt.Equal(got.CreatedAt))
		repo.AssertNotCalled(t, "FindByID", ctx, "form-1")
		assert.NoError(t, rmock.ExpectationsWereMet())
	})

	t.Run("redis down falls through", func(t *testing.T) {
		client, rmock := redismock.NewClientMock()
		repo := new(repoMocks.MockFormRepository)
		f := sampleForm()

		rmock.ExpectGet("formsapi:form:form-1").SetErr(errors.New("connection refused"))
		repo.On("FindByID", ctx, "form-1").Return(f, nil)
		rmock.ExpectSet("formsapi:form:form-1", encoded(t, f), ttl).SetErr(errors.New("connection refused"))

		got, err := NewFormCache(repo, client, ttl).FindByID(ctx, "form-1")

		require.NoError(t, err)
		assert.Equal(t, f, got)
	})

	t.Run("not found is not cached", func(t *testing.T) {
		client, rmock := redismock.NewClientMock()
		repo := new(repoMocks.MockFormRepository)

		rmock.ExpectGet("formsapi:form:missing").RedisNil()
		repo.On("FindByID", ctx, "missing").Return(nil, repository.ErrNotFound)

		got, err := NewFormCache(repo, client, ttl).FindByID(ctx, "missing")

		assert.Nil(t, got)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.NoError(t, rmock.ExpectationsWereMet())
	})
}

func TestFormCache_WritesInvalidate(t *testing.T) {
	ctx := context.Background()
	client, rmock := redismock.NewClientMock()
	repo := new(repoMocks.MockFormRepository)
	f := sampleForm()
	c := NewFormCache(repo, client, ttl)

	repo.On("Update", ctx, f).Return(f, nil)
	rmock.ExpectDel("formsapi:form:form-1").SetVal(1)
	repo.On("Delete", ctx, "form-1").Return(nil)
	rmock.ExpectDel("formsapi:form:form-1").SetVal(0)
	repo.On("Delete", ctx, "missing").Return(repository.ErrNotFound)

	_, err := c.Update(ctx, f)
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, "form-1"))
	assert.ErrorIs(t, c.Delete(ctx, "missing"), repository.ErrNotFound)

	assert.NoError(t, rmock.ExpectationsWereMet())
	repo.AssertExpectations(t)
}

func TestNewClient_Disabled(t *testing.T) {
	cli, err := NewClient(context.Background(), config.RedisConfig{})
	assert.Nil(t, cli)
	assert.ErrorIs(t, err, ErrDisabled)
}
