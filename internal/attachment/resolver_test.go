package attachment

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"formsapi/internal/formschema"
	"formsapi/internal/model"
	"formsapi/internal/storage"
	storeMocks "formsapi/internal/storage/mocks"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 123456000, time.UTC)

func newTestResolver(store storage.Storage, concurrency int) *Resolver {
	r := NewResolver(store, concurrency)
	r.now = func() time.Time { return fixedNow }
	return r
}

func photoForm() *model.Form {
	return &model.Form{
		ID: "form-1",
		Schema: model.Schema{Fields: []model.FieldDefinition{
			{Name: "name", Type: model.FieldText, Required: true},
			{Name: "photo", Type: model.FieldFile},
			{Name: "cv", Type: model.FieldFile},
		}},
	}
}

func urlFor(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
	return storage.ObjectInfo{Key: key, URL: "https://cdn.example.com/" + key}
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "20240309_140507_123456", Timestamp(fixedNow))
	assert.Equal(t, "media/forms/form-1/photo_20240309_140507_123456.jpeg",
		ObjectKey("form-1", "photo", Timestamp(fixedNow), "holiday.JPG.jpeg"))
	assert.Equal(t, "media/forms/form-1/cv_20240309_140507_123456",
		ObjectKey("form-1", "cv", Timestamp(fixedNow), "README"))
	assert.Equal(t, "media/forms/form-1/a_b_x.txt", ObjectKey("form-1", "a/b", "x", "f.txt"))
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces file fields with references", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		content := strings.NewReader("jpeg")
		mStore.On("Put", mock.Anything, "media/forms/form-1/photo_20240309_140507_123456.jpg", content, storage.PutObjectOptions{
			Size:        4,
			ContentType: "image/jpeg",
			Metadata:    map[string]string{"original-filename": "me.jpg"},
		}).Return(urlFor, nil)

		payload := map[string]any{"name": "Ada", "photo": "client supplied"}
		res, err := newTestResolver(mStore, 1).Resolve(ctx, photoForm(), payload, map[string]File{
			"photo": {Filename: "me.jpg", ContentType: "image/jpeg", Size: 4, Content: content},
		})

		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"name":  "Ada",
			"photo": "https://cdn.example.com/media/forms/form-1/photo_20240309_140507_123456.jpg",
		}, res.Payload)
		assert.Equal(t, []string{"media/forms/form-1/photo_20240309_140507_123456.jpg"}, res.Keys)
		assert.Equal(t, "client supplied", payload["photo"], "input payload must not be mutated")
		assert.Equal(t, []byte("jpeg"), mStore.Body("media/forms/form-1/photo_20240309_140507_123456.jpg"))
		mStore.AssertExpectations(t)
	})

	t.Run("missing upload leaves field absent", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)

		res, err := newTestResolver(mStore, 1).Resolve(ctx, photoForm(), map[string]any{"name": "Ada"}, nil)

		require.NoError(t, err)
		assert.Equal(t, map[string]any{"name": "Ada"}, res.Payload)
		assert.NotContains(t, res.Payload, "photo")
		assert.Empty(t, res.Keys)
		mStore.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("client values under file fields are dropped", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		form := photoForm()
		form.Schema.Fields[1].Required = true
		payload := map[string]any{"name": "Ada", "photo": "javascript:alert(1)", "cv": map[string]any{"url": "https://evil.example"}}

		res, err := newTestResolver(mStore, 1).Resolve(ctx, form, payload, nil)

		require.NoError(t, err)
		assert.Equal(t, map[string]any{"name": "Ada"}, res.Payload)
		assert.Empty(t, res.Keys)
		mStore.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

		_, err = formschema.ValidateResponse(&form.Schema, res.Payload)
		var re *formschema.ResponseError
		require.ErrorAs(t, err, &re)
		assert.ErrorIs(t, err, formschema.ErrRequiredFieldMissing)
		assert.Equal(t, "photo", re.Field)
	})

	t.Run("client value is replaced by the stored reference", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(urlFor, nil)

		res, err := newTestResolver(mStore, 1).Resolve(ctx, photoForm(), map[string]any{"photo": "javascript:alert(1)"}, map[string]File{
			"photo": {Filename: "me.png", Content: strings.NewReader("png")},
		})

		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/media/forms/form-1/photo_20240309_140507_123456.png", res.Payload["photo"])
		mStore.AssertExpectations(t)
	})

	t.Run("files for non file fields are ignored", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)

		res, err := newTestResolver(mStore, 1).Resolve(ctx, photoForm(), map[string]any{}, map[string]File{
			"name": {Filename: "x.txt", Content: strings.NewReader("x")},
		})

		require.NoError(t, err)
		assert.Empty(t, res.Payload)
		mStore.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty content type defaults to octet stream", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(opt storage.PutObjectOptions) bool {
			return opt.ContentType == "application/octet-stream"
		})).Return(urlFor, nil)

		_, err := newTestResolver(mStore, 1).Resolve(ctx, photoForm(), map[string]any{}, map[string]File{
			"cv": {Filename: "cv.bin", Size: 1, Content: strings.NewReader("x")},
		})

		require.NoError(t, err)
		mStore.AssertExpectations(t)
	})

	t.Run("storage not configured fails before any call", func(t *testing.T) {
		res, err := newTestResolver(nil, 1).Resolve(ctx, photoForm(), map[string]any{}, map[string]File{
			"photo": {Filename: "me.jpg", Content: strings.NewReader("x")},
		})

		assert.Nil(t, res)
		assert.ErrorIs(t, err, ErrStorageNotConfigured)
	})

	t.Run("storage not configured is fine without files", func(t *testing.T) {
		res, err := newTestResolver(nil, 1).Resolve(ctx, photoForm(), map[string]any{"name": "Ada"}, nil)

		require.NoError(t, err)
		assert.Equal(t, map[string]any{"name": "Ada"}, res.Payload)
	})

	t.Run("upload failure aborts and removes stored objects", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mStore.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
			return strings.Contains(key, "/photo_")
		}), mock.Anything, mock.Anything).Return(urlFor, nil)
		mStore.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
			return strings.Contains(key, "/cv_")
		}), mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, errors.New("bucket full"))
		mStore.On("Delete", mock.Anything, "media/forms/form-1/photo_20240309_140507_123456.jpg").Return(nil)

		res, err := newTestResolver(mStore, 1).Resolve(ctx, photoForm(), map[string]any{"name": "Ada"}, map[string]File{
			"photo": {Filename: "me.jpg", Content: strings.NewReader("x")},
			"cv":    {Filename: "cv.pdf", Content: strings.NewReader("y")},
		})

		assert.Nil(t, res)
		var ae *Error
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "cv", ae.Field)
		assert.EqualError(t, err, "failed to upload file for field 'cv': bucket full")
		mStore.AssertExpectations(t)
	})

	t.Run("concurrent uploads all land", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(urlFor, nil).Twice()

		res, err := newTestResolver(mStore, 4).Resolve(ctx, photoForm(), map[string]any{}, map[string]File{
			"photo": {Filename: "me.jpg", Content: strings.NewReader("x")},
			"cv":    {Filename: "cv.pdf", Content: strings.NewReader("y")},
		})

		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/media/forms/form-1/photo_20240309_140507_123456.jpg", res.Payload["photo"])
		assert.Equal(t, "https://cdn.example.com/media/forms/form-1/cv_20240309_140507_123456.pdf", res.Payload["cv"])
		assert.Len(t, res.Keys, 2)
		assert.Equal(t, []byte("x"), mStore.Body("media/forms/form-1/photo_20240309_140507_123456.jpg"))
		assert.Equal(t, []byte("y"), mStore.Body("media/forms/form-1/cv_20240309_140507_123456.pdf"))
		mStore.AssertExpectations(t)
	})
}

func TestResolver_Discard(t *testing.T) {
	mStore := new(storeMocks.MockStorage)
	mStore.On("Delete", mock.Anything, "a").Return(nil)
	mStore.On("Delete", mock.Anything, "b").Return(errors.New("gone"))

	failed := NewResolver(mStore, 1).Discard(context.Background(), []string{"a", "b"})

	assert.Equal(t, []string{"b"}, failed)
	mStore.AssertExpectations(t)

	assert.Nil(t, NewResolver(nil, 1).Discard(context.Background(), []string{"a"}))
}
