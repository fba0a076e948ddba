package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"formsapi/internal/attachment"
	"formsapi/internal/export"
	"formsapi/internal/formschema"
	"formsapi/internal/model"
	"formsapi/internal/policy"
	repoMocks "formsapi/internal/repository/mocks"
	"formsapi/internal/service"
	serviceMocks "formsapi/internal/service/mocks"
	storeMocks "formsapi/internal/storage/mocks"
)

func TestListForms(t *testing.T) {
	mockSvc := new(serviceMocks.MockFormService)
	app := newApp(viewerID)
	app.Get("/forms", ListForms(mockSvc))

	t.Run("success", func(t *testing.T) {
		expected := &service.FormListResult{
			Items: []model.Form{{ID: uuid.New().String(), Name: "Survey"}},
			Total: 1,
		}
		mockSvc.On("List", mock.Anything, viewerID, 5, 10).Return(expected, nil).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/forms?limit=5&offset=10", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body struct {
			Data  []model.Form `json:"data"`
			Total int          `json:"total"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Len(t, body.Data, 1)
		assert.Equal(t, 1, body.Total)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/forms?limit=abc", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_LIMIT", decodeError(t, resp).Error.Code)
	})

	t.Run("invalid offset", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/forms?offset=x", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_OFFSET", decodeError(t, resp).Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, viewerID, 10, 0).Return(nil, errors.New("db down")).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/forms", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestCreateForm(t *testing.T) {
	mockSvc := new(serviceMocks.MockFormService)
	app := newApp(adminID)
	app.Post("/forms", CreateForm(mockSvc))

	t.Run("created", func(t *testing.T) {
		created := &model.Form{ID: uuid.New().String(), Name: "Survey"}
		mockSvc.On("Create", mock.Anything, adminID, mock.MatchedBy(func(in service.FormInput) bool {
			return in.Name == "Survey" && strings.Contains(string(in.Schema), `"fields"`)
		})).Return(created, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/forms",
			strings.NewReader(`{"name":"Survey","schema":{"fields":[{"name":"q","type":"text"}]}}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var body model.Form
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, created.ID, body.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid schema", func(t *testing.T) {
		mockSvc.On("Create", mock.Anything, adminID, mock.Anything).
			Return(nil, &formschema.SchemaError{Err: formschema.ErrInvalidFieldType, Index: 0, Value: "color"}).Once()

		req := httptest.NewRequest(http.MethodPost, "/forms",
			strings.NewReader(`{"name":"Survey","schema":{"fields":[{"name":"q","type":"color"}]}}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decodeError(t, resp)
		assert.Equal(t, "INVALID_SCHEMA", body.Error.Code)
		assert.Equal(t, "fields[0]", body.Error.Field)
		assert.Contains(t, body.Error.Message, "Invalid field type 'color'")
		mockSvc.AssertExpectations(t)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/forms", strings.NewReader(`{"name":`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_BODY", decodeError(t, resp).Error.Code)
	})
}

func TestGetForm(t *testing.T) {
	mockSvc := new(serviceMocks.MockFormService)
	app := newApp(viewerID)
	app.Get("/forms/:id", GetForm(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Get", mock.Anything, viewerID, id).Return(&model.Form{ID: id, Name: "Survey"}, nil).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/forms/"+id, nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Get", mock.Anything, viewerID, id).Return(nil, service.ErrFormNotFound).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/forms/"+id, nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/forms/invalid-uuid", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_ID", decodeError(t, resp).Error.Code)
	})
}

func TestUpdateForm(t *testing.T) {
	mockSvc := new(serviceMocks.MockFormService)
	app := newApp(viewerID)
	app.Put("/forms/:id", UpdateForm(mockSvc))

	id := uuid.New().String()
	mockSvc.On("Update", mock.Anything, viewerID, id, mock.MatchedBy(func(in service.FormInput) bool {
		return in.Name == "" && in.AllowExport != nil && !*in.AllowExport
	})).Return(nil, service.ErrForbidden).Once()

	req := httptest.NewRequest(http.MethodPut, "/forms/"+id, strings.NewReader(`{"allow_excel_download":false}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", decodeError(t, resp).Error.Code)
	mockSvc.AssertExpectations(t)
}

func TestDeleteForm(t *testing.T) {
	mockSvc := new(serviceMocks.MockFormService)
	app := newApp(adminID)
	app.Delete("/forms/:id", DeleteForm(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, adminID, id).Return(nil).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/forms/"+id, nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, adminID, id).Return(service.ErrFormNotFound).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/forms/"+id, nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestSubmitForm(t *testing.T) {
	id := uuid.New().String()
	accepted := &model.Response{ID: uuid.New().String(), FormID: id, Data: map[string]any{"name": "Ada"}}

	t.Run("json body", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockFormService)
		app := newApp(viewerID)
		app.Post("/forms/:id/submit", SubmitForm(mockSvc))

		mockSvc.On("Submit", mock.Anything, viewerID, id,
			map[string]any{"name": "Ada", "age": json.Number("36")},
			map[string]attachment.File(nil),
		).Return(accepted, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/forms/"+id+"/submit", strings.NewReader(`{"name":"Ada","age":36}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var body struct {
			Message string         `json:"message"`
			Data    model.Response `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Form submitted successfully", body.Message)
		assert.Equal(t, accepted.ID, body.Data.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("empty body is an empty submission", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockFormService)
		app := newApp(viewerID)
		app.Post("/forms/:id/submit", SubmitForm(mockSvc))

		mockSvc.On("Submit", mock.Anything, viewerID, id, map[string]any{}, map[string]attachment.File(nil)).
			Return(nil, &formschema.ResponseError{Err: formschema.ErrRequiredFieldMissing, Field: "name"}).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/forms/"+id+"/submit", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decodeError(t, resp)
		assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
		assert.Equal(t, "Field 'name' is required", body.Error.Message)
		assert.Equal(t, "name", body.Error.Field)
		mockSvc.AssertExpectations(t)
	})

	t.Run("non object body", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockFormService)
		app := newApp(viewerID)
		app.Post("/forms/:id/submit", SubmitForm(mockSvc))

		for _, raw := range []string{`[1,2]`, `null`, `"text"`} {
			req := httptest.NewRequest(http.MethodPost, "/forms/"+id+"/submit", strings.NewReader(raw))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, raw)
			assert.Equal(t, "INVALID_BODY", decodeError(t, resp).Error.Code, raw)
		}
		mockSvc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("json string for required file field is rejected", func(t *testing.T) {
		forms := new(repoMocks.MockFormRepository)
		responses := new(repoMocks.MockResponseRepository)
		store := new(storeMocks.MockStorage)
		forms.On("FindByID", mock.Anything, id).Return(&model.Form{
			ID: id,
			Schema: model.Schema{Fields: []model.FieldDefinition{
				{Name: "name", Type: model.FieldText},
				{Name: "photo", Type: model.FieldFile, Required: true},
			}},
		}, nil)
		svc := service.NewFormService(forms, responses, attachment.NewResolver(store, 1), policy.RolePolicy{}, service.FormOptions{})

		app := newApp(viewerID)
		app.Post("/forms/:id/submit", SubmitForm(svc))

		req := httptest.NewRequest(http.MethodPost, "/forms/"+id+"/submit",
			strings.NewReader(`{"name":"Ada","photo":"javascript:alert(1)"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decodeError(t, resp)
		assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
		assert.Equal(t, "Field 'photo' is required", body.Error.Message)
		assert.Equal(t, "photo", body.Error.Field)
		responses.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("multipart with file", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockFormService)
		app := newApp(viewerID)
		app.Post("/forms/:id/submit", SubmitForm(mockSvc))

		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		require.NoError(t, writer.WriteField("name", "Ada"))
		require.NoError(t, writer.WriteField("tags", "a"))
		require.NoError(t, writer.WriteField("tags", "b"))
		part, err := writer.CreateFormFile("photo", "me.jpg")
		require.NoError(t, err)
		_, err = part.Write([]byte("jpeg-bytes"))
		require.NoError(t, err)
		require.NoError(t, writer.Close())

		mockSvc.On("Submit", mock.Anything, viewerID, id,
			map[string]any{"name": "Ada", "tags": []any{"a", "b"}},
			mock.MatchedBy(func(files map[string]attachment.File) bool {
				f, ok := files["photo"]
				if !ok || len(files) != 1 || f.Filename != "me.jpg" || f.Size != int64(len("jpeg-bytes")) {
					return false
				}
				b, err := io.ReadAll(f.Content)
				return err == nil && string(b) == "jpeg-bytes"
			}),
		).Return(accepted, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/forms/"+id+"/submit", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("storage not configured", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockFormService)
		app := newApp(viewerID)
		app.Post("/forms/:id/submit", SubmitForm(mockSvc))

		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("photo", "me.jpg")
		require.NoError(t, err)
		_, _ = part.Write([]byte("x"))
		require.NoError(t, writer.Close())

		mockSvc.On("Submit", mock.Anything, viewerID, id, mock.Anything, mock.Anything).
			Return(nil, attachment.ErrStorageNotConfigured).Once()

		req := httptest.NewRequest(http.MethodPost, "/forms/"+id+"/submit", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "STORAGE_NOT_CONFIGURED", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestListResponses(t *testing.T) {
	mockSvc := new(serviceMocks.MockFormService)
	app := newApp(adminID)
	app.Get("/forms/:id/responses", ListResponses(mockSvc))

	id := uuid.New().String()
	mockSvc.On("Responses", mock.Anything, adminID, id).Return(&service.ResponseList{
		FormID:    id,
		Form:      "Survey",
		Total:     1,
		Responses: []model.Response{{ID: "r-1"}},
	}, nil).Once()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/forms/"+id+"/responses", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Survey", body["form"])
	assert.Equal(t, float64(1), body["total_responses"])
	mockSvc.AssertExpectations(t)
}

func TestExportResponses(t *testing.T) {
	id := uuid.New().String()

	t.Run("download", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockFormService)
		app := newApp(adminID)
		app.Get("/forms/:id/export", ExportResponses(mockSvc))

		mockSvc.On("Export", mock.Anything, adminID, id).Return(&service.ExportFile{
			Filename:    "Customer_Survey_responses.xlsx",
			ContentType: export.ContentType,
			Content:     []byte("PK-workbook"),
		}, nil).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/forms/"+id+"/export", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, export.ContentType, resp.Header.Get("Content-Type"))
		assert.Equal(t, `attachment; filename="Customer_Survey_responses.xlsx"`, resp.Header.Get("Content-Disposition"))
		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "PK-workbook", string(b))
		mockSvc.AssertExpectations(t)
	})

	t.Run("disabled", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockFormService)
		app := newApp(adminID)
		app.Get("/forms/:id/export", ExportResponses(mockSvc))

		mockSvc.On("Export", mock.Anything, adminID, id).Return(nil, service.ErrExportDisabled).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/forms/"+id+"/export", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "EXPORT_DISABLED", decodeError(t, resp).Error.Code)
	})

	t.Run("nothing to export", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockFormService)
		app := newApp(adminID)
		app.Get("/forms/:id/export", ExportResponses(mockSvc))

		mockSvc.On("Export", mock.Anything, adminID, id).Return(nil, export.ErrEmptyResponseSet).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/forms/"+id+"/export", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NO_RESPONSES", decodeError(t, resp).Error.Code)
	})
}
