package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"formsapi/internal/attachment"
	"formsapi/internal/http/middleware"
	"formsapi/internal/policy"
	"formsapi/internal/service"
)

func identity(c *fiber.Ctx) policy.Identity {
	id, _ := middleware.IdentityFrom(c)
	return id
}

// formID validates the :id path parameter.
func formID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// badParam is a rejected query parameter.
type badParam struct {
	code    string
	message string
}

func pagination(c *fiber.Ctx) (limit, offset int, bad *badParam) {
	limit, err := strconv.Atoi(c.Query("limit", "10"))
	if err != nil {
		return 0, 0, &badParam{"INVALID_LIMIT", "invalid limit"}
	}
	offset, err = strconv.Atoi(c.Query("offset", "0"))
	if err != nil {
		return 0, 0, &badParam{"INVALID_OFFSET", "invalid offset"}
	}
	return limit, offset, nil
}

// ListForms returns forms newest first.
//
//	@Summary	List forms
//	@Tags		forms
//	@Security	BearerAuth
//	@Produce	json
//	@Param		limit	query		int	false	"page size"	default(10)
//	@Param		offset	query		int	false	"offset"	default(0)
//	@Success	200		{object}	service.FormListResult
//	@Router		/forms [get]
func ListForms(svc service.FormService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, bad := pagination(c)
		if bad != nil {
			return writeError(c, fiber.StatusBadRequest, bad.code, bad.message)
		}
		res, err := svc.List(c.UserContext(), identity(c), limit, offset)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(res)
	}
}

// CreateForm stores a new form definition.
//
//	@Summary	Create form
//	@Tags		forms
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		form	body		service.FormInput	true	"form"
//	@Success	201		{object}	model.Form
//	@Failure	400		{object}	errorPayload
//	@Router		/forms [post]
func CreateForm(svc service.FormService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in service.FormInput
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be a JSON object")
		}
		f, err := svc.Create(c.UserContext(), identity(c), in)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(f)
	}
}

// GetForm returns one form with its schema.
//
//	@Summary	Get form
//	@Tags		forms
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id	path		string	true	"form id"
//	@Success	200	{object}	model.Form
//	@Failure	404	{object}	errorPayload
//	@Router		/forms/{id} [get]
func GetForm(svc service.FormService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := formID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		f, err := svc.Get(c.UserContext(), identity(c), id)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(f)
	}
}

// UpdateForm changes a form. Omitted members keep their value.
//
//	@Summary	Update form
//	@Tags		forms
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"form id"
//	@Param		form	body		service.FormInput	true	"form"
//	@Success	200		{object}	model.Form
//	@Router		/forms/{id} [put]
func UpdateForm(svc service.FormService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := formID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		var in service.FormInput
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be a JSON object")
		}
		f, err := svc.Update(c.UserContext(), identity(c), id, in)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(f)
	}
}

// DeleteForm removes a form and its responses.
//
//	@Summary	Delete form
//	@Tags		forms
//	@Security	BearerAuth
//	@Param		id	path	string	true	"form id"
//	@Success	204
//	@Router		/forms/{id} [delete]
func DeleteForm(svc service.FormService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := formID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Delete(c.UserContext(), identity(c), id); err != nil {
			return serviceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

type submitResult struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// SubmitForm accepts a submission as a JSON object or as multipart form data
// where file parts are keyed by field name.
//
//	@Summary	Submit a response
//	@Tags		forms
//	@Security	BearerAuth
//	@Accept		json,mpfd
//	@Produce	json
//	@Param		id	path		string	true	"form id"
//	@Success	201	{object}	submitResult
//	@Failure	400	{object}	errorPayload
//	@Router		/forms/{id}/submit [post]
func SubmitForm(svc service.FormService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := formID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		var (
			payload map[string]any
			files   map[string]attachment.File
		)
		if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
			mf, err := c.MultipartForm()
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "malformed multipart body")
			}
			payload = multipartValues(mf)
			files, err = multipartFiles(mf)
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
			}
			defer closeFiles(files)
		} else {
			var err error
			if payload, err = decodeObject(c.Body()); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be a JSON object")
			}
		}

		resp, err := svc.Submit(c.UserContext(), identity(c), id, payload, files)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(submitResult{Message: "Form submitted successfully", Data: resp})
	}
}

// decodeObject decodes a JSON object keeping numbers exact. An empty body is an empty object.
func decodeObject(body []byte) (map[string]any, error) {
	out := map[string]any{}
	if len(bytes.TrimSpace(body)) == 0 {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errNotObject
	}
	return out, nil
}

var errNotObject = errors.New("body is not a JSON object")

// multipartValues flattens text parts: one value stays a string, repeated
// keys become a list.
func multipartValues(mf *multipart.Form) map[string]any {
	out := make(map[string]any, len(mf.Value))
	for k, vs := range mf.Value {
		switch len(vs) {
		case 0:
		case 1:
			out[k] = vs[0]
		default:
			list := make([]any, len(vs))
			for i, v := range vs {
				list[i] = v
			}
			out[k] = list
		}
	}
	return out
}

// multipartFiles opens the first file part of every key.
func multipartFiles(mf *multipart.Form) (map[string]attachment.File, error) {
	out := make(map[string]attachment.File, len(mf.File))
	for k, fhs := range mf.File {
		if len(fhs) == 0 {
			continue
		}
		fh := fhs[0]
		f, err := fh.Open()
		if err != nil {
			closeFiles(out)
			return nil, err
		}
		out[k] = attachment.File{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Size:        fh.Size,
			Content:     f,
		}
	}
	return out, nil
}

func closeFiles(files map[string]attachment.File) {
	for _, f := range files {
		if cl, ok := f.Content.(multipart.File); ok {
			_ = cl.Close()
		}
	}
}

// ListResponses returns every response of a form, newest first.
//
//	@Summary	List responses
//	@Tags		forms
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id	path		string	true	"form id"
//	@Success	200	{object}	service.ResponseList
//	@Router		/forms/{id}/responses [get]
func ListResponses(svc service.FormService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := formID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		res, err := svc.Responses(c.UserContext(), identity(c), id)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(res)
	}
}

// ExportResponses downloads the responses of a form as an xlsx workbook.
//
//	@Summary	Export responses
//	@Tags		forms
//	@Security	BearerAuth
//	@Produce	application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
//	@Param		id	path	string	true	"form id"
//	@Success	200	{file}	binary
//	@Failure	403	{object}	errorPayload
//	@Failure	404	{object}	errorPayload
//	@Router		/forms/{id}/export [get]
func ExportResponses(svc service.FormService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := formID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		file, err := svc.Export(c.UserContext(), identity(c), id)
		if err != nil {
			return serviceError(c, err)
		}
		c.Attachment(file.Filename)
		c.Set(fiber.HeaderContentType, file.ContentType)
		return c.Send(file.Content)
	}
}
