package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"formsapi/internal/attachment"
	"formsapi/internal/export"
	"formsapi/internal/formschema"
	"formsapi/internal/http/middleware"
	"formsapi/internal/logger"
	"formsapi/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if s, ok := c.Locals(middleware.RequestIDLocalKey).(string); ok {
		return s
	}
	return ""
}

// writeError writes a standardized JSON error response. message must be safe
// to show to clients.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return writeFieldError(c, status, code, message, "")
}

func writeFieldError(c *fiber.Ctx, status int, code, message, field string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
			Field:   field,
		},
	}
	return c.Status(status).JSON(res)
}

// Unauthorized answers requests carrying an unusable token.
func Unauthorized(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusUnauthorized, "INVALID_TOKEN", "invalid or expired token")
}

// serviceError maps service and domain errors onto the HTTP error envelope.
// Unknown errors are logged and answered with a generic 500.
func serviceError(c *fiber.Ctx, err error) error {
	var (
		schemaErr   *formschema.SchemaError
		responseErr *formschema.ResponseError
		uploadErr   *attachment.Error
	)
	switch {
	case errors.As(err, &schemaErr):
		field := ""
		if schemaErr.Index >= 0 {
			field = fmt.Sprintf("fields[%d]", schemaErr.Index)
		}
		return writeFieldError(c, fiber.StatusBadRequest, "INVALID_SCHEMA", schemaErr.Error(), field)
	case errors.As(err, &responseErr):
		return writeFieldError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", responseErr.Error(), responseErr.Field)
	case errors.Is(err, attachment.ErrStorageNotConfigured):
		return writeError(c, fiber.StatusServiceUnavailable, "STORAGE_NOT_CONFIGURED", "file storage is not configured")
	case errors.Is(err, context.DeadlineExceeded):
		return writeError(c, fiber.StatusGatewayTimeout, "UPLOAD_TIMEOUT", "file upload timed out")
	case errors.As(err, &uploadErr):
		logger.Component("http").WithField("request_id", requestIDFromCtx(c)).WithError(err).Error("attachment upload failed")
		return writeFieldError(c, fiber.StatusBadGateway, "UPLOAD_FAILED",
			fmt.Sprintf("failed to upload file for field '%s'", uploadErr.Field), uploadErr.Field)
	case errors.Is(err, export.ErrEmptyResponseSet):
		return writeError(c, fiber.StatusNotFound, "NO_RESPONSES", "no responses to export")
	case errors.Is(err, service.ErrExportDisabled):
		return writeError(c, fiber.StatusForbidden, "EXPORT_DISABLED", err.Error())
	case errors.Is(err, service.ErrUnauthenticated):
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		return writeError(c, fiber.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error())
	case errors.Is(err, service.ErrForbidden):
		return writeError(c, fiber.StatusForbidden, "FORBIDDEN", "you do not have permission to perform this action")
	case errors.Is(err, service.ErrFormNotFound), errors.Is(err, service.ErrUserNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, service.ErrUserExists):
		return writeError(c, fiber.StatusConflict, "CONFLICT", err.Error())
	}

	if field, ok := inputErrors[errorKey(err)]; ok {
		return writeFieldError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error(), field)
	}

	logger.Component("http").WithField("request_id", requestIDFromCtx(c)).WithError(err).Error("unhandled service error")
	return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

// inputErrors lists the client input errors and the field they concern.
var inputErrors = map[error]string{
	service.ErrIDRequired:       "id",
	service.ErrNameRequired:     "name",
	service.ErrSchemaRequired:   "schema",
	service.ErrUsernameRequired: "username",
	service.ErrEmailRequired:    "email",
	service.ErrPasswordMismatch: "password2",
	service.ErrPasswordTooShort: "password",
	service.ErrPasswordTooLong:  "password",
	service.ErrWrongPassword:    "old_password",
	service.ErrInvalidRole:      "role",
}

// errorKey finds the sentinel of inputErrors that err wraps, if any.
func errorKey(err error) error {
	for sentinel := range inputErrors {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHENTICATED", "authentication required")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
