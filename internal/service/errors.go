package service

import "errors"

var (
	ErrIDRequired      = errors.New("id is required")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("operation not permitted")

	ErrFormNotFound   = errors.New("form not found")
	ErrNameRequired   = errors.New("name is required")
	ErrSchemaRequired = errors.New("schema is required")
	ErrExportDisabled = errors.New("excel download is not allowed for this form")

	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("a user with that username or email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUsernameRequired   = errors.New("username is required")
	ErrEmailRequired      = errors.New("email is required")
	ErrPasswordMismatch   = errors.New("password fields didn't match")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
	ErrWrongPassword      = errors.New("old password is not correct")
	ErrInvalidRole        = errors.New("role must be one of admin, editor, viewer")
)
