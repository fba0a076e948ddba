package formschema

import (
	"errors"
	"fmt"
	"strings"

	"formsapi/internal/model"
)

// Schema document errors. They are terminal for the whole document.
var (
	ErrNotAnObject            = errors.New("schema must be a JSON object")
	ErrMissingFieldsKey       = errors.New("schema must contain 'fields' key")
	ErrFieldsNotAList         = errors.New("'fields' must be a list")
	ErrFieldNotAnObject       = errors.New("each field must be a JSON object")
	ErrFieldMissingNameOrType = errors.New("each field must have 'name' and 'type'")
	ErrInvalidFieldType       = errors.New("invalid field type")
	ErrInvalidRequiredFlag    = errors.New("'required' must be a boolean")
	ErrDuplicateFieldName     = errors.New("duplicate field name")
)

// Submission errors. They reject the whole submission.
var (
	ErrRequiredFieldMissing = errors.New("required field missing")
	ErrInvalidEmailFormat   = errors.New("invalid email format")
)

// SchemaError reports why a schema document was rejected.
type SchemaError struct {
	Err   error
	Index int // position in fields, -1 for document level errors
	Value string
}

func (e *SchemaError) Error() string {
	var msg string
	switch e.Err {
	case ErrInvalidFieldType:
		msg = fmt.Sprintf("Invalid field type '%s'. Valid types are: %s", e.Value, validTypeList())
	case ErrInvalidRequiredFlag:
		msg = fmt.Sprintf("field '%s': %s", e.Value, e.Err)
	case ErrDuplicateFieldName:
		msg = fmt.Sprintf("%s '%s'", e.Err, e.Value)
	default:
		msg = e.Err.Error()
	}
	if e.Index >= 0 {
		return fmt.Sprintf("fields[%d]: %s", e.Index, msg)
	}
	return msg
}

func (e *SchemaError) Unwrap() error { return e.Err }

// ResponseError names the field of a submission that broke the schema contract.
type ResponseError struct {
	Err   error
	Field string
}

func (e *ResponseError) Error() string {
	switch e.Err {
	case ErrRequiredFieldMissing:
		return fmt.Sprintf("Field '%s' is required", e.Field)
	case ErrInvalidEmailFormat:
		return fmt.Sprintf("Field '%s' must be a valid email", e.Field)
	}
	return fmt.Sprintf("Field '%s': %s", e.Field, e.Err)
}

func (e *ResponseError) Unwrap() error { return e.Err }

func validTypeList() string {
	names := make([]string, len(model.FieldTypes))
	for i, t := range model.FieldTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
