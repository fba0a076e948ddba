package formschema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"formsapi/internal/model"
)

type valueCheck func(value any) error

// checks maps a field type to the rule its present, non-blank values must satisfy.
// Types without an entry only get the required check.
var checks = map[model.FieldType]valueCheck{
	model.FieldEmail: checkEmail,
}

// ValidateResponse checks payload against s in schema order. Keys that the
// schema does not declare are passed through untouched, and the accepted
// payload is returned as is.
func ValidateResponse(s *model.Schema, payload map[string]any) (map[string]any, error) {
	for _, f := range s.Fields {
		value, present := payload[f.Name]
		if f.Required && !present {
			return nil, &ResponseError{Err: ErrRequiredFieldMissing, Field: f.Name}
		}
		if !present || Blank(value) {
			continue
		}
		if check, ok := checks[f.Type]; ok {
			if err := check(value); err != nil {
				return nil, &ResponseError{Err: err, Field: f.Name}
			}
		}
	}
	return payload, nil
}

func checkEmail(value any) error {
	if !strings.Contains(Text(value), "@") {
		return ErrInvalidEmailFormat
	}
	return nil
}

// Blank reports whether a submitted value is empty: null, "", false, zero,
// or an empty list or object.
func Blank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case int:
		return t == 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// Text coerces a submitted value to its textual form.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
