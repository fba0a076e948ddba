// Package formschema turns JSON form schemas into validated field lists and
// checks submissions against them. Nothing in here performs I/O.
package formschema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"formsapi/internal/model"
)

// Options tunes schema validation.
type Options struct {
	// Strict additionally rejects schemas declaring the same field name twice.
	Strict bool
}

// ValidateSchema validates raw with the default (non strict) options.
func ValidateSchema(raw []byte) (*model.Schema, error) {
	return Options{}.ValidateSchema(raw)
}

// ValidateSchema parses raw and checks its structure. On success the returned
// schema has "required" filled in on every field; marshalling it yields the
// normalized document, and validating that document again returns the same schema.
func (o Options) ValidateSchema(raw []byte) (*model.Schema, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &SchemaError{Err: ErrNotAnObject, Index: -1}
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, &SchemaError{Err: ErrNotAnObject, Index: -1}
	}

	rawFields, ok := obj["fields"]
	if !ok {
		return nil, &SchemaError{Err: ErrMissingFieldsKey, Index: -1}
	}
	list, ok := rawFields.([]any)
	if !ok {
		return nil, &SchemaError{Err: ErrFieldsNotAList, Index: -1}
	}

	s := &model.Schema{Fields: make([]model.FieldDefinition, 0, len(list))}
	seen := make(map[string]bool, len(list))
	for i, item := range list {
		f, err := parseField(i, item)
		if err != nil {
			return nil, err
		}
		if o.Strict && seen[f.Name] {
			return nil, &SchemaError{Err: ErrDuplicateFieldName, Index: i, Value: f.Name}
		}
		seen[f.Name] = true
		s.Fields = append(s.Fields, f)
	}

	for k, v := range obj {
		if k == "fields" {
			continue
		}
		if s.Attrs == nil {
			s.Attrs = make(map[string]any, len(obj)-1)
		}
		s.Attrs[k] = v
	}
	return s, nil
}

func parseField(i int, item any) (model.FieldDefinition, error) {
	obj, ok := item.(map[string]any)
	if !ok {
		return model.FieldDefinition{}, &SchemaError{Err: ErrFieldNotAnObject, Index: i}
	}

	rawName, hasName := obj["name"]
	rawType, hasType := obj["type"]
	if !hasName || !hasType {
		return model.FieldDefinition{}, &SchemaError{Err: ErrFieldMissingNameOrType, Index: i}
	}
	name, ok := rawName.(string)
	if !ok {
		return model.FieldDefinition{}, &SchemaError{Err: ErrFieldMissingNameOrType, Index: i}
	}

	typ, _ := rawType.(string)
	if !model.FieldType(typ).Valid() {
		return model.FieldDefinition{}, &SchemaError{Err: ErrInvalidFieldType, Index: i, Value: fmt.Sprint(rawType)}
	}

	f := model.FieldDefinition{Name: name, Type: model.FieldType(typ)}
	if rawReq, ok := obj["required"]; ok {
		req, ok := rawReq.(bool)
		if !ok {
			return model.FieldDefinition{}, &SchemaError{Err: ErrInvalidRequiredFlag, Index: i, Value: name}
		}
		f.Required = req
	}

	for k, v := range obj {
		switch k {
		case "name", "type", "required":
			continue
		}
		if f.Attrs == nil {
			f.Attrs = make(map[string]any, len(obj))
		}
		f.Attrs[k] = v
	}
	return f, nil
}
