package model

import (
	"encoding/json"
	"time"
)

// FieldType is the closed set of input types a form field can declare.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldEmail    FieldType = "email"
	FieldNumber   FieldType = "number"
	FieldTextarea FieldType = "textarea"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
	FieldRadio    FieldType = "radio"
	FieldDate     FieldType = "date"
	FieldFile     FieldType = "file"
)

// FieldTypes lists every valid field type in display order.
var FieldTypes = []FieldType{
	FieldText, FieldEmail, FieldNumber, FieldTextarea, FieldSelect,
	FieldCheckbox, FieldRadio, FieldDate, FieldFile,
}

// Valid reports whether t belongs to the closed set.
func (t FieldType) Valid() bool {
	for _, ft := range FieldTypes {
		if ft == t {
			return true
		}
	}
	return false
}

// FieldDefinition is one named, typed slot of a form schema.
// Attrs keeps any extra keys of the field object (label, options, placeholder...)
// so they survive a round trip through storage.
type FieldDefinition struct {
	Name     string
	Type     FieldType
	Required bool
	Attrs    map[string]any
}

func (f FieldDefinition) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(f.Attrs)+3)
	for k, v := range f.Attrs {
		m[k] = v
	}
	m["name"] = f.Name
	m["type"] = string(f.Type)
	m["required"] = f.Required
	return json.Marshal(m)
}

// UnmarshalJSON decodes an already normalized field as read from storage.
// Request input must go through formschema.ValidateSchema instead.
func (f *FieldDefinition) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*f = FieldDefinition{}
	if v, ok := m["name"].(string); ok {
		f.Name = v
	}
	if v, ok := m["type"].(string); ok {
		f.Type = FieldType(v)
	}
	if v, ok := m["required"].(bool); ok {
		f.Required = v
	}
	delete(m, "name")
	delete(m, "type")
	delete(m, "required")
	if len(m) > 0 {
		f.Attrs = m
	}
	return nil
}

// Schema is the normalized description of a form's fields.
// Attrs keeps top-level keys other than "fields".
type Schema struct {
	Fields []FieldDefinition
	Attrs  map[string]any
}

func (s Schema) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(s.Attrs)+1)
	for k, v := range s.Attrs {
		m[k] = v
	}
	fields := s.Fields
	if fields == nil {
		fields = []FieldDefinition{}
	}
	m["fields"] = fields
	return json.Marshal(m)
}

func (s *Schema) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*s = Schema{}
	if raw, ok := m["fields"]; ok {
		if err := json.Unmarshal(raw, &s.Fields); err != nil {
			return err
		}
		delete(m, "fields")
	}
	for k, raw := range m {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		if s.Attrs == nil {
			s.Attrs = make(map[string]any, len(m))
		}
		s.Attrs[k] = v
	}
	return nil
}

// FileFields returns the names of fields whose type is file, in schema order.
func (s Schema) FileFields() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Type == FieldFile {
			names = append(names, f.Name)
		}
	}
	return names
}

// Form is a named schema authored by a user.
type Form struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Schema         Schema    `json:"schema"`
	AllowExport    bool      `json:"allow_excel_download"`
	CreatedBy      string    `json:"-"`
	CreatedByEmail string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
