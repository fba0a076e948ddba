package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldType_Valid(t *testing.T) {
	for _, ft := range FieldTypes {
		assert.True(t, ft.Valid(), string(ft))
	}
	assert.False(t, FieldType("phone").Valid())
	assert.False(t, FieldType("").Valid())
}

func TestSchema_JSONKeepsExtraAttributes(t *testing.T) {
	in := `{"title":"Signup","fields":[{"name":"colour","type":"select","required":true,"options":["red","blue"],"label":"Colour"}]}`

	var s Schema
	require.NoError(t, json.Unmarshal([]byte(in), &s))

	require.Len(t, s.Fields, 1)
	assert.Equal(t, "colour", s.Fields[0].Name)
	assert.Equal(t, FieldSelect, s.Fields[0].Type)
	assert.True(t, s.Fields[0].Required)
	assert.Equal(t, "Colour", s.Fields[0].Attrs["label"])
	assert.Equal(t, "Signup", s.Attrs["title"])

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestSchema_MarshalEmptyFields(t *testing.T) {
	out, err := json.Marshal(Schema{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"fields":[]}`, string(out))
}

func TestSchema_FileFields(t *testing.T) {
	s := Schema{Fields: []FieldDefinition{
		{Name: "photo", Type: FieldFile},
		{Name: "email", Type: FieldEmail},
		{Name: "cv", Type: FieldFile},
	}}
	assert.Equal(t, []string{"photo", "cv"}, s.FileFields())
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleEditor.Valid())
	assert.True(t, RoleViewer.Valid())
	assert.False(t, Role("root").Valid())
}
