package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/strata/errors"
)

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		raw  string
		want any
	}{
		{"text", KindText, "hello", "hello"},
		{"number", KindNumber, "42.5", 42.5},
		{"negative number", KindNumber, " -3 ", -3.0},
		{"boolean true", KindBoolean, "TRUE", true},
		{"boolean false", KindBoolean, "false", false},
		{"date", KindDate, "2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"json object", KindJSON, `{"a":1}`, map[string]any{"a": 1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := DecodeValue(tt.kind, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, v.Kind)
			assert.Equal(t, tt.want, v.Interface())
		})
	}
}

func TestDecodeValue_Mismatch(t *testing.T) {
	tests := []struct {
		kind Kind
		raw  string
	}{
		{KindNumber, "abc"},
		{KindBoolean, "yes"},
		{KindDate, "03/01/2024"},
		{KindJSON, "{broken"},
		{Kind("blob"), "x"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			_, err := DecodeValue(tt.kind, tt.raw)
			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err))
		})
	}
}

func TestAttributeTyped_RevalidatesOnRead(t *testing.T) {
	// A value mutated out of band no longer matches its kind
	a := Attribute{Name: "age", Kind: KindNumber, Value: "forty"}

	_, err := a.Typed()
	assert.True(t, errors.IsValidationError(err))
}

func TestValueString(t *testing.T) {
	v, err := DecodeValue(KindDate, "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", v.String())

	v, err = DecodeValue(KindNumber, "10.50")
	require.NoError(t, err)
	assert.Equal(t, "10.5", v.String())
}

func TestReservedTypes(t *testing.T) {
	assert.True(t, IsReservedType(SchemaEntityType))
	assert.False(t, IsReservedType("invoice"))
	assert.False(t, IsReservedType(""))
	assert.True(t, Entity{Type: "_internal"}.IsReserved())
}

func TestKindValid(t *testing.T) {
	for _, k := range Kinds {
		assert.True(t, k.Valid())
	}
	assert.False(t, Kind("blob").Valid())
}
