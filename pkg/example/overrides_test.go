package example

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/grpcprobe/pkg/schema"
)

func TestDefaultOverrides(t *testing.T) {
	o := MustOverrides(DefaultOverrides())
	assert.Equal(t, 4, o.Len())

	tests := []struct {
		field string
		kind  schema.ScalarKind
		want  any
		ok    bool
	}{
		{"product_variant_id", schema.ScalarString, "hello world", true},
		{"campaign_tag_id", schema.ScalarString, "velit", true},
		{"campaign_id", schema.ScalarInt64, "61974", true},
		{"is_zepto_three_enabled", schema.ScalarBool, true, true},
		{"campaign_id", schema.ScalarString, nil, false},
		{"id", schema.ScalarString, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.field+"/"+tt.kind.String(), func(t *testing.T) {
			got, ok := o.Lookup(tt.field, tt.kind)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOverridesKindPreference(t *testing.T) {
	o := MustOverrides([]Override{
		{Field: "id", Value: "any-kind"},
		{Field: "id", Kind: "int32", Value: 7},
	})

	got, ok := o.Lookup("id", schema.ScalarInt32)
	require.True(t, ok)
	assert.Equal(t, 7, got)

	got, ok = o.Lookup("id", schema.ScalarString)
	require.True(t, ok)
	assert.Equal(t, "any-kind", got)
}

func TestOverridesLaterEntryReplaces(t *testing.T) {
	o := MustOverrides([]Override{
		{Field: "id", Kind: "string", Value: "first"},
		{Field: "id", Kind: "string", Value: "second"},
	})
	got, _ := o.Lookup("id", schema.ScalarString)
	assert.Equal(t, "second", got)
	assert.Len(t, o.Entries(), 2)
}

func TestOverrides64BitAsString(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"int", 42, "42"},
		{"int64", int64(-9000000000), "-9000000000"},
		{"uint64", uint64(18446744073709551615), "18446744073709551615"},
		{"float", 61974.0, "61974"},
		{"json number", json.Number("123"), "123"},
		{"string", "77", "77"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := MustOverrides([]Override{{Field: "n", Kind: "uint64", Value: tt.value}})
			got, ok := o.Lookup("n", schema.ScalarUint64)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	o := MustOverrides([]Override{{Field: "n", Kind: "int32", Value: 42}})
	got, _ := o.Lookup("n", schema.ScalarInt32)
	assert.Equal(t, 42, got, "32-bit kinds keep numbers")
}

func TestNewOverridesInvalid(t *testing.T) {
	_, err := NewOverrides([]Override{{Kind: "string", Value: "x"}})
	assert.ErrorIs(t, err, ErrInvalidOverride)

	_, err = NewOverrides([]Override{{Field: "x", Kind: "varchar", Value: "x"}})
	assert.ErrorIs(t, err, ErrInvalidOverride)
	assert.Contains(t, err.Error(), "varchar")

	assert.Panics(t, func() { MustOverrides([]Override{{}}) })
}

func TestNilOverrides(t *testing.T) {
	var o *Overrides
	_, ok := o.Lookup("id", schema.ScalarString)
	assert.False(t, ok)
	assert.Nil(t, o.Entries())
	assert.Zero(t, o.Len())
}
