package example

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/getmockd/grpcprobe/pkg/schema"
)

// ErrInvalidOverride is returned by NewOverrides for malformed entries.
var ErrInvalidOverride = errors.New("invalid override")

// Override replaces the zero value of a named field with an illustrative
// literal in synthesized examples.
type Override struct {
	// Field is the proto field name it applies to, in any message.
	Field string `json:"field" yaml:"field"`

	// Kind restricts the override to one scalar kind ("string", "int64", ...).
	// Empty matches every kind.
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`

	Value any `json:"value" yaml:"value"`
}

// DefaultOverrides returns the built-in override table. Callers may extend or
// replace it through configuration.
func DefaultOverrides() []Override {
	return []Override{
		{Field: "product_variant_id", Kind: "string", Value: "hello world"},
		{Field: "campaign_tag_id", Kind: "string", Value: "velit"},
		{Field: "campaign_id", Kind: "int64", Value: "61974"},
		{Field: "is_zepto_three_enabled", Kind: "bool", Value: true},
	}
}

type override struct {
	kind  schema.ScalarKind
	value any
}

// Overrides is a validated, read-only override table.
type Overrides struct {
	entries []Override
	byField map[string][]override
}

// NewOverrides validates entries and indexes them by field name. Later
// entries for the same field and kind replace earlier ones.
func NewOverrides(entries []Override) (*Overrides, error) {
	o := &Overrides{byField: make(map[string][]override)}
	for i, e := range entries {
		if e.Field == "" {
			return nil, fmt.Errorf("%w: entry %d has no field name", ErrInvalidOverride, i)
		}
		kind := schema.ScalarNone
		if e.Kind != "" {
			k, ok := schema.ParseScalarKind(e.Kind)
			if !ok {
				return nil, fmt.Errorf("%w: field %s: unknown kind %q", ErrInvalidOverride, e.Field, e.Kind)
			}
			kind = k
		}

		list := o.byField[e.Field]
		replaced := false
		for j := range list {
			if list[j].kind == kind {
				list[j].value = e.Value
				replaced = true
			}
		}
		if !replaced {
			list = append(list, override{kind: kind, value: e.Value})
		}
		o.byField[e.Field] = list
		o.entries = append(o.entries, e)
	}
	return o, nil
}

// MustOverrides is NewOverrides for tables known to be valid.
func MustOverrides(entries []Override) *Overrides {
	o, err := NewOverrides(entries)
	if err != nil {
		panic(err)
	}
	return o
}

// Entries returns the table as configured.
func (o *Overrides) Entries() []Override {
	if o == nil {
		return nil
	}
	out := make([]Override, len(o.entries))
	copy(out, o.entries)
	return out
}

// Len returns the number of configured entries.
func (o *Overrides) Len() int {
	if o == nil {
		return 0
	}
	return len(o.entries)
}

// Lookup returns the literal for a field of the given scalar kind. An entry
// with a matching kind is preferred over a kind-less one. Values for 64-bit
// integer kinds are returned as strings.
func (o *Overrides) Lookup(field string, kind schema.ScalarKind) (any, bool) {
	if o == nil {
		return nil, false
	}
	var fallback *override
	for i, e := range o.byField[field] {
		if e.kind == kind {
			return encodeFor(e.value, kind), true
		}
		if e.kind == schema.ScalarNone {
			fallback = &o.byField[field][i]
		}
	}
	if fallback != nil {
		return encodeFor(fallback.value, kind), true
	}
	return nil, false
}

// encodeFor renders numeric literals for 64-bit integer kinds as strings,
// which is how proto3 JSON carries them.
func encodeFor(v any, kind schema.ScalarKind) any {
	if !kind.Is64Bit() {
		return v
	}
	switch n := v.(type) {
	case int:
		return strconv.Itoa(n)
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case uint32:
		return strconv.FormatUint(uint64(n), 10)
	case uint64:
		return strconv.FormatUint(n, 10)
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return strconv.FormatFloat(n, 'f', 0, 64)
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	case json.Number:
		return n.String()
	default:
		return v
	}
}
