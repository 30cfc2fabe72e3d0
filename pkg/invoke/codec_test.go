package invoke

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
)

func messageDescriptor(t *testing.T, name string) protoreflect.MessageDescriptor {
	t.Helper()
	tree, _ := loadFixtures(t)
	md := lookup(t, tree, name).MessageDescriptor()
	require.NotNil(t, md, "%s is not linked", name)
	return md
}

func marshalObject(t *testing.T, obj *Object) string {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return string(data)
}

func TestEncodeWrappedRequest(t *testing.T) {
	md := messageDescriptor(t, "shop.v1.GetProductRequest")

	msg, err := Encode(md, map[string]any{
		"product_variant_id":     map[string]any{"value": "hello world"},
		"campaignId":             map[string]any{"value": "61974"},
		"is_zepto_three_enabled": map[string]any{"value": false},
		"store_id":               "s1",
		"filter":                 map[string]any{"tags": []any{"a", "b"}},
	})
	require.NoError(t, err)

	data, err := protojson.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"productVariantId": "hello world",
		"campaignId": "61974",
		"isZeptoThreeEnabled": false,
		"storeId": "s1",
		"filter": {"tags": ["a", "b"]}
	}`, string(data))

	isZepto := md.Fields().ByName("is_zepto_three_enabled")
	assert.True(t, msg.Has(isZepto), "a wrapper holding its zero value is still present")
}

func TestEncodeErrors(t *testing.T) {
	md := messageDescriptor(t, "shop.v1.Product")

	tests := []struct {
		name string
		in   map[string]any
		want string
	}{
		{"unknown field", map[string]any{"nope": 1}, `unknown field "nope"`},
		{"bare wrapper", map[string]any{"rating": 4.5}, "expected an object"},
		{"oneof conflict", map[string]any{"coupon": "x", "percent": 1.0}, "oneof discount"},
		{"wrong scalar", map[string]any{"name": 5}, "expected a string"},
		{"fractional int", map[string]any{"stock": 1.5}, "expected an integer"},
		{"bad enum", map[string]any{"status": "STATUS_GONE"}, "unknown Status value"},
		{"bad list", map[string]any{"tags": "a"}, "expected a list"},
		{"bad base64", map[string]any{"thumbnail": "***"}, "invalid base64"},
		{"bad timestamp", map[string]any{"updated_at": "yesterday"}, "updated_at"},
		{"nested unknown", map[string]any{"price": map[string]any{"cents": 1}}, "price: unknown field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(md, tt.in)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEncodeScalarForms(t *testing.T) {
	md := messageDescriptor(t, "shop.v1.Product")

	msg, err := Encode(md, map[string]any{
		"stock":      json.Number("9007199254740993"),
		"status":     float64(1),
		"percent":    "Infinity",
		"thumbnail":  "aGk=",
		"updated_at": "2024-01-02T03:04:05Z",
		"attributes": map[string]any{"color": "red"},
		"price":      map[string]any{"units": "100", "nanos": 5},
	})
	require.NoError(t, err)

	fields := md.Fields()
	assert.Equal(t, int64(9007199254740993), msg.Get(fields.ByName("stock")).Int())
	assert.Equal(t, protoreflect.EnumNumber(1), msg.Get(fields.ByName("status")).Enum())
	assert.True(t, math.IsInf(msg.Get(fields.ByName("percent")).Float(), 1))
	assert.Equal(t, []byte("hi"), msg.Get(fields.ByName("thumbnail")).Bytes())
	assert.Equal(t, 1, msg.Get(fields.ByName("attributes")).Map().Len())
}

func TestEncodeNullMeansUnset(t *testing.T) {
	md := messageDescriptor(t, "shop.v1.Product")

	msg, err := Encode(md, map[string]any{"price": nil, "id": nil})
	require.NoError(t, err)
	assert.False(t, msg.Has(md.Fields().ByName("price")))
}

func TestDecodeRendering(t *testing.T) {
	md := messageDescriptor(t, "shop.v1.Product")

	msg, err := Encode(md, map[string]any{
		"id":         "p1",
		"price":      map[string]any{"currency_code": "EUR", "units": 100},
		"tags":       []any{"a"},
		"attributes": map[string]any{"size": "L", "color": "red"},
		"status":     "STATUS_ACTIVE",
		"rating":     map[string]any{"value": 4.5},
		"stock":      7,
		"percent":    12.5,
		"updated_at": "2024-01-02T03:04:05Z",
		"thumbnail":  "aGk=",
	})
	require.NoError(t, err)

	assert.Equal(t,
		`{"id":"p1","name":"","price":{"currency_code":"EUR","units":"100","nanos":0},"tags":["a"],`+
			`"attributes":{"color":"red","size":"L"},"status":"STATUS_ACTIVE","rating":{"value":4.5},"stock":"7",`+
			`"percent":12.5,"updated_at":"2024-01-02T03:04:05Z","thumbnail":"aGk="}`,
		marshalObject(t, Decode(msg)))
}

func TestDecodeDefaults(t *testing.T) {
	md := messageDescriptor(t, "shop.v1.Product")

	msg, err := Encode(md, nil)
	require.NoError(t, err)
	assert.Equal(t,
		`{"id":"","name":"","price":null,"tags":[],"attributes":{},"status":"STATUS_UNSPECIFIED",`+
			`"rating":null,"stock":"0","updated_at":null,"thumbnail":""}`,
		marshalObject(t, Decode(msg)))
}

func TestDecodeNonFiniteFloats(t *testing.T) {
	md := messageDescriptor(t, "shop.v1.Product")

	msg, err := Encode(md, map[string]any{"percent": "NaN"})
	require.NoError(t, err)
	obj := Decode(msg)
	v, _ := obj.Get("percent")
	assert.Equal(t, "NaN", v)
}

func TestEncodeDecodeWrapperAsymmetry(t *testing.T) {
	tree, _ := loadFixtures(t)
	node := lookup(t, tree, "shop.v1.GetProductRequest")

	shaped, err := Shape(tree, node, map[string]any{"product_variant_id": "abc"})
	require.NoError(t, err)
	msg, err := Encode(node.MessageDescriptor(), shaped)
	require.NoError(t, err)

	obj := Decode(msg)
	v, ok := obj.Get("product_variant_id")
	require.True(t, ok)
	wrapped, ok := v.(*Object)
	require.True(t, ok, "wrappers are not unwrapped on the way out")
	inner, _ := wrapped.Get("value")
	assert.Equal(t, "abc", inner)
}
