package invoke

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/grpcprobe/pkg/example"
)

func TestShapeWrapsBareValues(t *testing.T) {
	tree, _ := loadFixtures(t)
	node := lookup(t, tree, "shop.v1.GetProductRequest")

	got, err := Shape(tree, node, map[string]any{
		"product_variant_id":     "hello world",
		"campaign_id":            "61974",
		"is_zepto_three_enabled": true,
		"store_id":               "s1",
		"filter":                 map[string]any{"campaign_tag_id": "velit", "tags": []any{"a"}},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"product_variant_id":     map[string]any{"value": "hello world"},
		"campaign_id":            map[string]any{"value": "61974"},
		"is_zepto_three_enabled": map[string]any{"value": true},
		"store_id":               "s1",
		"filter": map[string]any{
			"campaign_tag_id": map[string]any{"value": "velit"},
			"tags":            []any{"a"},
		},
	}, got)
}

func TestShapeInjectsMissingWrappers(t *testing.T) {
	tree, _ := loadFixtures(t)
	node := lookup(t, tree, "shop.v1.GetProductRequest")

	tests := []struct {
		name string
		in   map[string]any
	}{
		{"absent", map[string]any{}},
		{"null", map[string]any{"product_variant_id": nil, "campaign_id": nil, "is_zepto_three_enabled": nil}},
		{"empty", map[string]any{"product_variant_id": "", "campaign_id": "", "is_zepto_three_enabled": map[string]any{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Shape(tree, node, tt.in)
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"value": ""}, got["product_variant_id"])
			assert.Equal(t, map[string]any{"value": 0}, got["campaign_id"])
			assert.Equal(t, map[string]any{"value": false}, got["is_zepto_three_enabled"])
			_, hasFilter := got["filter"]
			assert.False(t, hasFilter, "absent nested messages are not created")
			_, hasStore := got["store_id"]
			assert.False(t, hasStore, "plain scalars are not injected")
		})
	}
}

func TestShapeNeverDropsWrapperFields(t *testing.T) {
	tree, _ := loadFixtures(t)

	for _, name := range tree.TypeNames() {
		node := lookup(t, tree, name)
		got, err := Shape(tree, node, nil)
		require.NoError(t, err)
		for _, f := range node.Fields {
			if f.Wrapper != 0 && !f.Repeated && f.Oneof == "" {
				assert.Contains(t, got, f.Name, "%s.%s", name, f.Name)
			}
		}
	}
}

func TestShapeIdempotent(t *testing.T) {
	tree, _ := loadFixtures(t)
	node := lookup(t, tree, "shop.v1.GetProductRequest")

	inputs := []map[string]any{
		{},
		{"product_variant_id": "x", "filter": map[string]any{}},
		{"product_variant_id": map[string]any{"value": "x"}, "campaign_id": 5},
		{"productVariantId": "json-name", "isZeptoThreeEnabled": map[string]any{"value": nil}},
		{"filter": map[string]any{"campaign_tag_id": ""}},
	}

	for _, in := range inputs {
		once, err := Shape(tree, node, in)
		require.NoError(t, err)
		twice, err := Shape(tree, node, once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestShapeKeepsJSONNames(t *testing.T) {
	tree, _ := loadFixtures(t)
	node := lookup(t, tree, "shop.v1.GetProductRequest")

	got, err := Shape(tree, node, map[string]any{"productVariantId": "abc", "unknown": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"value": "abc"}, got["productVariantId"])
	assert.NotContains(t, got, "product_variant_id")
	assert.Equal(t, 1, got["unknown"], "unknown keys are left for the encoder to reject")
}

func TestShapeDoesNotModifyInput(t *testing.T) {
	tree, _ := loadFixtures(t)
	node := lookup(t, tree, "shop.v1.GetProductRequest")

	filter := map[string]any{"campaign_tag_id": "velit"}
	in := map[string]any{"product_variant_id": "x", "filter": filter}
	_, err := Shape(tree, node, in)
	require.NoError(t, err)

	assert.Equal(t, "x", in["product_variant_id"])
	assert.Equal(t, "velit", filter["campaign_tag_id"])
	assert.Len(t, in, 2)
}

func TestShapeAcceptsExampleObjects(t *testing.T) {
	tree, _ := loadFixtures(t)
	node := lookup(t, tree, "shop.v1.GetProductRequest")

	obj := example.New(tree).Synthesize(node)
	got, err := Shape(tree, node, obj)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"value": "hello world"}, got["product_variant_id"])
	assert.Equal(t, map[string]any{"value": "61974"}, got["campaign_id"])
	assert.Equal(t, map[string]any{"value": true}, got["is_zepto_three_enabled"])
	assert.Equal(t, map[string]any{"value": "velit"}, got["filter"].(map[string]any)["campaign_tag_id"])
}

func TestShapeListsAndMaps(t *testing.T) {
	tree := loadSource(t, `syntax = "proto3";
package shape;
import "google/protobuf/wrappers.proto";
message Item { google.protobuf.StringValue sku = 1; }
message Req {
  repeated google.protobuf.Int32Value counts = 1;
  repeated Item items = 2;
  map<string, google.protobuf.BoolValue> flags = 3;
  map<string, Item> by_id = 4;
  oneof pick {
    google.protobuf.StringValue a = 5;
    google.protobuf.StringValue b = 6;
  }
}
`)
	node := lookup(t, tree, "shape.Req")

	got, err := Shape(tree, node, map[string]any{
		"counts": []any{1, map[string]any{"value": 2}},
		"items":  []any{map[string]any{"sku": "x"}, map[string]any{}},
		"flags":  map[string]any{"on": true},
		"by_id":  map[string]any{"k": map[string]any{"sku": "y"}},
		"b":      "chosen",
	})
	require.NoError(t, err)

	assert.Equal(t, []any{map[string]any{"value": 1}, map[string]any{"value": 2}}, got["counts"])
	assert.Equal(t, []any{
		map[string]any{"sku": map[string]any{"value": "x"}},
		map[string]any{"sku": map[string]any{"value": ""}},
	}, got["items"])
	assert.Equal(t, map[string]any{"on": map[string]any{"value": true}}, got["flags"])
	assert.Equal(t, map[string]any{"k": map[string]any{"sku": map[string]any{"value": "y"}}}, got["by_id"])
	assert.Equal(t, map[string]any{"value": "chosen"}, got["b"])
	assert.NotContains(t, got, "a", "absent oneof members are not injected")
}

func TestShapeRejectsNonObjects(t *testing.T) {
	tree, _ := loadFixtures(t)
	node := lookup(t, tree, "shop.v1.GetProductRequest")

	_, err := Shape(tree, node, []any{1})
	assert.Error(t, err)

	_, err = Shape(tree, node, map[string]any{"filter": "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "filter")
}
