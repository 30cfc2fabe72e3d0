package invoke

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/getmockd/grpcprobe/pkg/schema"
)

const wrapperValueKey = "value"

// Shape returns a copy of req in which every scalar wrapper field of node is
// in its wire form {"value": v}. A bare value is wrapped; an absent, null,
// empty-string or empty-object value becomes the zero value of the wrapped
// kind; an already wrapped value is kept. Shaping applies to nested messages,
// lists and maps that are present in req. req is not modified.
//
// Wrapper fields inside a oneof are only shaped when present, since injecting
// them would select the oneof member.
func Shape(tree *schema.Tree, node *schema.TypeNode, req any) (map[string]any, error) {
	obj, err := asObject(req)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return shapeObject(tree, node, obj, "")
}

func shapeObject(tree *schema.Tree, node *schema.TypeNode, in map[string]any, path string) (map[string]any, error) {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	if node == nil {
		return out, nil
	}

	for _, f := range node.Fields {
		key, present := fieldKey(out, f)
		fieldPath := joinPath(path, f.Name)

		switch {
		case f.Wrapper != schema.WrapperNone && f.Repeated:
			if !present || out[key] == nil {
				continue
			}
			list, ok := out[key].([]any)
			if !ok {
				return nil, fmt.Errorf("%s: expected a list", fieldPath)
			}
			wrapped := make([]any, len(list))
			for i, item := range list {
				wrapped[i] = wrap(item, f.WrappedScalar)
			}
			out[key] = wrapped

		case f.Wrapper != schema.WrapperNone:
			if !present && f.Oneof != "" {
				continue
			}
			out[key] = wrap(out[key], f.WrappedScalar)

		case f.Map:
			if !present || out[key] == nil {
				continue
			}
			shaped, err := shapeMap(tree, f, out[key], fieldPath)
			if err != nil {
				return nil, err
			}
			out[key] = shaped

		case f.IsMessageRef():
			if !present || out[key] == nil {
				continue
			}
			target, ok := tree.Resolve(f)
			if !ok || target.Kind != schema.KindMessage || schema.IsWellKnown(target.FullName) {
				continue
			}
			shaped, err := shapeValue(tree, target, out[key], f.Repeated, fieldPath)
			if err != nil {
				return nil, err
			}
			out[key] = shaped
		}
	}
	return out, nil
}

func shapeValue(tree *schema.Tree, target *schema.TypeNode, v any, repeated bool, path string) (any, error) {
	if !repeated {
		obj, err := asObject(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return shapeObject(tree, target, obj, path)
	}

	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected a list", path)
	}
	out := make([]any, len(list))
	for i, item := range list {
		if item == nil {
			continue
		}
		obj, err := asObject(item)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", path, i, err)
		}
		if out[i], err = shapeObject(tree, target, obj, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func shapeMap(tree *schema.Tree, f *schema.Field, v any, path string) (any, error) {
	m, err := asObject(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	entry, ok := tree.Resolve(f)
	if !ok {
		return m, nil
	}
	vf := entry.Field(wrapperValueKey)
	if vf == nil || !vf.IsMessageRef() {
		return m, nil
	}

	out := make(map[string]any, len(m))
	for k, item := range m {
		switch {
		case vf.Wrapper != schema.WrapperNone:
			out[k] = wrap(item, vf.WrappedScalar)
		case item == nil:
			out[k] = nil
		default:
			target, ok := tree.Resolve(vf)
			if !ok || target.Kind != schema.KindMessage || schema.IsWellKnown(target.FullName) {
				out[k] = item
				continue
			}
			shaped, err := shapeValue(tree, target, item, false, path+"["+k+"]")
			if err != nil {
				return nil, err
			}
			out[k] = shaped
		}
	}
	return out, nil
}

// wrap puts v in wrapper form. Already wrapped values are returned as a copy.
func wrap(v any, kind schema.ScalarKind) map[string]any {
	if obj, err := asObject(v); err == nil && obj != nil {
		if inner, ok := obj[wrapperValueKey]; ok {
			out := make(map[string]any, len(obj))
			for k, x := range obj {
				out[k] = x
			}
			if inner == nil {
				out[wrapperValueKey] = zeroValue(kind)
			}
			return out
		}
		if len(obj) == 0 {
			return map[string]any{wrapperValueKey: zeroValue(kind)}
		}
	}
	if v == nil || v == "" {
		return map[string]any{wrapperValueKey: zeroValue(kind)}
	}
	return map[string]any{wrapperValueKey: v}
}

func zeroValue(kind schema.ScalarKind) any {
	switch kind {
	case schema.ScalarBool:
		return false
	case schema.ScalarDouble, schema.ScalarFloat:
		return 0.0
	case schema.ScalarInt32, schema.ScalarInt64, schema.ScalarUint32, schema.ScalarUint64:
		return 0
	default:
		return ""
	}
}

// fieldKey finds the key under which f appears in obj: the proto name,
// then the JSON name. Absent fields get the proto name.
func fieldKey(obj map[string]any, f *schema.Field) (string, bool) {
	if _, ok := obj[f.Name]; ok {
		return f.Name, true
	}
	if f.JSONName != "" {
		if _, ok := obj[f.JSONName]; ok {
			return f.JSONName, true
		}
	}
	return f.Name, false
}

// asObject accepts the object forms a request may arrive in: decoded JSON
// maps and the ordered objects produced by example synthesis. Ordered objects
// are converted to plain maps, recursively.
func asObject(v any) (map[string]any, error) {
	switch o := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return o, nil
	case *orderedmap.OrderedMap[string, any]:
		if o == nil {
			return nil, nil
		}
		out := make(map[string]any, o.Len())
		for pair := o.Oldest(); pair != nil; pair = pair.Next() {
			out[pair.Key] = plain(pair.Value)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected an object, got %T", v)
	}
}

func plain(v any) any {
	switch o := v.(type) {
	case *orderedmap.OrderedMap[string, any]:
		m, _ := asObject(o)
		return m
	case []any:
		out := make([]any, len(o))
		for i, item := range o {
			out[i] = plain(item)
		}
		return out
	default:
		return v
	}
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}
