package invoke

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/getmockd/grpcprobe/pkg/schema"
)

// Object is a decoded message: field names in declaration order.
type Object = orderedmap.OrderedMap[string, any]

// Encode builds a dynamic message of type md from an object-form value.
// Messages, wrappers included, are objects keyed by proto or JSON field name.
// google.protobuf types with a special JSON form (Timestamp, Duration,
// Struct, ...) use that form. Unknown fields are rejected and null means
// unset.
func Encode(md protoreflect.MessageDescriptor, obj map[string]any) (*dynamicpb.Message, error) {
	msg := dynamicpb.NewMessage(md)
	if err := encodeMessage(msg, obj, string(md.Name())); err != nil {
		return nil, err
	}
	return msg, nil
}

// hasJSONMapping reports whether a message has a special proto3 JSON form
// that protojson handles. Scalar wrappers are excluded: they travel in
// object form.
func hasJSONMapping(md protoreflect.MessageDescriptor) bool {
	name := string(md.FullName())
	if !schema.IsWellKnown(name) {
		return false
	}
	kind, _ := schema.WrapperOf(name)
	return kind == schema.WrapperNone
}

func encodeMessage(msg protoreflect.Message, obj map[string]any, path string) error {
	md := msg.Descriptor()
	if hasJSONMapping(md) {
		return encodeWellKnown(msg, obj, path)
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := md.Fields()
	for _, key := range keys {
		fd := fields.ByName(protoreflect.Name(key))
		if fd == nil {
			fd = fields.ByJSONName(key)
		}
		if fd == nil {
			return fmt.Errorf("%s: unknown field %q", path, key)
		}
		raw := obj[key]
		if raw == nil {
			continue
		}
		if oo := fd.ContainingOneof(); oo != nil && !oo.IsSynthetic() {
			if set := msg.WhichOneof(oo); set != nil {
				return fmt.Errorf("%s: fields %s and %s are both members of oneof %s", path, set.Name(), fd.Name(), oo.Name())
			}
		}
		if err := encodeField(msg, fd, raw, joinPath(path, string(fd.Name()))); err != nil {
			return err
		}
	}
	return nil
}

func encodeField(msg protoreflect.Message, fd protoreflect.FieldDescriptor, raw any, path string) error {
	switch {
	case fd.IsMap():
		m, err := asObject(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		mp := msg.Mutable(fd).Map()
		for k, item := range m {
			key, err := mapKey(fd.MapKey(), k)
			if err != nil {
				return fmt.Errorf("%s[%s]: %w", path, k, err)
			}
			val, err := encodeValue(fd.MapValue(), item, mp.NewValue, fmt.Sprintf("%s[%s]", path, k))
			if err != nil {
				return err
			}
			mp.Set(key, val)
		}
		return nil

	case fd.IsList():
		items, ok := raw.([]any)
		if !ok {
			return fmt.Errorf("%s: expected a list, got %T", path, raw)
		}
		list := msg.Mutable(fd).List()
		for i, item := range items {
			val, err := encodeValue(fd, item, list.NewElement, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return err
			}
			list.Append(val)
		}
		return nil

	case fd.Message() != nil:
		return encodeSubMessage(msg.Mutable(fd).Message(), raw, path)

	default:
		val, err := scalarValue(fd, raw)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		msg.Set(fd, val)
		return nil
	}
}

// encodeValue converts one list element or map value. newMessage allocates
// the element when fd is message-typed.
func encodeValue(fd protoreflect.FieldDescriptor, raw any, newMessage func() protoreflect.Value, path string) (protoreflect.Value, error) {
	if fd.Message() == nil {
		val, err := scalarValue(fd, raw)
		if err != nil {
			return protoreflect.Value{}, fmt.Errorf("%s: %w", path, err)
		}
		return val, nil
	}
	val := newMessage()
	if raw == nil {
		return val, nil
	}
	if err := encodeSubMessage(val.Message(), raw, path); err != nil {
		return protoreflect.Value{}, err
	}
	return val, nil
}

func encodeSubMessage(msg protoreflect.Message, raw any, path string) error {
	if hasJSONMapping(msg.Descriptor()) {
		return encodeWellKnown(msg, raw, path)
	}
	obj, err := asObject(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return encodeMessage(msg, obj, path)
}

func encodeWellKnown(msg protoreflect.Message, raw any, path string) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := protojson.Unmarshal(data, msg.Interface()); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func mapKey(fd protoreflect.FieldDescriptor, k string) (protoreflect.MapKey, error) {
	if fd.Kind() == protoreflect.StringKind {
		return protoreflect.ValueOfString(k).MapKey(), nil
	}
	val, err := scalarValue(fd, k)
	if err != nil {
		return protoreflect.MapKey{}, err
	}
	return val.MapKey(), nil
}

func scalarValue(fd protoreflect.FieldDescriptor, raw any) (protoreflect.Value, error) {
	switch fd.Kind() {
	case protoreflect.StringKind:
		s, ok := raw.(string)
		if !ok {
			return protoreflect.Value{}, fmt.Errorf("expected a string, got %T", raw)
		}
		return protoreflect.ValueOfString(s), nil

	case protoreflect.BytesKind:
		s, ok := raw.(string)
		if !ok {
			return protoreflect.Value{}, fmt.Errorf("expected base64 string, got %T", raw)
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			if b, err = base64.URLEncoding.DecodeString(s); err != nil {
				return protoreflect.Value{}, fmt.Errorf("invalid base64: %w", err)
			}
		}
		return protoreflect.ValueOfBytes(b), nil

	case protoreflect.BoolKind:
		switch b := raw.(type) {
		case bool:
			return protoreflect.ValueOfBool(b), nil
		case string:
			v, err := strconv.ParseBool(b)
			if err != nil {
				return protoreflect.Value{}, fmt.Errorf("expected a boolean, got %q", b)
			}
			return protoreflect.ValueOfBool(v), nil
		}
		return protoreflect.Value{}, fmt.Errorf("expected a boolean, got %T", raw)

	case protoreflect.EnumKind:
		return enumValue(fd.Enum(), raw)

	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		n, err := toInt(raw, 32)
		return protoreflect.ValueOfInt32(int32(n)), err

	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		n, err := toInt(raw, 64)
		return protoreflect.ValueOfInt64(n), err

	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		n, err := toUint(raw, 32)
		return protoreflect.ValueOfUint32(uint32(n)), err

	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		n, err := toUint(raw, 64)
		return protoreflect.ValueOfUint64(n), err

	case protoreflect.FloatKind:
		f, err := toFloat(raw)
		return protoreflect.ValueOfFloat32(float32(f)), err

	case protoreflect.DoubleKind:
		f, err := toFloat(raw)
		return protoreflect.ValueOfFloat64(f), err
	}
	return protoreflect.Value{}, fmt.Errorf("unsupported kind %s", fd.Kind())
}

func enumValue(ed protoreflect.EnumDescriptor, raw any) (protoreflect.Value, error) {
	if s, ok := raw.(string); ok {
		if v := ed.Values().ByName(protoreflect.Name(s)); v != nil {
			return protoreflect.ValueOfEnum(v.Number()), nil
		}
		if _, err := strconv.Atoi(s); err != nil {
			return protoreflect.Value{}, fmt.Errorf("unknown %s value %q", ed.Name(), s)
		}
	}
	n, err := toInt(raw, 32)
	if err != nil {
		return protoreflect.Value{}, fmt.Errorf("expected %s name or number: %w", ed.Name(), err)
	}
	return protoreflect.ValueOfEnum(protoreflect.EnumNumber(n)), nil
}

// numberText returns the decimal text of a decoded JSON number or numeric
// string.
func numberText(raw any) (string, error) {
	switch n := raw.(type) {
	case string:
		return strings.TrimSpace(n), nil
	case json.Number:
		return n.String(), nil
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(n), nil
	case int32:
		return strconv.FormatInt(int64(n), 10), nil
	case int64:
		return strconv.FormatInt(n, 10), nil
	case uint32:
		return strconv.FormatUint(uint64(n), 10), nil
	case uint64:
		return strconv.FormatUint(n, 10), nil
	}
	return "", fmt.Errorf("expected a number, got %T", raw)
}

func toInt(raw any, bits int) (int64, error) {
	text, err := numberText(raw)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(text, 10, bits)
	if err == nil {
		return n, nil
	}
	f, ferr := strconv.ParseFloat(text, 64)
	if ferr != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("expected an integer, got %q", text)
	}
	if bits == 32 && (f < math.MinInt32 || f > math.MaxInt32) || bits == 64 && (f < math.MinInt64 || f >= math.MaxInt64) {
		return 0, fmt.Errorf("%s overflows int%d", text, bits)
	}
	return int64(f), nil
}

func toUint(raw any, bits int) (uint64, error) {
	text, err := numberText(raw)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(text, 10, bits)
	if err == nil {
		return n, nil
	}
	f, ferr := strconv.ParseFloat(text, 64)
	if ferr != nil || f != math.Trunc(f) || f < 0 {
		return 0, fmt.Errorf("expected an unsigned integer, got %q", text)
	}
	if bits == 32 && f > math.MaxUint32 || bits == 64 && f >= math.MaxUint64 {
		return 0, fmt.Errorf("%s overflows uint%d", text, bits)
	}
	return uint64(f), nil
}

func toFloat(raw any) (float64, error) {
	if s, ok := raw.(string); ok {
		switch s {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
	}
	text, err := numberText(raw)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("expected a number, got %q", text)
	}
	return f, nil
}

// Decode renders a message as an ordered object keyed by proto field name.
// Every field is present: unset scalars carry their default, unset messages
// are null, lists are [] and maps {}. Unset oneof members are omitted.
// 64-bit integers are strings, enums are value names and bytes are base64.
// Wrapper messages stay in object form.
func Decode(msg protoreflect.Message) *Object {
	return decodeFields(msg)
}

func decodeMessage(msg protoreflect.Message) any {
	if hasJSONMapping(msg.Descriptor()) {
		return decodeWellKnown(msg)
	}
	return decodeFields(msg)
}

func decodeFields(msg protoreflect.Message) *Object {
	obj := orderedmap.New[string, any]()
	fields := msg.Descriptor().Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if oo := fd.ContainingOneof(); oo != nil && !oo.IsSynthetic() && msg.WhichOneof(oo) != fd {
			continue
		}
		obj.Set(string(fd.Name()), decodeField(msg, fd))
	}
	return obj
}

func decodeField(msg protoreflect.Message, fd protoreflect.FieldDescriptor) any {
	switch {
	case fd.IsMap():
		mp := msg.Get(fd).Map()
		keys := make([]protoreflect.MapKey, 0, mp.Len())
		mp.Range(func(k protoreflect.MapKey, _ protoreflect.Value) bool {
			keys = append(keys, k)
			return true
		})
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		out := orderedmap.New[string, any]()
		for _, k := range keys {
			out.Set(k.String(), decodeValue(fd.MapValue(), mp.Get(k)))
		}
		return out

	case fd.IsList():
		list := msg.Get(fd).List()
		out := make([]any, list.Len())
		for i := range out {
			out[i] = decodeValue(fd, list.Get(i))
		}
		return out

	case fd.Message() != nil:
		if !msg.Has(fd) {
			return nil
		}
		return decodeMessage(msg.Get(fd).Message())

	default:
		return decodeValue(fd, msg.Get(fd))
	}
}

func decodeValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return decodeMessage(v.Message())
	case protoreflect.EnumKind:
		if ev := fd.Enum().Values().ByNumber(v.Enum()); ev != nil {
			return string(ev.Name())
		}
		return int32(v.Enum())
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return strconv.FormatInt(v.Int(), 10)
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return strconv.FormatUint(v.Uint(), 10)
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return int32(v.Int())
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return uint32(v.Uint())
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		return decodeFloat(v.Float())
	case protoreflect.BytesKind:
		return base64.StdEncoding.EncodeToString(v.Bytes())
	default:
		return v.Interface()
	}
}

func decodeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return f
}

func decodeWellKnown(msg protoreflect.Message) any {
	data, err := protojson.Marshal(msg.Interface())
	if err != nil {
		return nil
	}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}
