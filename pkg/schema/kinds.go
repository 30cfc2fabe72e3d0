package schema

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ScalarKind is the scalar type of a field. Fixed-width and zigzag encodings
// collapse onto the plain integer kind of the same width and signedness.
type ScalarKind int

const (
	// ScalarNone marks a field that references a message or enum type.
	ScalarNone ScalarKind = iota
	ScalarString
	ScalarInt32
	ScalarInt64
	ScalarUint32
	ScalarUint64
	ScalarBool
	ScalarDouble
	ScalarFloat
	ScalarBytes
)

var scalarNames = map[ScalarKind]string{
	ScalarNone:   "",
	ScalarString: "string",
	ScalarInt32:  "int32",
	ScalarInt64:  "int64",
	ScalarUint32: "uint32",
	ScalarUint64: "uint64",
	ScalarBool:   "bool",
	ScalarDouble: "double",
	ScalarFloat:  "float",
	ScalarBytes:  "bytes",
}

func (k ScalarKind) String() string {
	return scalarNames[k]
}

// Is64Bit reports whether values of this kind are rendered as strings in
// proto3 JSON.
func (k ScalarKind) Is64Bit() bool {
	return k == ScalarInt64 || k == ScalarUint64
}

// ParseScalarKind parses a scalar kind name such as "int64".
func ParseScalarKind(s string) (ScalarKind, bool) {
	for k, name := range scalarNames {
		if k != ScalarNone && name == s {
			return k, true
		}
	}
	return ScalarNone, false
}

func scalarFromKind(k protoreflect.Kind) ScalarKind {
	switch k {
	case protoreflect.StringKind:
		return ScalarString
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return ScalarInt32
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return ScalarInt64
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return ScalarUint32
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return ScalarUint64
	case protoreflect.BoolKind:
		return ScalarBool
	case protoreflect.DoubleKind:
		return ScalarDouble
	case protoreflect.FloatKind:
		return ScalarFloat
	case protoreflect.BytesKind:
		return ScalarBytes
	default:
		return ScalarNone
	}
}

func scalarFromProtoType(t descriptorpb.FieldDescriptorProto_Type) ScalarKind {
	switch t {
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE,
		descriptorpb.FieldDescriptorProto_TYPE_GROUP,
		descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		return ScalarNone
	}
	return scalarFromKind(protoreflect.Kind(t))
}

// WrapperKind tags a field whose type is one of the well-known scalar
// wrapper messages.
type WrapperKind int

const (
	WrapperNone WrapperKind = iota
	WrapperString
	WrapperInt
	WrapperBool
	WrapperDouble
)

func (w WrapperKind) String() string {
	switch w {
	case WrapperString:
		return "string"
	case WrapperInt:
		return "int"
	case WrapperBool:
		return "bool"
	case WrapperDouble:
		return "double"
	default:
		return ""
	}
}

type wrapperIdentity struct {
	kind   WrapperKind
	scalar ScalarKind
}

// wrapperIdentities is the closed set of wrapper messages, keyed by full name.
var wrapperIdentities = map[protoreflect.FullName]wrapperIdentity{
	fullNameOf(wrapperspb.String("")):  {WrapperString, ScalarString},
	fullNameOf(wrapperspb.Bytes(nil)):  {WrapperString, ScalarBytes},
	fullNameOf(wrapperspb.Int32(0)):    {WrapperInt, ScalarInt32},
	fullNameOf(wrapperspb.Int64(0)):    {WrapperInt, ScalarInt64},
	fullNameOf(wrapperspb.UInt32(0)):   {WrapperInt, ScalarUint32},
	fullNameOf(wrapperspb.UInt64(0)):   {WrapperInt, ScalarUint64},
	fullNameOf(wrapperspb.Bool(false)): {WrapperBool, ScalarBool},
	fullNameOf(wrapperspb.Double(0)):   {WrapperDouble, ScalarDouble},
	fullNameOf(wrapperspb.Float(0)):    {WrapperDouble, ScalarFloat},
}

func fullNameOf(m proto.Message) protoreflect.FullName {
	return m.ProtoReflect().Descriptor().FullName()
}

// WrapperOf returns the wrapper tag and underlying scalar kind for a message
// full name, or WrapperNone when the name is not a well-known wrapper.
func WrapperOf(fullName string) (WrapperKind, ScalarKind) {
	id, ok := wrapperIdentities[protoreflect.FullName(fullName)]
	if !ok {
		return WrapperNone, ScalarNone
	}
	return id.kind, id.scalar
}

// IsWellKnown reports whether fullName lives in the google.protobuf package.
func IsWellKnown(fullName string) bool {
	return len(fullName) > len(wellKnownPrefix) && fullName[:len(wellKnownPrefix)] == wellKnownPrefix
}

const wellKnownPrefix = "google.protobuf."
