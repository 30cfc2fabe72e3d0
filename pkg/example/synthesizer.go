package example

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/getmockd/grpcprobe/pkg/schema"
)

// Object is an example message: field names in declaration order.
type Object = orderedmap.OrderedMap[string, any]

// NewObject returns an empty Object.
func NewObject() *Object {
	return orderedmap.New[string, any]()
}

// wellKnownExamples are the proto3 JSON forms used for google.protobuf types
// that have a special JSON mapping and are not scalar wrappers.
var wellKnownExamples = map[string]func() any{
	"google.protobuf.Timestamp": func() any { return "1970-01-01T00:00:00Z" },
	"google.protobuf.Duration":  func() any { return "0s" },
	"google.protobuf.FieldMask": func() any { return "" },
	"google.protobuf.Struct":    func() any { return NewObject() },
	"google.protobuf.ListValue": func() any { return []any{} },
	"google.protobuf.Value":     func() any { return nil },
	"google.protobuf.Any":       func() any { return nil },
	"google.protobuf.Empty":     func() any { return nil },
}

// Synthesizer builds example request values from a schema tree. It only
// reads the tree and is safe for concurrent use.
type Synthesizer struct {
	tree      *schema.Tree
	overrides *Overrides
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithOverrides replaces the default override table. A nil table disables
// overrides.
func WithOverrides(o *Overrides) Option {
	return func(s *Synthesizer) {
		s.overrides = o
	}
}

// New creates a Synthesizer for tree using DefaultOverrides unless
// WithOverrides is given.
func New(tree *schema.Tree, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		tree:      tree,
		overrides: MustOverrides(DefaultOverrides()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Overrides returns the table in use.
func (s *Synthesizer) Overrides() *Overrides {
	return s.overrides
}

// Synthesize returns one example value for node with a key per field, in
// declaration order. It returns nil for a nil node. Only the first member of
// each oneof is emitted.
//
// Field values follow the field's shape: repeated fields are empty lists, map
// fields empty objects, scalars and wrappers the zero value of their kind
// unless overridden, and nested messages are expanded recursively. A nested
// message that is unresolved, an enum, already being expanded higher up the
// same path, or yields nothing but nulls becomes null.
func (s *Synthesizer) Synthesize(node *schema.TypeNode) *Object {
	if node == nil {
		return nil
	}
	return s.message(node, make(map[string]bool))
}

func (s *Synthesizer) message(node *schema.TypeNode, path map[string]bool) *Object {
	path[node.FullName] = true
	defer delete(path, node.FullName)

	obj := NewObject()
	oneofs := make(map[string]bool)
	for _, f := range node.Fields {
		if f.Oneof != "" {
			if oneofs[f.Oneof] {
				continue
			}
			oneofs[f.Oneof] = true
		}
		obj.Set(f.Name, s.field(f, path))
	}
	return obj
}

func (s *Synthesizer) field(f *schema.Field, path map[string]bool) any {
	switch {
	case f.Map:
		return NewObject()
	case f.Repeated:
		return []any{}
	case f.Wrapper != schema.WrapperNone:
		return s.scalar(f.Name, f.WrappedScalar)
	case !f.IsMessageRef():
		return s.scalar(f.Name, f.Scalar)
	}

	target, ok := s.tree.Resolve(f)
	if !ok || target.Kind == schema.KindEnum || path[target.FullName] {
		return nil
	}
	if wk, ok := wellKnownExamples[target.FullName]; ok {
		return wk()
	}

	child := s.message(target, path)
	if allNull(child) {
		return nil
	}
	return child
}

func (s *Synthesizer) scalar(name string, kind schema.ScalarKind) any {
	if v, ok := s.overrides.Lookup(name, kind); ok {
		return v
	}
	return ZeroValue(kind)
}

// ZeroValue returns the example value of a scalar kind before overrides.
func ZeroValue(kind schema.ScalarKind) any {
	switch kind {
	case schema.ScalarString, schema.ScalarBytes:
		return ""
	case schema.ScalarBool:
		return false
	case schema.ScalarDouble, schema.ScalarFloat:
		return 0.0
	case schema.ScalarInt32, schema.ScalarInt64, schema.ScalarUint32, schema.ScalarUint64:
		return 0
	default:
		return nil
	}
}

func allNull(obj *Object) bool {
	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value != nil {
			return false
		}
	}
	return true
}
