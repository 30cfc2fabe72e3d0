package schema

import (
	"sort"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// TypeKind distinguishes message declarations from enum declarations.
type TypeKind int

const (
	KindMessage TypeKind = iota
	KindEnum
)

func (k TypeKind) String() string {
	if k == KindEnum {
		return "enum"
	}
	return "message"
}

// TypeNode is one message or enum declaration in the tree. Fields reference
// other nodes by qualified name, never by pointer, so cyclic schemas are
// plain data.
type TypeNode struct {
	// FullName is the qualified name without a leading dot (e.g. "shop.v1.Product").
	FullName string

	// Name is the unqualified declaration name.
	Name string

	// Namespace is the enclosing scope: the package, or the parent message
	// for nested declarations.
	Namespace string

	// Package is the proto package of the declaring file.
	Package string

	// File is the declaring file path, relative to the schema root.
	File string

	Kind TypeKind

	// Fields in declaration order. Empty for enums.
	Fields []*Field

	// EnumValues lists value names in declaration order. Empty for messages.
	EnumValues []string

	// EnumNumbers holds the number of each entry in EnumValues.
	EnumNumbers []int32

	// MapEntry marks the synthetic entry message of a map field.
	MapEntry bool

	desc protoreflect.Descriptor
}

// Linked reports whether the node came from a fully linked file and so can
// back a dynamic message.
func (t *TypeNode) Linked() bool {
	return t.desc != nil
}

// MessageDescriptor returns the linked descriptor, or nil for enums and
// declarations from files that failed to link.
func (t *TypeNode) MessageDescriptor() protoreflect.MessageDescriptor {
	md, _ := t.desc.(protoreflect.MessageDescriptor)
	return md
}

// Field looks up a field by proto name or JSON name.
func (t *TypeNode) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name || f.JSONName == name {
			return f
		}
	}
	return nil
}

// Field describes one field of a message.
type Field struct {
	Name     string
	JSONName string
	Number   int32

	// Scalar is the scalar kind, or ScalarNone when TypeRef names a message
	// or enum.
	Scalar ScalarKind

	// TypeRef is the referenced type. Once Resolved it is the qualified name
	// of a node in the tree; otherwise it is the symbolic name as written.
	TypeRef  string
	Resolved bool

	Repeated bool
	Map      bool

	// Oneof names the enclosing real oneof. Synthetic proto3 optional
	// oneofs are not recorded.
	Oneof string

	// Wrapper and WrappedScalar are set during resolution when TypeRef is
	// one of the google.protobuf wrapper messages.
	Wrapper       WrapperKind
	WrappedScalar ScalarKind
}

// IsMessageRef reports whether the field refers to another declaration.
func (f *Field) IsMessageRef() bool {
	return f.Scalar == ScalarNone
}

// ServiceNode is one service declaration.
type ServiceNode struct {
	Name      string
	FullName  string
	Namespace string
	File      string
	Methods   []*MethodNode

	desc protoreflect.ServiceDescriptor
}

// MethodNode is one rpc declaration inside a service.
type MethodNode struct {
	Name     string
	FullName string

	// RequestRef and ResponseRef follow the same convention as Field.TypeRef.
	RequestRef       string
	RequestResolved  bool
	ResponseRef      string
	ResponseResolved bool

	ClientStreaming bool
	ServerStreaming bool

	desc protoreflect.MethodDescriptor
}

// Descriptor returns the linked method descriptor, or nil when the declaring
// file did not link.
func (m *MethodNode) Descriptor() protoreflect.MethodDescriptor {
	return m.desc
}

// Namespace is one package segment. Children are kept sorted by name so
// walks are deterministic.
type Namespace struct {
	Name     string
	FullName string
	Children []*Namespace
	Types    []*TypeNode
	Services []*ServiceNode

	index map[string]*Namespace
}

func newNamespace(name, fullName string) *Namespace {
	return &Namespace{Name: name, FullName: fullName, index: make(map[string]*Namespace)}
}

func (n *Namespace) child(name string) *Namespace {
	if c, ok := n.index[name]; ok {
		return c
	}
	full := name
	if n.FullName != "" {
		full = n.FullName + "." + name
	}
	c := newNamespace(name, full)
	n.index[name] = c
	i := sort.Search(len(n.Children), func(i int) bool { return n.Children[i].Name >= name })
	n.Children = append(n.Children, nil)
	copy(n.Children[i+1:], n.Children[i:])
	n.Children[i] = c
	return c
}

// Tree is the merged, resolved schema of one load. It is read-only once
// Load returns and safe for concurrent readers.
type Tree struct {
	root        *Namespace
	types       map[string]*TypeNode
	services    map[string]*ServiceNode
	files       []string
	resolutions []TypeResolution
}

func newTree() *Tree {
	return &Tree{
		root:     newNamespace("", ""),
		types:    make(map[string]*TypeNode),
		services: make(map[string]*ServiceNode),
	}
}

// Root returns the top-level namespace.
func (t *Tree) Root() *Namespace {
	return t.root
}

// Lookup returns the type with the given qualified name. A leading dot is
// accepted.
func (t *Tree) Lookup(fullName string) (*TypeNode, bool) {
	n, ok := t.types[strings.TrimPrefix(fullName, ".")]
	return n, ok
}

// Resolve returns the node a field refers to. It reports false for scalar
// fields and for references that never resolved.
func (t *Tree) Resolve(f *Field) (*TypeNode, bool) {
	if f == nil || !f.IsMessageRef() || !f.Resolved {
		return nil, false
	}
	return t.Lookup(f.TypeRef)
}

// Service returns the service with the given qualified name.
func (t *Tree) Service(fullName string) (*ServiceNode, bool) {
	s, ok := t.services[strings.TrimPrefix(fullName, ".")]
	return s, ok
}

// TypeNames returns all qualified type names in sorted order.
func (t *Tree) TypeNames() []string {
	names := make([]string, 0, len(t.types))
	for name := range t.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TypeCount returns the number of types in the tree.
func (t *Tree) TypeCount() int {
	return len(t.types)
}

// ServiceCount returns the number of services in the tree.
func (t *Tree) ServiceCount() int {
	return len(t.services)
}

// Files returns the schema-root-relative paths merged into the tree, in
// merge order.
func (t *Tree) Files() []string {
	return t.files
}

// Resolutions returns the audit trail of symbolic type references resolved
// (or not) after merging.
func (t *Tree) Resolutions() []TypeResolution {
	return t.resolutions
}

func (t *Tree) namespaceFor(pkg string) *Namespace {
	ns := t.root
	if pkg == "" {
		return ns
	}
	for _, seg := range strings.Split(pkg, ".") {
		ns = ns.child(seg)
	}
	return ns
}

// addType inserts n unless its name is already taken. The first declaration
// wins.
func (t *Tree) addType(n *TypeNode, topLevel bool) bool {
	if _, exists := t.types[n.FullName]; exists {
		return false
	}
	t.types[n.FullName] = n
	if topLevel {
		ns := t.namespaceFor(n.Package)
		ns.Types = append(ns.Types, n)
	}
	return true
}

func (t *Tree) addService(s *ServiceNode, pkg string) bool {
	if _, exists := t.services[s.FullName]; exists {
		return false
	}
	t.services[s.FullName] = s
	ns := t.namespaceFor(pkg)
	ns.Services = append(ns.Services, s)
	return true
}
