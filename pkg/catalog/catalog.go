package catalog

import (
	"sort"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/getmockd/grpcprobe/pkg/schema"
)

// UnknownType is the placeholder shown for request or response types that
// never resolved.
const UnknownType = "Unknown"

// Method describes one callable rpc.
type Method struct {
	// Name is the method name (e.g., "GetProduct").
	Name string

	// Service is the unqualified service name.
	Service string

	// ServiceFullName is the qualified service name (e.g., "shop.v1.ProductService").
	ServiceFullName string

	// Package is the proto package of the service.
	Package string

	// ID is "Service.Method", the identity shown to operators.
	ID string

	// FullName is "package.Service.Method".
	FullName string

	// Path is the gRPC request path, "/package.Service/Method".
	Path string

	// RequestType and ResponseType are qualified type names, or UnknownType.
	RequestType  string
	ResponseType string

	// Request and Response are nil when the type did not resolve.
	Request  *schema.TypeNode
	Response *schema.TypeNode

	ClientStreaming bool
	ServerStreaming bool

	desc protoreflect.MethodDescriptor
}

// Unresolved reports whether the request or response type is unknown.
func (m *Method) Unresolved() bool {
	return m.Request == nil || m.Response == nil
}

// Linked reports whether the method can be invoked: its declaring file linked
// and both message types are known to the wire layer.
func (m *Method) Linked() bool {
	return m.desc != nil
}

// Descriptor returns the linked descriptor, or nil.
func (m *Method) Descriptor() protoreflect.MethodDescriptor {
	return m.desc
}

// IsUnary returns true if the method is unary (no streaming in either direction).
func (m *Method) IsUnary() bool {
	return !m.ClientStreaming && !m.ServerStreaming
}

// StreamingType returns a string describing the streaming type.
func (m *Method) StreamingType() string {
	switch {
	case m.ClientStreaming && m.ServerStreaming:
		return "bidirectional"
	case m.ClientStreaming:
		return "client_streaming"
	case m.ServerStreaming:
		return "server_streaming"
	default:
		return "unary"
	}
}

// Catalog is the list of every method in a schema tree, indexed for
// constant-time lookup. It is read-only after Build.
type Catalog struct {
	methods []*Method
	byKey   map[string]*Method
	byName  map[string][]*Method
}

// Build walks every namespace of the tree, at any depth, and collects the
// methods of every service. Methods whose types did not resolve are kept and
// marked with UnknownType.
func Build(tree *schema.Tree) *Catalog {
	c := &Catalog{
		byKey:  make(map[string]*Method),
		byName: make(map[string][]*Method),
	}
	if tree != nil {
		c.walk(tree, tree.Root())
	}
	return c
}

func (c *Catalog) walk(tree *schema.Tree, ns *schema.Namespace) {
	for _, svc := range ns.Services {
		for _, mn := range svc.Methods {
			c.add(newMethod(tree, ns, svc, mn))
		}
	}
	for _, child := range ns.Children {
		c.walk(tree, child)
	}
}

func newMethod(tree *schema.Tree, ns *schema.Namespace, svc *schema.ServiceNode, mn *schema.MethodNode) *Method {
	m := &Method{
		Name:            mn.Name,
		Service:         svc.Name,
		ServiceFullName: svc.FullName,
		Package:         ns.FullName,
		ID:              svc.Name + "." + mn.Name,
		FullName:        mn.FullName,
		Path:            "/" + svc.FullName + "/" + mn.Name,
		RequestType:     UnknownType,
		ResponseType:    UnknownType,
		ClientStreaming: mn.ClientStreaming,
		ServerStreaming: mn.ServerStreaming,
		desc:            mn.Descriptor(),
	}
	if mn.RequestResolved {
		if n, ok := tree.Lookup(mn.RequestRef); ok {
			m.Request, m.RequestType = n, n.FullName
		}
	}
	if mn.ResponseResolved {
		if n, ok := tree.Lookup(mn.ResponseRef); ok {
			m.Response, m.ResponseType = n, n.FullName
		}
	}
	return m
}

func (c *Catalog) add(m *Method) {
	c.methods = append(c.methods, m)
	for _, key := range []string{m.ID, m.FullName, m.Path, m.ServiceFullName + "/" + m.Name} {
		if _, exists := c.byKey[key]; !exists {
			c.byKey[key] = m
		}
	}
	c.byName[m.Name] = append(c.byName[m.Name], m)
}

// List returns every method in walk order. The result is never nil.
func (c *Catalog) List() []*Method {
	out := make([]*Method, len(c.methods))
	copy(out, c.methods)
	return out
}

// Len returns the number of methods.
func (c *Catalog) Len() int {
	return len(c.methods)
}

// Unresolved returns the methods with an unknown request or response type.
func (c *Catalog) Unresolved() []*Method {
	var out []*Method
	for _, m := range c.methods {
		if m.Unresolved() {
			out = append(out, m)
		}
	}
	return out
}

// Services returns the qualified names of services that declare at least
// one method, sorted.
func (c *Catalog) Services() []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range c.methods {
		if !seen[m.ServiceFullName] {
			seen[m.ServiceFullName] = true
			out = append(out, m.ServiceFullName)
		}
	}
	sort.Strings(out)
	return out
}

// Get finds a method by any of its names: the bare method name when it is
// unique, "Service.Method", "package.Service.Method" or the gRPC path.
func (c *Catalog) Get(name string) (*Method, error) {
	name = strings.TrimSpace(name)
	if m, ok := c.byKey[name]; ok {
		return m, nil
	}
	switch matches := c.byName[name]; len(matches) {
	case 0:
		return nil, &NotFoundError{Name: name, Suggestions: c.suggest(name)}
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.FullName
		}
		return nil, &AmbiguousError{Name: name, Matches: ids}
	}
}

// Lookup finds a method by service and method name. The service may be the
// bare or qualified name; an empty service falls back to Get.
func (c *Catalog) Lookup(service, method string) (*Method, error) {
	if service == "" {
		return c.Get(method)
	}
	service = strings.TrimPrefix(service, ".")
	if m, ok := c.byKey[service+"/"+method]; ok {
		return m, nil
	}
	if m, ok := c.byKey[service+"."+method]; ok {
		return m, nil
	}
	name := service + "." + method
	return nil, &NotFoundError{Name: name, Suggestions: c.suggest(method)}
}

func (c *Catalog) suggest(name string) []string {
	short := name
	if i := strings.LastIndexAny(name, "./"); i >= 0 {
		short = name[i+1:]
	}
	lower := strings.ToLower(short)
	var out []string
	for _, m := range c.methods {
		if lower != "" && strings.Contains(strings.ToLower(m.Name), lower) {
			out = append(out, m.ID)
		}
	}
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}
