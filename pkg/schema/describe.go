package schema

import (
	"fmt"
	"strings"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoprint"
	"google.golang.org/protobuf/reflect/protoreflect"
)

var printer = &protoprint.Printer{Compact: true, SortElements: false}

// ProtoSource renders the declaration as .proto source. Linked nodes are
// printed from their descriptor; unlinked nodes get a best-effort sketch
// built from the tree, with unresolved references left as written.
func (t *TypeNode) ProtoSource() (string, error) {
	if t.desc != nil {
		return printDescriptor(t.desc)
	}

	var sb strings.Builder
	if t.Kind == KindEnum {
		fmt.Fprintf(&sb, "enum %s {\n", t.Name)
		for i, v := range t.EnumValues {
			fmt.Fprintf(&sb, "  %s = %d;\n", v, t.EnumNumbers[i])
		}
		sb.WriteString("}\n")
		return sb.String(), nil
	}

	fmt.Fprintf(&sb, "// unlinked: declared in %s\n", t.File)
	fmt.Fprintf(&sb, "message %s {\n", t.Name)
	for _, f := range t.Fields {
		typ := f.Scalar.String()
		if f.IsMessageRef() {
			typ = f.TypeRef
			if !f.Resolved {
				typ += " /* unresolved */"
			}
		}
		label := ""
		if f.Repeated {
			label = "repeated "
		}
		fmt.Fprintf(&sb, "  %s%s %s = %d;\n", label, typ, f.Name, f.Number)
	}
	sb.WriteString("}\n")
	return sb.String(), nil
}

// ProtoSource renders the service as .proto source. It needs a linked
// descriptor.
func (s *ServiceNode) ProtoSource() (string, error) {
	if s.desc == nil {
		return "", fmt.Errorf("service %s: %w", s.FullName, ErrNotLinked)
	}
	return printDescriptor(s.desc)
}

func printDescriptor(d protoreflect.Descriptor) (string, error) {
	wrapped, err := desc.WrapDescriptor(d)
	if err != nil {
		return "", fmt.Errorf("wrap %s: %w", d.FullName(), err)
	}
	src, err := printer.PrintProtoToString(wrapped)
	if err != nil {
		return "", fmt.Errorf("print %s: %w", d.FullName(), err)
	}
	return src, nil
}
