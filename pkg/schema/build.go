package schema

import (
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// build is the state of one load. It is created by Load, mutated by a single
// goroutine and discarded once the tree is returned.
type build struct {
	tree *Tree
	seen map[string]bool
	log  *slog.Logger
}

func newBuild(log *slog.Logger) *build {
	return &build{
		tree: newTree(),
		seen: make(map[string]bool),
		log:  log,
	}
}

// mergeLinked adds a linked file and, first, everything it imports. A
// descriptor's path is the import string that loaded it; aliases maps those
// back to root-relative paths so the same file reached by different imports
// is merged once.
func (b *build) mergeLinked(fd protoreflect.FileDescriptor, aliases map[string]string) {
	file := fd.Path()
	if p, ok := aliases[file]; ok {
		file = p
	}
	if b.seen[file] {
		return
	}
	b.seen[file] = true

	imports := fd.Imports()
	for i := 0; i < imports.Len(); i++ {
		imp := imports.Get(i)
		if imp.IsPlaceholder() {
			continue
		}
		b.mergeLinked(imp.FileDescriptor, aliases)
	}

	b.tree.files = append(b.tree.files, file)
	pkg := string(fd.Package())
	b.linkedMessages(fd.Messages(), pkg, pkg, file, true)
	b.linkedEnums(fd.Enums(), pkg, pkg, file, true)

	services := fd.Services()
	for i := 0; i < services.Len(); i++ {
		sd := services.Get(i)
		svc := &ServiceNode{
			Name:      string(sd.Name()),
			FullName:  string(sd.FullName()),
			Namespace: pkg,
			File:      file,
			desc:      sd,
		}
		methods := sd.Methods()
		for j := 0; j < methods.Len(); j++ {
			md := methods.Get(j)
			svc.Methods = append(svc.Methods, &MethodNode{
				Name:             string(md.Name()),
				FullName:         string(md.FullName()),
				RequestRef:       string(md.Input().FullName()),
				RequestResolved:  true,
				ResponseRef:      string(md.Output().FullName()),
				ResponseResolved: true,
				ClientStreaming:  md.IsStreamingClient(),
				ServerStreaming:  md.IsStreamingServer(),
				desc:             md,
			})
		}
		b.addService(svc, pkg)
	}
}

func (b *build) linkedMessages(msgs protoreflect.MessageDescriptors, scope, pkg, file string, top bool) {
	for i := 0; i < msgs.Len(); i++ {
		md := msgs.Get(i)
		node := &TypeNode{
			FullName:  string(md.FullName()),
			Name:      string(md.Name()),
			Namespace: scope,
			Package:   pkg,
			File:      file,
			Kind:      KindMessage,
			MapEntry:  md.IsMapEntry(),
			desc:      md,
		}
		fields := md.Fields()
		for j := 0; j < fields.Len(); j++ {
			node.Fields = append(node.Fields, linkedField(fields.Get(j)))
		}
		b.addType(node, top)

		b.linkedMessages(md.Messages(), node.FullName, pkg, file, false)
		b.linkedEnums(md.Enums(), node.FullName, pkg, file, false)
	}
}

func linkedField(fd protoreflect.FieldDescriptor) *Field {
	f := &Field{
		Name:     string(fd.Name()),
		JSONName: fd.JSONName(),
		Number:   int32(fd.Number()),
		Scalar:   scalarFromKind(fd.Kind()),
		Repeated: fd.IsList(),
		Map:      fd.IsMap(),
	}
	if oo := fd.ContainingOneof(); oo != nil && !oo.IsSynthetic() {
		f.Oneof = string(oo.Name())
	}
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		f.TypeRef = string(fd.Message().FullName())
		f.Resolved = true
	case protoreflect.EnumKind:
		f.TypeRef = string(fd.Enum().FullName())
		f.Resolved = true
	}
	return f
}

func (b *build) linkedEnums(enums protoreflect.EnumDescriptors, scope, pkg, file string, top bool) {
	for i := 0; i < enums.Len(); i++ {
		ed := enums.Get(i)
		node := &TypeNode{
			FullName:  string(ed.FullName()),
			Name:      string(ed.Name()),
			Namespace: scope,
			Package:   pkg,
			File:      file,
			Kind:      KindEnum,
			desc:      ed,
		}
		values := ed.Values()
		for j := 0; j < values.Len(); j++ {
			node.EnumValues = append(node.EnumValues, string(values.Get(j).Name()))
			node.EnumNumbers = append(node.EnumNumbers, int32(values.Get(j).Number()))
		}
		b.addType(node, top)
	}
}

// mergeUnlinked adds the declarations of a file that parsed but failed to
// link. References stay symbolic until link runs.
func (b *build) mergeUnlinked(fdp *descriptorpb.FileDescriptorProto) {
	name := fdp.GetName()
	if b.seen[name] {
		return
	}
	b.seen[name] = true
	b.tree.files = append(b.tree.files, name)

	pkg := fdp.GetPackage()
	b.protoMessages(fdp.GetMessageType(), pkg, pkg, name, true)
	b.protoEnums(fdp.GetEnumType(), pkg, pkg, name, true)

	for _, sd := range fdp.GetService() {
		svc := &ServiceNode{
			Name:      sd.GetName(),
			FullName:  qualify(pkg, sd.GetName()),
			Namespace: pkg,
			File:      name,
		}
		for _, md := range sd.GetMethod() {
			svc.Methods = append(svc.Methods, &MethodNode{
				Name:            md.GetName(),
				FullName:        svc.FullName + "." + md.GetName(),
				RequestRef:      md.GetInputType(),
				ResponseRef:     md.GetOutputType(),
				ClientStreaming: md.GetClientStreaming(),
				ServerStreaming: md.GetServerStreaming(),
			})
		}
		b.addService(svc, pkg)
	}
}

func (b *build) protoMessages(msgs []*descriptorpb.DescriptorProto, scope, pkg, file string, top bool) {
	for _, dp := range msgs {
		node := &TypeNode{
			FullName:  qualify(scope, dp.GetName()),
			Name:      dp.GetName(),
			Namespace: scope,
			Package:   pkg,
			File:      file,
			Kind:      KindMessage,
			MapEntry:  dp.GetOptions().GetMapEntry(),
		}
		for _, fd := range dp.GetField() {
			f := &Field{
				Name:     fd.GetName(),
				JSONName: fd.GetJsonName(),
				Number:   fd.GetNumber(),
				Scalar:   fieldScalar(fd),
				Repeated: fd.GetLabel() == descriptorpb.FieldDescriptorProto_LABEL_REPEATED,
			}
			if f.JSONName == "" {
				f.JSONName = jsonName(f.Name)
			}
			if f.Scalar == ScalarNone {
				f.TypeRef = fd.GetTypeName()
			}
			if fd.OneofIndex != nil && !fd.GetProto3Optional() {
				if idx := int(fd.GetOneofIndex()); idx < len(dp.GetOneofDecl()) {
					f.Oneof = dp.GetOneofDecl()[idx].GetName()
				}
			}
			node.Fields = append(node.Fields, f)
		}
		b.addType(node, top)

		b.protoMessages(dp.GetNestedType(), node.FullName, pkg, file, false)
		b.protoEnums(dp.GetEnumType(), node.FullName, pkg, file, false)
	}
}

// fieldScalar maps a parsed field to its scalar kind. The parser leaves the
// type unset for named references until link, so a type name with no type is
// a message or enum reference.
func fieldScalar(fd *descriptorpb.FieldDescriptorProto) ScalarKind {
	if fd.Type == nil && fd.GetTypeName() != "" {
		return ScalarNone
	}
	return scalarFromProtoType(fd.GetType())
}

func (b *build) protoEnums(enums []*descriptorpb.EnumDescriptorProto, scope, pkg, file string, top bool) {
	for _, ep := range enums {
		node := &TypeNode{
			FullName:  qualify(scope, ep.GetName()),
			Name:      ep.GetName(),
			Namespace: scope,
			Package:   pkg,
			File:      file,
			Kind:      KindEnum,
		}
		for _, v := range ep.GetValue() {
			node.EnumValues = append(node.EnumValues, v.GetName())
			node.EnumNumbers = append(node.EnumNumbers, v.GetNumber())
		}
		b.addType(node, top)
	}
}

func (b *build) addType(n *TypeNode, top bool) {
	if !b.tree.addType(n, top) {
		b.log.Debug("duplicate type ignored", "type", n.FullName, "file", n.File)
	}
}

func (b *build) addService(s *ServiceNode, pkg string) {
	if !b.tree.addService(s, pkg) {
		b.log.Debug("duplicate service ignored", "service", s.FullName, "file", s.File)
	}
}

// link resolves the symbolic references left by unlinked files and then tags
// wrapper and map fields across the whole tree.
func (b *build) link() {
	st := newSymbolTable(b.tree)
	names := b.tree.TypeNames()

	for _, name := range names {
		node := b.tree.types[name]
		for _, f := range node.Fields {
			if !f.IsMessageRef() || f.Resolved {
				continue
			}
			res := st.resolve(node.FullName+"."+f.Name, f.TypeRef, node.FullName)
			b.record(res)
			if res.Resolved != "" {
				f.TypeRef = res.Resolved
				f.Resolved = true
			}
		}
	}

	for _, svc := range b.sortedServices() {
		for _, m := range svc.Methods {
			if !m.RequestResolved {
				res := st.resolve(m.FullName+" request", m.RequestRef, svc.Namespace)
				b.record(res)
				if res.Resolved != "" {
					m.RequestRef, m.RequestResolved = res.Resolved, true
				}
			}
			if !m.ResponseResolved {
				res := st.resolve(m.FullName+" response", m.ResponseRef, svc.Namespace)
				b.record(res)
				if res.Resolved != "" {
					m.ResponseRef, m.ResponseResolved = res.Resolved, true
				}
			}
		}
	}

	for _, name := range names {
		for _, f := range b.tree.types[name].Fields {
			b.tag(f)
		}
	}
}

func (b *build) tag(f *Field) {
	target, ok := b.tree.Resolve(f)
	if !ok {
		return
	}
	if f.Repeated && target.MapEntry {
		f.Repeated = false
		f.Map = true
	}
	f.Wrapper, f.WrappedScalar = WrapperOf(target.FullName)
}

func (b *build) record(res TypeResolution) {
	b.tree.resolutions = append(b.tree.resolutions, res)
	if res.Resolved == "" {
		b.log.Warn("unresolved type reference", "site", res.Site, "ref", res.Ref)
		return
	}
	b.log.Debug("resolved type reference", "site", res.Site, "ref", res.Ref, "type", res.Resolved, "strategy", res.Strategy)
}

func (b *build) sortedServices() []*ServiceNode {
	out := make([]*ServiceNode, 0, len(b.tree.services))
	for _, s := range b.tree.services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out
}

func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

// jsonName mirrors protoc's default json_name: underscores are dropped and
// the following letter is upper-cased.
func jsonName(name string) string {
	var sb strings.Builder
	upper := false
	for _, r := range name {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
