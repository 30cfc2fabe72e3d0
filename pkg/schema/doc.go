// Package schema loads a directory of .proto files into one merged,
// cross-referenced tree.
//
// Every discovered file is compiled on its own with an import resolver that
// tries, in order, the importing file's directory, the schema root, a set of
// conventional subdirectories and finally the well-known types bundled with
// protocompile. Each attempt is recorded so a failed import can be explained.
//
// A file that does not compile is not fatal. If it still parses, its
// declarations enter the tree unlinked, with symbolic type references that are
// resolved against the merged tree afterwards (qualified name, protobuf scope,
// then unique short name). Files that do not parse at all are listed in
// Result.Failures. Only a missing root directory fails the load.
//
// A Tree is immutable once Load returns and may be shared between goroutines.
//
//	res, err := schema.Load(ctx, "./protos", schema.WithLogger(log))
//	if err != nil {
//		return err // root missing
//	}
//	for _, f := range res.Failures {
//		log.Warn("skipped", "file", f.Path, "error", f.Err)
//	}
//	node, ok := res.Tree.Lookup("shop.v1.Product")
package schema
