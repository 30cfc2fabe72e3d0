// Package catalog enumerates the callable methods of a loaded schema.
//
// Build walks every namespace of a schema.Tree recursively, so services in
// deeply nested packages are found. Methods whose request or response type did
// not resolve stay in the list with the type shown as "Unknown".
//
//	cat := catalog.Build(res.Tree)
//	for _, m := range cat.List() {
//		fmt.Println(m.ID, m.RequestType, "->", m.ResponseType)
//	}
//
//	m, err := cat.Get("GetProduct")
//	if errors.Is(err, catalog.ErrMethodNotFound) {
//		// ...
//	}
package catalog
