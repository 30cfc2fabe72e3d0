// Package example synthesizes example request values from message schemas.
//
// The values are plain data (ordered objects, lists, scalars and nil) meant to
// be shown to an operator and edited before a call. Scalar wrapper fields are
// rendered as their bare scalar; the invoke package wraps them again before
// sending.
//
// Zero values can be replaced per field name through an Overrides table so
// generated examples carry recognisable identifiers:
//
//	syn := example.New(tree, example.WithOverrides(example.MustOverrides([]example.Override{
//		{Field: "store_id", Kind: "string", Value: "store-42"},
//	})))
//	obj := syn.Synthesize(method.Request)
//	out, _ := json.MarshalIndent(obj, "", "  ")
//
// Recursion is bounded by the set of types on the current expansion path, so
// self-referential messages terminate and a type may still appear at sibling
// positions.
package example
