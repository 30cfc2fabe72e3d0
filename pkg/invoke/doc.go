// Package invoke performs unary calls described by a catalog method.
//
// A call goes through fixed steps: the environment name is looked up, the
// method is found in the catalog, the plain request object is shaped and
// encoded, metadata is merged and one unary call is made. Every failure is a
// *Fault whose Category tells input problems (InvalidEnvironment,
// MethodNotFound, UnsupportedMethod, UnresolvedType, InvalidMessage) apart
// from TransportFault and CancelledOrTimedOut. Input faults are returned before
// anything is dialed.
//
// # Shaping
//
// Requests are edited as plain JSON in which scalar wrapper fields
// (google.protobuf.StringValue and friends) hold bare values. Shape puts them
// back into {"value": v} form and fills absent wrappers with their zero value,
// since the wire distinguishes a present empty wrapper from an absent one.
// Responses are not unwrapped: Decode renders wrappers as objects.
//
//	a := invoke.NewAdapter(cat, tree, envs, invoke.WithLogger(log))
//	resp, err := a.Invoke(ctx, invoke.Request{
//		Method:      "GetProduct",
//		Environment: "qa",
//		Message:     map[string]any{"product_variant_id": "abc"},
//	})
//	var fault *invoke.Fault
//	if errors.As(err, &fault) {
//		fmt.Println(fault.Category, fault.Detail)
//	}
package invoke
