package invoke

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Category classifies a Fault.
type Category string

// Fault categories.
const (
	CategoryInvalidEnvironment Category = "InvalidEnvironment"
	CategoryMethodNotFound     Category = "MethodNotFound"
	CategoryUnsupportedMethod  Category = "UnsupportedMethod"
	CategoryUnresolvedType     Category = "UnresolvedType"
	CategoryInvalidMessage     Category = "InvalidMessage"
	CategoryTransport          Category = "TransportFault"
	CategoryCancelled          Category = "CancelledOrTimedOut"
)

// Sentinels matched by Fault.Is, one per category.
var (
	ErrInvalidEnvironment = errors.New("invalid environment")
	ErrMethodNotFound     = errors.New("method not found")
	ErrUnsupportedMethod  = errors.New("unsupported method")
	ErrUnresolvedType     = errors.New("unresolved type")
	ErrInvalidMessage     = errors.New("invalid message")
	ErrTransport          = errors.New("transport fault")
	ErrCancelled          = errors.New("cancelled or timed out")
)

var categorySentinels = map[Category]error{
	CategoryInvalidEnvironment: ErrInvalidEnvironment,
	CategoryMethodNotFound:     ErrMethodNotFound,
	CategoryUnsupportedMethod:  ErrUnsupportedMethod,
	CategoryUnresolvedType:     ErrUnresolvedType,
	CategoryInvalidMessage:     ErrInvalidMessage,
	CategoryTransport:          ErrTransport,
	CategoryCancelled:          ErrCancelled,
}

// Fault is the structured error returned by Adapter.Invoke.
type Fault struct {
	Category Category `json:"category"`

	// Message is a short human description.
	Message string `json:"message"`

	// Detail is the remote status message, verbatim.
	Detail string `json:"detail,omitempty"`

	// Code is the gRPC status code name for transport faults.
	Code string `json:"code,omitempty"`

	// Details are the typed status details attached by the server.
	Details []StatusDetail `json:"details,omitempty"`

	Err error `json:"-"`
}

func (f *Fault) Error() string {
	var sb strings.Builder
	sb.WriteString(string(f.Category))
	sb.WriteString(": ")
	sb.WriteString(f.Message)
	if f.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(f.Detail)
	}
	return sb.String()
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Is matches the sentinel of the fault's category.
func (f *Fault) Is(target error) bool {
	return categorySentinels[f.Category] == target
}

// StatusDetail is one google.rpc status detail.
type StatusDetail struct {
	// Type is the detail's message name (e.g., "google.rpc.BadRequest").
	Type string `json:"type"`

	// Summary is a one-line rendering for terminals.
	Summary string `json:"summary,omitempty"`

	Value json.RawMessage `json:"value,omitempty"`
}

// faultFromCall classifies an error returned by the transport.
func faultFromCall(ctx context.Context, err error) *Fault {
	st, _ := status.FromError(err)
	if ctx.Err() != nil || st.Code() == codes.Canceled || st.Code() == codes.DeadlineExceeded {
		return &Fault{
			Category: CategoryCancelled,
			Message:  "call aborted before a response arrived",
			Detail:   st.Message(),
			Code:     st.Code().String(),
			Err:      err,
		}
	}
	return &Fault{
		Category: CategoryTransport,
		Message:  "call failed",
		Detail:   st.Message(),
		Code:     st.Code().String(),
		Details:  renderDetails(st),
		Err:      err,
	}
}

func renderDetails(st *status.Status) []StatusDetail {
	var out []StatusDetail
	for _, d := range st.Details() {
		msg, ok := d.(proto.Message)
		if !ok {
			if err, isErr := d.(error); isErr {
				out = append(out, StatusDetail{Type: "unknown", Summary: err.Error()})
			}
			continue
		}
		sd := StatusDetail{
			Type:    string(msg.ProtoReflect().Descriptor().FullName()),
			Summary: summarizeDetail(msg),
		}
		if data, err := protojson.Marshal(msg); err == nil {
			sd.Value = data
		}
		out = append(out, sd)
	}
	return out
}

func summarizeDetail(msg proto.Message) string {
	switch d := msg.(type) {
	case *errdetails.BadRequest:
		parts := make([]string, 0, len(d.GetFieldViolations()))
		for _, v := range d.GetFieldViolations() {
			parts = append(parts, fmt.Sprintf("%s: %s", v.GetField(), v.GetDescription()))
		}
		return "bad request: " + strings.Join(parts, "; ")
	case *errdetails.ErrorInfo:
		return fmt.Sprintf("%s (domain %s)", d.GetReason(), d.GetDomain())
	case *errdetails.RetryInfo:
		return fmt.Sprintf("retry after %s", d.GetRetryDelay().AsDuration())
	case *errdetails.DebugInfo:
		return d.GetDetail()
	case *errdetails.QuotaFailure:
		parts := make([]string, 0, len(d.GetViolations()))
		for _, v := range d.GetViolations() {
			parts = append(parts, fmt.Sprintf("%s: %s", v.GetSubject(), v.GetDescription()))
		}
		return "quota: " + strings.Join(parts, "; ")
	case *errdetails.PreconditionFailure:
		parts := make([]string, 0, len(d.GetViolations()))
		for _, v := range d.GetViolations() {
			parts = append(parts, fmt.Sprintf("%s %s: %s", v.GetType(), v.GetSubject(), v.GetDescription()))
		}
		return "precondition: " + strings.Join(parts, "; ")
	case *errdetails.ResourceInfo:
		return fmt.Sprintf("%s %s: %s", d.GetResourceType(), d.GetResourceName(), d.GetDescription())
	case *errdetails.RequestInfo:
		return "request " + d.GetRequestId()
	case *errdetails.Help:
		parts := make([]string, 0, len(d.GetLinks()))
		for _, l := range d.GetLinks() {
			parts = append(parts, l.GetUrl())
		}
		return "see " + strings.Join(parts, ", ")
	case *errdetails.LocalizedMessage:
		return d.GetMessage()
	default:
		return ""
	}
}
