package invoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/getmockd/grpcprobe/pkg/catalog"
	"github.com/getmockd/grpcprobe/pkg/logging"
	"github.com/getmockd/grpcprobe/pkg/schema"
	ptls "github.com/getmockd/grpcprobe/pkg/tls"
)

// Conn is the part of a client connection the adapter uses.
// *grpc.ClientConn satisfies it.
type Conn interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
	Close() error
}

// Dialer opens a connection to an environment.
type Dialer interface {
	Dial(ctx context.Context, env Environment) (Conn, error)
}

// GRPCDialer dials with grpc.NewClient. TLS is used unless the environment
// is plaintext.
type GRPCDialer struct {
	// Options are appended after the transport credentials.
	Options []grpc.DialOption
}

// Dial implements Dialer.
func (d GRPCDialer) Dial(_ context.Context, env Environment) (Conn, error) {
	creds := insecure.NewCredentials()
	if !env.Plaintext {
		cfg, err := ptls.ClientConfig(env.TLS, env.Authority)
		if err != nil {
			return nil, err
		}
		creds = credentials.NewTLS(cfg)
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if env.Authority != "" {
		opts = append(opts, grpc.WithAuthority(env.Authority))
	}
	opts = append(opts, d.Options...)
	return grpc.NewClient(env.Address, opts...)
}

// Request is one unary call.
type Request struct {
	// Method is any name the catalog accepts ("GetProduct",
	// "ProductService.GetProduct", "/shop.v1.ProductService/GetProduct").
	Method string

	// Service optionally qualifies Method.
	Service string

	// Environment selects the target from the environment table.
	Environment string

	// Message is the plain request object: a decoded JSON object or an
	// example object. Nil sends an empty message with wrappers filled in.
	Message any

	// Metadata entries override environment defaults with the same key.
	Metadata []MetadataEntry
}

// Response is the result of a successful call.
type Response struct {
	CallID      string
	Method      string
	Environment string
	Address     string

	// Message is the response rendered by Decode.
	Message *Object

	Header   metadata.MD
	Trailer  metadata.MD
	Duration time.Duration
}

// Adapter performs unary calls against methods of a catalog. It holds no
// per-call state and is safe for concurrent use.
type Adapter struct {
	catalog *catalog.Catalog
	tree    *schema.Tree
	envs    *Environments
	dialer  Dialer
	log     *slog.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithDialer replaces the default GRPCDialer.
func WithDialer(d Dialer) AdapterOption {
	return func(a *Adapter) {
		a.dialer = d
	}
}

// WithLogger sets the logger for per-call records.
func WithLogger(log *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if log != nil {
			a.log = log
		}
	}
}

// NewAdapter creates an Adapter. tree is used for request shaping and must
// be the tree cat was built from.
func NewAdapter(cat *catalog.Catalog, tree *schema.Tree, envs *Environments, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		catalog: cat,
		tree:    tree,
		envs:    envs,
		dialer:  GRPCDialer{},
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Prepared is a validated call that has not been sent.
type Prepared struct {
	Method      *catalog.Method
	Environment Environment
	Message     *dynamicpb.Message
	Shaped      map[string]any
	Metadata    metadata.MD
}

// Prepare runs every check and conversion short of dialing: environment,
// method lookup, streaming and type checks, shaping, encoding and metadata.
// Errors are *Fault.
func (a *Adapter) Prepare(req Request) (*Prepared, error) {
	env, err := a.envs.Lookup(req.Environment)
	if err != nil {
		return nil, err
	}

	m, err := a.catalog.Lookup(req.Service, req.Method)
	if err != nil {
		return nil, &Fault{Category: CategoryMethodNotFound, Message: err.Error(), Err: err}
	}
	if !m.IsUnary() {
		return nil, &Fault{
			Category: CategoryUnsupportedMethod,
			Message:  fmt.Sprintf("%s is %s; only unary calls are supported", m.ID, m.StreamingType()),
		}
	}
	if m.Unresolved() || !m.Linked() {
		return nil, &Fault{
			Category: CategoryUnresolvedType,
			Message:  fmt.Sprintf("%s cannot be called: request %s, response %s", m.ID, m.RequestType, m.ResponseType),
			Err:      schema.ErrNotLinked,
		}
	}

	shaped, err := Shape(a.tree, m.Request, req.Message)
	if err != nil {
		return nil, &Fault{Category: CategoryInvalidMessage, Message: err.Error(), Err: err}
	}
	msg, err := Encode(m.Descriptor().Input(), shaped)
	if err != nil {
		return nil, &Fault{Category: CategoryInvalidMessage, Message: err.Error(), Err: err}
	}

	return &Prepared{
		Method:      m,
		Environment: env,
		Message:     msg,
		Shaped:      shaped,
		Metadata:    BuildMetadata(env.Metadata, req.Metadata),
	}, nil
}

// Invoke performs one unary call. It blocks until the response arrives, the
// call fails or ctx ends; it never retries. Every error is a *Fault, and
// input faults are returned before anything is dialed.
func (a *Adapter) Invoke(ctx context.Context, req Request) (*Response, error) {
	p, err := a.Prepare(req)
	if err != nil {
		return nil, err
	}

	callID := uuid.NewString()
	log := a.log.With("callId", callID, "method", p.Method.FullName, "environment", p.Environment.Name)

	conn, err := a.dialer.Dial(ctx, p.Environment)
	if err != nil {
		log.Warn("dial failed", "address", p.Environment.Address, "error", err)
		return nil, &Fault{
			Category: CategoryTransport,
			Message:  "cannot connect to " + p.Environment.Address,
			Detail:   err.Error(),
			Code:     codes.Unavailable.String(),
			Err:      err,
		}
	}
	defer func() { _ = conn.Close() }()

	out := dynamicpb.NewMessage(p.Method.Descriptor().Output())
	var header, trailer metadata.MD
	start := time.Now()
	err = conn.Invoke(
		metadata.NewOutgoingContext(ctx, p.Metadata),
		p.Method.Path,
		p.Message,
		out,
		grpc.Header(&header),
		grpc.Trailer(&trailer),
	)
	elapsed := time.Since(start)

	if err != nil {
		fault := faultFromCall(ctx, err)
		log.Info("call failed", "duration", elapsed, "category", fault.Category, "code", fault.Code)
		return nil, fault
	}
	log.Info("call completed", "duration", elapsed, "code", codes.OK.String())

	return &Response{
		CallID:      callID,
		Method:      p.Method.FullName,
		Environment: p.Environment.Name,
		Address:     p.Environment.Address,
		Message:     Decode(out),
		Header:      header,
		Trailer:     trailer,
		Duration:    elapsed,
	}, nil
}

// BuildMetadata merges environment defaults with per-call entries. Disabled
// entries and entries with an empty key are dropped; a per-call key replaces
// every default with the same key. Values are sent verbatim.
func BuildMetadata(defaults, call []MetadataEntry) metadata.MD {
	md := metadata.MD{}
	override := make(map[string]bool)
	for _, e := range call {
		if key := normalizeKey(e); key != "" {
			override[key] = true
		}
	}
	for _, e := range defaults {
		if key := normalizeKey(e); key != "" && !override[key] {
			md.Append(key, e.Value)
		}
	}
	for _, e := range call {
		if key := normalizeKey(e); key != "" {
			md.Append(key, e.Value)
		}
	}
	return md
}

func normalizeKey(e MetadataEntry) string {
	if !e.IsEnabled() {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(e.Key))
}

// ParseMetadataEntry parses "key: value" or "key=value".
func ParseMetadataEntry(s string) (MetadataEntry, error) {
	i := strings.IndexAny(s, ":=")
	if i <= 0 {
		return MetadataEntry{}, errors.New("metadata must be key:value or key=value")
	}
	return MetadataEntry{
		Key:   strings.TrimSpace(s[:i]),
		Value: strings.TrimSpace(s[i+1:]),
	}, nil
}
