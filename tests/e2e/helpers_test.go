package e2e_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/getmockd/grpcprobe/pkg/catalog"
	"github.com/getmockd/grpcprobe/pkg/schema"
)

// missingVariant makes the product server answer NotFound.
const missingVariant = "pv-404"

func fixtureRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	root := filepath.Join(wd, "..", "fixtures", "protos")
	_, err = os.Stat(root)
	require.NoError(t, err, "proto fixtures not found at %s", root)
	return root
}

// productServer answers ProductService.GetProduct from the fixture schema
// with dynamic messages. Every other method is Unimplemented.
type productServer struct {
	method protoreflect.MethodDescriptor
}

func (s *productServer) handle(_ any, stream grpc.ServerStream) error {
	name, _ := grpc.MethodFromServerStream(stream)
	if name != "/shop.v1.ProductService/GetProduct" {
		return status.Errorf(codes.Unimplemented, "unknown method %s", name)
	}

	req := dynamicpb.NewMessage(s.method.Input())
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	variant := wrappedString(req, "product_variant_id")
	if variant == missingVariant {
		return status.Errorf(codes.NotFound, "product %s is not sold in store %s",
			variant, req.Get(req.Descriptor().Fields().ByName("store_id")).String())
	}

	// Echo the caller's team header back so scripts can see metadata flow.
	if md, ok := metadata.FromIncomingContext(stream.Context()); ok {
		if team := md.Get("x-team"); len(team) > 0 {
			_ = stream.SetHeader(metadata.Pairs("x-served-for", team[0]))
		}
	}

	resp := dynamicpb.NewMessage(s.method.Output())
	body := `{"id":"` + variant + `","name":"Oat milk","price":{"currencyCode":"INR","units":"12"},` +
		`"tags":["dairy-free"],"rating":4.5,"status":"STATUS_ACTIVE"}`
	if err := protojson.Unmarshal([]byte(body), resp); err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return stream.SendMsg(resp)
}

func wrappedString(msg *dynamicpb.Message, field string) string {
	fd := msg.Descriptor().Fields().ByName(protoreflect.Name(field))
	if fd == nil || !msg.Has(fd) {
		return ""
	}
	inner := msg.Get(fd).Message()
	return inner.Get(inner.Descriptor().Fields().ByName("value")).String()
}

// startProductServer serves the fixture ProductService on a free local port
// and returns its address.
func startProductServer(t *testing.T) string {
	t.Helper()

	res, err := schema.Load(context.Background(), fixtureRoot(t))
	require.NoError(t, err)
	m, err := catalog.Build(res.Tree).Get("ProductService.GetProduct")
	require.NoError(t, err)
	require.NotNil(t, m.Descriptor(), "GetProduct must be linked")

	ps := &productServer{method: m.Descriptor()}
	srv := grpc.NewServer(grpc.UnknownServiceHandler(ps.handle))

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		if err := srv.Serve(lis); err != nil {
			t.Logf("gRPC server exited: %v", err)
		}
	}()
	t.Cleanup(srv.Stop)

	waitForServer(t, lis.Addr().String())
	return lis.Addr().String()
}

func waitForServer(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("server at %s never accepted connections", addr)
}
