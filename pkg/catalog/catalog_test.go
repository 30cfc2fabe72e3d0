package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/grpcprobe/pkg/schema"
)

func getFixtureRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)

	// Navigate from pkg/catalog to project root
	root := filepath.Join(wd, "..", "..", "tests", "fixtures", "protos")
	_, err = os.Stat(root)
	require.NoError(t, err, "proto fixtures not found at %s", root)
	return root
}

func buildFixtureCatalog(t *testing.T) *Catalog {
	t.Helper()
	res, err := schema.Load(context.Background(), getFixtureRoot(t))
	require.NoError(t, err)
	return Build(res.Tree)
}

func loadDir(t *testing.T, files map[string]string) *Catalog {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	res, err := schema.Load(context.Background(), root)
	require.NoError(t, err)
	return Build(res.Tree)
}

func TestBuildListsEveryMethod(t *testing.T) {
	cat := buildFixtureCatalog(t)

	var ids []string
	for _, m := range cat.List() {
		ids = append(ids, m.ID)
	}
	// namespaces are walked in name order: orders, shop.v1, tree
	assert.Equal(t, []string{
		"OrderService.GetOrder",
		"OrderService.Track",
		"ProductService.GetProduct",
		"ProductService.ListProducts",
		"TreeService.Walk",
		"TreeService.Echo",
	}, ids)
	assert.Equal(t, 6, cat.Len())
	assert.Equal(t, []string{"orders.OrderService", "shop.v1.ProductService", "tree.TreeService"}, cat.Services())
}

func TestBuildMethodFields(t *testing.T) {
	cat := buildFixtureCatalog(t)

	m, err := cat.Get("GetProduct")
	require.NoError(t, err)
	assert.Equal(t, "ProductService", m.Service)
	assert.Equal(t, "shop.v1.ProductService", m.ServiceFullName)
	assert.Equal(t, "shop.v1", m.Package)
	assert.Equal(t, "shop.v1.ProductService.GetProduct", m.FullName)
	assert.Equal(t, "/shop.v1.ProductService/GetProduct", m.Path)
	assert.Equal(t, "shop.v1.GetProductRequest", m.RequestType)
	assert.Equal(t, "shop.v1.Product", m.ResponseType)
	require.NotNil(t, m.Request)
	assert.Equal(t, "GetProductRequest", m.Request.Name)
	assert.True(t, m.Linked())
	assert.NotNil(t, m.Descriptor())
	assert.True(t, m.IsUnary())
	assert.Equal(t, "unary", m.StreamingType())

	list, err := cat.Get("ListProducts")
	require.NoError(t, err)
	assert.Equal(t, "server_streaming", list.StreamingType())
	assert.False(t, list.IsUnary())
}

func TestBuildUnknownTypes(t *testing.T) {
	cat := buildFixtureCatalog(t)

	track, err := cat.Get("Track")
	require.NoError(t, err)
	assert.Equal(t, UnknownType, track.RequestType)
	assert.Nil(t, track.Request)
	assert.Equal(t, "orders.Order", track.ResponseType)
	assert.True(t, track.Unresolved())
	assert.False(t, track.Linked())

	get, err := cat.Get("OrderService.GetOrder")
	require.NoError(t, err)
	assert.False(t, get.Unresolved())
	assert.False(t, get.Linked(), "declared in a file that did not link")

	unresolved := cat.Unresolved()
	require.Len(t, unresolved, 1)
	assert.Equal(t, "OrderService.Track", unresolved[0].ID)
}

func TestBuildNoServices(t *testing.T) {
	cat := loadDir(t, map[string]string{
		"only/messages.proto": `syntax = "proto3";
package only;
message A { string id = 1; }
`,
	})

	list := cat.List()
	assert.NotNil(t, list)
	assert.Empty(t, list)
	assert.Zero(t, cat.Len())
}

func TestBuildNilTree(t *testing.T) {
	cat := Build(nil)
	assert.NotNil(t, cat.List())
	_, err := cat.Get("Anything")
	assert.ErrorIs(t, err, ErrMethodNotFound)
}

func TestBuildDeepNamespaces(t *testing.T) {
	cat := loadDir(t, map[string]string{
		"a/b/c/d/deep_service.proto": `syntax = "proto3";
package a.b.c.d.e.f;
message Req {}
service Deep { rpc Dive(Req) returns (Req); }
`,
		"top_service.proto": `syntax = "proto3";
message Top {}
service Surface { rpc Float(Top) returns (Top); }
`,
	})

	require.Equal(t, 2, cat.Len())
	m, err := cat.Get("Dive")
	require.NoError(t, err)
	assert.Equal(t, "a.b.c.d.e.f", m.Package)

	m, err = cat.Get("Surface.Float")
	require.NoError(t, err)
	assert.Empty(t, m.Package)
	assert.Equal(t, "/Surface/Float", m.Path)
}

func TestGetByEveryName(t *testing.T) {
	cat := buildFixtureCatalog(t)

	for _, name := range []string{
		"Walk",
		"TreeService.Walk",
		"tree.TreeService.Walk",
		"/tree.TreeService/Walk",
		"tree.TreeService/Walk",
		"  Walk ",
	} {
		t.Run(name, func(t *testing.T) {
			m, err := cat.Get(name)
			require.NoError(t, err)
			assert.Equal(t, "tree.TreeService.Walk", m.FullName)
		})
	}
}

func TestGetNotFound(t *testing.T) {
	cat := buildFixtureCatalog(t)

	m, err := cat.Get("GetProducts")
	assert.Nil(t, m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMethodNotFound))

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "GetProducts", nf.Name)

	_, err = cat.Get("Product")
	require.ErrorAs(t, err, &nf)
	assert.Contains(t, nf.Suggestions, "ProductService.GetProduct")
	assert.Contains(t, err.Error(), "did you mean")
}

func TestGetAmbiguous(t *testing.T) {
	cat := loadDir(t, map[string]string{
		"a_service.proto": `syntax = "proto3";
package a;
message M {}
service One { rpc Get(M) returns (M); }
service Two { rpc Get(M) returns (M); }
`,
	})

	_, err := cat.Get("Get")
	assert.ErrorIs(t, err, ErrAmbiguousMethod)
	assert.Contains(t, err.Error(), "a.One.Get")

	m, err := cat.Get("Two.Get")
	require.NoError(t, err)
	assert.Equal(t, "a.Two", m.ServiceFullName)
}

func TestLookup(t *testing.T) {
	cat := buildFixtureCatalog(t)

	tests := []struct {
		service string
		method  string
		want    string
		wantErr bool
	}{
		{"ProductService", "GetProduct", "shop.v1.ProductService.GetProduct", false},
		{"shop.v1.ProductService", "GetProduct", "shop.v1.ProductService.GetProduct", false},
		{".shop.v1.ProductService", "GetProduct", "shop.v1.ProductService.GetProduct", false},
		{"", "Echo", "tree.TreeService.Echo", false},
		{"TreeService", "GetProduct", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.service+"/"+tt.method, func(t *testing.T) {
			m, err := cat.Lookup(tt.service, tt.method)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMethodNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.FullName)
		})
	}
}
