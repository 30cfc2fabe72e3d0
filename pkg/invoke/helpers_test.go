package invoke

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/getmockd/grpcprobe/pkg/catalog"
	"github.com/getmockd/grpcprobe/pkg/schema"
)

func getFixtureRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)

	// Navigate from pkg/invoke to project root
	root := filepath.Join(wd, "..", "..", "tests", "fixtures", "protos")
	_, err = os.Stat(root)
	require.NoError(t, err, "proto fixtures not found at %s", root)
	return root
}

func loadFixtures(t *testing.T) (*schema.Tree, *catalog.Catalog) {
	t.Helper()
	res, err := schema.Load(context.Background(), getFixtureRoot(t))
	require.NoError(t, err)
	return res.Tree, catalog.Build(res.Tree)
}

func loadSource(t *testing.T, src string) *schema.Tree {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "test.proto"), []byte(src), 0o644))
	res, err := schema.Load(context.Background(), root)
	require.NoError(t, err)
	require.False(t, res.Degraded(), "test source failed to load: %v", res.Failures)
	return res.Tree
}

func lookup(t *testing.T, tree *schema.Tree, name string) *schema.TypeNode {
	t.Helper()
	node, ok := tree.Lookup(name)
	require.True(t, ok, "type %s not found", name)
	return node
}
