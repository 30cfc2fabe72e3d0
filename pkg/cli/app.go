package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/getmockd/grpcprobe/pkg/catalog"
	"github.com/getmockd/grpcprobe/pkg/cli/internal/output"
	"github.com/getmockd/grpcprobe/pkg/cliconfig"
	"github.com/getmockd/grpcprobe/pkg/example"
	"github.com/getmockd/grpcprobe/pkg/invoke"
	"github.com/getmockd/grpcprobe/pkg/logging"
	"github.com/getmockd/grpcprobe/pkg/schema"
)

// current is the session of the running command, set by setup.
var current *app

// app holds everything one command invocation shares: configuration, the
// logger, and the schema once something asks for it.
type app struct {
	cfg     *cliconfig.CLIConfig
	log     *slog.Logger
	logFile *os.File
	stderr  io.Writer

	loaded  *schema.Result
	catalog *catalog.Catalog
}

func newApp(cfg *cliconfig.CLIConfig, stderr io.Writer) (*app, error) {
	lc := logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: logging.ParseFormat(cfg.LogFormat),
		Output: stderr,
	}
	if cfg.Verbose && lc.Level > logging.LevelInfo {
		lc.Level = logging.LevelInfo
	}
	// --json keeps stderr to errors unless a level was chosen. The log file
	// still gets everything.
	if cfg.JSON && !cfg.Verbose && cfg.Sources["logLevel"] == cliconfig.SourceDefault {
		lc.Level = logging.LevelError
	}

	a := &app{cfg: cfg, stderr: stderr}
	if cfg.LogFile != "" {
		f, err := logging.OpenFile(cfg.LogFile)
		if err != nil {
			return nil, err
		}
		a.logFile = f
		lc.File = f
	}
	a.log = logging.New(lc)
	return a, nil
}

func (a *app) close() {
	if a.logFile != nil {
		_ = a.logFile.Close()
		a.logFile = nil
	}
}

// load reads the schema tree once per invocation.
func (a *app) load(ctx context.Context) (*schema.Result, *catalog.Catalog, error) {
	if a.loaded != nil {
		return a.loaded, a.catalog, nil
	}
	return a.reload(ctx)
}

// reload discards any loaded tree and reads the schema directory again.
func (a *app) reload(ctx context.Context) (*schema.Result, *catalog.Catalog, error) {
	root := a.cfg.ResolveProtoDir()
	opts := append(a.cfg.LoaderOptions(), schema.WithLogger(a.log))
	res, err := schema.Load(ctx, root, opts...)
	if err != nil {
		return nil, nil, err
	}
	a.loaded = res
	a.catalog = catalog.Build(res.Tree)

	if res.Degraded() && !jsonOutput {
		output.Warn(a.stderr, "%d of %d files did not load cleanly; run 'grpcprobe methods --failures' for details",
			len(res.Failures), len(res.Files))
	}
	return a.loaded, a.catalog, nil
}

func (a *app) synthesizer(tree *schema.Tree) (*example.Synthesizer, error) {
	overrides, err := a.cfg.OverrideTable()
	if err != nil {
		return nil, err
	}
	return example.New(tree, example.WithOverrides(overrides)), nil
}

func (a *app) adapter(ctx context.Context) (*invoke.Adapter, error) {
	res, cat, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	envs, err := a.cfg.EnvironmentTable()
	if err != nil {
		return nil, err
	}
	return invoke.NewAdapter(cat, res.Tree, envs, invoke.WithLogger(a.log)), nil
}
