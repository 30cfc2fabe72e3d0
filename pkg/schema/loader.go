package schema

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/bufbuild/protocompile"
	"github.com/bufbuild/protocompile/parser"
	"github.com/bufbuild/protocompile/reporter"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/getmockd/grpcprobe/pkg/logging"
)

// DefaultInclude is the discovery pattern used when no include patterns are
// configured.
const DefaultInclude = "**/*.proto"

// Loader discovers, compiles and merges a directory of .proto files.
type Loader struct {
	include     []string
	exclude     []string
	subdirs     []string
	concurrency int
	log         *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithInclude sets the doublestar patterns, relative to the root, that select
// files to load.
func WithInclude(patterns ...string) Option {
	return func(l *Loader) {
		if len(patterns) > 0 {
			l.include = patterns
		}
	}
}

// WithExclude drops files matching any of the patterns.
func WithExclude(patterns ...string) Option {
	return func(l *Loader) {
		l.exclude = patterns
	}
}

// WithImportSubdirs replaces the conventional import directories.
func WithImportSubdirs(dirs ...string) Option {
	return func(l *Loader) {
		l.subdirs = dirs
	}
}

// WithConcurrency bounds the number of files compiled at once.
func WithConcurrency(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithLogger sets the logger for load diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLoader creates a Loader with the given options.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		include:     []string{DefaultInclude},
		subdirs:     DefaultImportSubdirs,
		concurrency: runtime.GOMAXPROCS(0),
		log:         logging.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load is shorthand for NewLoader(opts...).Load(ctx, root).
func Load(ctx context.Context, root string, opts ...Option) (*Result, error) {
	return NewLoader(opts...).Load(ctx, root)
}

// Result is the outcome of one load.
type Result struct {
	Tree *Tree

	// Root is the schema directory that was loaded.
	Root string

	// Files lists every discovered file in scheduling order.
	Files []string

	// Linked counts files that compiled and linked cleanly.
	Linked int

	// Failures holds one entry per file that did not fully load.
	Failures []*FileDefect

	// Imports is the audit trail of every import statement encountered.
	Imports []ImportResolution

	Duration time.Duration
}

// Degraded reports whether any file failed to load.
func (r *Result) Degraded() bool {
	return len(r.Failures) > 0
}

// unit is the compile outcome of one discovered file.
type unit struct {
	path   string
	linked protoreflect.FileDescriptor
	parsed *descriptorpb.FileDescriptorProto
	defect *FileDefect
	trail  []ImportResolution
}

// aliases maps each import string this unit resolved on disk to the
// root-relative path it was found at.
func (u *unit) aliases() map[string]string {
	out := make(map[string]string, len(u.trail))
	for _, r := range u.trail {
		if r.Resolved() && r.Strategy != StrategyStandard {
			out[r.Import] = r.Path
		}
	}
	return out
}

// Load discovers files under root, compiles each one independently and
// merges the results into a single tree. Only a missing root is fatal; every
// per-file problem is recorded in Result.Failures.
func (l *Loader) Load(ctx context.Context, root string) (*Result, error) {
	start := time.Now()

	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSchemaSourceMissing, root)
		}
		return nil, fmt.Errorf("stat schema root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrSchemaSourceMissing, root)
	}

	files, err := l.discover(root)
	if err != nil {
		return nil, err
	}
	l.log.Debug("discovered proto files", "root", root, "count", len(files))

	units, err := l.compileAll(ctx, root, files)
	if err != nil {
		return nil, err
	}

	b := newBuild(l.log)
	res := &Result{Root: root, Files: files}

	for _, u := range units {
		res.Imports = append(res.Imports, u.trail...)
		if u.defect != nil {
			res.Failures = append(res.Failures, u.defect)
			l.log.Warn("proto file skipped", "file", u.path, "stage", u.defect.Stage, "partial", u.defect.Partial, "error", u.defect.Err)
		}
		if u.linked != nil {
			res.Linked++
			b.mergeLinked(u.linked, u.aliases())
		}
	}

	unlinked := 0
	for _, u := range units {
		if u.parsed != nil {
			unlinked++
			b.mergeUnlinked(u.parsed)
		}
	}
	if unlinked > 0 {
		// Unlinked files commonly reference the wrappers without having
		// resolved the import; make them available to symbolic lookup.
		b.mergeLinked(wrapperspb.File_google_protobuf_wrappers_proto, nil)
	}

	b.link()
	res.Tree = b.tree
	res.Duration = time.Since(start)

	l.log.Info("schema loaded",
		"root", root,
		"files", len(files),
		"linked", res.Linked,
		"failed", len(res.Failures),
		"types", res.Tree.TypeCount(),
		"services", res.Tree.ServiceCount(),
		"duration", res.Duration,
	)
	return res, nil
}

// discover returns root-relative, slash-separated paths in scheduling order:
// files that look like service definitions first, then the rest, each group
// sorted by path.
func (l *Loader) discover(root string) ([]string, error) {
	fsys := os.DirFS(root)
	seen := make(map[string]bool)
	var files []string

	for _, pattern := range l.include {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("include pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] || l.excluded(m) {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		si, sj := isServiceFile(files[i]), isServiceFile(files[j])
		if si != sj {
			return si
		}
		return files[i] < files[j]
	})
	return files, nil
}

func (l *Loader) excluded(rel string) bool {
	for _, pattern := range l.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func isServiceFile(rel string) bool {
	if strings.HasSuffix(rel, "_service.proto") {
		return true
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == "service" || seg == "services" {
			return true
		}
	}
	return false
}

func (l *Loader) compileAll(ctx context.Context, root string, files []string) ([]*unit, error) {
	units := make([]*unit, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, rel := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			units[i] = l.compile(ctx, root, rel)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return units, nil
}

func (l *Loader) compile(ctx context.Context, root, rel string) *unit {
	u := &unit{path: rel}
	resolver := newImportResolver(root, rel, l.subdirs)
	compiler := protocompile.Compiler{
		Resolver:       resolver,
		SourceInfoMode: protocompile.SourceInfoStandard,
	}

	compiled, err := compiler.Compile(ctx, rel)
	u.trail = resolver.Trail()
	if err == nil && len(compiled) == 1 {
		u.linked = compiled[0]
		return u
	}
	if err == nil {
		err = fmt.Errorf("compiler returned %d files", len(compiled))
	}

	parsed, stage, perr := parseOnly(root, rel)
	if perr != nil {
		u.defect = &FileDefect{Path: rel, Stage: stage, Err: perr}
		return u
	}
	u.parsed = parsed
	u.defect = &FileDefect{Path: rel, Stage: StageLink, Partial: true, Err: err}
	return u
}

// parseOnly parses a file without resolving imports or linking. It is the
// fallback for files whose compile failed, and it reports the stage at which
// the file itself is broken.
func parseOnly(root, rel string) (*descriptorpb.FileDescriptorProto, Stage, error) {
	f, err := os.Open(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, StageRead, err
	}
	defer func() { _ = f.Close() }()

	handler := reporter.NewHandler(nil)
	node, err := parser.Parse(rel, f, handler)
	if err != nil {
		return nil, StageParse, err
	}
	result, err := parser.ResultFromAST(node, true, handler)
	if err != nil {
		return nil, StageParse, err
	}
	return result.FileDescriptorProto(), StageLink, nil
}
