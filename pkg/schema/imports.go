package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/bufbuild/protocompile"
	"google.golang.org/protobuf/reflect/protoregistry"
)

// DefaultImportSubdirs are the conventional directories, relative to the
// schema root, searched after importer- and root-relative lookups fail.
var DefaultImportSubdirs = []string{
	"google",
	"google/api",
	"google/protobuf",
	"validate",
	"service",
}

// Import resolution strategy names, in the order they are tried.
const (
	StrategyImporterRelative = "importer-relative"
	StrategyRootRelative     = "root-relative"
	StrategyConventional     = "conventional"
	StrategyStandard         = "standard"
)

// Attempt is one candidate tried by a resolution strategy.
type Attempt struct {
	Strategy  string `json:"strategy"`
	Candidate string `json:"candidate"`
	Reason    string `json:"reason"`
}

// ImportResolution is the audit record for one import statement.
type ImportResolution struct {
	Import   string    `json:"import"`
	Importer string    `json:"importer"`
	Path     string    `json:"path,omitempty"`
	Strategy string    `json:"strategy,omitempty"`
	Attempts []Attempt `json:"attempts,omitempty"`
}

// Resolved reports whether any strategy found the import.
func (r ImportResolution) Resolved() bool {
	return r.Strategy != ""
}

// importResolver serves one compilation. protocompile does not say which
// file asked for an import, so "importer-relative" covers the directory of
// the file being compiled and of every file this compilation has already
// opened, in that order.
type importResolver struct {
	root    string
	origin  string
	subdirs []string
	std     protocompile.Resolver

	mu    sync.Mutex
	dirs  []string
	trail []ImportResolution
}

func newImportResolver(root, origin string, subdirs []string) *importResolver {
	return &importResolver{
		root:    root,
		origin:  origin,
		subdirs: subdirs,
		std: protocompile.WithStandardImports(protocompile.ResolverFunc(
			func(string) (protocompile.SearchResult, error) {
				return protocompile.SearchResult{}, protoregistry.NotFound
			},
		)),
		dirs: []string{path.Dir(origin)},
	}
}

type candidate struct {
	strategy string
	rel      string
}

func (r *importResolver) candidates(imp string) []candidate {
	var out []candidate
	for _, dir := range r.dirs {
		out = append(out, candidate{StrategyImporterRelative, path.Join(dir, imp)})
	}
	out = append(out, candidate{StrategyRootRelative, path.Clean(imp)})
	for _, sub := range r.subdirs {
		out = append(out, candidate{StrategyConventional, path.Join(sub, imp)})
	}
	return out
}

func (r *importResolver) FindFileByPath(imp string) (protocompile.SearchResult, error) {
	if imp == r.origin {
		f, err := os.Open(r.abs(imp))
		if err != nil {
			return protocompile.SearchResult{}, err
		}
		return protocompile.SearchResult{Source: f}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res := ImportResolution{Import: imp, Importer: r.origin}
	tried := make(map[string]bool)
	for _, c := range r.candidates(imp) {
		if tried[c.rel] {
			continue
		}
		tried[c.rel] = true

		f, reason := r.open(c.rel)
		if f == nil {
			res.Attempts = append(res.Attempts, Attempt{Strategy: c.strategy, Candidate: c.rel, Reason: reason})
			continue
		}
		res.Path = c.rel
		res.Strategy = c.strategy
		r.trail = append(r.trail, res)
		r.addDir(path.Dir(c.rel))
		return protocompile.SearchResult{Source: f}, nil
	}

	if sr, err := r.std.FindFileByPath(imp); err == nil {
		res.Path = imp
		res.Strategy = StrategyStandard
		r.trail = append(r.trail, res)
		return sr, nil
	}
	res.Attempts = append(res.Attempts, Attempt{Strategy: StrategyStandard, Candidate: imp, Reason: "not a bundled well-known file"})
	r.trail = append(r.trail, res)
	return protocompile.SearchResult{}, fmt.Errorf("import %q: %w", imp, fs.ErrNotExist)
}

func (r *importResolver) open(rel string) (*os.File, string) {
	full := r.abs(rel)
	info, err := os.Stat(full)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, "not found"
	case err != nil:
		return nil, err.Error()
	case info.IsDir():
		return nil, "is a directory"
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, err.Error()
	}
	return f, ""
}

func (r *importResolver) abs(rel string) string {
	return filepath.Join(r.root, filepath.FromSlash(rel))
}

func (r *importResolver) addDir(dir string) {
	for _, d := range r.dirs {
		if d == dir {
			return
		}
	}
	r.dirs = append(r.dirs, dir)
}

// Trail returns the resolutions recorded so far.
func (r *importResolver) Trail() []ImportResolution {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ImportResolution, len(r.trail))
	copy(out, r.trail)
	return out
}
