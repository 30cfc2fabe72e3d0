package protosync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/getmockd/grpcprobe/pkg/logging"
)

// Defaults used when no remote or branch is configured.
const (
	DefaultRemote = "origin"
	DefaultBranch = "main"
)

// tokenUser is the basic-auth user name GitHub and GitLab accept alongside a
// personal access token.
const tokenUser = "x-access-token"

// Syncer pulls a branch into an existing clone.
type Syncer struct {
	dir    string
	remote string
	branch string
	force  bool
	log    *slog.Logger
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithRemote sets the remote to pull from.
func WithRemote(name string) Option {
	return func(s *Syncer) {
		if name != "" {
			s.remote = name
		}
	}
}

// WithBranch sets the branch to pull.
func WithBranch(name string) Option {
	return func(s *Syncer) {
		if name != "" {
			s.branch = name
		}
	}
}

// WithForce lets the pull move the local branch even when the remote branch
// does not descend from it.
func WithForce(force bool) Option {
	return func(s *Syncer) {
		s.force = force
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Syncer) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a Syncer for the clone at dir.
func New(dir string, opts ...Option) *Syncer {
	s := &Syncer{
		dir:    dir,
		remote: DefaultRemote,
		branch: DefaultBranch,
		log:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result describes a completed pull.
type Result struct {
	Dir      string        `json:"dir"`
	Remote   string        `json:"remote"`
	URL      string        `json:"url,omitempty"`
	Branch   string        `json:"branch"`
	Before   string        `json:"before,omitempty"`
	Head     string        `json:"head"`
	Updated  bool          `json:"updated"`
	Duration time.Duration `json:"duration"`
}

// Pull fetches and merges the configured branch. An empty token pulls
// without credentials. A repository that is already current is a success
// with Updated=false.
func (s *Syncer) Pull(ctx context.Context, token string) (*Result, error) {
	start := time.Now()

	repo, err := git.PlainOpen(s.dir)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrRepoNotFound, s.dir)
		}
		return nil, fmt.Errorf("open %s: %w", s.dir, err)
	}

	remote, err := repo.Remote(s.remote)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return nil, fmt.Errorf("%w: %q in %s", ErrRemoteNotFound, s.remote, s.dir)
		}
		return nil, fmt.Errorf("remote %q: %w", s.remote, err)
	}

	res := &Result{Dir: s.dir, Remote: s.remote, Branch: s.branch}
	if urls := remote.Config().URLs; len(urls) > 0 {
		res.URL = urls[0]
	}
	if head, err := repo.Head(); err == nil {
		res.Before = head.Hash().String()
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("worktree: %w", err)
	}

	opts := &git.PullOptions{
		RemoteName:    s.remote,
		ReferenceName: plumbing.NewBranchReferenceName(s.branch),
		SingleBranch:  true,
		Force:         s.force,
	}
	if token != "" {
		opts.Auth = &http.BasicAuth{Username: tokenUser, Password: token}
	}

	s.log.Debug("pulling schema repository", "dir", s.dir, "remote", s.remote, "branch", s.branch)
	err = wt.PullContext(ctx, opts)
	switch {
	case err == nil:
		res.Updated = true
	case errors.Is(err, git.NoErrAlreadyUpToDate):
	case errors.Is(err, git.ErrUnstagedChanges):
		return nil, fmt.Errorf("%w: commit or stash them in %s first", ErrDirtyWorktree, s.dir)
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed):
		return nil, fmt.Errorf("%w: %s: %v", ErrAuth, res.URL, err)
	default:
		return nil, fmt.Errorf("pull %s/%s: %w", s.remote, s.branch, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("read HEAD: %w", err)
	}
	res.Head = head.Hash().String()
	res.Updated = res.Updated && res.Head != res.Before
	res.Duration = time.Since(start)

	s.log.Info("schema repository synced",
		"dir", s.dir,
		"head", res.Head,
		"updated", res.Updated,
		"duration", res.Duration,
	)
	return res, nil
}
