package protosync

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Status describes the clone without touching the network.
type Status struct {
	Dir    string `json:"dir"`
	Branch string `json:"branch,omitempty"`
	Head   string `json:"head,omitempty"`
	URL    string `json:"url,omitempty"`

	// Clean is false when tracked files have uncommitted changes; a pull
	// would fail with ErrDirtyWorktree.
	Clean bool `json:"clean"`

	// OnBranch reports whether HEAD is the configured branch.
	OnBranch bool `json:"onBranch"`
}

// Status opens the clone and reports its branch, HEAD and worktree state.
// A repository without commits has an empty Head.
func (s *Syncer) Status() (*Status, error) {
	repo, err := git.PlainOpen(s.dir)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrRepoNotFound, s.dir)
		}
		return nil, fmt.Errorf("open %s: %w", s.dir, err)
	}

	st := &Status{Dir: s.dir}
	if remote, err := repo.Remote(s.remote); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			st.URL = urls[0]
		}
	}

	head, err := repo.Head()
	switch {
	case err == nil:
		st.Head = head.Hash().String()
		if head.Name().IsBranch() {
			st.Branch = head.Name().Short()
		}
		st.OnBranch = head.Name() == plumbing.NewBranchReferenceName(s.branch)
	case errors.Is(err, plumbing.ErrReferenceNotFound):
	default:
		return nil, fmt.Errorf("read HEAD: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("worktree: %w", err)
	}
	ws, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("worktree status: %w", err)
	}
	st.Clean = true
	for _, fs := range ws {
		// Untracked files do not block a pull.
		if fs.Worktree == git.Untracked && fs.Staging == git.Untracked {
			continue
		}
		if fs.Worktree != git.Unmodified || fs.Staging != git.Unmodified {
			st.Clean = false
			break
		}
	}
	return st, nil
}
