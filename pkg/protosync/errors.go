package protosync

import "errors"

var (
	// ErrRepoNotFound is returned when the directory is missing or is not a
	// git repository.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrRemoteNotFound is returned when the configured remote is not defined.
	ErrRemoteNotFound = errors.New("remote not found")

	// ErrDirtyWorktree is returned when local changes block the pull.
	ErrDirtyWorktree = errors.New("worktree has local changes")

	// ErrAuth is returned when the remote rejects the credentials.
	ErrAuth = errors.New("authentication failed")
)
