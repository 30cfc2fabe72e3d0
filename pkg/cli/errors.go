package cli

import "errors"

// Common CLI errors
var (
	ErrNoRepo       = errors.New("no schema repository configured - set repo.dir in the config file")
	ErrNotTerminal  = errors.New("no method given and stdin is not a terminal")
	ErrEmptyRequest = errors.New("request body is empty")
)

// exitError carries an exit code. reported is set when the command already
// wrote the error (for instance as JSON on stdout).
type exitError struct {
	code     int
	err      error
	reported bool
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}
