package schema

import (
	"errors"
	"fmt"
)

// Load errors.
var (
	// ErrSchemaSourceMissing is returned when the schema root directory does
	// not exist. It is the only fatal load condition.
	ErrSchemaSourceMissing = errors.New("schema source missing")

	// ErrSchemaFileDefect matches every FileDefect via errors.Is.
	ErrSchemaFileDefect = errors.New("schema file defect")

	// ErrNotLinked is returned when an operation needs a linked descriptor but
	// the declaring file only parsed.
	ErrNotLinked = errors.New("declaration is not linked")
)

// Stage identifies the load step at which a file failed.
type Stage string

const (
	StageRead  Stage = "read"
	StageParse Stage = "parse"
	StageLink  Stage = "link"
)

// FileDefect records one file that could not be fully loaded. Partial files
// parsed but did not link; their declarations are still in the tree with
// unresolved references.
type FileDefect struct {
	Path    string
	Stage   Stage
	Partial bool
	Err     error
}

func (e *FileDefect) Error() string {
	if e.Partial {
		return fmt.Sprintf("%s: %s failed (declarations kept unlinked): %v", e.Path, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Path, e.Stage, e.Err)
}

func (e *FileDefect) Unwrap() error {
	return e.Err
}

// Is makes every FileDefect match ErrSchemaFileDefect.
func (e *FileDefect) Is(target error) bool {
	return target == ErrSchemaFileDefect
}
