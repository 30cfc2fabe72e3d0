package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Lookup errors.
var (
	// ErrMethodNotFound is returned when a requested method is not in the catalog.
	ErrMethodNotFound = errors.New("method not found")

	// ErrAmbiguousMethod is returned when a bare method name matches methods
	// in more than one service.
	ErrAmbiguousMethod = errors.New("method name is ambiguous")
)

// NotFoundError carries the name that was asked for. It matches
// ErrMethodNotFound via errors.Is.
type NotFoundError struct {
	Name string

	// Suggestions lists catalog IDs that share the requested method name
	// or contain it, to help the caller correct a typo.
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("method %q not found", e.Name)
	}
	return fmt.Sprintf("method %q not found (did you mean %s?)", e.Name, strings.Join(e.Suggestions, ", "))
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrMethodNotFound
}

// AmbiguousError lists the methods a bare name matched.
type AmbiguousError struct {
	Name    string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("method %q matches %s; qualify it with the service name", e.Name, strings.Join(e.Matches, ", "))
}

func (e *AmbiguousError) Is(target error) bool {
	return target == ErrAmbiguousMethod
}
