// Package apperr defines the error taxonomy shared across gooseberry.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks lookups of unknown annotation IDs or tags.
	ErrNotFound = errors.New("not found")
	// ErrDoingNothing is returned when the user declines a destructive prompt.
	ErrDoingNothing = errors.New("doing nothing")
)

// RemoteError wraps a failure from the annotation service. The current
// sync or write-back is aborted without touching local state.
type RemoteError struct {
	Op     string // "list", "update_tags", "delete", "update_group"
	ID     string // annotation id, when the call targets one
	Status int    // HTTP status, 0 for transport errors
	Err    error
}

func (e *RemoteError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("remote %s failed for annotation %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// InconsistentIndexError signals a violation of the tag index's
// bidirectional invariant. The index needs a rebuild (clear + sync).
type InconsistentIndexError struct {
	Detail string
}

func (e *InconsistentIndexError) Error() string {
	return fmt.Sprintf("index is inconsistent: %s, rebuild with clear followed by sync", e.Detail)
}

// FilenameCollisionError reports two distinct key values sanitizing to
// the same page filename. Generation continues for unaffected pages.
type FilenameCollisionError struct {
	Path string
	Keys []string
}

func (e *FilenameCollisionError) Error() string {
	return fmt.Sprintf("page name collision at %q between keys %v", e.Path, e.Keys)
}

// InvalidSpecError marks a malformed filter, hierarchy, or sort spec.
// It is raised before any I/O happens.
type InvalidSpecError struct {
	Kind string // "filter", "hierarchy", "sort"
	Err  error
}

func (e *InvalidSpecError) Error() string {
	return fmt.Sprintf("invalid %s spec: %v", e.Kind, e.Err)
}

func (e *InvalidSpecError) Unwrap() error { return e.Err }
