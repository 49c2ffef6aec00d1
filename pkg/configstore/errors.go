package configstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the config or version does not exist.
	ErrNotFound = errors.New("not found")
	// ErrLocked indicates the config is published and can no longer be mutated.
	ErrLocked = errors.New("config is locked")
	// ErrConflict indicates a non-idempotent transition that already holds,
	// or a uniqueness violation in the backend.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable indicates the backend cannot be reached.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrNilConfig indicates Create or Update was called without a config.
	ErrNilConfig = errors.New("config is nil")
)

// Error describes a failed store operation on a single config. Backends
// return it so callers see one error shape regardless of backend; use
// errors.Is against the sentinels above to classify it.
type Error struct {
	Op  string
	ID  string
	Err error
}

// NewError builds an *Error for op on id.
func NewError(op, id string, err error) error {
	return &Error{Op: op, ID: id, Err: err}
}

// VersionNotFound reports a missing (configID, version) pair.
func VersionNotFound(op, id string, version int64) error {
	return NewError(op, id, fmt.Errorf("version %d: %w", version, ErrNotFound))
}

func (e *Error) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("configstore: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("configstore: %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Operation names used in errors and metrics.
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpHistory  = "history"
	OpRollback = "rollback"
	OpPublish  = "publish"
	OpClone    = "clone"
)
