package commit

import (
	"errors"
	"fmt"
)

// ErrCommit is matched by every *CommitError.
var ErrCommit = errors.New("commit failed")

// ErrorKind classifies a failed finalization.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// Conflict: the consumed version was already consumed by a concurrent
	// transition. The caller must reload the order and decide again.
	Conflict
	// Unavailable: the ledger could not be reached. The caller may retry
	// with backoff.
	Unavailable
)

func (k ErrorKind) String() string {
	switch k {
	case Conflict:
		return "Conflict"
	case Unavailable:
		return "Unavailable"
	case KindUnknown:
	}
	return "Unknown"
}

type CommitError struct {
	Kind  ErrorKind
	Cause error
}

func NewConflictError(cause error) *CommitError {
	return &CommitError{Kind: Conflict, Cause: cause}
}

func NewUnavailableError(cause error) *CommitError {
	return &CommitError{Kind: Unavailable, Cause: cause}
}

func (e *CommitError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", ErrCommit, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", ErrCommit, e.Kind, e.Cause)
}

func (e *CommitError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrCommit}
	}
	return []error{ErrCommit, e.Cause}
}

// IsKind reports whether err carries a *CommitError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *CommitError
	return errors.As(err, &ce) && ce.Kind == kind
}
