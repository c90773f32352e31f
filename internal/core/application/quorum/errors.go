package quorum

import (
	"errors"
	"fmt"

	"orderchain/internal/core/domain/model/kernel"
)

// ErrQuorum is matched by every *QuorumError.
var ErrQuorum = errors.New("quorum not reached")

// ErrorKind classifies why signature collection failed.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// Rejected: a required participant refused to countersign.
	Rejected
	// Timeout: the collection deadline passed before quorum.
	Timeout
	// SignatureInvalid: a signature was bad, over the wrong payload, or from an unknown signer.
	SignatureInvalid
	// Unreachable: a participant could not be contacted.
	Unreachable
	// Cancelled: the proposer abandoned the proposal.
	Cancelled
)

func (k ErrorKind) String() string {
	switch k {
	case Rejected:
		return "Rejected"
	case Timeout:
		return "Timeout"
	case SignatureInvalid:
		return "SignatureInvalid"
	case Unreachable:
		return "Unreachable"
	case Cancelled:
		return "Cancelled"
	case KindUnknown:
	}
	return "Unknown"
}

// QuorumError ends a proposal in the Rejected state. The caller may re-propose.
type QuorumError struct {
	Kind   ErrorKind
	Signer kernel.Principal
	Cause  error
}

func newError(kind ErrorKind, signer kernel.Principal, cause error) *QuorumError {
	return &QuorumError{Kind: kind, Signer: signer, Cause: cause}
}

func (e *QuorumError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrQuorum, e.Kind)
	if e.Signer.Validate() == nil {
		msg += " (" + e.Signer.Name() + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *QuorumError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrQuorum}
	}
	return []error{ErrQuorum, e.Cause}
}

// IsKind reports whether err carries a *QuorumError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var qe *QuorumError
	return errors.As(err, &qe) && qe.Kind == kind
}
