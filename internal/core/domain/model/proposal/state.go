package proposal

import (
	"fmt"

	"orderchain/internal/pkg/errs"
)

// State is the lifecycle state of a proposal.
type State int

const (
	Unknown State = iota
	Drafted
	CollectingSignatures
	Quorate
	Finalizing
	Committed
	Rejected
)

func (s State) String() string {
	switch s {
	case Drafted:
		return "Drafted"
	case CollectingSignatures:
		return "CollectingSignatures"
	case Quorate:
		return "Quorate"
	case Finalizing:
		return "Finalizing"
	case Committed:
		return "Committed"
	case Rejected:
		return "Rejected"
	case Unknown:
	}
	return "Unknown"
}

// IsTerminal reports whether no further transition exists.
func (s State) IsTerminal() bool {
	return s == Committed || s == Rejected
}

func (s State) transitionTo(next State) (State, error) {
	allowed := false
	switch next {
	case CollectingSignatures:
		allowed = s == Drafted
	case Quorate:
		allowed = s == CollectingSignatures
	case Finalizing:
		allowed = s == Quorate
	case Committed:
		allowed = s == Finalizing
	case Rejected:
		allowed = s >= Drafted && !s.IsTerminal()
	case Unknown, Drafted:
	}
	if !allowed {
		return s, errs.NewValueIsInvalidErrorWithCause(
			"proposal state",
			fmt.Errorf("cannot move from %s to %s", s, next),
		)
	}
	return next, nil
}
