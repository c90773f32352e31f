package queries

import (
	"errors"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/pkg/errs"
	"orderchain/internal/pkg/guard"
)

var ErrListParticipantOrdersQueryIsNotConstructed = errors.New(
	"ListParticipantOrdersQuery must be created via NewListParticipantOrdersQuery constructor",
)

// ListParticipantOrdersQuery asks for the current version of every order in
// which the principal is buyer, seller or shipper.
type ListParticipantOrdersQuery struct {
	participant kernel.Principal
	guard       guard.ConstructorGuard
}

func NewListParticipantOrdersQuery(participant kernel.Principal) (ListParticipantOrdersQuery, error) {
	if err := participant.Validate(); err != nil {
		return ListParticipantOrdersQuery{}, errs.NewValueIsRequiredErrorWithCause("participant", err)
	}
	return ListParticipantOrdersQuery{participant: participant, guard: guard.NewConstructorGuard()}, nil
}

func (q ListParticipantOrdersQuery) Participant() kernel.Principal {
	return q.participant
}

func (q ListParticipantOrdersQuery) Validate() error {
	return q.guard.Validate(ErrListParticipantOrdersQueryIsNotConstructed)
}
