package ports

import (
	"context"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/proposal"
)

// Distributor hands a finalized transaction to the participants.
type Distributor interface {
	Distribute(ctx context.Context, tx proposal.Transaction, recipients []kernel.Principal) error
}

// TransactionApplier is the receiving side of Distributor.
type TransactionApplier interface {
	Apply(ctx context.Context, tx proposal.Transaction) error
}
