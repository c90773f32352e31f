package ports

import (
	"context"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/core/domain/model/proposal"
)

// RecordRepository is the local vault: every finalized version this node
// has seen, with the signatures that committed it.
type RecordRepository interface {
	// Append stores the version produced by tx and marks the consumed version
	// as superseded. Appending an already stored version is a no-op.
	Append(ctx context.Context, tx proposal.Transaction) error

	// Head returns the newest stored version of the order, or an
	// errs.ObjectNotFoundError.
	Head(ctx context.Context, orderID kernel.UUID) (*order.Record, error)

	// History returns every stored version of the order by ascending version.
	History(ctx context.Context, orderID kernel.UUID) ([]*order.Record, error)

	// Heads returns the newest stored version of every known order.
	Heads(ctx context.Context) ([]*order.Record, error)

	// HeadsFor returns the newest versions of the orders in which p takes part.
	HeadsFor(ctx context.Context, p kernel.Principal) ([]*order.Record, error)
}
