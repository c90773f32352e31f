package ports

import (
	"context"
	"errors"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/proposal"
)

var (
	// ErrConflict is returned by Ledger.Submit when the consumed version was
	// already consumed, or when it is not the order's unconsumed head.
	ErrConflict = errors.New("version already consumed")

	// ErrUnavailable is returned when the ledger cannot be reached.
	ErrUnavailable = errors.New("ledger unavailable")
)

// Ledger is the ordering collaborator. It guarantees that each VersionRef is
// consumed at most once across all concurrent submissions and keeps a total
// order of the commits touching one order.
type Ledger interface {
	// Submit notarizes tx: it consumes tx.ConsumedRef (nil for a new order)
	// and makes tx.Record the order's unconsumed head. The returned reference
	// is the committed version.
	Submit(ctx context.Context, tx proposal.Transaction) (kernel.VersionRef, error)

	// Head returns the order's unconsumed version, or an
	// errs.ObjectNotFoundError when the ledger has never seen the order.
	Head(ctx context.Context, orderID kernel.UUID) (kernel.VersionRef, error)
}

// LedgerHistory lists what the ledger notarized for one order, oldest first.
// The head audit replays it to repair a stale local vault.
type LedgerHistory interface {
	Transactions(ctx context.Context, orderID kernel.UUID) ([]proposal.Transaction, error)
}
