// Package memory holds in-process adapters: a ledger, a record vault and a
// peer network. They back the single binary demo mode and the protocol tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/proposal"
	"orderchain/internal/core/ports"
	"orderchain/internal/pkg/errs"
)

var (
	_ ports.Ledger        = (*Ledger)(nil)
	_ ports.LedgerHistory = (*Ledger)(nil)
)

// Ledger is an in-process notary. A single mutex serializes submissions, so
// of two transactions consuming the same version exactly one wins.
type Ledger struct {
	mu       sync.Mutex
	heads    map[kernel.UUID]kernel.VersionRef
	consumed map[kernel.VersionRef]struct{}
	log      []proposal.Transaction
}

func NewLedger() *Ledger {
	return &Ledger{
		heads:    make(map[kernel.UUID]kernel.VersionRef),
		consumed: make(map[kernel.VersionRef]struct{}),
	}
}

func (l *Ledger) Submit(ctx context.Context, tx proposal.Transaction) (kernel.VersionRef, error) {
	if err := ctx.Err(); err != nil {
		return kernel.VersionRef{}, fmt.Errorf("%w: %w", ports.ErrUnavailable, err)
	}
	if err := tx.Record.Validate(); err != nil {
		return kernel.VersionRef{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	orderID := tx.Record.OrderID()
	head, exists := l.heads[orderID]
	switch {
	case tx.ConsumedRef == nil && exists:
		return kernel.VersionRef{}, fmt.Errorf("%w: order %s already exists", ports.ErrConflict, orderID)
	case tx.ConsumedRef != nil:
		if _, spent := l.consumed[*tx.ConsumedRef]; spent {
			return kernel.VersionRef{}, fmt.Errorf("%w: %s", ports.ErrConflict, tx.ConsumedRef)
		}
		if !exists || !head.IsEqual(*tx.ConsumedRef) {
			return kernel.VersionRef{}, fmt.Errorf("%w: %s is not the head of order %s",
				ports.ErrConflict, tx.ConsumedRef, orderID)
		}
		l.consumed[*tx.ConsumedRef] = struct{}{}
	}

	ref := tx.Record.VersionRef()
	l.heads[orderID] = ref
	l.log = append(l.log, tx)
	return ref, nil
}

func (l *Ledger) Head(ctx context.Context, orderID kernel.UUID) (kernel.VersionRef, error) {
	if err := ctx.Err(); err != nil {
		return kernel.VersionRef{}, fmt.Errorf("%w: %w", ports.ErrUnavailable, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	head, ok := l.heads[orderID]
	if !ok {
		return kernel.VersionRef{}, errs.NewObjectNotFoundError("orderID", orderID)
	}
	return head, nil
}

// Transactions returns the transactions notarized for orderID in commit order.
func (l *Ledger) Transactions(ctx context.Context, orderID kernel.UUID) ([]proposal.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrUnavailable, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []proposal.Transaction
	for _, tx := range l.log {
		if tx.Record.OrderID().IsEqual(orderID) {
			out = append(out, tx)
		}
	}
	return out, nil
}

// Committed returns the notarized transactions in commit order.
func (l *Ledger) Committed() []proposal.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]proposal.Transaction, len(l.log))
	copy(out, l.log)
	return out
}
