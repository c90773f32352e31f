package memory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/core/domain/model/proposal"
	"orderchain/internal/core/ports"
	"orderchain/internal/pkg/errs"
)

var (
	_ ports.UnitOfWorkFactory = (*Vault)(nil)
	_ ports.UnitOfWork        = (*unitOfWork)(nil)
	_ ports.RecordRepository  = (*recordRepository)(nil)
)

var (
	ErrNoActiveTransaction      = errors.New("no active transaction")
	ErrTransactionAlreadyActive = errors.New("transaction already active")
)

// Vault is the in-process record store of one node.
type Vault struct {
	mu       sync.RWMutex
	versions map[kernel.UUID][]*order.Record
	order    []kernel.UUID
}

func NewVault() *Vault {
	return &Vault{versions: make(map[kernel.UUID][]*order.Record)}
}

func (v *Vault) Create() ports.UnitOfWork {
	return &unitOfWork{vault: v}
}

// append stores rec unless a version with the same reference is present.
func (v *Vault) append(rec *order.Record) {
	v.mu.Lock()
	defer v.mu.Unlock()
	history, known := v.versions[rec.OrderID()]
	for _, stored := range history {
		if stored.IsEqual(rec) {
			return
		}
	}
	if !known {
		v.order = append(v.order, rec.OrderID())
	}
	history = append(history, rec)
	slices.SortStableFunc(history, func(a, b *order.Record) int {
		switch {
		case a.Version() < b.Version():
			return -1
		case a.Version() > b.Version():
			return 1
		}
		return 0
	})
	v.versions[rec.OrderID()] = history
}

func (v *Vault) history(orderID kernel.UUID) []*order.Record {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.versions[orderID])
}

func (v *Vault) heads() []*order.Record {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]*order.Record, 0, len(v.order))
	for _, id := range v.order {
		history := v.versions[id]
		out = append(out, history[len(history)-1])
	}
	return out
}

type unitOfWork struct {
	vault  *Vault
	active bool
	staged []*order.Record
}

func (u *unitOfWork) Begin(_ context.Context) error {
	if u.active {
		return ErrTransactionAlreadyActive
	}
	u.active = true
	u.staged = nil
	return nil
}

func (u *unitOfWork) Commit(_ context.Context) error {
	if !u.active {
		return ErrNoActiveTransaction
	}
	for _, rec := range u.staged {
		u.vault.append(rec)
	}
	u.active = false
	u.staged = nil
	return nil
}

func (u *unitOfWork) Rollback(_ context.Context) error {
	if !u.active {
		return ErrNoActiveTransaction
	}
	u.active = false
	u.staged = nil
	return nil
}

func (u *unitOfWork) RecordRepository() ports.RecordRepository {
	return &recordRepository{uow: u}
}

type recordRepository struct {
	uow *unitOfWork
}

func (r *recordRepository) Append(ctx context.Context, tx proposal.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.Record.Validate(); err != nil {
		return err
	}
	if r.uow.active {
		r.uow.staged = append(r.uow.staged, tx.Record)
		return nil
	}
	r.uow.vault.append(tx.Record)
	return nil
}

func (r *recordRepository) Head(ctx context.Context, orderID kernel.UUID) (*order.Record, error) {
	history, err := r.History(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return history[len(history)-1], nil
}

func (r *recordRepository) History(ctx context.Context, orderID kernel.UUID) ([]*order.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	history := r.uow.vault.history(orderID)
	if len(history) == 0 {
		return nil, errs.NewObjectNotFoundError("orderID", orderID)
	}
	return history, nil
}

func (r *recordRepository) Heads(ctx context.Context) ([]*order.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.uow.vault.heads(), nil
}

func (r *recordRepository) HeadsFor(ctx context.Context, p kernel.Principal) ([]*order.Record, error) {
	heads, err := r.Heads(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*order.Record, 0, len(heads))
	for _, rec := range heads {
		if rec.IsParticipant(p) {
			out = append(out, rec)
		}
	}
	return out, nil
}
