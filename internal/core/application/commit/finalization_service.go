// Package commit finalizes quorate proposals through the ledger and hands the
// committed record to every participant.
package commit

import (
	"context"
	"errors"
	"time"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/core/domain/model/proposal"
	"orderchain/internal/core/ports"
	"orderchain/internal/pkg/errs"
	"orderchain/internal/pkg/metrics"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a ledger submission when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// FinalizedRecord is the outcome of a committed transition.
type FinalizedRecord struct {
	ProposalID   kernel.UUID
	Record       *order.Record
	CommittedRef kernel.VersionRef
	Transaction  proposal.Transaction
}

// FinalizationService submits quorate proposals to the ledger.
//
// The ledger decides races: of two proposals consuming the same version
// exactly one is committed, the other fails with a Conflict. After the
// ledger accepted a transaction the commit is authoritative; storing it in
// the local vault and distributing it are best effort and only logged on
// failure, since participants converge from the distribution stream and the
// head audit.
type FinalizationService struct {
	ledger      ports.Ledger
	uowFactory  ports.UnitOfWorkFactory
	distributor ports.Distributor
	timeout     time.Duration
	logger      *zap.Logger
}

func NewFinalizationService(
	ledger ports.Ledger,
	uowFactory ports.UnitOfWorkFactory,
	distributor ports.Distributor,
	timeout time.Duration,
	logger *zap.Logger,
) (*FinalizationService, error) {
	if ledger == nil {
		return nil, errs.NewValueIsRequiredError("ledger")
	}
	if uowFactory == nil {
		return nil, errs.NewValueIsRequiredError("uowFactory")
	}
	if distributor == nil {
		return nil, errs.NewValueIsRequiredError("distributor")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FinalizationService{
		ledger:      ledger,
		uowFactory:  uowFactory,
		distributor: distributor,
		timeout:     timeout,
		logger:      logger,
	}, nil
}

// Finalize commits a quorate proposal. Conflicts are never retried here.
func (s *FinalizationService) Finalize(ctx context.Context, p *proposal.Proposal) (*FinalizedRecord, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := p.BeginFinalizing(); err != nil {
		return nil, err
	}
	tx, err := p.Transaction()
	if err != nil {
		return nil, err
	}

	log := s.logger.With(
		zap.String("proposal_id", p.ID().String()),
		zap.String("order_id", tx.Record.OrderID().String()),
		zap.Stringer("command", tx.Command.Kind()),
	)

	submitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	ref, err := s.ledger.Submit(submitCtx, tx)
	cancel()
	if err != nil {
		commitErr := classify(err)
		_ = p.Reject(commitErr)
		if commitErr.Kind == Conflict {
			metrics.CommitConflictsTotal.Inc()
		}
		log.Warn("ledger refused transaction", zap.Stringer("kind", commitErr.Kind), zap.Error(err))
		return nil, commitErr
	}
	if !ref.IsEqual(tx.Record.VersionRef()) {
		log.Warn("ledger returned an unexpected reference",
			zap.Stringer("expected", tx.Record.VersionRef()),
			zap.Stringer("returned", ref),
		)
	}
	if err = p.MarkCommitted(ref); err != nil {
		return nil, err
	}
	metrics.TransitionsCommittedTotal.WithLabelValues(tx.Command.Kind().String()).Inc()

	if err = s.store(ctx, tx); err != nil {
		log.Error("committed transaction not stored locally", zap.Error(err))
	}
	if err = s.distributor.Distribute(ctx, tx, tx.Record.Participants()); err != nil {
		log.Error("committed transaction not distributed", zap.Error(err))
	}

	log.Info("transition committed",
		zap.Uint64("version", tx.Record.Version()),
		zap.Stringer("status", tx.Record.Status()),
		zap.Stringer("version_ref", ref),
	)
	return &FinalizedRecord{
		ProposalID:   p.ID(),
		Record:       tx.Record,
		CommittedRef: ref,
		Transaction:  tx,
	}, nil
}

func (s *FinalizationService) store(ctx context.Context, tx proposal.Transaction) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	if err := uow.RecordRepository().Append(ctx, tx); err != nil {
		return err
	}
	return uow.Commit(ctx)
}

func classify(err error) *CommitError {
	if errors.Is(err, ports.ErrConflict) {
		return NewConflictError(err)
	}
	return NewUnavailableError(err)
}
