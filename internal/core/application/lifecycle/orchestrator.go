// Package lifecycle drives one order transition end to end: load, decide,
// collect signatures, commit.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"orderchain/internal/core/application/commit"
	"orderchain/internal/core/application/quorum"
	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/core/domain/services"
	"orderchain/internal/core/ports"
	"orderchain/internal/pkg/errs"
	"orderchain/internal/pkg/metrics"

	"go.uber.org/zap"
)

// ErrStaleHead is the cause of a Conflict raised before proposing, when the
// local head is not the ledger's unconsumed version.
var ErrStaleHead = errors.New("local head is not the ledger head")

// Request is one command on one order. Terms and Parties are read for Create
// only; OrderID may be left zero for Create to get a fresh identifier.
type Request struct {
	OrderID kernel.UUID
	Command order.Command
	Terms   order.Terms
	Parties order.Parties
	// ExpectedStatus, when set, must be the status the command produces.
	ExpectedStatus *order.Status
}

// Orchestrator is the generic driver for every command in the transition
// table. Nothing it does is visible to other participants until the ledger
// accepted the transaction.
type Orchestrator struct {
	rules       services.TransitionRules
	uowFactory  ports.UnitOfWorkFactory
	ledger      ports.Ledger
	coordinator *quorum.Coordinator
	finalizer   *commit.FinalizationService
	logger      *zap.Logger
}

func NewOrchestrator(
	uowFactory ports.UnitOfWorkFactory,
	ledger ports.Ledger,
	coordinator *quorum.Coordinator,
	finalizer *commit.FinalizationService,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if uowFactory == nil {
		return nil, errs.NewValueIsRequiredError("uowFactory")
	}
	if ledger == nil {
		return nil, errs.NewValueIsRequiredError("ledger")
	}
	if coordinator == nil {
		return nil, errs.NewValueIsRequiredError("coordinator")
	}
	if finalizer == nil {
		return nil, errs.NewValueIsRequiredError("finalizer")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		rules:       services.NewTransitionRules(),
		uowFactory:  uowFactory,
		ledger:      ledger,
		coordinator: coordinator,
		finalizer:   finalizer,
		logger:      logger,
	}, nil
}

// Execute runs req through the rule engine, the quorum coordinator and the
// finalization service. Errors are typed: errs validation errors,
// *services.RuleViolationError, *quorum.QuorumError or *commit.CommitError.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*commit.FinalizedRecord, error) {
	if err := req.Command.Validate(); err != nil {
		return nil, errs.NewValueIsInvalidErrorWithCause("command", err)
	}
	kind := req.Command.Kind()
	if err := o.checkExpectedStatus(kind, req.ExpectedStatus); err != nil {
		return nil, o.violation(err)
	}

	current, err := o.load(ctx, req)
	if err != nil {
		return nil, err
	}

	proposed, err := o.build(current, req)
	if err != nil {
		return nil, o.violation(err)
	}
	if err = o.rules.Validate(current, req.Command, proposed); err != nil {
		return nil, o.violation(err)
	}

	handle, err := o.coordinator.Propose(ctx, current, req.Command, proposed)
	if err != nil {
		return nil, err
	}
	signed, err := handle.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return o.finalizer.Finalize(ctx, signed)
}

// load returns the local head after checking it against the ledger, or nil
// for an order that does not exist yet.
func (o *Orchestrator) load(ctx context.Context, req Request) (*order.Record, error) {
	orderID := req.OrderID
	if req.Command.Kind() == order.CommandCreate && orderID.Validate() != nil {
		return nil, nil
	}
	if err := orderID.Validate(); err != nil {
		return nil, errs.NewValueIsRequiredErrorWithCause("orderID", err)
	}

	current, err := o.uowFactory.Create().RecordRepository().Head(ctx, orderID)
	switch {
	case errors.Is(err, errs.ErrObjectNotFound):
		current = nil
	case err != nil:
		return nil, err
	}

	ledgerHead, err := o.ledger.Head(ctx, orderID)
	switch {
	case errors.Is(err, errs.ErrObjectNotFound):
		if current != nil {
			return nil, commit.NewConflictError(fmt.Errorf("%w: ledger has no order %s", ErrStaleHead, orderID))
		}
		return nil, nil
	case err != nil:
		return nil, commit.NewUnavailableError(err)
	case current == nil:
		if req.Command.Kind() == order.CommandCreate {
			return nil, o.violation(services.NewRuleViolationError(services.PreconditionFailed,
				"order %s already exists", orderID))
		}
		return nil, commit.NewConflictError(fmt.Errorf("%w: order %s is not stored locally", ErrStaleHead, orderID))
	case !ledgerHead.IsEqual(current.VersionRef()):
		o.logger.Warn("stale local head",
			zap.String("order_id", orderID.String()),
			zap.Stringer("local", current.VersionRef()),
			zap.Stringer("ledger", ledgerHead),
		)
		return nil, commit.NewConflictError(fmt.Errorf("%w: order %s", ErrStaleHead, orderID))
	}
	return current, nil
}

func (o *Orchestrator) build(current *order.Record, req Request) (*order.Record, error) {
	if req.Command.Kind() != order.CommandCreate {
		return o.rules.Apply(current, req.Command)
	}
	if current != nil {
		return nil, services.NewRuleViolationError(services.PreconditionFailed,
			"order %s already exists", current.OrderID())
	}
	orderID := req.OrderID
	if orderID.Validate() != nil {
		orderID = kernel.NewUUID()
	}
	rec, err := order.NewRecord(orderID, req.Terms, req.Parties)
	if err != nil {
		return nil, services.AsRuleViolation(err)
	}
	return rec, nil
}

func (o *Orchestrator) checkExpectedStatus(kind order.CommandKind, expected *order.Status) error {
	if expected == nil {
		return nil
	}
	target, err := o.rules.Target(kind)
	if err != nil {
		return err
	}
	if *expected != target {
		return services.NewRuleViolationError(services.StatusMismatch,
			"%s produces status %s, expected %s", kind, target, *expected)
	}
	return nil
}

func (o *Orchestrator) violation(err error) error {
	var violation *services.RuleViolationError
	if errors.As(err, &violation) {
		metrics.RuleViolationsTotal.WithLabelValues(violation.Kind.String()).Inc()
		o.logger.Info("transition refused", zap.Stringer("kind", violation.Kind), zap.String("reason", violation.Message))
	}
	return err
}
