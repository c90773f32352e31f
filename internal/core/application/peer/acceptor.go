// Package peer is the participant side of the protocol: it reviews
// countersigning requests and stores finalized transactions.
package peer

import (
	"context"
	"errors"
	"fmt"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/core/domain/model/proposal"
	"orderchain/internal/core/domain/services"
	"orderchain/internal/core/ports"
	"orderchain/internal/pkg/errs"
	"orderchain/internal/pkg/metrics"

	"go.uber.org/zap"
)

var (
	// ErrNotHosted is returned when a request addresses a principal this node does not host.
	ErrNotHosted = errors.New("principal is not hosted by this node")
	// ErrStaleProposal is returned when the proposal consumes a version other
	// than the local head.
	ErrStaleProposal = errors.New("proposal does not consume the current version")
	// ErrForked is returned when a transaction competes with a different
	// version already stored for the same position.
	ErrForked = errors.New("a different version is already stored")
	// ErrNotNotarized is returned when a transaction skipping local versions
	// is absent from the ledger's history of the order.
	ErrNotNotarized = errors.New("transaction is not on the ledger")

	errBadSignature = errors.New("signature does not verify")
)

var (
	_ ports.ProposalReviewer   = (*Acceptor)(nil)
	_ ports.TransactionApplier = (*Acceptor)(nil)
)

// Acceptor judges every proposal against this node's own view of the order.
// It never trusts the initiator: the rule engine runs again on the locally
// stored head and every signature is verified before anything is signed or
// stored.
type Acceptor struct {
	rules      services.TransitionRules
	identity   ports.IdentityService
	uowFactory ports.UnitOfWorkFactory
	history    ports.LedgerHistory
	logger     *zap.Logger
}

type AcceptorOption func(*Acceptor)

// WithLedgerHistory makes Apply look up every transaction that skips local
// versions in the ledger before storing it.
func WithLedgerHistory(history ports.LedgerHistory) AcceptorOption {
	return func(a *Acceptor) {
		a.history = history
	}
}

func NewAcceptor(
	identity ports.IdentityService, uowFactory ports.UnitOfWorkFactory, logger *zap.Logger, opts ...AcceptorOption,
) (*Acceptor, error) {
	if identity == nil {
		return nil, errs.NewValueIsRequiredError("identity")
	}
	if uowFactory == nil {
		return nil, errs.NewValueIsRequiredError("uowFactory")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Acceptor{
		rules:      services.NewTransitionRules(),
		identity:   identity,
		uowFactory: uowFactory,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Review countersigns req on behalf of its recipient, or refuses it with a
// reason. It never returns an error: refusals travel back in the Reply.
func (a *Acceptor) Review(ctx context.Context, req proposal.Request) proposal.Reply {
	in, err := proposal.ParseRequest(req)
	if err != nil {
		return a.refuse(req.ProposalID, req.Command, err)
	}
	if err = a.check(ctx, in); err != nil {
		return a.refuse(req.ProposalID, req.Command, err)
	}

	raw, err := a.identity.Sign(ctx, in.Recipient, in.Payload())
	if err != nil {
		return a.refuse(req.ProposalID, req.Command, err)
	}
	sig, err := proposal.NewSignature(in.Recipient, raw)
	if err != nil {
		return a.refuse(req.ProposalID, req.Command, err)
	}

	metrics.CountersignaturesTotal.WithLabelValues("signed").Inc()
	a.logger.Info("proposal countersigned",
		zap.String("proposal_id", req.ProposalID),
		zap.String("order_id", in.Proposed.OrderID().String()),
		zap.Stringer("command", in.Command.Kind()),
		zap.Stringer("signer", in.Recipient),
	)
	return proposal.Signed(in.ProposalID, sig)
}

func (a *Acceptor) check(ctx context.Context, in proposal.Incoming) error {
	if !a.identity.Hosts(in.Recipient) {
		return fmt.Errorf("%w: %s", ErrNotHosted, in.Recipient)
	}

	current, err := a.head(ctx, in.Proposed.OrderID())
	if err != nil {
		return err
	}
	if !consumes(in.ConsumedRef, current) {
		return ErrStaleProposal
	}

	if err = a.rules.Validate(current, in.Command, in.Proposed); err != nil {
		return err
	}

	required, err := a.rules.RequiredSigners(in.Command.Kind(), in.Proposed)
	if err != nil {
		return err
	}
	if !contains(required, in.Recipient) {
		return fmt.Errorf("%w: %s", proposal.ErrUnexpectedSigner, in.Recipient)
	}

	payload := in.Payload()
	verify := a.verifier(ctx)
	issuerSigned := false
	for _, sig := range in.Signatures {
		if !contains(required, sig.Signer()) {
			return fmt.Errorf("%w: %s", proposal.ErrUnexpectedSigner, sig.Signer())
		}
		if err = verify(sig.Signer(), payload, sig.Bytes()); err != nil {
			return fmt.Errorf("%w: %s: %w", proposal.ErrSignatureInvalid, sig.Signer(), err)
		}
		if sig.Signer().IsEqual(in.Command.Issuer()) {
			issuerSigned = true
		}
	}
	if !issuerSigned {
		return fmt.Errorf("%w: issuer %s has not signed", proposal.ErrSignatureInvalid, in.Command.Issuer())
	}
	return nil
}

// Apply stores a finalized transaction distributed by another node. Already
// stored versions are accepted silently.
func (a *Acceptor) Apply(ctx context.Context, tx proposal.Transaction) error {
	if err := tx.Command.Validate(); err != nil {
		return err
	}
	if err := tx.Record.Validate(); err != nil {
		return err
	}
	if err := order.CheckInvariants(tx.Record); err != nil {
		return err
	}
	if !a.hostsParticipant(tx.Record) {
		return fmt.Errorf("%w: no party of order %s", ErrNotHosted, tx.Record.OrderID())
	}

	required, err := a.rules.RequiredSigners(tx.Command.Kind(), tx.Record)
	if err != nil {
		return err
	}
	if err = tx.Verify(required, a.verifier(ctx)); err != nil {
		return err
	}

	log := a.logger.With(
		zap.String("order_id", tx.Record.OrderID().String()),
		zap.Uint64("version", tx.Record.Version()),
		zap.Stringer("version_ref", tx.Record.VersionRef()),
	)

	current, err := a.head(ctx, tx.Record.OrderID())
	if err != nil {
		return err
	}
	switch {
	case current == nil && tx.ConsumedRef != nil,
		current != nil && current.Version()+1 < tx.Record.Version():
		if err = a.checkGap(ctx, current, tx); err != nil {
			return err
		}
		// The missing versions are replayed by the head audit.
		log.Warn("applying transaction over a gap in the local history")
	case current != nil && current.VersionRef().IsEqual(tx.Record.VersionRef()):
		log.Debug("transaction already stored")
		return nil
	case current != nil && current.Version() >= tx.Record.Version():
		if current.Version() == tx.Record.Version() {
			return fmt.Errorf("%w: order %s version %d", ErrForked, tx.Record.OrderID(), tx.Record.Version())
		}
		log.Debug("transaction already superseded")
		return nil
	default:
		if !consumes(tx.ConsumedRef, current) {
			return ErrStaleProposal
		}
		if err = a.rules.Validate(current, tx.Command, tx.Record); err != nil {
			return err
		}
	}

	uow := a.uowFactory.Create()
	if err = uow.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()
	if err = uow.RecordRepository().Append(ctx, tx); err != nil {
		return err
	}
	if err = uow.Commit(ctx); err != nil {
		return err
	}
	log.Info("transaction applied", zap.Stringer("status", tx.Record.Status()))
	return nil
}

// checkGap judges a transaction whose predecessor is not stored here. The
// record must be a legal output of its command on its own, and when a
// history is configured the ledger must have notarized it.
func (a *Acceptor) checkGap(ctx context.Context, known *order.Record, tx proposal.Transaction) error {
	prev := tx.Record.PreviousRef()
	if tx.ConsumedRef == nil || prev == nil || !tx.ConsumedRef.IsEqual(*prev) {
		return fmt.Errorf("%w: consumed reference is not the predecessor of version %d",
			ErrStaleProposal, tx.Record.Version())
	}
	if err := a.rules.ValidateAcrossGap(known, tx.Command, tx.Record); err != nil {
		return err
	}
	if a.history == nil {
		return nil
	}

	notarized, err := a.history.Transactions(ctx, tx.Record.OrderID())
	if err != nil {
		return err
	}
	for _, candidate := range notarized {
		if candidate.Record.VersionRef().IsEqual(tx.Record.VersionRef()) &&
			candidate.Command.Kind() == tx.Command.Kind() {
			return nil
		}
	}
	return fmt.Errorf("%w: order %s version %s", ErrNotNotarized, tx.Record.OrderID(), tx.Record.VersionRef())
}

// head returns the locally stored head, or nil when the order is unknown.
func (a *Acceptor) head(ctx context.Context, orderID kernel.UUID) (*order.Record, error) {
	current, err := a.uowFactory.Create().RecordRepository().Head(ctx, orderID)
	if errors.Is(err, errs.ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return current, nil
}

func (a *Acceptor) hostsParticipant(rec *order.Record) bool {
	for _, p := range rec.Participants() {
		if a.identity.Hosts(p) {
			return true
		}
	}
	return false
}

func (a *Acceptor) refuse(proposalID, command string, reason error) proposal.Reply {
	metrics.CountersignaturesTotal.WithLabelValues("refused").Inc()
	a.logger.Warn("proposal refused",
		zap.String("proposal_id", proposalID),
		zap.String("command", command),
		zap.Error(reason),
	)
	return proposal.Reply{ProposalID: proposalID, Rejected: true, Reason: reason.Error()}
}

func (a *Acceptor) verifier(ctx context.Context) proposal.VerifyFunc {
	return func(signer kernel.Principal, payload, signature []byte) error {
		ok, err := a.identity.Verify(ctx, signer, payload, signature)
		if err != nil {
			return err
		}
		if !ok {
			return errBadSignature
		}
		return nil
	}
}

// consumes reports whether ref names current (both absent for a new order).
func consumes(ref *kernel.VersionRef, current *order.Record) bool {
	if current == nil {
		return ref == nil
	}
	return ref != nil && ref.IsEqual(current.VersionRef())
}

func contains(list []kernel.Principal, p kernel.Principal) bool {
	for _, candidate := range list {
		if candidate.IsEqual(p) {
			return true
		}
	}
	return false
}
