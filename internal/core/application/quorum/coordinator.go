// Package quorum drives signature collection for a proposed order transition.
package quorum

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/core/domain/model/proposal"
	"orderchain/internal/core/domain/services"
	"orderchain/internal/core/ports"
	"orderchain/internal/pkg/errs"
	"orderchain/internal/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds a collection when no timeout is configured.
const DefaultTimeout = 30 * time.Second

var errBadSignature = errors.New("signature does not verify")

// Coordinator drafts proposals and collects the countersignatures the
// transition table requires. It keeps no state between proposals; everything
// about one proposal lives in its Handle.
type Coordinator struct {
	rules     services.TransitionRules
	identity  ports.IdentityService
	messenger ports.PeerMessenger
	timeout   time.Duration
	logger    *zap.Logger
}

func NewCoordinator(
	identity ports.IdentityService,
	messenger ports.PeerMessenger,
	timeout time.Duration,
	logger *zap.Logger,
) (*Coordinator, error) {
	if identity == nil {
		return nil, errs.NewValueIsRequiredError("identity")
	}
	if messenger == nil {
		return nil, errs.NewValueIsRequiredError("messenger")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		rules:     services.NewTransitionRules(),
		identity:  identity,
		messenger: messenger,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

// Handle is one proposal under collection.
type Handle struct {
	c        *Coordinator
	proposal *proposal.Proposal
}

func (h *Handle) Proposal() *proposal.Proposal {
	return h.proposal
}

// Propose drafts a proposal for a transition the rule engine already accepted
// and adds the initiator's signature. The issuer of cmd must be hosted by
// this node.
func (c *Coordinator) Propose(
	ctx context.Context,
	current *order.Record,
	cmd order.Command,
	proposed *order.Record,
) (*Handle, error) {
	required, err := c.rules.RequiredSigners(cmd.Kind(), proposed)
	if err != nil {
		return nil, err
	}
	p, err := proposal.New(cmd, current, proposed, required)
	if err != nil {
		return nil, err
	}

	raw, err := c.identity.Sign(ctx, cmd.Issuer(), p.Payload())
	if err != nil {
		return nil, errs.NewValueIsInvalidErrorWithCause("issuer", err)
	}
	sig, err := proposal.NewSignature(cmd.Issuer(), raw)
	if err != nil {
		return nil, err
	}
	if err = p.AddSignature(sig, c.verifier(ctx)); err != nil {
		return nil, newError(SignatureInvalid, cmd.Issuer(), err)
	}

	c.logger.Debug("proposal drafted",
		zap.String("proposal_id", p.ID().String()),
		zap.String("order_id", proposed.OrderID().String()),
		zap.Stringer("command", cmd.Kind()),
		zap.Int("required_signers", len(required)),
	)
	return &Handle{c: c, proposal: p}, nil
}

// Collect gathers the missing signatures and returns the proposal once it is
// Quorate. Principals hosted by this node sign directly; every other signer
// is asked through the peer messenger, in parallel, within the configured
// timeout. The first rejection, unreachable peer or invalid signature ends
// the collection and moves the proposal to Rejected with a *QuorumError.
// Nothing is retried.
func (h *Handle) Collect(ctx context.Context) (*proposal.Proposal, error) {
	p, c := h.proposal, h.c
	started := time.Now()
	defer func() { metrics.QuorumDurationSeconds.Observe(time.Since(started).Seconds()) }()

	if err := p.StartCollecting(); err != nil {
		return nil, err
	}

	var remote []kernel.Principal
	for _, signer := range p.Missing() {
		if !c.identity.Hosts(signer) {
			remote = append(remote, signer)
			continue
		}
		if err := h.signLocally(ctx, signer); err != nil {
			return nil, h.fail(err)
		}
	}

	if err := h.collectRemote(ctx, remote); err != nil {
		return nil, h.fail(err)
	}

	if err := p.MarkQuorate(c.verifier(ctx)); err != nil {
		return nil, h.fail(newError(SignatureInvalid, kernel.Principal{}, err))
	}
	c.logger.Info("proposal quorate",
		zap.String("proposal_id", p.ID().String()),
		zap.Stringer("command", p.Command().Kind()),
		zap.Duration("elapsed", time.Since(started)),
	)
	return p, nil
}

func (h *Handle) signLocally(ctx context.Context, signer kernel.Principal) error {
	raw, err := h.c.identity.Sign(ctx, signer, h.proposal.Payload())
	if err != nil {
		return newError(SignatureInvalid, signer, err)
	}
	sig, err := proposal.NewSignature(signer, raw)
	if err != nil {
		return newError(SignatureInvalid, signer, err)
	}
	if err = h.proposal.AddSignature(sig, h.c.verifier(ctx)); err != nil {
		return newError(SignatureInvalid, signer, err)
	}
	return nil
}

func (h *Handle) collectRemote(ctx context.Context, signers []kernel.Principal) error {
	if len(signers) == 0 {
		return nil
	}
	collectCtx, cancel := context.WithTimeout(ctx, h.c.timeout)
	defer cancel()

	replies := make([]proposal.Reply, len(signers))
	g, gctx := errgroup.WithContext(collectCtx)
	for i, signer := range signers {
		req := h.proposal.Request(signer)
		g.Go(func() error {
			reply, err := h.c.messenger.SendProposal(gctx, signer, req)
			if err != nil {
				return classify(collectCtx, signer, err)
			}
			if reply.Rejected {
				return newError(Rejected, signer, errors.New(reply.Reason))
			}
			replies[i] = reply
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	verify := h.c.verifier(ctx)
	for i, signer := range signers {
		if err := h.accept(signer, replies[i], verify); err != nil {
			return err
		}
	}
	return nil
}

// accept checks that the reply carries signer's signature and adds it.
func (h *Handle) accept(signer kernel.Principal, reply proposal.Reply, verify proposal.VerifyFunc) error {
	if reply.Signature == nil {
		return newError(SignatureInvalid, signer, errors.New("reply carries no signature"))
	}
	sig, err := reply.Signature.Signature()
	if err != nil {
		return newError(SignatureInvalid, signer, err)
	}
	if !sig.Signer().IsEqual(signer) {
		return newError(SignatureInvalid, signer, fmt.Errorf("reply signed by %s", sig.Signer()))
	}
	if err = h.proposal.AddSignature(sig, verify); err != nil {
		return newError(SignatureInvalid, signer, err)
	}
	return nil
}

func (h *Handle) fail(err error) error {
	var qe *QuorumError
	if !errors.As(err, &qe) {
		qe = newError(SignatureInvalid, kernel.Principal{}, err)
	}
	_ = h.proposal.Reject(qe)
	metrics.QuorumFailuresTotal.WithLabelValues(qe.Kind.String()).Inc()
	h.c.logger.Warn("proposal rejected",
		zap.String("proposal_id", h.proposal.ID().String()),
		zap.Stringer("command", h.proposal.Command().Kind()),
		zap.Stringer("kind", qe.Kind),
		zap.Error(qe.Cause),
	)
	return qe
}

func classify(collectCtx context.Context, signer kernel.Principal, err error) *QuorumError {
	switch {
	case errors.Is(collectCtx.Err(), context.DeadlineExceeded):
		return newError(Timeout, signer, err)
	case errors.Is(collectCtx.Err(), context.Canceled):
		return newError(Cancelled, signer, err)
	default:
		return newError(Unreachable, signer, err)
	}
}

func (c *Coordinator) verifier(ctx context.Context) proposal.VerifyFunc {
	return func(signer kernel.Principal, payload, signature []byte) error {
		ok, err := c.identity.Verify(ctx, signer, payload, signature)
		if err != nil {
			return err
		}
		if !ok {
			return errBadSignature
		}
		return nil
	}
}
