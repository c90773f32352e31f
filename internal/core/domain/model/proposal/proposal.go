package proposal

import (
	"encoding/json"
	"errors"
	"fmt"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/pkg/errs"
)

var (
	// ErrProposalIsNotConstructed is returned when a Proposal was not created through New.
	ErrProposalIsNotConstructed = errors.New("Proposal must be created via New")

	// ErrSignatureInvalid reports a signature that does not verify against the signing payload.
	ErrSignatureInvalid = errors.New("signature is invalid")

	// ErrUnexpectedSigner reports a signature from a principal that is not a required signer.
	ErrUnexpectedSigner = errors.New("signer is not required")

	// ErrNotQuorate reports a quorum check with required signatures still missing.
	ErrNotQuorate = errors.New("required signatures are missing")
)

// VerifyFunc checks signature against payload for signer. It returns nil for
// a valid signature.
type VerifyFunc func(signer kernel.Principal, payload, signature []byte) error

// Proposal is one proposed transition of an order: the command, the version
// it consumes, the proposed record, and the signatures collected so far.
//
// A Proposal is owned by the single task driving it; it is not safe for
// concurrent mutation.
type Proposal struct {
	id         kernel.UUID
	command    order.Command
	consumed   *order.Record
	proposed   *order.Record
	required   []kernel.Principal
	signatures SignatureSet
	state      State
	reason     error
	committed  kernel.VersionRef
	payload    []byte

	isConstructed bool
}

// New drafts a proposal. consumed is nil for Create.
func New(cmd order.Command, consumed, proposed *order.Record, required []kernel.Principal) (*Proposal, error) {
	if err := errors.Join(cmd.Validate(), proposed.Validate()); err != nil {
		return nil, err
	}
	if len(required) == 0 {
		return nil, errs.NewValueIsRequiredError("required signers")
	}
	var consumedRef *kernel.VersionRef
	if consumed != nil {
		ref := consumed.VersionRef()
		consumedRef = &ref
	}
	return &Proposal{
		id:            kernel.NewUUID(),
		command:       cmd,
		consumed:      consumed,
		proposed:      proposed,
		required:      append([]kernel.Principal(nil), required...),
		signatures:    NewSignatureSet(),
		state:         Drafted,
		payload:       SigningPayload(cmd, consumedRef, proposed),
		isConstructed: true,
	}, nil
}

// SigningPayload is the exact byte string every required signer signs: the
// command with its issuer, the consumed reference and the proposed record's
// canonical payload. Binding the command keeps a signature given for one
// transition from being replayed for another.
func SigningPayload(cmd order.Command, consumed *kernel.VersionRef, proposed *order.Record) []byte {
	doc := struct {
		Command  string          `json:"command"`
		Issuer   string          `json:"issuer"`
		Consumed string          `json:"consumed"`
		Record   json.RawMessage `json:"record"`
	}{
		Command: cmd.Kind().String(),
		Issuer:  cmd.Issuer().Name(),
		Record:  proposed.Payload(),
	}
	if consumed != nil {
		doc.Consumed = consumed.String()
	}
	// A struct of strings and a valid JSON document always marshals.
	payload, _ := json.Marshal(doc)
	return payload
}

func (p *Proposal) Validate() error {
	if p == nil || !p.isConstructed {
		return ErrProposalIsNotConstructed
	}
	return nil
}

func (p *Proposal) ID() kernel.UUID {
	return p.id
}

func (p *Proposal) Command() order.Command {
	return p.command
}

// Consumed returns the record version the proposal consumes, nil for Create.
func (p *Proposal) Consumed() *order.Record {
	return p.consumed
}

// ConsumedRef returns the reference of the consumed version, nil for Create.
func (p *Proposal) ConsumedRef() *kernel.VersionRef {
	if p.consumed == nil {
		return nil
	}
	ref := p.consumed.VersionRef()
	return &ref
}

func (p *Proposal) Proposed() *order.Record {
	return p.proposed
}

func (p *Proposal) RequiredSigners() []kernel.Principal {
	return append([]kernel.Principal(nil), p.required...)
}

func (p *Proposal) Payload() []byte {
	return append([]byte(nil), p.payload...)
}

func (p *Proposal) State() State {
	return p.state
}

// Reason is the error that rejected the proposal, nil otherwise.
func (p *Proposal) Reason() error {
	return p.reason
}

// CommittedRef is the reference confirmed by the ledger once Committed.
func (p *Proposal) CommittedRef() kernel.VersionRef {
	return p.committed
}

// Signatures returns a copy of the collected signatures.
func (p *Proposal) Signatures() SignatureSet {
	return p.signatures.clone()
}

// IsRequired reports whether signer belongs to the quorum.
func (p *Proposal) IsRequired(signer kernel.Principal) bool {
	for _, r := range p.required {
		if r.IsEqual(signer) {
			return true
		}
	}
	return false
}

// Missing returns the required signers that have not signed yet.
func (p *Proposal) Missing() []kernel.Principal {
	return p.signatures.Missing(p.required)
}

// StartCollecting moves a drafted proposal to CollectingSignatures.
func (p *Proposal) StartCollecting() error {
	return p.moveTo(CollectingSignatures)
}

// AddSignature verifies sig against the signing payload and stores it. The
// initiator's own signature may be added while Drafted.
func (p *Proposal) AddSignature(sig Signature, verify VerifyFunc) error {
	if p.state != Drafted && p.state != CollectingSignatures {
		return errs.NewValueIsInvalidErrorWithCause(
			"proposal state",
			fmt.Errorf("cannot add signatures while %s", p.state),
		)
	}
	if !p.IsRequired(sig.Signer()) {
		return fmt.Errorf("%w: %s", ErrUnexpectedSigner, sig.Signer())
	}
	if err := verify(sig.Signer(), p.payload, sig.bytes); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSignatureInvalid, sig.Signer(), err)
	}
	p.signatures.Add(sig)
	return nil
}

// MarkQuorate re-verifies every stored signature and moves the proposal to
// Quorate when the set covers all required signers.
func (p *Proposal) MarkQuorate(verify VerifyFunc) error {
	if missing := p.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrNotQuorate, missing)
	}
	for _, signer := range p.required {
		sig, _ := p.signatures.Get(signer)
		if err := verify(signer, p.payload, sig.bytes); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrSignatureInvalid, signer, err)
		}
	}
	return p.moveTo(Quorate)
}

// BeginFinalizing moves a quorate proposal to Finalizing.
func (p *Proposal) BeginFinalizing() error {
	return p.moveTo(Finalizing)
}

// MarkCommitted records the reference the ledger confirmed.
func (p *Proposal) MarkCommitted(ref kernel.VersionRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if err := p.moveTo(Committed); err != nil {
		return err
	}
	p.committed = ref
	return nil
}

// Reject moves the proposal to Rejected and keeps the reason. Rejecting an
// already rejected proposal keeps the first reason.
func (p *Proposal) Reject(reason error) error {
	if p.state == Rejected {
		return nil
	}
	if err := p.moveTo(Rejected); err != nil {
		return err
	}
	p.reason = reason
	return nil
}

func (p *Proposal) moveTo(next State) error {
	state, err := p.state.transitionTo(next)
	if err != nil {
		return err
	}
	p.state = state
	return nil
}
