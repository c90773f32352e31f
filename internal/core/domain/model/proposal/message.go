package proposal

import (
	"errors"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/pkg/errs"
)

// Request asks one participant to countersign a proposal.
type Request struct {
	ProposalID  string          `json:"proposal_id"`
	Recipient   string          `json:"recipient"`
	Command     string          `json:"command"`
	Issuer      string          `json:"issuer"`
	ConsumedRef string          `json:"consumed_ref,omitempty"`
	Proposed    order.Snapshot  `json:"proposed"`
	Signatures  []WireSignature `json:"signatures"`
}

// Reply carries either a countersignature or a rejection.
type Reply struct {
	ProposalID string         `json:"proposal_id"`
	Signature  *WireSignature `json:"signature,omitempty"`
	Rejected   bool           `json:"rejected"`
	Reason     string         `json:"reason,omitempty"`
}

// Request builds the countersigning request for recipient with the
// signatures collected so far.
func (p *Proposal) Request(recipient kernel.Principal) Request {
	req := Request{
		ProposalID: p.id.String(),
		Recipient:  recipient.Name(),
		Command:    p.command.Kind().String(),
		Issuer:     p.command.Issuer().Name(),
		Proposed:   p.proposed.Snapshot(),
		Signatures: WireSignatures(p.signatures.All()),
	}
	if ref := p.ConsumedRef(); ref != nil {
		req.ConsumedRef = ref.String()
	}
	return req
}

// Incoming is a parsed Request as seen by the countersigning participant.
type Incoming struct {
	ProposalID  kernel.UUID
	Recipient   kernel.Principal
	Command     order.Command
	ConsumedRef *kernel.VersionRef
	Proposed    *order.Record
	Signatures  []Signature
}

// Payload is the signing payload recomputed from the request content.
func (in Incoming) Payload() []byte {
	return SigningPayload(in.Command, in.ConsumedRef, in.Proposed)
}

// ParseRequest validates the shape of a request. It does not judge the
// transition; the receiver runs the rule engine on its own current record.
func ParseRequest(req Request) (Incoming, error) {
	id, idErr := kernel.UUIDFromString(req.ProposalID)
	recipient, recipientErr := kernel.NewPrincipal(req.Recipient)
	kind, kindErr := order.ParseCommandKind(req.Command)
	issuer, issuerErr := kernel.NewPrincipal(req.Issuer)
	proposed, recordErr := order.RestoreRecord(req.Proposed)
	sigs, sigErr := ParseWireSignatures(req.Signatures)
	if err := errors.Join(idErr, recipientErr, kindErr, issuerErr, recordErr, sigErr); err != nil {
		return Incoming{}, err
	}

	cmd, err := order.NewCommand(kind, issuer)
	if err != nil {
		return Incoming{}, err
	}

	in := Incoming{
		ProposalID: id,
		Recipient:  recipient,
		Command:    cmd,
		Proposed:   proposed,
		Signatures: sigs,
	}
	if req.ConsumedRef != "" {
		ref, refErr := kernel.VersionRefFromString(req.ConsumedRef)
		if refErr != nil {
			return Incoming{}, errs.NewValueIsInvalidErrorWithCause("consumed_ref", refErr)
		}
		in.ConsumedRef = &ref
	}
	return in, nil
}

// Signed builds the reply carrying sig.
func Signed(proposalID kernel.UUID, sig Signature) Reply {
	wire := sig.Wire()
	return Reply{ProposalID: proposalID.String(), Signature: &wire}
}

// Refused builds a rejection reply.
func Refused(proposalID kernel.UUID, reason error) Reply {
	return Reply{ProposalID: proposalID.String(), Rejected: true, Reason: reason.Error()}
}
