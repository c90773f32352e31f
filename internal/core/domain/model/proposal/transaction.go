package proposal

import (
	"errors"
	"fmt"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/pkg/errs"
)

// Transaction is a fully signed transition: the command, the version it
// consumes, the produced record and the quorum signatures over the signing
// payload. It is what the ledger notarizes and what every participant stores.
type Transaction struct {
	Command     order.Command
	ConsumedRef *kernel.VersionRef
	Record      *order.Record
	Signatures  []Signature
}

// Transaction returns the signed transition of a quorate (or later) proposal.
func (p *Proposal) Transaction() (Transaction, error) {
	switch p.state {
	case Quorate, Finalizing, Committed:
	case Unknown, Drafted, CollectingSignatures, Rejected:
		return Transaction{}, errs.NewValueIsInvalidErrorWithCause(
			"proposal state",
			fmt.Errorf("%s proposals carry no signed transaction", p.state),
		)
	}
	return Transaction{
		Command:     p.command,
		ConsumedRef: p.ConsumedRef(),
		Record:      p.proposed,
		Signatures:  p.signatures.All(),
	}, nil
}

// Payload recomputes the signing payload.
func (t Transaction) Payload() []byte {
	return SigningPayload(t.Command, t.ConsumedRef, t.Record)
}

// Verify checks that every required signer signed the payload. Signatures
// from principals outside required are ignored.
func (t Transaction) Verify(required []kernel.Principal, verify VerifyFunc) error {
	set := NewSignatureSet(t.Signatures...)
	if missing := set.Missing(required); len(missing) > 0 || len(required) == 0 {
		return fmt.Errorf("%w: %v", ErrNotQuorate, missing)
	}
	payload := t.Payload()
	for _, signer := range required {
		sig, _ := set.Get(signer)
		if err := verify(signer, payload, sig.bytes); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrSignatureInvalid, signer, err)
		}
	}
	return nil
}

// WireTransaction is the transport and storage form of a Transaction.
type WireTransaction struct {
	Command     string          `json:"command"`
	Issuer      string          `json:"issuer"`
	ConsumedRef string          `json:"consumed_ref,omitempty"`
	Record      order.Snapshot  `json:"record"`
	Signatures  []WireSignature `json:"signatures"`
}

func (t Transaction) Wire() WireTransaction {
	w := WireTransaction{
		Command:    t.Command.Kind().String(),
		Issuer:     t.Command.Issuer().Name(),
		Record:     t.Record.Snapshot(),
		Signatures: WireSignatures(t.Signatures),
	}
	if t.ConsumedRef != nil {
		w.ConsumedRef = t.ConsumedRef.String()
	}
	return w
}

// ParseTransaction rebuilds a Transaction. The record reference is checked
// against its content; signatures are not verified here.
func ParseTransaction(w WireTransaction) (Transaction, error) {
	kind, kindErr := order.ParseCommandKind(w.Command)
	issuer, issuerErr := kernel.NewPrincipal(w.Issuer)
	rec, recordErr := order.RestoreRecord(w.Record)
	sigs, sigErr := ParseWireSignatures(w.Signatures)
	if err := errors.Join(kindErr, issuerErr, recordErr, sigErr); err != nil {
		return Transaction{}, err
	}
	cmd, err := order.NewCommand(kind, issuer)
	if err != nil {
		return Transaction{}, err
	}
	tx := Transaction{Command: cmd, Record: rec, Signatures: sigs}
	if w.ConsumedRef != "" {
		ref, refErr := kernel.VersionRefFromString(w.ConsumedRef)
		if refErr != nil {
			return Transaction{}, errs.NewValueIsInvalidErrorWithCause("consumed_ref", refErr)
		}
		tx.ConsumedRef = &ref
	}
	return tx, nil
}
