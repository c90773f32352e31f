// Package kafka distributes finalized transactions to the participants of an
// order and applies the ones addressed to principals hosted by this node.
package kafka

import (
	"encoding/json"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/proposal"
	"orderchain/internal/pkg/errs"
)

// Envelope is the message value: one finalized transaction and the
// principals it is addressed to.
type Envelope struct {
	Recipients  []string                 `json:"recipients"`
	Transaction proposal.WireTransaction `json:"transaction"`
}

func encode(tx proposal.Transaction, recipients []kernel.Principal) ([]byte, error) {
	env := Envelope{Recipients: make([]string, 0, len(recipients)), Transaction: tx.Wire()}
	for _, r := range recipients {
		env.Recipients = append(env.Recipients, r.Name())
	}
	return json.Marshal(env)
}

func decode(value []byte) ([]kernel.Principal, proposal.Transaction, error) {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return nil, proposal.Transaction{}, errs.NewValueIsInvalidErrorWithCause("envelope", err)
	}

	recipients := make([]kernel.Principal, 0, len(env.Recipients))
	for _, name := range env.Recipients {
		p, err := kernel.NewPrincipal(name)
		if err != nil {
			return nil, proposal.Transaction{}, err
		}
		recipients = append(recipients, p)
	}

	tx, err := proposal.ParseTransaction(env.Transaction)
	if err != nil {
		return nil, proposal.Transaction{}, err
	}
	return recipients, tx, nil
}
