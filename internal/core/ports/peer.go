package ports

import (
	"context"
	"errors"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/proposal"
)

// ErrPeerUnreachable is returned when a proposal cannot be delivered.
var ErrPeerUnreachable = errors.New("peer unreachable")

// PeerMessenger delivers countersigning requests to the node hosting a principal.
type PeerMessenger interface {
	// SendProposal returns the peer's signature or rejection, or an error
	// wrapping ErrPeerUnreachable.
	SendProposal(ctx context.Context, peer kernel.Principal, req proposal.Request) (proposal.Reply, error)
}

// ProposalReviewer is the receiving side of PeerMessenger.
type ProposalReviewer interface {
	Review(ctx context.Context, req proposal.Request) proposal.Reply
}
