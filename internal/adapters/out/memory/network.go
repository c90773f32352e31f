package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/proposal"
	"orderchain/internal/core/ports"
)

var (
	_ ports.PeerMessenger = (*Network)(nil)
	_ ports.Distributor   = (*Network)(nil)
)

// Node is what a participant exposes to the network.
type Node interface {
	ports.ProposalReviewer
	ports.TransactionApplier
}

// Network routes proposals and finalized transactions between in-process
// nodes by principal name.
type Network struct {
	mu    sync.RWMutex
	nodes map[string]Node
	down  map[string]bool
}

func NewNetwork() *Network {
	return &Network{nodes: make(map[string]Node), down: make(map[string]bool)}
}

// Register makes node reachable under every principal it hosts.
func (n *Network) Register(node Node, principals ...kernel.Principal) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, p := range principals {
		n.nodes[p.Name()] = node
	}
}

// SetReachable simulates a partition of the node hosting p.
func (n *Network) SetReachable(p kernel.Principal, reachable bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.down[p.Name()] = !reachable
}

func (n *Network) lookup(p kernel.Principal) (Node, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	node, ok := n.nodes[p.Name()]
	if !ok || n.down[p.Name()] {
		return nil, fmt.Errorf("%w: %s", ports.ErrPeerUnreachable, p)
	}
	return node, nil
}

func (n *Network) SendProposal(ctx context.Context, peer kernel.Principal, req proposal.Request) (proposal.Reply, error) {
	node, err := n.lookup(peer)
	if err != nil {
		return proposal.Reply{}, err
	}

	done := make(chan proposal.Reply, 1)
	go func() { done <- node.Review(ctx, req) }()
	select {
	case reply := <-done:
		return reply, nil
	case <-ctx.Done():
		return proposal.Reply{}, ctx.Err()
	}
}

// Distribute applies tx once on every node hosting a recipient.
func (n *Network) Distribute(ctx context.Context, tx proposal.Transaction, recipients []kernel.Principal) error {
	seen := make(map[Node]bool, len(recipients))
	var errList []error
	for _, p := range recipients {
		node, err := n.lookup(p)
		if err != nil {
			errList = append(errList, err)
			continue
		}
		if seen[node] {
			continue
		}
		seen[node] = true
		if err = node.Apply(ctx, tx); err != nil {
			errList = append(errList, fmt.Errorf("%s: %w", p, err))
		}
	}
	return errors.Join(errList...)
}
