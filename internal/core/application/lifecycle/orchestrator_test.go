package lifecycle_test

import (
	"sync"
	"testing"
	"time"

	"orderchain/internal/adapters/out/keyring"
	"orderchain/internal/adapters/out/memory"
	"orderchain/internal/core/application/commit"
	"orderchain/internal/core/application/lifecycle"
	"orderchain/internal/core/application/peer"
	"orderchain/internal/core/application/quorum"
	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/core/domain/model/proposal"
	"orderchain/internal/core/domain/services"
	"orderchain/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	buyer   = kernel.MustPrincipal("O=Buyer,L=London")
	seller  = kernel.MustPrincipal("O=Seller,L=Paris")
	shipper = kernel.MustPrincipal("O=Shipper,L=Berlin")
)

// node is one participant: its own keys and vault, the shared ledger and network.
type node struct {
	principal    kernel.Principal
	vault        *memory.Vault
	coordinator  *quorum.Coordinator
	finalizer    *commit.FinalizationService
	orchestrator *lifecycle.Orchestrator
}

type cluster struct {
	ledger  *memory.Ledger
	network *memory.Network
	nodes   map[string]*node
}

func newCluster(t *testing.T) *cluster {
	t.Helper()
	c := &cluster{
		ledger:  memory.NewLedger(),
		network: memory.NewNetwork(),
		nodes:   map[string]*node{},
	}

	rings := map[string]*keyring.Keyring{}
	for _, p := range []kernel.Principal{buyer, seller, shipper} {
		k := keyring.New()
		require.NoError(t, k.Generate(p))
		rings[p.Name()] = k
	}
	for _, k := range rings {
		for _, other := range rings {
			k.Trust(other)
		}
	}

	for _, p := range []kernel.Principal{buyer, seller, shipper} {
		ring := rings[p.Name()]
		vault := memory.NewVault()
		acceptor, err := peer.NewAcceptor(ring, vault, nil)
		require.NoError(t, err)
		coordinator, err := quorum.NewCoordinator(ring, c.network, time.Second, nil)
		require.NoError(t, err)
		finalizer, err := commit.NewFinalizationService(c.ledger, vault, c.network, time.Second, nil)
		require.NoError(t, err)
		orchestrator, err := lifecycle.NewOrchestrator(vault, c.ledger, coordinator, finalizer, nil)
		require.NoError(t, err)

		c.network.Register(acceptor, p)
		c.nodes[p.Name()] = &node{
			principal:    p,
			vault:        vault,
			coordinator:  coordinator,
			finalizer:    finalizer,
			orchestrator: orchestrator,
		}
	}
	return c
}

func (c *cluster) node(p kernel.Principal) *node {
	return c.nodes[p.Name()]
}

func widgetTerms() order.Terms {
	return order.Terms{
		SKU:           "SKU1",
		ProductName:   "Widget",
		UnitPrice:     kernel.MoneyFromFloat(10.0),
		Quantity:      2,
		ShippingCost:  kernel.MoneyFromFloat(1.5),
		BuyerAddress:  "A",
		SellerAddress: "B",
	}
}

func command(t *testing.T, kind order.CommandKind, issuer kernel.Principal) order.Command {
	t.Helper()
	cmd, err := order.NewCommand(kind, issuer)
	require.NoError(t, err)
	return cmd
}

func (c *cluster) create(t *testing.T) *commit.FinalizedRecord {
	t.Helper()
	result, err := c.node(buyer).orchestrator.Execute(t.Context(), lifecycle.Request{
		Command: command(t, order.CommandCreate, buyer),
		Terms:   widgetTerms(),
		Parties: order.Parties{Buyer: buyer, Seller: seller, Shipper: shipper},
	})
	require.NoError(t, err)
	return result
}

func (c *cluster) advance(t *testing.T, orderID kernel.UUID, kind order.CommandKind, issuer kernel.Principal) (*commit.FinalizedRecord, error) {
	t.Helper()
	return c.node(issuer).orchestrator.Execute(t.Context(), lifecycle.Request{
		OrderID: orderID,
		Command: command(t, kind, issuer),
	})
}

func (c *cluster) head(t *testing.T, p kernel.Principal, orderID kernel.UUID) *order.Record {
	t.Helper()
	rec, err := c.node(p).vault.Create().RecordRepository().Head(t.Context(), orderID)
	require.NoError(t, err)
	return rec
}

func TestOrchestrator_Scenario1_Create(t *testing.T) {
	// Given
	c := newCluster(t)

	// When
	result := c.create(t)

	// Then
	rec := result.Record
	assert.Equal(t, order.Ordered, rec.Status())
	assert.Equal(t, uint64(0), rec.Version())
	assert.Nil(t, rec.PreviousRef())
	assert.Equal(t, buyer, rec.Owner())
	assert.Equal(t, "21.50", rec.Total().String())
	require.Len(t, result.Transaction.Signatures, 1, "creation is signed by the buyer alone")
	assert.Equal(t, buyer, result.Transaction.Signatures[0].Signer())

	for _, p := range []kernel.Principal{buyer, seller, shipper} {
		assert.True(t, c.head(t, p, rec.OrderID()).IsEqual(rec), "%s received the new order", p)
	}
}

func TestOrchestrator_Scenario2_Confirm(t *testing.T) {
	// Given
	c := newCluster(t)
	created := c.create(t)
	orderID := created.Record.OrderID()

	// When
	result, err := c.advance(t, orderID, order.CommandConfirm, seller)

	// Then
	require.NoError(t, err)
	assert.Equal(t, order.Confirmed, result.Record.Status())
	assert.Equal(t, uint64(1), result.Record.Version())
	require.NotNil(t, result.Transaction.ConsumedRef)
	assert.True(t, result.Transaction.ConsumedRef.IsEqual(created.CommittedRef))

	signers := proposal.NewSignatureSet(result.Transaction.Signatures...)
	assert.True(t, signers.Covers([]kernel.Principal{buyer, seller, shipper}))

	// The consumed version cannot be consumed again.
	replay := proposal.Transaction{
		Command:     result.Transaction.Command,
		ConsumedRef: result.Transaction.ConsumedRef,
		Record:      created.Record.Successor(order.Confirmed, buyer),
		Signatures:  result.Transaction.Signatures,
	}
	_, err = c.ledger.Submit(t.Context(), replay)
	require.Error(t, err)
	assert.Len(t, c.ledger.Committed(), 2)
}

func TestOrchestrator_Scenario3_SkippingStatusIsRefused(t *testing.T) {
	// Given
	c := newCluster(t)
	created := c.create(t)
	orderID := created.Record.OrderID()

	// When
	result, err := c.advance(t, orderID, order.CommandShip, shipper)

	// Then
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, services.ErrRuleViolation)
	assert.True(t, services.IsRuleViolation(err, services.StatusMismatch))
	assert.True(t, c.head(t, shipper, orderID).IsEqual(created.Record), "record unchanged")
	assert.Len(t, c.ledger.Committed(), 1)
}

func TestOrchestrator_Scenario4_ConfirmDeliveryByNonBuyer(t *testing.T) {
	// Given
	c := newCluster(t)
	orderID := c.create(t).Record.OrderID()
	for _, kind := range []order.CommandKind{
		order.CommandConfirm, order.CommandConfirmPickup, order.CommandShip, order.CommandDelivery,
	} {
		_, err := c.advance(t, orderID, kind, seller)
		require.NoError(t, err, kind.String())
	}
	delivered := c.head(t, seller, orderID)
	require.Equal(t, order.Delivered, delivered.Status())

	for _, issuer := range []kernel.Principal{seller, shipper} {
		// When
		_, err := c.advance(t, orderID, order.CommandConfirmDelivery, issuer)

		// Then
		require.Error(t, err)
		assert.True(t, services.IsRuleViolation(err, services.IdentityMismatch), issuer.String())
	}
	assert.True(t, c.head(t, buyer, orderID).IsEqual(delivered))
}

func TestOrchestrator_FullLifecycle(t *testing.T) {
	c := newCluster(t)
	orderID := c.create(t).Record.OrderID()

	steps := []struct {
		kind   order.CommandKind
		issuer kernel.Principal
		status order.Status
		owner  kernel.Principal
	}{
		{order.CommandConfirm, seller, order.Confirmed, buyer},
		{order.CommandConfirmPickup, seller, order.ReadyForPickup, buyer},
		{order.CommandShip, shipper, order.Shipped, shipper},
		{order.CommandDelivery, shipper, order.Delivered, shipper},
		{order.CommandConfirmDelivery, buyer, order.ConfirmedDelivery, buyer},
	}
	for i, step := range steps {
		result, err := c.advance(t, orderID, step.kind, step.issuer)
		require.NoError(t, err, step.kind.String())
		assert.Equal(t, step.status, result.Record.Status())
		assert.Equal(t, step.owner, result.Record.Owner())
		assert.Equal(t, uint64(i+1), result.Record.Version())
		require.NoError(t, order.CheckInvariants(result.Record))
	}

	for _, p := range []kernel.Principal{buyer, seller, shipper} {
		history, err := c.node(p).vault.Create().RecordRepository().History(t.Context(), orderID)
		require.NoError(t, err)
		assert.Len(t, history, len(steps)+1, p.String())
	}

	_, err := c.advance(t, orderID, order.CommandConfirm, buyer)
	assert.True(t, services.IsRuleViolation(err, services.StatusMismatch), "final status has no successor")
}

func TestOrchestrator_Create_Refusals(t *testing.T) {
	testCases := []struct {
		name    string
		issuer  kernel.Principal
		parties order.Parties
		kind    services.ViolationKind
	}{
		{
			name:    "buyer equals seller",
			issuer:  buyer,
			parties: order.Parties{Buyer: buyer, Seller: buyer, Shipper: shipper},
			kind:    services.InvariantBroken,
		},
		{
			name:    "buyer equals shipper",
			issuer:  buyer,
			parties: order.Parties{Buyer: buyer, Seller: seller, Shipper: buyer},
			kind:    services.InvariantBroken,
		},
		{
			name:    "issued by the seller",
			issuer:  seller,
			parties: order.Parties{Buyer: buyer, Seller: seller, Shipper: shipper},
			kind:    services.IdentityMismatch,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newCluster(t)
			_, err := c.node(tc.issuer).orchestrator.Execute(t.Context(), lifecycle.Request{
				Command: command(t, order.CommandCreate, tc.issuer),
				Terms:   widgetTerms(),
				Parties: tc.parties,
			})
			require.Error(t, err)
			assert.True(t, services.IsRuleViolation(err, tc.kind), err.Error())
			assert.Empty(t, c.ledger.Committed())
		})
	}
}

func TestOrchestrator_Create_Twice(t *testing.T) {
	c := newCluster(t)
	created := c.create(t)

	_, err := c.node(buyer).orchestrator.Execute(t.Context(), lifecycle.Request{
		OrderID: created.Record.OrderID(),
		Command: command(t, order.CommandCreate, buyer),
		Terms:   widgetTerms(),
		Parties: order.Parties{Buyer: buyer, Seller: seller, Shipper: shipper},
	})

	require.Error(t, err)
	assert.True(t, services.IsRuleViolation(err, services.PreconditionFailed))
}

func TestOrchestrator_ExpectedStatus(t *testing.T) {
	c := newCluster(t)
	orderID := c.create(t).Record.OrderID()

	wrong := order.Shipped
	_, err := c.node(seller).orchestrator.Execute(t.Context(), lifecycle.Request{
		OrderID:        orderID,
		Command:        command(t, order.CommandConfirm, seller),
		ExpectedStatus: &wrong,
	})
	assert.True(t, services.IsRuleViolation(err, services.StatusMismatch))

	right := order.Confirmed
	result, err := c.node(seller).orchestrator.Execute(t.Context(), lifecycle.Request{
		OrderID:        orderID,
		Command:        command(t, order.CommandConfirm, seller),
		ExpectedStatus: &right,
	})
	require.NoError(t, err)
	assert.Equal(t, order.Confirmed, result.Record.Status())
}

func TestOrchestrator_Advance_Validation(t *testing.T) {
	c := newCluster(t)

	_, err := c.node(seller).orchestrator.Execute(t.Context(), lifecycle.Request{
		Command: command(t, order.CommandConfirm, seller),
	})
	require.ErrorIs(t, err, errs.ErrValueIsRequired)

	_, err = c.node(seller).orchestrator.Execute(t.Context(), lifecycle.Request{OrderID: kernel.NewUUID()})
	require.ErrorIs(t, err, errs.ErrValueIsInvalid)

	_, err = c.advance(t, kernel.NewUUID(), order.CommandConfirm, seller)
	assert.True(t, services.IsRuleViolation(err, services.PreconditionFailed))
}

func TestOrchestrator_UnreachablePeerLeavesOrderUnchanged(t *testing.T) {
	// Given
	c := newCluster(t)
	created := c.create(t)
	c.network.SetReachable(shipper, false)

	// When
	_, err := c.advance(t, created.Record.OrderID(), order.CommandConfirm, seller)

	// Then
	require.Error(t, err)
	assert.True(t, quorum.IsKind(err, quorum.Unreachable))
	assert.Len(t, c.ledger.Committed(), 1)
	assert.True(t, c.head(t, seller, created.Record.OrderID()).IsEqual(created.Record))
}

func TestOrchestrator_StaleLocalHead(t *testing.T) {
	// Given: the shipper countersigns Confirm but misses its distribution.
	c := newCluster(t)
	orderID := c.create(t).Record.OrderID()
	sellerNode := c.node(seller)
	current := c.head(t, seller, orderID)
	h, err := sellerNode.coordinator.Propose(t.Context(), current, command(t, order.CommandConfirm, seller),
		current.Successor(order.Confirmed, buyer))
	require.NoError(t, err)
	signed, err := h.Collect(t.Context())
	require.NoError(t, err)

	c.network.SetReachable(shipper, false)
	_, err = sellerNode.finalizer.Finalize(t.Context(), signed)
	require.NoError(t, err)
	c.network.SetReachable(shipper, true)
	require.Equal(t, order.Ordered, c.head(t, shipper, orderID).Status())

	// When
	_, err = c.advance(t, orderID, order.CommandConfirmPickup, shipper)

	// Then
	require.Error(t, err)
	assert.True(t, commit.IsKind(err, commit.Conflict))
	assert.ErrorIs(t, err, lifecycle.ErrStaleHead)
	assert.Len(t, c.ledger.Committed(), 2)
}

func TestOrchestrator_CommitRace(t *testing.T) {
	// Given: two quorate proposals consuming the same version.
	c := newCluster(t)
	created := c.create(t)
	current := created.Record

	var proposals []*proposal.Proposal
	for _, issuer := range []kernel.Principal{seller, shipper} {
		n := c.node(issuer)
		h, err := n.coordinator.Propose(t.Context(), current, command(t, order.CommandConfirm, issuer),
			current.Successor(order.Confirmed, buyer))
		require.NoError(t, err)
		p, err := h.Collect(t.Context())
		require.NoError(t, err)
		proposals = append(proposals, p)
	}

	// When
	var (
		wg      sync.WaitGroup
		results = make([]error, len(proposals))
	)
	issuers := []kernel.Principal{seller, shipper}
	for i, p := range proposals {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = c.node(issuers[i]).finalizer.Finalize(t.Context(), p)
		}()
	}
	wg.Wait()

	// Then
	var committed, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			committed++
		case commit.IsKind(err, commit.Conflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, committed)
	assert.Equal(t, 1, conflicts)
	assert.Len(t, c.ledger.Committed(), 2)
}
