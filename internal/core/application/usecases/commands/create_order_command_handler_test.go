package commands_test

import (
	"errors"
	"testing"

	"orderchain/internal/core/application/commit"
	"orderchain/internal/core/application/lifecycle"
	"orderchain/internal/core/application/usecases/commands"
	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateOrderCommandHandler_Handle_Success(t *testing.T) {
	// Given
	ctx := t.Context()
	orderID := kernel.NewUUID()
	cmd, err := commands.NewCreateOrderCommand(orderID, buyer, testTerms(), seller, shipper)
	require.NoError(t, err)

	rec, err := order.NewRecord(orderID, testTerms(), order.Parties{Buyer: buyer, Seller: seller, Shipper: shipper})
	require.NoError(t, err)
	finalized := &commit.FinalizedRecord{Record: rec, CommittedRef: rec.VersionRef()}

	executor := new(MockOrderExecutor)
	executor.On("Execute", ctx, mock.MatchedBy(func(req lifecycle.Request) bool {
		return req.OrderID.IsEqual(orderID) &&
			req.Command.Kind() == order.CommandCreate &&
			req.Command.Issuer().IsEqual(buyer) &&
			req.Parties.Buyer.IsEqual(buyer) &&
			req.Parties.Seller.IsEqual(seller) &&
			req.Parties.Shipper.IsEqual(shipper) &&
			req.Terms.SKU == "SKU-1" &&
			req.ExpectedStatus == nil
	})).Return(finalized, nil).Once()

	h, err := commands.NewCreateOrderCommandHandler(executor)
	require.NoError(t, err)

	// When
	result, err := h.Handle(ctx, cmd)

	// Then
	require.NoError(t, err)
	assert.Same(t, finalized, result)
	executor.AssertExpectations(t)
}

func TestCreateOrderCommandHandler_Handle_ValidationError(t *testing.T) {
	executor := new(MockOrderExecutor)
	h, err := commands.NewCreateOrderCommandHandler(executor)
	require.NoError(t, err)

	_, err = h.Handle(t.Context(), commands.CreateOrderCommand{})

	require.ErrorIs(t, err, commands.ErrCreateOrderCommandIsNotConstructed)
	executor.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestCreateOrderCommandHandler_Handle_ExecutorError(t *testing.T) {
	ctx := t.Context()
	cmd, err := commands.NewCreateOrderCommand(kernel.UUID{}, buyer, testTerms(), seller, shipper)
	require.NoError(t, err)

	failure := errors.New("ledger unavailable")
	executor := new(MockOrderExecutor)
	executor.On("Execute", ctx, mock.Anything).Return(nil, failure).Once()

	h, err := commands.NewCreateOrderCommandHandler(executor)
	require.NoError(t, err)

	result, err := h.Handle(ctx, cmd)

	require.ErrorIs(t, err, failure)
	assert.Nil(t, result)
	executor.AssertExpectations(t)
}

func TestNewCreateOrderCommandHandler_RequiresExecutor(t *testing.T) {
	_, err := commands.NewCreateOrderCommandHandler(nil)

	require.Error(t, err)
}
