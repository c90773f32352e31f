package commands

import (
	"context"

	"orderchain/internal/core/application/commit"
	"orderchain/internal/core/application/lifecycle"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/pkg/errs"
)

// CreateOrderCommandHandler opens an order: the buyer is both the issuer and
// the only required signer of version 0.
type CreateOrderCommandHandler struct {
	executor OrderExecutor
}

func NewCreateOrderCommandHandler(executor OrderExecutor) (CreateOrderCommandHandler, error) {
	if executor == nil {
		return CreateOrderCommandHandler{}, errs.NewValueIsRequiredError("executor")
	}
	return CreateOrderCommandHandler{executor: executor}, nil
}

// Handle returns the committed version 0 of the order.
func (h CreateOrderCommandHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (*commit.FinalizedRecord, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	command, err := order.NewCommand(order.CommandCreate, cmd.Buyer())
	if err != nil {
		return nil, err
	}

	return h.executor.Execute(ctx, lifecycle.Request{
		OrderID: cmd.OrderID(),
		Command: command,
		Terms:   cmd.Terms(),
		Parties: order.Parties{
			Buyer:   cmd.Buyer(),
			Seller:  cmd.Seller(),
			Shipper: cmd.Shipper(),
		},
	})
}
