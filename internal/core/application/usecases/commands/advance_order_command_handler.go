package commands

import (
	"context"

	"orderchain/internal/core/application/commit"
	"orderchain/internal/core/application/lifecycle"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/pkg/errs"
)

// AdvanceOrderCommandHandler is the single entry point for Confirm,
// ConfirmPickup, Ship, Delivery and ConfirmDelivery. The transition table
// decides what each of them requires.
//
// Example:
//
//	cmd, _ := NewAdvanceOrderCommand(orderID, order.CommandShip, shipper, nil)
//	finalized, err := handler.Handle(ctx, cmd)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(finalized.Record.Status()) // Shipped
type AdvanceOrderCommandHandler struct {
	executor OrderExecutor
}

func NewAdvanceOrderCommandHandler(executor OrderExecutor) (AdvanceOrderCommandHandler, error) {
	if executor == nil {
		return AdvanceOrderCommandHandler{}, errs.NewValueIsRequiredError("executor")
	}
	return AdvanceOrderCommandHandler{executor: executor}, nil
}

func (h AdvanceOrderCommandHandler) Handle(ctx context.Context, cmd AdvanceOrderCommand) (*commit.FinalizedRecord, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	command, err := order.NewCommand(cmd.Kind(), cmd.Issuer())
	if err != nil {
		return nil, err
	}

	return h.executor.Execute(ctx, lifecycle.Request{
		OrderID:        cmd.OrderID(),
		Command:        command,
		ExpectedStatus: cmd.ExpectedStatus(),
	})
}
