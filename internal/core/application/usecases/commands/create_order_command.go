package commands

import (
	"errors"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/pkg/errs"
	"orderchain/internal/pkg/guard"
)

var ErrCreateOrderCommandIsNotConstructed = errors.New(
	"CreateOrderCommand must be created via NewCreateOrderCommand constructor",
)

// CreateOrderCommand is a buyer's request to open a new order with a seller
// and a shipper.
//
// Example:
//
//	cmd, err := NewCreateOrderCommand(kernel.UUID{}, buyer, terms, seller, shipper)
//	if err != nil {
//	    return fmt.Errorf("invalid order data: %w", err)
//	}
//	finalized, err := handler.Handle(ctx, cmd)
type CreateOrderCommand struct { //nolint:recvcheck //using for validation
	orderID kernel.UUID
	buyer   kernel.Principal
	seller  kernel.Principal
	shipper kernel.Principal
	terms   order.Terms

	guard guard.ConstructorGuard
}

// NewCreateOrderCommand builds a Create request issued by buyer. A zero
// orderID asks for a freshly generated identifier. Field level checks on the
// terms are left to the order record.
func NewCreateOrderCommand(
	orderID kernel.UUID,
	buyer kernel.Principal,
	terms order.Terms,
	seller, shipper kernel.Principal,
) (CreateOrderCommand, error) {
	cmd := CreateOrderCommand{
		orderID: orderID,
		terms:   terms,
		guard:   guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		cmd.setParty("buyer", &cmd.buyer, buyer),
		cmd.setParty("seller", &cmd.seller, seller),
		cmd.setParty("shipper", &cmd.shipper, shipper),
	); err != nil {
		return CreateOrderCommand{}, err
	}

	return cmd, nil
}

func (c CreateOrderCommand) Validate() error {
	return c.guard.Validate(ErrCreateOrderCommandIsNotConstructed)
}

func (c CreateOrderCommand) OrderID() kernel.UUID {
	return c.orderID
}

func (c CreateOrderCommand) Buyer() kernel.Principal {
	return c.buyer
}

func (c CreateOrderCommand) Seller() kernel.Principal {
	return c.seller
}

func (c CreateOrderCommand) Shipper() kernel.Principal {
	return c.shipper
}

func (c CreateOrderCommand) Terms() order.Terms {
	return c.terms
}

func (c *CreateOrderCommand) setParty(name string, field *kernel.Principal, p kernel.Principal) error {
	if err := p.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause(name, err)
	}
	*field = p
	return nil
}
