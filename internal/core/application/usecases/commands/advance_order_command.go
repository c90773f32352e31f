package commands

import (
	"errors"
	"fmt"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/pkg/errs"
	"orderchain/internal/pkg/guard"
)

var (
	ErrAdvanceOrderCommandIsNotConstructed = errors.New(
		"AdvanceOrderCommand must be created via NewAdvanceOrderCommand constructor",
	)
	ErrCreateIsNotAnAdvance = errors.New("Create opens an order and cannot advance one")
)

// AdvanceOrderCommand moves an existing order one step along the lifecycle.
// ExpectedStatus is optional; when set it must be the status the command
// produces.
type AdvanceOrderCommand struct { //nolint:recvcheck //using for validation
	orderID        kernel.UUID
	kind           order.CommandKind
	issuer         kernel.Principal
	expectedStatus *order.Status

	guard guard.ConstructorGuard
}

func NewAdvanceOrderCommand(
	orderID kernel.UUID,
	kind order.CommandKind,
	issuer kernel.Principal,
	expectedStatus *order.Status,
) (AdvanceOrderCommand, error) {
	cmd := AdvanceOrderCommand{guard: guard.NewConstructorGuard()}

	if err := errors.Join(
		cmd.setOrderID(orderID),
		cmd.setKind(kind),
		cmd.setIssuer(issuer),
		cmd.setExpectedStatus(expectedStatus),
	); err != nil {
		return AdvanceOrderCommand{}, err
	}

	return cmd, nil
}

func (c AdvanceOrderCommand) Validate() error {
	return c.guard.Validate(ErrAdvanceOrderCommandIsNotConstructed)
}

func (c AdvanceOrderCommand) OrderID() kernel.UUID {
	return c.orderID
}

func (c AdvanceOrderCommand) Kind() order.CommandKind {
	return c.kind
}

func (c AdvanceOrderCommand) Issuer() kernel.Principal {
	return c.issuer
}

// ExpectedStatus returns nil when the caller did not state a target.
func (c AdvanceOrderCommand) ExpectedStatus() *order.Status {
	if c.expectedStatus == nil {
		return nil
	}
	status := *c.expectedStatus
	return &status
}

func (c *AdvanceOrderCommand) setOrderID(orderID kernel.UUID) error {
	if err := orderID.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("orderID", err)
	}
	c.orderID = orderID
	return nil
}

func (c *AdvanceOrderCommand) setKind(kind order.CommandKind) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	if kind == order.CommandCreate {
		return errs.NewValueIsInvalidErrorWithCause("command", ErrCreateIsNotAnAdvance)
	}
	c.kind = kind
	return nil
}

func (c *AdvanceOrderCommand) setIssuer(issuer kernel.Principal) error {
	if err := issuer.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("issuer", err)
	}
	c.issuer = issuer
	return nil
}

func (c *AdvanceOrderCommand) setExpectedStatus(status *order.Status) error {
	if status == nil {
		return nil
	}
	if err := status.Validate(); err != nil {
		return fmt.Errorf("expected status: %w", err)
	}
	s := *status
	c.expectedStatus = &s
	return nil
}
