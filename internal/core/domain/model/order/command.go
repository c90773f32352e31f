package order

import (
	"errors"
	"fmt"
	"strings"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/pkg/errs"
	"orderchain/internal/pkg/guard"
)

// ErrCommandIsNotConstructed is returned when a Command was not created through NewCommand.
var ErrCommandIsNotConstructed = errs.NewValueIsRequiredError("Command must be created via NewCommand")

// CommandKind names a lifecycle command. Each kind maps to exactly one row of
// the transition table kept by the rule engine.
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandCreate
	CommandConfirm
	CommandConfirmPickup
	CommandShip
	CommandDelivery
	CommandConfirmDelivery
)

func getCommandStrings() map[CommandKind]string {
	return map[CommandKind]string{
		CommandUnknown:         "Unknown",
		CommandCreate:          "Create",
		CommandConfirm:         "Confirm",
		CommandConfirmPickup:   "ConfirmPickup",
		CommandShip:            "Ship",
		CommandDelivery:        "Delivery",
		CommandConfirmDelivery: "ConfirmDelivery",
	}
}

// CommandKinds lists every valid command in lifecycle order.
func CommandKinds() []CommandKind {
	return []CommandKind{
		CommandCreate,
		CommandConfirm,
		CommandConfirmPickup,
		CommandShip,
		CommandDelivery,
		CommandConfirmDelivery,
	}
}

// ParseCommandKind accepts the String form in any case, with or without
// '-' and '_' separators, so "confirm-pickup" and "ConfirmPickup" are equal.
func ParseCommandKind(s string) (CommandKind, error) {
	normalized := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(s))
	for _, kind := range CommandKinds() {
		if strings.ToLower(kind.String()) == normalized {
			return kind, nil
		}
	}
	return CommandUnknown, errs.NewValueIsInvalidErrorWithCause(
		"command is invalid",
		fmt.Errorf("%q is not a known command", s),
	)
}

func (k CommandKind) String() string {
	if str, ok := getCommandStrings()[k]; ok {
		return str
	}
	return "Unknown"
}

func (k CommandKind) Validate() error {
	if k < CommandCreate || k > CommandConfirmDelivery {
		return errs.NewValueIsInvalidErrorWithCause("command is invalid", fmt.Errorf("%d is not a valid command", k))
	}
	return nil
}

// Command is a request by one principal, the issuer, to move an order through
// one lifecycle step. The issuer becomes the initiator of the proposal and
// signs it first.
type Command struct { //nolint:recvcheck //using for validation
	kind   CommandKind
	issuer kernel.Principal
	guard  guard.ConstructorGuard
}

func NewCommand(kind CommandKind, issuer kernel.Principal) (Command, error) {
	if err := errors.Join(kind.Validate(), issuer.Validate()); err != nil {
		return Command{}, err
	}
	return Command{kind: kind, issuer: issuer, guard: guard.NewConstructorGuard()}, nil
}

func (c Command) Kind() CommandKind {
	return c.kind
}

func (c Command) Issuer() kernel.Principal {
	return c.issuer
}

func (c Command) String() string {
	return fmt.Sprintf("%s by %s", c.kind, c.issuer)
}

func (c Command) Validate() error {
	return c.guard.Validate(ErrCommandIsNotConstructed)
}
