package services

import (
	"errors"
	"fmt"
)

// ErrRuleViolation is matched by every *RuleViolationError.
var ErrRuleViolation = errors.New("rule violation")

// ViolationKind classifies a rejected transition.
type ViolationKind int

const (
	ViolationUnknown ViolationKind = iota
	// UnknownCommand: the command has no row in the transition table.
	UnknownCommand
	// PreconditionFailed: the order exists for Create, or is missing for any other command.
	PreconditionFailed
	// StatusMismatch: the current or proposed status is not the one the command requires.
	StatusMismatch
	// InvariantBroken: the proposed record fails CheckInvariants.
	InvariantBroken
	// OrderIDMismatch: the proposed record belongs to another order.
	OrderIDMismatch
	// ImmutableFieldChanged: terms or parties differ from the current record.
	ImmutableFieldChanged
	// VersionMismatch: the proposed record does not directly succeed the current one.
	VersionMismatch
	// OwnerMismatch: the proposed owner is not the one the command assigns.
	OwnerMismatch
	// IdentityMismatch: the issuer may not issue this command.
	IdentityMismatch
)

func (k ViolationKind) String() string {
	switch k {
	case UnknownCommand:
		return "UnknownCommand"
	case PreconditionFailed:
		return "PreconditionFailed"
	case StatusMismatch:
		return "StatusMismatch"
	case InvariantBroken:
		return "InvariantBroken"
	case OrderIDMismatch:
		return "OrderIDMismatch"
	case ImmutableFieldChanged:
		return "ImmutableFieldChanged"
	case VersionMismatch:
		return "VersionMismatch"
	case OwnerMismatch:
		return "OwnerMismatch"
	case IdentityMismatch:
		return "IdentityMismatch"
	case ViolationUnknown:
	}
	return "Unknown"
}

// RuleViolationError is a business rule rejection. It is always recoverable:
// the caller corrects the command or reloads the current record.
type RuleViolationError struct {
	Kind    ViolationKind
	Message string
}

func NewRuleViolationError(kind ViolationKind, format string, args ...any) *RuleViolationError {
	return &RuleViolationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *RuleViolationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrRuleViolation, e.Kind, e.Message)
}

func (e *RuleViolationError) Unwrap() error {
	return ErrRuleViolation
}

// IsRuleViolation reports whether err carries a *RuleViolationError of the given kind.
func IsRuleViolation(err error, kind ViolationKind) bool {
	var violation *RuleViolationError
	return errors.As(err, &violation) && violation.Kind == kind
}
