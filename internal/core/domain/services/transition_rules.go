package services

import (
	"errors"
	"fmt"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"
)

// Transition is one row of the lifecycle table.
type Transition struct {
	Command order.CommandKind
	// From is the status the current record must have; Unknown means the
	// order must not exist yet.
	From order.Status
	To   order.Status
	// Signers are the roles whose signatures form the quorum.
	Signers []order.Role
	// NewOwner is the role that owns the proposed record; RoleUnknown keeps
	// the current owner.
	NewOwner order.Role
	// Issuers are the roles allowed to issue the command.
	Issuers []order.Role
}

var (
	allParties = []order.Role{order.RoleBuyer, order.RoleSeller, order.RoleShipper}
	buyerOnly  = []order.Role{order.RoleBuyer}
)

// transitionTable is the complete lifecycle. Every command is listed once.
var transitionTable = map[order.CommandKind]Transition{
	order.CommandCreate: {
		Command: order.CommandCreate, From: order.Unknown, To: order.Ordered,
		Signers: buyerOnly, NewOwner: order.RoleBuyer, Issuers: buyerOnly,
	},
	order.CommandConfirm: {
		Command: order.CommandConfirm, From: order.Ordered, To: order.Confirmed,
		Signers: allParties, Issuers: allParties,
	},
	order.CommandConfirmPickup: {
		Command: order.CommandConfirmPickup, From: order.Confirmed, To: order.ReadyForPickup,
		Signers: allParties, Issuers: allParties,
	},
	order.CommandShip: {
		Command: order.CommandShip, From: order.ReadyForPickup, To: order.Shipped,
		Signers: allParties, NewOwner: order.RoleShipper, Issuers: allParties,
	},
	order.CommandDelivery: {
		Command: order.CommandDelivery, From: order.Shipped, To: order.Delivered,
		Signers: allParties, Issuers: allParties,
	},
	order.CommandConfirmDelivery: {
		Command: order.CommandConfirmDelivery, From: order.Delivered, To: order.ConfirmedDelivery,
		Signers: allParties, NewOwner: order.RoleBuyer, Issuers: buyerOnly,
	},
}

// TransitionRules decides whether a proposed record is a legal result of a
// command applied to the current record.
//
// Business rules:
//   - Create requires that no current record exists and is signed by the buyer alone
//   - every other command moves the status exactly one step forward and is
//     signed by buyer, seller and shipper
//   - Ship hands ownership to the shipper, ConfirmDelivery back to the buyer
//   - ConfirmDelivery may only be issued by the buyer
//   - order ID, terms and parties never change
//
// Example usage:
//
//	rules := services.NewTransitionRules()
//	proposed, err := rules.Apply(current, cmd)
//	if err == nil {
//	    err = rules.Validate(current, cmd, proposed)
//	}
//	var violation *services.RuleViolationError
//	if errors.As(err, &violation) {
//	    // reject, the caller may correct the command
//	}
//
// TransitionRules holds no state and is safe for concurrent use.
type TransitionRules struct{}

func NewTransitionRules() TransitionRules {
	return TransitionRules{}
}

// Transition returns the table row for kind.
func (TransitionRules) Transition(kind order.CommandKind) (Transition, error) {
	t, ok := transitionTable[kind]
	if !ok {
		return Transition{}, NewRuleViolationError(UnknownCommand, "%s has no transition", kind)
	}
	return t, nil
}

// Target returns the status a command produces.
func (r TransitionRules) Target(kind order.CommandKind) (order.Status, error) {
	t, err := r.Transition(kind)
	if err != nil {
		return order.Unknown, err
	}
	return t.To, nil
}

// Apply builds the successor of current that the command calls for. It does
// not judge legality beyond the existence of a table row and of a current
// record; Validate does.
func (r TransitionRules) Apply(current *order.Record, cmd order.Command) (*order.Record, error) {
	t, err := r.Transition(cmd.Kind())
	if err != nil {
		return nil, err
	}
	if t.Command == order.CommandCreate {
		return nil, NewRuleViolationError(PreconditionFailed, "Create builds a new record, there is nothing to advance")
	}
	if current.Validate() != nil {
		return nil, NewRuleViolationError(PreconditionFailed, "%s requires an existing order", cmd.Kind())
	}
	owner := current.Owner()
	if t.NewOwner != order.RoleUnknown {
		owner, _ = current.PrincipalFor(t.NewOwner)
	}
	return current.Successor(t.To, owner), nil
}

// Validate accepts proposed as the result of cmd on current, or returns a
// *RuleViolationError. current is nil for Create.
func (r TransitionRules) Validate(current *order.Record, cmd order.Command, proposed *order.Record) error {
	if err := cmd.Validate(); err != nil {
		return NewRuleViolationError(UnknownCommand, "%v", err)
	}
	t, err := r.Transition(cmd.Kind())
	if err != nil {
		return err
	}

	exists := current.Validate() == nil
	if t.From == order.Unknown && exists {
		return NewRuleViolationError(PreconditionFailed, "order %s already exists", current.OrderID())
	}
	if t.From != order.Unknown && !exists {
		return NewRuleViolationError(PreconditionFailed, "%s requires an existing order", cmd.Kind())
	}

	if exists && current.Status() != t.From {
		return NewRuleViolationError(StatusMismatch,
			"%s requires status %s, order is %s", cmd.Kind(), t.From, current.Status())
	}

	if err = proposed.Validate(); err != nil {
		return NewRuleViolationError(InvariantBroken, "%v", err)
	}
	if proposed.Status() != t.To {
		return NewRuleViolationError(StatusMismatch,
			"%s must produce status %s, proposed %s", cmd.Kind(), t.To, proposed.Status())
	}

	if err = order.CheckInvariants(proposed); err != nil {
		return NewRuleViolationError(InvariantBroken, "%v", err)
	}

	if exists {
		if err = checkSuccession(current, proposed); err != nil {
			return err
		}
	}

	expectedOwner := proposed.Owner()
	switch {
	case t.NewOwner != order.RoleUnknown:
		expectedOwner, _ = proposed.PrincipalFor(t.NewOwner)
	case exists:
		expectedOwner = current.Owner()
	}
	if !proposed.Owner().IsEqual(expectedOwner) {
		return NewRuleViolationError(OwnerMismatch,
			"%s must leave %s as owner, proposed %s", cmd.Kind(), expectedOwner, proposed.Owner())
	}

	if !holdsAnyRole(proposed, cmd.Issuer(), t.Issuers) {
		return NewRuleViolationError(IdentityMismatch,
			"%s may only be issued by %s, not by %s", cmd.Kind(), rolesString(t.Issuers), cmd.Issuer())
	}
	return nil
}

// ValidateAcrossGap judges proposed when the versions between known and
// proposed are missing locally; known is nil when nothing of the order is
// stored. Without the direct predecessor the record must still be the output
// of cmd: the status cmd produces, the owner the lifecycle assigns at that
// status, an issuer allowed to issue cmd, and the terms and parties of known.
func (r TransitionRules) ValidateAcrossGap(known *order.Record, cmd order.Command, proposed *order.Record) error {
	if err := cmd.Validate(); err != nil {
		return NewRuleViolationError(UnknownCommand, "%v", err)
	}
	t, err := r.Transition(cmd.Kind())
	if err != nil {
		return err
	}
	if t.From == order.Unknown {
		return NewRuleViolationError(PreconditionFailed, "%s cannot follow earlier versions", cmd.Kind())
	}

	if err = proposed.Validate(); err != nil {
		return NewRuleViolationError(InvariantBroken, "%v", err)
	}
	if proposed.Status() != t.To {
		return NewRuleViolationError(StatusMismatch,
			"%s must produce status %s, proposed %s", cmd.Kind(), t.To, proposed.Status())
	}
	if err = order.CheckInvariants(proposed); err != nil {
		return NewRuleViolationError(InvariantBroken, "%v", err)
	}

	expectedOwner, _ := proposed.PrincipalFor(ownerRoleAt(t.To))
	if !proposed.Owner().IsEqual(expectedOwner) {
		return NewRuleViolationError(OwnerMismatch,
			"status %s belongs to %s, proposed %s", t.To, expectedOwner, proposed.Owner())
	}
	if !holdsAnyRole(proposed, cmd.Issuer(), t.Issuers) {
		return NewRuleViolationError(IdentityMismatch,
			"%s may only be issued by %s, not by %s", cmd.Kind(), rolesString(t.Issuers), cmd.Issuer())
	}

	if known.Validate() != nil {
		return nil
	}
	if !proposed.OrderID().IsEqual(known.OrderID()) {
		return NewRuleViolationError(OrderIDMismatch,
			"proposed order %s, stored order %s", proposed.OrderID(), known.OrderID())
	}
	if changed := changedFields(known, proposed); len(changed) > 0 {
		return NewRuleViolationError(ImmutableFieldChanged, "%v may not change", changed)
	}
	if proposed.Version() <= known.Version() {
		return NewRuleViolationError(VersionMismatch,
			"proposed version %d does not follow stored version %d", proposed.Version(), known.Version())
	}
	return nil
}

// ownerRoleAt replays the ownership handovers of the lifecycle up to status.
func ownerRoleAt(status order.Status) order.Role {
	role := order.RoleUnknown
	for _, s := range order.Statuses() {
		if s > status {
			break
		}
		for _, t := range transitionTable {
			if t.To == s && t.NewOwner != order.RoleUnknown {
				role = t.NewOwner
			}
		}
	}
	return role
}

// RequiredSigners returns the distinct principals whose signatures form the
// quorum for kind on rec. When seller and shipper are the same principal one
// signature covers both roles.
func (r TransitionRules) RequiredSigners(kind order.CommandKind, rec *order.Record) ([]kernel.Principal, error) {
	t, err := r.Transition(kind)
	if err != nil {
		return nil, err
	}
	if err = rec.Validate(); err != nil {
		return nil, err
	}
	signers := make([]kernel.Principal, 0, len(t.Signers))
	for _, role := range t.Signers {
		p, _ := rec.PrincipalFor(role)
		if !containsPrincipal(signers, p) {
			signers = append(signers, p)
		}
	}
	return signers, nil
}

func checkSuccession(current, proposed *order.Record) error {
	if !proposed.OrderID().IsEqual(current.OrderID()) {
		return NewRuleViolationError(OrderIDMismatch,
			"proposed order %s, current order %s", proposed.OrderID(), current.OrderID())
	}
	if changed := changedFields(current, proposed); len(changed) > 0 {
		return NewRuleViolationError(ImmutableFieldChanged, "%v may not change", changed)
	}
	prev := proposed.PreviousRef()
	if proposed.Version() != current.Version()+1 || prev == nil || !prev.IsEqual(current.VersionRef()) {
		return NewRuleViolationError(VersionMismatch,
			"proposed version %d does not succeed version %d (%s)",
			proposed.Version(), current.Version(), current.VersionRef())
	}
	return nil
}

func changedFields(current, proposed *order.Record) []string {
	a, b := current.Terms(), proposed.Terms()
	var changed []string
	check := func(name string, same bool) {
		if !same {
			changed = append(changed, name)
		}
	}
	check("sku", a.SKU == b.SKU)
	check("product_name", a.ProductName == b.ProductName)
	check("unit_price", a.UnitPrice.IsEqual(b.UnitPrice))
	check("quantity", a.Quantity == b.Quantity)
	check("shipping_cost", a.ShippingCost.IsEqual(b.ShippingCost))
	check("buyer_address", a.BuyerAddress == b.BuyerAddress)
	check("seller_address", a.SellerAddress == b.SellerAddress)
	check("buyer", current.Buyer().IsEqual(proposed.Buyer()))
	check("seller", current.Seller().IsEqual(proposed.Seller()))
	check("shipper", current.Shipper().IsEqual(proposed.Shipper()))
	return changed
}

func holdsAnyRole(rec *order.Record, p kernel.Principal, roles []order.Role) bool {
	for _, held := range rec.RolesOf(p) {
		for _, allowed := range roles {
			if held == allowed {
				return true
			}
		}
	}
	return false
}

func containsPrincipal(list []kernel.Principal, p kernel.Principal) bool {
	for _, candidate := range list {
		if candidate.IsEqual(p) {
			return true
		}
	}
	return false
}

func rolesString(roles []order.Role) string {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.String())
	}
	return fmt.Sprint(names)
}

// AsRuleViolation converts an invariant failure raised while building a
// record into the rule engine's error type, and passes other errors through.
func AsRuleViolation(err error) error {
	var violation *order.InvariantViolationError
	if errors.As(err, &violation) {
		return NewRuleViolationError(InvariantBroken, "%v", violation)
	}
	return err
}
