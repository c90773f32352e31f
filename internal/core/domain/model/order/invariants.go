package order

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvariantViolation is matched by every *InvariantViolationError.
var ErrInvariantViolation = errors.New("record invariant violated")

// Violation is one broken invariant.
type Violation struct {
	Field  string
	Reason string
}

func (v Violation) String() string {
	return v.Field + ": " + v.Reason
}

// InvariantViolationError lists every invariant a record breaks.
type InvariantViolationError struct {
	Violations []Violation
}

func (e *InvariantViolationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("%s: %s", ErrInvariantViolation, strings.Join(parts, "; "))
}

func (e *InvariantViolationError) Unwrap() error {
	return ErrInvariantViolation
}

// Has reports whether field is among the violations.
func (e *InvariantViolationError) Has(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

// CheckInvariants validates a single record version in isolation. It has no
// side effects and is safe to call concurrently. It returns nil or an
// *InvariantViolationError listing every breach.
func CheckInvariants(r *Record) error {
	if err := r.Validate(); err != nil {
		return &InvariantViolationError{Violations: []Violation{{Field: "record", Reason: err.Error()}}}
	}

	var violations []Violation
	add := func(field, format string, args ...any) {
		violations = append(violations, Violation{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	if r.orderID.Validate() != nil {
		add("order_id", "missing")
	}
	for _, f := range []struct{ name, value string }{
		{"sku", r.terms.SKU},
		{"product_name", r.terms.ProductName},
		{"buyer_address", r.terms.BuyerAddress},
		{"seller_address", r.terms.SellerAddress},
	} {
		if strings.TrimSpace(f.value) == "" {
			add(f.name, "must not be empty")
		}
	}
	if r.terms.UnitPrice.Validate() != nil || !r.terms.UnitPrice.IsPositive() {
		add("unit_price", "%s is not greater than 0", r.terms.UnitPrice)
	}
	if r.terms.Quantity <= 0 {
		add("quantity", "%d is not greater than 0", r.terms.Quantity)
	}
	if r.terms.ShippingCost.Validate() != nil || r.terms.ShippingCost.IsNegative() {
		add("shipping_cost", "%s is negative", r.terms.ShippingCost)
	}

	buyer, seller, shipper := r.parties.Buyer, r.parties.Seller, r.parties.Shipper
	if buyer.Validate() != nil || seller.Validate() != nil || shipper.Validate() != nil {
		add("parties", "buyer, seller and shipper are required")
	} else {
		if buyer.IsEqual(seller) {
			add("seller", "buyer and seller must differ (%s)", buyer)
		}
		if buyer.IsEqual(shipper) {
			add("shipper", "buyer and shipper must differ (%s)", buyer)
		}
	}
	if r.owner.Validate() != nil || !r.IsParticipant(r.owner) {
		add("owner", "%q is not a party of the order", r.owner)
	}

	if err := r.status.Validate(); err != nil {
		add("status", "%d is not a valid status", r.status)
	} else if r.version != r.status.distance() {
		add("version", "version %d cannot carry status %s", r.version, r.status)
	}
	if r.version == 0 && r.previousRef != nil {
		add("previous_ref", "version 0 has no predecessor")
	}
	if r.version > 0 && r.previousRef == nil {
		add("previous_ref", "version %d must reference its predecessor", r.version)
	}

	if len(violations) > 0 {
		return &InvariantViolationError{Violations: violations}
	}
	return nil
}
