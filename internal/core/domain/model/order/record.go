package order

import (
	"errors"
	"fmt"
	"strings"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/pkg/errs"
)

var (
	// ErrRecordIsNotConstructed is returned when a Record was not created through
	// NewRecord, RestoreRecord or Successor.
	ErrRecordIsNotConstructed = errors.New("Record must be created via NewRecord or RestoreRecord")
)

// Terms are the commercial fields fixed when the buyer creates the order.
type Terms struct {
	SKU           string
	ProductName   string
	UnitPrice     kernel.Money
	Quantity      int
	ShippingCost  kernel.Money
	BuyerAddress  string
	SellerAddress string
}

// Parties are the three principals taking part in an order.
type Parties struct {
	Buyer   kernel.Principal
	Seller  kernel.Principal
	Shipper kernel.Principal
}

// Record is one immutable version of an order.
//
// A Record is never modified after construction. A lifecycle transition builds
// a new Record with Successor; the new version references the version it
// consumes through PreviousRef, and its own VersionRef is the digest of its
// canonical payload, so every participant computes the same reference for the
// same content.
//
// Record follows these invariants (see CheckInvariants):
//   - order ID, terms and parties never change across versions
//   - buyer differs from seller and from shipper
//   - unit price and quantity are positive, shipping cost is not negative
//   - the owner is one of the three parties
//   - version N carries status Ordered+N; only version 0 has no predecessor
type Record struct {
	orderID     kernel.UUID
	version     uint64
	versionRef  kernel.VersionRef
	previousRef *kernel.VersionRef

	terms   Terms
	parties Parties

	status Status
	owner  kernel.Principal

	isConstructed bool
}

// NewRecord builds version 0 of an order: status Ordered, no predecessor, and
// the buyer as owner.
//
// Example:
//
//	rec, err := order.NewRecord(kernel.NewUUID(), order.Terms{
//	    SKU: "SKU1", ProductName: "Widget",
//	    UnitPrice: kernel.MoneyFromFloat(10), Quantity: 2,
//	    ShippingCost: kernel.MoneyFromFloat(1.5),
//	    BuyerAddress: "A", SellerAddress: "B",
//	}, order.Parties{Buyer: buyer, Seller: seller, Shipper: shipper})
//
// Field shape errors (missing values, unconstructed value objects) are joined
// and returned as validation errors. A record with well formed fields that
// breaks a business invariant, such as buyer == seller, is rejected with an
// *InvariantViolationError.
func NewRecord(orderID kernel.UUID, terms Terms, parties Parties) (*Record, error) {
	r := &Record{
		status:        Ordered,
		isConstructed: true,
	}

	if err := errors.Join(
		r.setOrderID(orderID),
		r.setTerms(terms),
		r.setParties(parties),
	); err != nil {
		return nil, err
	}
	r.owner = parties.Buyer
	r.seal()

	if err := CheckInvariants(r); err != nil {
		return nil, err
	}
	return r, nil
}

// RestoreRecord rebuilds a record from its snapshot, e.g. after loading it from
// storage or receiving it from a peer. Only the shape of the fields is
// validated here; business invariants are left to CheckInvariants so that
// callers can tell malformed input from a rule breach. When the snapshot
// carries a version reference it must match the digest of the content.
func RestoreRecord(s Snapshot) (*Record, error) {
	r := &Record{
		version:       s.Version,
		isConstructed: true,
	}

	orderID, err := kernel.UUIDFromString(s.OrderID)
	if err != nil {
		return nil, errs.NewValueIsInvalidErrorWithCause("order_id", err)
	}
	terms, termsErr := s.terms()
	parties, partiesErr := s.parties()
	status, statusErr := ParseStatus(s.Status)
	owner, ownerErr := kernel.NewPrincipal(s.Owner)

	if err = errors.Join(termsErr, partiesErr, statusErr, ownerErr); err != nil {
		return nil, err
	}
	if err = errors.Join(r.setOrderID(orderID), r.setTerms(terms), r.setParties(parties)); err != nil {
		return nil, err
	}
	r.status = status
	r.owner = owner

	if s.PreviousRef != "" {
		prev, refErr := kernel.VersionRefFromString(s.PreviousRef)
		if refErr != nil {
			return nil, errs.NewValueIsInvalidErrorWithCause("previous_ref", refErr)
		}
		r.previousRef = &prev
	}
	r.seal()

	if s.VersionRef != "" && s.VersionRef != r.versionRef.String() {
		return nil, errs.NewVersionIsInvalidErrorWithCause(
			"version_ref",
			fmt.Errorf("snapshot claims %s, content digests to %s", s.VersionRef, r.versionRef),
		)
	}
	return r, nil
}

// Successor builds the next version: version+1, predecessor set to this
// record's reference, the given status and owner, every other field copied.
// No lifecycle rule is checked; legality is decided by the rule engine.
func (r *Record) Successor(status Status, owner kernel.Principal) *Record {
	prev := r.versionRef
	next := &Record{
		orderID:       r.orderID,
		version:       r.version + 1,
		previousRef:   &prev,
		terms:         r.terms,
		parties:       r.parties,
		status:        status,
		owner:         owner,
		isConstructed: true,
	}
	next.seal()
	return next
}

// Validate ensures the Record was built by one of the package constructors.
func (r *Record) Validate() error {
	if r == nil || !r.isConstructed {
		return ErrRecordIsNotConstructed
	}
	return nil
}

// IsEqual compares versions by reference: equal references mean equal content.
func (r *Record) IsEqual(other *Record) bool {
	return other != nil && r.versionRef.IsEqual(other.versionRef)
}

func (r *Record) OrderID() kernel.UUID {
	return r.orderID
}

func (r *Record) Version() uint64 {
	return r.version
}

func (r *Record) VersionRef() kernel.VersionRef {
	return r.versionRef
}

// PreviousRef returns the reference of the consumed version, or nil for version 0.
func (r *Record) PreviousRef() *kernel.VersionRef {
	if r.previousRef == nil {
		return nil
	}
	prev := *r.previousRef
	return &prev
}

func (r *Record) Terms() Terms {
	return r.terms
}

func (r *Record) SKU() string {
	return r.terms.SKU
}

func (r *Record) ProductName() string {
	return r.terms.ProductName
}

func (r *Record) UnitPrice() kernel.Money {
	return r.terms.UnitPrice
}

func (r *Record) Quantity() int {
	return r.terms.Quantity
}

func (r *Record) ShippingCost() kernel.Money {
	return r.terms.ShippingCost
}

func (r *Record) BuyerAddress() string {
	return r.terms.BuyerAddress
}

func (r *Record) SellerAddress() string {
	return r.terms.SellerAddress
}

// Total is unit price times quantity plus shipping.
func (r *Record) Total() kernel.Money {
	return r.terms.UnitPrice.Mul(r.terms.Quantity).Add(r.terms.ShippingCost)
}

func (r *Record) Parties() Parties {
	return r.parties
}

func (r *Record) Buyer() kernel.Principal {
	return r.parties.Buyer
}

func (r *Record) Seller() kernel.Principal {
	return r.parties.Seller
}

func (r *Record) Shipper() kernel.Principal {
	return r.parties.Shipper
}

func (r *Record) Status() Status {
	return r.status
}

func (r *Record) Owner() kernel.Principal {
	return r.owner
}

// PrincipalFor returns the party holding the role.
func (r *Record) PrincipalFor(role Role) (kernel.Principal, error) {
	switch role {
	case RoleBuyer:
		return r.parties.Buyer, nil
	case RoleSeller:
		return r.parties.Seller, nil
	case RoleShipper:
		return r.parties.Shipper, nil
	case RoleUnknown:
	}
	return kernel.Principal{}, role.Validate()
}

// RolesOf returns every role p holds in this order, in buyer, seller, shipper
// order. Seller and shipper may be the same principal.
func (r *Record) RolesOf(p kernel.Principal) []Role {
	var roles []Role
	for _, role := range Roles() {
		holder, _ := r.PrincipalFor(role)
		if holder.IsEqual(p) {
			roles = append(roles, role)
		}
	}
	return roles
}

// IsParticipant reports whether p is the buyer, the seller or the shipper.
func (r *Record) IsParticipant(p kernel.Principal) bool {
	return len(r.RolesOf(p)) > 0
}

// Participants returns the distinct parties of the order.
func (r *Record) Participants() []kernel.Principal {
	out := make([]kernel.Principal, 0, 3)
	for _, role := range Roles() {
		holder, _ := r.PrincipalFor(role)
		seen := false
		for _, p := range out {
			if p.IsEqual(holder) {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, holder)
		}
	}
	return out
}

// seal computes the version reference from the canonical payload.
func (r *Record) seal() {
	r.versionRef = kernel.VersionRefOf(r.Payload())
}

func (r *Record) setOrderID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	r.orderID = id
	return nil
}

func (r *Record) setTerms(terms Terms) error {
	var problems []error
	required := []struct{ name, value string }{
		{"sku", terms.SKU},
		{"product_name", terms.ProductName},
		{"buyer_address", terms.BuyerAddress},
		{"seller_address", terms.SellerAddress},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			problems = append(problems, errs.NewValueIsRequiredError(field.name))
		}
	}
	problems = append(problems, terms.UnitPrice.Validate(), terms.ShippingCost.Validate())
	if err := errors.Join(problems...); err != nil {
		return err
	}
	r.terms = terms
	return nil
}

func (r *Record) setParties(parties Parties) error {
	if err := errors.Join(
		parties.Buyer.Validate(),
		parties.Seller.Validate(),
		parties.Shipper.Validate(),
	); err != nil {
		return err
	}
	r.parties = parties
	return nil
}
