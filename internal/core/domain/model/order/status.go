package order

import (
	"fmt"
	"strings"

	"orderchain/internal/pkg/errs"
)

// Status represents the lifecycle state of an order.
//
// State transitions are strictly forward, one step at a time:
//
//	Ordered ──> Confirmed ──> ReadyForPickup ──> Shipped ──> Delivered ──> ConfirmedDelivery
//
// There are no other edges: no skips, no regression, and ConfirmedDelivery is final.
type Status int

const (
	// Unknown represents an invalid or undefined status.
	// This value (0) helps catch uninitialized Status values.
	Unknown Status = iota

	// Ordered is the status of version 0, created by the buyer.
	Ordered

	// Confirmed means the seller accepted the order.
	Confirmed

	// ReadyForPickup means the goods wait for the shipper.
	ReadyForPickup

	// Shipped means the goods are in transit; the shipper owns the record.
	Shipped

	// Delivered means the shipper handed the goods over.
	Delivered

	// ConfirmedDelivery is the final status; the buyer owns the record again.
	ConfirmedDelivery
)

func getStatusStrings() map[Status]string {
	return map[Status]string{
		Unknown:           "Unknown",
		Ordered:           "Ordered",
		Confirmed:         "Confirmed",
		ReadyForPickup:    "ReadyForPickup",
		Shipped:           "Shipped",
		Delivered:         "Delivered",
		ConfirmedDelivery: "ConfirmedDelivery",
	}
}

// Statuses lists every valid status in lifecycle order.
func Statuses() []Status {
	return []Status{Ordered, Confirmed, ReadyForPickup, Shipped, Delivered, ConfirmedDelivery}
}

// ParseStatus converts the String form back into a Status. Matching ignores case.
func ParseStatus(s string) (Status, error) {
	for _, status := range Statuses() {
		if strings.EqualFold(status.String(), strings.TrimSpace(s)) {
			return status, nil
		}
	}
	return Unknown, errs.NewValueIsInvalidErrorWithCause("status is invalid", fmt.Errorf("%q is not a known status", s))
}

// Validate checks that the status is one of the six lifecycle statuses.
func (s Status) Validate() error {
	if s < Ordered || s > ConfirmedDelivery {
		return errs.NewValueIsInvalidErrorWithCause("status is invalid", fmt.Errorf("%d is not a valid status", s))
	}
	return nil
}

// String implements fmt.Stringer. Out of range values render as "Unknown".
func (s Status) String() string {
	if str, ok := getStatusStrings()[s]; ok {
		return str
	}
	return "Unknown"
}

// IsFinal reports whether no further transition exists.
func (s Status) IsFinal() bool {
	return s == ConfirmedDelivery
}

// Next returns the single status that may follow s.
//
// Returns:
//   - (next, nil) for Ordered through Delivered
//   - (0, error) for ConfirmedDelivery and for invalid statuses
func (s Status) Next() (Status, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	if s.IsFinal() {
		return 0, errs.NewValueIsInvalidErrorWithCause(
			"status is invalid",
			fmt.Errorf("%s is final and has no successor", s),
		)
	}
	return s + 1, nil
}

// Precedes reports whether next is the immediate successor of s.
func (s Status) Precedes(next Status) bool {
	n, err := s.Next()
	return err == nil && n == next
}

// distance is the number of transitions between Ordered and s; it equals the
// record version for every valid history.
func (s Status) distance() uint64 {
	return uint64(s - Ordered)
}
