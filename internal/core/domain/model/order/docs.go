// Package order provides the versioned order record shared by a buyer, a seller
// and a shipper, together with the invariants every version must satisfy.
//
// The package includes:
//   - Record: one immutable version of an order; a transition never edits a
//     record, it produces a successor that consumes the previous version
//   - Status: the fixed lifecycle
//     Ordered -> Confirmed -> ReadyForPickup -> Shipped -> Delivered -> ConfirmedDelivery
//   - CommandKind and Command: the lifecycle commands a participant may issue
//   - Role: the part a principal plays in an order
//   - Snapshot: the flat form of a record used by storage and transport adapters
//   - CheckInvariants: the side-effect free check run by the rule engine and,
//     independently, by every countersigning participant
//
// Key business rules:
//   - buyer, seller and shipper are fixed for the whole history; buyer differs
//     from both seller and shipper
//   - unit price and quantity are positive, shipping cost is never negative
//   - version N of an order always carries status Ordered+N and references
//     version N-1; version 0 has no predecessor
package order
