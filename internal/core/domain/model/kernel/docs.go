// Package kernel provides the value objects shared by every aggregate of the
// order tracking domain.
//
// The package includes:
//   - UUID: identifier of an order and of a proposal
//   - Principal: a verifiable party identity (buyer, seller or shipper)
//   - Money: a non-floating amount used for prices and shipping costs
//   - VersionRef: the opaque, consume-once reference to one record version
//
// All values are immutable and safe for concurrent use. Zero values are invalid
// and fail Validate; use the constructors.
package kernel
