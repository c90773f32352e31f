// Package proposal models one proposed order transition while its signatures
// are collected and it is finalized.
//
// State transitions:
//
//	Drafted ──> CollectingSignatures ──> Quorate ──> Finalizing ──> Committed
//	   │                 │                  │             │
//	   └─────────────────┴──────────────────┴─────────────┴──> Rejected
//
// Committed and Rejected are terminal. A proposal becomes Quorate only when
// every required signer has a signature that verifies against the exact
// signing payload. Signatures form a set keyed by signer, so the order in
// which they arrive does not matter.
package proposal
