// Package services holds the transition rule engine of the order lifecycle.
//
// The package includes:
//   - TransitionRules: a pure validator deciding whether a proposed record is a
//     legal successor of the current one for a given command
//   - Transition: one row of the static transition table (source and target
//     status, required signers, owner change, allowed issuers)
//   - RuleViolationError: the recoverable rejection returned for every breach
//
// Validation never touches storage or the network, so the initiator and every
// countersigning participant can run it on their own copy of the current record.
package services
