// Package ports defines the contracts between the order lifecycle core and its
// collaborators: the identity service, the ledger (notary), peer messaging,
// distribution of finalized records, and the local record vault.
package ports
