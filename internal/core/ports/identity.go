package ports

import (
	"context"
	"errors"

	"orderchain/internal/core/domain/model/kernel"
)

// ErrUnknownPrincipal is returned when no key is registered for a principal.
var ErrUnknownPrincipal = errors.New("unknown principal")

// IdentityService signs on behalf of principals hosted by this node and
// verifies signatures of any registered principal.
type IdentityService interface {
	// Sign fails with ErrUnknownPrincipal when signer is not hosted locally.
	Sign(ctx context.Context, signer kernel.Principal, payload []byte) ([]byte, error)

	// Verify reports whether signature is signer's signature of payload.
	// It fails with ErrUnknownPrincipal when no public key is registered.
	Verify(ctx context.Context, signer kernel.Principal, payload, signature []byte) (bool, error)

	// Hosts reports whether this node holds the private key of p.
	Hosts(p kernel.Principal) bool

	// LocalPrincipals lists the principals hosted by this node.
	LocalPrincipals() []kernel.Principal
}
