// Package keyring implements the identity service with ed25519 keys held in
// memory: private keys for the principals this node hosts, public keys for
// every principal it trusts.
package keyring

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/ports"
	"orderchain/internal/pkg/errs"
)

var _ ports.IdentityService = (*Keyring)(nil)

type Keyring struct {
	mu      sync.RWMutex
	private map[string]ed25519.PrivateKey
	public  map[string]ed25519.PublicKey
	names   map[string]kernel.Principal
}

func New() *Keyring {
	return &Keyring{
		private: make(map[string]ed25519.PrivateKey),
		public:  make(map[string]ed25519.PublicKey),
		names:   make(map[string]kernel.Principal),
	}
}

// AddLocal hosts p with the key derived from a 32 byte seed.
func (k *Keyring) AddLocal(p kernel.Principal, seed []byte) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if len(seed) != ed25519.SeedSize {
		return errs.NewValueIsOutOfRangeError("seed length", len(seed), ed25519.SeedSize, ed25519.SeedSize)
	}
	key := ed25519.NewKeyFromSeed(seed)

	k.mu.Lock()
	defer k.mu.Unlock()
	k.private[p.Name()] = key
	k.public[p.Name()] = key.Public().(ed25519.PublicKey)
	k.names[p.Name()] = p
	return nil
}

// Generate hosts p with a fresh random key.
func (k *Keyring) Generate(p kernel.Principal) error {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return fmt.Errorf("generate seed: %w", err)
	}
	return k.AddLocal(p, seed)
}

// AddPeer trusts pub as the public key of p.
func (k *Keyring) AddPeer(p kernel.Principal, pub ed25519.PublicKey) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if len(pub) != ed25519.PublicKeySize {
		return errs.NewValueIsOutOfRangeError("public key length", len(pub), ed25519.PublicKeySize, ed25519.PublicKeySize)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.public[p.Name()] = append(ed25519.PublicKey(nil), pub...)
	return nil
}

// Trust copies every public key known to other.
func (k *Keyring) Trust(other *Keyring) {
	other.mu.RLock()
	keys := make(map[string]ed25519.PublicKey, len(other.public))
	for name, pub := range other.public {
		keys[name] = pub
	}
	other.mu.RUnlock()

	k.mu.Lock()
	defer k.mu.Unlock()
	for name, pub := range keys {
		if _, hosted := k.private[name]; !hosted {
			k.public[name] = pub
		}
	}
}

func (k *Keyring) PublicKey(p kernel.Principal) (ed25519.PublicKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	pub, ok := k.public[p.Name()]
	return pub, ok
}

func (k *Keyring) Sign(_ context.Context, signer kernel.Principal, payload []byte) ([]byte, error) {
	k.mu.RLock()
	key, ok := k.private[signer.Name()]
	k.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s is not hosted here", ports.ErrUnknownPrincipal, signer)
	}
	return ed25519.Sign(key, payload), nil
}

func (k *Keyring) Verify(_ context.Context, signer kernel.Principal, payload, signature []byte) (bool, error) {
	pub, ok := k.PublicKey(signer)
	if !ok {
		return false, fmt.Errorf("%w: no key for %s", ports.ErrUnknownPrincipal, signer)
	}
	return ed25519.Verify(pub, payload, signature), nil
}

func (k *Keyring) Hosts(p kernel.Principal) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.private[p.Name()]
	return ok
}

func (k *Keyring) LocalPrincipals() []kernel.Principal {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]kernel.Principal, 0, len(k.names))
	for _, p := range k.names {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// DecodeSeed parses a hex encoded ed25519 seed.
func DecodeSeed(s string) ([]byte, error) {
	seed, err := hex.DecodeString(s)
	if err != nil {
		return nil, errs.NewValueIsInvalidErrorWithCause("seed", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, errs.NewValueIsInvalidErrorWithCause("seed", fmt.Errorf("%d bytes, want %d", len(seed), ed25519.SeedSize))
	}
	return seed, nil
}

// DecodePublicKey parses a hex encoded ed25519 public key.
func DecodePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, errs.NewValueIsInvalidErrorWithCause("public key", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, errs.NewValueIsInvalidErrorWithCause("public key",
			fmt.Errorf("%d bytes, want %d", len(raw), ed25519.PublicKeySize))
	}
	return ed25519.PublicKey(raw), nil
}
