package proposal

import (
	"errors"
	"sort"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/pkg/errs"
)

// Signature is a principal's signature over a proposal's signing payload.
type Signature struct {
	signer kernel.Principal
	bytes  []byte
}

func NewSignature(signer kernel.Principal, bytes []byte) (Signature, error) {
	if err := signer.Validate(); err != nil {
		return Signature{}, err
	}
	if len(bytes) == 0 {
		return Signature{}, errs.NewValueIsRequiredError("signature bytes")
	}
	return Signature{signer: signer, bytes: append([]byte(nil), bytes...)}, nil
}

func (s Signature) Signer() kernel.Principal {
	return s.signer
}

func (s Signature) Bytes() []byte {
	return append([]byte(nil), s.bytes...)
}

// WireSignature is the transport form of a Signature.
type WireSignature struct {
	Signer string `json:"signer"`
	Bytes  []byte `json:"signature"`
}

func (s Signature) Wire() WireSignature {
	return WireSignature{Signer: s.signer.Name(), Bytes: s.Bytes()}
}

func (w WireSignature) Signature() (Signature, error) {
	signer, err := kernel.NewPrincipal(w.Signer)
	if err != nil {
		return Signature{}, err
	}
	return NewSignature(signer, w.Bytes)
}

// WireSignatures converts a list of signatures for transport.
func WireSignatures(sigs []Signature) []WireSignature {
	out := make([]WireSignature, 0, len(sigs))
	for _, s := range sigs {
		out = append(out, s.Wire())
	}
	return out
}

// ParseWireSignatures converts transported signatures back, joining every error.
func ParseWireSignatures(wire []WireSignature) ([]Signature, error) {
	out := make([]Signature, 0, len(wire))
	var problems []error
	for _, w := range wire {
		s, err := w.Signature()
		if err != nil {
			problems = append(problems, err)
			continue
		}
		out = append(out, s)
	}
	return out, errors.Join(problems...)
}

// SignatureSet holds at most one signature per signer.
type SignatureSet struct {
	bySigner map[string]Signature
}

func NewSignatureSet(sigs ...Signature) SignatureSet {
	set := SignatureSet{bySigner: make(map[string]Signature, len(sigs))}
	for _, s := range sigs {
		set.Add(s)
	}
	return set
}

// Add stores s, replacing an earlier signature of the same signer.
func (set *SignatureSet) Add(s Signature) {
	if set.bySigner == nil {
		set.bySigner = make(map[string]Signature)
	}
	set.bySigner[s.signer.Name()] = s
}

func (set *SignatureSet) Remove(signer kernel.Principal) {
	delete(set.bySigner, signer.Name())
}

func (set SignatureSet) Get(signer kernel.Principal) (Signature, bool) {
	s, ok := set.bySigner[signer.Name()]
	return s, ok
}

func (set SignatureSet) Len() int {
	return len(set.bySigner)
}

// All returns the signatures sorted by signer name.
func (set SignatureSet) All() []Signature {
	out := make([]Signature, 0, len(set.bySigner))
	for _, s := range set.bySigner {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].signer.Name() < out[j].signer.Name() })
	return out
}

// Missing returns the required signers without a signature in the set.
func (set SignatureSet) Missing(required []kernel.Principal) []kernel.Principal {
	var missing []kernel.Principal
	for _, p := range required {
		if _, ok := set.bySigner[p.Name()]; !ok {
			missing = append(missing, p)
		}
	}
	return missing
}

// Covers reports whether every required signer has signed.
func (set SignatureSet) Covers(required []kernel.Principal) bool {
	return len(required) > 0 && len(set.Missing(required)) == 0
}

func (set SignatureSet) clone() SignatureSet {
	return NewSignatureSet(set.All()...)
}
