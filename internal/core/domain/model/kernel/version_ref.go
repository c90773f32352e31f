package kernel

import (
	"encoding/hex"
	"fmt"

	"orderchain/internal/pkg/errs"

	"golang.org/x/crypto/blake2b"
)

// VersionRefSize is the length in bytes of a version reference digest.
const VersionRefSize = blake2b.Size256

// ErrVersionRefIsNotConstructed is returned when validating a zero-value VersionRef.
var ErrVersionRefIsNotConstructed = errs.NewValueIsRequiredError("VersionRef must be created via VersionRefOf or VersionRefFromString")

// VersionRef is the opaque handle to one immutable record version. The ledger
// lets each reference be consumed at most once; the order record computes its
// own reference from its canonical payload, so every participant derives the
// same value independently.
type VersionRef struct {
	digest [VersionRefSize]byte
	set    bool
}

// VersionRefOf digests a canonical payload.
func VersionRefOf(payload []byte) VersionRef {
	return VersionRef{digest: blake2b.Sum256(payload), set: true}
}

// VersionRefFromString parses the lower-case hex form produced by String.
func VersionRefFromString(s string) (VersionRef, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return VersionRef{}, errs.NewValueIsInvalidErrorWithCause("version ref", err)
	}
	if len(raw) != VersionRefSize {
		return VersionRef{}, errs.NewValueIsInvalidErrorWithCause(
			"version ref",
			fmt.Errorf("%d bytes, want %d", len(raw), VersionRefSize),
		)
	}
	ref := VersionRef{set: true}
	copy(ref.digest[:], raw)
	return ref, nil
}

func (r VersionRef) String() string {
	if !r.set {
		return ""
	}
	return hex.EncodeToString(r.digest[:])
}

func (r VersionRef) IsEqual(other VersionRef) bool {
	return r.set == other.set && r.digest == other.digest
}

func (r VersionRef) IsZero() bool {
	return !r.set
}

func (r VersionRef) Validate() error {
	if !r.set {
		return ErrVersionRefIsNotConstructed
	}
	return nil
}
