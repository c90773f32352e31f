package kernel

import (
	"fmt"
	"strings"
	"unicode"

	"orderchain/internal/pkg/errs"
	"orderchain/internal/pkg/guard"
)

// MaxPrincipalNameLength bounds principal names so they fit the vault columns.
const MaxPrincipalNameLength = 128

// ErrPrincipalIsNotConstructed is returned when validating a zero-value Principal.
var ErrPrincipalIsNotConstructed = errs.NewValueIsRequiredError("Principal must be created via NewPrincipal")

// Principal is a verifiable party identity. The domain treats it as opaque:
// two principals are the same party exactly when their names are equal, and
// proof of identity is delegated to the identity service (sign / verify).
type Principal struct { //nolint:recvcheck //using for validation
	name  string
	guard guard.ConstructorGuard
}

// NewPrincipal builds a principal from its registered name, e.g. "O=Buyer,L=London".
// Surrounding whitespace is trimmed; the name must be non-empty, printable and
// at most MaxPrincipalNameLength bytes long.
func NewPrincipal(name string) (Principal, error) {
	p := Principal{guard: guard.NewConstructorGuard()}
	if err := p.setName(name); err != nil {
		return Principal{}, err
	}
	return p, nil
}

// MustPrincipal is NewPrincipal for compile-time constants and tests.
func MustPrincipal(name string) Principal {
	p, err := NewPrincipal(name)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Principal) Name() string {
	return p.name
}

func (p Principal) String() string {
	return p.name
}

func (p Principal) IsEqual(other Principal) bool {
	return p.name == other.name
}

func (p Principal) Validate() error {
	return p.guard.Validate(ErrPrincipalIsNotConstructed)
}

func (p *Principal) setName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errs.NewValueIsRequiredError("principal name")
	}
	if len(name) > MaxPrincipalNameLength {
		return errs.NewValueIsOutOfRangeError("principal name length", len(name), 1, MaxPrincipalNameLength)
	}
	for _, r := range name {
		if !unicode.IsPrint(r) {
			return errs.NewValueIsInvalidErrorWithCause(
				"principal name",
				fmt.Errorf("%q contains a non-printable character", name),
			)
		}
	}
	p.name = name
	return nil
}
