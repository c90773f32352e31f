package order

import (
	"fmt"

	"orderchain/internal/pkg/errs"
)

// Role is the part a principal plays in one order.
type Role int

const (
	RoleUnknown Role = iota
	RoleBuyer
	RoleSeller
	RoleShipper
)

// Roles lists the three participant roles.
func Roles() []Role {
	return []Role{RoleBuyer, RoleSeller, RoleShipper}
}

func (r Role) String() string {
	switch r {
	case RoleBuyer:
		return "buyer"
	case RoleSeller:
		return "seller"
	case RoleShipper:
		return "shipper"
	case RoleUnknown:
	}
	return "unknown"
}

func (r Role) Validate() error {
	if r < RoleBuyer || r > RoleShipper {
		return errs.NewValueIsInvalidErrorWithCause("role is invalid", fmt.Errorf("%d is not a valid role", r))
	}
	return nil
}
