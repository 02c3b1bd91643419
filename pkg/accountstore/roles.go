package accountstore

import (
	"fmt"
	"slices"

	"github.com/tendant/simple-idm-docstore/pkg/domain"
	"github.com/tendant/simple-idm-docstore/pkg/roles"
)

// Roles implements RoleStore against a role registry. Role names are
// checked when they are used; memberships are not revisited if the
// registry later drops a role.
type Roles struct {
	registry roles.Registry
}

// NewRoles creates the role capability.
func NewRoles(registry roles.Registry) *Roles {
	return &Roles{registry: registry}
}

// ValidateRole fails with domain.ErrInvalidState if roleName is not registered.
func (r *Roles) ValidateRole(roleName string) error {
	if !r.registry.Contains(roleName) {
		return fmt.Errorf("%w: %q is not a valid role name", domain.ErrInvalidState, roleName)
	}
	return nil
}

// AddToRole adds roleName to the account. Adding a role the account
// already has is a no-op.
func (r *Roles) AddToRole(account *domain.Account, roleName string) error {
	if err := requireAccount(account); err != nil {
		return err
	}
	if err := r.ValidateRole(roleName); err != nil {
		return err
	}
	if !slices.Contains(account.Roles, roleName) {
		account.Roles = append(account.Roles, roleName)
	}
	return nil
}

// RemoveFromRole removes roleName from the account. Removing a role the
// account does not have is a no-op.
func (r *Roles) RemoveFromRole(account *domain.Account, roleName string) error {
	in, err := r.IsInRole(account, roleName)
	if err != nil {
		return err
	}
	if in {
		account.Roles = slices.DeleteFunc(account.Roles, func(name string) bool {
			return name == roleName
		})
	}
	return nil
}

// ListRoles returns a copy of the account's roles.
func (r *Roles) ListRoles(account *domain.Account) ([]string, error) {
	if err := requireAccount(account); err != nil {
		return nil, err
	}
	return slices.Clone(account.Roles), nil
}

// IsInRole reports whether the account has roleName.
func (r *Roles) IsInRole(account *domain.Account, roleName string) (bool, error) {
	if err := requireAccount(account); err != nil {
		return false, err
	}
	if err := r.ValidateRole(roleName); err != nil {
		return false, err
	}
	return slices.Contains(account.Roles, roleName), nil
}
