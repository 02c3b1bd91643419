package accountstore

import (
	"github.com/tendant/simple-idm-docstore/pkg/roles"
	"github.com/tendant/simple-idm-docstore/pkg/storage"
)

// Store implements every capability contract over one collection and
// role registry. It holds no state of its own and is safe for concurrent
// use as long as callers do not share an *domain.Account between goroutines.
type Store struct {
	*Lifecycle
	*Roles
	*Logins
	*Emails
	Claims
	Credentials
	SecurityStamps
	PhoneNumbers
	TwoFactor
	Lockout
}

var (
	_ AccountStore       = (*Store)(nil)
	_ RoleStore          = (*Store)(nil)
	_ ClaimStore         = (*Store)(nil)
	_ LoginStore         = (*Store)(nil)
	_ CredentialStore    = (*Store)(nil)
	_ SecurityStampStore = (*Store)(nil)
	_ EmailStore         = (*Store)(nil)
	_ PhoneNumberStore   = (*Store)(nil)
	_ TwoFactorStore     = (*Store)(nil)
	_ LockoutStore       = (*Store)(nil)
)

// New builds a Store over accounts, checking role names against registry.
func New(accounts storage.Collection, registry roles.Registry) *Store {
	return &Store{
		Lifecycle: NewLifecycle(accounts),
		Roles:     NewRoles(registry),
		Logins:    NewLogins(accounts),
		Emails:    NewEmails(accounts),
	}
}
