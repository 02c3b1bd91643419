// Package accountstore exposes the account aggregate through narrow
// capability contracts (lifecycle, roles, claims, logins, credentials,
// security stamps, email, phone number, two-factor, lockout).
//
// Each capability is implemented by its own small type so a consumer can
// depend on, construct and test only what it uses. Store bundles all of
// them over one storage.Collection and roles.Registry.
//
// Methods that touch storage take a context and make exactly one storage
// call. All other methods only read or mutate the account passed in; the
// caller persists changes with Update. A nil account, claim or login fails
// with domain.ErrInvalidArgument before anything else happens; storage
// errors are returned unchanged.
package accountstore

import (
	"context"
	"time"

	"github.com/tendant/simple-idm-docstore/pkg/domain"
)

// Claim is the caller-facing claim representation. Stored claims carry no
// issuer, so ListClaims leaves Issuer empty.
type Claim struct {
	Type   string
	Value  string
	Issuer string
}

// LoginInfo is the caller-facing external login binding.
type LoginInfo struct {
	LoginProvider string
	ProviderKey   string
}

// AccountStore creates, updates, deletes and looks up accounts.
type AccountStore interface {
	Create(ctx context.Context, account *domain.Account) error
	Update(ctx context.Context, account *domain.Account) error
	Delete(ctx context.Context, account *domain.Account) error
	FindByID(ctx context.Context, id string) (*domain.Account, bool, error)
	FindByName(ctx context.Context, name string) (*domain.Account, bool, error)
}

// RoleStore manages role membership.
type RoleStore interface {
	AddToRole(account *domain.Account, roleName string) error
	RemoveFromRole(account *domain.Account, roleName string) error
	ListRoles(account *domain.Account) ([]string, error)
	IsInRole(account *domain.Account, roleName string) (bool, error)
}

// ClaimStore manages claims.
type ClaimStore interface {
	ListClaims(account *domain.Account) ([]Claim, error)
	AddClaim(account *domain.Account, claim *Claim) error
	RemoveClaim(account *domain.Account, claim *Claim) error
}

// LoginStore manages external login bindings.
type LoginStore interface {
	AddLogin(account *domain.Account, login *LoginInfo) error
	RemoveLogin(account *domain.Account, login *LoginInfo) error
	ListLogins(account *domain.Account) ([]LoginInfo, error)
	FindByLogin(ctx context.Context, login *LoginInfo) (*domain.Account, bool, error)
}

// CredentialStore manages the opaque credential hash.
type CredentialStore interface {
	SetCredentialHash(account *domain.Account, hash string) error
	CredentialHash(account *domain.Account) (string, error)
	HasCredential(account *domain.Account) (bool, error)
}

// SecurityStampStore manages the security stamp.
type SecurityStampStore interface {
	SetSecurityStamp(account *domain.Account, stamp string) error
	SecurityStamp(account *domain.Account) (string, error)
}

// EmailStore manages the email address and its confirmation flag.
type EmailStore interface {
	SetEmail(account *domain.Account, email string) error
	Email(account *domain.Account) (string, error)
	SetEmailConfirmed(account *domain.Account, confirmed bool) error
	EmailConfirmed(account *domain.Account) (bool, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, bool, error)
}

// PhoneNumberStore manages the phone number and its confirmation flag.
type PhoneNumberStore interface {
	SetPhoneNumber(account *domain.Account, phoneNumber string) error
	PhoneNumber(account *domain.Account) (string, error)
	SetPhoneNumberConfirmed(account *domain.Account, confirmed bool) error
	PhoneNumberConfirmed(account *domain.Account) (bool, error)
}

// TwoFactorStore manages the two-factor flag.
type TwoFactorStore interface {
	SetTwoFactorEnabled(account *domain.Account, enabled bool) error
	TwoFactorEnabled(account *domain.Account) (bool, error)
}

// LockoutStore manages lockout state and the failed access counter.
type LockoutStore interface {
	LockoutEnd(account *domain.Account) (time.Time, error)
	SetLockoutEnd(account *domain.Account, end time.Time) error
	IncrementAccessFailedCount(account *domain.Account) (int, error)
	ResetAccessFailedCount(account *domain.Account) error
	AccessFailedCount(account *domain.Account) (int, error)
	LockoutEnabled(account *domain.Account) (bool, error)
	SetLockoutEnabled(account *domain.Account, enabled bool) error
}
