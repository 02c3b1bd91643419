package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Account is the persisted identity aggregate: credentials, contact
// confirmation flags, lockout state, role memberships, external login
// bindings, and claims.
//
// An Account is an ordinary mutable value. Concurrent mutation of the same
// instance must be serialized by the caller.
type Account struct {
	id string

	UserName             string
	Email                string
	EmailConfirmed       bool
	PhoneNumber          string
	PhoneNumberConfirmed bool

	// CredentialHash is produced elsewhere; empty means no credential.
	CredentialHash string
	SecurityStamp  string

	TwoFactorEnabled  bool
	LockoutEnabled    bool
	LockoutEndUTC     *time.Time
	AccessFailedCount int

	Roles  []string
	Claims []AccountClaim
	Logins []AccountLogin
}

// AccountClaim is a stored claim. Two claims are the same when both type and
// value match.
type AccountClaim struct {
	ClaimType  string `json:"claimType"`
	ClaimValue string `json:"claimValue"`
}

// Matches reports whether c has the given type and value.
func (c AccountClaim) Matches(claimType, claimValue string) bool {
	return c.ClaimType == claimType && c.ClaimValue == claimValue
}

// AccountLogin binds an account to an external identity provider. Two
// logins are the same when both provider and key match.
type AccountLogin struct {
	LoginProvider string `json:"loginProvider"`
	ProviderKey   string `json:"providerKey"`
}

// Matches reports whether l has the given provider and key.
func (l AccountLogin) Matches(provider, key string) bool {
	return l.LoginProvider == provider && l.ProviderKey == key
}

// NewAccount returns an account with a freshly generated id and empty
// role, claim and login collections.
func NewAccount() *Account {
	return &Account{
		id:     uuid.NewString(),
		Roles:  []string{},
		Claims: []AccountClaim{},
		Logins: []AccountLogin{},
	}
}

// ID returns the account identifier assigned at construction.
func (a *Account) ID() string {
	return a.id
}

// IsLockedOut returns true if lockout is enabled and the lockout end lies
// after now.
func (a *Account) IsLockedOut(now time.Time) bool {
	if !a.LockoutEnabled || a.LockoutEndUTC == nil {
		return false
	}
	return now.Before(*a.LockoutEndUTC)
}

// accountDocument is the stored shape of an Account.
type accountDocument struct {
	ID                   string         `json:"id"`
	UserName             string         `json:"userName"`
	Email                string         `json:"email"`
	EmailConfirmed       bool           `json:"emailConfirmed"`
	PhoneNumber          string         `json:"phoneNumber"`
	PhoneNumberConfirmed bool           `json:"phoneNumberConfirmed"`
	CredentialHash       string         `json:"credentialHash,omitempty"`
	SecurityStamp        string         `json:"securityStamp,omitempty"`
	TwoFactorEnabled     bool           `json:"twoFactorEnabled"`
	LockoutEnabled       bool           `json:"lockoutEnabled"`
	LockoutEndUTC        *time.Time     `json:"lockoutEndDateUtc,omitempty"`
	AccessFailedCount    int            `json:"accessFailedCount"`
	Roles                []string       `json:"roles"`
	Claims               []AccountClaim `json:"claims"`
	Logins               []AccountLogin `json:"logins"`
}

// MarshalJSON encodes the account as a storage document.
func (a *Account) MarshalJSON() ([]byte, error) {
	return json.Marshal(accountDocument{
		ID:                   a.id,
		UserName:             a.UserName,
		Email:                a.Email,
		EmailConfirmed:       a.EmailConfirmed,
		PhoneNumber:          a.PhoneNumber,
		PhoneNumberConfirmed: a.PhoneNumberConfirmed,
		CredentialHash:       a.CredentialHash,
		SecurityStamp:        a.SecurityStamp,
		TwoFactorEnabled:     a.TwoFactorEnabled,
		LockoutEnabled:       a.LockoutEnabled,
		LockoutEndUTC:        a.LockoutEndUTC,
		AccessFailedCount:    a.AccessFailedCount,
		Roles:                nonNil(a.Roles),
		Claims:               nonNil(a.Claims),
		Logins:               nonNil(a.Logins),
	})
}

// UnmarshalJSON decodes a storage document. Missing collections decode as
// empty, never nil.
func (a *Account) UnmarshalJSON(data []byte) error {
	var doc accountDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.ID == "" {
		return ErrMissingAccountID
	}

	var lockoutEnd *time.Time
	if doc.LockoutEndUTC != nil {
		end := doc.LockoutEndUTC.UTC()
		lockoutEnd = &end
	}

	*a = Account{
		id:                   doc.ID,
		UserName:             doc.UserName,
		Email:                doc.Email,
		EmailConfirmed:       doc.EmailConfirmed,
		PhoneNumber:          doc.PhoneNumber,
		PhoneNumberConfirmed: doc.PhoneNumberConfirmed,
		CredentialHash:       doc.CredentialHash,
		SecurityStamp:        doc.SecurityStamp,
		TwoFactorEnabled:     doc.TwoFactorEnabled,
		LockoutEnabled:       doc.LockoutEnabled,
		LockoutEndUTC:        lockoutEnd,
		AccessFailedCount:    doc.AccessFailedCount,
		Roles:                nonNil(doc.Roles),
		Claims:               nonNil(doc.Claims),
		Logins:               nonNil(doc.Logins),
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
