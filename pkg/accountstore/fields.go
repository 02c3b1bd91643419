package accountstore

import (
	"context"

	"github.com/tendant/simple-idm-docstore/pkg/domain"
	"github.com/tendant/simple-idm-docstore/pkg/storage"
)

// Credentials implements CredentialStore. The hash is opaque here.
type Credentials struct{}

func (Credentials) SetCredentialHash(account *domain.Account, hash string) error {
	if err := requireAccount(account); err != nil {
		return err
	}
	account.CredentialHash = hash
	return nil
}

func (Credentials) CredentialHash(account *domain.Account) (string, error) {
	if err := requireAccount(account); err != nil {
		return "", err
	}
	return account.CredentialHash, nil
}

// HasCredential reports whether a non-empty credential hash is set.
func (Credentials) HasCredential(account *domain.Account) (bool, error) {
	if err := requireAccount(account); err != nil {
		return false, err
	}
	return account.CredentialHash != "", nil
}

// SecurityStamps implements SecurityStampStore.
type SecurityStamps struct{}

func (SecurityStamps) SetSecurityStamp(account *domain.Account, stamp string) error {
	if err := requireAccount(account); err != nil {
		return err
	}
	account.SecurityStamp = stamp
	return nil
}

func (SecurityStamps) SecurityStamp(account *domain.Account) (string, error) {
	if err := requireAccount(account); err != nil {
		return "", err
	}
	return account.SecurityStamp, nil
}

// Emails implements EmailStore.
type Emails struct {
	accounts storage.Collection
}

// NewEmails creates the email capability. FindByEmail scans accounts.
func NewEmails(accounts storage.Collection) *Emails {
	return &Emails{accounts: accounts}
}

func (e *Emails) SetEmail(account *domain.Account, email string) error {
	if err := requireAccount(account); err != nil {
		return err
	}
	account.Email = email
	return nil
}

func (e *Emails) Email(account *domain.Account) (string, error) {
	if err := requireAccount(account); err != nil {
		return "", err
	}
	return account.Email, nil
}

func (e *Emails) SetEmailConfirmed(account *domain.Account, confirmed bool) error {
	if err := requireAccount(account); err != nil {
		return err
	}
	account.EmailConfirmed = confirmed
	return nil
}

func (e *Emails) EmailConfirmed(account *domain.Account) (bool, error) {
	if err := requireAccount(account); err != nil {
		return false, err
	}
	return account.EmailConfirmed, nil
}

// FindByEmail returns the first account whose email equals email exactly.
func (e *Emails) FindByEmail(ctx context.Context, email string) (*domain.Account, bool, error) {
	return findFirst(ctx, e.accounts, func(a *domain.Account) bool {
		return a.Email == email
	})
}

// PhoneNumbers implements PhoneNumberStore.
type PhoneNumbers struct{}

func (PhoneNumbers) SetPhoneNumber(account *domain.Account, phoneNumber string) error {
	if err := requireAccount(account); err != nil {
		return err
	}
	account.PhoneNumber = phoneNumber
	return nil
}

func (PhoneNumbers) PhoneNumber(account *domain.Account) (string, error) {
	if err := requireAccount(account); err != nil {
		return "", err
	}
	return account.PhoneNumber, nil
}

func (PhoneNumbers) SetPhoneNumberConfirmed(account *domain.Account, confirmed bool) error {
	if err := requireAccount(account); err != nil {
		return err
	}
	account.PhoneNumberConfirmed = confirmed
	return nil
}

func (PhoneNumbers) PhoneNumberConfirmed(account *domain.Account) (bool, error) {
	if err := requireAccount(account); err != nil {
		return false, err
	}
	return account.PhoneNumberConfirmed, nil
}

// TwoFactor implements TwoFactorStore.
type TwoFactor struct{}

func (TwoFactor) SetTwoFactorEnabled(account *domain.Account, enabled bool) error {
	if err := requireAccount(account); err != nil {
		return err
	}
	account.TwoFactorEnabled = enabled
	return nil
}

func (TwoFactor) TwoFactorEnabled(account *domain.Account) (bool, error) {
	if err := requireAccount(account); err != nil {
		return false, err
	}
	return account.TwoFactorEnabled, nil
}
