package accountstore

import (
	"time"

	"github.com/tendant/simple-idm-docstore/pkg/domain"
)

// Lockout implements LockoutStore.
//
// The zero time.Time means "no lockout": LockoutEnd returns it when nothing
// is stored, and SetLockoutEnd with it clears the stored value.
type Lockout struct{}

// LockoutEnd returns the stored lockout end in UTC, or the zero time.
func (Lockout) LockoutEnd(account *domain.Account) (time.Time, error) {
	if err := requireAccount(account); err != nil {
		return time.Time{}, err
	}
	if account.LockoutEndUTC == nil {
		return time.Time{}, nil
	}
	return account.LockoutEndUTC.UTC(), nil
}

// SetLockoutEnd stores end as UTC, or clears the lockout if end is zero.
func (Lockout) SetLockoutEnd(account *domain.Account, end time.Time) error {
	if err := requireAccount(account); err != nil {
		return err
	}
	if end.IsZero() {
		account.LockoutEndUTC = nil
		return nil
	}
	utc := end.UTC()
	account.LockoutEndUTC = &utc
	return nil
}

// IncrementAccessFailedCount adds one to the failed access counter and
// returns the new value.
func (Lockout) IncrementAccessFailedCount(account *domain.Account) (int, error) {
	if err := requireAccount(account); err != nil {
		return 0, err
	}
	account.AccessFailedCount++
	return account.AccessFailedCount, nil
}

func (Lockout) ResetAccessFailedCount(account *domain.Account) error {
	if err := requireAccount(account); err != nil {
		return err
	}
	account.AccessFailedCount = 0
	return nil
}

func (Lockout) AccessFailedCount(account *domain.Account) (int, error) {
	if err := requireAccount(account); err != nil {
		return 0, err
	}
	return account.AccessFailedCount, nil
}

func (Lockout) LockoutEnabled(account *domain.Account) (bool, error) {
	if err := requireAccount(account); err != nil {
		return false, err
	}
	return account.LockoutEnabled, nil
}

func (Lockout) SetLockoutEnabled(account *domain.Account, enabled bool) error {
	if err := requireAccount(account); err != nil {
		return err
	}
	account.LockoutEnabled = enabled
	return nil
}
