package accountstore

import (
	"context"
	"slices"

	"github.com/tendant/simple-idm-docstore/pkg/domain"
	"github.com/tendant/simple-idm-docstore/pkg/storage"
)

// Logins implements LoginStore.
type Logins struct {
	accounts storage.Collection
}

// NewLogins creates the login capability. FindByLogin scans accounts.
func NewLogins(accounts storage.Collection) *Logins {
	return &Logins{accounts: accounts}
}

// AddLogin binds an external login unless the same provider and key pair
// is already bound.
func (l *Logins) AddLogin(account *domain.Account, login *LoginInfo) error {
	if err := requireAccount(account); err != nil {
		return err
	}
	if err := requireLogin(login); err != nil {
		return err
	}
	if slices.ContainsFunc(account.Logins, matchLogin(login)) {
		return nil
	}
	account.Logins = append(account.Logins, domain.AccountLogin{
		LoginProvider: login.LoginProvider,
		ProviderKey:   login.ProviderKey,
	})
	return nil
}

// RemoveLogin removes the first binding with the same provider and key.
func (l *Logins) RemoveLogin(account *domain.Account, login *LoginInfo) error {
	if err := requireAccount(account); err != nil {
		return err
	}
	if err := requireLogin(login); err != nil {
		return err
	}
	if i := slices.IndexFunc(account.Logins, matchLogin(login)); i >= 0 {
		account.Logins = slices.Delete(account.Logins, i, i+1)
	}
	return nil
}

// ListLogins returns the account's login bindings.
func (l *Logins) ListLogins(account *domain.Account) ([]LoginInfo, error) {
	if err := requireAccount(account); err != nil {
		return nil, err
	}
	logins := make([]LoginInfo, 0, len(account.Logins))
	for _, b := range account.Logins {
		logins = append(logins, LoginInfo{LoginProvider: b.LoginProvider, ProviderKey: b.ProviderKey})
	}
	return logins, nil
}

// FindByLogin returns the first account bound to the login. It scans
// every stored account.
func (l *Logins) FindByLogin(ctx context.Context, login *LoginInfo) (*domain.Account, bool, error) {
	if err := requireLogin(login); err != nil {
		return nil, false, err
	}
	match := matchLogin(login)
	return findFirst(ctx, l.accounts, func(a *domain.Account) bool {
		return slices.ContainsFunc(a.Logins, match)
	})
}

func matchLogin(login *LoginInfo) func(domain.AccountLogin) bool {
	return func(b domain.AccountLogin) bool {
		return b.Matches(login.LoginProvider, login.ProviderKey)
	}
}
