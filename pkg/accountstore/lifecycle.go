package accountstore

import (
	"context"

	"github.com/tendant/simple-idm-docstore/pkg/domain"
	"github.com/tendant/simple-idm-docstore/pkg/storage"
)

// Lifecycle implements AccountStore.
type Lifecycle struct {
	accounts storage.Collection
}

// NewLifecycle creates the lifecycle capability over accounts.
func NewLifecycle(accounts storage.Collection) *Lifecycle {
	return &Lifecycle{accounts: accounts}
}

// Create persists a new account.
func (l *Lifecycle) Create(ctx context.Context, account *domain.Account) error {
	if err := requireStorable(account); err != nil {
		return err
	}
	return l.accounts.AddOrReplace(ctx, account)
}

// Update persists an existing account, replacing the stored copy.
func (l *Lifecycle) Update(ctx context.Context, account *domain.Account) error {
	if err := requireStorable(account); err != nil {
		return err
	}
	return l.accounts.AddOrReplace(ctx, account)
}

// Delete removes the stored account with the same id.
func (l *Lifecycle) Delete(ctx context.Context, account *domain.Account) error {
	if err := requireStorable(account); err != nil {
		return err
	}
	return l.accounts.Remove(ctx, account)
}

// FindByID looks up an account by id.
func (l *Lifecycle) FindByID(ctx context.Context, id string) (*domain.Account, bool, error) {
	return l.accounts.FindByKey(ctx, id)
}

// FindByName returns the first account whose user name equals name
// exactly. It scans every stored account.
func (l *Lifecycle) FindByName(ctx context.Context, name string) (*domain.Account, bool, error) {
	return findFirst(ctx, l.accounts, func(a *domain.Account) bool {
		return a.UserName == name
	})
}

// findFirst returns the first account the scan yields.
func findFirst(ctx context.Context, accounts storage.Collection, match storage.Predicate) (*domain.Account, bool, error) {
	for account, err := range accounts.Scan(ctx, match) {
		if err != nil {
			return nil, false, err
		}
		return account, true, nil
	}
	return nil, false, nil
}
