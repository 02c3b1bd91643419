package accountstore

import (
	"fmt"

	"github.com/tendant/simple-idm-docstore/pkg/domain"
)

func requireAccount(account *domain.Account) error {
	if account == nil {
		return fmt.Errorf("%w: account is nil", domain.ErrInvalidArgument)
	}
	return nil
}

// requireStorable also rejects an account with no id, which could never be
// decoded again once written.
func requireStorable(account *domain.Account) error {
	if err := requireAccount(account); err != nil {
		return err
	}
	if account.ID() == "" {
		return fmt.Errorf("%w: account has no id", domain.ErrInvalidArgument)
	}
	return nil
}

func requireClaim(claim *Claim) error {
	if claim == nil {
		return fmt.Errorf("%w: claim is nil", domain.ErrInvalidArgument)
	}
	return nil
}

func requireLogin(login *LoginInfo) error {
	if login == nil {
		return fmt.Errorf("%w: login is nil", domain.ErrInvalidArgument)
	}
	return nil
}
