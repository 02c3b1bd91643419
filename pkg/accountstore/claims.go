package accountstore

import (
	"slices"

	"github.com/tendant/simple-idm-docstore/pkg/domain"
)

// Claims implements ClaimStore. A claim is identified by its type and
// value; issuers are not stored.
type Claims struct{}

// ListClaims returns the account's claims with an empty issuer.
func (Claims) ListClaims(account *domain.Account) ([]Claim, error) {
	if err := requireAccount(account); err != nil {
		return nil, err
	}
	claims := make([]Claim, 0, len(account.Claims))
	for _, c := range account.Claims {
		claims = append(claims, Claim{Type: c.ClaimType, Value: c.ClaimValue})
	}
	return claims, nil
}

// AddClaim adds the claim unless an equal type and value pair is present.
func (Claims) AddClaim(account *domain.Account, claim *Claim) error {
	if err := requireAccount(account); err != nil {
		return err
	}
	if err := requireClaim(claim); err != nil {
		return err
	}
	if slices.ContainsFunc(account.Claims, matchClaim(claim)) {
		return nil
	}
	account.Claims = append(account.Claims, domain.AccountClaim{
		ClaimType:  claim.Type,
		ClaimValue: claim.Value,
	})
	return nil
}

// RemoveClaim removes the first claim with the same type and value.
func (Claims) RemoveClaim(account *domain.Account, claim *Claim) error {
	if err := requireAccount(account); err != nil {
		return err
	}
	if err := requireClaim(claim); err != nil {
		return err
	}
	if i := slices.IndexFunc(account.Claims, matchClaim(claim)); i >= 0 {
		account.Claims = slices.Delete(account.Claims, i, i+1)
	}
	return nil
}

func matchClaim(claim *Claim) func(domain.AccountClaim) bool {
	return func(c domain.AccountClaim) bool {
		return c.Matches(claim.Type, claim.Value)
	}
}
