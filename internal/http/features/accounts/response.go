package accounts

import (
	"time"

	"github.com/tendant/simple-idm-docstore/pkg/domain"
)

// AccountResponse is the admin view of an account. The credential hash and
// security stamp are never exposed.
type AccountResponse struct {
	ID                   string          `json:"id"`
	UserName             string          `json:"userName"`
	Email                string          `json:"email"`
	EmailConfirmed       bool            `json:"emailConfirmed"`
	PhoneNumber          string          `json:"phoneNumber"`
	PhoneNumberConfirmed bool            `json:"phoneNumberConfirmed"`
	HasCredential        bool            `json:"hasCredential"`
	TwoFactorEnabled     bool            `json:"twoFactorEnabled"`
	LockoutEnabled       bool            `json:"lockoutEnabled"`
	LockoutEnd           *time.Time      `json:"lockoutEnd,omitempty"`
	LockedOut            bool            `json:"lockedOut"`
	AccessFailedCount    int             `json:"accessFailedCount"`
	Roles                []string        `json:"roles"`
	Claims               []ClaimResponse `json:"claims"`
	Logins               []LoginResponse `json:"logins"`
}

// ClaimResponse is one claim in an AccountResponse.
type ClaimResponse struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// LoginResponse is one external login in an AccountResponse.
type LoginResponse struct {
	LoginProvider string `json:"loginProvider"`
	ProviderKey   string `json:"providerKey"`
}

func (h *Handler) toResponse(a *domain.Account) (*AccountResponse, error) {
	roles, err := h.store.ListRoles(a)
	if err != nil {
		return nil, err
	}
	claims, err := h.store.ListClaims(a)
	if err != nil {
		return nil, err
	}
	logins, err := h.store.ListLogins(a)
	if err != nil {
		return nil, err
	}
	hasCredential, err := h.store.HasCredential(a)
	if err != nil {
		return nil, err
	}
	lockoutEnd, err := h.store.LockoutEnd(a)
	if err != nil {
		return nil, err
	}
	failures, err := h.store.AccessFailedCount(a)
	if err != nil {
		return nil, err
	}

	resp := &AccountResponse{
		ID:                   a.ID(),
		UserName:             a.UserName,
		Email:                a.Email,
		EmailConfirmed:       a.EmailConfirmed,
		PhoneNumber:          a.PhoneNumber,
		PhoneNumberConfirmed: a.PhoneNumberConfirmed,
		HasCredential:        hasCredential,
		TwoFactorEnabled:     a.TwoFactorEnabled,
		LockoutEnabled:       a.LockoutEnabled,
		LockedOut:            a.IsLockedOut(h.now()),
		AccessFailedCount:    failures,
		Roles:                roles,
		Claims:               make([]ClaimResponse, 0, len(claims)),
		Logins:               make([]LoginResponse, 0, len(logins)),
	}
	if !lockoutEnd.IsZero() {
		resp.LockoutEnd = &lockoutEnd
	}
	for _, c := range claims {
		resp.Claims = append(resp.Claims, ClaimResponse{Type: c.Type, Value: c.Value})
	}
	for _, l := range logins {
		resp.Logins = append(resp.Logins, LoginResponse{LoginProvider: l.LoginProvider, ProviderKey: l.ProviderKey})
	}
	return resp, nil
}
