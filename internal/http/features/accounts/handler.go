package accounts

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/simple-idm-docstore/internal/http/middleware"
	"github.com/tendant/simple-idm-docstore/internal/httputil"
	"github.com/tendant/simple-idm-docstore/pkg/accountstore"
	"github.com/tendant/simple-idm-docstore/pkg/auth"
	"github.com/tendant/simple-idm-docstore/pkg/domain"
	"github.com/tendant/simple-idm-docstore/pkg/storage"
)

// Store is every account capability the admin API uses.
type Store interface {
	accountstore.AccountStore
	accountstore.RoleStore
	accountstore.ClaimStore
	accountstore.LoginStore
	accountstore.CredentialStore
	accountstore.SecurityStampStore
	accountstore.EmailStore
	accountstore.PhoneNumberStore
	accountstore.TwoFactorStore
	accountstore.LockoutStore
}

// LockoutPolicy decides when recorded access failures lock an account.
type LockoutPolicy struct {
	MaxFailedAttempts int
	Duration          time.Duration
}

// DefaultLockoutPolicy locks for 15 minutes after 5 failures.
var DefaultLockoutPolicy = LockoutPolicy{MaxFailedAttempts: 5, Duration: 15 * time.Minute}

// Handler handles the account administration endpoints.
type Handler struct {
	logger  *slog.Logger
	store   Store
	policy  *auth.PasswordPolicy
	lockout LockoutPolicy
	now     func() time.Time
}

// NewHandler creates a new accounts handler. A nil policy accepts any password.
func NewHandler(logger *slog.Logger, store Store, policy *auth.PasswordPolicy, lockout LockoutPolicy) *Handler {
	if policy == nil {
		policy = &auth.PasswordPolicy{}
	}
	if lockout.MaxFailedAttempts <= 0 || lockout.Duration <= 0 {
		lockout = DefaultLockoutPolicy
	}
	return &Handler{
		logger:  logger,
		store:   store,
		policy:  policy,
		lockout: lockout,
		now:     time.Now,
	}
}

// CreateRequest represents an account creation request.
type CreateRequest struct {
	UserName       string   `json:"userName" validate:"required,max=256"`
	Email          string   `json:"email,omitempty" validate:"omitempty,email,max=256"`
	PhoneNumber    string   `json:"phoneNumber,omitempty" validate:"omitempty,e164"`
	Password       string   `json:"password,omitempty"`
	Roles          []string `json:"roles,omitempty" validate:"dive,required"`
	LockoutEnabled *bool    `json:"lockoutEnabled,omitempty"`
}

// UpdateRequest represents a partial account update. Changing the email
// clears its confirmation unless emailConfirmed is also sent.
type UpdateRequest struct {
	Email                *string `json:"email,omitempty" validate:"omitnil,email,max=256"`
	EmailConfirmed       *bool   `json:"emailConfirmed,omitempty"`
	PhoneNumber          *string `json:"phoneNumber,omitempty" validate:"omitnil,e164"`
	PhoneNumberConfirmed *bool   `json:"phoneNumberConfirmed,omitempty"`
	TwoFactorEnabled     *bool   `json:"twoFactorEnabled,omitempty"`
	LockoutEnabled       *bool   `json:"lockoutEnabled,omitempty"`
}

// PasswordRequest sets a new password.
type PasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

// RoleRequest adds a role.
type RoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// ClaimRequest adds a claim.
type ClaimRequest struct {
	Type  string `json:"type" validate:"required"`
	Value string `json:"value" validate:"required"`
}

// LoginRequest binds an external login.
type LoginRequest struct {
	LoginProvider string `json:"loginProvider" validate:"required"`
	ProviderKey   string `json:"providerKey" validate:"required"`
}

// LockoutRequest sets or, when lockoutEnd is null, clears the lockout end.
type LockoutRequest struct {
	LockoutEnd *time.Time `json:"lockoutEnd"`
}

// Create creates an account.
// POST /v1/accounts
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Password != "" && !h.checkPassword(w, req.Password) {
		return
	}

	_, exists, err := h.store.FindByName(r.Context(), req.UserName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if exists {
		httputil.Error(w, http.StatusConflict, "user name already in use")
		return
	}

	account := domain.NewAccount()
	account.UserName = req.UserName
	if err := h.populate(account, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.store.Create(r.Context(), account); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("account created", "account_id", account.ID(), "user_name", account.UserName, "admin", adminSubject(r))
	h.respond(w, r, http.StatusCreated, account)
}

func (h *Handler) populate(account *domain.Account, req *CreateRequest) error {
	lockoutEnabled := true
	if req.LockoutEnabled != nil {
		lockoutEnabled = *req.LockoutEnabled
	}

	if err := h.store.SetEmail(account, req.Email); err != nil {
		return err
	}
	if err := h.store.SetPhoneNumber(account, req.PhoneNumber); err != nil {
		return err
	}
	if err := h.store.SetLockoutEnabled(account, lockoutEnabled); err != nil {
		return err
	}
	for _, role := range req.Roles {
		if err := h.store.AddToRole(account, role); err != nil {
			return err
		}
	}
	if req.Password != "" {
		return h.setPassword(account, req.Password)
	}
	return h.store.SetSecurityStamp(account, auth.NewSecurityStamp())
}

// Find looks up one account by user name, email, or external login.
// GET /v1/accounts?userName=|email=|loginProvider=&providerKey=
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		account *domain.Account
		found   bool
		err     error
	)
	switch {
	case q.Get("userName") != "":
		account, found, err = h.store.FindByName(r.Context(), q.Get("userName"))
	case q.Get("email") != "":
		account, found, err = h.store.FindByEmail(r.Context(), q.Get("email"))
	case q.Get("loginProvider") != "" && q.Get("providerKey") != "":
		account, found, err = h.store.FindByLogin(r.Context(), &accountstore.LoginInfo{
			LoginProvider: q.Get("loginProvider"),
			ProviderKey:   q.Get("providerKey"),
		})
	default:
		httputil.Error(w, http.StatusBadRequest, "one of userName, email, or loginProvider with providerKey is required")
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !found {
		httputil.Error(w, http.StatusNotFound, "account not found")
		return
	}
	h.respond(w, r, http.StatusOK, account)
}

// Get returns one account.
// GET /v1/accounts/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	account, ok := h.load(w, r)
	if !ok {
		return
	}
	h.respond(w, r, http.StatusOK, account)
}

// Update applies a partial update.
// PATCH /v1/accounts/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	h.mutate(w, r, func(a *domain.Account) error {
		if req.Email != nil && *req.Email != a.Email {
			if err := h.store.SetEmail(a, *req.Email); err != nil {
				return err
			}
			if err := h.store.SetEmailConfirmed(a, false); err != nil {
				return err
			}
		}
		if req.EmailConfirmed != nil {
			if err := h.store.SetEmailConfirmed(a, *req.EmailConfirmed); err != nil {
				return err
			}
		}
		if req.PhoneNumber != nil && *req.PhoneNumber != a.PhoneNumber {
			if err := h.store.SetPhoneNumber(a, *req.PhoneNumber); err != nil {
				return err
			}
			if err := h.store.SetPhoneNumberConfirmed(a, false); err != nil {
				return err
			}
		}
		if req.PhoneNumberConfirmed != nil {
			if err := h.store.SetPhoneNumberConfirmed(a, *req.PhoneNumberConfirmed); err != nil {
				return err
			}
		}
		if req.TwoFactorEnabled != nil {
			if err := h.store.SetTwoFactorEnabled(a, *req.TwoFactorEnabled); err != nil {
				return err
			}
		}
		if req.LockoutEnabled != nil {
			return h.store.SetLockoutEnabled(a, *req.LockoutEnabled)
		}
		return nil
	})
}

// Delete removes an account.
// DELETE /v1/accounts/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	account, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), account); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("account deleted", "account_id", account.ID(), "admin", adminSubject(r))
	httputil.NoContent(w)
}

// SetPassword replaces the credential hash and rotates the security stamp.
// PUT /v1/accounts/{id}/password
func (h *Handler) SetPassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if !h.checkPassword(w, req.Password) {
		return
	}
	h.mutate(w, r, func(a *domain.Account) error {
		return h.setPassword(a, req.Password)
	})
}

// checkPassword writes a 400 listing the policy when password fails it.
func (h *Handler) checkPassword(w http.ResponseWriter, password string) bool {
	if err := h.policy.ValidatePassword(password); err != nil {
		httputil.ErrorWithDetails(w, http.StatusBadRequest, err.Error(), map[string]string{
			"password": h.policy.Requirements(),
		})
		return false
	}
	return true
}

// setPassword expects a password that already passed checkPassword.
func (h *Handler) setPassword(account *domain.Account, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := h.store.SetCredentialHash(account, hash); err != nil {
		return err
	}
	return h.store.SetSecurityStamp(account, auth.NewSecurityStamp())
}

// AddRole adds a role membership.
// POST /v1/accounts/{id}/roles
func (h *Handler) AddRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	h.mutate(w, r, func(a *domain.Account) error {
		return h.store.AddToRole(a, req.Role)
	})
}

// RemoveRole removes a role membership.
// DELETE /v1/accounts/{id}/roles/{role}
func (h *Handler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	h.mutate(w, r, func(a *domain.Account) error {
		return h.store.RemoveFromRole(a, role)
	})
}

// AddClaim adds a claim.
// POST /v1/accounts/{id}/claims
func (h *Handler) AddClaim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	h.mutate(w, r, func(a *domain.Account) error {
		return h.store.AddClaim(a, &accountstore.Claim{Type: req.Type, Value: req.Value})
	})
}

// RemoveClaim removes a claim.
// DELETE /v1/accounts/{id}/claims?type=&value=
func (h *Handler) RemoveClaim(w http.ResponseWriter, r *http.Request) {
	claimType, claimValue := r.URL.Query().Get("type"), r.URL.Query().Get("value")
	if claimType == "" || claimValue == "" {
		httputil.Error(w, http.StatusBadRequest, "type and value are required")
		return
	}
	h.mutate(w, r, func(a *domain.Account) error {
		return h.store.RemoveClaim(a, &accountstore.Claim{Type: claimType, Value: claimValue})
	})
}

// AddLogin binds an external login. A login already bound to another
// account is rejected.
// POST /v1/accounts/{id}/logins
func (h *Handler) AddLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	login := &accountstore.LoginInfo{LoginProvider: req.LoginProvider, ProviderKey: req.ProviderKey}

	owner, bound, err := h.store.FindByLogin(r.Context(), login)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if bound && owner.ID() != chi.URLParam(r, "id") {
		httputil.Error(w, http.StatusConflict, "login already bound to another account")
		return
	}

	h.mutate(w, r, func(a *domain.Account) error {
		return h.store.AddLogin(a, login)
	})
}

// RemoveLogin removes an external login binding.
// DELETE /v1/accounts/{id}/logins/{provider}/{key}
func (h *Handler) RemoveLogin(w http.ResponseWriter, r *http.Request) {
	login := &accountstore.LoginInfo{
		LoginProvider: chi.URLParam(r, "provider"),
		ProviderKey:   chi.URLParam(r, "key"),
	}
	h.mutate(w, r, func(a *domain.Account) error {
		return h.store.RemoveLogin(a, login)
	})
}

// SetLockout sets or clears the lockout end.
// PUT /v1/accounts/{id}/lockout
func (h *Handler) SetLockout(w http.ResponseWriter, r *http.Request) {
	var req LockoutRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	var end time.Time
	if req.LockoutEnd != nil {
		end = *req.LockoutEnd
	}
	h.mutate(w, r, func(a *domain.Account) error {
		return h.store.SetLockoutEnd(a, end)
	})
}

// RecordAccessFailure counts a failed access and locks the account once
// the policy threshold is reached.
// POST /v1/accounts/{id}/access-failures
func (h *Handler) RecordAccessFailure(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(a *domain.Account) error {
		count, err := h.store.IncrementAccessFailedCount(a)
		if err != nil {
			return err
		}
		enabled, err := h.store.LockoutEnabled(a)
		if err != nil {
			return err
		}
		if !enabled || count < h.lockout.MaxFailedAttempts {
			return nil
		}

		if err := h.store.SetLockoutEnd(a, h.now().Add(h.lockout.Duration)); err != nil {
			return err
		}
		h.logger.Warn("account locked out", "account_id", a.ID(), "failed_attempts", count)
		return h.store.ResetAccessFailedCount(a)
	})
}

// ResetAccessFailures resets the failed access counter.
// DELETE /v1/accounts/{id}/access-failures
func (h *Handler) ResetAccessFailures(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(a *domain.Account) error {
		return h.store.ResetAccessFailedCount(a)
	})
}

// load fetches the account named by the id path parameter, writing a 404
// when it does not exist.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*domain.Account, bool) {
	account, found, err := h.store.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	if !found {
		httputil.Error(w, http.StatusNotFound, "account not found")
		return nil, false
	}
	return account, true
}

// mutate runs the look up, change, Update cycle and responds with the
// updated account.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, change func(*domain.Account) error) {
	account, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := change(account); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.Update(r.Context(), account); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, account)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, account *domain.Account) {
	resp, err := h.toResponse(account)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.JSON(w, status, resp)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		httputil.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		httputil.Error(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		httputil.Error(w, http.StatusNotFound, "account not found")
	case errors.Is(err, context.Canceled):
		h.logger.Debug("request canceled", "path", r.URL.Path)
	default:
		h.logger.Error("account request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		httputil.Error(w, http.StatusInternalServerError, "internal server error")
	}
}

// adminSubject names the admin token behind the request, if any.
func adminSubject(r *http.Request) string {
	if claims, ok := middleware.GetClaims(r.Context()); ok {
		return claims.Subject
	}
	return ""
}
