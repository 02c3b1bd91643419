package auth

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/tendant/simple-idm-docstore/internal/config"
	"github.com/tendant/simple-idm-docstore/pkg/domain"
)

// PasswordPolicy defines password complexity requirements checked before a
// password is hashed onto an account.
type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// NewPasswordPolicy creates a PasswordPolicy from config.
func NewPasswordPolicy(cfg config.PasswordPolicyConfig) *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:        cfg.MinLength,
		RequireUppercase: cfg.RequireUppercase,
		RequireLowercase: cfg.RequireLowercase,
		RequireNumber:    cfg.RequireNumber,
		RequireSpecial:   cfg.RequireSpecial,
	}
}

// ValidatePassword checks the password against the policy. Violations wrap
// domain.ErrInvalidArgument.
func (p *PasswordPolicy) ValidatePassword(password string) error {
	if p.MinLength > 0 && len([]rune(password)) < p.MinLength {
		return fmt.Errorf("%w: password must be at least %d characters long", domain.ErrInvalidArgument, p.MinLength)
	}

	checks := []struct {
		required bool
		has      func(rune) bool
		what     string
	}{
		{p.RequireUppercase, unicode.IsUpper, "one uppercase letter"},
		{p.RequireLowercase, unicode.IsLower, "one lowercase letter"},
		{p.RequireNumber, unicode.IsDigit, "one number"},
		{p.RequireSpecial, isSpecial, "one special character"},
	}
	for _, c := range checks {
		if c.required && !strings.ContainsFunc(password, c.has) {
			return fmt.Errorf("%w: password must contain at least %s", domain.ErrInvalidArgument, c.what)
		}
	}
	return nil
}

// Requirements returns a human-readable description of the policy.
func (p *PasswordPolicy) Requirements() string {
	if !p.HasRequirements() {
		return "No password requirements"
	}

	var requirements []string
	if p.MinLength > 0 {
		requirements = append(requirements, fmt.Sprintf("at least %d characters", p.MinLength))
	}
	if p.RequireUppercase {
		requirements = append(requirements, "one uppercase letter")
	}
	if p.RequireLowercase {
		requirements = append(requirements, "one lowercase letter")
	}
	if p.RequireNumber {
		requirements = append(requirements, "one number")
	}
	if p.RequireSpecial {
		requirements = append(requirements, "one special character")
	}
	return "Password must contain " + strings.Join(requirements, ", ")
}

// HasRequirements returns true if the policy has any requirements.
func (p *PasswordPolicy) HasRequirements() bool {
	return p.MinLength > 0 || p.RequireUppercase || p.RequireLowercase || p.RequireNumber || p.RequireSpecial
}

func isSpecial(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
}
