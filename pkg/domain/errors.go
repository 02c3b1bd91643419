package domain

import "errors"

// Argument and state errors returned by the account store capabilities.
var (
	// ErrInvalidArgument reports a required account, claim or login that was nil.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidState reports a role name missing from the role registry.
	ErrInvalidState = errors.New("invalid state")
)

// Document errors
var (
	ErrMissingAccountID = errors.New("account document has no id")
)
