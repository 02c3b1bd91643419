// Package storage defines the document collection that account stores
// persist through, and the errors its implementations share.
package storage

//go:generate mockgen -source=storage.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"iter"

	"github.com/tendant/simple-idm-docstore/pkg/domain"
)

// ErrNotFound is returned when a write targets an account that is not stored.
var ErrNotFound = errors.New("account not found")

// Predicate selects accounts during a Scan. A nil Predicate matches every account.
type Predicate func(*domain.Account) bool

// Collection is a document collection of accounts keyed by account id.
//
// Implementations return a freshly decoded copy on every read and never
// cache. Writes are add-or-replace with no version check, so two concurrent
// update cycles on stale copies resolve as last write wins.
type Collection interface {
	// AddOrReplace stores the account under its id.
	AddOrReplace(ctx context.Context, account *domain.Account) error
	// Remove deletes the account stored under its id.
	Remove(ctx context.Context, account *domain.Account) error
	// FindByKey returns the account stored under id, or false if none is.
	FindByKey(ctx context.Context, id string) (*domain.Account, bool, error)
	// Scan lazily yields every stored account accepted by match. The
	// sequence is finite and single-pass; breaking out of the range
	// releases the underlying cursor.
	Scan(ctx context.Context, match Predicate) iter.Seq2[*domain.Account, error]
}

// Provisioner is implemented by collections that need their backing
// table or keyspace created before use.
type Provisioner interface {
	EnsureCollection(ctx context.Context) error
}

// Matches reports whether p accepts account, treating a nil p as match-all.
func (p Predicate) Matches(account *domain.Account) bool {
	return p == nil || p(account)
}
