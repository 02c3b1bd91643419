// Package memory provides an in-process account collection. It keeps
// documents in their encoded form so every read hands out an independent copy.
package memory

import (
	"context"
	"encoding/json"
	"iter"
	"sort"
	"sync"

	"github.com/tendant/simple-idm-docstore/pkg/domain"
	"github.com/tendant/simple-idm-docstore/pkg/storage"
)

// Collection is an in-memory storage.Collection.
type Collection struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// New creates an empty collection.
func New() *Collection {
	return &Collection{docs: make(map[string][]byte)}
}

// AddOrReplace stores the account under its id.
func (c *Collection) AddOrReplace(ctx context.Context, account *domain.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if account.ID() == "" {
		return domain.ErrMissingAccountID
	}
	doc, err := json.Marshal(account)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[account.ID()] = doc
	return nil
}

// Remove deletes the account stored under its id.
func (c *Collection) Remove(ctx context.Context, account *domain.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[account.ID()]; !ok {
		return storage.ErrNotFound
	}
	delete(c.docs, account.ID())
	return nil
}

// FindByKey returns a copy of the account stored under id.
func (c *Collection) FindByKey(ctx context.Context, id string) (*domain.Account, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	c.mu.RLock()
	doc, ok := c.docs[id]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	account, err := decode(doc)
	if err != nil {
		return nil, false, err
	}
	return account, true, nil
}

// Scan yields matching accounts in id order. It iterates over a snapshot
// taken when the range starts.
func (c *Collection) Scan(ctx context.Context, match storage.Predicate) iter.Seq2[*domain.Account, error] {
	return func(yield func(*domain.Account, error) bool) {
		for _, doc := range c.snapshot() {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			account, err := decode(doc)
			if err != nil {
				yield(nil, err)
				return
			}
			if !match.Matches(account) {
				continue
			}
			if !yield(account, nil) {
				return
			}
		}
	}
}

// EnsureCollection is a no-op; the map exists from construction.
func (c *Collection) EnsureCollection(context.Context) error {
	return nil
}

// Len returns the number of stored accounts.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

func (c *Collection) snapshot() [][]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([][]byte, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, c.docs[id])
	}
	return docs
}

func decode(doc []byte) (*domain.Account, error) {
	var account domain.Account
	if err := json.Unmarshal(doc, &account); err != nil {
		return nil, err
	}
	return &account, nil
}
