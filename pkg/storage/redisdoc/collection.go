// Package redisdoc stores accounts as JSON strings in Redis, with a set of
// account ids that Scan walks.
package redisdoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/redis/go-redis/v9"

	"github.com/tendant/simple-idm-docstore/pkg/domain"
	"github.com/tendant/simple-idm-docstore/pkg/storage"
)

const scanBatchSize = 100

// Collection is a storage.Collection backed by Redis.
type Collection struct {
	rdb    redis.UniversalClient
	prefix string
}

// New creates a collection whose keys all start with prefix. The client is
// owned by the caller.
func New(rdb redis.UniversalClient, prefix string) *Collection {
	return &Collection{rdb: rdb, prefix: prefix}
}

// NewClient parses a redis:// URL and verifies the server answers.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (c *Collection) accountKey(id string) string {
	return c.prefix + "account:" + id
}

func (c *Collection) indexKey() string {
	return c.prefix + "accounts"
}

// EnsureCollection is a no-op; Redis creates keys on first write.
func (c *Collection) EnsureCollection(context.Context) error {
	return nil
}

// AddOrReplace writes the document and indexes its id in one transaction.
func (c *Collection) AddOrReplace(ctx context.Context, account *domain.Account) error {
	if account.ID() == "" {
		return domain.ErrMissingAccountID
	}
	doc, err := json.Marshal(account)
	if err != nil {
		return err
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.accountKey(account.ID()), doc, 0)
		pipe.SAdd(ctx, c.indexKey(), account.ID())
		return nil
	})
	return err
}

// Remove deletes the document and its index entry in one transaction.
func (c *Collection) Remove(ctx context.Context, account *domain.Account) error {
	var del *redis.IntCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, c.accountKey(account.ID()))
		pipe.SRem(ctx, c.indexKey(), account.ID())
		return nil
	})
	if err != nil {
		return err
	}
	if del.Val() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// FindByKey retrieves an account by id.
func (c *Collection) FindByKey(ctx context.Context, id string) (*domain.Account, bool, error) {
	doc, err := c.rdb.Get(ctx, c.accountKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	account, err := decode(doc)
	if err != nil {
		return nil, false, err
	}
	return account, true, nil
}

// Scan walks the id set with SSCAN and loads each document. Ids whose
// document disappeared since the walk started are skipped, as are ids SSCAN
// returns more than once. Order is unspecified.
func (c *Collection) Scan(ctx context.Context, match storage.Predicate) iter.Seq2[*domain.Account, error] {
	return func(yield func(*domain.Account, error) bool) {
		seen := make(map[string]struct{})
		ids := c.rdb.SScan(ctx, c.indexKey(), 0, "", scanBatchSize).Iterator()
		for ids.Next(ctx) {
			id := ids.Val()
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			account, ok, err := c.FindByKey(ctx, id)
			if err != nil {
				yield(nil, err)
				return
			}
			if !ok || !match.Matches(account) {
				continue
			}
			if !yield(account, nil) {
				return
			}
		}
		if err := ids.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func decode(doc []byte) (*domain.Account, error) {
	var account domain.Account
	if err := json.Unmarshal(doc, &account); err != nil {
		return nil, err
	}
	return &account, nil
}
