// Package sqldoc stores accounts as JSON documents in a single SQL table
// keyed by account id. Lookups by anything other than id scan the table.
package sqldoc

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"iter"
	"time"

	"github.com/tendant/simple-idm-docstore/pkg/domain"
	"github.com/tendant/simple-idm-docstore/pkg/storage"
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "accounts"

// Collection is a storage.Collection backed by database/sql.
type Collection struct {
	db      *sql.DB
	dialect Dialect
	q       queries
}

// New creates a collection over table using dialect. The database handle
// is owned by the caller.
func New(db *sql.DB, dialect Dialect, table string) (*Collection, error) {
	if table == "" {
		table = DefaultTable
	}
	q, err := dialect.bind(table)
	if err != nil {
		return nil, err
	}
	return &Collection{db: db, dialect: dialect, q: q}, nil
}

// Dialect returns the dialect the collection was created with.
func (c *Collection) Dialect() Dialect {
	return c.dialect
}

// EnsureCollection creates the documents table if it does not exist.
func (c *Collection) EnsureCollection(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, c.q.createTable)
	return err
}

// AddOrReplace upserts the account document.
func (c *Collection) AddOrReplace(ctx context.Context, account *domain.Account) error {
	if account.ID() == "" {
		return domain.ErrMissingAccountID
	}
	doc, err := json.Marshal(account)
	if err != nil {
		return err
	}
	// TODO: add a version column and a conditional update once callers carry an etag.
	_, err = c.db.ExecContext(ctx, c.q.upsert, account.ID(), string(doc), time.Now().UTC())
	return err
}

// Remove deletes the account document.
func (c *Collection) Remove(ctx context.Context, account *domain.Account) error {
	result, err := c.db.ExecContext(ctx, c.q.deleteByID, account.ID())
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// FindByKey retrieves an account by id.
func (c *Collection) FindByKey(ctx context.Context, id string) (*domain.Account, bool, error) {
	var doc []byte
	err := c.db.QueryRowContext(ctx, c.q.selectByID, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
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

// Scan streams every document in id order and yields those match accepts.
// The rows are closed when the range ends, including on break.
func (c *Collection) Scan(ctx context.Context, match storage.Predicate) iter.Seq2[*domain.Account, error] {
	return func(yield func(*domain.Account, error) bool) {
		rows, err := c.db.QueryContext(ctx, c.q.selectAll)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var doc []byte
			if err := rows.Scan(&doc); err != nil {
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
		if err := rows.Err(); err != nil {
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
