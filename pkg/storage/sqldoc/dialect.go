package sqldoc

import (
	"fmt"
	"regexp"
)

// Dialect holds the SQL differences between supported databases.
type Dialect struct {
	// Name identifies the dialect in logs and errors.
	Name string
	// DriverName is the database/sql driver the dialect expects.
	DriverName string

	createTable string
	upsert      string
	selectByID  string
	deleteByID  string
	selectAll   string
}

// Postgres stores documents in a JSONB column. Register the driver with
// a blank import of github.com/lib/pq (OpenPostgres does this).
var Postgres = Dialect{
	Name:       "postgres",
	DriverName: "postgres",

	createTable: `
		CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			doc        JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`,
	upsert: `
		INSERT INTO %s (id, doc, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at
	`,
	selectByID: `SELECT doc FROM %s WHERE id = $1`,
	deleteByID: `DELETE FROM %s WHERE id = $1`,
	selectAll:  `SELECT doc FROM %s ORDER BY id`,
}

// SQLite stores documents as JSON text.
var SQLite = Dialect{
	Name:       "sqlite",
	DriverName: "sqlite",

	createTable: `
		CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			doc        TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`,
	upsert: `
		INSERT INTO %s (id, doc, updated_at)
		VALUES (?1, ?2, ?3)
		ON CONFLICT (id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at
	`,
	selectByID: `SELECT doc FROM %s WHERE id = ?1`,
	deleteByID: `DELETE FROM %s WHERE id = ?1`,
	selectAll:  `SELECT doc FROM %s ORDER BY id`,
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// queries are the dialect statements bound to one table.
type queries struct {
	createTable string
	upsert      string
	selectByID  string
	deleteByID  string
	selectAll   string
}

func (d Dialect) bind(table string) (queries, error) {
	if d.upsert == "" {
		return queries{}, fmt.Errorf("sqldoc: unknown dialect %q", d.Name)
	}
	if !tableNamePattern.MatchString(table) {
		return queries{}, fmt.Errorf("sqldoc: invalid table name %q", table)
	}
	return queries{
		createTable: fmt.Sprintf(d.createTable, table),
		upsert:      fmt.Sprintf(d.upsert, table),
		selectByID:  fmt.Sprintf(d.selectByID, table),
		deleteByID:  fmt.Sprintf(d.deleteByID, table),
		selectAll:   fmt.Sprintf(d.selectAll, table),
	}, nil
}
