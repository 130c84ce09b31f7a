// store/sqlstore/queries.go
package sqlstore

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/qustavo/dotsql"
)

//go:embed queries/*.sql
var queriesFS embed.FS

// Queries provides access to the named SQL statements loaded from the
// embedded .sql files. Dynamic WHERE and SET clauses produced by the
// translator are appended to the raw text of the base statements.
type Queries struct {
	dot *dotsql.DotSql
	db  *sqlx.DB
}

// LoadQueries parses every embedded .sql file into named statements.
func LoadQueries(db *sqlx.DB) (*Queries, error) {
	var combinedSQL string

	err := fs.WalkDir(queriesFS, "queries", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".sql" {
			return nil
		}
		content, err := queriesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		combinedSQL += string(content) + "\n"
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load query files: %w", err)
	}

	dot, err := dotsql.LoadFromString(combinedSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse queries: %w", err)
	}

	return &Queries{dot: dot, db: db}, nil
}

// Raw returns the text of a named statement for dynamic composition.
func (q *Queries) Raw(name string) (string, error) {
	text, err := q.dot.Raw(name)
	if err != nil {
		return "", fmt.Errorf("query not found: %s", name)
	}
	return text, nil
}

// Exec runs a named statement, rebinding ? placeholders for the driver.
func (q *Queries) Exec(name string, args ...interface{}) (sql.Result, error) {
	text, err := q.Raw(name)
	if err != nil {
		return nil, err
	}
	return q.db.Exec(q.db.Rebind(text), args...)
}

// Get scans a single row from a named statement into dest.
func (q *Queries) Get(name string, dest interface{}, args ...interface{}) error {
	text, err := q.Raw(name)
	if err != nil {
		return err
	}
	return q.db.Get(dest, q.db.Rebind(text), args...)
}

// Select scans all rows from a named statement into dest.
func (q *Queries) Select(name string, dest interface{}, args ...interface{}) error {
	text, err := q.Raw(name)
	if err != nil {
		return err
	}
	return q.db.Select(dest, q.db.Rebind(text), args...)
}

// Migrate creates the document schema for the connection's driver.
// Statements use IF NOT EXISTS so repeated runs are harmless.
func Migrate(db *sqlx.DB) error {
	q, err := LoadQueries(db)
	if err != nil {
		return err
	}

	var names []string
	switch db.DriverName() {
	case "sqlite3":
		names = []string{"create-documents-table-sqlite"}
	case "postgres":
		names = []string{"create-documents-table-postgres"}
	default:
		return fmt.Errorf("unsupported database driver: %s", db.DriverName())
	}

	for _, name := range names {
		if _, err := q.Exec(name); err != nil {
			return fmt.Errorf("migration %s failed: %w", name, err)
		}
	}
	return nil
}
