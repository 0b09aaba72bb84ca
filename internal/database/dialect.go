package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// dialect covers the few places SQLite and Postgres differ: placeholders and
// where the schema version is kept.
type dialect struct {
	name       string
	rebind     func(query string) string
	getVersion func(conn *sql.DB) (int, error)
	setVersion func(conn *sql.DB, version int) error
}

var sqliteDialect = dialect{
	name:   "sqlite",
	rebind: func(query string) string { return query },
	getVersion: func(conn *sql.DB) (int, error) {
		var version int
		if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
			return 0, fmt.Errorf("reading schema version: %w", err)
		}
		return version, nil
	},
	// modernc/sqlite cannot set user_version inside a transaction.
	setVersion: func(conn *sql.DB, version int) error {
		_, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", version))
		return err
	},
}

var postgresDialect = dialect{
	name:   "postgres",
	rebind: numberPlaceholders,
	getVersion: func(conn *sql.DB) (int, error) {
		if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
			return 0, fmt.Errorf("creating schema_version: %w", err)
		}
		var version int
		err := conn.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
		if err != nil {
			return 0, fmt.Errorf("reading schema version: %w", err)
		}
		return version, nil
	},
	setVersion: func(conn *sql.DB, version int) error {
		_, err := conn.Exec(`INSERT INTO schema_version (version) VALUES ($1)`, version)
		return err
	},
}

// numberPlaceholders rewrites ? placeholders as $1, $2, ...
func numberPlaceholders(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
