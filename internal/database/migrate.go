package database

import (
	"database/sql"
	"fmt"
	"log"
)

// getSchemaVersion reads the applied schema version for the dialect.
func getSchemaVersion(conn *sql.DB, d dialect) (int, error) {
	return d.getVersion(conn)
}

// migrate brings the database schema up to the latest version.
func migrate(conn *sql.DB, d dialect) error {
	current, err := getSchemaVersion(conn, d)
	if err != nil {
		return err
	}

	latest := latestVersion()
	if current >= latest {
		return nil
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		log.Printf("applying %s migration %d: %s", d.name, m.Version, m.Description)

		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if err := m.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		// Recorded outside the transaction; the DDL is idempotent so a crash
		// here only re-runs the step.
		if err := d.setVersion(conn, m.Version); err != nil {
			return fmt.Errorf("setting version %d: %w", m.Version, err)
		}
	}

	return nil
}
