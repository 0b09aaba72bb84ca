package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations. The DDL is kept
// to types both SQLite and Postgres accept. Append new migrations to the end
// with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "daily reports",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS daily_reports (
    id TEXT PRIMARY KEY,
    report_date TEXT NOT NULL,
    project TEXT NOT NULL,
    author TEXT NOT NULL DEFAULT '',
    weather TEXT NOT NULL DEFAULT '',
    crew_counts TEXT NOT NULL DEFAULT '[]',
    equipment TEXT NOT NULL DEFAULT '[]',
    activities TEXT NOT NULL DEFAULT '[]',
    quantities TEXT NOT NULL DEFAULT '[]',
    subs_present TEXT NOT NULL DEFAULT '[]',
    issues_delays TEXT NOT NULL DEFAULT '',
    safety TEXT NOT NULL DEFAULT '',
    photo_urls TEXT NOT NULL DEFAULT '[]',
    notes_raw TEXT NOT NULL DEFAULT '',
    voice_transcript TEXT NOT NULL DEFAULT '',
    audio_url TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
)`)
			return err
		},
	},
	{
		Version:     2,
		Description: "report lookup indexes",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_daily_reports_date ON daily_reports(report_date)`); err != nil {
				return err
			}
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_daily_reports_project ON daily_reports(project, report_date)`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
