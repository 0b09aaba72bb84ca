package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dcarowpilot/daily-report-ai/internal/report"
)

const reportColumns = `id, report_date, project, author, weather, crew_counts, equipment,
	activities, quantities, subs_present, issues_delays, safety, photo_urls,
	notes_raw, voice_transcript, audio_url, created_at`

// InsertReport appends a report. Inserting an ID that already exists fails.
func (db *DB) InsertReport(ctx context.Context, r *report.StructuredReport) error {
	if r.ID == "" {
		return fmt.Errorf("inserting report: empty id")
	}

	lists := []any{r.CrewCounts, r.Equipment, r.Activities, r.Quantities, r.SubsPresent, r.PhotoURLs}
	encoded := make([]string, len(lists))
	for i, v := range lists {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding report %s: %w", r.ID, err)
		}
		encoded[i] = string(data)
	}

	_, err := db.conn.ExecContext(ctx, db.q(
		`INSERT INTO daily_reports (`+reportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.Date, r.Project, r.Author, r.Weather,
		encoded[0], encoded[1], encoded[2], encoded[3], encoded[4],
		r.IssuesDelays, r.Safety, encoded[5],
		r.NotesRaw, r.VoiceTranscript, r.AudioURL,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting report %s: %w", r.ID, err)
	}
	return nil
}

// GetReport returns a report by ID, or nil if it does not exist.
func (db *DB) GetReport(ctx context.Context, id string) (*report.StructuredReport, error) {
	row := db.conn.QueryRowContext(ctx, db.q(
		`SELECT `+reportColumns+` FROM daily_reports WHERE id = ?`), id,
	)

	var r report.StructuredReport
	var crew, equipment, activities, quantities, subs, photos, createdAt string
	err := row.Scan(&r.ID, &r.Date, &r.Project, &r.Author, &r.Weather,
		&crew, &equipment, &activities, &quantities, &subs,
		&r.IssuesDelays, &r.Safety, &photos,
		&r.NotesRaw, &r.VoiceTranscript, &r.AudioURL, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	decode := []struct {
		data string
		dest any
	}{
		{crew, &r.CrewCounts},
		{equipment, &r.Equipment},
		{activities, &r.Activities},
		{quantities, &r.Quantities},
		{subs, &r.SubsPresent},
		{photos, &r.PhotoURLs},
	}
	for _, d := range decode {
		if err := json.Unmarshal([]byte(d.data), d.dest); err != nil {
			return nil, fmt.Errorf("decoding report %s: %w", id, err)
		}
	}

	return &r, nil
}

// ListReports returns up to limit reports, newest report date first.
// project filters by project when non-empty.
func (db *DB) ListReports(ctx context.Context, project string, limit int) ([]ReportSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, report_date, project, author, photo_urls, audio_url, created_at
		FROM daily_reports`
	var args []any
	if project != "" {
		query += " WHERE project = ?"
		args = append(args, project)
	}
	query += " ORDER BY report_date DESC, created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, db.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReportSummary
	for rows.Next() {
		var s ReportSummary
		var photos, audio string
		if err := rows.Scan(&s.ID, &s.Date, &s.Project, &s.Author, &photos, &audio, &s.CreatedAt); err != nil {
			return nil, err
		}
		var urls []string
		if err := json.Unmarshal([]byte(photos), &urls); err != nil {
			return nil, fmt.Errorf("decoding photo urls for %s: %w", s.ID, err)
		}
		s.PhotoCount = len(urls)
		s.HasAudio = audio != ""
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest any
	}{
		{"SELECT COUNT(*) FROM daily_reports", &s.TotalReports},
		{"SELECT COUNT(DISTINCT project) FROM daily_reports", &s.Projects},
		{"SELECT COUNT(DISTINCT report_date) FROM daily_reports", &s.Days},
		{"SELECT COUNT(*) FROM daily_reports WHERE audio_url <> ''", &s.WithAudio},
		{"SELECT COALESCE(MAX(report_date), '') FROM daily_reports", &s.LatestDate},
	}

	for _, q := range queries {
		if err := db.conn.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}
