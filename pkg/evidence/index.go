package evidence

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// Index is an optional queryable mirror of lifecycle events, for callers
// that want "last N runs that failed" style lookups without scanning every
// run's events.jsonl. It is additive: the filesystem store remains the
// durable source of truth, and a missing or corrupt index can always be
// rebuilt by replaying it.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if needed) a SQLite-backed index rooted at
// baseDir, matching the connection settings used elsewhere for the
// orchestrator's embedded SQLite stores.
func OpenIndex(baseDir string) (*Index, error) {
	dbPath := fmt.Sprintf("%s/.ralph/evidence/index.db", baseDir)
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000", dbPath))
	if err != nil {
		return nil, fmt.Errorf("evidence: open index: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("evidence: ping index: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS lifecycle_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			step_id TEXT NOT NULL,
			status TEXT,
			error_type TEXT,
			error_message TEXT,
			recorded_at DATETIME NOT NULL
		)
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("evidence: create lifecycle_events table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_lifecycle_run ON lifecycle_events(run_id)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("evidence: create run index: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the underlying database handle.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// RecordLifecycleEvent mirrors one lifecycle event into the index. Callers
// typically invoke this right after Writer.EmitStep/EmitRunStart/
// EmitRunComplete succeeds against the filesystem store.
func (idx *Index) RecordLifecycleEvent(record Record, event LifecycleEvent) error {
	_, err := idx.db.Exec(`
		INSERT INTO lifecycle_events (run_id, event_type, step_id, status, error_type, error_message, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, record.RunID, string(event.EventType), event.StepID, nullableString(event.Status),
		nullableString(event.ErrorType), nullableString(event.ErrorMessage), record.RecordedAt)
	if err != nil {
		return fmt.Errorf("evidence: insert lifecycle event: %w", err)
	}
	return nil
}

// FailedRuns returns the distinct run IDs whose most recent run_complete
// event recorded a non-success status, most recent first, capped at limit.
func (idx *Index) FailedRuns(limit int) ([]string, error) {
	rows, err := idx.db.Query(`
		SELECT run_id FROM (
			SELECT run_id, status, recorded_at,
			       ROW_NUMBER() OVER (PARTITION BY run_id ORDER BY recorded_at DESC) AS rn
			FROM lifecycle_events
			WHERE event_type = 'run_complete'
		)
		WHERE rn = 1 AND (status IS NULL OR status != 'success')
		ORDER BY recorded_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("evidence: query failed runs: %w", err)
	}
	defer rows.Close()

	var runIDs []string
	for rows.Next() {
		var runID string
		if err := rows.Scan(&runID); err != nil {
			return nil, fmt.Errorf("evidence: scan failed run: %w", err)
		}
		runIDs = append(runIDs, runID)
	}
	return runIDs, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
