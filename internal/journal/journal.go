// Package journal records classified runs in SQLite.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/verte-zerg/osutrack/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// MemoryPath opens a journal that lives only as long as the process.
const MemoryPath = ":memory:"

// Journal wraps SQLite access for run records.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal database and applies migrations.
func Open(path string) (*Journal, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return j, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			beatmap_id INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			finished_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON runs(finished_at);`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun stores a run record. A missing id or time is filled in.
func (j *Journal) InsertRun(ctx context.Context, rec model.RunRecord) (model.RunRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, session_id, beatmap_id, outcome, finished_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID,
		rec.SessionID,
		rec.BeatmapID,
		string(rec.Outcome),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return model.RunRecord{}, fmt.Errorf("failed to insert run: %w", err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs, newest first.
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, session_id, beatmap_id, outcome, finished_at
		 FROM runs
		 ORDER BY finished_at DESC, rowid DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var runs []model.RunRecord
	for rows.Next() {
		var rec model.RunRecord
		var outcome, finishedAt string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.BeatmapID, &outcome, &finishedAt); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, finishedAt)
		if err != nil {
			return nil, err
		}
		rec.Outcome = model.RunOutcome(outcome)
		rec.FinishedAt = parsed
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// CountOutcomes aggregates outcomes, optionally restricted to one session.
func (j *Journal) CountOutcomes(ctx context.Context, sessionID string) (map[model.RunOutcome]int, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM runs
		 WHERE (? = '' OR session_id = ?)
		 GROUP BY outcome`, sessionID, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	counts := make(map[model.RunOutcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[model.RunOutcome(outcome)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}
