// Package history persists per-job quality metrics so aggregate statistics
// survive restarts and registry expiry.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store is an append-only ledger of completed denoise runs backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Record is one completed run as written to the ledger.
type Record struct {
	JobID            string
	Filename         string
	NoiseReductionDB float64
	SNRImprovementDB float64
	ConfidenceScore  float64
	ProcessingTime   float64
	Duration         float64
	CompletedAt      time.Time
}

// Aggregates summarizes the ledger for the metrics endpoint.
type Aggregates struct {
	TotalProcessed        int     `json:"total_processed"`
	AvgProcessingTimeSecs float64 `json:"average_processing_time"`
	AvgNoiseReductionDB   float64 `json:"noise_reduction_avg"`
	AvgSNRImprovementDB   float64 `json:"snr_improvement_avg"`
	AvgConfidenceScore    float64 `json:"confidence_avg"`
}

// Open initializes or connects to the history database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS denoise_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id TEXT NOT NULL,
    filename TEXT NOT NULL,
    noise_reduction_db REAL NOT NULL,
    snr_improvement_db REAL NOT NULL,
    confidence_score REAL NOT NULL,
    processing_time REAL NOT NULL,
    duration REAL NOT NULL,
    completed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_completed_at ON denoise_history(completed_at);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// Append writes one completed run to the ledger.
func (s *Store) Append(ctx context.Context, rec Record) error {
	completedAt := rec.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO denoise_history (
            job_id, filename, noise_reduction_db, snr_improvement_db,
            confidence_score, processing_time, duration, completed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.JobID,
		rec.Filename,
		rec.NoiseReductionDB,
		rec.SNRImprovementDB,
		rec.ConfidenceScore,
		rec.ProcessingTime,
		rec.Duration,
		completedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert history record: %w", err)
	}
	return nil
}

// Aggregate computes ledger-wide statistics. An empty ledger yields zeros.
func (s *Store) Aggregate(ctx context.Context) (Aggregates, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT COUNT(1),
       COALESCE(AVG(processing_time), 0),
       COALESCE(AVG(noise_reduction_db), 0),
       COALESCE(AVG(snr_improvement_db), 0),
       COALESCE(AVG(confidence_score), 0)
FROM denoise_history`)

	var agg Aggregates
	if err := row.Scan(
		&agg.TotalProcessed,
		&agg.AvgProcessingTimeSecs,
		&agg.AvgNoiseReductionDB,
		&agg.AvgSNRImprovementDB,
		&agg.AvgConfidenceScore,
	); err != nil {
		return Aggregates{}, fmt.Errorf("aggregate history: %w", err)
	}
	return agg, nil
}

// Recent returns the most recent ledger entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT job_id, filename, noise_reduction_db, snr_improvement_db,
       confidence_score, processing_time, duration, completed_at
FROM denoise_history
ORDER BY completed_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var completedAt string
		if err := rows.Scan(
			&rec.JobID,
			&rec.Filename,
			&rec.NoiseReductionDB,
			&rec.SNRImprovementDB,
			&rec.ConfidenceScore,
			&rec.ProcessingTime,
			&rec.Duration,
			&completedAt,
		); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, completedAt); parseErr == nil {
			rec.CompletedAt = ts
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
