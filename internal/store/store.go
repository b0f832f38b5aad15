// Package store persists run settings, input history, and terminal run
// state in SQLite. The optimization loop never touches it; the store is a
// collaborator behind the HTTP layer.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// MaxHistoryItems caps the number of stored input history entries.
const MaxHistoryItems = 50

// timeLayout is fixed-width so stored timestamps sort chronologically under
// SQLite's lexical TEXT ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages the service SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at the given DSN and ensures the
// schema exists.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			dimensions TEXT NOT NULL,
			max_iterations INTEGER NOT NULL,
			patience INTEGER NOT NULL,
			model TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS input_history (
			source TEXT PRIMARY KEY,
			submitted_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			status TEXT NOT NULL,
			best TEXT,
			best_total INTEGER,
			best_average REAL,
			iterations INTEGER NOT NULL DEFAULT 0,
			streak INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Settings are the user-chosen run parameters supplied to new runs unless a
// request overrides them.
type Settings struct {
	Dimensions    []string `json:"dimensions"`
	MaxIterations int      `json:"max_iterations"`
	Patience      int      `json:"patience"`
	Model         string   `json:"model"`
}

// GetSettings returns the stored settings, or nil when none have been saved
// yet.
func (s *Store) GetSettings(ctx context.Context) (*Settings, error) {
	var (
		dimensionsJSON string
		settings       Settings
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT dimensions, max_iterations, patience, model FROM settings WHERE id = 1`,
	).Scan(&dimensionsJSON, &settings.MaxIterations, &settings.Patience, &settings.Model)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	if err := json.Unmarshal([]byte(dimensionsJSON), &settings.Dimensions); err != nil {
		return nil, fmt.Errorf("decoding stored dimensions: %w", err)
	}
	return &settings, nil
}

// SaveSettings stores the settings, replacing any previous ones.
func (s *Store) SaveSettings(ctx context.Context, settings Settings) error {
	dimensionsJSON, err := json.Marshal(settings.Dimensions)
	if err != nil {
		return fmt.Errorf("encoding dimensions: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settings (id, dimensions, max_iterations, patience, model)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			dimensions=excluded.dimensions, max_iterations=excluded.max_iterations,
			patience=excluded.patience, model=excluded.model`,
		string(dimensionsJSON), settings.MaxIterations, settings.Patience, settings.Model,
	)
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// AddInput records a submitted source string in the history. Resubmitting an
// existing source refreshes its position; entries beyond MaxHistoryItems are
// pruned oldest-first.
func (s *Store) AddInput(ctx context.Context, source string) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO input_history (source, submitted_at) VALUES (?, ?)
		 ON CONFLICT(source) DO UPDATE SET submitted_at=excluded.submitted_at`,
		source, now,
	)
	if err != nil {
		return fmt.Errorf("recording input: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM input_history WHERE source NOT IN (
			SELECT source FROM input_history ORDER BY submitted_at DESC LIMIT ?
		)`, MaxHistoryItems,
	)
	if err != nil {
		return fmt.Errorf("pruning input history: %w", err)
	}
	return nil
}

// RecentInputs returns up to limit history entries, newest first.
func (s *Store) RecentInputs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 || limit > MaxHistoryItems {
		limit = MaxHistoryItems
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT source FROM input_history ORDER BY submitted_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing input history: %w", err)
	}
	defer rows.Close()

	var inputs []string
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return nil, fmt.Errorf("scanning input history: %w", err)
		}
		inputs = append(inputs, source)
	}
	return inputs, rows.Err()
}

// RunRecord is the persisted terminal state of one optimization run.
type RunRecord struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Status      string     `json:"status"`
	Best        string     `json:"best,omitempty"`
	BestTotal   int        `json:"best_total,omitempty"`
	BestAverage float64    `json:"best_average,omitempty"`
	Iterations  int        `json:"iterations"`
	Streak      int        `json:"streak"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// SaveRun inserts or updates a run record.
func (s *Store) SaveRun(ctx context.Context, rec RunRecord) error {
	var finishedAt any
	if rec.FinishedAt != nil {
		finishedAt = rec.FinishedAt.UTC().Format(timeLayout)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, status, best, best_total, best_average, iterations, streak, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status=excluded.status, best=excluded.best, best_total=excluded.best_total,
			best_average=excluded.best_average, iterations=excluded.iterations,
			streak=excluded.streak, error=excluded.error, finished_at=excluded.finished_at`,
		rec.ID, rec.Source, rec.Status, rec.Best, rec.BestTotal, rec.BestAverage,
		rec.Iterations, rec.Streak, rec.Error,
		rec.StartedAt.UTC().Format(timeLayout), finishedAt,
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", rec.ID, err)
	}
	return nil
}

// GetRun returns the run record with the given id, or nil when unknown.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	rec, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, source, status, best, best_total, best_average, iterations, streak, error, started_at, finished_at
		 FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// ListRuns returns up to limit run records, most recently started first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, status, best, best_total, best_average, iterations, streak, error, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		rec         RunRecord
		best        sql.NullString
		bestTotal   sql.NullInt64
		bestAverage sql.NullFloat64
		errText     sql.NullString
		startedAt   string
		finishedAt  sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.Source, &rec.Status, &best, &bestTotal, &bestAverage,
		&rec.Iterations, &rec.Streak, &errText, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	rec.Best = best.String
	rec.BestTotal = int(bestTotal.Int64)
	rec.BestAverage = bestAverage.Float64
	rec.Error = errText.String

	rec.StartedAt, err = time.Parse(timeLayout, startedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing run start time: %w", err)
	}
	if finishedAt.Valid {
		t, err := time.Parse(timeLayout, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing run finish time: %w", err)
		}
		rec.FinishedAt = &t
	}
	return &rec, nil
}
