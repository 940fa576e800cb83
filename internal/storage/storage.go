// Package storage keeps a history of simulation runs in SQLite.
//
// Each run is stored as one row with the headline numbers in columns (for
// listing) and the full report as JSON (for reloading). The history is
// rotated so it never holds more than maxRuns rows.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rewired-gh/ldarsim/internal/models"
	"github.com/rewired-gh/ldarsim/internal/report"
)

// ErrRunNotFound is returned by GetRun for an unknown ID.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                 TEXT PRIMARY KEY,
	created_at         INTEGER NOT NULL,
	mode               TEXT NOT NULL,
	coverage           REAL NOT NULL,
	iterations         INTEGER NOT NULL,
	seed               INTEGER NOT NULL,
	sites              INTEGER NOT NULL,
	clusters           INTEGER NOT NULL,
	noise              INTEGER NOT NULL,
	mean_detected_kgph REAL NOT NULL,
	yield_per_pct_kgph REAL NOT NULL,
	wind_degraded      INTEGER NOT NULL,
	report             TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// RunRecord is the listing view of a stored run.
type RunRecord struct {
	ID                  string
	CreatedAt           time.Time
	Mode                models.SurveyMode
	Coverage            float64
	Iterations          int
	Seed                uint64
	Sites               int
	Clusters            int
	NoiseSites          int
	MeanDetectedKgph    float64
	YieldPerPercentKgph float64
	WindDegraded        bool
}

// Storage is a SQLite-backed run history.
type Storage struct {
	db      *sql.DB
	mu      sync.Mutex
	maxRuns int
	path    string
}

// New opens (creating if needed) the database at dbPath. An empty path uses
// the OS temp directory; ":memory:" gives a throwaway database.
func New(maxRuns int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "ldarsim", "runs.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection: an in-memory database is private to its connection,
	// and sqlite serializes writers anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Storage{db: db, maxRuns: maxRuns, path: dbPath}, nil
}

// Path returns the database location.
func (s *Storage) Path() string {
	return s.path
}

// Close closes the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveRun stores a validated report, replacing any run with the same ID,
// then prunes the history.
func (s *Storage) SaveRun(ctx context.Context, r *models.RunReport) error {
	if r == nil {
		return errors.New("report is nil")
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid report: %w", err)
	}
	report.Finite(r)

	blob, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			id, created_at, mode, coverage, iterations, seed, sites, clusters, noise,
			mean_detected_kgph, yield_per_pct_kgph, wind_degraded, report
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt.UnixNano(), string(r.Survey.Mode), r.Survey.Coverage, r.Survey.Iterations,
		int64(r.Survey.Seed), r.Portfolio.Sites, r.Clustering.Clusters, r.Clustering.NoiseSites,
		r.Summary.MeanDetectedKgph, r.Summary.YieldPerPercentKgph, r.Wind.Degraded, string(blob),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if _, err := s.pruneLocked(ctx); err != nil {
		return err
	}
	return nil
}

// GetRun loads the full report of a stored run.
func (s *Storage) GetRun(ctx context.Context, id string) (*models.RunReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM runs WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	var r models.RunReport
	if err := json.Unmarshal([]byte(blob), &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &r, nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Storage) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, mode, coverage, iterations, seed, sites, clusters, noise,
			mean_detected_kgph, yield_per_pct_kgph, wind_degraded
		FROM runs ORDER BY created_at DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	records := make([]RunRecord, 0)
	for rows.Next() {
		var (
			rec     RunRecord
			created int64
			mode    string
			seed    int64
		)
		if err := rows.Scan(&rec.ID, &created, &mode, &rec.Coverage, &rec.Iterations, &seed,
			&rec.Sites, &rec.Clusters, &rec.NoiseSites, &rec.MeanDetectedKgph,
			&rec.YieldPerPercentKgph, &rec.WindDegraded); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.CreatedAt = time.Unix(0, created)
		rec.Mode = models.SurveyMode(mode)
		rec.Seed = uint64(seed)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PruneRuns removes the oldest runs beyond maxRuns and returns how many
// were deleted. maxRuns <= 0 disables pruning.
func (s *Storage) PruneRuns(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(ctx)
}

func (s *Storage) pruneLocked(ctx context.Context) (int, error) {
	if s.maxRuns <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY created_at DESC, id ASC LIMIT ?
		)`, s.maxRuns)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return rowsAffected(res)
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned runs: %w", err)
	}
	return int(n), nil
}
