package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/dksim/internal/simulation"

	_ "modernc.org/sqlite" // SQLite driver
)

// createdAtLayout is fixed-width so that created_at sorts as text in time order.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when a run ID is not in the store.
var ErrRunNotFound = errors.New("run not found")

// Run describes a stored run without its participants.
type Run struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Params    simulation.Params `json:"params"`
}

// SQLiteRunStore keeps generated tables in a SQLite database so that
// several runs can be compared later with plain SQL.
type SQLiteRunStore struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// OpenSQLite opens (or creates) the database at dbPath.
func OpenSQLite(dbPath string) (*SQLiteRunStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRunStore{db: db, dbPath: dbPath, now: time.Now}, nil
}

// Path returns the database file path.
func (s *SQLiteRunStore) Path() string {
	return s.dbPath
}

// SaveRun appends the table as a new run and returns its ID.
func (s *SQLiteRunStore) SaveRun(ctx context.Context, t *simulation.Table) (string, error) {
	if t == nil {
		return "", fmt.Errorf("save run: nil table")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, correlation, participants, seed) VALUES (?, ?, ?, ?, ?)`,
		id, s.now().UTC().Format(createdAtLayout), t.Params.Correlation, t.Params.Participants, t.Params.Seed); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO participants (
			run_id, idx,
			test_score_percentile, perceived_ability_percentile,
			test_score_quartile, perceived_ability_quartile
		) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare participant insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range t.Records {
		if _, err := stmt.ExecContext(ctx, id, i,
			r.TestScorePercentile, r.PerceivedAbilityPercentile,
			r.TestScoreQuartile.String(), r.PerceivedAbilityQuartile.String()); err != nil {
			return "", fmt.Errorf("failed to insert participant %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

// ListRuns returns all runs, oldest first.
func (s *SQLiteRunStore) ListRuns(ctx context.Context) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, correlation, participants, seed FROM runs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}

// LoadRun rebuilds the table stored under id.
func (s *SQLiteRunStore) LoadRun(ctx context.Context, id string) (*simulation.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, correlation, participants, seed FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT test_score_percentile, perceived_ability_percentile,
		       test_score_quartile, perceived_ability_quartile
		FROM participants WHERE run_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	t := &simulation.Table{Params: run.Params, Records: make([]simulation.Record, 0, run.Params.Participants)}
	for rows.Next() {
		var (
			r        simulation.Record
			tsQ, paQ string
		)
		if err := rows.Scan(&r.TestScorePercentile, &r.PerceivedAbilityPercentile, &tsQ, &paQ); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		if r.TestScoreQuartile, err = simulation.ParseQuartile(tsQ); err != nil {
			return nil, err
		}
		if r.PerceivedAbilityQuartile, err = simulation.ParseQuartile(paQ); err != nil {
			return nil, err
		}
		t.Records = append(t.Records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read participants: %w", err)
	}
	return t, nil
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run       Run
		createdAt string
	)
	if err := sc.Scan(&run.ID, &createdAt, &run.Params.Correlation, &run.Params.Participants, &run.Params.Seed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("failed to scan run: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Run{}, fmt.Errorf("failed to parse created_at %q: %w", createdAt, err)
	}
	run.CreatedAt = t
	return run, nil
}
