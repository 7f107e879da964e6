// Package store persists simulation runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema for the run store.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);

-- One row per exported run
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    correlation REAL NOT NULL,
    participants INTEGER NOT NULL,
    seed INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);

-- One row per participant, in participant order
CREATE TABLE IF NOT EXISTS participants (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    idx INTEGER NOT NULL,
    test_score_percentile INTEGER NOT NULL,
    perceived_ability_percentile INTEGER NOT NULL,
    test_score_quartile TEXT NOT NULL,
    perceived_ability_quartile TEXT NOT NULL,
    PRIMARY KEY (run_id, idx)
);
`

// InitSchema creates the tables on a fresh database. An existing database
// must not be newer than this build and must pass CheckIntegrity.
func InitSchema(ctx context.Context, db *sql.DB) error {
	var version sql.NullInt64
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		// No schema_version table: a database this package has never seen.
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	if version.Int64 > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version.Int64, SchemaVersion)
	}
	if err := CheckIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}
	return nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}

// CheckIntegrity verifies the file with SQLite's own checks, then verifies
// that every run holds exactly as many participant rows as it declares.
func CheckIntegrity(ctx context.Context, db *sql.DB) error {
	problems, err := collect(ctx, db, `PRAGMA quick_check`, func(rows *sql.Rows) (string, error) {
		var result string
		if err := rows.Scan(&result); err != nil || result == "ok" {
			return "", err
		}
		return result, nil
	})
	if err != nil {
		return fmt.Errorf("quick_check: %w", err)
	}
	if len(problems) > 0 {
		return fmt.Errorf("quick_check failed: %s", strings.Join(problems, "; "))
	}

	orphans, err := collect(ctx, db, `
		SELECT DISTINCT p.run_id FROM participants p
		LEFT JOIN runs r ON r.id = p.run_id
		WHERE r.id IS NULL`, scanString)
	if err != nil {
		return fmt.Errorf("orphan check: %w", err)
	}
	if len(orphans) > 0 {
		return fmt.Errorf("participants reference missing runs: %s", strings.Join(orphans, ", "))
	}

	short, err := collect(ctx, db, `
		SELECT r.id FROM runs r
		LEFT JOIN participants p ON p.run_id = r.id
		GROUP BY r.id, r.participants
		HAVING COUNT(p.idx) != r.participants`, scanString)
	if err != nil {
		return fmt.Errorf("run size check: %w", err)
	}
	if len(short) > 0 {
		return fmt.Errorf("runs with a participant count mismatch: %s", strings.Join(short, ", "))
	}
	return nil
}

// collect runs query and keeps every non-empty string scan returns.
func collect(ctx context.Context, db *sql.DB, query string, scan func(*sql.Rows) (string, error)) ([]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		if v != "" {
			out = append(out, v)
		}
	}
	return out, rows.Err()
}

func scanString(rows *sql.Rows) (string, error) {
	var s string
	err := rows.Scan(&s)
	return s, err
}
