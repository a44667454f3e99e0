package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens or creates the SQLite file at path and applies the schema.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// SQLite serialises writers anyway; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec("PRAGMA " + p + ";"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set PRAGMA %s: %w", p, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

var pragmas = []string{
	"journal_mode = WAL",
	"foreign_keys = ON",
	"busy_timeout = 5000",
}

const schemaFitRuns = `
CREATE TABLE IF NOT EXISTS fit_runs (
    id TEXT PRIMARY KEY,
    series_id TEXT NOT NULL,
    method TEXT NOT NULL,
    time_unit TEXT NOT NULL,
    r_env REAL NOT NULL,
    r_env_std REAL,
    r_env_ci_low REAL,
    r_env_ci_high REAL,
    c_in REAL NOT NULL,
    c_in_std REAL,
    c_in_ci_low REAL,
    c_in_ci_high REAL,
    rmse REAL NOT NULL,
    mae REAL NOT NULL,
    r_squared REAL,
    n_samples INTEGER NOT NULL,
    converged BOOLEAN NOT NULL,
    at_bound BOOLEAN NOT NULL,
    iterations INTEGER NOT NULL,
    sse REAL NOT NULL,
    seed_sse REAL NOT NULL,
    validation TEXT,
    warnings TEXT,
    series BLOB,
    created_at TIMESTAMP NOT NULL
);
`

const indexFitRunsSeries = `
CREATE INDEX IF NOT EXISTS idx_fit_runs_series ON fit_runs (series_id, created_at);
`

const schemaFitEvents = `
CREATE TABLE IF NOT EXISTS fit_events (
    id TEXT PRIMARY KEY,
    occurred_at TIMESTAMP NOT NULL,
    type TEXT NOT NULL,
    fit_id TEXT,
    message TEXT NOT NULL,
    meta TEXT
);
`

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL
);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaFitRuns,
		indexFitRunsSeries,
		schemaFitEvents,
		schemaUsers,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
