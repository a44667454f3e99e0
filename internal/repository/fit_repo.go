package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	te "thermal_envelope"
)

type FitSQLite struct {
	db *sql.DB
}

func NewFitSQLite(db *sql.DB) *FitSQLite {
	return &FitSQLite{db: db}
}

var _ FitRepo = (*FitSQLite)(nil)

const (
	fitRunColumns = `id, series_id, method, time_unit,
		r_env, r_env_std, r_env_ci_low, r_env_ci_high,
		c_in, c_in_std, c_in_ci_low, c_in_ci_high,
		rmse, mae, r_squared, n_samples,
		converged, at_bound, iterations, sse, seed_sse,
		validation, warnings, created_at`

	insertFitRunSQL = `INSERT INTO fit_runs (` + fitRunColumns + `, series)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectFitRunSQL = `SELECT ` + fitRunColumns + ` FROM fit_runs WHERE id = ?`

	selectFitRunsSQL = `SELECT ` + fitRunColumns + ` FROM fit_runs`

	selectFitSeriesSQL = `SELECT series FROM fit_runs WHERE id = ?`
)

// Save inserts run together with its archived series blob (may be nil).
func (r *FitSQLite) Save(ctx context.Context, run te.FitRun, series []byte) error {
	validation, err := marshalNullable(run.Validation)
	if err != nil {
		return fmt.Errorf("marshal validation: %w", err)
	}
	var warnings *string
	if len(run.Warnings) > 0 {
		if warnings, err = marshalNullable(run.Warnings); err != nil {
			return fmt.Errorf("marshal warnings: %w", err)
		}
	}
	created := run.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err = r.db.ExecContext(ctx, insertFitRunSQL,
		run.ID, run.SeriesID, run.Method, run.TimeUnit,
		run.REnv.Value, run.REnv.StdErr, run.REnv.CILow, run.REnv.CIHigh,
		run.CIn.Value, run.CIn.StdErr, run.CIn.CILow, run.CIn.CIHigh,
		run.Metrics.RMSE, run.Metrics.MAE, run.Metrics.RSquared, run.NSamples,
		run.Converged, run.AtBound, run.Iterations, run.SSE, run.SeedSSE,
		validation, warnings, created.UTC(),
		series,
	)
	if err != nil {
		return fmt.Errorf("insert fit run %s: %w", run.ID, err)
	}
	return nil
}

// Get returns the run with the given id or ErrNotFound.
func (r *FitSQLite) Get(ctx context.Context, id string) (te.FitRun, error) {
	run, err := scanFitRun(r.db.QueryRowContext(ctx, selectFitRunSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return te.FitRun{}, ErrNotFound
	}
	if err != nil {
		return te.FitRun{}, fmt.Errorf("select fit run %s: %w", id, err)
	}
	return run, nil
}

// List returns runs newest first, optionally restricted to one series.
// limit <= 0 means no limit.
func (r *FitSQLite) List(ctx context.Context, seriesID string, limit int) ([]te.FitRun, error) {
	q := selectFitRunsSQL
	var args []any
	if seriesID != "" {
		q += " WHERE series_id = ?"
		args = append(args, seriesID)
	}
	q += " ORDER BY created_at DESC"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list fit runs: %w", err)
	}
	defer rows.Close()

	out := make([]te.FitRun, 0, 16)
	for rows.Next() {
		run, err := scanFitRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fit run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Series returns the archived series blob of a run, or ErrNotFound.
func (r *FitSQLite) Series(ctx context.Context, id string) ([]byte, error) {
	var b []byte
	err := r.db.QueryRowContext(ctx, selectFitSeriesSQL, id).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select series of fit run %s: %w", id, err)
	}
	if len(b) == 0 {
		return nil, ErrNotFound
	}
	return b, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFitRun(row rowScanner) (te.FitRun, error) {
	var (
		run                  te.FitRun
		validation, warnings sql.NullString
	)
	err := row.Scan(
		&run.ID, &run.SeriesID, &run.Method, &run.TimeUnit,
		&run.REnv.Value, &run.REnv.StdErr, &run.REnv.CILow, &run.REnv.CIHigh,
		&run.CIn.Value, &run.CIn.StdErr, &run.CIn.CILow, &run.CIn.CIHigh,
		&run.Metrics.RMSE, &run.Metrics.MAE, &run.Metrics.RSquared, &run.NSamples,
		&run.Converged, &run.AtBound, &run.Iterations, &run.SSE, &run.SeedSSE,
		&validation, &warnings, &run.CreatedAt,
	)
	if err != nil {
		return te.FitRun{}, err
	}
	run.CreatedAt = run.CreatedAt.UTC()
	run.Metrics.N = run.NSamples
	if validation.Valid && validation.String != "" {
		run.Validation = &te.FitValidation{}
		if err := json.Unmarshal([]byte(validation.String), run.Validation); err != nil {
			return te.FitRun{}, fmt.Errorf("decode validation: %w", err)
		}
		run.Metrics.N = len(run.Validation.TrainIdx)
	}
	if warnings.Valid && warnings.String != "" {
		if err := json.Unmarshal([]byte(warnings.String), &run.Warnings); err != nil {
			return te.FitRun{}, fmt.Errorf("decode warnings: %w", err)
		}
	}
	return run, nil
}

// marshalNullable encodes v as JSON, mapping a nil pointer to SQL NULL.
func marshalNullable[T any](v T) (*string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return nil, nil
	}
	s := string(b)
	return &s, nil
}
