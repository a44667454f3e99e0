package repository_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	te "thermal_envelope"
	"thermal_envelope/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
)

var fitColumns = []string{
	"id", "series_id", "method", "time_unit",
	"r_env", "r_env_std", "r_env_ci_low", "r_env_ci_high",
	"c_in", "c_in_std", "c_in_ci_low", "c_in_ci_high",
	"rmse", "mae", "r_squared", "n_samples",
	"converged", "at_bound", "iterations", "sse", "seed_sse",
	"validation", "warnings", "created_at",
}

func ptr(v float64) *float64 { return &v }

func sampleRun() te.FitRun {
	return te.FitRun{
		ID:        "fit-1",
		SeriesID:  "room-101",
		Method:    "nonlinear",
		TimeUnit:  "hour",
		REnv:      te.ParameterEstimate{Value: 0.02, StdErr: ptr(0.001), CILow: ptr(0.018), CIHigh: ptr(0.022)},
		CIn:       te.ParameterEstimate{Value: 1.2e5, StdErr: ptr(1e4), CILow: ptr(1e5), CIHigh: ptr(1.4e5)},
		Metrics:   te.FitMetrics{RMSE: 0.17, MAE: 0.12, RSquared: ptr(0.93), N: 5},
		NSamples:  5,
		Converged: true,
		SSE:       0.15,
		SeedSSE:   0.2,
		CreatedAt: time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC),
	}
}

func fitRow(run te.FitRun, validation, warnings any) []driver.Value {
	nullable := func(p *float64) driver.Value {
		if p == nil {
			return nil
		}
		return *p
	}
	return []driver.Value{
		run.ID, run.SeriesID, run.Method, run.TimeUnit,
		run.REnv.Value, nullable(run.REnv.StdErr), nullable(run.REnv.CILow), nullable(run.REnv.CIHigh),
		run.CIn.Value, nullable(run.CIn.StdErr), nullable(run.CIn.CILow), nullable(run.CIn.CIHigh),
		run.Metrics.RMSE, run.Metrics.MAE, nullable(run.Metrics.RSquared), run.NSamples,
		run.Converged, run.AtBound, run.Iterations, run.SSE, run.SeedSSE,
		validation, warnings, run.CreatedAt,
	}
}

func TestFitSQLite_Save_WritesNullsForMissingUncertainty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := repository.NewFitSQLite(db)

	run := sampleRun()
	run.REnv.StdErr, run.REnv.CILow, run.REnv.CIHigh = nil, nil, nil
	run.Warnings = []string{"numerical error"}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fit_runs")).
		WithArgs(
			"fit-1", "room-101", "nonlinear", "hour",
			0.02, nil, nil, nil,
			1.2e5, 1e4, 1e5, 1.4e5,
			0.17, 0.12, 0.93, 5,
			true, false, 0, 0.15, 0.2,
			nil, `["numerical error"]`, run.CreatedAt,
			[]byte("blob"),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Save(context.Background(), run, []byte("blob")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFitSQLite_Get_DecodesRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := repository.NewFitSQLite(db)

	run := sampleRun()
	validation := `{"train":{"rmse":0.1,"mae":0.1,"r_squared":0.9,"n":4},"test":{"rmse":0.3,"mae":0.2,"r_squared":null,"n":1},"train_idx":[0,1,2,3],"test_idx":[4]}`
	mock.ExpectQuery(regexp.QuoteMeta("FROM fit_runs WHERE id = ?")).
		WithArgs("fit-1").
		WillReturnRows(sqlmock.NewRows(fitColumns).AddRow(fitRow(run, validation, `["w1"]`)...))

	got, err := repo.Get(context.Background(), "fit-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SeriesID != "room-101" || got.REnv.Value != 0.02 || got.REnv.StdErr == nil || *got.REnv.StdErr != 0.001 {
		t.Fatalf("unexpected run: %+v", got)
	}
	if got.Metrics.RSquared == nil || *got.Metrics.RSquared != 0.93 {
		t.Fatalf("r_squared not decoded: %+v", got.Metrics)
	}
	if got.Validation == nil || len(got.Validation.TestIdx) != 1 || got.Validation.Test.RSquared != nil {
		t.Fatalf("validation not decoded: %+v", got.Validation)
	}
	if got.Metrics.N != 4 {
		t.Fatalf("in-sample n = %d, want train size 4", got.Metrics.N)
	}
	if len(got.Warnings) != 1 || got.Warnings[0] != "w1" {
		t.Fatalf("warnings = %v", got.Warnings)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFitSQLite_Get_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := repository.NewFitSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM fit_runs WHERE id = ?")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(fitColumns))

	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestFitSQLite_List_FiltersBySeriesWithLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := repository.NewFitSQLite(db)

	a, b := sampleRun(), sampleRun()
	b.ID, b.CreatedAt = "fit-2", b.CreatedAt.Add(time.Hour)
	b.Metrics.RSquared = nil
	mock.ExpectQuery(regexp.QuoteMeta("FROM fit_runs WHERE series_id = ? ORDER BY created_at DESC LIMIT ?")).
		WithArgs("room-101", 10).
		WillReturnRows(sqlmock.NewRows(fitColumns).
			AddRow(fitRow(b, nil, nil)...).
			AddRow(fitRow(a, nil, nil)...))

	got, err := repo.List(context.Background(), "room-101", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].ID != "fit-2" || got[1].ID != "fit-1" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[0].Metrics.RSquared != nil {
		t.Fatalf("expected nil r_squared")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFitSQLite_List_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := repository.NewFitSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM fit_runs ORDER BY created_at DESC")).
		WillReturnError(errors.New("locked"))
	if _, err := repo.List(context.Background(), "", 0); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFitSQLite_Series(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := repository.NewFitSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT series FROM fit_runs WHERE id = ?")).
		WithArgs("fit-1").
		WillReturnRows(sqlmock.NewRows([]string{"series"}).AddRow([]byte{1, 2, 3}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT series FROM fit_runs WHERE id = ?")).
		WithArgs("fit-2").
		WillReturnRows(sqlmock.NewRows([]string{"series"}).AddRow(nil))

	b, err := repo.Series(context.Background(), "fit-1")
	if err != nil || len(b) != 3 {
		t.Fatalf("Series: %v %v", b, err)
	}
	if _, err := repo.Series(context.Background(), "fit-2"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("want ErrNotFound for empty blob, got %v", err)
	}
}
