package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"thermal_envelope/internal/config"
	"thermal_envelope/internal/dataset"
	"thermal_envelope/internal/logger"
	"thermal_envelope/internal/repository"
	"thermal_envelope/internal/repository/db"
	"thermal_envelope/internal/service"

	"github.com/spf13/cobra"
)

// memoryDB keeps offline runs out of the configured database unless --db is given.
const memoryDB = ":memory:"

func newFitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit one series from a CSV file and print the result as JSON",
		Long: `Fit one series from a CSV file with columns t_in, t_out, q_in and an
optional RFC3339 timestamp column. Without timestamps, --dt gives the sample
step in --time-unit.`,
		Args: cobra.NoArgs,
		RunE: runFit,
	}
	f := cmd.Flags()
	f.String("csv", "", "input CSV file")
	f.String("id", "", "series id (default: CSV file name)")
	f.String("method", "nonlinear", "linear | nonlinear")
	f.Float64("dt", 1, "sample step in --time-unit (ignored with timestamps)")
	f.String("time-unit", "", "second | minute | hour | day (default: estimator.time_unit)")
	f.Float64("holdout", 0, "fraction of trailing samples held out for validation, in (0, 1)")
	f.Int("holdout-index", 0, "train on samples before this index, test on the rest")
	f.Float64("r0", 0, "initial R_env guess in K/W (with --c0)")
	f.Float64("c0", 0, "initial C_in guess in J/K (with --r0)")
	f.Bool("residuals", false, "include residuals in the output")
	f.String("db", "", "store the run in this SQLite file (default: not stored)")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Fit every series of a YAML manifest concurrently",
		Args:  cobra.NoArgs,
		RunE:  runBatch,
	}
	f := cmd.Flags()
	f.String("manifest", "", "YAML manifest listing the series")
	f.Int("workers", 0, "parallel fits (default: estimator.workers, 0 = one per CPU)")
	f.String("db", "", "store the runs in this SQLite file (default: not stored)")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

// offlineService builds a fit service over the --db file or an in-memory
// database. Logs go to stderr so stdout stays valid JSON.
func offlineService(cmd *cobra.Command, cfg *config.Config) (*service.FitService, *sql.DB, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		path = memoryDB
	}
	database, err := db.InitDB(path)
	if err != nil {
		return nil, nil, err
	}
	repos := repository.NewRepository(database)
	log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Level)
	return service.NewFitService(repos.FitRepo, repos.EventRepo, cfg.Estimator, log), database, nil
}

func fitOptionsFromFlags(cmd *cobra.Command) (dataset.FitOptions, error) {
	f := cmd.Flags()
	var o dataset.FitOptions
	o.Method, _ = f.GetString("method")
	o.Dt, _ = f.GetFloat64("dt")
	o.TimeUnit, _ = f.GetString("time-unit")
	o.HoldoutFraction, _ = f.GetFloat64("holdout")
	o.HoldoutIndex, _ = f.GetInt("holdout-index")
	r0, _ := f.GetFloat64("r0")
	c0, _ := f.GetFloat64("c0")
	switch {
	case r0 != 0 && c0 != 0:
		o.InitialGuess = &dataset.Guess{REnv: r0, CIn: c0}
	case r0 != 0 || c0 != 0:
		return o, errors.New("--r0 and --c0 must be given together")
	}
	return o, nil
}

func runFit(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := fitOptionsFromFlags(cmd)
	if err != nil {
		return err
	}
	path, _ := cmd.Flags().GetString("csv")
	id, _ := cmd.Flags().GetString("id")
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	table, err := dataset.ReadCSVFile(path)
	if err != nil {
		return err
	}

	svc, database, err := offlineService(cmd, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	run, err := svc.Fit(cmd.Context(), table.Request(id, opts))
	if err != nil {
		return err
	}
	if keep, _ := cmd.Flags().GetBool("residuals"); !keep {
		run.Residuals = nil
	}
	return writeJSON(cmd.OutOrStdout(), run)
}

func runBatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Estimator.Workers = workers
	}
	path, _ := cmd.Flags().GetString("manifest")
	manifest, err := dataset.LoadManifest(path)
	if err != nil {
		return err
	}
	reqs, err := manifest.Requests()
	if err != nil {
		return err
	}

	svc, database, err := offlineService(cmd, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	items, err := svc.FitBatch(cmd.Context(), reqs)
	if err != nil {
		return err
	}
	runs := make(map[string]any, len(items))
	failed := 0
	for _, it := range items {
		if it.Error != "" {
			failed++
			runs[it.SeriesID] = map[string]string{"error": it.Error}
			continue
		}
		run, err := svc.Get(cmd.Context(), it.RunID)
		if err != nil {
			return err
		}
		run.Residuals = nil
		runs[it.SeriesID] = run
	}
	if err := writeJSON(cmd.OutOrStdout(), runs); err != nil {
		return err
	}
	if failed == len(items) {
		return fmt.Errorf("all %d series failed", failed)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
