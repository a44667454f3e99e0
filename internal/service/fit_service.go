package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	te "thermal_envelope"
	"thermal_envelope/internal/archive"
	"thermal_envelope/internal/config"
	"thermal_envelope/internal/estimator"
	"thermal_envelope/internal/logger"
	"thermal_envelope/internal/repository"

	"github.com/google/uuid"
)

var (
	// ErrInvalidRequest marks requests rejected before reaching the estimator.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoArchive is returned by Series for runs stored without a series blob.
	ErrNoArchive = errors.New("series not archived")
)

// FitService runs fits and keeps their results and events.
type FitService struct {
	fits     repository.FitRepo
	events   repository.EventRepo
	defaults estimator.Options
	unit     estimator.TimeUnit
	workers  int
	log      *logger.Logger
	now      func() time.Time
}

func NewFitService(fits repository.FitRepo, events repository.EventRepo, cfg config.Estimator, log *logger.Logger) *FitService {
	if log == nil {
		log = logger.Nop()
	}
	return &FitService{
		fits:     fits,
		events:   events,
		defaults: cfg.FitOptions(),
		unit:     cfg.Unit(),
		workers:  cfg.Workers,
		log:      log.Named("fit"),
		now:      time.Now,
	}
}

// Fit estimates the envelope of one series and stores the run.
func (s *FitService) Fit(ctx context.Context, req FitRequest) (te.FitRun, error) {
	series, opts, err := s.prepare(req)
	if err != nil {
		s.failed(ctx, req.SeriesID, err)
		return te.FitRun{}, err
	}
	res, err := estimator.Fit(series, opts)
	if err != nil {
		s.failed(ctx, req.SeriesID, err)
		return te.FitRun{}, fmt.Errorf("fit series %q: %w", req.SeriesID, err)
	}
	return s.record(ctx, req, series, res)
}

// FitBatch fits every request concurrently and stores the successful runs.
// Items come back in request order; a failing series only fails its item.
func (s *FitService) FitBatch(ctx context.Context, reqs []FitRequest) ([]BatchItem, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidRequest)
	}
	items := make([]BatchItem, len(reqs))
	series := make([]estimator.Series, len(reqs))
	jobs := make(map[string]estimator.Job, len(reqs))
	for i, req := range reqs {
		items[i].SeriesID = req.SeriesID
		sr, opts, err := s.prepare(req)
		if err != nil {
			items[i].Error = err.Error()
			s.failed(ctx, req.SeriesID, err)
			continue
		}
		series[i] = sr
		jobs[strconv.Itoa(i)] = estimator.Job{Series: sr, Options: opts}
	}

	outcomes := estimator.FitBatch(ctx, jobs, s.workers)

	failed := 0
	for i, req := range reqs {
		o, ok := outcomes[strconv.Itoa(i)]
		if !ok {
			failed++
			continue
		}
		if o.Err != nil {
			items[i].Error = o.Err.Error()
			failed++
			s.failed(ctx, req.SeriesID, o.Err)
			continue
		}
		run, err := s.record(ctx, req, series[i], o.Result)
		if err != nil {
			items[i].Error = err.Error()
			failed++
			continue
		}
		items[i].RunID = run.ID
	}

	s.log.Infow("batch_completed", "total", len(reqs), "failed", failed)
	s.appendEvent(ctx, te.FitEvent{
		Type:        te.EventBatchCompleted,
		Description: fmt.Sprintf("batch of %d series finished, %d failed", len(reqs), failed),
		Metadata:    map[string]any{"total": len(reqs), "failed": failed},
	})
	return items, ctx.Err()
}

func (s *FitService) Get(ctx context.Context, id string) (te.FitRun, error) {
	return s.fits.Get(ctx, id)
}

// List returns runs newest first; seriesID "" lists every series.
func (s *FitService) List(ctx context.Context, seriesID string, limit int) ([]te.FitRun, error) {
	return s.fits.List(ctx, seriesID, limit)
}

// Series returns the archived samples and residuals of a run.
func (s *FitService) Series(ctx context.Context, id string) ([]te.SeriesPoint, error) {
	blob, err := s.fits.Series(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		if _, getErr := s.fits.Get(ctx, id); getErr == nil {
			return nil, ErrNoArchive
		}
	}
	if err != nil {
		return nil, err
	}
	return archive.Decode(blob)
}

// Predict returns the outdoor temperature implied by stored or explicit parameters.
func (s *FitService) Predict(ctx context.Context, req PredictRequest) ([]float64, error) {
	p, err := s.params(ctx, req.FitID, req.Params)
	if err != nil {
		return nil, err
	}
	sampling, err := s.sampling(req.Dt, req.Timestamps, req.TimeUnit, len(req.TIn))
	if err != nil {
		return nil, err
	}
	return estimator.Predict(p, req.TIn, req.QIn, sampling)
}

// Simulate integrates the indoor temperature forward from TIn0.
func (s *FitService) Simulate(ctx context.Context, req SimulateRequest) ([]float64, error) {
	p, err := s.params(ctx, req.FitID, req.Params)
	if err != nil {
		return nil, err
	}
	sampling, err := s.sampling(req.Dt, req.Timestamps, req.TimeUnit, len(req.TOut))
	if err != nil {
		return nil, err
	}
	return estimator.Simulate(p, req.TOut, req.QIn, req.TIn0, sampling)
}

func (s *FitService) params(ctx context.Context, fitID string, explicit *estimator.Params) (estimator.Params, error) {
	switch {
	case explicit != nil && fitID != "":
		return estimator.Params{}, fmt.Errorf("%w: give either fit_id or params, not both", ErrInvalidRequest)
	case explicit != nil:
		return *explicit, nil
	case fitID != "":
		run, err := s.fits.Get(ctx, fitID)
		if err != nil {
			return estimator.Params{}, err
		}
		return estimator.Params{R: run.REnv.Value, C: run.CIn.Value}, nil
	}
	return estimator.Params{}, fmt.Errorf("%w: fit_id or params is required", ErrInvalidRequest)
}

func (s *FitService) sampling(dt float64, ts []time.Time, unit string, n int) (estimator.Sampling, error) {
	u := s.unit
	if unit != "" {
		var err error
		if u, err = estimator.ParseTimeUnit(unit); err != nil {
			return estimator.Sampling{}, err
		}
	}
	if len(ts) > 0 {
		if len(ts) != n {
			return estimator.Sampling{}, fmt.Errorf("%w: %d timestamps for %d samples", ErrInvalidRequest, len(ts), n)
		}
		return estimator.At(ts, u), nil
	}
	return estimator.Uniform(dt, u), nil
}

// prepare turns a request into estimator input, filling unset options from
// the configured defaults.
func (s *FitService) prepare(req FitRequest) (estimator.Series, estimator.Options, error) {
	if strings.TrimSpace(req.SeriesID) == "" {
		return estimator.Series{}, estimator.Options{}, fmt.Errorf("%w: series_id is required", ErrInvalidRequest)
	}
	sampling, err := s.sampling(req.Dt, req.Timestamps, req.TimeUnit, len(req.TIn))
	if err != nil {
		return estimator.Series{}, estimator.Options{}, err
	}
	opts := s.defaults
	if opts.Method, err = estimator.ParseMethod(req.Method); err != nil {
		return estimator.Series{}, estimator.Options{}, err
	}
	opts.InitialGuess = req.InitialGuess
	switch {
	case req.Split != nil:
		opts.Split = req.Split
	case req.HoldoutIndex > 0:
		split := estimator.Contiguous(len(req.TIn), req.HoldoutIndex)
		opts.Split = &split
	default:
		opts.HoldoutFraction = req.HoldoutFraction
	}
	series := estimator.Series{TIn: req.TIn, TOut: req.TOut, QIn: req.QIn, Sampling: sampling}
	return series, opts, nil
}

func (s *FitService) record(ctx context.Context, req FitRequest, series estimator.Series, res *estimator.Result) (te.FitRun, error) {
	now := s.now().UTC()
	run := toFitRun(res)
	run.ID = uuid.NewString()
	run.SeriesID = req.SeriesID
	run.TimeUnit = string(series.Unit)
	run.CreatedAt = now

	blob, err := archive.Encode(seriesPoints(series, req.Timestamps, res.Residuals, now))
	if err != nil {
		s.log.Warnw("series_not_archived", "run_id", run.ID, "series_id", run.SeriesID, "err", err)
		run.Warnings = append(run.Warnings, "series not archived: "+err.Error())
		blob = nil
	}
	if err := s.fits.Save(ctx, run, blob); err != nil {
		return te.FitRun{}, err
	}

	if res.UncertaintyErr != nil {
		s.log.Warnw("fit_uncertainty_failed", "run_id", run.ID, "series_id", run.SeriesID, "err", res.UncertaintyErr)
	}
	s.log.Infow("fit_completed",
		"run_id", run.ID, "series_id", run.SeriesID, "method", run.Method,
		"r_env", run.REnv.Value, "c_in", run.CIn.Value, "rmse", run.Metrics.RMSE,
		"converged", run.Converged,
	)
	s.appendEvent(ctx, te.FitEvent{
		Type:        te.EventFitCompleted,
		FitID:       run.ID,
		Description: fmt.Sprintf("fitted series %s: R=%.4g K/W, C=%.4g J/K", run.SeriesID, run.REnv.Value, run.CIn.Value),
		Metadata:    map[string]any{"series_id": run.SeriesID, "rmse": run.Metrics.RMSE, "converged": run.Converged},
	})
	if len(run.Warnings) > 0 {
		s.appendEvent(ctx, te.FitEvent{
			Type:        te.EventFitWarning,
			FitID:       run.ID,
			Description: strings.Join(run.Warnings, "; "),
			Metadata:    map[string]any{"series_id": run.SeriesID, "at_bound": run.AtBound},
		})
	}
	return run, nil
}

func (s *FitService) failed(ctx context.Context, seriesID string, err error) {
	s.log.Warnw("fit_failed", "series_id", seriesID, "err", err)
	s.appendEvent(ctx, te.FitEvent{
		Type:        te.EventFitFailed,
		Description: err.Error(),
		Metadata:    map[string]any{"series_id": seriesID},
	})
}

// appendEvent logs instead of failing: the run is already stored.
func (s *FitService) appendEvent(ctx context.Context, e te.FitEvent) {
	e.EventID = uuid.NewString()
	e.OccurredAt = s.now().UTC()
	if err := s.events.Append(context.WithoutCancel(ctx), e); err != nil {
		s.log.Errorw("event_append_failed", "type", e.Type, "fit_id", e.FitID, "err", err)
	}
}

func toFitRun(res *estimator.Result) te.FitRun {
	run := te.FitRun{
		Method:     string(res.Method),
		REnv:       toEstimate(res.REnv),
		CIn:        toEstimate(res.CIn),
		Metrics:    toMetrics(estimator.Metrics{RMSE: res.RMSE, MAE: res.MAE, RSquared: res.RSquared, N: res.NSamples}),
		NSamples:   res.NSamples,
		Converged:  res.Converged,
		AtBound:    res.AtBound,
		Iterations: res.Iterations,
		SSE:        res.SSE,
		SeedSSE:    res.SeedSSE,
		Warnings:   res.Warnings,
		Residuals:  res.Residuals,
	}
	if v := res.Validation; v != nil {
		run.Validation = &te.FitValidation{
			Train:    toMetrics(v.Train),
			Test:     toMetrics(v.Test),
			TrainIdx: v.Split.Train,
			TestIdx:  v.Split.Test,
		}
		run.Metrics.N = v.Train.N
	}
	return run
}

func toEstimate(e estimator.Estimate) te.ParameterEstimate {
	return te.ParameterEstimate{
		Value:  e.Value,
		StdErr: finite(e.StdErr),
		CILow:  finite(e.CI.Lower),
		CIHigh: finite(e.CI.Upper),
	}
}

func toMetrics(m estimator.Metrics) te.FitMetrics {
	return te.FitMetrics{RMSE: m.RMSE, MAE: m.MAE, RSquared: finite(m.RSquared), N: m.N}
}

// finite maps NaN and ±Inf to nil so they encode as JSON null.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// seriesPoints pairs every sample with its residual. Without request
// timestamps the samples are laid out backwards from end on the uniform step.
func seriesPoints(s estimator.Series, ts []time.Time, residuals []float64, end time.Time) []te.SeriesPoint {
	n := s.Len()
	step := time.Duration(s.Dt * s.Unit.Seconds() * float64(time.Second))
	out := make([]te.SeriesPoint, n)
	for i := range out {
		at := end.Add(-time.Duration(n-1-i) * step)
		if len(ts) == n {
			at = ts[i]
		}
		out[i] = te.SeriesPoint{At: at, TIn: s.TIn[i], TOut: s.TOut[i], QIn: s.QIn[i], Residual: residuals[i]}
	}
	return out
}
