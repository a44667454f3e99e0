package estimator

import (
	"errors"
	"fmt"
	"math"
)

// Method selects how far the pipeline goes.
type Method string

const (
	// MethodLinear stops after the grid search.
	MethodLinear Method = "linear"
	// MethodNonlinear refines the grid seed with the bounded optimizer.
	MethodNonlinear Method = "nonlinear"
)

// statusGridSearch is the Result.Status of an estimate taken from the grid.
const statusGridSearch = "GridSearch"

// ParseMethod accepts "linear" or "nonlinear"; empty means nonlinear.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", MethodNonlinear:
		return MethodNonlinear, nil
	case MethodLinear:
		return MethodLinear, nil
	}
	return "", invalidf("method", "unknown method %q", s)
}

// Options configures a single fit. The zero value is not usable; start from
// DefaultOptions.
type Options struct {
	Method Method
	// InitialGuess overrides the grid seed for the nonlinear step.
	InitialGuess  *Params
	Bounds        Bounds
	GridPoints    int
	MaxIterations int
	Uncertainty   UncertaintyOptions
	// Split, when set, restricts estimation to Split.Train and scores Split.Test.
	Split *Split
	// HoldoutFraction in (0, 1) holds out the trailing part of the series.
	// Ignored when Split is set.
	HoldoutFraction float64
}

// DefaultOptions returns a nonlinear fit over the default bounds with no
// held-out data.
func DefaultOptions() Options {
	return Options{
		Method:        MethodNonlinear,
		Bounds:        DefaultBounds(),
		GridPoints:    DefaultGridPoints,
		MaxIterations: DefaultMaxIterations,
		Uncertainty:   DefaultUncertaintyOptions(),
	}
}

func (o Options) validate() error {
	if o.Method != MethodLinear && o.Method != MethodNonlinear {
		return invalidf("method", "unknown method %q", o.Method)
	}
	if o.MaxIterations < 0 {
		return invalidf("max_iterations", "must not be negative, got %d", o.MaxIterations)
	}
	if o.Split == nil && o.HoldoutFraction != 0 && !(o.HoldoutFraction > 0 && o.HoldoutFraction < 1) {
		return invalidf("holdout_fraction", "must be in (0, 1), got %v", o.HoldoutFraction)
	}
	return o.Uncertainty.validate()
}

func (o Options) split(n int) (*Split, error) {
	if o.Split != nil {
		if err := o.Split.validate(n); err != nil {
			return nil, err
		}
		return o.Split, nil
	}
	if o.HoldoutFraction == 0 {
		return nil, nil
	}
	s := HoldoutFraction(n, o.HoldoutFraction)
	if err := s.validate(n); err != nil {
		return nil, err
	}
	return &s, nil
}

// Estimate is a fitted parameter with its uncertainty. StdErr and CI are NaN
// when the covariance could not be computed.
type Estimate struct {
	Value  float64
	StdErr float64
	CI     Interval
}

// Result is the immutable outcome of Fit.
type Result struct {
	REnv Estimate // K/W
	CIn  Estimate // J/K

	// In-sample metrics over the samples used for estimation.
	RMSE     float64
	MAE      float64
	RSquared float64
	// Residuals covers every sample of the input series.
	Residuals []float64
	NSamples  int
	Method    Method

	// Converged is false when the optimizer ran out of budget or a parameter
	// is pinned to a bound. The estimate is still the best point found.
	Converged  bool
	AtBound    bool
	Iterations int
	Status     string
	SSE        float64
	Seed       Params
	SeedSSE    float64

	// Uncertainty is nil and UncertaintyErr set when the covariance failed.
	Uncertainty    *Uncertainty
	UncertaintyErr error

	Validation *ValidationMetrics
	Warnings   []string
}

// Params returns the point estimate.
func (r *Result) Params() Params { return Params{R: r.REnv.Value, C: r.CIn.Value} }

// Fit estimates (R_env, C_in) from one series.
//
// Invalid input and degenerate data are returned as errors. A fit that did not
// converge, or whose uncertainty could not be computed, is returned normally
// with the condition recorded on the result.
func Fit(s Series, opts Options) (*Result, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	n := s.Len()
	split, err := opts.split(n)
	if err != nil {
		return nil, err
	}
	t, err := s.secondsAt(n)
	if err != nil {
		return nil, err
	}
	dTdt := derivative(s.TIn, t)

	var train []int
	if split != nil {
		train = split.Train
	}
	h := newHeatBalance(s.TIn, s.TOut, s.QIn, dTdt, train)

	grid, err := gridSearch(h, opts.GridPoints, opts.Bounds)
	if err != nil {
		return nil, err
	}

	res := &Result{
		NSamples:  n,
		Method:    opts.Method,
		Seed:      grid.Params,
		SeedSSE:   grid.SSE,
		Converged: true,
	}
	final := grid.Params
	res.SSE = grid.SSE
	res.AtBound = opts.Bounds.pinned(final)
	res.Status = statusGridSearch

	if opts.Method == MethodNonlinear {
		seed := grid.Params
		if opts.InitialGuess != nil {
			seed = *opts.InitialGuess
			res.Seed, res.SeedSSE = seed, h.sse(seed)
		}
		ref, err := refine(h, seed, opts.Bounds, opts.MaxIterations)
		if err != nil {
			return nil, err
		}
		final = ref.Params
		res.SSE = ref.SSE
		res.Converged = ref.Converged
		res.AtBound = ref.AtBound
		res.Iterations = ref.Iterations
		res.Status = ref.Status
		if grid.SSE < ref.SSE {
			// The caller's seed led somewhere worse than the grid optimum.
			final = res.adoptGrid(grid, opts.Bounds)
			res.Warnings = append(res.Warnings, "refinement from the initial guess ended above the grid-search SSE; using the grid estimate")
		} else if !res.Converged {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%v: optimizer status %s after %d iterations", ErrNotConverged, ref.Status, ref.Iterations))
		}
	}
	if res.AtBound {
		res.Warnings = append(res.Warnings, fmt.Sprintf("parameter at bound (R=%g, C=%g); estimate is low-confidence", final.R, final.C))
	}

	res.REnv = Estimate{Value: final.R, StdErr: math.NaN(), CI: Interval{Lower: math.NaN(), Upper: math.NaN()}}
	res.CIn = Estimate{Value: final.C, StdErr: math.NaN(), CI: Interval{Lower: math.NaN(), Upper: math.NaN()}}
	unc, err := quantify(h, final, opts.Uncertainty)
	switch {
	case err == nil:
		res.Uncertainty = &unc
		res.REnv.StdErr, res.REnv.CI = unc.R.StdErr, unc.R.CI
		res.CIn.StdErr, res.CIn.CI = unc.C.StdErr, unc.C.CI
	case errors.Is(err, ErrNumerical):
		res.UncertaintyErr = err
		res.Warnings = append(res.Warnings, err.Error())
	default:
		return nil, err
	}

	res.Residuals = newHeatBalance(s.TIn, s.TOut, s.QIn, dTdt, nil).residuals(nil, final)
	var observed, fitResiduals []float64
	if train == nil {
		observed, fitResiduals = s.TOut, res.Residuals
	} else {
		observed = make([]float64, len(train))
		fitResiduals = make([]float64, len(train))
		for k, i := range train {
			observed[k], fitResiduals[k] = s.TOut[i], res.Residuals[i]
		}
	}
	m, err := ComputeMetrics(observed, fitResiduals)
	if err != nil {
		return nil, err
	}
	res.RMSE, res.MAE, res.RSquared = m.RMSE, m.MAE, m.RSquared

	if split != nil {
		v, err := scoreSplit(final, s, dTdt, *split)
		if err != nil {
			return nil, err
		}
		res.Validation = &v
	}
	return res, nil
}

// adoptGrid replaces a discarded refinement with the grid optimum, so the
// flags on the result describe the point that is returned.
func (r *Result) adoptGrid(grid GridResult, bounds Bounds) Params {
	r.SSE = grid.SSE
	r.Converged = true
	r.AtBound = bounds.pinned(grid.Params)
	r.Iterations = 0
	r.Status = statusGridSearch
	return grid.Params
}

// Predict returns the outdoor temperature implied by the heat balance,
//
//	T_out = T_in + R·(C·dT_in/dt − Q_in)
//
// for an already fitted parameter pair. Feeding it the inputs of a fit
// reproduces T_out − residuals.
func Predict(p Params, tIn, qIn []float64, sampling Sampling) ([]float64, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if len(qIn) != len(tIn) {
		return nil, invalidf("q_in", "length %d does not match t_in length %d", len(qIn), len(tIn))
	}
	if err := checkFinite("q_in", qIn); err != nil {
		return nil, err
	}
	dTdt, err := Derivative(tIn, sampling)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(tIn))
	for i := range out {
		out[i] = tIn[i] + p.R*(p.C*dTdt[i]-qIn[i])
	}
	return out, nil
}

func (p Params) validate() error {
	if !(p.R > 0) || math.IsInf(p.R, 0) {
		return invalidf("r_env", "must be positive and finite, got %v", p.R)
	}
	if !(p.C > 0) || math.IsInf(p.C, 0) {
		return invalidf("c_in", "must be positive and finite, got %v", p.C)
	}
	return nil
}
