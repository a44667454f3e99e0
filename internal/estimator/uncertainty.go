package estimator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Defaults for Quantify.
const (
	DefaultConfidenceLevel = 0.95
	DefaultCondThreshold   = 1e12
	DefaultRelStep         = 1e-6
)

// UncertaintyOptions tunes the linearised covariance estimate.
type UncertaintyOptions struct {
	// ConfidenceLevel of the two-sided interval, in (0, 1).
	ConfidenceLevel float64
	// CondThreshold is the largest acceptable 2-norm condition number of JᵀJ.
	CondThreshold float64
	// RelStep is the finite-difference step relative to each parameter.
	RelStep float64
}

// DefaultUncertaintyOptions returns a 95% interval, a 1e12 condition limit and
// a 1e-6 relative step.
func DefaultUncertaintyOptions() UncertaintyOptions {
	return UncertaintyOptions{
		ConfidenceLevel: DefaultConfidenceLevel,
		CondThreshold:   DefaultCondThreshold,
		RelStep:         DefaultRelStep,
	}
}

func (o UncertaintyOptions) validate() error {
	if !(o.ConfidenceLevel > 0 && o.ConfidenceLevel < 1) {
		return invalidf("confidence_level", "must be in (0, 1), got %v", o.ConfidenceLevel)
	}
	if !(o.CondThreshold > 1) {
		return invalidf("cond_threshold", "must be > 1, got %v", o.CondThreshold)
	}
	if !(o.RelStep > 0 && o.RelStep < 1) {
		return invalidf("rel_step", "must be in (0, 1), got %v", o.RelStep)
	}
	return nil
}

// Interval is a closed confidence interval.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// ParamUncertainty is the standard error and interval of one parameter.
type ParamUncertainty struct {
	StdErr float64
	CI     Interval
}

// Uncertainty summarises the covariance estimate at a fitted point.
type Uncertainty struct {
	R, C      ParamUncertainty
	Sigma2    float64 // residual variance SSE/(n-2)
	DOF       int
	TQuantile float64
	Cond      float64 // condition number of JᵀJ in log-parameter space
}

// Quantify estimates standard errors and Student-t intervals for p from the
// linearised covariance σ²(JᵀJ)⁻¹, with J the central-difference Jacobian
// of the residuals. dTdt must be in K/s.
//
// An ill-conditioned or singular JᵀJ yields ErrNumerical.
func Quantify(p Params, tIn, tOut, qIn, dTdt []float64, opts UncertaintyOptions) (Uncertainty, error) {
	n := len(tIn)
	if len(tOut) != n || len(qIn) != n || len(dTdt) != n {
		return Uncertainty{}, invalidf("series", "t_in, t_out, q_in and dT/dt must have equal lengths")
	}
	return quantify(newHeatBalance(tIn, tOut, qIn, dTdt, nil), p, opts)
}

func quantify(h heatBalance, p Params, opts UncertaintyOptions) (Uncertainty, error) {
	if err := opts.validate(); err != nil {
		return Uncertainty{}, err
	}
	if !(p.R > 0) || !(p.C > 0) {
		return Uncertainty{}, invalidf("params", "R and C must be positive, got (%v, %v)", p.R, p.C)
	}
	n := h.len()
	dof := n - 2
	if dof < 1 {
		return Uncertainty{}, invalidf("t_in", "need more than 2 samples for a covariance, got %d", n)
	}

	// Differentiate with respect to (ln R, ln C): a fixed step there is a
	// relative step in R and C, and the columns come out scaled by p, which
	// keeps the conditioning check independent of the units of R and C.
	x := []float64{math.Log(p.R), math.Log(p.C)}
	residualsAt := func(y, x []float64) {
		h.residuals(y, Params{R: math.Exp(x[0]), C: math.Exp(x[1])})
	}
	jac := mat.NewDense(n, 2, nil)
	fd.Jacobian(jac, residualsAt, x, &fd.JacobianSettings{
		Formula: fd.Central,
		Step:    opts.RelStep,
	})

	var jtj mat.Dense
	jtj.Mul(jac.T(), jac)
	cond := mat.Cond(&jtj, 2)
	if math.IsNaN(cond) || cond > opts.CondThreshold {
		return Uncertainty{Cond: cond}, fmt.Errorf("%w: JᵀJ condition number %.3g exceeds %.3g", ErrNumerical, cond, opts.CondThreshold)
	}
	var inv mat.Dense
	if err := inv.Inverse(&jtj); err != nil {
		return Uncertainty{Cond: cond}, fmt.Errorf("%w: inverting JᵀJ: %v", ErrNumerical, err)
	}

	sigma2 := h.sse(p) / float64(dof)
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(dof)}.Quantile(0.5 + opts.ConfidenceLevel/2)
	values := [2]float64{p.R, p.C}
	var out [2]ParamUncertainty
	for j, v := range values {
		// Back from log space: Var(p) = p² Var(ln p).
		variance := sigma2 * inv.At(j, j) * v * v
		if variance < 0 || math.IsNaN(variance) || math.IsInf(variance, 0) {
			return Uncertainty{Cond: cond}, fmt.Errorf("%w: covariance diagonal %d is %v", ErrNumerical, j, variance)
		}
		se := math.Sqrt(variance)
		out[j] = ParamUncertainty{StdErr: se, CI: Interval{Lower: v - t*se, Upper: v + t*se}}
	}
	return Uncertainty{
		R:         out[0],
		C:         out[1],
		Sigma2:    sigma2,
		DOF:       dof,
		TQuantile: t,
		Cond:      cond,
	}, nil
}
