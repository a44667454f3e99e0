package estimator

import (
	"math"

	"gonum.org/v1/gonum/optimize"
)

// DefaultMaxIterations bounds the quasi-Newton run; it is the only timeout a fit has.
const DefaultMaxIterations = 200

const (
	// seedMargin keeps the starting point off the box edges, where the
	// bounded reparameterisation has a vanishing gradient.
	seedMargin = 1e-3
	// boundTol is the fraction of the log-range within which a parameter
	// counts as pinned to an edge.
	boundTol = 1e-2
)

// Refinement is the outcome of the bounded nonlinear least-squares step.
type Refinement struct {
	Params     Params
	SSE        float64
	Converged  bool
	AtBound    bool
	Iterations int
	Status     string
}

// boxMap maps an unconstrained variable onto [min, max] through a logistic
// curve in log space. Working in log space puts R (~1e-3) and C (~1e6) on
// comparable scales.
type boxMap struct{ lo, span float64 }

func newBoxMap(min, max float64) boxMap {
	return boxMap{lo: math.Log(min), span: math.Log(max) - math.Log(min)}
}

func sigmoid(v float64) float64 { return 1 / (1 + math.Exp(-v)) }

func (m boxMap) param(v float64) float64 { return math.Exp(m.lo + m.span*sigmoid(v)) }

// dParam is d param / d v.
func (m boxMap) dParam(v float64) float64 {
	s := sigmoid(v)
	return m.param(v) * m.span * s * (1 - s)
}

// position is where p sits in the box, 0 at min and 1 at max (log scale).
func (m boxMap) position(p float64) float64 { return (math.Log(p) - m.lo) / m.span }

func (m boxMap) free(p float64) float64 {
	s := math.Min(math.Max(m.position(p), seedMargin), 1-seedMargin)
	return math.Log(s / (1 - s))
}

func (m boxMap) pinned(p float64) bool {
	s := m.position(p)
	return s <= boundTol || s >= 1-boundTol
}

// Refine minimises SSE(R, C) inside the bounds with BFGS, starting from seed.
// dTdt must be in K/s.
//
// The best point found is always returned. Converged is false when the
// iteration budget ran out, the line search failed away from a stationary
// point, or a parameter ended pinned to a bound.
func Refine(tIn, tOut, qIn, dTdt []float64, seed Params, bounds Bounds, maxIter int) (Refinement, error) {
	n := len(tIn)
	if len(tOut) != n || len(qIn) != n || len(dTdt) != n {
		return Refinement{}, invalidf("series", "t_in, t_out, q_in and dT/dt must have equal lengths")
	}
	return refine(newHeatBalance(tIn, tOut, qIn, dTdt, nil), seed, bounds, maxIter)
}

func refine(h heatBalance, seed Params, bounds Bounds, maxIter int) (Refinement, error) {
	if err := bounds.validate(); err != nil {
		return Refinement{}, err
	}
	if !(seed.R > 0) || !(seed.C > 0) || math.IsInf(seed.R, 0) || math.IsInf(seed.C, 0) {
		return Refinement{}, invalidf("initial_guess", "R and C must be positive and finite, got (%v, %v)", seed.R, seed.C)
	}
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	seed = Params{
		R: bounds.clampR(seed.R),
		C: math.Min(math.Max(seed.C, bounds.CMin), bounds.CMax),
	}
	seedSSE := h.sse(seed)

	rMap := newBoxMap(bounds.RMin, bounds.RMax)
	cMap := newBoxMap(bounds.CMin, bounds.CMax)
	toParams := func(v []float64) Params {
		return Params{R: rMap.param(v[0]), C: cMap.param(v[1])}
	}
	freeGradient := func(grad, v []float64) {
		gR, gC := h.gradient(toParams(v))
		grad[0] = gR * rMap.dParam(v[0])
		grad[1] = gC * cMap.dParam(v[1])
	}

	problem := optimize.Problem{
		Func: func(v []float64) float64 { return h.sse(toParams(v)) },
		Grad: freeGradient,
	}
	scale := 1 + seedSSE
	settings := &optimize.Settings{
		GradientThreshold: 1e-9 * scale,
		MajorIterations:   maxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-15 * scale,
			Relative:   1e-12,
			Iterations: 20,
		},
	}
	v0 := []float64{rMap.free(seed.R), cMap.free(seed.C)}
	res, err := optimize.Minimize(problem, v0, settings, &optimize.BFGS{})
	if res == nil {
		// Setup failed before any evaluation; the seed is still a valid answer.
		return Refinement{
			Params:    seed,
			SSE:       seedSSE,
			AtBound:   rMap.pinned(seed.R) || cMap.pinned(seed.C),
			Status:    "Failure",
			Converged: false,
		}, nil
	}

	out := Refinement{
		Params:     toParams(res.X),
		SSE:        res.F,
		Iterations: res.MajorIterations,
		Status:     res.Status.String(),
		Converged:  err == nil && !res.Status.Early(),
	}
	if !out.Converged && res.Status == optimize.Failure {
		// A line search that can no longer make progress at a stationary
		// point has hit floating-point resolution, not a real failure.
		grad := make([]float64, 2)
		freeGradient(grad, res.X)
		if math.Max(math.Abs(grad[0]), math.Abs(grad[1])) <= 1e-4*scale {
			out.Converged = true
		}
	}
	if !(out.SSE <= seedSSE) {
		out.Params, out.SSE = seed, seedSSE
	}
	out.AtBound = rMap.pinned(out.Params.R) || cMap.pinned(out.Params.C)
	if out.AtBound {
		out.Converged = false
	}
	return out, nil
}
