package estimator

import (
	"fmt"
	"math"
)

// Physically plausible envelope resistance and interior thermal mass.
const (
	DefaultRMin = 1e-6
	DefaultRMax = 1.0
	DefaultCMin = 1e3
	DefaultCMax = 1e8

	DefaultGridPoints = 50
)

// Bounds is the feasible box for (R, C).
type Bounds struct {
	RMin, RMax float64
	CMin, CMax float64
}

// DefaultBounds returns R ∈ [1e-6, 1] K/W and C ∈ [1e3, 1e8] J/K.
func DefaultBounds() Bounds {
	return Bounds{RMin: DefaultRMin, RMax: DefaultRMax, CMin: DefaultCMin, CMax: DefaultCMax}
}

func (b Bounds) validate() error {
	if !(b.RMin > 0 && b.RMax > b.RMin) {
		return invalidf("bounds", "need 0 < r_min < r_max, got [%v, %v]", b.RMin, b.RMax)
	}
	if !(b.CMin > 0 && b.CMax > b.CMin) {
		return invalidf("bounds", "need 0 < c_min < c_max, got [%v, %v]", b.CMin, b.CMax)
	}
	return nil
}

// pinned reports whether either parameter sits on an edge of the box.
func (b Bounds) pinned(p Params) bool {
	return newBoxMap(b.RMin, b.RMax).pinned(p.R) || newBoxMap(b.CMin, b.CMax).pinned(p.C)
}

func (b Bounds) clampR(r float64) float64 { return math.Min(math.Max(r, b.RMin), b.RMax) }

// GridResult is the best point on the C grid.
type GridResult struct {
	Params Params
	SSE    float64
}

// GridSearch sweeps log-spaced candidate capacitances and, for each one,
// solves for R in closed form by origin-constrained least squares:
//
//	R* = Σ x·y / Σ x²,  x = C·dT/dt − Q,  y = T_out − T_in
//
// R* is clamped into the bounds, which is the exact constrained minimiser of
// the one-dimensional quadratic. dTdt must be in K/s.
func GridSearch(tIn, tOut, qIn, dTdt []float64, points int, bounds Bounds) (GridResult, error) {
	n := len(tIn)
	if len(tOut) != n || len(qIn) != n || len(dTdt) != n {
		return GridResult{}, invalidf("series", "t_in, t_out, q_in and dT/dt must have equal lengths")
	}
	return gridSearch(newHeatBalance(tIn, tOut, qIn, dTdt, nil), points, bounds)
}

func gridSearch(h heatBalance, points int, bounds Bounds) (GridResult, error) {
	if points < 2 {
		return GridResult{}, invalidf("grid_points", "need at least 2 grid points, got %d", points)
	}
	if err := bounds.validate(); err != nil {
		return GridResult{}, err
	}
	if err := checkStorageSignal(h, bounds); err != nil {
		return GridResult{}, err
	}

	logLo, logHi := math.Log(bounds.CMin), math.Log(bounds.CMax)
	best := GridResult{SSE: math.Inf(1)}
	for k := 0; k < points; k++ {
		c := math.Exp(logLo + (logHi-logLo)*float64(k)/float64(points-1))
		var sxx, sxy, scale float64
		for i := 0; i < h.len(); i++ {
			x := c*h.dT[i] - h.q[i]
			sxx += x * x
			sxy += x * h.y[i]
			scale = math.Max(scale, math.Abs(c*h.dT[i])+math.Abs(h.q[i]))
		}
		if sxx <= zeroTol*zeroTol*scale*scale*float64(h.len()) {
			continue
		}
		p := Params{R: bounds.clampR(sxy / sxx), C: c}
		if s := h.sse(p); s < best.SSE {
			best = GridResult{Params: p, SSE: s}
		}
	}
	if math.IsInf(best.SSE, 1) {
		return GridResult{}, fmt.Errorf("%w: heat-storage term C·dT/dt − Q is zero for every candidate C", ErrDegenerateData)
	}
	return best, nil
}

// zeroTol is the relative magnitude below which a term counts as numerically zero.
const zeroTol = 1e-12

// checkStorageSignal rejects series in which C·dT/dt is numerically zero for
// every candidate C, which leaves C unidentifiable.
func checkStorageSignal(h heatBalance, bounds Bounds) error {
	var maxStorage, maxQ float64
	for i := 0; i < h.len(); i++ {
		maxStorage = math.Max(maxStorage, math.Abs(bounds.CMax*h.dT[i]))
		maxQ = math.Max(maxQ, math.Abs(h.q[i]))
	}
	if maxStorage <= zeroTol*math.Max(1, maxQ) {
		return fmt.Errorf("%w: indoor temperature never changes, so the heat-storage term is constant across the grid", ErrDegenerateData)
	}
	return nil
}
