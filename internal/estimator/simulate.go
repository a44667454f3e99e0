package estimator

import "math"

// Simulate integrates the forward model
//
//	C·dT_in/dt = Q_in + (T_out − T_in)/R
//
// from tIn0, holding T_out and Q_in constant over each sample interval. Under
// that hold the interval has the closed-form solution
//
//	T(t+Δ) = T_eq + (T(t) − T_eq)·exp(−Δ/RC),  T_eq = T_out + R·Q_in
//
// which is stable for any step size.
func Simulate(p Params, tOut, qIn []float64, tIn0 float64, sampling Sampling) ([]float64, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	n := len(tOut)
	if n < 1 {
		return nil, invalidf("t_out", "need at least 1 sample")
	}
	if len(qIn) != n {
		return nil, invalidf("q_in", "length %d does not match t_out length %d", len(qIn), n)
	}
	if err := checkFinite("t_out", tOut); err != nil {
		return nil, err
	}
	if err := checkFinite("q_in", qIn); err != nil {
		return nil, err
	}
	if math.IsNaN(tIn0) || math.IsInf(tIn0, 0) {
		return nil, invalidf("t_in0", "must be finite, got %v", tIn0)
	}
	t, err := sampling.secondsAt(n)
	if err != nil {
		return nil, err
	}

	tau := p.R * p.C
	out := make([]float64, n)
	out[0] = tIn0
	for i := 0; i < n-1; i++ {
		eq := tOut[i] + p.R*qIn[i]
		out[i+1] = eq + (out[i]-eq)*math.Exp(-(t[i+1]-t[i])/tau)
	}
	return out, nil
}
