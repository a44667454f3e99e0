package estimator

// Derivative estimates dT/dt at every sample, in K per second.
//
// Interior points use the central difference over the two neighbours, using
// the actual local spacing so uneven sampling is handled. The first and last
// points fall back to one-sided differences.
func Derivative(values []float64, sampling Sampling) ([]float64, error) {
	n := len(values)
	if n < 2 {
		return nil, invalidf("t_in", "need at least 2 samples to differentiate, got %d", n)
	}
	if err := checkFinite("t_in", values); err != nil {
		return nil, err
	}
	t, err := sampling.secondsAt(n)
	if err != nil {
		return nil, err
	}
	return derivative(values, t), nil
}

// derivative assumes t is strictly increasing and len(t) == len(values) >= 2.
func derivative(values, t []float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	out[0] = (values[1] - values[0]) / (t[1] - t[0])
	out[n-1] = (values[n-1] - values[n-2]) / (t[n-1] - t[n-2])
	for i := 1; i < n-1; i++ {
		out[i] = (values[i+1] - values[i-1]) / (t[i+1] - t[i-1])
	}
	return out
}
