package estimator

import (
	"math"
	"time"
)

// minSamples is p+2 for the two fitted parameters.
const minSamples = 4

// Sampling describes when each sample was taken. Either Dt (uniform step) or
// Times (explicit, strictly increasing) must be set; Times wins when both are.
// Both are expressed in Unit.
type Sampling struct {
	Dt    float64
	Times []float64
	Unit  TimeUnit
}

// Uniform returns a sampling with a fixed step.
func Uniform(dt float64, unit TimeUnit) Sampling {
	return Sampling{Dt: dt, Unit: unit}
}

// At returns a sampling from wall-clock timestamps, expressed in unit relative
// to the first timestamp.
func At(ts []time.Time, unit TimeUnit) Sampling {
	times := make([]float64, len(ts))
	if len(ts) > 0 {
		base := ts[0]
		for i, t := range ts {
			times[i] = t.Sub(base).Seconds() / unit.Seconds()
		}
	}
	return Sampling{Times: times, Unit: unit}
}

// secondsAt returns sample times in seconds from the first sample.
func (s Sampling) secondsAt(n int) ([]float64, error) {
	scale := s.Unit.Seconds()
	out := make([]float64, n)
	if len(s.Times) > 0 {
		if len(s.Times) != n {
			return nil, invalidf("times", "length %d does not match %d samples", len(s.Times), n)
		}
		for i, t := range s.Times {
			if math.IsNaN(t) || math.IsInf(t, 0) {
				return nil, invalidf("times", "non-finite value at index %d", i)
			}
			if i > 0 && t <= s.Times[i-1] {
				return nil, invalidf("times", "not strictly increasing at index %d", i)
			}
			out[i] = (t - s.Times[0]) * scale
		}
		return out, nil
	}
	if !(s.Dt > 0) || math.IsInf(s.Dt, 0) {
		return nil, invalidf("dt", "must be positive and finite, got %v", s.Dt)
	}
	for i := range out {
		out[i] = float64(i) * s.Dt * scale
	}
	return out, nil
}

// Series is one aligned set of observations for a single zone.
type Series struct {
	TIn  []float64 // indoor temperature, °C
	TOut []float64 // outdoor temperature, °C
	QIn  []float64 // net internal heat gain, W
	Sampling
}

// Len returns the number of samples.
func (s Series) Len() int { return len(s.TIn) }

// Validate checks lengths, finiteness and sampling.
func (s Series) Validate() error {
	n := len(s.TIn)
	if len(s.TOut) != n {
		return invalidf("t_out", "length %d does not match t_in length %d", len(s.TOut), n)
	}
	if len(s.QIn) != n {
		return invalidf("q_in", "length %d does not match t_in length %d", len(s.QIn), n)
	}
	if n < minSamples {
		return invalidf("t_in", "need at least %d samples, got %d", minSamples, n)
	}
	if err := checkFinite("t_in", s.TIn); err != nil {
		return err
	}
	if err := checkFinite("t_out", s.TOut); err != nil {
		return err
	}
	if err := checkFinite("q_in", s.QIn); err != nil {
		return err
	}
	_, err := s.secondsAt(n)
	return err
}

func checkFinite(field string, xs []float64) error {
	for i, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return invalidf(field, "non-finite value at index %d", i)
		}
	}
	return nil
}
