package estimator

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

var trueParams = Params{R: 0.005, C: 5e6}

// syntheticSeries builds a series that satisfies the heat balance exactly
// under the estimator's own derivative, then adds Gaussian noise of standard
// deviation sigma to T_out. The same seed draws the same noise shape, so
// series built with different sigma differ only in its scale.
func syntheticSeries(t *testing.T, p Params, n int, sigma float64, seed uint64) Series {
	t.Helper()
	s := Series{
		TIn:      make([]float64, n),
		TOut:     make([]float64, n),
		QIn:      make([]float64, n),
		Sampling: Uniform(1, Hour),
	}
	for i := 0; i < n; i++ {
		x := float64(i)
		s.TIn[i] = 20 + 2*math.Sin(2*math.Pi*x/24) + 0.5*math.Cos(2*math.Pi*x/7)
		s.QIn[i] = 500 + 300*math.Sin(2*math.Pi*x/12+1)
	}
	dTdt, err := Derivative(s.TIn, s.Sampling)
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(seed, seed+1))
	for i := range s.TOut {
		s.TOut[i] = s.TIn[i] + p.R*(p.C*dTdt[i]-s.QIn[i]) + sigma*rng.NormFloat64()
	}
	return s
}

func relErr(got, want float64) float64 { return math.Abs(got-want) / math.Abs(want) }
