package estimator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulate_ConstantInputs_DecaysToEquilibrium(t *testing.T) {
	p := Params{R: 0.01, C: 1e6} // tau = 1e4 s
	n := 6
	tOut := make([]float64, n)
	qIn := make([]float64, n)
	for i := range tOut {
		tOut[i], qIn[i] = 5, 300
	}
	got, err := Simulate(p, tOut, qIn, 20, Uniform(1, Hour))
	require.NoError(t, err)
	require.Len(t, got, n)

	eq := 5 + p.R*300
	for i, v := range got {
		want := eq + (20-eq)*math.Exp(-float64(i)*3600/1e4)
		assert.InDelta(t, want, v, 1e-9, "index %d", i)
	}
}

func TestSimulate_StiffStep_StaysBounded(t *testing.T) {
	p := Params{R: 1e-4, C: 1e3} // tau = 0.1 s, far below the step
	got, err := Simulate(p, []float64{0, 10, 10}, []float64{0, 0, 0}, 50, Uniform(1, Hour))
	require.NoError(t, err)
	assert.InDelta(t, 0, got[1], 1e-9)
	assert.InDelta(t, 10, got[2], 1e-9)
}

func TestSimulate_ThenFit_RecoversApproximately(t *testing.T) {
	n := 400
	tOut := make([]float64, n)
	qIn := make([]float64, n)
	for i := range tOut {
		x := float64(i)
		tOut[i] = 5 + 4*math.Sin(2*math.Pi*x/96)
		qIn[i] = 800 + 600*math.Sin(2*math.Pi*x/40+0.5)
	}
	p := Params{R: 0.01, C: 2e6}
	sampling := Uniform(15, Minute)
	tIn, err := Simulate(p, tOut, qIn, 15, sampling)
	require.NoError(t, err)

	res, err := Fit(Series{TIn: tIn, TOut: tOut, QIn: qIn, Sampling: sampling}, DefaultOptions())
	require.NoError(t, err)
	assert.InEpsilon(t, p.R, res.REnv.Value, 0.1)
	assert.InEpsilon(t, p.C, res.CIn.Value, 0.1)
}

func TestSimulate_InvalidInput(t *testing.T) {
	_, err := Simulate(Params{R: 0, C: 1}, []float64{1}, []float64{1}, 0, Uniform(1, Hour))
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = Simulate(Params{R: 1, C: 1}, []float64{1, 2}, []float64{1}, 0, Uniform(1, Hour))
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = Simulate(Params{R: 1, C: 1}, []float64{1, 2}, []float64{1, 1}, math.NaN(), Uniform(1, Hour))
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = Simulate(Params{R: 1, C: 1}, []float64{1, 2}, []float64{1, 1}, 0, Uniform(-1, Hour))
	require.ErrorIs(t, err, ErrInvalidInput)
}
