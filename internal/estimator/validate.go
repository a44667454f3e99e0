package estimator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Metrics are goodness-of-fit statistics over a set of samples.
type Metrics struct {
	RMSE     float64 `json:"rmse"`
	MAE      float64 `json:"mae"`
	RSquared float64 `json:"r_squared"`
	N        int     `json:"n"`
}

// ComputeMetrics scores residuals against the observations they explain.
//
// R² = 1 − SS_res/SS_tot with SS_tot taken around the mean of observed. It is
// not clamped: a model worse than the mean gives a negative value. When
// observed is constant SS_tot is zero and R² is NaN.
func ComputeMetrics(observed, residuals []float64) (Metrics, error) {
	n := len(observed)
	if len(residuals) != n {
		return Metrics{}, invalidf("residuals", "length %d does not match %d observations", len(residuals), n)
	}
	if n == 0 {
		return Metrics{}, invalidf("residuals", "no samples to score")
	}
	var ssRes, absSum float64
	for _, r := range residuals {
		ssRes += r * r
		absSum += math.Abs(r)
	}
	mean := stat.Mean(observed, nil)
	var ssTot float64
	for _, o := range observed {
		d := o - mean
		ssTot += d * d
	}
	r2 := math.NaN()
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	return Metrics{
		RMSE:     math.Sqrt(ssRes / float64(n)),
		MAE:      absSum / float64(n),
		RSquared: r2,
		N:        n,
	}, nil
}

// Split partitions sample indices into a training and a test set. Indices are
// never shuffled: both lists must be strictly ascending.
type Split struct {
	Train []int `json:"train"`
	Test  []int `json:"test"`
}

// Contiguous trains on the first k samples and tests on the rest.
func Contiguous(n, k int) Split {
	s := Split{Train: make([]int, 0, k), Test: make([]int, 0, max(n-k, 0))}
	for i := 0; i < n; i++ {
		if i < k {
			s.Train = append(s.Train, i)
		} else {
			s.Test = append(s.Test, i)
		}
	}
	return s
}

// HoldoutFraction holds out the trailing frac of the series for testing.
func HoldoutFraction(n int, frac float64) Split {
	k := n - int(math.Round(frac*float64(n)))
	return Contiguous(n, k)
}

// validate checks the split against a series of n samples.
func (s Split) validate(n int) error {
	if len(s.Train) < minSamples {
		return invalidf("split", "training set needs at least %d samples, got %d", minSamples, len(s.Train))
	}
	if len(s.Test) == 0 {
		return invalidf("split", "test set is empty")
	}
	seen := make(map[int]struct{}, len(s.Train))
	check := func(name string, idx []int) error {
		for k, i := range idx {
			if i < 0 || i >= n {
				return invalidf("split", "%s index %d out of range [0, %d)", name, i, n)
			}
			if k > 0 && i <= idx[k-1] {
				return invalidf("split", "%s indices must be strictly ascending at position %d", name, k)
			}
		}
		return nil
	}
	if err := check("train", s.Train); err != nil {
		return err
	}
	if err := check("test", s.Test); err != nil {
		return err
	}
	for _, i := range s.Train {
		seen[i] = struct{}{}
	}
	for _, i := range s.Test {
		if _, ok := seen[i]; ok {
			return invalidf("split", "index %d is in both train and test", i)
		}
	}
	return nil
}

// ValidationMetrics are the out-of-sample scores of a split fit.
type ValidationMetrics struct {
	Train Metrics `json:"train"`
	Test  Metrics `json:"test"`
	Split Split   `json:"split"`
}

// Validate scores a fitted parameter pair on both halves of split. The
// derivative is taken on the full series so test points at the seam still
// see their true neighbours.
func Validate(p Params, s Series, split Split) (ValidationMetrics, error) {
	if err := s.Validate(); err != nil {
		return ValidationMetrics{}, err
	}
	if err := split.validate(s.Len()); err != nil {
		return ValidationMetrics{}, err
	}
	t, err := s.secondsAt(s.Len())
	if err != nil {
		return ValidationMetrics{}, err
	}
	dTdt := derivative(s.TIn, t)
	return scoreSplit(p, s, dTdt, split)
}

func scoreSplit(p Params, s Series, dTdt []float64, split Split) (ValidationMetrics, error) {
	score := func(idx []int) (Metrics, error) {
		h := newHeatBalance(s.TIn, s.TOut, s.QIn, dTdt, idx)
		observed := make([]float64, len(idx))
		for k, i := range idx {
			observed[k] = s.TOut[i]
		}
		return ComputeMetrics(observed, h.residuals(nil, p))
	}
	train, err := score(split.Train)
	if err != nil {
		return ValidationMetrics{}, fmt.Errorf("train metrics: %w", err)
	}
	test, err := score(split.Test)
	if err != nil {
		return ValidationMetrics{}, fmt.Errorf("test metrics: %w", err)
	}
	return ValidationMetrics{Train: train, Test: test, Split: split}, nil
}
