// Package archive stores fitted series as compact mebo blobs.
package archive

import (
	"errors"
	"fmt"
	"slices"
	"time"

	te "thermal_envelope"

	"github.com/arloliu/mebo"
)

// Metric names inside a blob.
const (
	metricTIn      = "t_in"
	metricTOut     = "t_out"
	metricQIn      = "q_in"
	metricResidual = "residual"
)

// MaxPoints is the largest series a single blob can hold.
const MaxPoints = 65535

var ErrTooLarge = fmt.Errorf("archive: series longer than %d points", MaxPoints)

// Encode packs points into one blob with a metric per column. Timestamps
// must be strictly increasing.
func Encode(points []te.SeriesPoint) ([]byte, error) {
	n := len(points)
	if n == 0 {
		return nil, errors.New("archive: no points")
	}
	if n > MaxPoints {
		return nil, ErrTooLarge
	}

	ts := make([]int64, n)
	cols := map[string][]float64{
		metricTIn:      make([]float64, n),
		metricTOut:     make([]float64, n),
		metricQIn:      make([]float64, n),
		metricResidual: make([]float64, n),
	}
	for i, p := range points {
		ts[i] = p.At.UnixMicro()
		if i > 0 && ts[i] <= ts[i-1] {
			return nil, fmt.Errorf("archive: timestamps not increasing at index %d", i)
		}
		cols[metricTIn][i] = p.TIn
		cols[metricTOut][i] = p.TOut
		cols[metricQIn][i] = p.QIn
		cols[metricResidual][i] = p.Residual
	}

	enc, err := mebo.NewDefaultNumericEncoder(points[0].At)
	if err != nil {
		return nil, fmt.Errorf("archive: new encoder: %w", err)
	}
	for _, name := range []string{metricTIn, metricTOut, metricQIn, metricResidual} {
		if err := enc.StartMetricName(name, n); err != nil {
			return nil, fmt.Errorf("archive: start %s: %w", name, err)
		}
		if err := enc.AddDataPoints(ts, cols[name], nil); err != nil {
			return nil, fmt.Errorf("archive: add %s: %w", name, err)
		}
		if err := enc.EndMetric(); err != nil {
			return nil, fmt.Errorf("archive: end %s: %w", name, err)
		}
	}
	b, err := enc.Finish()
	if err != nil {
		return nil, fmt.Errorf("archive: finish: %w", err)
	}
	return b, nil
}

// Decode is the inverse of Encode.
func Decode(data []byte) ([]te.SeriesPoint, error) {
	dec, err := mebo.NewNumericDecoder(data)
	if err != nil {
		return nil, fmt.Errorf("archive: new decoder: %w", err)
	}
	blob, err := dec.Decode()
	if err != nil {
		return nil, fmt.Errorf("archive: decode: %w", err)
	}

	ts := slices.Collect(blob.AllTimestampsByName(metricTIn))
	col := func(name string) ([]float64, error) {
		v := slices.Collect(blob.AllValuesByName(name))
		if len(v) != len(ts) {
			return nil, fmt.Errorf("archive: metric %s has %d values, want %d", name, len(v), len(ts))
		}
		return v, nil
	}
	tIn, err := col(metricTIn)
	if err != nil {
		return nil, err
	}
	tOut, err := col(metricTOut)
	if err != nil {
		return nil, err
	}
	qIn, err := col(metricQIn)
	if err != nil {
		return nil, err
	}
	res, err := col(metricResidual)
	if err != nil {
		return nil, err
	}

	out := make([]te.SeriesPoint, len(ts))
	for i := range out {
		out[i] = te.SeriesPoint{
			At:       time.UnixMicro(ts[i]).UTC(),
			TIn:      tIn[i],
			TOut:     tOut[i],
			QIn:      qIn[i],
			Residual: res[i],
		}
	}
	return out, nil
}
