package archive

import (
	"math"
	"testing"
	"time"

	te "thermal_envelope"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePoints(n int) []te.SeriesPoint {
	base := time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC)
	pts := make([]te.SeriesPoint, n)
	for i := range pts {
		x := float64(i)
		pts[i] = te.SeriesPoint{
			At:       base.Add(time.Duration(i) * time.Hour),
			TIn:      20 + math.Sin(x/5),
			TOut:     4 + 3*math.Cos(x/9),
			QIn:      450 + 10*x,
			Residual: 0.01 * math.Sin(x),
		}
	}
	return pts
}

func TestEncodeDecode_PreservesSeries(t *testing.T) {
	in := samplePoints(48)
	b, err := Encode(in)
	require.NoError(t, err)
	require.NotEmpty(t, b)

	out, err := Decode(b)
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		assert.True(t, in[i].At.Equal(out[i].At), "index %d", i)
		assert.Equal(t, in[i].TIn, out[i].TIn)
		assert.Equal(t, in[i].TOut, out[i].TOut)
		assert.Equal(t, in[i].QIn, out[i].QIn)
		assert.Equal(t, in[i].Residual, out[i].Residual)
	}
}

func TestEncode_Rejects(t *testing.T) {
	_, err := Encode(nil)
	require.Error(t, err)

	pts := samplePoints(3)
	pts[2].At = pts[1].At
	_, err = Encode(pts)
	require.Error(t, err)

	_, err = Encode(make([]te.SeriesPoint, MaxPoints+1))
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode([]byte("not a blob"))
	require.Error(t, err)
}
