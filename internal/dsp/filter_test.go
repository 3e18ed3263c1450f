package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq, rate float64, n int, amp float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	return x
}

func addTo(dst, src []float64) {
	for i := range dst {
		dst[i] += src[i]
	}
}

// toneAmp measures the amplitude of a tone by quadrature projection over
// the middle half of the signal, away from filter edge effects.
func toneAmp(x []float64, rate, freq float64) float64 {
	lo, hi := len(x)/4, 3*len(x)/4
	var a, b float64
	for i := lo; i < hi; i++ {
		ph := 2 * math.Pi * freq * float64(i) / rate
		a += x[i] * math.Cos(ph)
		b += x[i] * math.Sin(ph)
	}
	n := float64(hi - lo)
	return 2 * math.Hypot(a/n, b/n)
}

func TestLowpass(t *testing.T) {
	const rate = 250.0
	x := sine(10, rate, 2500, 1)
	addTo(x, sine(60, rate, 2500, 1))
	data := [][]float64{x}

	require.NoError(t, Filter(data, rate, FilterSpec{Lowpass: 30}))
	assert.InDelta(t, 1.0, toneAmp(data[0], rate, 10), 0.1, "passband tone survives")
	assert.Less(t, toneAmp(data[0], rate, 60), 0.05, "stopband tone is removed")
}

func TestHighpass(t *testing.T) {
	const rate = 250.0
	x := sine(10, rate, 2500, 1)
	addTo(x, sine(60, rate, 2500, 1))
	data := [][]float64{x}

	require.NoError(t, Filter(data, rate, FilterSpec{Highpass: 30}))
	assert.Less(t, toneAmp(data[0], rate, 10), 0.05)
	assert.InDelta(t, 1.0, toneAmp(data[0], rate, 60), 0.1)
}

func TestBandpass(t *testing.T) {
	const rate = 250.0
	x := sine(1, rate, 5000, 1)
	addTo(x, sine(10, rate, 5000, 1))
	addTo(x, sine(60, rate, 5000, 1))
	data := [][]float64{x}

	require.NoError(t, Filter(data, rate, FilterSpec{Highpass: 5, Lowpass: 20}))
	assert.InDelta(t, 1.0, toneAmp(data[0], rate, 10), 0.1)
	assert.Less(t, toneAmp(data[0], rate, 1), 0.15)
	assert.Less(t, toneAmp(data[0], rate, 60), 0.05)
}

func TestNotch(t *testing.T) {
	const rate = 250.0
	x := sine(10, rate, 5000, 1)
	addTo(x, sine(50, rate, 5000, 1))
	data := [][]float64{x}

	require.NoError(t, Filter(data, rate, FilterSpec{Notch: 50}))
	assert.InDelta(t, 1.0, toneAmp(data[0], rate, 10), 0.1, "neighbors of the notch are untouched")
	assert.Less(t, toneAmp(data[0], rate, 50), 0.1, "line frequency is removed")
}

func TestZeroPhase(t *testing.T) {
	// A symmetric kernel applied with delay compensation must not shift
	// the signal: the filtered passband tone stays in phase with the
	// original.
	const rate = 250.0
	clean := sine(10, rate, 2500, 1)
	data := [][]float64{append([]float64(nil), clean...)}

	require.NoError(t, Filter(data, rate, FilterSpec{Lowpass: 30}))
	lo, hi := len(clean)/4, 3*len(clean)/4
	for i := lo; i < hi; i++ {
		assert.InDelta(t, clean[i], data[0][i], 0.05)
	}
}

func TestFilterValidation(t *testing.T) {
	data := [][]float64{make([]float64, 1000)}

	assert.Error(t, Filter(data, 100, FilterSpec{}), "nothing enabled")
	assert.Error(t, Filter(data, 100, FilterSpec{Highpass: 40, Lowpass: 10}))
	assert.Error(t, Filter(data, 100, FilterSpec{Lowpass: 60}), "above Nyquist")
	assert.Error(t, Filter(data, 100, FilterSpec{Highpass: 50}))
	assert.Error(t, Filter(data, 100, FilterSpec{Notch: 49.9}))
	assert.Error(t, Filter(nil, 100, FilterSpec{Lowpass: 30}))
}

func TestFilterTooShort(t *testing.T) {
	data := [][]float64{make([]float64, 100)}
	err := Filter(data, 250, FilterSpec{Lowpass: 30})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}
