package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWelchPeak(t *testing.T) {
	const rate = 256.0
	data := [][]float64{
		sine(10, rate, 4096, 20),
		sine(10, rate, 4096, 20),
	}
	psd, err := Welch(data, rate, 100)
	require.NoError(t, err)

	assert.Len(t, psd.Power, 2)
	assert.Equal(t, len(psd.Freqs), len(psd.Power[0]))
	assert.LessOrEqual(t, psd.Freqs[len(psd.Freqs)-1], 100.0)

	assert.InDelta(t, 10.0, psd.PeakFrequency(1), 0.5)

	// Density is non-negative everywhere.
	for _, row := range psd.Power {
		for _, v := range row {
			assert.GreaterOrEqual(t, v, 0.0)
		}
	}
}

func TestWelchShortRecording(t *testing.T) {
	const rate = 100.0
	data := [][]float64{sine(10, rate, 300, 5)}
	psd, err := Welch(data, rate, 45)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, psd.PeakFrequency(1), 1.0)
}

func TestWelchMean(t *testing.T) {
	const rate = 128.0
	data := [][]float64{
		sine(8, rate, 1024, 10),
		make([]float64, 1024), // silent channel
	}
	psd, err := Welch(data, rate, 60)
	require.NoError(t, err)

	mean := psd.Mean()
	require.Equal(t, len(psd.Freqs), len(mean))
	for i := range mean {
		assert.InDelta(t, psd.Power[0][i]/2, mean[i], 1e-12)
	}
}

func TestWelchErrors(t *testing.T) {
	_, err := Welch(nil, 100, 50)
	assert.Error(t, err)
}

func TestWelchNoLimitKeepsFullSpectrum(t *testing.T) {
	const rate = 100.0
	psd, err := Welch([][]float64{sine(10, rate, 256, 1)}, rate, 0)
	require.NoError(t, err)
	assert.InDelta(t, rate/2, psd.Freqs[len(psd.Freqs)-1], 1e-9)
}
