package dsp

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

// icaFixture mixes three independent sources into four channels.
func icaFixture() (sources, mixed [][]float64) {
	const n = 4000
	const rate = 200.0

	sin7 := make([]float64, n)
	saw3 := make([]float64, n)
	noise := make([]float64, n)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < n; i++ {
		t := float64(i) / rate
		sin7[i] = math.Sin(2 * math.Pi * 7 * t)
		ph := t * 3
		saw3[i] = 2 * (ph - math.Floor(0.5+ph))
		noise[i] = rng.Float64()*2 - 1
	}
	sources = [][]float64{sin7, saw3, noise}

	mix := [][]float64{
		{1.0, 0.5, 0.3},
		{0.6, 1.0, 0.2},
		{0.4, 0.7, 1.0},
		{0.2, 0.3, 0.5},
	}
	mixed = make([][]float64, len(mix))
	for c := range mix {
		row := make([]float64, n)
		for i := 0; i < n; i++ {
			for s := range sources {
				row[i] += mix[c][s] * sources[s][i]
			}
		}
		mixed[c] = row
	}
	return sources, mixed
}

func absCorr(a, b []float64) float64 {
	return math.Abs(stat.Correlation(a, b, nil))
}

func TestFitICARecoversSources(t *testing.T) {
	sources, mixed := icaFixture()

	model, err := FitICA(mixed, ICAConfig{Components: 3, Seed: 97})
	require.NoError(t, err)
	assert.Equal(t, 3, model.Components)
	assert.True(t, model.Converged, "clean synthetic sources must converge")
	assert.Greater(t, model.Iterations, 0)

	recovered, err := model.Sources(mixed)
	require.NoError(t, err)
	require.Len(t, recovered, 3)

	// Every true source matches some recovered component up to sign.
	for si, src := range sources {
		best := 0.0
		for _, rec := range recovered {
			if c := absCorr(src, rec); c > best {
				best = c
			}
		}
		assert.Greater(t, best, 0.9, "source %d not recovered", si)
	}
}

func TestFitICAIsDeterministic(t *testing.T) {
	_, mixed := icaFixture()

	a, err := FitICA(mixed, ICAConfig{Components: 3, Seed: 97})
	require.NoError(t, err)
	b, err := FitICA(mixed, ICAConfig{Components: 3, Seed: 97})
	require.NoError(t, err)

	sa, err := a.Sources(mixed)
	require.NoError(t, err)
	sb, err := b.Sources(mixed)
	require.NoError(t, err)
	for i := range sa {
		for j := range sa[i] {
			assert.InDelta(t, sa[i][j], sb[i][j], 1e-9)
		}
	}
}

func TestRemoveComponent(t *testing.T) {
	sources, mixed := icaFixture()
	sin7 := sources[0]

	model, err := FitICA(mixed, ICAConfig{Components: 3, Seed: 97})
	require.NoError(t, err)
	recovered, err := model.Sources(mixed)
	require.NoError(t, err)

	// Identify the component carrying the 7 Hz sine.
	target, best := -1, 0.0
	for i, rec := range recovered {
		if c := absCorr(sin7, rec); c > best {
			best = c
			target = i
		}
	}
	require.Greater(t, best, 0.9)

	cleaned := make([][]float64, len(mixed))
	for i, row := range mixed {
		cleaned[i] = append([]float64(nil), row...)
	}
	require.NoError(t, model.Remove(cleaned, []int{target}))

	for c := range cleaned {
		assert.Less(t, absCorr(cleaned[c], sin7), 0.25,
			"channel %d still carries the removed source", c)
	}
	// The other sources survive the removal.
	assert.Greater(t, absCorr(cleaned[1], sources[1]), 0.5)
}

func TestRemoveValidation(t *testing.T) {
	_, mixed := icaFixture()
	model, err := FitICA(mixed, ICAConfig{Components: 3, Seed: 97})
	require.NoError(t, err)

	assert.Error(t, model.Remove(mixed, []int{3}), "component index out of range")
	assert.Error(t, model.Remove(mixed, []int{-1}))
	assert.NoError(t, model.Remove(mixed, nil), "empty exclusion is a no-op")
}

func TestFitICAValidation(t *testing.T) {
	_, err := FitICA([][]float64{sine(5, 100, 100, 1)}, ICAConfig{})
	assert.Error(t, err, "one channel is not enough")

	_, err = FitICA([][]float64{{1, 2}, {2, 1}}, ICAConfig{Components: 2})
	assert.Error(t, err, "needs more samples than components")
}
