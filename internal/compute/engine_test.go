package compute

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuroflow/internal/brainvision"
	"neuroflow/internal/dsp"
	"neuroflow/internal/eeg"
)

const (
	fixtureRate    = 200.0
	fixtureSeconds = 40
)

// writeFixture stores a synthetic four-channel recording as a
// BrainVision triplet: three EEG channels carrying alpha-band tones plus
// 50 Hz line noise, and one EOG channel with blink-like bumps that also
// leak into the frontal channel.
func writeFixture(t *testing.T) string {
	t.Helper()
	n := int(fixtureRate) * fixtureSeconds

	blink := make([]float64, n)
	for k := 0; k < fixtureSeconds/4; k++ {
		center := (float64(k)*4 + 2.3) * fixtureRate
		for s := range blink {
			d := (float64(s) - center) / (0.1 * fixtureRate)
			blink[s] += 200 * math.Exp(-d*d)
		}
	}

	tone := func(freq, amp float64, s int) float64 {
		return amp * math.Sin(2*math.Pi*freq*float64(s)/fixtureRate)
	}
	data := make([][]float64, 4)
	for c := range data {
		data[c] = make([]float64, n)
	}
	for s := 0; s < n; s++ {
		line := tone(50, 8, s)
		data[0][s] = tone(10, 20, s) + line + 0.4*blink[s] // Fp1
		data[1][s] = tone(12, 15, s) + line                // Cz
		data[2][s] = tone(10, 25, s) + 0.5*line            // O2
		data[3][s] = blink[s]                              // VEOG
	}

	channels := []eeg.Channel{
		{Name: "Fp1", Unit: "µV"},
		{Name: "Cz", Unit: "µV"},
		{Name: "O2", Unit: "µV"},
		{Name: "VEOG", Unit: "µV"},
	}
	raw, err := eeg.NewRaw(fixtureRate, channels, data)
	require.NoError(t, err)

	for k := 0; k < 26; k++ {
		raw.Events = append(raw.Events, eeg.Event{
			Sample: int((1.0 + 1.5*float64(k)) * fixtureRate),
			Label:  "Stimulus/S  1",
		})
	}
	for k := 0; k < 5; k++ {
		raw.Events = append(raw.Events, eeg.Event{
			Sample: int((2.0 + 7*float64(k)) * fixtureRate),
			Label:  "Stimulus/S  2",
		})
	}

	path := filepath.Join(t.TempDir(), "sub01_rest.vhdr")
	require.NoError(t, brainvision.Write(path, raw))
	return path
}

func loadedEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine()
	_, err := e.Load(writeFixture(t))
	require.NoError(t, err)
	return e
}

func nearestBin(freqs []float64, target float64) int {
	best := 0
	for i, f := range freqs {
		if math.Abs(f-target) < math.Abs(freqs[best]-target) {
			best = i
		}
	}
	return best
}

func TestLoadPopulatesInfo(t *testing.T) {
	e := NewEngine()
	_, err := e.Info()
	assert.ErrorIs(t, err, errNoData)

	res, err := e.Load(writeFixture(t))
	require.NoError(t, err)

	info := res.Info
	assert.Equal(t, "sub01_rest", info.Stem)
	assert.Equal(t, fixtureRate, info.SampleRate)
	assert.Equal(t, 4, info.NChannels)
	assert.Equal(t, 3, info.TypeCounts[eeg.ChannelEEG])
	assert.Equal(t, 1, info.TypeCounts[eeg.ChannelEOG])
	assert.Equal(t, 26, info.EventCounts["Stimulus/S  1"])
	assert.Equal(t, 5, info.EventCounts["Stimulus/S  2"])
	// Fp1, Cz and O2 are named in the montage; VEOG is not.
	assert.Equal(t, 3, info.Positioned)

	events := e.Events()
	assert.Len(t, events, 31)
	channels := e.Channels()
	require.Len(t, channels, 4)
	assert.Equal(t, eeg.ChannelEOG, channels[3].Type)

	// The standalone accessor reports the same dataset.
	again, err := e.Info()
	require.NoError(t, err)
	assert.Equal(t, info, again)
}

func TestLoadErrors(t *testing.T) {
	e := NewEngine()

	var loadErr *LoadError
	_, err := e.Load(filepath.Join(t.TempDir(), "missing.vhdr"))
	require.Error(t, err)
	assert.True(t, errors.As(err, &loadErr))

	foreign := filepath.Join(t.TempDir(), "scan.nii")
	require.NoError(t, os.WriteFile(foreign, []byte("not eeg"), 0644))
	_, err = e.Load(foreign)
	require.Error(t, err)
	assert.True(t, errors.As(err, &loadErr))
	assert.ErrorContains(t, err, "unsupported file type")
}

func TestFilterRemovesLineNoise(t *testing.T) {
	e := loadedEngine(t)

	res, err := e.Filter(dsp.FilterSpec{Highpass: 1, Lowpass: 40, Notch: 50})
	require.NoError(t, err)
	require.NotNil(t, res.PSD)

	// Spectra are limited to the display range.
	assert.LessOrEqual(t, res.PSD.Freqs[len(res.PSD.Freqs)-1], 100.0)

	mean := res.PSD.Mean()
	alpha := mean[nearestBin(res.PSD.Freqs, 10)]
	line := mean[nearestBin(res.PSD.Freqs, 50)]
	assert.Greater(t, alpha, 100*line, "line noise should be gone after the notch")
	assert.InDelta(t, 10, res.PSD.PeakFrequency(2), 0.5)
}

func TestFilterWithoutDataset(t *testing.T) {
	e := NewEngine()
	_, err := e.Filter(dsp.FilterSpec{Lowpass: 40})
	var compErr *ComputationError
	require.True(t, errors.As(err, &compErr))
	assert.Equal(t, "filter", compErr.Op)
	assert.ErrorIs(t, err, errNoData)
}

func TestFitAndApplyICA(t *testing.T) {
	e := loadedEngine(t)

	_, err := e.ApplyICA([]int{0})
	assert.ErrorIs(t, err, errNoICA)
	_, _, err = e.ComponentSource(0)
	assert.ErrorIs(t, err, errNoICA)

	fit, err := e.FitICA()
	require.NoError(t, err)
	// Three EEG channels cap the decomposition below the usual fifteen.
	assert.Equal(t, 3, fit.NComponents)
	assert.True(t, fit.Converged)

	channels, weights, err := e.ComponentPattern(0)
	require.NoError(t, err)
	assert.Len(t, channels, 3)
	assert.Len(t, weights, 3)
	_, _, err = e.ComponentPattern(7)
	assert.ErrorContains(t, err, "out of range")

	src, rate, err := e.ComponentSource(0)
	require.NoError(t, err)
	assert.Equal(t, fixtureRate, rate)
	assert.Len(t, src, int(fixtureRate)*fixtureSeconds)
	_, _, err = e.ComponentSource(9)
	assert.ErrorContains(t, err, "out of range")

	before, err := e.Filter(dsp.FilterSpec{Lowpass: 90})
	require.NoError(t, err)

	// Excluding nothing must leave the signal untouched.
	res, err := e.ApplyICA(nil)
	require.NoError(t, err)
	assert.Empty(t, res.Excluded)
	require.Len(t, res.PSD.Power, len(before.PSD.Power))
	for c := range before.PSD.Power {
		for k := range before.PSD.Power[c] {
			assert.InDelta(t, before.PSD.Power[c][k], res.PSD.Power[c][k], 1e-12)
		}
	}

	// Excluding every component empties the EEG channels.
	res, err = e.ApplyICA([]int{2, 0, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, res.Excluded)
	alphaBefore := before.PSD.Mean()[nearestBin(before.PSD.Freqs, 10)]
	alphaAfter := res.PSD.Mean()[nearestBin(res.PSD.Freqs, 10)]
	assert.Less(t, alphaAfter, alphaBefore/100)

	_, err = e.ApplyICA([]int{5})
	assert.ErrorContains(t, err, "out of range")
}

func TestBuildDropEpochsAndERP(t *testing.T) {
	e := loadedEngine(t)

	_, err := e.DropEpochs([]int{0})
	assert.ErrorIs(t, err, errNoEpochs)

	res, err := e.BuildEpochs(EpochDef{Event: "Stimulus/S  1", Tmin: -0.2, Tmax: 0.8})
	require.NoError(t, err)
	require.Len(t, res.Summaries, 26)
	assert.Len(t, res.Times, 201)
	for _, s := range res.Summaries {
		assert.False(t, s.Rejected)
		assert.Greater(t, s.PeakToPeak, 0.0)
	}

	drop, err := e.DropEpochs([]int{0, 2})
	require.NoError(t, err)
	assert.Equal(t, 24, drop.Kept)
	assert.Equal(t, 2, drop.Rejected)
	assert.True(t, drop.Summaries[0].Rejected)
	assert.False(t, drop.Summaries[1].Rejected)

	// A generous threshold rejects nothing further.
	drop, err = e.DropEpochsPeakToPeak(1e6)
	require.NoError(t, err)
	assert.Equal(t, 24, drop.Kept)

	_, err = e.DropEpochsPeakToPeak(-1)
	assert.ErrorContains(t, err, "must be positive")

	erp, err := e.ComputeERP()
	require.NoError(t, err)
	assert.Equal(t, 24, erp.Evoked.NAveraged)
	assert.Len(t, erp.Evoked.Data, 4)
	assert.Len(t, erp.Evoked.Data[0], 201)

	_, err = e.BuildEpochs(EpochDef{Event: "nope", Tmin: -0.1, Tmax: 0.1})
	require.Error(t, err)
}

func TestEpochsAreRecutWhenRecordingChanges(t *testing.T) {
	e := loadedEngine(t)

	_, err := e.BuildEpochs(EpochDef{Event: "Stimulus/S  1", Tmin: -0.2, Tmax: 0.8})
	require.NoError(t, err)
	_, err = e.DropEpochs([]int{3})
	require.NoError(t, err)

	erpBefore, err := e.ComputeERP()
	require.NoError(t, err)

	_, err = e.Filter(dsp.FilterSpec{Notch: 50})
	require.NoError(t, err)

	erpAfter, err := e.ComputeERP()
	require.NoError(t, err)

	// Rejection flags survive the recut.
	assert.Equal(t, 25, erpAfter.Evoked.NAveraged)

	// The notch reaches the evoked response, so the epochs were cut from
	// the filtered recording.
	ripple := func(ev *eeg.Evoked) float64 {
		var sumSin, sumCos float64
		for s, v := range ev.Data[1] {
			ph := 2 * math.Pi * 50 * float64(s) / fixtureRate
			sumSin += v * math.Sin(ph)
			sumCos += v * math.Cos(ph)
		}
		n := float64(len(ev.Data[1]))
		return 2 * math.Hypot(sumSin, sumCos) / n
	}
	assert.Less(t, ripple(erpAfter.Evoked), ripple(erpBefore.Evoked)/10)
}

func TestComputeTFRAndConnectivity(t *testing.T) {
	e := NewEngine()
	_, err := e.ComputeTFR(5, 15)
	assert.ErrorIs(t, err, errNoEpochs)
	_, err = e.ComputeConnectivity(8, 12)
	assert.ErrorIs(t, err, errNoEpochs)

	e = loadedEngine(t)
	_, err = e.BuildEpochs(EpochDef{Event: "Stimulus/S  1", Tmin: -0.2, Tmax: 0.8})
	require.NoError(t, err)

	tfr, err := e.ComputeTFR(5, 15)
	require.NoError(t, err)
	require.Len(t, tfr.Freqs, 11)
	require.Len(t, tfr.Power, 11)
	assert.Len(t, tfr.Times, 201)
	for _, row := range tfr.Power {
		require.Len(t, row, 201)
		for _, v := range row {
			assert.False(t, math.IsNaN(v))
			assert.GreaterOrEqual(t, v, 0.0)
		}
	}
	// The fixture's tones sit at 10 and 12 Hz.
	best, bestSum := 0, 0.0
	for f := range tfr.Power {
		sum := 0.0
		for _, v := range tfr.Power[f] {
			sum += v
		}
		if sum > bestSum {
			best, bestSum = f, sum
		}
	}
	assert.InDelta(t, 10, tfr.Freqs[best], 2.1)

	conn, err := e.ComputeConnectivity(8, 12)
	require.NoError(t, err)
	assert.Equal(t, [2]float64{8, 12}, conn.Band)
	assert.Equal(t, []string{"Fp1", "Cz", "O2"}, conn.Names)
	assert.Equal(t, 26, conn.NEpochs)
	require.Len(t, conn.Matrix, 3)
	for i := range conn.Matrix {
		assert.Zero(t, conn.Matrix[i][i])
		for j := range conn.Matrix[i] {
			assert.InDelta(t, conn.Matrix[j][i], conn.Matrix[i][j], 1e-12)
			assert.GreaterOrEqual(t, conn.Matrix[i][j], 0.0)
			assert.LessOrEqual(t, conn.Matrix[i][j], 1.0)
		}
	}

	_, err = e.ComputeTFR(15, 5)
	require.Error(t, err)
}

func TestSaveFormats(t *testing.T) {
	e := NewEngine()
	_, err := e.Save(filepath.Join(t.TempDir(), "early"))
	assert.ErrorIs(t, err, errNoData)

	e = loadedEngine(t)
	dir := t.TempDir()

	res, err := e.Save(filepath.Join(dir, "cleaned"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cleaned.vhdr"), res.Path)
	for _, name := range []string{"cleaned.vhdr", "cleaned.eeg", "cleaned.vmrk"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err)
	}

	reloaded := NewEngine()
	info, err := reloaded.Load(res.Path)
	require.NoError(t, err)
	assert.Equal(t, 4, info.Info.NChannels)
	assert.Equal(t, "cleaned", info.Info.Stem)

	res, err = e.Save(filepath.Join(dir, "cleaned.edf"))
	require.NoError(t, err)
	_, err = os.Stat(res.Path)
	assert.NoError(t, err)

	_, err = e.Save(filepath.Join(dir, "cleaned.fif"))
	assert.ErrorContains(t, err, "unsupported export format")
}
