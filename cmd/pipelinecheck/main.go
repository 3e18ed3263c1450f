// Command pipelinecheck runs the whole preprocessing chain headlessly on
// a synthetic recording and verifies each stage: load, filter, ICA,
// epoching, rejection, the derived analyses, and the exported sidecar.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"neuroflow/internal/brainvision"
	"neuroflow/internal/compute"
	"neuroflow/internal/dsp"
	"neuroflow/internal/edf"
	"neuroflow/internal/eeg"
	"neuroflow/internal/export"
	"neuroflow/internal/history"
	"neuroflow/internal/plot"
)

const (
	rate    = 200.0
	seconds = 40
)

func main() {
	figDir := flag.String("o", "", "Directory for diagnostic figures (optional)")
	scratch := flag.String("d", "", "Scratch directory (default: a fresh temp dir)")
	keep := flag.Bool("keep", false, "Keep the scratch directory on success")
	flag.Parse()

	dir := *scratch
	if dir == "" {
		var err error
		dir, err = os.MkdirTemp("", "pipelinecheck-")
		if err != nil {
			fatalf("Failed to create scratch dir: %v", err)
		}
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		fatalf("Failed to create scratch dir: %v", err)
	}

	fmt.Printf("=== Synthesizing recording ===\n")
	rawPath, blink := synthesizeRecording(dir)
	fmt.Printf("Wrote %s\n", rawPath)
	fmt.Printf("4 channels (Fp1, Cz, O2, VEOG) at %g Hz, %d s\n", rate, seconds)
	fmt.Printf("Alpha tones + 50 Hz line noise + blinks leaking into Fp1\n")

	ledger := history.NewLedger()
	engine := compute.NewEngine()

	fmt.Printf("\n=== Loading ===\n")
	load, err := engine.Load(rawPath)
	if err != nil {
		fatalf("Load failed: %v", err)
	}
	ledger.Reset()
	ledger.Append(history.DataLoaded(time.Now(), filepath.Base(rawPath)))
	info := load.Info
	fmt.Printf("Stem: %s\n", info.Stem)
	fmt.Printf("Channels: %d (%d EEG, %d EOG), %d positioned\n",
		info.NChannels, info.TypeCounts[eeg.ChannelEEG], info.TypeCounts[eeg.ChannelEOG], info.Positioned)
	fmt.Printf("Samples: %d (%.1f s)\n", info.NSamples, info.Duration)
	for label, count := range info.EventCounts {
		fmt.Printf("Events %q: %d\n", label, count)
	}
	if info.NChannels != 4 || info.TypeCounts[eeg.ChannelEOG] != 1 {
		fatalf("Channel census is wrong: %+v", info.TypeCounts)
	}
	if info.EventCounts["Stimulus/S  1"] != 26 {
		fatalf("Expected 26 target events, got %d", info.EventCounts["Stimulus/S  1"])
	}

	fmt.Printf("\n=== Filtering 1-40 Hz, notch 50 ===\n")
	spec := dsp.FilterSpec{Highpass: 1, Lowpass: 40, Notch: 50}
	filt, err := engine.Filter(spec)
	if err != nil {
		fatalf("Filter failed: %v", err)
	}
	ledger.Append(history.FilterApplied(time.Now(),
		cutoff(spec.Highpass), cutoff(spec.Lowpass), cutoff(spec.Notch)))
	mean := filt.PSD.Mean()
	alpha := mean[nearestBin(filt.PSD.Freqs, 10)]
	line := mean[nearestBin(filt.PSD.Freqs, 50)]
	fmt.Printf("Mean PSD at 10 Hz: %.3g, at 50 Hz: %.3g (ratio %.0f)\n", alpha, line, alpha/line)
	fmt.Printf("Peak frequency: %.2f Hz\n", filt.PSD.PeakFrequency(2))
	if alpha < 100*line {
		fatalf("Line noise survived the notch: alpha/line = %.1f", alpha/line)
	}

	fmt.Printf("\n=== Fitting ICA ===\n")
	fit, err := engine.FitICA()
	if err != nil {
		fatalf("ICA failed: %v", err)
	}
	fmt.Printf("Components: %d, converged: %v after %d iterations\n",
		fit.NComponents, fit.Converged, fit.Iterations)
	if !fit.Converged {
		fatalf("ICA did not converge")
	}

	fmt.Printf("\n=== Excluding ocular component ===\n")
	ocular := frontalComponent(engine, fit.NComponents)
	fmt.Printf("Component IC %d loads most on Fp1\n", ocular)
	apply, err := engine.ApplyICA([]int{ocular})
	if err != nil {
		fatalf("ICA exclusion failed: %v", err)
	}
	ledger.Append(history.ComponentsExcluded(time.Now(), apply.Excluded))

	fmt.Printf("\n=== Building epochs ===\n")
	def := compute.EpochDef{Event: "Stimulus/S  1", Tmin: -0.2, Tmax: 0.8}
	ep, err := engine.BuildEpochs(def)
	if err != nil {
		fatalf("Epoching failed: %v", err)
	}
	fmt.Printf("%d epochs of %d samples around %q\n", len(ep.Summaries), len(ep.Times), def.Event)
	if len(ep.Summaries) != 26 || len(ep.Times) != 201 {
		fatalf("Expected 26 epochs of 201 samples, got %d of %d", len(ep.Summaries), len(ep.Times))
	}

	fmt.Printf("\n=== Rejecting epochs ===\n")
	drop, err := engine.DropEpochs([]int{0, 2})
	if err != nil {
		fatalf("Manual rejection failed: %v", err)
	}
	ledger.Append(history.EpochsRejected(time.Now(),
		def.Event, def.Tmin, def.Tmax, drop.Kept, drop.Rejected))
	fmt.Printf("Dropped epochs 0 and 2: %d kept, %d rejected\n", drop.Kept, drop.Rejected)
	drop, err = engine.DropEpochsPeakToPeak(500)
	if err != nil {
		fatalf("Amplitude rejection failed: %v", err)
	}
	ledger.Append(history.EpochsRejected(time.Now(),
		def.Event, def.Tmin, def.Tmax, drop.Kept, drop.Rejected))
	fmt.Printf("Threshold 500 uV: %d kept, %d rejected\n", drop.Kept, drop.Rejected)
	if drop.Kept != 24 {
		fatalf("Expected 24 kept epochs, got %d", drop.Kept)
	}

	fmt.Printf("\n=== Derived analyses ===\n")
	erp, err := engine.ComputeERP()
	if err != nil {
		fatalf("Evoked response failed: %v", err)
	}
	fmt.Printf("Evoked response over %d epochs\n", erp.Evoked.NAveraged)
	if erp.Evoked.NAveraged != 24 {
		fatalf("Expected the evoked response over 24 epochs, got %d", erp.Evoked.NAveraged)
	}

	tfr, err := engine.ComputeTFR(5, 15)
	if err != nil {
		fatalf("Time-frequency map failed: %v", err)
	}
	peak := tfr.Freqs[dominantRow(tfr.Power)]
	fmt.Printf("Power map %g-%g Hz, dominant frequency %.1f Hz\n",
		tfr.Freqs[0], tfr.Freqs[len(tfr.Freqs)-1], peak)
	if math.Abs(peak-10) > 2.5 {
		fatalf("Power map peak at %.1f Hz, expected the 10 Hz tone", peak)
	}

	conn, err := engine.ComputeConnectivity(8, 12)
	if err != nil {
		fatalf("Connectivity failed: %v", err)
	}
	fmt.Printf("Connectivity over %d epochs, channels %v\n", conn.NEpochs, conn.Names)
	for i := range conn.Matrix {
		for j, v := range conn.Matrix[i] {
			if v < 0 || v > 1 || math.Abs(v-conn.Matrix[j][i]) > 1e-9 {
				fatalf("Connectivity matrix is not a symmetric [0,1] matrix at (%d,%d)", i, j)
			}
		}
	}

	fmt.Printf("\n=== Saving cleaned recording ===\n")
	historyJSON, err := ledger.Serialize()
	if err != nil {
		fatalf("History serialization failed: %v", err)
	}
	outcome, err := export.Save(engine, filepath.Join(dir, "cleaned.edf"), info.Stem, historyJSON)
	if err != nil {
		fatalf("Save failed: %v", err)
	}
	if outcome.SidecarErr != nil {
		fatalf("Sidecar write failed: %v", outcome.SidecarErr)
	}
	fmt.Printf("Data:    %s\n", outcome.DataPath)
	fmt.Printf("Sidecar: %s\n", outcome.SidecarPath)

	fmt.Printf("\n=== Verifying artifacts ===\n")
	reloaded := compute.NewEngine()
	check, err := reloaded.Load(outcome.DataPath)
	if err != nil {
		fatalf("Reloading the cleaned recording failed: %v", err)
	}
	fmt.Printf("Cleaned recording reloads: %d channels at %g Hz\n",
		check.Info.NChannels, check.Info.SampleRate)

	origRaw, err := brainvision.Read(rawPath)
	if err != nil {
		fatalf("Rereading the source failed: %v", err)
	}
	cleanRaw, err := edf.Read(outcome.DataPath)
	if err != nil {
		fatalf("Rereading the artifact failed: %v", err)
	}
	before := pearson(origRaw.Data[0], blink)
	after := pearson(cleanRaw.Data[0], blink)
	fmt.Printf("Fp1/blink correlation: %.3f before cleaning, %.3f after\n", before, after)
	if math.Abs(after) >= math.Abs(before) {
		fatalf("Cleaning did not reduce the blink in Fp1")
	}

	sidecar, err := os.ReadFile(outcome.SidecarPath)
	if err != nil {
		fatalf("Reading the sidecar failed: %v", err)
	}
	parsed, err := history.Parse(sidecar)
	if err != nil {
		fatalf("Sidecar does not parse: %v", err)
	}
	entries := parsed.Entries()
	fmt.Printf("Sidecar holds %d entries, first action %q\n", len(entries), entries[0].Action)
	if len(entries) != 5 || entries[0].Action != history.ActionDataLoaded {
		fatalf("Sidecar should open with data_loaded and hold 5 entries")
	}

	if *figDir != "" {
		fmt.Printf("\n=== Writing figures to %s ===\n", *figDir)
		writeFigures(*figDir, engine, ocular, apply.PSD, erp, tfr, conn)
	}

	fmt.Printf("\n=== Pipeline check passed ===\n")
	if !*keep && *scratch == "" {
		os.RemoveAll(dir)
	} else {
		fmt.Printf("Artifacts left in %s\n", dir)
	}
}

// synthesizeRecording writes a BrainVision triplet with three EEG
// channels carrying alpha-band tones plus 50 Hz line noise, and one EOG
// channel whose blink-like bumps also leak into Fp1. The blink waveform
// is returned so the cleaned output can be checked against it.
func synthesizeRecording(dir string) (string, []float64) {
	n := int(rate) * seconds

	blink := make([]float64, n)
	for k := 0; k < seconds/4; k++ {
		center := (float64(k)*4 + 2.3) * rate
		for s := range blink {
			d := (float64(s) - center) / (0.1 * rate)
			blink[s] += 200 * math.Exp(-d*d)
		}
	}

	tone := func(freq, amp float64, s int) float64 {
		return amp * math.Sin(2*math.Pi*freq*float64(s)/rate)
	}
	data := make([][]float64, 4)
	for c := range data {
		data[c] = make([]float64, n)
	}
	for s := 0; s < n; s++ {
		noise := tone(50, 8, s)
		data[0][s] = tone(10, 20, s) + noise + 0.4*blink[s] // Fp1
		data[1][s] = tone(12, 15, s) + noise                // Cz
		data[2][s] = tone(10, 25, s) + 0.5*noise            // O2
		data[3][s] = blink[s]                               // VEOG
	}

	channels := []eeg.Channel{
		{Name: "Fp1", Unit: "µV"},
		{Name: "Cz", Unit: "µV"},
		{Name: "O2", Unit: "µV"},
		{Name: "VEOG", Unit: "µV"},
	}
	raw, err := eeg.NewRaw(rate, channels, data)
	if err != nil {
		fatalf("Building the recording failed: %v", err)
	}
	for k := 0; k < 26; k++ {
		raw.Events = append(raw.Events, eeg.Event{
			Sample: int((1.0 + 1.5*float64(k)) * rate),
			Label:  "Stimulus/S  1",
		})
	}
	for k := 0; k < 5; k++ {
		raw.Events = append(raw.Events, eeg.Event{
			Sample: int((2.0 + 7*float64(k)) * rate),
			Label:  "Stimulus/S  2",
		})
	}

	path := filepath.Join(dir, "synthetic_raw.vhdr")
	if err := brainvision.Write(path, raw); err != nil {
		fatalf("Writing the recording failed: %v", err)
	}
	return path, blink
}

// frontalComponent returns the component whose scalp pattern loads most
// heavily on Fp1, relative to its overall weight. With blinks as the
// only frontal source, that is the ocular component.
func frontalComponent(engine *compute.Engine, ncomp int) int {
	best, bestScore := 0, -1.0
	for c := 0; c < ncomp; c++ {
		channels, weights, err := engine.ComponentPattern(c)
		if err != nil {
			fatalf("Component pattern %d failed: %v", c, err)
		}
		var frontal, norm float64
		for i, ch := range channels {
			norm += weights[i] * weights[i]
			if ch.Name == "Fp1" {
				frontal = math.Abs(weights[i])
			}
		}
		if norm == 0 {
			continue
		}
		score := frontal / math.Sqrt(norm)
		fmt.Printf("IC %d: Fp1 share %.2f\n", c, score)
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

func writeFigures(dir string, engine *compute.Engine, ocular int, psd *dsp.PSD,
	erp *compute.ERPResult, tfr *compute.TFRResult, conn *compute.ConnectivityResult) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		fatalf("Failed to create figure dir: %v", err)
	}
	channels, weights, err := engine.ComponentPattern(ocular)
	if err != nil {
		fatalf("Component pattern failed: %v", err)
	}

	out := func(name string) string { return filepath.Join(dir, name) }
	// Spectra and connectivity cover the same EEG picks.
	if err := plot.WritePNG(out("spectrum.png"), plot.Spectrum(900, 620, psd, conn.Names)); err != nil {
		fatalf("Writing spectrum.png failed: %v", err)
	}
	title := fmt.Sprintf("IC %d", ocular)
	if err := plot.WritePNG(out("component.png"), plot.Topomap(600, 500, title, channels, weights)); err != nil {
		fatalf("Writing component.png failed: %v", err)
	}
	if err := plot.WritePNG(out("evoked.png"), plot.Evoked(900, 620, erp.Evoked)); err != nil {
		fatalf("Writing evoked.png failed: %v", err)
	}
	heat := plot.Heatmap(plot.HeatConfig{
		Width: 900, Height: 620,
		Title: "EPOCH POWER (% CHANGE)", XLabel: "TIME (S)", YLabel: "FREQUENCY (HZ)",
		XMin: tfr.Times[0], XMax: tfr.Times[len(tfr.Times)-1],
		YMin: tfr.Freqs[0], YMax: tfr.Freqs[len(tfr.Freqs)-1],
	}, plot.BaselinePercent(tfr.Power, tfr.Times))
	if err := plot.WritePNG(out("power.png"), heat); err != nil {
		fatalf("Writing power.png failed: %v", err)
	}
	matrix := plot.Matrix(700, 700,
		fmt.Sprintf("WPLI %g-%g HZ", conn.Band[0], conn.Band[1]), conn.Names, conn.Matrix)
	if err := plot.WritePNG(out("connectivity.png"), matrix); err != nil {
		fatalf("Writing connectivity.png failed: %v", err)
	}
	for _, name := range []string{"spectrum.png", "component.png", "evoked.png", "power.png", "connectivity.png"} {
		fmt.Printf("Wrote %s\n", out(name))
	}
}

// cutoff converts a filter edge to its history form, nil when disabled.
func cutoff(v float64) *float64 {
	if v > 0 {
		return &v
	}
	return nil
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

// dominantRow returns the row with the largest total power.
func dominantRow(power [][]float64) int {
	best, bestSum := 0, math.Inf(-1)
	for f := range power {
		sum := 0.0
		for _, v := range power[f] {
			sum += v
		}
		if sum > bestSum {
			best, bestSum = f, sum
		}
	}
	return best
}

// pearson is the correlation of the overlapping parts of two series.
func pearson(x, y []float64) float64 {
	n := min(len(x), len(y))
	if n == 0 {
		return 0
	}
	var mx, my float64
	for i := 0; i < n; i++ {
		mx += x[i]
		my += y[i]
	}
	mx /= float64(n)
	my /= float64(n)
	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0
	}
	return sxy / math.Sqrt(sxx*syy)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
