package compute

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"neuroflow/internal/brainvision"
	"neuroflow/internal/dsp"
	"neuroflow/internal/edf"
	"neuroflow/internal/eeg"
)

const (
	// icaComponents caps the decomposition size; recordings with fewer
	// EEG channels get one component per channel.
	icaComponents = 15
	// icaSeed makes repeated decompositions of the same data identical.
	icaSeed = 97
	// icaFitHighpass is the cutoff of the drift-removal filter applied
	// to the fitting copy. The decomposition itself is applied to the
	// unfiltered data.
	icaFitHighpass = 1.0
	// psdLimit bounds the spectra returned to the display.
	psdLimit = 100.0
)

var (
	errNoData   = errors.New("no dataset loaded")
	errNoEpochs = errors.New("no epochs built")
	errNoICA    = errors.New("no fitted decomposition")
)

// Engine is the gonum-backed Gateway. Operations run on the dispatcher
// goroutine while the shell reads summaries from the interface thread,
// so a mutex serializes all access. Mutating operations work on a copy
// and swap it in only on success.
type Engine struct {
	mu sync.Mutex

	raw  *eeg.Raw
	path string
	stem string

	ica         *dsp.ICAModel
	icaPicks    []int
	icaExcluded []int

	epochDef *EpochDef
	epochs   *eeg.Epochs
}

// NewEngine returns an empty engine; Load brings in the first dataset.
func NewEngine() *Engine {
	return &Engine{}
}

// Load reads the recording at path, infers channel types, attaches
// montage positions and resets all derived state.
func (e *Engine) Load(path string) (*LoadResult, error) {
	raw, err := readRecording(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	eeg.DetectChannelTypes(raw)
	if _, err := eeg.ApplyMontage(raw); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.raw = raw
	e.path = path
	e.stem = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	e.ica, e.icaPicks, e.icaExcluded = nil, nil, nil
	e.epochDef, e.epochs = nil, nil
	return &LoadResult{Info: e.infoLocked()}, nil
}

func readRecording(path string) (*eeg.Raw, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vhdr":
		return brainvision.Read(path)
	case ".edf":
		return edf.Read(path)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

// Filter applies the spec to a copy of the recording and swaps it in on
// success. Epochs, if any, are cut again from the filtered data.
func (e *Engine) Filter(spec dsp.FilterSpec) (*FilterResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.raw == nil {
		return nil, &ComputationError{Op: "filter", Err: errNoData}
	}
	work := e.raw.Copy()
	if err := dsp.Filter(work.Data, work.SampleRate, spec); err != nil {
		return nil, &ComputationError{Op: "filter", Err: err}
	}
	e.raw = work
	if err := e.recutEpochsLocked(); err != nil {
		return nil, &ComputationError{Op: "filter", Err: err}
	}
	psd, err := e.psdLocked()
	if err != nil {
		return nil, &ComputationError{Op: "filter", Err: err}
	}
	return &FilterResult{Spec: spec, PSD: psd}, nil
}

// FitICA decomposes the EEG channels into independent components. The
// fit runs on a high-passed copy so slow drifts do not soak up
// components, but the model stays applicable to the recording itself.
func (e *Engine) FitICA() (*ICAResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.raw == nil {
		return nil, &ComputationError{Op: "compute-ica", Err: errNoData}
	}
	picks := e.eegPicksLocked()

	work := e.raw.Copy()
	if err := dsp.Filter(work.Data, work.SampleRate, dsp.FilterSpec{Highpass: icaFitHighpass}); err != nil {
		return nil, &ComputationError{Op: "compute-ica", Err: err}
	}
	ncomp := icaComponents
	if ncomp > len(picks) {
		ncomp = len(picks)
	}
	model, err := dsp.FitICA(pickRows(work.Data, picks), dsp.ICAConfig{
		Components: ncomp,
		Seed:       icaSeed,
	})
	if err != nil {
		return nil, &ComputationError{Op: "compute-ica", Err: err}
	}
	e.ica = model
	e.icaPicks = picks
	e.icaExcluded = nil
	return &ICAResult{
		NComponents: model.Components,
		Converged:   model.Converged,
		Iterations:  model.Iterations,
	}, nil
}

// ApplyICA reconstructs the recording without the excluded components.
// An empty exclusion list is legal and leaves the signal unchanged.
func (e *Engine) ApplyICA(excluded []int) (*ApplyResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.raw == nil {
		return nil, &ComputationError{Op: "apply-ica", Err: errNoData}
	}
	if e.ica == nil {
		return nil, &ComputationError{Op: "apply-ica", Err: errNoICA}
	}
	work := e.raw.Copy()
	if err := e.ica.Remove(pickRows(work.Data, e.icaPicks), excluded); err != nil {
		return nil, &ComputationError{Op: "apply-ica", Err: err}
	}
	e.raw = work
	e.icaExcluded = normalizeIndices(excluded)
	if err := e.recutEpochsLocked(); err != nil {
		return nil, &ComputationError{Op: "apply-ica", Err: err}
	}
	psd, err := e.psdLocked()
	if err != nil {
		return nil, &ComputationError{Op: "apply-ica", Err: err}
	}
	return &ApplyResult{
		Excluded: append([]int(nil), e.icaExcluded...),
		PSD:      psd,
	}, nil
}

// BuildEpochs cuts a window around every event carrying def.Event and
// replaces any previous epoching.
func (e *Engine) BuildEpochs(def EpochDef) (*EpochsResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.raw == nil {
		return nil, &ComputationError{Op: "build-epochs", Err: errNoData}
	}
	eps, err := eeg.ExtractEpochs(e.raw, def.Event, def.Tmin, def.Tmax)
	if err != nil {
		return nil, &ComputationError{Op: "build-epochs", Err: err}
	}
	e.epochDef = &def
	e.epochs = eps
	return &EpochsResult{
		Def:       def,
		Summaries: e.summariesLocked(),
		Times:     append([]float64(nil), eps.Times...),
	}, nil
}

// DropEpochs marks the listed epochs as rejected.
func (e *Engine) DropEpochs(indices []int) (*DropResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epochs == nil {
		return nil, &ComputationError{Op: "drop-bad-epochs", Err: errNoEpochs}
	}
	if err := e.epochs.Reject(indices); err != nil {
		return nil, &ComputationError{Op: "drop-bad-epochs", Err: err}
	}
	return e.dropResultLocked(), nil
}

// DropEpochsPeakToPeak rejects every kept epoch whose peak-to-peak
// amplitude exceeds the threshold.
func (e *Engine) DropEpochsPeakToPeak(threshold float64) (*DropResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epochs == nil {
		return nil, &ComputationError{Op: "drop-bad-epochs", Err: errNoEpochs}
	}
	if threshold <= 0 {
		return nil, &ComputationError{Op: "drop-bad-epochs",
			Err: fmt.Errorf("rejection threshold must be positive, got %g", threshold)}
	}
	e.epochs.RejectPeakToPeak(threshold)
	return e.dropResultLocked(), nil
}

func (e *Engine) dropResultLocked() *DropResult {
	return &DropResult{
		Kept:      e.epochs.KeptCount(),
		Rejected:  e.epochs.RejectedCount(),
		Summaries: e.summariesLocked(),
	}
}

// ComputeERP averages the kept epochs.
func (e *Engine) ComputeERP() (*ERPResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epochs == nil {
		return nil, &ComputationError{Op: "compute-erp", Err: errNoEpochs}
	}
	evoked, err := e.epochs.Average()
	if err != nil {
		return nil, &ComputationError{Op: "compute-erp", Err: err}
	}
	return &ERPResult{Evoked: evoked}, nil
}

// ComputeTFR returns a Morlet time-frequency map averaged over kept
// epochs and EEG channels.
func (e *Engine) ComputeTFR(fmin, fmax float64) (*TFRResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epochs == nil {
		return nil, &ComputationError{Op: "compute-tfr", Err: errNoEpochs}
	}
	freqs, cycles, err := dsp.FrequencyRange(fmin, fmax)
	if err != nil {
		return nil, &ComputationError{Op: "compute-tfr", Err: err}
	}
	kept := e.epochs.KeptIndices()
	if len(kept) == 0 {
		return nil, &ComputationError{Op: "compute-tfr", Err: errors.New("all epochs are rejected")}
	}
	picks := channelPicks(e.epochs.Channels)

	var avg [][]float64
	for _, ch := range picks {
		chEpochs := make([][]float64, len(kept))
		for k, ei := range kept {
			chEpochs[k] = e.epochs.Data[ei][ch]
		}
		power, err := dsp.MorletPower(chEpochs, e.epochs.SampleRate, freqs, cycles)
		if err != nil {
			return nil, &ComputationError{Op: "compute-tfr", Err: err}
		}
		if avg == nil {
			avg = power
			continue
		}
		for f := range avg {
			for t := range avg[f] {
				avg[f][t] += power[f][t]
			}
		}
	}
	scale := 1.0 / float64(len(picks))
	for f := range avg {
		for t := range avg[f] {
			avg[f][t] *= scale
		}
	}
	return &TFRResult{
		Freqs: freqs,
		Times: append([]float64(nil), e.epochs.Times...),
		Power: avg,
	}, nil
}

// ComputeConnectivity estimates the wPLI between EEG channels in the
// given band over the kept epochs.
func (e *Engine) ComputeConnectivity(fmin, fmax float64) (*ConnectivityResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epochs == nil {
		return nil, &ComputationError{Op: "compute-connectivity", Err: errNoEpochs}
	}
	kept := e.epochs.KeptIndices()
	if len(kept) == 0 {
		return nil, &ComputationError{Op: "compute-connectivity", Err: errors.New("all epochs are rejected")}
	}
	picks := channelPicks(e.epochs.Channels)

	sub := make([][][]float64, len(kept))
	for k, ei := range kept {
		rows := make([][]float64, len(picks))
		for j, p := range picks {
			rows[j] = e.epochs.Data[ei][p]
		}
		sub[k] = rows
	}
	matrix, err := dsp.WPLI(sub, e.epochs.SampleRate, fmin, fmax)
	if err != nil {
		return nil, &ComputationError{Op: "compute-connectivity", Err: err}
	}
	names := make([]string, len(picks))
	for j, p := range picks {
		names[j] = e.epochs.Channels[p].Name
	}
	return &ConnectivityResult{
		Band:    [2]float64{fmin, fmax},
		Names:   names,
		Matrix:  matrix,
		NEpochs: len(kept),
	}, nil
}

// Save writes the current recording. A path without an extension gets
// ".vhdr"; extensions other than .vhdr and .edf are rejected.
func (e *Engine) Save(path string) (*SaveResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.raw == nil {
		return nil, errNoData
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		ext = ".vhdr"
		path += ext
	}
	var err error
	switch ext {
	case ".vhdr":
		err = brainvision.Write(path, e.raw)
	case ".edf":
		err = edf.Write(path, e.raw)
	default:
		err = fmt.Errorf("unsupported export format %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return &SaveResult{Path: path}, nil
}

// Info describes the loaded dataset.
func (e *Engine) Info() (*DatasetInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.raw == nil {
		return nil, errNoData
	}
	return e.infoLocked(), nil
}

func (e *Engine) infoLocked() *DatasetInfo {
	r := e.raw
	positioned := 0
	for _, ch := range r.Channels {
		if ch.Position != nil {
			positioned++
		}
	}
	return &DatasetInfo{
		Path:         e.path,
		Stem:         e.stem,
		SampleRate:   r.SampleRate,
		NChannels:    r.NChannels(),
		NSamples:     r.NSamples(),
		Duration:     r.Duration(),
		MeasDate:     r.MeasDate,
		TypeCounts:   r.TypeCounts(),
		Positioned:   positioned,
		EventCounts:  r.EventCounts(),
		ChannelNames: r.ChannelNames(),
	}
}

// Channels returns a copy of the channel descriptions.
func (e *Engine) Channels() []eeg.Channel {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.raw == nil {
		return nil
	}
	return copyChannels(e.raw.Channels)
}

// Events returns a copy of the event list.
func (e *Engine) Events() []eeg.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.raw == nil {
		return nil
	}
	out := make([]eeg.Event, len(e.raw.Events))
	copy(out, e.raw.Events)
	return out
}

// ComponentPattern returns the scalp weights of one fitted component and
// the channels the decomposition covers.
func (e *Engine) ComponentPattern(comp int) ([]eeg.Channel, []float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ica == nil {
		return nil, nil, errNoICA
	}
	weights, err := e.ica.MixingColumn(comp)
	if err != nil {
		return nil, nil, err
	}
	channels := make([]eeg.Channel, len(e.icaPicks))
	for i, p := range e.icaPicks {
		channels[i] = e.raw.Channels[p]
	}
	return copyChannels(channels), weights, nil
}

// ComponentSource returns the activation time course of one fitted
// component over the current recording, with its sampling rate.
func (e *Engine) ComponentSource(comp int) ([]float64, float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ica == nil {
		return nil, 0, errNoICA
	}
	if comp < 0 || comp >= e.ica.Components {
		return nil, 0, fmt.Errorf("component index %d out of range (model has %d components)",
			comp, e.ica.Components)
	}
	sources, err := e.ica.Sources(pickRows(e.raw.Data, e.icaPicks))
	if err != nil {
		return nil, 0, err
	}
	return sources[comp], e.raw.SampleRate, nil
}

// recutEpochsLocked rebuilds the epochs from the current recording.
// Epochs are views cut from the recording, so a new recording means a
// new cut; rejection flags carry over by index.
func (e *Engine) recutEpochsLocked() error {
	if e.epochDef == nil {
		return nil
	}
	eps, err := eeg.ExtractEpochs(e.raw, e.epochDef.Event, e.epochDef.Tmin, e.epochDef.Tmax)
	if err != nil {
		return fmt.Errorf("failed to rebuild epochs: %w", err)
	}
	if e.epochs != nil && eps.NEpochs() == e.epochs.NEpochs() {
		copy(eps.Rejected, e.epochs.Rejected)
	}
	e.epochs = eps
	return nil
}

func (e *Engine) summariesLocked() []EpochSummary {
	out := make([]EpochSummary, e.epochs.NEpochs())
	for i := range out {
		out[i] = EpochSummary{
			Index:      i,
			PeakToPeak: e.epochs.PeakToPeak(i),
			Rejected:   e.epochs.Rejected[i],
		}
	}
	return out
}

// psdLocked estimates the spectrum of the EEG channels up to psdLimit.
func (e *Engine) psdLocked() (*dsp.PSD, error) {
	picks := e.eegPicksLocked()
	return dsp.Welch(pickRows(e.raw.Data, picks), e.raw.SampleRate, psdLimit)
}

// eegPicksLocked returns the EEG channel indices, or every channel when
// none is typed as EEG.
func (e *Engine) eegPicksLocked() []int {
	picks := e.raw.PickType(eeg.ChannelEEG)
	if len(picks) == 0 {
		picks = make([]int, e.raw.NChannels())
		for i := range picks {
			picks[i] = i
		}
	}
	return picks
}

func channelPicks(channels []eeg.Channel) []int {
	var picks []int
	for i, ch := range channels {
		if ch.Type == eeg.ChannelEEG {
			picks = append(picks, i)
		}
	}
	if len(picks) == 0 {
		picks = make([]int, len(channels))
		for i := range picks {
			picks[i] = i
		}
	}
	return picks
}

func pickRows(data [][]float64, picks []int) [][]float64 {
	rows := make([][]float64, len(picks))
	for i, p := range picks {
		rows[i] = data[p]
	}
	return rows
}

func copyChannels(channels []eeg.Channel) []eeg.Channel {
	out := make([]eeg.Channel, len(channels))
	copy(out, channels)
	for i := range out {
		if p := out[i].Position; p != nil {
			pc := *p
			out[i].Position = &pc
		}
	}
	return out
}

func normalizeIndices(indices []int) []int {
	seen := make(map[int]bool)
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}
