// Package compute is the boundary between the application shell and the
// numerical engine. The shell submits operations through the Gateway
// interface and folds the typed results back into its session; it never
// touches recordings, decompositions or epochs directly.
package compute

import (
	"fmt"
	"time"

	"neuroflow/internal/dsp"
	"neuroflow/internal/eeg"
)

// Gateway is the operation surface of the numerical engine. Mutating
// operations replace engine state only when they succeed, so a failed
// call leaves the previous dataset intact.
type Gateway interface {
	// Load replaces the whole engine state with the recording at path.
	Load(path string) (*LoadResult, error)
	// Filter applies a frequency filter to the current recording.
	Filter(spec dsp.FilterSpec) (*FilterResult, error)
	// FitICA decomposes the current recording into independent components.
	FitICA() (*ICAResult, error)
	// ApplyICA reconstructs the recording without the excluded components.
	ApplyICA(excluded []int) (*ApplyResult, error)
	// BuildEpochs cuts the recording around every event with the given label.
	BuildEpochs(def EpochDef) (*EpochsResult, error)
	// DropEpochs marks the listed epoch indices as rejected.
	DropEpochs(indices []int) (*DropResult, error)
	// DropEpochsPeakToPeak rejects epochs whose peak-to-peak amplitude
	// exceeds the threshold.
	DropEpochsPeakToPeak(threshold float64) (*DropResult, error)
	// ComputeERP averages the kept epochs.
	ComputeERP() (*ERPResult, error)
	// ComputeTFR computes a Morlet time-frequency map over the kept epochs.
	ComputeTFR(fmin, fmax float64) (*TFRResult, error)
	// ComputeConnectivity computes band-limited wPLI between channels.
	ComputeConnectivity(fmin, fmax float64) (*ConnectivityResult, error)
	// Save writes the current recording to path.
	Save(path string) (*SaveResult, error)

	// Channels returns a copy of the channel descriptions.
	Channels() []eeg.Channel
	// Events returns a copy of the event list.
	Events() []eeg.Event
	// ComponentPattern returns the scalp weights of one fitted component
	// together with the channels they belong to.
	ComponentPattern(comp int) ([]eeg.Channel, []float64, error)
	// ComponentSource returns the activation time course of one fitted
	// component with its sampling rate.
	ComponentSource(comp int) ([]float64, float64, error)
}

// EpochDef is an epoching request: cut a window around every event
// carrying the label.
type EpochDef struct {
	Event string
	Tmin  float64
	Tmax  float64
}

// DatasetInfo is the summary shown in the dataset panel and info dialog.
type DatasetInfo struct {
	Path         string
	Stem         string
	SampleRate   float64
	NChannels    int
	NSamples     int
	Duration     float64
	MeasDate     time.Time
	TypeCounts   map[eeg.ChannelType]int
	Positioned   int
	EventCounts  map[string]int
	ChannelNames []string
}

// EpochSummary is one row of the epoch inspection table.
type EpochSummary struct {
	Index      int
	PeakToPeak float64
	Rejected   bool
}

type LoadResult struct {
	Info *DatasetInfo
}

type FilterResult struct {
	Spec dsp.FilterSpec
	PSD  *dsp.PSD
}

type ICAResult struct {
	NComponents int
	Converged   bool
	Iterations  int
}

type ApplyResult struct {
	Excluded []int
	PSD      *dsp.PSD
}

type EpochsResult struct {
	Def       EpochDef
	Summaries []EpochSummary
	Times     []float64
}

type DropResult struct {
	Kept      int
	Rejected  int
	Summaries []EpochSummary
}

type ERPResult struct {
	Evoked *eeg.Evoked
}

type TFRResult struct {
	Freqs []float64
	Times []float64
	// Power is the freq × time map averaged over kept epochs and EEG
	// channels.
	Power [][]float64
}

type ConnectivityResult struct {
	Band    [2]float64
	Names   []string
	Matrix  [][]float64
	NEpochs int
}

type SaveResult struct {
	// Path is the written artifact, extension resolved.
	Path string
}

// LoadError means a recording could not be brought into the engine. The
// dataset that was loaded before the attempt, if any, is untouched.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ComputationError means a numerical operation failed mid-flight. Engine
// state is whatever the last successful operation left behind.
type ComputationError struct {
	Op  string
	Err error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}
