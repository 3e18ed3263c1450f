package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuroflow/internal/compute"
	"neuroflow/internal/dispatch"
	"neuroflow/internal/dsp"
	"neuroflow/internal/eeg"
	"neuroflow/internal/export"
	"neuroflow/internal/history"
	"neuroflow/internal/pipeline"
)

// fakeGateway is a scriptable computation gateway. Every operation
// returns a canned result, so session tests exercise ordering, gating
// and bookkeeping without real signal processing.
type fakeGateway struct {
	mu        sync.Mutex
	loadGate  chan struct{}
	loadErr   error
	filterErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{}
}

func (g *fakeGateway) setFilterErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.filterErr = err
}

func (g *fakeGateway) Load(path string) (*compute.LoadResult, error) {
	g.mu.Lock()
	gate, err := g.loadGate, g.loadErr
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, &compute.LoadError{Path: path, Err: err}
	}
	info := &compute.DatasetInfo{
		Path:       path,
		Stem:       strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		SampleRate: 100,
		NChannels:  4,
		NSamples:   1000,
		Duration:   10 * time.Second,
	}
	return &compute.LoadResult{Info: info}, nil
}

func (g *fakeGateway) Filter(spec dsp.FilterSpec) (*compute.FilterResult, error) {
	g.mu.Lock()
	err := g.filterErr
	g.mu.Unlock()
	if err != nil {
		return nil, &compute.ComputationError{Op: "filter", Err: err}
	}
	return &compute.FilterResult{Spec: spec, PSD: &dsp.PSD{Freqs: []float64{1, 2}}}, nil
}

func (g *fakeGateway) FitICA() (*compute.ICAResult, error) {
	return &compute.ICAResult{NComponents: 15, Converged: true, Iterations: 42}, nil
}

func (g *fakeGateway) ApplyICA(excluded []int) (*compute.ApplyResult, error) {
	return &compute.ApplyResult{Excluded: excluded, PSD: &dsp.PSD{Freqs: []float64{1, 2}}}, nil
}

func (g *fakeGateway) BuildEpochs(def compute.EpochDef) (*compute.EpochsResult, error) {
	return &compute.EpochsResult{
		Def: def,
		Summaries: []compute.EpochSummary{
			{Index: 0, PeakToPeak: 40}, {Index: 1, PeakToPeak: 210},
			{Index: 2, PeakToPeak: 55}, {Index: 3, PeakToPeak: 190},
			{Index: 4, PeakToPeak: 38},
		},
		Times: []float64{-0.2, 0, 0.2},
	}, nil
}

func (g *fakeGateway) DropEpochs(indices []int) (*compute.DropResult, error) {
	return &compute.DropResult{Kept: 4, Rejected: 1}, nil
}

func (g *fakeGateway) DropEpochsPeakToPeak(threshold float64) (*compute.DropResult, error) {
	return &compute.DropResult{Kept: 3, Rejected: 2}, nil
}

func (g *fakeGateway) ComputeERP() (*compute.ERPResult, error) {
	return &compute.ERPResult{}, nil
}

func (g *fakeGateway) ComputeTFR(fmin, fmax float64) (*compute.TFRResult, error) {
	return &compute.TFRResult{Freqs: []float64{fmin, fmax}}, nil
}

func (g *fakeGateway) ComputeConnectivity(fmin, fmax float64) (*compute.ConnectivityResult, error) {
	return &compute.ConnectivityResult{Band: [2]float64{fmin, fmax}}, nil
}

func (g *fakeGateway) Save(path string) (*compute.SaveResult, error) {
	if err := os.WriteFile(path, []byte("payload"), 0644); err != nil {
		return nil, err
	}
	return &compute.SaveResult{Path: path}, nil
}

func (g *fakeGateway) Channels() []eeg.Channel {
	return []eeg.Channel{{Name: "Cz", Type: eeg.ChannelEEG, Unit: "µV"}}
}

func (g *fakeGateway) Events() []eeg.Event {
	return []eeg.Event{{Sample: 10, Label: "Stimulus/S  1"}}
}

func (g *fakeGateway) ComponentPattern(comp int) ([]eeg.Channel, []float64, error) {
	return g.Channels(), []float64{1}, nil
}

func (g *fakeGateway) ComponentSource(comp int) ([]float64, float64, error) {
	return []float64{0, 1, 0, -1}, 100, nil
}

func subscribe(s *State, event EventType) <-chan any {
	ch := make(chan any, 32)
	s.On(event, func(data any) { ch <- data })
	return ch
}

func waitEvent(t *testing.T, ch <-chan any) any {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestLoadPopulatesSession(t *testing.T) {
	s := NewState(newFakeGateway())
	defer s.Close()
	stages := subscribe(s, EventStageChanged)
	loaded := subscribe(s, EventDatasetLoaded)

	require.NoError(t, s.LoadDataset("/data/sub01_rest.vhdr"))
	info := waitEvent(t, loaded).(*compute.DatasetInfo)
	waitEvent(t, stages)

	assert.Equal(t, "sub01_rest", info.Stem)
	assert.Equal(t, pipeline.StageLoaded, s.Stage())
	assert.Equal(t, "/data/sub01_rest.vhdr", s.SourcePath())
	assert.Equal(t, "sub01_rest", s.SourceStem())

	entries := s.HistoryEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, history.ActionDataLoaded, entries[0].Action)
	assert.JSONEq(t, `{"filename":"sub01_rest.vhdr"}`, string(entries[0].Params))
}

func TestStageGatesAreSynchronous(t *testing.T) {
	s := NewState(newFakeGateway())
	defer s.Close()

	err := s.ApplyFilter(dsp.FilterSpec{Lowpass: 40})
	var sv *pipeline.StageViolation
	require.ErrorAs(t, err, &sv)
	assert.Equal(t, pipeline.OpFilter, sv.Op)
	assert.Equal(t, pipeline.StageEmpty, sv.Current)

	// The rejection touched nothing.
	assert.False(t, s.Busy())
	assert.Empty(t, s.HistoryEntries())
	assert.Equal(t, pipeline.StageEmpty, s.Stage())
}

func TestApplyICANeedsDecomposition(t *testing.T) {
	s := NewState(newFakeGateway())
	defer s.Close()
	stages := subscribe(s, EventStageChanged)

	require.NoError(t, s.LoadDataset("a.vhdr"))
	waitEvent(t, stages)
	require.NoError(t, s.ApplyFilter(dsp.FilterSpec{Highpass: 1}))
	waitEvent(t, stages)

	// Filtered but never decomposed; stage order alone must not let
	// the apply through.
	err := s.ApplyICA([]int{0})
	var sv *pipeline.StageViolation
	require.ErrorAs(t, err, &sv)
	assert.Equal(t, pipeline.OpApplyICA, sv.Op)
	assert.Equal(t, pipeline.StageICADecomposed, sv.Required)
}

func TestBusyRejection(t *testing.T) {
	gw := newFakeGateway()
	gw.loadGate = make(chan struct{})
	s := NewState(gw)
	defer s.Close()
	stages := subscribe(s, EventStageChanged)

	require.NoError(t, s.LoadDataset("a.vhdr"))
	err := s.LoadDataset("b.vhdr")
	require.ErrorIs(t, err, dispatch.ErrBusy)

	close(gw.loadGate)
	waitEvent(t, stages)

	// The lane is free again once the outcome has been folded in.
	require.NoError(t, s.LoadDataset("c.vhdr"))
	waitEvent(t, stages)
	assert.Equal(t, "c", s.SourceStem())
}

func TestFullSequenceLedger(t *testing.T) {
	s := NewState(newFakeGateway())
	defer s.Close()
	stages := subscribe(s, EventStageChanged)
	step := func(err error) {
		t.Helper()
		require.NoError(t, err)
		waitEvent(t, stages)
	}

	step(s.LoadDataset("/data/sub01_rest.vhdr"))
	step(s.ApplyFilter(dsp.FilterSpec{Highpass: 1, Lowpass: 40, Notch: 50}))
	step(s.RunICA())
	step(s.ApplyICA([]int{0, 3}))
	step(s.BuildEpochs("Stimulus/S  1", -0.2, 0.8))
	step(s.DropEpochsPeakToPeak(120))

	assert.Equal(t, pipeline.StageEpochsInspected, s.Stage())

	// Four entries: the ICA fit and the epoch build change no data and
	// are not recorded.
	entries := s.HistoryEntries()
	require.Len(t, entries, 4)
	assert.Equal(t, history.ActionDataLoaded, entries[0].Action)
	assert.Equal(t, history.ActionFilter, entries[1].Action)
	assert.JSONEq(t, `{"highpass":1,"lowpass":40,"notch":50}`, string(entries[1].Params))
	assert.Equal(t, history.ActionICAExclusion, entries[2].Action)
	assert.JSONEq(t, `{"excluded_components":[0,3]}`, string(entries[2].Params))
	assert.Equal(t, history.ActionEpochRejection, entries[3].Action)
	assert.JSONEq(t, `{"event":"Stimulus/S  1","tmin":-0.2,"tmax":0.8,"kept":3,"rejected":2}`,
		string(entries[3].Params))
}

func TestSecondLoadResetsSession(t *testing.T) {
	s := NewState(newFakeGateway())
	defer s.Close()
	stages := subscribe(s, EventStageChanged)
	step := func(err error) {
		t.Helper()
		require.NoError(t, err)
		waitEvent(t, stages)
	}

	step(s.LoadDataset("first.vhdr"))
	step(s.ApplyFilter(dsp.FilterSpec{Lowpass: 40}))
	step(s.RunICA())
	require.NotNil(t, s.Spectrum())
	require.NotNil(t, s.Decomposition())

	step(s.LoadDataset("second.edf"))

	assert.Equal(t, pipeline.StageLoaded, s.Stage())
	assert.Nil(t, s.Spectrum())
	assert.Nil(t, s.Decomposition())
	entries := s.HistoryEntries()
	require.Len(t, entries, 1)
	assert.JSONEq(t, `{"filename":"second.edf"}`, string(entries[0].Params))
}

func TestSaveWritesHistorySidecar(t *testing.T) {
	dir := t.TempDir()
	s := NewState(newFakeGateway())
	defer s.Close()
	stages := subscribe(s, EventStageChanged)
	saved := subscribe(s, EventDatasetSaved)
	step := func(err error) {
		t.Helper()
		require.NoError(t, err)
		waitEvent(t, stages)
	}

	step(s.LoadDataset("/data/sub01_rest.vhdr"))
	step(s.ApplyFilter(dsp.FilterSpec{Notch: 50}))

	target := filepath.Join(dir, "cleaned.vhdr")
	require.NoError(t, s.SaveDataset(target))
	out := waitEvent(t, saved).(*export.Outcome)
	waitEvent(t, stages)

	// The sidecar is named after the loaded recording, not the target.
	assert.Equal(t, target, out.DataPath)
	assert.Equal(t, filepath.Join(dir, "sub01_rest_history.json"), out.SidecarPath)
	require.NoError(t, out.SidecarErr)

	data, err := os.ReadFile(out.SidecarPath)
	require.NoError(t, err)
	want, err := s.HistoryJSON()
	require.NoError(t, err)
	assert.Equal(t, string(want), string(data))

	_, err = os.Stat(target)
	require.NoError(t, err)

	// Saving is not a dataset mutation and adds no ledger entry.
	assert.Len(t, s.HistoryEntries(), 2)
}

func TestFailedOperationKeepsStage(t *testing.T) {
	gw := newFakeGateway()
	gw.setFilterErr(errors.New("ringing"))
	s := NewState(gw)
	defer s.Close()
	stages := subscribe(s, EventStageChanged)
	failures := subscribe(s, EventOperationFailed)

	require.NoError(t, s.LoadDataset("a.vhdr"))
	waitEvent(t, stages)

	require.NoError(t, s.ApplyFilter(dsp.FilterSpec{Lowpass: 40}))
	fail := waitEvent(t, failures).(OpError)
	assert.Equal(t, pipeline.OpFilter, fail.Op)
	assert.ErrorContains(t, fail.Err, "ringing")

	assert.Equal(t, pipeline.StageLoaded, s.Stage())
	assert.Len(t, s.HistoryEntries(), 1)

	// The lane recovers and the same operation can be retried.
	gw.setFilterErr(nil)
	require.NoError(t, s.ApplyFilter(dsp.FilterSpec{Lowpass: 40}))
	waitEvent(t, stages)
	assert.Equal(t, pipeline.StageFiltered, s.Stage())
	assert.Len(t, s.HistoryEntries(), 2)
}
