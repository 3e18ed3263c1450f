// Package app provides application lifecycle management, session state, and events.
package app

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"neuroflow/internal/compute"
	"neuroflow/internal/dispatch"
	"neuroflow/internal/dsp"
	"neuroflow/internal/eeg"
	"neuroflow/internal/export"
	"neuroflow/internal/history"
	"neuroflow/internal/pipeline"
)

// State holds the analysis session: the pipeline position, the history
// ledger, the latest results for display, and the background lane the
// computations run on. Operations are submitted from the interface and
// folded back in on the notification goroutine; every mutation happens
// under the lock and is announced through events.
type State struct {
	mu sync.RWMutex

	gateway    compute.Gateway
	dispatcher *dispatch.Dispatcher
	pipe       *pipeline.State
	ledger     *history.Ledger

	// Identity of the loaded recording. The stem is fixed at load time
	// and names the history sidecar regardless of save names.
	sourcePath string
	sourceStem string
	info       *compute.DatasetInfo

	// Latest results for display
	psd       *dsp.PSD
	ica       *compute.ICAResult
	excluded  []int
	epochs    *compute.EpochsResult
	summaries []compute.EpochSummary
	erp       *compute.ERPResult
	tfr       *compute.TFRResult
	conn      *compute.ConnectivityResult

	// Submission payloads by job id, consumed when the outcome folds in.
	pending map[string]jobParams

	listeners map[EventType][]EventListener

	quit        chan struct{}
	consumeDone chan struct{}
	closeOnce   sync.Once
}

// jobParams carries the submission-side context a folded outcome needs.
type jobParams struct {
	path string
}

// EventType identifies different application events.
type EventType int

const (
	EventDatasetLoaded EventType = iota
	// EventBusyChanged signals that the background lane changed
	// occupancy. It carries no payload; listeners query Busy(), so a
	// late delivery still reads the current state.
	EventBusyChanged
	EventStageChanged
	EventSpectrumUpdated
	EventDecompositionReady
	EventEpochsChanged
	EventERPReady
	EventTFRReady
	EventConnectivityReady
	EventHistoryChanged
	EventDatasetSaved
	EventOperationFailed
	EventStatus
)

// EventListener is called when an event occurs.
type EventListener func(data any)

// OpError is the payload of EventOperationFailed.
type OpError struct {
	Op  pipeline.Operation
	Err error
}

// NewState creates a session around the given computation gateway and
// starts the notification consumer.
func NewState(gateway compute.Gateway) *State {
	s := &State{
		gateway:     gateway,
		dispatcher:  dispatch.New(),
		pipe:        pipeline.NewState(),
		ledger:      history.NewLedger(),
		pending:     make(map[string]jobParams),
		listeners:   make(map[EventType][]EventListener),
		quit:        make(chan struct{}),
		consumeDone: make(chan struct{}),
	}
	go s.consume()
	return s
}

// Close stops the background lane and the notification consumer. A job
// that already started still runs to completion.
func (s *State) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
		s.dispatcher.Close()
		<-s.consumeDone
	})
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data any) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// LoadDataset brings a recording into the session. Loading is legal at
// any stage and resets the whole session when it completes.
func (s *State) LoadDataset(path string) error {
	return s.submit(pipeline.OpLoad, jobParams{path: path}, func(ctx context.Context) (any, error) {
		return s.gateway.Load(path)
	})
}

// ApplyFilter runs a frequency filter over the recording.
func (s *State) ApplyFilter(spec dsp.FilterSpec) error {
	return s.submit(pipeline.OpFilter, jobParams{}, func(ctx context.Context) (any, error) {
		return s.gateway.Filter(spec)
	})
}

// RunICA fits an independent component decomposition.
func (s *State) RunICA() error {
	return s.submit(pipeline.OpComputeICA, jobParams{}, func(ctx context.Context) (any, error) {
		return s.gateway.FitICA()
	})
}

// ApplyICA reconstructs the recording without the excluded components.
func (s *State) ApplyICA(excluded []int) error {
	return s.submit(pipeline.OpApplyICA, jobParams{}, func(ctx context.Context) (any, error) {
		return s.gateway.ApplyICA(excluded)
	})
}

// BuildEpochs cuts the recording around every event with the label.
func (s *State) BuildEpochs(event string, tmin, tmax float64) error {
	def := compute.EpochDef{Event: event, Tmin: tmin, Tmax: tmax}
	return s.submit(pipeline.OpBuildEpochs, jobParams{}, func(ctx context.Context) (any, error) {
		return s.gateway.BuildEpochs(def)
	})
}

// DropEpochs rejects the listed epoch indices.
func (s *State) DropEpochs(indices []int) error {
	return s.submit(pipeline.OpDropBadEpochs, jobParams{}, func(ctx context.Context) (any, error) {
		return s.gateway.DropEpochs(indices)
	})
}

// DropEpochsPeakToPeak rejects epochs above an amplitude threshold.
func (s *State) DropEpochsPeakToPeak(threshold float64) error {
	return s.submit(pipeline.OpDropBadEpochs, jobParams{}, func(ctx context.Context) (any, error) {
		return s.gateway.DropEpochsPeakToPeak(threshold)
	})
}

// ComputeERP averages the kept epochs.
func (s *State) ComputeERP() error {
	return s.submit(pipeline.OpComputeERP, jobParams{}, func(ctx context.Context) (any, error) {
		return s.gateway.ComputeERP()
	})
}

// ComputeTFR computes a time-frequency map over the kept epochs.
func (s *State) ComputeTFR(fmin, fmax float64) error {
	return s.submit(pipeline.OpComputeTFR, jobParams{}, func(ctx context.Context) (any, error) {
		return s.gateway.ComputeTFR(fmin, fmax)
	})
}

// ComputeConnectivity computes band-limited wPLI between channels.
func (s *State) ComputeConnectivity(fmin, fmax float64) error {
	return s.submit(pipeline.OpComputeConnectivity, jobParams{}, func(ctx context.Context) (any, error) {
		return s.gateway.ComputeConnectivity(fmin, fmax)
	})
}

// SaveDataset writes the recording and its history sidecar. The sidecar
// carries the ledger as of submission and is named after the source
// recording, not the save target.
func (s *State) SaveDataset(path string) error {
	s.mu.RLock()
	historyJSON, err := s.ledger.Serialize()
	stem := s.sourceStem
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	return s.submit(pipeline.OpSave, jobParams{path: path}, func(ctx context.Context) (any, error) {
		return export.Save(s.gateway, path, stem, historyJSON)
	})
}

// submit checks stage legality and hands the job to the background lane.
// A rejected submission leaves the session untouched: a *StageViolation
// when the pipeline is not far enough, dispatch.ErrBusy when a job is
// outstanding. The lock spans the submit and the pending store, so the
// fold cannot observe a job it has no parameters for.
func (s *State) submit(op pipeline.Operation, params jobParams, run dispatch.RunFunc) error {
	s.mu.Lock()
	if err := s.pipe.Check(op); err != nil {
		s.mu.Unlock()
		return err
	}
	id, err := s.dispatcher.Submit(op, run)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.pending[id] = params
	s.mu.Unlock()

	log.Printf("submitted %s", op)
	s.Emit(EventBusyChanged, nil)
	s.Emit(EventStatus, fmt.Sprintf("%s started...", op))
	return nil
}

func (s *State) consume() {
	defer close(s.consumeDone)
	for {
		select {
		case <-s.quit:
			return
		case note := <-s.dispatcher.Notifications():
			s.fold(note)
		}
	}
}

// emission is a deferred Emit; listeners run outside the lock.
type emission struct {
	event EventType
	data  any
}

// fold records a finished job: advance the pipeline, append to the
// ledger, cache the result for display. All of it happens here, on the
// consumer goroutine, so outcomes land in submission order.
func (s *State) fold(note dispatch.Notification) {
	s.mu.Lock()
	params := s.pending[note.JobID]
	delete(s.pending, note.JobID)

	if note.Err != nil {
		s.mu.Unlock()
		log.Printf("%s failed: %v", note.Op, note.Err)
		s.Emit(EventBusyChanged, nil)
		s.Emit(EventOperationFailed, OpError{Op: note.Op, Err: note.Err})
		s.Emit(EventStatus, fmt.Sprintf("%s failed: %v", note.Op, note.Err))
		return
	}

	now := time.Now()
	var out []emission
	switch res := note.Result.(type) {
	case *compute.LoadResult:
		s.pipe.Advance(pipeline.OpLoad)
		s.sourcePath = params.path
		s.sourceStem = res.Info.Stem
		s.info = res.Info
		s.psd, s.ica, s.excluded = nil, nil, nil
		s.epochs, s.summaries = nil, nil
		s.erp, s.tfr, s.conn = nil, nil, nil
		s.ledger.Reset()
		s.ledger.Append(history.DataLoaded(now, filepath.Base(params.path)))
		out = append(out,
			emission{EventDatasetLoaded, res.Info},
			emission{EventHistoryChanged, nil})

	case *compute.FilterResult:
		s.pipe.Advance(pipeline.OpFilter)
		s.psd = res.PSD
		s.ledger.Append(history.FilterApplied(now,
			cutoff(res.Spec.Highpass), cutoff(res.Spec.Lowpass), cutoff(res.Spec.Notch)))
		out = append(out,
			emission{EventSpectrumUpdated, res.PSD},
			emission{EventHistoryChanged, nil})

	case *compute.ICAResult:
		s.pipe.Advance(pipeline.OpComputeICA)
		s.ica = res
		out = append(out, emission{EventDecompositionReady, res})

	case *compute.ApplyResult:
		s.pipe.Advance(pipeline.OpApplyICA)
		s.excluded = res.Excluded
		s.psd = res.PSD
		s.ledger.Append(history.ComponentsExcluded(now, res.Excluded))
		out = append(out,
			emission{EventSpectrumUpdated, res.PSD},
			emission{EventHistoryChanged, nil})

	case *compute.EpochsResult:
		s.pipe.Advance(pipeline.OpBuildEpochs)
		s.epochs = res
		s.summaries = res.Summaries
		s.erp, s.tfr, s.conn = nil, nil, nil
		out = append(out, emission{EventEpochsChanged, res})

	case *compute.DropResult:
		s.pipe.Advance(pipeline.OpDropBadEpochs)
		s.summaries = res.Summaries
		if s.epochs != nil {
			def := s.epochs.Def
			s.ledger.Append(history.EpochsRejected(now,
				def.Event, def.Tmin, def.Tmax, res.Kept, res.Rejected))
		}
		s.erp, s.tfr, s.conn = nil, nil, nil
		out = append(out,
			emission{EventEpochsChanged, nil},
			emission{EventHistoryChanged, nil})

	case *compute.ERPResult:
		s.erp = res
		out = append(out, emission{EventERPReady, res})

	case *compute.TFRResult:
		s.tfr = res
		out = append(out, emission{EventTFRReady, res})

	case *compute.ConnectivityResult:
		s.conn = res
		out = append(out, emission{EventConnectivityReady, res})

	case *export.Outcome:
		out = append(out, emission{EventDatasetSaved, res})
		if res.SidecarErr != nil {
			log.Printf("history sidecar not written: %v", res.SidecarErr)
			out = append(out, emission{EventStatus,
				fmt.Sprintf("saved %s, but the history sidecar failed: %v",
					filepath.Base(res.DataPath), res.SidecarErr)})
		}
	}
	stage := s.pipe.Stage()
	s.mu.Unlock()

	log.Printf("%s finished in %s", note.Op, note.Finished.Sub(note.Started).Round(time.Millisecond))
	s.Emit(EventBusyChanged, nil)
	for _, e := range out {
		s.Emit(e.event, e.data)
	}
	s.Emit(EventStageChanged, stage)
	s.Emit(EventStatus, fmt.Sprintf("%s finished", note.Op))
}

// cutoff converts a filter edge to its history form, nil when disabled.
func cutoff(v float64) *float64 {
	if v > 0 {
		return &v
	}
	return nil
}

// Stage returns the session's pipeline stage.
func (s *State) Stage() pipeline.Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pipe.Stage()
}

// CanRun reports whether an operation is legal at the current stage.
func (s *State) CanRun(op pipeline.Operation) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pipe.CanRun(op)
}

// Busy reports whether a background job is outstanding.
func (s *State) Busy() bool {
	return s.dispatcher.Busy()
}

// Info returns the dataset summary, nil before the first load.
func (s *State) Info() *compute.DatasetInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// SourcePath returns the path of the loaded recording.
func (s *State) SourcePath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sourcePath
}

// SourceStem returns the load-time stem that names the history sidecar.
func (s *State) SourceStem() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sourceStem
}

// Spectrum returns the latest power spectral density, nil before the
// first filter.
func (s *State) Spectrum() *dsp.PSD {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.psd
}

// Decomposition returns the latest ICA fit summary.
func (s *State) Decomposition() *compute.ICAResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ica
}

// Excluded returns the component indices removed by the last apply.
func (s *State) Excluded() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int(nil), s.excluded...)
}

// EpochInfo returns the latest epoching result.
func (s *State) EpochInfo() *compute.EpochsResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epochs
}

// Summaries returns the epoch inspection table rows.
func (s *State) Summaries() []compute.EpochSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]compute.EpochSummary(nil), s.summaries...)
}

// ERP returns the latest evoked response.
func (s *State) ERP() *compute.ERPResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.erp
}

// TFR returns the latest time-frequency map.
func (s *State) TFR() *compute.TFRResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tfr
}

// Connectivity returns the latest connectivity matrix.
func (s *State) Connectivity() *compute.ConnectivityResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

// HistoryEntries returns a copy of the ledger for display.
func (s *State) HistoryEntries() []history.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Entries()
}

// HistoryJSON returns the ledger serialized the way the sidecar stores it.
func (s *State) HistoryJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Serialize()
}

// Channels returns the channel descriptions of the loaded recording.
func (s *State) Channels() []eeg.Channel {
	return s.gateway.Channels()
}

// Events returns the event list of the loaded recording.
func (s *State) Events() []eeg.Event {
	return s.gateway.Events()
}

// ComponentPattern returns the scalp weights of one fitted component.
func (s *State) ComponentPattern(comp int) ([]eeg.Channel, []float64, error) {
	return s.gateway.ComponentPattern(comp)
}

// ComponentSource returns the activation of one fitted component with
// its sampling rate.
func (s *State) ComponentSource(comp int) ([]float64, float64, error) {
	return s.gateway.ComponentSource(comp)
}
