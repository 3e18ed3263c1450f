// Package pipeline tracks how far an analysis session has progressed and
// which operations are legal at each point.
//
// The stage is an explicit value, never inferred from the dataset. It only
// moves forward: repeating an operation that is already satisfied (for
// example re-filtering after ICA) keeps the later stage. Loading a new
// recording is the single exception and resets the whole session.
package pipeline

import "fmt"

// Stage identifies how far the processing pipeline has advanced.
type Stage int

const (
	StageEmpty           Stage = iota // No dataset in the session
	StageLoaded                       // Raw recording in memory
	StageFiltered                     // Frequency filters applied
	StageICADecomposed                // ICA fitted, components available
	StageICAApplied                   // Artifact components removed
	StageEpoched                      // Epochs extracted around an event
	StageEpochsInspected              // Manual epoch rejection done
)

func (s Stage) String() string {
	switch s {
	case StageEmpty:
		return "Empty"
	case StageLoaded:
		return "Loaded"
	case StageFiltered:
		return "Filtered"
	case StageICADecomposed:
		return "ICA Decomposed"
	case StageICAApplied:
		return "ICA Applied"
	case StageEpoched:
		return "Epoched"
	case StageEpochsInspected:
		return "Epochs Inspected"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Operation identifies a pipeline operation subject to stage gating.
type Operation int

const (
	OpLoad Operation = iota
	OpFilter
	OpComputeICA
	OpApplyICA
	OpBuildEpochs
	OpDropBadEpochs
	OpComputeERP
	OpComputeTFR
	OpComputeConnectivity
	OpSave
)

func (op Operation) String() string {
	switch op {
	case OpLoad:
		return "load"
	case OpFilter:
		return "filter"
	case OpComputeICA:
		return "compute-ica"
	case OpApplyICA:
		return "apply-ica"
	case OpBuildEpochs:
		return "build-epochs"
	case OpDropBadEpochs:
		return "drop-bad-epochs"
	case OpComputeERP:
		return "compute-erp"
	case OpComputeTFR:
		return "compute-tfr"
	case OpComputeConnectivity:
		return "compute-connectivity"
	case OpSave:
		return "save"
	default:
		return fmt.Sprintf("operation(%d)", int(op))
	}
}

// RequiredStage returns the minimum stage at which op is legal.
func RequiredStage(op Operation) Stage {
	switch op {
	case OpLoad:
		return StageEmpty
	case OpFilter, OpSave:
		return StageLoaded
	case OpComputeICA, OpBuildEpochs:
		// Epoching does not require ICA, only filtering.
		return StageFiltered
	case OpApplyICA:
		return StageICADecomposed
	case OpDropBadEpochs, OpComputeERP, OpComputeTFR, OpComputeConnectivity:
		return StageEpoched
	default:
		return StageEpochsInspected
	}
}

// StageViolation reports an operation requested before its preconditions
// were met. It names the operation, the stage it needs and the stage the
// session is actually at.
type StageViolation struct {
	Op       Operation
	Required Stage
	Current  Stage
}

func (e *StageViolation) Error() string {
	return fmt.Sprintf("%s requires stage %q or later, session is at %q",
		e.Op, e.Required, e.Current)
}

// State is the session's position in the pipeline. It is owned by the
// control path and is not safe for concurrent use; the owner serializes
// access.
type State struct {
	stage     Stage
	icaFitted bool
}

// NewState returns a pipeline state at StageEmpty.
func NewState() *State {
	return &State{stage: StageEmpty}
}

// Stage returns the current stage.
func (s *State) Stage() Stage {
	return s.stage
}

// ICAFitted reports whether a decomposition was computed this session.
func (s *State) ICAFitted() bool {
	return s.icaFitted
}

// CanRun reports whether op is legal right now. It has no side effects.
func (s *State) CanRun(op Operation) bool {
	if op == OpApplyICA {
		// Stage order alone is not enough here: epoching may legally
		// bypass ICA, so a late stage does not imply a decomposition.
		return s.icaFitted
	}
	return s.stage >= RequiredStage(op)
}

// Check returns nil when op is legal and a *StageViolation otherwise.
func (s *State) Check(op Operation) error {
	if s.CanRun(op) {
		return nil
	}
	return &StageViolation{Op: op, Required: RequiredStage(op), Current: s.stage}
}

// Advance records the successful completion of op and returns the new
// stage. Stages never regress; OpLoad resets the session and is the only
// way back to an earlier stage.
func (s *State) Advance(op Operation) Stage {
	switch op {
	case OpLoad:
		s.stage = StageLoaded
		s.icaFitted = false
	case OpFilter:
		s.raise(StageFiltered)
	case OpComputeICA:
		s.raise(StageICADecomposed)
		s.icaFitted = true
	case OpApplyICA:
		s.raise(StageICAApplied)
	case OpBuildEpochs:
		s.raise(StageEpoched)
	case OpDropBadEpochs:
		s.raise(StageEpochsInspected)
	}
	return s.stage
}

func (s *State) raise(min Stage) {
	if s.stage < min {
		s.stage = min
	}
}
