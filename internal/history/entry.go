// Package history records the dataset-mutating operations of a session in
// an append-only ledger. The ledger is what makes a cleaned recording
// reproducible: it is exported next to saved data as a JSON sidecar and
// must serialize identically for identical content, so files can be
// diffed across sessions.
package history

import (
	"encoding/json"
	"time"
)

// Action names the kind of operation a ledger entry records. Only
// operations that change the dataset are recorded; derived analyses and
// saves are not.
type Action string

const (
	ActionDataLoaded     Action = "data_loaded"
	ActionFilter         Action = "filter"
	ActionICAExclusion   Action = "ica_exclusion"
	ActionEpochRejection Action = "manual_epoch_rejection"
)

// Entry is one ledger record. Params is the compact JSON encoding of the
// per-action parameter struct; keeping it raw preserves the field order
// the builders produce.
type Entry struct {
	Timestamp string          `json:"timestamp"`
	Action    Action          `json:"action"`
	Params    json.RawMessage `json:"params"`
}

// LoadParams are the parameters of a data_loaded entry.
type LoadParams struct {
	Filename string `json:"filename"`
}

// FilterParams are the parameters of a filter entry. A nil cutoff means
// that filter was disabled.
type FilterParams struct {
	Highpass *float64 `json:"highpass"`
	Lowpass  *float64 `json:"lowpass"`
	Notch    *float64 `json:"notch"`
}

// ExclusionParams are the parameters of an ica_exclusion entry.
type ExclusionParams struct {
	ExcludedComponents []int `json:"excluded_components"`
}

// RejectionParams are the parameters of a manual_epoch_rejection entry.
type RejectionParams struct {
	Event    string  `json:"event"`
	Tmin     float64 `json:"tmin"`
	Tmax     float64 `json:"tmax"`
	Kept     int     `json:"kept"`
	Rejected int     `json:"rejected"`
}

// DataLoaded builds the entry appended right after a recording is loaded.
// Filename is the full basename of the loaded file, extension included.
func DataLoaded(ts time.Time, filename string) Entry {
	return newEntry(ts, ActionDataLoaded, LoadParams{Filename: filename})
}

// FilterApplied builds a filter entry. Nil cutoffs are recorded as null.
func FilterApplied(ts time.Time, highpass, lowpass, notch *float64) Entry {
	return newEntry(ts, ActionFilter, FilterParams{
		Highpass: highpass,
		Lowpass:  lowpass,
		Notch:    notch,
	})
}

// ComponentsExcluded builds an ica_exclusion entry.
func ComponentsExcluded(ts time.Time, excluded []int) Entry {
	if excluded == nil {
		excluded = []int{}
	}
	return newEntry(ts, ActionICAExclusion, ExclusionParams{ExcludedComponents: excluded})
}

// EpochsRejected builds a manual_epoch_rejection entry. Kept and rejected
// are the counts after the rejection took effect.
func EpochsRejected(ts time.Time, event string, tmin, tmax float64, kept, rejected int) Entry {
	return newEntry(ts, ActionEpochRejection, RejectionParams{
		Event:    event,
		Tmin:     tmin,
		Tmax:     tmax,
		Kept:     kept,
		Rejected: rejected,
	})
}

func newEntry(ts time.Time, action Action, params any) Entry {
	raw, err := json.Marshal(params)
	if err != nil {
		// Param structs hold only plain scalar fields.
		raw = json.RawMessage(`{}`)
	}
	return Entry{
		Timestamp: ts.Format(time.RFC3339),
		Action:    action,
		Params:    raw,
	}
}
