package history

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func ts(h, m, s int) time.Time {
	return time.Date(2026, 8, 23, h, m, s, 0, time.UTC)
}

func sessionLedger() *Ledger {
	l := NewLedger()
	l.Reset()
	l.Append(DataLoaded(ts(14, 21, 5), "subject01.vhdr"))
	l.Append(FilterApplied(ts(14, 23, 41), ptr(1.0), ptr(40.0), ptr(50.0)))
	l.Append(ComponentsExcluded(ts(14, 30, 2), []int{0, 3}))
	l.Append(EpochsRejected(ts(14, 41, 18), "Stimulus/S  1", -0.2, 0.8, 85, 5))
	return l
}

func TestFirstEntryIsDataLoaded(t *testing.T) {
	l := sessionLedger()
	entries := l.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, ActionDataLoaded, entries[0].Action)
	assert.JSONEq(t, `{"filename": "subject01.vhdr"}`, string(entries[0].Params))

	// A new recording resets the ledger before its data_loaded entry.
	l.Reset()
	l.Append(DataLoaded(ts(15, 0, 0), "subject02.edf"))
	entries = l.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, ActionDataLoaded, entries[0].Action)
	assert.JSONEq(t, `{"filename": "subject02.edf"}`, string(entries[0].Params))
}

func TestSerializeEmpty(t *testing.T) {
	data, err := NewLedger().Serialize()
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestSerializeRoundTrip(t *testing.T) {
	l := sessionLedger()
	first, err := l.Serialize()
	require.NoError(t, err)

	parsed, err := Parse(first)
	require.NoError(t, err)
	assert.Equal(t, l.Entries(), parsed.Entries())

	second, err := parsed.Serialize()
	require.NoError(t, err)
	assert.Equal(t, first, second, "serialization must be byte-stable")
}

func TestSerializedShape(t *testing.T) {
	data, err := sessionLedger().Serialize()
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(data, []byte("[")))
	assert.Contains(t, string(data), `"timestamp": "2026-08-23T14:21:05Z"`)
	assert.Contains(t, string(data), `"action": "data_loaded"`)
	assert.Contains(t, string(data), `"action": "manual_epoch_rejection"`)

	// Params keep their declared field order.
	hp := bytes.Index(data, []byte(`"highpass"`))
	lp := bytes.Index(data, []byte(`"lowpass"`))
	nt := bytes.Index(data, []byte(`"notch"`))
	require.NotEqual(t, -1, hp)
	assert.Less(t, hp, lp)
	assert.Less(t, lp, nt)
}

func TestDisabledCutoffsAreNull(t *testing.T) {
	e := FilterApplied(ts(10, 0, 0), nil, ptr(40.0), nil)
	assert.JSONEq(t, `{"highpass": null, "lowpass": 40, "notch": null}`, string(e.Params))
}

func TestRejectionParams(t *testing.T) {
	e := EpochsRejected(ts(10, 0, 0), "Stimulus/S  1", -0.2, 0.8, 85, 5)
	assert.Equal(t, ActionEpochRejection, e.Action)
	assert.JSONEq(t, `{"event": "Stimulus/S  1", "tmin": -0.2, "tmax": 0.8, "kept": 85, "rejected": 5}`,
		string(e.Params))
}

func TestEntriesReturnsCopy(t *testing.T) {
	l := sessionLedger()
	entries := l.Entries()
	entries[0] = Entry{}
	assert.Equal(t, ActionDataLoaded, l.Entries()[0].Action)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("{not json"))
	assert.Error(t, err)
}
