package eeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// epochsFixture is a 2-channel 100 Hz recording, 10 s long, with a
// constant offset of 5 µV on channel 0 and events at 1 s, 5 s and one
// whose window would run past the end of the recording.
func epochsFixture(t *testing.T) *Raw {
	t.Helper()
	r := testRaw(t, []string{"Fz", "Cz"}, 1000)
	for i := range r.Data[0] {
		r.Data[0][i] = 5.0
	}
	r.Events = []Event{
		{Sample: 100, Label: "Stimulus/S  1"},
		{Sample: 500, Label: "Stimulus/S  1"},
		{Sample: 990, Label: "Stimulus/S  1"},
		{Sample: 300, Label: "Stimulus/S  2"},
	}
	return r
}

func TestExtractEpochs(t *testing.T) {
	r := epochsFixture(t)
	ep, err := ExtractEpochs(r, "Stimulus/S  1", -0.2, 0.8)
	require.NoError(t, err)

	assert.Equal(t, 2, ep.NEpochs(), "the event at 9.9 s does not fit the window")
	assert.Len(t, ep.Times, 101)
	assert.InDelta(t, -0.2, ep.Times[0], 1e-9)
	assert.InDelta(t, 0.0, ep.Times[20], 1e-9)
	assert.InDelta(t, 0.8, ep.Times[100], 1e-9)

	// The constant offset is removed by the baseline.
	for _, v := range ep.Data[0][0] {
		assert.InDelta(t, 0.0, v, 1e-9)
	}

	assert.Equal(t, 2, ep.KeptCount())
	assert.Equal(t, 0, ep.RejectedCount())
}

func TestExtractEpochsErrors(t *testing.T) {
	r := epochsFixture(t)

	_, err := ExtractEpochs(r, "Response/R  1", -0.2, 0.8)
	assert.Error(t, err, "unknown event label")

	_, err = ExtractEpochs(r, "Stimulus/S  1", 0.8, -0.2)
	assert.Error(t, err, "inverted window")

	// A window no event can satisfy.
	_, err = ExtractEpochs(r, "Stimulus/S  2", -10.0, 10.0)
	assert.Error(t, err)
}

func TestRejectAndAverage(t *testing.T) {
	r := epochsFixture(t)
	// Distinguish the two epochs on channel 1 after the onset.
	r.Data[1][150] = 10.0 // inside epoch 0 at t = +0.5 s
	r.Data[1][550] = 20.0 // inside epoch 1 at t = +0.5 s

	ep, err := ExtractEpochs(r, "Stimulus/S  1", -0.2, 0.8)
	require.NoError(t, err)

	evoked, err := ep.Average()
	require.NoError(t, err)
	assert.Equal(t, 2, evoked.NAveraged)
	assert.InDelta(t, 15.0, evoked.Data[1][70], 1e-9, "mean of both spikes at t=0.5")

	require.NoError(t, ep.Reject([]int{1}))
	assert.Equal(t, 1, ep.KeptCount())
	assert.Equal(t, []int{0}, ep.KeptIndices())

	evoked, err = ep.Average()
	require.NoError(t, err)
	assert.Equal(t, 1, evoked.NAveraged)
	assert.InDelta(t, 10.0, evoked.Data[1][70], 1e-9)

	assert.Error(t, ep.Reject([]int{5}), "out of range")

	require.NoError(t, ep.Reject([]int{0}))
	_, err = ep.Average()
	assert.Error(t, err, "nothing left to average")
}

func TestRejectPeakToPeak(t *testing.T) {
	r := epochsFixture(t)
	r.Channels[1].Type = ChannelEOG
	r.Data[0][150] = 200.0 // EEG spike in epoch 0
	r.Data[1][550] = 500.0 // EOG spike in epoch 1, must not count

	ep, err := ExtractEpochs(r, "Stimulus/S  1", -0.2, 0.8)
	require.NoError(t, err)

	assert.Greater(t, ep.PeakToPeak(0), 100.0)
	assert.Less(t, ep.PeakToPeak(1), 100.0)

	rejected := ep.RejectPeakToPeak(100.0)
	assert.Equal(t, 1, rejected)
	assert.True(t, ep.Rejected[0])
	assert.False(t, ep.Rejected[1])

	assert.Equal(t, 0, ep.RejectPeakToPeak(100.0), "already rejected epochs are not recounted")
}
