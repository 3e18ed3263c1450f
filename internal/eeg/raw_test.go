package eeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRaw(t *testing.T, names []string, nsamp int) *Raw {
	t.Helper()
	channels := make([]Channel, len(names))
	data := make([][]float64, len(names))
	for i, name := range names {
		channels[i] = Channel{Name: name, Type: ChannelEEG, Unit: "µV"}
		data[i] = make([]float64, nsamp)
	}
	r, err := NewRaw(100.0, channels, data)
	require.NoError(t, err)
	return r
}

func TestNewRawValidation(t *testing.T) {
	ch := []Channel{{Name: "Fz"}, {Name: "Cz"}}

	_, err := NewRaw(0, ch, [][]float64{{1}, {1}})
	assert.Error(t, err)

	_, err = NewRaw(100, ch, [][]float64{{1, 2}})
	assert.Error(t, err)

	_, err = NewRaw(100, ch, [][]float64{{1, 2}, {1}})
	assert.Error(t, err, "ragged data must be rejected")

	r, err := NewRaw(100, ch, [][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, 2, r.NChannels())
	assert.Equal(t, 2, r.NSamples())
	assert.InDelta(t, 0.02, r.Duration(), 1e-12)
}

func TestCopyIsDeep(t *testing.T) {
	r := testRaw(t, []string{"Fz", "Cz"}, 10)
	r.Events = []Event{{Sample: 3, Label: "Stimulus/S  1"}}
	_, err := ApplyMontage(r)
	require.NoError(t, err)
	require.NotNil(t, r.Channels[0].Position)

	c := r.Copy()
	c.Data[0][0] = 99
	c.Channels[0].Position.X = 1
	c.Events[0].Sample = 7

	assert.Equal(t, 0.0, r.Data[0][0])
	assert.Equal(t, 0.0, r.Channels[0].Position.X)
	assert.Equal(t, 3, r.Events[0].Sample)
}

func TestEventAccessors(t *testing.T) {
	r := testRaw(t, []string{"Fz"}, 1000)
	r.Events = []Event{
		{Sample: 100, Label: "Stimulus/S  1"},
		{Sample: 300, Label: "Stimulus/S  2"},
		{Sample: 500, Label: "Stimulus/S  1"},
	}
	assert.Equal(t, map[string]int{"Stimulus/S  1": 2, "Stimulus/S  2": 1}, r.EventCounts())
	assert.Equal(t, []string{"Stimulus/S  1", "Stimulus/S  2"}, r.EventLabels())
	assert.Len(t, r.EventsLabeled("Stimulus/S  1"), 2)
	assert.Empty(t, r.EventsLabeled("Response/R  1"))
}

func TestDetectChannelTypes(t *testing.T) {
	r := testRaw(t, []string{"Fp1", "VEOG", "heog", "EKG", "Cz"}, 10)
	changed := DetectChannelTypes(r)
	assert.Equal(t, 3, changed)
	assert.Equal(t, ChannelEEG, r.Channels[0].Type)
	assert.Equal(t, ChannelEOG, r.Channels[1].Type)
	assert.Equal(t, ChannelEOG, r.Channels[2].Type)
	assert.Equal(t, ChannelECG, r.Channels[3].Type)
	assert.Equal(t, ChannelEEG, r.Channels[4].Type)

	assert.Equal(t, 0, DetectChannelTypes(r), "second pass changes nothing")
	assert.Equal(t, map[ChannelType]int{ChannelEEG: 2, ChannelEOG: 2, ChannelECG: 1}, r.TypeCounts())
}

func TestStandardPositions(t *testing.T) {
	pos, err := StandardPositions()
	require.NoError(t, err)

	cz, ok := pos["CZ"]
	require.True(t, ok)
	assert.InDelta(t, 0, cz.X, 1e-9)
	assert.InDelta(t, 0, cz.Y, 1e-9)
	assert.InDelta(t, 0.095, cz.Z, 1e-9)

	f3, ok3 := pos["F3"]
	f4, ok4 := pos["F4"]
	require.True(t, ok3 && ok4)
	assert.InDelta(t, -f4.X, f3.X, 1e-9, "left/right mirror symmetry")
	assert.InDelta(t, f4.Y, f3.Y, 1e-9)
	assert.InDelta(t, f4.Z, f3.Z, 1e-9)

	// Legacy temporal names resolve to the same spots as the 10-10 names.
	assert.Equal(t, pos["T7"], pos["T3"])
	assert.Equal(t, pos["P8"], pos["T6"])
}

func TestApplyMontage(t *testing.T) {
	r := testRaw(t, []string{"Fp1", "cz", "VEOG", "X1"}, 10)
	DetectChannelTypes(r)

	set, err := ApplyMontage(r)
	require.NoError(t, err)
	assert.Equal(t, 2, set, "Fp1 and cz match, VEOG is not EEG, X1 is unknown")
	assert.NotNil(t, r.Channels[0].Position)
	assert.NotNil(t, r.Channels[1].Position)
	assert.Nil(t, r.Channels[2].Position)
	assert.Nil(t, r.Channels[3].Position)

	set, err = ApplyMontage(r)
	require.NoError(t, err)
	assert.Equal(t, 0, set, "positions are not overwritten")
}
