// Package eeg holds in-memory EEG recordings: multi-channel signal
// matrices with channel metadata, annotation events and epoch
// collections cut around those events.
package eeg

import (
	"fmt"
	"sort"
	"time"

	"neuroflow/pkg/geometry"
)

// ChannelType classifies a channel by the signal it carries.
type ChannelType int

const (
	ChannelEEG ChannelType = iota
	ChannelEOG
	ChannelECG
	ChannelMisc
)

func (t ChannelType) String() string {
	switch t {
	case ChannelEEG:
		return "EEG"
	case ChannelEOG:
		return "EOG"
	case ChannelECG:
		return "ECG"
	default:
		return "Misc"
	}
}

// Channel describes one recording channel. Position is nil until a
// montage supplies one; only EEG channels get positions.
type Channel struct {
	Name     string
	Type     ChannelType
	Unit     string
	Position *geometry.Point3D
}

// Event is one annotation marker, anchored to a sample index.
type Event struct {
	Sample int
	Label  string
}

// Raw is a continuous multi-channel recording. Data is laid out
// [channel][sample] in the channel's unit (microvolts for EEG).
// MeasDate is the acquisition start when the source file carries one.
type Raw struct {
	SampleRate float64
	Channels   []Channel
	Data       [][]float64
	Events     []Event
	MeasDate   time.Time
}

// NewRaw builds a recording and validates that every channel has the
// same number of samples.
func NewRaw(sampleRate float64, channels []Channel, data [][]float64) (*Raw, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %g", sampleRate)
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("recording has no channels")
	}
	if len(channels) != len(data) {
		return nil, fmt.Errorf("%d channels but %d data rows", len(channels), len(data))
	}
	n := len(data[0])
	for i, row := range data {
		if len(row) != n {
			return nil, fmt.Errorf("channel %q has %d samples, expected %d",
				channels[i].Name, len(row), n)
		}
	}
	return &Raw{SampleRate: sampleRate, Channels: channels, Data: data}, nil
}

// NChannels returns the number of channels.
func (r *Raw) NChannels() int {
	return len(r.Channels)
}

// NSamples returns the number of samples per channel.
func (r *Raw) NSamples() int {
	if len(r.Data) == 0 {
		return 0
	}
	return len(r.Data[0])
}

// Duration returns the recording length in seconds.
func (r *Raw) Duration() float64 {
	return float64(r.NSamples()) / r.SampleRate
}

// Copy returns a deep copy. The copy shares nothing with the original,
// so a computation can mutate it freely and swap it in only on success.
func (r *Raw) Copy() *Raw {
	channels := make([]Channel, len(r.Channels))
	copy(channels, r.Channels)
	for i := range channels {
		if p := channels[i].Position; p != nil {
			pc := *p
			channels[i].Position = &pc
		}
	}
	data := make([][]float64, len(r.Data))
	for i, row := range r.Data {
		data[i] = make([]float64, len(row))
		copy(data[i], row)
	}
	events := make([]Event, len(r.Events))
	copy(events, r.Events)
	return &Raw{
		SampleRate: r.SampleRate,
		Channels:   channels,
		Data:       data,
		Events:     events,
		MeasDate:   r.MeasDate,
	}
}

// ChannelIndex returns the index of the named channel.
func (r *Raw) ChannelIndex(name string) (int, bool) {
	for i, ch := range r.Channels {
		if ch.Name == name {
			return i, true
		}
	}
	return 0, false
}

// ChannelNames returns the channel names in order.
func (r *Raw) ChannelNames() []string {
	names := make([]string, len(r.Channels))
	for i, ch := range r.Channels {
		names[i] = ch.Name
	}
	return names
}

// PickType returns the indices of all channels of the given type.
func (r *Raw) PickType(t ChannelType) []int {
	var idx []int
	for i, ch := range r.Channels {
		if ch.Type == t {
			idx = append(idx, i)
		}
	}
	return idx
}

// TypeCounts returns how many channels of each type the recording has.
func (r *Raw) TypeCounts() map[ChannelType]int {
	counts := make(map[ChannelType]int)
	for _, ch := range r.Channels {
		counts[ch.Type]++
	}
	return counts
}

// EventCounts returns the number of occurrences per event label.
func (r *Raw) EventCounts() map[string]int {
	counts := make(map[string]int)
	for _, ev := range r.Events {
		counts[ev.Label]++
	}
	return counts
}

// EventLabels returns the distinct event labels, sorted.
func (r *Raw) EventLabels() []string {
	seen := make(map[string]bool)
	var labels []string
	for _, ev := range r.Events {
		if !seen[ev.Label] {
			seen[ev.Label] = true
			labels = append(labels, ev.Label)
		}
	}
	sort.Strings(labels)
	return labels
}

// EventsLabeled returns the events carrying the given label, in order.
func (r *Raw) EventsLabeled(label string) []Event {
	var out []Event
	for _, ev := range r.Events {
		if ev.Label == label {
			out = append(out, ev)
		}
	}
	return out
}
