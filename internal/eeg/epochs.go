package eeg

import (
	"fmt"
	"math"
)

// Epochs is a set of equal-length windows cut around the occurrences of
// one event. Rejected marks epochs excluded from averages and analyses;
// the data itself is kept so the inspection view can still show it.
type Epochs struct {
	Event      string
	Tmin       float64
	Tmax       float64
	SampleRate float64
	Channels   []Channel
	Times      []float64     // seconds relative to the event onset
	Data       [][][]float64 // [epoch][channel][sample]
	Rejected   []bool
}

// Evoked is the per-channel average of the kept epochs.
type Evoked struct {
	Event     string
	NAveraged int
	Channels  []Channel
	Times     []float64
	Data      [][]float64 // [channel][sample]
}

// ExtractEpochs cuts a [tmin, tmax] window (endpoints included) around
// every event with the given label. Each channel of each epoch is
// baseline-corrected by its mean over [tmin, 0] when tmin is negative.
// Events whose window falls outside the recording are skipped; it is an
// error if no event survives or the label does not occur at all.
func ExtractEpochs(r *Raw, label string, tmin, tmax float64) (*Epochs, error) {
	if tmax <= tmin {
		return nil, fmt.Errorf("invalid epoch window [%g, %g]", tmin, tmax)
	}
	events := r.EventsLabeled(label)
	if len(events) == 0 {
		return nil, fmt.Errorf("no events labeled %q in the recording", label)
	}

	start := int(math.Round(tmin * r.SampleRate))
	stop := int(math.Round(tmax * r.SampleRate))
	nsamp := stop - start + 1

	times := make([]float64, nsamp)
	for i := range times {
		times[i] = float64(start+i) / r.SampleRate
	}
	// Baseline samples are the ones at or before the event onset.
	baselineEnd := 0
	if start < 0 {
		baselineEnd = -start + 1
	}

	var data [][][]float64
	for _, ev := range events {
		s0 := ev.Sample + start
		s1 := s0 + nsamp
		if s0 < 0 || s1 > r.NSamples() {
			continue
		}
		epoch := make([][]float64, r.NChannels())
		for c := range r.Data {
			seg := make([]float64, nsamp)
			copy(seg, r.Data[c][s0:s1])
			if baselineEnd > 0 {
				var mean float64
				for _, v := range seg[:baselineEnd] {
					mean += v
				}
				mean /= float64(baselineEnd)
				for i := range seg {
					seg[i] -= mean
				}
			}
			epoch[c] = seg
		}
		data = append(data, epoch)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("all %d %q epochs fall outside the recording", len(events), label)
	}

	channels := make([]Channel, len(r.Channels))
	copy(channels, r.Channels)
	return &Epochs{
		Event:      label,
		Tmin:       tmin,
		Tmax:       tmax,
		SampleRate: r.SampleRate,
		Channels:   channels,
		Times:      times,
		Data:       data,
		Rejected:   make([]bool, len(data)),
	}, nil
}

// NEpochs returns the total number of epochs, rejected ones included.
func (e *Epochs) NEpochs() int {
	return len(e.Data)
}

// KeptCount returns the number of epochs not marked rejected.
func (e *Epochs) KeptCount() int {
	kept := 0
	for _, r := range e.Rejected {
		if !r {
			kept++
		}
	}
	return kept
}

// RejectedCount returns the number of rejected epochs.
func (e *Epochs) RejectedCount() int {
	return e.NEpochs() - e.KeptCount()
}

// KeptIndices returns the indices of the kept epochs in order.
func (e *Epochs) KeptIndices() []int {
	var idx []int
	for i, r := range e.Rejected {
		if !r {
			idx = append(idx, i)
		}
	}
	return idx
}

// Reject marks the listed epochs as rejected. Marking an already
// rejected epoch again is not an error.
func (e *Epochs) Reject(indices []int) error {
	for _, i := range indices {
		if i < 0 || i >= e.NEpochs() {
			return fmt.Errorf("epoch index %d out of range (have %d epochs)", i, e.NEpochs())
		}
	}
	for _, i := range indices {
		e.Rejected[i] = true
	}
	return nil
}

// RejectPeakToPeak rejects every kept epoch whose peak-to-peak amplitude
// on any EEG channel exceeds the threshold. It returns the number of
// newly rejected epochs.
func (e *Epochs) RejectPeakToPeak(threshold float64) int {
	picks := e.eegPicks()
	rejected := 0
	for i := range e.Data {
		if e.Rejected[i] {
			continue
		}
		if e.peakToPeak(i, picks) > threshold {
			e.Rejected[i] = true
			rejected++
		}
	}
	return rejected
}

// PeakToPeak returns the maximum peak-to-peak amplitude of the epoch
// across EEG channels, for the inspection table.
func (e *Epochs) PeakToPeak(epoch int) float64 {
	return e.peakToPeak(epoch, e.eegPicks())
}

func (e *Epochs) eegPicks() []int {
	var picks []int
	for i, ch := range e.Channels {
		if ch.Type == ChannelEEG {
			picks = append(picks, i)
		}
	}
	// Recordings with unlabeled channels still get a sensible answer.
	if len(picks) == 0 {
		picks = make([]int, len(e.Channels))
		for i := range picks {
			picks[i] = i
		}
	}
	return picks
}

func (e *Epochs) peakToPeak(epoch int, picks []int) float64 {
	var worst float64
	for _, c := range picks {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range e.Data[epoch][c] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if ptp := hi - lo; ptp > worst {
			worst = ptp
		}
	}
	return worst
}

// Average returns the per-channel mean of the kept epochs.
func (e *Epochs) Average() (*Evoked, error) {
	kept := e.KeptIndices()
	if len(kept) == 0 {
		return nil, fmt.Errorf("no epochs left to average")
	}
	data := make([][]float64, len(e.Channels))
	for c := range data {
		sum := make([]float64, len(e.Times))
		for _, i := range kept {
			for s, v := range e.Data[i][c] {
				sum[s] += v
			}
		}
		for s := range sum {
			sum[s] /= float64(len(kept))
		}
		data[c] = sum
	}
	channels := make([]Channel, len(e.Channels))
	copy(channels, e.Channels)
	times := make([]float64, len(e.Times))
	copy(times, e.Times)
	return &Evoked{
		Event:     e.Event,
		NAveraged: len(kept),
		Channels:  channels,
		Times:     times,
		Data:      data,
	}, nil
}
