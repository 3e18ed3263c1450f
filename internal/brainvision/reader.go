package brainvision

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"neuroflow/internal/eeg"
)

// Read loads the recording described by a .vhdr header file. The data
// and marker files named in the header are resolved relative to the
// header's directory. Samples are returned resolution-scaled in the
// channel's declared unit.
func Read(path string) (*eeg.Raw, error) {
	h, err := parseHeader(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)

	data, err := readBinary(filepath.Join(dir, h.DataFile), h)
	if err != nil {
		return nil, err
	}

	channels := make([]eeg.Channel, len(h.Channels))
	for i, hc := range h.Channels {
		channels[i] = eeg.Channel{Name: hc.Name, Unit: hc.Unit}
	}

	raw, err := eeg.NewRaw(h.SampleRate, channels, data)
	if err != nil {
		return nil, err
	}

	if h.MarkerFile != "" {
		markers, err := parseMarkers(filepath.Join(dir, h.MarkerFile))
		if err != nil {
			return nil, err
		}
		n := raw.NSamples()
		for _, m := range markers {
			if m.Type == "New Segment" {
				if raw.MeasDate.IsZero() {
					raw.MeasDate = m.Date
				}
				continue
			}
			if m.Position > n {
				continue
			}
			raw.Events = append(raw.Events, eeg.Event{
				Sample: m.Position - 1,
				Label:  markerLabel(m),
			})
		}
	}
	return raw, nil
}

// markerLabel joins marker type and description the way annotation-style
// tooling names events, e.g. "Stimulus/S  1".
func markerLabel(m marker) string {
	if m.Description == "" {
		return m.Type
	}
	return m.Type + "/" + m.Description
}

// readBinary decodes the .eeg payload into [channel][sample] order.
func readBinary(path string, h *header) ([][]float64, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	nchan := len(h.Channels)
	sampleSize := 4
	if h.BinaryFormat == "INT_16" {
		sampleSize = 2
	}
	frame := nchan * sampleSize
	if len(payload) == 0 || len(payload)%frame != 0 {
		return nil, fmt.Errorf("%s: size %d is not a whole number of %d-channel frames", path, len(payload), nchan)
	}
	nsamp := len(payload) / frame

	data := make([][]float64, nchan)
	for c := range data {
		data[c] = make([]float64, nsamp)
	}

	decode := func(off int) float64 {
		if sampleSize == 2 {
			return float64(int16(binary.LittleEndian.Uint16(payload[off:])))
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[off:])))
	}

	if h.Orientation == "VECTORIZED" {
		off := 0
		for c := 0; c < nchan; c++ {
			res := h.Channels[c].Resolution
			for s := 0; s < nsamp; s++ {
				data[c][s] = decode(off) * res
				off += sampleSize
			}
		}
	} else {
		off := 0
		for s := 0; s < nsamp; s++ {
			for c := 0; c < nchan; c++ {
				data[c][s] = decode(off) * h.Channels[c].Resolution
				off += sampleSize
			}
		}
	}
	return data, nil
}

// IsHeaderPath reports whether the path names a BrainVision header file.
func IsHeaderPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".vhdr")
}
