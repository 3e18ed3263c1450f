package edf

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"neuroflow/internal/eeg"
)

// Read loads an EDF or EDF+ file. All data signals must share one
// sampling rate; annotation signals are turned into events instead of
// channels. Samples are returned in each signal's physical dimension.
func Read(path string) (*eeg.Raw, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(payload) < 256 {
		return nil, fmt.Errorf("%s: file shorter than the EDF header", path)
	}

	h, headerBytes, err := parseFileHeader(path, payload)
	if err != nil {
		return nil, err
	}

	var dataIdx []int
	recordSamples := 0
	for i := range h.Signals {
		recordSamples += h.Signals[i].SamplesPerRecord
		if !h.Signals[i].annotation() {
			dataIdx = append(dataIdx, i)
		}
	}
	if len(dataIdx) == 0 {
		return nil, fmt.Errorf("%s: no data signals", path)
	}

	spr := h.Signals[dataIdx[0]].SamplesPerRecord
	for _, i := range dataIdx {
		if h.Signals[i].SamplesPerRecord != spr {
			return nil, fmt.Errorf("%s: mixed sampling rates (%d and %d samples per record)",
				path, spr, h.Signals[i].SamplesPerRecord)
		}
	}
	if h.RecordDur <= 0 {
		return nil, fmt.Errorf("%s: non-positive record duration %g", path, h.RecordDur)
	}
	rate := float64(spr) / h.RecordDur

	recordBytes := 2 * recordSamples
	body := payload[headerBytes:]
	nrec := h.NRecords
	if nrec < 0 {
		// An unknown record count is stored as -1.
		nrec = len(body) / recordBytes
	}
	if len(body) < nrec*recordBytes {
		return nil, fmt.Errorf("%s: %d records declared but only %d bytes of data",
			path, nrec, len(body))
	}

	nsamp := nrec * spr
	data := make([][]float64, len(dataIdx))
	slopes := make([]float64, len(dataIdx))
	for k, i := range dataIdx {
		s := &h.Signals[i]
		if s.DigMax == s.DigMin {
			return nil, fmt.Errorf("%s: signal %q has a flat digital range", path, s.Label)
		}
		slopes[k] = (s.PhysMax - s.PhysMin) / float64(s.DigMax-s.DigMin)
		data[k] = make([]float64, 0, nsamp)
	}

	var annBuf []byte
	off := 0
	for r := 0; r < nrec; r++ {
		k := 0
		for i := range h.Signals {
			s := &h.Signals[i]
			n := 2 * s.SamplesPerRecord
			chunk := body[off : off+n]
			off += n
			if s.annotation() {
				annBuf = append(annBuf, chunk...)
				continue
			}
			for b := 0; b < n; b += 2 {
				d := int(int16(binary.LittleEndian.Uint16(chunk[b:])))
				data[k] = append(data[k], float64(d-s.DigMin)*slopes[k]+s.PhysMin)
			}
			k++
		}
	}

	channels := make([]eeg.Channel, len(dataIdx))
	for k, i := range dataIdx {
		channels[k] = eeg.Channel{Name: h.Signals[i].Label, Unit: h.Signals[i].Dimension}
	}
	raw, err := eeg.NewRaw(rate, channels, data)
	if err != nil {
		return nil, err
	}
	raw.MeasDate = h.Start
	raw.Events = parseAnnotations(annBuf, rate, nsamp)
	return raw, nil
}

func parseFileHeader(path string, payload []byte) (*fileHeader, int, error) {
	head := payload[:256]
	if v := field(head, 0, 8); v != "0" {
		return nil, 0, fmt.Errorf("%s: unsupported EDF version %q", path, v)
	}

	ns, err := intField(head, 252, 4, "signal count")
	if err != nil || ns <= 0 {
		return nil, 0, fmt.Errorf("%s: bad signal count", path)
	}
	headerBytes := 256 * (ns + 1)
	if len(payload) < headerBytes {
		return nil, 0, fmt.Errorf("%s: truncated signal headers", path)
	}

	h := &fileHeader{Start: parseStart(field(head, 168, 8), field(head, 176, 8))}
	if h.NRecords, err = intField(head, 236, 8, "record count"); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	if h.RecordDur, err = floatField(head, 244, 8, "record duration"); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}

	block := payload[256:headerBytes]
	h.Signals = make([]signalHeader, ns)
	base := 0
	for fi, width := range signalWidths {
		for i := 0; i < ns; i++ {
			s := &h.Signals[i]
			off := base + i*width
			var err error
			switch fi {
			case 0:
				s.Label = field(block, off, width)
			case 1:
				s.Transducer = field(block, off, width)
			case 2:
				s.Dimension = field(block, off, width)
			case 3:
				s.PhysMin, err = floatField(block, off, width, "physical minimum")
			case 4:
				s.PhysMax, err = floatField(block, off, width, "physical maximum")
			case 5:
				s.DigMin, err = intField(block, off, width, "digital minimum")
			case 6:
				s.DigMax, err = intField(block, off, width, "digital maximum")
			case 7:
				s.Prefilter = field(block, off, width)
			case 8:
				s.SamplesPerRecord, err = intField(block, off, width, "samples per record")
			}
			if err != nil {
				return nil, 0, fmt.Errorf("%s: signal %d: %w", path, i+1, err)
			}
		}
		base += ns * width
	}
	for i := range h.Signals {
		if h.Signals[i].SamplesPerRecord <= 0 {
			return nil, 0, fmt.Errorf("%s: signal %d declares %d samples per record",
				path, i+1, h.Signals[i].SamplesPerRecord)
		}
	}
	return h, headerBytes, nil
}

// parseAnnotations decodes EDF+ timestamped annotation lists. Each list
// is "+onset[\x15duration]\x14label\x14...\x00"; lists without a label
// are record-start markers and carry no event.
func parseAnnotations(buf []byte, rate float64, nsamp int) []eeg.Event {
	var events []eeg.Event
	for _, tal := range strings.Split(string(buf), "\x00") {
		if tal == "" {
			continue
		}
		tokens := strings.Split(tal, "\x14")
		onsetStr := tokens[0]
		if i := strings.Index(onsetStr, "\x15"); i >= 0 {
			onsetStr = onsetStr[:i]
		}
		onset, err := strconv.ParseFloat(onsetStr, 64)
		if err != nil {
			continue
		}
		sample := int(math.Round(onset * rate))
		if sample < 0 || sample >= nsamp {
			continue
		}
		for _, label := range tokens[1:] {
			if label == "" {
				continue
			}
			events = append(events, eeg.Event{Sample: sample, Label: label})
		}
	}
	return events
}
