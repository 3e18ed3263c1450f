// Package edf reads and writes European Data Format recordings.
//
// EDF stores a fixed 256-byte ASCII header, one 256-byte header block
// per signal, and then data records of little-endian int16 samples that
// map linearly onto each signal's physical range. EDF+ annotation
// signals are decoded into events on read and written when the
// recording carries events.
package edf

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const annotationLabel = "EDF Annotations"

// signalWidths are the per-signal header field widths in file order:
// label, transducer, dimension, physical min/max, digital min/max,
// prefiltering, samples per record, reserved.
var signalWidths = []int{16, 80, 8, 8, 8, 8, 8, 80, 8, 32}

type fileHeader struct {
	Start     time.Time
	NRecords  int
	RecordDur float64
	Signals   []signalHeader
}

type signalHeader struct {
	Label            string
	Transducer       string
	Dimension        string
	PhysMin          float64
	PhysMax          float64
	DigMin           int
	DigMax           int
	Prefilter        string
	SamplesPerRecord int
}

func (s *signalHeader) annotation() bool {
	return s.Label == annotationLabel
}

// field extracts a trimmed ASCII header field.
func field(b []byte, off, width int) string {
	return strings.TrimSpace(string(b[off : off+width]))
}

func intField(b []byte, off, width int, name string) (int, error) {
	s := field(b, off, width)
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad %s field %q", name, s)
	}
	return v, nil
}

func floatField(b []byte, off, width int, name string) (float64, error) {
	s := field(b, off, width)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s field %q", name, s)
	}
	return v, nil
}

// edfEpoch is the start-date clipping boundary: two-digit years at or
// after 85 belong to the twentieth century. Writers without a known
// acquisition date use exactly this instant, so the reader maps it back
// to an unknown date.
var edfEpoch = time.Date(1985, 1, 1, 0, 0, 0, 0, time.Local)

// parseStart decodes the dd.mm.yy and hh.mm.ss header fields.
func parseStart(dateStr, timeStr string) time.Time {
	d := strings.Split(dateStr, ".")
	c := strings.Split(timeStr, ".")
	if len(d) != 3 || len(c) != 3 {
		return time.Time{}
	}
	day, err1 := strconv.Atoi(d[0])
	month, err2 := strconv.Atoi(d[1])
	year, err3 := strconv.Atoi(d[2])
	hour, err4 := strconv.Atoi(c[0])
	minute, err5 := strconv.Atoi(c[1])
	second, err6 := strconv.Atoi(c[2])
	for _, err := range []error{err1, err2, err3, err4, err5, err6} {
		if err != nil {
			return time.Time{}
		}
	}
	if year >= 85 {
		year += 1900
	} else {
		year += 2000
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local)
	if t.Equal(edfEpoch) {
		return time.Time{}
	}
	return t
}

func formatStart(t time.Time) (dateStr, timeStr string) {
	if t.IsZero() {
		t = edfEpoch
	}
	return t.Format("02.01.06"), t.Format("15.04.05")
}
