package edf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"neuroflow/internal/eeg"
)

// Write stores the recording as EDF, or EDF+C when it carries events.
// Each channel is scaled onto the full int16 range of its own physical
// extent. The final data record is zero-padded when the sample count is
// not a whole number of records.
func Write(path string, raw *eeg.Raw) error {
	if !strings.EqualFold(filepath.Ext(path), ".edf") {
		return fmt.Errorf("edf: %q is not a .edf path", path)
	}

	dur, spr, err := recordLayout(raw.SampleRate)
	if err != nil {
		return err
	}
	nchan := raw.NChannels()
	nsamp := raw.NSamples()
	nrec := (nsamp + spr - 1) / spr

	physMin := make([]float64, nchan)
	physMax := make([]float64, nchan)
	for c, row := range raw.Data {
		lo, hi := row[0], row[0]
		for _, v := range row {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		// Digitize against the limits as the eight-character header
		// fields will store them, not the exact extremes.
		lo, hi = roundField(lo), roundField(hi)
		if hi <= lo {
			hi = lo + 1
		}
		physMin[c], physMax[c] = lo, hi
	}

	var annRecords [][]byte
	hasAnn := len(raw.Events) > 0
	sprAnn := 0
	if hasAnn {
		annRecords = buildAnnotationRecords(raw, nrec, spr, dur)
		for _, rec := range annRecords {
			if n := (len(rec) + 1) / 2; n > sprAnn {
				sprAnn = n
			}
		}
	}

	ns := nchan
	if hasAnn {
		ns++
	}
	head := buildHeader(raw, ns, nrec, dur, spr, sprAnn, physMin, physMax, hasAnn)

	const digMin, digMax = -32768, 32767
	body := make([]byte, 0, nrec*(nchan*spr+sprAnn)*2)
	sample := make([]byte, 2)
	for r := 0; r < nrec; r++ {
		for c := 0; c < nchan; c++ {
			slope := (physMax[c] - physMin[c]) / float64(digMax-digMin)
			for s := 0; s < spr; s++ {
				idx := r*spr + s
				v := 0.0
				if idx < nsamp {
					v = raw.Data[c][idx]
				}
				d := digMin + int(math.Round((v-physMin[c])/slope))
				if d < digMin {
					d = digMin
				} else if d > digMax {
					d = digMax
				}
				binary.LittleEndian.PutUint16(sample, uint16(int16(d)))
				body = append(body, sample...)
			}
		}
		if hasAnn {
			rec := annRecords[r]
			body = append(body, rec...)
			for pad := len(rec); pad < 2*sprAnn; pad++ {
				body = append(body, 0)
			}
		}
	}

	return os.WriteFile(path, append(head, body...), 0644)
}

// recordLayout picks a record duration of whole seconds that holds an
// integral number of samples. Rates that cannot be laid out within ten
// seconds per record are rejected.
func recordLayout(rate float64) (dur float64, spr int, err error) {
	for k := 1; k <= 10; k++ {
		n := rate * float64(k)
		if math.Abs(n-math.Round(n)) < 1e-6 {
			return float64(k), int(math.Round(n)), nil
		}
	}
	return 0, 0, fmt.Errorf("edf: cannot lay out %g Hz into whole data records", rate)
}

func buildHeader(raw *eeg.Raw, ns, nrec int, dur float64, spr, sprAnn int, physMin, physMax []float64, hasAnn bool) []byte {
	head := bytes.Repeat([]byte{' '}, 256*(ns+1))
	putField(head, 0, 8, "0")
	putField(head, 8, 80, "X")
	putField(head, 88, 80, "X")
	dateStr, timeStr := formatStart(raw.MeasDate)
	putField(head, 168, 8, dateStr)
	putField(head, 176, 8, timeStr)
	putField(head, 184, 8, strconv.Itoa(256*(ns+1)))
	if hasAnn {
		putField(head, 192, 44, "EDF+C")
	}
	putField(head, 236, 8, strconv.Itoa(nrec))
	putField(head, 244, 8, numField(dur))
	putField(head, 252, 4, strconv.Itoa(ns))

	value := func(fi, i int) string {
		ann := hasAnn && i == ns-1
		switch fi {
		case 0:
			if ann {
				return annotationLabel
			}
			return raw.Channels[i].Name
		case 2:
			if ann {
				return ""
			}
			// Header fields are ASCII, so the micro sign becomes "u".
			unit := raw.Channels[i].Unit
			if unit == "" || unit == "µV" {
				unit = "uV"
			}
			return unit
		case 3:
			if ann {
				return "-1"
			}
			return numField(physMin[i])
		case 4:
			if ann {
				return "1"
			}
			return numField(physMax[i])
		case 5:
			return "-32768"
		case 6:
			return "32767"
		case 8:
			if ann {
				return strconv.Itoa(sprAnn)
			}
			return strconv.Itoa(spr)
		default:
			return ""
		}
	}

	base := 256
	for fi, width := range signalWidths {
		for i := 0; i < ns; i++ {
			putField(head, base+i*width, width, value(fi, i))
		}
		base += ns * width
	}
	return head
}

// buildAnnotationRecords lays out one timestamped annotation list per
// record plus a list for every event whose onset falls inside it.
func buildAnnotationRecords(raw *eeg.Raw, nrec, spr int, dur float64) [][]byte {
	records := make([][]byte, nrec)
	for r := range records {
		var b bytes.Buffer
		fmt.Fprintf(&b, "+%s\x14\x14\x00", trimFloat(float64(r)*dur))
		for _, ev := range raw.Events {
			if ev.Sample < r*spr || ev.Sample >= (r+1)*spr {
				continue
			}
			onset := float64(ev.Sample) / raw.SampleRate
			fmt.Fprintf(&b, "+%s\x14%s\x14\x00", trimFloat(onset), ev.Label)
		}
		records[r] = b.Bytes()
	}
	return records
}

func putField(dst []byte, off, width int, s string) {
	if len(s) > width {
		s = s[:width]
	}
	copy(dst[off:off+width], s)
}

// numField renders a float into at most eight ASCII characters.
func numField(v float64) string {
	for prec := 6; prec >= 0; prec-- {
		s := strconv.FormatFloat(v, 'f', prec, 64)
		if len(s) <= 8 {
			return s
		}
	}
	return strconv.FormatFloat(v, 'e', 1, 64)
}

// roundField returns the value numField would store.
func roundField(v float64) float64 {
	f, err := strconv.ParseFloat(numField(v), 64)
	if err != nil {
		return v
	}
	return f
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
