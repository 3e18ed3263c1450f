package brainvision

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"neuroflow/internal/eeg"
)

// Write stores the recording as a BrainVision triplet. The path names
// the .vhdr header; the .eeg and .vmrk siblings take the same stem.
// Data is written multiplexed as IEEE_FLOAT_32 with resolution 1.
func Write(path string, raw *eeg.Raw) error {
	if !IsHeaderPath(path) {
		return fmt.Errorf("brainvision: %q is not a .vhdr path", path)
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dir := filepath.Dir(path)
	dataName := stem + ".eeg"
	markerName := stem + ".vmrk"

	if err := writeBinary(filepath.Join(dir, dataName), raw); err != nil {
		return fmt.Errorf("failed to write data file: %w", err)
	}
	if err := writeMarkers(filepath.Join(dir, markerName), dataName, raw); err != nil {
		return fmt.Errorf("failed to write marker file: %w", err)
	}
	if err := writeHeader(path, dataName, markerName, raw); err != nil {
		return fmt.Errorf("failed to write header file: %w", err)
	}
	return nil
}

func writeHeader(path, dataName, markerName string, raw *eeg.Raw) error {
	var b strings.Builder
	b.WriteString(headerMagic + " Version 1.0\n")
	b.WriteString("; Created by neuroflow\n\n")
	b.WriteString("[Common Infos]\n")
	b.WriteString("Codepage=UTF-8\n")
	fmt.Fprintf(&b, "DataFile=%s\n", dataName)
	fmt.Fprintf(&b, "MarkerFile=%s\n", markerName)
	b.WriteString("DataFormat=BINARY\n")
	b.WriteString("DataOrientation=MULTIPLEXED\n")
	fmt.Fprintf(&b, "NumberOfChannels=%d\n", raw.NChannels())
	fmt.Fprintf(&b, "SamplingInterval=%s\n\n", strconv.FormatFloat(1e6/raw.SampleRate, 'f', -1, 64))
	b.WriteString("[Binary Infos]\n")
	b.WriteString("BinaryFormat=IEEE_FLOAT_32\n\n")
	b.WriteString("[Channel Infos]\n")
	for i, ch := range raw.Channels {
		unit := ch.Unit
		if unit == "" {
			unit = "µV"
		}
		name := strings.ReplaceAll(ch.Name, ",", `\1`)
		fmt.Fprintf(&b, "Ch%d=%s,,1,%s\n", i+1, name, unit)
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

func writeMarkers(path, dataName string, raw *eeg.Raw) error {
	var b strings.Builder
	b.WriteString(markerMagic + ", Version 1.0\n\n")
	b.WriteString("[Common Infos]\n")
	b.WriteString("Codepage=UTF-8\n")
	fmt.Fprintf(&b, "DataFile=%s\n\n", dataName)
	b.WriteString("[Marker Infos]\n")
	fmt.Fprintf(&b, "Mk1=New Segment,,1,1,0,%s\n", formatMarkerDate(raw.MeasDate))
	for i, ev := range raw.Events {
		typ, desc := splitEventLabel(ev.Label)
		fmt.Fprintf(&b, "Mk%d=%s,%s,%d,1,0\n",
			i+2,
			strings.ReplaceAll(typ, ",", `\1`),
			strings.ReplaceAll(desc, ",", `\1`),
			ev.Sample+1)
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// splitEventLabel undoes markerLabel: "Stimulus/S  1" becomes the marker
// type "Stimulus" with description "S  1". A label without a slash is a
// bare marker type.
func splitEventLabel(label string) (typ, desc string) {
	if i := strings.Index(label, "/"); i >= 0 {
		return label[:i], label[i+1:]
	}
	return label, ""
}

func writeBinary(path string, raw *eeg.Raw) error {
	nchan := raw.NChannels()
	nsamp := raw.NSamples()
	payload := make([]byte, nchan*nsamp*4)
	off := 0
	for s := 0; s < nsamp; s++ {
		for c := 0; c < nchan; c++ {
			binary.LittleEndian.PutUint32(payload[off:], math.Float32bits(float32(raw.Data[c][s])))
			off += 4
		}
	}
	return os.WriteFile(path, payload, 0644)
}
