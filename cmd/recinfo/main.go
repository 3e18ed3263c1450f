// Command recinfo prints what the application will see in a recording:
// sampling, channels with detected types and montage positions, and the
// event census.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"neuroflow/internal/brainvision"
	"neuroflow/internal/edf"
	"neuroflow/internal/eeg"
)

func main() {
	verbose := flag.Bool("v", false, "List every event marker")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Println("Usage: recinfo [-v] <recording.vhdr | recording.edf>")
		os.Exit(1)
	}
	path := flag.Arg(0)

	var raw *eeg.Raw
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vhdr":
		raw, err = brainvision.Read(path)
	case ".edf":
		raw, err = edf.Read(path)
	default:
		fmt.Fprintf(os.Stderr, "Unsupported file type %q, expected .vhdr or .edf\n", filepath.Ext(path))
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", path, err)
		os.Exit(1)
	}

	eeg.DetectChannelTypes(raw)
	positioned, err := eeg.ApplyMontage(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Montage lookup failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("File:     %s\n", path)
	fmt.Printf("Sampling: %g Hz, %d channels, %d samples (%.1f s)\n",
		raw.SampleRate, raw.NChannels(), raw.NSamples(), raw.Duration())
	if !raw.MeasDate.IsZero() {
		fmt.Printf("Recorded: %s\n", raw.MeasDate.Format("2006-01-02 15:04:05"))
	}

	fmt.Printf("\nChannels (%d placed on the standard montage):\n", positioned)
	for i, ch := range raw.Channels {
		pos := "-"
		if ch.Position != nil {
			pos = fmt.Sprintf("(%.2f, %.2f, %.2f)", ch.Position.X, ch.Position.Y, ch.Position.Z)
		}
		fmt.Printf("%4d  %-10s %-5s %-4s %s\n", i, ch.Name, ch.Type, ch.Unit, pos)
	}

	if len(raw.Events) == 0 {
		fmt.Printf("\nNo event markers.\n")
		return
	}
	counts := raw.EventCounts()
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	fmt.Printf("\nEvents: %d markers, %d kinds\n", len(raw.Events), len(labels))
	for _, label := range labels {
		fmt.Printf("%6d  %s\n", counts[label], label)
	}

	if *verbose {
		fmt.Printf("\n")
		for _, ev := range raw.Events {
			fmt.Printf("%10.3f s  %s\n", float64(ev.Sample)/raw.SampleRate, ev.Label)
		}
	}
}
