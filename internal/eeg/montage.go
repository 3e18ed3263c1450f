package eeg

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"neuroflow/pkg/geometry"
)

//go:embed standard_1020.yaml
var standard1020YAML []byte

type montageFile struct {
	Name      string               `yaml:"name"`
	Radius    float64              `yaml:"radius"`
	Positions map[string][]float64 `yaml:"positions"`
}

var (
	montageOnce sync.Once
	montagePos  map[string]geometry.Point3D
	montageErr  error
)

// StandardPositions returns the idealized 10-20/10-10 electrode
// positions from the embedded table, keyed by upper-cased label.
func StandardPositions() (map[string]geometry.Point3D, error) {
	montageOnce.Do(func() {
		var mf montageFile
		if err := yaml.Unmarshal(standard1020YAML, &mf); err != nil {
			montageErr = fmt.Errorf("failed to parse montage table: %w", err)
			return
		}
		pos := make(map[string]geometry.Point3D, len(mf.Positions))
		for label, xyz := range mf.Positions {
			if len(xyz) != 3 {
				montageErr = fmt.Errorf("montage entry %q has %d coordinates, expected 3", label, len(xyz))
				return
			}
			pos[strings.ToUpper(label)] = geometry.Point3D{X: xyz[0], Y: xyz[1], Z: xyz[2]}
		}
		montagePos = pos
	})
	return montagePos, montageErr
}

// ApplyMontage attaches standard positions to EEG channels that do not
// have one yet, matching names case-insensitively. It returns how many
// channels received a position.
func ApplyMontage(r *Raw) (int, error) {
	pos, err := StandardPositions()
	if err != nil {
		return 0, err
	}
	set := 0
	for i := range r.Channels {
		ch := &r.Channels[i]
		if ch.Type != ChannelEEG || ch.Position != nil {
			continue
		}
		if p, ok := pos[strings.ToUpper(ch.Name)]; ok {
			pc := p
			ch.Position = &pc
			set++
		}
	}
	return set, nil
}

// DetectChannelTypes reclassifies channels whose names identify them as
// ocular or cardiac leads (EOG/HEOG/VEOG and ECG/EKG, case-insensitive).
// It returns how many channels changed type.
func DetectChannelTypes(r *Raw) int {
	changed := 0
	for i := range r.Channels {
		ch := &r.Channels[i]
		var want ChannelType
		switch strings.ToLower(ch.Name) {
		case "eog", "heog", "veog":
			want = ChannelEOG
		case "ecg", "ekg":
			want = ChannelECG
		default:
			continue
		}
		if ch.Type != want {
			ch.Type = want
			changed++
		}
	}
	return changed
}
