// Package export writes analysis artifacts together with their history
// sidecars. Every saved recording gets a "<source>_history.json" file in
// the same directory, named after the recording the session started
// from, so renamed exports still trace back to their source.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"neuroflow/internal/compute"
)

// Saver is the slice of the computation gateway that export needs.
type Saver interface {
	Save(path string) (*compute.SaveResult, error)
}

// WriteError means an artifact or sidecar could not be written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Outcome reports a finished save. SidecarErr is set when the data was
// written but the sidecar was not; the artifact stays valid either way.
type Outcome struct {
	DataPath    string
	SidecarPath string
	SidecarErr  error
}

// SidecarPath returns where the history sidecar for an artifact lives.
// The name derives from the stem of the recording loaded at session
// start, never from the name the artifact was saved under.
func SidecarPath(artifactPath, sourceStem string) string {
	return filepath.Join(filepath.Dir(artifactPath), sourceStem+"_history.json")
}

// Save writes the recording through the gateway, then the serialized
// history next to it. A data write failure aborts the whole save; a
// sidecar failure is reported in the outcome without undoing the data.
func Save(s Saver, path, sourceStem string, historyJSON []byte) (*Outcome, error) {
	res, err := s.Save(path)
	if err != nil {
		return nil, &WriteError{Path: path, Err: err}
	}
	out := &Outcome{
		DataPath:    res.Path,
		SidecarPath: SidecarPath(res.Path, sourceStem),
	}
	if err := os.WriteFile(out.SidecarPath, historyJSON, 0644); err != nil {
		out.SidecarErr = &WriteError{Path: out.SidecarPath, Err: err}
	}
	return out, nil
}
