package export

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuroflow/internal/compute"
)

// fakeSaver mimics the engine's extension handling without touching a
// real recording.
type fakeSaver struct {
	err error
}

func (f *fakeSaver) Save(path string) (*compute.SaveResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if filepath.Ext(path) == "" {
		path += ".vhdr"
	}
	if err := os.WriteFile(path, []byte("payload"), 0644); err != nil {
		return nil, err
	}
	return &compute.SaveResult{Path: path}, nil
}

func TestSidecarNamedAfterSourceStem(t *testing.T) {
	dir := t.TempDir()
	historyJSON := []byte(`[{"timestamp":"t","action":"data_loaded","params":{}}]`)

	out, err := Save(&fakeSaver{}, filepath.Join(dir, "cleaned_for_publication.vhdr"), "sub01_rest", historyJSON)
	require.NoError(t, err)
	require.NoError(t, out.SidecarErr)

	assert.Equal(t, filepath.Join(dir, "cleaned_for_publication.vhdr"), out.DataPath)
	assert.Equal(t, filepath.Join(dir, "sub01_rest_history.json"), out.SidecarPath)

	got, err := os.ReadFile(out.SidecarPath)
	require.NoError(t, err)
	assert.Equal(t, historyJSON, got)
}

func TestSidecarFollowsResolvedExtension(t *testing.T) {
	dir := t.TempDir()

	out, err := Save(&fakeSaver{}, filepath.Join(dir, "export"), "sub01_rest", []byte("[]"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "export.vhdr"), out.DataPath)
	assert.Equal(t, filepath.Join(dir, "sub01_rest_history.json"), out.SidecarPath)
}

func TestDataWriteFailureAbortsSave(t *testing.T) {
	dir := t.TempDir()

	out, err := Save(&fakeSaver{err: errors.New("disk full")}, filepath.Join(dir, "cleaned.vhdr"), "sub01_rest", []byte("[]"))
	assert.Nil(t, out)

	var writeErr *WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.ErrorContains(t, err, "disk full")

	// No sidecar appears when the artifact itself was never written.
	_, statErr := os.Stat(filepath.Join(dir, "sub01_rest_history.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSidecarFailureKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cleaned.vhdr")

	// A directory squatting on the sidecar path makes its write fail
	// while the artifact write goes through.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub01_rest_history.json"), 0755))

	out, err := Save(&fakeSaver{}, path, "sub01_rest", []byte("[]"))
	require.NoError(t, err)

	var writeErr *WriteError
	require.True(t, errors.As(out.SidecarErr, &writeErr))
	assert.Equal(t, filepath.Join(dir, "sub01_rest_history.json"), writeErr.Path)

	assert.Equal(t, path, out.DataPath)
	payload, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, []byte("payload"), payload)
}
