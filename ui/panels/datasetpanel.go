// Package panels provides UI panels for the application.
package panels

import (
	"log"
	"path/filepath"

	"neuroflow/internal/app"
	"neuroflow/internal/pipeline"
	"neuroflow/ui/dialogs"
	"neuroflow/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

// recordingExtensions lists the file types the engine can read and write.
var recordingExtensions = []string{".vhdr", ".edf"}

// DatasetPanel handles opening recordings and exporting the cleaned result.
type DatasetPanel struct {
	state     *app.State
	prefs     *prefs.Prefs
	window    fyne.Window
	container fyne.CanvasObject

	pathLabel   *widget.Label
	infoLabel   *widget.Label
	eventsLabel *widget.Label
	openButton  *widget.Button
	infoButton  *widget.Button
	saveButton  *widget.Button
}

// NewDatasetPanel creates a new dataset panel.
func NewDatasetPanel(state *app.State, pr *prefs.Prefs) *DatasetPanel {
	dp := &DatasetPanel{
		state: state,
		prefs: pr,
	}

	// Initialize all labels first (before any callbacks can fire)
	dp.pathLabel = widget.NewLabel("No dataset loaded")
	dp.pathLabel.Wrapping = fyne.TextWrapWord
	dp.infoLabel = widget.NewLabel("")
	dp.infoLabel.Wrapping = fyne.TextWrapWord
	dp.eventsLabel = widget.NewLabel("No events")

	dp.openButton = widget.NewButton("Open...", func() {
		dp.ShowOpenDialog()
	})
	dp.infoButton = widget.NewButton("Details...", func() {
		if dp.window != nil {
			dialogs.ShowDatasetInfo(dp.state.Info(), dp.state.Channels(), dp.window)
		}
	})
	dp.infoButton.Disable()
	dp.saveButton = widget.NewButton("Save Cleaned As...", func() {
		dp.ShowSaveDialog()
	})
	dp.saveButton.Disable()

	// Layout
	dp.container = container.NewVBox(
		widget.NewCard("Recording", "", container.NewVBox(
			dp.pathLabel,
			dp.infoLabel,
			container.NewHBox(dp.openButton, dp.infoButton),
		)),
		widget.NewCard("Events", "", container.NewVBox(
			dp.eventsLabel,
		)),
		widget.NewCard("Export", "", container.NewVBox(
			dp.saveButton,
		)),
	)

	// Register for events
	state.On(app.EventDatasetLoaded, func(data any) {
		dp.refresh()
	})
	state.On(app.EventStageChanged, func(data any) {
		dp.updateButtons()
	})
	state.On(app.EventBusyChanged, func(data any) {
		dp.updateButtons()
	})

	return dp
}

// Container returns the panel container.
func (dp *DatasetPanel) Container() fyne.CanvasObject {
	return dp.container
}

// SetWindow sets the parent window for dialogs.
func (dp *DatasetPanel) SetWindow(w fyne.Window) {
	dp.window = w
}

// ShowOpenDialog prompts for a recording and loads it.
func (dp *DatasetPanel) ShowOpenDialog() {
	if dp.window == nil {
		return
	}
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		dp.saveLastDir(path)
		if err := dp.state.LoadDataset(path); err != nil {
			dialog.ShowError(err, dp.window)
		}
	}, dp.window)
	fd.SetFilter(storage.NewExtensionFileFilter(recordingExtensions))
	if loc := dp.lastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

// ShowSaveDialog prompts for a target path and exports the cleaned
// dataset together with its history sidecar.
func (dp *DatasetPanel) ShowSaveDialog() {
	if dp.window == nil {
		return
	}
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		path := writer.URI().Path()
		if filepath.Ext(path) == "" {
			path += ".vhdr"
		}
		dp.saveLastDir(path)
		if err := dp.state.SaveDataset(path); err != nil {
			dialog.ShowError(err, dp.window)
		}
	}, dp.window)
	fd.SetFileName(dp.suggestedName())
	fd.SetFilter(storage.NewExtensionFileFilter(recordingExtensions))
	if loc := dp.lastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

// suggestedName proposes an export filename based on the source stem.
func (dp *DatasetPanel) suggestedName() string {
	stem := dp.state.SourceStem()
	if stem == "" {
		return "cleaned.vhdr"
	}
	return stem + "_cleaned.vhdr"
}

// lastDir returns the directory of the previous file operation.
func (dp *DatasetPanel) lastDir() fyne.ListableURI {
	path := dp.prefs.String(prefs.KeyLastDir, "")
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

// saveLastDir remembers the directory of the given file path.
func (dp *DatasetPanel) saveLastDir(path string) {
	dp.prefs.SetString(prefs.KeyLastDir, filepath.Dir(path))
	if err := dp.prefs.Save(); err != nil {
		log.Printf("could not save preferences: %v", err)
	}
}

func (dp *DatasetPanel) refresh() {
	info := dp.state.Info()
	if info == nil {
		dp.pathLabel.SetText("No dataset loaded")
		dp.infoLabel.SetText("")
		dp.eventsLabel.SetText("No events")
	} else {
		dp.pathLabel.SetText(filepath.Base(dp.state.SourcePath()))
		dp.infoLabel.SetText(summarizeInfo(info))
		dp.eventsLabel.SetText(summarizeEvents(info))
	}
	dp.updateButtons()
}

func (dp *DatasetPanel) updateButtons() {
	busy := dp.state.Busy()
	if busy {
		dp.openButton.Disable()
	} else {
		dp.openButton.Enable()
	}
	if dp.state.Info() != nil {
		dp.infoButton.Enable()
	} else {
		dp.infoButton.Disable()
	}
	if !busy && dp.state.CanRun(pipeline.OpSave) {
		dp.saveButton.Enable()
	} else {
		dp.saveButton.Disable()
	}
}
