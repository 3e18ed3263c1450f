package panels

import (
	"fmt"
	"log"
	"strconv"

	"neuroflow/internal/app"
	"neuroflow/internal/compute"
	"neuroflow/internal/pipeline"
	"neuroflow/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// EpochsPanel segments the recording around events and inspects the result.
type EpochsPanel struct {
	state     *app.State
	prefs     *prefs.Prefs
	window    fyne.Window
	container fyne.CanvasObject

	eventSelect *widget.Select
	tminEntry   *widget.Entry
	tmaxEntry   *widget.Entry
	buildButton *widget.Button

	summaryLabel *widget.Label
	table        *widget.Table

	dropEntry  *widget.Entry
	dropButton *widget.Button
	ptpEntry   *widget.Entry
	ptpButton  *widget.Button
}

// NewEpochsPanel creates a new epochs panel.
func NewEpochsPanel(state *app.State, pr *prefs.Prefs) *EpochsPanel {
	ep := &EpochsPanel{
		state: state,
		prefs: pr,
	}

	ep.summaryLabel = widget.NewLabel("No epochs")

	ep.eventSelect = widget.NewSelect(nil, nil)
	ep.eventSelect.PlaceHolder = "(select event)"

	ep.tminEntry = widget.NewEntry()
	ep.tminEntry.SetText(formatFloat(pr.Float(prefs.KeyEpochTmin, -0.2)))
	ep.tmaxEntry = widget.NewEntry()
	ep.tmaxEntry.SetText(formatFloat(pr.Float(prefs.KeyEpochTmax, 0.8)))

	ep.buildButton = widget.NewButton("Build Epochs", func() {
		ep.onBuild()
	})
	ep.buildButton.Disable()

	ep.table = widget.NewTable(
		func() (int, int) {
			// header + one row per epoch
			return len(ep.state.Summaries()) + 1, 3
		},
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(cell widget.TableCellID, obj fyne.CanvasObject) {
			label := obj.(*widget.Label)
			label.TextStyle = fyne.TextStyle{}
			if cell.Row == 0 {
				label.TextStyle = fyne.TextStyle{Bold: true}
				label.SetText([]string{"#", "Peak-to-peak", "Status"}[cell.Col])
				return
			}
			summaries := ep.state.Summaries()
			if cell.Row-1 >= len(summaries) {
				label.SetText("")
				return
			}
			label.SetText(summaryCell(summaries[cell.Row-1], cell.Col))
		},
	)
	ep.table.SetColumnWidth(0, 46)
	ep.table.SetColumnWidth(1, 120)
	ep.table.SetColumnWidth(2, 82)

	ep.dropEntry = widget.NewEntry()
	ep.dropEntry.SetPlaceHolder("e.g. 0, 3, 7")
	ep.dropButton = widget.NewButton("Drop Listed", func() {
		ep.onDropListed()
	})
	ep.dropButton.Disable()

	ep.ptpEntry = widget.NewEntry()
	ep.ptpEntry.SetText(formatFloat(pr.Float(prefs.KeyRejectPTP, 120.0)))
	ep.ptpButton = widget.NewButton("Drop Above", func() {
		ep.onDropPeakToPeak()
	})
	ep.ptpButton.Disable()

	// Layout
	buildCard := widget.NewCard("Epoch Definition", "", container.NewVBox(
		widget.NewForm(
			widget.NewFormItem("Event", ep.eventSelect),
			widget.NewFormItem("Start (s)", ep.tminEntry),
			widget.NewFormItem("End (s)", ep.tmaxEntry),
		),
		ep.buildButton,
	))
	rejectCard := widget.NewCard("Rejection", "", container.NewVBox(
		widget.NewForm(
			widget.NewFormItem("Indices", ep.dropEntry),
		),
		ep.dropButton,
		widget.NewForm(
			widget.NewFormItem("Threshold (uV)", ep.ptpEntry),
		),
		ep.ptpButton,
	))
	inspectCard := widget.NewCard("Inspection", "", container.NewBorder(
		ep.summaryLabel, nil, nil, nil,
		ep.table,
	))

	ep.container = container.NewBorder(buildCard, rejectCard, nil, nil, inspectCard)

	// Register for events
	state.On(app.EventDatasetLoaded, func(data any) {
		ep.refreshEvents()
	})
	state.On(app.EventEpochsChanged, func(data any) {
		ep.refreshTable()
	})
	state.On(app.EventStageChanged, func(data any) {
		ep.updateButtons()
	})
	state.On(app.EventBusyChanged, func(data any) {
		ep.updateButtons()
	})

	return ep
}

// Container returns the panel container.
func (ep *EpochsPanel) Container() fyne.CanvasObject {
	return ep.container
}

// SetWindow sets the parent window for dialogs.
func (ep *EpochsPanel) SetWindow(w fyne.Window) {
	ep.window = w
}

func (ep *EpochsPanel) onBuild() {
	event := ep.eventSelect.Selected
	if event == "" {
		ep.showError(fmt.Errorf("select an event to epoch around"))
		return
	}
	tmin, err := parseRequiredFloat(ep.tminEntry.Text)
	if err != nil {
		ep.showError(fmt.Errorf("start: %w", err))
		return
	}
	tmax, err := parseRequiredFloat(ep.tmaxEntry.Text)
	if err != nil {
		ep.showError(fmt.Errorf("end: %w", err))
		return
	}
	if tmin >= tmax {
		ep.showError(fmt.Errorf("start %.3g s must be before end %.3g s", tmin, tmax))
		return
	}

	ep.prefs.SetFloat(prefs.KeyEpochTmin, tmin)
	ep.prefs.SetFloat(prefs.KeyEpochTmax, tmax)
	if err := ep.prefs.Save(); err != nil {
		log.Printf("could not save preferences: %v", err)
	}

	if err := ep.state.BuildEpochs(event, tmin, tmax); err != nil {
		ep.showError(err)
	}
}

func (ep *EpochsPanel) onDropListed() {
	indices, err := parseIndexList(ep.dropEntry.Text)
	if err != nil {
		ep.showError(err)
		return
	}
	if err := ep.state.DropEpochs(indices); err != nil {
		ep.showError(err)
		return
	}
	ep.dropEntry.SetText("")
}

func (ep *EpochsPanel) onDropPeakToPeak() {
	threshold, err := parseRequiredFloat(ep.ptpEntry.Text)
	if err != nil {
		ep.showError(fmt.Errorf("threshold: %w", err))
		return
	}
	if threshold <= 0 {
		ep.showError(fmt.Errorf("threshold must be positive"))
		return
	}

	ep.prefs.SetFloat(prefs.KeyRejectPTP, threshold)
	if err := ep.prefs.Save(); err != nil {
		log.Printf("could not save preferences: %v", err)
	}

	if err := ep.state.DropEpochsPeakToPeak(threshold); err != nil {
		ep.showError(err)
	}
}

func (ep *EpochsPanel) showError(err error) {
	if ep.window != nil {
		dialog.ShowError(err, ep.window)
	}
}

// refreshEvents repopulates the event selector after a load.
func (ep *EpochsPanel) refreshEvents() {
	labels := sortedEventLabels(ep.state.Info())
	ep.eventSelect.Options = labels
	ep.eventSelect.ClearSelected()
	ep.eventSelect.Refresh()
	if len(labels) > 0 {
		ep.eventSelect.SetSelected(labels[0])
	}
	ep.refreshTable()
}

func (ep *EpochsPanel) refreshTable() {
	summaries := ep.state.Summaries()
	if len(summaries) == 0 {
		ep.summaryLabel.SetText("No epochs")
	} else {
		rejected := 0
		for _, s := range summaries {
			if s.Rejected {
				rejected++
			}
		}
		ep.summaryLabel.SetText(fmt.Sprintf("%d epochs, %d rejected", len(summaries), rejected))
	}
	ep.table.Refresh()
	ep.updateButtons()
}

func (ep *EpochsPanel) updateButtons() {
	busy := ep.state.Busy()
	if !busy && ep.state.CanRun(pipeline.OpBuildEpochs) && len(ep.eventSelect.Options) > 0 {
		ep.buildButton.Enable()
	} else {
		ep.buildButton.Disable()
	}
	if !busy && ep.state.CanRun(pipeline.OpDropBadEpochs) {
		ep.dropButton.Enable()
		ep.ptpButton.Enable()
	} else {
		ep.dropButton.Disable()
		ep.ptpButton.Disable()
	}
}

// summaryCell formats one cell of the inspection table.
func summaryCell(s compute.EpochSummary, col int) string {
	switch col {
	case 0:
		return strconv.Itoa(s.Index)
	case 1:
		return fmt.Sprintf("%.1f uV", s.PeakToPeak)
	default:
		if s.Rejected {
			return "rejected"
		}
		return "kept"
	}
}

