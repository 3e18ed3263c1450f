package panels

import (
	"fmt"
	"time"

	"neuroflow/internal/app"
	"neuroflow/internal/history"
	"neuroflow/ui/dialogs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// HistoryPanel shows the processing ledger of the current session.
type HistoryPanel struct {
	state     *app.State
	window    fyne.Window
	container fyne.CanvasObject

	countLabel *widget.Label
	list       *widget.List
	viewButton *widget.Button
}

// NewHistoryPanel creates a new history panel.
func NewHistoryPanel(state *app.State) *HistoryPanel {
	hp := &HistoryPanel{
		state: state,
	}

	hp.countLabel = widget.NewLabel("No steps recorded")

	hp.list = widget.NewList(
		func() int {
			return len(hp.state.HistoryEntries())
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("00:00:00  action")
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			label := obj.(*widget.Label)
			entries := hp.state.HistoryEntries()
			if int(id) >= len(entries) {
				label.SetText("")
				return
			}
			label.SetText(entryLine(entries[id]))
		},
	)

	hp.viewButton = widget.NewButton("View JSON...", func() {
		if hp.window == nil {
			return
		}
		js, err := hp.state.HistoryJSON()
		if err != nil {
			dialog.ShowError(err, hp.window)
			return
		}
		dialogs.ShowHistory(js, hp.window)
	})
	hp.viewButton.Disable()

	// Layout
	hp.container = widget.NewCard("Processing History", "", container.NewBorder(
		hp.countLabel,
		hp.viewButton,
		nil, nil,
		hp.list,
	))

	// Register for events
	state.On(app.EventHistoryChanged, func(data any) {
		hp.refresh()
	})

	return hp
}

// Container returns the panel container.
func (hp *HistoryPanel) Container() fyne.CanvasObject {
	return hp.container
}

// SetWindow sets the parent window for dialogs.
func (hp *HistoryPanel) SetWindow(w fyne.Window) {
	hp.window = w
}

func (hp *HistoryPanel) refresh() {
	n := len(hp.state.HistoryEntries())
	switch n {
	case 0:
		hp.countLabel.SetText("No steps recorded")
		hp.viewButton.Disable()
	case 1:
		hp.countLabel.SetText("1 step recorded")
		hp.viewButton.Enable()
	default:
		hp.countLabel.SetText(fmt.Sprintf("%d steps recorded", n))
		hp.viewButton.Enable()
	}
	hp.list.Refresh()
}

// entryLine formats one ledger entry for the list.
func entryLine(e history.Entry) string {
	ts, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return string(e.Action)
	}
	return fmt.Sprintf("%s  %s", ts.Local().Format("15:04:05"), e.Action)
}
