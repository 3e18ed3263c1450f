package panels

import (
	"fmt"
	"time"

	"neuroflow/internal/app"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/widget"
)

// logCapacity bounds the in-memory status log; older lines fall off.
const logCapacity = 200

// LogPanel shows a running log of operations and their outcomes.
type LogPanel struct {
	state     *app.State
	container fyne.CanvasObject

	lines []string
	list  *widget.List
}

// NewLogPanel creates a new log panel.
func NewLogPanel(state *app.State) *LogPanel {
	lp := &LogPanel{
		state: state,
	}

	lp.list = widget.NewList(
		func() int {
			return len(lp.lines)
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("00:00:00  message")
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			label := obj.(*widget.Label)
			if int(id) >= len(lp.lines) {
				label.SetText("")
				return
			}
			label.SetText(lp.lines[id])
		},
	)

	lp.container = widget.NewCard("Status Log", "", lp.list)

	// Failures also arrive as status lines.
	state.On(app.EventStatus, func(data any) {
		if msg, ok := data.(string); ok {
			lp.append(msg)
		}
	})

	return lp
}

// Container returns the panel container.
func (lp *LogPanel) Container() fyne.CanvasObject {
	return lp.container
}

func (lp *LogPanel) append(msg string) {
	lp.lines = append(lp.lines, fmt.Sprintf("%s  %s", time.Now().Format("15:04:05"), msg))
	if len(lp.lines) > logCapacity {
		lp.lines = lp.lines[len(lp.lines)-logCapacity:]
	}
	lp.list.Refresh()
	lp.list.ScrollToBottom()
}
