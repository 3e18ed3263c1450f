package dialogs

import (
	"fmt"

	"neuroflow/internal/eeg"
	"neuroflow/internal/plot"
	"neuroflow/ui/plotview"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// ShowSensorLayout draws the montage positions of the loaded channels
// on a schematic head.
func ShowSensorLayout(channels []eeg.Channel, window fyne.Window) {
	placed := 0
	for _, ch := range channels {
		if ch.Position != nil {
			placed++
		}
	}
	if placed == 0 {
		dialog.ShowInformation("Sensor Layout",
			"No channel in this recording matches the built-in montage", window)
		return
	}

	view := plotview.New(460, 400)
	view.SetImage(plot.Topomap(560, 500, "SENSOR LAYOUT", channels, nil))

	footer := widget.NewLabel(fmt.Sprintf("%d of %d channels placed", placed, len(channels)))

	content := container.NewBorder(nil, footer, nil, nil, view.Object())
	dlg := dialog.NewCustom("Sensor Layout", "Close", content, window)
	dlg.Resize(fyne.NewSize(520, 540))
	dlg.Show()
}
