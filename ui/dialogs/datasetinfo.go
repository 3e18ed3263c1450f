// Package dialogs provides application dialogs.
package dialogs

import (
	"fmt"

	"neuroflow/internal/compute"
	"neuroflow/internal/eeg"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// ShowDatasetInfo displays the recording summary and its channel table.
func ShowDatasetInfo(info *compute.DatasetInfo, channels []eeg.Channel, window fyne.Window) {
	if info == nil {
		dialog.ShowInformation("Dataset", "No dataset loaded", window)
		return
	}

	summary := widget.NewForm(
		widget.NewFormItem("File", widget.NewLabel(info.Path)),
		widget.NewFormItem("Sampling rate", widget.NewLabel(fmt.Sprintf("%g Hz", info.SampleRate))),
		widget.NewFormItem("Channels", widget.NewLabel(fmt.Sprintf("%d", info.NChannels))),
		widget.NewFormItem("Samples", widget.NewLabel(fmt.Sprintf("%d (%.1f s)", info.NSamples, info.Duration))),
		widget.NewFormItem("Recorded", widget.NewLabel(measDate(info))),
	)

	table := widget.NewTable(
		func() (int, int) {
			// header + one row per channel
			return len(channels) + 1, 4
		},
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(cell widget.TableCellID, obj fyne.CanvasObject) {
			label := obj.(*widget.Label)
			label.TextStyle = fyne.TextStyle{}
			if cell.Row == 0 {
				label.TextStyle = fyne.TextStyle{Bold: true}
				label.SetText([]string{"Name", "Type", "Unit", "Position"}[cell.Col])
				return
			}
			if cell.Row-1 >= len(channels) {
				label.SetText("")
				return
			}
			label.SetText(channelCell(channels[cell.Row-1], cell.Col))
		},
	)
	table.SetColumnWidth(0, 90)
	table.SetColumnWidth(1, 70)
	table.SetColumnWidth(2, 60)
	table.SetColumnWidth(3, 160)

	content := container.NewBorder(summary, nil, nil, nil, table)

	dlg := dialog.NewCustom("Dataset Details", "Close", content, window)
	dlg.Resize(fyne.NewSize(460, 560))
	dlg.Show()
}

func measDate(info *compute.DatasetInfo) string {
	if info.MeasDate.IsZero() {
		return "unknown"
	}
	return info.MeasDate.Format("2006-01-02 15:04:05")
}

// channelCell formats one cell of the channel table.
func channelCell(ch eeg.Channel, col int) string {
	switch col {
	case 0:
		return ch.Name
	case 1:
		return ch.Type.String()
	case 2:
		return ch.Unit
	default:
		if ch.Position == nil {
			return "-"
		}
		return fmt.Sprintf("%.2f, %.2f, %.2f", ch.Position.X, ch.Position.Y, ch.Position.Z)
	}
}
