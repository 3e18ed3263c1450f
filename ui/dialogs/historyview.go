package dialogs

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// ShowHistory displays the processing ledger as it will be written to
// the sidecar file.
func ShowHistory(historyJSON []byte, window fyne.Window) {
	text := widget.NewLabel(string(historyJSON))
	text.TextStyle = fyne.TextStyle{Monospace: true}

	dlg := dialog.NewCustom("Processing History", "Close", container.NewScroll(text), window)
	dlg.Resize(fyne.NewSize(480, 560))
	dlg.Show()
}
