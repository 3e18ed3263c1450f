package panels

import (
	"fmt"
	"log"

	"neuroflow/internal/app"
	"neuroflow/internal/pipeline"
	"neuroflow/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// AnalysisPanel launches the epoch-level analyses.
type AnalysisPanel struct {
	state     *app.State
	prefs     *prefs.Prefs
	window    fyne.Window
	container fyne.CanvasObject

	erpButton *widget.Button

	tfrMinEntry *widget.Entry
	tfrMaxEntry *widget.Entry
	tfrButton   *widget.Button

	bandLowEntry  *widget.Entry
	bandHighEntry *widget.Entry
	connButton    *widget.Button

	statusLabel *widget.Label
}

// NewAnalysisPanel creates a new analysis panel.
func NewAnalysisPanel(state *app.State, pr *prefs.Prefs) *AnalysisPanel {
	ap := &AnalysisPanel{
		state: state,
		prefs: pr,
	}

	ap.statusLabel = widget.NewLabel("Build epochs first")
	ap.statusLabel.Wrapping = fyne.TextWrapWord

	ap.erpButton = widget.NewButton("Compute Evoked Response", func() {
		if err := ap.state.ComputeERP(); err != nil {
			ap.showError(err)
		}
	})
	ap.erpButton.Disable()

	ap.tfrMinEntry = widget.NewEntry()
	ap.tfrMinEntry.SetText(formatFloat(pr.Float(prefs.KeyTFRMin, 4.0)))
	ap.tfrMaxEntry = widget.NewEntry()
	ap.tfrMaxEntry.SetText(formatFloat(pr.Float(prefs.KeyTFRMax, 40.0)))
	ap.tfrButton = widget.NewButton("Compute Power Map", func() {
		ap.onComputeTFR()
	})
	ap.tfrButton.Disable()

	ap.bandLowEntry = widget.NewEntry()
	ap.bandLowEntry.SetText(formatFloat(pr.Float(prefs.KeyConnBandLow, 8.0)))
	ap.bandHighEntry = widget.NewEntry()
	ap.bandHighEntry.SetText(formatFloat(pr.Float(prefs.KeyConnBandHigh, 12.0)))
	ap.connButton = widget.NewButton("Compute Connectivity", func() {
		ap.onComputeConnectivity()
	})
	ap.connButton.Disable()

	// Layout
	ap.container = container.NewVBox(
		widget.NewCard("Evoked Response", "", container.NewVBox(
			ap.erpButton,
		)),
		widget.NewCard("Time-Frequency", "", container.NewVBox(
			widget.NewForm(
				widget.NewFormItem("Min freq (Hz)", ap.tfrMinEntry),
				widget.NewFormItem("Max freq (Hz)", ap.tfrMaxEntry),
			),
			ap.tfrButton,
		)),
		widget.NewCard("Connectivity", "", container.NewVBox(
			widget.NewForm(
				widget.NewFormItem("Band low (Hz)", ap.bandLowEntry),
				widget.NewFormItem("Band high (Hz)", ap.bandHighEntry),
			),
			ap.connButton,
		)),
		ap.statusLabel,
	)

	// Register for events
	state.On(app.EventStageChanged, func(data any) {
		ap.updateButtons()
	})
	state.On(app.EventBusyChanged, func(data any) {
		ap.updateButtons()
	})

	return ap
}

// Container returns the panel container.
func (ap *AnalysisPanel) Container() fyne.CanvasObject {
	return ap.container
}

// SetWindow sets the parent window for dialogs.
func (ap *AnalysisPanel) SetWindow(w fyne.Window) {
	ap.window = w
}

func (ap *AnalysisPanel) onComputeTFR() {
	fmin, fmax, err := ap.readBand(ap.tfrMinEntry, ap.tfrMaxEntry)
	if err != nil {
		ap.showError(err)
		return
	}

	ap.prefs.SetFloat(prefs.KeyTFRMin, fmin)
	ap.prefs.SetFloat(prefs.KeyTFRMax, fmax)
	if err := ap.prefs.Save(); err != nil {
		log.Printf("could not save preferences: %v", err)
	}

	if err := ap.state.ComputeTFR(fmin, fmax); err != nil {
		ap.showError(err)
	}
}

func (ap *AnalysisPanel) onComputeConnectivity() {
	low, high, err := ap.readBand(ap.bandLowEntry, ap.bandHighEntry)
	if err != nil {
		ap.showError(err)
		return
	}

	ap.prefs.SetFloat(prefs.KeyConnBandLow, low)
	ap.prefs.SetFloat(prefs.KeyConnBandHigh, high)
	if err := ap.prefs.Save(); err != nil {
		log.Printf("could not save preferences: %v", err)
	}

	if err := ap.state.ComputeConnectivity(low, high); err != nil {
		ap.showError(err)
	}
}

// readBand parses a pair of frequency entries and checks their order.
func (ap *AnalysisPanel) readBand(loEntry, hiEntry *widget.Entry) (float64, float64, error) {
	lo, err := parseRequiredFloat(loEntry.Text)
	if err != nil {
		return 0, 0, fmt.Errorf("low edge: %w", err)
	}
	hi, err := parseRequiredFloat(hiEntry.Text)
	if err != nil {
		return 0, 0, fmt.Errorf("high edge: %w", err)
	}
	if lo <= 0 {
		return 0, 0, fmt.Errorf("low edge must be positive")
	}
	if lo >= hi {
		return 0, 0, fmt.Errorf("band %.3g-%.3g Hz is empty", lo, hi)
	}
	return lo, hi, nil
}

func (ap *AnalysisPanel) showError(err error) {
	if ap.window != nil {
		dialog.ShowError(err, ap.window)
	}
}

func (ap *AnalysisPanel) updateButtons() {
	ready := !ap.state.Busy() && ap.state.CanRun(pipeline.OpComputeERP)
	if ready {
		ap.erpButton.Enable()
		ap.tfrButton.Enable()
		ap.connButton.Enable()
		ap.statusLabel.SetText("")
	} else {
		ap.erpButton.Disable()
		ap.tfrButton.Disable()
		ap.connButton.Disable()
		if ap.state.EpochInfo() == nil {
			ap.statusLabel.SetText("Build epochs first")
		}
	}
}
