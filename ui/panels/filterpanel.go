package panels

import (
	"fmt"
	"log"
	"strconv"

	"neuroflow/internal/app"
	"neuroflow/internal/dsp"
	"neuroflow/internal/pipeline"
	"neuroflow/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// FilterPanel configures and applies the band-pass and notch filters.
type FilterPanel struct {
	state     *app.State
	prefs     *prefs.Prefs
	window    fyne.Window
	container fyne.CanvasObject

	highpassEntry *widget.Entry
	lowpassEntry  *widget.Entry
	notchEntry    *widget.Entry
	applyButton   *widget.Button
	statusLabel   *widget.Label
}

// NewFilterPanel creates a new filter panel.
func NewFilterPanel(state *app.State, pr *prefs.Prefs) *FilterPanel {
	fp := &FilterPanel{
		state: state,
		prefs: pr,
	}

	fp.statusLabel = widget.NewLabel("Load a dataset first")
	fp.statusLabel.Wrapping = fyne.TextWrapWord

	fp.highpassEntry = widget.NewEntry()
	fp.highpassEntry.SetPlaceHolder("off")
	fp.highpassEntry.SetText(formatCutoff(pr.Float(prefs.KeyHighpass, 1.0)))

	fp.lowpassEntry = widget.NewEntry()
	fp.lowpassEntry.SetPlaceHolder("off")
	fp.lowpassEntry.SetText(formatCutoff(pr.Float(prefs.KeyLowpass, 40.0)))

	fp.notchEntry = widget.NewEntry()
	fp.notchEntry.SetPlaceHolder("off")
	fp.notchEntry.SetText(formatCutoff(pr.Float(prefs.KeyNotch, 50.0)))

	fp.applyButton = widget.NewButton("Apply Filter", func() {
		fp.onApply()
	})
	fp.applyButton.Disable()

	// Layout
	fp.container = container.NewVBox(
		widget.NewCard("Frequency Filter", "", container.NewVBox(
			widget.NewForm(
				widget.NewFormItem("Highpass (Hz)", fp.highpassEntry),
				widget.NewFormItem("Lowpass (Hz)", fp.lowpassEntry),
				widget.NewFormItem("Notch (Hz)", fp.notchEntry),
			),
			fp.applyButton,
			fp.statusLabel,
		)),
	)

	// Register for events
	state.On(app.EventStageChanged, func(data any) {
		fp.updateButtons()
	})
	state.On(app.EventBusyChanged, func(data any) {
		fp.updateButtons()
	})

	return fp
}

// Container returns the panel container.
func (fp *FilterPanel) Container() fyne.CanvasObject {
	return fp.container
}

// SetWindow sets the parent window for dialogs.
func (fp *FilterPanel) SetWindow(w fyne.Window) {
	fp.window = w
}

func (fp *FilterPanel) onApply() {
	spec, err := fp.readSpec()
	if err != nil {
		if fp.window != nil {
			dialog.ShowError(err, fp.window)
		}
		return
	}
	if !spec.Enabled() {
		if fp.window != nil {
			dialog.ShowInformation("Nothing To Apply",
				"Enter at least one cutoff frequency", fp.window)
		}
		return
	}

	fp.prefs.SetFloat(prefs.KeyHighpass, spec.Highpass)
	fp.prefs.SetFloat(prefs.KeyLowpass, spec.Lowpass)
	fp.prefs.SetFloat(prefs.KeyNotch, spec.Notch)
	if err := fp.prefs.Save(); err != nil {
		log.Printf("could not save preferences: %v", err)
	}

	if err := fp.state.ApplyFilter(spec); err != nil {
		if fp.window != nil {
			dialog.ShowError(err, fp.window)
		}
	}
}

// readSpec parses the three cutoff entries. Empty fields disable the
// corresponding filter.
func (fp *FilterPanel) readSpec() (dsp.FilterSpec, error) {
	var spec dsp.FilterSpec
	var err error
	if spec.Highpass, err = parseFloatEntry(fp.highpassEntry.Text); err != nil {
		return spec, fmt.Errorf("highpass: %w", err)
	}
	if spec.Lowpass, err = parseFloatEntry(fp.lowpassEntry.Text); err != nil {
		return spec, fmt.Errorf("lowpass: %w", err)
	}
	if spec.Notch, err = parseFloatEntry(fp.notchEntry.Text); err != nil {
		return spec, fmt.Errorf("notch: %w", err)
	}
	if spec.Highpass > 0 && spec.Lowpass > 0 && spec.Highpass >= spec.Lowpass {
		return spec, fmt.Errorf("highpass %.3g Hz must be below lowpass %.3g Hz",
			spec.Highpass, spec.Lowpass)
	}
	return spec, nil
}

func (fp *FilterPanel) updateButtons() {
	if !fp.state.Busy() && fp.state.CanRun(pipeline.OpFilter) {
		fp.applyButton.Enable()
		fp.statusLabel.SetText("")
	} else if fp.state.Info() == nil {
		fp.applyButton.Disable()
		fp.statusLabel.SetText("Load a dataset first")
	} else {
		fp.applyButton.Disable()
	}
}

// formatCutoff renders a stored cutoff for an entry field, empty when
// the filter is disabled.
func formatCutoff(v float64) string {
	if v <= 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
