package panels

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"neuroflow/internal/app"
	"neuroflow/internal/pipeline"
	"neuroflow/internal/plot"
	"neuroflow/ui/plotview"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// sourcePreviewSeconds bounds the activation trace drawn under the map.
const sourcePreviewSeconds = 10

// ICAPanel drives the decomposition and component exclusion workflow.
type ICAPanel struct {
	state     *app.State
	window    fyne.Window
	container fyne.CanvasObject

	fitButton       *widget.Button
	infoLabel       *widget.Label
	excludeGroup    *widget.CheckGroup
	applyButton     *widget.Button
	componentSelect *widget.Select
	patternView     *plotview.View
	sourceView      *plotview.View
}

// NewICAPanel creates a new ICA panel.
func NewICAPanel(state *app.State) *ICAPanel {
	ip := &ICAPanel{
		state: state,
	}

	ip.infoLabel = widget.NewLabel("Not decomposed")
	ip.infoLabel.Wrapping = fyne.TextWrapWord

	ip.fitButton = widget.NewButton("Fit ICA", func() {
		if err := ip.state.RunICA(); err != nil && ip.window != nil {
			dialog.ShowError(err, ip.window)
		}
	})
	ip.fitButton.Disable()

	ip.excludeGroup = widget.NewCheckGroup(nil, nil)

	ip.applyButton = widget.NewButton("Apply Exclusion", func() {
		ip.onApply()
	})
	ip.applyButton.Disable()

	ip.componentSelect = widget.NewSelect(nil, func(selected string) {
		ip.renderComponent(selected)
	})
	ip.patternView = plotview.New(240, 200)
	ip.sourceView = plotview.New(240, 110)

	// The check group grows with the component count, keep it scrollable.
	excludeScroll := container.NewVScroll(ip.excludeGroup)
	excludeScroll.SetMinSize(fyne.NewSize(0, 150))

	// Layout
	ip.container = container.NewVBox(
		widget.NewCard("Decomposition", "", container.NewVBox(
			ip.fitButton,
			ip.infoLabel,
		)),
		widget.NewCard("Exclude Components", "", container.NewVBox(
			excludeScroll,
			ip.applyButton,
		)),
		widget.NewCard("Component Detail", "", container.NewVBox(
			ip.componentSelect,
			ip.patternView.Object(),
			ip.sourceView.Object(),
		)),
	)

	// Register for events
	state.On(app.EventDecompositionReady, func(data any) {
		ip.refreshComponents()
	})
	state.On(app.EventDatasetLoaded, func(data any) {
		ip.reset()
	})
	state.On(app.EventStageChanged, func(data any) {
		ip.updateButtons()
	})
	state.On(app.EventBusyChanged, func(data any) {
		ip.updateButtons()
	})

	return ip
}

// Container returns the panel container.
func (ip *ICAPanel) Container() fyne.CanvasObject {
	return ip.container
}

// SetWindow sets the parent window for dialogs.
func (ip *ICAPanel) SetWindow(w fyne.Window) {
	ip.window = w
}

func (ip *ICAPanel) onApply() {
	indices := make([]int, 0, len(ip.excludeGroup.Selected))
	for _, name := range ip.excludeGroup.Selected {
		idx, err := componentIndex(name)
		if err != nil {
			log.Printf("unreadable component selection %q: %v", name, err)
			return
		}
		indices = append(indices, idx)
	}
	if err := ip.state.ApplyICA(indices); err != nil && ip.window != nil {
		dialog.ShowError(err, ip.window)
	}
}

func (ip *ICAPanel) refreshComponents() {
	res := ip.state.Decomposition()
	if res == nil {
		ip.reset()
		return
	}

	if res.Converged {
		ip.infoLabel.SetText(fmt.Sprintf("%d components, converged in %d iterations",
			res.NComponents, res.Iterations))
	} else {
		ip.infoLabel.SetText(fmt.Sprintf("%d components, not converged after %d iterations",
			res.NComponents, res.Iterations))
	}

	options := make([]string, res.NComponents)
	for i := range options {
		options[i] = componentName(i)
	}
	ip.excludeGroup.Options = options
	ip.excludeGroup.SetSelected(nil)
	ip.excludeGroup.Refresh()

	ip.componentSelect.Options = options
	ip.componentSelect.Refresh()
	if len(options) > 0 {
		ip.componentSelect.SetSelected(options[0])
	}
	ip.updateButtons()
}

// renderComponent draws the scalp map and activation trace for the
// chosen component.
func (ip *ICAPanel) renderComponent(name string) {
	if name == "" {
		return
	}
	idx, err := componentIndex(name)
	if err != nil {
		return
	}
	channels, weights, err := ip.state.ComponentPattern(idx)
	if err != nil {
		log.Printf("component map %s: %v", name, err)
		return
	}
	ip.patternView.SetImage(plot.Topomap(360, 300, name, channels, weights))

	src, rate, err := ip.state.ComponentSource(idx)
	if err != nil {
		log.Printf("component source %s: %v", name, err)
		ip.sourceView.Clear()
		return
	}
	// The opening stretch is enough to recognize blinks and line noise.
	n := len(src)
	if limit := int(rate * sourcePreviewSeconds); limit > 0 && n > limit {
		n = limit
	}
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i) / rate
	}
	ip.sourceView.SetImage(plot.Lines(plot.LineConfig{
		Width:  360,
		Height: 160,
		Title:  name + " ACTIVATION",
		XLabel: "TIME (S)",
	}, plot.Series{X: xs, Y: src[:n]}))
}

func (ip *ICAPanel) reset() {
	ip.infoLabel.SetText("Not decomposed")
	ip.excludeGroup.Options = nil
	ip.excludeGroup.SetSelected(nil)
	ip.excludeGroup.Refresh()
	ip.componentSelect.Options = nil
	ip.componentSelect.ClearSelected()
	ip.componentSelect.Refresh()
	ip.patternView.Clear()
	ip.sourceView.Clear()
	ip.updateButtons()
}

func (ip *ICAPanel) updateButtons() {
	busy := ip.state.Busy()
	if !busy && ip.state.CanRun(pipeline.OpComputeICA) {
		ip.fitButton.Enable()
	} else {
		ip.fitButton.Disable()
	}
	if !busy && ip.state.CanRun(pipeline.OpApplyICA) {
		ip.applyButton.Enable()
	} else {
		ip.applyButton.Disable()
	}
}

// componentName formats the label shown for an independent component.
func componentName(i int) string {
	return fmt.Sprintf("IC %d", i)
}

// componentIndex parses a component label back to its index.
func componentIndex(name string) (int, error) {
	return strconv.Atoi(strings.TrimPrefix(name, "IC "))
}
