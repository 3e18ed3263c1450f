// Package mainwindow provides the main application window.
package mainwindow

import (
	"fmt"
	"path/filepath"

	"neuroflow/internal/app"
	"neuroflow/internal/compute"
	"neuroflow/internal/eeg"
	"neuroflow/internal/export"
	"neuroflow/internal/plot"
	"neuroflow/internal/version"
	"neuroflow/ui/dialogs"
	"neuroflow/ui/panels"
	"neuroflow/ui/plotview"
	"neuroflow/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// Figure raster size. Views scale the image to fit, so this only sets
// the detail level.
const (
	figureWidth  = 900
	figureHeight = 620
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app   fyne.App
	state *app.State
	prefs *prefs.Prefs

	sidePanel *panels.SidePanel
	statusBar *widget.Label
	busy      *widget.ProgressBarInfinite

	figureTabs  *container.AppTabs
	spectrumTab *container.TabItem
	erpTab      *container.TabItem
	tfrTab      *container.TabItem
	connTab     *container.TabItem

	spectrumView *plotview.View
	erpView      *plotview.View
	tfrView      *plotview.View
	connView     *plotview.View
}

// New creates a new main window.
func New(fyneApp fyne.App, state *app.State, pr *prefs.Prefs) *MainWindow {
	win := fyneApp.NewWindow("NeuroFlow")

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
		prefs:  pr,
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupEventHandlers()
	mw.SetCloseIntercept(mw.confirmQuit)

	mw.Resize(fyne.NewSize(1280, 800))
	return mw
}

// confirmQuit asks before quitting while a job is still running.
func (mw *MainWindow) confirmQuit() {
	if mw.state.Busy() && mw.prefs.Bool(prefs.KeyConfirmOnBusy, true) {
		dialog.ShowConfirm("Quit",
			"A computation is still running. Quit anyway?",
			func(quit bool) {
				if quit {
					mw.app.Quit()
				}
			}, mw.Window)
		return
	}
	mw.app.Quit()
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	// Figure views, one per analysis
	mw.spectrumView = plotview.New(480, 360)
	mw.erpView = plotview.New(480, 360)
	mw.tfrView = plotview.New(480, 360)
	mw.connView = plotview.New(480, 360)

	mw.spectrumTab = container.NewTabItem("Spectrum", mw.spectrumView.Object())
	mw.erpTab = container.NewTabItem("Evoked", mw.erpView.Object())
	mw.tfrTab = container.NewTabItem("Power Map", mw.tfrView.Object())
	mw.connTab = container.NewTabItem("Connectivity", mw.connView.Object())
	mw.figureTabs = container.NewAppTabs(mw.spectrumTab, mw.erpTab, mw.tfrTab, mw.connTab)

	// Create the side panel with tabs
	mw.sidePanel = panels.NewSidePanel(mw.state, mw.prefs)
	mw.sidePanel.SetWindow(mw.Window)

	// Create status bar with busy indicator
	mw.statusBar = widget.NewLabel("Ready")
	mw.busy = widget.NewProgressBarInfinite()
	mw.busy.Stop()
	mw.busy.Hide()

	// Create main layout: side panel | figure area
	split := container.NewHSplit(
		mw.sidePanel.Container(),
		mw.figureTabs,
	)
	split.SetOffset(0.3)

	// Main container with status bar at bottom
	content := container.NewBorder(
		nil,
		container.NewPadded(container.NewBorder(nil, nil, nil, mw.busy, mw.statusBar)),
		nil,
		nil,
		split,
	)

	mw.SetContent(content)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	// File menu
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Dataset...", func() { mw.sidePanel.ShowOpenDialog() }),
		fyne.NewMenuItem("Save Cleaned As...", func() { mw.sidePanel.ShowSaveDialog() }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", mw.confirmQuit),
	)

	// Analysis menu. The band-limited analyses run with the saved
	// parameters; the panel forms adjust them.
	analysisMenu := fyne.NewMenu("Analysis",
		fyne.NewMenuItem("Fit ICA", func() { mw.runOp(mw.state.RunICA) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Compute Evoked Response", func() { mw.runOp(mw.state.ComputeERP) }),
		fyne.NewMenuItem("Compute Power Map", func() {
			mw.runOp(func() error {
				return mw.state.ComputeTFR(
					mw.prefs.Float(prefs.KeyTFRMin, 4.0),
					mw.prefs.Float(prefs.KeyTFRMax, 40.0))
			})
		}),
		fyne.NewMenuItem("Compute Connectivity", func() {
			mw.runOp(func() error {
				return mw.state.ComputeConnectivity(
					mw.prefs.Float(prefs.KeyConnBandLow, 8.0),
					mw.prefs.Float(prefs.KeyConnBandHigh, 12.0))
			})
		}),
	)

	// View menu
	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Dataset Details...", func() {
			dialogs.ShowDatasetInfo(mw.state.Info(), mw.state.Channels(), mw.Window)
		}),
		fyne.NewMenuItem("Sensor Layout...", func() {
			dialogs.ShowSensorLayout(mw.state.Channels(), mw.Window)
		}),
		fyne.NewMenuItem("Processing History...", mw.onShowHistory),
	)

	// Help menu
	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mainMenu := fyne.NewMainMenu(fileMenu, analysisMenu, viewMenu, helpMenu)
	mw.SetMainMenu(mainMenu)
}

// runOp starts a pipeline operation from a menu item.
func (mw *MainWindow) runOp(op func() error) {
	if err := op(); err != nil {
		dialog.ShowError(err, mw.Window)
	}
}

// setupEventHandlers registers for application events.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventDatasetLoaded, func(data any) {
		if info, ok := data.(*compute.DatasetInfo); ok {
			mw.SetTitle("NeuroFlow - " + filepath.Base(info.Path))
		}
		mw.spectrumView.Clear()
		mw.erpView.Clear()
		mw.tfrView.Clear()
		mw.connView.Clear()
	})

	mw.state.On(app.EventBusyChanged, func(data any) {
		if mw.state.Busy() {
			mw.busy.Show()
			mw.busy.Start()
		} else {
			mw.busy.Stop()
			mw.busy.Hide()
		}
	})

	mw.state.On(app.EventStatus, func(data any) {
		if text, ok := data.(string); ok {
			mw.updateStatus(text)
		}
	})

	mw.state.On(app.EventOperationFailed, func(data any) {
		if e, ok := data.(app.OpError); ok {
			dialog.ShowError(fmt.Errorf("%s: %w", e.Op, e.Err), mw.Window)
		}
	})

	mw.state.On(app.EventSpectrumUpdated, func(data any) {
		mw.renderSpectrum()
	})

	mw.state.On(app.EventERPReady, func(data any) {
		mw.renderEvoked()
	})

	mw.state.On(app.EventTFRReady, func(data any) {
		mw.renderPowerMap()
	})

	mw.state.On(app.EventConnectivityReady, func(data any) {
		mw.renderConnectivity()
	})

	mw.state.On(app.EventDatasetSaved, func(data any) {
		outcome, ok := data.(*export.Outcome)
		if !ok {
			return
		}
		if outcome.SidecarErr != nil {
			dialog.ShowInformation("History Sidecar",
				fmt.Sprintf("The dataset was saved to %s,\nbut the history sidecar could not be written:\n%v",
					filepath.Base(outcome.DataPath), outcome.SidecarErr),
				mw.Window)
		}
	})
}

func (mw *MainWindow) renderSpectrum() {
	psd := mw.state.Spectrum()
	if psd == nil {
		return
	}
	// Spectra cover the EEG channels, or everything when none is typed.
	var names []string
	for _, ch := range mw.state.Channels() {
		if ch.Type == eeg.ChannelEEG {
			names = append(names, ch.Name)
		}
	}
	if len(names) == 0 {
		if info := mw.state.Info(); info != nil {
			names = info.ChannelNames
		}
	}
	if len(names) > 12 {
		// The legend would cover the plot beyond a dozen channels.
		names = nil
	}
	mw.spectrumView.SetImage(plot.Spectrum(figureWidth, figureHeight, psd, names))
	mw.figureTabs.Select(mw.spectrumTab)
}

func (mw *MainWindow) renderEvoked() {
	res := mw.state.ERP()
	if res == nil {
		return
	}
	mw.erpView.SetImage(plot.Evoked(figureWidth, figureHeight, res.Evoked))
	mw.figureTabs.Select(mw.erpTab)
}

func (mw *MainWindow) renderPowerMap() {
	res := mw.state.TFR()
	if res == nil || len(res.Freqs) == 0 || len(res.Times) == 0 {
		return
	}
	cfg := plot.HeatConfig{
		Width:  figureWidth,
		Height: figureHeight,
		Title:  "EPOCH POWER (% CHANGE)",
		XLabel: "TIME (S)",
		YLabel: "FREQUENCY (HZ)",
		XMin:   res.Times[0],
		XMax:   res.Times[len(res.Times)-1],
		YMin:   res.Freqs[0],
		YMax:   res.Freqs[len(res.Freqs)-1],
	}
	mw.tfrView.SetImage(plot.Heatmap(cfg, plot.BaselinePercent(res.Power, res.Times)))
	mw.figureTabs.Select(mw.tfrTab)
}

func (mw *MainWindow) renderConnectivity() {
	res := mw.state.Connectivity()
	if res == nil {
		return
	}
	title := fmt.Sprintf("WPLI %g-%g HZ", res.Band[0], res.Band[1])
	mw.connView.SetImage(plot.Matrix(700, 700, title, res.Names, res.Matrix))
	mw.figureTabs.Select(mw.connTab)
}

func (mw *MainWindow) onShowHistory() {
	js, err := mw.state.HistoryJSON()
	if err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	dialogs.ShowHistory(js, mw.Window)
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About NeuroFlow",
		fmt.Sprintf("NeuroFlow %s\n\n"+
			"Desktop EEG preprocessing and analysis.\n\n"+
			"Reads BrainVision and EDF recordings.",
			version.String()),
		mw.Window)
}
