package panels

import (
	"neuroflow/internal/app"
	"neuroflow/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
)

// SidePanel provides the main side panel with tabbed sections.
type SidePanel struct {
	state     *app.State
	container *container.AppTabs

	// Tab content
	datasetPanel  *DatasetPanel
	filterPanel   *FilterPanel
	icaPanel      *ICAPanel
	epochsPanel   *EpochsPanel
	analysisPanel *AnalysisPanel
	historyPanel  *HistoryPanel
	logPanel      *LogPanel
}

// NewSidePanel creates a new side panel.
func NewSidePanel(state *app.State, pr *prefs.Prefs) *SidePanel {
	sp := &SidePanel{
		state: state,
	}

	// Create individual panels
	sp.datasetPanel = NewDatasetPanel(state, pr)
	sp.filterPanel = NewFilterPanel(state, pr)
	sp.icaPanel = NewICAPanel(state)
	sp.epochsPanel = NewEpochsPanel(state, pr)
	sp.analysisPanel = NewAnalysisPanel(state, pr)
	sp.historyPanel = NewHistoryPanel(state)
	sp.logPanel = NewLogPanel(state)

	// Create tabbed container
	sp.container = container.NewAppTabs(
		container.NewTabItem("Dataset", sp.datasetPanel.Container()),
		container.NewTabItem("Filter", sp.filterPanel.Container()),
		container.NewTabItem("ICA", sp.icaPanel.Container()),
		container.NewTabItem("Epochs", sp.epochsPanel.Container()),
		container.NewTabItem("Analysis", sp.analysisPanel.Container()),
		container.NewTabItem("History", sp.historyPanel.Container()),
		container.NewTabItem("Log", sp.logPanel.Container()),
	)

	return sp
}

// Container returns the panel container.
func (sp *SidePanel) Container() fyne.CanvasObject {
	return sp.container
}

// SetWindow sets the parent window for dialogs.
func (sp *SidePanel) SetWindow(w fyne.Window) {
	sp.datasetPanel.SetWindow(w)
	sp.filterPanel.SetWindow(w)
	sp.icaPanel.SetWindow(w)
	sp.epochsPanel.SetWindow(w)
	sp.analysisPanel.SetWindow(w)
	sp.historyPanel.SetWindow(w)
}

// ShowOpenDialog opens the recording picker. The File menu routes here.
func (sp *SidePanel) ShowOpenDialog() {
	sp.datasetPanel.ShowOpenDialog()
}

// ShowSaveDialog opens the export picker. The File menu routes here.
func (sp *SidePanel) ShowSaveDialog() {
	sp.datasetPanel.ShowSaveDialog()
}
