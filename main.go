// Package main provides the entry point for the NeuroFlow application.
package main

import (
	"log"
	"os"
	"time"

	"neuroflow/internal/app"
	"neuroflow/internal/compute"
	"neuroflow/internal/version"
	"neuroflow/ui/mainwindow"
	"neuroflow/ui/prefs"

	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/dialog"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting NeuroFlow %s", version.String())

	fyneApp := fyneapp.New()
	fyneApp.Settings().SetTheme(&app.NeuroFlowTheme{})

	state := app.NewState(compute.NewEngine())
	defer state.Close()
	appPrefs := prefs.Load()

	win := mainwindow.New(fyneApp, state, appPrefs)

	// Handle command line arguments
	if len(os.Args) > 1 {
		datasetPath := os.Args[1]
		if err := state.LoadDataset(datasetPath); err != nil {
			log.Printf("Failed to load dataset %s: %v", datasetPath, err)
		}
	}

	if os.Getenv("NEUROFLOW_HOTRELOAD") == "1" {
		setupHotReload(win)
	}

	win.ShowAndRun()
}

// setupHotReload configures automatic restart detection when the binary
// is recompiled.
func setupHotReload(win *mainwindow.MainWindow) {
	reloader := app.NewHotReloader(2 * time.Second)
	if reloader == nil {
		log.Println("Hot reload: unable to determine executable path")
		return
	}

	log.Printf("Hot reload: watching %s", reloader.ExecPath())

	reloader.OnChange(func() {
		log.Println("Hot reload: newer binary detected")
		dialog.ShowConfirm("New Version Available",
			"The application binary has been updated.\nRestart now?",
			func(restart bool) {
				if restart {
					log.Println("Hot reload: restarting...")
					if err := reloader.Restart(); err != nil {
						log.Printf("Hot reload: restart failed: %v", err)
					}
					return
				}
				reloader.ResetBaseline()
				reloader.Start()
			},
			win.Window)
	})

	reloader.Start()
}
