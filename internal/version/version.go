// Package version carries the build identity of the binary.
package version

import "fmt"

// Stamped by the linker on release builds:
//
//	go build -ldflags "-X neuroflow/internal/version.Version=... \
//	  -X neuroflow/internal/version.Commit=... \
//	  -X neuroflow/internal/version.Date=..."
//
// Plain source builds report the defaults.
var (
	Version = "0.1.0-dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the full identity for startup banners and the About
// dialog.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
