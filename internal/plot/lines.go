package plot

import (
	"image"
	"math"

	"neuroflow/internal/dsp"
	"neuroflow/internal/eeg"
	"neuroflow/pkg/colorutil"
)

// Series is one named line of a plot.
type Series struct {
	Name string
	X    []float64
	Y    []float64
}

// LineConfig describes a multi-series line plot.
type LineConfig struct {
	Width  int
	Height int
	Title  string
	XLabel string
	YLabel string
	// Markers are dashed vertical lines at the given x positions.
	Markers []float64
}

// Lines renders the series into one set of axes. Series beyond the
// palette reuse its colors.
func Lines(cfg LineConfig, series ...Series) *image.RGBA {
	xmin, xmax := math.Inf(1), math.Inf(-1)
	ymin, ymax := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		n := len(s.X)
		if len(s.Y) < n {
			n = len(s.Y)
		}
		for i := 0; i < n; i++ {
			if math.IsNaN(s.Y[i]) || math.IsInf(s.Y[i], 0) {
				continue
			}
			xmin = math.Min(xmin, s.X[i])
			xmax = math.Max(xmax, s.X[i])
			ymin = math.Min(ymin, s.Y[i])
			ymax = math.Max(ymax, s.Y[i])
		}
	}
	if math.IsInf(xmin, 1) {
		xmin, xmax, ymin, ymax = 0, 1, 0, 1
	}
	// A little vertical headroom keeps extremes off the frame.
	pad := (ymax - ymin) * 0.05
	if pad == 0 {
		pad = 1
	}

	f := newFigure(cfg.Width, cfg.Height, xmin, xmax, ymin-pad, ymax+pad, marginRight)
	f.ticks()
	for _, x := range cfg.Markers {
		f.vline(x, colorutil.Gray)
	}
	for i, s := range series {
		f.polyline(s.X, s.Y, colorutil.Series(i))
	}
	f.frame()
	f.labels(cfg.Title, cfg.XLabel, cfg.YLabel)
	if len(series) > 1 {
		drawLegend(f, series)
	}
	return f.img
}

// drawLegend draws name swatches in the top-right corner of the axes.
func drawLegend(f *figure, series []Series) {
	const rowH = 9
	maxRows := (f.area.Dy() - 8) / rowH
	rows := len(series)
	if rows > maxRows {
		rows = maxRows
	}
	for i := 0; i < rows; i++ {
		name := series[i].Name
		if name == "" {
			continue
		}
		y := f.area.Min.Y + 5 + i*rowH
		x := f.area.Max.X - textWidth(name, 1) - 18
		for dx := 0; dx < 8; dx++ {
			f.set(x+dx, y+2, colorutil.Series(i))
			f.set(x+dx, y+3, colorutil.Series(i))
		}
		drawText(f.img, name, x+11, y, colorutil.Black, 1)
	}
}

// Spectrum renders a power spectral density with log-scaled power.
func Spectrum(w, h int, psd *dsp.PSD, names []string) *image.RGBA {
	cfg := LineConfig{
		Width:  w,
		Height: h,
		Title:  "POWER SPECTRUM",
		XLabel: "FREQUENCY (HZ)",
		YLabel: "LOG POWER",
	}
	if psd == nil || len(psd.Power) == 0 {
		return Lines(cfg)
	}
	series := make([]Series, len(psd.Power))
	for ch, row := range psd.Power {
		logp := make([]float64, len(row))
		for i, v := range row {
			logp[i] = math.Log10(v + 1e-20)
		}
		var name string
		if ch < len(names) {
			name = names[ch]
		}
		series[ch] = Series{Name: name, X: psd.Freqs, Y: logp}
	}
	return Lines(cfg, series...)
}

// Evoked renders an averaged response, one line per channel, with a
// marker at stimulus onset.
func Evoked(w, h int, evoked *eeg.Evoked) *image.RGBA {
	cfg := LineConfig{
		Width:  w,
		Height: h,
		Title:  "EVOKED RESPONSE",
		XLabel: "TIME (S)",
		YLabel: "AMPLITUDE (UV)",
	}
	if evoked == nil || len(evoked.Data) == 0 {
		return Lines(cfg)
	}
	cfg.Markers = []float64{0}
	series := make([]Series, len(evoked.Data))
	for ch, row := range evoked.Data {
		var name string
		if ch < len(evoked.Channels) {
			name = evoked.Channels[ch].Name
		}
		series[ch] = Series{Name: name, X: evoked.Times, Y: row}
	}
	return Lines(cfg, series...)
}
