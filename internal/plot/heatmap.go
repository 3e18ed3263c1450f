package plot

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"

	"neuroflow/pkg/colorutil"
)

// colorBarWidth is the extra right margin a color bar occupies.
const colorBarWidth = 58

// HeatConfig describes a heatmap over a regular grid.
type HeatConfig struct {
	Width  int
	Height int
	Title  string
	XLabel string
	YLabel string
	// Data coordinates of the grid edges. Row 0 of the grid sits at
	// YMin, the last row at YMax.
	XMin, XMax float64
	YMin, YMax float64
}

// Heatmap renders grid values through the viridis colormap, smoothly
// upscaled to the axes box. grid is [row][col] with len(grid) rows.
func Heatmap(cfg HeatConfig, grid [][]float64) *image.RGBA {
	f := newFigure(cfg.Width, cfg.Height, cfg.XMin, cfg.XMax, cfg.YMin, cfg.YMax,
		marginRight+colorBarWidth)
	rows := len(grid)
	if rows == 0 || len(grid[0]) == 0 {
		f.frame()
		f.labels(cfg.Title, cfg.XLabel, cfg.YLabel)
		return f.img
	}
	cols := len(grid[0])

	vmin, vmax := math.Inf(1), math.Inf(-1)
	for _, row := range grid {
		for _, v := range row {
			vmin = math.Min(vmin, v)
			vmax = math.Max(vmax, v)
		}
	}

	// Paint the grid at its native resolution, row 0 at the bottom,
	// then let the scaler interpolate it up to the axes box.
	small := image.NewRGBA(image.Rect(0, 0, cols, rows))
	for r, row := range grid {
		for c, v := range row {
			small.Set(c, rows-1-r, colorutil.Viridis(normalize(v, vmin, vmax)))
		}
	}
	xdraw.CatmullRom.Scale(f.img, f.area, small, small.Bounds(), xdraw.Src, nil)

	f.ticks2(cfg)
	f.frame()
	f.labels(cfg.Title, cfg.XLabel, cfg.YLabel)
	drawColorBar(f, vmin, vmax)
	return f.img
}

// ticks2 draws tick labels without grid lines, for plots whose area is
// fully painted.
func (f *figure) ticks2(cfg HeatConfig) {
	xStep := tickStep(f.xmin, f.xmax, 6)
	for _, v := range tickValues(f.xmin, f.xmax, xStep) {
		px, _ := f.pixel(v, 0)
		for y := f.area.Max.Y; y < f.area.Max.Y+3; y++ {
			f.img.Set(px, y, colorutil.Black)
		}
		drawTextCentered(f.img, tickLabel(v, xStep), px, f.area.Max.Y+8, colorutil.Black, 1)
	}
	yStep := tickStep(f.ymin, f.ymax, 5)
	for _, v := range tickValues(f.ymin, f.ymax, yStep) {
		_, py := f.pixel(0, v)
		for x := f.area.Min.X - 3; x < f.area.Min.X; x++ {
			f.img.Set(x, py, colorutil.Black)
		}
		label := tickLabel(v, yStep)
		drawText(f.img, label, f.area.Min.X-textWidth(label, 1)-5, py-2, colorutil.Black, 1)
	}
}

// drawColorBar paints the value scale to the right of the axes box.
func drawColorBar(f *figure, vmin, vmax float64) {
	barX := f.area.Max.X + 10
	for y := f.area.Min.Y; y < f.area.Max.Y; y++ {
		t := float64(f.area.Max.Y-1-y) / float64(f.area.Dy()-1)
		col := colorutil.Viridis(t)
		for x := barX; x < barX+12; x++ {
			f.img.Set(x, y, col)
		}
	}
	step := tickStep(vmin, vmax, 4)
	drawText(f.img, tickLabel(vmax, step), barX+15, f.area.Min.Y, colorutil.Black, 1)
	drawText(f.img, tickLabel(vmin, step), barX+15, f.area.Max.Y-6, colorutil.Black, 1)
}

// normalize maps v into [0, 1] within [vmin, vmax]. A flat range lands
// everything in the middle.
func normalize(v, vmin, vmax float64) float64 {
	if vmax <= vmin {
		return 0.5
	}
	return (v - vmin) / (vmax - vmin)
}

// BaselinePercent rescales a time-frequency grid to percent change
// against each row's mean over the columns at negative times. A grid
// without a pre-stimulus stretch comes back unchanged.
func BaselinePercent(grid [][]float64, times []float64) [][]float64 {
	base := 0
	for _, t := range times {
		if t < 0 {
			base++
		}
	}
	if base == 0 {
		return grid
	}
	out := make([][]float64, len(grid))
	for r, row := range grid {
		out[r] = make([]float64, len(row))
		n := base
		if n > len(row) {
			n = len(row)
		}
		sum := 0.0
		for c := 0; c < n; c++ {
			sum += row[c]
		}
		if n == 0 || sum == 0 {
			copy(out[r], row)
			continue
		}
		mean := sum / float64(n)
		for c, v := range row {
			out[r][c] = 100 * (v - mean) / mean
		}
	}
	return out
}
