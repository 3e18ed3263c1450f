// Package plot renders analysis figures as raster images. Everything is
// drawn pixel by pixel into an RGBA buffer so the widgets can display
// the result without a rendering toolkit behind them.
package plot

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"strconv"

	"neuroflow/pkg/colorutil"
	"neuroflow/pkg/geometry"
)

// Margins around the axes box, in pixels.
const (
	marginLeft   = 52
	marginRight  = 16
	marginTop    = 26
	marginBottom = 34
)

// figure is a raster surface with an axes box and a data-to-pixel
// transform. The y axis points up in data space.
type figure struct {
	img   *image.RGBA
	area  image.Rectangle
	xform geometry.AffineTransform
	xmin  float64
	xmax  float64
	ymin  float64
	ymax  float64
}

func newFigure(w, h int, xmin, xmax, ymin, ymax float64, rightMargin int) *figure {
	if w < 120 {
		w = 120
	}
	if h < 90 {
		h = 90
	}
	if xmax <= xmin {
		xmax = xmin + 1
	}
	if ymax <= ymin {
		ymax = ymin + 1
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fillRect(img, img.Bounds(), colorutil.White)

	area := image.Rect(marginLeft, marginTop, w-rightMargin, h-marginBottom)
	sx := float64(area.Dx()) / (xmax - xmin)
	sy := float64(area.Dy()) / (ymax - ymin)
	xform := geometry.Translation(float64(area.Min.X), float64(area.Max.Y)).
		Compose(geometry.Scale(sx, -sy)).
		Compose(geometry.Translation(-xmin, -ymin))

	return &figure{img: img, area: area, xform: xform,
		xmin: xmin, xmax: xmax, ymin: ymin, ymax: ymax}
}

// pixel maps a data point to image coordinates.
func (f *figure) pixel(x, y float64) (int, int) {
	p := f.xform.Apply(geometry.Point2D{X: x, Y: y})
	return int(math.Round(p.X)), int(math.Round(p.Y))
}

// set colors one pixel, clipped to the axes box.
func (f *figure) set(x, y int, col color.Color) {
	if x >= f.area.Min.X && x < f.area.Max.X && y >= f.area.Min.Y && y < f.area.Max.Y {
		f.img.Set(x, y, col)
	}
}

// frame draws the axes box outline.
func (f *figure) frame() {
	for x := f.area.Min.X; x < f.area.Max.X; x++ {
		f.img.Set(x, f.area.Min.Y, colorutil.Gray)
		f.img.Set(x, f.area.Max.Y-1, colorutil.Gray)
	}
	for y := f.area.Min.Y; y < f.area.Max.Y; y++ {
		f.img.Set(f.area.Min.X, y, colorutil.Gray)
		f.img.Set(f.area.Max.X-1, y, colorutil.Gray)
	}
}

// ticks draws grid lines and tick labels on both axes.
func (f *figure) ticks() {
	xStep := tickStep(f.xmin, f.xmax, 6)
	for _, v := range tickValues(f.xmin, f.xmax, xStep) {
		px, _ := f.pixel(v, 0)
		for y := f.area.Min.Y + 1; y < f.area.Max.Y-1; y++ {
			f.img.Set(px, y, colorutil.LightGray)
		}
		label := tickLabel(v, xStep)
		drawTextCentered(f.img, label, px, f.area.Max.Y+8, colorutil.Black, 1)
	}
	yStep := tickStep(f.ymin, f.ymax, 5)
	for _, v := range tickValues(f.ymin, f.ymax, yStep) {
		_, py := f.pixel(0, v)
		for x := f.area.Min.X + 1; x < f.area.Max.X-1; x++ {
			f.img.Set(x, py, colorutil.LightGray)
		}
		label := tickLabel(v, yStep)
		drawText(f.img, label, f.area.Min.X-textWidth(label, 1)-5, py-2, colorutil.Black, 1)
	}
}

// labels draws the title and axis captions.
func (f *figure) labels(title, xlabel, ylabel string) {
	if title != "" {
		drawTextCentered(f.img, title, (f.area.Min.X+f.area.Max.X)/2, 10, colorutil.Black, 2)
	}
	if xlabel != "" {
		drawTextCentered(f.img, xlabel, (f.area.Min.X+f.area.Max.X)/2,
			f.area.Max.Y+22, colorutil.Black, 1)
	}
	if ylabel != "" {
		drawTextVertical(f.img, ylabel, 10, (f.area.Min.Y+f.area.Max.Y)/2, colorutil.Black, 1)
	}
}

// polyline draws connected data points clipped to the axes box.
func (f *figure) polyline(xs, ys []float64, col color.Color) {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	var prevX, prevY int
	started := false
	for i := 0; i < n; i++ {
		if math.IsNaN(ys[i]) || math.IsInf(ys[i], 0) {
			started = false
			continue
		}
		px, py := f.pixel(xs[i], ys[i])
		if started {
			f.line(prevX, prevY, px, py, col)
		}
		prevX, prevY = px, py
		started = true
	}
}

// line draws a segment clipped to the axes box.
func (f *figure) line(x1, y1, x2, y2 int, col color.Color) {
	drawSeg(f.img, x1, y1, x2, y2, col, f.area)
}

// drawSeg draws a segment using Bresenham's algorithm, clipped to clip.
func drawSeg(img *image.RGBA, x1, y1, x2, y2 int, col color.Color, clip image.Rectangle) {
	dx := x2 - x1
	if dx < 0 {
		dx = -dx
	}
	dy := y2 - y1
	if dy < 0 {
		dy = -dy
	}
	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		if x1 >= clip.Min.X && x1 < clip.Max.X && y1 >= clip.Min.Y && y1 < clip.Max.Y {
			img.Set(x1, y1, col)
		}
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// vline draws a dashed vertical marker at data coordinate x.
func (f *figure) vline(x float64, col color.Color) {
	px, _ := f.pixel(x, 0)
	for y := f.area.Min.Y; y < f.area.Max.Y; y++ {
		if y%4 < 2 {
			f.set(px, y, col)
		}
	}
}

// disc draws a filled circle in image coordinates.
func (f *figure) disc(cx, cy, r int, col color.Color) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				f.set(x, y, col)
			}
		}
	}
}

func fillRect(img *image.RGBA, r image.Rectangle, col color.Color) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, y, col)
		}
	}
}

// tickStep picks a step so roughly n intervals cover [lo, hi], rounded
// to 1, 2 or 5 times a power of ten.
func tickStep(lo, hi float64, n int) float64 {
	if n < 2 {
		n = 2
	}
	raw := (hi - lo) / float64(n)
	if raw <= 0 {
		return 1
	}
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	switch frac := raw / mag; {
	case frac < 1.5:
		return mag
	case frac < 3.5:
		return 2 * mag
	case frac < 7.5:
		return 5 * mag
	default:
		return 10 * mag
	}
}

// tickValues lists the multiples of step inside [lo, hi].
func tickValues(lo, hi, step float64) []float64 {
	var out []float64
	for v := math.Ceil(lo/step) * step; v <= hi+step*1e-9; v += step {
		// Snap values like 0.30000000000000004 back onto the grid.
		out = append(out, math.Round(v/step)*step)
	}
	return out
}

// tickLabel formats a tick value with just enough decimals for the step.
func tickLabel(v, step float64) string {
	prec := 0
	for s := step; s < 0.9999 && prec < 6; s *= 10 {
		prec++
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// WritePNG writes a rendered figure to a file.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
