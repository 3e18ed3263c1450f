package plot

import (
	"image"

	"neuroflow/pkg/colorutil"
)

// Matrix renders a channel-by-channel connectivity matrix. Values are
// expected in [0, 1]; cells are drawn flat because cell identity, not a
// surface, is the point. The diagonal is left gray.
func Matrix(w, h int, title string, names []string, m [][]float64) *image.RGBA {
	n := len(m)
	f := newFigure(w, h, 0, float64(max(n, 1)), 0, float64(max(n, 1)),
		marginRight+colorBarWidth)
	if n == 0 {
		f.frame()
		f.labels(title, "", "")
		return f.img
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			col := colorutil.Viridis(clamp01(m[i][j]))
			if i == j {
				col = colorutil.LightGray
			}
			// Row 0 at the top, like a printed matrix.
			x1, y1 := f.pixel(float64(j), float64(n-i))
			x2, y2 := f.pixel(float64(j+1), float64(n-i-1))
			for y := y1; y < y2; y++ {
				for x := x1; x < x2; x++ {
					f.set(x, y, col)
				}
			}
		}
	}

	for i := 0; i < n; i++ {
		var name string
		if i < len(names) {
			name = names[i]
		}
		if name == "" {
			continue
		}
		_, cy := f.pixel(0, float64(n-i)-0.5)
		drawText(f.img, name, f.area.Min.X-textWidth(name, 1)-5, cy-2, colorutil.Black, 1)
		cx, _ := f.pixel(float64(i)+0.5, 0)
		drawTextVertical(f.img, name, cx, f.area.Max.Y+4+textWidth(name, 1)/2, colorutil.Black, 1)
	}

	f.frame()
	f.labels(title, "", "")
	drawColorBar(f, 0, 1)
	return f.img
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
