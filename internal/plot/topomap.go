package plot

import (
	"image"
	"image/color"
	"math"

	"neuroflow/internal/eeg"
	"neuroflow/pkg/colorutil"
	"neuroflow/pkg/geometry"
)

// Topomap renders a top-down head view of per-channel weights. Where at
// least three electrodes carry positions, the weights are interpolated
// into a continuous field over their convex hull through the diverging
// map; each electrode keeps its colored disc and label on top. Channels
// that carry no position fall back to a plain grid so the figure never
// comes up empty.
func Topomap(w, h int, title string, channels []eeg.Channel, weights []float64) *image.RGBA {
	if w < 180 {
		w = 180
	}
	if h < 180 {
		h = 180
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fillRect(img, img.Bounds(), colorutil.White)
	drawTextCentered(img, title, w/2, 10, colorutil.Black, 2)

	var maxAbs float64
	for _, v := range weights {
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}

	positioned := 0
	for _, ch := range channels {
		if ch.Position != nil {
			positioned++
		}
	}
	if positioned == 0 {
		topoGrid(img, channels, weights, maxAbs)
		return img
	}

	cx, cy := w/2, (h+24)/2
	headR := min(w, h-28)/2 - 20
	// The head outline is the equator of the head sphere, inclination
	// pi/2 in the projection.
	scale := float64(headR) / (math.Pi / 2)

	var pts []geometry.Point2D
	var vals []float64
	for i, ch := range channels {
		if ch.Position == nil {
			continue
		}
		p := geometry.AzimuthalProject(*ch.Position)
		pts = append(pts, geometry.Point2D{
			X: float64(cx) + p.X*scale,
			Y: float64(cy) - p.Y*scale,
		})
		v := 0.0
		if i < len(weights) {
			v = weights[i]
		}
		vals = append(vals, v)
	}
	if maxAbs > 0 {
		fillField(img, cx, cy, headR, pts, vals, maxAbs)
	}

	drawRing(img, cx, cy, headR, 2, colorutil.Black)
	// Nose tick at the top.
	drawSeg(img, cx-headR/8, cy-headR+2, cx, cy-headR-headR/9, colorutil.Black, img.Bounds())
	drawSeg(img, cx+headR/8, cy-headR+2, cx, cy-headR-headR/9, colorutil.Black, img.Bounds())

	for i, ch := range channels {
		if ch.Position == nil {
			continue
		}
		p := geometry.AzimuthalProject(*ch.Position)
		px := cx + int(math.Round(p.X*scale))
		py := cy - int(math.Round(p.Y*scale))
		drawSpot(img, px, py, spotColor(weights, i, maxAbs))
		drawTextCentered(img, ch.Name, px, py+14, colorutil.Black, 1)
	}
	return img
}

// fillField paints the interpolated weight field over the region where
// interpolation has support: the convex hull of the electrodes, clipped
// to the head outline. Values are inverse-distance weighted, so the
// field passes through every electrode's own weight.
func fillField(img *image.RGBA, cx, cy, headR int, pts []geometry.Point2D, vals []float64, maxAbs float64) {
	hull := geometry.ConvexHull(pts)
	if len(hull) < 3 {
		return
	}
	box := geometry.BoundingBox(hull)
	b := img.Bounds()
	rim := float64((headR - 2) * (headR - 2))
	for y := int(math.Floor(box.Y)); y <= int(math.Ceil(box.Y+box.Height)); y++ {
		for x := int(math.Floor(box.X)); x <= int(math.Ceil(box.X+box.Width)); x++ {
			if x < b.Min.X || x >= b.Max.X || y < b.Min.Y || y >= b.Max.Y {
				continue
			}
			dx, dy := float64(x-cx), float64(y-cy)
			if dx*dx+dy*dy > rim {
				continue
			}
			p := geometry.Point2D{X: float64(x), Y: float64(y)}
			if !geometry.PointInPolygon(p, hull) {
				continue
			}
			img.Set(x, y, colorutil.Diverging(idw(p, pts, vals)/maxAbs))
		}
	}
}

// idw is inverse-squared-distance interpolation over the electrodes.
func idw(p geometry.Point2D, pts []geometry.Point2D, vals []float64) float64 {
	var num, den float64
	for i, q := range pts {
		dx, dy := p.X-q.X, p.Y-q.Y
		d2 := dx*dx + dy*dy
		if d2 < 1 {
			return vals[i]
		}
		w := 1 / d2
		num += w * vals[i]
		den += w
	}
	return num / den
}

// topoGrid lays the channels out in rows when no positions are known.
func topoGrid(img *image.RGBA, channels []eeg.Channel, weights []float64, maxAbs float64) {
	n := len(channels)
	if n == 0 {
		return
	}
	b := img.Bounds()
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := (n + cols - 1) / cols
	cellW := b.Dx() / cols
	cellH := (b.Dy() - 24) / rows
	for i, ch := range channels {
		px := (i%cols)*cellW + cellW/2
		py := 24 + (i/cols)*cellH + cellH/2
		drawSpot(img, px, py, spotColor(weights, i, maxAbs))
		drawTextCentered(img, ch.Name, px, py+14, colorutil.Black, 1)
	}
}

func spotColor(weights []float64, i int, maxAbs float64) color.RGBA {
	if i >= len(weights) {
		return colorutil.Blue
	}
	if maxAbs == 0 {
		return colorutil.Diverging(0)
	}
	return colorutil.Diverging(weights[i] / maxAbs)
}

// drawSpot draws a filled disc with a thin dark rim.
func drawSpot(img *image.RGBA, cx, cy int, col color.Color) {
	const r = 8
	b := img.Bounds()
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			if x < b.Min.X || x >= b.Max.X || y < b.Min.Y || y >= b.Max.Y {
				continue
			}
			dx, dy := x-cx, y-cy
			d2 := dx*dx + dy*dy
			if d2 <= r*r {
				if d2 >= (r-1)*(r-1) {
					img.Set(x, y, colorutil.Gray)
				} else {
					img.Set(x, y, col)
				}
			}
		}
	}
}

// drawRing draws a circle outline of the given thickness.
func drawRing(img *image.RGBA, cx, cy, r, thickness int, col color.Color) {
	b := img.Bounds()
	outer2 := r * r
	inner2 := (r - thickness) * (r - thickness)
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			if x < b.Min.X || x >= b.Max.X || y < b.Min.Y || y >= b.Max.Y {
				continue
			}
			dx, dy := x-cx, y-cy
			d2 := dx*dx + dy*dy
			if d2 <= outer2 && d2 >= inner2 {
				img.Set(x, y, col)
			}
		}
	}
}
