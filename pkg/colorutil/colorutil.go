// Package colorutil provides shared colors and colormaps for figure rendering.
package colorutil

import (
	"image/color"
)

// Common colors used throughout the application.
var (
	Black     = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Gray      = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	LightGray = color.RGBA{R: 220, G: 220, B: 220, A: 255}
	Blue      = color.RGBA{R: 31, G: 119, B: 180, A: 255}
)

// viridisAnchors are evenly spaced samples of the viridis colormap.
var viridisAnchors = [8][3]uint8{
	{68, 1, 84},
	{70, 50, 126},
	{54, 92, 141},
	{39, 127, 142},
	{31, 161, 135},
	{74, 193, 109},
	{159, 218, 58},
	{253, 231, 37},
}

// Viridis maps t in [0,1] onto the viridis colormap. Values outside the
// range clamp to the ends.
func Viridis(t float64) color.RGBA {
	if t <= 0 {
		a := viridisAnchors[0]
		return color.RGBA{R: a[0], G: a[1], B: a[2], A: 255}
	}
	if t >= 1 {
		a := viridisAnchors[len(viridisAnchors)-1]
		return color.RGBA{R: a[0], G: a[1], B: a[2], A: 255}
	}
	pos := t * float64(len(viridisAnchors)-1)
	i := int(pos)
	frac := pos - float64(i)
	lo, hi := viridisAnchors[i], viridisAnchors[i+1]
	return color.RGBA{
		R: lerp8(lo[0], hi[0], frac),
		G: lerp8(lo[1], hi[1], frac),
		B: lerp8(lo[2], hi[2], frac),
		A: 255,
	}
}

// Diverging maps t in [-1,1] onto a blue-white-red map, zero landing on
// neutral gray. Used for signed quantities like component weights.
func Diverging(t float64) color.RGBA {
	if t < -1 {
		t = -1
	}
	if t > 1 {
		t = 1
	}
	neutral := [3]uint8{221, 221, 221}
	if t < 0 {
		blue := [3]uint8{59, 76, 192}
		return color.RGBA{
			R: lerp8(neutral[0], blue[0], -t),
			G: lerp8(neutral[1], blue[1], -t),
			B: lerp8(neutral[2], blue[2], -t),
			A: 255,
		}
	}
	red := [3]uint8{180, 4, 38}
	return color.RGBA{
		R: lerp8(neutral[0], red[0], t),
		G: lerp8(neutral[1], red[1], t),
		B: lerp8(neutral[2], red[2], t),
		A: 255,
	}
}

// seriesPalette cycles through distinguishable line colors.
var seriesPalette = []color.RGBA{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 214, G: 39, B: 40, A: 255},
	{R: 148, G: 103, B: 189, A: 255},
	{R: 140, G: 86, B: 75, A: 255},
	{R: 227, G: 119, B: 194, A: 255},
	{R: 127, G: 127, B: 127, A: 255},
}

// Series returns the line color for the i-th series of a plot.
func Series(i int) color.RGBA {
	if i < 0 {
		i = -i
	}
	return seriesPalette[i%len(seriesPalette)]
}

func lerp8(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}
