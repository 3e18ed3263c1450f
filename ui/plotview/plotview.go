// Package plotview provides a widget that displays rendered raster figures.
package plotview

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
)

// View shows one rendered figure, scaled to fit while keeping aspect.
type View struct {
	img *canvas.Image
}

// New creates a view with the given minimum size.
func New(minW, minH float32) *View {
	ci := canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	ci.FillMode = canvas.ImageFillContain
	ci.ScaleMode = canvas.ImageScaleFastest
	ci.SetMinSize(fyne.NewSize(minW, minH))
	return &View{img: ci}
}

// SetImage swaps the displayed figure.
func (v *View) SetImage(img image.Image) {
	v.img.Image = img
	v.img.Refresh()
}

// Clear blanks the view.
func (v *View) Clear() {
	v.SetImage(image.NewRGBA(image.Rect(0, 0, 1, 1)))
}

// Object returns the canvas object to place in a layout.
func (v *View) Object() fyne.CanvasObject {
	return v.img
}
