package plot

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuroflow/internal/eeg"
	"neuroflow/pkg/colorutil"
	"neuroflow/pkg/geometry"
)

func TestTickStepPicksRoundNumbers(t *testing.T) {
	assert.InDelta(t, 2.0, tickStep(0, 10, 6), 1e-12)
	assert.InDelta(t, 0.2, tickStep(0, 1, 5), 1e-12)
	assert.InDelta(t, 20.0, tickStep(0, 100, 6), 1e-12)
	assert.InDelta(t, 0.5, tickStep(-1, 1, 5), 1e-12)
}

func TestTickValuesSnapToGrid(t *testing.T) {
	vals := tickValues(0, 1, 0.2)
	require.Len(t, vals, 6)
	for i, want := range []float64{0, 0.2, 0.4, 0.6, 0.8, 1.0} {
		assert.InDelta(t, want, vals[i], 1e-12)
	}
	assert.Equal(t, "0.2", tickLabel(vals[1], 0.2))
	assert.Equal(t, "60", tickLabel(60, 20))
}

func countColor(img *image.RGBA, want color.RGBA) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) == want {
				n++
			}
		}
	}
	return n
}

func TestLinesDrawsSeries(t *testing.T) {
	xs := make([]float64, 101)
	ys := make([]float64, 101)
	for i := range xs {
		xs[i] = float64(i) / 10
		ys[i] = 5
	}
	img := Lines(LineConfig{Width: 320, Height: 200, Title: "T"}, Series{Name: "CZ", X: xs, Y: ys})

	require.Equal(t, 320, img.Bounds().Dx())
	require.Equal(t, 200, img.Bounds().Dy())
	assert.Equal(t, colorutil.White, img.RGBAAt(2, 2))
	// A flat line across the full x range leaves a long row of series-colored pixels.
	assert.Greater(t, countColor(img, colorutil.Series(0)), 100)
}

func TestLinesEmptyInput(t *testing.T) {
	img := Lines(LineConfig{Width: 200, Height: 150})
	require.NotNil(t, img)
	assert.Equal(t, colorutil.White, img.RGBAAt(3, 3))
}

func TestSpectrumNilPSD(t *testing.T) {
	img := Spectrum(300, 200, nil, nil)
	require.NotNil(t, img)
	assert.Equal(t, 300, img.Bounds().Dx())
}

func TestEvokedRendersChannels(t *testing.T) {
	ev := &eeg.Evoked{
		Event:     "Stimulus/S  1",
		NAveraged: 10,
		Channels:  []eeg.Channel{{Name: "Cz"}, {Name: "Pz"}},
		Times:     []float64{-0.1, 0, 0.1, 0.2},
		Data:      [][]float64{{0, 1, 2, 1}, {0, -1, -2, -1}},
	}
	img := Evoked(320, 220, ev)
	require.NotNil(t, img)
	assert.Greater(t, countColor(img, colorutil.Series(0)), 10)
	assert.Greater(t, countColor(img, colorutil.Series(1)), 10)
}

func TestHeatmapUniformGrid(t *testing.T) {
	img := Heatmap(HeatConfig{Width: 300, Height: 220, XMin: 0, XMax: 1, YMin: 0, YMax: 1},
		[][]float64{{3}})
	require.NotNil(t, img)

	// A flat grid lands in the middle of the colormap everywhere.
	want := colorutil.Viridis(0.5)
	center := img.RGBAAt(150, 110)
	assert.InDelta(t, float64(want.R), float64(center.R), 2)
	assert.InDelta(t, float64(want.G), float64(center.G), 2)
	assert.InDelta(t, float64(want.B), float64(center.B), 2)
}

func TestHeatmapRowZeroAtBottom(t *testing.T) {
	// One column, low value in row 0, high in row 1.
	img := Heatmap(HeatConfig{Width: 300, Height: 240, XMin: 0, XMax: 1, YMin: 1, YMax: 30},
		[][]float64{{0}, {1}})

	area := image.Rect(marginLeft, marginTop, 300-marginRight-colorBarWidth, 240-marginBottom)
	cx := (area.Min.X + area.Max.X) / 2
	top := img.RGBAAt(cx, area.Min.Y+2)
	bottom := img.RGBAAt(cx, area.Max.Y-3)

	// Row 1 (high, yellow) renders above row 0 (low, dark purple).
	assert.Greater(t, int(top.R), 200)
	assert.Less(t, int(bottom.R), 110)
	assert.Greater(t, int(bottom.B), int(bottom.G))
}

func TestBaselinePercent(t *testing.T) {
	times := []float64{-0.2, -0.1, 0, 0.1}
	grid := [][]float64{{2, 2, 3, 4}}

	out := BaselinePercent(grid, times)
	require.Len(t, out, 1)
	assert.InDeltaSlice(t, []float64{0, 0, 50, 100}, out[0], 1e-9)
	// The input grid is left untouched.
	assert.Equal(t, []float64{2, 2, 3, 4}, grid[0])

	// Without a pre-stimulus stretch the grid passes through raw.
	raw := [][]float64{{1, 2}}
	assert.Equal(t, raw, BaselinePercent(raw, []float64{0, 0.1}))
}

func TestMatrixDiagonalAndCells(t *testing.T) {
	img := Matrix(320, 260, "CONNECTIVITY", []string{"CZ", "PZ"},
		[][]float64{{0, 1}, {1, 0}})

	area := image.Rect(marginLeft, marginTop, 320-marginRight-colorBarWidth, 260-marginBottom)
	qx := area.Dx() / 4
	qy := area.Dy() / 4

	diag := img.RGBAAt(area.Min.X+qx, area.Min.Y+qy)
	assert.Equal(t, colorutil.LightGray, diag)

	offDiag := img.RGBAAt(area.Min.X+3*qx, area.Min.Y+qy)
	want := colorutil.Viridis(1)
	assert.InDelta(t, float64(want.R), float64(offDiag.R), 2)
	assert.InDelta(t, float64(want.G), float64(offDiag.G), 2)
}

func TestTopomapPlacesElectrodes(t *testing.T) {
	channels := []eeg.Channel{
		{Name: "Cz", Position: &geometry.Point3D{X: 0, Y: 0, Z: 1}},
		{Name: "T8", Position: &geometry.Point3D{X: 1, Y: 0, Z: 0}},
	}
	img := Topomap(300, 300, "IC 0", channels, []float64{0, 1})

	cx, cy := 150, (300+24)/2
	headR := min(300, 300-28)/2 - 20

	// The vertex electrode sits at the head center with a neutral color,
	// the ear electrode on the rim fully saturated.
	assert.Equal(t, colorutil.Diverging(0), img.RGBAAt(cx, cy))
	assert.Equal(t, colorutil.Diverging(1), img.RGBAAt(cx+headR, cy))
}

func TestTopomapInterpolatesInsideHull(t *testing.T) {
	channels := []eeg.Channel{
		{Name: "Cz", Position: &geometry.Point3D{X: 0, Y: 0, Z: 1}},
		{Name: "Fpz", Position: &geometry.Point3D{X: 0, Y: 1, Z: 0}},
		{Name: "T8", Position: &geometry.Point3D{X: 1, Y: 0, Z: 0}},
	}
	img := Topomap(300, 300, "IC 1", channels, []float64{0, 1, -1})

	cx, cy := 150, (300+24)/2
	headR := min(300, 300-28)/2 - 20

	// Between the electrodes the field is filled in.
	assert.NotEqual(t, colorutil.White, img.RGBAAt(cx+headR/3, cy-headR/3))
	// Outside their hull the head stays blank.
	assert.Equal(t, colorutil.White, img.RGBAAt(cx-headR/2, cy-headR/2))
}

func TestTopomapGridFallback(t *testing.T) {
	channels := []eeg.Channel{{Name: "A1"}, {Name: "A2"}, {Name: "A3"}}
	img := Topomap(240, 240, "SENSORS", channels, nil)
	require.NotNil(t, img)
	// Unpositioned channels still get their blue discs.
	assert.Greater(t, countColor(img, colorutil.Blue), 3*100)
}

func TestWritePNG(t *testing.T) {
	img := Lines(LineConfig{Width: 160, Height: 120})
	path := filepath.Join(t.TempDir(), "fig.png")
	require.NoError(t, WritePNG(path, img))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 160, decoded.Bounds().Dx())
	assert.Equal(t, 120, decoded.Bounds().Dy())
}
