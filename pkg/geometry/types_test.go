package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAzimuthalProject(t *testing.T) {
	const r = 0.095

	// Vertex maps to the origin.
	cz := AzimuthalProject(Point3D{Z: r})
	assert.InDelta(t, 0, cz.X, 1e-9)
	assert.InDelta(t, 0, cz.Y, 1e-9)

	// Right ear (+x) maps straight right at a quarter turn.
	t8 := AzimuthalProject(Point3D{X: r})
	assert.InDelta(t, math.Pi/2, t8.X, 1e-9)
	assert.InDelta(t, 0, t8.Y, 1e-9)

	// Nasion direction (+y) maps straight up.
	front := AzimuthalProject(Point3D{Y: r})
	assert.InDelta(t, 0, front.X, 1e-9)
	assert.InDelta(t, math.Pi/2, front.Y, 1e-9)

	// Projection depends on direction only, not on the radius.
	a := AzimuthalProject(Point3D{X: 1, Y: 2, Z: 3})
	b := AzimuthalProject(Point3D{X: 2, Y: 4, Z: 6})
	assert.InDelta(t, a.X, b.X, 1e-9)
	assert.InDelta(t, a.Y, b.Y, 1e-9)
}

func TestAffineComposeMapsDataToPixels(t *testing.T) {
	// The composition the figures build: shift the data window to the
	// origin, scale with y flipped, then move into the plot area. Data
	// x in [5, 15] and y in [-1, 1] land on a 200x160 area at (40, 20).
	tr := Translation(40, 180).
		Compose(Scale(20, -80)).
		Compose(Translation(-5, 1))

	bl := tr.Apply(Point2D{X: 5, Y: -1})
	assert.InDelta(t, 40, bl.X, 1e-9)
	assert.InDelta(t, 180, bl.Y, 1e-9)

	topRight := tr.Apply(Point2D{X: 15, Y: 1})
	assert.InDelta(t, 240, topRight.X, 1e-9)
	assert.InDelta(t, 20, topRight.Y, 1e-9)

	center := tr.Apply(Point2D{X: 10, Y: 0})
	assert.InDelta(t, 140, center.X, 1e-9)
	assert.InDelta(t, 100, center.Y, 1e-9)
}

func TestBoundingBox(t *testing.T) {
	pts := []Point2D{{X: -1, Y: 2}, {X: 3, Y: -4}, {X: 0, Y: 0}}
	assert.Equal(t, Rect{X: -1, Y: -4, Width: 4, Height: 6}, BoundingBox(pts))
	assert.Equal(t, Rect{}, BoundingBox(nil))
}

func TestConvexHullAndContainment(t *testing.T) {
	pts := []Point2D{
		{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4},
		{X: 2, Y: 2}, // interior point drops out
	}
	hull := ConvexHull(pts)
	assert.Equal(t, []Point2D{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4}}, hull)
	assert.True(t, PointInPolygon(Point2D{X: 1, Y: 1}, hull))
	assert.False(t, PointInPolygon(Point2D{X: 5, Y: 2}, hull))

	// The input slice is left untouched.
	assert.Equal(t, Point2D{X: 0, Y: 0}, pts[0])

	// Collinear points yield no usable hull.
	line := ConvexHull([]Point2D{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}})
	assert.Less(t, len(line), 3)
}
