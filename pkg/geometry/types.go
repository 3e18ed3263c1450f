// Package geometry provides the 2D primitives behind the raster
// figures, plus the spherical head projection used for sensor layouts.
package geometry

import "math"

// Point2D is a point in figure or head-projection coordinates.
type Point2D struct {
	X float64
	Y float64
}

// Point3D is an electrode position on the head sphere. Axes follow the
// head coordinate convention: x toward the right ear, y toward the
// nasion, z toward the vertex.
type Point3D struct {
	X float64
	Y float64
	Z float64
}

// Norm returns the distance from the origin.
func (p Point3D) Norm() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// AzimuthalProject maps a 3D head position onto the 2D top-down view
// used for sensor layouts: the radial coordinate is the inclination from
// the vertex in radians, the nasion points up (+Y) and the right ear
// right (+X). The vertex maps to the origin.
func AzimuthalProject(p Point3D) Point2D {
	r := p.Norm()
	if r == 0 {
		return Point2D{}
	}
	incl := math.Acos(p.Z / r)
	az := math.Atan2(p.Y, p.X)
	return Point2D{X: incl * math.Cos(az), Y: incl * math.Sin(az)}
}

// Rect is an axis-aligned rectangle anchored at its minimum corner.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// AffineTransform is a 2x3 affine transformation matrix.
//
//	[a b tx]
//	[c d ty]
type AffineTransform struct {
	A, B, TX float64
	C, D, TY float64
}

// Translation returns a translation transform.
func Translation(tx, ty float64) AffineTransform {
	return AffineTransform{A: 1, D: 1, TX: tx, TY: ty}
}

// Scale returns a scaling transform. Negative factors flip an axis,
// which is how data y-up becomes pixel y-down.
func Scale(sx, sy float64) AffineTransform {
	return AffineTransform{A: sx, D: sy}
}

// Apply applies the transform to a point.
func (t AffineTransform) Apply(p Point2D) Point2D {
	return Point2D{
		X: t.A*p.X + t.B*p.Y + t.TX,
		Y: t.C*p.X + t.D*p.Y + t.TY,
	}
}

// Compose returns this transform composed with another, so that the
// result applies other first.
func (t AffineTransform) Compose(other AffineTransform) AffineTransform {
	return AffineTransform{
		A:  t.A*other.A + t.B*other.C,
		B:  t.A*other.B + t.B*other.D,
		TX: t.A*other.TX + t.B*other.TY + t.TX,
		C:  t.C*other.A + t.D*other.C,
		D:  t.C*other.B + t.D*other.D,
		TY: t.C*other.TX + t.D*other.TY + t.TY,
	}
}

// BoundingBox computes the axis-aligned bounding box of a set of points.
func BoundingBox(points []Point2D) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
