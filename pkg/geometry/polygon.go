package geometry

import "sort"

// ConvexHull returns the convex hull of the points in counter-clockwise
// order, built with Andrew's monotone chain. Collinear boundary points
// are dropped. Degenerate inputs come back with fewer than three points;
// the input slice is never modified.
func ConvexHull(points []Point2D) []Point2D {
	pts := make([]Point2D, len(points))
	copy(pts, points)
	if len(pts) < 3 {
		return pts
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	var lower []Point2D
	for _, p := range pts {
		for len(lower) > 1 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	var upper []Point2D
	for i := len(pts) - 1; i >= 0; i-- {
		p := pts[i]
		for len(upper) > 1 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}
	// The endpoints of each chain are the other chain's start.
	return append(lower[:len(lower)-1], upper[:len(upper)-1]...)
}

// PointInPolygon reports whether p lies inside the polygon, by casting a
// ray toward +x and counting edge crossings. Works for any simple
// polygon regardless of winding.
func PointInPolygon(p Point2D, polygon []Point2D) bool {
	if len(polygon) < 3 {
		return false
	}
	inside := false
	for i, a := range polygon {
		b := polygon[(i+1)%len(polygon)]
		if (a.Y > p.Y) == (b.Y > p.Y) {
			continue
		}
		if p.X < a.X+(b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) {
			inside = !inside
		}
	}
	return inside
}

// cross is the z component of (a-o) x (b-o); positive when the turn
// from o through a to b bends left.
func cross(o, a, b Point2D) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}
