package geo

import "math"

// TrianglesIntersect2D reports whether two triangles in the plane overlap
// (including touching), via the separating-axis theorem: two convex
// polygons are disjoint iff some edge normal of either one separates them.
// For triangles that is six candidate axes total.
func TrianglesIntersect2D(a, b [3]Point2D) bool {
	for _, axis := range edgeNormals(a) {
		if separatedOnAxis(axis, a, b) {
			return false
		}
	}
	for _, axis := range edgeNormals(b) {
		if separatedOnAxis(axis, a, b) {
			return false
		}
	}
	return true
}

func edgeNormals(t [3]Point2D) [3]Point2D {
	var n [3]Point2D
	for i := 0; i < 3; i++ {
		p0 := t[i]
		p1 := t[(i+1)%3]
		edge := Point2D{X: p1.X - p0.X, Y: p1.Y - p0.Y}
		n[i] = Point2D{X: -edge.Y, Y: edge.X}
	}
	return n
}

func separatedOnAxis(axis Point2D, a, b [3]Point2D) bool {
	if axis.X == 0 && axis.Y == 0 {
		return false
	}
	aMin, aMax := projectOnAxis(axis, a)
	bMin, bMax := projectOnAxis(axis, b)
	return aMax < bMin || bMax < aMin
}

func projectOnAxis(axis Point2D, t [3]Point2D) (min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, p := range t {
		d := p.X*axis.X + p.Y*axis.Y
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return min, max
}
