// Package balltree implements the per-instrument geodesic ball tree
// (spec.md §4.6): the authoritative, static metric index over segment
// centers under great-circle distance. Unlike a planar R-tree (pkg/segstore
// carries one as a non-authoritative diagnostic), distances here are always
// computed on unit vectors, so a footprint straddling the antimeridian or
// covering a pole produces identical answers to one that doesn't.
package balltree

import (
	"github.com/JPLMLIA/pdsc-go/pkg/geo"
)

// Point is one segment center fed into Build.
type Point struct {
	SegmentID int64
	Center    geo.Vec3
}

// Node is one ball-tree node: a center, and a radius (central angle, in
// radians) bounding every descendant center's distance from it.
type Node struct {
	Center     geo.Vec3
	RadiusRad  float64
	IsLeaf     bool
	SegmentIDs []int64 // populated only for leaves
	Left       *Node
	Right      *Node
}

// Tree is a built, immutable ball tree plus the instrument-wide statistics
// the query engine needs to widen its search radius (spec.md §4.6, §4.7).
type Tree struct {
	Root         *Node
	N            uint64
	RMaxRad      float64 // max segment radius (central angle) observed across the instrument
	BodyRadiusM  float64
	LeafCapacity uint32
}

// Build constructs a ball tree over points. rMaxRad is the maximum segment
// radius (in the same central-angle units as the tree's own node radii)
// observed across every segment fed to segmentation, not just the centers
// here; it must be supplied by the caller because Build only ever sees
// centers, never segment extents.
func Build(points []Point, leafCapacity int, rMaxRad, bodyRadiusM float64) *Tree {
	if leafCapacity < 1 {
		leafCapacity = 1
	}
	return &Tree{
		Root:         buildNode(points, leafCapacity),
		N:            uint64(len(points)),
		RMaxRad:      rMaxRad,
		BodyRadiusM:  bodyRadiusM,
		LeafCapacity: uint32(leafCapacity),
	}
}

func buildNode(points []Point, leafCapacity int) *Node {
	center := meanCenter(points)
	radius := maxRadius(center, points)

	if len(points) <= leafCapacity {
		ids := make([]int64, len(points))
		for i, p := range points {
			ids[i] = p.SegmentID
		}
		return &Node{Center: center, RadiusRad: radius, IsLeaf: true, SegmentIDs: ids}
	}

	ai, bi := farthestPair(points)
	anchorA, anchorB := points[ai], points[bi]

	var left, right []Point
	for i, p := range points {
		if i == ai || i == bi {
			continue
		}
		if geo.CentralAngle(p.Center, anchorA.Center) <= geo.CentralAngle(p.Center, anchorB.Center) {
			left = append(left, p)
		} else {
			right = append(right, p)
		}
	}
	left = append(left, anchorA)
	right = append(right, anchorB)

	return &Node{
		Center:    center,
		RadiusRad: radius,
		IsLeaf:    false,
		Left:      buildNode(left, leafCapacity),
		Right:     buildNode(right, leafCapacity),
	}
}

func meanCenter(points []Point) geo.Vec3 {
	var sum geo.Vec3
	for _, p := range points {
		sum = sum.Add(p.Center)
	}
	return sum.Unit()
}

func maxRadius(center geo.Vec3, points []Point) float64 {
	var r float64
	for _, p := range points {
		if a := geo.CentralAngle(center, p.Center); a > r {
			r = a
		}
	}
	return r
}

// farthestPair returns the indices of the two points with the maximum
// pairwise geodesic distance, brute force: acceptable since it runs once,
// on a shrinking subset, during a build that happens only at ingest time.
func farthestPair(points []Point) (i, j int) {
	best := -1.0
	for a := 0; a < len(points); a++ {
		for b := a + 1; b < len(points); b++ {
			if d := geo.CentralAngle(points[a].Center, points[b].Center); d > best {
				best, i, j = d, a, b
			}
		}
	}
	return i, j
}

// RadiusSearch returns every segment id whose center is within rhoRad
// (central angle, radians) of target. The descent rule visits a child iff
// geodesic(target, child.center) <= rhoRad + child.radius, so the returned
// set is a superset of the segments that actually satisfy the exact
// geometric test (spec.md §4.6's filter phase).
func (t *Tree) RadiusSearch(target geo.Vec3, rhoRad float64) []int64 {
	var out []int64
	radiusSearchNode(t.Root, target, rhoRad, &out)
	return out
}

func radiusSearchNode(n *Node, target geo.Vec3, rhoRad float64, out *[]int64) {
	if n == nil {
		return
	}
	if geo.CentralAngle(target, n.Center) > rhoRad+n.RadiusRad {
		return
	}
	if n.IsLeaf {
		*out = append(*out, n.SegmentIDs...)
		return
	}
	radiusSearchNode(n.Left, target, rhoRad, out)
	radiusSearchNode(n.Right, target, rhoRad, out)
}
