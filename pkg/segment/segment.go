// Package segment defines the triangular footprint tile (spec.md §3, §4.2):
// three vertices on the unit sphere, a computed center and bounding radius,
// and the segmenter that walks an observation's pixel grid to produce them.
package segment

import (
	"fmt"

	"github.com/JPLMLIA/pdsc-go/pkg/geo"
)

// Segment is a spherical triangle approximating part of one observation's
// footprint. Vertices are listed counter-clockwise viewed from outside the
// sphere, so geo.Triangle's inward-normal tests apply directly.
type Segment struct {
	SegmentID     int64
	ObservationID string
	Vertices      geo.Triangle
	Center        geo.Vec3
	RadiusRad     float64 // max central angle from Center to any vertex
}

// New builds a Segment from three (lat, lon) vertex pairs, computing and
// caching center and radius. Vertices given clockwise (as seen from outside
// the sphere) are reordered to counter-clockwise. If the vertices form a
// degenerate triangle (per geo.IsDegenerateTriangle), or the center lies
// inside neither vertex ordering, ok is false and the caller must skip this
// segment (the segmenter counts such segments as skipped rather than
// failing).
func New(segmentID int64, observationID string, v1, v2, v3 [2]float64) (seg Segment, ok bool) {
	tri := geo.Triangle{
		geo.LatLonToUnit(v1[0], v1[1]),
		geo.LatLonToUnit(v2[0], v2[1]),
		geo.LatLonToUnit(v3[0], v3[1]),
	}
	return fromTriangle(segmentID, observationID, tri)
}

// NewFromVectors is the unit-vector equivalent of New, used by the
// segmenter, which already works in unit-vector space.
func NewFromVectors(segmentID int64, observationID string, tri geo.Triangle) (seg Segment, ok bool) {
	return fromTriangle(segmentID, observationID, tri)
}

func fromTriangle(segmentID int64, observationID string, tri geo.Triangle) (Segment, bool) {
	if geo.IsDegenerateTriangle(tri) {
		return Segment{}, false
	}

	center := tri[0].Add(tri[1]).Add(tri[2]).Unit()

	// Counter-clockwise (viewed from outside) means the signed volume
	// v0 . (v1 x v2) is positive, equivalently the center lies on the
	// positive side of every inward edge normal.
	if !geo.PointInSphericalTriangle(center, tri) {
		tri = geo.Triangle{tri[0], tri[2], tri[1]}
		if !geo.PointInSphericalTriangle(center, tri) {
			return Segment{}, false
		}
	}

	radius := 0.0
	for _, v := range tri {
		if a := geo.CentralAngle(center, v); a > radius {
			radius = a
		}
	}
	if radius <= 0 {
		return Segment{}, false
	}

	return Segment{
		SegmentID:     segmentID,
		ObservationID: observationID,
		Vertices:      tri,
		Center:        center,
		RadiusRad:     radius,
	}, true
}

func (s Segment) String() string {
	return fmt.Sprintf("segment{id=%d obs=%s radius_rad=%.3e}", s.SegmentID, s.ObservationID, s.RadiusRad)
}
