// Package query implements the three public query families over a single
// instrument's index (spec.md §4.7): point, epsilon-point, and overlap.
// Each follows the filter-then-verify shape — a ball-tree radius search
// produces a superset of candidate segments, then an exact spherical
// geometry test narrows it to a deduplicated list of observation ids.
package query

import (
	"context"

	"github.com/JPLMLIA/pdsc-go/pkg/balltree"
	"github.com/JPLMLIA/pdsc-go/pkg/geo"
	"github.com/JPLMLIA/pdsc-go/pkg/pdscerr"
	"github.com/JPLMLIA/pdsc-go/pkg/segstore"
)

// Index bundles one instrument's read-only segment store and ball tree —
// everything the query engine needs that isn't the metadata store (callers
// compose metadata lookups themselves, per spec.md §3's "query engine
// composes with" the metadata store rather than owning it).
type Index struct {
	Instrument  string
	Segs        *segstore.Store
	Tree        *balltree.Tree
	BodyRadiusM float64
}

func checkCancelled(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return &pdscerr.Cancelled{Op: op}
	default:
		return nil
	}
}

// PointQuery returns every observation id whose footprint contains target
// (epsilonMeters == 0) or lies within epsilonMeters of it, in ball-tree
// discovery order (documented but not semantically significant, per
// spec.md §4.7).
func PointQuery(ctx context.Context, idx *Index, lat, lon, epsilonMeters float64) ([]string, error) {
	if lat < -90 || lat > 90 {
		return nil, &pdscerr.BadQuery{Op: "query.PointQuery", Reason: "latitude out of range"}
	}
	if epsilonMeters < 0 {
		return nil, &pdscerr.BadQuery{Op: "query.PointQuery", Reason: "epsilon must be non-negative"}
	}
	if err := checkCancelled(ctx, "query.PointQuery"); err != nil {
		return nil, err
	}

	target := geo.LatLonToUnit(lat, lon)
	rhoRad := idx.Tree.RMaxRad + epsilonMeters/idx.BodyRadiusM
	candidates := idx.Tree.RadiusSearch(target, rhoRad)

	seen := make(map[string]bool)
	var results []string
	for _, segID := range candidates {
		if err := checkCancelled(ctx, "query.PointQuery"); err != nil {
			return nil, err
		}
		seg, err := idx.Segs.SegmentByID(segID)
		if err != nil {
			return nil, err
		}
		if seen[seg.ObservationID] {
			continue
		}

		var hit bool
		if epsilonMeters == 0 {
			hit = geo.PointInSphericalTriangle(target, seg.Vertices)
		} else {
			hit = geo.PointToTriangleDistance(target, seg.Vertices, idx.BodyRadiusM) <= epsilonMeters
		}
		if hit {
			seen[seg.ObservationID] = true
			results = append(results, seg.ObservationID)
		}
	}
	return results, nil
}

// FindObservationsOfLatLon is the epsilon == 0 special case of PointQuery.
func FindObservationsOfLatLon(ctx context.Context, idx *Index, lat, lon float64) ([]string, error) {
	return PointQuery(ctx, idx, lat, lon, 0)
}

// OverlapQuery returns every observation id in idxB whose footprint
// intersects observationID's footprint in idxA.
func OverlapQuery(ctx context.Context, idxA *Index, observationID string, idxB *Index) ([]string, error) {
	if err := checkCancelled(ctx, "query.OverlapQuery"); err != nil {
		return nil, err
	}

	segsA, err := idxA.Segs.SegmentsForObservation(observationID)
	if err != nil {
		return nil, err
	}
	if len(segsA) == 0 {
		return nil, &pdscerr.UnknownObservation{Instrument: idxA.Instrument, ID: observationID, Op: "query.OverlapQuery"}
	}

	seen := make(map[string]bool)
	var results []string
	for _, a := range segsA {
		if err := checkCancelled(ctx, "query.OverlapQuery"); err != nil {
			return nil, err
		}

		rhoRad := a.RadiusRad + idxB.Tree.RMaxRad
		candidates := idxB.Tree.RadiusSearch(a.Center, rhoRad)

		for _, segIDB := range candidates {
			if err := checkCancelled(ctx, "query.OverlapQuery"); err != nil {
				return nil, err
			}
			b, err := idxB.Segs.SegmentByID(segIDB)
			if err != nil {
				return nil, err
			}
			if seen[b.ObservationID] {
				continue
			}

			anchor := geo.Midpoint(a.Center, b.Center)
			pts := geo.ProjectToTangentPlane([]geo.Vec3{
				a.Vertices[0], a.Vertices[1], a.Vertices[2],
				b.Vertices[0], b.Vertices[1], b.Vertices[2],
			}, anchor)
			triA := [3]geo.Point2D{pts[0], pts[1], pts[2]}
			triB := [3]geo.Point2D{pts[3], pts[4], pts[5]}

			if geo.TrianglesIntersect2D(triA, triB) {
				seen[b.ObservationID] = true
				results = append(results, b.ObservationID)
				// b.ObservationID is now confirmed; the seen check above
				// skips it on any later candidate. Keep scanning the rest
				// of this segment's candidates, since a still-unseen B
				// observation may have another segment among them.
				continue
			}
		}
	}
	return results, nil
}
