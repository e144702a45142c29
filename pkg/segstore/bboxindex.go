package segstore

import (
	"github.com/dhconnelly/rtreego"

	"github.com/JPLMLIA/pdsc-go/pkg/geo"
	"github.com/JPLMLIA/pdsc-go/pkg/segment"
)

// BBoxIndex is a planar R-tree over each segment's lat/lon bounding box.
// It is diagnostic only: spec.md §9 requires the authoritative index to be
// the geodesic ball tree (pkg/balltree), because an R-tree over raw
// lat/lon is antimeridian-unsafe (a footprint straddling longitude 0/360
// gets a bounding box spanning the whole map). BBoxIndex exists to cross-
// check the ball tree's candidate sets during development, never to answer
// a query on its own.
type BBoxIndex struct {
	rtree   *rtreego.Rtree
	entries map[int64]segment.Segment
}

type bboxEntry struct {
	segmentID int64
	bounds    rtreego.Rect
}

func (e bboxEntry) Bounds() rtreego.Rect { return e.bounds }

// BuildBBoxIndex indexes segs by their lat/lon bounding box, with longitudes
// in geo.UnitToLatLon's [0, 360) range. Segments whose vertices straddle
// longitude 0/360 get a bounding box spanning nearly the full longitude
// range rather than the narrow true extent — acceptable for a
// diagnostic index, unacceptable for the authoritative one.
func BuildBBoxIndex(segs []segment.Segment) *BBoxIndex {
	rtree := rtreego.NewTree(2, 25, 50)
	entries := make(map[int64]segment.Segment, len(segs))

	for _, seg := range segs {
		minLat, minLon := 90.0, 360.0
		maxLat, maxLon := -90.0, 0.0
		for _, v := range seg.Vertices {
			lat, lon := geo.UnitToLatLon(v)
			minLat, maxLat = min(minLat, lat), max(maxLat, lat)
			minLon, maxLon = min(minLon, lon), max(maxLon, lon)
		}
		// rtreego.Rect requires strictly positive side lengths.
		const eps = 1e-9
		lengths := []float64{max(maxLon-minLon, eps), max(maxLat-minLat, eps)}
		rect, err := rtreego.NewRect(rtreego.Point{minLon, minLat}, lengths)
		if err != nil {
			continue
		}
		rtree.Insert(bboxEntry{segmentID: seg.SegmentID, bounds: rect})
		entries[seg.SegmentID] = seg
	}

	return &BBoxIndex{rtree: rtree, entries: entries}
}

// Query returns the segment ids whose bounding box intersects the given
// lat/lon rectangle. Diagnostic candidate set only, not a superset
// guarantee usable by the query engine.
func (b *BBoxIndex) Query(minLat, minLon, maxLat, maxLon float64) []int64 {
	lengths := []float64{maxLon - minLon, maxLat - minLat}
	rect, err := rtreego.NewRect(rtreego.Point{minLon, minLat}, lengths)
	if err != nil {
		return nil
	}
	hits := b.rtree.SearchIntersect(rect)
	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.(bboxEntry).segmentID)
	}
	return ids
}

// Segment returns the full segment for a previously indexed id.
func (b *BBoxIndex) Segment(segmentID int64) (segment.Segment, bool) {
	seg, ok := b.entries[segmentID]
	return seg, ok
}
