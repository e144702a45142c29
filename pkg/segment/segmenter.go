package segment

import (
	"math"

	"github.com/JPLMLIA/pdsc-go/pkg/geo"
	"github.com/JPLMLIA/pdsc-go/pkg/localize"
)

// Segmenter turns a localizer plus a pixel-space extent and target ground
// resolution into an ordered collection of triangular segments tiling the
// footprint (spec.md §4.2). Grid step is chosen so adjacent grid vertices
// are approximately ResolutionM apart on the surface; each cell contributes
// two triangles sharing a fixed NW-SE diagonal, so segmentation is
// deterministic for a given localizer and resolution.
type Segmenter struct {
	Localizer   localize.Localizer
	Samples     float64
	Lines       float64
	ResolutionM float64
	BodyRadiusM float64
}

// Generate produces segments for one observation, assigning sequential ids
// starting at firstID. skipped counts triangles rejected as degenerate
// (spec.md §7); the caller decides whether the observation as a whole is
// still viable (at least one valid segment) or must be dropped.
func (s *Segmenter) Generate(observationID string, firstID int64) (segs []Segment, nextID int64, skipped int) {
	rowStep, colStep := s.gridSteps()

	rowEdges := gridEdges(s.Lines, rowStep)
	colEdges := gridEdges(s.Samples, colStep)

	grid := make([][]geo.Vec3, len(rowEdges))
	for i, r := range rowEdges {
		grid[i] = make([]geo.Vec3, len(colEdges))
		for j, c := range colEdges {
			lat, lon := s.Localizer.PixelToLatLon(r, c)
			grid[i][j] = geo.LatLonToUnit(lat, lon)
		}
	}

	id := firstID
	for i := 0; i < len(rowEdges)-1; i++ {
		for j := 0; j < len(colEdges)-1; j++ {
			nw := grid[i][j]
			ne := grid[i][j+1]
			se := grid[i+1][j+1]
			sw := grid[i+1][j]

			if seg, ok := NewFromVectors(id, observationID, geo.Triangle{nw, ne, se}); ok {
				segs = append(segs, seg)
				id++
			} else {
				skipped++
			}
			if seg, ok := NewFromVectors(id, observationID, geo.Triangle{nw, se, sw}); ok {
				segs = append(segs, seg)
				id++
			} else {
				skipped++
			}
		}
	}
	return segs, id, skipped
}

// gridSteps estimates, via a one-pixel finite difference at the image
// center, the ground sample distance in the row and column directions, then
// converts the configured resolution into a pixel step for each axis.
func (s *Segmenter) gridSteps() (rowStep, colStep float64) {
	cr, cc := s.Lines/2, s.Samples/2

	lat0, lon0 := s.Localizer.PixelToLatLon(cr, cc)
	p0 := geo.LatLonToUnit(lat0, lon0)

	lat1, lon1 := s.Localizer.PixelToLatLon(cr+1, cc)
	rowGSD := geo.GeodesicDistance(p0, geo.LatLonToUnit(lat1, lon1), s.BodyRadiusM)

	lat2, lon2 := s.Localizer.PixelToLatLon(cr, cc+1)
	colGSD := geo.GeodesicDistance(p0, geo.LatLonToUnit(lat2, lon2), s.BodyRadiusM)

	rowStep = stepFromGSD(rowGSD, s.ResolutionM)
	colStep = stepFromGSD(colGSD, s.ResolutionM)
	return rowStep, colStep
}

func stepFromGSD(gsd, resolutionM float64) float64 {
	if gsd <= 0 {
		return 1
	}
	step := math.Floor(resolutionM / gsd)
	if step < 1 {
		step = 1
	}
	return step
}

// gridEdges returns the pixel coordinates of grid lines from 0 to extent in
// increments of step, always including a final edge at extent so the last,
// possibly partial, cell covers the remainder of the footprint.
func gridEdges(extent, step float64) []float64 {
	var edges []float64
	for e := 0.0; e < extent; e += step {
		edges = append(edges, e)
	}
	if len(edges) == 0 || edges[len(edges)-1] < extent {
		edges = append(edges, extent)
	}
	return edges
}
