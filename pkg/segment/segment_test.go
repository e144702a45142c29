package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JPLMLIA/pdsc-go/pkg/geo"
	"github.com/JPLMLIA/pdsc-go/pkg/localize"
)

func TestNewRejectsDegenerate(t *testing.T) {
	v := [2]float64{10, 10}
	_, ok := New(1, "obs", v, v, [2]float64{20, 20})
	assert.False(t, ok, "expected degenerate rejection for duplicate vertex")
}

func TestNewComputesCenterAndRadius(t *testing.T) {
	seg, ok := New(1, "obs",
		[2]float64{0, 0}, [2]float64{0, 1}, [2]float64{1, 0.5})
	require.True(t, ok, "expected a valid segment")
	assert.Greater(t, seg.RadiusRad, 0.0)
	assert.True(t, geo.PointInSphericalTriangle(seg.Center, seg.Vertices), "center should lie within its own triangle")
}

// gridLocalizer is a minimal equirectangular-style stand-in used to drive
// the segmenter without depending on localize package internals.
type gridLocalizer struct {
	samples, lines float64
}

func (g *gridLocalizer) PixelToLatLon(row, col float64) (lat, lon float64) {
	lat = 40*(g.lines/2-row)/g.lines
	lon = 40*(col-g.samples/2)/g.samples + 20
	return lat, lon
}

func (g *gridLocalizer) LatLonToPixel(lat, lon float64) (row, col float64) {
	return localize.DefaultInverse(g, g.samples, g.lines, lat, lon)
}

func TestSegmenterCoversFootprint(t *testing.T) {
	loc := &gridLocalizer{samples: 200, lines: 200}
	s := &Segmenter{
		Localizer: loc, Samples: loc.samples, Lines: loc.lines,
		ResolutionM: 5000, BodyRadiusM: 3389500,
	}
	segs, _, skipped := s.Generate("obs1", 1)
	require.NotEmpty(t, segs, "expected at least one segment")
	assert.Zero(t, skipped, "unexpected skipped segments")

	// Coarse coverage check: every sampled pixel's surface point lies
	// inside at least one segment (spec.md §8 property 2).
	for r := 0.0; r <= loc.lines; r += 40 {
		for c := 0.0; c <= loc.samples; c += 40 {
			lat, lon := loc.PixelToLatLon(r, c)
			p := geo.LatLonToUnit(lat, lon)
			found := false
			for _, seg := range segs {
				if geo.PointInSphericalTriangle(p, seg.Vertices) {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("pixel (%v,%v) not covered by any segment", r, c)
			}
		}
	}
}

func TestSegmenterRespectsResolutionBound(t *testing.T) {
	loc := &gridLocalizer{samples: 200, lines: 200}
	resolutionM := 5000.0
	bodyRadiusM := 3389500.0
	s := &Segmenter{
		Localizer: loc, Samples: loc.samples, Lines: loc.lines,
		ResolutionM: resolutionM, BodyRadiusM: bodyRadiusM,
	}
	segs, _, _ := s.Generate("obs1", 1)

	bound := 2 * resolutionM / bodyRadiusM
	for _, seg := range segs {
		if seg.RadiusRad > bound {
			t.Errorf("segment radius %v exceeds approximation bound %v", seg.RadiusRad, bound)
		}
	}
}

func TestSegmenterVerticesCounterClockwise(t *testing.T) {
	loc := &gridLocalizer{samples: 200, lines: 200}
	s := &Segmenter{
		Localizer: loc, Samples: loc.samples, Lines: loc.lines,
		ResolutionM: 5000, BodyRadiusM: 3389500,
	}
	segs, _, _ := s.Generate("obs1", 1)
	for _, seg := range segs {
		for _, n := range seg.Vertices.InwardNormals() {
			if n.Dot(seg.Center) < -1e-9 {
				t.Fatalf("segment %v is not counter-clockwise: normal dot center %v", seg.SegmentID, n.Dot(seg.Center))
			}
		}
	}
}

// polarLocalizer synthesizes a footprint straddling the north pole, the
// fixture required by spec.md §9's open question on polar crossing.
type polarLocalizer struct {
	samples, lines float64
}

func (p *polarLocalizer) PixelToLatLon(row, col float64) (lat, lon float64) {
	lat = 85 + 5*(p.lines-row)/p.lines
	lon = 360 * col / p.samples
	return lat, lon
}

func (p *polarLocalizer) LatLonToPixel(lat, lon float64) (row, col float64) {
	return localize.DefaultInverse(p, p.samples, p.lines, lat, lon)
}

func TestSegmenterHandlesPolarCrossing(t *testing.T) {
	loc := &polarLocalizer{samples: 360, lines: 50}
	s := &Segmenter{
		Localizer: loc, Samples: loc.samples, Lines: loc.lines,
		ResolutionM: 20000, BodyRadiusM: 3389500,
	}
	segs, _, _ := s.Generate("polar-obs", 1)
	require.NotEmpty(t, segs, "expected segments for a polar-crossing observation")

	pole := geo.LatLonToUnit(90, 0)
	found := false
	for _, seg := range segs {
		if geo.PointInSphericalTriangle(pole, seg.Vertices) {
			found = true
			break
		}
	}
	assert.True(t, found, "expected the pole to be covered by some segment")
}
