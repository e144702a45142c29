package geo

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestLatLonRoundTrip(t *testing.T) {
	cases := []struct{ lat, lon float64 }{
		{0, 0},
		{45, 90},
		{-45, 270},
		{89.9, 10},
		{-89.9, 350},
		{10, -170}, // antimeridian, negative convention
		{10, 190},  // antimeridian, 0..360 convention (same physical point)
	}
	for _, c := range cases {
		v := LatLonToUnit(c.lat, c.lon)
		lat, lon := UnitToLatLon(v)
		if !almostEqual(lat, c.lat, 1e-9) {
			t.Errorf("lat round trip: got %v want %v", lat, c.lat)
		}
		wantLon := math.Mod(c.lon+360, 360)
		if !almostEqual(lon, wantLon, 1e-9) && !almostEqual(lon, wantLon-360, 1e-9) {
			t.Errorf("lon round trip: got %v want %v", lon, wantLon)
		}
	}
}

func TestLonConventionsAgree(t *testing.T) {
	a := LatLonToUnit(12, -7)
	b := LatLonToUnit(12, 353)
	if GeodesicDistance(a, b, 3389500) > 1e-6 {
		t.Fatalf("0..360 and -180..180 conventions disagree: %+v vs %+v", a, b)
	}
}

func TestGeodesicDistanceQuarterCircle(t *testing.T) {
	const R = 3389500.0 // Mars mean radius, meters
	a := LatLonToUnit(0, 0)
	b := LatLonToUnit(0, 90)
	got := GeodesicDistance(a, b, R)
	want := math.Pi / 2 * R
	if !almostEqual(got, want, 1) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func marsTriangle() Triangle {
	return Triangle{
		LatLonToUnit(0, 0),
		LatLonToUnit(0, 1),
		LatLonToUnit(1, 0.5),
	}
}

func TestPointInSphericalTriangle(t *testing.T) {
	tri := marsTriangle()
	centroid := tri[0].Add(tri[1]).Add(tri[2]).Unit()
	if !PointInSphericalTriangle(centroid, tri) {
		t.Fatal("centroid should be inside its own triangle")
	}
	far := LatLonToUnit(-10, -10)
	if PointInSphericalTriangle(far, tri) {
		t.Fatal("far point should be outside")
	}
	if !PointInSphericalTriangle(tri[0], tri) {
		t.Fatal("vertex should count as inside (boundary)")
	}
}

func TestPointToTriangleDistanceZeroInside(t *testing.T) {
	tri := marsTriangle()
	centroid := tri[0].Add(tri[1]).Add(tri[2]).Unit()
	if d := PointToTriangleDistance(centroid, tri, 3389500); d != 0 {
		t.Fatalf("expected 0, got %v", d)
	}
}

func TestPointToTriangleDistancePositiveOutside(t *testing.T) {
	tri := marsTriangle()
	far := LatLonToUnit(-10, -10)
	d := PointToTriangleDistance(far, tri, 3389500)
	if d <= 0 {
		t.Fatalf("expected positive distance, got %v", d)
	}
}

func TestIsDegenerateTriangle(t *testing.T) {
	v := LatLonToUnit(10, 10)
	degenerate := Triangle{v, v, LatLonToUnit(20, 20)}
	if !IsDegenerateTriangle(degenerate) {
		t.Fatal("expected degenerate (duplicate vertex)")
	}
	if IsDegenerateTriangle(marsTriangle()) {
		t.Fatal("expected non-degenerate")
	}
}

func TestTrianglesIntersect2D(t *testing.T) {
	a := [3]Point2D{{0, 0}, {2, 0}, {0, 2}}
	b := [3]Point2D{{1, 1}, {3, 1}, {1, 3}}
	if !TrianglesIntersect2D(a, b) {
		t.Fatal("expected overlap")
	}
	c := [3]Point2D{{10, 10}, {12, 10}, {10, 12}}
	if TrianglesIntersect2D(a, c) {
		t.Fatal("expected no overlap")
	}
}

func TestProjectToTangentPlanePreservesAnchor(t *testing.T) {
	anchor := LatLonToUnit(0, 0)
	pts := ProjectToTangentPlane([]Vec3{anchor}, anchor)
	if !almostEqual(pts[0].X, 0, 1e-9) || !almostEqual(pts[0].Y, 0, 1e-9) {
		t.Fatalf("anchor should project to origin, got %+v", pts[0])
	}
}

func TestMidpointIsUnitLength(t *testing.T) {
	a := LatLonToUnit(10, 20)
	b := LatLonToUnit(12, 22)
	m := Midpoint(a, b)
	if !almostEqual(m.Norm(), 1, 1e-12) {
		t.Fatalf("midpoint not unit length: %v", m.Norm())
	}
}

func TestPolarCrossing(t *testing.T) {
	// A triangle whose vertices straddle the north pole exercises the
	// unit-vector representation directly; lat/lon averaging would be
	// meaningless here (spec.md §9 open question on polar crossing).
	tri := Triangle{
		LatLonToUnit(89, 0),
		LatLonToUnit(89, 120),
		LatLonToUnit(89, 240),
	}
	pole := LatLonToUnit(90, 0)
	if !PointInSphericalTriangle(pole, tri) {
		t.Fatal("pole should be inside a triangle whose vertices surround it")
	}
}
