package localize

import (
	"fmt"
	"math"

	"github.com/JPLMLIA/pdsc-go/pkg/geo"
)

// GeodesicLocalizer implements the along-track/cross-track pixel mapping
// used by along-track instruments (CTX, MOC, THEMIS, HiRISE EDR), per
// spec.md §4.3: pixel offsets from the image center are walked along the
// observation's flight great circle and perpendicular to it.
//
// The walk is computed as a single local tangent-plane displacement at the
// image center rather than two sequential great-circle rotations: for
// offsets bounded by the footprint size (small relative to the body
// radius) the two are equivalent to within the same Δ/R approximation
// bound the segmenter already accepts, and a single rotation avoids
// compounding two different tangent frames.
type GeodesicLocalizer struct {
	CenterLat, CenterLon float64 // degrees
	NorthAzimuthDeg      float64 // compass bearing of the flight direction, clockwise from north
	PixelHeightM         float64 // meters per pixel, along track
	PixelWidthM          float64 // meters per pixel, across track
	BodyRadiusM          float64
	Samples, Lines       float64

	// Ascending is false for a descending pass; flips the sign of the
	// along-track (row) offset.
	Ascending bool

	// CCDColumnOffset shifts the per-CCD pixel origin for HiRISE EDR,
	// where each CCD/channel reads out a different slice of the focal
	// plane (spec.md §4.3).
	CCDColumnOffset float64
}

func (g *GeodesicLocalizer) frame() (center, north, east geo.Vec3) {
	center = geo.LatLonToUnit(g.CenterLat, g.CenterLon)
	pole := geo.Vec3{X: 0, Y: 0, Z: 1}
	east = pole.Cross(center).Unit()
	north = center.Cross(east).Unit()
	return center, north, east
}

func (g *GeodesicLocalizer) PixelToLatLon(row, col float64) (lat, lon float64) {
	center, north, east := g.frame()

	azRad := g.NorthAzimuthDeg * math.Pi / 180
	flight := north.Scale(math.Cos(azRad)).Add(east.Scale(math.Sin(azRad))).Unit()
	crossTrack := center.Cross(flight).Unit()

	rowOffset := row - g.Lines/2
	if !g.Ascending {
		rowOffset = -rowOffset
	}
	colOffset := (col + g.CCDColumnOffset) - g.Samples/2

	alongM := rowOffset * g.PixelHeightM
	acrossM := colOffset * g.PixelWidthM

	displacement := flight.Scale(alongM).Add(crossTrack.Scale(acrossM))
	theta := displacement.Norm() / g.BodyRadiusM
	if theta == 0 {
		return geo.UnitToLatLon(center)
	}
	dir := displacement.Unit()
	p := center.Scale(math.Cos(theta)).Add(dir.Scale(math.Sin(theta)))
	return geo.UnitToLatLon(p)
}

func (g *GeodesicLocalizer) LatLonToPixel(lat, lon float64) (row, col float64) {
	return DefaultInverse(g, g.Samples, g.Lines, lat, lon)
}

// NewGeodesicLocalizer builds a GeodesicLocalizer from a flat metadata
// record. Expected keys: center_latitude, center_longitude, north_azimuth,
// pixel_height_m, pixel_width_m, body_radius_m, samples, lines, and the
// optional boolean ascending and the optional float64 ccd_column_offset
// for HiRISE EDR channel geometry. flags is not consulted.
func NewGeodesicLocalizer(record map[string]any, flags map[string]bool) (Localizer, error) {
	g := &GeodesicLocalizer{Ascending: true}
	var err error
	if g.CenterLat, err = floatField(record, "center_latitude"); err != nil {
		return nil, err
	}
	if g.CenterLon, err = floatField(record, "center_longitude"); err != nil {
		return nil, err
	}
	if g.NorthAzimuthDeg, err = floatField(record, "north_azimuth"); err != nil {
		return nil, err
	}
	if g.PixelHeightM, err = floatField(record, "pixel_height_m"); err != nil {
		return nil, err
	}
	if g.PixelWidthM, err = floatField(record, "pixel_width_m"); err != nil {
		return nil, err
	}
	if g.BodyRadiusM, err = floatField(record, "body_radius_m"); err != nil {
		return nil, err
	}
	if g.Samples, err = floatField(record, "samples"); err != nil {
		return nil, err
	}
	if g.Lines, err = floatField(record, "lines"); err != nil {
		return nil, err
	}
	if v, ok := record["ascending"].(bool); ok {
		g.Ascending = v
	}
	if off, ok := record["ccd_column_offset"].(float64); ok {
		g.CCDColumnOffset = off
	}
	return g, nil
}

func floatField(record map[string]any, key string) (float64, error) {
	v, ok := record[key]
	if !ok {
		return 0, fmt.Errorf("localize: missing required field %q", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("localize: field %q has non-numeric type %T", key, v)
	}
}
