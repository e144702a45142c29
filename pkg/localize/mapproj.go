package localize

import (
	"fmt"
	"math"

	"github.com/JPLMLIA/pdsc-go/pkg/pdscerr"
)

// EquirectangularLocalizer maps pixels through a simple cylindrical
// equidistant projection: longitude varies linearly with column and
// latitude varies linearly with row, scaled by meters-per-pixel at a
// fixed center latitude (spec.md §4.3, map-projected family).
type EquirectangularLocalizer struct {
	CenterLat, CenterLon float64
	MetersPerPixel       float64
	BodyRadiusM          float64
	Samples, Lines       float64
}

func (m *EquirectangularLocalizer) PixelToLatLon(row, col float64) (lat, lon float64) {
	metersPerDegreeLat := m.BodyRadiusM * math.Pi / 180
	metersPerDegreeLon := metersPerDegreeLat * math.Cos(m.CenterLat*math.Pi/180)

	dx := (col - m.Samples/2) * m.MetersPerPixel
	dy := (m.Lines/2 - row) * m.MetersPerPixel // row increases downward; lat increases northward

	lat = m.CenterLat + dy/metersPerDegreeLat
	if metersPerDegreeLon == 0 {
		lon = m.CenterLon
	} else {
		lon = m.CenterLon + dx/metersPerDegreeLon
	}
	lon = math.Mod(lon+360, 360)
	return lat, lon
}

func (m *EquirectangularLocalizer) LatLonToPixel(lat, lon float64) (row, col float64) {
	metersPerDegreeLat := m.BodyRadiusM * math.Pi / 180
	metersPerDegreeLon := metersPerDegreeLat * math.Cos(m.CenterLat*math.Pi/180)

	dLon := lon - m.CenterLon
	if dLon > 180 {
		dLon -= 360
	} else if dLon < -180 {
		dLon += 360
	}
	dx := dLon * metersPerDegreeLon
	dy := (lat - m.CenterLat) * metersPerDegreeLat

	col = m.Samples/2 + dx/m.MetersPerPixel
	row = m.Lines/2 - dy/m.MetersPerPixel
	return row, col
}

// PolarStereographicLocalizer maps pixels through a polar stereographic
// projection centered on one of the body's poles, used for high-latitude
// map-projected products where equirectangular distortion is unacceptable.
type PolarStereographicLocalizer struct {
	NorthPole      bool // true: projected from the north pole; false: south
	MetersPerPixel float64
	BodyRadiusM    float64
	Samples, Lines float64
}

func (m *PolarStereographicLocalizer) PixelToLatLon(row, col float64) (lat, lon float64) {
	x := (col - m.Samples/2) * m.MetersPerPixel
	y := (m.Lines/2 - row) * m.MetersPerPixel
	rho := math.Hypot(x, y)

	c := 2 * math.Atan2(rho, 2*m.BodyRadiusM)
	var latRad float64
	if m.NorthPole {
		latRad = math.Asin(math.Cos(c))
	} else {
		latRad = -math.Asin(math.Cos(c))
	}

	lonRad := math.Atan2(x, y)
	if !m.NorthPole {
		lonRad = math.Atan2(x, -y)
	}

	lat = latRad * 180 / math.Pi
	lon = math.Mod(lonRad*180/math.Pi+360, 360)
	return lat, lon
}

func (m *PolarStereographicLocalizer) LatLonToPixel(lat, lon float64) (row, col float64) {
	sign := 1.0
	if !m.NorthPole {
		sign = -1
	}
	c := math.Pi/2 - sign*lat*math.Pi/180
	rho := 2 * m.BodyRadiusM * math.Tan(c/2)
	lonRad := lon * math.Pi / 180
	x := rho * math.Sin(lonRad)
	y := sign * rho * math.Cos(lonRad)
	col = m.Samples/2 + x/m.MetersPerPixel
	row = m.Lines/2 - y/m.MetersPerPixel
	return row, col
}

// NewMapLocalizer dispatches on record["map_projection"] ("equirectangular"
// or "polar_stereographic") to build the appropriate map-projected
// localizer. The "nomap" flag (browse products shipped without map
// metadata) falls back to a four-corner fit from the record's corner
// geolocation fields instead (spec.md §4.3: "a 'nomap' variant falls back
// to a four-corner fit when map metadata is absent"); "browse" scales
// MetersPerPixel by the record's browse_scale_factor when present.
func NewMapLocalizer(record map[string]any, flags map[string]bool) (Localizer, error) {
	if flags["nomap"] {
		return NewFourCornerLocalizer(record, flags)
	}

	metersPerPixel, err := floatField(record, "meters_per_pixel")
	if err != nil {
		return nil, err
	}
	if flags["browse"] {
		if scale, ok := record["browse_scale_factor"].(float64); ok && scale > 0 {
			metersPerPixel *= scale
		}
	}
	bodyRadius, err := floatField(record, "body_radius_m")
	if err != nil {
		return nil, err
	}
	samples, err := floatField(record, "samples")
	if err != nil {
		return nil, err
	}
	lines, err := floatField(record, "lines")
	if err != nil {
		return nil, err
	}

	projection, _ := record["map_projection"].(string)
	switch projection {
	case "", "equirectangular":
		centerLat, err := floatField(record, "center_latitude")
		if err != nil {
			return nil, err
		}
		centerLon, err := floatField(record, "center_longitude")
		if err != nil {
			return nil, err
		}
		return &EquirectangularLocalizer{
			CenterLat:      centerLat,
			CenterLon:      centerLon,
			MetersPerPixel: metersPerPixel,
			BodyRadiusM:    bodyRadius,
			Samples:        samples,
			Lines:          lines,
		}, nil
	case "polar_stereographic":
		northPole := true
		if v, ok := record["center_latitude"].(float64); ok && v < 0 {
			northPole = false
		}
		return &PolarStereographicLocalizer{
			NorthPole:      northPole,
			MetersPerPixel: metersPerPixel,
			BodyRadiusM:    bodyRadius,
			Samples:        samples,
			Lines:          lines,
		}, nil
	default:
		return nil, &pdscerr.BadQuery{Op: "localize.NewMapLocalizer", Reason: fmt.Sprintf("unknown map_projection %q", projection)}
	}
}
