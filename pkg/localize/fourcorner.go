package localize

import "github.com/JPLMLIA/pdsc-go/pkg/geo"

// FourCornerLocalizer maps pixels to the surface by bilinear interpolation
// of the observation's four footprint corners in unit-vector space,
// renormalizing the result back onto the sphere (spec.md §4.3). It is the
// fallback family for instruments whose metadata gives corner geolocation
// directly rather than a flight geometry model.
type FourCornerLocalizer struct {
	// NW, NE, SE, SW are the unit vectors of the footprint corners, named
	// for their position at (row=0,col=0), (row=0,col=samples),
	// (row=lines,col=samples), (row=lines,col=0) respectively.
	NW, NE, SE, SW geo.Vec3
	Samples, Lines float64
}

func (f *FourCornerLocalizer) PixelToLatLon(row, col float64) (lat, lon float64) {
	u := col / f.Samples
	v := row / f.Lines

	top := f.NW.Scale(1 - u).Add(f.NE.Scale(u))
	bottom := f.SW.Scale(1 - u).Add(f.SE.Scale(u))
	p := top.Scale(1 - v).Add(bottom.Scale(v)).Unit()
	return geo.UnitToLatLon(p)
}

func (f *FourCornerLocalizer) LatLonToPixel(lat, lon float64) (row, col float64) {
	return DefaultInverse(f, f.Samples, f.Lines, lat, lon)
}

// NewFourCornerLocalizer builds a FourCornerLocalizer from a flat metadata
// record. Expected keys: nw_latitude, nw_longitude, ne_latitude,
// ne_longitude, se_latitude, se_longitude, sw_latitude, sw_longitude,
// samples, lines.
func NewFourCornerLocalizer(record map[string]any, flags map[string]bool) (Localizer, error) {
	f := &FourCornerLocalizer{}
	corners := []struct {
		latKey, lonKey string
		dst            *geo.Vec3
	}{
		{"nw_latitude", "nw_longitude", &f.NW},
		{"ne_latitude", "ne_longitude", &f.NE},
		{"se_latitude", "se_longitude", &f.SE},
		{"sw_latitude", "sw_longitude", &f.SW},
	}
	for _, c := range corners {
		lat, err := floatField(record, c.latKey)
		if err != nil {
			return nil, err
		}
		lon, err := floatField(record, c.lonKey)
		if err != nil {
			return nil, err
		}
		*c.dst = geo.LatLonToUnit(lat, lon)
	}
	var err error
	if f.Samples, err = floatField(record, "samples"); err != nil {
		return nil, err
	}
	if f.Lines, err = floatField(record, "lines"); err != nil {
		return nil, err
	}
	return f, nil
}
