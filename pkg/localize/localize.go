// Package localize implements the pixel<->latitude/longitude contract
// (spec.md §4.3) used by the segmenter to synthesize footprint vertices
// during ingest, plus the per-instrument registry that resolves an
// instrument tag to a localizer constructor (spec.md §9's "dynamic
// per-instrument plugins" design note, made an explicit registration
// interface keyed by instrument tag).
package localize

import (
	"fmt"
	"math"
	"sync"

	"github.com/JPLMLIA/pdsc-go/pkg/geo"
	"github.com/JPLMLIA/pdsc-go/pkg/pdscerr"
)

// Localizer maps between an observation's pixel space and the surface of
// its body. row is in [0, lines], col is in [0, samples] (extended by one
// past the last pixel so footprint corners are reachable).
type Localizer interface {
	PixelToLatLon(row, col float64) (lat, lon float64)

	// LatLonToPixel is the (possibly approximate) inverse. Implementations
	// that have a closed form override it; DefaultInverse below provides a
	// numerical fallback for the rest.
	LatLonToPixel(lat, lon float64) (row, col float64)
}

// LocationMask reports, for each (lat, lon) pair, whether it falls within
// the observation's pixel extent as seen by loc.
func LocationMask(loc Localizer, samples, lines float64, latlons [][2]float64) []bool {
	out := make([]bool, len(latlons))
	for i, ll := range latlons {
		row, col := loc.LatLonToPixel(ll[0], ll[1])
		out[i] = row >= 0 && row <= lines && col >= 0 && col <= samples
	}
	return out
}

// DefaultInverse numerically inverts PixelToLatLon via coarse-to-fine grid
// search followed by a few rounds of coordinate descent refinement. It is
// the fallback used by localizers (four-corner, and any geodesic variant
// that doesn't special-case it) that have no closed-form inverse.
//
// tolerance is the same pixel tolerance testable in spec.md §8 property 1;
// callers that need the stricter closed-form guarantee must implement
// LatLonToPixel themselves.
func DefaultInverse(loc Localizer, samples, lines float64, lat, lon float64) (row, col float64) {
	target := geo.LatLonToUnit(lat, lon)

	best := struct{ row, col, dist float64 }{dist: math.Inf(1)}
	const coarse = 12
	for i := 0; i <= coarse; i++ {
		r := float64(i) / coarse * lines
		for j := 0; j <= coarse; j++ {
			c := float64(j) / coarse * samples
			la, lo := loc.PixelToLatLon(r, c)
			d := geo.CentralAngle(target, geo.LatLonToUnit(la, lo))
			if d < best.dist {
				best = struct{ row, col, dist float64 }{r, c, d}
			}
		}
	}

	row, col = best.row, best.col
	step := math.Max(samples, lines) / coarse
	for iter := 0; iter < 40 && step > 1e-6; iter++ {
		improved := false
		for _, d := range [][2]float64{{step, 0}, {-step, 0}, {0, step}, {0, -step}} {
			nr, nc := row+d[0], col+d[1]
			if nr < 0 || nr > lines || nc < 0 || nc > samples {
				continue
			}
			la, lo := loc.PixelToLatLon(nr, nc)
			dist := geo.CentralAngle(target, geo.LatLonToUnit(la, lo))
			if dist < best.dist {
				best = struct{ row, col, dist float64 }{nr, nc, dist}
				improved = true
			}
		}
		row, col = best.row, best.col
		if !improved {
			step /= 2
		}
	}
	return row, col
}

// Constructor builds a Localizer from a flat metadata record and optional
// instrument flags (e.g. "browse", "nomap"), mirroring the teacher's
// Parser-interface-plus-NewParser-factory shape (pkg/s57/parser.go), here
// applied per-instrument instead of per-format.
type Constructor func(record map[string]any, flags map[string]bool) (Localizer, error)

// Registry resolves instrument tags to localizer constructors. It is a
// process-wide value, initialized once at start-up and frozen: spec.md §9
// calls for "no hot-patching at query time".
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	frozen       bool
}

// NewRegistry returns an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register associates an instrument tag with a constructor. Panics if the
// registry has already been frozen, or if the tag is already registered,
// since both indicate a programming error at start-up, not a runtime
// condition callers should handle.
func (r *Registry) Register(instrument string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic(fmt.Sprintf("localize: Registry.Register(%q) called after Freeze", instrument))
	}
	if _, exists := r.constructors[instrument]; exists {
		panic(fmt.Sprintf("localize: instrument %q registered twice", instrument))
	}
	r.constructors[instrument] = ctor
}

// Freeze prevents further registration. Safe to call more than once.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Make builds a Localizer for instrument from record and flags, returning
// pdscerr.LocalizerUnavailable if no constructor is registered.
func (r *Registry) Make(instrument string, record map[string]any, flags map[string]bool) (Localizer, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[instrument]
	r.mu.RUnlock()
	if !ok {
		return nil, &pdscerr.LocalizerUnavailable{Instrument: instrument}
	}
	return ctor(record, flags)
}
