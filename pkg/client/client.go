// Package client provides the public, synchronous query surface (spec.md
// §6's "library" surface): a Client handle backed by an LRU cache of
// opened per-instrument indexes.
package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JPLMLIA/pdsc-go/pkg/balltree"
	"github.com/JPLMLIA/pdsc-go/pkg/metadata"
	"github.com/JPLMLIA/pdsc-go/pkg/pdscerr"
	"github.com/JPLMLIA/pdsc-go/pkg/query"
	"github.com/JPLMLIA/pdsc-go/pkg/segstore"
)

// Client is the query-side entry point over a PDSC_DATABASE_DIR root
// containing one subdirectory per instrument.
type Client struct {
	root        string
	bodyRadiusM map[string]float64 // not populated; open passes each tree header's radius via query.Index.BodyRadiusM
	cache       *indexCache
}

// New returns a Client rooted at dbRoot, caching up to cacheCapacity opened
// instrument indexes (0 means unlimited).
func New(dbRoot string, cacheCapacity int) *Client {
	return &Client{root: dbRoot, cache: newIndexCache(cacheCapacity)}
}

func (c *Client) instrumentDir(instrument string) string {
	return filepath.Join(c.root, instrument)
}

func (c *Client) open(instrument string) (*handle, error) {
	dir := c.instrumentDir(instrument)
	return c.cache.acquire(dir, func() (*query.Index, *metadata.Store, error) {
		treePath := filepath.Join(dir, fmt.Sprintf("%s_segments.tree", instrument))
		tree, err := balltree.Load(treePath, instrument)
		if err != nil {
			if isNotExist(err) {
				return nil, nil, &pdscerr.UnknownInstrument{Instrument: instrument, Op: "client.open"}
			}
			return nil, nil, err
		}

		segPath := filepath.Join(dir, fmt.Sprintf("%s_segments.db", instrument))
		segs, err := segstore.Open(segPath, instrument)
		if err != nil {
			return nil, nil, err
		}

		metaPath := filepath.Join(dir, fmt.Sprintf("%s_metadata.db", instrument))
		meta, err := metadata.OpenExisting(metaPath, instrument)
		if err != nil {
			segs.Close()
			return nil, nil, err
		}

		idx := &query.Index{Instrument: instrument, Segs: segs, Tree: tree, BodyRadiusM: tree.BodyRadiusM}
		return idx, meta, nil
	})
}

// QueryByObservationID returns every metadata record for id — more than one
// when the same id names multiple products (spec.md §4.4).
func (c *Client) QueryByObservationID(instrument, id string) ([]map[string]any, error) {
	h, err := c.open(instrument)
	if err != nil {
		return nil, err
	}
	defer h.Release()
	return h.Metadata().QueryByObservationID(id)
}

// Query returns every metadata record matching all predicates.
func (c *Client) Query(instrument string, predicates []metadata.Predicate) ([]map[string]any, error) {
	h, err := c.open(instrument)
	if err != nil {
		return nil, err
	}
	defer h.Release()
	return h.Metadata().Query(predicates)
}

// FindObservationsOfLatLon returns metadata records for every observation
// whose footprint contains (lat, lon), or lies within radiusMeters of it
// when radiusMeters > 0.
func (c *Client) FindObservationsOfLatLon(ctx context.Context, instrument string, lat, lon, radiusMeters float64) ([]map[string]any, error) {
	h, err := c.open(instrument)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	ids, err := query.PointQuery(ctx, h.Index(), lat, lon, radiusMeters)
	if err != nil {
		return nil, err
	}
	return c.resolveRecords(h, ids)
}

// FindOverlappingObservations returns metadata records (from instrumentB)
// for every observation whose footprint intersects idA's, in instrumentA.
func (c *Client) FindOverlappingObservations(ctx context.Context, instrumentA, idA, instrumentB string) ([]map[string]any, error) {
	hA, err := c.open(instrumentA)
	if err != nil {
		return nil, err
	}
	defer hA.Release()

	hB, err := c.open(instrumentB)
	if err != nil {
		return nil, err
	}
	defer hB.Release()

	ids, err := query.OverlapQuery(ctx, hA.Index(), idA, hB.Index())
	if err != nil {
		return nil, err
	}
	return c.resolveRecords(hB, ids)
}

func (c *Client) resolveRecords(h *handle, ids []string) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		recs, err := h.Metadata().QueryByObservationID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
