// Package segstore implements the per-instrument segment store (spec.md
// §4.5): segment_id, observation_id, and three (lat, lon) vertex pairs per
// row, with center and radius recomputed on load rather than persisted.
//
// Unlike the metadata store, this schema never varies across instruments,
// so it is versioned with golang-migrate the way velocity.report versions
// its own database (embedded migrations via iofs, applied with Up at open
// time).
package segstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/JPLMLIA/pdsc-go/pkg/geo"
	"github.com/JPLMLIA/pdsc-go/pkg/pdscerr"
	"github.com/JPLMLIA/pdsc-go/pkg/segment"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a single instrument's segment table.
type Store struct {
	db         *sql.DB
	instrument string
}

// Open opens (creating and migrating if necessary) the segment store at
// path.
func Open(path, instrument string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("segstore: open %s: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("segstore: %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, instrument: instrument}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrateUp() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("segstore: iofs source: %w", err)
	}
	dbDriver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("segstore: sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("segstore: migrate instance: %w", err)
	}
	// Same caveat as velocity.report's migrate.go: m.Close() would close the
	// shared *sql.DB via the sqlite driver, so it is left unclosed here;
	// the source driver holds no resources of its own.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return &pdscerr.IndexCorrupt{Instrument: s.instrument, File: "segments.db", Reason: err.Error()}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Insert persists one segment's raw vertex coordinates. Center and radius
// are not stored; SegmentsForObservation and SegmentByID recompute them.
func (s *Store) Insert(seg segment.Segment) error {
	lat1, lon1 := geo.UnitToLatLon(seg.Vertices[0])
	lat2, lon2 := geo.UnitToLatLon(seg.Vertices[1])
	lat3, lon3 := geo.UnitToLatLon(seg.Vertices[2])
	_, err := s.db.Exec(
		`INSERT INTO segments (segment_id, observation_id, lat1, lon1, lat2, lon2, lat3, lon3)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		seg.SegmentID, seg.ObservationID, lat1, lon1, lat2, lon2, lat3, lon3,
	)
	if err != nil {
		return fmt.Errorf("segstore: insert segment %d: %w", seg.SegmentID, err)
	}
	return nil
}

// SegmentsForObservation returns every segment owned by observationID, in
// segment_id order.
func (s *Store) SegmentsForObservation(observationID string) ([]segment.Segment, error) {
	rows, err := s.db.Query(
		`SELECT segment_id, observation_id, lat1, lon1, lat2, lon2, lat3, lon3
		 FROM segments WHERE observation_id = ? ORDER BY segment_id ASC`,
		observationID,
	)
	if err != nil {
		return nil, fmt.Errorf("segstore: query observation %s: %w", observationID, err)
	}
	defer rows.Close()
	return scanSegments(rows)
}

// SegmentByID fetches a single segment by its store-unique id.
func (s *Store) SegmentByID(segmentID int64) (segment.Segment, error) {
	row := s.db.QueryRow(
		`SELECT segment_id, observation_id, lat1, lon1, lat2, lon2, lat3, lon3
		 FROM segments WHERE segment_id = ?`,
		segmentID,
	)
	var segID int64
	var obsID string
	var lat1, lon1, lat2, lon2, lat3, lon3 float64
	if err := row.Scan(&segID, &obsID, &lat1, &lon1, &lat2, &lon2, &lat3, &lon3); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return segment.Segment{}, &pdscerr.IndexCorrupt{Instrument: s.instrument, File: "segments.db", Reason: fmt.Sprintf("segment_id %d not found", segmentID)}
		}
		return segment.Segment{}, fmt.Errorf("segstore: segment_by_id %d: %w", segmentID, err)
	}
	seg, ok := segment.New(segID, obsID, [2]float64{lat1, lon1}, [2]float64{lat2, lon2}, [2]float64{lat3, lon3})
	if !ok {
		return segment.Segment{}, &pdscerr.IndexCorrupt{Instrument: s.instrument, File: "segments.db", Reason: fmt.Sprintf("segment_id %d is degenerate on reload", segmentID)}
	}
	return seg, nil
}

// AllSegments streams every stored segment in segment_id order to yield,
// stopping at the first error yield returns. Used only at ball-tree build
// time (spec.md §4.5).
func (s *Store) AllSegments(yield func(segment.Segment) error) error {
	rows, err := s.db.Query(
		`SELECT segment_id, observation_id, lat1, lon1, lat2, lon2, lat3, lon3
		 FROM segments ORDER BY segment_id ASC`,
	)
	if err != nil {
		return fmt.Errorf("segstore: all_segments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var segID int64
		var obsID string
		var lat1, lon1, lat2, lon2, lat3, lon3 float64
		if err := rows.Scan(&segID, &obsID, &lat1, &lon1, &lat2, &lon2, &lat3, &lon3); err != nil {
			return fmt.Errorf("segstore: all_segments scan: %w", err)
		}
		seg, ok := segment.New(segID, obsID, [2]float64{lat1, lon1}, [2]float64{lat2, lon2}, [2]float64{lat3, lon3})
		if !ok {
			return &pdscerr.IndexCorrupt{Instrument: s.instrument, File: "segments.db", Reason: fmt.Sprintf("segment_id %d is degenerate on reload", segID)}
		}
		if err := yield(seg); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanSegments(rows *sql.Rows) ([]segment.Segment, error) {
	var out []segment.Segment
	for rows.Next() {
		var segID int64
		var obsID string
		var lat1, lon1, lat2, lon2, lat3, lon3 float64
		if err := rows.Scan(&segID, &obsID, &lat1, &lon1, &lat2, &lon2, &lat3, &lon3); err != nil {
			return nil, fmt.Errorf("segstore: scan: %w", err)
		}
		seg, ok := segment.New(segID, obsID, [2]float64{lat1, lon1}, [2]float64{lat2, lon2}, [2]float64{lat3, lon3})
		if !ok {
			return nil, fmt.Errorf("segstore: segment %d degenerate on reload", segID)
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}
