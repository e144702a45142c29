// Package ingest orchestrates the bulk, write-once pipeline from metadata
// records to a persisted per-instrument index (spec.md §5): metadata
// record -> localizer -> segmenter -> segment store + ball tree.
package ingest

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/JPLMLIA/pdsc-go/pkg/balltree"
	"github.com/JPLMLIA/pdsc-go/pkg/localize"
	"github.com/JPLMLIA/pdsc-go/pkg/metadata"
	"github.com/JPLMLIA/pdsc-go/pkg/pdscerr"
	"github.com/JPLMLIA/pdsc-go/pkg/segment"
	"github.com/JPLMLIA/pdsc-go/pkg/segstore"
)

// Config is the per-instrument configuration consumed only at ingest
// (spec.md §6): column schema, the segmentation resolution, and the extra
// flags passed through to the localizer constructor.
type Config struct {
	Instrument         string
	Columns            []metadata.ColumnDef
	ObservationIDColumn string
	ScaleFactors       map[string]float64
	SegmentationResolutionM float64
	LocalizerFlags     map[string]bool
	BodyRadiusM        float64
	LeafCapacity       int
}

// Record is one observation's metadata plus the samples/lines extent the
// segmenter needs. Fields is passed to both the localizer constructor and
// the metadata store's Insert, so it must carry every configured column.
type Record struct {
	ObservationID string
	Samples       float64
	Lines         float64
	Fields        map[string]any
}

// Result summarizes one ingest run.
type Result struct {
	ObservationsIngested int
	ObservationsSkipped  int // dropped entirely: zero valid segments
	SegmentsSkipped      int // degenerate triangles dropped, observation otherwise kept
}

// Run ingests records into a fresh index directory under root, named
// <instrument>_metadata.db / _segments.db / _segments.tree. Artifacts are
// built under a uuid-suffixed temporary name and renamed into place only
// once every step has succeeded, so a crash mid-ingest never leaves a
// partially written index where a query would find it.
func Run(root string, cfg Config, registry *localize.Registry, records []Record) (Result, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Result{}, fmt.Errorf("ingest: mkdir %s: %w", root, err)
	}

	tmp := uuid.NewString()
	metaPath := filepath.Join(root, fmt.Sprintf("%s_metadata.db.tmp-%s", cfg.Instrument, tmp))
	segPath := filepath.Join(root, fmt.Sprintf("%s_segments.db.tmp-%s", cfg.Instrument, tmp))
	treePath := filepath.Join(root, fmt.Sprintf("%s_segments.tree.tmp-%s", cfg.Instrument, tmp))

	metaStore, err := metadata.Open(metaPath, cfg.Instrument, cfg.Columns, cfg.ObservationIDColumn)
	if err != nil {
		return Result{}, err
	}
	defer metaStore.Close()

	segStore, err := segstore.Open(segPath, cfg.Instrument)
	if err != nil {
		return Result{}, err
	}
	defer segStore.Close()

	var result Result
	var points []balltree.Point
	var rMax float64
	nextSegmentID := int64(1)

	for _, rec := range records {
		loc, err := registry.Make(cfg.Instrument, rec.Fields, cfg.LocalizerFlags)
		if err != nil {
			return result, err
		}

		segmenter := &segment.Segmenter{
			Localizer: loc, Samples: rec.Samples, Lines: rec.Lines,
			ResolutionM: cfg.SegmentationResolutionM, BodyRadiusM: cfg.BodyRadiusM,
		}
		segs, last, skipped := segmenter.Generate(rec.ObservationID, nextSegmentID)
		nextSegmentID = last
		result.SegmentsSkipped += skipped

		if len(segs) == 0 {
			log.Printf("pdsc: ingest: %s: %v", cfg.Instrument,
				&pdscerr.DegenerateSegment{Instrument: cfg.Instrument, ObservationID: rec.ObservationID, Reason: "no valid segments after filtering"})
			result.ObservationsSkipped++
			continue
		}

		for _, seg := range segs {
			if err := segStore.Insert(seg); err != nil {
				return result, err
			}
			points = append(points, balltree.Point{SegmentID: seg.SegmentID, Center: seg.Center})
			if seg.RadiusRad > rMax {
				rMax = seg.RadiusRad
			}
		}

		if err := metaStore.Insert(rec.Fields); err != nil {
			return result, err
		}
		result.ObservationsIngested++
	}

	tree := balltree.Build(points, cfg.LeafCapacity, rMax, cfg.BodyRadiusM)
	if err := tree.Save(treePath); err != nil {
		return result, err
	}

	if err := metaStore.Close(); err != nil {
		return result, fmt.Errorf("ingest: close metadata store: %w", err)
	}
	if err := segStore.Close(); err != nil {
		return result, fmt.Errorf("ingest: close segment store: %w", err)
	}

	finalMeta := filepath.Join(root, fmt.Sprintf("%s_metadata.db", cfg.Instrument))
	finalSeg := filepath.Join(root, fmt.Sprintf("%s_segments.db", cfg.Instrument))
	finalTree := filepath.Join(root, fmt.Sprintf("%s_segments.tree", cfg.Instrument))

	for _, rename := range [][2]string{
		{metaPath, finalMeta}, {segPath, finalSeg}, {treePath, finalTree},
	} {
		if err := os.Rename(rename[0], rename[1]); err != nil {
			return result, fmt.Errorf("ingest: commit %s: %w", rename[1], err)
		}
	}

	return result, nil
}
