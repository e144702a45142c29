package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JPLMLIA/pdsc-go/pkg/balltree"
	"github.com/JPLMLIA/pdsc-go/pkg/localize"
	"github.com/JPLMLIA/pdsc-go/pkg/metadata"
	"github.com/JPLMLIA/pdsc-go/pkg/segstore"
)

func testConfig() Config {
	return Config{
		Instrument: "ctx",
		Columns: []metadata.ColumnDef{
			{Name: "observation_id", Type: metadata.ColumnText, Indexed: true},
			{Name: "samples", Type: metadata.ColumnInteger},
			{Name: "lines", Type: metadata.ColumnInteger},
			{Name: "center_latitude", Type: metadata.ColumnReal},
			{Name: "center_longitude", Type: metadata.ColumnReal},
			{Name: "north_azimuth", Type: metadata.ColumnReal},
			{Name: "pixel_height_m", Type: metadata.ColumnReal},
			{Name: "pixel_width_m", Type: metadata.ColumnReal},
			{Name: "body_radius_m", Type: metadata.ColumnReal},
		},
		ObservationIDColumn:     "observation_id",
		SegmentationResolutionM: 5000,
		BodyRadiusM:             3389500,
		LeafCapacity:            16,
	}
}

func testRegistry() *localize.Registry {
	r := localize.NewRegistry()
	r.Register("ctx", localize.NewGeodesicLocalizer)
	r.Freeze()
	return r
}

func testRecord(id string) Record {
	return Record{
		ObservationID: id,
		Samples:       500,
		Lines:         500,
		Fields: map[string]any{
			"observation_id": id, "samples": 500.0, "lines": 500.0,
			"center_latitude": 10.0, "center_longitude": 30.0, "north_azimuth": 0.0,
			"pixel_height_m": 100.0, "pixel_width_m": 100.0, "body_radius_m": 3389500.0,
		},
	}
}

func TestRunProducesQueryableArtifacts(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig()
	result, err := Run(root, cfg, testRegistry(), []Record{testRecord("P01"), testRecord("P02")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ObservationsIngested != 2 {
		t.Fatalf("expected 2 observations ingested, got %+v", result)
	}

	for _, suffix := range []string{"_metadata.db", "_segments.db", "_segments.tree"} {
		path := filepath.Join(root, "ctx"+suffix)
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected artifact %s: %v", path, err)
		}
	}

	meta, err := metadata.Open(filepath.Join(root, "ctx_metadata.db"), "ctx", cfg.Columns, cfg.ObservationIDColumn)
	if err != nil {
		t.Fatalf("reopen metadata: %v", err)
	}
	defer meta.Close()
	if _, err := meta.QueryByObservationID("P01"); err != nil {
		t.Fatalf("expected P01 to be queryable: %v", err)
	}

	segs, err := segstore.Open(filepath.Join(root, "ctx_segments.db"), "ctx")
	if err != nil {
		t.Fatalf("reopen segstore: %v", err)
	}
	defer segs.Close()
	list, err := segs.SegmentsForObservation("P01")
	if err != nil || len(list) == 0 {
		t.Fatalf("expected P01 to have segments: %v %v", list, err)
	}

	tree, err := balltree.Load(filepath.Join(root, "ctx_segments.tree"), "ctx")
	if err != nil {
		t.Fatalf("reopen balltree: %v", err)
	}
	if tree.N == 0 {
		t.Fatal("expected a non-empty tree")
	}
}

func TestRunRejectsUnregisteredInstrument(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig()
	cfg.Instrument = "unregistered"
	r := localize.NewRegistry()
	r.Freeze()
	if _, err := Run(root, cfg, r, []Record{testRecord("P01")}); err == nil {
		t.Fatal("expected LocalizerUnavailable")
	}
}

func TestRunLeavesNoTempArtifactsOnSuccess(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig()
	if _, err := Run(root, cfg, testRegistry(), []Record{testRecord("P01")}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("found leftover temp artifact: %s", e.Name())
		}
	}
}
