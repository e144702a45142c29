package client

import (
	"context"
	"testing"

	"github.com/JPLMLIA/pdsc-go/pkg/ingest"
	"github.com/JPLMLIA/pdsc-go/pkg/localize"
	"github.com/JPLMLIA/pdsc-go/pkg/metadata"
)

func seedIndex(t *testing.T, root, instrument string, ids []string) {
	t.Helper()
	cfg := ingest.Config{
		Instrument: instrument,
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
	r := localize.NewRegistry()
	r.Register(instrument, localize.NewGeodesicLocalizer)
	r.Freeze()

	var records []ingest.Record
	for _, id := range ids {
		records = append(records, ingest.Record{
			ObservationID: id, Samples: 500, Lines: 500,
			Fields: map[string]any{
				"observation_id": id, "samples": 500.0, "lines": 500.0,
				"center_latitude": 10.0, "center_longitude": 30.0, "north_azimuth": 0.0,
				"pixel_height_m": 100.0, "pixel_width_m": 100.0, "body_radius_m": 3389500.0,
			},
		})
	}
	dir := (&Client{root: root}).instrumentDir(instrument)
	if _, err := ingest.Run(dir, cfg, r, records); err != nil {
		t.Fatalf("seed ingest: %v", err)
	}
}

func TestClientQueryByObservationID(t *testing.T) {
	root := t.TempDir()
	seedIndex(t, root, "ctx", []string{"P01"})

	c := New(root, 4)
	recs, err := c.QueryByObservationID("ctx", "P01")
	if err != nil {
		t.Fatalf("QueryByObservationID: %v", err)
	}
	if len(recs) != 1 || recs[0]["observation_id"] != "P01" {
		t.Fatalf("got %v", recs)
	}
}

func TestClientUnknownInstrument(t *testing.T) {
	root := t.TempDir()
	c := New(root, 4)
	if _, err := c.QueryByObservationID("missing", "P01"); err == nil {
		t.Fatal("expected UnknownInstrument error")
	}
}

func TestClientFindObservationsOfLatLon(t *testing.T) {
	root := t.TempDir()
	seedIndex(t, root, "ctx", []string{"P01"})

	c := New(root, 4)
	recs, err := c.FindObservationsOfLatLon(context.Background(), "ctx", 10, 30, 0)
	if err != nil {
		t.Fatalf("FindObservationsOfLatLon: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record at image center, got %d", len(recs))
	}
}

func TestClientCacheEvictsUnderCapacity(t *testing.T) {
	root := t.TempDir()
	seedIndex(t, root, "ctx", []string{"P01"})
	seedIndex(t, root, "hirise", []string{"H01"})
	seedIndex(t, root, "moc", []string{"M01"})

	c := New(root, 2)
	for _, instrument := range []string{"ctx", "hirise", "moc"} {
		h, err := c.open(instrument)
		if err != nil {
			t.Fatalf("open %s: %v", instrument, err)
		}
		h.Release()
	}
	if len(c.cache.entries) > 2 {
		t.Fatalf("expected cache capped at 2 entries, got %d", len(c.cache.entries))
	}
}
