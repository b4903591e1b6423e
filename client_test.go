package geodex

import (
	"context"
	"testing"
	"time"
)

func TestNew_UnknownDriver(t *testing.T) {
	cfg := &clientConfig{driver: "unknown"}
	_, err := createStore(cfg, nil)
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(WithMemory())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)

	err = c.Products().Add(context.Background(), ProductDefinition{
		Name: "ls8_scene",
		SearchFields: map[string]any{
			"platform": map[string]any{"offset": []any{"platform", "code"}},
			"lat": map[string]any{
				"type":       "numeric-range",
				"min_offset": []any{"extent", "lat", "min"},
				"max_offset": []any{"extent", "lat", "max"},
			},
			"time": map[string]any{"type": "datetime", "offset": []any{"time"}},
		},
	})
	if err != nil {
		t.Fatalf("add product: %v", err)
	}
	return c
}

func sceneDoc(platform, ts string, latMin, latMax float64) map[string]any {
	return map[string]any{
		"platform": map[string]any{"code": platform},
		"time":     ts,
		"extent":   map[string]any{"lat": map[string]any{"min": latMin, "max": latMax}},
	}
}

func TestClient_Lifecycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	names := c.Products().List()
	if len(names) != 1 || names[0] != "ls8_scene" {
		t.Fatalf("products = %v", names)
	}

	info, err := c.Products().Describe("ls8_scene")
	if err != nil {
		t.Fatal(err)
	}
	types := map[string]string{}
	for _, f := range info {
		types[f.Name] = f.Type
	}
	if types["lat"] != "numeric-range" {
		t.Errorf("lat type = %q", types["lat"])
	}

	id, err := c.Datasets().Add(ctx, "ls8_scene", sceneDoc("LANDSAT_8", "2014-07-26T23:48:00Z", -36.5, -35.0))
	if err != nil {
		t.Fatalf("add dataset: %v", err)
	}

	ds, err := c.Datasets().Get(ctx, id)
	if err != nil {
		t.Fatalf("get dataset: %v", err)
	}
	if ds.Product != "ls8_scene" || ds.Archived {
		t.Errorf("dataset = %+v", ds)
	}
}

func TestClient_Search(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, err := c.Datasets().Add(ctx, "ls8_scene", sceneDoc("LANDSAT_8", "2014-07-26T23:48:00Z", -36.5, -35.0))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Datasets().Add(ctx, "ls8_scene", sceneDoc("LANDSAT_7", "2014-07-26T23:48:00Z", -20.0, -19.0)); err != nil {
		t.Fatal(err)
	}

	res, err := c.Search("ls8_scene").
		Where("platform", "LANDSAT_8").
		Between("lat", -37, -36).
		Do(ctx)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Total != 1 || res.Hits[0].ID != id {
		t.Fatalf("result = %+v, want single hit %s", res, id)
	}
	if res.Hits[0].Metadata == nil {
		t.Error("expected full metadata without projection")
	}

	res, err = c.Search("ls8_scene").Select("platform").Do(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 2 {
		t.Fatalf("total = %d", res.Total)
	}
	for _, h := range res.Hits {
		if h.Metadata != nil || h.Values["platform"] == nil {
			t.Errorf("projected hit = %+v", h)
		}
	}

	n, err := c.Search("ls8_scene").Not("platform", "LANDSAT_8").Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("negated count = %d, want 1", n)
	}

	n, err = c.Search("ls8_scene").Extent(-37, -30, -180, 180).Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("extent count = %d, want 1", n)
	}
}

func TestClient_ArchiveExcludesFromSearch(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, err := c.Datasets().Add(ctx, "ls8_scene", sceneDoc("LANDSAT_8", "2014-07-26T23:48:00Z", -36.5, -35.0))
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Datasets().Archive(ctx, id); err != nil {
		t.Fatal(err)
	}

	n, err := c.Search("ls8_scene").Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("count after archive = %d, want 0", n)
	}

	n, err = c.Search("ls8_scene").IncludeArchived().Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count with archived = %d, want 1", n)
	}

	if err := c.Datasets().Restore(ctx, id); err != nil {
		t.Fatal(err)
	}
	n, err = c.Search("ls8_scene").Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count after restore = %d, want 1", n)
	}
}

func TestClient_CountOverTime(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	docs := []string{
		"2014-07-26T23:48:00Z",
		"2015-01-01T00:00:00Z",
		"2015-06-15T12:00:00Z",
	}
	for _, ts := range docs {
		if _, err := c.Datasets().Add(ctx, "ls8_scene", sceneDoc("LANDSAT_8", ts, -36.5, -35.0)); err != nil {
			t.Fatal(err)
		}
	}

	start := time.Date(2014, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2016, time.January, 1, 0, 0, 0, 0, time.UTC)
	buckets, err := c.Search("ls8_scene").CountOverTime(ctx, "time", start, end, PeriodYear)
	if err != nil {
		t.Fatalf("count over time: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("buckets = %d, want 2", len(buckets))
	}
	if buckets[0].Count != 1 || buckets[1].Count != 2 {
		t.Errorf("bucket counts = %d, %d", buckets[0].Count, buckets[1].Count)
	}
}
