package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	geom "github.com/twpayne/go-geom"

	"github.com/datalode/geodex/internal/db"
	"github.com/datalode/geodex/internal/domain/document"
	"github.com/datalode/geodex/internal/domain/fields"
)

func testRegistry(t *testing.T) *fields.Registry {
	t.Helper()
	reg, err := fields.ParseFields(map[string]any{
		"platform": map[string]any{"offset": []any{"platform", "code"}},
		"lat": map[string]any{
			"type":       "numeric-range",
			"min_offset": []any{"extent", "lat", "min"},
			"max_offset": []any{"extent", "lat", "max"},
		},
		"lon": map[string]any{
			"type":       "numeric-range",
			"min_offset": []any{"extent", "lon", "min"},
			"max_offset": []any{"extent", "lon", "max"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func testStore(t *testing.T, reg *fields.Registry) *Store {
	t.Helper()
	return NewStore(func(string) (fields.Lookup, bool) {
		return reg.Lookup(), true
	})
}

func putScene(t *testing.T, s *Store, product, platform string, latMin, latMax, lonMin, lonMax float64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := s.PutDataset(context.Background(), &db.DatasetRecord{
		ID:      id,
		Product: product,
		Metadata: document.Doc{
			"platform": map[string]any{"code": platform},
			"extent": map[string]any{
				"lat": map[string]any{"min": latMin, "max": latMax},
				"lon": map[string]any{"min": lonMin, "max": lonMax},
			},
		},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestStore_SearchByEquality(t *testing.T) {
	reg := testRegistry(t)
	s := testStore(t, reg)

	want := putScene(t, s, "ls8_scene", "LANDSAT_8", -36, -35, 149, 150)
	putScene(t, s, "ls8_scene", "LANDSAT_7", -36, -35, 149, 150)

	platform, _ := reg.Get("platform")
	expr, err := platform.Equals("LANDSAT_8")
	if err != nil {
		t.Fatal(err)
	}

	res, err := s.Search(context.Background(), &db.SearchRequest{
		Product:     "ls8_scene",
		Expressions: []fields.Expression{expr},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 1 || len(res.Datasets) != 1 {
		t.Fatalf("total = %d, hits = %d", res.Total, len(res.Datasets))
	}
	if res.Datasets[0].ID != want {
		t.Errorf("hit = %s, want %s", res.Datasets[0].ID, want)
	}
}

func TestStore_SearchRangeOverlap(t *testing.T) {
	reg := testRegistry(t)
	s := testStore(t, reg)

	putScene(t, s, "ls8_scene", "LANDSAT_8", -36, -35, 149, 150)
	putScene(t, s, "ls8_scene", "LANDSAT_8", -20, -19, 149, 150)

	lat, _ := reg.Get("lat")
	expr, err := lat.Between(-37, -34)
	if err != nil {
		t.Fatal(err)
	}

	n, err := s.Count(context.Background(), &db.SearchRequest{
		Product:     "ls8_scene",
		Expressions: []fields.Expression{expr},
	})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestStore_ArchivedExcludedByDefault(t *testing.T) {
	reg := testRegistry(t)
	s := testStore(t, reg)

	id := putScene(t, s, "ls8_scene", "LANDSAT_8", -36, -35, 149, 150)
	if err := s.SetArchived(context.Background(), id, true); err != nil {
		t.Fatal(err)
	}

	n, err := s.Count(context.Background(), &db.SearchRequest{Product: "ls8_scene"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("count = %d, want 0", n)
	}

	n, err = s.Count(context.Background(), &db.SearchRequest{Product: "ls8_scene", WithArchived: true})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count with archived = %d, want 1", n)
	}
}

func TestStore_ExtentReducesToBBox(t *testing.T) {
	reg := testRegistry(t)
	s := testStore(t, reg)

	putScene(t, s, "ls8_scene", "LANDSAT_8", -36, -35, 149, 150)
	putScene(t, s, "ls8_scene", "LANDSAT_8", -20, -19, 120, 121)

	poly := geom.NewPolygonFlat(geom.XY, []float64{
		148, -37,
		151, -37,
		151, -34,
		148, -34,
		148, -37,
	}, []int{10})

	n, err := s.Count(context.Background(), &db.SearchRequest{Product: "ls8_scene", Extent: poly})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestStore_GetAndNotFound(t *testing.T) {
	reg := testRegistry(t)
	s := testStore(t, reg)

	id := putScene(t, s, "ls8_scene", "LANDSAT_8", -36, -35, 149, 150)

	rec, err := s.GetDataset(context.Background(), id)
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if rec.Product != "ls8_scene" {
		t.Errorf("product = %q", rec.Product)
	}

	if _, err := s.GetDataset(context.Background(), uuid.New()); !errors.Is(err, db.ErrDatasetNotFound) {
		t.Errorf("err = %v, want ErrDatasetNotFound", err)
	}
	if err := s.SetArchived(context.Background(), uuid.New(), true); !errors.Is(err, db.ErrDatasetNotFound) {
		t.Errorf("err = %v, want ErrDatasetNotFound", err)
	}
}

func TestStore_Pagination(t *testing.T) {
	reg := testRegistry(t)
	s := testStore(t, reg)

	for i := 0; i < 5; i++ {
		putScene(t, s, "ls8_scene", "LANDSAT_8", -36, -35, 149, 150)
	}

	res, err := s.Search(context.Background(), &db.SearchRequest{Product: "ls8_scene", Offset: 3, Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 5 {
		t.Errorf("total = %d, want 5", res.Total)
	}
	if len(res.Datasets) != 2 {
		t.Errorf("page size = %d, want 2", len(res.Datasets))
	}
}
