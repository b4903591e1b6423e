package catalog

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/datalode/geodex/internal/db"
	"github.com/datalode/geodex/internal/domain/document"
	"github.com/datalode/geodex/internal/domain/product"
)

type fakeIndexer struct {
	products []string
	defs     []*db.IndexDefinition
	err      error
}

func (f *fakeIndexer) EnsureIndex(_ context.Context, product string, def *db.IndexDefinition) error {
	if f.err != nil {
		return f.err
	}
	f.products = append(f.products, product)
	f.defs = append(f.defs, def)
	return nil
}

func ls8Definition() product.Definition {
	return product.Definition{
		Name:        "ls8_scene",
		Description: "Landsat 8 scenes",
		Metadata:    map[string]any{"platform": map[string]any{"code": "LANDSAT_8"}},
		SearchFields: map[string]any{
			"platform": map[string]any{"offset": []any{"platform", "code"}},
			"lat": map[string]any{
				"type":       "numeric-range",
				"min_offset": []any{"extent", "lat", "min"},
				"max_offset": []any{"extent", "lat", "max"},
			},
		},
	}
}

func TestService_Add(t *testing.T) {
	idx := &fakeIndexer{}
	svc := New(idx, zap.NewNop())

	p, err := svc.Add(context.Background(), ls8Definition())
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if p.Name() != "ls8_scene" {
		t.Errorf("name = %q", p.Name())
	}
	if len(idx.products) != 1 || idx.products[0] != "ls8_scene" {
		t.Errorf("indexer saw %v", idx.products)
	}

	if _, err := svc.Add(context.Background(), ls8Definition()); !errors.Is(err, ErrProductExists) {
		t.Errorf("duplicate err = %v, want ErrProductExists", err)
	}
}

// gatedIndexer signals when EnsureIndex is entered and blocks until released,
// holding a registration mid-flight.
type gatedIndexer struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gatedIndexer) EnsureIndex(context.Context, string, *db.IndexDefinition) error {
	close(g.entered)
	<-g.release
	return nil
}

func TestService_AddConcurrentDuplicate(t *testing.T) {
	idx := &gatedIndexer{entered: make(chan struct{}), release: make(chan struct{})}
	svc := New(idx, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := svc.Add(context.Background(), ls8Definition())
		done <- err
	}()

	// While the first Add is inside EnsureIndex, the name must already be
	// reserved.
	<-idx.entered
	if _, err := svc.Add(context.Background(), ls8Definition()); !errors.Is(err, ErrProductExists) {
		t.Errorf("mid-flight duplicate err = %v, want ErrProductExists", err)
	}

	close(idx.release)
	if err := <-done; err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if _, err := svc.Get("ls8_scene"); err != nil {
		t.Errorf("winner not registered: %v", err)
	}
}

func TestService_AddRejectsBadDefinition(t *testing.T) {
	svc := New(&fakeIndexer{}, zap.NewNop())

	def := ls8Definition()
	def.SearchFields["broken"] = map[string]any{"type": "no-such-type", "offset": []any{"x"}}

	if _, err := svc.Add(context.Background(), def); err == nil {
		t.Fatal("expected error for unknown field type")
	}
}

func TestService_AddIndexerFailure(t *testing.T) {
	idx := &fakeIndexer{err: errors.New("backend down")}
	svc := New(idx, zap.NewNop())

	if _, err := svc.Add(context.Background(), ls8Definition()); err == nil {
		t.Fatal("expected error when indexer fails")
	}
	if _, err := svc.Get("ls8_scene"); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("product must not be registered after indexer failure: %v", err)
	}
}

func TestIndexDefinitionFor(t *testing.T) {
	p, err := product.New(ls8Definition())
	if err != nil {
		t.Fatal(err)
	}

	def := IndexDefinitionFor(p)

	got := make(map[string]db.IndexFieldType, len(def.Fields))
	for _, f := range def.Fields {
		got[f.Name] = f.Type
	}

	for _, name := range []string{"id", "product", "archived", "platform"} {
		if typ, ok := got[name]; !ok || typ != db.IndexFieldTag {
			t.Errorf("field %s: type %v, present %v; want tag", name, typ, ok)
		}
	}
	for _, name := range []string{"lat_lo", "lat_hi"} {
		if typ, ok := got[name]; !ok || typ != db.IndexFieldNumeric {
			t.Errorf("field %s: type %v, present %v; want numeric", name, typ, ok)
		}
	}
	if _, ok := got["metadata_doc"]; ok {
		t.Error("non-indexed native field must not enter the schema")
	}
}

func TestService_DescribeFields(t *testing.T) {
	svc := New(&fakeIndexer{}, zap.NewNop())
	if _, err := svc.Add(context.Background(), ls8Definition()); err != nil {
		t.Fatal(err)
	}

	infos, err := svc.DescribeFields("ls8_scene")
	if err != nil {
		t.Fatalf("DescribeFields: %v", err)
	}

	byName := make(map[string]FieldInfo, len(infos))
	for _, fi := range infos {
		byName[fi.Name] = fi
	}
	if fi, ok := byName["lat"]; !ok || fi.Type != "numeric-range" {
		t.Errorf("lat info = %+v, present %v", fi, ok)
	}
	if fi, ok := byName["id"]; !ok || fi.Indexed {
		t.Errorf("id info = %+v, present %v; native fields are not indexed", fi, ok)
	}

	if _, err := svc.DescribeFields("nope"); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("err = %v, want ErrProductNotFound", err)
	}
}

func TestService_Match(t *testing.T) {
	svc := New(&fakeIndexer{}, zap.NewNop())
	if _, err := svc.Add(context.Background(), ls8Definition()); err != nil {
		t.Fatal(err)
	}

	other := ls8Definition()
	other.Name = "ls7_scene"
	other.Metadata = map[string]any{"platform": map[string]any{"code": "LANDSAT_7"}}
	if _, err := svc.Add(context.Background(), other); err != nil {
		t.Fatal(err)
	}

	doc := document.Doc{
		"platform": map[string]any{"code": "LANDSAT_7"},
		"extent":   map[string]any{"lat": map[string]any{"min": -36.0, "max": -35.0}},
	}
	p, err := svc.Match(doc)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if p.Name() != "ls7_scene" {
		t.Errorf("matched %q, want ls7_scene", p.Name())
	}

	if _, err := svc.Match(document.Doc{"platform": map[string]any{"code": "SENTINEL_2"}}); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("err = %v, want ErrProductNotFound", err)
	}
}
