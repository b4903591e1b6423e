package chi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datalode/geodex/internal/db/memory"
	"github.com/datalode/geodex/internal/domain/fields"
	"github.com/datalode/geodex/internal/repository/dataset"
	cataloguc "github.com/datalode/geodex/internal/usecase/catalog"
	searchuc "github.com/datalode/geodex/internal/usecase/search"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()

	var cat *cataloguc.Service
	store := memory.NewStore(func(name string) (fields.Lookup, bool) {
		p, err := cat.Get(name)
		if err != nil {
			return nil, false
		}
		return p.Fields().Lookup(), true
	})
	cat = cataloguc.New(store, zap.NewNop())

	datasets := dataset.New(store, cat, zap.NewNop(), false)
	search := searchuc.New(store, cat, zap.NewNop())

	return NewServer(cat, datasets, search, store, 100, zap.NewNop()).Router()
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func ls8Payload() map[string]any {
	return map[string]any{
		"name": "ls8_scene",
		"metadata": map[string]any{
			"platform": map[string]any{"code": "LANDSAT_8"},
		},
		"search_fields": map[string]any{
			"platform": map[string]any{"offset": []any{"platform", "code"}},
			"lat": map[string]any{
				"type":       "numeric-range",
				"min_offset": []any{"extent", "lat", "min"},
				"max_offset": []any{"extent", "lat", "max"},
			},
			"time": map[string]any{"type": "datetime", "offset": []any{"time"}},
		},
	}
}

func ls7Payload() map[string]any {
	p := ls8Payload()
	p["name"] = "ls7_scene"
	p["metadata"] = map[string]any{
		"platform": map[string]any{"code": "LANDSAT_7"},
	}
	return p
}

func sceneBody(productName, platform, ts string, latMin, latMax float64) map[string]any {
	return map[string]any{
		"product": productName,
		"document": map[string]any{
			"platform": map[string]any{"code": platform},
			"time":     ts,
			"extent":   map[string]any{"lat": map[string]any{"min": latMin, "max": latMax}},
		},
	}
}

func mustRegister(t *testing.T, router chi.Router, payload map[string]any) {
	t.Helper()
	if rr := doJSON(t, router, "POST", "/api/v1/products", payload); rr.Code != http.StatusCreated {
		t.Fatalf("create product: status %d: %s", rr.Code, rr.Body.String())
	}
}

func mustAddScene(t *testing.T, router chi.Router, platform, ts string, latMin, latMax float64) string {
	t.Helper()
	return mustAddSceneFor(t, router, "ls8_scene", platform, ts, latMin, latMax)
}

func mustAddSceneFor(t *testing.T, router chi.Router, productName, platform, ts string, latMin, latMax float64) string {
	t.Helper()
	rr := doJSON(t, router, "POST", "/api/v1/datasets", sceneBody(productName, platform, ts, latMin, latMax))
	if rr.Code != http.StatusCreated {
		t.Fatalf("add dataset: status %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp["id"]
}

func TestServer_CreateProduct(t *testing.T) {
	router := newTestRouter(t)

	rr := doJSON(t, router, "POST", "/api/v1/products", ls8Payload())
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Name   string `json:"name"`
		Fields []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Name != "ls8_scene" {
		t.Errorf("name = %q", resp.Name)
	}
	types := map[string]string{}
	for _, f := range resp.Fields {
		types[f.Name] = f.Type
	}
	if types["lat"] != "numeric-range" {
		t.Errorf("lat type = %q", types["lat"])
	}

	if rr := doJSON(t, router, "POST", "/api/v1/products", ls8Payload()); rr.Code != http.StatusConflict {
		t.Errorf("duplicate product: status = %d", rr.Code)
	}
}

func TestServer_CreateProductBadField(t *testing.T) {
	router := newTestRouter(t)

	payload := ls8Payload()
	payload["search_fields"].(map[string]any)["gsi"] = map[string]any{"type": "ground-station"}

	rr := doJSON(t, router, "POST", "/api/v1/products", payload)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
}

func TestServer_DatasetLifecycle(t *testing.T) {
	router := newTestRouter(t)
	mustRegister(t, router, ls8Payload())

	id := mustAddScene(t, router, "LANDSAT_8", "2014-07-26T23:48:00Z", -36.5, -35.0)

	rr := doJSON(t, router, "GET", "/api/v1/datasets/"+id, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: status %d", rr.Code)
	}
	var rec struct {
		Product  string `json:"product"`
		Archived bool   `json:"archived"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.Product != "ls8_scene" || rec.Archived {
		t.Errorf("record = %+v", rec)
	}

	if rr := doJSON(t, router, "POST", "/api/v1/datasets/"+id+"/archive", nil); rr.Code != http.StatusNoContent {
		t.Fatalf("archive: status %d", rr.Code)
	}
	if rr := doJSON(t, router, "POST", "/api/v1/datasets/"+id+"/restore", nil); rr.Code != http.StatusNoContent {
		t.Fatalf("restore: status %d", rr.Code)
	}

	if rr := doJSON(t, router, "GET", "/api/v1/datasets/"+uuid.NewString(), nil); rr.Code != http.StatusNotFound {
		t.Errorf("missing dataset: status %d", rr.Code)
	}
	if rr := doJSON(t, router, "GET", "/api/v1/datasets/not-a-uuid", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("bad id: status %d", rr.Code)
	}
}

func TestServer_Search(t *testing.T) {
	router := newTestRouter(t)
	mustRegister(t, router, ls8Payload())
	mustRegister(t, router, ls7Payload())

	want := mustAddScene(t, router, "LANDSAT_8", "2014-07-26T23:48:00Z", -36.5, -35.0)
	mustAddSceneFor(t, router, "ls7_scene", "LANDSAT_7", "2014-07-26T23:48:00Z", -36.5, -35.0)

	rr := doJSON(t, router, "POST", "/api/v1/products/ls8_scene/search", map[string]any{
		"query": map[string]any{
			"platform": "LANDSAT_8",
			"lat":      map[string]any{"begin": -37, "end": -36},
		},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	var res struct {
		Total int `json:"total"`
		Hits  []struct {
			ID string `json:"id"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 || len(res.Hits) != 1 || res.Hits[0].ID != want {
		t.Errorf("result = %+v, want single hit %s", res, want)
	}
}

func TestServer_SearchUnknownField(t *testing.T) {
	router := newTestRouter(t)
	mustRegister(t, router, ls8Payload())

	rr := doJSON(t, router, "POST", "/api/v1/products/ls8_scene/search", map[string]any{
		"query": map[string]any{"no_such": 1},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
}

func TestServer_SearchUnknownProduct(t *testing.T) {
	router := newTestRouter(t)

	rr := doJSON(t, router, "POST", "/api/v1/products/nope/search", map[string]any{})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
}

func TestServer_SearchLimitTooLarge(t *testing.T) {
	router := newTestRouter(t)
	mustRegister(t, router, ls8Payload())

	rr := doJSON(t, router, "POST", "/api/v1/products/ls8_scene/search", map[string]any{"limit": 1000})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
}

func TestServer_Count(t *testing.T) {
	router := newTestRouter(t)
	mustRegister(t, router, ls8Payload())
	mustAddScene(t, router, "LANDSAT_8", "2014-07-26T23:48:00Z", -36.5, -35.0)
	mustAddScene(t, router, "LANDSAT_8", "2015-03-01T01:00:00Z", -20.0, -19.0)

	rr := doJSON(t, router, "POST", "/api/v1/products/ls8_scene/count", map[string]any{
		"extent": map[string]any{"lat": []float64{-37, -30}, "lon": []float64{-180, 180}},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var res map[string]int
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res["total"] != 1 {
		t.Errorf("total = %d, want 1", res["total"])
	}
}

func TestServer_Summary(t *testing.T) {
	router := newTestRouter(t)
	mustRegister(t, router, ls8Payload())
	mustAddScene(t, router, "LANDSAT_8", "2014-07-26T23:48:00Z", -36.5, -35.0)
	mustAddScene(t, router, "LANDSAT_8", "2015-03-01T01:00:00Z", -36.5, -35.0)

	rr := doJSON(t, router, "POST", "/api/v1/products/ls8_scene/summary", map[string]any{
		"time_field": "time",
		"start":      "2014-01-01T00:00:00Z",
		"end":        "2016-01-01T00:00:00Z",
		"period":     "year",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var res struct {
		Buckets []struct {
			Count int `json:"count"`
		} `json:"buckets"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Buckets) != 2 {
		t.Fatalf("buckets = %d, want 2", len(res.Buckets))
	}
	if res.Buckets[0].Count != 1 || res.Buckets[1].Count != 1 {
		t.Errorf("bucket counts = %d, %d", res.Buckets[0].Count, res.Buckets[1].Count)
	}
}

func TestServer_Health(t *testing.T) {
	router := newTestRouter(t)

	rr := doJSON(t, router, "GET", "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := rr.Body.String(); !bytes.Contains([]byte(body), []byte("healthy")) {
		t.Errorf("body = %s", body)
	}
}

func TestQueryFromPayload(t *testing.T) {
	q := queryFromPayload(map[string]any{
		"platform": "LANDSAT_8",
		"lat":      map[string]any{"begin": -37.0, "end": -36.0},
		"format":   map[string]any{"not": "GeoTIFF"},
	})

	if len(q) != 3 {
		t.Fatalf("terms = %d, want 3", len(q))
	}
	// Keys are sorted: format, lat, platform.
	if _, ok := q[0].Value.(fields.Not); !ok {
		t.Errorf("format value = %T, want Not", q[0].Value)
	}
	r, ok := q[1].Value.(fields.Range)
	if !ok {
		t.Fatalf("lat value = %T, want Range", q[1].Value)
	}
	if fmt.Sprint(r.Begin) != "-37" || fmt.Sprint(r.End) != "-36" {
		t.Errorf("lat range = %v", r)
	}
	if q[2].Value != "LANDSAT_8" {
		t.Errorf("platform value = %v", q[2].Value)
	}
}
