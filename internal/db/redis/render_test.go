package redis

import (
	"strings"
	"testing"

	geom "github.com/twpayne/go-geom"

	"github.com/datalode/geodex/internal/db"
	"github.com/datalode/geodex/internal/domain/document"
	"github.com/datalode/geodex/internal/domain/fields"
)

func testFields(t *testing.T) (platform *fields.SimpleField, lat *fields.RangeField, tm *fields.DateField, sats *fields.SimpleField) {
	t.Helper()

	platform, err := fields.NewSimpleField("platform", "", true, []document.Offset{{"platform", "code"}}, fields.SelectionFirst)
	if err != nil {
		t.Fatal(err)
	}
	lat, err = fields.NewNumericRangeField("lat", "", true,
		[]document.Offset{{"extent", "lat", "min"}}, []document.Offset{{"extent", "lat", "max"}})
	if err != nil {
		t.Fatal(err)
	}
	tm, err = fields.NewDateField("time", "", true, []document.Offset{{"time"}}, fields.SelectionFirst)
	if err != nil {
		t.Fatal(err)
	}
	sats, err = fields.NewIntegerField("sats", "", true, []document.Offset{{"sats"}}, fields.SelectionFirst)
	if err != nil {
		t.Fatal(err)
	}
	return platform, lat, tm, sats
}

func mustExpr(t *testing.T) func(fields.Expression, error) fields.Expression {
	t.Helper()
	return func(expr fields.Expression, err error) fields.Expression {
		if err != nil {
			t.Fatal(err)
		}
		return expr
	}
}

func TestRenderQuery(t *testing.T) {
	platform, lat, tm, sats := testFields(t)
	must := mustExpr(t)

	tests := []struct {
		name string
		req  db.SearchRequest
		want string
	}{
		{
			name: "empty request matches everything live",
			req:  db.SearchRequest{WithArchived: true},
			want: "*",
		},
		{
			name: "product and archived filters",
			req:  db.SearchRequest{Product: "ls8_scene"},
			want: "@product:{ls8_scene} @archived:{false}",
		},
		{
			name: "string equality is a tag filter",
			req: db.SearchRequest{
				WithArchived: true,
				Expressions: []fields.Expression{
					must(platform.Equals("LANDSAT_8")),
				},
			},
			want: "@platform:{LANDSAT_8}",
		},
		{
			name: "tag values are escaped",
			req: db.SearchRequest{
				WithArchived: true,
				Expressions: []fields.Expression{
					must(platform.Equals("landsat 8")),
				},
			},
			want: `@platform:{landsat\ 8}`,
		},
		{
			name: "scalar equality pins both stored bounds",
			req: db.SearchRequest{
				WithArchived: true,
				Expressions: []fields.Expression{
					must(sats.Equals(4)),
				},
			},
			want: "@sats_lo:[4 4] @sats_hi:[4 4]",
		},
		{
			name: "range between is interval overlap",
			req: db.SearchRequest{
				WithArchived: true,
				Expressions: []fields.Expression{
					must(lat.Between(-36.5, -35)),
				},
			},
			want: "@lat_lo:[-inf -35] @lat_hi:[-36.5 +inf]",
		},
		{
			name: "inverted between matches nothing",
			req: db.SearchRequest{
				WithArchived: true,
				Expressions: []fields.Expression{
					must(lat.Between(-35, -36.5)),
				},
			},
			want: "@lat_lo:[1 0]",
		},
		{
			name: "half-bounded between leaves the other side open",
			req: db.SearchRequest{
				WithArchived: true,
				Expressions: []fields.Expression{
					must(lat.Between(-36.5, nil)),
				},
			},
			want: "@lat_lo:[-inf +inf] @lat_hi:[-36.5 +inf]",
		},
		{
			name: "range equality is containment",
			req: db.SearchRequest{
				WithArchived: true,
				Expressions: []fields.Expression{
					must(lat.Equals(-35.2)),
				},
			},
			want: "@lat_lo:[-inf -35.2] @lat_hi:[-35.2 +inf]",
		},
		{
			name: "datetime equality uses epoch milliseconds",
			req: db.SearchRequest{
				WithArchived: true,
				Expressions: []fields.Expression{
					must(tm.Equals("2014-07-26T23:48:00Z")),
				},
			},
			want: "@time_lo:[1406418480000 1406418480000] @time_hi:[1406418480000 1406418480000]",
		},
		{
			name: "day equality widens to the utc day window",
			req: db.SearchRequest{
				WithArchived: true,
				Expressions: []fields.Expression{
					must(tm.Day().Equals("2014-07-26")),
				},
			},
			want: "@time_lo:[1406332800000 (1406419200000]",
		},
		{
			name: "expression order is preserved",
			req: db.SearchRequest{
				Product: "ls8_scene",
				Expressions: []fields.Expression{
					must(platform.Equals("LANDSAT_8")),
					must(lat.Between(-36.5, -35)),
				},
			},
			want: "@product:{ls8_scene} @archived:{false} @platform:{LANDSAT_8} @lat_lo:[-inf -35] @lat_hi:[-36.5 +inf]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := renderQuery(&tt.req)
			if err != nil {
				t.Fatalf("renderQuery: %v", err)
			}
			if got != tt.want {
				t.Errorf("query = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderQuery_Not(t *testing.T) {
	platform, _, _, _ := testFields(t)

	lookup := func(name string) (fields.Field, bool) {
		if name == "platform" {
			return platform, true
		}
		return nil, false
	}
	exprs, err := fields.ToExpressions(lookup, fields.Query{fields.Q("platform", fields.Not{Value: "LANDSAT_8"})})
	if err != nil {
		t.Fatal(err)
	}

	got, err := renderQuery(&db.SearchRequest{WithArchived: true, Expressions: exprs})
	if err != nil {
		t.Fatalf("renderQuery: %v", err)
	}
	if got != "-(@platform:{LANDSAT_8})" {
		t.Errorf("query = %q", got)
	}
}

func TestRenderQuery_Extent(t *testing.T) {
	poly := geom.NewPolygonFlat(geom.XY, []float64{
		149, -35,
		152, -35,
		152, -32,
		149, -32,
		149, -35,
	}, []int{10})

	got, err := renderQuery(&db.SearchRequest{WithArchived: true, Extent: poly})
	if err != nil {
		t.Fatalf("renderQuery: %v", err)
	}

	want := "@lat_lo:[-inf -32] @lat_hi:[-35 +inf] @lon_lo:[-inf 152] @lon_hi:[149 +inf]"
	if got != want {
		t.Errorf("query = %q, want %q", got, want)
	}
}

func TestRenderQuery_StringBetweenUnsupported(t *testing.T) {
	platform, _, _, _ := testFields(t)
	must := mustExpr(t)

	expr := must(platform.Between("a", "z"))
	_, err := renderQuery(&db.SearchRequest{WithArchived: true, Expressions: []fields.Expression{expr}})
	if err == nil {
		t.Fatal("expected error for lexical range")
	}
	if !strings.Contains(err.Error(), "platform") {
		t.Errorf("error must name the field: %v", err)
	}
}
