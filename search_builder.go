package geodex

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twpayne/go-geom"

	"github.com/datalode/geodex/internal/domain/fields"
	searchuc "github.com/datalode/geodex/internal/usecase/search"
)

// Hit is one matching dataset.
type Hit struct {
	ID       uuid.UUID
	Product  string
	Archived bool

	// Values holds the projected field values when Select was used.
	Values map[string]any

	// Metadata is the full document, set when no projection was requested.
	Metadata map[string]any
}

// Result is a page of hits plus the overall match count.
type Result struct {
	Total int
	Hits  []Hit
}

// Period is a time bucketing granularity.
type Period string

const (
	PeriodYear  Period = Period(searchuc.PeriodYear)
	PeriodMonth Period = Period(searchuc.PeriodMonth)
)

// TimeBucket is one slot of a count-over-time summary.
type TimeBucket struct {
	Start time.Time
	End   time.Time
	Count int
}

// SearchBuilder is a fluent builder for dataset queries.
type SearchBuilder struct {
	svc     *searchuc.Service
	product string

	query        fields.Query
	returnFields []string
	extent       geom.T
	offset       int
	limit        int
	withArchived bool
}

// Where adds an equality predicate. For range fields equality means "value
// falls within the recorded range".
func (b *SearchBuilder) Where(field string, value any) *SearchBuilder {
	b.query = append(b.query, fields.Q(field, value))
	return b
}

// Between adds a closed-interval predicate. Either bound may be nil.
func (b *SearchBuilder) Between(field string, low, high any) *SearchBuilder {
	b.query = append(b.query, fields.Q(field, fields.Range{Begin: low, End: high}))
	return b
}

// Not adds a negated equality predicate.
func (b *SearchBuilder) Not(field string, value any) *SearchBuilder {
	b.query = append(b.query, fields.Q(field, fields.Not{Value: value}))
	return b
}

// Select projects hits onto the named search fields instead of returning the
// full metadata document.
func (b *SearchBuilder) Select(fields ...string) *SearchBuilder {
	b.returnFields = fields
	return b
}

// Extent restricts results to datasets whose spatial extent overlaps the
// given bounding box.
func (b *SearchBuilder) Extent(latMin, latMax, lonMin, lonMax float64) *SearchBuilder {
	b.extent = geom.NewPolygonFlat(geom.XY, []float64{
		lonMin, latMin,
		lonMax, latMin,
		lonMax, latMax,
		lonMin, latMax,
		lonMin, latMin,
	}, []int{10})
	return b
}

// Offset skips the first n matches.
func (b *SearchBuilder) Offset(n int) *SearchBuilder {
	b.offset = n
	return b
}

// Limit caps the number of returned hits.
func (b *SearchBuilder) Limit(n int) *SearchBuilder {
	b.limit = n
	return b
}

// IncludeArchived includes archived datasets, which are excluded by default.
func (b *SearchBuilder) IncludeArchived() *SearchBuilder {
	b.withArchived = true
	return b
}

func (b *SearchBuilder) request() *searchuc.Request {
	return &searchuc.Request{
		Product:      b.product,
		Query:        b.query,
		ReturnFields: b.returnFields,
		Extent:       b.extent,
		Offset:       b.offset,
		Limit:        b.limit,
		WithArchived: b.withArchived,
	}
}

// Do executes the query and returns a page of hits.
func (b *SearchBuilder) Do(ctx context.Context) (*Result, error) {
	res, err := b.svc.Search(ctx, b.request())
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	out := &Result{Total: res.Total, Hits: make([]Hit, len(res.Hits))}
	for i, h := range res.Hits {
		out.Hits[i] = Hit{
			ID:       h.ID,
			Product:  h.Product,
			Archived: h.Archived,
			Values:   h.Values,
			Metadata: h.Metadata,
		}
	}
	return out, nil
}

// Count executes the query and returns only the match count.
func (b *SearchBuilder) Count(ctx context.Context) (int, error) {
	n, err := b.svc.Count(ctx, b.request())
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// CountOverTime buckets match counts over a datetime field.
func (b *SearchBuilder) CountOverTime(
	ctx context.Context, field string, start, end time.Time, period Period,
) ([]TimeBucket, error) {
	buckets, err := b.svc.CountOverTime(ctx, b.request(), field, start, end, searchuc.Period(period))
	if err != nil {
		return nil, fmt.Errorf("count over time: %w", err)
	}
	out := make([]TimeBucket, len(buckets))
	for i, bk := range buckets {
		out[i] = TimeBucket{Start: bk.Start, End: bk.End, Count: bk.Count}
	}
	return out, nil
}
