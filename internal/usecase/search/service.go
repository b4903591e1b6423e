// Package search translates user queries into field expressions and runs
// them against the store: paged search, counting, and counting over time
// buckets.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	geom "github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/datalode/geodex/internal/db"
	"github.com/datalode/geodex/internal/domain/document"
	"github.com/datalode/geodex/internal/domain/fields"
	"github.com/datalode/geodex/internal/domain/product"
)

// Request is one user query against a product.
type Request struct {
	Product string
	Query   fields.Query

	// ReturnFields projects hits onto the named search fields instead of
	// returning the full metadata document.
	ReturnFields []string

	Extent       geom.T
	Offset       int
	Limit        int
	WithArchived bool
}

// Hit is one matching dataset.
type Hit struct {
	ID       uuid.UUID      `json:"id"`
	Product  string         `json:"product"`
	Archived bool           `json:"archived,omitempty"`
	Values   map[string]any `json:"values,omitempty"`
	Metadata document.Doc   `json:"metadata,omitempty"`
}

// Result is a page of hits plus the overall match count.
type Result struct {
	Total int   `json:"total"`
	Hits  []Hit `json:"hits"`
}

// Service runs search operations.
type Service struct {
	store   Store
	catalog Catalog
	log     *zap.Logger
}

// New creates a search service.
func New(store Store, catalog Catalog, log *zap.Logger) *Service {
	return &Service{store: store, catalog: catalog, log: log}
}

// Search translates the query and returns a page of matching datasets.
func (s *Service) Search(ctx context.Context, req *Request) (*Result, error) {
	p, dbq, err := s.translate(req)
	if err != nil {
		return nil, err
	}

	res, err := s.store.Search(ctx, dbq)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", req.Product, err)
	}

	result := &Result{Total: res.Total, Hits: make([]Hit, 0, len(res.Datasets))}
	for _, rec := range res.Datasets {
		hit, err := s.buildHit(p, rec, req.ReturnFields)
		if err != nil {
			return nil, err
		}
		result.Hits = append(result.Hits, hit)
	}

	s.log.Debug("search completed",
		zap.String("product", req.Product),
		zap.Int("terms", len(req.Query)),
		zap.Int("total", res.Total))
	return result, nil
}

// Count returns how many datasets match the query.
func (s *Service) Count(ctx context.Context, req *Request) (int, error) {
	_, dbq, err := s.translate(req)
	if err != nil {
		return 0, err
	}

	n, err := s.store.Count(ctx, dbq)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", req.Product, err)
	}
	return n, nil
}

// Period is the CountOverTime bucket width.
type Period string

const (
	// PeriodYear buckets by calendar step of one year from the range start.
	PeriodYear Period = "year"
	// PeriodMonth buckets by calendar step of one month from the range start.
	PeriodMonth Period = "month"
)

// TimeBucket is one CountOverTime slot. Start is inclusive, End exclusive
// (except the final bucket, which is clipped to the range end).
type TimeBucket struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Count int       `json:"count"`
}

// CountOverTime splits [start, end) into period-sized buckets and issues
// one count per bucket with a Between predicate on the time field added to
// the query.
func (s *Service) CountOverTime(ctx context.Context, req *Request, timeField string, start, end time.Time, period Period) ([]TimeBucket, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("time range start %s is not before end %s", start, end)
	}

	p, dbq, err := s.translate(req)
	if err != nil {
		return nil, err
	}
	f, ok := p.Fields().Get(timeField)
	if !ok {
		return nil, &fields.UnknownFieldError{Name: timeField}
	}

	var buckets []TimeBucket
	for cur := start; cur.Before(end); {
		next := stepPeriod(cur, period)
		if next.Equal(cur) {
			return nil, fmt.Errorf("unknown period %q", period)
		}
		bucketEnd := next
		if bucketEnd.After(end) {
			bucketEnd = end
		}

		expr, err := f.Between(cur, bucketEnd.Add(-time.Nanosecond))
		if err != nil {
			return nil, fmt.Errorf("bucket predicate on %s: %w", timeField, err)
		}

		bq := *dbq
		bq.Expressions = append(append([]fields.Expression{}, dbq.Expressions...), expr)

		n, err := s.store.Count(ctx, &bq)
		if err != nil {
			return nil, fmt.Errorf("count %s bucket %s: %w", req.Product, cur.Format(time.RFC3339), err)
		}

		buckets = append(buckets, TimeBucket{Start: cur, End: bucketEnd, Count: n})
		cur = next
	}
	return buckets, nil
}

func stepPeriod(t time.Time, period Period) time.Time {
	switch period {
	case PeriodYear:
		return t.AddDate(1, 0, 0)
	case PeriodMonth:
		return t.AddDate(0, 1, 0)
	default:
		return t
	}
}

func (s *Service) translate(req *Request) (*product.Product, *db.SearchRequest, error) {
	p, err := s.catalog.Get(req.Product)
	if err != nil {
		return nil, nil, err
	}

	exprs, err := fields.ToExpressions(p.Fields().Lookup(), req.Query)
	if err != nil {
		return nil, nil, fmt.Errorf("translate query: %w", err)
	}

	return p, &db.SearchRequest{
		Product:      req.Product,
		Expressions:  exprs,
		Extent:       req.Extent,
		Offset:       req.Offset,
		Limit:        req.Limit,
		WithArchived: req.WithArchived,
	}, nil
}

func (s *Service) buildHit(p *product.Product, rec *db.DatasetRecord, returnFields []string) (Hit, error) {
	hit := Hit{ID: rec.ID, Product: rec.Product, Archived: rec.Archived}

	if len(returnFields) == 0 {
		hit.Metadata = rec.Metadata
		return hit, nil
	}

	hit.Values = make(map[string]any, len(returnFields))
	for _, name := range returnFields {
		f, ok := p.Fields().Get(name)
		if !ok {
			return Hit{}, &fields.UnknownFieldError{Name: name}
		}
		if !f.CanExtract() {
			continue
		}
		v, err := f.Extract(rec.Metadata)
		if err != nil {
			return Hit{}, fmt.Errorf("extract %s: %w", name, err)
		}
		hit.Values[name] = v
	}
	return hit, nil
}
