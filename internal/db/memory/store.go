// Package memory implements db.Store over an in-process map. Predicates
// run through the same expression evaluation the fields engine defines, so
// it doubles as the reference backend in tests and the search tool's
// offline mode.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/datalode/geodex/internal/db"
	"github.com/datalode/geodex/internal/domain/fields"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

var errNoFields = errors.New("no field registry for product")

// FieldLookup resolves a product's field registry, used to translate the
// spatial extent into lat/lon predicates.
type FieldLookup func(product string) (fields.Lookup, bool)

// Store is an in-memory db.Store.
type Store struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*db.DatasetRecord

	fieldsFor FieldLookup
}

// NewStore creates an empty in-memory store. lookup may be nil when extent
// queries are not needed.
func NewStore(lookup FieldLookup) *Store {
	return &Store{
		records:   make(map[uuid.UUID]*db.DatasetRecord),
		fieldsFor: lookup,
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// WaitForReady always succeeds.
func (s *Store) WaitForReady(context.Context, time.Duration) error { return nil }

// EnsureIndex validates the definition; nothing to create.
func (s *Store) EnsureIndex(_ context.Context, _ string, def *db.IndexDefinition) error {
	if def != nil {
		return def.Validate()
	}
	return nil
}

// PutDataset stores a copy of the record. Index entries are not kept: the
// store evaluates predicates directly against the metadata document.
func (s *Store) PutDataset(_ context.Context, rec *db.DatasetRecord, _ []db.IndexEntry) error {
	cp := *rec
	if cp.Added.IsZero() {
		cp.Added = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = &cp
	return nil
}

// GetDataset returns the stored record.
func (s *Store) GetDataset(_ context.Context, id uuid.UUID) (*db.DatasetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, db.ErrDatasetNotFound
	}
	cp := *rec
	return &cp, nil
}

// SetArchived flips the archived flag.
func (s *Store) SetArchived(_ context.Context, id uuid.UUID, archived bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return db.ErrDatasetNotFound
	}
	rec.Archived = archived
	return nil
}

// Search evaluates every expression against each candidate's metadata.
func (s *Store) Search(ctx context.Context, q *db.SearchRequest) (*db.SearchResult, error) {
	matches, err := s.matches(ctx, q)
	if err != nil {
		return nil, err
	}

	total := len(matches)
	if q.Offset > 0 {
		if q.Offset >= len(matches) {
			matches = nil
		} else {
			matches = matches[q.Offset:]
		}
	}
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}

	return &db.SearchResult{Total: total, Datasets: matches}, nil
}

// Count evaluates the same predicates without materializing results.
func (s *Store) Count(ctx context.Context, q *db.SearchRequest) (int, error) {
	matches, err := s.matches(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

func (s *Store) matches(_ context.Context, q *db.SearchRequest) ([]*db.DatasetRecord, error) {
	exprs := q.Expressions
	if q.Extent != nil {
		extra, err := s.extentExpressions(q)
		if err != nil {
			return nil, err
		}
		exprs = append(append([]fields.Expression{}, exprs...), extra...)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*db.DatasetRecord
	for _, rec := range s.records {
		if q.Product != "" && rec.Product != q.Product {
			continue
		}
		if rec.Archived && !q.WithArchived {
			continue
		}

		match := true
		for _, expr := range exprs {
			ok, err := expr.Evaluate(rec.Metadata)
			if err != nil {
				return nil, err
			}
			if !ok {
				match = false
				break
			}
		}
		if !match {
			continue
		}

		cp := *rec
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Added.Equal(out[j].Added) {
			return out[i].Added.Before(out[j].Added)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// extentExpressions reduces the geometry to its bounding box and expresses
// it as Between predicates over the product's lat/lon fields.
func (s *Store) extentExpressions(q *db.SearchRequest) ([]fields.Expression, error) {
	if s.fieldsFor == nil {
		return nil, &db.Error{Op: db.OpSearch, Err: errNoFields}
	}
	lookup, ok := s.fieldsFor(q.Product)
	if !ok {
		return nil, &db.Error{Op: db.OpSearch, Err: errNoFields}
	}

	bounds := q.Extent.Bounds()
	axes := []struct {
		name     string
		min, max float64
	}{
		{"lat", bounds.Min(1), bounds.Max(1)},
		{"lon", bounds.Min(0), bounds.Max(0)},
	}

	out := make([]fields.Expression, 0, len(axes))
	for _, ax := range axes {
		f, ok := lookup(ax.name)
		if !ok {
			continue // product has no spatial fields
		}
		expr, err := f.Between(ax.min, ax.max)
		if err != nil {
			return nil, err
		}
		out = append(out, expr)
	}
	return out, nil
}
