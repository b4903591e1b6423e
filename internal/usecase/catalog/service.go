// Package catalog manages the product registry: registration, field
// introspection, and matching candidate documents to products.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/datalode/geodex/internal/db"
	"github.com/datalode/geodex/internal/domain/document"
	"github.com/datalode/geodex/internal/domain/fields"
	"github.com/datalode/geodex/internal/domain/product"
)

// Service holds registered products and keeps the backend indexes in step.
type Service struct {
	indexer Indexer
	log     *zap.Logger

	mu       sync.RWMutex
	products map[string]*product.Product
	pending  map[string]bool
}

// New creates a catalog service.
func New(indexer Indexer, log *zap.Logger) *Service {
	return &Service{
		indexer:  indexer,
		log:      log,
		products: make(map[string]*product.Product),
		pending:  make(map[string]bool),
	}
}

// Add validates a product definition, builds its field registry and ensures
// the backend index exists. The name is reserved before EnsureIndex runs, so
// a concurrent Add of the same product reports ErrProductExists instead of
// overwriting the winner.
func (s *Service) Add(ctx context.Context, def product.Definition) (*product.Product, error) {
	p, err := product.New(def)
	if err != nil {
		return nil, fmt.Errorf("validate product: %w", err)
	}

	s.mu.Lock()
	if _, exists := s.products[p.Name()]; exists || s.pending[p.Name()] {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrProductExists, p.Name())
	}
	s.pending[p.Name()] = true
	s.mu.Unlock()

	if err := s.indexer.EnsureIndex(ctx, p.Name(), IndexDefinitionFor(p)); err != nil {
		s.mu.Lock()
		delete(s.pending, p.Name())
		s.mu.Unlock()
		return nil, fmt.Errorf("ensure index for %s: %w", p.Name(), err)
	}

	s.mu.Lock()
	s.products[p.Name()] = p
	delete(s.pending, p.Name())
	s.mu.Unlock()

	s.log.Info("product registered",
		zap.String("product", p.Name()),
		zap.Int("fields", len(p.Fields().Names())))
	return p, nil
}

// LoadFiles registers product definitions from YAML files. Each file may
// hold several documents.
func (s *Service) LoadFiles(ctx context.Context, paths ...string) error {
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read product file: %w", err)
		}

		dec := yaml.NewDecoder(bytes.NewReader(raw))
		for {
			var def product.Definition
			if err := dec.Decode(&def); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return fmt.Errorf("parse product file %s: %w", path, err)
			}
			if _, err := s.Add(ctx, def); err != nil {
				return fmt.Errorf("register product from %s: %w", path, err)
			}
		}
	}
	return nil
}

// Get returns a registered product by name.
func (s *Service) Get(name string) (*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, name)
	}
	return p, nil
}

// List returns all registered products sorted by name.
func (s *Service) List() []*product.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*product.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// FieldInfo describes one searchable field for introspection.
type FieldInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
	Indexed     bool   `json:"indexed"`
}

// DescribeFields lists a product's searchable fields in registry order.
func (s *Service) DescribeFields(name string) ([]FieldInfo, error) {
	p, err := s.Get(name)
	if err != nil {
		return nil, err
	}

	all := p.Fields().All()
	out := make([]FieldInfo, 0, len(all))
	for _, f := range all {
		out = append(out, FieldInfo{
			Name:        f.Name(),
			Description: f.Description(),
			Type:        f.TypeName(),
			Indexed:     f.Indexed(),
		})
	}
	return out, nil
}

// Match finds the product whose metadata template the document carries.
// Products are checked in name order; the first match wins.
func (s *Service) Match(doc document.Doc) (*product.Product, error) {
	for _, p := range s.List() {
		if p.Matches(doc) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: no product matches document", ErrProductNotFound)
}

// IndexDefinitionFor translates a product's field registry into a backend
// index definition: the record tags every dataset carries, then string
// fields as tags and interval fields as lo/hi numeric pairs.
func IndexDefinitionFor(p *product.Product) *db.IndexDefinition {
	b := db.NewIndex(p.Name()).
		Tag("id").
		Tag("product").
		Tag("archived")

	for _, f := range p.Fields().All() {
		if !f.Indexed() || !f.CanExtract() {
			continue
		}
		switch f.Name() {
		case "id", "product", "archived":
			continue // already covered by the record tags
		}
		if f.IndexKind() == fields.IndexString {
			b.Tag(f.Name())
			continue
		}
		b.Numeric(f.Name() + "_lo")
		b.Numeric(f.Name() + "_hi")
	}

	// Record tags guarantee a non-empty schema, so Build cannot fail for a
	// validated product.
	return b.MustBuild()
}
