package geodex

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/datalode/geodex/internal/domain/document"
	"github.com/datalode/geodex/internal/domain/product"
	datasetrepo "github.com/datalode/geodex/internal/repository/dataset"
	cataloguc "github.com/datalode/geodex/internal/usecase/catalog"
)

// ProductDefinition declares a product: its metadata template and the
// searchable fields extracted from every dataset document indexed under it.
type ProductDefinition struct {
	Name         string
	Description  string
	Metadata     map[string]any
	SearchFields map[string]any
}

// FieldInfo describes one searchable field of a registered product.
type FieldInfo struct {
	Name        string
	Description string
	Type        string
	Indexed     bool
}

// ProductService manages the product catalog.
type ProductService struct {
	svc *cataloguc.Service
}

// Add registers a product and ensures its search index exists.
func (s *ProductService) Add(ctx context.Context, def ProductDefinition) error {
	_, err := s.svc.Add(ctx, product.Definition{
		Name:         def.Name,
		Description:  def.Description,
		Metadata:     def.Metadata,
		SearchFields: def.SearchFields,
	})
	if err != nil {
		return fmt.Errorf("add product: %w", err)
	}
	return nil
}

// LoadFiles registers products from YAML definition files.
func (s *ProductService) LoadFiles(ctx context.Context, paths ...string) error {
	if err := s.svc.LoadFiles(ctx, paths...); err != nil {
		return fmt.Errorf("load product files: %w", err)
	}
	return nil
}

// List returns the registered product names.
func (s *ProductService) List() []string {
	products := s.svc.List()
	names := make([]string, len(products))
	for i, p := range products {
		names[i] = p.Name()
	}
	return names
}

// Describe returns the searchable fields of a product.
func (s *ProductService) Describe(name string) ([]FieldInfo, error) {
	info, err := s.svc.DescribeFields(name)
	if err != nil {
		return nil, fmt.Errorf("describe product: %w", err)
	}
	out := make([]FieldInfo, len(info))
	for i, f := range info {
		out[i] = FieldInfo{
			Name:        f.Name,
			Description: f.Description,
			Type:        f.Type,
			Indexed:     f.Indexed,
		}
	}
	return out, nil
}

// Dataset is a stored dataset record.
type Dataset struct {
	ID       uuid.UUID
	Product  string
	Archived bool
	Metadata map[string]any
}

// DatasetService manages the dataset lifecycle.
type DatasetService struct {
	repo *datasetrepo.Repo
}

// Add indexes a metadata document. With an empty product name the product is
// resolved by metadata template match.
func (s *DatasetService) Add(ctx context.Context, productName string, doc map[string]any) (uuid.UUID, error) {
	id, err := s.repo.Add(ctx, productName, document.Doc(doc))
	if err != nil {
		return uuid.Nil, fmt.Errorf("add dataset: %w", err)
	}
	return id, nil
}

// Get returns a dataset by ID.
func (s *DatasetService) Get(ctx context.Context, id uuid.UUID) (*Dataset, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Dataset{
		ID:       rec.ID,
		Product:  rec.Product,
		Archived: rec.Archived,
		Metadata: rec.Metadata,
	}, nil
}

// Archive soft-deletes a dataset.
func (s *DatasetService) Archive(ctx context.Context, id uuid.UUID) error {
	return s.repo.Archive(ctx, id)
}

// Restore reverses Archive.
func (s *DatasetService) Restore(ctx context.Context, id uuid.UUID) error {
	return s.repo.Restore(ctx, id)
}
