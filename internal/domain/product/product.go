// Package product defines the catalog's product (dataset type) resource: a
// named metadata template plus the searchable-field definitions datasets
// of that product are indexed under.
package product

import (
	"errors"
	"fmt"

	"github.com/datalode/geodex/internal/domain/document"
	"github.com/datalode/geodex/internal/domain/fields"
)

// Definition is the declarative product document, usually loaded from YAML.
type Definition struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Metadata is the template a dataset document must contain to belong
	// to this product.
	Metadata map[string]any `yaml:"metadata"`

	// SearchFields is the per-field definition document parsed by the
	// fields engine.
	SearchFields map[string]any `yaml:"search_fields"`
}

// Product is an immutable, validated product with its field registry built.
// Safe for concurrent use.
type Product struct {
	def    Definition
	fields *fields.Registry
}

// New validates a definition and builds the product's field registry.
func New(def Definition) (*Product, error) {
	if def.Name == "" {
		return nil, errors.New("product name is required")
	}
	if !validName(def.Name) {
		return nil, fmt.Errorf("invalid product name %q: only word characters allowed", def.Name)
	}

	reg, err := fields.DatasetFields(def.SearchFields)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", def.Name, err)
	}
	return &Product{def: def, fields: reg}, nil
}

// Name returns the product name.
func (p *Product) Name() string { return p.def.Name }

// Description returns the product description.
func (p *Product) Description() string { return p.def.Description }

// Fields returns the product's field registry.
func (p *Product) Fields() *fields.Registry { return p.fields }

// Definition returns a copy of the declarative document.
func (p *Product) Definition() Definition { return p.def }

// Matches reports whether a dataset document carries this product's
// metadata template.
func (p *Product) Matches(doc document.Doc) bool {
	return document.Contains(doc, p.def.Metadata)
}

func validName(s string) bool {
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if !isAlpha && !isDigit && r != '_' {
			return false
		}
	}
	return true
}
