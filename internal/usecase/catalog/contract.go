package catalog

import (
	"context"
	"errors"

	"github.com/datalode/geodex/internal/db"
)

// Sentinel errors for product registration and lookup.
var (
	ErrProductNotFound = errors.New("catalog: product not found")
	ErrProductExists   = errors.New("catalog: product already registered")
)

// Indexer prepares the backend search index for a registered product.
type Indexer interface {
	EnsureIndex(ctx context.Context, product string, def *db.IndexDefinition) error
}
