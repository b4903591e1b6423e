package search

import (
	"context"

	"github.com/datalode/geodex/internal/db"
	"github.com/datalode/geodex/internal/domain/product"
)

// Store answers predicate queries over indexed datasets.
type Store interface {
	Search(ctx context.Context, q *db.SearchRequest) (*db.SearchResult, error)
	Count(ctx context.Context, q *db.SearchRequest) (int, error)
}

// Catalog resolves registered products.
type Catalog interface {
	Get(name string) (*product.Product, error)
}
