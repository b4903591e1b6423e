package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/datalode/geodex/internal/domain/document"
)

// Store is the main storage facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	DatasetStore
	IndexStore
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatasetRecord is the persisted form of a dataset.
type DatasetRecord struct {
	ID       uuid.UUID
	Product  string
	Metadata document.Doc
	Archived bool
	Added    time.Time
}

// DatasetStore provides dataset lifecycle operations. PutDataset writes the
// record and its index entries together; backends with transactions apply
// them atomically.
type DatasetStore interface {
	PutDataset(ctx context.Context, rec *DatasetRecord, entries []IndexEntry) error
	GetDataset(ctx context.Context, id uuid.UUID) (*DatasetRecord, error)
	SetArchived(ctx context.Context, id uuid.UUID, archived bool) error
}

// IndexStore provides search-index lifecycle operations. The definition is
// derived from a product's field registry at registration time.
type IndexStore interface {
	EnsureIndex(ctx context.Context, product string, def *IndexDefinition) error
}

// Searcher answers predicate queries over indexed datasets.
type Searcher interface {
	Search(ctx context.Context, q *SearchRequest) (*SearchResult, error)
	Count(ctx context.Context, q *SearchRequest) (int, error)
}
