package db

import (
	geom "github.com/twpayne/go-geom"

	"github.com/datalode/geodex/internal/domain/fields"
)

// SearchRequest is the input for a predicate search over indexed datasets.
// Expressions keep query order; drivers must render them deterministically.
type SearchRequest struct {
	Product     string
	Expressions []fields.Expression

	// Extent is an opaque spatial filter. Drivers reduce it to a
	// bounding box over the lat/lon range fields.
	Extent geom.T

	Offset       int
	Limit        int
	WithArchived bool
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total    int
	Datasets []*DatasetRecord
}
