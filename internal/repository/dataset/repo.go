// Package dataset glues the catalog, the field extraction machinery and the
// storage backend into the dataset lifecycle: index, fetch, archive, restore.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datalode/geodex/internal/db"
	"github.com/datalode/geodex/internal/domain/document"
	"github.com/datalode/geodex/internal/domain/fields"
	"github.com/datalode/geodex/internal/domain/product"
	"github.com/datalode/geodex/internal/metrics"
)

// ErrDocMismatch reports a document that does not contain the metadata
// template of the product it was submitted under.
var ErrDocMismatch = errors.New("document does not match product metadata")

// store is the consumer interface for dataset persistence (ISP).
type store interface {
	PutDataset(ctx context.Context, rec *db.DatasetRecord, entries []db.IndexEntry) error
	GetDataset(ctx context.Context, id uuid.UUID) (*db.DatasetRecord, error)
	SetArchived(ctx context.Context, id uuid.UUID, archived bool) error
}

// products resolves products by name or by metadata template match.
type products interface {
	Get(name string) (*product.Product, error)
	Match(doc document.Doc) (*product.Product, error)
}

// Repo implements the dataset lifecycle over any db.Store backend.
type Repo struct {
	store    store
	products products
	log      *zap.Logger

	// lenientDates widens datetime-range index bounds to absorb
	// sub-second timestamp jitter between versions of a document.
	lenientDates bool
}

// New creates a dataset repository.
func New(s store, p products, log *zap.Logger, lenientDates bool) *Repo {
	return &Repo{store: s, products: p, log: log, lenientDates: lenientDates}
}

// Add indexes a metadata document. With an empty product name the product is
// resolved by template match. The dataset ID comes from the document's id
// field when present, otherwise a fresh UUID is assigned.
func (r *Repo) Add(ctx context.Context, productName string, doc document.Doc) (uuid.UUID, error) {
	var (
		p   *product.Product
		err error
	)
	if productName == "" {
		p, err = r.products.Match(doc)
	} else {
		p, err = r.products.Get(productName)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve product: %w", err)
	}
	if productName != "" && !p.Matches(doc) {
		return uuid.Nil, fmt.Errorf("%w %q", ErrDocMismatch, p.Name())
	}

	id, err := r.datasetID(p, doc)
	if err != nil {
		return uuid.Nil, err
	}

	entries, err := r.buildEntries(p, id, doc)
	if err != nil {
		return uuid.Nil, err
	}

	rec := &db.DatasetRecord{
		ID:       id,
		Product:  p.Name(),
		Metadata: doc,
		Added:    time.Now().UTC(),
	}
	if err := r.store.PutDataset(ctx, rec, entries); err != nil {
		return uuid.Nil, fmt.Errorf("put dataset %s: %w", id, err)
	}

	metrics.DatasetsIndexedTotal.WithLabelValues(p.Name()).Inc()
	r.log.Info("dataset indexed",
		zap.String("dataset", id.String()),
		zap.String("product", p.Name()),
		zap.Int("entries", len(entries)))
	return id, nil
}

// Get returns a dataset record by ID.
func (r *Repo) Get(ctx context.Context, id uuid.UUID) (*db.DatasetRecord, error) {
	rec, err := r.store.GetDataset(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get dataset %s: %w", id, err)
	}
	return rec, nil
}

// Archive soft-deletes a dataset. Archived datasets stay stored but are
// excluded from searches unless explicitly requested.
func (r *Repo) Archive(ctx context.Context, id uuid.UUID) error {
	if err := r.store.SetArchived(ctx, id, true); err != nil {
		return fmt.Errorf("archive dataset %s: %w", id, err)
	}
	r.log.Info("dataset archived", zap.String("dataset", id.String()))
	return nil
}

// Restore reverses Archive.
func (r *Repo) Restore(ctx context.Context, id uuid.UUID) error {
	if err := r.store.SetArchived(ctx, id, false); err != nil {
		return fmt.Errorf("restore dataset %s: %w", id, err)
	}
	r.log.Info("dataset restored", zap.String("dataset", id.String()))
	return nil
}

func (r *Repo) datasetID(p *product.Product, doc document.Doc) (uuid.UUID, error) {
	f, ok := p.Fields().Get("id")
	if !ok {
		return uuid.New(), nil
	}
	v, err := f.Extract(doc)
	if err != nil || v == nil {
		return uuid.New(), nil //nolint:nilerr // a malformed id offset falls back to a fresh UUID
	}
	id, err := uuid.Parse(fmt.Sprint(v))
	if err != nil {
		return uuid.Nil, fmt.Errorf("document id %v is not a UUID: %w", v, err)
	}
	return id, nil
}

// buildEntries extracts every indexed field value into its index entry.
// Values with no index representation (such as NaN bounds) are skipped and
// logged rather than failing the whole document.
func (r *Repo) buildEntries(p *product.Product, id uuid.UUID, doc document.Doc) ([]db.IndexEntry, error) {
	var entries []db.IndexEntry
	for _, f := range p.Fields().All() {
		if !f.Indexed() || !f.CanExtract() {
			continue
		}
		v, err := f.Extract(doc)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", f.Name(), err)
		}
		if v == nil {
			continue
		}

		entry := db.IndexEntry{Dataset: id, Key: f.Name(), Kind: f.IndexKind()}
		if f.IndexKind() == fields.IndexString {
			entry.Value = fmt.Sprint(v)
		} else {
			iv, err := r.searchValue(f, v)
			if err != nil {
				if errors.Is(err, fields.ErrUnindexable) {
					metrics.UnindexableValuesTotal.WithLabelValues(p.Name(), f.Name()).Inc()
					r.log.Warn("skipping unindexable value",
						zap.String("dataset", id.String()),
						zap.String("field", f.Name()),
						zap.Any("value", v))
					continue
				}
				return nil, fmt.Errorf("index %s: %w", f.Name(), err)
			}
			entry.Interval = iv
		}
		entries = append(entries, entry)
		metrics.IndexEntriesTotal.WithLabelValues(p.Name(), string(f.IndexKind())).Inc()
	}
	return entries, nil
}

func (r *Repo) searchValue(f fields.Field, v any) (fields.Interval, error) {
	if drf, ok := f.(*fields.DateRangeField); ok && r.lenientDates {
		return drf.SearchValueLenient(v)
	}
	return f.SearchValue(v)
}
