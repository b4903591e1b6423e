package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datalode/geodex/internal/db"
	"github.com/datalode/geodex/internal/domain/document"
	"github.com/datalode/geodex/internal/domain/fields"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Store implements db.Store over Postgres range-typed search tables.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects a Postgres store from a DSN.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// EnsureIndex applies the shared schema. The per-kind search tables serve
// every product, so the definition itself carries no DDL here.
func (s *Store) EnsureIndex(ctx context.Context, _ string, def *db.IndexDefinition) error {
	if def != nil {
		if err := def.Validate(); err != nil {
			return err
		}
	}
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// PutDataset upserts the record and replaces its index entries in one
// transaction, entry inserts batched into a single round-trip.
func (s *Store) PutDataset(ctx context.Context, rec *db.DatasetRecord, entries []db.IndexEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &db.Error{Op: db.OpPutDataset, Err: err}
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	added := rec.Added
	if added.IsZero() {
		added = time.Now().UTC()
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO dataset (id, product, metadata, archived, added) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET product = EXCLUDED.product, metadata = EXCLUDED.metadata, archived = EXCLUDED.archived`,
		rec.ID, rec.Product, rec.Metadata, rec.Archived, added,
	)
	if err != nil {
		return &db.Error{Op: db.OpPutDataset, Err: err}
	}

	batch := &pgx.Batch{}
	for _, table := range []string{"search_string", "search_numeric", "search_datetime"} {
		batch.Queue("DELETE FROM "+table+" WHERE dataset_ref = $1", rec.ID)
	}
	for _, e := range entries {
		queueEntry(batch, &e)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return &db.Error{Op: db.OpPutEntries, Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &db.Error{Op: db.OpPutDataset, Err: err}
	}
	return nil
}

func queueEntry(batch *pgx.Batch, e *db.IndexEntry) {
	switch e.Kind {
	case fields.IndexString:
		batch.Queue(
			"INSERT INTO search_string (dataset_ref, search_key, value) VALUES ($1, $2, $3)",
			e.Dataset, e.Key, e.Value,
		)
	case fields.IndexDatetime:
		batch.Queue(
			"INSERT INTO search_datetime (dataset_ref, search_key, value) VALUES ($1, $2, tstzrange($3, $4, '[]'))",
			e.Dataset, e.Key, rangeArg(e.Interval.Begin), rangeArg(e.Interval.End),
		)
	default:
		batch.Queue(
			"INSERT INTO search_numeric (dataset_ref, search_key, value) VALUES ($1, $2, numrange($3, $4, '[]'))",
			e.Dataset, e.Key, rangeArg(e.Interval.Begin), rangeArg(e.Interval.End),
		)
	}
}

// GetDataset loads one dataset by id.
func (s *Store) GetDataset(ctx context.Context, id uuid.UUID) (*db.DatasetRecord, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT id, product, metadata, archived, added FROM dataset WHERE id = $1", id)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, db.ErrDatasetNotFound
		}
		return nil, &db.Error{Op: db.OpGetDataset, Err: err}
	}
	return rec, nil
}

// SetArchived flips the archived flag.
func (s *Store) SetArchived(ctx context.Context, id uuid.UUID, archived bool) error {
	tag, err := s.pool.Exec(ctx, "UPDATE dataset SET archived = $2 WHERE id = $1", id, archived)
	if err != nil {
		return &db.Error{Op: db.OpArchive, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return db.ErrDatasetNotFound
	}
	return nil
}

// Search runs the rendered predicate query and scans the matching datasets.
func (s *Store) Search(ctx context.Context, q *db.SearchRequest) (*db.SearchResult, error) {
	sql, args, err := BuildSearchSQL(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	defer rows.Close()

	result := &db.SearchResult{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: err}
		}
		result.Datasets = append(result.Datasets, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	result.Total = len(result.Datasets)
	return result, nil
}

// Count runs the rendered count query.
func (s *Store) Count(ctx context.Context, q *db.SearchRequest) (int, error) {
	sql, args, err := BuildCountSQL(q)
	if err != nil {
		return 0, err
	}

	var n int
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	return n, nil
}

func scanRecord(row pgx.Row) (*db.DatasetRecord, error) {
	var (
		rec db.DatasetRecord
		raw []byte
	)
	if err := row.Scan(&rec.ID, &rec.Product, &raw, &rec.Archived, &rec.Added); err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		var doc document.Doc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		rec.Metadata = doc
	}
	return &rec, nil
}
