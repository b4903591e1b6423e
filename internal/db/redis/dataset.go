package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"

	"github.com/datalode/geodex/internal/db"
	"github.com/datalode/geodex/internal/domain/document"
	"github.com/datalode/geodex/internal/domain/fields"
)

// Reserved hash field names. Search keys share the hash with these, so a
// product may not define fields with these names.
const (
	hfID       = "id"
	hfProduct  = "product"
	hfDoc      = "doc"
	hfArchived = "archived"
	hfAdded    = "added"
)

// PutDataset writes the dataset record and its index entries as one hash,
// plus an id pointer for product-less lookups. Both writes go out in a
// single pipelined round-trip.
func (s *Store) PutDataset(ctx context.Context, rec *db.DatasetRecord, entries []db.IndexEntry) error {
	hash, err := recordFields(rec)
	if err != nil {
		return &db.Error{Op: db.OpPutDataset, Err: err}
	}
	if err := appendEntryFields(hash, entries); err != nil {
		return &db.Error{Op: db.OpPutDataset, Err: err}
	}

	key := datasetKey(rec.Product, rec.ID.String())

	hset := s.b().Hset().Key(key).FieldValue()
	for k, v := range hash {
		hset = hset.FieldValue(k, v)
	}
	cmds := []rueidis.Completed{
		hset.Build(),
		s.b().Set().Key(pointerKey(rec.ID.String())).Value(key).Build(),
	}

	for _, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpPutDataset, Err: err}
		}
	}
	return nil
}

// GetDataset resolves the id pointer and loads the dataset hash.
func (s *Store) GetDataset(ctx context.Context, id uuid.UUID) (*db.DatasetRecord, error) {
	key, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	cmd := s.b().Hgetall().Key(key).Build()
	m, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpGetDataset, Err: err}
	}
	if len(m) == 0 {
		return nil, db.ErrDatasetNotFound
	}
	return decodeRecord(m)
}

// SetArchived flips the archived flag on the dataset hash.
func (s *Store) SetArchived(ctx context.Context, id uuid.UUID, archived bool) error {
	key, err := s.resolve(ctx, id)
	if err != nil {
		return err
	}

	cmd := s.b().Hset().Key(key).FieldValue().
		FieldValue(hfArchived, strconv.FormatBool(archived)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpArchive, Err: err}
	}
	return nil
}

func (s *Store) resolve(ctx context.Context, id uuid.UUID) (string, error) {
	cmd := s.b().Get().Key(pointerKey(id.String())).Build()
	key, err := s.do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return "", db.ErrDatasetNotFound
		}
		return "", &db.Error{Op: db.OpGetDataset, Err: err}
	}
	return key, nil
}

func recordFields(rec *db.DatasetRecord) (map[string]string, error) {
	doc, err := json.Marshal(rec.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return map[string]string{
		hfID:       rec.ID.String(),
		hfProduct:  rec.Product,
		hfDoc:      string(doc),
		hfArchived: strconv.FormatBool(rec.Archived),
		hfAdded:    rec.Added.UTC().Format(time.RFC3339Nano),
	}, nil
}

// appendEntryFields flattens index entries into hash fields: string entries
// under their key, interval entries as <key>_lo / <key>_hi numeric fields
// with datetimes as epoch milliseconds. Unbounded sides store +-inf, which
// RediSearch numeric ranges accept.
func appendEntryFields(hash map[string]string, entries []db.IndexEntry) error {
	for _, e := range entries {
		if e.Kind == fields.IndexString {
			hash[e.Key] = e.Value
			continue
		}

		lo, err := boundValue(e.Interval.Begin, "-inf")
		if err != nil {
			return fmt.Errorf("entry %s: %w", e.Key, err)
		}
		hi, err := boundValue(e.Interval.End, "inf")
		if err != nil {
			return fmt.Errorf("entry %s: %w", e.Key, err)
		}
		hash[e.Key+"_lo"] = lo
		hash[e.Key+"_hi"] = hi
	}
	return nil
}

func boundValue(v any, unbounded string) (string, error) {
	if v == nil {
		return unbounded, nil
	}
	f, err := fields.Float64(v)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

func decodeRecord(m map[string]string) (*db.DatasetRecord, error) {
	id, err := uuid.Parse(m[hfID])
	if err != nil {
		return nil, fmt.Errorf("parse dataset id: %w", err)
	}

	var doc document.Doc
	if raw := m[hfDoc]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}

	rec := &db.DatasetRecord{
		ID:       id,
		Product:  m[hfProduct],
		Metadata: doc,
		Archived: m[hfArchived] == "true",
	}
	if raw := m[hfAdded]; raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			rec.Added = t
		}
	}
	return rec, nil
}
