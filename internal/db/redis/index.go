package redis

import (
	"context"
	"errors"
	"strconv"

	"github.com/datalode/geodex/internal/db"
)

const keyspace = "gx"

func datasetKey(product, id string) string {
	return keyspace + ":ds:" + product + ":" + id
}

func pointerKey(id string) string {
	return keyspace + ":id:" + id
}

func datasetPrefix(product string) string {
	return keyspace + ":ds:" + product + ":"
}

// IndexName returns the FT index name for a product.
func IndexName(product string) string {
	return keyspace + "-idx-" + product
}

// EnsureIndex creates the product's FT index. An existing index is left as
// is: definitions are derived from the product's field registry, which is
// immutable once registered.
func (s *Store) EnsureIndex(ctx context.Context, product string, def *db.IndexDefinition) error {
	if def == nil {
		return errors.New("index definition is required")
	}
	// Naming is this driver's concern: Search derives the index name from
	// the product, so the definition's own name is ignored.
	d := *def
	d.Name = IndexName(product)
	d.Prefixes = []string{datasetPrefix(product)}

	args, err := buildCreateArgs(&d)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return nil
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// DropIndex removes a product's FT index.
func (s *Store) DropIndex(ctx context.Context, product string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(IndexName(product)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return db.ErrIndexNotFound
		}
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	return nil
}

func buildCreateArgs(idx *db.IndexDefinition) ([]string, error) {
	if idx.Name == "" {
		return nil, errors.New("index name is required")
	}
	if len(idx.Fields) == 0 {
		return nil, errors.New("at least one field is required")
	}

	args := []string{idx.Name, "ON", "HASH"}

	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}

	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		fieldArgs, err := buildFieldArgs(&idx.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fieldArgs...)
	}

	return args, nil
}

func buildFieldArgs(f *db.IndexField) ([]string, error) {
	if f.Name == "" {
		return nil, errors.New("field name is required")
	}

	args := []string{f.Name}

	if f.Alias != "" {
		args = append(args, "AS", f.Alias)
	}

	switch f.Type {
	case db.IndexFieldNumeric:
		args = append(args, "NUMERIC")

	case db.IndexFieldText:
		args = append(args, "TEXT")

	case db.IndexFieldTag:
		args = append(args, "TAG")
		if f.TagSeparator != "" {
			args = append(args, "SEPARATOR", f.TagSeparator)
		}
		if f.TagCaseSensitive {
			args = append(args, "CASESENSITIVE")
		}

	default:
		return nil, errors.New("unknown field type")
	}

	return args, nil
}
