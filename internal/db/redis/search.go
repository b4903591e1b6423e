package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/datalode/geodex/internal/db"
)

const defaultLimit = 100

// Search runs the predicate query via FT.SEARCH over the product index.
func (s *Store) Search(ctx context.Context, q *db.SearchRequest) (*db.SearchResult, error) {
	if q.Product == "" {
		return nil, fmt.Errorf("product is required")
	}

	query, err := renderQuery(q)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	args := []string{
		IndexName(q.Product), query,
		"LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(limit),
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseSearchResult(raw)
}

// Count returns the match count via FT.SEARCH with LIMIT 0 0.
func (s *Store) Count(ctx context.Context, q *db.SearchRequest) (int, error) {
	if q.Product == "" {
		return 0, fmt.Errorf("product is required")
	}

	query, err := renderQuery(q)
	if err != nil {
		return 0, err
	}

	cmd := s.b().Arbitrary("FT.SEARCH").
		Args(IndexName(q.Product), query, "LIMIT", "0", "0", "DIALECT", "2").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

func parseSearchResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{Total: 0}, nil
	}

	result := &db.SearchResult{Total: int(total)}
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		fieldMsgs, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		rec, err := decodeRecord(parseFieldPairs(fieldMsgs))
		if err != nil {
			return nil, fmt.Errorf("decode hit: %w", err)
		}
		result.Datasets = append(result.Datasets, rec)
	}

	return result, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}
