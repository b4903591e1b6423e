package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	geom "github.com/twpayne/go-geom"

	"github.com/datalode/geodex/internal/db"
	"github.com/datalode/geodex/internal/domain/fields"
)

const defaultLimit = 100

// sqlBuilder accumulates the per-field aliased joins, predicates and
// positional args of one statement. Placeholders are numbered in build
// order, so equal requests render equal SQL.
type sqlBuilder struct {
	joins  []string
	joined map[string]bool
	where  []string
	args   []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// join registers the field's aliased view over its search table and returns
// the quoted alias. Repeated predicates on one field share the join.
func (b *sqlBuilder) join(f fields.Field) string {
	if c, ok := f.(fields.Computed); ok {
		f = c.Source()
	}
	ref := f.IndexRef()
	alias := pgx.Identifier{ref.Alias}.Sanitize()

	if b.joined == nil {
		b.joined = make(map[string]bool)
	}
	if !b.joined[ref.Alias] {
		b.joined[ref.Alias] = true
		b.joins = append(b.joins, fmt.Sprintf(
			"JOIN %s AS %s ON %s.dataset_ref = d.id AND %s.search_key = %s",
			ref.Table, alias, alias, alias, b.arg(f.Name()),
		))
	}
	return alias
}

func (b *sqlBuilder) expression(expr fields.Expression) (string, error) {
	switch e := expr.(type) {
	case *fields.NotExpression:
		inner, err := b.expression(e.Inner())
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil

	case *fields.EqualsExpression:
		return b.equals(e)

	case *fields.RangeBetweenExpression:
		if e.Empty() {
			// Postgres rejects numrange(lo, hi) with lo > hi at execution.
			return "FALSE", nil
		}
		f := e.Field()
		alias := b.join(f)
		lo := b.arg(rangeArg(e.Low()))
		hi := b.arg(rangeArg(e.High()))
		return fmt.Sprintf("%s.value && %s(%s, %s, '[]')", alias, rangeCtor(f.IndexKind()), lo, hi), nil

	case *fields.RangeContainsExpression:
		f := e.Field()
		alias := b.join(f)
		return fmt.Sprintf("%s.value @> %s::%s", alias, b.arg(rangeArg(e.Value())), elemType(f.IndexKind())), nil

	case *fields.ValueBetweenExpression:
		return b.valueBetween(e)

	default:
		return "", fmt.Errorf("unsupported expression %T", expr)
	}
}

func (b *sqlBuilder) equals(e *fields.EqualsExpression) (string, error) {
	f := e.Field()
	alias := b.join(f)

	if c, ok := f.(fields.Computed); ok && c.Transform() == "day" {
		return fmt.Sprintf("date_trunc('day', lower(%s.value)) = %s", alias, b.arg(e.Value())), nil
	}
	if f.IndexKind() == fields.IndexString {
		return fmt.Sprintf("%s.value = %s", alias, b.arg(fmt.Sprint(e.Value()))), nil
	}

	// Scalars are stored as degenerate ranges; one arg pins both bounds.
	ph := b.arg(rangeArg(e.Value()))
	return fmt.Sprintf("%s.value = %s(%s, %s, '[]')", alias, rangeCtor(f.IndexKind()), ph, ph), nil
}

func (b *sqlBuilder) valueBetween(e *fields.ValueBetweenExpression) (string, error) {
	f := e.Field()
	alias := b.join(f)

	var col string
	switch {
	case isDayField(f):
		col = fmt.Sprintf("date_trunc('day', lower(%s.value))", alias)
	case f.IndexKind() == fields.IndexString:
		col = alias + ".value"
	default:
		lo := b.arg(rangeArg(e.Low()))
		hi := b.arg(rangeArg(e.High()))
		return fmt.Sprintf("%s.value && %s(%s, %s, '[]')", alias, rangeCtor(f.IndexKind()), lo, hi), nil
	}

	switch {
	case e.Low() != nil && e.High() != nil:
		return fmt.Sprintf("%s BETWEEN %s AND %s", col, b.arg(rangeArg(e.Low())), b.arg(rangeArg(e.High()))), nil
	case e.Low() != nil:
		return fmt.Sprintf("%s >= %s", col, b.arg(rangeArg(e.Low()))), nil
	default:
		return fmt.Sprintf("%s <= %s", col, b.arg(rangeArg(e.High()))), nil
	}
}

// extent reduces the geometry to its bounding box and overlaps it with the
// lat/lon range entries.
func (b *sqlBuilder) extent(g geom.T) {
	bounds := g.Bounds()
	b.bboxAxis("lat", bounds.Min(1), bounds.Max(1))
	b.bboxAxis("lon", bounds.Min(0), bounds.Max(0))
}

func (b *sqlBuilder) bboxAxis(key string, min, max float64) {
	b.where = append(b.where, fmt.Sprintf(
		"EXISTS (SELECT 1 FROM search_numeric e WHERE e.dataset_ref = d.id AND e.search_key = %s AND e.value && numrange(%s, %s, '[]'))",
		b.arg(key), b.arg(min), b.arg(max),
	))
}

func (b *sqlBuilder) collect(q *db.SearchRequest) error {
	if q.Product != "" {
		b.where = append(b.where, "d.product = "+b.arg(q.Product))
	}
	if !q.WithArchived {
		b.where = append(b.where, "NOT d.archived")
	}
	for _, expr := range q.Expressions {
		pred, err := b.expression(expr)
		if err != nil {
			return err
		}
		b.where = append(b.where, pred)
	}
	if q.Extent != nil {
		b.extent(q.Extent)
	}
	return nil
}

// BuildSearchSQL renders the predicate search as deterministic SQL text
// plus positional args. DISTINCT guards against fan-out when a dataset has
// several entries under one search key.
func BuildSearchSQL(q *db.SearchRequest) (string, []any, error) {
	b := &sqlBuilder{}
	if err := b.collect(q); err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT DISTINCT d.id, d.product, d.metadata, d.archived, d.added FROM dataset d")
	writeTail(&sb, b)
	sb.WriteString(" ORDER BY d.added, d.id")

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	sb.WriteString(" LIMIT " + strconv.Itoa(limit))
	if q.Offset > 0 {
		sb.WriteString(" OFFSET " + strconv.Itoa(q.Offset))
	}

	return sb.String(), b.args, nil
}

// BuildCountSQL renders the matching count for the same predicates.
func BuildCountSQL(q *db.SearchRequest) (string, []any, error) {
	b := &sqlBuilder{}
	if err := b.collect(q); err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT count(DISTINCT d.id) FROM dataset d")
	writeTail(&sb, b)

	return sb.String(), b.args, nil
}

func writeTail(sb *strings.Builder, b *sqlBuilder) {
	for _, j := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(j)
	}
	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
	}
}

func isDayField(f fields.Field) bool {
	c, ok := f.(fields.Computed)
	return ok && c.Transform() == "day"
}

func rangeCtor(kind fields.IndexKind) string {
	if kind == fields.IndexDatetime {
		return "tstzrange"
	}
	return "numrange"
}

func elemType(kind fields.IndexKind) string {
	if kind == fields.IndexDatetime {
		return "timestamptz"
	}
	return "numeric"
}

// rangeArg converts a domain value to its wire representation. Decimals go
// out as text so numrange keeps exact precision.
func rangeArg(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		return d.String()
	}
	return v
}
