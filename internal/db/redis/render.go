package redis

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	geom "github.com/twpayne/go-geom"

	"github.com/datalode/geodex/internal/db"
	"github.com/datalode/geodex/internal/domain/fields"
)

// renderQuery translates a search request into an FT.SEARCH query string.
// Product and archived filters come first, then expressions in query order,
// then the extent, so equal requests always render equal strings.
func renderQuery(q *db.SearchRequest) (string, error) {
	var parts []string

	if q.Product != "" {
		parts = append(parts, tagFilter(hfProduct, q.Product))
	}
	if !q.WithArchived {
		parts = append(parts, tagFilter(hfArchived, "false"))
	}

	for _, expr := range q.Expressions {
		part, err := renderExpression(expr)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}

	if q.Extent != nil {
		parts = append(parts, renderExtent(q.Extent)...)
	}

	if len(parts) == 0 {
		return "*", nil
	}
	return strings.Join(parts, " "), nil
}

func renderExpression(expr fields.Expression) (string, error) {
	switch e := expr.(type) {
	case *fields.NotExpression:
		inner, err := renderExpression(e.Inner())
		if err != nil {
			return "", err
		}
		return "-(" + inner + ")", nil

	case *fields.EqualsExpression:
		return renderEquals(e)

	case *fields.RangeBetweenExpression:
		if e.Empty() {
			return renderEmpty(e.Field()), nil
		}
		return renderOverlap(e.Field(), e.Low(), e.High())

	case *fields.RangeContainsExpression:
		v, err := num(e.Value())
		if err != nil {
			return "", err
		}
		k := e.Field().Name()
		return fmt.Sprintf("@%s_lo:[-inf %s] @%s_hi:[%s +inf]", k, v, k, v), nil

	case *fields.ValueBetweenExpression:
		f := e.Field()
		if c, ok := f.(fields.Computed); ok && c.Transform() == "day" {
			return renderDayWindow(c.Source().Name(), e.Low(), e.High())
		}
		if f.IndexKind() == fields.IndexString {
			return "", fmt.Errorf("field %s: lexical range queries are not supported by this driver", f.Name())
		}
		return renderOverlap(f, e.Low(), e.High())

	default:
		return "", fmt.Errorf("unsupported expression %T", expr)
	}
}

func renderEquals(e *fields.EqualsExpression) (string, error) {
	f := e.Field()

	// Day-truncated equality widens to the 24h window over the source field.
	if c, ok := f.(fields.Computed); ok && c.Transform() == "day" {
		return renderDayWindow(c.Source().Name(), e.Value(), e.Value())
	}

	if f.IndexKind() == fields.IndexString {
		return tagFilter(f.Name(), fmt.Sprint(e.Value())), nil
	}

	// Scalars are stored as the degenerate interval, so equality pins both
	// bounds to the value.
	v, err := num(e.Value())
	if err != nil {
		return "", err
	}
	k := f.Name()
	return fmt.Sprintf("@%s_lo:[%s %s] @%s_hi:[%s %s]", k, v, v, k, v, v), nil
}

// renderOverlap is the closed-interval overlap test against the stored
// lo/hi pair: stored.lo <= high AND stored.hi >= low.
func renderOverlap(f fields.Field, low, high any) (string, error) {
	lo, err := bound(low, "-inf")
	if err != nil {
		return "", err
	}
	hi, err := bound(high, "+inf")
	if err != nil {
		return "", err
	}
	k := f.Name()
	return fmt.Sprintf("@%s_lo:[-inf %s] @%s_hi:[%s +inf]", k, hi, k, lo), nil
}

// renderEmpty is the unsatisfiable filter for an inverted query interval:
// an inverted numeric range matches no stored value.
func renderEmpty(f fields.Field) string {
	return fmt.Sprintf("@%s_lo:[1 0]", f.Name())
}

// renderDayWindow matches source timestamps in [low, high+24h), both bounds
// being day-truncated already.
func renderDayWindow(source string, low, high any) (string, error) {
	lo, err := bound(low, "-inf")
	if err != nil {
		return "", err
	}
	hi := "+inf"
	if high != nil {
		t, ok := fields.AsTime(high)
		if !ok {
			return "", fmt.Errorf("field %s: day bound %v is not a timestamp", source, high)
		}
		hi = "(" + epochMillis(t.AddDate(0, 0, 1))
	}
	return fmt.Sprintf("@%s_lo:[%s %s]", source, lo, hi), nil
}

// renderExtent reduces the geometry to its bounding box and overlaps it
// with the lat/lon range fields.
func renderExtent(g geom.T) []string {
	b := g.Bounds()
	return []string{
		fmt.Sprintf("@lat_lo:[-inf %s] @lat_hi:[%s +inf]", coord(b.Max(1)), coord(b.Min(1))),
		fmt.Sprintf("@lon_lo:[-inf %s] @lon_hi:[%s +inf]", coord(b.Max(0)), coord(b.Min(0))),
	}
}

func tagFilter(key, value string) string {
	return fmt.Sprintf("@%s:{%s}", key, tagEscaper.Replace(value))
}

func bound(v any, unbounded string) (string, error) {
	if v == nil {
		return unbounded, nil
	}
	return num(v)
}

func num(v any) (string, error) {
	f, err := fields.Float64(v)
	if err != nil {
		return "", err
	}
	return coord(f), nil
}

func coord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func epochMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)
