package fields

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// IndexKind classifies which shared physical search index holds a field's
// values. Range and scalar values of the same broad kind share one index.
type IndexKind string

const (
	// IndexString holds plain scalar values matched by equality.
	IndexString IndexKind = "string"
	// IndexNumeric holds closed numeric intervals.
	IndexNumeric IndexKind = "numeric"
	// IndexDatetime holds closed timestamp intervals.
	IndexDatetime IndexKind = "datetime"
)

// indexTable maps an index kind to its physical search table name. Field
// references alias these per field name.
func indexTable(k IndexKind) string {
	switch k {
	case IndexNumeric:
		return "search_numeric"
	case IndexDatetime:
		return "search_datetime"
	default:
		return "search_string"
	}
}

// kind bundles the per-primitive behaviour of a scalar field: how raw
// document values parse into the domain, how domain values order, and which
// physical index the values land in. Field variants are composed from kinds
// rather than subclassed.
type kind struct {
	typeName  string
	indexKind IndexKind

	// betweenAsOverlap is set for kinds whose scalar values are stored as
	// degenerate ranges, so a between query must be an interval overlap.
	betweenAsOverlap bool

	parse   func(raw any) (any, error)
	compare func(a, b any) (int, error)
}

var (
	stringKind = kind{
		typeName:  "string",
		indexKind: IndexString,
		parse:     parseString,
		compare:   compareString,
	}

	numericKind = kind{
		typeName:         "numeric",
		indexKind:        IndexNumeric,
		betweenAsOverlap: true,
		parse:            parseNumeric,
		compare:          compareNumeric,
	}

	integerKind = kind{
		typeName:         "integer",
		indexKind:        IndexNumeric,
		betweenAsOverlap: true,
		parse:            parseInteger,
		compare:          compareNumeric,
	}

	doubleKind = kind{
		typeName:         "double",
		indexKind:        IndexNumeric,
		betweenAsOverlap: true,
		parse:            parseDouble,
		compare:          compareNumeric,
	}

	datetimeKind = kind{
		typeName:  "datetime",
		indexKind: IndexDatetime,
		parse:     parseTime,
		compare:   compareTime,
	}
)

func parseString(raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	default:
		return fmt.Sprint(v), nil
	}
}

// parseNumeric converts to the exact decimal domain. A float NaN is passed
// through unchanged: rejecting NaN is the search-value conversion's job, not
// the plain conversion's.
func parseNumeric(raw any) (any, error) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return v, nil
		}
		return decimal.NewFromFloat(v), nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", v)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("value %v (%T) is not numeric", raw, raw)
	}
}

func parseInteger(raw any) (any, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		// Floats are accepted only when they carry an exact integer value.
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return nil, fmt.Errorf("not an integer: %v", v)
		}
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", v)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("value %v (%T) is not an integer", raw, raw)
	}
}

func parseDouble(raw any) (any, error) {
	switch v := raw.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", v)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("value %v (%T) is not a number", raw, raw)
	}
}

// timeFormats are tried in order for string timestamps. Formats without a
// zone are parsed in UTC: a naive timestamp is treated as already
// representing UTC wall-clock time and tagged, not shifted.
var timeFormats = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func parseTime(raw any) (any, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		for _, format := range timeFormats {
			if t, err := time.ParseInLocation(format, v, time.UTC); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, fmt.Errorf("not an ISO-8601 timestamp: %q", v)
	default:
		return nil, fmt.Errorf("value %v (%T) is not readable as a date", raw, raw)
	}
}

func compareString(a, b any) (int, error) {
	as, aok := a.(string)
	bs, bok := b.(string)
	if !aok || !bok {
		return 0, fmt.Errorf("cannot compare %T with %T as strings", a, b)
	}
	return strings.Compare(as, bs), nil
}

func compareNumeric(a, b any) (int, error) {
	if ad, ok := a.(decimal.Decimal); ok {
		if bd, ok := b.(decimal.Decimal); ok {
			return ad.Cmp(bd), nil
		}
	}
	if ai, ok := a.(int64); ok {
		if bi, ok := b.(int64); ok {
			switch {
			case ai < bi:
				return -1, nil
			case ai > bi:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	af, err := Float64(a)
	if err != nil {
		return 0, err
	}
	bf, err := Float64(b)
	if err != nil {
		return 0, err
	}
	switch {
	case af < bf:
		return -1, nil
	case af > bf:
		return 1, nil
	default:
		return 0, nil
	}
}

func compareTime(a, b any) (int, error) {
	at, aok := a.(time.Time)
	bt, bok := b.(time.Time)
	if !aok || !bok {
		return 0, fmt.Errorf("cannot compare %T with %T as timestamps", a, b)
	}
	return at.Compare(bt), nil
}

// isNaN reports whether a domain value is a float NaN.
func isNaN(v any) bool {
	f, ok := v.(float64)
	return ok && math.IsNaN(f)
}
