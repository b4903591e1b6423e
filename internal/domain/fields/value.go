package fields

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Range is an inclusive begin/end pair, as extracted from a range field or
// supplied as a query value. Either bound may be nil (unbounded).
type Range struct {
	Begin any
	End   any
}

// Not wraps a query value to request a negated equality predicate.
type Not struct {
	Value any
}

// Interval is the closed-bound index representation [Begin, End]. Scalar
// values are indexed as the degenerate interval [v, v] so that point and
// range values can be queried uniformly via overlap/containment.
type Interval struct {
	Begin any
	End   any
}

// Float64 coerces a domain value to float64 for backends with a single
// numeric representation. Datetimes map to epoch milliseconds.
func Float64(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	case decimal.Decimal:
		return n.InexactFloat64(), nil
	case time.Time:
		return float64(n.UnixMilli()), nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
	}
}

// AsTime reports the value as a time.Time if it is one.
func AsTime(v any) (time.Time, bool) {
	t, ok := v.(time.Time)
	return t, ok
}
