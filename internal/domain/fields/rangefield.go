package fields

import (
	"fmt"
	"time"

	"github.com/datalode/geodex/internal/domain/document"
)

// dateLeniency is how far each bound of a stored date range is widened when
// matching with leniency, to absorb timestamp jitter between documents.
const dateLeniency = 500 * time.Millisecond

// RangeField is a composite interval field. Its bounds may each be
// calculated from multiple values in the document: the lower bound is the
// least over the min offsets, the greater bound the greatest over the max
// offsets. Stored and queried via interval overlap, not exact match.
type RangeField struct {
	baseField
	inner   kind
	lower   *SimpleField
	greater *SimpleField
}

func newRange(inner kind, typeName, name, description string, indexed bool, minOffsets, maxOffsets []document.Offset) (*RangeField, error) {
	lower, err := newScalar(inner, name+"_lower", description, false, minOffsets, SelectionLeast)
	if err != nil {
		return nil, err
	}
	greater, err := newScalar(inner, name+"_greater", description, false, maxOffsets, SelectionGreatest)
	if err != nil {
		return nil, err
	}
	return &RangeField{
		baseField: baseField{
			name:        name,
			description: description,
			indexed:     indexed,
			typeName:    typeName,
			indexKind:   inner.indexKind,
		},
		inner:   inner,
		lower:   lower,
		greater: greater,
	}, nil
}

// NewNumericRangeField creates an interval field in the exact decimal domain.
func NewNumericRangeField(name, description string, indexed bool, minOffsets, maxOffsets []document.Offset) (*RangeField, error) {
	return newRange(numericKind, "numeric-range", name, description, indexed, minOffsets, maxOffsets)
}

// NewIntegerRangeField creates a machine-integer interval field.
func NewIntegerRangeField(name, description string, indexed bool, minOffsets, maxOffsets []document.Offset) (*RangeField, error) {
	return newRange(integerKind, "integer-range", name, description, indexed, minOffsets, maxOffsets)
}

// NewDoubleRangeField creates a float interval field.
func NewDoubleRangeField(name, description string, indexed bool, minOffsets, maxOffsets []document.Offset) (*RangeField, error) {
	return newRange(doubleKind, "double-range", name, description, indexed, minOffsets, maxOffsets)
}

// NewDateRangeField creates a timestamp interval field.
func NewDateRangeField(name, description string, indexed bool, minOffsets, maxOffsets []document.Offset) (*DateRangeField, error) {
	inner, err := newRange(datetimeKind, "datetime-range", name, description, indexed, minOffsets, maxOffsets)
	if err != nil {
		return nil, err
	}
	return &DateRangeField{RangeField: inner}, nil
}

// CanExtract always reports true for range fields.
func (f *RangeField) CanExtract() bool { return true }

// Extract resolves both bounds. The result is nil only when both inner
// extractions are nil.
func (f *RangeField) Extract(doc document.Doc) (any, error) {
	lo, err := f.lower.Extract(doc)
	if err != nil {
		return nil, err
	}
	hi, err := f.greater.Extract(doc)
	if err != nil {
		return nil, err
	}
	if lo == nil && hi == nil {
		return nil, nil
	}
	return Range{Begin: lo, End: hi}, nil
}

// Equals builds a containment predicate: a range matches a value when the
// recorded interval contains it. Ranges are stored, not points, so equality
// cannot be exact match. For date ranges a bare integer or float is
// shorthand for January 1st of that year, as in Between.
func (f *RangeField) Equals(value any) (Expression, error) {
	if f.inner.indexKind == IndexDatetime {
		value = numberImpliesYear(value)
	}
	// Lower and greater share the inner kind; either parses the value.
	v, err := f.lower.Parse(value)
	if err != nil {
		return nil, err
	}
	return &RangeContainsExpression{field: f, value: v}, nil
}

// Between builds an interval-overlap predicate against the stored range.
// For date ranges a bare integer or float is shorthand for January 1st of
// that year. A low bound above the high bound still constructs a well-formed
// (always empty) predicate.
func (f *RangeField) Between(low, high any) (Expression, error) {
	if low == nil && high == nil {
		return nil, &ValueError{Field: f.name, Err: ErrMissingBounds}
	}
	if f.inner.indexKind == IndexDatetime {
		low = numberImpliesYear(low)
		high = numberImpliesYear(high)
	}
	var lo, hi any
	var err error
	if low != nil {
		if lo, err = f.lower.Parse(low); err != nil {
			return nil, f.comparisonError(low, high)
		}
	}
	if high != nil {
		if hi, err = f.lower.Parse(high); err != nil {
			return nil, f.comparisonError(low, high)
		}
	}
	return &RangeBetweenExpression{field: f, low: lo, high: hi}, nil
}

func (f *RangeField) comparisonError(low, high any) error {
	return &ValueError{
		Field: f.name,
		Value: fmt.Sprintf("(%v, %v)", low, high),
		Err:   fmt.Errorf("unsupported comparison type for %s", f.typeName),
	}
}

// SearchValue builds the closed-interval index representation of an
// extracted range (or a two-bound value). NaN bounds are unindexable.
func (f *RangeField) SearchValue(value any) (Interval, error) {
	var rawLo, rawHi any
	switch v := value.(type) {
	case Range:
		rawLo, rawHi = v.Begin, v.End
	case Interval:
		rawLo, rawHi = v.Begin, v.End
	case []any:
		if len(v) != 2 {
			return Interval{}, &ValueError{Field: f.name, Value: value, Err: fmt.Errorf("expected two bounds, got %d", len(v))}
		}
		rawLo, rawHi = v[0], v[1]
	default:
		return Interval{}, &ValueError{Field: f.name, Value: value, Err: fmt.Errorf("expected a range value, got %T", value)}
	}

	var out Interval
	var err error
	if rawLo != nil {
		if out.Begin, err = f.lower.Parse(rawLo); err != nil {
			return Interval{}, err
		}
	}
	if rawHi != nil {
		if out.End, err = f.lower.Parse(rawHi); err != nil {
			return Interval{}, err
		}
	}
	if isNaN(out.Begin) || isNaN(out.End) {
		return Interval{}, &ValueError{Field: f.name, Value: value, Err: ErrUnindexable}
	}
	return out, nil
}

func (f *RangeField) compareValues(a, b any) (int, error) {
	return f.inner.compare(a, b)
}

// Lower exposes the inner lower-bound field (backends join against its
// offsets when the range is not indexed).
func (f *RangeField) Lower() *SimpleField { return f.lower }

// Greater exposes the inner greater-bound field.
func (f *RangeField) Greater() *SimpleField { return f.greater }

// DateRangeField is a RangeField over timestamps with a lenient index
// representation variant.
type DateRangeField struct {
	*RangeField
}

// SearchValueLenient widens both bounds of the index representation by the
// fixed date leniency, absorbing sub-second timestamp jitter when matching
// against stored ranges.
func (f *DateRangeField) SearchValueLenient(value any) (Interval, error) {
	iv, err := f.SearchValue(value)
	if err != nil {
		return Interval{}, err
	}
	if t, ok := iv.Begin.(time.Time); ok {
		iv.Begin = t.Add(-dateLeniency)
	}
	if t, ok := iv.End.(time.Time); ok {
		iv.End = t.Add(dateLeniency)
	}
	return iv, nil
}

// numberImpliesYear maps a bare year number to January 1st of that year.
// Query text parses all number ranges as floats, so both forms are accepted.
func numberImpliesYear(v any) any {
	switch n := v.(type) {
	case int:
		return time.Date(n, time.January, 1, 0, 0, 0, 0, time.UTC)
	case int64:
		return time.Date(int(n), time.January, 1, 0, 0, 0, 0, time.UTC)
	case float64:
		return time.Date(int(n), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return v
	}
}
