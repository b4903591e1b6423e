package fields

import (
	"time"

	"github.com/datalode/geodex/internal/domain/document"
)

// DateField is a scalar timestamp field. String inputs parse as ISO-8601;
// naive timestamps are tagged UTC without shifting.
type DateField struct {
	*SimpleField
}

// NewDateField creates a scalar timestamp field.
func NewDateField(name, description string, indexed bool, offsets []document.Offset, selection Selection) (*DateField, error) {
	inner, err := newScalar(datetimeKind, name, description, indexed, offsets, selection)
	if err != nil {
		return nil, err
	}
	return &DateField{SimpleField: inner}, nil
}

// Day derives the field truncated to the start of its UTC day. The derived
// field is computed, not stored, so it does not support extraction.
func (f *DateField) Day() Field {
	return &dayField{
		baseField: baseField{
			name:        f.name + "_day",
			description: "Day of " + f.description,
			indexed:     false,
			typeName:    datetimeKind.typeName,
			indexKind:   IndexDatetime,
		},
		source: f.SimpleField,
	}
}

// Computed is implemented by derived fields whose value is computed from a
// source field. Backends use the transform tag to render the computation.
type Computed interface {
	Source() Field
	Transform() string
}

// dayField truncates its source timestamp to the start of the UTC day.
type dayField struct {
	baseField
	source *SimpleField
}

var _ Computed = (*dayField)(nil)

func (f *dayField) Source() Field     { return f.source }
func (f *dayField) Transform() string { return "day" }

func (f *dayField) CanExtract() bool { return false }

func (f *dayField) Extract(document.Doc) (any, error) {
	return nil, &ValueError{Field: f.name, Err: ErrNotExtractable}
}

// value computes the truncated timestamp for in-memory evaluation.
func (f *dayField) value(doc document.Doc) (any, error) {
	v, err := f.source.Extract(doc)
	if err != nil || v == nil {
		return nil, err
	}
	return truncateDay(v), nil
}

func (f *dayField) Equals(value any) (Expression, error) {
	v, err := f.source.Parse(value)
	if err != nil {
		return nil, err
	}
	return &EqualsExpression{field: f, value: truncateDay(v)}, nil
}

func (f *dayField) Between(low, high any) (Expression, error) {
	lo, hi, err := f.source.parseBounds(low, high)
	if err != nil {
		return nil, err
	}
	if lo != nil {
		lo = truncateDay(lo)
	}
	if hi != nil {
		hi = truncateDay(hi)
	}
	return &ValueBetweenExpression{field: f, low: lo, high: hi}, nil
}

func (f *dayField) SearchValue(value any) (Interval, error) {
	return Interval{}, &ValueError{Field: f.name, Value: value, Err: ErrUnindexable}
}

func (f *dayField) compareValues(a, b any) (int, error) {
	return compareTime(a, b)
}

func truncateDay(v any) any {
	t, ok := v.(time.Time)
	if !ok {
		return v
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
