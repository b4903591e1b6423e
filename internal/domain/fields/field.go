// Package fields implements the searchable-field abstraction of the dataset
// catalog: typed fields extracted from nested metadata documents via offset
// paths, and the translation of field + operator + value into backend search
// predicates.
package fields

import (
	"fmt"
	"sync"

	"github.com/datalode/geodex/internal/domain/document"
)

// Field is a typed accessor mapping one or more document offsets to a domain
// value, with an associated predicate builder. Fields are immutable after
// construction and safe for concurrent use.
type Field interface {
	Name() string
	Description() string
	Indexed() bool
	// TypeName is the declared field type ("string", "numeric-range", ...).
	TypeName() string
	// IndexKind classifies the shared physical index the field's values use.
	IndexKind() IndexKind
	// IndexRef resolves the per-field aliased view of the shared search
	// index. Memoized: resolved once per field instance.
	IndexRef() IndexRef

	// CanExtract reports whether Extract is supported. Computed fields
	// (such as a day-truncated datetime) report false.
	CanExtract() bool
	// Extract resolves the field's value from a document. A nil result with
	// a nil error means the document has no value for the field.
	Extract(doc document.Doc) (any, error)

	// Equals builds an equality predicate. For range fields equality means
	// "value falls within the recorded range".
	Equals(value any) (Expression, error)
	// Between builds a closed-interval predicate. Either bound may be nil;
	// omitting both is an error.
	Between(low, high any) (Expression, error)
	// SearchValue converts an extracted value to its closed-interval index
	// representation. Fails with ErrUnindexable for NaN.
	SearchValue(value any) (Interval, error)
}

// IndexRef names a per-field aliased view over a shared search index.
type IndexRef struct {
	Table string
	Alias string
}

// Selection chooses how values resolved from multiple alternative offsets
// combine into one.
type Selection string

const (
	// SelectionFirst picks the first non-null value in declaration order.
	SelectionFirst Selection = "first"
	// SelectionLeast picks the minimum across resolved values.
	SelectionLeast Selection = "least"
	// SelectionGreatest picks the maximum across resolved values.
	SelectionGreatest Selection = "greatest"
)

func parseSelection(s Selection) (Selection, error) {
	switch s {
	case "":
		return SelectionFirst, nil
	case SelectionFirst, SelectionLeast, SelectionGreatest:
		return s, nil
	default:
		return "", fmt.Errorf("%w %q, expected one of first, least, greatest", ErrUnknownSelection, s)
	}
}

// baseField carries the common identity of every field variant plus the
// memoized index reference.
type baseField struct {
	name        string
	description string
	indexed     bool
	typeName    string
	indexKind   IndexKind

	refOnce sync.Once
	ref     IndexRef
}

func (f *baseField) Name() string         { return f.name }
func (f *baseField) Description() string  { return f.description }
func (f *baseField) Indexed() bool        { return f.indexed }
func (f *baseField) TypeName() string     { return f.typeName }
func (f *baseField) IndexKind() IndexKind { return f.indexKind }

// IndexRef resolves the aliased search-index view for this field. The alias
// is stable per field name so backends can join the shared per-kind index
// once per field. Resolution is lock-protected and idempotent.
func (f *baseField) IndexRef() IndexRef {
	f.refOnce.Do(func() {
		table := indexTable(f.indexKind)
		f.ref = IndexRef{Table: table, Alias: table + "-" + f.name}
	})
	return f.ref
}

// SimpleField is a scalar field: one value located at an offset (or the
// aggregate of several alternative offsets) inside a document.
type SimpleField struct {
	baseField
	kind      kind
	offsets   []document.Offset
	selection Selection
}

// NewSimpleField creates a scalar string field.
func NewSimpleField(name, description string, indexed bool, offsets []document.Offset, selection Selection) (*SimpleField, error) {
	return newScalar(stringKind, name, description, indexed, offsets, selection)
}

func newScalar(k kind, name, description string, indexed bool, offsets []document.Offset, selection Selection) (*SimpleField, error) {
	sel, err := parseSelection(selection)
	if err != nil {
		return nil, err
	}
	if len(offsets) == 0 {
		return nil, fmt.Errorf("field %q requires at least one offset", name)
	}
	return &SimpleField{
		baseField: baseField{
			name:        name,
			description: description,
			indexed:     indexed,
			typeName:    k.typeName,
			indexKind:   k.indexKind,
		},
		kind:      k,
		offsets:   offsets,
		selection: sel,
	}, nil
}

// CanExtract always reports true for scalar fields.
func (f *SimpleField) CanExtract() bool { return true }

// Extract resolves each offset against the document, parses every non-null
// result, and combines multiple values with the field's selection policy.
// Returns nil when no offset resolves.
func (f *SimpleField) Extract(doc document.Doc) (any, error) {
	values := make([]any, 0, len(f.offsets))
	for _, offset := range f.offsets {
		raw := document.Get(doc, offset)
		if raw == nil {
			continue
		}
		v, err := f.kind.parse(raw)
		if err != nil {
			return nil, &ValueError{Field: f.name, Value: raw, Err: err}
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, nil
	}
	if len(values) == 1 {
		return values[0], nil
	}
	return f.aggregate(values)
}

func (f *SimpleField) aggregate(values []any) (any, error) {
	if f.selection == SelectionFirst {
		return values[0], nil
	}
	best := values[0]
	for _, v := range values[1:] {
		cmp, err := f.kind.compare(v, best)
		if err != nil {
			return nil, &ValueError{Field: f.name, Value: v, Err: err}
		}
		if (f.selection == SelectionLeast && cmp < 0) || (f.selection == SelectionGreatest && cmp > 0) {
			best = v
		}
	}
	return best, nil
}

// Parse converts a raw value into the field's domain representation.
func (f *SimpleField) Parse(raw any) (any, error) {
	v, err := f.kind.parse(raw)
	if err != nil {
		return nil, &ValueError{Field: f.name, Value: raw, Err: err}
	}
	return v, nil
}

// Equals builds an equality predicate against the field's indexed value.
func (f *SimpleField) Equals(value any) (Expression, error) {
	v, err := f.Parse(value)
	if err != nil {
		return nil, err
	}
	return &EqualsExpression{field: f, value: v}, nil
}

// Between builds a closed-interval predicate. Numeric scalar fields are
// stored as degenerate ranges, so their between query is an interval
// overlap rather than a plain inequality.
func (f *SimpleField) Between(low, high any) (Expression, error) {
	lo, hi, err := f.parseBounds(low, high)
	if err != nil {
		return nil, err
	}
	if f.kind.betweenAsOverlap {
		return &RangeBetweenExpression{field: f, low: lo, high: hi}, nil
	}
	return &ValueBetweenExpression{field: f, low: lo, high: hi}, nil
}

func (f *SimpleField) parseBounds(low, high any) (lo, hi any, err error) {
	if low == nil && high == nil {
		return nil, nil, &ValueError{Field: f.name, Err: ErrMissingBounds}
	}
	if low != nil {
		if lo, err = f.Parse(low); err != nil {
			return nil, nil, err
		}
	}
	if high != nil {
		if hi, err = f.Parse(high); err != nil {
			return nil, nil, err
		}
	}
	return lo, hi, nil
}

// SearchValue wraps a scalar value as the degenerate closed interval [v, v].
func (f *SimpleField) SearchValue(value any) (Interval, error) {
	v, err := f.Parse(value)
	if err != nil {
		return Interval{}, err
	}
	if isNaN(v) {
		return Interval{}, &ValueError{Field: f.name, Value: value, Err: ErrUnindexable}
	}
	return Interval{Begin: v, End: v}, nil
}

func (f *SimpleField) compareValues(a, b any) (int, error) {
	return f.kind.compare(a, b)
}
