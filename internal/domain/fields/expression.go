package fields

import (
	"github.com/datalode/geodex/internal/domain/document"
)

// Expression is a constructed query predicate referencing a Field and its
// comparison value(s). Expressions are built fresh per query and never
// mutated. Evaluate applies the predicate to an in-memory document, which
// must agree with the backend translation for every aggregation policy.
type Expression interface {
	Field() Field
	Evaluate(doc document.Doc) (bool, error)
}

// comparer is implemented by every field variant for in-memory ordering.
type comparer interface {
	compareValues(a, b any) (int, error)
}

// exprValue resolves a field's value for in-memory evaluation: computed
// fields evaluate through their derivation, extractable fields extract.
func exprValue(f Field, doc document.Doc) (any, error) {
	if day, ok := f.(*dayField); ok {
		return day.value(doc)
	}
	if !f.CanExtract() {
		return nil, &ValueError{Field: f.Name(), Err: ErrNotExtractable}
	}
	return f.Extract(doc)
}

// EqualsExpression matches documents whose field value equals the value.
type EqualsExpression struct {
	field Field
	value any
}

func (e *EqualsExpression) Field() Field { return e.field }

// Value returns the comparison value in the field's domain.
func (e *EqualsExpression) Value() any { return e.value }

func (e *EqualsExpression) Evaluate(doc document.Doc) (bool, error) {
	v, err := exprValue(e.field, doc)
	if err != nil || v == nil {
		return false, err
	}
	cmp, err := e.field.(comparer).compareValues(v, e.value)
	if err != nil {
		return false, err
	}
	return cmp == 0, nil
}

// ValueBetweenExpression is a closed-interval inequality on a scalar field.
// A nil bound is unbounded on that side.
type ValueBetweenExpression struct {
	field Field
	low   any
	high  any
}

func (e *ValueBetweenExpression) Field() Field { return e.field }

// Low returns the inclusive lower bound, nil when unbounded.
func (e *ValueBetweenExpression) Low() any { return e.low }

// High returns the inclusive upper bound, nil when unbounded.
func (e *ValueBetweenExpression) High() any { return e.high }

func (e *ValueBetweenExpression) Evaluate(doc document.Doc) (bool, error) {
	v, err := exprValue(e.field, doc)
	if err != nil || v == nil {
		return false, err
	}
	cmp := e.field.(comparer)
	if e.low != nil {
		c, err := cmp.compareValues(v, e.low)
		if err != nil || c < 0 {
			return false, err
		}
	}
	if e.high != nil {
		c, err := cmp.compareValues(v, e.high)
		if err != nil || c > 0 {
			return false, err
		}
	}
	return true, nil
}

// RangeBetweenExpression matches when the stored interval overlaps the
// closed query interval [low, high]. Scalar values stored as degenerate
// ranges evaluate as the interval [v, v].
type RangeBetweenExpression struct {
	field Field
	low   any
	high  any
}

func (e *RangeBetweenExpression) Field() Field { return e.field }

// Low returns the inclusive lower bound of the query interval.
func (e *RangeBetweenExpression) Low() any { return e.low }

// High returns the inclusive upper bound of the query interval.
func (e *RangeBetweenExpression) High() any { return e.high }

// Empty reports whether the query interval is inverted (low > high). An
// empty interval is still a well-formed predicate; it matches nothing.
func (e *RangeBetweenExpression) Empty() bool {
	if e.low == nil || e.high == nil {
		return false
	}
	c, err := e.field.(comparer).compareValues(e.low, e.high)
	return err == nil && c > 0
}

func (e *RangeBetweenExpression) Evaluate(doc document.Doc) (bool, error) {
	if e.Empty() {
		return false, nil
	}
	v, err := exprValue(e.field, doc)
	if err != nil || v == nil {
		return false, err
	}
	begin, end := boundsOf(v)
	cmp := e.field.(comparer)

	// Closed intervals overlap unless one ends before the other begins.
	if e.high != nil && begin != nil {
		c, err := cmp.compareValues(begin, e.high)
		if err != nil || c > 0 {
			return false, err
		}
	}
	if e.low != nil && end != nil {
		c, err := cmp.compareValues(end, e.low)
		if err != nil || c < 0 {
			return false, err
		}
	}
	return true, nil
}

// RangeContainsExpression matches when the stored interval contains the
// point value.
type RangeContainsExpression struct {
	field Field
	value any
}

func (e *RangeContainsExpression) Field() Field { return e.field }

// Value returns the point value in the field's domain.
func (e *RangeContainsExpression) Value() any { return e.value }

func (e *RangeContainsExpression) Evaluate(doc document.Doc) (bool, error) {
	v, err := exprValue(e.field, doc)
	if err != nil || v == nil {
		return false, err
	}
	begin, end := boundsOf(v)
	cmp := e.field.(comparer)
	if begin != nil {
		c, err := cmp.compareValues(begin, e.value)
		if err != nil || c > 0 {
			return false, err
		}
	}
	if end != nil {
		c, err := cmp.compareValues(e.value, end)
		if err != nil || c > 0 {
			return false, err
		}
	}
	return true, nil
}

// NotExpression negates an equality predicate.
type NotExpression struct {
	inner Expression
}

func (e *NotExpression) Field() Field { return e.inner.Field() }

// Inner returns the negated predicate.
func (e *NotExpression) Inner() Expression { return e.inner }

func (e *NotExpression) Evaluate(doc document.Doc) (bool, error) {
	ok, err := e.inner.Evaluate(doc)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// boundsOf normalizes an extracted value to interval bounds: a Range keeps
// its bounds, a scalar is the degenerate interval [v, v].
func boundsOf(v any) (begin, end any) {
	if r, ok := v.(Range); ok {
		return r.Begin, r.End
	}
	return v, v
}

// Term is one field-name/value pair of a user query.
type Term struct {
	Name  string
	Value any
}

// Query is an ordered user query. Order matters: generated predicates (and
// therefore generated backend query text) follow term order.
type Query []Term

// Q builds a query term.
func Q(name string, value any) Term {
	return Term{Name: name, Value: value}
}

// Lookup resolves a field by name, reporting false for unknown names.
type Lookup func(name string) (Field, bool)

// ToExpressions converts query terms into predicates: a Range or two-element
// pair becomes a between predicate, a Not wrapper a negated equality, any
// other value an equality. Pure with respect to its inputs; output order
// matches term order.
func ToExpressions(lookup Lookup, query Query) ([]Expression, error) {
	out := make([]Expression, 0, len(query))
	for _, term := range query {
		field, ok := lookup(term.Name)
		if !ok {
			return nil, &UnknownFieldError{Name: term.Name}
		}

		var (
			expr Expression
			err  error
		)
		switch v := term.Value.(type) {
		case Range:
			expr, err = field.Between(v.Begin, v.End)
		case [2]any:
			expr, err = field.Between(v[0], v[1])
		case Not:
			var eq Expression
			eq, err = field.Equals(v.Value)
			if err == nil {
				expr = &NotExpression{inner: eq}
			}
		default:
			expr, err = field.Equals(term.Value)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, expr)
	}
	return out, nil
}
