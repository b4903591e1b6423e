package fields

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFieldType signals a field definition with an unrecognized type name.
	ErrUnknownFieldType = errors.New("unknown field type")
	// ErrUnknownSelection signals an unrecognized selection policy.
	ErrUnknownSelection = errors.New("unknown selection policy")
	// ErrUnexpectedArgument signals a constructor argument the resolved type does not accept.
	ErrUnexpectedArgument = errors.New("unexpected argument")
	// ErrMissingBounds signals a between query with neither bound set.
	ErrMissingBounds = errors.New("between query requires at least one bound")
	// ErrUnindexable signals a value that cannot be written to a search index.
	// Distinct from ValueError so batch index builders can skip-and-log.
	ErrUnindexable = errors.New("value cannot be indexed")
	// ErrNotExtractable signals extraction on a computed field.
	ErrNotExtractable = errors.New("field does not support document extraction")
)

// ConfigError is a registry-parse time failure, naming the offending field.
type ConfigError struct {
	Field    string
	TypeName string
	Err      error
}

func (e *ConfigError) Error() string {
	if e.TypeName != "" {
		return fmt.Sprintf("field %q (type %q): %v", e.Field, e.TypeName, e.Err)
	}
	return fmt.Sprintf("field %q: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ValueError is a query- or extraction-time failure for a value that does not
// fit the field's domain.
type ValueError struct {
	Field string
	Value any
	Err   error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("field %q: value %v: %v", e.Field, e.Value, e.Err)
}

func (e *ValueError) Unwrap() error { return e.Err }

// UnknownFieldError is returned when a query references a field name that is
// not present in the registry.
type UnknownFieldError struct {
	Name string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("no searchable field %q", e.Name)
}
