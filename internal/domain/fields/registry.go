package fields

import (
	"fmt"
	"sort"
	"strings"

	"github.com/datalode/geodex/internal/domain/document"
)

// Registry is an immutable name-to-field mapping, built once per product or
// metadata type and shared read-only across concurrent queries.
type Registry struct {
	fields map[string]Field
	names  []string
}

// Get looks a field up by name.
func (r *Registry) Get(name string) (Field, bool) {
	f, ok := r.fields[name]
	return f, ok
}

// Lookup adapts the registry for expression building.
func (r *Registry) Lookup() Lookup {
	return r.Get
}

// Names returns the field names in stable order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// All returns the fields in stable name order.
func (r *Registry) All() []Field {
	out := make([]Field, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.fields[name])
	}
	return out
}

func (r *Registry) add(f Field) {
	if _, exists := r.fields[f.Name()]; !exists {
		r.names = append(r.names, f.Name())
	}
	r.fields[f.Name()] = f
}

// ValidTypeNames lists the recognized field type names, sorted.
func ValidTypeNames() []string {
	return []string{
		"datetime", "datetime-range",
		"double", "double-range",
		"float-range", // legacy alias for numeric-range
		"integer", "integer-range",
		"numeric", "numeric-range",
		"string",
	}
}

// ParseFields parses a declarative field-definition document into field
// objects. Example document (YAML):
//
//	lat:
//	  type: float-range
//	  min_offset:
//	  - [extent, coord, ul, lat]
//	  - [extent, coord, ll, lat]
//	  max_offset:
//	  - [extent, coord, ur, lat]
//	  - [extent, coord, lr, lat]
//
// Per-field keys: type (default "string"), description, indexed (default
// true), and the remaining keys as type-specific constructor arguments.
func ParseFields(doc map[string]any) (*Registry, error) {
	reg := &Registry{fields: make(map[string]Field, len(doc))}

	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		descriptor, ok := doc[name].(map[string]any)
		if !ok {
			return nil, &ConfigError{Field: name, Err: fmt.Errorf("field definition must be a mapping, got %T", doc[name])}
		}
		f, err := parseField(name, descriptor)
		if err != nil {
			return nil, err
		}
		reg.add(f)
	}
	return reg, nil
}

// DatasetFields builds the full per-metadata-type registry: the hard-coded
// native fields first, then the parsed search fields (which may override).
func DatasetFields(doc map[string]any) (*Registry, error) {
	parsed, err := ParseFields(doc)
	if err != nil {
		return nil, err
	}
	reg := &Registry{fields: make(map[string]Field, len(parsed.fields)+5)}
	for _, f := range nativeFields() {
		reg.add(f)
	}
	for _, name := range parsed.names {
		reg.add(parsed.fields[name])
	}
	return reg, nil
}

// nativeFields are hard-coded into every registry, not user configurable.
func nativeFields() []Field {
	native := func(name, description string, offset document.Offset) Field {
		f, err := NewSimpleField(name, description, false, []document.Offset{offset}, SelectionFirst)
		if err != nil {
			panic(err) // static definitions
		}
		return f
	}
	return []Field{
		native("id", "Dataset UUID", document.Offset{"id"}),
		native("product", "Product name", document.Offset{"product", "name"}),
		native("label", "Dataset label", document.Offset{"label"}),
		native("format", "File format (GeoTIFF, NetCDF)", document.Offset{"format", "name"}),
		native("metadata_doc", "Full metadata document", document.Offset{}),
	}
}

func parseField(name string, descriptor map[string]any) (Field, error) {
	args := make(map[string]any, len(descriptor))
	for k, v := range descriptor {
		args[k] = v
	}

	typeName, err := popString(args, "type", "string")
	if err != nil {
		return nil, &ConfigError{Field: name, Err: err}
	}
	description, err := popString(args, "description", "")
	if err != nil {
		return nil, &ConfigError{Field: name, TypeName: typeName, Err: err}
	}
	indexed, err := popIndexed(args)
	if err != nil {
		return nil, &ConfigError{Field: name, TypeName: typeName, Err: err}
	}

	// Backwards-compatible alias.
	if typeName == "float-range" {
		typeName = "numeric-range"
	}

	var f Field
	switch typeName {
	case "string", "integer", "double", "numeric", "datetime":
		f, err = buildScalar(typeName, name, description, indexed, args)
	case "integer-range", "double-range", "numeric-range", "datetime-range":
		f, err = buildRange(typeName, name, description, indexed, args)
	default:
		return nil, &ConfigError{
			Field:    name,
			TypeName: typeName,
			Err:      fmt.Errorf("%w %q, available types: %v", ErrUnknownFieldType, typeName, ValidTypeNames()),
		}
	}
	if err != nil {
		return nil, &ConfigError{Field: name, TypeName: typeName, Err: err}
	}

	if len(args) > 0 {
		stray := make([]string, 0, len(args))
		for k := range args {
			stray = append(stray, k)
		}
		sort.Strings(stray)
		return nil, &ConfigError{
			Field:    name,
			TypeName: typeName,
			Err:      fmt.Errorf("%w %s", ErrUnexpectedArgument, strings.Join(stray, ", ")),
		}
	}
	return f, nil
}

func buildScalar(typeName, name, description string, indexed bool, args map[string]any) (Field, error) {
	offsets, err := popOffsets(args, "offset")
	if err != nil {
		return nil, err
	}
	selection, err := popString(args, "selection", string(SelectionFirst))
	if err != nil {
		return nil, err
	}

	switch typeName {
	case "integer":
		return NewIntegerField(name, description, indexed, offsets, Selection(selection))
	case "double":
		return NewDoubleField(name, description, indexed, offsets, Selection(selection))
	case "numeric":
		return NewNumericField(name, description, indexed, offsets, Selection(selection))
	case "datetime":
		return NewDateField(name, description, indexed, offsets, Selection(selection))
	default:
		return NewSimpleField(name, description, indexed, offsets, Selection(selection))
	}
}

func buildRange(typeName, name, description string, indexed bool, args map[string]any) (Field, error) {
	minOffsets, err := popOffsets(args, "min_offset")
	if err != nil {
		return nil, err
	}
	maxOffsets, err := popOffsets(args, "max_offset")
	if err != nil {
		return nil, err
	}

	switch typeName {
	case "integer-range":
		return NewIntegerRangeField(name, description, indexed, minOffsets, maxOffsets)
	case "double-range":
		return NewDoubleRangeField(name, description, indexed, minOffsets, maxOffsets)
	case "datetime-range":
		return NewDateRangeField(name, description, indexed, minOffsets, maxOffsets)
	default:
		return NewNumericRangeField(name, description, indexed, minOffsets, maxOffsets)
	}
}

func popString(args map[string]any, key, fallback string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return fallback, nil
	}
	delete(args, key)
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", key, raw)
	}
	return s, nil
}

// popIndexed reads the indexed flag: a bool, or a case-insensitive
// "true"/"false" string. Defaults to true.
func popIndexed(args map[string]any) (bool, error) {
	raw, ok := args["indexed"]
	if !ok {
		return true, nil
	}
	delete(args, "indexed")
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		return strings.EqualFold(v, "true"), nil
	default:
		return false, fmt.Errorf("indexed must be a boolean or string, got %T", raw)
	}
}

func popOffsets(args map[string]any, key string) ([]document.Offset, error) {
	raw, ok := args[key]
	if !ok {
		return nil, fmt.Errorf("missing required %s", key)
	}
	delete(args, key)
	offsets, err := document.OffsetsFrom(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return offsets, nil
}
