// Package document provides the nested metadata document model and the
// offset-path resolution used by searchable fields.
package document

import (
	"fmt"
	"strconv"
	"strings"
)

// Doc is a dataset metadata document as decoded from YAML or JSON:
// nested string-keyed mappings with sequence values.
type Doc = map[string]any

// Offset is an ordered path of keys locating a value inside a Doc.
// A numeric path element indexes a sequence.
type Offset []string

// String renders the offset in dotted form for diagnostics.
func (o Offset) String() string {
	return strings.Join(o, ".")
}

// Get resolves an offset against a document. A missing key or index at any
// level yields nil, never an error.
func Get(doc any, offset Offset) any {
	cur := doc
	for _, key := range offset {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[key]
			if !ok {
				return nil
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(node) {
				return nil
			}
			cur = node[i]
		default:
			return nil
		}
	}
	return cur
}

// Contains reports whether doc contains template: every key present in the
// template must exist in doc with an equal (or recursively contained) value.
// Used to match candidate datasets against a product's metadata template.
func Contains(doc, template any) bool {
	switch tpl := template.(type) {
	case map[string]any:
		d, ok := doc.(map[string]any)
		if !ok {
			return false
		}
		for k, v := range tpl {
			dv, ok := d[k]
			if !ok || !Contains(dv, v) {
				return false
			}
		}
		return true
	case []any:
		d, ok := doc.([]any)
		if !ok || len(d) != len(tpl) {
			return false
		}
		for i := range tpl {
			if !Contains(d[i], tpl[i]) {
				return false
			}
		}
		return true
	default:
		return fmt.Sprint(doc) == fmt.Sprint(template)
	}
}

// OffsetsFrom normalizes a raw offset declaration into a list of offsets.
// Accepts a single path (["platform","code"]) or a list of alternative paths
// ([["platform","code"],["satellite","name"]]); a single path is wrapped
// into a singleton list.
func OffsetsFrom(raw any) ([]Offset, error) {
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("offset must be a non-empty list, got %v", raw)
	}

	if _, nested := list[0].([]any); !nested {
		single, err := offsetFrom(list)
		if err != nil {
			return nil, err
		}
		return []Offset{single}, nil
	}

	offsets := make([]Offset, 0, len(list))
	for _, item := range list {
		o, err := offsetFrom(item)
		if err != nil {
			return nil, err
		}
		offsets = append(offsets, o)
	}
	return offsets, nil
}

func offsetFrom(raw any) (Offset, error) {
	elems, ok := raw.([]any)
	if !ok || len(elems) == 0 {
		return nil, fmt.Errorf("offset path must be a non-empty list, got %v", raw)
	}
	out := make(Offset, len(elems))
	for i, e := range elems {
		switch v := e.(type) {
		case string:
			out[i] = v
		case int:
			out[i] = strconv.Itoa(v)
		default:
			return nil, fmt.Errorf("offset path element must be a string or index, got %v", e)
		}
	}
	return out, nil
}
