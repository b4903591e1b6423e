package fields

import "github.com/datalode/geodex/internal/domain/document"

// NewNumericField creates a scalar field in the exact decimal domain.
func NewNumericField(name, description string, indexed bool, offsets []document.Offset, selection Selection) (*SimpleField, error) {
	return newScalar(numericKind, name, description, indexed, offsets, selection)
}

// NewIntegerField creates a scalar machine-integer field.
func NewIntegerField(name, description string, indexed bool, offsets []document.Offset, selection Selection) (*SimpleField, error) {
	return newScalar(integerKind, name, description, indexed, offsets, selection)
}

// NewDoubleField creates a scalar float field.
func NewDoubleField(name, description string, indexed bool, offsets []document.Offset, selection Selection) (*SimpleField, error) {
	return newScalar(doubleKind, name, description, indexed, offsets, selection)
}
