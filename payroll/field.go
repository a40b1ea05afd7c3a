package payroll

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// EDITABLE FIELDS - Closed set of worker fields a change request may target
// =============================================================================

// Field names one editable worker attribute. The set is closed: anything
// outside it is rejected at submission time with ErrInvalidField.
type Field string

const (
	FieldFullName      Field = "full_name"
	FieldPosition      Field = "position"
	FieldMaritalStatus Field = "marital_status"
	FieldChildrenCount Field = "children_count"
)

// ParseField validates a field name against the editable set.
func ParseField(s string) (Field, error) {
	switch f := Field(strings.TrimSpace(s)); f {
	case FieldFullName, FieldPosition, FieldMaritalStatus, FieldChildrenCount:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidField, s)
	}
}

// =============================================================================
// FIELD CHANGE - Tagged variant carrying a typed, validated value
// =============================================================================

// FieldChange is one typed edit to a worker record. Each variant carries
// its own value and applies itself; there is no stringly-typed column
// name anywhere past this point.
type FieldChange interface {
	Field() Field
	Apply(w *Worker)
}

// FullNameChange replaces the worker's full name.
type FullNameChange string

func (c FullNameChange) Field() Field     { return FieldFullName }
func (c FullNameChange) Apply(w *Worker)  { w.FullName = string(c) }

// PositionChange replaces the worker's position.
type PositionChange string

func (c PositionChange) Field() Field     { return FieldPosition }
func (c PositionChange) Apply(w *Worker)  { w.Position = string(c) }

// MaritalStatusChange replaces the worker's marital status.
type MaritalStatusChange string

func (c MaritalStatusChange) Field() Field    { return FieldMaritalStatus }
func (c MaritalStatusChange) Apply(w *Worker) { w.MaritalStatus = string(c) }

// ChildrenCountChange replaces the worker's dependent-children count.
type ChildrenCountChange int

func (c ChildrenCountChange) Field() Field    { return FieldChildrenCount }
func (c ChildrenCountChange) Apply(w *Worker) { w.ChildrenCount = int(c) }

// ParseFieldChange coerces a raw submitted value into the typed variant
// for its target field. This is where the children-count text becomes an
// integer at approval time; a non-numeric value yields ErrTypeCoercion
// and a negative one ErrNegativeAmount, leaving the request untouched.
func ParseFieldChange(f Field, raw string) (FieldChange, error) {
	switch f {
	case FieldFullName:
		return FullNameChange(raw), nil
	case FieldPosition:
		return PositionChange(raw), nil
	case FieldMaritalStatus:
		return MaritalStatusChange(raw), nil
	case FieldChildrenCount:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: children count %q is not an integer", ErrTypeCoercion, raw)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: children count %d", ErrNegativeAmount, n)
		}
		return ChildrenCountChange(n), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidField, f)
	}
}
