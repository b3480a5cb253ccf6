package schema

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

var ErrMissingRequiredField = errors.New("missing required field")
var ErrUnknownField = errors.New("field not in defaults declaration")
var ErrInvalidType = errors.New("field value has wrong type")

// SchemaError is the aggregate outcome of a failed reconciliation. It names
// every offending field so callers can correct input without re-deriving
// context, and unwraps to the per-field sentinel errors.
type SchemaError struct {
	// MissingFields lists required fields absent from the document.
	MissingFields []string

	// UnknownFields lists fields not covered by the declaration (only
	// populated when unknown-field handling is set to error).
	UnknownFields []string

	// TypeViolations lists fields whose values have the wrong type.
	TypeViolations []string

	err error
}

func (e *SchemaError) add(err error) {
	e.err = multierr.Append(e.err, err)
}

func (e *SchemaError) missing(field string) {
	e.MissingFields = append(e.MissingFields, field)
	e.add(fmt.Errorf("%w: %q", ErrMissingRequiredField, field))
}

func (e *SchemaError) unknown(field string) {
	e.UnknownFields = append(e.UnknownFields, field)
	e.add(fmt.Errorf("%w: %q", ErrUnknownField, field))
}

func (e *SchemaError) badType(field string, want FieldType, got interface{}) {
	e.TypeViolations = append(e.TypeViolations, field)
	e.add(fmt.Errorf("%w: %q must be of type %s, got %T", ErrInvalidType, field, want, got))
}

func (e *SchemaError) empty() bool { return e.err == nil }

func (e *SchemaError) Error() string {
	var parts []string
	if len(e.MissingFields) > 0 {
		parts = append(parts, fmt.Sprintf("missing required fields [%s]", strings.Join(e.MissingFields, ", ")))
	}
	if len(e.UnknownFields) > 0 {
		parts = append(parts, fmt.Sprintf("unknown fields [%s]", strings.Join(e.UnknownFields, ", ")))
	}
	if len(e.TypeViolations) > 0 {
		parts = append(parts, fmt.Sprintf("type violations [%s]", strings.Join(e.TypeViolations, ", ")))
	}
	return "schema violation: " + strings.Join(parts, "; ")
}

func (e *SchemaError) Unwrap() error { return e.err }
