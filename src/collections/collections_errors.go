package collections

// Add custom error definitions here
import "errors"

// ErrConflictingFilters is returned when both an explicit filter and the
// field-equality shorthand are supplied to the same query.
var ErrConflictingFilters = errors.New("supply either Filter or Where, not both")

// ErrConflictingProjections is returned when a single-field projection is
// combined with an explicit projection or a typed materialization.
var ErrConflictingProjections = errors.New("Field cannot be combined with Projection")

// ErrAlreadyRegistered is returned when a collection type name is
// registered twice.
var ErrAlreadyRegistered = errors.New("collection type already registered")

// ErrNotRegistered is returned when opening a collection type that was
// never registered.
var ErrNotRegistered = errors.New("collection type not registered")
