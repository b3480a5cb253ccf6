package store

// Add custom error definitions here
import "errors"

// ErrMalformedPath is returned for location strings missing the
// "database.collection" separator.
var ErrMalformedPath = errors.New("malformed database path")

// ErrNoDocument is returned by FindOne when nothing matches the filter.
var ErrNoDocument = errors.New("no matching document")

// ErrDuplicateID is returned when an insert collides with an existing
// identity in the same collection.
var ErrDuplicateID = errors.New("identity already exists in collection")
