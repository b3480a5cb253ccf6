package objects

// Add custom error definitions here
import (
	"errors"

	"mongomap/src/store"
)

var ErrNotFound = errors.New("no matching object")
var ErrAmbiguousResult = errors.New("more than one object matches query")
var ErrMissingIdentity = errors.New("object has no identity field")
var ErrImmutableIdentity = errors.New("identity field cannot be modified directly; use Rename")
var ErrUseAfterRemove = errors.New("object has been removed")
var ErrNotBound = errors.New("object is not bound to the store")

// ErrDuplicateIdentity is the store's duplicate-identity sentinel; create
// and rename surface it when the target identity is taken.
var ErrDuplicateIdentity = store.ErrDuplicateID
