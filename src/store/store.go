package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// IDKey is the identity field every document carries. Its value is unique
// within a collection and immutable through normal mutation.
const IDKey = "_id"

// FindOptions carries the query shaping parameters understood by every
// backend. A zero value means an unshaped find.
type FindOptions struct {
	// Sort is a sequence of field/direction pairs; direction is 1 for
	// ascending, -1 for descending.
	Sort bson.D

	// Skip and Limit window the result set. Zero disables each.
	Skip  int64
	Limit int64

	// Projection restricts the returned fields. Field names map to 1
	// (include) or 0 (exclude).
	Projection bson.D
}

// Store is the query surface the mapping core needs from a document store.
// Documents cross the boundary as bson.D so field order survives the trip.
// Filters are opaque pass-through; the backend owns their semantics.
type Store interface {
	// FindOne returns the first document matching filter, or ErrNoDocument.
	FindOne(ctx context.Context, path Path, filter bson.M) (bson.D, error)

	// Find returns all documents matching filter, shaped by opts.
	Find(ctx context.Context, path Path, filter bson.M, opts FindOptions) ([]bson.D, error)

	// Count returns the number of documents matching filter without
	// materializing them.
	Count(ctx context.Context, path Path, filter bson.M) (int64, error)

	// Insert stores a new document; ErrDuplicateID if its identity exists.
	Insert(ctx context.Context, path Path, doc bson.D) error

	// Replace overwrites the document with the given identity. With upsert
	// set, a missing document is created instead.
	Replace(ctx context.Context, path Path, id interface{}, doc bson.D, upsert bool) error

	// Update applies a mongo update document ({"$set": {...}} or raw
	// operators) to the document with the given identity.
	Update(ctx context.Context, path Path, id interface{}, update bson.M) error

	// Delete removes the document with the given identity. Deleting an
	// absent identity is not an error.
	Delete(ctx context.Context, path Path, id interface{}) error
}
