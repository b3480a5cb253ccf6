package collections

import (
	"context"

	"github.com/VictoriaMetrics/metrics"
	"go.mongodb.org/mongo-driver/bson"

	"mongomap/src/objects"
	"mongomap/src/store"
)

var pagesFetchedCounter = metrics.GetOrCreateCounter("mongomap_iterator_pages_fetched_total")

// Iterator is a lazy, forward-only traversal of a result set in bounded
// memory: it fetches pages of a fixed size using the last-seen key of the
// previous page as an exclusive lower bound for the next fetch, so total
// cost stays linear in the result count instead of the quadratic re-scan
// cost of skip-offset paging.
//
// No cursor is held across pages; every page is an independent call, so
// stopping early costs nothing. The traversal is restartable by building a
// fresh iterator but not safely resumable if the collection is concurrently
// mutated around the current key. Ties on a non-unique key are ordered by a
// secondary identity sort, and the page boundary is the (key, identity)
// pair, so documents sharing the boundary key are not skipped.
type Iterator struct {
	c        *Collection
	filter   bson.M
	keyField string
	pageSize int64

	buf     []*objects.Object
	lastKey interface{}
	lastID  interface{}
	pos     int
	started bool
	done    bool
	err     error
}

// Iterator traverses all documents matching filter in ascending identity
// order, fetching pageSize documents per store round trip.
func (c *Collection) Iterator(filter bson.M, pageSize int64) *Iterator {
	return c.IteratorBy(objects.IDKey, filter, pageSize)
}

// IteratorBy traverses in ascending order of the given key field, which
// must totally order the matching documents.
func (c *Collection) IteratorBy(keyField string, filter bson.M, pageSize int64) *Iterator {
	copied := make(bson.M, len(filter))
	for k, v := range filter {
		copied[k] = v
	}
	return &Iterator{c: c, filter: copied, keyField: keyField, pageSize: pageSize}
}

// Next advances to the next object, fetching the next page when the buffer
// runs out. It returns false at the end of the traversal or on error; check
// Err afterwards.
func (it *Iterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	it.pos++
	if it.pos < len(it.buf) {
		return true
	}
	if it.done {
		it.buf = nil
		return false
	}
	if !it.fetchPage(ctx) {
		return false
	}
	it.pos = 0
	return true
}

// Object returns the object at the current position.
func (it *Iterator) Object() *objects.Object {
	if it.pos < 0 || it.pos >= len(it.buf) {
		return nil
	}
	return it.buf[it.pos]
}

// Err returns the first error hit during iteration, if any.
func (it *Iterator) Err() error { return it.err }

func (it *Iterator) fetchPage(ctx context.Context) bool {
	filter := it.filter
	if it.started {
		pageFilter := make(bson.M, len(it.filter)+1)
		for k, v := range it.filter {
			pageFilter[k] = v
		}
		if it.keyField == objects.IDKey {
			pageFilter[it.keyField] = bson.M{"$gt": it.lastKey}
		} else {
			// ties on the key carry over the boundary, so resume past
			// the exact (key, identity) pair of the last row
			pageFilter["$or"] = []bson.M{
				{it.keyField: bson.M{"$gt": it.lastKey}},
				{it.keyField: it.lastKey, objects.IDKey: bson.M{"$gt": it.lastID}},
			}
		}
		filter = pageFilter
	}

	sortSpec := bson.D{{Key: it.keyField, Value: 1}}
	if it.keyField != objects.IDKey {
		sortSpec = append(sortSpec, bson.E{Key: objects.IDKey, Value: 1})
	}

	raws, err := it.c.handle.Store().Find(ctx, it.c.handle.Path(), filter, store.FindOptions{
		Sort:  sortSpec,
		Limit: it.pageSize,
	})
	if err != nil {
		it.err = err
		return false
	}
	pagesFetchedCounter.Inc()
	it.started = true

	if int64(len(raws)) < it.pageSize {
		it.done = true
	}
	if len(raws) == 0 {
		it.buf = nil
		return false
	}

	buf := make([]*objects.Object, 0, len(raws))
	for _, raw := range raws {
		obj, err := it.c.bindRaw(raw)
		if err != nil {
			it.err = err
			return false
		}
		buf = append(buf, obj)
	}
	last := raws[len(raws)-1]
	for _, elem := range last {
		switch elem.Key {
		case it.keyField:
			it.lastKey = elem.Value
		case objects.IDKey:
			it.lastID = elem.Value
		}
	}
	it.buf = buf
	return true
}
