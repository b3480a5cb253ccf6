package collections

import (
	"context"
	"fmt"

	"github.com/VictoriaMetrics/metrics"
	"go.mongodb.org/mongo-driver/bson"

	"mongomap/src/objects"
	"mongomap/src/schema"
	"mongomap/src/store"
)

var listedCounter = metrics.GetOrCreateCounter("mongomap_collections_listed_total")

// Collection exposes multi-document operations over a handle. Materializing
// an unbounded result set is the caller's memory risk; for large
// collections use Iterator instead of List.
type Collection struct {
	handle *objects.Handle
}

func New(handle *objects.Handle) *Collection {
	return &Collection{handle: handle}
}

func (c *Collection) Handle() *objects.Handle { return c.handle }

// ListOptions shapes a collection query. Filter and Where are mutually
// exclusive; Where is shorthand for a conjunction of field-equality
// constraints. Page is 1-indexed and only takes effect with a PageSize;
// zero Page means no paging.
type ListOptions struct {
	Filter bson.M
	Where  map[string]interface{}

	// SortBy orders results by a single field, ascending unless Descending
	// is set; it defaults to the identity field. An explicit Sort sequence
	// overrides both, and Unsorted disables ordering entirely.
	SortBy     string
	Descending bool
	Sort       bson.D
	Unsorted   bool

	Page     int64
	PageSize int64

	// Projection limits the returned fields (identity always included);
	// it forces raw materialization.
	Projection []string
}

func (o ListOptions) filter() (bson.M, error) {
	if len(o.Filter) > 0 && len(o.Where) > 0 {
		return nil, ErrConflictingFilters
	}
	if len(o.Where) > 0 {
		filter := make(bson.M, len(o.Where))
		for key, value := range o.Where {
			filter[key] = value
		}
		return filter, nil
	}
	if o.Filter == nil {
		return bson.M{}, nil
	}
	return o.Filter, nil
}

func (o ListOptions) findOptions() store.FindOptions {
	opts := store.FindOptions{}
	switch {
	case len(o.Sort) > 0:
		opts.Sort = o.Sort
	case o.Unsorted:
	default:
		key := o.SortBy
		if key == "" {
			key = objects.IDKey
		}
		direction := 1
		if o.Descending {
			direction = -1
		}
		opts.Sort = bson.D{{Key: key, Value: direction}}
	}
	if o.PageSize > 0 {
		opts.Limit = o.PageSize
		if o.Page > 0 {
			opts.Skip = (o.Page - 1) * o.PageSize
		}
	}
	for _, field := range o.Projection {
		opts.Projection = append(opts.Projection, bson.E{Key: field, Value: 1})
	}
	return opts
}

func (c *Collection) find(ctx context.Context, opts ListOptions) ([]bson.D, error) {
	filter, err := opts.filter()
	if err != nil {
		return nil, err
	}
	docs, err := c.handle.Store().Find(ctx, c.handle.Path(), filter, opts.findOptions())
	if err != nil {
		return nil, err
	}
	listedCounter.Inc()
	return docs, nil
}

// List materializes every matching document as a lifecycle-bound object,
// reconciled against the handle's declaration.
func (c *Collection) List(ctx context.Context, opts ListOptions) ([]*objects.Object, error) {
	if len(opts.Projection) > 0 {
		return nil, fmt.Errorf("%w: projected results cannot be saved, use ListRaw", ErrConflictingProjections)
	}
	docs, err := c.find(ctx, opts)
	if err != nil {
		return nil, err
	}
	result := make([]*objects.Object, 0, len(docs))
	for _, raw := range docs {
		obj, err := c.bindRaw(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, obj)
	}
	return result, nil
}

// ListRaw materializes every matching document as a raw field sequence with
// no lifecycle attached; modifications cannot be written back.
func (c *Collection) ListRaw(ctx context.Context, opts ListOptions) ([]bson.D, error) {
	return c.find(ctx, opts)
}

// ListField returns only the named field's value for each matching
// document. Documents lacking the field are omitted.
func (c *Collection) ListField(ctx context.Context, field string, opts ListOptions) ([]interface{}, error) {
	if len(opts.Projection) > 0 {
		return nil, ErrConflictingProjections
	}
	opts.Projection = []string{field}
	docs, err := c.find(ctx, opts)
	if err != nil {
		return nil, err
	}
	values := make([]interface{}, 0, len(docs))
	for _, raw := range docs {
		for _, elem := range raw {
			if elem.Key == field {
				values = append(values, elem.Value)
				break
			}
		}
	}
	return values, nil
}

// Count returns the number of matching documents without materializing
// them.
func (c *Collection) Count(ctx context.Context, filter bson.M) (int64, error) {
	return c.handle.Store().Count(ctx, c.handle.Path(), filter)
}

// GetLast returns the single object with the greatest identity, which for
// random/time-ordered identities is the most recently created one. Fails
// with objects.ErrNotFound on an empty result.
func (c *Collection) GetLast(ctx context.Context, opts ListOptions) (*objects.Object, error) {
	opts.Descending = true
	opts.Page = 1
	opts.PageSize = 1
	result, err := c.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%w: %s is empty for this query", objects.ErrNotFound, c.handle.Path())
	}
	return result[0], nil
}

// bindRaw wraps a fetched document into a bound object, reconciled on
// load.
func (c *Collection) bindRaw(raw bson.D) (*objects.Object, error) {
	doc := objects.FromRaw(raw)
	if err := schema.Reconcile(doc, c.handle.Defaults(), schema.OnLoad); err != nil {
		return nil, err
	}
	return c.handle.Bind(doc), nil
}
