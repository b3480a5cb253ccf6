package objects

import (
	"context"
	"errors"
	"fmt"

	"github.com/VictoriaMetrics/metrics"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"mongomap/src/codecs"
	"mongomap/src/helpers"
	"mongomap/src/schema"
	"mongomap/src/store"
)

// IDKey is the identity field of every document.
const IDKey = store.IDKey

var (
	createdCounter = metrics.GetOrCreateCounter("mongomap_objects_created_total")
	loadedCounter  = metrics.GetOrCreateCounter("mongomap_objects_loaded_total")
)

// Handle is the binding of a defaults declaration to a physical collection
// location. It holds no document cache: every operation round-trips to the
// store, so handles sharing a location observe each other's writes.
type Handle struct {
	path     store.Path
	defaults schema.Defaults
	store    store.Store
	logger   *zap.SugaredLogger
}

// NewHandle resolves a "database.collection" location string into a handle.
// A location missing the separator fails with store.ErrMalformedPath before
// any store call.
func NewHandle(location string, defaults schema.Defaults, st store.Store, logger *zap.SugaredLogger) (*Handle, error) {
	path, err := store.ParsePath(location)
	if err != nil {
		return nil, err
	}
	return &Handle{path: path, defaults: defaults, store: st, logger: logger}, nil
}

func (h *Handle) Path() store.Path           { return h.path }
func (h *Handle) Defaults() schema.Defaults  { return h.defaults }
func (h *Handle) Store() store.Store         { return h.store }
func (h *Handle) Logger() *zap.SugaredLogger { return h.logger }

// ResolveFilter turns a load query into a store filter: mapping types pass
// through (copied), anything else matches against the identity field.
func ResolveFilter(query interface{}) bson.M {
	switch q := query.(type) {
	case nil:
		return bson.M{}
	case bson.M:
		out := make(bson.M, len(q))
		for k, v := range q {
			out[k] = v
		}
		return out
	case map[string]interface{}:
		out := make(bson.M, len(q))
		for k, v := range q {
			out[k] = v
		}
		return out
	case bson.D:
		out := make(bson.M, len(q))
		for _, elem := range q {
			out[elem.Key] = elem.Value
		}
		return out
	}
	return bson.M{IDKey: query}
}

type CreateOptions struct {
	// RandomID stores the object under a freshly generated identity,
	// overwriting any identity present in the data.
	RandomID bool

	// Overwrite replaces an existing object with the same identity instead
	// of failing with ErrDuplicateIdentity.
	Overwrite bool
}

// Create reconciles the given fields against the declaration and inserts a
// new document, returning a bound object. A reconciliation failure leaves
// the store untouched.
func (h *Handle) Create(ctx context.Context, data *Document, opts CreateOptions) (*Object, error) {
	doc := NewDocument()
	if data != nil {
		doc = data.Clone()
	}
	if opts.RandomID {
		doc.Set(IDKey, helpers.GenerateUUID())
	}
	if _, ok := doc.Get(IDKey); !ok {
		return nil, fmt.Errorf("%w: no %s in create data for %s", ErrMissingIdentity, IDKey, h.path)
	}
	if err := schema.Reconcile(doc, h.defaults, schema.OnSave); err != nil {
		return nil, err
	}
	id, _ := doc.Get(IDKey)

	if opts.Overwrite {
		if err := h.store.Replace(ctx, h.path, id, doc.Raw(), true); err != nil {
			return nil, err
		}
	} else {
		if _, err := h.store.FindOne(ctx, h.path, bson.M{IDKey: id}); err == nil {
			return nil, fmt.Errorf("%w: %v in %s", ErrDuplicateIdentity, id, h.path)
		} else if !errors.Is(err, store.ErrNoDocument) {
			return nil, err
		}
		if err := h.store.Insert(ctx, h.path, doc.Raw()); err != nil {
			return nil, err
		}
	}

	createdCounter.Inc()
	h.logger.Debugf("created object %v in %s", id, h.path)
	return &Object{handle: h, doc: doc, state: StateBound}, nil
}

// Load fetches the single document matching the query and reconciles it,
// filling declared defaults into gaps. Zero matches fail with ErrNotFound,
// more than one with ErrAmbiguousResult.
func (h *Handle) Load(ctx context.Context, query interface{}) (*Object, error) {
	filter := ResolveFilter(query)
	docs, err := h.store.Find(ctx, h.path, filter, store.FindOptions{Limit: 2})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: query %v in %s", ErrNotFound, filter, h.path)
	}
	if len(docs) > 1 {
		return nil, fmt.Errorf("%w: query %v in %s", ErrAmbiguousResult, filter, h.path)
	}
	doc := FromRaw(docs[0])
	if err := schema.Reconcile(doc, h.defaults, schema.OnLoad); err != nil {
		return nil, err
	}
	loadedCounter.Inc()
	return &Object{handle: h, doc: doc, state: StateBound}, nil
}

// Exists reports whether any document matches the query, without
// materializing it.
func (h *Handle) Exists(ctx context.Context, query interface{}) (bool, error) {
	_, err := h.store.FindOne(ctx, h.path, ResolveFilter(query))
	if errors.Is(err, store.ErrNoDocument) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Bind wraps an already-fetched document into a bound object without a
// store round trip. The collections package uses this to materialize query
// results.
func (h *Handle) Bind(doc *Document) *Object {
	return &Object{handle: h, doc: doc, state: StateBound}
}

// New wraps fields into an unbound object; nothing is written until Save.
func (h *Handle) New(data *Document) *Object {
	doc := NewDocument()
	if data != nil {
		doc = data.Clone()
	}
	return &Object{handle: h, doc: doc, state: StateUnbound}
}

// CreateFromJSON creates a new object with a random identity from a JSON
// payload. With ignoreNonDefaults set and a non-empty declaration, payload
// keys outside the declaration are dropped before creation.
func (h *Handle) CreateFromJSON(ctx context.Context, data []byte, ignoreNonDefaults bool) (*Object, error) {
	fields, err := codecs.DecodeObject(data)
	if err != nil {
		return nil, err
	}
	if ignoreNonDefaults && len(h.defaults) > 0 {
		for key := range fields {
			if _, declared := h.defaults[key]; !declared {
				delete(fields, key)
			}
		}
	}
	return h.Create(ctx, FromMap(fields), CreateOptions{RandomID: true})
}
