package objects

import (
	"context"
	"errors"
	"fmt"

	"github.com/VictoriaMetrics/metrics"
	"go.mongodb.org/mongo-driver/bson"

	"mongomap/src/codecs"
	"mongomap/src/schema"
	"mongomap/src/store"
)

// State is the lifecycle position of an object.
type State int32

const (
	// StateUnbound means constructed in memory, never persisted.
	StateUnbound State = iota
	// StateBound means loaded from or successfully saved to the store.
	StateBound
	// StateRemoved is terminal; every further operation fails with
	// ErrUseAfterRemove.
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateBound:
		return "bound"
	case StateRemoved:
		return "removed"
	}
	return "unbound"
}

var (
	savedCounter   = metrics.GetOrCreateCounter("mongomap_objects_saved_total")
	removedCounter = metrics.GetOrCreateCounter("mongomap_objects_removed_total")
	renamedCounter = metrics.GetOrCreateCounter("mongomap_objects_renamed_total")
)

// Object is a lifecycle-managed document: an ordered field container bound
// to a collection handle. Mutation is in-memory only until Save.
type Object struct {
	handle *Handle
	doc    *Document
	state  State
}

func (o *Object) Handle() *Handle { return o.handle }
func (o *Object) State() State    { return o.state }

// ID returns the identity value, or nil if none has been set yet.
func (o *Object) ID() interface{} {
	id, _ := o.doc.Get(IDKey)
	return id
}

// Get reads a field. After Remove it reports every field as absent.
func (o *Object) Get(key string) (interface{}, bool) {
	if o.state == StateRemoved {
		return nil, false
	}
	return o.doc.Get(key)
}

// Keys returns the field names in document order.
func (o *Object) Keys() []string {
	if o.state == StateRemoved {
		return nil
	}
	return o.doc.Keys()
}

// Raw returns a copy of the ordered field sequence.
func (o *Object) Raw() bson.D {
	if o.state == StateRemoved {
		return nil
	}
	return o.doc.Raw()
}

// Set assigns a field in memory. The identity field is immutable; use
// Rename. Assignments are vetted against the defaults declaration per the
// process-wide alert levels.
func (o *Object) Set(key string, value interface{}) error {
	if o.state == StateRemoved {
		return ErrUseAfterRemove
	}
	if key == IDKey {
		return ErrImmutableIdentity
	}
	if err := schema.CheckField(o.handle.defaults, key, value); err != nil {
		return err
	}
	o.doc.Set(key, value)
	return nil
}

// Delete removes a field in memory. The identity field cannot be deleted.
func (o *Object) Delete(key string) error {
	if o.state == StateRemoved {
		return ErrUseAfterRemove
	}
	if key == IDKey {
		return ErrImmutableIdentity
	}
	o.doc.Delete(key)
	return nil
}

// Save reconciles against the declaration and writes the full document as
// an upsert by identity. A reconciliation failure leaves the store
// untouched.
func (o *Object) Save(ctx context.Context) error {
	if o.state == StateRemoved {
		return ErrUseAfterRemove
	}
	id, ok := o.doc.Get(IDKey)
	if !ok {
		return fmt.Errorf("%w: cannot save to %s", ErrMissingIdentity, o.handle.path)
	}
	if err := schema.Reconcile(o.doc, o.handle.defaults, schema.OnSave); err != nil {
		return err
	}
	if err := o.handle.store.Replace(ctx, o.handle.path, id, o.doc.Raw(), true); err != nil {
		return err
	}
	o.state = StateBound
	savedCounter.Inc()
	return nil
}

// Rename moves the object to a new identity. This is the only sanctioned
// way to change the identity field. It is a two-step insert-new/remove-old
// sequence: a crash between the steps leaves the object duplicated under
// both identities, never lost.
func (o *Object) Rename(ctx context.Context, newID interface{}) error {
	if o.state == StateRemoved {
		return ErrUseAfterRemove
	}
	if o.state != StateBound {
		return fmt.Errorf("%w: rename requires a bound object", ErrNotBound)
	}
	exists, err := o.handle.Exists(ctx, newID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %v in %s", ErrDuplicateIdentity, newID, o.handle.path)
	}
	if err := schema.Reconcile(o.doc, o.handle.defaults, schema.OnSave); err != nil {
		return err
	}
	oldID, _ := o.doc.Get(IDKey)
	renamed := o.doc.Clone()
	renamed.Set(IDKey, newID)
	if err := o.handle.store.Insert(ctx, o.handle.path, renamed.Raw()); err != nil {
		return err
	}
	if err := o.handle.store.Delete(ctx, o.handle.path, oldID); err != nil {
		return fmt.Errorf("rename of %v left a duplicate under %v: %w", oldID, newID, err)
	}
	o.doc = renamed
	renamedCounter.Inc()
	o.handle.logger.Debugf("renamed object %v to %v in %s", oldID, newID, o.handle.path)
	return nil
}

// Remove deletes the object from the store. The object is terminal
// afterwards; a second Remove fails with ErrUseAfterRemove, not a store
// error.
func (o *Object) Remove(ctx context.Context) error {
	if o.state == StateRemoved {
		return ErrUseAfterRemove
	}
	id, ok := o.doc.Get(IDKey)
	if !ok {
		return fmt.Errorf("%w: cannot remove from %s", ErrMissingIdentity, o.handle.path)
	}
	if err := o.handle.store.Delete(ctx, o.handle.path, id); err != nil {
		return err
	}
	o.state = StateRemoved
	removedCounter.Inc()
	return nil
}

// Update applies a partial $set update to both the store and the in-memory
// object. Unlike load-modify-Save it only touches the given fields, though
// it still overwrites concurrent writes to those same fields.
func (o *Object) Update(ctx context.Context, fields map[string]interface{}) error {
	if o.state == StateRemoved {
		return ErrUseAfterRemove
	}
	if o.state != StateBound {
		return fmt.Errorf("%w: update requires a bound object", ErrNotBound)
	}
	for key, value := range fields {
		if key == IDKey {
			return ErrImmutableIdentity
		}
		if err := schema.CheckField(o.handle.defaults, key, value); err != nil {
			return err
		}
	}
	id, _ := o.doc.Get(IDKey)
	if err := o.handle.store.Update(ctx, o.handle.path, id, bson.M{"$set": bson.M(fields)}); err != nil {
		return err
	}
	for key, value := range fields {
		o.doc.Set(key, value)
	}
	return nil
}

// UpdateRaw applies an arbitrary update document and refreshes the object
// from the store afterwards. No type checking is performed.
func (o *Object) UpdateRaw(ctx context.Context, update bson.M) error {
	if o.state == StateRemoved {
		return ErrUseAfterRemove
	}
	if o.state != StateBound {
		return fmt.Errorf("%w: update requires a bound object", ErrNotBound)
	}
	id, _ := o.doc.Get(IDKey)
	if err := o.handle.store.Update(ctx, o.handle.path, id, update); err != nil {
		return err
	}
	raw, err := o.handle.store.FindOne(ctx, o.handle.path, bson.M{IDKey: id})
	if err != nil {
		return err
	}
	o.doc = FromRaw(raw)
	return nil
}

// Copy stores a duplicate of the object under newID, or under a random
// identity when newID is nil. Overrides are applied on top of the copied
// fields.
func (o *Object) Copy(ctx context.Context, newID interface{}, overrides map[string]interface{}) (*Object, error) {
	if o.state == StateRemoved {
		return nil, ErrUseAfterRemove
	}
	data := o.doc.Clone()
	for key, value := range overrides {
		data.Set(key, value)
	}
	if newID == nil {
		return o.handle.Create(ctx, data, CreateOptions{RandomID: true})
	}
	data.Set(IDKey, newID)
	return o.handle.Create(ctx, data, CreateOptions{})
}

// ToJSON serializes the object's fields in document order, tagging
// ObjectIDs and times per the codecs package.
func (o *Object) ToJSON() ([]byte, error) {
	if o.state == StateRemoved {
		return nil, ErrUseAfterRemove
	}
	return codecs.EncodeOrdered(o.doc.Raw())
}

// JSONUpdate applies a JSON payload as a partial update. The identity key
// and the excluded keys are dropped; with ignoreNonDefaults set and a
// non-empty declaration, keys outside the declaration are dropped too.
func (o *Object) JSONUpdate(ctx context.Context, data []byte, exclude []string, ignoreNonDefaults bool) error {
	fields, err := codecs.DecodeObject(data)
	if err != nil {
		return err
	}
	delete(fields, IDKey)
	for _, key := range exclude {
		delete(fields, key)
	}
	if ignoreNonDefaults && len(o.handle.defaults) > 0 {
		for key := range fields {
			if _, declared := o.handle.defaults[key]; !declared {
				delete(fields, key)
			}
		}
	}
	return o.Update(ctx, fields)
}

// JSONUpdateFields applies a JSON payload as a partial update restricted to
// the listed fields.
func (o *Object) JSONUpdateFields(ctx context.Context, data []byte, fieldsToUpdate []string) error {
	decoded, err := codecs.DecodeObject(data)
	if err != nil {
		return err
	}
	fields := make(map[string]interface{})
	for _, key := range fieldsToUpdate {
		if key == IDKey {
			continue
		}
		if value, ok := decoded[key]; ok {
			fields[key] = value
		}
	}
	return o.Update(ctx, fields)
}

// ErrIsNotFound is a convenience matcher for store/not-found conditions
// from either the handle or the store layer.
func ErrIsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, store.ErrNoDocument)
}
