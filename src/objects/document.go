package objects

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson"
)

// Document is an ordered field container. It is a plain data structure with
// no lifecycle rules of its own; identity immutability and store round
// trips live on Object. It implements schema.Fields.
type Document struct {
	fields bson.D
	index  map[string]int
}

func NewDocument() *Document {
	return &Document{index: make(map[string]int)}
}

// FromRaw builds a Document from a stored field sequence, preserving order.
func FromRaw(raw bson.D) *Document {
	d := &Document{
		fields: make(bson.D, len(raw)),
		index:  make(map[string]int, len(raw)),
	}
	copy(d.fields, raw)
	for i, elem := range d.fields {
		d.index[elem.Key] = i
	}
	return d
}

// FromMap builds a Document from an unordered field map. Keys are sorted so
// the resulting order is deterministic.
func FromMap(m map[string]interface{}) *Document {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	d := NewDocument()
	for _, key := range keys {
		d.Set(key, m[key])
	}
	return d
}

func (d *Document) Get(key string) (interface{}, bool) {
	i, ok := d.index[key]
	if !ok {
		return nil, false
	}
	return d.fields[i].Value, true
}

// Set replaces the value of an existing field in place (its position is
// kept) or appends a new field.
func (d *Document) Set(key string, value interface{}) {
	if i, ok := d.index[key]; ok {
		d.fields[i].Value = value
		return
	}
	d.index[key] = len(d.fields)
	d.fields = append(d.fields, bson.E{Key: key, Value: value})
}

// Delete removes a field, reporting whether it was present.
func (d *Document) Delete(key string) bool {
	i, ok := d.index[key]
	if !ok {
		return false
	}
	d.fields = append(d.fields[:i], d.fields[i+1:]...)
	delete(d.index, key)
	for j := i; j < len(d.fields); j++ {
		d.index[d.fields[j].Key] = j
	}
	return true
}

// Keys returns the field names in document order.
func (d *Document) Keys() []string {
	keys := make([]string, len(d.fields))
	for i, elem := range d.fields {
		keys[i] = elem.Key
	}
	return keys
}

func (d *Document) Len() int { return len(d.fields) }

// Raw returns a copy of the ordered field sequence.
func (d *Document) Raw() bson.D {
	out := make(bson.D, len(d.fields))
	copy(out, d.fields)
	return out
}

func (d *Document) Clone() *Document {
	return FromRaw(d.fields)
}
