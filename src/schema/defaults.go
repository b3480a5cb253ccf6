package schema

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FieldType names the value types the engine can check declared fields
// against.
type FieldType int

const (
	TypeAny FieldType = iota
	TypeString
	TypeInt
	TypeFloat
	TypeBool
	TypeList
	TypeMap
	TypeTime
	TypeObjectID
)

func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeList:
		return "list"
	case TypeMap:
		return "map"
	case TypeTime:
		return "time"
	case TypeObjectID:
		return "objectid"
	}
	return "any"
}

type defaultKind int

const (
	kindConstant defaultKind = iota
	kindProducer
	kindRequired
)

// DefaultValue is the declared default specification for one field: a
// constant, a zero-argument producer evaluated fresh on each reconciliation,
// or a required marker with no default. Construct values through Constant,
// Producer and the Required variables; the zero value behaves like
// Constant(nil).
type DefaultValue struct {
	kind     defaultKind
	constant interface{}
	producer func() interface{}
	typ      FieldType
}

// Constant declares a field that defaults to a fixed value.
func Constant(value interface{}) DefaultValue {
	return DefaultValue{kind: kindConstant, constant: value, typ: inferType(value)}
}

// Producer declares a field whose default is computed by fn each time a
// document missing the field is reconciled.
func Producer(fn func() interface{}) DefaultValue {
	return DefaultValue{kind: kindProducer, producer: fn}
}

// Required and its typed variants declare fields that carry no default and
// must be present at save time. The typed variants additionally pin the
// field's value type; mismatches fail regardless of the type-checking alert
// level.
var (
	Required         = DefaultValue{kind: kindRequired, typ: TypeAny}
	RequiredString   = DefaultValue{kind: kindRequired, typ: TypeString}
	RequiredInt      = DefaultValue{kind: kindRequired, typ: TypeInt}
	RequiredFloat    = DefaultValue{kind: kindRequired, typ: TypeFloat}
	RequiredList     = DefaultValue{kind: kindRequired, typ: TypeList}
	RequiredMap      = DefaultValue{kind: kindRequired, typ: TypeMap}
	RequiredTime     = DefaultValue{kind: kindRequired, typ: TypeTime}
	RequiredObjectID = DefaultValue{kind: kindRequired, typ: TypeObjectID}
)

// Defaults is the per-collection schema declaration mapping field names to
// their default specification.
type Defaults map[string]DefaultValue

// IsRequired reports whether the field carries no default and must be
// present at save time.
func (d DefaultValue) IsRequired() bool { return d.kind == kindRequired }

// Type returns the declared or inferred value type of the field.
func (d DefaultValue) Type() FieldType { return d.typ }

// resolve produces the fill-in value for an absent field. The producer is
// invoked at most once per call. Constant containers are copied so stored
// documents never alias the declaration.
func (d DefaultValue) resolve() (interface{}, bool) {
	switch d.kind {
	case kindConstant:
		return copyConstant(d.constant), true
	case kindProducer:
		return d.producer(), true
	}
	return nil, false
}

func copyConstant(v interface{}) interface{} {
	switch val := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(val))
		copy(out, val)
		return out
	case bson.A:
		out := make(bson.A, len(val))
		copy(out, val)
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[k] = inner
		}
		return out
	case bson.M:
		out := make(bson.M, len(val))
		for k, inner := range val {
			out[k] = inner
		}
		return out
	}
	return v
}

func inferType(v interface{}) FieldType {
	switch v.(type) {
	case string:
		return TypeString
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInt
	case float32, float64:
		return TypeFloat
	case bool:
		return TypeBool
	case []interface{}, bson.A:
		return TypeList
	case map[string]interface{}, bson.M, bson.D:
		return TypeMap
	case time.Time, primitive.DateTime:
		return TypeTime
	case primitive.ObjectID:
		return TypeObjectID
	}
	return TypeAny
}

// matchesType reports whether a value conforms to a declared field type.
func matchesType(v interface{}, t FieldType) bool {
	if t == TypeAny || v == nil {
		return true
	}
	return inferType(v) == t
}
