package store

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// matchFilter evaluates a filter as a conjunction of per-field constraints.
// A field constraint is either a literal value (equality) or an operator
// map ($gt, $gte, $lt, $lte, $ne, $in, $exists). A top-level $or takes a
// list of filters, at least one of which must match.
func matchFilter(doc bson.D, filter bson.M) bool {
	for key, constraint := range filter {
		if key == "$or" {
			if !matchOr(doc, constraint) {
				return false
			}
			continue
		}
		value, present := lookupField(doc, key)
		if ops, ok := operatorMap(constraint); ok {
			if !matchOperators(value, present, ops) {
				return false
			}
			continue
		}
		if !present || !valuesEqual(value, constraint) {
			return false
		}
	}
	return true
}

func matchOr(doc bson.D, arg interface{}) bool {
	branches := reflect.ValueOf(arg)
	if branches.Kind() != reflect.Slice {
		return false
	}
	for i := 0; i < branches.Len(); i++ {
		branch, ok := toMap(branches.Index(i).Interface())
		if !ok {
			continue
		}
		if matchFilter(doc, bson.M(branch)) {
			return true
		}
	}
	return false
}

func matchOperators(value interface{}, present bool, ops map[string]interface{}) bool {
	for op, arg := range ops {
		switch op {
		case "$exists":
			want, _ := arg.(bool)
			if present != want {
				return false
			}
		case "$ne":
			if present && valuesEqual(value, arg) {
				return false
			}
		case "$in":
			if !present {
				return false
			}
			candidates := reflect.ValueOf(arg)
			if candidates.Kind() != reflect.Slice {
				return false
			}
			found := false
			for i := 0; i < candidates.Len(); i++ {
				if valuesEqual(value, candidates.Index(i).Interface()) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case "$gt", "$gte", "$lt", "$lte":
			if !present {
				return false
			}
			cmp, ok := compareValues(value, arg)
			if !ok {
				return false
			}
			switch op {
			case "$gt":
				if cmp <= 0 {
					return false
				}
			case "$gte":
				if cmp < 0 {
					return false
				}
			case "$lt":
				if cmp >= 0 {
					return false
				}
			case "$lte":
				if cmp > 0 {
					return false
				}
			}
		default:
			return false
		}
	}
	return true
}

// operatorMap reports whether a constraint is an operator document, i.e. a
// mapping whose keys all start with "$".
func operatorMap(constraint interface{}) (map[string]interface{}, bool) {
	m, ok := toMap(constraint)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for key := range m {
		if !strings.HasPrefix(key, "$") {
			return nil, false
		}
	}
	return m, true
}

func toMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case bson.M:
		return m, true
	case map[string]interface{}:
		return m, true
	case bson.D:
		out := make(map[string]interface{}, len(m))
		for _, elem := range m {
			out[elem.Key] = elem.Value
		}
		return out, true
	}
	return nil, false
}

func lookupField(doc bson.D, key string) (interface{}, bool) {
	for _, elem := range doc {
		if elem.Key == key {
			return elem.Value, true
		}
	}
	return nil, false
}

// setField replaces the value of key in place, preserving field order, or
// appends it.
func setField(doc bson.D, key string, value interface{}) bson.D {
	for i, elem := range doc {
		if elem.Key == key {
			doc[i].Value = copyValue(value)
			return doc
		}
	}
	return append(doc, bson.E{Key: key, Value: copyValue(value)})
}

func removeField(doc bson.D, key string) bson.D {
	for i, elem := range doc {
		if elem.Key == key {
			return append(doc[:i], doc[i+1:]...)
		}
	}
	return doc
}

func copyDoc(doc bson.D) bson.D {
	out := make(bson.D, len(doc))
	for i, elem := range doc {
		out[i] = bson.E{Key: elem.Key, Value: copyValue(elem.Value)}
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.D:
		return copyDoc(val)
	case bson.M:
		out := make(bson.M, len(val))
		for k, inner := range val {
			out[k] = copyValue(inner)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[k] = copyValue(inner)
		}
		return out
	case bson.A:
		out := make(bson.A, len(val))
		for i, inner := range val {
			out[i] = copyValue(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = copyValue(inner)
		}
		return out
	}
	return v
}

// valuesEqual compares two dynamically typed field values. Numeric values
// compare across integer widths and floats, everything else falls back to
// deep equality.
func valuesEqual(a, b interface{}) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

// compareValues totally orders two values of a comparable kind (numbers,
// strings, times, object ids, booleans). The second return is false when
// the values are not of a mutually ordered kind.
func compareValues(a, b interface{}) (int, bool) {
	if fa, ok := toFloat64(a); ok {
		if fb, ok := toFloat64(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), true
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1, true
			case av.After(bv):
				return 1, true
			}
			return 0, true
		}
	case primitive.DateTime:
		if bv, ok := b.(primitive.DateTime); ok {
			switch {
			case av < bv:
				return -1, true
			case av > bv:
				return 1, true
			}
			return 0, true
		}
	case primitive.ObjectID:
		if bv, ok := b.(primitive.ObjectID); ok {
			return bytes.Compare(av[:], bv[:]), true
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case !av && bv:
				return -1, true
			case av && !bv:
				return 1, true
			}
			return 0, true
		}
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toInt64(v interface{}) (int64, bool) {
	if f, ok := toFloat64(v); ok {
		return int64(f), true
	}
	return 0, false
}

func formatValue(v interface{}) string {
	return fmt.Sprintf("%v", v)
}
