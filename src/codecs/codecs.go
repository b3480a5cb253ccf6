// Package codecs serializes document values to and from JSON. ObjectIDs and
// timestamps are not natively representable in JSON, so they travel as
// single-key tagged objects that decode back to their native types.
package codecs

import (
	"bytes"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ObjectIDIdentifier = "$oid"
	ISO8601Identifier  = "$iso"
)

// Encode serializes a value to JSON, tagging ObjectIDs and times.
func Encode(v interface{}) ([]byte, error) {
	return marshalValue(v)
}

// EncodeOrdered serializes an ordered field sequence as a JSON object,
// preserving field order.
func EncodeOrdered(fields bson.D) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, elem := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(elem.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to encode key %q: %w", elem.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := marshalValue(elem.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode field %q: %w", elem.Key, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalValue(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case primitive.ObjectID:
		return json.Marshal(map[string]string{ObjectIDIdentifier: val.Hex()})
	case time.Time:
		return json.Marshal(map[string]string{ISO8601Identifier: val.Format(time.RFC3339Nano)})
	case primitive.DateTime:
		return marshalValue(val.Time().UTC())
	case bson.D:
		return EncodeOrdered(val)
	case bson.M:
		return marshalMap(map[string]interface{}(val))
	case map[string]interface{}:
		return marshalMap(val)
	case bson.A:
		return marshalSlice([]interface{}(val))
	case []interface{}:
		return marshalSlice(val)
	}
	return json.Marshal(v)
}

func marshalMap(m map[string]interface{}) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m))
	for key, value := range m {
		raw, err := marshalValue(value)
		if err != nil {
			return nil, err
		}
		out[key] = raw
	}
	return json.Marshal(out)
}

func marshalSlice(s []interface{}) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, value := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		raw, err := marshalValue(value)
		if err != nil {
			return nil, err
		}
		buf.Write(raw)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Decode deserializes JSON produced by Encode, converting tagged objects
// back to ObjectIDs and times.
func Decode(data []byte) (interface{}, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}
	return convertTagged(raw)
}

// DecodeObject deserializes a JSON object into a field map.
func DecodeObject(data []byte) (map[string]interface{}, error) {
	decoded, err := Decode(data)
	if err != nil {
		return nil, err
	}
	obj, ok := decoded.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a json object, got %T", decoded)
	}
	return obj, nil
}

func convertTagged(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		if hex, ok := val[ObjectIDIdentifier].(string); ok && len(val) == 1 {
			oid, err := primitive.ObjectIDFromHex(hex)
			if err != nil {
				return nil, fmt.Errorf("invalid %s value %q: %w", ObjectIDIdentifier, hex, err)
			}
			return oid, nil
		}
		if stamp, ok := val[ISO8601Identifier].(string); ok && len(val) == 1 {
			t, err := time.Parse(time.RFC3339Nano, stamp)
			if err != nil {
				if t, err = time.Parse(time.RFC3339, stamp); err != nil {
					return nil, fmt.Errorf("invalid %s value %q: %w", ISO8601Identifier, stamp, err)
				}
			}
			return t, nil
		}
		for key, inner := range val {
			converted, err := convertTagged(inner)
			if err != nil {
				return nil, err
			}
			val[key] = converted
		}
		return val, nil
	case []interface{}:
		for i, inner := range val {
			converted, err := convertTagged(inner)
			if err != nil {
				return nil, err
			}
			val[i] = converted
		}
		return val, nil
	}
	return v, nil
}
