package codecs

import (
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestObjectIDRoundTrip tests that ObjectIDs travel as tagged objects
func TestObjectIDRoundTrip(t *testing.T) {
	oid := primitive.NewObjectID()
	out, err := Encode(map[string]interface{}{"ref": oid})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(string(out), `"$oid"`) {
		t.Errorf("serialized form lacks the tag: %s", out)
	}

	decoded, err := DecodeObject(out)
	if err != nil {
		t.Fatalf("DecodeObject failed: %v", err)
	}
	back, ok := decoded["ref"].(primitive.ObjectID)
	if !ok {
		t.Fatalf("ref decoded as %T, want ObjectID", decoded["ref"])
	}
	if back != oid {
		t.Errorf("round trip changed the id: %s != %s", back.Hex(), oid.Hex())
	}
}

// TestTimeRoundTrip tests that timestamps travel as tagged ISO 8601
// strings, including the seconds-precision fallback
func TestTimeRoundTrip(t *testing.T) {
	stamp := time.Date(2024, 3, 15, 9, 30, 0, 123456789, time.UTC)
	out, err := Encode(map[string]interface{}{"at": stamp})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(string(out), `"$iso"`) {
		t.Errorf("serialized form lacks the tag: %s", out)
	}

	decoded, err := DecodeObject(out)
	if err != nil {
		t.Fatalf("DecodeObject failed: %v", err)
	}
	back, ok := decoded["at"].(time.Time)
	if !ok {
		t.Fatalf("at decoded as %T, want time.Time", decoded["at"])
	}
	if !back.Equal(stamp) {
		t.Errorf("round trip changed the time: %v != %v", back, stamp)
	}

	// produced by other writers without sub-second precision
	coarse, err := Decode([]byte(`{"$iso":"2024-03-15T09:30:00Z"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if _, ok := coarse.(time.Time); !ok {
		t.Errorf("coarse timestamp decoded as %T", coarse)
	}
}

// TestEncodeOrderedPreservesOrder tests that field order survives
// serialization
func TestEncodeOrderedPreservesOrder(t *testing.T) {
	fields := bson.D{
		{Key: "_id", Value: "t1"},
		{Key: "zeta", Value: 1},
		{Key: "alpha", Value: 2},
	}
	out, err := EncodeOrdered(fields)
	if err != nil {
		t.Fatalf("EncodeOrdered failed: %v", err)
	}
	s := string(out)
	if strings.Index(s, `"_id"`) > strings.Index(s, `"zeta"`) || strings.Index(s, `"zeta"`) > strings.Index(s, `"alpha"`) {
		t.Errorf("field order not preserved: %s", s)
	}
}

// TestNestedTagged tests tagged values inside nested containers
func TestNestedTagged(t *testing.T) {
	oid := primitive.NewObjectID()
	fields := bson.D{
		{Key: "_id", Value: "t1"},
		{Key: "refs", Value: bson.A{oid}},
		{Key: "meta", Value: bson.M{"seen": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}},
	}
	out, err := EncodeOrdered(fields)
	if err != nil {
		t.Fatalf("EncodeOrdered failed: %v", err)
	}

	decoded, err := DecodeObject(out)
	if err != nil {
		t.Fatalf("DecodeObject failed: %v", err)
	}
	refs, ok := decoded["refs"].([]interface{})
	if !ok || len(refs) != 1 {
		t.Fatalf("refs decoded as %T", decoded["refs"])
	}
	if _, ok := refs[0].(primitive.ObjectID); !ok {
		t.Errorf("nested ObjectID decoded as %T", refs[0])
	}
	meta, ok := decoded["meta"].(map[string]interface{})
	if !ok {
		t.Fatalf("meta decoded as %T", decoded["meta"])
	}
	if _, ok := meta["seen"].(time.Time); !ok {
		t.Errorf("nested time decoded as %T", meta["seen"])
	}
}

// TestDecodeErrors tests malformed payloads
func TestDecodeErrors(t *testing.T) {
	if _, err := Decode([]byte(`{not json`)); err == nil {
		t.Error("malformed json accepted")
	}
	if _, err := Decode([]byte(`{"$oid":"nothex"}`)); err == nil {
		t.Error("invalid ObjectID hex accepted")
	}
	if _, err := Decode([]byte(`{"$iso":"not a time"}`)); err == nil {
		t.Error("invalid timestamp accepted")
	}
	if _, err := DecodeObject([]byte(`[1,2]`)); err == nil {
		t.Error("non-object payload accepted by DecodeObject")
	}

	// a two-key map containing a tag key is not a tagged value
	decoded, err := Decode([]byte(`{"$oid":"x","other":1}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if _, ok := decoded.(map[string]interface{}); !ok {
		t.Errorf("two-key map decoded as %T", decoded)
	}
}

// TestDateTimeEncoding tests that stored DateTime values serialize like
// times
func TestDateTimeEncoding(t *testing.T) {
	dt := primitive.NewDateTimeFromTime(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	out, err := Encode(dt)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(string(out), `"$iso"`) {
		t.Errorf("DateTime serialized without the tag: %s", out)
	}
}
