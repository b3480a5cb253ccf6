package schema

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

// fieldMap is a minimal Fields implementation for exercising Reconcile.
type fieldMap map[string]interface{}

func (m fieldMap) Get(key string) (interface{}, bool) {
	v, ok := m[key]
	return v, ok
}
func (m fieldMap) Set(key string, value interface{}) { m[key] = value }
func (m fieldMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	return keys
}

// TestReconcileFillsConstants tests that constant defaults fill gaps but
// never clobber present values
func TestReconcileFillsConstants(t *testing.T) {
	decl := Defaults{
		"name":   Constant("anonymous"),
		"status": Constant("active"),
	}
	doc := fieldMap{"_id": "x", "status": "disabled"}
	if err := Reconcile(doc, decl, OnLoad); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if doc["name"] != "anonymous" {
		t.Errorf("name = %v, want filled default", doc["name"])
	}
	if doc["status"] != "disabled" {
		t.Errorf("status = %v, default clobbered an existing value", doc["status"])
	}
}

// TestReconcileIdempotent tests reconcile(reconcile(D)) == reconcile(D) for
// constant-default declarations
func TestReconcileIdempotent(t *testing.T) {
	decl := Defaults{
		"name": Constant("anonymous"),
		"tags": Constant([]interface{}{"new"}),
	}
	doc := fieldMap{"_id": "x"}
	if err := Reconcile(doc, decl, OnLoad); err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}
	snapshot := make(fieldMap, len(doc))
	for k, v := range doc {
		snapshot[k] = v
	}
	if err := Reconcile(doc, decl, OnLoad); err != nil {
		t.Fatalf("second Reconcile failed: %v", err)
	}
	if !reflect.DeepEqual(map[string]interface{}(doc), map[string]interface{}(snapshot)) {
		t.Errorf("second reconcile changed the document: %v != %v", doc, snapshot)
	}
}

// TestReconcileConstantCopies tests that container constants are copied,
// not aliased
func TestReconcileConstantCopies(t *testing.T) {
	shared := []interface{}{"a"}
	decl := Defaults{"tags": Constant(shared)}

	first := fieldMap{"_id": "1"}
	second := fieldMap{"_id": "2"}
	if err := Reconcile(first, decl, OnLoad); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if err := Reconcile(second, decl, OnLoad); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	first["tags"].([]interface{})[0] = "mutated"
	if second["tags"].([]interface{})[0] != "a" {
		t.Error("documents alias the declaration's constant")
	}
	if shared[0] != "a" {
		t.Error("reconcile mutated the declaration")
	}
}

// TestReconcileProducerOncePerCall tests that producer defaults are
// evaluated exactly once per reconciliation and fresh across calls
func TestReconcileProducerOncePerCall(t *testing.T) {
	calls := 0
	decl := Defaults{
		"seq": Producer(func() interface{} {
			calls++
			return calls
		}),
	}

	doc := fieldMap{"_id": "x"}
	if err := Reconcile(doc, decl, OnLoad); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("producer called %d times, want 1", calls)
	}
	if doc["seq"] != 1 {
		t.Errorf("seq = %v, want 1", doc["seq"])
	}

	// present values are not recomputed
	if err := Reconcile(doc, decl, OnSave); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("producer re-invoked for a present field")
	}

	// a fresh document gets a fresh value
	other := fieldMap{"_id": "y"}
	if err := Reconcile(other, decl, OnLoad); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if other["seq"] != 2 {
		t.Errorf("seq = %v, want a fresh producer result", other["seq"])
	}
}

// TestReconcileMissingRequired tests that save-time reconciliation names
// every missing required field
func TestReconcileMissingRequired(t *testing.T) {
	decl := Defaults{
		"description": Required,
		"email":       Required,
		"created":     Producer(func() interface{} { return time.Now() }),
	}

	doc := fieldMap{"_id": "t1"}
	err := Reconcile(doc, decl, OnSave)
	if err == nil {
		t.Fatal("expected a schema violation")
	}
	if !errors.Is(err, ErrMissingRequiredField) {
		t.Errorf("error does not unwrap to ErrMissingRequiredField: %v", err)
	}
	var violation *SchemaError
	if !errors.As(err, &violation) {
		t.Fatalf("error is not a *SchemaError: %v", err)
	}
	if !reflect.DeepEqual(violation.MissingFields, []string{"description", "email"}) {
		t.Errorf("MissingFields = %v", violation.MissingFields)
	}

	// load-time reconciliation tolerates the gap
	if err := Reconcile(fieldMap{"_id": "t1"}, decl, OnLoad); err != nil {
		t.Errorf("OnLoad reconcile failed: %v", err)
	}
}

// TestReconcileRequiredSatisfied tests the concrete create scenario with a
// required field present and a producer timestamp
func TestReconcileRequiredSatisfied(t *testing.T) {
	decl := Defaults{
		"description": Required,
		"created":     Producer(func() interface{} { return time.Now() }),
	}
	doc := fieldMap{"_id": "t1", "description": "x"}
	if err := Reconcile(doc, decl, OnSave); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if _, ok := doc["created"].(time.Time); !ok {
		t.Errorf("created = %v, want a timestamp", doc["created"])
	}
}

// TestReconcileUnknownFieldHandling tests the three alert levels
func TestReconcileUnknownFieldHandling(t *testing.T) {
	decl := Defaults{"known": Constant(1)}
	defer SetUnknownFieldHandling(AlertSilent)

	doc := fieldMap{"_id": "x", "stray": true}

	SetUnknownFieldHandling(AlertSilent)
	if err := Reconcile(doc, decl, OnSave); err != nil {
		t.Errorf("silent level rejected an unknown field: %v", err)
	}

	SetUnknownFieldHandling(AlertWarn)
	if err := Reconcile(doc, decl, OnSave); err != nil {
		t.Errorf("warn level rejected an unknown field: %v", err)
	}

	SetUnknownFieldHandling(AlertError)
	err := Reconcile(doc, decl, OnSave)
	if !errors.Is(err, ErrUnknownField) {
		t.Errorf("error level: got %v, want ErrUnknownField", err)
	}

	// an empty declaration never alerts
	if err := Reconcile(doc, Defaults{}, OnSave); err != nil {
		t.Errorf("empty declaration rejected a field: %v", err)
	}
}

// TestReconcileTypedRequired tests that typed required fields are enforced
// regardless of the type-checking level
func TestReconcileTypedRequired(t *testing.T) {
	decl := Defaults{"count": RequiredInt}

	doc := fieldMap{"_id": "x", "count": "not a number"}
	if err := Reconcile(doc, decl, OnSave); !errors.Is(err, ErrInvalidType) {
		t.Errorf("got %v, want ErrInvalidType", err)
	}

	doc = fieldMap{"_id": "x", "count": 3}
	if err := Reconcile(doc, decl, OnSave); err != nil {
		t.Errorf("valid typed value rejected: %v", err)
	}
}

// TestReconcileConstantTypeChecking tests the optional type checking
// against constant defaults
func TestReconcileConstantTypeChecking(t *testing.T) {
	decl := Defaults{"name": Constant("anonymous")}
	defer SetTypeChecking(AlertSilent)

	doc := fieldMap{"_id": "x", "name": 42}

	SetTypeChecking(AlertSilent)
	if err := Reconcile(doc, decl, OnSave); err != nil {
		t.Errorf("silent type checking rejected a mismatch: %v", err)
	}

	SetTypeChecking(AlertError)
	if err := Reconcile(doc, decl, OnSave); !errors.Is(err, ErrInvalidType) {
		t.Errorf("got %v, want ErrInvalidType", err)
	}
}

// TestCheckField tests single-assignment vetting
func TestCheckField(t *testing.T) {
	decl := Defaults{"count": RequiredInt, "name": Constant("x")}
	defer SetUnknownFieldHandling(AlertSilent)

	if err := CheckField(decl, "count", 1); err != nil {
		t.Errorf("valid assignment rejected: %v", err)
	}
	if err := CheckField(decl, "count", "one"); !errors.Is(err, ErrInvalidType) {
		t.Errorf("got %v, want ErrInvalidType", err)
	}

	SetUnknownFieldHandling(AlertError)
	if err := CheckField(decl, "stray", 1); !errors.Is(err, ErrUnknownField) {
		t.Errorf("got %v, want ErrUnknownField", err)
	}
	if err := CheckField(Defaults{}, "stray", 1); err != nil {
		t.Errorf("empty declaration rejected an assignment: %v", err)
	}
}
