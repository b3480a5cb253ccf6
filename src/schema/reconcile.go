package schema

import (
	"sort"

	"go.uber.org/zap"
)

// Fields is the document surface reconciliation works against. The objects
// package's Document implements it.
type Fields interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	Keys() []string
}

// Mode selects which side of a store round trip a reconciliation serves.
type Mode int

const (
	// OnLoad fills defaults into a freshly fetched document. Required
	// fields missing from the stored document are left absent; they only
	// fail at save time.
	OnLoad Mode = iota

	// OnSave validates a document before it is written. Missing required
	// fields and type violations fail the whole operation; nothing is
	// written.
	OnSave
)

// IdentityKey is the field exempt from unknown-field alerting; it is
// implicitly required in every declaration.
const IdentityKey = "_id"

// Reconcile fills a document's gaps from its defaults declaration and
// collects schema violations. Declared fields already present are never
// overwritten; constant defaults are copied in, producer defaults are
// invoked exactly once per call. On violation the returned error is a
// *SchemaError naming every offending field, and the document has not been
// mutated beyond default fills.
func Reconcile(doc Fields, decl Defaults, mode Mode) error {
	violation := &SchemaError{}

	names := make([]string, 0, len(decl))
	for name := range decl {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		dv := decl[name]
		value, present := doc.Get(name)
		if !present {
			if dv.IsRequired() {
				if mode == OnSave {
					violation.missing(name)
				}
				continue
			}
			filled, ok := dv.resolve()
			if ok {
				doc.Set(name, filled)
			}
			continue
		}
		checkType(name, value, dv, mode, violation)
	}

	if len(decl) > 0 {
		level := UnknownFieldHandling()
		if level != AlertSilent {
			for _, key := range doc.Keys() {
				if key == IdentityKey {
					continue
				}
				if _, declared := decl[key]; declared {
					continue
				}
				switch level {
				case AlertWarn:
					zap.S().Warnf("field %q not in defaults declaration", key)
				case AlertError:
					violation.unknown(key)
				}
			}
		}
	}

	if violation.empty() {
		return nil
	}
	return violation
}

// checkType applies the type rules for a present declared field. Typed
// required fields are enforced regardless of the type-checking level;
// constant-default fields follow it. On load, mismatches only warn.
func checkType(name string, value interface{}, dv DefaultValue, mode Mode, violation *SchemaError) {
	if dv.Type() == TypeAny {
		return
	}
	if matchesType(value, dv.Type()) {
		return
	}
	enforced := dv.IsRequired() || TypeChecking() == AlertError
	if mode == OnSave && enforced {
		violation.badType(name, dv.Type(), value)
		return
	}
	if enforced || TypeChecking() == AlertWarn {
		zap.S().Warnf("value for field %q should be of type %s, got %T", name, dv.Type(), value)
	}
}

// CheckField vets a single assignment against the declaration: the
// unknown-field alert for keys outside a non-empty declaration, and the
// type rules for declared keys. The identity key is the caller's concern.
func CheckField(decl Defaults, key string, value interface{}) error {
	dv, declared := decl[key]
	if !declared {
		if len(decl) == 0 {
			return nil
		}
		switch UnknownFieldHandling() {
		case AlertWarn:
			zap.S().Warnf("field %q not in defaults declaration", key)
		case AlertError:
			violation := &SchemaError{}
			violation.unknown(key)
			return violation
		}
		return nil
	}
	violation := &SchemaError{}
	checkType(key, value, dv, OnSave, violation)
	if violation.empty() {
		return nil
	}
	return violation
}
