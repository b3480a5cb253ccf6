package schema

import (
	"fmt"
	"sync/atomic"
)

// AlertLevel selects what happens when a document strays from its defaults
// declaration: nothing, a log line, or a failed operation.
type AlertLevel int32

const (
	AlertSilent AlertLevel = iota
	AlertWarn
	AlertError
)

// ParseAlertLevel maps the settings strings to an AlertLevel.
func ParseAlertLevel(s string) (AlertLevel, error) {
	switch s {
	case "", "silent", "none":
		return AlertSilent, nil
	case "warn", "warning":
		return AlertWarn, nil
	case "error":
		return AlertError, nil
	}
	return AlertSilent, fmt.Errorf("unknown alert level %q (use silent, warn or error)", s)
}

// The two alert cells are process-wide state, set once at startup and read
// on every reconciliation. Reads are race-free; callers coordinating
// mid-run mutation from several goroutines are on their own.
var (
	unknownFieldLevel atomic.Int32
	typeCheckLevel    atomic.Int32
)

// SetUnknownFieldHandling configures what happens when a document carries a
// field absent from a non-empty defaults declaration.
func SetUnknownFieldHandling(level AlertLevel) { unknownFieldLevel.Store(int32(level)) }

// UnknownFieldHandling returns the current unknown-field alert level.
func UnknownFieldHandling() AlertLevel { return AlertLevel(unknownFieldLevel.Load()) }

// SetTypeChecking configures what happens when a field value's type
// disagrees with its constant default. Typed required fields are checked
// regardless of this level.
func SetTypeChecking(level AlertLevel) { typeCheckLevel.Store(int32(level)) }

// TypeChecking returns the current type-checking alert level.
func TypeChecking() AlertLevel { return AlertLevel(typeCheckLevel.Load()) }
