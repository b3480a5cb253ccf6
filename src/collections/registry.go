package collections

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"mongomap/src/objects"
	"mongomap/src/schema"
	"mongomap/src/store"
)

// Config is the explicit per-collection-type configuration: the physical
// location and the defaults declaration. Types are registered once, by
// name, instead of being discovered through a type hierarchy.
type Config struct {
	Location string
	Defaults schema.Defaults
}

var registry = xsync.NewMapOf[string, Config]()

// Register binds a collection type name to its configuration. The location
// is validated eagerly so malformed paths surface at startup, not on first
// use. Registering a name twice fails with ErrAlreadyRegistered.
func Register(name string, cfg Config) error {
	if _, err := store.ParsePath(cfg.Location); err != nil {
		return err
	}
	if _, loaded := registry.LoadOrStore(name, cfg); loaded {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	return nil
}

// Lookup returns the configuration registered under name.
func Lookup(name string) (Config, bool) {
	return registry.Load(name)
}

// Open builds a collection over the given store from a registered
// configuration.
func Open(name string, st store.Store, logger *zap.SugaredLogger) (*Collection, error) {
	cfg, ok := registry.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	handle, err := objects.NewHandle(cfg.Location, cfg.Defaults, st, logger)
	if err != nil {
		return nil, err
	}
	return New(handle), nil
}
