package settings

import "sync"

type Arguments struct {
	// the host name or IP address of the mongod to connect to
	Host string

	// the port number of the mongod
	Port int

	// Credentials used when authentication is enabled. AuthDatabase is the
	// database the user is authenticated against; empty means admin.
	Username     string
	Password     string
	AuthDatabase string

	ConfigFile string
	EnvFile    string

	// Default page size for collection iterators
	PageSize int

	// Handling of keys not present in a collection's defaults declaration
	// (silent, warn, error)
	UnknownFieldHandling string

	// Handling of value/default type mismatches (silent, warn, error)
	TypeChecking string

	// TestMode reroutes every collection path into the scratch test database
	TestMode bool

	// Strongly verbose logging
	Verbose bool

	Debug bool
}

var (
	instance *Arguments
	once     sync.Once
)

// GetSettings returns the global settings instance
func GetSettings() *Arguments {
	once.Do(func() {
		instance = &Arguments{
			Host:                 "127.0.0.1",
			Port:                 27017,
			PageSize:             1000,
			UnknownFieldHandling: "silent",
			TypeChecking:         "silent",
		}
	})
	return instance
}
