package connection

// Add custom error definitions here
import "errors"

// ErrDatabaseDown is returned when no mongod answers at the configured
// address.
var ErrDatabaseDown = errors.New("no mongod process is reachable")
