package store

import (
	"fmt"
	"strings"
)

// TestDatabaseName is the database all paths are rerouted into while test
// mode is active. Collections keep their full "database.collection" string
// as the collection name so distinct paths stay distinct inside it.
const TestDatabaseName = "__mongomap_test_database__"

// Path identifies a physical collection as a database/collection pair.
type Path struct {
	Database   string
	Collection string
}

// ParsePath resolves a location string of the form "database.collection".
// The split happens at the first dot, so "app.users.archive" addresses
// collection "users.archive" of database "app".
func ParsePath(location string) (Path, error) {
	idx := strings.Index(location, ".")
	if idx <= 0 || idx == len(location)-1 {
		return Path{}, fmt.Errorf("%w: %q (paths must be of the form \"database.collection\")",
			ErrMalformedPath, location)
	}
	return Path{Database: location[:idx], Collection: location[idx+1:]}, nil
}

func (p Path) String() string {
	return p.Database + "." + p.Collection
}

// testPath reroutes a path into the scratch test database.
func testPath(p Path) Path {
	return Path{Database: TestDatabaseName, Collection: p.String()}
}
