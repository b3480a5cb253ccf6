package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"mongomap/src/auth"
)

// MemStore is an in-memory Store. It backs the test suite and is usable as
// an embedded throwaway backend; it honors the same test-mode rerouting as
// the mongo store so code paths stay identical.
type MemStore struct {
	collections *xsync.MapOf[string, *memCollection]
	users       *xsync.MapOf[string, auth.User]

	authenticated atomic.Bool
	testMode      atomic.Bool
	findCalls     atomic.Int64

	logger *zap.SugaredLogger
}

type memCollection struct {
	mu   sync.RWMutex
	docs []bson.D
}

func NewMemStore(logger *zap.SugaredLogger) *MemStore {
	return &MemStore{
		collections: xsync.NewMapOf[string, *memCollection](),
		users:       xsync.NewMapOf[string, auth.User](),
		logger:      logger,
	}
}

// SetTestMode reroutes all paths into the scratch test database.
func (s *MemStore) SetTestMode(on bool) { s.testMode.Store(on) }

// FindCalls reports how many page/list fetches have hit the store. The
// iterator tests use this to pin down the exact number of round trips.
func (s *MemStore) FindCalls() int64 { return s.findCalls.Load() }

// DropDatabase discards every collection of the named database.
func (s *MemStore) DropDatabase(name string) {
	s.collections.Range(func(key string, _ *memCollection) bool {
		p, err := ParsePath(key)
		if err == nil && p.Database == name {
			s.collections.Delete(key)
		}
		return true
	})
}

// DropTestDatabase discards the scratch test database.
func (s *MemStore) DropTestDatabase() { s.DropDatabase(TestDatabaseName) }

// ListDatabases returns the names of all databases with at least one
// collection.
func (s *MemStore) ListDatabases() []string {
	seen := make(map[string]bool)
	s.collections.Range(func(key string, _ *memCollection) bool {
		if p, err := ParsePath(key); err == nil {
			seen[p.Database] = true
		}
		return true
	})
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListCollections returns the collection names of the given database.
func (s *MemStore) ListCollections(database string) []string {
	var names []string
	s.collections.Range(func(key string, _ *memCollection) bool {
		if p, err := ParsePath(key); err == nil && p.Database == database {
			names = append(names, p.Collection)
		}
		return true
	})
	sort.Strings(names)
	return names
}

// AddUser registers a user for authentication. Like mongo's bootstrap user
// provisioning, this only works before any authentication has happened; it
// must not be reachable once the store is exposed.
func (s *MemStore) AddUser(name, password string, readOnly bool) error {
	if s.authenticated.Load() {
		return fmt.Errorf("cannot add user %q: store is already authenticated", name)
	}
	if _, exists := s.users.Load(name); exists {
		return fmt.Errorf("%w: %s", auth.ErrUserAlreadyExists, name)
	}
	hash, err := auth.NewPasswordHash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password for user %q: %w", name, err)
	}
	s.users.Store(name, auth.User{
		Username:     name,
		PasswordHash: hash,
		ReadOnly:     readOnly,
		CreatedAt:    time.Now(),
	})
	return nil
}

// Authenticate verifies the given credentials against registered users.
func (s *MemStore) Authenticate(name, password string) error {
	user, exists := s.users.Load(name)
	if !exists {
		return fmt.Errorf("%w: %s", auth.ErrUserNotFound, name)
	}
	if !user.PasswordHash.Verify(password) {
		return fmt.Errorf("%w: user %s", auth.ErrInvalidCredentials, name)
	}
	s.authenticated.Store(true)
	return nil
}

func (s *MemStore) collection(path Path) *memCollection {
	if s.testMode.Load() {
		path = testPath(path)
	}
	coll, _ := s.collections.LoadOrStore(path.String(), &memCollection{})
	return coll
}

func (s *MemStore) FindOne(_ context.Context, path Path, filter bson.M) (bson.D, error) {
	coll := s.collection(path)
	coll.mu.RLock()
	defer coll.mu.RUnlock()
	for _, doc := range coll.docs {
		if matchFilter(doc, filter) {
			return copyDoc(doc), nil
		}
	}
	return nil, ErrNoDocument
}

func (s *MemStore) Find(_ context.Context, path Path, filter bson.M, opts FindOptions) ([]bson.D, error) {
	s.findCalls.Add(1)
	coll := s.collection(path)
	coll.mu.RLock()
	// copy before releasing the lock; Update mutates stored documents in
	// place, so sorting or projecting the originals unlocked would race
	var matched []bson.D
	for _, doc := range coll.docs {
		if matchFilter(doc, filter) {
			matched = append(matched, copyDoc(doc))
		}
	}
	coll.mu.RUnlock()

	if len(opts.Sort) > 0 {
		sortDocs(matched, opts.Sort)
	}
	if opts.Skip > 0 {
		if opts.Skip >= int64(len(matched)) {
			matched = nil
		} else {
			matched = matched[opts.Skip:]
		}
	}
	if opts.Limit > 0 && int64(len(matched)) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	results := make([]bson.D, 0, len(matched))
	for _, doc := range matched {
		results = append(results, project(doc, opts.Projection))
	}
	return results, nil
}

func (s *MemStore) Count(_ context.Context, path Path, filter bson.M) (int64, error) {
	coll := s.collection(path)
	coll.mu.RLock()
	defer coll.mu.RUnlock()
	var n int64
	for _, doc := range coll.docs {
		if matchFilter(doc, filter) {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) Insert(_ context.Context, path Path, doc bson.D) error {
	id, ok := lookupField(doc, IDKey)
	if !ok {
		return fmt.Errorf("document for %s has no %s", path, IDKey)
	}
	coll := s.collection(path)
	coll.mu.Lock()
	defer coll.mu.Unlock()
	if coll.indexOfID(id) >= 0 {
		return fmt.Errorf("%w: %s in %s", ErrDuplicateID, formatValue(id), path)
	}
	coll.docs = append(coll.docs, copyDoc(doc))
	return nil
}

func (s *MemStore) Replace(_ context.Context, path Path, id interface{}, doc bson.D, upsert bool) error {
	coll := s.collection(path)
	coll.mu.Lock()
	defer coll.mu.Unlock()
	idx := coll.indexOfID(id)
	if idx < 0 {
		if !upsert {
			return fmt.Errorf("replace in %s: %w", path, ErrNoDocument)
		}
		coll.docs = append(coll.docs, copyDoc(doc))
		return nil
	}
	coll.docs[idx] = copyDoc(doc)
	return nil
}

func (s *MemStore) Update(_ context.Context, path Path, id interface{}, update bson.M) error {
	coll := s.collection(path)
	coll.mu.Lock()
	defer coll.mu.Unlock()
	idx := coll.indexOfID(id)
	if idx < 0 {
		return fmt.Errorf("update in %s: %w", path, ErrNoDocument)
	}
	doc := coll.docs[idx]
	for op, arg := range update {
		fields, ok := toMap(arg)
		if !ok {
			return fmt.Errorf("unsupported update argument for %s: %v", op, arg)
		}
		switch op {
		case "$set":
			for key, value := range fields {
				doc = setField(doc, key, value)
			}
		case "$unset":
			for key := range fields {
				doc = removeField(doc, key)
			}
		default:
			return fmt.Errorf("unsupported update operator: %s", op)
		}
	}
	coll.docs[idx] = doc
	return nil
}

func (s *MemStore) Delete(_ context.Context, path Path, id interface{}) error {
	coll := s.collection(path)
	coll.mu.Lock()
	defer coll.mu.Unlock()
	idx := coll.indexOfID(id)
	if idx < 0 {
		return nil
	}
	coll.docs = append(coll.docs[:idx], coll.docs[idx+1:]...)
	return nil
}

// indexOfID must be called with the collection lock held.
func (c *memCollection) indexOfID(id interface{}) int {
	for i, doc := range c.docs {
		if stored, ok := lookupField(doc, IDKey); ok && valuesEqual(stored, id) {
			return i
		}
	}
	return -1
}

func sortDocs(docs []bson.D, sortSpec bson.D) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range sortSpec {
			direction := 1
			if d, ok := toInt64(key.Value); ok && d < 0 {
				direction = -1
			}
			a, _ := lookupField(docs[i], key.Key)
			b, _ := lookupField(docs[j], key.Key)
			cmp, ok := compareValues(a, b)
			if !ok || cmp == 0 {
				continue
			}
			return cmp*direction < 0
		}
		return false
	})
}

// project applies a mongo-style projection. With any included field the
// projection is inclusive (identity included unless excluded explicitly);
// otherwise the listed fields are stripped.
func project(doc bson.D, projection bson.D) bson.D {
	if len(projection) == 0 {
		return doc
	}
	include := make(map[string]bool)
	exclude := make(map[string]bool)
	for _, field := range projection {
		if v, ok := toInt64(field.Value); ok && v != 0 {
			include[field.Key] = true
		} else {
			exclude[field.Key] = true
		}
	}
	var out bson.D
	if len(include) > 0 {
		for _, elem := range doc {
			if include[elem.Key] || (elem.Key == IDKey && !exclude[IDKey]) {
				out = append(out, elem)
			}
		}
		return out
	}
	for _, elem := range doc {
		if !exclude[elem.Key] {
			out = append(out, elem)
		}
	}
	return out
}
