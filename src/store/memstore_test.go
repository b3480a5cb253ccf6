package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func testStore() *MemStore {
	return NewMemStore(zap.NewNop().Sugar())
}

var testColl = Path{Database: "testdb", Collection: "things"}

func mustInsert(t *testing.T, s *MemStore, docs ...bson.D) {
	t.Helper()
	for _, doc := range docs {
		if err := s.Insert(context.Background(), testColl, doc); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}
}

// TestMemStoreInsertAndFindOne tests the basic write/read round trip
func TestMemStoreInsertAndFindOne(t *testing.T) {
	s := testStore()
	mustInsert(t, s, bson.D{{Key: IDKey, Value: "a"}, {Key: "n", Value: 1}})

	doc, err := s.FindOne(context.Background(), testColl, bson.M{IDKey: "a"})
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if v, _ := lookupField(doc, "n"); v != 1 {
		t.Errorf("n = %v, want 1", v)
	}

	if _, err := s.FindOne(context.Background(), testColl, bson.M{IDKey: "missing"}); !errors.Is(err, ErrNoDocument) {
		t.Errorf("expected ErrNoDocument, got %v", err)
	}
}

// TestMemStoreDuplicateInsert tests the duplicate identity error
func TestMemStoreDuplicateInsert(t *testing.T) {
	s := testStore()
	mustInsert(t, s, bson.D{{Key: IDKey, Value: "a"}})
	err := s.Insert(context.Background(), testColl, bson.D{{Key: IDKey, Value: "a"}})
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
}

// TestMemStoreFindSortSkipLimit tests result shaping
func TestMemStoreFindSortSkipLimit(t *testing.T) {
	s := testStore()
	mustInsert(t, s,
		bson.D{{Key: IDKey, Value: "c"}, {Key: "n", Value: 3}},
		bson.D{{Key: IDKey, Value: "a"}, {Key: "n", Value: 1}},
		bson.D{{Key: IDKey, Value: "b"}, {Key: "n", Value: 2}},
	)

	docs, err := s.Find(context.Background(), testColl, bson.M{}, FindOptions{
		Sort: bson.D{{Key: "n", Value: 1}},
		Skip: 1, Limit: 1,
	})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d docs, want 1", len(docs))
	}
	if id, _ := lookupField(docs[0], IDKey); id != "b" {
		t.Errorf("got %v, want b", id)
	}
}

// TestMemStoreOperators tests operator filters used by the iterator
func TestMemStoreOperators(t *testing.T) {
	s := testStore()
	mustInsert(t, s,
		bson.D{{Key: IDKey, Value: "a"}, {Key: "n", Value: 1}},
		bson.D{{Key: IDKey, Value: "b"}, {Key: "n", Value: 2}},
		bson.D{{Key: IDKey, Value: "c"}, {Key: "n", Value: 3}},
	)

	docs, err := s.Find(context.Background(), testColl, bson.M{IDKey: bson.M{"$gt": "a"}}, FindOptions{})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("$gt matched %d docs, want 2", len(docs))
	}

	n, err := s.Count(context.Background(), testColl, bson.M{"n": bson.M{"$gte": 2}})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("$gte count = %d, want 2", n)
	}
}

// TestMemStoreOrFilter tests the disjunction form used for page boundaries
func TestMemStoreOrFilter(t *testing.T) {
	s := testStore()
	mustInsert(t, s,
		bson.D{{Key: IDKey, Value: "a"}, {Key: "g", Value: 1}},
		bson.D{{Key: IDKey, Value: "b"}, {Key: "g", Value: 1}},
		bson.D{{Key: IDKey, Value: "c"}, {Key: "g", Value: 2}},
	)

	docs, err := s.Find(context.Background(), testColl, bson.M{
		"$or": []bson.M{
			{"g": bson.M{"$gt": 1}},
			{"g": 1, IDKey: bson.M{"$gt": "a"}},
		},
	}, FindOptions{})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("$or matched %d docs, want 2", len(docs))
	}
	for _, doc := range docs {
		if id, _ := lookupField(doc, IDKey); id == "a" {
			t.Error("$or matched the excluded boundary document")
		}
	}
}

// TestMemStoreProjection tests inclusive projections keep the identity
func TestMemStoreProjection(t *testing.T) {
	s := testStore()
	mustInsert(t, s, bson.D{{Key: IDKey, Value: "a"}, {Key: "x", Value: 1}, {Key: "y", Value: 2}})

	docs, err := s.Find(context.Background(), testColl, bson.M{}, FindOptions{
		Projection: bson.D{{Key: "x", Value: 1}},
	})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	doc := docs[0]
	if _, ok := lookupField(doc, IDKey); !ok {
		t.Error("projection dropped the identity field")
	}
	if _, ok := lookupField(doc, "y"); ok {
		t.Error("projection kept an unlisted field")
	}
}

// TestMemStoreUpdateAndDelete tests $set updates and deletes
func TestMemStoreUpdateAndDelete(t *testing.T) {
	s := testStore()
	mustInsert(t, s, bson.D{{Key: IDKey, Value: "a"}, {Key: "n", Value: 1}})

	if err := s.Update(context.Background(), testColl, "a", bson.M{"$set": bson.M{"n": 9}}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	doc, err := s.FindOne(context.Background(), testColl, bson.M{IDKey: "a"})
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if v, _ := lookupField(doc, "n"); v != 9 {
		t.Errorf("n = %v after $set, want 9", v)
	}

	if err := s.Delete(context.Background(), testColl, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	// deleting an absent identity is not an error
	if err := s.Delete(context.Background(), testColl, "a"); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
}

// TestMemStoreConcurrentFindUpdate tests that sorted finds and in-place
// updates on the same documents can run concurrently; the race detector
// flags any result that escapes the lock uncopied
func TestMemStoreConcurrentFindUpdate(t *testing.T) {
	s := testStore()
	mustInsert(t, s,
		bson.D{{Key: IDKey, Value: "a"}, {Key: "n", Value: 1}},
		bson.D{{Key: IDKey, Value: "b"}, {Key: "n", Value: 2}},
		bson.D{{Key: IDKey, Value: "c"}, {Key: "n", Value: 3}},
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			docs, err := s.Find(context.Background(), testColl, bson.M{}, FindOptions{
				Sort: bson.D{{Key: "n", Value: 1}},
			})
			if err != nil {
				t.Errorf("Find failed: %v", err)
				return
			}
			for _, doc := range docs {
				if _, ok := lookupField(doc, "n"); !ok {
					t.Error("document lost its n field mid-flight")
					return
				}
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if err := s.Update(context.Background(), testColl, "b", bson.M{"$set": bson.M{"n": i}}); err != nil {
				t.Errorf("Update failed: %v", err)
				return
			}
		}
	}()
	wg.Wait()
}

// TestMemStoreTestMode tests the scratch database reroute
func TestMemStoreTestMode(t *testing.T) {
	s := testStore()
	s.SetTestMode(true)
	mustInsert(t, s, bson.D{{Key: IDKey, Value: "a"}})

	if dbs := s.ListDatabases(); len(dbs) != 1 || dbs[0] != TestDatabaseName {
		t.Errorf("databases = %v, want only the test database", dbs)
	}

	s.DropTestDatabase()
	n, err := s.Count(context.Background(), testColl, bson.M{})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("test database survived the drop: %d docs", n)
	}
}

// TestMemStoreUsers tests bootstrap user provisioning and authentication
func TestMemStoreUsers(t *testing.T) {
	s := testStore()
	if err := s.AddUser("admin", "secret", false); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}
	if err := s.AddUser("admin", "other", false); err == nil {
		t.Error("expected duplicate user to fail")
	}
	if err := s.Authenticate("admin", "wrong"); err == nil {
		t.Error("expected wrong password to fail")
	}
	if err := s.Authenticate("admin", "secret"); err != nil {
		t.Errorf("Authenticate failed: %v", err)
	}
	// provisioning is bootstrap-only: it is refused once authenticated
	if err := s.AddUser("late", "pw", true); err == nil {
		t.Error("expected AddUser after authentication to fail")
	}
}
