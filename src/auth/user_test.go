package auth

import (
	"bytes"
	"testing"
)

// TestPasswordHashVerify tests hashing and verification round trips
func TestPasswordHashVerify(t *testing.T) {
	hash, err := NewPasswordHash("correct horse battery staple")
	if err != nil {
		t.Fatalf("NewPasswordHash failed: %v", err)
	}
	if !hash.Verify("correct horse battery staple") {
		t.Error("correct password rejected")
	}
	if hash.Verify("wrong password") {
		t.Error("wrong password accepted")
	}
	if hash.Verify("") {
		t.Error("empty password accepted")
	}
}

// TestPasswordHashSalting tests that identical passwords get distinct
// hashes
func TestPasswordHashSalting(t *testing.T) {
	first, err := NewPasswordHash("same")
	if err != nil {
		t.Fatalf("NewPasswordHash failed: %v", err)
	}
	second, err := NewPasswordHash("same")
	if err != nil {
		t.Fatalf("NewPasswordHash failed: %v", err)
	}
	if bytes.Equal(first.Salt, second.Salt) {
		t.Error("two hashes share a salt")
	}
	if bytes.Equal(first.Hash, second.Hash) {
		t.Error("two salted hashes are identical")
	}
}

// TestSlowEqual tests the comparison edge cases
func TestSlowEqual(t *testing.T) {
	if !SlowEqual([]byte{1, 2, 3}, []byte{1, 2, 3}) {
		t.Error("equal slices reported unequal")
	}
	if SlowEqual([]byte{1, 2, 3}, []byte{1, 2, 4}) {
		t.Error("unequal slices reported equal")
	}
	if SlowEqual([]byte{1, 2}, []byte{1, 2, 3}) {
		t.Error("length mismatch reported equal")
	}
	if !SlowEqual(nil, nil) {
		t.Error("nil slices reported unequal")
	}
}
