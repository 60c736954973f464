package keystore_test

import (
	"bytes"
	"testing"

	"github.com/dustingooding/radix-relay/internal/keystore"
)

func TestStoreGetDeleteRoundTrip(t *testing.T) {
	ks, err := keystore.New("radix-relay-test", t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got, err := ks.Get("db-key"); err != nil || got != nil {
		t.Fatalf("Get before Store = (%v, %v), want (nil, nil)", got, err)
	}

	if err := ks.Store("db-key", []byte("super-secret")); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := ks.Get("db-key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("super-secret")) {
		t.Fatalf("got %q, want super-secret", got)
	}

	if err := ks.Delete("db-key"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, err := ks.Get("db-key"); err != nil || got != nil {
		t.Fatalf("Get after Delete = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestDeleteAbsentKeyIsNotAnError(t *testing.T) {
	ks, err := keystore.New("radix-relay-test", t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ks.Delete("never-stored"); err != nil {
		t.Fatalf("Delete on an absent key should not error: %v", err)
	}
}
