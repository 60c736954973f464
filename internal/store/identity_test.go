package store_test

import (
	"bytes"
	"testing"

	"github.com/dustingooding/radix-relay/internal/crypto"
	"github.com/dustingooding/radix-relay/internal/store"
)

// TestUpdateLastSeenNeverMovesBackward covers invariant I3.
func TestUpdateLastSeenNeverMovesBackward(t *testing.T) {
	st := openTestStore(t)

	if ts, err := st.GetLastSeen(); err != nil || ts != 0 {
		t.Fatalf("GetLastSeen before any update = (%d, %v), want (0, nil)", ts, err)
	}

	if err := st.UpdateLastSeen(100); err != nil {
		t.Fatalf("UpdateLastSeen(100): %v", err)
	}
	if ts, err := st.GetLastSeen(); err != nil || ts != 100 {
		t.Fatalf("GetLastSeen = (%d, %v), want (100, nil)", ts, err)
	}

	if err := st.UpdateLastSeen(50); err != nil {
		t.Fatalf("UpdateLastSeen(50): %v", err)
	}
	if ts, err := st.GetLastSeen(); err != nil || ts != 100 {
		t.Fatalf("watermark moved backward: got %d, want it to stay at 100", ts)
	}

	if err := st.UpdateLastSeen(200); err != nil {
		t.Fatalf("UpdateLastSeen(200): %v", err)
	}
	if ts, err := st.GetLastSeen(); err != nil || ts != 200 {
		t.Fatalf("GetLastSeen = (%d, %v), want (200, nil)", ts, err)
	}
}

func TestSaveAndLoadIdentity(t *testing.T) {
	st := openTestStore(t)

	if id, err := st.LoadIdentity(); err != nil || id != nil {
		t.Fatalf("LoadIdentity before save = (%v, %v), want (nil, nil)", id, err)
	}

	want := store.Identity{
		PublicKey:   []byte("pub"),
		PrivateKey:  []byte("priv"),
		Fingerprint: "RDX:abc",
		CreatedAt:   1700000000,
	}
	if err := st.SaveIdentity(want); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}

	got, err := st.LoadIdentity()
	if err != nil {
		t.Fatalf("LoadIdentity: %v", err)
	}
	if got.Fingerprint != want.Fingerprint || string(got.PublicKey) != string(want.PublicKey) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

// TestSaveIdentityEncryptsPrivateKeyAtRest covers the fix wiring
// internal/keystore and internal/crypto into the identity table: once a
// DB key is set, the private key column must not contain the plaintext
// key, and LoadIdentity must still hand back the original bytes.
func TestSaveIdentityEncryptsPrivateKeyAtRest(t *testing.T) {
	st := openTestStore(t)

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	st.SetDBKey(key)

	want := store.Identity{
		PublicKey:   []byte("pub"),
		PrivateKey:  []byte("super secret private key material"),
		Fingerprint: "RDX:encrypted",
		CreatedAt:   1700000001,
	}
	if err := st.SaveIdentity(want); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}

	var rawPrivateKey []byte
	row := st.Conn().QueryRow(`SELECT private_key FROM identity WHERE id = 1`)
	if err := row.Scan(&rawPrivateKey); err != nil {
		t.Fatalf("scan raw private_key: %v", err)
	}
	if bytes.Equal(rawPrivateKey, want.PrivateKey) {
		t.Fatal("private key is stored in the clear, want it encrypted")
	}

	got, err := st.LoadIdentity()
	if err != nil {
		t.Fatalf("LoadIdentity: %v", err)
	}
	if !bytes.Equal(got.PrivateKey, want.PrivateKey) {
		t.Fatalf("PrivateKey = %q, want %q", got.PrivateKey, want.PrivateKey)
	}
}

// TestLoadIdentityWithWrongDBKeyFails covers the case where the guarded
// key in the OS keychain doesn't match what encrypted the row (e.g. the
// keychain entry was lost or replaced).
func TestLoadIdentityWithWrongDBKeyFails(t *testing.T) {
	st := openTestStore(t)

	key1, _ := crypto.GenerateKey()
	key2, _ := crypto.GenerateKey()

	st.SetDBKey(key1)
	if err := st.SaveIdentity(store.Identity{
		PublicKey:   []byte("pub"),
		PrivateKey:  []byte("priv"),
		Fingerprint: "RDX:wrongkey",
		CreatedAt:   1700000002,
	}); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}

	st.SetDBKey(key2)
	if _, err := st.LoadIdentity(); err == nil {
		t.Fatal("expected LoadIdentity with the wrong DB key to fail")
	}
}
