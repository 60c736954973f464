package store_test

import (
	"bytes"
	"testing"
)

func TestSaveAndLoadSessionState(t *testing.T) {
	st := openTestStore(t)

	if raw, err := st.LoadSessionState("RDX:bob"); err != nil || raw != nil {
		t.Fatalf("LoadSessionState before save = (%v, %v), want (nil, nil)", raw, err)
	}

	if err := st.SaveSessionState("RDX:bob", []byte("state-v1")); err != nil {
		t.Fatalf("SaveSessionState: %v", err)
	}
	raw, err := st.LoadSessionState("RDX:bob")
	if err != nil {
		t.Fatalf("LoadSessionState: %v", err)
	}
	if !bytes.Equal(raw, []byte("state-v1")) {
		t.Fatalf("got %q, want state-v1", raw)
	}

	if err := st.SaveSessionState("RDX:bob", []byte("state-v2")); err != nil {
		t.Fatalf("SaveSessionState (update): %v", err)
	}
	raw, err = st.LoadSessionState("RDX:bob")
	if err != nil {
		t.Fatalf("LoadSessionState: %v", err)
	}
	if !bytes.Equal(raw, []byte("state-v2")) {
		t.Fatalf("got %q, want state-v2 after update", raw)
	}
}

func TestPendingBootstrapLifecycle(t *testing.T) {
	st := openTestStore(t)
	if err := st.SaveSessionState("RDX:bob", []byte("state-v1")); err != nil {
		t.Fatalf("SaveSessionState: %v", err)
	}

	if _, _, pending, err := st.GetPendingBootstrap("RDX:bob"); err != nil || pending {
		t.Fatalf("GetPendingBootstrap before set = (pending=%v, err=%v), want false, nil", pending, err)
	}

	if err := st.SetPendingBootstrap("RDX:bob", []byte("ephemeral-pub"), 42); err != nil {
		t.Fatalf("SetPendingBootstrap: %v", err)
	}

	eph, otID, pending, err := st.GetPendingBootstrap("RDX:bob")
	if err != nil {
		t.Fatalf("GetPendingBootstrap: %v", err)
	}
	if !pending || !bytes.Equal(eph, []byte("ephemeral-pub")) || otID != 42 {
		t.Fatalf("got eph=%q otID=%d pending=%v", eph, otID, pending)
	}

	if err := st.ClearPendingBootstrap("RDX:bob"); err != nil {
		t.Fatalf("ClearPendingBootstrap: %v", err)
	}
	if _, _, pending, err := st.GetPendingBootstrap("RDX:bob"); err != nil || pending {
		t.Fatalf("GetPendingBootstrap after clear = (pending=%v, err=%v), want false, nil", pending, err)
	}
}

func TestDeleteSession(t *testing.T) {
	st := openTestStore(t)
	if err := st.SaveSessionState("RDX:bob", []byte("state")); err != nil {
		t.Fatalf("SaveSessionState: %v", err)
	}
	if err := st.DeleteSession("RDX:bob"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	raw, err := st.LoadSessionState("RDX:bob")
	if err != nil || raw != nil {
		t.Fatalf("LoadSessionState after delete = (%v, %v), want (nil, nil)", raw, err)
	}
}
