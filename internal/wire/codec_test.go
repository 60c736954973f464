package wire_test

import (
	"testing"

	"github.com/dustingooding/radix-relay/internal/wire"
)

func TestCanonicalIDIsStableAndSensitiveToEveryField(t *testing.T) {
	base, err := wire.CanonicalID("pub1", 1700000000, wire.KindEncryptedMessage, [][]string{{"p", "pub2"}}, "content")
	if err != nil {
		t.Fatalf("CanonicalID: %v", err)
	}

	again, err := wire.CanonicalID("pub1", 1700000000, wire.KindEncryptedMessage, [][]string{{"p", "pub2"}}, "content")
	if err != nil {
		t.Fatalf("CanonicalID: %v", err)
	}
	if base != again {
		t.Fatal("CanonicalID is not deterministic for identical inputs")
	}

	variants := []struct {
		name string
		id   string
	}{
		{"pubkey", mustID(t, "pub9", 1700000000, wire.KindEncryptedMessage, [][]string{{"p", "pub2"}}, "content")},
		{"created_at", mustID(t, "pub1", 1700000001, wire.KindEncryptedMessage, [][]string{{"p", "pub2"}}, "content")},
		{"kind", mustID(t, "pub1", 1700000000, wire.KindTextNote, [][]string{{"p", "pub2"}}, "content")},
		{"tags", mustID(t, "pub1", 1700000000, wire.KindEncryptedMessage, [][]string{{"p", "other"}}, "content")},
		{"content", mustID(t, "pub1", 1700000000, wire.KindEncryptedMessage, [][]string{{"p", "pub2"}}, "different")},
	}
	for _, v := range variants {
		if v.id == base {
			t.Errorf("changing %s did not change the canonical id", v.name)
		}
	}
}

func mustID(t *testing.T, pubkey string, createdAt uint64, kind wire.Kind, tags [][]string, content string) string {
	t.Helper()
	id, err := wire.CanonicalID(pubkey, createdAt, kind, tags, content)
	if err != nil {
		t.Fatalf("CanonicalID: %v", err)
	}
	return id
}

func TestParseFrameEvent(t *testing.T) {
	data, err := wire.SerializeEvent(wire.EventData{
		ID:      "abc",
		Pubkey:  "pub1",
		Kind:    wire.KindEncryptedMessage,
		Content: "hello",
	}, "")
	if err != nil {
		t.Fatalf("SerializeEvent: %v", err)
	}

	frame := wire.ParseFrame(data)
	if frame.Kind != wire.FrameEvent {
		t.Fatalf("Kind = %v, want FrameEvent", frame.Kind)
	}
	if frame.Event.Data.ID != "abc" || frame.Event.Data.Content != "hello" {
		t.Fatalf("got %+v", frame.Event.Data)
	}
}

func TestParseFrameOK(t *testing.T) {
	frame := wire.ParseFrame([]byte(`["OK","event-123",true,"accepted"]`))
	if frame.Kind != wire.FrameOK {
		t.Fatalf("Kind = %v, want FrameOK", frame.Kind)
	}
	if frame.OK.EventID != "event-123" || !frame.OK.Accepted || frame.OK.Message != "accepted" {
		t.Fatalf("got %+v", frame.OK)
	}
}

func TestParseFrameEOSE(t *testing.T) {
	frame := wire.ParseFrame([]byte(`["EOSE","sub-1"]`))
	if frame.Kind != wire.FrameEOSE || frame.EOSE.SubscriptionID != "sub-1" {
		t.Fatalf("got %+v", frame)
	}
}

func TestParseFrameUnknownTag(t *testing.T) {
	frame := wire.ParseFrame([]byte(`["NOTICE","something"]`))
	if frame.Kind != wire.FrameUnknown {
		t.Fatalf("Kind = %v, want FrameUnknown", frame.Kind)
	}
}

func TestParseFrameInvalidJSON(t *testing.T) {
	frame := wire.ParseFrame([]byte(`not json at all`))
	if frame.Kind != wire.FrameInvalid {
		t.Fatalf("Kind = %v, want FrameInvalid", frame.Kind)
	}
}

func TestParseFrameInvalidNonStringTag(t *testing.T) {
	frame := wire.ParseFrame([]byte(`[123,"sub-1"]`))
	if frame.Kind != wire.FrameInvalid {
		t.Fatalf("Kind = %v, want FrameInvalid", frame.Kind)
	}
}

func TestValidateSubscriptionID(t *testing.T) {
	if err := wire.ValidateSubscriptionID(""); err == nil {
		t.Fatal("empty subscription id should be rejected")
	}
	tooLong := make([]byte, wire.MaxSubscriptionIDLength+1)
	for i := range tooLong {
		tooLong[i] = 'a'
	}
	if err := wire.ValidateSubscriptionID(string(tooLong)); err == nil {
		t.Fatal("over-length subscription id should be rejected")
	}
	if err := wire.ValidateSubscriptionID("sub-1"); err != nil {
		t.Fatalf("valid subscription id rejected: %v", err)
	}
}

func TestSerializeReqRejectsInvalidSubscriptionID(t *testing.T) {
	if _, err := wire.SerializeReq("", map[string]any{}); err == nil {
		t.Fatal("expected an error for an empty subscription id")
	}
}

func TestEventDataTag(t *testing.T) {
	evt := wire.EventData{Tags: [][]string{{"p", "pub2"}, {"radix_version", "0.4.0"}}}
	if v, ok := evt.Tag("radix_version"); !ok || v != "0.4.0" {
		t.Fatalf("Tag(radix_version) = (%q, %v), want (0.4.0, true)", v, ok)
	}
	if _, ok := evt.Tag("missing"); ok {
		t.Fatal("Tag for a missing name should report ok=false")
	}
}
