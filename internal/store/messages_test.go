package store_test

import (
	"testing"

	"github.com/dustingooding/radix-relay/internal/store"
)

func TestGetConversationsAggregatesPerContact(t *testing.T) {
	st := openTestStore(t)

	messages := []store.Message{
		{ID: "m1", ContactRDX: "RDX:bob", Direction: store.DirectionIncoming, Content: "hi", CreatedAt: 100, Read: false},
		{ID: "m2", ContactRDX: "RDX:bob", Direction: store.DirectionOutgoing, Content: "hello", CreatedAt: 200, Read: true},
		{ID: "m3", ContactRDX: "RDX:alice", Direction: store.DirectionIncoming, Content: "yo", CreatedAt: 150, Read: false},
	}
	for _, m := range messages {
		if err := st.SaveMessage(m); err != nil {
			t.Fatalf("SaveMessage(%s): %v", m.ID, err)
		}
	}

	convos, err := st.GetConversations()
	if err != nil {
		t.Fatalf("GetConversations: %v", err)
	}
	if len(convos) != 2 {
		t.Fatalf("len(convos) = %d, want 2", len(convos))
	}

	// Most recently active (bob, at=200) must come first.
	if convos[0].ContactRDX != "RDX:bob" || convos[0].LastMessage != "hello" || convos[0].LastAt != 200 {
		t.Fatalf("convos[0] = %+v", convos[0])
	}
	if convos[0].UnreadCount != 1 {
		t.Fatalf("bob's UnreadCount = %d, want 1 (the unread incoming message)", convos[0].UnreadCount)
	}

	if convos[1].ContactRDX != "RDX:alice" || convos[1].UnreadCount != 1 {
		t.Fatalf("convos[1] = %+v, want alice with UnreadCount=1", convos[1])
	}
}

func TestMarkConversationReadUpToOnlyAffectsIncomingUpToTimestamp(t *testing.T) {
	st := openTestStore(t)

	for _, m := range []store.Message{
		{ID: "m1", ContactRDX: "RDX:bob", Direction: store.DirectionIncoming, Content: "a", CreatedAt: 100, Read: false},
		{ID: "m2", ContactRDX: "RDX:bob", Direction: store.DirectionIncoming, Content: "b", CreatedAt: 300, Read: false},
	} {
		if err := st.SaveMessage(m); err != nil {
			t.Fatalf("SaveMessage: %v", err)
		}
	}

	if err := st.MarkConversationReadUpTo("RDX:bob", 200); err != nil {
		t.Fatalf("MarkConversationReadUpTo: %v", err)
	}

	msgs, err := st.GetConversationMessages("RDX:bob", 10, 0)
	if err != nil {
		t.Fatalf("GetConversationMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if !msgs[0].Read {
		t.Fatal("message at ts=100 should be marked read")
	}
	if msgs[1].Read {
		t.Fatal("message at ts=300 should remain unread")
	}
}

func TestDeleteConversationRemovesAllMessages(t *testing.T) {
	st := openTestStore(t)
	if err := st.SaveMessage(store.Message{ID: "m1", ContactRDX: "RDX:bob", Direction: store.DirectionIncoming, Content: "a", CreatedAt: 100}); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if err := st.DeleteConversation("RDX:bob"); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	msgs, err := st.GetConversationMessages("RDX:bob", 10, 0)
	if err != nil {
		t.Fatalf("GetConversationMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("len(msgs) = %d, want 0 after delete", len(msgs))
	}
}
