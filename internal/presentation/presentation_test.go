package presentation_test

import (
	"strings"
	"testing"

	"github.com/dustingooding/radix-relay/internal/presentation"
)

func TestHandleMessageReceived(t *testing.T) {
	msg, ok := presentation.Handle(presentation.Event{
		Kind:    presentation.EvMessageReceived,
		Peer:    "alice",
		Content: "hi",
		Contact: "RDX:abc",
	})
	if !ok {
		t.Fatal("Handle returned ok=false")
	}
	if msg.Category != presentation.CategoryChat {
		t.Fatalf("Category = %v, want CategoryChat", msg.Category)
	}
	if msg.Contact != "RDX:abc" {
		t.Fatalf("Contact = %q, want RDX:abc", msg.Contact)
	}
	if !strings.Contains(msg.Text, "alice") || !strings.Contains(msg.Text, "hi") {
		t.Fatalf("Text = %q, missing peer or content", msg.Text)
	}
}

func TestHandleMessageSentAcceptedVsRejected(t *testing.T) {
	accepted, ok := presentation.Handle(presentation.Event{Kind: presentation.EvMessageSent, Peer: "bob", Accepted: true})
	if !ok || !strings.Contains(accepted.Text, "sent") {
		t.Fatalf("accepted message text = %q", accepted.Text)
	}

	rejected, ok := presentation.Handle(presentation.Event{Kind: presentation.EvMessageSent, Peer: "bob", Accepted: false})
	if !ok || !strings.Contains(rejected.Text, "Failed") {
		t.Fatalf("rejected message text = %q", rejected.Text)
	}
}

func TestHandleSubscriptionEstablishedProducesNoDisplayMessage(t *testing.T) {
	_, ok := presentation.Handle(presentation.Event{Kind: presentation.EvSubscriptionEstablished})
	if ok {
		t.Fatal("SubscriptionEstablished should not produce a display message")
	}
}

func TestHandleIdentitiesListedEmpty(t *testing.T) {
	msg, ok := presentation.Handle(presentation.Event{Kind: presentation.EvIdentitiesListed})
	if !ok || !strings.Contains(msg.Text, "No identities") {
		t.Fatalf("Text = %q, want No identities", msg.Text)
	}
}

func TestFilterAllowsSystemAndFeedbackRegardlessOfChatContext(t *testing.T) {
	ctx := presentation.NewChatContext()
	ctx.Enter("RDX:alice")
	f := presentation.NewFilter(ctx)

	if !f.Allow(presentation.DisplayMessage{Category: presentation.CategorySystem}) {
		t.Fatal("system message should always be allowed")
	}
	if !f.Allow(presentation.DisplayMessage{Category: presentation.CategoryCommandFeedback}) {
		t.Fatal("command feedback should always be allowed")
	}
}

func TestFilterNoChatContextAllowsEverything(t *testing.T) {
	ctx := presentation.NewChatContext()
	f := presentation.NewFilter(ctx)

	msg := presentation.DisplayMessage{Category: presentation.CategoryChat, Contact: "RDX:bob"}
	if !f.Allow(msg) {
		t.Fatal("with no active chat context, all messages should pass")
	}
}

func TestFilterActiveChatContextScopesChatMessages(t *testing.T) {
	ctx := presentation.NewChatContext()
	ctx.Enter("RDX:alice")
	f := presentation.NewFilter(ctx)

	match := presentation.DisplayMessage{Category: presentation.CategoryChat, Contact: "RDX:alice"}
	if !f.Allow(match) {
		t.Fatal("message from the active contact should be allowed")
	}

	other := presentation.DisplayMessage{Category: presentation.CategoryChat, Contact: "RDX:bob"}
	if f.Allow(other) {
		t.Fatal("message from a non-active contact should be dropped while chat context is set")
	}

	ctx.Leave()
	if !f.Allow(other) {
		t.Fatal("after Leave, messages from any contact should pass again")
	}
}
