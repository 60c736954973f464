// Package presentation implements presentation_handler and
// display_filter (spec.md §4.8): turning presentation events into
// display strings, then filtering them against an optional active chat
// context. Grounded on the teacher's internal/services/dm_service.go
// message-formatting helpers (now removed in favor of this single
// package) and the original's lib/core/include/core/presentation_handler.hpp
// for the exact message catalogue.
package presentation

import (
	"fmt"
)

// Category tags a display message for display_filter's routing rules.
type Category int

const (
	CategorySystem Category = iota
	CategoryCommandFeedback
	CategoryChat
)

// Event is the tagged union of presentation events the orchestrator
// emits (spec.md §4.6/§4.8).
type Event struct {
	Kind EventKind

	// MessageReceived / MessageSent / SessionEstablished
	Peer    string // alias-or-rdx
	Content string

	// MessageSent / BundlePublished
	Accepted bool

	// MessageReceived
	Contact string // RDX the display_filter matches against chat context

	// IdentitiesListed
	Identities []string
}

// EventKind tags an Event's variant.
type EventKind int

const (
	EvMessageReceived EventKind = iota
	EvSessionEstablished
	EvMessageSent
	EvBundlePublished
	EvIdentitiesListed
	EvSubscriptionEstablished
	EvBundleAnnouncementReceived
	EvBundleAnnouncementRemoved
)

// DisplayMessage is the output of presentation_handler, ready for
// display_filter.
type DisplayMessage struct {
	Category Category
	Contact  string // "" if not chat-scoped
	Text     string
}

// Handle turns one presentation Event into zero or one DisplayMessage.
// SubscriptionEstablished, BundleAnnouncementReceived/Removed are log
// only and produce no display message (spec.md §4.8).
func Handle(evt Event) (DisplayMessage, bool) {
	switch evt.Kind {
	case EvMessageReceived:
		return DisplayMessage{
			Category: CategoryChat,
			Contact:  evt.Contact,
			Text:     fmt.Sprintf("Message from %s: %s", evt.Peer, evt.Content),
		}, true
	case EvSessionEstablished:
		return DisplayMessage{
			Category: CategorySystem,
			Text:     fmt.Sprintf("Encrypted session established with %s", evt.Peer),
		}, true
	case EvMessageSent:
		if evt.Accepted {
			return DisplayMessage{Category: CategoryCommandFeedback, Text: fmt.Sprintf("Message sent to %s", evt.Peer)}, true
		}
		return DisplayMessage{Category: CategoryCommandFeedback, Text: fmt.Sprintf("Failed to send message to %s", evt.Peer)}, true
	case EvBundlePublished:
		if evt.Accepted {
			return DisplayMessage{Category: CategoryCommandFeedback, Text: "Identity published"}, true
		}
		return DisplayMessage{Category: CategoryCommandFeedback, Text: "Failed to publish identity"}, true
	case EvIdentitiesListed:
		if len(evt.Identities) == 0 {
			return DisplayMessage{Category: CategoryCommandFeedback, Text: "No identities"}, true
		}
		text := "Identities:"
		for _, id := range evt.Identities {
			text += "\n  " + id
		}
		return DisplayMessage{Category: CategoryCommandFeedback, Text: text}, true
	default:
		return DisplayMessage{}, false
	}
}
