// Package wire implements the relay's text-array wire protocol (spec.md
// §4.3, §6): bus event objects, OK/EOSE/REQ frames, and the wire_codec
// that translates between byte buffers and these protocol objects.
// Grounded directly on _examples/original_source's
// lib/nostr/include/nostr/protocol.hpp and
// src/radix_relay/nostr/protocol.cpp, translated from nlohmann::json to
// encoding/json.
package wire

import "fmt"

// Kind is the bus event's numeric kind tag.
type Kind uint16

const (
	KindProfileMetadata Kind = 0
	KindTextNote        Kind = 1
	KindRecommendRelay  Kind = 2
	KindContactList     Kind = 3
	KindEncryptedDM      Kind = 4
	KindReaction        Kind = 7

	KindParameterizedReplaceableStart Kind = 30000
	KindBundleAnnouncement            Kind = 30078

	KindEncryptedMessage     Kind = 40001
	KindIdentityAnnouncement Kind = 40002
	KindSessionRequest       Kind = 40003
	KindNodeStatus           Kind = 40004
)

// BundleAnnouncementMinimumVersion is the lowest radix_version a
// BUNDLE_ANNOUNCEMENT may carry and still be honored (spec.md §6).
const BundleAnnouncementMinimumVersion = "0.4.0"

// BundleAnnouncementDTag identifies the parameterized-replaceable bundle
// announcement event.
const BundleAnnouncementDTag = "radix_prekey_bundle_v1"

// MaxSubscriptionIDLength is the longest subscription id the relay accepts.
const MaxSubscriptionIDLength = 64

// ValidateSubscriptionID enforces spec.md §6's subscription id rule:
// non-empty, length <= 64.
func ValidateSubscriptionID(id string) error {
	if id == "" {
		return fmt.Errorf("subscription id cannot be empty")
	}
	if len(id) > MaxSubscriptionIDLength {
		return fmt.Errorf("subscription id exceeds maximum length of %d characters", MaxSubscriptionIDLength)
	}
	return nil
}

// IsRadixMessage reports whether kind is one this node's core cares
// about, versus a pass-through standard kind it ignores.
func (k Kind) IsRadixMessage() bool {
	switch k {
	case KindEncryptedMessage, KindIdentityAnnouncement, KindSessionRequest, KindNodeStatus, KindBundleAnnouncement:
		return true
	default:
		return false
	}
}

// EventData is the signed bus event object (spec.md §3 "Bus Event", §6).
type EventData struct {
	ID        string     `json:"id"`
	Pubkey    string     `json:"pubkey"`
	CreatedAt uint64     `json:"created_at"`
	Kind      Kind       `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// Tag returns the value of the first tag whose name matches, and whether
// one was found.
func (e EventData) Tag(name string) (string, bool) {
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1], true
		}
	}
	return "", false
}

// NewIdentityAnnouncement builds an unsigned IDENTITY_ANNOUNCEMENT event.
func NewIdentityAnnouncement(senderPubkey string, timestamp uint64, signalFingerprint, capabilities, version string) EventData {
	return EventData{
		Pubkey:    senderPubkey,
		CreatedAt: timestamp,
		Kind:      KindIdentityAnnouncement,
		Tags: [][]string{
			{"signal_fingerprint", signalFingerprint},
			{"radix_capabilities", capabilities},
			{"radix_version", version},
		},
		Content: "radix_relay_node_v1",
	}
}

// NewBundleAnnouncement builds an unsigned BUNDLE_ANNOUNCEMENT event. An
// empty bundleHex means "unpublish" per spec.md §3.
func NewBundleAnnouncement(senderPubkey string, timestamp uint64, bundleHex, version string) EventData {
	return EventData{
		Pubkey:    senderPubkey,
		CreatedAt: timestamp,
		Kind:      KindBundleAnnouncement,
		Tags: [][]string{
			{"d", BundleAnnouncementDTag},
			{"radix_version", version},
		},
		Content: bundleHex,
	}
}

// NewEncryptedMessage builds an unsigned ENCRYPTED_MESSAGE event.
func NewEncryptedMessage(timestamp uint64, recipientPubkey, encryptedPayloadHex, sessionID, version string) EventData {
	return EventData{
		CreatedAt: timestamp,
		Kind:      KindEncryptedMessage,
		Tags: [][]string{
			{"p", recipientPubkey},
			{"radix_peer", sessionID},
			{"radix_version", version},
		},
		Content: encryptedPayloadHex,
	}
}

// NewSessionRequest builds an unsigned SESSION_REQUEST event.
func NewSessionRequest(senderPubkey string, timestamp uint64, recipientPubkey, prekeyBundle, version string) EventData {
	return EventData{
		Pubkey:    senderPubkey,
		CreatedAt: timestamp,
		Kind:      KindSessionRequest,
		Tags: [][]string{
			{"p", recipientPubkey},
			{"radix_version", version},
		},
		Content: prekeyBundle,
	}
}

// OK is the relay's per-event acknowledgement (spec.md §6).
type OK struct {
	EventID  string
	Accepted bool
	Message  string
}

// EOSE marks end-of-stored-events for a subscription (spec.md §6).
type EOSE struct {
	SubscriptionID string
}

// Req is the subscription-open frame sent client-to-relay.
type Req struct {
	SubscriptionID string
	Filters        map[string]any
}

// Event is the EVENT frame in either direction: outgoing events omit
// SubscriptionID, inbound ones carry it.
type Event struct {
	SubscriptionID string
	Data           EventData
}
