package signalbridge

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/dustingooding/radix-relay/internal/signal"
	"github.com/dustingooding/radix-relay/internal/wire"
)

// wireNewBundleAnnouncement is a thin indirection over wire.NewBundleAnnouncement.
func wireNewBundleAnnouncement(senderPubkey string, timestamp uint64, bundleHex, version string) wire.EventData {
	return wire.NewBundleAnnouncement(senderPubkey, timestamp, bundleHex, version)
}

// signEvent fills id and sig on an unsigned event and returns it as JSON
// (spec.md §4.2 sign_bus_event).
func (b *Bridge) signEvent(event wire.EventData) (string, error) {
	event.Pubkey = b.busPubkey
	id, err := wire.CanonicalID(event.Pubkey, event.CreatedAt, event.Kind, event.Tags, event.Content)
	if err != nil {
		return "", fmt.Errorf("compute event id: %w", err)
	}
	event.ID = id

	idBytes, err := hex.DecodeString(id)
	if err != nil {
		return "", fmt.Errorf("decode event id: %w", err)
	}
	event.Sig = hex.EncodeToString(signal.Sign(idBytes, b.identityPriv))

	out, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return string(out), nil
}

// SignBusEvent is the general-purpose signer (spec.md §4.2
// sign_bus_event): fills id and sig fields deterministically on an
// otherwise-complete unsigned event.
func (b *Bridge) SignBusEvent(unsignedEventJSON string) (string, error) {
	var event wire.EventData
	if err := json.Unmarshal([]byte(unsignedEventJSON), &event); err != nil {
		return "", fmt.Errorf("parse unsigned event: %w", err)
	}
	return b.signEvent(event)
}

// CreateAndSignEncryptedMessage wraps hex-encoded ciphertext in a bus
// event of kind ENCRYPTED_MESSAGE, with tags identifying the recipient
// and protocol version, computes the event id, and signs it (spec.md
// §4.2).
func (b *Bridge) CreateAndSignEncryptedMessage(peerKey, hexCiphertext string, timestamp uint64, version string) (string, error) {
	contact, err := b.st.LookupContact(peerKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnknownContact, err)
	}
	event := wire.NewEncryptedMessage(timestamp, contact.BusPubkey, hexCiphertext, contact.RDX, version)
	return b.signEvent(event)
}
