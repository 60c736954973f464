package signalbridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dustingooding/radix-relay/internal/signal"
	"github.com/dustingooding/radix-relay/internal/store"
)

// DecryptResult is the result of decrypt_message (spec.md §4.2).
type DecryptResult struct {
	Plaintext            []byte
	ShouldRepublishBundle bool
}

// EncryptMessage encrypts with the session stored for the contact, which
// AddContactAndEstablishSessionFromBundle creates when the bundle is
// added. Fails with ErrUnknownContact for a peer that is not a contact and
// with ErrNoSession for a contact with no stored session. Advances the
// sending ratchet (spec.md §4.2).
func (b *Bridge) EncryptMessage(peerKey string, plaintext []byte) ([]byte, error) {
	contact, err := b.st.LookupContact(peerKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnknownContact
	}
	if err != nil {
		return nil, fmt.Errorf("lookup contact: %w", err)
	}

	lock := b.sessionLock(contact.RDX)
	lock.Lock()
	defer lock.Unlock()

	raw, err := b.st.LoadSessionState(contact.RDX)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if raw == nil {
		return nil, ErrNoSession
	}
	state, err := signal.DeserializeState(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoError, err)
	}

	envelope, newState, err := b.proto.EncryptMessage(state, plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoError, err)
	}

	ephemeral, oneTimeID, pending, err := b.st.GetPendingBootstrap(contact.RDX)
	if err != nil {
		return nil, fmt.Errorf("get pending bootstrap: %w", err)
	}
	if pending {
		envelope.Ephemeral = ephemeral
		envelope.SenderIdKey = b.identityPub
		envelope.UsedOneTimeID = uint64(oneTimeID)
	}

	serialized, err := signal.SerializeState(newState)
	if err != nil {
		return nil, fmt.Errorf("serialize session: %w", err)
	}
	if err := b.st.SaveSessionState(contact.RDX, serialized); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	if pending {
		if err := b.st.ClearPendingBootstrap(contact.RDX); err != nil {
			return nil, fmt.Errorf("clear pending bootstrap: %w", err)
		}
	}

	ciphertext, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	if err := b.st.SaveMessage(store.Message{
		ID:         newMessageID(),
		ContactRDX: contact.RDX,
		Direction:  store.DirectionOutgoing,
		Content:    string(plaintext),
		CreatedAt:  time.Now().Unix(),
		Read:       true,
	}); err != nil {
		b.log.Warn("save outgoing message history: %v", err)
	}

	return ciphertext, nil
}

// DecryptMessage accepts either a prekey-bearing initial message
// (creates session, may consume a one-time prekey) or a steady-state
// message. peerHint is the sender's bus pubkey; if the contact is not
// known the bridge creates it from the envelope's identity key (spec.md
// §4.2).
func (b *Bridge) DecryptMessage(peerHint string, ciphertext []byte) (DecryptResult, error) {
	var envelope signal.EncryptedMessage
	if err := json.Unmarshal(ciphertext, &envelope); err != nil {
		return DecryptResult{}, fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}

	contact, err := b.st.LookupContact(peerHint)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return DecryptResult{}, fmt.Errorf("lookup contact: %w", err)
	}

	isInitial := len(envelope.Ephemeral) > 0 && len(envelope.SenderIdKey) > 0

	if contact == nil {
		if !isInitial {
			return DecryptResult{}, ErrUnknownPeer
		}
		rdx := fingerprintOf(envelope.SenderIdKey)
		newContact := store.Contact{
			RDX:         rdx,
			BusPubkey:   peerHint,
			IdentityKey: envelope.SenderIdKey,
			CreatedAt:   time.Now().Unix(),
		}
		if err := b.st.UpsertContact(newContact); err != nil {
			return DecryptResult{}, fmt.Errorf("upsert contact: %w", err)
		}
		contact = &newContact
	}

	lock := b.sessionLock(contact.RDX)
	lock.Lock()
	defer lock.Unlock()

	var state *signal.RatchetState
	shouldRepublish := false

	if isInitial {
		raw, err := b.st.LoadSessionState(contact.RDX)
		if err != nil {
			return DecryptResult{}, fmt.Errorf("load session: %w", err)
		}
		if raw != nil {
			state, err = signal.DeserializeState(raw)
			if err != nil {
				return DecryptResult{}, fmt.Errorf("%w: %v", ErrCryptoError, err)
			}
		} else {
			spk, err := b.st.CurrentSignedPreKey()
			if err != nil {
				return DecryptResult{}, fmt.Errorf("load signed prekey: %w", err)
			}
			if spk == nil {
				return DecryptResult{}, fmt.Errorf("no signed prekey provisioned")
			}

			var oneTimePriv []byte
			if envelope.UsedOneTimeID != 0 {
				otk, err := b.st.ConsumeOneTimePreKeyByID(int64(envelope.UsedOneTimeID))
				if err != nil {
					return DecryptResult{}, fmt.Errorf("consume one-time prekey: %w", err)
				}
				if otk != nil {
					oneTimePriv = otk.PrivKey
					last, err := b.st.IsLastOfID(otk.ID)
					if err != nil {
						return DecryptResult{}, fmt.Errorf("check last one-time prekey: %w", err)
					}
					shouldRepublish = last
				}
			}

			state, err = b.proto.CreateSessionFromInitialMessage(b.identityPriv, spk.PrivKey, oneTimePriv, envelope.SenderIdKey, envelope.Ephemeral)
			if err != nil {
				return DecryptResult{}, fmt.Errorf("%w: %v", ErrCryptoError, err)
			}
			if err := b.st.SetHasSession(contact.RDX, true); err != nil {
				return DecryptResult{}, fmt.Errorf("set has session: %w", err)
			}
		}
	} else {
		raw, err := b.st.LoadSessionState(contact.RDX)
		if err != nil {
			return DecryptResult{}, fmt.Errorf("load session: %w", err)
		}
		if raw == nil {
			return DecryptResult{}, ErrNoSession
		}
		state, err = signal.DeserializeState(raw)
		if err != nil {
			return DecryptResult{}, fmt.Errorf("%w: %v", ErrCryptoError, err)
		}
	}

	plaintext, newState, err := b.proto.DecryptMessage(state, &envelope)
	if err != nil {
		return DecryptResult{}, fmt.Errorf("%w: %v", ErrCryptoError, err)
	}

	serialized, err := signal.SerializeState(newState)
	if err != nil {
		return DecryptResult{}, fmt.Errorf("serialize session: %w", err)
	}
	if err := b.st.SaveSessionState(contact.RDX, serialized); err != nil {
		return DecryptResult{}, fmt.Errorf("save session: %w", err)
	}

	if err := b.st.SaveMessage(store.Message{
		ID:         newMessageID(),
		ContactRDX: contact.RDX,
		Direction:  store.DirectionIncoming,
		Content:    string(plaintext),
		CreatedAt:  time.Now().Unix(),
		Read:       false,
	}); err != nil {
		b.log.Warn("save incoming message history: %v", err)
	}

	return DecryptResult{Plaintext: plaintext, ShouldRepublishBundle: shouldRepublish}, nil
}

// Conversation-history operations (spec.md §4.2); thin passthroughs to
// internal/store, not on the hot path.

func (b *Bridge) GetConversations() ([]store.Conversation, error) {
	return b.st.GetConversations()
}

func (b *Bridge) GetConversationMessages(rdx string, limit, offset int) ([]store.Message, error) {
	return b.st.GetConversationMessages(rdx, limit, offset)
}

func (b *Bridge) MarkConversationReadUpTo(rdx string, ts int64) error {
	return b.st.MarkConversationReadUpTo(rdx, ts)
}

func (b *Bridge) DeleteMessage(id string) error {
	return b.st.DeleteMessage(id)
}

func (b *Bridge) DeleteConversation(rdx string) error {
	return b.st.DeleteConversation(rdx)
}

func (b *Bridge) GetUnreadCount() (int, error) {
	return b.st.GetUnreadCount()
}
