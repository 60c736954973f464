package signalbridge

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustingooding/radix-relay/internal/signal"
	"github.com/dustingooding/radix-relay/internal/store"
)

// ListContacts returns a snapshot view of every known contact (spec.md
// §4.2). Contacts may include a "self" entry; callers must filter it
// when showing peers.
func (b *Bridge) ListContacts() ([]store.Contact, error) {
	contacts, err := b.st.ListContacts()
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return contacts, nil
}

// LookupContact finds a contact by RDX fingerprint, bus pubkey, or alias
// (spec.md §4.2).
func (b *Bridge) LookupContact(key string) (*store.Contact, error) {
	c, err := b.st.LookupContact(key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup contact: %w", err)
	}
	return c, nil
}

// AssignContactAlias is idempotent; last-writer-wins. An empty alias
// clears it (spec.md §4.2).
func (b *Bridge) AssignContactAlias(rdx, alias string) error {
	if err := b.st.AssignAlias(rdx, alias); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("assign alias: %w", err)
	}
	return nil
}

// AddContactAndEstablishSessionFromBundle parses and verifies the
// bundle's signature, creates the contact if new, and drives X3DH
// (initiator side) to produce an initial session (spec.md §4.2). The
// first outbound encrypt on this session embeds the local ephemeral
// public key and the remote one-time prekey id consumed here, so the
// remote can complete its X3DH responder side on first decrypt.
func (b *Bridge) AddContactAndEstablishSessionFromBundle(bundleHex string, alias string) (string, error) {
	wb, pkb, err := parseBundle(bundleHex)
	if err != nil {
		return "", err
	}

	rdx := fingerprintOf(pkb.IdentityKey)
	if rdx == b.fingerprint {
		return "", ErrSelfBundle
	}

	localEPPriv := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, localEPPriv); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCryptoError, err)
	}
	state, localEPPub, err := b.proto.CreateSessionFromPreKeyBundle(b.identityPriv, localEPPriv, pkb)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCryptoError, err)
	}

	busPubkey := hex.EncodeToString(pkb.IdentityKey)
	if err := b.st.UpsertContact(store.Contact{
		RDX:         rdx,
		BusPubkey:   busPubkey,
		IdentityKey: pkb.IdentityKey,
		Alias:       alias,
		HasSession:  true,
		CreatedAt:   time.Now().Unix(),
	}); err != nil {
		return "", fmt.Errorf("upsert contact: %w", err)
	}
	if err := b.st.SetHasSession(rdx, true); err != nil {
		return "", fmt.Errorf("set has session: %w", err)
	}

	serialized, err := signal.SerializeState(state)
	if err != nil {
		return "", fmt.Errorf("serialize session: %w", err)
	}
	if err := b.st.SaveSessionState(rdx, serialized); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	if err := b.st.SetPendingBootstrap(rdx, localEPPub, wb.OneTimePreKeyID); err != nil {
		return "", fmt.Errorf("set pending bootstrap: %w", err)
	}

	return rdx, nil
}
