// Package signalbridge implements the signal_bridge facade of spec.md
// §4.2: a wrapper over internal/signal and its persistent store
// (internal/store) that the session orchestrator depends on exclusively
// for identity, prekeys, contacts, sessions, and message history.
// Grounded on the teacher's internal/services/signal_service.go and
// internal/services/identity_key_service.go (now removed in favor of
// this single facade) and on _examples/original_source's
// lib/signal/include/signal/signal_bridge.hpp for the operation list
// and invariants.
package signalbridge

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/dustingooding/radix-relay/internal/logging"
	"github.com/dustingooding/radix-relay/internal/signal"
	"github.com/dustingooding/radix-relay/internal/store"

	"golang.org/x/crypto/ed25519"
)

// Sentinel errors, matching spec.md §4.2's per-operation failure modes.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidBundle      = errors.New("invalid bundle")
	ErrSignatureInvalid   = errors.New("signature invalid")
	ErrSelfBundle         = errors.New("cannot add self as contact")
	ErrNoSession          = errors.New("no session established")
	ErrUnknownContact     = errors.New("unknown contact")
	ErrCryptoError        = errors.New("crypto error")
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
	ErrUnknownPeer        = errors.New("unknown peer")
)

// Key maintenance thresholds, matching the original's signal_bridge.hpp
// (30-day rotation threshold, low-water-mark 10, high-water-mark 100 —
// see SPEC_FULL.md's SUPPLEMENTED FEATURES section).
const (
	rotationThresholdSeconds = 30 * 24 * 60 * 60
	oneTimePreKeyLowWaterMark  = 10
	oneTimePreKeyHighWaterMark = 100
)

// Bridge is the signal_bridge facade. One Bridge owns exactly one local
// identity and its store.
type Bridge struct {
	st   *store.Store
	log  *logging.Logger
	proto *signal.Protocol

	identityPub  ed25519.PublicKey
	identityPriv ed25519.PrivateKey
	fingerprint  string
	busPubkey    string

	// sessionLocks enforces invariant I1: concurrent encrypt/decrypt
	// calls against the *same* session are serialized; different
	// sessions may proceed in parallel.
	locksMu      sync.Mutex
	sessionLocks map[string]*sync.Mutex
}

// New opens or creates the node's identity in st and returns a ready
// Bridge.
func New(st *store.Store, log *logging.Logger) (*Bridge, error) {
	proto := signal.NewProtocol()

	identity, err := st.LoadIdentity()
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}

	if identity == nil {
		pub, priv, err := proto.GenerateIdentityKeyPair()
		if err != nil {
			return nil, fmt.Errorf("generate identity: %w", err)
		}
		fp := fingerprintOf(pub)
		if err := st.SaveIdentity(store.Identity{
			PublicKey:   pub,
			PrivateKey:  priv,
			Fingerprint: fp,
			CreatedAt:   unixNow(),
		}); err != nil {
			return nil, fmt.Errorf("save identity: %w", err)
		}
		identity = &store.Identity{PublicKey: pub, PrivateKey: priv, Fingerprint: fp}
		log.Info("created new node identity %s", fp)
	}

	b := &Bridge{
		st:           st,
		log:          log,
		proto:        proto,
		identityPub:  ed25519.PublicKey(identity.PublicKey),
		identityPriv: ed25519.PrivateKey(identity.PrivateKey),
		fingerprint:  identity.Fingerprint,
		busPubkey:    hex.EncodeToString(identity.PublicKey),
		sessionLocks: make(map[string]*sync.Mutex),
	}

	if err := b.EnsureProvisioned(); err != nil {
		return nil, fmt.Errorf("provision keys: %w", err)
	}

	return b, nil
}

// GetNodeFingerprint returns "RDX:" + hex(identity_pubkey_hash). Pure,
// idempotent (spec.md §4.2).
func (b *Bridge) GetNodeFingerprint() string {
	return b.fingerprint
}

// BusPubkey returns the node's identity key in the relay's hex encoding.
func (b *Bridge) BusPubkey() string {
	return b.busPubkey
}

func fingerprintOf(pub []byte) string {
	sum := sha256.Sum256(pub)
	return "RDX:" + hex.EncodeToString(sum[:])
}

// sessionLock returns the mutex serializing encrypt/decrypt for rdx,
// creating one on first use.
func (b *Bridge) sessionLock(rdx string) *sync.Mutex {
	b.locksMu.Lock()
	defer b.locksMu.Unlock()
	m, ok := b.sessionLocks[rdx]
	if !ok {
		m = &sync.Mutex{}
		b.sessionLocks[rdx] = m
	}
	return m
}
