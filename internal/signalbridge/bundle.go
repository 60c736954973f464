package signalbridge

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustingooding/radix-relay/internal/signal"

	"golang.org/x/crypto/ed25519"
)

// wireBundle is the JSON shape carried hex-encoded in a BUNDLE_ANNOUNCEMENT
// event's content field (spec.md §3 "Prekey Bundle (wire object)").
type wireBundle struct {
	IdentityKey     string `json:"identity_key"`
	SignedPreKeyID  int64  `json:"signed_pre_key_id"`
	SignedPreKey    string `json:"signed_pre_key"`
	SignedPreKeySig string `json:"signed_pre_key_sig"`
	PQPreKeyID      int64  `json:"pq_pre_key_id"`
	PQPreKey        string `json:"pq_pre_key"`
	PQPreKeySig     string `json:"pq_pre_key_sig"`
	OneTimePreKeyID int64  `json:"one_time_pre_key_id,omitempty"`
	OneTimePreKey   string `json:"one_time_pre_key,omitempty"`
	Signature       string `json:"signature"`
}

func (wb wireBundle) signingBytes() []byte {
	unsigned := wb
	unsigned.Signature = ""
	data, _ := json.Marshal(unsigned)
	return data
}

// GeneratePrekeyBundleAnnouncement picks one currently-unused one-time
// prekey, embeds the current signed and post-quantum prekeys, and
// returns a signed bus-event JSON ready to publish (spec.md §4.2). The
// caller MUST call RecordPublishedBundle with the three returned ids
// after the relay accepts the event.
func (b *Bridge) GeneratePrekeyBundleAnnouncement(version string) (announcementJSON string, oneTimePreKeyID, signedPreKeyID, pqPreKeyID int64, err error) {
	spk, err := b.st.CurrentSignedPreKey()
	if err != nil {
		return "", 0, 0, 0, fmt.Errorf("load signed prekey: %w", err)
	}
	if spk == nil {
		return "", 0, 0, 0, fmt.Errorf("no signed prekey provisioned")
	}
	pqk, err := b.st.CurrentPostQuantumPreKey()
	if err != nil {
		return "", 0, 0, 0, fmt.Errorf("load pq prekey: %w", err)
	}
	if pqk == nil {
		return "", 0, 0, 0, fmt.Errorf("no pq prekey provisioned")
	}
	otk, err := b.st.ReserveOneTimePreKeyForPublish()
	if err != nil {
		return "", 0, 0, 0, fmt.Errorf("reserve one-time prekey: %w", err)
	}

	wb := wireBundle{
		IdentityKey:     hex.EncodeToString(b.identityPub),
		SignedPreKeyID:  spk.ID,
		SignedPreKey:    hex.EncodeToString(spk.PubKey),
		SignedPreKeySig: hex.EncodeToString(spk.Signature),
		PQPreKeyID:      pqk.ID,
		PQPreKey:        hex.EncodeToString(pqk.PubKey),
		PQPreKeySig:     hex.EncodeToString(pqk.Signature),
	}
	if otk != nil {
		wb.OneTimePreKeyID = otk.ID
		wb.OneTimePreKey = hex.EncodeToString(otk.PubKey)
	}
	wb.Signature = hex.EncodeToString(signal.Sign(wb.signingBytes(), b.identityPriv))

	bundleJSON, err := json.Marshal(wb)
	if err != nil {
		return "", 0, 0, 0, fmt.Errorf("marshal bundle: %w", err)
	}

	event := wireNewBundleAnnouncement(b.busPubkey, uint64(time.Now().Unix()), hex.EncodeToString(bundleJSON), version)
	signedJSON, err := b.signEvent(event)
	if err != nil {
		return "", 0, 0, 0, err
	}

	oneTimeID := int64(0)
	if otk != nil {
		oneTimeID = otk.ID
	}
	return signedJSON, oneTimeID, spk.ID, pqk.ID, nil
}

// GenerateEmptyBundleAnnouncement returns a signed "unpublish" envelope
// (spec.md §6: empty bundle content means "unpublish").
func (b *Bridge) GenerateEmptyBundleAnnouncement(version string) (string, error) {
	event := wireNewBundleAnnouncement(b.busPubkey, uint64(time.Now().Unix()), "", version)
	return b.signEvent(event)
}

// RecordPublishedBundle marks the given prekeys as "in flight to the
// relay" after the caller observes the relay's acceptance OK (spec.md
// §4.2). Zero-value ids (no one-time prekey embedded) are ignored.
func (b *Bridge) RecordPublishedBundle(oneTimePreKeyID, signedPreKeyID, pqPreKeyID int64) error {
	if signedPreKeyID != 0 {
		if err := b.st.MarkSignedPreKeyPublished(signedPreKeyID); err != nil {
			return fmt.Errorf("record signed prekey published: %w", err)
		}
	}
	if pqPreKeyID != 0 {
		if err := b.st.MarkPostQuantumPreKeyPublished(pqPreKeyID); err != nil {
			return fmt.Errorf("record pq prekey published: %w", err)
		}
	}
	if oneTimePreKeyID != 0 {
		if err := b.st.MarkOneTimePreKeyPublished(oneTimePreKeyID); err != nil {
			return fmt.Errorf("record one-time prekey published: %w", err)
		}
	}
	return nil
}

// parseBundle decodes and verifies a hex-encoded wireBundle, returning
// the decoded fields alongside the PreKeyBundle ready for X3DH.
func parseBundle(bundleHex string) (wireBundle, signal.PreKeyBundle, error) {
	raw, err := hex.DecodeString(bundleHex)
	if err != nil {
		return wireBundle{}, signal.PreKeyBundle{}, fmt.Errorf("%w: not valid hex", ErrInvalidBundle)
	}
	var wb wireBundle
	if err := json.Unmarshal(raw, &wb); err != nil {
		return wireBundle{}, signal.PreKeyBundle{}, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}

	identityKey, err := hex.DecodeString(wb.IdentityKey)
	if err != nil {
		return wireBundle{}, signal.PreKeyBundle{}, fmt.Errorf("%w: bad identity key", ErrInvalidBundle)
	}
	sig, err := hex.DecodeString(wb.Signature)
	if err != nil {
		return wireBundle{}, signal.PreKeyBundle{}, fmt.Errorf("%w: bad signature", ErrInvalidBundle)
	}
	if !signal.Verify(wb.signingBytes(), sig, ed25519.PublicKey(identityKey)) {
		return wireBundle{}, signal.PreKeyBundle{}, ErrSignatureInvalid
	}

	signedPreKey, err := hex.DecodeString(wb.SignedPreKey)
	if err != nil {
		return wireBundle{}, signal.PreKeyBundle{}, fmt.Errorf("%w: bad signed prekey", ErrInvalidBundle)
	}
	signedPreKeySig, err := hex.DecodeString(wb.SignedPreKeySig)
	if err != nil {
		return wireBundle{}, signal.PreKeyBundle{}, fmt.Errorf("%w: bad signed prekey sig", ErrInvalidBundle)
	}
	pqPreKey, _ := hex.DecodeString(wb.PQPreKey)
	pqPreKeySig, _ := hex.DecodeString(wb.PQPreKeySig)
	var oneTimePreKey []byte
	if wb.OneTimePreKey != "" {
		oneTimePreKey, _ = hex.DecodeString(wb.OneTimePreKey)
	}

	pkb := signal.PreKeyBundle{
		IdentityKey:       identityKey,
		SignedPreKey:      signedPreKey,
		SignedPreKeySig:   signedPreKeySig,
		PostQuantumPreKey: pqPreKey,
		PostQuantumSig:    pqPreKeySig,
		OneTimePreKey:     oneTimePreKey,
	}
	return wb, pkb, nil
}

// ExtractRDXFromBundle verifies the bundle's signature without storing
// any state (spec.md §4.2).
func (b *Bridge) ExtractRDXFromBundle(bundleHex string) (string, error) {
	wb, _, err := parseBundle(bundleHex)
	if err != nil {
		return "", err
	}
	identityKey, _ := hex.DecodeString(wb.IdentityKey)
	return fingerprintOf(identityKey), nil
}
