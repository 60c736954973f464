// Package signal implements the X3DH key agreement and double-ratchet
// session state that the signal_bridge facade (internal/signalbridge)
// builds on. This is the "external Signal library" spec.md §1(d)/§6
// treats as a given component; its primitives (X3DH, the ratchet, the
// AES-GCM message cipher) are out of scope for review, but something has
// to implement them, so this package holds the same implementation the
// teacher repository shipped for its desktop client.
package signal

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustingooding/radix-relay/internal/crypto"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/ed25519"
	"golang.org/x/crypto/hkdf"
)

const (
	maxSkippedMessageKeys = 2000
	kdfInfoRoot           = "RadixV1.RootKDF"
	kdfInfoChain          = "RadixV1.ChainKDF"
	kdfInfoMsg            = "RadixV1.MsgKDF"

	// kdfInfoPQPlaceholder labels the simulated post-quantum prekey.
	// No Kyber (or other PQ KEM) implementation exists anywhere in the
	// retrieval pack this module was built from; spec.md §1 explicitly
	// treats PQ primitives as out of scope for this core. The bundle
	// still needs a third prekey slot with its own id/rotation
	// lifecycle (see signal_bridge.hpp's record_published_bundle), so
	// this placeholder reuses the X25519+Ed25519-signature shape of the
	// signed prekey under a distinct label. It is never combined into
	// the session secret and provides no post-quantum security; it
	// exists only so the bundle wire shape and prekey-inventory
	// bookkeeping match the original.
	kdfInfoPQPlaceholder = "RadixV1.PQPlaceholder"
)

// PreKeyBundle represents the bundle used for X3DH.
type PreKeyBundle struct {
	IdentityKey        []byte `json:"identity_key"`         // Ed25519 public key
	SignedPreKey       []byte `json:"signed_pre_key"`       // X25519 public key
	SignedPreKeySig    []byte `json:"signed_pre_key_sig"`   // Ed25519 signature over SPK
	PostQuantumPreKey  []byte `json:"pq_pre_key,omitempty"` // placeholder, see kdfInfoPQPlaceholder
	PostQuantumSig     []byte `json:"pq_pre_key_sig,omitempty"`
	OneTimePreKey      []byte `json:"one_time_pre_key,omitempty"` // Optional X25519 public key
}

// RatchetState represents the double ratchet session state.
type RatchetState struct {
	RootKey        []byte            `json:"root_key"`
	SendChainKey   []byte            `json:"send_chain_key"`
	RecvChainKey   []byte            `json:"recv_chain_key"`
	SendDHPriv     []byte            `json:"send_dh_priv"`
	SendDHPub      []byte            `json:"send_dh_pub"`
	RecvDHPub      []byte            `json:"recv_dh_pub"`
	SendCount      uint32            `json:"send_count"`
	RecvCount      uint32            `json:"recv_count"`
	PrevRecvCount  uint32            `json:"prev_recv_count"`
	SkippedMsgKeys map[string][]byte `json:"skipped_msg_keys"` // key: dh_pub||counter
	CreatedAt      int64             `json:"created_at"`
	UpdatedAt      int64             `json:"updated_at"`
}

// MessageHeader contains ratchet header data.
type MessageHeader struct {
	DHPub   []byte `json:"dh_pub"`
	PN      uint32 `json:"pn"`
	Counter uint32 `json:"counter"`
}

// EncryptedMessage is the transport wrapper carried as Signal ciphertext
// inside an ENCRYPTED_MESSAGE bus event's hex-encoded content.
type EncryptedMessage struct {
	Header     MessageHeader `json:"header"`
	Ciphertext []byte        `json:"ciphertext"`
	Nonce      []byte        `json:"nonce"`

	// Ephemeral, SenderIdKey and UsedOneTimeID are set only on the first
	// message of a new X3DH-responder session: the sender's ephemeral
	// public key, its identity key, and the id of the one-time prekey it
	// consumed (0 if none).
	Ephemeral     []byte `json:"ephemeral,omitempty"`
	SenderIdKey   []byte `json:"sender_identity,omitempty"`
	UsedOneTimeID uint64 `json:"used_one_time_id,omitempty"`
}

// Protocol implements X3DH + Double Ratchet over Curve25519/Ed25519/AES-GCM.
type Protocol struct{}

// NewProtocol creates a new Signal protocol instance.
func NewProtocol() *Protocol {
	return &Protocol{}
}

// GenerateIdentityKeyPair returns an Ed25519 key pair (public, private).
func (p *Protocol) GenerateIdentityKeyPair() ([]byte, []byte, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate identity key: %w", err)
	}
	return pub, priv, nil
}

// GenerateSignedPreKey creates one signed prekey pair (X25519 keypair,
// Ed25519-signed by the identity key).
func (p *Protocol) GenerateSignedPreKey(identityPriv ed25519.PrivateKey) (priv, pub, sig []byte, err error) {
	priv = make([]byte, 32)
	if _, err = io.ReadFull(rand.Reader, priv); err != nil {
		return nil, nil, nil, fmt.Errorf("generate spk priv: %w", err)
	}
	pub, err = curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("derive spk pub: %w", err)
	}
	sig = ed25519.Sign(identityPriv, pub)
	return priv, pub, sig, nil
}

// GeneratePostQuantumPreKey creates the placeholder post-quantum prekey
// described by kdfInfoPQPlaceholder. See that constant's comment.
func (p *Protocol) GeneratePostQuantumPreKey(identityPriv ed25519.PrivateKey) (priv, pub, sig []byte, err error) {
	priv = make([]byte, 32)
	if _, err = io.ReadFull(rand.Reader, priv); err != nil {
		return nil, nil, nil, fmt.Errorf("generate pq priv: %w", err)
	}
	pub, err = curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("derive pq pub: %w", err)
	}
	sig = ed25519.Sign(identityPriv, append([]byte(kdfInfoPQPlaceholder), pub...))
	return priv, pub, sig, nil
}

// GenerateOneTimePreKeys generates count one-time prekey pairs.
func (p *Protocol) GenerateOneTimePreKeys(count int) (keys [][2][]byte, err error) {
	keys = make([][2][]byte, 0, count)
	for i := 0; i < count; i++ {
		priv := make([]byte, 32)
		if _, err = io.ReadFull(rand.Reader, priv); err != nil {
			return nil, err
		}
		pub, err2 := curve25519.X25519(priv, curve25519.Basepoint)
		if err2 != nil {
			return nil, fmt.Errorf("derive opk pub: %w", err2)
		}
		keys = append(keys, [2][]byte{priv, pub})
	}
	return keys, nil
}

// CreateSessionFromPreKeyBundle performs the X3DH initiator side (DH1-DH4)
// to establish the initial root key, then takes the first ratchet step.
func (p *Protocol) CreateSessionFromPreKeyBundle(localIKPriv ed25519.PrivateKey, localEPPriv []byte, bundle PreKeyBundle) (*RatchetState, []byte, error) {
	if len(bundle.IdentityKey) != ed25519.PublicKeySize {
		return nil, nil, fmt.Errorf("invalid identity key size")
	}
	if !ed25519.Verify(bundle.IdentityKey, bundle.SignedPreKey, bundle.SignedPreKeySig) {
		return nil, nil, fmt.Errorf("invalid signed pre-key signature")
	}

	localEPPub, err := curve25519.X25519(localEPPriv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, fmt.Errorf("derive ephemeral pub: %w", err)
	}

	dh1, err := curve25519.X25519(localEPPriv, bundle.SignedPreKey)
	if err != nil {
		return nil, nil, fmt.Errorf("dh1: %w", err)
	}
	dh2, err := curve25519.X25519(localEPPriv, bundle.IdentityKey[:32])
	if err != nil {
		return nil, nil, fmt.Errorf("dh2: %w", err)
	}
	dh3, err := curve25519.X25519(localIKPriv.Seed()[:32], bundle.SignedPreKey)
	if err != nil {
		return nil, nil, fmt.Errorf("dh3: %w", err)
	}

	var dh4 []byte
	if len(bundle.OneTimePreKey) == 32 {
		dh4, err = curve25519.X25519(localEPPriv, bundle.OneTimePreKey)
		if err != nil {
			return nil, nil, fmt.Errorf("dh4: %w", err)
		}
	}

	concat := bytes.Join([][]byte{dh1, dh2, dh3, dh4}, nil)
	rootKey := hkdfDerive(nil, concat, []byte(kdfInfoRoot), 32)

	sendPriv := make([]byte, 32)
	if _, err = io.ReadFull(rand.Reader, sendPriv); err != nil {
		return nil, nil, fmt.Errorf("generate send priv: %w", err)
	}
	sendPub, err := curve25519.X25519(sendPriv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, fmt.Errorf("derive send pub: %w", err)
	}

	now := time.Now().Unix()
	state := &RatchetState{
		RootKey:        rootKey,
		SendDHPriv:     sendPriv,
		SendDHPub:      sendPub,
		RecvDHPub:      bundle.SignedPreKey,
		SkippedMsgKeys: make(map[string][]byte),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := state.ratchetStep(bundle.SignedPreKey); err != nil {
		return nil, nil, err
	}

	return state, localEPPub, nil
}

// CreateSessionFromInitialMessage performs the X3DH responder side: given
// the local identity and prekey material plus the sender's ephemeral
// public key (carried in the first EncryptedMessage), reconstructs the
// same root key the initiator derived.
func (p *Protocol) CreateSessionFromInitialMessage(localIKPriv ed25519.PrivateKey, localSPKPriv []byte, localOPKPriv []byte, remoteIdentityKey []byte, remoteEphemeral []byte) (*RatchetState, error) {
	dh1, err := curve25519.X25519(localSPKPriv, remoteEphemeral)
	if err != nil {
		return nil, fmt.Errorf("dh1: %w", err)
	}
	dh2, err := curve25519.X25519(localIKPriv.Seed()[:32], remoteEphemeral)
	if err != nil {
		return nil, fmt.Errorf("dh2: %w", err)
	}
	dh3, err := curve25519.X25519(localSPKPriv, remoteIdentityKey[:32])
	if err != nil {
		return nil, fmt.Errorf("dh3: %w", err)
	}

	var dh4 []byte
	if len(localOPKPriv) == 32 {
		dh4, err = curve25519.X25519(localOPKPriv, remoteEphemeral)
		if err != nil {
			return nil, fmt.Errorf("dh4: %w", err)
		}
	}

	concat := bytes.Join([][]byte{dh1, dh2, dh3, dh4}, nil)
	rootKey := hkdfDerive(nil, concat, []byte(kdfInfoRoot), 32)

	now := time.Now().Unix()
	state := &RatchetState{
		RootKey:        rootKey,
		SendDHPriv:     localSPKPriv,
		RecvDHPub:      nil,
		SkippedMsgKeys: make(map[string][]byte),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	spkPub, err := curve25519.X25519(localSPKPriv, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive spk pub: %w", err)
	}
	state.SendDHPub = spkPub

	return state, nil
}

// EncryptMessage performs double ratchet encryption and returns the
// advanced state alongside the ciphertext envelope.
func (p *Protocol) EncryptMessage(state *RatchetState, plaintext []byte) (*EncryptedMessage, *RatchetState, error) {
	if state == nil {
		return nil, nil, errors.New("nil state")
	}

	msgKey, nextCK := deriveMessageKey(state.SendChainKey)
	state.SendChainKey = nextCK

	nonce := make([]byte, crypto.NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("nonce: %w", err)
	}

	ciphertext, err := crypto.EncryptWithNonce(plaintext, msgKey, nonce)
	if err != nil {
		return nil, nil, fmt.Errorf("encrypt: %w", err)
	}

	header := MessageHeader{
		DHPub:   state.SendDHPub,
		PN:      state.PrevRecvCount,
		Counter: state.SendCount,
	}
	state.SendCount++
	state.UpdatedAt = time.Now().Unix()

	return &EncryptedMessage{
		Header:     header,
		Ciphertext: ciphertext,
		Nonce:      nonce,
	}, state, nil
}

// DecryptMessage performs double ratchet decryption and returns the
// advanced state alongside the recovered plaintext.
func (p *Protocol) DecryptMessage(state *RatchetState, msg *EncryptedMessage) ([]byte, *RatchetState, error) {
	if state == nil {
		return nil, nil, errors.New("nil state")
	}

	keyID := skippedKeyIdentifier(msg.Header.DHPub, msg.Header.Counter)
	if key, ok := state.SkippedMsgKeys[keyID]; ok {
		plaintext, err := crypto.DecryptWithNonce(msg.Ciphertext, key, msg.Nonce)
		if err == nil {
			delete(state.SkippedMsgKeys, keyID)
			return plaintext, state, nil
		}
	}

	if !bytes.Equal(msg.Header.DHPub, state.RecvDHPub) {
		if err := state.skipMessageKeys(msg.Header.PN); err != nil {
			return nil, nil, err
		}
		if err := state.ratchetStep(msg.Header.DHPub); err != nil {
			return nil, nil, err
		}
	}

	if msg.Header.Counter < state.RecvCount {
		return nil, nil, fmt.Errorf("message already processed")
	}
	for state.RecvCount < msg.Header.Counter {
		mk, nextCK := deriveMessageKey(state.RecvChainKey)
		state.RecvChainKey = nextCK
		state.storeSkippedKey(msg.Header.DHPub, state.RecvCount, mk)
		state.RecvCount++
	}

	mk, nextCK := deriveMessageKey(state.RecvChainKey)
	state.RecvChainKey = nextCK
	state.RecvCount++

	plaintext, err := crypto.DecryptWithNonce(msg.Ciphertext, mk, msg.Nonce)
	if err != nil {
		return nil, nil, fmt.Errorf("decrypt: %w", err)
	}

	state.UpdatedAt = time.Now().Unix()
	return plaintext, state, nil
}

// SerializeState encodes ratchet state to JSON for storage.
func SerializeState(state *RatchetState) ([]byte, error) {
	return json.Marshal(state)
}

// DeserializeState decodes ratchet state previously produced by SerializeState.
func DeserializeState(data []byte) (*RatchetState, error) {
	var st RatchetState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	if st.SkippedMsgKeys == nil {
		st.SkippedMsgKeys = make(map[string][]byte)
	}
	return &st, nil
}

func hkdfDerive(salt, ikm, info []byte, size int) []byte {
	r := hkdf.New(sha256.New, ikm, salt, info)
	out := make([]byte, size)
	if _, err := io.ReadFull(r, out); err != nil {
		panic(err)
	}
	return out
}

func deriveChainKey(rootKey, dhOutput []byte) (newRoot []byte, chainKey []byte) {
	newRoot = hkdfDerive(rootKey, dhOutput, []byte(kdfInfoRoot), 32)
	chainKey = hkdfDerive(newRoot, dhOutput, []byte(kdfInfoChain), 32)
	return
}

func deriveMessageKey(chainKey []byte) (msgKey []byte, nextCK []byte) {
	if chainKey == nil {
		return hkdfDerive(nil, []byte("init"), []byte(kdfInfoMsg), 32), hkdfDerive(nil, []byte("initCK"), []byte(kdfInfoChain), 32)
	}
	msgKey = hkdfDerive(chainKey, []byte("0"), []byte(kdfInfoMsg), 32)
	nextCK = hkdfDerive(chainKey, []byte("1"), []byte(kdfInfoChain), 32)
	return
}

func (st *RatchetState) ratchetStep(remotePub []byte) error {
	dhOut, err := curve25519.X25519(st.SendDHPriv, remotePub)
	if err != nil {
		return fmt.Errorf("ratchet dh: %w", err)
	}
	newRoot, recvCK := deriveChainKey(st.RootKey, dhOut)

	newSendPriv := make([]byte, 32)
	if _, err = io.ReadFull(rand.Reader, newSendPriv); err != nil {
		return fmt.Errorf("generate ratchet priv: %w", err)
	}
	newSendPub, err := curve25519.X25519(newSendPriv, curve25519.Basepoint)
	if err != nil {
		return fmt.Errorf("derive ratchet pub: %w", err)
	}

	dhOut2, err := curve25519.X25519(newSendPriv, remotePub)
	if err != nil {
		return fmt.Errorf("ratchet dh2: %w", err)
	}
	newRoot2, sendCK := deriveChainKey(newRoot, dhOut2)

	st.RootKey = newRoot2
	st.SendChainKey = sendCK
	st.RecvChainKey = recvCK
	st.SendDHPriv = newSendPriv
	st.SendDHPub = newSendPub
	st.RecvDHPub = remotePub
	st.PrevRecvCount = st.RecvCount
	st.RecvCount = 0
	st.SendCount = 0
	return nil
}

func (st *RatchetState) storeSkippedKey(dhPub []byte, counter uint32, key []byte) {
	if len(st.SkippedMsgKeys) >= maxSkippedMessageKeys {
		for k := range st.SkippedMsgKeys {
			delete(st.SkippedMsgKeys, k)
			break
		}
	}
	st.SkippedMsgKeys[skippedKeyIdentifier(dhPub, counter)] = key
}

func (st *RatchetState) skipMessageKeys(until uint32) error {
	for st.RecvCount < until {
		mk, nextCK := deriveMessageKey(st.RecvChainKey)
		st.RecvChainKey = nextCK
		st.storeSkippedKey(st.RecvDHPub, st.RecvCount, mk)
		st.RecvCount++
	}
	return nil
}

func skippedKeyIdentifier(dhPub []byte, counter uint32) string {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, counter)
	return base64.StdEncoding.EncodeToString(append(dhPub, buf...))
}

// Sign signs arbitrary data with an Ed25519 private key (used for bus
// event signatures and bundle signatures).
func Sign(data []byte, priv ed25519.PrivateKey) []byte {
	return ed25519.Sign(priv, data)
}

// Verify verifies an Ed25519 signature.
func Verify(data, sig []byte, pub ed25519.PublicKey) bool {
	return ed25519.Verify(pub, data, sig)
}

// ComputeMAC computes an HMAC-SHA256.
func ComputeMAC(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}
