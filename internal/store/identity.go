package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dustingooding/radix-relay/internal/crypto"
)

// Identity is the node's long-term cryptographic identity (spec.md §3
// "Identity").
type Identity struct {
	PublicKey   []byte
	PrivateKey  []byte
	Fingerprint string
	CreatedAt   int64
}

// SaveIdentity inserts the node's one identity row. Calling it twice is
// an error; an identity is created once, on first run.
func (s *Store) SaveIdentity(identity Identity) error {
	privateKey := identity.PrivateKey
	if s.dbKey != nil {
		encrypted, err := crypto.Encrypt(privateKey, s.dbKey)
		if err != nil {
			return fmt.Errorf("encrypt identity private key: %w", err)
		}
		privateKey = encrypted
	}

	_, err := s.conn.Exec(
		`INSERT INTO identity (id, public_key, private_key, fingerprint, created_at) VALUES (1, ?, ?, ?, ?)`,
		identity.PublicKey, privateKey, identity.Fingerprint, identity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

// LoadIdentity returns the node's identity, or (nil, nil) if none has
// been created yet.
func (s *Store) LoadIdentity() (*Identity, error) {
	row := s.conn.QueryRow(`SELECT public_key, private_key, fingerprint, created_at FROM identity WHERE id = 1`)

	var id Identity
	err := row.Scan(&id.PublicKey, &id.PrivateKey, &id.Fingerprint, &id.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}

	if s.dbKey != nil {
		decrypted, err := crypto.Decrypt(id.PrivateKey, s.dbKey)
		if err != nil {
			return nil, fmt.Errorf("decrypt identity private key: %w", err)
		}
		id.PrivateKey = decrypted
	}

	return &id, nil
}

// GetLastSeen returns the persisted "last seen" watermark, defaulting to
// 0 if never set.
func (s *Store) GetLastSeen() (uint64, error) {
	v, err := s.getKV("last_seen")
	if err != nil {
		return 0, err
	}
	if v == "" {
		return 0, nil
	}
	var ts uint64
	_, err = fmt.Sscanf(v, "%d", &ts)
	return ts, err
}

// UpdateLastSeen monotonically advances the "last seen" watermark
// (spec.md §4.2 invariant I3: it must never move backward).
func (s *Store) UpdateLastSeen(ts uint64) error {
	current, err := s.GetLastSeen()
	if err != nil {
		return err
	}
	if ts <= current {
		return nil
	}
	return s.setKV("last_seen", fmt.Sprintf("%d", ts))
}

func (s *Store) getKV(key string) (string, error) {
	var v string
	err := s.conn.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get kv %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) setKV(key, value string) error {
	_, err := s.conn.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set kv %s: %w", key, err)
	}
	return nil
}

func unixNow() int64 { return time.Now().Unix() }
