package store

import (
	"database/sql"
	"fmt"
)

// SignedPreKey is the node's current rotating signed prekey.
type SignedPreKey struct {
	ID        int64
	PrivKey   []byte
	PubKey    []byte
	Signature []byte
	CreatedAt int64
	Published bool
}

// PostQuantumPreKey is the node's current rotating post-quantum prekey
// slot. See internal/signal's kdfInfoPQPlaceholder for what it actually
// contains in this implementation.
type PostQuantumPreKey struct {
	ID        int64
	PrivKey   []byte
	PubKey    []byte
	Signature []byte
	CreatedAt int64
	Published bool
}

// OneTimePreKey is one entry in the one-time prekey inventory.
type OneTimePreKey struct {
	ID        int64
	PrivKey   []byte
	PubKey    []byte
	Consumed  bool
	Published bool
	CreatedAt int64
}

// InsertSignedPreKey stores a freshly-generated signed prekey and
// returns its assigned id.
func (s *Store) InsertSignedPreKey(priv, pub, sig []byte) (int64, error) {
	res, err := s.conn.Exec(
		`INSERT INTO signed_prekey (private_key, public_key, signature, created_at) VALUES (?, ?, ?, ?)`,
		priv, pub, sig, unixNow(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert signed prekey: %w", err)
	}
	return res.LastInsertId()
}

// CurrentSignedPreKey returns the most recently created signed prekey.
func (s *Store) CurrentSignedPreKey() (*SignedPreKey, error) {
	row := s.conn.QueryRow(`SELECT id, private_key, public_key, signature, created_at, published FROM signed_prekey ORDER BY id DESC LIMIT 1`)
	var spk SignedPreKey
	var published int
	err := row.Scan(&spk.ID, &spk.PrivKey, &spk.PubKey, &spk.Signature, &spk.CreatedAt, &published)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current signed prekey: %w", err)
	}
	spk.Published = published == 1
	return &spk, nil
}

// MarkSignedPreKeyPublished records that a signed prekey id has been
// accepted by the relay.
func (s *Store) MarkSignedPreKeyPublished(id int64) error {
	_, err := s.conn.Exec(`UPDATE signed_prekey SET published = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark signed prekey published: %w", err)
	}
	return nil
}

// InsertPostQuantumPreKey stores the placeholder post-quantum prekey.
func (s *Store) InsertPostQuantumPreKey(priv, pub, sig []byte) (int64, error) {
	res, err := s.conn.Exec(
		`INSERT INTO pq_prekey (private_key, public_key, signature, created_at) VALUES (?, ?, ?, ?)`,
		priv, pub, sig, unixNow(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert pq prekey: %w", err)
	}
	return res.LastInsertId()
}

// CurrentPostQuantumPreKey returns the most recently created PQ prekey.
func (s *Store) CurrentPostQuantumPreKey() (*PostQuantumPreKey, error) {
	row := s.conn.QueryRow(`SELECT id, private_key, public_key, signature, created_at, published FROM pq_prekey ORDER BY id DESC LIMIT 1`)
	var pqk PostQuantumPreKey
	var published int
	err := row.Scan(&pqk.ID, &pqk.PrivKey, &pqk.PubKey, &pqk.Signature, &pqk.CreatedAt, &published)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current pq prekey: %w", err)
	}
	pqk.Published = published == 1
	return &pqk, nil
}

// MarkPostQuantumPreKeyPublished records acceptance by the relay.
func (s *Store) MarkPostQuantumPreKeyPublished(id int64) error {
	_, err := s.conn.Exec(`UPDATE pq_prekey SET published = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark pq prekey published: %w", err)
	}
	return nil
}

// InsertOneTimePreKeys bulk-inserts a batch of freshly generated
// one-time prekeys (spec.md §4.2 perform_key_maintenance replenishment).
func (s *Store) InsertOneTimePreKeys(keys [][2][]byte) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO one_time_prekey (private_key, public_key, created_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := unixNow()
	for _, kp := range keys {
		if _, err := stmt.Exec(kp[0], kp[1], now); err != nil {
			return fmt.Errorf("insert one-time prekey: %w", err)
		}
	}
	return tx.Commit()
}

// UnconsumedOneTimePreKeyCount reports the inventory size, used against
// the low-water-mark invariant (spec.md §3 "Prekey Inventory").
func (s *Store) UnconsumedOneTimePreKeyCount() (int, error) {
	var n int
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM one_time_prekey WHERE consumed = 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count one-time prekeys: %w", err)
	}
	return n, nil
}

// ReserveOneTimePreKeyForPublish picks one unpublished, unconsumed
// one-time prekey to embed in the next bundle announcement.
func (s *Store) ReserveOneTimePreKeyForPublish() (*OneTimePreKey, error) {
	row := s.conn.QueryRow(`SELECT id, private_key, public_key, created_at FROM one_time_prekey WHERE consumed = 0 AND published = 0 ORDER BY id ASC LIMIT 1`)
	var k OneTimePreKey
	err := row.Scan(&k.ID, &k.PrivKey, &k.PubKey, &k.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reserve one-time prekey: %w", err)
	}
	return &k, nil
}

// MarkOneTimePreKeyPublished records that id was embedded in a bundle
// accepted by the relay.
func (s *Store) MarkOneTimePreKeyPublished(id int64) error {
	_, err := s.conn.Exec(`UPDATE one_time_prekey SET published = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark one-time prekey published: %w", err)
	}
	return nil
}

// ConsumeOneTimePreKey marks a one-time prekey consumed by its public
// key, returning its private key. A prekey id, once consumed, is never
// reissued (spec.md §3 invariant (i)); calling this twice for the same
// key returns (nil, nil) the second time (spec.md §4.2 invariant I2).
func (s *Store) ConsumeOneTimePreKey(pubKey []byte) (*OneTimePreKey, error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT id, private_key, public_key, created_at FROM one_time_prekey WHERE public_key = ? AND consumed = 0`, pubKey)
	var k OneTimePreKey
	err = row.Scan(&k.ID, &k.PrivKey, &k.PubKey, &k.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup one-time prekey: %w", err)
	}

	if _, err := tx.Exec(`UPDATE one_time_prekey SET consumed = 1 WHERE id = ?`, k.ID); err != nil {
		return nil, fmt.Errorf("consume one-time prekey: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &k, nil
}

// ConsumeOneTimePreKeyByID marks a one-time prekey consumed by its id,
// returning its private key. Mirrors ConsumeOneTimePreKey but is used on
// the X3DH-responder path, where the wire envelope carries the id of the
// prekey it consumed rather than the key bytes themselves. Returns
// (nil, nil) if id is unknown or already consumed (spec.md §4.2
// invariant I2): re-delivery of the same initial message must not
// consume a second prekey.
func (s *Store) ConsumeOneTimePreKeyByID(id int64) (*OneTimePreKey, error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT id, private_key, public_key, created_at FROM one_time_prekey WHERE id = ? AND consumed = 0`, id)
	var k OneTimePreKey
	err = row.Scan(&k.ID, &k.PrivKey, &k.PubKey, &k.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup one-time prekey by id: %w", err)
	}

	if _, err := tx.Exec(`UPDATE one_time_prekey SET consumed = 1 WHERE id = ?`, k.ID); err != nil {
		return nil, fmt.Errorf("consume one-time prekey: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &k, nil
}

// IsLastOfID reports whether id was the final unconsumed one-time
// prekey at the moment it was consumed — the trigger for
// should_republish_bundle (spec.md §4.2 decrypt_message).
func (s *Store) IsLastOfID(id int64) (bool, error) {
	var n int
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM one_time_prekey WHERE consumed = 0 AND id != ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check last one-time prekey: %w", err)
	}
	return n == 0, nil
}
