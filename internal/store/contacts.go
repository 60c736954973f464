package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a lookup by rdx/pubkey/alias matches no contact.
var ErrNotFound = errors.New("not found")

// Contact mirrors spec.md §3 "Contact".
type Contact struct {
	RDX         string
	BusPubkey   string
	IdentityKey []byte
	Alias       string
	HasSession  bool
	CreatedAt   int64
}

// UpsertContact inserts a contact or, if one already exists for RDX,
// leaves its alias/session flag untouched (those are mutated separately).
func (s *Store) UpsertContact(c Contact) error {
	_, err := s.conn.Exec(
		`INSERT INTO contact (rdx, bus_pubkey, identity_key, alias, has_session, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(rdx) DO NOTHING`,
		c.RDX, c.BusPubkey, c.IdentityKey, c.Alias, boolToInt(c.HasSession), c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	return nil
}

// ListContacts returns every known contact (spec.md §4.2 list_contacts;
// callers filter any "self" entry themselves).
func (s *Store) ListContacts() ([]Contact, error) {
	rows, err := s.conn.Query(`SELECT rdx, bus_pubkey, identity_key, alias, has_session, created_at FROM contact ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		var hasSession int
		if err := rows.Scan(&c.RDX, &c.BusPubkey, &c.IdentityKey, &c.Alias, &hasSession, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		c.HasSession = hasSession == 1
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// LookupContact finds a contact by RDX fingerprint, bus pubkey, or
// alias (spec.md §4.2 lookup_contact).
func (s *Store) LookupContact(key string) (*Contact, error) {
	row := s.conn.QueryRow(
		`SELECT rdx, bus_pubkey, identity_key, alias, has_session, created_at FROM contact
		 WHERE rdx = ? OR bus_pubkey = ? OR alias = ? LIMIT 1`,
		key, key, key,
	)
	var c Contact
	var hasSession int
	err := row.Scan(&c.RDX, &c.BusPubkey, &c.IdentityKey, &c.Alias, &hasSession, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup contact: %w", err)
	}
	c.HasSession = hasSession == 1
	return &c, nil
}

// AssignAlias is idempotent and last-writer-wins; an empty alias clears
// it (spec.md §4.2 assign_contact_alias).
func (s *Store) AssignAlias(rdx, alias string) error {
	res, err := s.conn.Exec(`UPDATE contact SET alias = ? WHERE rdx = ?`, alias, rdx)
	if err != nil {
		return fmt.Errorf("assign alias: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetHasSession records that a session now exists for rdx.
func (s *Store) SetHasSession(rdx string, has bool) error {
	_, err := s.conn.Exec(`UPDATE contact SET has_session = ? WHERE rdx = ?`, boolToInt(has), rdx)
	if err != nil {
		return fmt.Errorf("set has_session: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
