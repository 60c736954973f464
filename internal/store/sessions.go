package store

import (
	"database/sql"
	"fmt"
)

// LoadSessionState returns the serialized ratchet state for rdx, or
// (nil, nil) if no session exists yet.
func (s *Store) LoadSessionState(rdx string) ([]byte, error) {
	var data []byte
	err := s.conn.QueryRow(`SELECT state FROM session WHERE rdx = ?`, rdx).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session state: %w", err)
	}
	return data, nil
}

// SaveSessionState creates or updates the ratchet state for rdx
// (spec.md §3 "Session": "mutated by each encrypt and each decrypt").
func (s *Store) SaveSessionState(rdx string, data []byte) error {
	now := unixNow()
	_, err := s.conn.Exec(
		`INSERT INTO session (rdx, state, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(rdx) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		rdx, data, now, now,
	)
	if err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	return nil
}

// DeleteSession removes a session (session reset, spec.md §3 "Session: mutated by ... session reset").
func (s *Store) DeleteSession(rdx string) error {
	_, err := s.conn.Exec(`DELETE FROM session WHERE rdx = ?`, rdx)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// SetPendingBootstrap records the local ephemeral public key (and, if
// any, the consumed one-time prekey id) an X3DH initiator must carry on
// its first outbound message so the remote can complete the responder
// side. Cleared by ClearPendingBootstrap once that first message ships.
func (s *Store) SetPendingBootstrap(rdx string, ephemeral []byte, oneTimePreKeyID int64) error {
	_, err := s.conn.Exec(
		`UPDATE session SET pending_ephemeral = ?, pending_one_time_id = ? WHERE rdx = ?`,
		ephemeral, oneTimePreKeyID, rdx,
	)
	if err != nil {
		return fmt.Errorf("set pending bootstrap: %w", err)
	}
	return nil
}

// GetPendingBootstrap returns the bootstrap data set by SetPendingBootstrap,
// or pending=false if the session carries none (steady-state session).
func (s *Store) GetPendingBootstrap(rdx string) (ephemeral []byte, oneTimePreKeyID int64, pending bool, err error) {
	row := s.conn.QueryRow(`SELECT pending_ephemeral, pending_one_time_id FROM session WHERE rdx = ?`, rdx)
	err = row.Scan(&ephemeral, &oneTimePreKeyID)
	if err == sql.ErrNoRows {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("get pending bootstrap: %w", err)
	}
	return ephemeral, oneTimePreKeyID, len(ephemeral) > 0, nil
}

// ClearPendingBootstrap drops the bootstrap data after it has been sent
// once.
func (s *Store) ClearPendingBootstrap(rdx string) error {
	_, err := s.conn.Exec(`UPDATE session SET pending_ephemeral = NULL, pending_one_time_id = 0 WHERE rdx = ?`, rdx)
	if err != nil {
		return fmt.Errorf("clear pending bootstrap: %w", err)
	}
	return nil
}
