package store

import "fmt"

// Direction of a stored message (spec.md §3 "Stored Message").
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Message mirrors spec.md §3 "Stored Message".
type Message struct {
	ID         string
	ContactRDX string
	Direction  Direction
	Content    string
	CreatedAt  int64
	Read       bool
}

// Conversation summarizes one contact's message history for listing.
type Conversation struct {
	ContactRDX  string
	LastMessage string
	LastAt      int64
	UnreadCount int
}

// SaveMessage records a message produced by a successful encrypt
// (outgoing) or decrypt (incoming); see spec.md §3 "Stored Message".
func (s *Store) SaveMessage(m Message) error {
	_, err := s.conn.Exec(
		`INSERT INTO message (id, contact_rdx, direction, content, created_at, read) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ContactRDX, string(m.Direction), m.Content, m.CreatedAt, boolToInt(m.Read),
	)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// GetConversations lists every contact with at least one stored message,
// most-recently-active first.
func (s *Store) GetConversations() ([]Conversation, error) {
	rows, err := s.conn.Query(`
		SELECT contact_rdx,
		       (SELECT content FROM message m2 WHERE m2.contact_rdx = m1.contact_rdx ORDER BY created_at DESC LIMIT 1),
		       MAX(created_at),
		       SUM(CASE WHEN direction = 'incoming' AND read = 0 THEN 1 ELSE 0 END)
		FROM message m1
		GROUP BY contact_rdx
		ORDER BY MAX(created_at) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("get conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ContactRDX, &c.LastMessage, &c.LastAt, &c.UnreadCount); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetConversationMessages returns up to limit messages for rdx, oldest first.
func (s *Store) GetConversationMessages(rdx string, limit, offset int) ([]Message, error) {
	rows, err := s.conn.Query(
		`SELECT id, contact_rdx, direction, content, created_at, read FROM message
		 WHERE contact_rdx = ? ORDER BY created_at ASC LIMIT ? OFFSET ?`,
		rdx, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("get conversation messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var direction string
		var read int
		if err := rows.Scan(&m.ID, &m.ContactRDX, &direction, &m.Content, &m.CreatedAt, &read); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Direction = Direction(direction)
		m.Read = read == 1
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkConversationReadUpTo marks every incoming message up to and
// including ts as read. The read flag transitions only forward (spec.md
// §3 "Stored Message"): already-read messages are left unchanged.
func (s *Store) MarkConversationReadUpTo(rdx string, ts int64) error {
	_, err := s.conn.Exec(
		`UPDATE message SET read = 1 WHERE contact_rdx = ? AND direction = 'incoming' AND created_at <= ? AND read = 0`,
		rdx, ts,
	)
	if err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}
	return nil
}

// DeleteMessage removes a single message by id.
func (s *Store) DeleteMessage(id string) error {
	_, err := s.conn.Exec(`DELETE FROM message WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// DeleteConversation removes every message for a contact.
func (s *Store) DeleteConversation(rdx string) error {
	_, err := s.conn.Exec(`DELETE FROM message WHERE contact_rdx = ?`, rdx)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

// GetUnreadCount returns the total number of unread incoming messages
// across all conversations.
func (s *Store) GetUnreadCount() (int, error) {
	var n int
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM message WHERE direction = 'incoming' AND read = 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("get unread count: %w", err)
	}
	return n, nil
}
