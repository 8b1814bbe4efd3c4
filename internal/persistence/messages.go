package persistence

import (
	"database/sql"
	"fmt"
)

// Message is one entry in an app's conversation thread. Content holds the
// message body as the client sent it (JSON for structured parts, plain text
// for assistant output).
type Message struct {
	ID        string `json:"id"`
	AppID     string `json:"appId"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

// CreateThread registers the conversation thread for an app. Idempotent:
// creating an existing thread is a no-op.
func (s *Store) CreateThread(appID, resourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if appID == "" {
		return fmt.Errorf("app id is required")
	}
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO threads (app_id, resource_id, created_at) VALUES (?, ?, ?)",
		appID, resourceID, nowRFC3339(),
	)
	if err != nil {
		return fmt.Errorf("create thread: %w", err)
	}
	return nil
}

// ThreadExists reports whether a conversation thread exists for the app.
func (s *Store) ThreadExists(appID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM threads WHERE app_id = ?", appID).Scan(&n); err != nil {
		return false, fmt.Errorf("check thread: %w", err)
	}
	return n > 0, nil
}

// AppendMessage adds a message to the app's thread. The thread outlives any
// single stream session, so history survives stream supersession.
func (s *Store) AppendMessage(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		return fmt.Errorf("message id is required")
	}
	if msg.AppID == "" {
		return fmt.Errorf("app id is required")
	}
	if msg.CreatedAt == "" {
		msg.CreatedAt = nowRFC3339()
	}

	_, err := s.db.Exec(
		"INSERT INTO messages (id, app_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)",
		msg.ID, msg.AppID, msg.Role, msg.Content, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// ListMessages returns the app's conversation history in insertion order.
// Ordering is by rowid, not created_at: timestamps can collide within a
// turn, and the model is replayed this history, so order must be exact.
func (s *Store) ListMessages(appID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT id, app_id, role, content, created_at FROM messages WHERE app_id = ? ORDER BY rowid ASC",
		appID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.AppID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// LatestMessage returns the most recent message for an app, or nil, nil when
// the thread is empty.
func (s *Store) LatestMessage(appID string) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m Message
	err := s.db.QueryRow(
		"SELECT id, app_id, role, content, created_at FROM messages WHERE app_id = ? ORDER BY rowid DESC LIMIT 1",
		appID,
	).Scan(&m.ID, &m.AppID, &m.Role, &m.Content, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest message: %w", err)
	}
	return &m, nil
}
