package persistence

import (
	"database/sql"
	"fmt"
)

// Stream session statuses. A row's existence marks a session as active; the
// status records whether a stop has been requested.
const (
	StreamStatusRunning  = "running"
	StreamStatusStopping = "stopping"
)

// StreamSession is the durable record of "a generation is in progress for
// this app". At most one row exists per app id; the primary key enforces it
// across every service instance sharing the database.
type StreamSession struct {
	AppID         string `json:"appId"`
	Owner         string `json:"owner"`
	Status        string `json:"status"`
	StopRequested bool   `json:"stopRequested"`
	LastSeq       int64  `json:"lastSeq"`
	StartedAt     string `json:"startedAt"`
	UpdatedAt     string `json:"updatedAt"`
}

// ClaimStreamSession atomically registers a running session for the app,
// owned by the given owner token. Returns false if another session already
// holds the slot; the conditional insert is what serializes racing starters.
func (s *Store) ClaimStreamSession(appID, owner string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if appID == "" || owner == "" {
		return false, fmt.Errorf("app id and owner are required")
	}

	now := nowRFC3339()
	res, err := s.db.Exec(
		`INSERT INTO stream_sessions (app_id, owner, status, stop_requested, last_seq, started_at, updated_at)
		VALUES (?, ?, ?, 0, 0, ?, ?)
		ON CONFLICT(app_id) DO NOTHING`,
		appID, owner, StreamStatusRunning, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("claim stream session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim stream session rows: %w", err)
	}
	return n == 1, nil
}

// GetStreamSession returns the active session for an app, or nil, nil when
// no stream is running.
func (s *Store) GetStreamSession(appID string) (*StreamSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sess StreamSession
	var stopRequested int
	err := s.db.QueryRow(
		`SELECT app_id, owner, status, stop_requested, last_seq, started_at, updated_at
		FROM stream_sessions WHERE app_id = ?`,
		appID,
	).Scan(&sess.AppID, &sess.Owner, &sess.Status, &stopRequested, &sess.LastSeq, &sess.StartedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stream session: %w", err)
	}
	sess.StopRequested = stopRequested != 0
	return &sess, nil
}

// RequestStreamStop marks the app's session as stopping. The owning task
// observes the flag at its next checkpoint. Idempotent: no session, or a
// session already stopping, is a no-op.
func (s *Store) RequestStreamStop(appID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"UPDATE stream_sessions SET stop_requested = 1, status = ?, updated_at = ? WHERE app_id = ?",
		StreamStatusStopping, nowRFC3339(), appID,
	)
	if err != nil {
		return fmt.Errorf("request stream stop: %w", err)
	}
	return nil
}

// StreamStopRequested reports whether the owner's session has been asked to
// stop. A missing row or a row held by a different owner also reads as true:
// the session was cleared or superseded, and the task must abandon its writes.
func (s *Store) StreamStopRequested(appID, owner string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rowOwner string
	var stopRequested int
	err := s.db.QueryRow(
		"SELECT owner, stop_requested FROM stream_sessions WHERE app_id = ?",
		appID,
	).Scan(&rowOwner, &stopRequested)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("check stream stop: %w", err)
	}
	if rowOwner != owner {
		return true, nil
	}
	return stopRequested != 0, nil
}

// TouchStreamSession records the latest emitted event sequence for the
// owner's session. Returns false when the owner no longer holds the slot,
// so a disowned task can stop persisting.
func (s *Store) TouchStreamSession(appID, owner string, lastSeq int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		"UPDATE stream_sessions SET last_seq = ?, updated_at = ? WHERE app_id = ? AND owner = ?",
		lastSeq, nowRFC3339(), appID, owner,
	)
	if err != nil {
		return false, fmt.Errorf("touch stream session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("touch stream session rows: %w", err)
	}
	return n == 1, nil
}

// ReleaseStreamSession removes the session if it is still held by owner.
// Called by the generation task's cleanup path; a no-op when the session was
// already force-cleared or reclaimed.
func (s *Store) ReleaseStreamSession(appID, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"DELETE FROM stream_sessions WHERE app_id = ? AND owner = ?",
		appID, owner,
	)
	if err != nil {
		return fmt.Errorf("release stream session: %w", err)
	}
	return nil
}

// ClearStreamSession forcibly removes the session regardless of owner. The
// escape hatch when a stuck task never acknowledges its stop request.
func (s *Store) ClearStreamSession(appID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM stream_sessions WHERE app_id = ?", appID)
	if err != nil {
		return fmt.Errorf("clear stream session: %w", err)
	}
	return nil
}
