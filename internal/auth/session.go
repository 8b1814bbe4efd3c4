package auth

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"sync"
	"time"
)

// Session is an authenticated browser session. Expiry slides: every lookup
// pushes ExpiresAt out by the manager's TTL, so only idle sessions lapse.
type Session struct {
	ID        string
	UserID    string
	Name      string
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionManager keeps cookie-backed sessions in memory so browser clients
// do not resend the JWT on every request. Sessions do not survive a restart;
// clients fall back to their token and re-exchange it.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cookieName string
	secure     bool
	ttl        time.Duration
	stopC      chan struct{}
}

// NewSessionManager creates a session manager and starts its expiry sweep.
func NewSessionManager(cookieName string, secure bool, ttl time.Duration) *SessionManager {
	sm := &SessionManager{
		sessions:   make(map[string]*Session),
		cookieName: cookieName,
		secure:     secure,
		ttl:        ttl,
		stopC:      make(chan struct{}),
	}
	go sm.sweep()
	return sm
}

// Close stops the expiry sweep.
func (sm *SessionManager) Close() {
	close(sm.stopC)
}

// CreateSession mints a session for validated claims.
func (sm *SessionManager) CreateSession(claims *Claims) (*Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &Session{
		ID:        id,
		UserID:    claims.Subject,
		Name:      claims.Name,
		Email:     claims.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(sm.ttl),
	}

	sm.mu.Lock()
	sm.sessions[id] = session
	sm.mu.Unlock()

	return session, nil
}

// GetSession returns the session for the id, extending its expiry, or nil
// when the id is unknown or the session has lapsed.
func (sm *SessionManager) GetSession(id string) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, ok := sm.sessions[id]
	if !ok {
		return nil
	}
	now := time.Now()
	if now.After(session.ExpiresAt) {
		delete(sm.sessions, id)
		return nil
	}
	session.ExpiresAt = now.Add(sm.ttl)
	return session
}

// GetSessionFromRequest resolves the session from the request's cookie.
func (sm *SessionManager) GetSessionFromRequest(r *http.Request) *Session {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		return nil
	}
	return sm.GetSession(cookie.Value)
}

// DeleteSession removes a session.
func (sm *SessionManager) DeleteSession(id string) {
	sm.mu.Lock()
	delete(sm.sessions, id)
	sm.mu.Unlock()
}

// SetCookie sets the session cookie on the response.
func (sm *SessionManager) SetCookie(w http.ResponseWriter, session *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie clears the session cookie.
func (sm *SessionManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ActiveSessions returns the number of live sessions.
func (sm *SessionManager) ActiveSessions() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// sweep drops lapsed sessions every few minutes until Close.
func (sm *SessionManager) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-sm.stopC:
			return
		case now := <-ticker.C:
			sm.mu.Lock()
			for id, session := range sm.sessions {
				if now.After(session.ExpiresAt) {
					delete(sm.sessions, id)
				}
			}
			sm.mu.Unlock()
		}
	}
}

func newSessionID() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
