package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// requireUser resolves the caller's user id from the session cookie or a
// Bearer JWT. Without a configured validator, the X-User-Id header stands
// in; that mode is for local development only. Writes the error response
// and returns ok=false when identity cannot be established.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	if session := s.sessionManager.GetSessionFromRequest(r); session != nil {
		return session.UserID, true
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(authHeader, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if s.jwtValidator == nil {
			writeError(w, http.StatusUnauthorized, "token validation is not configured")
			return "", false
		}
		claims, err := s.jwtValidator.Validate(token)
		if err != nil {
			slog.Debug("token validation failed", "error", err)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return "", false
		}
		return claims.Subject, true
	}

	if s.jwtValidator == nil {
		if userID := strings.TrimSpace(r.Header.Get("X-User-Id")); userID != "" {
			return userID, true
		}
	}

	writeError(w, http.StatusUnauthorized, "not authenticated")
	return "", false
}

// handleTokenAuth exchanges a valid JWT for a session cookie.
func (s *Server) handleTokenAuth(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	if s.jwtValidator == nil {
		writeError(w, http.StatusServiceUnavailable, "token validation is not configured")
		return
	}

	claims, err := s.jwtValidator.Validate(body.Token)
	if err != nil {
		slog.Info("token validation failed", "error", err)
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	session, err := s.sessionManager.CreateSession(claims)
	if err != nil {
		slog.Error("failed to create session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	s.sessionManager.SetCookie(w, session)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"sessionId": session.ID,
		"userId":    session.UserID,
		"expiresAt": session.ExpiresAt.Format(http.TimeFormat),
	})
}

// handleSessionCheck reports whether the caller has a live session.
func (s *Server) handleSessionCheck(w http.ResponseWriter, r *http.Request) {
	session := s.sessionManager.GetSessionFromRequest(r)
	if session == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"authenticated": false,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": true,
		"userId":        session.UserID,
		"name":          session.Name,
		"email":         session.Email,
		"sessionId":     session.ID,
		"expiresAt":     session.ExpiresAt.Format(http.TimeFormat),
	})
}

// handleLogout deletes the caller's session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if session := s.sessionManager.GetSessionFromRequest(r); session != nil {
		s.sessionManager.DeleteSession(session.ID)
	}
	s.sessionManager.ClearCookie(w)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}
