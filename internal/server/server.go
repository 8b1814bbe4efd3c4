// Package server provides the HTTP API for the game builder.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/georgeIshaq/gameBuilder/internal/auth"
	"github.com/georgeIshaq/gameBuilder/internal/config"
	"github.com/georgeIshaq/gameBuilder/internal/health"
	"github.com/georgeIshaq/gameBuilder/internal/persistence"
	"github.com/georgeIshaq/gameBuilder/internal/sandbox"
	"github.com/georgeIshaq/gameBuilder/internal/streams"
)

// SandboxService is the slice of the sandbox client the handlers use.
type SandboxService interface {
	RequestDevServer(ctx context.Context, repoID string) (*sandbox.DevServer, error)
	CreateGitRepository(ctx context.Context, name, sourceURL string) (string, error)
	GrantGitPermission(ctx context.Context, identity, repoID, permission string) error
	CreateGitAccessToken(ctx context.Context, identity string) (*sandbox.GitAccessToken, error)
}

// Server is the HTTP server for the game builder API.
type Server struct {
	config         *config.Config
	httpServer     *http.Server
	jwtValidator   *auth.JWTValidator
	sessionManager *auth.SessionManager
	store          *persistence.Store
	controller     *streams.Controller
	sandbox        SandboxService
	health         *health.Collector
}

// New creates a server over the given subsystems. The JWT validator is nil
// when no JWKS endpoint is configured; identity then comes from the
// X-User-Id header, for local development only.
func New(cfg *config.Config, store *persistence.Store, controller *streams.Controller, sb SandboxService) (*Server, error) {
	var jwtValidator *auth.JWTValidator
	if cfg.JWKSEndpoint != "" {
		v, err := auth.NewJWTValidator(cfg.JWKSEndpoint, cfg.JWTAudience, cfg.JWTIssuer)
		if err != nil {
			return nil, fmt.Errorf("failed to create JWT validator: %w", err)
		}
		jwtValidator = v
	} else {
		slog.Warn("No JWKS endpoint configured; running without token validation")
	}

	sessionManager := auth.NewSessionManager(cfg.CookieName, cfg.CookieSecure, cfg.SessionTTL)

	s := &Server{
		config:         cfg,
		jwtValidator:   jwtValidator,
		sessionManager: sessionManager,
		store:          store,
		controller:     controller,
		sandbox:        sb,
		health:         health.NewCollector(0),
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	// WriteTimeout stays 0: chat responses and WebSocket attachments are
	// long-lived, and a write deadline on the underlying conn would kill
	// them mid-stream.
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     corsMiddleware(mux, cfg.AllowedOrigins),
		ReadTimeout: cfg.HTTPReadTimeout,
		IdleTimeout: cfg.HTTPIdleTimeout,
	}

	return s, nil
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	slog.Info("Starting game builder API", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.sessionManager.Close()
	if s.store != nil {
		defer func() {
			if err := s.store.Close(); err != nil {
				slog.Warn("Failed to close persistence store", "error", err)
			}
		}()
	}
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	// Authentication
	mux.HandleFunc("POST /auth/token", s.handleTokenAuth)
	mux.HandleFunc("GET /auth/session", s.handleSessionCheck)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)

	// Chat and stream lifecycle
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/chat/stop", s.handleStopChat)
	mux.HandleFunc("POST /api/chat/clear", s.handleClearChat)
	mux.HandleFunc("GET /api/chat/status", s.handleChatStatus)

	// Apps
	mux.HandleFunc("POST /api/apps", s.handleCreateApp)
	mux.HandleFunc("GET /api/apps", s.handleListApps)
	mux.HandleFunc("GET /api/apps/{appId}", s.handleGetApp)
	mux.HandleFunc("DELETE /api/apps/{appId}", s.handleDeleteApp)
	mux.HandleFunc("GET /api/apps/{appId}/messages", s.handleListMessages)

	// Deployments and assets
	mux.HandleFunc("POST /api/apps/{appId}/deployments", s.handleRecordDeployment)
	mux.HandleFunc("GET /api/apps/{appId}/deployments", s.handleListDeployments)
	mux.HandleFunc("POST /api/apps/{appId}/assets", s.handleSaveAsset)
	mux.HandleFunc("GET /api/apps/{appId}/assets", s.handleListAssets)

	// Live stream attachment
	mux.HandleFunc("GET /api/apps/{appId}/stream/ws", s.handleStreamWS)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.health.Collect()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     snap.Status,
		"uptime":     snap.UptimeSeconds,
		"goroutines": snap.Goroutines,
		"heapAlloc":  snap.HeapAllocBytes,
		"goVersion":  snap.GoVersion,
		"sessions":   s.sessionManager.ActiveSessions(),
	})
}

// corsMiddleware adds CORS headers to responses.
func corsMiddleware(next http.Handler, allowedOrigins []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := false

		for _, o := range allowedOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
			if strings.Contains(o, "*.") && matchWildcardOrigin(origin, o) {
				allowed = true
				break
			}
		}

		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-App-Id, X-User-Id")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// matchWildcardOrigin matches origins against patterns like
// "https://*.example.com".
func matchWildcardOrigin(origin, pattern string) bool {
	wildcardIdx := strings.Index(pattern, "*.")
	if wildcardIdx < 0 {
		return false
	}
	prefix := pattern[:wildcardIdx]
	suffix := pattern[wildcardIdx+1:]
	return strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix)
}

// createUpgrader creates a WebSocket upgrader with origin validation.
// WebSocket upgrades bypass CORS, so origins must be validated explicitly.
func (s *Server) createUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return s.isOriginAllowed(origin)
		},
	}
}

func (s *Server) isOriginAllowed(origin string) bool {
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
		if strings.Contains(allowed, "*") && matchWildcardOrigin(origin, allowed) {
			return true
		}
	}
	return false
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
