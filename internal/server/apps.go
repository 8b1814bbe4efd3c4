package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/georgeIshaq/gameBuilder/internal/agents"
	"github.com/georgeIshaq/gameBuilder/internal/persistence"
	"github.com/georgeIshaq/gameBuilder/internal/sandbox"
)

// handleCreateApp provisions a new app: a git repository seeded from the
// template, credentials for the creating user, a dev server with the pattern
// library written in, and the app row plus its admin grant in one
// transaction. An initial message, when given, starts the first generation
// in the background; its stream is attachable over the WebSocket endpoint.
func (s *Server) handleCreateApp(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var body struct {
		Name           string `json:"name"`
		Description    string `json:"description"`
		InitialMessage string `json:"initialMessage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	ctx := r.Context()

	repoID, err := s.sandbox.CreateGitRepository(ctx, body.Name, s.config.TemplateRepoURL)
	if err != nil {
		slog.Error("create git repository failed", "error", err)
		writeError(w, sandboxStatus(err), "failed to create app repository")
		return
	}

	gitIdentity := "builder-" + userID
	if err := s.sandbox.GrantGitPermission(ctx, gitIdentity, repoID, "write"); err != nil {
		slog.Error("grant git permission failed", "repo", repoID, "error", err)
		writeError(w, sandboxStatus(err), "failed to grant repository access")
		return
	}

	token, err := s.sandbox.CreateGitAccessToken(ctx, gitIdentity)
	if err != nil {
		slog.Error("create git access token failed", "repo", repoID, "error", err)
		writeError(w, sandboxStatus(err), "failed to create repository credentials")
		return
	}

	ds, err := s.sandbox.RequestDevServer(ctx, repoID)
	if err != nil {
		slog.Error("dev server request failed", "repo", repoID, "error", err)
		writeError(w, sandboxStatus(err), "failed to start dev server")
		return
	}

	if err := sandbox.SeedPatterns(ctx, ds.FS); err != nil {
		// The app is still usable without the pattern library; the agent
		// just starts from a blank template.
		slog.Warn("seeding pattern library failed", "repo", repoID, "error", err)
	}

	app := persistence.App{
		ID:          uuid.NewString(),
		Name:        body.Name,
		Description: strings.TrimSpace(body.Description),
		GitRepo:     repoID,
	}
	grant := persistence.AppUser{
		UserID:           userID,
		AppID:            app.ID,
		Permissions:      "admin",
		GitIdentity:      gitIdentity,
		GitAccessToken:   token.Token,
		GitAccessTokenID: token.ID,
	}
	if err := s.store.CreateApp(app, grant); err != nil {
		slog.Error("create app failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create app")
		return
	}

	if err := s.store.CreateThread(app.ID, app.ID); err != nil {
		slog.Error("create thread failed", "app_id", app.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create conversation thread")
		return
	}

	initialStreamStarted := false
	if msg := strings.TrimSpace(body.InitialMessage); msg != "" {
		agent := agents.ForUserInput(msg)
		if _, err := s.controller.SendMessage(app.ID, agent, ds.FS, ds.Endpoint, msg); err != nil {
			slog.Warn("initial generation failed to start", "app_id", app.ID, "error", err)
		} else {
			initialStreamStarted = true
		}
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"app":           app,
		"devServer":     ds.Endpoint,
		"streamStarted": initialStreamStarted,
	})
}

// sandboxStatus maps sandbox errors to a response status: connectivity
// failures surface as 502, everything else as 500.
func sandboxStatus(err error) int {
	if errors.Is(err, sandbox.ErrUnavailable) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// handleListApps lists the caller's apps, newest first.
func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	apps, err := s.store.ListAppsForUser(userID)
	if err != nil {
		slog.Error("list apps failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list apps")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"apps": apps})
}

// handleGetApp returns one app the caller can access.
func (s *Server) handleGetApp(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	appID := r.PathValue("appId")

	app, ok := s.requireApp(w, userID, appID)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"app": app})
}

// handleDeleteApp deletes an app and everything hanging off it. Any active
// stream is cleared first so its task disowns itself.
func (s *Server) handleDeleteApp(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	appID := r.PathValue("appId")

	if _, ok := s.requireApp(w, userID, appID); !ok {
		return
	}

	if err := s.controller.ClearStreamState(appID); err != nil {
		slog.Error("clear stream state failed", "app_id", appID, "error", err)
	}

	if err := s.store.DeleteApp(appID); err != nil {
		slog.Error("delete app failed", "app_id", appID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete app")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// handleListMessages returns the app's conversation history.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	appID := r.PathValue("appId")

	if _, ok := s.requireApp(w, userID, appID); !ok {
		return
	}

	messages, err := s.store.ListMessages(appID)
	if err != nil {
		slog.Error("list messages failed", "app_id", appID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}
