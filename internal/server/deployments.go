package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/georgeIshaq/gameBuilder/internal/persistence"
)

// requireApp loads the app and checks the caller's access, writing the
// error response when either fails.
func (s *Server) requireApp(w http.ResponseWriter, userID, appID string) (*persistence.App, bool) {
	app, err := s.store.GetApp(appID)
	if err != nil {
		slog.Error("app lookup failed", "app_id", appID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to look up app")
		return nil, false
	}
	if app == nil {
		writeError(w, http.StatusNotFound, "App not found")
		return nil, false
	}

	canAccess, err := s.store.UserCanAccess(userID, appID)
	if err != nil {
		slog.Error("access check failed", "app_id", appID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check access")
		return nil, false
	}
	if !canAccess {
		writeError(w, http.StatusForbidden, "no access to this app")
		return nil, false
	}
	return app, true
}

// handleRecordDeployment records a published build of the app.
func (s *Server) handleRecordDeployment(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	appID := r.PathValue("appId")
	if _, ok := s.requireApp(w, userID, appID); !ok {
		return
	}

	var body struct {
		CommitSHA string `json:"commitSha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.CommitSHA) == "" {
		writeError(w, http.StatusBadRequest, "commitSha is required")
		return
	}

	dep := persistence.Deployment{
		AppID:        appID,
		DeploymentID: uuid.NewString(),
		CommitSHA:    body.CommitSHA,
	}
	if err := s.store.RecordDeployment(dep); err != nil {
		slog.Error("record deployment failed", "app_id", appID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record deployment")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"deployment": dep})
}

// handleListDeployments lists the app's deployments, newest first.
func (s *Server) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	appID := r.PathValue("appId")
	if _, ok := s.requireApp(w, userID, appID); !ok {
		return
	}

	deps, err := s.store.ListDeployments(appID)
	if err != nil {
		slog.Error("list deployments failed", "app_id", appID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list deployments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deployments": deps})
}

// handleSaveAsset registers an uploaded asset's metadata for the app.
func (s *Server) handleSaveAsset(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	appID := r.PathValue("appId")
	if _, ok := s.requireApp(w, userID, appID); !ok {
		return
	}

	var body struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		FilePath string `json:"filePath"`
		MimeType string `json:"mimeType"`
		FileSize int64  `json:"fileSize"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Name) == "" || strings.TrimSpace(body.FilePath) == "" {
		writeError(w, http.StatusBadRequest, "name and filePath are required")
		return
	}

	asset := persistence.Asset{
		ID:       uuid.NewString(),
		AppID:    appID,
		Name:     body.Name,
		Type:     body.Type,
		FilePath: body.FilePath,
		MimeType: body.MimeType,
		FileSize: body.FileSize,
	}
	if err := s.store.SaveAsset(asset); err != nil {
		slog.Error("save asset failed", "app_id", appID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save asset")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"asset": asset})
}

// handleListAssets lists the app's assets.
func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	appID := r.PathValue("appId")
	if _, ok := s.requireApp(w, userID, appID); !ok {
		return
	}

	assets, err := s.store.ListAssets(appID)
	if err != nil {
		slog.Error("list assets failed", "app_id", appID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list assets")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"assets": assets})
}
