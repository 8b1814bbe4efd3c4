package persistence

import (
	"database/sql"
	"fmt"
)

// App represents one user-owned generated-game project. The git repository is
// the durable source of truth for generated code; exactly one per app.
type App struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	GitRepo       string `json:"gitRepo"`
	PreviewDomain string `json:"previewDomain,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

// AppUser is an access grant tying a user to an app, together with the git
// credentials minted for that user against the app repository.
type AppUser struct {
	UserID           string `json:"userId"`
	AppID            string `json:"appId"`
	Permissions      string `json:"permissions"`
	GitIdentity      string `json:"gitIdentity"`
	GitAccessToken   string `json:"-"`
	GitAccessTokenID string `json:"gitAccessTokenId"`
	CreatedAt        string `json:"createdAt"`
}

// CreateApp inserts the app and its initial access grant in one transaction,
// so an app never exists without an admin grant.
func (s *Store) CreateApp(app App, grant AppUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if app.ID == "" {
		return fmt.Errorf("app id is required")
	}
	if app.CreatedAt == "" {
		app.CreatedAt = nowRFC3339()
	}
	if grant.CreatedAt == "" {
		grant.CreatedAt = app.CreatedAt
	}
	if grant.Permissions == "" {
		grant.Permissions = "admin"
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var previewDomain any
	if app.PreviewDomain != "" {
		previewDomain = app.PreviewDomain
	}

	if _, err := tx.Exec(
		`INSERT INTO apps (id, name, description, git_repo, preview_domain, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		app.ID, app.Name, app.Description, app.GitRepo, previewDomain, app.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert app: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO app_users (user_id, app_id, permissions, git_identity, git_access_token, git_access_token_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		grant.UserID, app.ID, grant.Permissions, grant.GitIdentity, grant.GitAccessToken, grant.GitAccessTokenID, grant.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert app grant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetApp retrieves an app by id. Returns nil, nil if the app does not exist.
func (s *Store) GetApp(appID string) (*App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var a App
	var previewDomain sql.NullString
	err := s.db.QueryRow(
		`SELECT id, name, description, git_repo, preview_domain, created_at FROM apps WHERE id = ?`,
		appID,
	).Scan(&a.ID, &a.Name, &a.Description, &a.GitRepo, &previewDomain, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get app: %w", err)
	}
	a.PreviewDomain = previewDomain.String
	return &a, nil
}

// ListAppsForUser returns every app the user holds a grant for, newest first.
func (s *Store) ListAppsForUser(userID string) ([]App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT a.id, a.name, a.description, a.git_repo, a.preview_domain, a.created_at
		FROM apps a
		JOIN app_users u ON u.app_id = a.id
		WHERE u.user_id = ?
		ORDER BY a.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	defer rows.Close()

	apps := []App{}
	for rows.Next() {
		var a App
		var previewDomain sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.GitRepo, &previewDomain, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan app: %w", err)
		}
		a.PreviewDomain = previewDomain.String
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate apps: %w", err)
	}
	return apps, nil
}

// UserCanAccess reports whether the user holds any grant on the app.
func (s *Store) UserCanAccess(userID, appID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM app_users WHERE user_id = ? AND app_id = ?",
		userID, appID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check app access: %w", err)
	}
	return n > 0, nil
}

// DeleteApp removes an app. Grants, threads, messages, deployments and asset
// metadata cascade via foreign keys.
func (s *Store) DeleteApp(appID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM apps WHERE id = ?", appID); err != nil {
		return fmt.Errorf("delete app: %w", err)
	}
	return nil
}
