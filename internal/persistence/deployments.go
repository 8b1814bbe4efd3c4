package persistence

import "fmt"

// Deployment records one published build of an app.
type Deployment struct {
	AppID        string `json:"appId"`
	DeploymentID string `json:"deploymentId"`
	CommitSHA    string `json:"commitSha"`
	CreatedAt    string `json:"createdAt"`
}

// Asset is an uploaded file (image, sound) available to an app's game code.
type Asset struct {
	ID        string `json:"id"`
	AppID     string `json:"appId"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	FilePath  string `json:"filePath"`
	MimeType  string `json:"mimeType"`
	FileSize  int64  `json:"fileSize"`
	CreatedAt string `json:"createdAt"`
}

// RecordDeployment stores a deployment record for an app.
func (s *Store) RecordDeployment(d Deployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.AppID == "" || d.DeploymentID == "" {
		return fmt.Errorf("app id and deployment id are required")
	}
	if d.CreatedAt == "" {
		d.CreatedAt = nowRFC3339()
	}

	_, err := s.db.Exec(
		"INSERT INTO app_deployments (app_id, deployment_id, commit_sha, created_at) VALUES (?, ?, ?, ?)",
		d.AppID, d.DeploymentID, d.CommitSHA, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record deployment: %w", err)
	}
	return nil
}

// ListDeployments returns an app's deployments, newest first.
func (s *Store) ListDeployments(appID string) ([]Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT app_id, deployment_id, commit_sha, created_at FROM app_deployments WHERE app_id = ? ORDER BY created_at DESC",
		appID,
	)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	var out []Deployment
	for rows.Next() {
		var d Deployment
		if err := rows.Scan(&d.AppID, &d.DeploymentID, &d.CommitSHA, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan deployment: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SaveAsset stores an asset's metadata.
func (s *Store) SaveAsset(a Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" || a.AppID == "" {
		return fmt.Errorf("asset id and app id are required")
	}
	if a.CreatedAt == "" {
		a.CreatedAt = nowRFC3339()
	}

	_, err := s.db.Exec(
		"INSERT INTO assets (id, app_id, name, type, file_path, mime_type, file_size, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		a.ID, a.AppID, a.Name, a.Type, a.FilePath, a.MimeType, a.FileSize, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save asset: %w", err)
	}
	return nil
}

// ListAssets returns an app's assets in upload order.
func (s *Store) ListAssets(appID string) ([]Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT id, app_id, name, type, file_path, mime_type, file_size, created_at FROM assets WHERE app_id = ? ORDER BY created_at ASC, id ASC",
		appID,
	)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var out []Asset
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.ID, &a.AppID, &a.Name, &a.Type, &a.FilePath, &a.MimeType, &a.FileSize, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
