// Package sandbox is the client for the remote dev-server provisioning
// service: git repositories for app code, live dev servers, and the
// filesystem handle the agent edits.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnavailable marks connectivity failures against the sandbox service.
// Callers surface these as 5xx without starting a stream session.
var ErrUnavailable = errors.New("sandbox service unavailable")

// Client talks to the sandbox provisioning API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a sandbox client for the given service URL.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// DevServer is a live development environment for one app repository.
type DevServer struct {
	// Endpoint is the ephemeral URL exposing the app and its tool surface.
	Endpoint string
	// FS edits files inside the dev server.
	FS *Filesystem
}

// RequestDevServer obtains a running dev server for the repository.
// Fails fast on connectivity errors; no retries at this layer.
func (c *Client) RequestDevServer(ctx context.Context, repoID string) (*DevServer, error) {
	if repoID == "" {
		return nil, fmt.Errorf("repo id is required")
	}

	var resp struct {
		Endpoint      string `json:"endpoint"`
		FilesystemURL string `json:"filesystemUrl"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/v1/dev-servers", map[string]string{"repoId": repoID}, &resp)
	if err != nil {
		return nil, fmt.Errorf("request dev server: %w", err)
	}
	if resp.Endpoint == "" || resp.FilesystemURL == "" {
		return nil, fmt.Errorf("request dev server: incomplete response")
	}

	return &DevServer{
		Endpoint: resp.Endpoint,
		FS:       &Filesystem{baseURL: strings.TrimRight(resp.FilesystemURL, "/"), apiKey: c.apiKey, http: c.http},
	}, nil
}

// CreateGitRepository creates a repository seeded from a template source and
// returns its id. Exactly one repository backs each app.
func (c *Client) CreateGitRepository(ctx context.Context, name, sourceURL string) (string, error) {
	var resp struct {
		RepoID string `json:"repoId"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/v1/repos", map[string]any{
		"name":      name,
		"public":    true,
		"sourceUrl": sourceURL,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("create git repository: %w", err)
	}
	if resp.RepoID == "" {
		return "", fmt.Errorf("create git repository: empty repo id")
	}
	return resp.RepoID, nil
}

// GrantGitPermission grants an identity write access to a repository.
func (c *Client) GrantGitPermission(ctx context.Context, identity, repoID, permission string) error {
	err := c.doJSON(ctx, http.MethodPost,
		"/v1/identities/"+url.PathEscape(identity)+"/permissions",
		map[string]string{"repoId": repoID, "permission": permission}, nil)
	if err != nil {
		return fmt.Errorf("grant git permission: %w", err)
	}
	return nil
}

// GitAccessToken is a credential minted for one identity.
type GitAccessToken struct {
	ID    string `json:"tokenId"`
	Token string `json:"token"`
}

// CreateGitAccessToken mints a git access token for an identity.
func (c *Client) CreateGitAccessToken(ctx context.Context, identity string) (*GitAccessToken, error) {
	var tok GitAccessToken
	err := c.doJSON(ctx, http.MethodPost,
		"/v1/identities/"+url.PathEscape(identity)+"/tokens", nil, &tok)
	if err != nil {
		return nil, fmt.Errorf("create git access token: %w", err)
	}
	return &tok, nil
}

// doJSON sends a JSON request and decodes a JSON response. Transport errors
// and 5xx responses wrap ErrUnavailable so callers can classify them.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sandbox returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
