package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Filesystem edits files inside a dev server over its filesystem API.
// The generation task's tools go through this handle; it is the shared
// mutable resource the single-active-session invariant protects.
type Filesystem struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// WriteFile creates or replaces the file at path.
func (f *Filesystem) WriteFile(ctx context.Context, path, content string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		f.baseURL+"/files?path="+url.QueryEscape(path),
		strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return f.do(req, nil)
}

// ReadFile returns the contents of the file at path.
func (f *Filesystem) ReadFile(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		f.baseURL+"/files?path="+url.QueryEscape(path), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	var buf bytes.Buffer
	if err := f.do(req, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ListDir returns the entries directly under dir, one path per line.
func (f *Filesystem) ListDir(ctx context.Context, dir string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		f.baseURL+"/dirs?path="+url.QueryEscape(dir), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	var buf bytes.Buffer
	if err := f.do(req, &buf); err != nil {
		return nil, err
	}
	var entries []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			entries = append(entries, trimmed)
		}
	}
	return entries, nil
}

// Mkdir creates dir and any missing parents.
func (f *Filesystem) Mkdir(ctx context.Context, dir string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		f.baseURL+"/dirs?path="+url.QueryEscape(dir), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return f.do(req, nil)
}

func (f *Filesystem) do(req *http.Request, out io.Writer) error {
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("filesystem returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		if _, err := io.Copy(out, resp.Body); err != nil {
			return fmt.Errorf("read response: %w", err)
		}
	}
	return nil
}
