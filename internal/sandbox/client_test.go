package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRequestDevServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/dev-servers" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["repoId"] != "repo-1" {
			t.Errorf("repoId = %q", body["repoId"])
		}
		json.NewEncoder(w).Encode(map[string]string{
			"endpoint":      "https://app.example.test",
			"filesystemUrl": "https://fs.example.test/",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", time.Second)
	ds, err := c.RequestDevServer(context.Background(), "repo-1")
	if err != nil {
		t.Fatalf("RequestDevServer: %v", err)
	}
	if ds.Endpoint != "https://app.example.test" {
		t.Errorf("endpoint = %q", ds.Endpoint)
	}
	if ds.FS == nil || ds.FS.baseURL != "https://fs.example.test" {
		t.Errorf("filesystem baseURL = %+v", ds.FS)
	}
}

func TestRequestDevServerEmptyRepo(t *testing.T) {
	c := NewClient("http://unused.test", "", time.Second)
	if _, err := c.RequestDevServer(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty repo id")
	}
}

func TestRequestDevServerUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.RequestDevServer(context.Background(), "repo-1")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestRequestDevServerConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.RequestDevServer(context.Background(), "repo-1")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestRequestDevServerClientErrorNotUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such repo", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.RequestDevServer(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrUnavailable) {
		t.Fatalf("4xx should not classify as unavailable: %v", err)
	}
}

func TestCreateGitRepository(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/repos" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["name"] != "my-game" || body["sourceUrl"] != "https://github.example/template" {
			t.Errorf("body = %v", body)
		}
		json.NewEncoder(w).Encode(map[string]string{"repoId": "repo-9"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	id, err := c.CreateGitRepository(context.Background(), "my-game", "https://github.example/template")
	if err != nil {
		t.Fatalf("CreateGitRepository: %v", err)
	}
	if id != "repo-9" {
		t.Errorf("repo id = %q", id)
	}
}

func TestCreateGitAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/identities/user%401/tokens" && r.URL.Path != "/v1/identities/user@1/tokens" {
			t.Errorf("path = %s", r.URL.EscapedPath())
		}
		json.NewEncoder(w).Encode(map[string]string{"tokenId": "tok-1", "token": "secret"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	tok, err := c.CreateGitAccessToken(context.Background(), "user@1")
	if err != nil {
		t.Fatalf("CreateGitAccessToken: %v", err)
	}
	if tok.ID != "tok-1" || tok.Token != "secret" {
		t.Errorf("token = %+v", tok)
	}
}

func TestFilesystemRoundTrip(t *testing.T) {
	files := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/files":
			body, err := io.ReadAll(r.Body)
			if err != nil {
				t.Fatal(err)
			}
			files[path] = string(body)
		case r.Method == http.MethodGet && r.URL.Path == "/files":
			content, ok := files[path]
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Write([]byte(content))
		case r.Method == http.MethodPost && r.URL.Path == "/dirs":
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodGet && r.URL.Path == "/dirs":
			w.Write([]byte("/a.js\n/b.js\n\n"))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	fs := &Filesystem{baseURL: srv.URL, http: srv.Client()}
	ctx := context.Background()

	if err := fs.Mkdir(ctx, "/src"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := fs.WriteFile(ctx, "/src/main.js", "console.log('hi')"); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := fs.ReadFile(ctx, "/src/main.js")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got != "console.log('hi')" {
		t.Errorf("content = %q", got)
	}
	entries, err := fs.ListDir(ctx, "/src")
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	if len(entries) != 2 || entries[0] != "/a.js" || entries[1] != "/b.js" {
		t.Errorf("entries = %v", entries)
	}
}

func TestSeedPatterns(t *testing.T) {
	var writes, mkdirs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/files":
			writes = append(writes, path)
		case r.Method == http.MethodPost && r.URL.Path == "/dirs":
			mkdirs = append(mkdirs, path)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	fs := &Filesystem{baseURL: srv.URL, http: srv.Client()}
	if err := SeedPatterns(context.Background(), fs); err != nil {
		t.Fatalf("SeedPatterns: %v", err)
	}
	if len(mkdirs) != 2 {
		t.Errorf("mkdirs = %v", mkdirs)
	}
	want := map[string]bool{}
	for _, f := range patternFiles {
		want[f.Path] = false
	}
	for _, p := range writes {
		if _, ok := want[p]; ok {
			want[p] = true
		}
	}
	for p, seen := range want {
		if !seen {
			t.Errorf("pattern file %s not written", p)
		}
	}
}
