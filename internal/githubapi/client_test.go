package githubapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const testToken = "gho_proxytoken"

func authorized(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Authorization"), testToken)
}

func newFakeGitHubAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v3/user/repos", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":             101,
				"name":           "revit",
				"full_name":      "octocat/revit",
				"private":        false,
				"default_branch": "main",
				"description":    "collaborative editor",
			},
			{
				"id":        102,
				"name":      "dotfiles",
				"full_name": "octocat/dotfiles",
				"private":   true,
			},
		})
	})

	mux.HandleFunc("/api/v3/repos/octocat/revit/contents/src", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"name": "main.js", "path": "src/main.js", "type": "file", "sha": "abc111", "size": 42},
			{"name": "lib", "path": "src/lib", "type": "dir", "sha": "abc222"},
		})
	})

	mux.HandleFunc("/api/v3/repos/octocat/revit/contents/src/main.js", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodGet:
			encoded := base64.StdEncoding.EncodeToString([]byte("console.log('hi');\n"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"name":     "main.js",
				"path":     "src/main.js",
				"type":     "file",
				"sha":      "abc111",
				"size":     19,
				"content":  encoded,
				"encoding": "base64",
			})
		case http.MethodPut:
			var payload struct {
				Message string `json:"message"`
				Branch  string `json:"branch"`
				SHA     string `json:"sha"`
				Content string `json:"content"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				http.Error(w, "bad payload", http.StatusBadRequest)
				return
			}
			if payload.SHA != "abc111" {
				http.Error(w, `{"message":"sha mismatch"}`, http.StatusConflict)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"content": map[string]any{"path": "src/main.js", "sha": "def333"},
				"commit":  map[string]any{"sha": "commit444"},
			})
		}
	})

	mux.HandleFunc("/api/v3/repos/octocat/revit/contents/docs/new.md", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodGet:
			http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		case http.MethodPut:
			var payload struct {
				SHA string `json:"sha"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				http.Error(w, "bad payload", http.StatusBadRequest)
				return
			}
			if payload.SHA != "" {
				http.Error(w, `{"message":"unexpected sha"}`, http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"content": map[string]any{"path": "docs/new.md", "sha": "newsha1"},
				"commit":  map[string]any{"sha": "commit555"},
			})
		}
	})

	mux.HandleFunc("/api/v3/repos/octocat/revit/git/ref/heads/main", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ref":    "refs/heads/main",
			"object": map[string]any{"sha": "basesha9", "type": "commit"},
		})
	})

	mux.HandleFunc("/api/v3/repos/octocat/revit/git/ref/heads/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})

	mux.HandleFunc("/api/v3/repos/octocat/revit/git/refs", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
			return
		}
		var payload struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		if payload.SHA != "basesha9" {
			http.Error(w, `{"message":"unknown sha"}`, http.StatusUnprocessableEntity)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ref":    payload.Ref,
			"object": map[string]any{"sha": payload.SHA, "type": "commit"},
		})
	})

	return httptest.NewServer(mux)
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	return NewClient(ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	})
}

func TestListRepositories(t *testing.T) {
	server := newFakeGitHubAPI(t)
	defer server.Close()

	client := newTestClient(t, server)
	repos, err := client.ListRepositories(context.Background(), testToken)
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	if len(repos) != 2 {
		t.Fatalf("expected 2 repositories, got %d", len(repos))
	}
	if repos[0].FullName != "octocat/revit" || repos[0].DefaultBranch != "main" {
		t.Fatalf("unexpected first repository %+v", repos[0])
	}
	if !repos[1].Private {
		t.Fatalf("expected second repository to be private")
	}
}

func TestListRepositoriesRejectsBadToken(t *testing.T) {
	server := newFakeGitHubAPI(t)
	defer server.Close()

	client := newTestClient(t, server)
	if _, err := client.ListRepositories(context.Background(), "gho_wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestListRepositoriesRequiresToken(t *testing.T) {
	server := newFakeGitHubAPI(t)
	defer server.Close()

	client := newTestClient(t, server)
	if _, err := client.ListRepositories(context.Background(), "  "); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestListContentsDirectory(t *testing.T) {
	server := newFakeGitHubAPI(t)
	defer server.Close()

	client := newTestClient(t, server)
	entries, err := client.ListContents(context.Background(), testToken, "octocat", "revit", "src", "")
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Type != "file" || entries[1].Type != "dir" {
		t.Fatalf("unexpected entry types %+v", entries)
	}
}

func TestGetFileDecodesContent(t *testing.T) {
	server := newFakeGitHubAPI(t)
	defer server.Close()

	client := newTestClient(t, server)
	file, err := client.GetFile(context.Background(), testToken, "octocat", "revit", "src/main.js", "")
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	if file.Content != "console.log('hi');\n" {
		t.Fatalf("unexpected decoded content %q", file.Content)
	}
	if file.SHA != "abc111" {
		t.Fatalf("unexpected sha %q", file.SHA)
	}
}

func TestCreateBranchFromBase(t *testing.T) {
	server := newFakeGitHubAPI(t)
	defer server.Close()

	client := newTestClient(t, server)
	ref, err := client.CreateBranch(context.Background(), testToken, "octocat", "revit", "main", "feature/editor")
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	if ref.Ref != "refs/heads/feature/editor" {
		t.Fatalf("unexpected ref %q", ref.Ref)
	}
	if ref.SHA != "basesha9" {
		t.Fatalf("unexpected sha %q", ref.SHA)
	}
}

func TestCreateBranchUnknownBase(t *testing.T) {
	server := newFakeGitHubAPI(t)
	defer server.Close()

	client := newTestClient(t, server)
	if _, err := client.CreateBranch(context.Background(), testToken, "octocat", "revit", "missing", "feature/x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPushFileUpdatesExisting(t *testing.T) {
	server := newFakeGitHubAPI(t)
	defer server.Close()

	client := newTestClient(t, server)
	result, err := client.PushFile(context.Background(), testToken, "octocat", "revit", "main", "src/main.js", "update main", "console.log('bye');\n")
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	if result.SHA != "def333" {
		t.Fatalf("unexpected content sha %q", result.SHA)
	}
	if result.CommitSHA != "commit444" {
		t.Fatalf("unexpected commit sha %q", result.CommitSHA)
	}
}

func TestPushFileCreatesNew(t *testing.T) {
	server := newFakeGitHubAPI(t)
	defer server.Close()

	client := newTestClient(t, server)
	result, err := client.PushFile(context.Background(), testToken, "octocat", "revit", "main", "docs/new.md", "add doc", "# hi\n")
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	if result.SHA != "newsha1" {
		t.Fatalf("unexpected content sha %q", result.SHA)
	}
	if result.CommitSHA != "commit555" {
		t.Fatalf("unexpected commit sha %q", result.CommitSHA)
	}
}
