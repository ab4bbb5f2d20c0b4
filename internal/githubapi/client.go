// Package githubapi wraps the GitHub REST API calls the editor relies on.
// Every call runs with the caller's own OAuth token.
package githubapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v61/github"
	"go.uber.org/zap"
)

var (
	ErrMissingToken = errors.New("githubapi: access token required")
	ErrUnauthorized = errors.New("githubapi: token rejected by github")
	ErrNotFound     = errors.New("githubapi: resource not found")
	ErrUpstream     = errors.New("githubapi: github request failed")
)

// Repository is the repo listing entry returned to the frontend.
type Repository struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	FullName      string    `json:"fullName"`
	Private       bool      `json:"private"`
	Description   string    `json:"description"`
	DefaultBranch string    `json:"defaultBranch"`
	HTMLURL       string    `json:"htmlUrl"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ContentEntry is one item of a directory listing.
type ContentEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
	Size int    `json:"size"`
}

// FileContent is a decoded file fetched from a repository.
type FileContent struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	SHA     string `json:"sha"`
	Size    int    `json:"size"`
	Content string `json:"content"`
}

// BranchRef describes a git ref after creation.
type BranchRef struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// PushResult reports the commit produced by a file push.
type PushResult struct {
	Path      string `json:"path"`
	Branch    string `json:"branch"`
	SHA       string `json:"sha"`
	CommitSHA string `json:"commitSha"`
}

// ClientConfig configures the proxy client. BaseURL is only set in tests
// to point the client at a fake server.
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: cfg.HTTPClient,
		logger:     logger,
	}
}

func (c *Client) rest(accessToken string) (*gogithub.Client, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrMissingToken
	}
	client := gogithub.NewClient(c.httpClient).WithAuthToken(accessToken)
	if c.baseURL != "" {
		enterprise, err := client.WithEnterpriseURLs(c.baseURL, c.baseURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		client = enterprise
	}
	return client, nil
}

// ListRepositories returns the authenticated user's repositories, most
// recently updated first.
func (c *Client) ListRepositories(ctx context.Context, accessToken string) ([]Repository, error) {
	client, err := c.rest(accessToken)
	if err != nil {
		return nil, err
	}

	opts := &gogithub.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}
	repos, _, err := client.Repositories.ListByAuthenticatedUser(ctx, opts)
	if err != nil {
		return nil, c.mapError("list repositories", err)
	}

	listing := make([]Repository, 0, len(repos))
	for _, repo := range repos {
		listing = append(listing, Repository{
			ID:            repo.GetID(),
			Name:          repo.GetName(),
			FullName:      repo.GetFullName(),
			Private:       repo.GetPrivate(),
			Description:   repo.GetDescription(),
			DefaultBranch: repo.GetDefaultBranch(),
			HTMLURL:       repo.GetHTMLURL(),
			UpdatedAt:     repo.GetUpdatedAt().Time,
		})
	}
	return listing, nil
}

// ListContents returns the entries at path. A file path yields a single
// entry; a directory path yields its children.
func (c *Client) ListContents(ctx context.Context, accessToken, owner, repo, path, ref string) ([]ContentEntry, error) {
	client, err := c.rest(accessToken)
	if err != nil {
		return nil, err
	}

	opts := &gogithub.RepositoryContentGetOptions{Ref: ref}
	file, directory, _, err := client.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return nil, c.mapError("list contents", err)
	}

	if file != nil {
		return []ContentEntry{contentEntryFrom(file)}, nil
	}
	entries := make([]ContentEntry, 0, len(directory))
	for _, item := range directory {
		entries = append(entries, contentEntryFrom(item))
	}
	return entries, nil
}

// GetFile fetches and decodes a single file.
func (c *Client) GetFile(ctx context.Context, accessToken, owner, repo, path, ref string) (FileContent, error) {
	client, err := c.rest(accessToken)
	if err != nil {
		return FileContent{}, err
	}

	opts := &gogithub.RepositoryContentGetOptions{Ref: ref}
	file, _, _, err := client.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return FileContent{}, c.mapError("get file", err)
	}
	if file == nil {
		return FileContent{}, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}

	decoded, err := file.GetContent()
	if err != nil {
		return FileContent{}, fmt.Errorf("%w: decode %s: %v", ErrUpstream, path, err)
	}
	return FileContent{
		Name:    file.GetName(),
		Path:    file.GetPath(),
		SHA:     file.GetSHA(),
		Size:    file.GetSize(),
		Content: decoded,
	}, nil
}

// CreateBranch creates a new branch head pointing at the tip of base.
func (c *Client) CreateBranch(ctx context.Context, accessToken, owner, repo, base, branch string) (BranchRef, error) {
	client, err := c.rest(accessToken)
	if err != nil {
		return BranchRef{}, err
	}

	baseRef, _, err := client.Git.GetRef(ctx, owner, repo, "heads/"+base)
	if err != nil {
		return BranchRef{}, c.mapError("resolve base branch", err)
	}

	newRef := &gogithub.Reference{
		Ref:    gogithub.String("refs/heads/" + branch),
		Object: &gogithub.GitObject{SHA: baseRef.Object.SHA},
	}
	created, _, err := client.Git.CreateRef(ctx, owner, repo, newRef)
	if err != nil {
		return BranchRef{}, c.mapError("create branch", err)
	}
	return BranchRef{
		Ref: created.GetRef(),
		SHA: created.GetObject().GetSHA(),
	}, nil
}

// PushFile commits content to path on branch, creating the file when it
// does not exist yet and updating it in place when it does.
func (c *Client) PushFile(ctx context.Context, accessToken, owner, repo, branch, path, message, content string) (PushResult, error) {
	client, err := c.rest(accessToken)
	if err != nil {
		return PushResult{}, err
	}

	opts := &gogithub.RepositoryContentFileOptions{
		Message: gogithub.String(message),
		Content: []byte(content),
		Branch:  gogithub.String(branch),
	}

	existing, _, _, err := client.Repositories.GetContents(ctx, owner, repo, path,
		&gogithub.RepositoryContentGetOptions{Ref: branch})
	switch {
	case err == nil && existing != nil:
		opts.SHA = gogithub.String(existing.GetSHA())
	case err != nil && !isStatus(err, http.StatusNotFound):
		return PushResult{}, c.mapError("inspect file", err)
	}

	response, _, err := client.Repositories.CreateFile(ctx, owner, repo, path, opts)
	if err != nil {
		return PushResult{}, c.mapError("push file", err)
	}
	return PushResult{
		Path:      response.GetContent().GetPath(),
		Branch:    branch,
		SHA:       response.GetContent().GetSHA(),
		CommitSHA: response.GetSHA(),
	}, nil
}

func contentEntryFrom(content *gogithub.RepositoryContent) ContentEntry {
	return ContentEntry{
		Name: content.GetName(),
		Path: content.GetPath(),
		Type: content.GetType(),
		SHA:  content.GetSHA(),
		Size: content.GetSize(),
	}
}

func (c *Client) mapError(operation string, err error) error {
	switch {
	case isStatus(err, http.StatusUnauthorized), isStatus(err, http.StatusForbidden):
		c.logger.Warn("github rejected credentials", zap.String("operation", operation))
		return fmt.Errorf("%w: %s", ErrUnauthorized, operation)
	case isStatus(err, http.StatusNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, operation)
	default:
		c.logger.Error("github request failed", zap.String("operation", operation), zap.Error(err))
		return fmt.Errorf("%w: %s: %v", ErrUpstream, operation, err)
	}
}

func isStatus(err error, status int) bool {
	var response *gogithub.ErrorResponse
	if errors.As(err, &response) && response.Response != nil {
		return response.Response.StatusCode == status
	}
	return false
}
