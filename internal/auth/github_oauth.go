package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	gogithub "github.com/google/go-github/v61/github"
	"golang.org/x/oauth2"
	oauthgithub "golang.org/x/oauth2/github"
)

var (
	ErrInvalidOAuthConfig = errors.New("auth: invalid github oauth config")
	ErrOAuthExchange      = errors.New("auth: github code exchange failed")
	ErrProfileFetch       = errors.New("auth: github profile fetch failed")

	errMissingClientID     = errors.New("client id required")
	errMissingClientSecret = errors.New("client secret required")
	errMissingCallbackURL  = errors.New("callback url required")
	errMissingCode         = errors.New("authorization code required")
)

// GitHubUser is the profile attached to a session after a successful login.
type GitHubUser struct {
	ID          string
	Login       string
	AvatarURL   string
	AccessToken string
}

// GitHubOAuthConfig bundles configuration required to instantiate a GitHubOAuth.
type GitHubOAuthConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string
	HTTPClient   *http.Client

	// APIBaseURL overrides the GitHub API endpoint, used by tests.
	APIBaseURL string
	// TokenURL and AuthURL override the OAuth endpoints, used by tests.
	TokenURL string
	AuthURL  string
}

// GitHubOAuth drives the GitHub authorization-code flow and resolves the
// authenticated user's profile.
type GitHubOAuth struct {
	oauthConfig *oauth2.Config
	httpClient  *http.Client
	apiBaseURL  string
}

// NewGitHubOAuth constructs an exchanger with validated configuration.
func NewGitHubOAuth(cfg GitHubOAuthConfig) (*GitHubOAuth, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOAuthConfig, errMissingClientID)
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOAuthConfig, errMissingClientSecret)
	}
	if strings.TrimSpace(cfg.CallbackURL) == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOAuthConfig, errMissingCallbackURL)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"user:email", "repo"}
	}

	endpoint := oauthgithub.Endpoint
	if cfg.TokenURL != "" {
		endpoint = oauth2.Endpoint{AuthURL: cfg.AuthURL, TokenURL: cfg.TokenURL}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &GitHubOAuth{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		httpClient: httpClient,
		apiBaseURL: cfg.APIBaseURL,
	}, nil
}

// AuthCodeURL returns the GitHub authorization page URL for the given state.
func (g *GitHubOAuth) AuthCodeURL(state string) string {
	return g.oauthConfig.AuthCodeURL(state)
}

// Exchange swaps an authorization code for an access token and fetches the
// authenticated user's profile.
func (g *GitHubOAuth) Exchange(ctx context.Context, code string) (GitHubUser, error) {
	if strings.TrimSpace(code) == "" {
		return GitHubUser{}, fmt.Errorf("%w: %v", ErrOAuthExchange, errMissingCode)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	token, err := g.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return GitHubUser{}, fmt.Errorf("%w: %v", ErrOAuthExchange, err)
	}

	apiClient := gogithub.NewClient(g.httpClient).WithAuthToken(token.AccessToken)
	if g.apiBaseURL != "" {
		apiClient, err = apiClient.WithEnterpriseURLs(g.apiBaseURL, g.apiBaseURL)
		if err != nil {
			return GitHubUser{}, fmt.Errorf("%w: %v", ErrProfileFetch, err)
		}
	}

	profile, _, err := apiClient.Users.Get(ctx, "")
	if err != nil {
		return GitHubUser{}, fmt.Errorf("%w: %v", ErrProfileFetch, err)
	}

	return GitHubUser{
		ID:          strconv.FormatInt(profile.GetID(), 10),
		Login:       profile.GetLogin(),
		AvatarURL:   profile.GetAvatarURL(),
		AccessToken: token.AccessToken,
	}, nil
}
