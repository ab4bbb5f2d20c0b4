package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/umeshinduranga/revit/backend/internal/auth"
	"github.com/umeshinduranga/revit/backend/internal/config"
	"github.com/umeshinduranga/revit/backend/internal/githubapi"
	"github.com/umeshinduranga/revit/backend/internal/users"
)

const testSigningSecret = "server-test-secret"

type fakeOAuth struct {
	user        auth.GitHubUser
	exchangeErr error
	lastCode    string
}

func (f *fakeOAuth) AuthCodeURL(state string) string {
	return "https://github.test/login/oauth/authorize?state=" + state
}

func (f *fakeOAuth) Exchange(_ context.Context, code string) (auth.GitHubUser, error) {
	f.lastCode = code
	if f.exchangeErr != nil {
		return auth.GitHubUser{}, f.exchangeErr
	}
	return f.user, nil
}

type fakeIdentityStore struct {
	upserted []auth.GitHubUser
	tokens   map[string]string
}

func (f *fakeIdentityStore) Upsert(user auth.GitHubUser) (users.Identity, error) {
	f.upserted = append(f.upserted, user)
	if f.tokens == nil {
		f.tokens = map[string]string{}
	}
	f.tokens[user.ID] = user.AccessToken
	return users.Identity{GitHubID: user.ID, Login: user.Login}, nil
}

func (f *fakeIdentityStore) AccessTokenFor(githubID string) (string, error) {
	token, ok := f.tokens[githubID]
	if !ok {
		return "", users.ErrUnknownUser
	}
	return token, nil
}

type fakeProxy struct {
	repos      []githubapi.Repository
	entries    []githubapi.ContentEntry
	file       githubapi.FileContent
	branch     githubapi.BranchRef
	pushResult githubapi.PushResult
	err        error

	lastToken  string
	lastBranch string
}

func (f *fakeProxy) ListRepositories(_ context.Context, token string) ([]githubapi.Repository, error) {
	f.lastToken = token
	return f.repos, f.err
}

func (f *fakeProxy) ListContents(_ context.Context, token, _, _, _, _ string) ([]githubapi.ContentEntry, error) {
	f.lastToken = token
	return f.entries, f.err
}

func (f *fakeProxy) GetFile(_ context.Context, token, _, _, _, _ string) (githubapi.FileContent, error) {
	f.lastToken = token
	return f.file, f.err
}

func (f *fakeProxy) CreateBranch(_ context.Context, token, _, _, _, branch string) (githubapi.BranchRef, error) {
	f.lastToken = token
	f.lastBranch = branch
	return f.branch, f.err
}

func (f *fakeProxy) PushFile(_ context.Context, token, _, _, _, _, _, _ string) (githubapi.PushResult, error) {
	f.lastToken = token
	return f.pushResult, f.err
}

type fakeRealtime struct{}

func (fakeRealtime) ServeWS(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusSwitchingProtocols)
}

type routerFixture struct {
	handler http.Handler
	oauth   *fakeOAuth
	store   *fakeIdentityStore
	proxy   *fakeProxy
	issuer  *auth.TokenIssuer
	cfg     config.AppConfig
}

func newRouterFixture(t *testing.T, limiters Limiters) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.AppConfig{
		FrontendOrigin:    "http://localhost:3000",
		SessionCookieName: "revit_session",
		SessionTTL:        time.Hour,
	}
	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		CookieName:    cfg.SessionCookieName,
	})
	if err != nil {
		t.Fatalf("failed to build validator: %v", err)
	}
	issuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		TokenTTL:      cfg.SessionTTL,
	})

	fixture := &routerFixture{
		oauth: &fakeOAuth{user: auth.GitHubUser{
			ID:          "12345",
			Login:       "octocat",
			AvatarURL:   "https://avatars.example.com/u/12345",
			AccessToken: "gho_testtoken",
		}},
		store:  &fakeIdentityStore{},
		proxy:  &fakeProxy{},
		issuer: issuer,
		cfg:    cfg,
	}

	handler, err := NewHTTPHandler(Dependencies{
		Config:   cfg,
		OAuth:    fixture.oauth,
		Tokens:   issuer,
		Sessions: validator,
		Users:    fixture.store,
		GitHub:   fixture.proxy,
		Realtime: fakeRealtime{},
		Limiters: limiters,
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	fixture.handler = handler
	return fixture
}

// login upserts the fixture user and returns a valid session cookie.
func (f *routerFixture) login(t *testing.T) *http.Cookie {
	t.Helper()
	if _, err := f.store.Upsert(f.oauth.user); err != nil {
		t.Fatalf("failed to seed identity: %v", err)
	}
	token, _, err := f.issuer.IssueSessionToken(context.Background(), f.oauth.user)
	if err != nil {
		t.Fatalf("failed to mint session token: %v", err)
	}
	return &http.Cookie{Name: f.cfg.SessionCookieName, Value: token}
}

func (f *routerFixture) do(t *testing.T, request *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	body := map[string]any{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body %q: %v", recorder.Body.String(), err)
	}
	return body
}

func TestNewHTTPHandlerRequiresDependencies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	if _, err := NewHTTPHandler(Dependencies{}); err == nil {
		t.Fatalf("expected missing dependency error")
	}
}

func TestHealthEndpoint(t *testing.T) {
	fixture := newRouterFixture(t, Limiters{})

	recorder := fixture.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	body := decodeBody(t, recorder)
	if body["status"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestBranchNameValidation(t *testing.T) {
	valid := []string{"main", "feature/editor", "release-1.2", "fix_1", "a/b/c"}
	for _, name := range valid {
		if err := validateBranchName(name); err != nil {
			t.Fatalf("expected %q to be valid, got %v", name, err)
		}
	}

	invalid := []string{"", "  ", "HEAD", "refs/heads/x", "remotes/origin/x", "bad name", "a..b", "/lead", "trail/", "a//b", "emoji✨"}
	for _, name := range invalid {
		if err := validateBranchName(name); err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
}
