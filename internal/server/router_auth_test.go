package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func stateFromAuthStart(t *testing.T, recorder *httptest.ResponseRecorder) (string, *http.Cookie) {
	t.Helper()
	location := recorder.Header().Get("Location")
	_, state, found := strings.Cut(location, "state=")
	if !found || state == "" {
		t.Fatalf("expected state in redirect %q", location)
	}
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == stateCookieName {
			return state, cookie
		}
	}
	t.Fatalf("expected state cookie to be set")
	return "", nil
}

func TestAuthStartRedirectsToGitHub(t *testing.T) {
	fixture := newRouterFixture(t, Limiters{})

	recorder := fixture.do(t, httptest.NewRequest(http.MethodGet, "/auth/github", nil))
	if recorder.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", recorder.Code)
	}

	state, cookie := stateFromAuthStart(t, recorder)
	if cookie.Value != state {
		t.Fatalf("state cookie %q does not match redirect state %q", cookie.Value, state)
	}
	if !cookie.HttpOnly {
		t.Fatalf("state cookie must be http only")
	}
}

func TestAuthCallbackIssuesSession(t *testing.T) {
	fixture := newRouterFixture(t, Limiters{})

	start := fixture.do(t, httptest.NewRequest(http.MethodGet, "/auth/github", nil))
	state, stateCookie := stateFromAuthStart(t, start)

	request := httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=good-code&state="+state, nil)
	request.AddCookie(stateCookie)
	recorder := fixture.do(t, request)

	if recorder.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", recorder.Code)
	}
	if location := recorder.Header().Get("Location"); location != fixture.cfg.FrontendOrigin {
		t.Fatalf("expected redirect to frontend, got %q", location)
	}
	if fixture.oauth.lastCode != "good-code" {
		t.Fatalf("expected exchange with the callback code, got %q", fixture.oauth.lastCode)
	}
	if len(fixture.store.upserted) != 1 || fixture.store.upserted[0].ID != "12345" {
		t.Fatalf("expected identity upsert, got %v", fixture.store.upserted)
	}

	sessionSet := false
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == fixture.cfg.SessionCookieName && cookie.Value != "" {
			sessionSet = true
			if !cookie.HttpOnly {
				t.Fatalf("session cookie must be http only")
			}
		}
	}
	if !sessionSet {
		t.Fatalf("expected session cookie to be set")
	}
}

func TestAuthCallbackRejectsStateMismatch(t *testing.T) {
	fixture := newRouterFixture(t, Limiters{})

	request := httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=good-code&state=forged", nil)
	request.AddCookie(&http.Cookie{Name: stateCookieName, Value: "expected"})
	recorder := fixture.do(t, request)

	if recorder.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", recorder.Code)
	}
	if location := recorder.Header().Get("Location"); !strings.Contains(location, "error=auth_failed") {
		t.Fatalf("expected error redirect, got %q", location)
	}
	if len(fixture.store.upserted) != 0 {
		t.Fatalf("no identity should be stored on state mismatch")
	}
}

func TestAuthCallbackHandlesExchangeFailure(t *testing.T) {
	fixture := newRouterFixture(t, Limiters{})
	fixture.oauth.exchangeErr = errors.New("boom")

	start := fixture.do(t, httptest.NewRequest(http.MethodGet, "/auth/github", nil))
	state, stateCookie := stateFromAuthStart(t, start)

	request := httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=bad&state="+state, nil)
	request.AddCookie(stateCookie)
	recorder := fixture.do(t, request)

	if location := recorder.Header().Get("Location"); !strings.Contains(location, "error=auth_failed") {
		t.Fatalf("expected error redirect, got %q", location)
	}
}

func TestCurrentUserRequiresSession(t *testing.T) {
	fixture := newRouterFixture(t, Limiters{})

	recorder := fixture.do(t, httptest.NewRequest(http.MethodGet, "/api/user", nil))
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
	if body := decodeBody(t, recorder); body["message"] != "Not authenticated" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestCurrentUserReturnsProfile(t *testing.T) {
	fixture := newRouterFixture(t, Limiters{})
	cookie := fixture.login(t)

	request := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	request.AddCookie(cookie)
	recorder := fixture.do(t, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	body := decodeBody(t, recorder)
	if body["id"] != "12345" || body["username"] != "octocat" {
		t.Fatalf("unexpected profile %v", body)
	}
}

func TestLogoutClearsSessionCookie(t *testing.T) {
	fixture := newRouterFixture(t, Limiters{})
	cookie := fixture.login(t)

	request := httptest.NewRequest(http.MethodGet, "/logout", nil)
	request.AddCookie(cookie)
	recorder := fixture.do(t, request)

	if recorder.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", recorder.Code)
	}
	cleared := false
	for _, set := range recorder.Result().Cookies() {
		if set.Name == fixture.cfg.SessionCookieName && set.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("expected session cookie to be cleared")
	}
}
