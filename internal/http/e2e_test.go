package httpapp_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/newswire-app/newswire/internal/auth"
	"github.com/newswire-app/newswire/internal/config"
	"github.com/newswire-app/newswire/internal/feed"
	httpapp "github.com/newswire-app/newswire/internal/http"
	"github.com/newswire-app/newswire/internal/model"
	"github.com/newswire-app/newswire/internal/rate"
	"github.com/newswire-app/newswire/internal/reaction"
	"github.com/newswire-app/newswire/internal/store/sqlite"
)

// TestEndToEndLoginFlow walks the full login path against a fake
// identity provider: login redirect, callback exchange, session use,
// reaction, logout.
func TestEndToEndLoginFlow(t *testing.T) {
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "e2e-access-token",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		case "/userinfo":
			if r.Header.Get("Authorization") != "Bearer e2e-access-token" {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"email": "reader@example.com",
				"name":  "E2E Reader",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer idp.Close()

	st, err := sqlite.Open("file:e2e_login?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	item := model.NewsItem{ID: 1, Title: "E2E Story", URL: "https://example.com", Time: 1}
	if _, err := st.InsertNewsItem(context.Background(), &item); err != nil {
		t.Fatalf("insert item: %v", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	baseURL := "http://" + listener.Addr().String()

	cfg := config.Config{
		Server:     config.ServerConfig{BaseURL: baseURL},
		RateLimits: config.RateLimitConfig{ReactionPerMinute: 1000, LoginPerMinute: 1000},
	}
	authSvc := auth.NewService(auth.Config{
		Domain:        idp.URL,
		ClientID:      "e2e-client",
		ClientSecret:  "e2e-secret",
		CallbackURL:   baseURL + "/callback",
		SessionSecret: "e2e-session-secret",
		SessionTTL:    time.Hour,
	})
	server, err := httpapp.NewServer(feed.New(st), reaction.New(st), authSvc, rate.NewMemory(), cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	httpServer := &http.Server{Handler: server}
	go func() {
		_ = httpServer.Serve(listener)
	}()
	defer httpServer.Close()

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	// Login redirects to the provider and plants a state cookie.
	resp, err := client.Get(baseURL + "/login")
	if err != nil {
		t.Fatalf("get login: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("login: expected 302, got %d", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if !strings.HasPrefix(loc, idp.URL+"/authorize") {
		t.Fatalf("login: expected provider authorize URL, got %q", loc)
	}
	authorizeURL, err := url.Parse(loc)
	if err != nil {
		t.Fatalf("parse authorize URL: %v", err)
	}
	state := authorizeURL.Query().Get("state")
	if state == "" {
		t.Fatalf("login: expected state parameter")
	}
	var stateCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "newswire_oauth_state" {
			stateCookie = c
		}
	}
	if stateCookie == nil {
		t.Fatalf("login: expected state cookie")
	}

	// The provider calls back with a code; the app exchanges it for a session.
	req, _ := http.NewRequest(http.MethodGet, baseURL+"/callback?code=e2e-code&state="+url.QueryEscape(state), nil)
	req.AddCookie(stateCookie)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("get callback: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("callback: expected 303, got %d: %s", resp.StatusCode, string(body))
	}
	var sessionCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "newswire_session" && c.Value != "" {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatalf("callback: expected session cookie")
	}

	// The session is live.
	req, _ = http.NewRequest(http.MethodGet, baseURL+"/sessioncheck", nil)
	req.AddCookie(sessionCookie)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("get sessioncheck: %v", err)
	}
	var identity auth.Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		t.Fatalf("decode sessioncheck: %v", err)
	}
	resp.Body.Close()
	if identity.Email != "reader@example.com" {
		t.Fatalf("expected session for reader@example.com, got %q", identity.Email)
	}

	// Reacting works with the session cookie.
	req, _ = http.NewRequest(http.MethodPost, baseURL+"/like/1", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(sessionCookie)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("post like: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("like: expected 303, got %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, baseURL+"/api/feed", nil)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("get feed: %v", err)
	}
	var page feed.Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode feed: %v", err)
	}
	resp.Body.Close()
	if len(page.Items) != 1 || page.Items[0].Likes != 1 {
		t.Fatalf("expected one liked item, got %+v", page.Items)
	}

	// Logout clears the session and routes through the provider logout.
	req, _ = http.NewRequest(http.MethodGet, baseURL+"/logout", nil)
	req.AddCookie(sessionCookie)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("get logout: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("logout: expected 302, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); !strings.HasPrefix(loc, idp.URL+"/v2/logout") {
		t.Fatalf("logout: expected provider logout URL, got %q", loc)
	}
	var cleared *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "newswire_session" {
			cleared = c
		}
	}
	if cleared == nil || cleared.MaxAge >= 0 {
		t.Fatalf("logout: expected session cookie cleared")
	}
}
