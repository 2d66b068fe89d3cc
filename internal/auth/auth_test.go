package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func newTestService(ttl time.Duration) *Service {
	return NewService(Config{
		Domain:        "login.example.com",
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
		CallbackURL:   "http://localhost:8080/callback",
		SessionSecret: "test-secret",
		SessionTTL:    ttl,
	})
}

func TestSessionRoundTrip(t *testing.T) {
	svc := newTestService(time.Hour)

	identity := Identity{Email: "alice@example.com", Name: "Alice", Admin: true}
	token, err := svc.MintSession(identity)
	if err != nil {
		t.Fatalf("mint session: %v", err)
	}

	got, err := svc.ParseSession(token)
	if err != nil {
		t.Fatalf("parse session: %v", err)
	}
	if got != identity {
		t.Fatalf("expected %+v, got %+v", identity, got)
	}
}

func TestSessionWrongSecretRejected(t *testing.T) {
	svc := newTestService(time.Hour)
	token, err := svc.MintSession(Identity{Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("mint session: %v", err)
	}

	other := NewService(Config{
		Domain:        "login.example.com",
		ClientID:      "client-id",
		SessionSecret: "different-secret",
	})
	if _, err := other.ParseSession(token); err != ErrInvalidSession {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
}

func TestSessionExpiryRejected(t *testing.T) {
	svc := newTestService(-time.Hour)
	token, err := svc.MintSession(Identity{Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("mint session: %v", err)
	}
	if _, err := svc.ParseSession(token); err != ErrSessionExpired {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestSessionGarbageRejected(t *testing.T) {
	svc := newTestService(time.Hour)
	if _, err := svc.ParseSession("not-a-token"); err != ErrInvalidSession {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
}

func TestLoginAndLogoutURLs(t *testing.T) {
	svc := newTestService(time.Hour)

	login := svc.LoginURL("state-123")
	if !strings.HasPrefix(login, "https://login.example.com/authorize?") {
		t.Fatalf("unexpected login url: %s", login)
	}
	if !strings.Contains(login, "state=state-123") || !strings.Contains(login, "client_id=client-id") {
		t.Fatalf("login url missing params: %s", login)
	}
	if !strings.Contains(login, "scope=openid+profile+email") {
		t.Fatalf("login url missing scopes: %s", login)
	}

	logout := svc.LogoutURL("http://localhost:8080/")
	if !strings.HasPrefix(logout, "https://login.example.com/v2/logout?") {
		t.Fatalf("unexpected logout url: %s", logout)
	}
	if !strings.Contains(logout, "returnTo=http%3A%2F%2Flocalhost%3A8080%2F") {
		t.Fatalf("logout url missing returnTo: %s", logout)
	}
}

func TestConfigured(t *testing.T) {
	if NewService(Config{}).Configured() {
		t.Fatalf("expected unconfigured service")
	}
	if !newTestService(time.Hour).Configured() {
		t.Fatalf("expected configured service")
	}
}

func TestFetchIdentity(t *testing.T) {
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/userinfo" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"email":    "alice@example.com",
			"nickname": "alice",
		})
	}))
	defer idp.Close()

	svc := NewService(Config{
		Domain:        idp.URL,
		ClientID:      "client-id",
		SessionSecret: "secret",
	})

	identity, err := svc.FetchIdentity(context.Background(), &oauth2.Token{AccessToken: "test-token"})
	if err != nil {
		t.Fatalf("fetch identity: %v", err)
	}
	if identity.Email != "alice@example.com" {
		t.Fatalf("unexpected email: %s", identity.Email)
	}
	if identity.Name != "alice" {
		t.Fatalf("expected nickname fallback, got %q", identity.Name)
	}
}
