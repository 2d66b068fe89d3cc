// Package auth handles login via an external OpenID Connect provider
// and the signed session cookies minted after a successful callback.
// Password handling is delegated to the provider entirely.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrSessionExpired = errors.New("session expired")
)

// Identity is the authenticated caller as carried in the session token.
// Admin is captured at login time and refreshed on the next login after
// a promotion.
type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Admin bool   `json:"admin"`
}

type Config struct {
	// Domain is the provider host, e.g. "example.eu.auth0.com". A full
	// URL with scheme is accepted as well, which local test providers use.
	Domain        string
	ClientID      string
	ClientSecret  string
	CallbackURL   string
	SessionSecret string
	SessionTTL    time.Duration
}

type Service struct {
	oauth      *oauth2.Config
	domain     string
	sessionKey []byte
	sessionTTL time.Duration
}

func NewService(cfg Config) *Service {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	base := issuerURL(cfg.Domain)
	return &Service{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  base + "/authorize",
				TokenURL: base + "/oauth/token",
			},
		},
		domain:     cfg.Domain,
		sessionKey: []byte(cfg.SessionSecret),
		sessionTTL: ttl,
	}
}

// Configured reports whether a provider is set up. Without one the login
// routes answer 503 while the rest of the site stays readable.
func (s *Service) Configured() bool {
	return s.domain != "" && s.oauth.ClientID != "" && len(s.sessionKey) > 0
}

// NewState returns an opaque value tying the authorize redirect to the
// callback that follows it.
func (s *Service) NewState() string {
	return uuid.NewString()
}

func (s *Service) LoginURL(state string) string {
	return s.oauth.AuthCodeURL(state)
}

// LogoutURL ends the provider-side session and sends the browser back
// to returnTo.
func (s *Service) LogoutURL(returnTo string) string {
	q := url.Values{}
	q.Set("client_id", s.oauth.ClientID)
	q.Set("returnTo", returnTo)
	return issuerURL(s.domain) + "/v2/logout?" + q.Encode()
}

func (s *Service) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return s.oauth.Exchange(ctx, code)
}

// FetchIdentity resolves the provider's userinfo for an exchanged token.
// The email claim is required; the display name falls back to the
// nickname and then to the email itself.
func (s *Service) FetchIdentity(ctx context.Context, token *oauth2.Token) (Identity, error) {
	client := s.oauth.Client(ctx, token)
	resp, err := client.Get(issuerURL(s.domain) + "/userinfo")
	if err != nil {
		return Identity{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Identity{}, fmt.Errorf("userinfo returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Nickname string `json:"nickname"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Identity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Email == "" {
		return Identity{}, errors.New("userinfo has no email claim")
	}
	name := info.Name
	if name == "" {
		name = info.Nickname
	}
	if name == "" {
		name = info.Email
	}
	return Identity{Email: info.Email, Name: name}, nil
}

type sessionClaims struct {
	Name  string `json:"name"`
	Admin bool   `json:"admin"`
	jwt.RegisteredClaims
}

// MintSession signs a session token for the identity.
func (s *Service) MintSession(identity Identity) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Name:  identity.Name,
		Admin: identity.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Email,
			Issuer:    "newswire",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.sessionKey)
}

// ParseSession validates a session token and returns the identity it
// carries.
func (s *Service) ParseSession(raw string) (Identity, error) {
	token, err := jwt.ParseWithClaims(raw, &sessionClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, ErrInvalidSession
			}
			return s.sessionKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithIssuer("newswire"),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrSessionExpired
		}
		return Identity{}, ErrInvalidSession
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidSession
	}
	return Identity{Email: claims.Subject, Name: claims.Name, Admin: claims.Admin}, nil
}

// SessionTTL is the cookie lifetime matching the token expiry.
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

func issuerURL(domain string) string {
	if strings.Contains(domain, "://") {
		return strings.TrimSuffix(domain, "/")
	}
	return "https://" + domain
}
