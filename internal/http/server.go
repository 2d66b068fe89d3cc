package httpapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/newswire-app/newswire/internal/auth"
	"github.com/newswire-app/newswire/internal/config"
	"github.com/newswire-app/newswire/internal/feed"
	"github.com/newswire-app/newswire/internal/model"
	"github.com/newswire-app/newswire/internal/rate"
	"github.com/newswire-app/newswire/internal/reaction"
	"github.com/newswire-app/newswire/internal/store"
)

const (
	sessionCookie = "newswire_session"
	stateCookie   = "newswire_oauth_state"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

type Server struct {
	feed      *feed.Service
	reactions *reaction.Service
	auth      *auth.Service
	limiter   rate.Limiter
	cfg       config.Config
	templates *Templates
}

func NewServer(feedSvc *feed.Service, reactionSvc *reaction.Service, authSvc *auth.Service, limiter rate.Limiter, cfg config.Config) (*Server, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	return &Server{
		feed:      feedSvc,
		reactions: reactionSvc,
		auth:      authSvc,
		limiter:   limiter,
		cfg:       cfg,
		templates: tmpl,
	}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		s.handleAPI(w, r)
		return
	}
	s.handleHTML(w, r)
}

func (s *Server) handleHTML(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.renderFeedPage(w, r, 1)
		return
	}
	if strings.HasPrefix(path, "/page/") {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.handleFeedPage(w, r)
		return
	}
	if strings.HasPrefix(path, "/like/") {
		s.handleReaction(w, r, true)
		return
	}
	if strings.HasPrefix(path, "/dislike/") {
		s.handleReaction(w, r, false)
		return
	}
	if path == "/newsfeed" {
		s.handleNewsfeed(w, r)
		return
	}
	if path == "/login" {
		s.handleLogin(w, r)
		return
	}
	if path == "/callback" {
		s.handleCallback(w, r)
		return
	}
	if path == "/logout" {
		s.handleLogout(w, r)
		return
	}
	if path == "/sessioncheck" {
		s.handleSessionCheck(w, r)
		return
	}
	if path == "/profile" {
		s.handleProfile(w, r)
		return
	}
	if path == "/admin" || strings.HasPrefix(path, "/admin/") {
		s.handleAdminRoutes(w, r)
		return
	}
	if path == "/favicon.svg" {
		s.serveFavicon(w, r)
		return
	}
	if path == "/robots.txt" {
		s.serveRobotsTxt(w, r)
		return
	}

	notFound(w)
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")
	segments := splitPath(path)

	switch {
	case len(segments) == 1 && segments[0] == "feed":
		if r.Method == http.MethodGet {
			s.handleAPIFeed(w, r)
			return
		}
	case len(segments) == 1 && segments[0] == "newsfeed":
		if r.Method == http.MethodGet {
			s.handleNewsfeed(w, r)
			return
		}
	case len(segments) == 1 && segments[0] == "healthz":
		if r.Method == http.MethodGet {
			s.handleHealthz(w, r)
			return
		}
	case len(segments) == 1 && segments[0] == "version":
		if r.Method == http.MethodGet {
			s.handleVersion(w, r)
			return
		}
	}

	notFound(w)
}

func (s *Server) baseTemplateData(r *http.Request, title string) map[string]any {
	data := map[string]any{"Title": title}
	if identity := s.optionalIdentity(r); identity != nil {
		data["CurrentUser"] = identity
	}
	data["LoginConfigured"] = s.auth.Configured()
	return data
}

func (s *Server) handleFeedPage(w http.ResponseWriter, r *http.Request) {
	numStr := strings.TrimPrefix(r.URL.Path, "/page/")
	num, err := strconv.Atoi(numStr)
	if err != nil || num < 1 {
		notFound(w)
		return
	}
	s.renderFeedPage(w, r, num)
}

func (s *Server) renderFeedPage(w http.ResponseWriter, r *http.Request, pageNum int) {
	page, err := s.feed.RankedPage(r.Context(), pageNum, feed.DefaultPageSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, page)
		return
	}

	data := s.baseTemplateData(r, "Newswire - Reader Ranked News")
	data["Page"] = page
	data["HasPrev"] = pageNum > 1
	data["HasNext"] = pageNum < page.TotalPages
	data["PrevPage"] = pageNum - 1
	data["NextPage"] = pageNum + 1
	redirectPath := "/"
	if pageNum > 1 {
		redirectPath = fmt.Sprintf("/page/%d", pageNum)
	}
	data["RedirectPath"] = redirectPath

	// Reaction state for the signed-in reader so the buttons can show
	// the current stance. Always a map so templates never nil-index.
	userReactions := map[int64]model.Reaction{}
	identity := s.optionalIdentity(r)
	if identity != nil && len(page.Items) > 0 {
		itemIDs := make([]int64, len(page.Items))
		for i, item := range page.Items {
			itemIDs[i] = item.ID
		}
		if reactions, err := s.reactions.ReactionsFor(r.Context(), identity.Email, itemIDs); err == nil && reactions != nil {
			userReactions = reactions
		}
	}
	data["UserReactions"] = userReactions

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.Home.ExecuteTemplate(w, "layout", data); err != nil {
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) handleReaction(w http.ResponseWriter, r *http.Request, isLike bool) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRateLimit(w, r, "reaction", s.cfg.RateLimits.ReactionPerMinute) {
		return
	}

	prefix := "/like/"
	if !isLike {
		prefix = "/dislike/"
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, prefix), 10, 64)
	if err != nil || id <= 0 {
		notFound(w)
		return
	}

	identity := s.optionalIdentity(r)
	if identity == nil {
		if wantsJSON(r) {
			writeError(w, http.StatusUnauthorized, errors.New("login required"))
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	state, err := s.reactions.Toggle(r.Context(), identity.Email, id, isLike)
	if err != nil {
		switch {
		case errors.Is(err, reaction.ErrUnknownUser):
			// The session outlived its account; force a fresh login.
			clearCookie(w, sessionCookie)
			if wantsJSON(r) {
				writeError(w, http.StatusUnauthorized, err)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		case errors.Is(err, store.ErrNotFound):
			notFound(w)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"item_id": id, "state": state})
		return
	}
	http.Redirect(w, r, redirectTarget(r), http.StatusSeeOther)
}

// handleNewsfeed returns the latest items as a plain JSON array, the
// shape consumed by external feed readers.
func (s *Server) handleNewsfeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), feed.DefaultRecentLimit)
	items, err := s.feed.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.auth.Configured() {
		writeError(w, http.StatusServiceUnavailable, errors.New("login is not configured"))
		return
	}
	if !s.allowRateLimit(w, r, "login", s.cfg.RateLimits.LoginPerMinute) {
		return
	}

	state := s.auth.NewState()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.auth.LoginURL(state), http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.auth.Configured() {
		writeError(w, http.StatusServiceUnavailable, errors.New("login is not configured"))
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		writeError(w, http.StatusBadRequest, errors.New("state mismatch"))
		return
	}
	clearCookie(w, stateCookie)

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing code"))
		return
	}
	token, err := s.auth.Exchange(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Errorf("token exchange failed: %w", err))
		return
	}
	identity, err := s.auth.FetchIdentity(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	user, err := s.reactions.UpsertUser(r.Context(), identity.Name, identity.Email)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			writeError(w, http.StatusConflict, errors.New("display name already taken"))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	// Admin comes from the stored row, so a promotion takes effect on
	// the next login.
	session, err := s.auth.MintSession(auth.Identity{Email: user.Email, Name: user.Username, Admin: user.Admin})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session,
		Path:     "/",
		MaxAge:   int(s.auth.SessionTTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	clearCookie(w, sessionCookie)
	if s.auth.Configured() {
		http.Redirect(w, r, s.auth.LogoutURL(s.cfg.Server.BaseURL+"/"), http.StatusFound)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleSessionCheck reports the caller's session claims, mostly for
// debugging login setups.
func (s *Server) handleSessionCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	identity := s.optionalIdentity(r)
	if identity == nil {
		writeError(w, http.StatusUnauthorized, errors.New("no active session"))
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	identity := s.optionalIdentity(r)
	if identity == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	user, err := s.reactions.UserByEmail(r.Context(), identity.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			clearCookie(w, sessionCookie)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	data := s.baseTemplateData(r, "Profile - Newswire")
	data["User"] = user
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.Profile.ExecuteTemplate(w, "layout", data); err != nil {
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) handleAdminRoutes(w http.ResponseWriter, r *http.Request) {
	segments := splitPath(r.URL.Path)
	switch {
	case len(segments) == 1:
		s.handleAdmin(w, r)
	case len(segments) == 3 && segments[1] == "users" && segments[2] == "promote":
		s.handleAdminPromote(w, r)
	case len(segments) == 4 && segments[1] == "users" && segments[3] == "delete":
		s.handleAdminDeleteUser(w, r, segments[2])
	default:
		notFound(w)
	}
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}

	users, err := s.reactions.Users(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	data := s.baseTemplateData(r, "Admin - Newswire")
	data["Users"] = users
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.Admin.ExecuteTemplate(w, "layout", data); err != nil {
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) handleAdminPromote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing email"))
		return
	}
	// A missing account is not fatal; the admin list simply stays as is.
	if err := s.reactions.Promote(r.Context(), email); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Server) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request, idStr string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		notFound(w)
		return
	}
	// Deleting an already absent user lands back on the list either way.
	if err := s.reactions.DeleteUser(r.Context(), id); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Server) handleAPIFeed(w http.ResponseWriter, r *http.Request) {
	pageNum := parseIntDefault(r.URL.Query().Get("page"), 1)
	size := parseIntDefault(r.URL.Query().Get("size"), feed.DefaultPageSize)
	page, err := s.feed.RankedPage(r.Context(), pageNum, size)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.feed.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"version": Version})
}

func (s *Server) serveFavicon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write(faviconSVG)
}

func (s *Server) serveRobotsTxt(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	robotsTxt := `User-agent: *
Allow: /

Disallow: /api/
Disallow: /admin
Disallow: /login
Disallow: /callback
Disallow: /sessioncheck
`
	w.Write([]byte(robotsTxt))
}

func (s *Server) allowRateLimit(w http.ResponseWriter, r *http.Request, action string, limit int) bool {
	if limit <= 0 {
		return true
	}
	key := fmt.Sprintf("%s:ip:%s", action, s.clientIP(r))
	if ok, retry := s.limiter.Allow(key, limit, time.Minute); !ok {
		writeRateLimit(w, retry)
		return false
	}
	return true
}

func (s *Server) optionalIdentity(r *http.Request) *auth.Identity {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	identity, err := s.auth.ParseSession(cookie.Value)
	if err != nil {
		return nil
	}
	return &identity
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity := s.optionalIdentity(r)
	if identity == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return auth.Identity{}, false
	}
	if !identity.Admin {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return auth.Identity{}, false
	}
	return *identity, true
}

func (s *Server) clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// redirectTarget returns the in-site path a form asked to land on,
// falling back to the front page for anything off-site.
func redirectTarget(r *http.Request) string {
	target := r.FormValue("redirect")
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return "/"
	}
	return target
}

func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeRateLimit(w http.ResponseWriter, retry time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":       "rate limit exceeded",
		"retry_after": int(retry.Seconds()),
	})
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, errors.New("not found"))
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return def
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
