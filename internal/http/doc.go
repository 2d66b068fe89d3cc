// Package httpapp provides the HTTP server for Newswire: the
// server-rendered ranked feed, reaction endpoints, login through an
// OpenID Connect provider, and the JSON API under /api/.
package httpapp
