package httpapp

import (
	"embed"
	"html/template"
	"net/url"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/favicon.svg
var faviconSVG []byte

type Templates struct {
	Home    *template.Template
	Profile *template.Template
	Admin   *template.Template
}

func loadTemplates() (*Templates, error) {
	funcs := template.FuncMap{
		"formatTime": func(unix int64) string {
			if unix <= 0 {
				return ""
			}
			return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
		},
		"hostname": func(raw string) string {
			u, err := url.Parse(raw)
			if err != nil || u.Host == "" {
				return ""
			}
			return strings.TrimPrefix(u.Host, "www.")
		},
		"truncate": func(s string, n int) string {
			if len(s) <= n {
				return s
			}
			return s[:n]
		},
	}

	// Load layout
	layoutContent, err := templateFS.ReadFile("templates/layout.html")
	if err != nil {
		return nil, err
	}

	// Helper to create a page template
	makePage := func(pageName string) (*template.Template, error) {
		pageContent, err := templateFS.ReadFile("templates/" + pageName + ".html")
		if err != nil {
			return nil, err
		}
		// Parse layout with the page content
		t := template.New("layout").Funcs(funcs)
		t, err = t.Parse(string(layoutContent))
		if err != nil {
			return nil, err
		}
		t, err = t.Parse(string(pageContent))
		if err != nil {
			return nil, err
		}
		return t, nil
	}

	home, err := makePage("home")
	if err != nil {
		return nil, err
	}

	profile, err := makePage("profile")
	if err != nil {
		return nil, err
	}

	admin, err := makePage("admin")
	if err != nil {
		return nil, err
	}

	return &Templates{
		Home:    home,
		Profile: profile,
		Admin:   admin,
	}, nil
}
