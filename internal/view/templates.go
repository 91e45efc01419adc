package view

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/wecare-insurance/portal/internal/records"
	"github.com/wecare-insurance/portal/internal/shared"
	"github.com/wecare-insurance/portal/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title         string
	CSRFToken     string
	Flash         *shared.FlashMessage
	CurrentPath   string
	User          shared.Identity
	ExpiringBadge int
	Data          any
}

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	tpl, err := template.New("root").Funcs(funcMap()).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"day": func(d *records.Date) string {
			if d == nil || d.IsZero() {
				return "N/A"
			}
			return d.Format("02 Jan 2006")
		},
		"dateValue": func(d *records.Date) string {
			if d == nil {
				return ""
			}
			return d.String()
		},
		"stamp": func(ts *records.Timestamp) string {
			if ts == nil || ts.IsZero() {
				return ""
			}
			return ts.Format("02 Jan 2006 15:04")
		},
		"inr":      shared.FormatINR,
		"inrShort": shared.FormatINRShort,
		"inrOrNA": func(v *float64) string {
			if v == nil || *v == 0 {
				return "N/A"
			}
			return shared.FormatINR(*v)
		},
		"payout": func(r records.Record) string {
			if p, ok := records.Payout(r); ok && p != 0 {
				return shared.FormatINR(p)
			}
			return "N/A"
		},
		"adminStatus": records.AdminStatus,
		"amount": func(v *float64) string {
			if v == nil {
				return ""
			}
			return fmt.Sprintf("%g", *v)
		},
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },
	}
}

// Pager feeds the pager partial.
type Pager struct {
	Path       string
	Query      string
	SizeParam  bool
	Pagination shared.Pagination
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}

// RenderHTML executes a template into a string, for documents that are not
// served directly (PDF sources).
func (e *Engine) RenderHTML(name string, data any) (string, error) {
	if e == nil {
		return "", fmt.Errorf("template engine not initialised")
	}
	var buf strings.Builder
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Page assembles the common template data for a request: CSRF token, the
// pending flash message and the signed-in user.
func Page(r *http.Request, csrf *shared.CSRFManager, title string, data any) TemplateData {
	sess := shared.SessionFromContext(r.Context())
	td := TemplateData{
		Title:       title,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if csrf != nil && sess != nil {
		td.CSRFToken, _ = csrf.EnsureToken(r.Context(), sess)
	}
	td.Flash = sess.PopFlash()
	if id, ok := shared.IdentityFromContext(r.Context()); ok {
		td.User = id
	}
	td.ExpiringBadge = shared.ExpiringFromContext(r.Context())
	return td
}
