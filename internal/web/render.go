// Package web renders the server-side pages and serves static assets.
package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/samber/oops"

	"github.com/ayush/secrets-app/backend/internal/logutil"
	"github.com/ayush/secrets-app/backend/internal/models"
)

// Page names.
const (
	PageHome     = "home"
	PageLogin    = "login"
	PageRegister = "register"
	PageSecrets  = "secrets"
	PageSubmit   = "submit"
	PageError    = "error"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page is the data every template receives.
type Page struct {
	Title         string
	Error         string
	Identity      *models.Identity
	Username      string
	Secret        string
	Secrets       []models.SecretEntry
	GoogleEnabled bool
}

// Renderer executes the embedded page templates.
type Renderer struct {
	pages         map[string]*template.Template
	googleEnabled bool
}

// NewRenderer parses every page together with the shared layout.
func NewRenderer(googleEnabled bool) (*Renderer, error) {
	names := []string{PageHome, PageLogin, PageRegister, PageSecrets, PageSubmit, PageError}
	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		t, err := template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, oops.Code("WEB_TEMPLATE_INVALID").With("page", name).Wrap(err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages, googleEnabled: googleEnabled}, nil
}

// Render writes the named page with the given status. Template errors are
// logged and answered with a bare 500.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, p Page) {
	log := logutil.GetOrDefault(r.Context())
	t, ok := rd.pages[name]
	if !ok {
		log.Error().Str("page", name).Msg("Unknown page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	p.GoogleEnabled = rd.googleEnabled

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		log.Error().Err(err).Str("page", name).Msg("Unable to render page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Fail renders the generic error page with a 500 status.
func (rd *Renderer) Fail(w http.ResponseWriter, r *http.Request) {
	rd.Render(w, r, http.StatusInternalServerError, PageError, Page{Title: "Error"})
}
