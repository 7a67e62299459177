package secrets

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/ayush/secrets-app/backend/internal/auth"
	"github.com/ayush/secrets-app/backend/internal/logutil"
	"github.com/ayush/secrets-app/backend/internal/models"
	"github.com/ayush/secrets-app/backend/internal/observability"
	"github.com/ayush/secrets-app/backend/internal/store"
	"github.com/ayush/secrets-app/backend/internal/web"
)

// MaxSecretLen bounds the stored secret, in characters.
const MaxSecretLen = 1000

// SecretStore defines the interface for secret persistence.
type SecretStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	SetSecret(ctx context.Context, id, secret string) error
	ListSecrets(ctx context.Context) ([]models.SecretEntry, error)
}

// Handler holds the landing and secrets HTTP handlers.
type Handler struct {
	store    SecretStore
	sessions *auth.SessionStore
	pages    *web.Renderer
	metrics  *observability.Metrics
}

func NewHandler(store SecretStore, sessions *auth.SessionStore, pages *web.Renderer, metrics *observability.Metrics) *Handler {
	return &Handler{store: store, sessions: sessions, pages: pages, metrics: metrics}
}

// Home renders the landing page.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	page := web.Page{Title: "Home"}
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		page.Identity = &id
	}
	h.pages.Render(w, r, http.StatusOK, web.PageHome, page)
}

// List renders every submitted secret.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListSecrets(r.Context())
	if err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Msg("Unable to list secrets")
		h.pages.Fail(w, r)
		return
	}
	page := web.Page{Title: "Secrets", Secrets: entries}
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		page.Identity = &id
	}
	h.pages.Render(w, r, http.StatusOK, web.PageSecrets, page)
}

// SubmitPage renders the submission form, prefilled with the current secret.
func (h *Handler) SubmitPage(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	user, err := h.store.GetUserByID(r.Context(), id.ID)
	if err != nil {
		h.storeFailure(w, r, err)
		return
	}
	h.pages.Render(w, r, http.StatusOK, web.PageSubmit, web.Page{
		Title:    "Submit",
		Identity: &id,
		Secret:   user.Secret,
	})
}

// Submit stores the secret for the current identity, replacing any
// previous one.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	secret := strings.TrimSpace(r.PostFormValue("secret"))

	if msg := validateSecret(secret); msg != "" {
		h.pages.Render(w, r, http.StatusBadRequest, web.PageSubmit, web.Page{
			Title:    "Submit",
			Identity: &id,
			Secret:   secret,
			Error:    msg,
		})
		return
	}

	if err := h.store.SetSecret(r.Context(), id.ID, secret); err != nil {
		h.storeFailure(w, r, err)
		return
	}
	h.metrics.SecretsSubmitted.Inc()
	http.Redirect(w, r, "/secrets", http.StatusSeeOther)
}

// storeFailure handles a failed lookup of the session's user. A session
// whose user is gone is terminated.
func (h *Handler) storeFailure(w http.ResponseWriter, r *http.Request, err error) {
	log := logutil.GetOrDefault(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		log.Warn().Msg("Session refers to a missing user")
		h.sessions.Terminate(w, r)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	log.Error().Err(err).Msg("Secret store failure")
	h.pages.Fail(w, r)
}

func validateSecret(secret string) string {
	switch {
	case secret == "":
		return "secret cannot be empty"
	case utf8.RuneCountInString(secret) > MaxSecretLen:
		return "secret is too long"
	}
	return ""
}
