package auth

import (
	"errors"
	"net/http"

	"github.com/ayush/secrets-app/backend/internal/logutil"
	"github.com/ayush/secrets-app/backend/internal/models"
	"github.com/ayush/secrets-app/backend/internal/observability"
	"github.com/ayush/secrets-app/backend/internal/web"
)

// Handler holds auth-related HTTP handlers.
type Handler struct {
	svc      *Service
	sessions *SessionStore
	provider FederatedProvider
	pages    *web.Renderer
	metrics  *observability.Metrics
}

// NewHandler wires the auth handlers. provider may be nil, which disables
// federated login.
func NewHandler(svc *Service, sessions *SessionStore, provider FederatedProvider, pages *web.Renderer, metrics *observability.Metrics) *Handler {
	return &Handler{svc: svc, sessions: sessions, provider: provider, pages: pages, metrics: metrics}
}

func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, web.PageLogin, web.Page{Title: "Login"})
}

func (h *Handler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, web.PageRegister, web.Page{Title: "Register"})
}

// Register creates a local account and logs it in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	log := logutil.GetOrDefault(r.Context())
	req := models.RegisterRequest{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}

	id, err := h.svc.Register(r.Context(), req)
	if err != nil {
		page := web.Page{Title: "Register", Username: req.Username}
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			h.metrics.Registrations.WithLabelValues(observability.ResultRejected).Inc()
			page.Error = verr.Message
			h.pages.Render(w, r, http.StatusBadRequest, web.PageRegister, page)
		case errors.Is(err, ErrUsernameTaken):
			h.metrics.Registrations.WithLabelValues(observability.ResultDuplicate).Inc()
			log.Info().Str("username", req.Username).Msg("Registration rejected, username exists")
			page.Error = ErrUsernameTaken.Error()
			h.pages.Render(w, r, http.StatusConflict, web.PageRegister, page)
		default:
			h.metrics.Registrations.WithLabelValues(observability.ResultError).Inc()
			log.Error().Err(err).Msg("Registration failed")
			h.pages.Fail(w, r)
		}
		return
	}

	h.metrics.Registrations.WithLabelValues(observability.ResultSuccess).Inc()
	h.establish(w, r, id)
}

// Login authenticates a local account and creates a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	log := logutil.GetOrDefault(r.Context())
	req := models.LoginRequest{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}

	id, err := h.svc.Authenticate(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			h.metrics.Logins.WithLabelValues("local", observability.ResultRejected).Inc()
			h.pages.Render(w, r, http.StatusUnauthorized, web.PageLogin, web.Page{
				Title:    "Login",
				Username: req.Username,
				Error:    ErrInvalidCredentials.Error(),
			})
			return
		}
		h.metrics.Logins.WithLabelValues("local", observability.ResultError).Inc()
		log.Error().Err(err).Msg("Login failed")
		h.pages.Fail(w, r)
		return
	}

	h.metrics.Logins.WithLabelValues("local", observability.ResultSuccess).Inc()
	h.establish(w, r, id)
}

// Logout destroys the current session and returns to the landing page.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Terminate(w, r)
	h.metrics.Logouts.Inc()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// GoogleLogin redirects to the provider consent page.
func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		http.NotFound(w, r)
		return
	}
	state, err := newState()
	if err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Msg("Unable to generate oauth state")
		h.pages.Fail(w, r)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth/google",
		HttpOnly: true,
		Secure:   h.sessions.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   stateTTL,
	})
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback completes federated login. Any failure sends the user
// back to the login page.
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		http.NotFound(w, r)
		return
	}
	log := logutil.GetOrDefault(r.Context())
	fail := func(result string) {
		h.metrics.Logins.WithLabelValues("google", result).Inc()
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}

	cookie, err := r.Cookie(stateCookie)
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth/google", MaxAge: -1})
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		log.Warn().Msg("OAuth callback with missing or mismatched state")
		fail(observability.ResultRejected)
		return
	}
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		log.Info().Str("error", errParam).Msg("Provider denied login")
		fail(observability.ResultRejected)
		return
	}

	profile, err := h.provider.Profile(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		log.Error().Err(err).Msg("OAuth exchange failed")
		fail(observability.ResultError)
		return
	}
	id, err := h.svc.AuthenticateFederated(r.Context(), profile)
	if err != nil {
		log.Error().Err(err).Msg("Federated login failed")
		fail(observability.ResultError)
		return
	}

	h.metrics.Logins.WithLabelValues("google", observability.ResultSuccess).Inc()
	h.establish(w, r, id)
}

func (h *Handler) establish(w http.ResponseWriter, r *http.Request, id models.Identity) {
	if _, err := h.sessions.Establish(r.Context(), w, id); err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Str("user.id", id.ID).Msg("Session creation failed")
		h.pages.Fail(w, r)
		return
	}
	http.Redirect(w, r, "/secrets", http.StatusSeeOther)
}
