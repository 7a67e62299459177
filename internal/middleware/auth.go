package middleware

import (
	"net/http"

	"github.com/ayush/secrets-app/backend/internal/auth"
	"github.com/ayush/secrets-app/backend/internal/logutil"
)

// RequireAuth resolves the session cookie and injects the identity into
// the request context. Anonymous requests are redirected to /login.
func RequireAuth(sessions *auth.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok, err := sessions.Resolve(r)
			if err != nil {
				log := logutil.GetOrDefault(r.Context())
				log.Error().Err(err).Msg("Unable to resolve session")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !ok {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			ctx := auth.WithIdentity(r.Context(), id)
			log := logutil.GetOrDefault(ctx).With().Str("user.id", id.ID).Logger()
			next.ServeHTTP(w, r.WithContext(logutil.WithLogger(ctx, log)))
		})
	}
}

// LoadIdentity is RequireAuth without the redirect: pages that only adapt
// to the login state use it.
func LoadIdentity(sessions *auth.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok, err := sessions.Resolve(r)
			if err != nil {
				log := logutil.GetOrDefault(r.Context())
				log.Warn().Err(err).Msg("Unable to resolve session")
			}
			if ok {
				r = r.WithContext(auth.WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
