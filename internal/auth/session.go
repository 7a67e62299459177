package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/ayush/secrets-app/backend/internal/logutil"
	"github.com/ayush/secrets-app/backend/internal/models"
)

const (
	SessionTTL    = 24 * time.Hour
	SessionCookie = "session_id"

	sessionKeyPrefix = "session:"
)

// SessionBackend stores opaque session payloads. Get returns nil, nil for
// a missing or expired key.
type SessionBackend interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, key string) error
}

// SessionStore maps opaque session ids to identities and manages the
// session cookie.
type SessionStore struct {
	backend      SessionBackend
	ttl          time.Duration
	secureCookie bool
}

func NewSessionStore(backend SessionBackend, ttl time.Duration, secureCookie bool) *SessionStore {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &SessionStore{backend: backend, ttl: ttl, secureCookie: secureCookie}
}

// Create stores a new session for the identity and returns its id.
func (s *SessionStore) Create(ctx context.Context, id models.Identity) (string, error) {
	payload, err := json.Marshal(id)
	if err != nil {
		return "", oops.Code("SESSION_ENCODE_FAILED").Wrap(err)
	}
	sid := uuid.New().String()
	if err := s.backend.Set(ctx, sessionKeyPrefix+sid, payload, s.ttl); err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").With("operation", "store session").Wrap(err)
	}
	return sid, nil
}

// Get returns the identity for a session. ok is false when the session is
// unknown or expired.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (id models.Identity, ok bool, err error) {
	if sessionID == "" {
		return id, false, nil
	}
	payload, err := s.backend.Get(ctx, sessionKeyPrefix+sessionID)
	if err != nil {
		return id, false, oops.Code("SESSION_LOOKUP_FAILED").Wrap(err)
	}
	if payload == nil {
		return id, false, nil
	}
	if err := json.Unmarshal(payload, &id); err != nil {
		return id, false, oops.Code("SESSION_DECODE_FAILED").Wrap(err)
	}
	return id, id.ID != "", nil
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.backend.Del(ctx, sessionKeyPrefix+sessionID); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").Wrap(err)
	}
	return nil
}

// Establish creates a session for the identity and sets the cookie.
func (s *SessionStore) Establish(ctx context.Context, w http.ResponseWriter, id models.Identity) (string, error) {
	sid, err := s.Create(ctx, id)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.ttl / time.Second),
	})
	return sid, nil
}

// Resolve reads the session cookie and returns the stored identity. The
// identity is not re-checked against the credential store.
func (s *SessionStore) Resolve(r *http.Request) (models.Identity, bool, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return models.Identity{}, false, nil
	}
	return s.Get(r.Context(), cookie.Value)
}

// Terminate deletes the session and expires the cookie. Backend failures
// are logged only.
func (s *SessionStore) Terminate(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if err := s.Delete(r.Context(), cookie.Value); err != nil {
			log := logutil.GetOrDefault(r.Context())
			log.Error().Err(err).Msg("Unable to delete session")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookie,
		MaxAge:   -1,
	})
}
