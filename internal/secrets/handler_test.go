package secrets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/secrets-app/backend/internal/auth"
	"github.com/ayush/secrets-app/backend/internal/models"
	"github.com/ayush/secrets-app/backend/internal/observability"
	"github.com/ayush/secrets-app/backend/internal/store"
	"github.com/ayush/secrets-app/backend/internal/web"
)

type fixture struct {
	h        *Handler
	users    *store.MemoryStore
	sessions *auth.SessionStore
	metrics  *observability.Metrics
}

func newFixture(t *testing.T, st SecretStore) *fixture {
	t.Helper()
	users := store.NewMemoryStore()
	if st == nil {
		st = users
	}
	backend, err := store.NewMemorySessions(time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	sessions := auth.NewSessionStore(backend, time.Hour, false)
	pages, err := web.NewRenderer(false)
	require.NoError(t, err)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return &fixture{
		h:        NewHandler(st, sessions, pages, metrics),
		users:    users,
		sessions: sessions,
		metrics:  metrics,
	}
}

func (f *fixture) register(t *testing.T, username string) models.Identity {
	t.Helper()
	u, err := f.users.CreateUser(context.Background(), &models.User{Username: username, PasswordHash: "h"})
	require.NoError(t, err)
	return u.Identity()
}

// asUser attaches the identity the way RequireAuth would.
func asUser(req *http.Request, id models.Identity) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), id))
}

func submitForm(secret string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(url.Values{"secret": {secret}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestSubmitThenList(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.register(t, "alice")

	rec := httptest.NewRecorder()
	f.h.Submit(rec, asUser(submitForm("  hi  "), alice))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/secrets", rec.Header().Get("Location"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SecretsSubmitted))

	rec = httptest.NewRecorder()
	f.h.List(rec, asUser(httptest.NewRequest(http.MethodGet, "/secrets", nil), alice))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice")
	assert.Contains(t, rec.Body.String(), ">hi<")
}

func TestSubmitOverwritesPreviousSecret(t *testing.T) {
	f := newFixture(t, nil)
	dave := f.register(t, "dave")

	f.h.Submit(httptest.NewRecorder(), asUser(submitForm("first"), dave))
	f.h.Submit(httptest.NewRecorder(), asUser(submitForm("second"), dave))

	list, err := f.users.ListSecrets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.SecretEntry{{Username: "dave", Secret: "second"}}, list)
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		want   string
	}{
		{name: "empty", secret: "   ", want: "secret cannot be empty"},
		{name: "too long", secret: strings.Repeat("s", MaxSecretLen+1), want: "secret is too long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			alice := f.register(t, "alice")
			rec := httptest.NewRecorder()

			f.h.Submit(rec, asUser(submitForm(tt.secret), alice))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestSubmitForDeletedUserEndsSession(t *testing.T) {
	f := newFixture(t, nil)
	ghost := models.Identity{ID: "gone", Username: "ghost"}
	sid, err := f.sessions.Create(context.Background(), ghost)
	require.NoError(t, err)

	req := asUser(submitForm("boo"), ghost)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: sid})
	rec := httptest.NewRecorder()
	f.h.Submit(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	_, ok, err := f.sessions.Get(context.Background(), sid)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubmitPagePrefillsSecret(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.register(t, "alice")
	require.NoError(t, f.users.SetSecret(context.Background(), alice.ID, "I like cats"))

	rec := httptest.NewRecorder()
	f.h.SubmitPage(rec, asUser(httptest.NewRequest(http.MethodGet, "/submit", nil), alice))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="I like cats"`)
}

func TestHome(t *testing.T) {
	f := newFixture(t, nil)

	rec := httptest.NewRecorder()
	f.h.Home(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `href="/login"`)
}

type failingStore struct{}

func (failingStore) GetUserByID(context.Context, string) (*models.User, error) {
	return nil, errors.New("timeout")
}
func (failingStore) SetSecret(context.Context, string, string) error { return errors.New("timeout") }
func (failingStore) ListSecrets(context.Context) ([]models.SecretEntry, error) {
	return nil, errors.New("timeout")
}

func TestStoreErrorsRenderErrorPage(t *testing.T) {
	f := newFixture(t, failingStore{})
	id := models.Identity{ID: "u1", Username: "alice"}

	rec := httptest.NewRecorder()
	f.h.List(rec, asUser(httptest.NewRequest(http.MethodGet, "/secrets", nil), id))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	f.h.Submit(rec, asUser(submitForm("hi"), id))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	f.h.SubmitPage(rec, asUser(httptest.NewRequest(http.MethodGet, "/submit", nil), id))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
