package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/ayush/secrets-app/backend/internal/models"
)

// MemoryStore keeps credentials in process memory. Uniqueness checks and
// inserts happen under one lock, so concurrent registrations of the same
// username cannot both succeed.
type MemoryStore struct {
	mu         sync.RWMutex
	byID       map[string]*models.User
	byUsername map[string]string
	byGoogleID map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[string]*models.User),
		byUsername: make(map[string]string),
		byGoogleID: make(map[string]string),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, u *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(u)
}

func (s *MemoryStore) insertLocked(u *models.User) (*models.User, error) {
	if !u.Valid() {
		return nil, ErrIncompleteRecord
	}
	if _, ok := s.byUsername[u.Username]; ok {
		return nil, oops.Code("STORE_DUPLICATE_USERNAME").
			With("username", u.Username).
			Wrap(ErrUsernameTaken)
	}
	stored := *u
	stored.ID = uuid.NewString()
	stored.CreatedAt = time.Now()
	s.byID[stored.ID] = &stored
	s.byUsername[stored.Username] = stored.ID
	if stored.GoogleID != "" {
		s.byGoogleID[stored.GoogleID] = stored.ID
	}
	out := stored
	return &out, nil
}

func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[username]
	if !ok {
		return nil, ErrNotFound
	}
	out := *s.byID[id]
	return &out, nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *MemoryStore) FindOrCreateFederated(_ context.Context, googleID, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byGoogleID[googleID]; ok {
		out := *s.byID[id]
		return &out, nil
	}
	return s.insertLocked(&models.User{Username: username, GoogleID: googleID})
}

func (s *MemoryStore) SetSecret(_ context.Context, id, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.Secret = secret
	return nil
}

// ListSecrets returns every non-empty secret, oldest account first.
func (s *MemoryStore) ListSecrets(_ context.Context) ([]models.SecretEntry, error) {
	s.mu.RLock()
	users := make([]models.User, 0, len(s.byID))
	for _, u := range s.byID {
		if u.Secret != "" {
			users = append(users, *u)
		}
	}
	s.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	out := make([]models.SecretEntry, 0, len(users))
	for _, u := range users {
		out = append(out, models.SecretEntry{Username: u.Username, Secret: u.Secret})
	}
	return out, nil
}
