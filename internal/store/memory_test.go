package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ayush/secrets-app/backend/internal/models"
)

func TestMemoryStore_CreateAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	created, err := s.CreateUser(ctx, &models.User{Username: "alice", PasswordHash: "h"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	byName, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)
	assert.Equal(t, "h", byName.PasswordHash)

	byID, err := s.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
}

func TestMemoryStore_NotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.SetSecret(ctx, "missing", "x"), ErrNotFound)
}

func TestMemoryStore_DuplicateUsername(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.CreateUser(ctx, &models.User{Username: "bob", PasswordHash: "a"})
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, &models.User{Username: "bob", PasswordHash: "b"})

	assert.ErrorIs(t, err, ErrUsernameTaken)
	assert.Equal(t, 1, s.Count("bob"))
}

func TestMemoryStore_ConcurrentRegistrationCreatesOneRecord(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewMemoryStore()
	ctx := context.Background()

	const attempts = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateUser(ctx, &models.User{Username: "carol", PasswordHash: "h"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrUsernameTaken):
				dupes++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, dupes)
	assert.Equal(t, 1, s.Count("carol"))
}

func TestMemoryStore_FindOrCreateFederatedIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, err := s.FindOrCreateFederated(ctx, "g-123", "google-g-123")
	require.NoError(t, err)
	second, err := s.FindOrCreateFederated(ctx, "g-123", "google-g-123")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "g-123", second.GoogleID)
	assert.Empty(t, second.PasswordHash)
	assert.Equal(t, 1, s.Count("google-g-123"))
}

func TestMemoryStore_FederatedUsernameCollision(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.CreateUser(ctx, &models.User{Username: "google-9", PasswordHash: "h"})
	require.NoError(t, err)
	_, err = s.FindOrCreateFederated(ctx, "9", "google-9")

	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestMemoryStore_SecretsListing(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	alice, err := s.CreateUser(ctx, &models.User{Username: "alice", PasswordHash: "h"})
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, &models.User{Username: "quiet", PasswordHash: "h"})
	require.NoError(t, err)
	dave, err := s.CreateUser(ctx, &models.User{Username: "dave", PasswordHash: "h"})
	require.NoError(t, err)

	require.NoError(t, s.SetSecret(ctx, alice.ID, "I like cats"))
	require.NoError(t, s.SetSecret(ctx, dave.ID, "first"))
	require.NoError(t, s.SetSecret(ctx, dave.ID, "second"))

	list, err := s.ListSecrets(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.SecretEntry{
		{Username: "alice", Secret: "I like cats"},
		{Username: "dave", Secret: "second"},
	}, list)
}

func TestMemoryStore_ReturnedUsersAreCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	u, err := s.CreateUser(ctx, &models.User{Username: "erin", PasswordHash: "h"})
	require.NoError(t, err)
	u.Secret = "mutated"

	stored, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Secret)
}

func TestMemoryStore_RejectsIncompleteRecord(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.CreateUser(context.Background(), &models.User{Username: "nobody"})
	assert.ErrorIs(t, err, ErrIncompleteRecord)
	assert.Equal(t, 0, s.Count("nobody"))
}
