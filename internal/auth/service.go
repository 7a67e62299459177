package auth

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/samber/oops"

	"github.com/ayush/secrets-app/backend/internal/models"
	"github.com/ayush/secrets-app/backend/internal/store"
)

// Input limits. bcrypt only looks at the first 72 bytes of a password.
const (
	MaxUsernameLen = 64
	MaxPasswordLen = 72
)

// UserStore defines the interface for credential persistence.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindOrCreateFederated(ctx context.Context, googleID, username string) (*models.User, error)
}

// Service verifies credentials and creates accounts.
type Service struct {
	users     UserStore
	hasher    PasswordHasher
	dummyHash string
}

func NewService(users UserStore, hasher PasswordHasher) (*Service, error) {
	// Unknown usernames are compared against this hash so a failed login
	// costs the same whether or not the account exists.
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, oops.Code("AUTH_INIT_FAILED").With("operation", "hash placeholder password").Wrap(err)
	}
	return &Service{users: users, hasher: hasher, dummyHash: dummy}, nil
}

// Register validates the input, hashes the password and inserts the user.
// The insert itself enforces username uniqueness.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (models.Identity, error) {
	username := strings.TrimSpace(req.Username)
	if err := validate(username, req.Password); err != nil {
		return models.Identity{}, err
	}

	hashed, err := s.hasher.Hash(req.Password)
	if err != nil {
		return models.Identity{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := s.users.CreateUser(ctx, &models.User{Username: username, PasswordHash: hashed})
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			return models.Identity{}, oops.Code("AUTH_USERNAME_TAKEN").
				With("username", username).
				Wrap(ErrUsernameTaken)
		}
		return models.Identity{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}
	return user.Identity(), nil
}

// Authenticate checks a username and password against the store. Passwords
// longer than any that Register accepts fail without touching the hasher.
func (s *Service) Authenticate(ctx context.Context, req models.LoginRequest) (models.Identity, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" || len(req.Password) > MaxPasswordLen {
		return models.Identity{}, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return models.Identity{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by username").
			Wrap(err)
	}

	target := s.dummyHash
	if user != nil && user.PasswordHash != "" {
		target = user.PasswordHash
	}
	valid := s.hasher.Compare(ctx, req.Password, target)

	if user == nil || user.PasswordHash == "" || !valid {
		return models.Identity{}, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}
	return user.Identity(), nil
}

// AuthenticateFederated finds or creates the user behind a provider
// profile. No password is involved.
func (s *Service) AuthenticateFederated(ctx context.Context, profile models.FederatedProfile) (models.Identity, error) {
	if profile.ID == "" {
		return models.Identity{}, oops.Code("AUTH_FEDERATED_FAILED").Errorf("provider returned an empty subject")
	}
	user, err := s.users.FindOrCreateFederated(ctx, profile.ID, FederatedUsername(profile))
	if err != nil {
		return models.Identity{}, oops.Code("AUTH_FEDERATED_FAILED").
			With("provider", profile.Provider).
			Wrap(err)
	}
	return user.Identity(), nil
}

// FederatedUsername is the username assigned to a first-time federated
// user: provider name and subject, which is unique per provider.
func FederatedUsername(p models.FederatedProfile) string {
	provider := p.Provider
	if provider == "" {
		provider = "google"
	}
	return provider + "-" + p.ID
}

func validate(username, password string) error {
	var verr *ValidationError
	switch {
	case username == "":
		verr = &ValidationError{Field: "username", Message: "username is required"}
	case utf8.RuneCountInString(username) > MaxUsernameLen:
		verr = &ValidationError{Field: "username", Message: "username is too long"}
	case password == "":
		verr = &ValidationError{Field: "password", Message: "password is required"}
	case len(password) > MaxPasswordLen:
		verr = &ValidationError{Field: "password", Message: "password is too long"}
	default:
		return nil
	}
	return oops.Code("AUTH_INVALID_INPUT").With("field", verr.Field).Wrap(verr)
}
