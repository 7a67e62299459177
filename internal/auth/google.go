package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/samber/oops"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/ayush/secrets-app/backend/internal/models"
)

const (
	// GoogleUserInfoURL is the OpenID userinfo endpoint queried after the
	// code exchange.
	GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	stateCookie = "oauth_state"
	stateTTL    = 10 * 60
)

// FederatedProvider is an external identity provider.
type FederatedProvider interface {
	// AuthCodeURL returns the consent page URL for the given state.
	AuthCodeURL(state string) string

	// Profile exchanges an authorization code for the user's profile.
	Profile(ctx context.Context, code string) (models.FederatedProfile, error)
}

// GoogleProvider implements FederatedProvider with Google OAuth2.
type GoogleProvider struct {
	cfg         *oauth2.Config
	userInfoURL string
}

func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: GoogleUserInfoURL,
	}
}

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state)
}

func (p *GoogleProvider) Profile(ctx context.Context, code string) (models.FederatedProfile, error) {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return models.FederatedProfile{}, oops.Code("AUTH_OAUTH_EXCHANGE_FAILED").With("provider", "google").Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return models.FederatedProfile{}, oops.Code("AUTH_OAUTH_PROFILE_FAILED").Wrap(err)
	}
	resp, err := p.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return models.FederatedProfile{}, oops.Code("AUTH_OAUTH_PROFILE_FAILED").With("provider", "google").Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return models.FederatedProfile{}, oops.Code("AUTH_OAUTH_PROFILE_FAILED").
			With("provider", "google").
			With("status", resp.StatusCode).
			Errorf("userinfo returned %d: %s", resp.StatusCode, string(body))
	}

	var info struct {
		Sub  string `json:"sub"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return models.FederatedProfile{}, oops.Code("AUTH_OAUTH_PROFILE_FAILED").With("provider", "google").Wrap(err)
	}
	return models.FederatedProfile{Provider: "google", ID: info.Sub, Name: info.Name}, nil
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
