package models

import "time"

// User is a credential record. A record has a password hash, a federated
// id, or both.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // never serialize
	GoogleID     string    `json:"google_id,omitempty"`
	Secret       string    `json:"secret,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Valid reports whether the record carries at least one credential.
func (u *User) Valid() bool {
	return u.Username != "" && (u.PasswordHash != "" || u.GoogleID != "")
}

// Identity returns the minimal projection stored in a session.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username}
}

// Identity is the authenticated user carried by a session.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// FederatedProfile is what an external identity provider tells us about
// the user after a successful login.
type FederatedProfile struct {
	Provider string
	ID       string
	Name     string
}

// SecretEntry is one row of the public secrets listing.
type SecretEntry struct {
	Username string
	Secret   string
}

// RegisterRequest is the form body for POST /register.
type RegisterRequest struct {
	Username string
	Password string
}

// LoginRequest is the form body for POST /login.
type LoginRequest struct {
	Username string
	Password string
}
