// Package auth defines the current user and the credentials store.
package auth

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotLoggedIn is returned when no credentials are stored.
var ErrNotLoggedIn = errors.New("not logged in")

// User is the signed-in user and the bearer token issued for them.
type User struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Image       string `json:"image,omitempty"`
	Token       string `json:"token"`
}

// LoggedIn reports whether the user carries credentials.
func (u User) LoggedIn() bool {
	return u.Username != "" && u.Token != ""
}

// Store defines persistence operations for credentials.
type Store interface {
	// Load returns the stored user. Returns ErrNotLoggedIn if none is stored.
	Load(ctx context.Context) (User, error)
	// Save replaces the stored user.
	Save(ctx context.Context, u User) error
	// Clear removes stored credentials.
	Clear(ctx context.Context) error
}

// TokenProvider returns a function that reads the bearer token from store
// on every call, so a token refreshed on disk is picked up by the next
// request or connection.
func TokenProvider(store Store) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		u, err := store.Load(ctx)
		if err != nil {
			return "", fmt.Errorf("load credentials: %w", err)
		}
		if u.Token == "" {
			return "", ErrNotLoggedIn
		}
		return u.Token, nil
	}
}
