package spotify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"

	"github.com/spoteamfy/spoteamfy/internal/config"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// scopes requested during the one-time authorization grant. They cover
// reading listening history plus the playlist permissions the refresh
// token is provisioned with.
var scopes = []string{
	spotifyauth.ScopeUserReadRecentlyPlayed,
	spotifyauth.ScopeUserTopRead,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
}

// Authorizer runs the one-time authorization-code grant for a user,
// producing the refresh token stored in the users file.
type Authorizer struct {
	auth *spotifyauth.Authenticator
}

// NewAuthorizer builds an Authorizer from a user's client credentials.
func NewAuthorizer(user config.User) *Authorizer {
	return &Authorizer{
		auth: spotifyauth.New(
			spotifyauth.WithClientID(user.ClientID),
			spotifyauth.WithClientSecret(user.ClientSecret),
			spotifyauth.WithRedirectURL(user.RedirectURI),
			spotifyauth.WithScopes(scopes...),
		),
	}
}

// AuthURL returns the Spotify authorization page URL for the user to visit.
func (a *Authorizer) AuthURL(state string) string {
	return a.auth.AuthURL(state)
}

// Exchange trades an authorization code for a token. The returned token's
// RefreshToken field is what gets persisted.
func (a *Authorizer) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := a.auth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if token.RefreshToken == "" {
		return nil, fmt.Errorf("authorization succeeded but no refresh token was issued")
	}
	return token, nil
}

// CodeFromRedirect extracts the authorization code from a pasted redirect
// URL, verifying the state parameter matches the one sent.
func CodeFromRedirect(raw, state string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}

	q := u.Query()
	if errMsg := q.Get("error"); errMsg != "" {
		return "", fmt.Errorf("authorization was denied: %s", errMsg)
	}
	if got := q.Get("state"); got != state {
		return "", fmt.Errorf("state mismatch in redirect URL")
	}

	code := q.Get("code")
	if code == "" {
		return "", fmt.Errorf("redirect URL contains no authorization code")
	}
	return code, nil
}

// GenerateState creates a random state string for the authorization flow.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
