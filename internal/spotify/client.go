// Package spotify fetches listening history from the Spotify Web API.
//
// Each configured user gets their own Client, built from the user's stored
// refresh token. The token exchange happens eagerly so a revoked or invalid
// refresh token surfaces as an AuthError before any API traffic.
package spotify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spoteamfy/spoteamfy/internal/config"
	spotifyapi "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// Track is one entry of a user's listening history, flattened to the fields
// the notification card needs. Ordering follows the API: most recent first.
type Track struct {
	Title       string
	Artist      string
	Album       string
	AlbumArtURL string
	TrackURL    string
	PlayedAt    time.Time
}

// Profile identifies the Spotify account behind a set of credentials.
type Profile struct {
	ID          string
	DisplayName string
}

// AuthError indicates the refresh-token exchange was rejected.
type AuthError struct {
	Username string
	Err      error
}

// Error returns the error message.
func (e *AuthError) Error() string {
	return fmt.Sprintf("spotify: authentication failed for %s: %v", e.Username, e.Err)
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Client wraps the Spotify Web API for a single authenticated user.
type Client struct {
	api *spotifyapi.Client
}

type options struct {
	tokenURL   string
	apiBaseURL string
	httpClient *http.Client
}

// Option customizes client construction. The overrides exist for tests.
type Option func(*options)

// WithTokenURL overrides the OAuth token endpoint.
func WithTokenURL(u string) Option {
	return func(o *options) { o.tokenURL = u }
}

// WithAPIBaseURL overrides the Web API base URL.
func WithAPIBaseURL(u string) Option {
	return func(o *options) { o.apiBaseURL = u }
}

// WithHTTPClient sets the HTTP client used beneath the OAuth transport.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// NewClient exchanges the user's refresh token for an access token and
// returns a Client bound to the resulting session.
//
// The access token lives only inside the returned Client and is refreshed
// transparently by the oauth2 transport for the rest of the run.
func NewClient(ctx context.Context, user config.User, opts ...Option) (*Client, error) {
	o := options{tokenURL: spotifyauth.TokenURL}
	for _, opt := range opts {
		opt(&o)
	}

	// Freshly generated users files ship placeholder tokens until
	// 'spoteamfy auth' is run for the user.
	if strings.HasPrefix(user.RefreshToken, "SPOTIFY_REFRESH_TOKEN") {
		return nil, &AuthError{
			Username: user.Username,
			Err:      fmt.Errorf("refresh token is a placeholder, run 'spoteamfy auth %s' first", user.Username),
		}
	}

	if o.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	}

	conf := &oauth2.Config{
		ClientID:     user.ClientID,
		ClientSecret: user.ClientSecret,
		RedirectURL:  user.RedirectURI,
		Endpoint:     oauth2.Endpoint{TokenURL: o.tokenURL},
	}

	ts := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: user.RefreshToken})
	if _, err := ts.Token(); err != nil {
		return nil, &AuthError{Username: user.Username, Err: err}
	}

	var apiOpts []spotifyapi.ClientOption
	if o.apiBaseURL != "" {
		apiOpts = append(apiOpts, spotifyapi.WithBaseURL(o.apiBaseURL))
	}

	return &Client{
		api: spotifyapi.New(oauth2.NewClient(ctx, ts), apiOpts...),
	}, nil
}

// RecentlyPlayed returns up to limit of the user's most recently played
// tracks, most recent first. An empty slice is a valid result.
func (c *Client) RecentlyPlayed(ctx context.Context, limit int) ([]Track, error) {
	limit = config.ClampTracks(limit)

	items, err := c.api.PlayerRecentlyPlayedOpt(ctx, &spotifyapi.RecentlyPlayedOptions{Limit: spotifyapi.Numeric(limit)})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recently played tracks: %w", err)
	}

	tracks := make([]Track, 0, len(items))
	for _, item := range items {
		tracks = append(tracks, Track{
			Title:       item.Track.Name,
			Artist:      joinArtists(item.Track.Artists),
			Album:       item.Track.Album.Name,
			AlbumArtURL: firstImageURL(item.Track.Album.Images),
			TrackURL:    item.Track.ExternalURLs["spotify"],
			PlayedAt:    item.PlayedAt,
		})
	}

	return tracks, nil
}

// Profile fetches the account profile for the authenticated user.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}

	return &Profile{
		ID:          user.ID,
		DisplayName: user.DisplayName,
	}, nil
}

// joinArtists flattens a track's artist list into a single display string.
func joinArtists(artists []spotifyapi.SimpleArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// firstImageURL returns the first album image, which the API orders
// largest first. Empty if the album carries no artwork.
func firstImageURL(images []spotifyapi.Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}
