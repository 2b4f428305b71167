// Package runner drives the per-user fetch-and-post sequence.
package runner

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spoteamfy/spoteamfy/internal/config"
	"github.com/spoteamfy/spoteamfy/internal/spotify"
	"github.com/spoteamfy/spoteamfy/pkg/teams"
)

// Config holds runner configuration.
type Config struct {
	NumTracks  int    // How many recent tracks to fetch per user
	WebhookURL string // Teams incoming webhook to post cards to

	// Endpoint overrides, used by tests.
	SpotifyTokenURL string
	SpotifyBaseURL  string
}

// Result summarizes one run over all configured users.
type Result struct {
	Posted int // Users whose card was delivered
	Failed int // Users skipped because some stage failed
}

// Runner processes configured users one at a time. Users share nothing but
// the webhook client, so one user's failure never affects another.
type Runner struct {
	cfg    Config
	teams  *teams.Client
	logger zerolog.Logger
}

// New creates a Runner.
func New(cfg Config, logger zerolog.Logger) (*Runner, error) {
	teamsClient, err := teams.NewClient(teams.Config{WebhookURL: cfg.WebhookURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook client: %w", err)
	}

	return &Runner{
		cfg:    cfg,
		teams:  teamsClient,
		logger: logger.With().Str("component", "runner").Logger(),
	}, nil
}

// Run processes each user in load order, sequentially. Errors from any
// stage are logged and counted, never raised: the loop always completes.
func (r *Runner) Run(ctx context.Context, users []config.User) Result {
	var result Result

	for _, user := range users {
		if err := r.processUser(ctx, user); err != nil {
			r.logger.Error().
				Err(err).
				Str("username", user.Username).
				Msg("Skipping user")
			result.Failed++
			continue
		}
		result.Posted++
	}

	r.logger.Info().
		Int("posted", result.Posted).
		Int("failed", result.Failed).
		Msg("Run complete")

	return result
}

// processUser runs the full sequence for a single user: refresh the access
// token, fetch listening history, build the card, and post it.
func (r *Runner) processUser(ctx context.Context, user config.User) error {
	client, err := spotify.NewClient(ctx, user, r.spotifyOptions()...)
	if err != nil {
		return err
	}

	tracks, err := client.RecentlyPlayed(ctx, r.cfg.NumTracks)
	if err != nil {
		return fmt.Errorf("fetch failed for %s: %w", user.Username, err)
	}

	r.logger.Debug().
		Str("username", user.Username).
		Int("tracks", len(tracks)).
		Msg("Fetched listening history")

	card := teams.BuildTrackCard(user.Username, toEntries(tracks))
	if err := r.teams.Send(ctx, card); err != nil {
		return fmt.Errorf("delivery failed for %s: %w", user.Username, err)
	}

	r.logger.Info().
		Str("username", user.Username).
		Int("tracks", len(tracks)).
		Msg("Posted card")

	return nil
}

func (r *Runner) spotifyOptions() []spotify.Option {
	var opts []spotify.Option
	if r.cfg.SpotifyTokenURL != "" {
		opts = append(opts, spotify.WithTokenURL(r.cfg.SpotifyTokenURL))
	}
	if r.cfg.SpotifyBaseURL != "" {
		opts = append(opts, spotify.WithAPIBaseURL(r.cfg.SpotifyBaseURL))
	}
	return opts
}

// toEntries converts fetched tracks into card body entries.
func toEntries(tracks []spotify.Track) []teams.TrackEntry {
	entries := make([]teams.TrackEntry, len(tracks))
	for i, t := range tracks {
		entries[i] = teams.TrackEntry{
			Title:    t.Title,
			Artist:   t.Artist,
			URL:      t.TrackURL,
			ImageURL: t.AlbumArtURL,
			PlayedAt: t.PlayedAt,
		}
	}
	return entries
}
