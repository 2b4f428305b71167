package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spoteamfy/spoteamfy/internal/config"
	"github.com/spoteamfy/spoteamfy/internal/runner"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var (
	flagNumTracks    int
	flagUsersJSON    string
	flagTeamsWebhook string
	flagLogLevel     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "spoteamfy",
	Short: "Post recently played Spotify tracks to Microsoft Teams",
	Long: `spoteamfy fetches each configured user's recently played Spotify tracks
and posts them as a notification card to a Microsoft Teams channel via an
incoming webhook.

User credentials live in a JSON file (see 'spoteamfy auth' for obtaining
refresh tokens). Each user is processed independently: a failure for one
user is logged and the run continues with the next.

Configuration is resolved flag > environment variable > default:
  users file:  --users-json, USERS_JSON_PATH, ./config/users.json
  webhook URL: --teams-webhook, WEBHOOK_URL, webhook_url in config.yaml`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	RunE:    runRoot,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().IntVar(&flagNumTracks, "num-tracks", 0,
		fmt.Sprintf("Number of recent tracks to fetch per user (default %d, max %d)",
			config.DefaultNumTracks, config.MaxNumTracks))
	rootCmd.Flags().StringVar(&flagUsersJSON, "users-json", "",
		"Path to JSON file with user credentials")
	rootCmd.Flags().StringVar(&flagTeamsWebhook, "teams-webhook", "",
		"Teams incoming webhook URL for posting track info")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info",
		"Log level (debug, info, warn, error)")
}

func runRoot(cmd *cobra.Command, args []string) error {
	settings, err := config.Resolve(config.Flags{
		UsersPath:  flagUsersJSON,
		WebhookURL: flagTeamsWebhook,
		NumTracks:  flagNumTracks,
	})
	if err != nil {
		return fmt.Errorf("failed to resolve configuration: %w", err)
	}

	users, err := config.LoadUsers(settings.UsersPath)
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}

	logger := setupLogger(flagLogLevel)

	logger.Info().
		Int("users", len(users)).
		Int("num_tracks", settings.NumTracks).
		Str("users_json", settings.UsersPath).
		Msg("Starting run")

	r, err := runner.New(runner.Config{
		NumTracks:  settings.NumTracks,
		WebhookURL: settings.WebhookURL,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	// Per-user failures are already logged; the run itself always succeeds
	// once configuration resolved.
	r.Run(context.Background(), users)

	return nil
}

// setupLogger creates a logger with the specified level, writing
// human-readable output to stderr.
func setupLogger(logLevel string) zerolog.Logger {
	level := zerolog.InfoLevel
	switch logLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	logger := zerolog.New(os.Stderr).
		Level(level).
		With().
		Timestamp().
		Logger()

	return logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
