// Package config loads user credentials and resolves runtime settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// DefaultUsersPath is used when neither the flag nor USERS_JSON_PATH is set.
	DefaultUsersPath = "./config/users.json"

	// DefaultNumTracks is the number of recent tracks fetched per user.
	DefaultNumTracks = 5

	// MaxNumTracks is the upper bound accepted by the recently-played
	// endpoint. Larger requests are clamped, not rejected.
	MaxNumTracks = 50
)

// User holds one user's Spotify credentials as stored in the users file.
//
// All fields are required. The refresh token is the long-lived credential
// obtained via 'spoteamfy auth' and may be rotated by that command.
type User struct {
	Username     string `json:"username"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
	RefreshToken string `json:"refresh_token"`
}

// Validate checks that every required credential field is present.
func (u User) Validate() error {
	switch {
	case u.Username == "":
		return fmt.Errorf("missing username")
	case u.ClientID == "":
		return fmt.Errorf("missing client_id")
	case u.ClientSecret == "":
		return fmt.Errorf("missing client_secret")
	case u.RedirectURI == "":
		return fmt.Errorf("missing redirect_uri")
	case u.RefreshToken == "":
		return fmt.Errorf("missing refresh_token")
	}
	return nil
}

// LoadUsers reads a JSON array of user credential records from path.
//
// A missing or malformed file, or any record missing a required field,
// is a configuration error and fails the whole load.
func LoadUsers(path string) ([]User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read users file %s: %w", path, err)
	}

	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("failed to parse users file %s: %w", path, err)
	}

	for i, u := range users {
		if err := u.Validate(); err != nil {
			name := u.Username
			if name == "" {
				name = fmt.Sprintf("entry %d", i)
			}
			return nil, fmt.Errorf("invalid user record (%s): %w", name, err)
		}
	}

	return users, nil
}

// SaveUsers writes the user records back to path.
//
// Used by the auth command to persist a newly issued refresh token.
// The file contains secrets, so it is written with owner-only permissions.
func SaveUsers(path string, users []User) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode users: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write users file %s: %w", path, err)
	}

	return nil
}

// Flags carries the raw command-line values into Resolve. Empty strings and
// zero values mean "not set on the command line".
type Flags struct {
	UsersPath  string
	WebhookURL string
	NumTracks  int
}

// Settings is the fully resolved runtime configuration for one run.
type Settings struct {
	UsersPath  string
	WebhookURL string
	NumTracks  int
}

// Resolve determines the effective settings using the priority
// flag > environment variable > default.
//
// The users path falls back to USERS_JSON_PATH and then DefaultUsersPath.
// The webhook URL falls back to WEBHOOK_URL and then the webhook_url key of
// an optional config.yaml; if still unset, resolution fails. A .env file in
// the working directory is loaded first, if present.
func Resolve(flags Flags) (*Settings, error) {
	// Populate the environment from .env before any lookups.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(configDir())

	v.SetDefault("users_json", DefaultUsersPath)
	v.SetDefault("num_tracks", DefaultNumTracks)

	_ = v.BindEnv("users_json", "USERS_JSON_PATH")
	_ = v.BindEnv("webhook_url", "WEBHOOK_URL")

	// Config file is optional - don't fail if missing.
	_ = v.ReadInConfig()

	s := &Settings{
		UsersPath:  v.GetString("users_json"),
		WebhookURL: v.GetString("webhook_url"),
		NumTracks:  v.GetInt("num_tracks"),
	}

	// Command-line flags take precedence over everything.
	if flags.UsersPath != "" {
		s.UsersPath = flags.UsersPath
	}
	if flags.WebhookURL != "" {
		s.WebhookURL = flags.WebhookURL
	}
	if flags.NumTracks != 0 {
		s.NumTracks = flags.NumTracks
	}

	if s.WebhookURL == "" {
		return nil, fmt.Errorf("no webhook URL configured: set --teams-webhook, WEBHOOK_URL, or webhook_url in config.yaml")
	}

	s.NumTracks = ClampTracks(s.NumTracks)

	return s, nil
}

// ResolveUsersPath applies the flag > env > default priority for the users
// file alone, for subcommands that don't need a webhook URL. Like Resolve,
// it loads a .env file from the working directory first, if present.
func ResolveUsersPath(flagValue string) string {
	_ = godotenv.Load()

	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("USERS_JSON_PATH"); env != "" {
		return env
	}
	return DefaultUsersPath
}

// ClampTracks bounds a requested track count to [1, MaxNumTracks].
// Non-positive values fall back to the default.
func ClampTracks(n int) int {
	if n <= 0 {
		return DefaultNumTracks
	}
	if n > MaxNumTracks {
		return MaxNumTracks
	}
	return n
}

// configDir returns the per-user configuration directory path.
func configDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".config", "spoteamfy")
}
