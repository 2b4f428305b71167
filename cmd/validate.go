package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spoteamfy/spoteamfy/internal/config"
	"github.com/spoteamfy/spoteamfy/internal/spotify"
)

var validateCmd = &cobra.Command{
	Use:   "validate [username]",
	Short: "Verify stored Spotify credentials",
	Long: `Check that the stored credentials work for every configured user, or for
a single named user.

For each user, the refresh token is exchanged for an access token, the
account profile is fetched, and a small sample of recently played tracks
is requested. A per-user pass/fail report is printed. Failures never abort
the check for the remaining users.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&flagUsersJSON, "users-json", "",
		"Path to JSON file with user credentials")
}

// validateSampleSize is how many recent tracks the check requests.
const validateSampleSize = 3

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	usersPath := config.ResolveUsersPath(flagUsersJSON)
	users, err := config.LoadUsers(usersPath)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		var match []config.User
		for _, u := range users {
			if u.Username == args[0] {
				match = append(match, u)
			}
		}
		if len(match) == 0 {
			return fmt.Errorf("user %q not found in %s", args[0], usersPath)
		}
		users = match
	}

	failures := 0
	for _, user := range users {
		fmt.Printf("Validating user: %s\n", user.Username)
		if err := validateUser(ctx, user); err != nil {
			fmt.Printf("  ✗ %v\n", err)
			failures++
			continue
		}
	}

	fmt.Printf("\n%d/%d users validated successfully\n", len(users)-failures, len(users))
	return nil
}

func validateUser(ctx context.Context, user config.User) error {
	client, err := spotify.NewClient(ctx, user)
	if err != nil {
		return err
	}
	fmt.Println("  ✓ Token refresh succeeded")

	profile, err := client.Profile(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("  ✓ Profile retrieved (%s, ID %s)\n", profile.DisplayName, profile.ID)

	tracks, err := client.RecentlyPlayed(ctx, validateSampleSize)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		fmt.Println("  ✓ Recently played reachable (no tracks played yet)")
		return nil
	}

	fmt.Printf("  ✓ Recently played retrieved (%d tracks):\n", len(tracks))
	for i, t := range tracks {
		fmt.Printf("    %d. %s by %s\n", i+1, t.Title, t.Artist)
	}
	return nil
}
