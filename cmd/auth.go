package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spoteamfy/spoteamfy/internal/config"
	"github.com/spoteamfy/spoteamfy/internal/spotify"
)

var authCmd = &cobra.Command{
	Use:   "auth <username>",
	Short: "Obtain a Spotify refresh token for a user",
	Long: `Run the one-time Spotify authorization flow for a configured user.

This command will guide you through the authorization-code grant:
1. An authorization URL is printed for the user's Spotify application
2. You open it in a browser, sign in, and approve the requested scopes
3. Spotify redirects to the configured redirect URI; paste the full
   redirect URL back here
4. The authorization code is exchanged for a refresh token, which can be
   saved back into the users file

The user must already exist in the users file with client_id,
client_secret, and redirect_uri filled in. You can register an application
at: https://developer.spotify.com/dashboard`,
	Args: cobra.ExactArgs(1),
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.Flags().StringVar(&flagUsersJSON, "users-json", "",
		"Path to JSON file with user credentials")
}

func runAuth(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)
	username := args[0]

	usersPath := config.ResolveUsersPath(flagUsersJSON)
	users, err := config.LoadUsers(usersPath)
	if err != nil {
		return err
	}

	idx := -1
	for i, u := range users {
		if u.Username == username {
			idx = i
			break
		}
	}
	if idx == -1 {
		names := make([]string, 0, len(users))
		for _, u := range users {
			names = append(names, u.Username)
		}
		return fmt.Errorf("user %q not found in %s (available: %s)",
			username, usersPath, strings.Join(names, ", "))
	}
	user := users[idx]

	if user.ClientID == "" || user.ClientSecret == "" || user.RedirectURI == "" {
		return fmt.Errorf("user %q is missing client_id, client_secret, or redirect_uri", username)
	}

	fmt.Println("Spotify Authorization")
	fmt.Println("=====================")
	fmt.Println()

	state, err := spotify.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state: %w", err)
	}

	authorizer := spotify.NewAuthorizer(user)

	fmt.Println("Please visit this URL to authorize spoteamfy:")
	fmt.Printf("\n  %s\n\n", authorizer.AuthURL(state))
	fmt.Println("After approving, your browser will be redirected to the redirect URI.")
	fmt.Print("Paste the full redirect URL here: ")

	redirect, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read redirect URL: %w", err)
	}

	code, err := spotify.CodeFromRedirect(strings.TrimSpace(redirect), state)
	if err != nil {
		return err
	}

	fmt.Println("\nExchanging authorization code...")
	token, err := authorizer.Exchange(ctx, code)
	if err != nil {
		return err
	}

	fmt.Printf("\n✓ Authorization successful!\n")
	fmt.Printf("Refresh token: %s\n", token.RefreshToken)

	fmt.Printf("\nSave refresh token for %s to %s? [Y/n]: ", username, usersPath)
	response, err := reader.ReadString('\n')
	if err != nil {
		response = "y"
	}
	response = strings.TrimSpace(strings.ToLower(response))
	if response == "" || response == "y" || response == "yes" {
		users[idx].RefreshToken = token.RefreshToken
		if err := config.SaveUsers(usersPath, users); err != nil {
			return err
		}
		fmt.Printf("✓ Refresh token saved to %s\n", usersPath)
	} else {
		fmt.Println("Refresh token not saved. Update the users file manually.")
	}

	return nil
}
