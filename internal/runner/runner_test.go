package runner

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spoteamfy/spoteamfy/internal/config"
	"github.com/spoteamfy/spoteamfy/pkg/teams"
)

const threeTracksJSON = `{
  "items": [
    {
      "track": {
        "name": "Track One",
        "artists": [{"name": "Artist One"}],
        "album": {"name": "Album One", "images": [{"url": "https://i.scdn.co/image/one", "height": 640, "width": 640}]},
        "external_urls": {"spotify": "https://open.spotify.com/track/one"}
      },
      "played_at": "2026-08-20T12:00:00.000Z"
    },
    {
      "track": {
        "name": "Track Two",
        "artists": [{"name": "Artist Two"}],
        "album": {"name": "Album Two", "images": [{"url": "https://i.scdn.co/image/two", "height": 640, "width": 640}]},
        "external_urls": {"spotify": "https://open.spotify.com/track/two"}
      },
      "played_at": "2026-08-20T11:55:00.000Z"
    },
    {
      "track": {
        "name": "Track Three",
        "artists": [{"name": "Artist Three"}],
        "album": {"name": "Album Three", "images": [{"url": "https://i.scdn.co/image/three", "height": 640, "width": 640}]},
        "external_urls": {"spotify": "https://open.spotify.com/track/three"}
      },
      "played_at": "2026-08-20T11:50:00.000Z"
    }
  ]
}`

// newFakeSpotify emulates the token endpoint and the recently-played route.
// Refresh tokens containing "revoked" are rejected at the token endpoint.
func newFakeSpotify(t *testing.T, recentlyPlayedStatus int, recentlyPlayedBody string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.FormValue("refresh_token"), "revoked") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": "invalid_grant"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token": "test-access-token", "token_type": "Bearer", "expires_in": 3600}`))
	})
	mux.HandleFunc("/v1/me/player/recently-played", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(recentlyPlayedStatus)
		_, _ = w.Write([]byte(recentlyPlayedBody))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// newFakeWebhook records every card POSTed to it.
func newFakeWebhook(t *testing.T, statusCode int) (*httptest.Server, *[]teams.Card) {
	t.Helper()

	var received []teams.Card
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var card teams.Card
		if err := json.Unmarshal(body, &card); err != nil {
			t.Errorf("webhook received invalid JSON: %v", err)
		}
		received = append(received, card)
		w.WriteHeader(statusCode)
		_, _ = w.Write([]byte("1"))
	}))
	t.Cleanup(server.Close)
	return server, &received
}

func testUser(username, refreshToken string) config.User {
	return config.User{
		Username:     username,
		ClientID:     "client-" + username,
		ClientSecret: "secret-" + username,
		RedirectURI:  "http://127.0.0.1:8080/callback",
		RefreshToken: refreshToken,
	}
}

func newTestRunner(t *testing.T, spotifyURL, webhookURL string) *Runner {
	t.Helper()

	r, err := New(Config{
		NumTracks:       5,
		WebhookURL:      webhookURL,
		SpotifyTokenURL: spotifyURL + "/api/token",
		SpotifyBaseURL:  spotifyURL + "/v1/",
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}
	return r
}

// TestRunFailureIsolation covers the end-to-end scenario: the first user's
// token refresh fails, the second user succeeds with three tracks. Exactly
// one card must be posted and the run must still complete.
func TestRunFailureIsolation(t *testing.T) {
	spotify := newFakeSpotify(t, http.StatusOK, threeTracksJSON)
	webhook, received := newFakeWebhook(t, http.StatusOK)

	r := newTestRunner(t, spotify.URL, webhook.URL)

	users := []config.User{
		testUser("bob", "revoked-token"),
		testUser("alice", "good-token"),
	}

	result := r.Run(context.Background(), users)

	if result.Posted != 1 {
		t.Errorf("expected 1 posted, got %d", result.Posted)
	}
	if result.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", result.Failed)
	}

	if len(*received) != 1 {
		t.Fatalf("expected exactly 1 card posted, got %d", len(*received))
	}
	card := (*received)[0]
	if !strings.Contains(card.Title, "alice") {
		t.Errorf("expected the card to belong to alice, got title %q", card.Title)
	}
	if len(card.Sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(card.Sections))
	}
	if got := len(strings.Split(card.Sections[0].Text, "\n\n")); got != 3 {
		t.Errorf("expected 3 body lines, got %d", got)
	}
	if card.Sections[0].ActivityImage != "https://i.scdn.co/image/one" {
		t.Errorf("expected header image of most recent track, got %q", card.Sections[0].ActivityImage)
	}
}

func TestRunAllSucceed(t *testing.T) {
	spotify := newFakeSpotify(t, http.StatusOK, threeTracksJSON)
	webhook, received := newFakeWebhook(t, http.StatusOK)

	r := newTestRunner(t, spotify.URL, webhook.URL)

	users := []config.User{
		testUser("alice", "good-token"),
		testUser("bob", "also-good"),
	}

	result := r.Run(context.Background(), users)

	if result.Posted != 2 || result.Failed != 0 {
		t.Errorf("expected 2 posted / 0 failed, got %d / %d", result.Posted, result.Failed)
	}
	if len(*received) != 2 {
		t.Errorf("expected 2 cards posted, got %d", len(*received))
	}
}

func TestRunUpstreamFailurePostsNothing(t *testing.T) {
	spotify := newFakeSpotify(t, http.StatusInternalServerError, `{"error": {"status": 500, "message": "boom"}}`)
	webhook, received := newFakeWebhook(t, http.StatusOK)

	r := newTestRunner(t, spotify.URL, webhook.URL)

	result := r.Run(context.Background(), []config.User{testUser("alice", "good-token")})

	if result.Posted != 0 || result.Failed != 1 {
		t.Errorf("expected 0 posted / 1 failed, got %d / %d", result.Posted, result.Failed)
	}
	if len(*received) != 0 {
		t.Errorf("expected no cards posted on fetch failure, got %d", len(*received))
	}
}

func TestRunDeliveryFailureIsPerUser(t *testing.T) {
	spotify := newFakeSpotify(t, http.StatusOK, threeTracksJSON)
	webhook, _ := newFakeWebhook(t, http.StatusBadRequest)

	r := newTestRunner(t, spotify.URL, webhook.URL)

	users := []config.User{
		testUser("alice", "good-token"),
		testUser("bob", "also-good"),
	}

	result := r.Run(context.Background(), users)

	// Both users still get attempted even though delivery keeps failing.
	if result.Posted != 0 || result.Failed != 2 {
		t.Errorf("expected 0 posted / 2 failed, got %d / %d", result.Posted, result.Failed)
	}
}

func TestRunEmptyHistoryStillPosts(t *testing.T) {
	spotify := newFakeSpotify(t, http.StatusOK, `{"items": []}`)
	webhook, received := newFakeWebhook(t, http.StatusOK)

	r := newTestRunner(t, spotify.URL, webhook.URL)

	result := r.Run(context.Background(), []config.User{testUser("alice", "good-token")})

	if result.Posted != 1 {
		t.Errorf("expected 1 posted, got %d", result.Posted)
	}
	if len(*received) != 1 {
		t.Fatalf("expected 1 card posted, got %d", len(*received))
	}
	if got := len((*received)[0].Sections); got != 0 {
		t.Errorf("expected card with no sections for empty history, got %d", got)
	}
}

func TestNewRequiresWebhook(t *testing.T) {
	if _, err := New(Config{}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing webhook URL, got nil")
	}
}
