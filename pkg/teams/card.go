package teams

import (
	"fmt"
	"strings"
	"time"
)

const (
	cardType    = "MessageCard"
	cardContext = "https://schema.org/extensions"

	// spotifyGreen is used as the card accent color.
	spotifyGreen = "1DB954"
)

// Card is the MessageCard payload accepted by Teams incoming webhooks.
//
// Only the fields this application produces are modeled; the full schema is
// documented at
// https://learn.microsoft.com/en-us/outlook/actionable-messages/message-card-reference
type Card struct {
	Type       string    `json:"@type"`
	Context    string    `json:"@context"`
	Summary    string    `json:"summary"`
	ThemeColor string    `json:"themeColor,omitempty"`
	Title      string    `json:"title,omitempty"`
	Sections   []Section `json:"sections,omitempty"`
}

// Section is one content block within a Card.
type Section struct {
	ActivityTitle    string `json:"activityTitle,omitempty"`
	ActivitySubtitle string `json:"activitySubtitle,omitempty"`
	ActivityImage    string `json:"activityImage,omitempty"`
	Text             string `json:"text,omitempty"`
	Markdown         bool   `json:"markdown"`
}

// TrackEntry is one line of a track card body.
type TrackEntry struct {
	Title    string    // Required: track title
	Artist   string    // Optional: display artist(s)
	URL      string    // Optional: link target for the title
	ImageURL string    // Optional: album artwork URL
	PlayedAt time.Time // Optional: when the track was played
}

// BuildTrackCard renders a user's listening history as a notification card.
//
// The card header image is the first entry's artwork and the body carries
// one markdown line per entry, in input order, each linking to the track.
// An empty entry list yields a card with no sections. The function is pure:
// equal input always produces an equal card.
func BuildTrackCard(username string, entries []TrackEntry) *Card {
	title := fmt.Sprintf("Recently played by %s", username)

	card := &Card{
		Type:       cardType,
		Context:    cardContext,
		Summary:    title,
		ThemeColor: spotifyGreen,
		Title:      title,
	}

	if len(entries) == 0 {
		return card
	}

	lines := make([]string, 0, len(entries))
	for i, e := range entries {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, formatEntry(e)))
	}

	card.Sections = []Section{{
		ActivityTitle: fmt.Sprintf("Last %d tracks", len(entries)),
		ActivityImage: entries[0].ImageURL,
		Text:          strings.Join(lines, "\n\n"),
		Markdown:      true,
	}}

	return card
}

// formatEntry renders a single body line, linking the title when a track
// URL is available.
func formatEntry(e TrackEntry) string {
	title := e.Title
	if e.URL != "" {
		title = fmt.Sprintf("[%s](%s)", e.Title, e.URL)
	}
	if e.Artist == "" {
		return title
	}
	return fmt.Sprintf("%s by %s", title, e.Artist)
}
