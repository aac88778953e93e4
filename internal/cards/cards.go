package cards

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/framez/backend/internal/models"
)

// UnknownAuthor is shown when neither a profile name nor a user id is available.
const UnknownAuthor = "Unknown User"

// Card is the display-ready form of a feed item.
type Card struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"authorId"`
	AuthorName   string    `json:"authorName"`
	AuthorAvatar string    `json:"authorAvatar,omitempty"`
	Content      string    `json:"content,omitempty"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	CanDelete    bool      `json:"canDelete"`
}

// Build converts item into a card as seen by viewerID.
func Build(item models.FeedItem, viewerID string) Card {
	card := Card{
		ID:         item.ID,
		AuthorID:   item.UserID,
		AuthorName: AuthorName(item),
		Content:    models.StringValue(item.Content),
		ImageURL:   models.StringValue(item.ImageURL),
		CreatedAt:  item.CreatedAt,
		CanDelete:  viewerID != "" && viewerID == item.UserID,
	}
	if item.Author != nil {
		card.AuthorAvatar = item.Author.AvatarURL
	}
	return card
}

// BuildAll converts a page of feed items.
func BuildAll(items []models.FeedItem, viewerID string) []Card {
	out := make([]Card, 0, len(items))
	for _, item := range items {
		out = append(out, Build(item, viewerID))
	}
	return out
}

// AuthorName resolves the display name: full name, else the first eight
// characters of the user id, else UnknownAuthor.
func AuthorName(item models.FeedItem) string {
	if item.Author != nil {
		if name := strings.TrimSpace(item.Author.FullName); name != "" {
			return name
		}
	}
	if id := item.UserID; id != "" {
		if len(id) > 8 {
			return id[:8]
		}
		return id
	}
	return UnknownAuthor
}

// RelativeTime renders how long before now t happened, in whole days, hours
// or minutes. Anything under a minute, including future times, is "Just now".
func RelativeTime(now, t time.Time) string {
	diff := now.Sub(t)
	days := int(diff / (24 * time.Hour))
	hours := int(diff / time.Hour)
	minutes := int(diff / time.Minute)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd ago", days)
	case hours > 0:
		return fmt.Sprintf("%dh ago", hours)
	case minutes > 0:
		return fmt.Sprintf("%dm ago", minutes)
	default:
		return "Just now"
	}
}

// Timestamp renders t as an absolute local time.
func Timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("Jan 2, 2006, 3:04:05 PM")
}

// DateFormatter renders a card's creation time.
type DateFormatter func(time.Time) string

// Write renders card as plain text.
func Write(w io.Writer, card Card, formatDate DateFormatter) error {
	if formatDate == nil {
		formatDate = Timestamp
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s · %s", card.AuthorName, formatDate(card.CreatedAt))
	if card.CanDelete {
		fmt.Fprintf(&b, "  [%s]", card.ID)
	}
	b.WriteByte('\n')
	if card.Content != "" {
		for _, line := range strings.Split(card.Content, "\n") {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	if card.ImageURL != "" {
		fmt.Fprintf(&b, "  image: %s\n", card.ImageURL)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
