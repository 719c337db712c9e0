package mention

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"mentioneditor/internal/document"
)

const DefaultMarker = "@"

// FeedItem is one selectable entry in the mention dropdown.
type FeedItem struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// Mention builds the token payload for this item. An empty uid gets a
// fresh random one.
func (it FeedItem) Mention(uid string) document.Mention {
	if strings.TrimSpace(uid) == "" {
		uid = "m" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return document.Mention{ID: it.ID, UserID: it.UserID, UID: uid}
}

// Feed is the marker-triggered list of mentionable users.
type Feed struct {
	Marker            string     `json:"marker"`
	MinimumCharacters int        `json:"minimumCharacters"`
	Items             []FeedItem `json:"feed"`
}

func DefaultFeed() Feed {
	return Feed{
		Marker:            DefaultMarker,
		MinimumCharacters: 0,
		Items: []FeedItem{
			{ID: "@Alex", UserID: "1", Name: "Alex"},
			{ID: "@David", UserID: "2", Name: "David"},
			{ID: "@Clare", UserID: "3", Name: "Clare"},
			{ID: "@Tomas", UserID: "4", Name: "Tomas"},
		},
	}
}

// LoadFeed reads a JSON feed definition from path.
func LoadFeed(path string) (Feed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Feed{}, fmt.Errorf("read mention feed: %w", err)
	}
	var f Feed
	if err := json.Unmarshal(raw, &f); err != nil {
		return Feed{}, fmt.Errorf("parse mention feed: %w", err)
	}
	if strings.TrimSpace(f.Marker) == "" {
		f.Marker = DefaultMarker
	}
	for i, it := range f.Items {
		if strings.TrimSpace(it.ID) == "" {
			return Feed{}, fmt.Errorf("mention feed item %d: id is required", i)
		}
	}
	return f, nil
}

// Query returns items matching text typed after the marker. The marker
// itself may be included. Nothing matches until MinimumCharacters runes
// have been typed.
func (f Feed) Query(text string) []FeedItem {
	q := strings.TrimPrefix(strings.TrimSpace(text), f.marker())
	if utf8.RuneCountInString(q) < f.MinimumCharacters {
		return nil
	}
	q = strings.ToLower(q)
	out := make([]FeedItem, 0, len(f.Items))
	for _, it := range f.Items {
		id := strings.ToLower(strings.TrimPrefix(it.ID, f.marker()))
		if q == "" || strings.Contains(id, q) || strings.Contains(strings.ToLower(it.Name), q) {
			out = append(out, it)
		}
	}
	return out
}

// Lookup finds an item by ID, with or without the marker.
func (f Feed) Lookup(id string) (FeedItem, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return FeedItem{}, false
	}
	if !strings.HasPrefix(id, f.marker()) {
		id = f.marker() + id
	}
	for _, it := range f.Items {
		if it.ID == id {
			return it, true
		}
	}
	return FeedItem{}, false
}

func (f Feed) marker() string {
	if f.Marker == "" {
		return DefaultMarker
	}
	return f.Marker
}
