package rssfeeds

import "sort"

// Default import settings
const (
	DefaultFeedPreset = "go"
	DefaultCount      = 5
)

// FeedConfig represents the configuration for a single feed
type FeedConfig struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// FeedPresets maps friendly keys to feed configurations
var FeedPresets = map[string]FeedConfig{
	"go": {
		Name: "The Go Blog",
		URL:  "https://go.dev/blog/feed.atom",
	},
	"hn": {
		Name: "Hacker News",
		URL:  "https://hnrss.org/newest",
	},
	"tr": {
		Name: "Technology Review",
		URL:  "https://www.technologyreview.com/feed/",
	},
}

// ResolveFeedURL resolves a feed identifier to a URL.
// A preset name returns its URL; anything else is assumed to be a URL already.
func ResolveFeedURL(feedInput string) string {
	if preset, exists := FeedPresets[feedInput]; exists {
		return preset.URL
	}
	return feedInput
}

// PresetNames returns the preset keys in alphabetical order
func PresetNames() []string {
	names := make([]string, 0, len(FeedPresets))
	for name := range FeedPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
