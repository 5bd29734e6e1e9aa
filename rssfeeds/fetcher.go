package rssfeeds

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/DoctorGattino/blog/types"

	"github.com/mmcdole/gofeed"
)

const (
	// maxDescription keeps imported descriptions readable in list views
	maxDescription = 200
	// maxTags caps how many feed categories become tags
	maxTags = 5
)

// Item is a feed entry converted into an article draft
type Item struct {
	ID              string
	Link            string
	Author          string
	PublishedAt     time.Time
	Draft           types.Draft
	ExtractionError string
}

// FetchFeed retrieves and parses an RSS/Atom feed, returning up to maxCount drafts
func FetchFeed(ctx context.Context, feedURL string, maxCount int, client *http.Client) ([]*Item, error) {
	parser := gofeed.NewParser()
	if client != nil {
		parser.Client = client
	}
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	count := min(len(feed.Items), maxCount)
	items := make([]*Item, 0, count)

	for i := 0; i < count; i++ {
		items = append(items, fromFeedItem(feed, feed.Items[i]))
	}

	return items, nil
}

func fromFeedItem(feed *gofeed.Feed, entry *gofeed.Item) *Item {
	// Use GUID if available, otherwise generate from URL
	id := entry.GUID
	if id == "" && entry.Link != "" {
		id = GenerateID(normalizeLink(entry.Link))
	}

	var publishedAt time.Time
	if entry.PublishedParsed != nil {
		publishedAt = *entry.PublishedParsed
	} else if entry.UpdatedParsed != nil {
		publishedAt = *entry.UpdatedParsed
	}

	author := ""
	if entry.Author != nil {
		author = entry.Author.Name
	}

	summary := plainText(entry.Description)
	content := plainText(entry.Content)
	if summary == "" {
		summary = content
	}
	if content == "" {
		content = summary
	}

	description := truncate(summary, maxDescription)
	if len([]rune(description)) < 10 {
		description = "Imported from " + feed.Title
	}

	tags := make([]string, 0, maxTags)
	for _, c := range entry.Categories {
		if t := normalizeTag(c); t != "" && len(tags) < maxTags {
			tags = append(tags, t)
		}
	}

	return &Item{
		ID:          id,
		Link:        entry.Link,
		Author:      author,
		PublishedAt: publishedAt,
		Draft: types.Draft{
			Title:       strings.TrimSpace(entry.Title),
			Description: description,
			Body:        withSource(content, entry.Link),
			TagList:     tags,
		},
	}
}

// withSource appends a markdown link back to the original page
func withSource(body, link string) string {
	if link == "" {
		return body
	}
	if body == "" {
		return fmt.Sprintf("[Read the original](%s)", link)
	}
	return fmt.Sprintf("%s\n\n[Read the original](%s)", body, link)
}
