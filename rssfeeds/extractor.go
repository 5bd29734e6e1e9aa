package rssfeeds

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const (
	WorkerCount      = 5
	extractorTimeout = 30 * time.Second
)

// FromURL builds a draft item from a single web page
func FromURL(pageURL string) (*Item, error) {
	item := &Item{ID: GenerateID(normalizeLink(pageURL)), Link: pageURL}
	if err := extractContent(item); err != nil {
		return nil, err
	}
	if item.Draft.Title == "" {
		return nil, fmt.Errorf("no title found at %s", pageURL)
	}
	return item, nil
}

// ExtractAllContent replaces feed summaries with the full page text using a worker pool
func ExtractAllContent(items []*Item, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	var wg sync.WaitGroup
	itemChan := make(chan *Item, len(items))

	for i := 0; i < WorkerCount; i++ {
		go func(workerID int) {
			for item := range itemChan {
				if err := extractContent(item); err != nil {
					item.ExtractionError = err.Error()
					logger.Warn("extraction failed", "worker", workerID, "url", item.Link, "error", err)
				}
				wg.Done()
			}
		}(i)
	}

	for _, item := range items {
		wg.Add(1)
		itemChan <- item
	}

	wg.Wait()
	close(itemChan)
}

// extractContent fetches the page behind item.Link and fills in the draft
func extractContent(item *Item) error {
	if item.Link == "" {
		return fmt.Errorf("item URL is empty")
	}

	extracted, err := readability.FromURL(item.Link, extractorTimeout)
	if err != nil {
		return fmt.Errorf("readability extraction failed: %w", err)
	}

	text := paragraphs(extracted.TextContent)
	if text != "" {
		item.Draft.Body = withSource(text, item.Link)
	}
	if item.Draft.Title == "" {
		item.Draft.Title = strings.TrimSpace(extracted.Title)
	}
	if excerpt := plainText(extracted.Excerpt); len([]rune(excerpt)) >= 10 && len([]rune(item.Draft.Description)) < 10 {
		item.Draft.Description = truncate(excerpt, maxDescription)
	}
	if len([]rune(item.Draft.Description)) < 10 {
		item.Draft.Description = truncate(plainText(text), maxDescription)
	}
	if item.Author == "" {
		item.Author = extracted.Byline
	}
	if item.PublishedAt.IsZero() && extracted.PublishedTime != nil {
		item.PublishedAt = *extracted.PublishedTime
	}

	return nil
}

// paragraphs keeps paragraph breaks from extracted text and trims the rest
func paragraphs(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n\n")
}
