package rssfeeds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/DoctorGattino/blog/types"
)

// Creator publishes drafts; *cache.Manager satisfies it
type Creator interface {
	CreateArticle(ctx context.Context, draft types.Draft, key types.PageKey) (types.Article, error)
}

// Report summarizes one import run
type Report struct {
	FeedURL  string
	Fetched  int
	Created  []types.Article
	Skipped  int
	Failures map[string]error
}

// Importer turns feed entries into articles, remembering what it already
// published so scheduled runs do not repost the same entry
type Importer struct {
	creator    Creator
	key        types.PageKey
	maxCount   int
	full       bool
	httpClient *http.Client
	logger     *slog.Logger
	seen       SeenStore
}

// ImporterOption configures an Importer
type ImporterOption func(*Importer)

// WithFullContent fetches each entry's page and uses its readable text as the body
func WithFullContent() ImporterOption {
	return func(im *Importer) { im.full = true }
}

// WithMaxCount limits how many entries are taken from the feed per run
func WithMaxCount(n int) ImporterOption {
	return func(im *Importer) {
		if n > 0 {
			im.maxCount = n
		}
	}
}

// WithHTTPClient sets the client used to download feeds
func WithHTTPClient(c *http.Client) ImporterOption {
	return func(im *Importer) { im.httpClient = c }
}

// WithSeenStore shares the record of imported entries, for example across processes
func WithSeenStore(s SeenStore) ImporterOption {
	return func(im *Importer) {
		if s != nil {
			im.seen = s
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) ImporterOption {
	return func(im *Importer) {
		if l != nil {
			im.logger = l
		}
	}
}

// NewImporter creates an importer that shows new articles on the page at key
func NewImporter(creator Creator, key types.PageKey, opts ...ImporterOption) *Importer {
	im := &Importer{
		creator:  creator,
		key:      key,
		maxCount: DefaultCount,
		logger:   slog.Default(),
		seen:     NewMemorySeen(),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Run imports the feed once. Entries that fail are reported individually and
// do not stop the run; an authentication failure does.
func (im *Importer) Run(ctx context.Context, feedInput string) (*Report, error) {
	feedURL := ResolveFeedURL(feedInput)
	items, err := FetchFeed(ctx, feedURL, im.maxCount, im.httpClient)
	if err != nil {
		return nil, err
	}

	report := &Report{FeedURL: feedURL, Fetched: len(items), Failures: map[string]error{}}
	im.logger.Info("feed fetched", "url", feedURL, "items", len(items))

	fresh := make([]*Item, 0, len(items))
	for _, item := range items {
		isNew, err := im.claim(ctx, item.ID)
		if err != nil {
			im.releaseAll(ctx, fresh)
			return report, fmt.Errorf("checking imported entries: %w", err)
		}
		if isNew {
			fresh = append(fresh, item)
		} else {
			report.Skipped++
		}
	}

	if im.full {
		ExtractAllContent(fresh, im.logger)
	}

	for i, item := range fresh {
		if err := item.Draft.Validate(); err != nil {
			report.Failures[item.Link] = err
			continue
		}
		article, err := im.creator.CreateArticle(ctx, item.Draft, im.key)
		if err != nil {
			if errors.Is(err, types.ErrUnauthenticated) {
				im.releaseAll(ctx, fresh[i:])
				return report, fmt.Errorf("import stopped: %w", err)
			}
			im.release(ctx, item.ID)
			report.Failures[item.Link] = err
			im.logger.Warn("import failed", "url", item.Link, "error", err)
			continue
		}
		report.Created = append(report.Created, article)
		im.logger.Info("imported", "slug", article.Slug, "source", item.Link)
	}

	return report, nil
}

// claim treats entries without an ID as always new
func (im *Importer) claim(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return true, nil
	}
	return im.seen.Claim(ctx, id)
}

func (im *Importer) release(ctx context.Context, id string) {
	if id == "" {
		return
	}
	if err := im.seen.Release(context.WithoutCancel(ctx), id); err != nil {
		im.logger.Warn("failed to forget entry", "id", id, "error", err)
	}
}

func (im *Importer) releaseAll(ctx context.Context, items []*Item) {
	for _, item := range items {
		im.release(ctx, item.ID)
	}
}
