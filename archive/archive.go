// Package archive copies articles out of the blog into an object store as JSON.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/DoctorGattino/blog/types"
)

const contentTypeJSON = "application/json"

// ObjectStore is the subset of an object store the exporter writes through.
// *common.S3 satisfies it.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// PageSource yields pages of the article feed
type PageSource interface {
	Page(ctx context.Context, key types.PageKey) (types.ArticlePage, error)
}

// PageSourceFunc adapts a function to PageSource
type PageSourceFunc func(ctx context.Context, key types.PageKey) (types.ArticlePage, error)

func (f PageSourceFunc) Page(ctx context.Context, key types.PageKey) (types.ArticlePage, error) {
	return f(ctx, key)
}

// Index is written next to the articles after every export
type Index struct {
	ExportedAt time.Time `json:"exportedAt"`
	Slugs      []string  `json:"slugs"`
	Total      int       `json:"articlesCount"`
}

// Result summarises one export run
type Result struct {
	Written   int
	Unchanged int
	Pages     int
}

type Exporter struct {
	store     ObjectStore
	prefix    string
	overwrite bool
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Exporter)

// WithOverwrite rewrites articles that already exist in the store
func WithOverwrite() Option {
	return func(e *Exporter) { e.overwrite = true }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExporter writes under prefix, which is normalised to end in a slash
func NewExporter(store ObjectStore, prefix string, opts ...Option) *Exporter {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	e := &Exporter{
		store:  store,
		prefix: prefix,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ArticleKey is the object key of slug
func (e *Exporter) ArticleKey(slug string) string {
	return e.prefix + "articles/" + slug + ".json"
}

func (e *Exporter) indexKey() string {
	return e.prefix + "index.json"
}

// Export writes each article. Existing objects are left alone unless the
// exporter was built WithOverwrite.
func (e *Exporter) Export(ctx context.Context, articles []types.Article) (Result, error) {
	var res Result
	for _, a := range articles {
		if a.Slug == "" {
			continue
		}
		written, err := e.put(ctx, a)
		if err != nil {
			return res, err
		}
		if written {
			res.Written++
		} else {
			res.Unchanged++
		}
	}
	return res, nil
}

func (e *Exporter) put(ctx context.Context, a types.Article) (bool, error) {
	key := e.ArticleKey(a.Slug)
	if !e.overwrite {
		exists, err := e.store.Exists(ctx, key)
		if err != nil {
			return false, fmt.Errorf("check %s: %w", key, err)
		}
		if exists {
			e.logger.Debug("article already archived", "slug", a.Slug)
			return false, nil
		}
	}

	data, err := json.MarshalIndent(types.ArticleEnvelope{Article: a}, "", "  ")
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", a.Slug, err)
	}
	if err := e.store.Put(ctx, key, bytes.NewReader(data), contentTypeJSON); err != nil {
		return false, err
	}
	e.logger.Debug("article archived", "slug", a.Slug, "key", key)
	return true, nil
}

// ExportPages walks the feed from page 1 with the given limit until the last
// page (or maxPages when positive) and then rewrites the index.
func (e *Exporter) ExportPages(ctx context.Context, src PageSource, limit, maxPages int) (Result, error) {
	var res Result
	var slugs []string
	total := 0

	for page := 1; ; page++ {
		if maxPages > 0 && page > maxPages {
			break
		}
		key := types.PageKey{Page: page, Limit: limit}
		p, err := src.Page(ctx, key)
		if err != nil {
			return res, fmt.Errorf("fetch %s: %w", key, err)
		}
		res.Pages++
		total = p.ArticlesCount

		r, err := e.Export(ctx, p.Articles)
		res.Written += r.Written
		res.Unchanged += r.Unchanged
		if err != nil {
			return res, err
		}
		for _, a := range p.Articles {
			slugs = append(slugs, a.Slug)
		}

		if len(p.Articles) == 0 || page >= types.TotalPages(p.ArticlesCount, limit) {
			break
		}
	}

	idx := Index{ExportedAt: e.now().UTC(), Slugs: slugs, Total: total}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return res, err
	}
	if err := e.store.Put(ctx, e.indexKey(), bytes.NewReader(data), contentTypeJSON); err != nil {
		return res, err
	}
	e.logger.Info("export finished", "pages", res.Pages, "written", res.Written, "unchanged", res.Unchanged)
	return res, nil
}

// Slugs lists the archived article slugs in order
func (e *Exporter) Slugs(ctx context.Context) ([]string, error) {
	keys, err := e.store.List(ctx, e.prefix+"articles/")
	if err != nil {
		return nil, err
	}
	slugs := make([]string, 0, len(keys))
	for _, k := range keys {
		name := path.Base(k)
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		slugs = append(slugs, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(slugs)
	return slugs, nil
}

// Load reads one archived article back
func (e *Exporter) Load(ctx context.Context, slug string) (types.Article, error) {
	rc, err := e.store.Get(ctx, e.ArticleKey(slug))
	if err != nil {
		return types.Article{}, err
	}
	defer rc.Close()

	var env types.ArticleEnvelope
	if err := json.NewDecoder(rc).Decode(&env); err != nil {
		return types.Article{}, fmt.Errorf("decode %s: %w", slug, err)
	}
	if env.Article.Slug == "" {
		return types.Article{}, errors.New("archived article has no slug")
	}
	return env.Article, nil
}
