package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DoctorGattino/blog/events"
	"github.com/DoctorGattino/blog/types"

	"golang.org/x/sync/singleflight"
)

// Remote is the HTTP collaborator the manager reads from and mutates through
type Remote interface {
	ListArticles(ctx context.Context, key types.PageKey) (types.ArticlePage, error)
	GetArticle(ctx context.Context, slug string) (types.Article, error)
	CreateArticle(ctx context.Context, draft types.Draft) (types.Article, error)
	UpdateArticle(ctx context.Context, slug string, patch types.ArticlePatch) (types.Article, error)
	DeleteArticle(ctx context.Context, slug string) error
	Favorite(ctx context.Context, slug string) (types.Article, error)
	Unfavorite(ctx context.Context, slug string) (types.Article, error)

	Login(ctx context.Context, creds types.Credentials) (types.User, error)
	Register(ctx context.Context, reg types.Registration) (types.User, error)
	UpdateUser(ctx context.Context, update types.ProfileUpdate) (types.User, error)
}

// Session is the authenticated-session slot consulted before every mutation
type Session interface {
	User() (types.User, bool)
	Set(ctx context.Context, user types.User) error
	Update(ctx context.Context, user types.User) error
	Clear(ctx context.Context) error
}

// publishTimeout bounds delivery of one mutation event
const publishTimeout = 5 * time.Second

// Manager keeps the page and item caches consistent with the remote API under
// optimistic mutations
type Manager struct {
	store   *Store
	remote  Remote
	session Session

	logger       *slog.Logger
	publisher    events.Publisher
	now          func() time.Time
	singleFlight bool

	fetches singleflight.Group

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithPublisher sends one event per settled mutation to p
func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) {
		if p != nil {
			m.publisher = p
		}
	}
}

// WithClock overrides the time source used for provisional articles and events
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithSingleFlight rejects a mutation on a slug while a previous one is still outstanding
func WithSingleFlight() Option {
	return func(m *Manager) {
		m.singleFlight = true
	}
}

// WithStore shares an existing store
func WithStore(s *Store) Option {
	return func(m *Manager) {
		if s != nil {
			m.store = s
		}
	}
}

// NewManager creates a cache manager over remote, authorizing mutations against sess
func NewManager(remote Remote, sess Session, opts ...Option) *Manager {
	m := &Manager{
		store:     NewStore(),
		remote:    remote,
		session:   sess,
		logger:    slog.Default(),
		publisher: events.NopPublisher{},
		now:       time.Now,
		inflight:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.store.now = m.now
	return m
}

// Store exposes the underlying cache
func (m *Manager) Store() *Store {
	return m.store
}

// Page returns the page at key, fetching it when absent or stale. When a
// refetch fails the previous data is still returned along with the error.
func (m *Manager) Page(ctx context.Context, key types.PageKey) (types.ArticlePage, Status, error) {
	if !key.Valid() {
		return types.ArticlePage{}, Status{}, fmt.Errorf("invalid page key %s", key)
	}
	if page, st, ok := m.store.PeekPage(key); ok && !st.Stale && st.Err == nil {
		return page, st, nil
	}

	err := m.coalesce(ctx, "page:"+key.String(), func(fetchCtx context.Context) error {
		gen := m.store.beginPageFetch(key)
		page, err := m.remote.ListArticles(fetchCtx, key)
		m.store.finishPageFetch(key, gen, page, err)
		if err != nil {
			m.logger.Warn("page fetch failed", "page", key.Page, "limit", key.Limit, "error", err)
		}
		return err
	})

	page, st, _ := m.store.PeekPage(key)
	return page, st, err
}

// Article returns the single article for slug with the same contract as Page
func (m *Manager) Article(ctx context.Context, slug string) (types.Article, Status, error) {
	if slug == "" {
		return types.Article{}, Status{}, fmt.Errorf("empty slug")
	}
	if a, st, ok := m.store.PeekArticle(slug); ok && !st.Stale && st.Err == nil {
		return a, st, nil
	}

	err := m.coalesce(ctx, "article:"+slug, func(fetchCtx context.Context) error {
		gen := m.store.beginArticleFetch(slug)
		a, err := m.remote.GetArticle(fetchCtx, slug)
		m.store.finishArticleFetch(slug, gen, a, err)
		if err != nil {
			m.logger.Warn("article fetch failed", "slug", slug, "error", err)
		}
		return err
	})

	a, st, _ := m.store.PeekArticle(slug)
	return a, st, err
}

// PeekPage returns the cached page and its status without fetching
func (m *Manager) PeekPage(key types.PageKey) (types.ArticlePage, Status, bool) {
	return m.store.PeekPage(key)
}

// PeekArticle returns the cached article and its status without fetching
func (m *Manager) PeekArticle(slug string) (types.Article, Status, bool) {
	return m.store.PeekArticle(slug)
}

// Invalidate marks entries providing tags as stale
func (m *Manager) Invalidate(tags ...Tag) int {
	return m.store.Invalidate(tags...)
}

// Subscribe registers fn for stale notifications
func (m *Manager) Subscribe(fn func(Invalidation)) func() {
	return m.store.Subscribe(fn)
}

// Watch registers fn for optimistic edits to cached pages
func (m *Manager) Watch(fn func(Change)) func() {
	return m.store.Watch(fn)
}

// coalesce runs fetch once for concurrent callers sharing key. The fetch itself
// is not canceled when a caller gives up waiting.
func (m *Manager) coalesce(ctx context.Context, key string, fetch func(context.Context) error) error {
	fetchCtx := context.WithoutCancel(ctx)
	ch := m.fetches.DoChan(key, func() (interface{}, error) {
		return nil, fetch(fetchCtx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}
