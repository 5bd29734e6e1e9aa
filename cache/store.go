package cache

import (
	"sync"
	"time"

	"github.com/DoctorGattino/blog/types"
)

const (
	// TagTypeArticles is the tag type shared by every article cache entry
	TagTypeArticles = "Articles"
	// ListTagID is provided by every page entry
	ListTagID = "LIST"
)

// Tag is an invalidation label provided by one or more cache entries
type Tag struct {
	Type string
	ID   string
}

// ListTag is provided by every cached page
func ListTag() Tag {
	return Tag{Type: TagTypeArticles, ID: ListTagID}
}

// ArticleTag is provided by the single-item entry for slug
func ArticleTag(slug string) Tag {
	return Tag{Type: TagTypeArticles, ID: slug}
}

func (t Tag) String() string {
	return t.Type + ":" + t.ID
}

// Status describes a cache entry without its value
type Status struct {
	Loading   bool
	Stale     bool
	Err       error
	Version   uint64
	FetchedAt time.Time
}

// EntryKind distinguishes page entries from single-item entries
type EntryKind int

const (
	EntryPage EntryKind = iota
	EntryArticle
)

// Invalidation reports one entry that flipped from fresh to stale
type Invalidation struct {
	Kind EntryKind
	Page types.PageKey
	Slug string
}

// Change reports an in-place edit of a cached page: an optimistic patch, its
// undo, or a server copy replacing a row
type Change struct {
	Page    types.PageKey
	Version uint64
}

type entry[T any] struct {
	value     T
	has       bool
	version   uint64
	stale     bool
	fetchedAt time.Time
	err       error
	loading   int
	// gen counts invalidations so a fetch can tell whether one arrived while it ran
	gen uint64
}

func (e *entry[T]) status() Status {
	return Status{
		Loading:   e.loading > 0,
		Stale:     e.stale,
		Err:       e.err,
		Version:   e.version,
		FetchedAt: e.fetchedAt,
	}
}

func (e *entry[T]) write(v T) {
	e.value = v
	e.has = true
	e.version++
}

// markStale flips the entry and reports whether it was fresh before
func (e *entry[T]) markStale() bool {
	e.gen++
	if e.stale {
		return false
	}
	e.stale = true
	return true
}

// Store holds the page and single-item caches. All values are copied on the way
// in and out so callers never share memory with the cache.
type Store struct {
	mu      sync.Mutex
	pages   map[types.PageKey]*entry[types.ArticlePage]
	items   map[string]*entry[types.Article]
	subs     map[uint64]func(Invalidation)
	watchers map[uint64]func(Change)
	nextSub  uint64
	now     func() time.Time
}

// NewStore creates an empty cache
func NewStore() *Store {
	return &Store{
		pages:    make(map[types.PageKey]*entry[types.ArticlePage]),
		items:    make(map[string]*entry[types.Article]),
		subs:     make(map[uint64]func(Invalidation)),
		watchers: make(map[uint64]func(Change)),
		now:      time.Now,
	}
}

// PeekPage returns the cached page without fetching
func (s *Store) PeekPage(key types.PageKey) (types.ArticlePage, Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.pages[key]
	if !ok {
		return types.ArticlePage{}, Status{}, false
	}
	if !e.has {
		return types.ArticlePage{}, e.status(), false
	}
	return e.value.Clone(), e.status(), true
}

// PeekArticle returns the cached article without fetching
func (s *Store) PeekArticle(slug string) (types.Article, Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[slug]
	if !ok {
		return types.Article{}, Status{}, false
	}
	if !e.has {
		return types.Article{}, e.status(), false
	}
	return e.value.Clone(), e.status(), true
}

// SetPage stores a fresh page, as if it had just been fetched
func (s *Store) SetPage(key types.PageKey, page types.ArticlePage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.pageEntry(key)
	e.write(page.Clone())
	e.stale = false
	e.err = nil
	e.fetchedAt = s.now()
}

// SetArticle stores a fresh single-item entry
func (s *Store) SetArticle(a types.Article) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.itemEntry(a.Slug)
	e.write(a.Clone())
	e.stale = false
	e.err = nil
	e.fetchedAt = s.now()
}

// Invalidate marks every entry providing one of tags as stale and returns how
// many entries flipped. Entries that are already stale are left alone and
// produce no notification.
func (s *Store) Invalidate(tags ...Tag) int {
	s.mu.Lock()
	var flipped []Invalidation
	for _, tag := range tags {
		if tag.Type != TagTypeArticles {
			continue
		}
		if tag.ID == ListTagID {
			for key, e := range s.pages {
				if e.markStale() {
					flipped = append(flipped, Invalidation{Kind: EntryPage, Page: key})
				}
			}
			continue
		}
		if e, ok := s.items[tag.ID]; ok && e.markStale() {
			flipped = append(flipped, Invalidation{Kind: EntryArticle, Slug: tag.ID})
		}
	}
	subs := s.subscribers()
	s.mu.Unlock()

	s.notify(subs, flipped)
	return len(flipped)
}

// InvalidateAll marks every cached entry stale
func (s *Store) InvalidateAll() int {
	s.mu.Lock()
	tags := []Tag{ListTag()}
	for slug := range s.items {
		tags = append(tags, ArticleTag(slug))
	}
	s.mu.Unlock()
	return s.Invalidate(tags...)
}

// Subscribe registers fn for stale notifications; call the returned func to stop
func (s *Store) Subscribe(fn func(Invalidation)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Watch registers fn for in-place page edits; call the returned func to stop
func (s *Store) Watch(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.watchers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

func (s *Store) changed(c Change) {
	s.mu.Lock()
	fns := make([]func(Change), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

// Len returns the number of page and item entries
func (s *Store) Len() (pages, items int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages), len(s.items)
}

func (s *Store) subscribers() []func(Invalidation) {
	out := make([]func(Invalidation), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

func (s *Store) notify(subs []func(Invalidation), flipped []Invalidation) {
	for _, inv := range flipped {
		for _, fn := range subs {
			fn(inv)
		}
	}
}

func (s *Store) pageEntry(key types.PageKey) *entry[types.ArticlePage] {
	e, ok := s.pages[key]
	if !ok {
		e = &entry[types.ArticlePage]{}
		s.pages[key] = e
	}
	return e
}

func (s *Store) itemEntry(slug string) *entry[types.Article] {
	e, ok := s.items[slug]
	if !ok {
		e = &entry[types.Article]{}
		s.items[slug] = e
	}
	return e
}

// pagePatch edits a page in place and returns the inverse edit, or nil when it changed nothing
type pagePatch func(p *types.ArticlePage) (undo func(p *types.ArticlePage))

// patchPage applies fn to the cached page at key under the lock. The returned
// undo applies the inverse edit to whatever the page holds at that time, so it
// only reverts the change this patch made.
func (s *Store) patchPage(key types.PageKey, fn pagePatch) (undo func()) {
	s.mu.Lock()
	e, ok := s.pages[key]
	if !ok || !e.has {
		s.mu.Unlock()
		return func() {}
	}
	inverse := fn(&e.value)
	if inverse == nil {
		s.mu.Unlock()
		return func() {}
	}
	e.version++
	version := e.version
	s.mu.Unlock()
	s.changed(Change{Page: key, Version: version})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			e, ok := s.pages[key]
			if !ok || !e.has {
				s.mu.Unlock()
				return
			}
			inverse(&e.value)
			e.version++
			version := e.version
			s.mu.Unlock()
			s.changed(Change{Page: key, Version: version})
		})
	}
}

// replaceInPage swaps the article with slug for a in the cached page at key
func (s *Store) replaceInPage(key types.PageKey, slug string, a types.Article) bool {
	s.mu.Lock()
	e, ok := s.pages[key]
	if !ok || !e.has {
		s.mu.Unlock()
		return false
	}
	i := e.value.IndexOf(slug)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	e.value.Articles[i] = a.Clone()
	e.version++
	version := e.version
	s.mu.Unlock()
	s.changed(Change{Page: key, Version: version})
	return true
}

// refreshArticle overwrites the single-item entry only when it is already cached
func (s *Store) refreshArticle(a types.Article) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[a.Slug]
	if !ok || !e.has {
		return false
	}
	e.write(a.Clone())
	return true
}

// beginPageFetch marks the page as loading. The entry keeps its stale flag
// until finishPageFetch stores a result, so readers arriving meanwhile still
// see it as stale and join the fetch.
func (s *Store) beginPageFetch(key types.PageKey) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.pageEntry(key)
	e.loading++
	return e.gen
}

// finishPageFetch stores the result of a fetch started at gen. If the page was
// invalidated while the fetch ran, the result is kept but stays stale.
func (s *Store) finishPageFetch(key types.PageKey, gen uint64, page types.ArticlePage, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.pageEntry(key)
	e.loading--
	if err != nil {
		e.err = err
		e.stale = true
		return
	}
	e.write(page.Clone())
	e.err = nil
	e.stale = e.gen != gen
	e.fetchedAt = s.now()
}

func (s *Store) beginArticleFetch(slug string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.itemEntry(slug)
	e.loading++
	return e.gen
}

func (s *Store) finishArticleFetch(slug string, gen uint64, a types.Article, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.itemEntry(slug)
	e.loading--
	if err != nil {
		e.err = err
		e.stale = true
		return
	}
	e.write(a.Clone())
	e.err = nil
	e.stale = e.gen != gen
	e.fetchedAt = s.now()
}
