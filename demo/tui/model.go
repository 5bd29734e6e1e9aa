package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/DoctorGattino/blog/cache"
	"github.com/DoctorGattino/blog/types"

	tea "github.com/charmbracelet/bubbletea"
)

// Browser is the cache surface the TUI reads and mutates through.
// *cache.Manager satisfies it.
type Browser interface {
	Page(ctx context.Context, key types.PageKey) (types.ArticlePage, cache.Status, error)
	Article(ctx context.Context, slug string) (types.Article, cache.Status, error)
	PeekPage(key types.PageKey) (types.ArticlePage, cache.Status, bool)
	Favorite(ctx context.Context, slug string, key types.PageKey) (types.Article, error)
	Unfavorite(ctx context.Context, slug string, key types.PageKey) (types.Article, error)
	DeleteArticle(ctx context.Context, slug string, key types.PageKey) error
	Invalidate(tags ...cache.Tag) int
	Subscribe(fn func(cache.Invalidation)) func()
	Watch(fn func(cache.Change)) func()
}

// Screen is the view currently shown
type Screen string

const (
	ScreenList   Screen = "list"
	ScreenDetail Screen = "detail"
)

// Model is the article browser state
type Model struct {
	browser  Browser
	pageSize int
	username string

	Screen   Screen
	Page     int
	Articles []types.Article
	Count    int
	Cursor   int
	Detail   *types.Article
	Loading  bool
	Stale    bool
	Pending  map[string]bool
	Notice   string
	Err      error

	confirmDelete string

	invalidations chan cache.Invalidation
	changes       chan cache.Change
	done          chan struct{}
	unsubscribe   func()
	unwatch       func()
}

// NewModel creates a browser starting on page 1. username is empty when
// signed out.
func NewModel(b Browser, pageSize int, username string) Model {
	if pageSize <= 0 {
		pageSize = 5
	}
	m := Model{
		browser:       b,
		pageSize:      pageSize,
		username:      username,
		Screen:        ScreenList,
		Page:          1,
		Pending:       map[string]bool{},
		invalidations: make(chan cache.Invalidation, 32),
		changes:       make(chan cache.Change, 32),
		done:          make(chan struct{}),
	}
	ch := m.invalidations
	m.unsubscribe = b.Subscribe(func(inv cache.Invalidation) {
		select {
		case ch <- inv:
		default:
		}
	})
	changes := m.changes
	m.unwatch = b.Watch(func(c cache.Change) {
		select {
		case changes <- c:
		default:
		}
	})
	return m
}

// Init implements tea.Model interface
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		loadPage(m.browser, m.key()),
		waitForInvalidation(m.invalidations, m.done),
		waitForChange(m.changes, m.done),
	)
}

// Close detaches the model from the cache
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	if m.unwatch != nil {
		m.unwatch()
	}
	select {
	case <-m.done:
	default:
		close(m.done)
	}
}

func (m Model) key() types.PageKey {
	return types.PageKey{Page: m.Page, Limit: m.pageSize}
}

// TotalPages is the page count for the last known article total
func (m Model) TotalPages() int {
	return types.TotalPages(m.Count, m.pageSize)
}

func (m Model) selected() (types.Article, bool) {
	if m.Screen == ScreenDetail && m.Detail != nil {
		return *m.Detail, true
	}
	if m.Cursor < 0 || m.Cursor >= len(m.Articles) {
		return types.Article{}, false
	}
	return m.Articles[m.Cursor], true
}

// syncFromCache redraws the list from the cached page without fetching
func (m Model) syncFromCache() Model {
	page, st, ok := m.browser.PeekPage(m.key())
	if !ok {
		return m
	}
	m.Articles = page.Articles
	m.Count = page.ArticlesCount
	m.Stale = st.Stale
	m.Loading = st.Loading
	if m.Cursor >= len(m.Articles) {
		m.Cursor = max(len(m.Articles)-1, 0)
	}
	if m.Detail != nil {
		if i := page.IndexOf(m.Detail.Slug); i >= 0 {
			a := page.Articles[i]
			m.Detail = &a
		}
	}
	return m
}

// getStateText returns the status line
func (m Model) getStateText() string {
	switch {
	case m.Err != nil:
		return ErrorStyle.Render(fmt.Sprintf("Error: %v", m.Err))
	case m.Loading:
		return StatusStyle.Render("Loading...")
	case m.confirmDelete != "":
		return WarnStyle.Render(fmt.Sprintf("Delete %q? Press d again to confirm, any other key to cancel", m.confirmDelete))
	case m.Notice != "":
		return StatusStyle.Render(m.Notice)
	default:
		return ""
	}
}

func (m Model) formatArticleRow(i int, a types.Article) string {
	heart := "♡"
	if a.Favorited {
		heart = "♥"
	}
	line := fmt.Sprintf("%s %d  %s", heart, a.FavoritesCount, a.Title)
	if len(a.TagList) > 0 {
		line += "  " + TagStyle.Render(strings.Join(a.TagList, " "))
	}
	meta := fmt.Sprintf("   by %s on %s", a.Author.Username, a.CreatedAt.Format("Jan 2, 2006"))
	if m.Pending[a.Slug] {
		meta += " (saving)"
	}

	if i == m.Cursor {
		return SelectedStyle.Render("> "+line) + "\n" + InfoStyle.Render(meta)
	}
	return "  " + line + "\n" + InfoStyle.Render(meta)
}

func (m Model) formatDetail(a types.Article) string {
	var b strings.Builder
	b.WriteString(HighlightStyle.Render(a.Title))
	b.WriteString("\n\n")
	b.WriteString(InfoStyle.Render(fmt.Sprintf("%s · %s · ♥ %d", a.Author.Username, a.CreatedAt.Format("Jan 2, 2006"), a.FavoritesCount)))
	b.WriteString("\n")
	if len(a.TagList) > 0 {
		b.WriteString(TagStyle.Render(strings.Join(a.TagList, " ")))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(a.Description)
	b.WriteString("\n\n")
	b.WriteString(a.Body)
	return b.String()
}
