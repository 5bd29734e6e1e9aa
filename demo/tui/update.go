package tui

import (
	"errors"
	"fmt"

	"github.com/DoctorGattino/blog/cache"
	"github.com/DoctorGattino/blog/types"

	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model interface
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case PageLoadedMsg:
		return m.handlePageLoaded(msg)
	case ArticleLoadedMsg:
		return m.handleArticleLoaded(msg)
	case MutationDoneMsg:
		return m.handleMutationDone(msg)
	case PageChangedMsg:
		return m.handlePageChanged(msg)
	case InvalidatedMsg:
		return m.handleInvalidated(msg)
	}
	return m, nil
}

// handleKeyPress processes keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" || key == "q" {
		m.Close()
		return m, tea.Quit
	}

	if slug := m.confirmDelete; slug != "" {
		m.confirmDelete = ""
		if key != "d" {
			m.Notice = "Delete canceled"
			return m, nil
		}
		m.Pending[slug] = true
		m.Notice = ""
		m.Err = nil
		if m.Screen == ScreenDetail {
			m.Screen = ScreenList
			m.Detail = nil
		}
		return m, deleteArticle(m.browser, slug, m.key())
	}

	switch key {
	case "up", "k":
		if m.Screen == ScreenList && m.Cursor > 0 {
			m.Cursor--
		}
	case "down", "j":
		if m.Screen == ScreenList && m.Cursor < len(m.Articles)-1 {
			m.Cursor++
		}
	case "right", "l", "n":
		if m.Screen == ScreenList && m.Page < m.TotalPages() {
			return m.goToPage(m.Page + 1)
		}
	case "left", "h", "p":
		if m.Screen == ScreenList && m.Page > 1 {
			return m.goToPage(m.Page - 1)
		}
	case "enter":
		a, ok := m.selected()
		if !ok || m.Screen == ScreenDetail {
			return m, nil
		}
		m.Screen = ScreenDetail
		m.Detail = &a
		return m, loadArticle(m.browser, a.Slug)
	case "esc", "backspace":
		if m.Screen == ScreenDetail {
			m.Screen = ScreenList
			m.Detail = nil
		}
	case "f":
		a, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.Pending[a.Slug] = true
		m.Notice = ""
		m.Err = nil
		return m, toggleFavorite(m.browser, a.Slug, m.key(), !a.Favorited)
	case "d":
		if a, ok := m.selected(); ok {
			m.confirmDelete = a.Slug
		}
	case "r":
		m.Err = nil
		tags := []cache.Tag{cache.ListTag()}
		if m.Detail != nil {
			tags = append(tags, cache.ArticleTag(m.Detail.Slug))
		}
		if m.browser.Invalidate(tags...) == 0 {
			// nothing cached yet, so no invalidation will arrive
			m.Loading = true
			return m, loadPage(m.browser, m.key())
		}
	}
	return m, nil
}

func (m Model) goToPage(page int) (tea.Model, tea.Cmd) {
	m.Page = page
	m.Cursor = 0
	m.Loading = true
	m.Err = nil
	m = m.syncFromCache()
	return m, loadPage(m.browser, m.key())
}

// handlePageLoaded processes a page read. Results for a page that is no
// longer shown are dropped.
func (m Model) handlePageLoaded(msg PageLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Key != m.key() {
		return m, nil
	}
	m.Loading = false
	m.Stale = msg.Status.Stale
	m.Err = msg.Err
	if msg.Err == nil || msg.Page.Articles != nil {
		m.Articles = msg.Page.Articles
		m.Count = msg.Page.ArticlesCount
	}
	if m.Cursor >= len(m.Articles) {
		m.Cursor = max(len(m.Articles)-1, 0)
	}
	return m, nil
}

// handleArticleLoaded processes a detail read
func (m Model) handleArticleLoaded(msg ArticleLoadedMsg) (tea.Model, tea.Cmd) {
	if m.Screen != ScreenDetail {
		return m, nil
	}
	if msg.Err != nil {
		m.Err = msg.Err
		return m, nil
	}
	a := msg.Article
	m.Detail = &a
	return m, nil
}

// handleMutationDone shows the settled state; a failed mutation has already
// been rolled back in the cache
func (m Model) handleMutationDone(msg MutationDoneMsg) (tea.Model, tea.Cmd) {
	delete(m.Pending, msg.Slug)
	m = m.syncFromCache()

	switch {
	case errors.Is(msg.Err, types.ErrUnauthenticated) && m.username == "":
		m.Err = errors.New(TextSignedOut)
	case errors.Is(msg.Err, types.ErrMutationInFlight):
		m.Notice = fmt.Sprintf("%s is still saving", msg.Slug)
	case msg.Err != nil:
		m.Err = fmt.Errorf("%s failed: %w", msg.Action, msg.Err)
	default:
		m.Notice = fmt.Sprintf("%s: %s", msg.Action, msg.Slug)
	}
	return m, nil
}

// handleInvalidated refetches whatever is on screen and keeps listening
func (m Model) handleInvalidated(msg InvalidatedMsg) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{waitForInvalidation(m.invalidations, m.done)}

	inv := msg.Invalidation
	switch {
	case inv.Kind == cache.EntryPage && inv.Page == m.key():
		m.Stale = true
		cmds = append(cmds, loadPage(m.browser, m.key()))
	case inv.Kind == cache.EntryArticle && m.Detail != nil && inv.Slug == m.Detail.Slug:
		cmds = append(cmds, loadArticle(m.browser, inv.Slug))
	}
	return m, tea.Batch(cmds...)
}

// handlePageChanged redraws the list when the visible page was edited in place
func (m Model) handlePageChanged(msg PageChangedMsg) (tea.Model, tea.Cmd) {
	if msg.Change.Page == m.key() {
		m = m.syncFromCache()
	}
	return m, waitForChange(m.changes, m.done)
}
