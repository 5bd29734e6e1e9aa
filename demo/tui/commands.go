package tui

import (
	"context"

	"github.com/DoctorGattino/blog/cache"
	"github.com/DoctorGattino/blog/types"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	actionFavorite   = "favorite"
	actionUnfavorite = "unfavorite"
	actionDelete     = "delete"
)

// loadPage creates a command that reads the page through the cache
func loadPage(b Browser, key types.PageKey) tea.Cmd {
	return func() tea.Msg {
		page, st, err := b.Page(context.Background(), key)
		return PageLoadedMsg{Key: key, Page: page, Status: st, Err: err}
	}
}

// loadArticle creates a command that reads one article through the cache
func loadArticle(b Browser, slug string) tea.Cmd {
	return func() tea.Msg {
		a, _, err := b.Article(context.Background(), slug)
		return ArticleLoadedMsg{Article: a, Err: err}
	}
}

// toggleFavorite creates a command that favorites or unfavorites slug
func toggleFavorite(b Browser, slug string, key types.PageKey, on bool) tea.Cmd {
	return func() tea.Msg {
		var err error
		action := actionUnfavorite
		if on {
			action = actionFavorite
			_, err = b.Favorite(context.Background(), slug, key)
		} else {
			_, err = b.Unfavorite(context.Background(), slug, key)
		}
		return MutationDoneMsg{Action: action, Slug: slug, Err: err}
	}
}

// deleteArticle creates a command that deletes slug
func deleteArticle(b Browser, slug string, key types.PageKey) tea.Cmd {
	return func() tea.Msg {
		err := b.DeleteArticle(context.Background(), slug, key)
		return MutationDoneMsg{Action: actionDelete, Slug: slug, Err: err}
	}
}

// waitForChange blocks until a cached page is edited in place or done closes
func waitForChange(ch <-chan cache.Change, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case c := <-ch:
			return PageChangedMsg{Change: c}
		case <-done:
			return nil
		}
	}
}

// waitForInvalidation blocks until the cache reports a stale entry or done closes
func waitForInvalidation(ch <-chan cache.Invalidation, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case inv := <-ch:
			return InvalidatedMsg{Invalidation: inv}
		case <-done:
			return nil
		}
	}
}
