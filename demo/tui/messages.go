package tui

import (
	"github.com/DoctorGattino/blog/cache"
	"github.com/DoctorGattino/blog/types"
)

// PageLoadedMsg carries the result of a page read
type PageLoadedMsg struct {
	Key    types.PageKey
	Page   types.ArticlePage
	Status cache.Status
	Err    error
}

// ArticleLoadedMsg carries the result of a single-article read
type ArticleLoadedMsg struct {
	Article types.Article
	Err     error
}

// MutationDoneMsg is sent when a favorite, unfavorite or delete settles
type MutationDoneMsg struct {
	Action string
	Slug   string
	Err    error
}

// PageChangedMsg is sent when an optimistic edit, its undo or a server copy
// lands in a cached page
type PageChangedMsg struct {
	Change cache.Change
}

// InvalidatedMsg is sent when a cache entry turns stale
type InvalidatedMsg struct {
	Invalidation cache.Invalidation
}
