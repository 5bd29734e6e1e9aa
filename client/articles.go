package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/DoctorGattino/blog/types"
)

func articlePath(slug string) string {
	return "/articles/" + url.PathEscape(slug)
}

// ListArticles fetches one page of the global article feed
func (c *Client) ListArticles(ctx context.Context, key types.PageKey) (types.ArticlePage, error) {
	if !key.Valid() {
		return types.ArticlePage{}, fmt.Errorf("invalid page key %s", key)
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(key.Limit))
	q.Set("offset", strconv.Itoa(key.Offset()))

	var page types.ArticlePage
	if err := c.doJSONRequest(ctx, http.MethodGet, "/articles?"+q.Encode(), nil, &page); err != nil {
		return types.ArticlePage{}, err
	}
	if page.Articles == nil {
		page.Articles = []types.Article{}
	}
	return page, nil
}

// GetArticle fetches a single article by slug
func (c *Client) GetArticle(ctx context.Context, slug string) (types.Article, error) {
	var env types.ArticleEnvelope
	if err := c.doJSONRequest(ctx, http.MethodGet, articlePath(slug), nil, &env); err != nil {
		return types.Article{}, err
	}
	return env.Article, nil
}

// CreateArticle publishes a new article and returns the server copy with its real slug
func (c *Client) CreateArticle(ctx context.Context, draft types.Draft) (types.Article, error) {
	draft.TagList = draft.NormalizedTags()

	var env types.ArticleEnvelope
	if err := c.doJSONRequest(ctx, http.MethodPost, "/articles", types.DraftEnvelope{Article: draft}, &env); err != nil {
		return types.Article{}, err
	}
	return env.Article, nil
}

// UpdateArticle applies a partial update to an existing article
func (c *Client) UpdateArticle(ctx context.Context, slug string, patch types.ArticlePatch) (types.Article, error) {
	var env types.ArticleEnvelope
	if err := c.doJSONRequest(ctx, http.MethodPut, articlePath(slug), types.PatchEnvelope{Article: patch}, &env); err != nil {
		return types.Article{}, err
	}
	return env.Article, nil
}

// DeleteArticle removes an article owned by the session user
func (c *Client) DeleteArticle(ctx context.Context, slug string) error {
	return c.doJSONRequest(ctx, http.MethodDelete, articlePath(slug), nil, nil)
}

// Favorite marks the article as favorited by the session user
func (c *Client) Favorite(ctx context.Context, slug string) (types.Article, error) {
	var env types.ArticleEnvelope
	if err := c.doJSONRequest(ctx, http.MethodPost, articlePath(slug)+"/favorite", nil, &env); err != nil {
		return types.Article{}, err
	}
	return env.Article, nil
}

// Unfavorite removes the session user's favorite from the article
func (c *Client) Unfavorite(ctx context.Context, slug string) (types.Article, error) {
	var env types.ArticleEnvelope
	if err := c.doJSONRequest(ctx, http.MethodDelete, articlePath(slug)+"/favorite", nil, &env); err != nil {
		return types.Article{}, err
	}
	return env.Article, nil
}
