package types

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// DefaultAvatarURL is shown for authors without a profile image
const DefaultAvatarURL = "https://api.realworld.io/images/smiley-cyrus.jpg"

// Author is the public profile attached to an article
type Author struct {
	Username string `json:"username"`
	Image    string `json:"image"`
}

// AvatarURL returns the author image, falling back to the platform default
func (a Author) AvatarURL() string {
	if strings.TrimSpace(a.Image) == "" {
		return DefaultAvatarURL
	}
	return a.Image
}

// Article represents a single blog post as returned by the platform API
type Article struct {
	Slug           string    `json:"slug"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Body           string    `json:"body"`
	TagList        []string  `json:"tagList"`
	CreatedAt      time.Time `json:"createdAt"`
	Favorited      bool      `json:"favorited"`
	FavoritesCount int       `json:"favoritesCount"`
	Author         Author    `json:"author"`
}

// Clone returns a deep copy of the article
func (a Article) Clone() Article {
	out := a
	if a.TagList != nil {
		out.TagList = append([]string(nil), a.TagList...)
	}
	return out
}

// ArticlePage is one page of the article list
type ArticlePage struct {
	Articles      []Article `json:"articles"`
	ArticlesCount int       `json:"articlesCount"`
}

// Clone returns a deep copy of the page
func (p ArticlePage) Clone() ArticlePage {
	out := ArticlePage{ArticlesCount: p.ArticlesCount}
	if p.Articles != nil {
		out.Articles = make([]Article, len(p.Articles))
		for i, a := range p.Articles {
			out.Articles[i] = a.Clone()
		}
	}
	return out
}

// IndexOf returns the position of slug in the page, or -1
func (p ArticlePage) IndexOf(slug string) int {
	for i, a := range p.Articles {
		if a.Slug == slug {
			return i
		}
	}
	return -1
}

// PageKey identifies one cached page of the article list
type PageKey struct {
	Page  int
	Limit int
}

// Offset converts the 1-based page number into the API offset
func (k PageKey) Offset() int {
	if k.Page < 1 {
		return 0
	}
	return (k.Page - 1) * k.Limit
}

// Valid reports whether the key can be sent to the API
func (k PageKey) Valid() bool {
	return k.Page >= 1 && k.Limit >= 1
}

func (k PageKey) String() string {
	return fmt.Sprintf("page=%d limit=%d", k.Page, k.Limit)
}

// TotalPages returns how many pages of size limit cover count articles
func TotalPages(count, limit int) int {
	if limit <= 0 || count <= 0 {
		return 0
	}
	return (count + limit - 1) / limit
}

// Draft holds the editable fields of an article
type Draft struct {
	Title       string   `json:"title" binding:"notblank,min=3"`
	Description string   `json:"description" binding:"notblank,min=10"`
	Body        string   `json:"body" binding:"notblank,min=5"`
	TagList     []string `json:"tagList"`
}

// Validate applies the same field rules as the article editor form
func (d Draft) Validate() error {
	return checkStruct(d)
}

// NormalizedTags trims tags and removes blanks and duplicates, keeping order
func (d Draft) NormalizedTags() []string {
	out := make([]string, 0, len(d.TagList))
	seen := make(map[string]struct{}, len(d.TagList))
	for _, t := range d.TagList {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// DraftFromArticle copies the editable fields of an existing article
func DraftFromArticle(a Article) Draft {
	return Draft{
		Title:       a.Title,
		Description: a.Description,
		Body:        a.Body,
		TagList:     append([]string(nil), a.TagList...),
	}
}

// ArticleEnvelope is the {"article": ...} wrapper used by the API
type ArticleEnvelope struct {
	Article Article `json:"article"`
}

// DraftEnvelope is the request body for create and update
type DraftEnvelope struct {
	Article Draft `json:"article"`
}

// ArticlePatch is a partial update; nil fields are left unchanged
type ArticlePatch struct {
	Title       *string   `json:"title,omitempty" binding:"omitempty,notblank,min=3"`
	Description *string   `json:"description,omitempty" binding:"omitempty,notblank,min=10"`
	Body        *string   `json:"body,omitempty" binding:"omitempty,notblank,min=5"`
	TagList     *[]string `json:"tagList,omitempty"`
}

// PatchFromDraft sets every field of the patch from d
func PatchFromDraft(d Draft) ArticlePatch {
	tags := d.NormalizedTags()
	return ArticlePatch{
		Title:       &d.Title,
		Description: &d.Description,
		Body:        &d.Body,
		TagList:     &tags,
	}
}

// Empty reports whether the patch changes nothing
func (p ArticlePatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Body == nil && p.TagList == nil
}

// Validate checks only the fields present in the patch
func (p ArticlePatch) Validate() error {
	return checkStruct(p)
}

// Apply returns a copy of a with the patch fields applied
func (p ArticlePatch) Apply(a Article) Article {
	out := a.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Body != nil {
		out.Body = *p.Body
	}
	if p.TagList != nil {
		out.TagList = append([]string(nil), (*p.TagList)...)
	}
	return out
}

// PatchEnvelope is the request body for a partial update
type PatchEnvelope struct {
	Article ArticlePatch `json:"article"`
}

// Slugify lowercases s and joins its letter and digit runs with dashes
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if out == "" {
		return "article"
	}
	return out
}
