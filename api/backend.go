package api

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/DoctorGattino/blog/types"

	"github.com/google/uuid"
)

var (
	errForbidden    = errors.New("forbidden")
	errInvalidLogin = &types.ValidationError{Fields: map[string][]string{"email or password": {"is invalid"}}}
)

type account struct {
	username string
	email    string
	password string
	bio      string
	image    string
}

type record struct {
	article   types.Article
	favorited map[string]bool
}

// Backend is the in-memory state behind the mock platform
type Backend struct {
	mu       sync.RWMutex
	accounts map[string]*account // by username
	tokens   map[string]string   // token -> username
	articles map[string]*record  // by slug
	now      func() time.Time
}

// NewBackend returns an empty platform
func NewBackend() *Backend {
	return &Backend{
		accounts: map[string]*account{},
		tokens:   map[string]string{},
		articles: map[string]*record{},
		now:      time.Now,
	}
}

func hashPassword(p string) string {
	sum := sha256.Sum256([]byte(p))
	return hex.EncodeToString(sum[:])
}

func (b *Backend) issue(a *account) types.User {
	token := uuid.NewString()
	b.tokens[token] = a.username
	return types.User{Username: a.username, Email: a.email, Token: token, Bio: a.bio, Image: a.image}
}

// Register creates an account and returns it signed in
func (b *Backend) Register(reg types.Registration) (types.User, error) {
	if err := reg.Validate(); err != nil {
		return types.User{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	fields := map[string][]string{}
	if _, taken := b.accounts[reg.Username]; taken {
		fields["username"] = []string{"is already taken"}
	}
	if b.byEmail(reg.Email) != nil {
		fields["email"] = []string{"is already taken"}
	}
	if len(fields) > 0 {
		return types.User{}, &types.ValidationError{Fields: fields}
	}

	a := &account{username: reg.Username, email: strings.TrimSpace(reg.Email), password: hashPassword(reg.Password)}
	b.accounts[a.username] = a
	return b.issue(a), nil
}

// Login checks credentials and issues a fresh token
func (b *Backend) Login(creds types.Credentials) (types.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.byEmail(creds.Email)
	if a == nil || a.password != hashPassword(creds.Password) {
		return types.User{}, errInvalidLogin
	}
	return b.issue(a), nil
}

func (b *Backend) byEmail(email string) *account {
	email = strings.TrimSpace(email)
	for _, a := range b.accounts {
		if strings.EqualFold(a.email, email) {
			return a
		}
	}
	return nil
}

// Authenticate resolves a token to its username
func (b *Backend) Authenticate(token string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	name, ok := b.tokens[token]
	return name, ok
}

// CurrentUser returns the account for username with the given token
func (b *Backend) CurrentUser(username, token string) (types.User, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.accounts[username]
	if !ok {
		return types.User{}, types.ErrUnauthenticated
	}
	return types.User{Username: a.username, Email: a.email, Token: token, Bio: a.bio, Image: a.image}, nil
}

// UpdateUser changes the profile of username. Renames carry over tokens and
// authored articles.
func (b *Backend) UpdateUser(username, token string, update types.ProfileUpdate) (types.User, error) {
	if err := update.Validate(); err != nil {
		return types.User{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	a, ok := b.accounts[username]
	if !ok {
		return types.User{}, types.ErrUnauthenticated
	}
	fields := map[string][]string{}
	if other, taken := b.accounts[update.Username]; taken && other != a {
		fields["username"] = []string{"is already taken"}
	}
	if other := b.byEmail(update.Email); other != nil && other != a {
		fields["email"] = []string{"is already taken"}
	}
	if len(fields) > 0 {
		return types.User{}, &types.ValidationError{Fields: fields}
	}

	if update.Username != a.username {
		delete(b.accounts, a.username)
		for t, u := range b.tokens {
			if u == a.username {
				b.tokens[t] = update.Username
			}
		}
		for _, r := range b.articles {
			if r.article.Author.Username == a.username {
				r.article.Author.Username = update.Username
			}
			if r.favorited[a.username] {
				delete(r.favorited, a.username)
				r.favorited[update.Username] = true
			}
		}
		a.username = update.Username
		b.accounts[a.username] = a
	}
	a.email = strings.TrimSpace(update.Email)
	if update.Password != "" {
		a.password = hashPassword(update.Password)
	}
	if update.Image != "" {
		a.image = update.Image
	}
	for _, r := range b.articles {
		if r.article.Author.Username == a.username {
			r.article.Author.Image = a.image
		}
	}
	return types.User{Username: a.username, Email: a.email, Token: token, Bio: a.bio, Image: a.image}, nil
}

// view renders r for viewer, who may be empty
func (r *record) view(viewer string) types.Article {
	out := r.article.Clone()
	out.FavoritesCount = len(r.favorited)
	out.Favorited = viewer != "" && r.favorited[viewer]
	return out
}

// List returns articles newest first, windowed by limit and offset
func (b *Backend) List(viewer string, limit, offset int) types.ArticlePage {
	b.mu.RLock()
	defer b.mu.RUnlock()

	all := make([]*record, 0, len(b.articles))
	for _, r := range b.articles {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].article.CreatedAt.Equal(all[j].article.CreatedAt) {
			return all[i].article.Slug < all[j].article.Slug
		}
		return all[i].article.CreatedAt.After(all[j].article.CreatedAt)
	})

	page := types.ArticlePage{Articles: []types.Article{}, ArticlesCount: len(all)}
	if offset < 0 {
		offset = 0
	}
	for i := offset; i < len(all) && i < offset+limit; i++ {
		page.Articles = append(page.Articles, all[i].view(viewer))
	}
	return page
}

// Get returns one article as seen by viewer
func (b *Backend) Get(viewer, slug string) (types.Article, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.articles[slug]
	if !ok {
		return types.Article{}, types.ErrNotFound
	}
	return r.view(viewer), nil
}

// Create stores a new article by author. The slug is derived from the title
// with a random suffix.
func (b *Backend) Create(author string, draft types.Draft) (types.Article, error) {
	if err := draft.Validate(); err != nil {
		return types.Article{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	a, ok := b.accounts[author]
	if !ok {
		return types.Article{}, types.ErrUnauthenticated
	}
	slug := types.Slugify(draft.Title) + "-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
	r := &record{
		article: types.Article{
			Slug:        slug,
			Title:       strings.TrimSpace(draft.Title),
			Description: strings.TrimSpace(draft.Description),
			Body:        draft.Body,
			TagList:     draft.NormalizedTags(),
			CreatedAt:   b.now().UTC(),
			Author:      types.Author{Username: a.username, Image: a.image},
		},
		favorited: map[string]bool{},
	}
	b.articles[slug] = r
	return r.view(author), nil
}

// Update applies patch to slug. Only the author may edit. A new title keeps
// the slug.
func (b *Backend) Update(author, slug string, patch types.ArticlePatch) (types.Article, error) {
	if err := patch.Validate(); err != nil {
		return types.Article{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.articles[slug]
	if !ok {
		return types.Article{}, types.ErrNotFound
	}
	if r.article.Author.Username != author {
		return types.Article{}, errForbidden
	}
	if patch.TagList != nil {
		tags := types.Draft{TagList: *patch.TagList}.NormalizedTags()
		patch.TagList = &tags
	}
	r.article = patch.Apply(r.article)
	return r.view(author), nil
}

// Delete removes slug. Only the author may delete.
func (b *Backend) Delete(author, slug string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.articles[slug]
	if !ok {
		return types.ErrNotFound
	}
	if r.article.Author.Username != author {
		return errForbidden
	}
	delete(b.articles, slug)
	return nil
}

// SetFavorite marks or clears the favorite of viewer on slug. Repeating the
// same call is idempotent.
func (b *Backend) SetFavorite(viewer, slug string, on bool) (types.Article, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.articles[slug]
	if !ok {
		return types.Article{}, types.ErrNotFound
	}
	if on {
		r.favorited[viewer] = true
	} else {
		delete(r.favorited, viewer)
	}
	return r.view(viewer), nil
}

// Len reports how many articles are stored
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.articles)
}
