package cache

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/DoctorGattino/blog/events"
	"github.com/DoctorGattino/blog/types"

	"github.com/google/uuid"
)

// mutation carries the identity of one user action through its phases
type mutation struct {
	id   string
	kind events.Kind
	slug string
	log  *slog.Logger
}

func (m *Manager) newMutation(kind events.Kind, slug string) *mutation {
	id := uuid.NewString()
	return &mutation{
		id:   id,
		kind: kind,
		slug: slug,
		log:  m.logger.With("mutation", id, "kind", string(kind), "slug", slug),
	}
}

// admit checks the session and the per-slug single-flight guard. The release
// func must be called once the mutation has settled.
func (m *Manager) admit(ctx context.Context, mu *mutation) (types.User, func(), error) {
	user, ok := m.session.User()
	if !ok {
		m.reject(ctx, mu, types.ErrUnauthenticated)
		return types.User{}, nil, types.ErrUnauthenticated
	}
	release, err := m.acquire(mu.slug)
	if err != nil {
		m.reject(ctx, mu, err)
		return types.User{}, nil, err
	}
	return user, release, nil
}

func (m *Manager) acquire(slug string) (func(), error) {
	if !m.singleFlight {
		return func() {}, nil
	}
	m.inflightMu.Lock()
	defer m.inflightMu.Unlock()
	if _, busy := m.inflight[slug]; busy {
		return nil, types.ErrMutationInFlight
	}
	m.inflight[slug] = struct{}{}
	return func() {
		m.inflightMu.Lock()
		delete(m.inflight, slug)
		m.inflightMu.Unlock()
	}, nil
}

// reject reports a mutation that never reached the remote API
func (m *Manager) reject(ctx context.Context, mu *mutation, err error) {
	mu.log.Debug("mutation rejected", "error", err)
	m.publish(ctx, mu, events.OutcomeRejected, err)
}

// settle invalidates tags and publishes the terminal phase
func (m *Manager) settle(ctx context.Context, mu *mutation, outcome events.Outcome, err error, tags ...Tag) {
	if err != nil {
		mu.log.Warn("mutation failed", "outcome", string(outcome), "error", err)
	} else {
		mu.log.Debug("mutation settled", "outcome", string(outcome))
	}
	n := m.store.Invalidate(tags...)
	mu.log.Debug("tags invalidated", "tags", len(tags), "entries", n)
	m.publish(ctx, mu, outcome, err)
}

func (m *Manager) publish(ctx context.Context, mu *mutation, outcome events.Outcome, err error) {
	ev := events.MutationEvent{
		ID:      mu.id,
		Kind:    mu.kind,
		Slug:    mu.slug,
		Outcome: outcome,
		At:      m.now(),
	}
	if err != nil {
		ev.Error = err.Error()
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if perr := m.publisher.Publish(pubCtx, ev); perr != nil {
		mu.log.Warn("failed to publish mutation event", "error", perr)
	}
}

// Favorite marks slug as favorited, optimistically updating the page at key
func (m *Manager) Favorite(ctx context.Context, slug string, key types.PageKey) (types.Article, error) {
	return m.toggleFavorite(ctx, slug, key, true)
}

// Unfavorite removes the favorite from slug, optimistically updating the page at key
func (m *Manager) Unfavorite(ctx context.Context, slug string, key types.PageKey) (types.Article, error) {
	return m.toggleFavorite(ctx, slug, key, false)
}

func (m *Manager) toggleFavorite(ctx context.Context, slug string, key types.PageKey, on bool) (types.Article, error) {
	kind, call := events.KindUnfavorite, m.remote.Unfavorite
	if on {
		kind, call = events.KindFavorite, m.remote.Favorite
	}
	mu := m.newMutation(kind, slug)

	_, release, err := m.admit(ctx, mu)
	if err != nil {
		return types.Article{}, err
	}
	defer release()

	undo := m.store.patchPage(key, func(p *types.ArticlePage) func(*types.ArticlePage) {
		i := p.IndexOf(slug)
		if i < 0 {
			return nil
		}
		prevFavorited, prevCount := p.Articles[i].Favorited, p.Articles[i].FavoritesCount
		p.Articles[i].Favorited = on
		if on {
			p.Articles[i].FavoritesCount++
		} else if p.Articles[i].FavoritesCount > 0 {
			p.Articles[i].FavoritesCount--
		}
		return func(p *types.ArticlePage) {
			if j := p.IndexOf(slug); j >= 0 {
				p.Articles[j].Favorited = prevFavorited
				p.Articles[j].FavoritesCount = prevCount
			}
		}
	})
	mu.log.Debug("optimistic update applied", "page", key.Page)

	article, err := call(context.WithoutCancel(ctx), slug)
	if err != nil {
		undo()
		m.settle(ctx, mu, events.OutcomeRolledBack, err, ArticleTag(slug), ListTag())
		return types.Article{}, err
	}

	m.store.replaceInPage(key, slug, article)
	m.store.refreshArticle(article)
	m.settle(ctx, mu, events.OutcomeReconciled, nil, ArticleTag(slug), ListTag())
	return article, nil
}

// CreateArticle publishes draft, showing a provisional article at the top of
// the page at key until the server answers
func (m *Manager) CreateArticle(ctx context.Context, draft types.Draft, key types.PageKey) (types.Article, error) {
	now := m.now()
	tempSlug := ProvisionalSlug(draft.Title, now)
	mu := m.newMutation(events.KindCreate, tempSlug)

	if _, ok := m.session.User(); ok {
		if err := draft.Validate(); err != nil {
			m.reject(ctx, mu, err)
			return types.Article{}, err
		}
	}

	user, release, err := m.admit(ctx, mu)
	if err != nil {
		return types.Article{}, err
	}
	defer release()

	provisional := types.Article{
		Slug:        tempSlug,
		Title:       draft.Title,
		Description: draft.Description,
		Body:        draft.Body,
		TagList:     draft.NormalizedTags(),
		CreatedAt:   now,
		Author:      user.Author(),
	}

	undo := m.store.patchPage(key, func(p *types.ArticlePage) func(*types.ArticlePage) {
		p.Articles = append([]types.Article{provisional.Clone()}, p.Articles...)
		p.ArticlesCount++
		return func(p *types.ArticlePage) {
			if j := p.IndexOf(tempSlug); j >= 0 {
				p.Articles = append(p.Articles[:j], p.Articles[j+1:]...)
				p.ArticlesCount--
			}
		}
	})
	mu.log.Debug("optimistic update applied", "page", key.Page)

	article, err := m.remote.CreateArticle(context.WithoutCancel(ctx), draft)
	if err != nil {
		undo()
		m.settle(ctx, mu, events.OutcomeRolledBack, err, ListTag())
		return types.Article{}, err
	}

	// The provisional entry already accounts for the new article in the count,
	// so it is replaced where it stands. If a refetch dropped it, nothing is added.
	if !m.store.replaceInPage(key, tempSlug, article) {
		mu.log.Debug("provisional article no longer cached", "page", key.Page)
	}
	m.store.SetArticle(article)

	mu.slug = article.Slug
	m.settle(ctx, mu, events.OutcomeReconciled, nil, ListTag())
	return article, nil
}

// DeleteArticle removes slug, optimistically dropping it from the page at key
func (m *Manager) DeleteArticle(ctx context.Context, slug string, key types.PageKey) error {
	mu := m.newMutation(events.KindDelete, slug)

	_, release, err := m.admit(ctx, mu)
	if err != nil {
		return err
	}
	defer release()

	undo := m.store.patchPage(key, func(p *types.ArticlePage) func(*types.ArticlePage) {
		i := p.IndexOf(slug)
		if i < 0 {
			return nil
		}
		removed := p.Articles[i].Clone()
		p.Articles = append(p.Articles[:i], p.Articles[i+1:]...)
		decremented := p.ArticlesCount > 0
		if decremented {
			p.ArticlesCount--
		}
		return func(p *types.ArticlePage) {
			if p.IndexOf(slug) >= 0 {
				return
			}
			at := i
			if at > len(p.Articles) {
				at = len(p.Articles)
			}
			p.Articles = append(p.Articles, types.Article{})
			copy(p.Articles[at+1:], p.Articles[at:])
			p.Articles[at] = removed
			if decremented {
				p.ArticlesCount++
			}
		}
	})
	mu.log.Debug("optimistic update applied", "page", key.Page)

	if err := m.remote.DeleteArticle(context.WithoutCancel(ctx), slug); err != nil {
		undo()
		m.settle(ctx, mu, events.OutcomeRolledBack, err, ListTag(), ArticleTag(slug))
		return err
	}

	m.settle(ctx, mu, events.OutcomeReconciled, nil, ListTag(), ArticleTag(slug))
	return nil
}

// EditArticle applies patch to slug. Nothing is changed locally until the
// server confirms, after which the affected entries are invalidated.
func (m *Manager) EditArticle(ctx context.Context, slug string, patch types.ArticlePatch, key types.PageKey) (types.Article, error) {
	mu := m.newMutation(events.KindEdit, slug)

	_, release, err := m.admit(ctx, mu)
	if err != nil {
		return types.Article{}, err
	}
	defer release()

	if err := patch.Validate(); err != nil {
		m.reject(ctx, mu, err)
		return types.Article{}, err
	}

	article, err := m.remote.UpdateArticle(context.WithoutCancel(ctx), slug, patch)
	if err != nil {
		mu.log.Debug("edit rejected by server", "page", key.Page)
		m.settle(ctx, mu, events.OutcomeFailed, err)
		return types.Article{}, err
	}

	tags := []Tag{ArticleTag(slug), ListTag()}
	if article.Slug != "" && article.Slug != slug {
		tags = append(tags, ArticleTag(article.Slug))
	}
	m.settle(ctx, mu, events.OutcomeReconciled, nil, tags...)
	return article, nil
}

// ProvisionalSlug builds the temporary slug of an article that has not been created yet
func ProvisionalSlug(title string, at time.Time) string {
	return types.Slugify(title) + "-" + strconv.FormatInt(at.UnixMilli(), 10)
}
