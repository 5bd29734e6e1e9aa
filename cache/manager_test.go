package cache

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/DoctorGattino/blog/events"
	"github.com/DoctorGattino/blog/types"
)

func scenarioPage() types.ArticlePage {
	p := samplePage(5)
	p.Articles[2].Slug = "a"
	p.Articles[2].FavoritesCount = 3
	p.Articles[2].Favorited = false
	return p
}

func TestFavoriteSuccessTakesServerCounts(t *testing.T) {
	remote := newFakeRemote()
	m := newTestManager(t, remote, signedIn(t))
	seed(m, remote, page1, scenarioPage())
	m.Store().SetArticle(scenarioPage().Articles[2])
	remote.favorites["a"] = 42

	got, err := m.Favorite(context.Background(), "a", page1)
	if err != nil {
		t.Fatalf("Favorite: %v", err)
	}
	if got.FavoritesCount != 42 || !got.Favorited {
		t.Errorf("returned article = %+v", got)
	}

	page, st, ok := m.PeekPage(page1)
	if !ok {
		t.Fatal("page evicted")
	}
	a := page.Articles[page.IndexOf("a")]
	if a.FavoritesCount != 42 || !a.Favorited {
		t.Errorf("cached article favorited=%v count=%d, want true/42", a.Favorited, a.FavoritesCount)
	}
	if !st.Stale {
		t.Error("list tag should be stale after settle")
	}

	item, ist, ok := m.PeekArticle("a")
	if !ok || item.FavoritesCount != 42 {
		t.Errorf("item entry not refreshed: %+v", item)
	}
	if !ist.Stale {
		t.Error("slug tag should be stale after settle")
	}
}

func TestFavoriteFailureRestoresSnapshot(t *testing.T) {
	remote := newFakeRemote()
	m := newTestManager(t, remote, signedIn(t))
	seed(m, remote, page1, scenarioPage())
	before, _, _ := m.PeekPage(page1)

	remote.failWith("favorite", &types.APIError{Kind: types.ErrTransportFailure, StatusCode: 502})
	remote.hold()

	done := make(chan error, 1)
	go func() {
		_, err := m.Favorite(context.Background(), "a", page1)
		done <- err
	}()
	waitStarted(t, remote)

	mid, _, _ := m.PeekPage(page1)
	a := mid.Articles[mid.IndexOf("a")]
	if a.FavoritesCount != 4 || !a.Favorited {
		t.Errorf("optimistic state favorited=%v count=%d, want true/4", a.Favorited, a.FavoritesCount)
	}

	remote.release()
	err := <-done
	if !errors.Is(err, types.ErrTransportFailure) {
		t.Fatalf("err = %v, want transport failure", err)
	}

	after, st, _ := m.PeekPage(page1)
	if !reflect.DeepEqual(before, after) {
		t.Errorf("page after rollback differs:\nbefore %+v\nafter  %+v", before, after)
	}
	a = after.Articles[after.IndexOf("a")]
	if a.FavoritesCount != 3 || a.Favorited {
		t.Errorf("rolled back favorited=%v count=%d, want false/3", a.Favorited, a.FavoritesCount)
	}
	if !st.Stale {
		t.Error("tags should be invalidated after a failed settle too")
	}
}

func TestUnfavoriteOptimisticDecrementFloorsAtZero(t *testing.T) {
	remote := newFakeRemote()
	m := newTestManager(t, remote, signedIn(t))
	p := samplePage(1)
	p.Articles[0].Favorited = true
	p.Articles[0].FavoritesCount = 0
	seed(m, remote, page1, p)

	remote.hold()
	done := make(chan error, 1)
	go func() {
		_, err := m.Unfavorite(context.Background(), "article-0", page1)
		done <- err
	}()
	waitStarted(t, remote)

	mid, _, _ := m.PeekPage(page1)
	if mid.Articles[0].Favorited || mid.Articles[0].FavoritesCount != 0 {
		t.Errorf("optimistic unfavorite = %+v", mid.Articles[0])
	}
	remote.release()
	if err := <-done; err != nil {
		t.Fatalf("Unfavorite: %v", err)
	}
}

func TestMutationsRequireSession(t *testing.T) {
	ctx := context.Background()
	title := "New title"

	tests := []struct {
		name string
		run  func(m *Manager) error
	}{
		{"favorite", func(m *Manager) error { _, err := m.Favorite(ctx, "my-slug", page1); return err }},
		{"unfavorite", func(m *Manager) error { _, err := m.Unfavorite(ctx, "my-slug", page1); return err }},
		{"create", func(m *Manager) error {
			_, err := m.CreateArticle(ctx, types.Draft{Title: "Title", Description: "Long enough", Body: "Body text"}, page1)
			return err
		}},
		{"create invalid", func(m *Manager) error { _, err := m.CreateArticle(ctx, types.Draft{}, page1); return err }},
		{"delete", func(m *Manager) error { return m.DeleteArticle(ctx, "my-slug", page1) }},
		{"edit", func(m *Manager) error {
			_, err := m.EditArticle(ctx, "my-slug", types.ArticlePatch{Title: &title}, page1)
			return err
		}},
		{"update user", func(m *Manager) error {
			_, err := m.UpdateUser(ctx, types.ProfileUpdate{Username: "jake", Email: "jake@jake.jake"})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := newFakeRemote()
			m := newTestManager(t, remote, signedOut())
			p := samplePage(5)
			p.Articles[0].Slug = "my-slug"
			seed(m, remote, page1, p)
			before, beforeStatus, _ := m.PeekPage(page1)

			if err := tt.run(m); !errors.Is(err, types.ErrUnauthenticated) {
				t.Fatalf("err = %v, want ErrUnauthenticated", err)
			}

			after, afterStatus, _ := m.PeekPage(page1)
			if !reflect.DeepEqual(before, after) || beforeStatus != afterStatus {
				t.Error("cache changed for an unauthenticated call")
			}
			for _, method := range []string{"favorite", "unfavorite", "create", "delete", "update", "update-user"} {
				if n := remote.count(method); n != 0 {
					t.Errorf("remote %s called %d times", method, n)
				}
			}
		})
	}
}

func TestInvalidateIsIdempotent(t *testing.T) {
	remote := newFakeRemote()
	m := newTestManager(t, remote, signedIn(t))
	seed(m, remote, page1, samplePage(5))
	seed(m, remote, types.PageKey{Page: 2, Limit: 5}, samplePage(5))

	var mu sync.Mutex
	var seen []Invalidation
	unsubscribe := m.Subscribe(func(inv Invalidation) {
		mu.Lock()
		seen = append(seen, inv)
		mu.Unlock()
	})
	defer unsubscribe()

	if n := m.Invalidate(ListTag()); n != 2 {
		t.Errorf("first invalidation flipped %d entries, want 2", n)
	}
	if n := m.Invalidate(ListTag(), ListTag()); n != 0 {
		t.Errorf("repeat invalidation flipped %d entries, want 0", n)
	}
	if len(seen) != 2 {
		t.Errorf("got %d notifications, want 2", len(seen))
	}

	if _, _, err := m.Page(context.Background(), page1); err != nil {
		t.Fatalf("Page: %v", err)
	}
	if _, _, err := m.Page(context.Background(), page1); err != nil {
		t.Fatalf("Page: %v", err)
	}
	if n := remote.count("list"); n != 1 {
		t.Errorf("stale page refetched %d times, want 1", n)
	}
}

func TestDeleteArticle(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		remote := newFakeRemote()
		m := newTestManager(t, remote, signedIn(t))
		seed(m, remote, page1, samplePage(5))
		m.Store().SetArticle(samplePage(5).Articles[1])

		if err := m.DeleteArticle(context.Background(), "article-1", page1); err != nil {
			t.Fatalf("DeleteArticle: %v", err)
		}
		page, st, _ := m.PeekPage(page1)
		if page.IndexOf("article-1") >= 0 {
			t.Error("slug still present after delete")
		}
		if page.ArticlesCount != 22 {
			t.Errorf("count = %d, want 22", page.ArticlesCount)
		}
		if !st.Stale {
			t.Error("list tag should be stale")
		}
		if _, ist, _ := m.PeekArticle("article-1"); !ist.Stale {
			t.Error("slug tag should be stale")
		}
	})

	t.Run("failure restores position and count", func(t *testing.T) {
		remote := newFakeRemote()
		m := newTestManager(t, remote, signedIn(t))
		seed(m, remote, page1, samplePage(5))
		before, _, _ := m.PeekPage(page1)
		remote.failWith("delete", &types.APIError{Kind: types.ErrUnauthenticated, StatusCode: 403})

		err := m.DeleteArticle(context.Background(), "article-3", page1)
		if !errors.Is(err, types.ErrUnauthenticated) {
			t.Fatalf("err = %v, want ErrUnauthenticated", err)
		}
		after, _, _ := m.PeekPage(page1)
		if !reflect.DeepEqual(before, after) {
			t.Errorf("page not restored:\nbefore %+v\nafter  %+v", before, after)
		}
	})

	t.Run("failure on a page counted as empty", func(t *testing.T) {
		remote := newFakeRemote()
		m := newTestManager(t, remote, signedIn(t))
		p := samplePage(3)
		p.ArticlesCount = 0
		seed(m, remote, page1, p)
		remote.failWith("delete", &types.APIError{Kind: types.ErrTransportFailure, StatusCode: 502})

		if err := m.DeleteArticle(context.Background(), "article-1", page1); err == nil {
			t.Fatal("expected delete to fail")
		}
		page, _, _ := m.PeekPage(page1)
		if page.ArticlesCount != 0 || len(page.Articles) != 3 {
			t.Errorf("count = %d, len = %d; want 0 and 3", page.ArticlesCount, len(page.Articles))
		}
	})

	t.Run("slug absent from page", func(t *testing.T) {
		remote := newFakeRemote()
		m := newTestManager(t, remote, signedIn(t))
		seed(m, remote, page1, samplePage(5))
		remote.articles["elsewhere"] = types.Article{Slug: "elsewhere"}

		if err := m.DeleteArticle(context.Background(), "elsewhere", page1); err != nil {
			t.Fatalf("DeleteArticle: %v", err)
		}
		page, _, _ := m.PeekPage(page1)
		if len(page.Articles) != 5 || page.ArticlesCount != 23 {
			t.Errorf("page changed for a slug it did not contain: %d articles, count %d", len(page.Articles), page.ArticlesCount)
		}
	})
}

func TestCreateArticleRoundTrip(t *testing.T) {
	remote := newFakeRemote()
	remote.nextSlug = "hello-world-abc123"
	m := newTestManager(t, remote, signedIn(t))
	seed(m, remote, page1, samplePage(5))

	remote.hold()
	draft := types.Draft{Title: "Hello, World!", Description: "A first post", Body: "Body text", TagList: []string{"intro", " intro "}}
	done := make(chan error, 1)
	var created types.Article
	go func() {
		var err error
		created, err = m.CreateArticle(context.Background(), draft, page1)
		done <- err
	}()
	waitStarted(t, remote)

	mid, _, _ := m.PeekPage(page1)
	provisional := mid.Articles[0]
	if provisional.Slug != "hello-world-"+"1709294400000" {
		t.Errorf("provisional slug = %q", provisional.Slug)
	}
	if provisional.FavoritesCount != 0 || provisional.Author.Username != "jake" || !provisional.CreatedAt.Equal(epoch) {
		t.Errorf("provisional article = %+v", provisional)
	}
	if mid.ArticlesCount != 24 || len(mid.Articles) != 6 {
		t.Errorf("optimistic page has %d articles, count %d", len(mid.Articles), mid.ArticlesCount)
	}

	remote.release()
	if err := <-done; err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}
	if created.Slug != "hello-world-abc123" {
		t.Errorf("created slug = %q", created.Slug)
	}

	settled, st, _ := m.PeekPage(page1)
	if settled.ArticlesCount != 24 {
		t.Errorf("count after settle = %d, want 24 (no second increment)", settled.ArticlesCount)
	}
	if settled.Articles[0].Slug != created.Slug || settled.IndexOf(provisional.Slug) >= 0 {
		t.Errorf("provisional entry not replaced in place: first slug %q", settled.Articles[0].Slug)
	}
	if !st.Stale {
		t.Fatal("list tag should be stale after create")
	}

	// The server now lists the new article first.
	serverPage := samplePage(4)
	serverPage.Articles = append([]types.Article{created}, serverPage.Articles...)
	serverPage.ArticlesCount = 24
	remote.setPage(page1, serverPage)

	refreshed, _, err := m.Page(context.Background(), page1)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if refreshed.Articles[0].Slug != created.Slug {
		t.Errorf("first slug after refresh = %q, want %q", refreshed.Articles[0].Slug, created.Slug)
	}
	seen := map[string]int{}
	for _, a := range refreshed.Articles {
		seen[a.Slug]++
		if seen[a.Slug] > 1 {
			t.Errorf("duplicate entry %q after refresh", a.Slug)
		}
	}
}

func TestCreateArticleFailureRemovesProvisional(t *testing.T) {
	remote := newFakeRemote()
	m := newTestManager(t, remote, signedIn(t))
	seed(m, remote, page1, samplePage(5))
	before, _, _ := m.PeekPage(page1)

	remote.failWith("create", &types.ValidationError{Fields: map[string][]string{"title": {"must be unique"}}})
	_, err := m.CreateArticle(context.Background(), types.Draft{Title: "Taken", Description: "Long enough text", Body: "Body!"}, page1)
	if fields := types.FieldErrors(err); fields["title"] == nil {
		t.Fatalf("expected title field error, got %v", err)
	}

	after, _, _ := m.PeekPage(page1)
	if !reflect.DeepEqual(before, after) {
		t.Errorf("page not restored:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestCreateArticleFailureOnEmptyPageRestoresCount(t *testing.T) {
	remote := newFakeRemote()
	m := newTestManager(t, remote, signedIn(t))
	seed(m, remote, page1, types.ArticlePage{Articles: []types.Article{}})
	remote.failWith("create", &types.APIError{Kind: types.ErrTransportFailure, StatusCode: 502})

	if _, err := m.CreateArticle(context.Background(), types.Draft{Title: "First", Description: "Long enough text", Body: "Body!"}, page1); err == nil {
		t.Fatal("expected create to fail")
	}
	page, _, _ := m.PeekPage(page1)
	if page.ArticlesCount != 0 || len(page.Articles) != 0 {
		t.Errorf("count = %d, len = %d; want an empty page", page.ArticlesCount, len(page.Articles))
	}
}

func TestCreateArticleAfterConcurrentRefetchAddsNothing(t *testing.T) {
	remote := newFakeRemote()
	m := newTestManager(t, remote, signedIn(t))
	seed(m, remote, page1, samplePage(5))

	remote.hold()
	done := make(chan error, 1)
	go func() {
		_, err := m.CreateArticle(context.Background(), types.Draft{Title: "Race", Description: "Long enough text", Body: "Body!"}, page1)
		done <- err
	}()
	waitStarted(t, remote)

	refetched := samplePage(5)
	m.Store().SetPage(page1, refetched)

	remote.release()
	if err := <-done; err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}
	page, _, _ := m.PeekPage(page1)
	if len(page.Articles) != 5 || page.ArticlesCount != refetched.ArticlesCount {
		t.Errorf("page grew after refetch dropped the provisional entry: %d articles, count %d", len(page.Articles), page.ArticlesCount)
	}
}

func TestCreateArticleValidatesDraft(t *testing.T) {
	remote := newFakeRemote()
	m := newTestManager(t, remote, signedIn(t))
	seed(m, remote, page1, samplePage(5))

	_, err := m.CreateArticle(context.Background(), types.Draft{Title: "Go", Description: "short", Body: ""}, page1)
	if !errors.Is(err, types.ErrValidationFailed) {
		t.Fatalf("err = %v, want validation failure", err)
	}
	fields := types.FieldErrors(err)
	for _, f := range []string{"title", "description", "body"} {
		if len(fields[f]) == 0 {
			t.Errorf("missing %s error in %v", f, fields)
		}
	}
	if remote.count("create") != 0 {
		t.Error("invalid draft reached the server")
	}
}

func TestEditArticleInvalidatesWithoutPatching(t *testing.T) {
	remote := newFakeRemote()
	m := newTestManager(t, remote, signedIn(t))
	p := samplePage(5)
	p.Articles[0].Slug = "a"
	seed(m, remote, page1, p)
	m.Store().SetArticle(p.Articles[0])
	before, beforeStatus, _ := m.PeekPage(page1)

	title := "New"
	got, err := m.EditArticle(context.Background(), "a", types.ArticlePatch{Title: &title}, page1)
	if err != nil {
		t.Fatalf("EditArticle: %v", err)
	}
	if got.Title != "New" {
		t.Errorf("returned title = %q", got.Title)
	}

	after, st, _ := m.PeekPage(page1)
	if !reflect.DeepEqual(before, after) || st.Version != beforeStatus.Version {
		t.Error("edit mutated the cached page directly")
	}
	if !st.Stale {
		t.Error("list tag should be stale")
	}
	if _, ist, _ := m.PeekArticle("a"); !ist.Stale {
		t.Error("slug tag should be stale")
	}
}

func TestEditArticleFailureLeavesCacheFresh(t *testing.T) {
	remote := newFakeRemote()
	m := newTestManager(t, remote, signedIn(t))
	seed(m, remote, page1, samplePage(5))
	remote.failWith("update", &types.ValidationError{Fields: map[string][]string{"body": {"can't be blank"}}})

	body := "Valid body"
	_, err := m.EditArticle(context.Background(), "article-0", types.ArticlePatch{Body: &body}, page1)
	if !errors.Is(err, types.ErrValidationFailed) {
		t.Fatalf("err = %v, want validation failure", err)
	}
	if _, st, _ := m.PeekPage(page1); st.Stale {
		t.Error("failed edit should not invalidate")
	}
}

func TestSingleFlightRejectsSecondMutation(t *testing.T) {
	remote := newFakeRemote()
	m := newTestManager(t, remote, signedIn(t), WithSingleFlight())
	seed(m, remote, page1, samplePage(5))

	remote.hold("article-0")
	done := make(chan error, 1)
	go func() {
		_, err := m.Favorite(context.Background(), "article-0", page1)
		done <- err
	}()
	waitStarted(t, remote)

	if _, err := m.Unfavorite(context.Background(), "article-0", page1); !errors.Is(err, types.ErrMutationInFlight) {
		t.Errorf("second mutation err = %v, want ErrMutationInFlight", err)
	}
	if _, err := m.Favorite(context.Background(), "article-1", page1); err != nil {
		t.Errorf("mutation on another slug should proceed: %v", err)
	}

	remote.release()
	if err := <-done; err != nil {
		t.Fatalf("Favorite: %v", err)
	}
	if _, err := m.Unfavorite(context.Background(), "article-0", page1); err != nil {
		t.Errorf("slug should be free after settle: %v", err)
	}
}

func TestConcurrentMutationsOnDifferentEntries(t *testing.T) {
	remote := newFakeRemote()
	m := newTestManager(t, remote, signedIn(t))
	seed(m, remote, page1, samplePage(5))
	remote.mutateErr["favorite:article-0"] = &types.APIError{Kind: types.ErrTransportFailure}

	remote.hold("article-0")
	done := make(chan error, 1)
	go func() {
		_, err := m.Favorite(context.Background(), "article-0", page1)
		done <- err
	}()
	waitStarted(t, remote)

	if _, err := m.Favorite(context.Background(), "article-1", page1); err != nil {
		t.Fatalf("Favorite article-1: %v", err)
	}
	remote.release()
	if err := <-done; err == nil {
		t.Fatal("expected article-0 favorite to fail")
	}

	page, _, _ := m.PeekPage(page1)
	a0, a1 := page.Articles[0], page.Articles[1]
	if a0.Favorited || a0.FavoritesCount != 0 {
		t.Errorf("article-0 not rolled back: %+v", a0)
	}
	if !a1.Favorited || a1.FavoritesCount != 2 {
		t.Errorf("article-1 rollback of a sibling clobbered it: %+v", a1)
	}
}

func TestPageFetchCoalesces(t *testing.T) {
	remote := newFakeRemote()
	remote.setPage(page1, samplePage(5))
	remote.listDelay = make(chan struct{})
	m := newTestManager(t, remote, signedOut())

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	read := func() {
		defer wg.Done()
		_, _, err := m.Page(context.Background(), page1)
		errs <- err
	}

	wg.Add(1)
	go read()
	waitFor(t, func() bool {
		_, st, _ := m.PeekPage(page1)
		return st.Loading
	})

	wg.Add(2)
	go read()
	go read()
	time.Sleep(50 * time.Millisecond)

	close(remote.listDelay)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Page: %v", err)
		}
	}
	if n := remote.count("list"); n != 1 {
		t.Errorf("list called %d times for concurrent readers, want 1", n)
	}
}

func TestStaleRefetchMakesLateReadersWait(t *testing.T) {
	remote := newFakeRemote()
	m := newTestManager(t, remote, signedOut())
	seed(m, remote, page1, samplePage(5))
	m.Invalidate(ListTag())

	remote.setPage(page1, samplePage(2))
	remote.mu.Lock()
	remote.listDelay = make(chan struct{})
	remote.mu.Unlock()

	type result struct {
		page types.ArticlePage
		st   Status
		err  error
	}
	results := make(chan result, 2)
	read := func() {
		page, st, err := m.Page(context.Background(), page1)
		results <- result{page, st, err}
	}

	go read()
	waitFor(t, func() bool {
		_, st, _ := m.PeekPage(page1)
		return st.Loading
	})
	if _, st, _ := m.PeekPage(page1); !st.Stale {
		t.Error("page reported fresh while its refetch is still running")
	}

	go read()
	select {
	case r := <-results:
		t.Fatalf("reader returned before the refetch finished: %d articles, status %+v", len(r.page.Articles), r.st)
	case <-time.After(50 * time.Millisecond):
	}

	close(remote.listDelay)
	for i := 0; i < 2; i++ {
		r := <-results
		if r.err != nil {
			t.Fatalf("Page: %v", r.err)
		}
		if len(r.page.Articles) != 2 || r.st.Stale {
			t.Errorf("reader %d got %d articles, stale=%v; want the refetched 2, fresh", i, len(r.page.Articles), r.st.Stale)
		}
	}
	if n := remote.count("list"); n != 1 {
		t.Errorf("list called %d times, want 1", n)
	}
}

func TestInvalidationDuringFetchKeepsEntryStale(t *testing.T) {
	remote := newFakeRemote()
	remote.setPage(page1, samplePage(3))
	remote.listDelay = make(chan struct{})
	m := newTestManager(t, remote, signedOut())

	done := make(chan error, 1)
	go func() {
		_, _, err := m.Page(context.Background(), page1)
		done <- err
	}()
	waitFor(t, func() bool {
		_, st, _ := m.PeekPage(page1)
		return st.Loading
	})

	m.Invalidate(ListTag())
	close(remote.listDelay)
	if err := <-done; err != nil {
		t.Fatalf("Page: %v", err)
	}

	if _, st, _ := m.PeekPage(page1); !st.Stale {
		t.Error("result fetched before the invalidation was stored as fresh")
	}
	remote.mu.Lock()
	remote.listDelay = nil
	remote.mu.Unlock()
	if _, _, err := m.Page(context.Background(), page1); err != nil {
		t.Fatalf("Page: %v", err)
	}
	if n := remote.count("list"); n != 2 {
		t.Errorf("list called %d times, want 2", n)
	}
}

func TestRefetchFailureKeepsPreviousData(t *testing.T) {
	remote := newFakeRemote()
	m := newTestManager(t, remote, signedOut())
	seed(m, remote, page1, samplePage(5))
	m.Invalidate(ListTag())
	remote.listErr = &types.APIError{Kind: types.ErrTransportFailure, StatusCode: 503}

	page, st, err := m.Page(context.Background(), page1)
	if !errors.Is(err, types.ErrTransportFailure) {
		t.Fatalf("err = %v, want transport failure", err)
	}
	if len(page.Articles) != 5 {
		t.Errorf("previous data not returned: %d articles", len(page.Articles))
	}
	if st.Err == nil || st.Loading {
		t.Errorf("status = %+v, want Err set and not loading", st)
	}

	remote.listErr = nil
	if _, st, err := m.Page(context.Background(), page1); err != nil || st.Err != nil {
		t.Errorf("retry after failure: err=%v status=%+v", err, st)
	}
}

func TestArticleAccessor(t *testing.T) {
	remote := newFakeRemote()
	remote.setPage(page1, samplePage(2))
	m := newTestManager(t, remote, signedOut())

	a, st, err := m.Article(context.Background(), "article-1")
	if err != nil || a.Slug != "article-1" || st.Version == 0 {
		t.Fatalf("Article = %+v %+v %v", a, st, err)
	}
	if _, _, err := m.Article(context.Background(), "article-1"); err != nil {
		t.Fatal(err)
	}
	if n := remote.count("get"); n != 1 {
		t.Errorf("get called %d times, want 1", n)
	}

	if _, _, err := m.Article(context.Background(), "missing"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestReadsDoNotAliasCache(t *testing.T) {
	remote := newFakeRemote()
	m := newTestManager(t, remote, signedOut())
	seed(m, remote, page1, samplePage(2))

	page, _, _ := m.PeekPage(page1)
	page.Articles[0].Title = "mutated"
	page.Articles[0].TagList[0] = "mutated"

	again, _, _ := m.PeekPage(page1)
	if again.Articles[0].Title == "mutated" || again.Articles[0].TagList[0] == "mutated" {
		t.Error("caller mutation leaked into the cache")
	}
}

func TestMutationEventsPublished(t *testing.T) {
	remote := newFakeRemote()
	pub := &recordingPublisher{}
	m := newTestManager(t, remote, signedIn(t), WithPublisher(pub))
	seed(m, remote, page1, samplePage(5))
	remote.mutateErr["delete"] = &types.APIError{Kind: types.ErrTransportFailure}

	ctx := context.Background()
	_, _ = m.Favorite(ctx, "article-0", page1)
	_ = m.DeleteArticle(ctx, "article-1", page1)

	got := pub.all()
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(got), got)
	}
	if got[0].Kind != events.KindFavorite || got[0].Outcome != events.OutcomeReconciled || got[0].Slug != "article-0" {
		t.Errorf("first event = %+v", got[0])
	}
	if got[1].Kind != events.KindDelete || got[1].Outcome != events.OutcomeRolledBack || got[1].Error == "" {
		t.Errorf("second event = %+v", got[1])
	}
	if got[0].ID == "" || got[0].ID == got[1].ID {
		t.Errorf("event IDs not unique: %q %q", got[0].ID, got[1].ID)
	}
	if !got[0].At.Equal(epoch) {
		t.Errorf("event time = %v, want injected clock", got[0].At)
	}
}

func TestLogoutInvalidatesEverything(t *testing.T) {
	remote := newFakeRemote()
	sess := signedIn(t)
	m := newTestManager(t, remote, sess)
	seed(m, remote, page1, samplePage(2))
	m.Store().SetArticle(samplePage(2).Articles[0])

	if err := m.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if sess.Active() {
		t.Error("session still active")
	}
	if _, st, _ := m.PeekPage(page1); !st.Stale {
		t.Error("page not invalidated")
	}
	if _, st, _ := m.PeekArticle("article-0"); !st.Stale {
		t.Error("article not invalidated")
	}
}

func TestLoginAndProfileUpdate(t *testing.T) {
	remote := newFakeRemote()
	sess := signedOut()
	m := newTestManager(t, remote, sess)
	seed(m, remote, page1, samplePage(2))
	ctx := context.Background()

	if _, err := m.Login(ctx, types.Credentials{Email: "not-an-email", Password: "x"}); !errors.Is(err, types.ErrValidationFailed) {
		t.Errorf("invalid credentials err = %v", err)
	}
	if remote.count("login") != 0 {
		t.Error("invalid credentials reached the server")
	}

	if _, err := m.Login(ctx, types.Credentials{Email: "jake@jake.jake", Password: "jakejake"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Token() != "jwt" {
		t.Errorf("token = %q", sess.Token())
	}

	m.Store().SetPage(page1, samplePage(2))
	u, err := m.UpdateUser(ctx, types.ProfileUpdate{Username: "jacob", Email: "jake@jake.jake", Image: "https://i.example.com/new.png"})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if u.Username != "jacob" || u.Token != "jwt" {
		t.Errorf("updated user = %+v, want new name and kept token", u)
	}
	if _, st, _ := m.PeekPage(page1); !st.Stale {
		t.Error("list tag not invalidated after profile update")
	}
}

func TestProvisionalSlug(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Hello, World!", "hello-world-1709294400000"},
		{"  Go   1.22 released ", "go-1-22-released-1709294400000"},
		{"Привет мир", "привет-мир-1709294400000"},
		{"!!!", "article-1709294400000"},
		{"", "article-1709294400000"},
	}
	for _, tt := range tests {
		if got := ProvisionalSlug(tt.title, epoch); got != tt.want {
			t.Errorf("ProvisionalSlug(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}
