package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DoctorGattino/blog/types"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.puts++
	return nil
}

func (m *memStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memStore) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// feed serves count articles in pages of limit
func feed(count int) PageSourceFunc {
	return func(ctx context.Context, key types.PageKey) (types.ArticlePage, error) {
		p := types.ArticlePage{ArticlesCount: count, Articles: []types.Article{}}
		for i := key.Offset(); i < count && i < key.Offset()+key.Limit; i++ {
			p.Articles = append(p.Articles, types.Article{Slug: fmt.Sprintf("post-%02d", i), Title: fmt.Sprintf("Post %d", i)})
		}
		return p, nil
	}
}

func TestExportWritesArticleKeys(t *testing.T) {
	store := newMemStore()
	e := NewExporter(store, "/backups/blog/", WithLogger(quiet()))

	res, err := e.Export(context.Background(), []types.Article{{Slug: "hello", Title: "Hello"}, {Slug: ""}})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.Written != 1 {
		t.Errorf("written = %d, want 1", res.Written)
	}

	data, ok := store.objects["backups/blog/articles/hello.json"]
	if !ok {
		t.Fatalf("missing object, have %v", store.objects)
	}
	var env types.ArticleEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatal(err)
	}
	if env.Article.Title != "Hello" {
		t.Errorf("title = %q", env.Article.Title)
	}
}

func TestExportSkipsExistingUnlessOverwrite(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	articles := []types.Article{{Slug: "a"}, {Slug: "b"}}

	if _, err := NewExporter(store, "", WithLogger(quiet())).Export(ctx, articles); err != nil {
		t.Fatal(err)
	}
	res, err := NewExporter(store, "", WithLogger(quiet())).Export(ctx, articles)
	if err != nil {
		t.Fatal(err)
	}
	if res.Written != 0 || res.Unchanged != 2 {
		t.Errorf("second run = %+v, want everything unchanged", res)
	}

	res, err = NewExporter(store, "", WithLogger(quiet()), WithOverwrite()).Export(ctx, articles)
	if err != nil {
		t.Fatal(err)
	}
	if res.Written != 2 {
		t.Errorf("overwrite run wrote %d, want 2", res.Written)
	}
	if store.puts != 4 {
		t.Errorf("puts = %d, want 4", store.puts)
	}
}

func TestExportPagesWalksToLastPage(t *testing.T) {
	store := newMemStore()
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	e := NewExporter(store, "blog", WithLogger(quiet()), WithClock(func() time.Time { return at }))

	res, err := e.ExportPages(context.Background(), feed(12), 5, 0)
	if err != nil {
		t.Fatalf("ExportPages: %v", err)
	}
	if res.Pages != 3 || res.Written != 12 {
		t.Errorf("result = %+v, want 3 pages and 12 written", res)
	}

	var idx Index
	if err := json.Unmarshal(store.objects["blog/index.json"], &idx); err != nil {
		t.Fatalf("index: %v", err)
	}
	if idx.Total != 12 || len(idx.Slugs) != 12 || !idx.ExportedAt.Equal(at) {
		t.Errorf("index = %+v", idx)
	}

	slugs, err := e.Slugs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(slugs) != 12 || slugs[0] != "post-00" {
		t.Errorf("slugs = %v", slugs)
	}

	a, err := e.Load(context.Background(), "post-07")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a.Title != "Post 7" {
		t.Errorf("loaded title = %q", a.Title)
	}
}

func TestExportPagesHonoursMaxPages(t *testing.T) {
	store := newMemStore()
	e := NewExporter(store, "", WithLogger(quiet()))

	res, err := e.ExportPages(context.Background(), feed(40), 5, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pages != 2 || res.Written != 10 {
		t.Errorf("result = %+v", res)
	}
}

func TestExportPagesStopsOnSourceError(t *testing.T) {
	boom := errors.New("offline")
	src := PageSourceFunc(func(ctx context.Context, key types.PageKey) (types.ArticlePage, error) {
		return types.ArticlePage{}, boom
	})
	store := newMemStore()

	_, err := NewExporter(store, "", WithLogger(quiet())).ExportPages(context.Background(), src, 5, 0)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if len(store.objects) != 0 {
		t.Error("index written after failed export")
	}
}

func TestExportPropagatesPutError(t *testing.T) {
	store := newMemStore()
	store.putErr = errors.New("denied")

	_, err := NewExporter(store, "", WithLogger(quiet())).Export(context.Background(), []types.Article{{Slug: "x"}})
	if err == nil || !strings.Contains(err.Error(), "denied") {
		t.Fatalf("err = %v", err)
	}
}
