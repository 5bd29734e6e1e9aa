package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DoctorGattino/blog/types"

	"github.com/redis/go-redis/v9"
)

var jake = types.User{Username: "jake", Email: "jake@jake.jake", Token: "jwt.token"}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore())

	if m.Active() || m.Token() != "" {
		t.Fatal("new manager should be signed out")
	}

	if err := m.Set(ctx, jake); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if m.Token() != "jwt.token" {
		t.Errorf("Token = %q", m.Token())
	}

	updated := jake
	updated.Username = "jacob"
	updated.Token = ""
	if err := m.Update(ctx, updated); err != nil {
		t.Fatalf("Update: %v", err)
	}
	u, _ := m.User()
	if u.Username != "jacob" || u.Token != "jwt.token" {
		t.Errorf("after update user = %+v, want username jacob with token kept", u)
	}

	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if m.Active() {
		t.Error("expected signed out after Clear")
	}
}

func TestManagerRejectsTokenlessLogin(t *testing.T) {
	m := NewManager(nil)
	if err := m.Set(context.Background(), types.User{Username: "x"}); err == nil {
		t.Fatal("expected error for user without token")
	}
}

func TestUpdateRequiresSession(t *testing.T) {
	m := NewManager(nil)
	err := m.Update(context.Background(), jake)
	if !errors.Is(err, types.ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestFileStoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	first := NewManager(NewFileStore(path))
	if err := first.Set(ctx, jake); err != nil {
		t.Fatalf("Set: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("session file mode = %o, want 600", perm)
	}

	second := NewManager(NewFileStore(path))
	if err := second.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if u, ok := second.User(); !ok || u != jake {
		t.Errorf("restored user = %+v, %v", u, ok)
	}

	if err := second.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected session file removed, stat err = %v", err)
	}
	if err := second.Clear(ctx); err != nil {
		t.Errorf("second Clear should be a no-op, got %v", err)
	}
}

func TestFileStoreMissingFile(t *testing.T) {
	m := NewManager(NewFileStore(filepath.Join(t.TempDir(), "none.json")))
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Active() {
		t.Error("expected no session")
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	m := NewManager(NewFileStore(path))
	if err := m.Load(context.Background()); err == nil {
		t.Fatal("expected parse error")
	}
}

// fakeRedis implements redisKV on a map using go-redis result constructors
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttl  map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) GetEx(ctx context.Context, key string, expiration time.Duration) *redis.StringCmd {
	cmd := f.Get(ctx, key)
	if cmd.Err() == nil {
		f.mu.Lock()
		f.ttl[key] = expiration
		f.mu.Unlock()
	}
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	store := (&RedisStore{client: fake, key: "blog:session"}).WithTTL(time.Hour)

	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("empty Load = %v, %v", ok, err)
	}

	m := NewManager(store)
	if err := m.Set(ctx, jake); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if fake.ttl["blog:session"] != time.Hour {
		t.Errorf("ttl = %v, want 1h", fake.ttl["blog:session"])
	}

	fake.ttl["blog:session"] = time.Minute
	restored := NewManager(store)
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fake.ttl["blog:session"] != time.Hour {
		t.Errorf("Load did not refresh the ttl: %v", fake.ttl["blog:session"])
	}
	if restored.Token() != jake.Token {
		t.Errorf("Token = %q", restored.Token())
	}

	if err := restored.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := fake.data["blog:session"]; ok {
		t.Error("expected key deleted")
	}
}

func TestRedisStoreErrorsPropagate(t *testing.T) {
	fake := newFakeRedis()
	fake.err = errors.New("connection refused")
	store := &RedisStore{client: fake, key: "k"}

	m := NewManager(store)
	if err := m.Load(context.Background()); err == nil {
		t.Error("expected Load error")
	}
	if err := m.Set(context.Background(), jake); err == nil {
		t.Error("expected Set error")
	}
	if m.Active() {
		t.Error("failed Set must not activate the session")
	}
}

func TestFailedClearKeepsSession(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	m := NewManager(&RedisStore{client: fake, key: "k"})
	if err := m.Set(ctx, jake); err != nil {
		t.Fatalf("Set: %v", err)
	}

	fake.err = errors.New("connection refused")
	if err := m.Clear(ctx); err == nil {
		t.Fatal("expected Clear error")
	}
	if !m.Active() || m.Token() != jake.Token {
		t.Error("session dropped from memory while it is still stored")
	}
	if _, ok := fake.data["k"]; !ok {
		t.Error("stored session vanished on a failed Clear")
	}

	fake.err = nil
	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if m.Active() {
		t.Error("still signed in after a successful Clear")
	}
}
