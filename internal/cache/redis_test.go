package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chronicle/discuss/internal/comment"
	"github.com/alicebob/miniredis/v2"
)

var key = comment.Key{Scope: "doc", ItemID: "item-1"}

type countingTransport struct {
	lists   atomic.Int32
	gate    chan struct{}
	items   []comment.Comment
	listErr error
}

func (f *countingTransport) List(context.Context, comment.Key) ([]comment.Comment, error) {
	f.lists.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.items, nil
}

func (f *countingTransport) Create(_ context.Context, input comment.CreateInput) (comment.Comment, error) {
	return comment.Comment{ID: "new", Scope: input.Scope, ItemID: input.ItemID, Content: input.Content}, nil
}

func (f *countingTransport) Update(_ context.Context, key comment.Key, id string, input comment.UpdateInput) (comment.Comment, error) {
	return comment.Comment{ID: id, Content: input.Content, Version: 1}, nil
}

func (f *countingTransport) Delete(context.Context, comment.Key, string) error {
	return nil
}

func setupTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	cache, err := NewRedisCache("redis://"+s.Addr(), time.Minute, nil)
	if err != nil {
		t.Fatalf("failed to create redis cache: %v", err)
	}
	return cache, s
}

func TestNewRedisCacheRejectsBadURL(t *testing.T) {
	if _, err := NewRedisCache("not a url", time.Minute, nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestListIsServedFromCache(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	inner := &countingTransport{items: []comment.Comment{{ID: "c1", Content: "hi", ItemContext: comment.EmojiContext(), SourceComment: "c0"}}}
	transport := NewTransport(inner, cache)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		items, err := transport.List(ctx, key)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(items) != 1 || items[0].ID != "c1" || !items[0].IsReaction() {
			t.Fatalf("unexpected items %+v", items)
		}
	}
	if got := inner.lists.Load(); got != 1 {
		t.Fatalf("expected one inner list, got %d", got)
	}
	if !s.Exists("comments:doc/item-1") {
		t.Fatal("expected cache entry to be written")
	}
	if ttl := s.TTL("comments:doc/item-1"); ttl != time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}
}

func TestWritesInvalidate(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	inner := &countingTransport{items: []comment.Comment{{ID: "c1"}}}
	transport := NewTransport(inner, cache)
	ctx := context.Background()

	if _, err := transport.List(ctx, key); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := transport.Create(ctx, comment.CreateInput{Scope: key.Scope, ItemID: key.ItemID, Content: "x"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.Exists("comments:doc/item-1") {
		t.Fatal("create should invalidate the cached list")
	}

	if _, err := transport.List(ctx, key); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := transport.Update(ctx, key, "c1", comment.UpdateInput{Content: "y"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if s.Exists("comments:doc/item-1") {
		t.Fatal("update should invalidate the cached list")
	}

	if _, err := transport.List(ctx, key); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := transport.Delete(ctx, key, "c1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Exists("comments:doc/item-1") {
		t.Fatal("delete should invalidate the cached list")
	}
	if got := inner.lists.Load(); got != 3 {
		t.Fatalf("expected three inner lists, got %d", got)
	}
}

func TestConcurrentMissesShareOneFetch(t *testing.T) {
	cache, _ := setupTestCache(t)
	defer cache.Close()
	inner := &countingTransport{gate: make(chan struct{}), items: []comment.Comment{{ID: "c1"}}}
	transport := NewTransport(inner, cache)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := transport.List(context.Background(), key); err != nil {
				t.Errorf("list: %v", err)
			}
		}()
	}
	for inner.lists.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(inner.gate)
	wg.Wait()
	if got := inner.lists.Load(); got != 1 {
		t.Fatalf("expected misses to collapse into one fetch, got %d", got)
	}
}

func TestRedisOutageFallsBackToInner(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	inner := &countingTransport{items: []comment.Comment{{ID: "c1"}}}
	transport := NewTransport(inner, cache)
	s.Close()

	items, err := transport.List(context.Background(), key)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected inner result despite redis outage, got %v %v", items, err)
	}
}

func TestInnerErrorsPropagate(t *testing.T) {
	cache, _ := setupTestCache(t)
	defer cache.Close()
	boom := errors.New("boom")
	transport := NewTransport(&countingTransport{listErr: boom}, cache)
	if _, err := transport.List(context.Background(), key); !errors.Is(err, boom) {
		t.Fatalf("expected inner error, got %v", err)
	}
}

func TestKeysWithSeparatorsDoNotCollide(t *testing.T) {
	cache, _ := setupTestCache(t)
	defer cache.Close()
	ctx := context.Background()
	owner := comment.Key{Scope: "team:a", ItemID: "1"}
	other := comment.Key{Scope: "team", ItemID: "a:1"}
	slashed := comment.Key{Scope: "team/a", ItemID: "1"}

	_, gen, _ := cache.Lookup(ctx, owner)
	if !cache.Store(ctx, owner, gen, []comment.Comment{{ID: "secret", Scope: owner.Scope, ItemID: owner.ItemID}}) {
		t.Fatal("expected entry to be stored")
	}
	for _, k := range []comment.Key{other, slashed} {
		if items, _, ok := cache.Lookup(ctx, k); ok {
			t.Fatalf("discussion %s served records of %s: %+v", k, owner, items)
		}
	}
	if items, _, ok := cache.Lookup(ctx, owner); !ok || items[0].ID != "secret" {
		t.Fatalf("expected owner entry, got %+v %v", items, ok)
	}
}

func TestStoreAfterInvalidateIsDropped(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	ctx := context.Background()

	_, gen, ok := cache.Lookup(ctx, key)
	if ok {
		t.Fatal("expected miss")
	}
	// a write lands between the source read and the cache fill
	cache.Invalidate(ctx, key)
	if cache.Store(ctx, key, gen, []comment.Comment{{ID: "c1"}}) {
		t.Fatal("list read before the write must not be cached")
	}
	if s.Exists("comments:doc/item-1") {
		t.Fatal("stale entry written")
	}

	_, gen, _ = cache.Lookup(ctx, key)
	if gen != 1 {
		t.Fatalf("expected generation 1, got %d", gen)
	}
	if !cache.Store(ctx, key, gen, []comment.Comment{{ID: "c1"}, {ID: "c2"}}) {
		t.Fatal("expected fresh list to be stored")
	}
	items, _, ok := cache.Lookup(ctx, key)
	if !ok || len(items) != 2 {
		t.Fatalf("expected fresh list, got %+v %v", items, ok)
	}
}

type writingTransport struct {
	countingTransport
	during func()
}

func (f *writingTransport) List(ctx context.Context, key comment.Key) ([]comment.Comment, error) {
	items, err := f.countingTransport.List(ctx, key)
	if f.during != nil {
		f.during()
		f.during = nil
	}
	return items, err
}

func TestTransportDoesNotCacheListOverlappingWrite(t *testing.T) {
	cache, _ := setupTestCache(t)
	defer cache.Close()
	inner := &writingTransport{countingTransport: countingTransport{items: []comment.Comment{{ID: "c1"}}}}
	transport := NewTransport(inner, cache)
	ctx := context.Background()
	inner.during = func() {
		inner.items = append(inner.items, comment.Comment{ID: "c2"})
		if _, err := transport.Create(ctx, comment.CreateInput{Scope: key.Scope, ItemID: key.ItemID, Content: "x"}); err != nil {
			t.Errorf("create: %v", err)
		}
	}

	if items, err := transport.List(ctx, key); err != nil || len(items) != 1 {
		t.Fatalf("expected pre-write list, got %+v %v", items, err)
	}
	items, err := transport.List(ctx, key)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("stale list served after write: %+v", items)
	}
}

func TestRedisOutageSkipsStore(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	s.Close()
	_, gen, ok := cache.Lookup(context.Background(), key)
	if ok || gen != NoGeneration {
		t.Fatalf("expected miss without generation, got %d %v", gen, ok)
	}
	if cache.Store(context.Background(), key, gen, nil) {
		t.Fatal("store must not report success without a generation")
	}
}
