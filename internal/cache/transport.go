package cache

import (
	"context"

	"chronicle/discuss/internal/comment"
	"chronicle/discuss/internal/engine"
	"golang.org/x/sync/singleflight"
)

// Transport serves List from the cache and forwards writes, dropping the
// cached list after every successful write.
type Transport struct {
	inner engine.Transport
	cache *RedisCache
	group singleflight.Group
}

func NewTransport(inner engine.Transport, cache *RedisCache) *Transport {
	return &Transport{inner: inner, cache: cache}
}

func (t *Transport) List(ctx context.Context, key comment.Key) ([]comment.Comment, error) {
	items, gen, ok := t.cache.Lookup(ctx, key)
	if ok {
		return items, nil
	}
	result, err, _ := t.group.Do(t.cache.key(key), func() (any, error) {
		items, err := t.inner.List(ctx, key)
		if err != nil {
			return nil, err
		}
		t.cache.Store(ctx, key, gen, items)
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	items = result.([]comment.Comment)
	out := make([]comment.Comment, len(items))
	copy(out, items)
	return out, nil
}

func (t *Transport) Create(ctx context.Context, input comment.CreateInput) (comment.Comment, error) {
	created, err := t.inner.Create(ctx, input)
	if err != nil {
		return comment.Comment{}, err
	}
	t.cache.Invalidate(ctx, input.Key())
	return created, nil
}

func (t *Transport) Update(ctx context.Context, key comment.Key, id string, input comment.UpdateInput) (comment.Comment, error) {
	updated, err := t.inner.Update(ctx, key, id, input)
	if err != nil {
		return comment.Comment{}, err
	}
	t.cache.Invalidate(ctx, key)
	return updated, nil
}

func (t *Transport) Delete(ctx context.Context, key comment.Key, id string) error {
	if err := t.inner.Delete(ctx, key, id); err != nil {
		return err
	}
	t.cache.Invalidate(ctx, key)
	return nil
}
