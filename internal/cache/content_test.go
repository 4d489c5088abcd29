// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-content/internal/model"
)

func backends(t *testing.T) map[string]Cacher {
	mr := miniredis.RunT(t)
	r, err := New(Config{RedisURL: "redis://" + mr.Addr(), Prefix: "t:", TTL: time.Minute})
	require.NoError(t, err)
	m, err := New(Config{TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = r.Close()
		_ = m.Close()
	})
	return map[string]Cacher{"memory": m, "redis": r}
}

func TestContentCache_Load(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			cc := NewContentCache(backend, time.Minute, nil)
			ctx := context.Background()

			calls := 0
			load := func() (*model.ContentItem, error) {
				calls++
				return &model.ContentItem{ID: 5, TenantID: 1, Title: "Hello", State: model.StateDraft}, nil
			}

			first, err := cc.Load(ctx, 1, 5, load)
			require.NoError(t, err)
			second, err := cc.Load(ctx, 1, 5, load)
			require.NoError(t, err)

			assert.Equal(t, 1, calls)
			assert.Equal(t, first, second)
			assert.Equal(t, model.StateDraft, second.State)

			cc.Invalidate(ctx, 1, 5)
			_, err = cc.Load(ctx, 1, 5, load)
			require.NoError(t, err)
			assert.Equal(t, 2, calls)
		})
	}
}

func TestContentCache_LoadErrorNotCached(t *testing.T) {
	cc := NewContentCache(NewMemoryCache(MemoryCacheOptions{}), time.Minute, nil)
	ctx := context.Background()

	_, err := cc.Load(ctx, 1, 1, func() (*model.ContentItem, error) { return nil, model.ErrNotFound })
	assert.True(t, errors.Is(err, model.ErrNotFound))

	item, err := cc.Load(ctx, 1, 1, func() (*model.ContentItem, error) {
		return &model.ContentItem{ID: 1, TenantID: 1}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), item.ID)
}

func TestContentCache_TenantIsolation(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			cc := NewContentCache(backend, time.Minute, nil)
			ctx := context.Background()

			cc.Put(ctx, &model.ContentItem{ID: 1, TenantID: 1, Title: "one"})
			cc.Put(ctx, &model.ContentItem{ID: 1, TenantID: 2, Title: "two"})

			item, err := cc.Load(ctx, 2, 1, func() (*model.ContentItem, error) {
				t.Fatal("unexpected load")
				return nil, nil
			})
			require.NoError(t, err)
			assert.Equal(t, "two", item.Title)

			require.NoError(t, cc.InvalidateTenant(ctx, 1))

			loaded := false
			_, err = cc.Load(ctx, 1, 1, func() (*model.ContentItem, error) {
				loaded = true
				return &model.ContentItem{ID: 1, TenantID: 1}, nil
			})
			require.NoError(t, err)
			assert.True(t, loaded)

			item, err = cc.Load(ctx, 2, 1, func() (*model.ContentItem, error) {
				t.Fatal("tenant 2 entry was invalidated")
				return nil, nil
			})
			require.NoError(t, err)
			assert.Equal(t, "two", item.Title)
		})
	}
}
