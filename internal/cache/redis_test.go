// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	opts := DefaultRedisCacheOptions()
	opts.URL = "redis://" + mr.Addr()
	opts.Prefix = "test:"
	opts.DefaultTTL = time.Minute

	c, err := NewRedisCache(opts)
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache_Basic(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	if err := c.Set(ctx, "key", []byte("value"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("test:key") {
		t.Fatal("key not stored under prefix")
	}
	if ttl := mr.TTL("test:key"); ttl != time.Minute {
		t.Errorf("ttl = %v, want default 1m", ttl)
	}

	got, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "value" {
		t.Errorf("Get = %q", got)
	}

	if err := c.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, "key"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get after Delete = %v, want ErrCacheMiss", err)
	}

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Sets != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestRedisCache_Expiry(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	_ = c.Set(ctx, "short", []byte("v"), time.Second)
	mr.FastForward(2 * time.Second)

	if _, err := c.Get(ctx, "short"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected miss after expiry, got %v", err)
	}
}

func TestRedisCache_DeleteByPrefixAndClear(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	for _, k := range []string{"content:1:1", "content:1:2", "content:2:1"} {
		_ = c.Set(ctx, k, []byte("x"), 0)
	}
	_ = mr.Set("other:key", "untouched")

	if err := c.DeleteByPrefix(ctx, "content:1:"); err != nil {
		t.Fatalf("DeleteByPrefix: %v", err)
	}
	if mr.Exists("test:content:1:1") || mr.Exists("test:content:1:2") {
		t.Error("tenant 1 keys survived")
	}
	if !mr.Exists("test:content:2:1") {
		t.Error("tenant 2 key removed")
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if mr.Exists("test:content:2:1") {
		t.Error("Clear left prefixed key")
	}
	if !mr.Exists("other:key") {
		t.Error("Clear removed key outside prefix")
	}
}

func TestRedisCache_Closed(t *testing.T) {
	c, _ := newTestRedis(t)
	ctx := context.Background()

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Get after Close = %v", err)
	}
	if err := c.Ping(ctx); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Ping after Close = %v", err)
	}
}

func TestNewRedisCache_Errors(t *testing.T) {
	if _, err := NewRedisCache(RedisCacheOptions{}); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := NewRedisCache(RedisCacheOptions{URL: "not a url"}); err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestNew_SelectsBackend(t *testing.T) {
	c, err := New(Config{TTL: time.Minute, MaxSize: 10})
	if err != nil {
		t.Fatalf("New memory: %v", err)
	}
	if _, ok := c.(*MemoryCache); !ok {
		t.Errorf("expected *MemoryCache, got %T", c)
	}
	_ = c.Close()

	mr := miniredis.RunT(t)
	c, err = New(Config{RedisURL: "redis://" + mr.Addr(), Prefix: "p:"})
	if err != nil {
		t.Fatalf("New redis: %v", err)
	}
	if _, ok := c.(*RedisCache); !ok {
		t.Errorf("expected *RedisCache, got %T", c)
	}
	_ = c.Close()
}
