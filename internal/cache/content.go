// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/olegiv/ocms-content/internal/model"
)

// ContentCache caches content items by tenant and id. Keys never cross
// tenants: "content:<tenant>:<id>".
type ContentCache struct {
	items  *TypedCache[model.ContentItem]
	cache  Cacher
	logger *slog.Logger
}

// NewContentCache wraps c for content items.
func NewContentCache(c Cacher, ttl time.Duration, logger *slog.Logger) *ContentCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentCache{
		items:  NewTypedCache[model.ContentItem](c, ttl),
		cache:  c,
		logger: logger,
	}
}

func contentKey(tenantID, id int64) string {
	return tenantPrefix(tenantID) + strconv.FormatInt(id, 10)
}

func tenantPrefix(tenantID int64) string {
	return "content:" + strconv.FormatInt(tenantID, 10) + ":"
}

// Load returns the cached item or calls load and caches its result.
func (c *ContentCache) Load(ctx context.Context, tenantID, id int64, load func() (*model.ContentItem, error)) (*model.ContentItem, error) {
	return c.items.GetOrSet(ctx, contentKey(tenantID, id), load)
}

// Put stores item under its own tenant and id.
func (c *ContentCache) Put(ctx context.Context, item *model.ContentItem) {
	if err := c.items.Set(ctx, contentKey(item.TenantID, item.ID), item); err != nil {
		c.logger.Warn("failed to cache content", "content_id", item.ID, "error", err)
	}
}

// Invalidate drops one item.
func (c *ContentCache) Invalidate(ctx context.Context, tenantID, id int64) {
	if err := c.items.Delete(ctx, contentKey(tenantID, id)); err != nil {
		c.logger.Warn("failed to invalidate content cache", "content_id", id, "error", err)
	}
}

// InvalidateTenant drops every cached item of a tenant.
func (c *ContentCache) InvalidateTenant(ctx context.Context, tenantID int64) error {
	return c.cache.DeleteByPrefix(ctx, tenantPrefix(tenantID))
}
