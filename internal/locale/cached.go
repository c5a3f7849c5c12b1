package locale

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/cslbridge/internal/cache"
)

// sharedFetchTimeout bounds a retrieval shared by concurrent callers
const sharedFetchTimeout = 30 * time.Second

// Cached puts a cache in front of a retriever.
// Concurrent requests for the same tag share one underlying retrieval, which
// runs detached from any single caller's cancellation.
type Cached struct {
	source Retriever
	cache  cache.Cache
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewCached wraps source. ttl 0 uses the cache's default.
func NewCached(source Retriever, c cache.Cache, ttl time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{
		source: source,
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}
}

// RetrieveLocale returns the cached locale or retrieves and stores it
func (c *Cached) RetrieveLocale(ctx context.Context, lang string) (string, error) {
	tag, err := NormalizeTag(lang)
	if err != nil {
		return "", err
	}
	key := cache.Key("locale", tag)

	if data, ok := c.cache.Get(key); ok {
		c.logger.Debug("locale cache hit", "locale", tag)
		return string(data), nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()

		xml, err := c.source.RetrieveLocale(fetchCtx, tag)
		if err != nil {
			return "", err
		}
		if err := c.cache.Set(key, []byte(xml), c.ttl); err != nil {
			c.logger.Warn("locale cache write failed", "locale", tag, "error", err)
		}
		return xml, nil
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("retrieve locale %s: %w", tag, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", fmt.Errorf("retrieve locale %s: %w", tag, res.Err)
		}
		c.logger.Debug("locale retrieved", "locale", tag, "shared", res.Shared)
		return res.Val.(string), nil
	}
}
