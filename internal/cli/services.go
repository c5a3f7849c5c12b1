package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/cslbridge/internal/cache"
	"github.com/ppiankov/cslbridge/internal/document"
	"github.com/ppiankov/cslbridge/internal/engine"
	"github.com/ppiankov/cslbridge/internal/engine/basic"
	"github.com/ppiankov/cslbridge/internal/locale"
	"github.com/ppiankov/cslbridge/internal/model"
)

func newRegistry() *engine.Registry {
	return engine.NewRegistry(basic.Backend())
}

// newLocales builds the locale retriever: directory first, then the remote
// repository, behind the cache when enabled
func newLocales(cfg *model.Config, logger *slog.Logger) (locale.Retriever, error) {
	var chain locale.Chain
	if cfg.Locale.Dir != "" {
		chain = append(chain, locale.DirSource{Dir: cfg.Locale.Dir})
	}
	if cfg.Locale.BaseURL != "" {
		fetcher, err := locale.NewHTTPFetcher(cfg.Locale)
		if err != nil {
			return nil, fmt.Errorf("create locale fetcher: %w", err)
		}
		chain = append(chain, fetcher)
	}

	if !cfg.Cache.Enabled {
		return chain, nil
	}

	var store cache.Cache
	if cfg.Cache.Dir != "" {
		store = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	} else {
		store = cache.NewMemoryCache(cfg.Cache.MemoryTTL, 10*time.Minute)
	}
	return locale.NewCached(chain, store, 0, logger), nil
}

// newRenderer wires the configured backend and locales into a document renderer
func newRenderer(cfg *model.Config, logger *slog.Logger) (*document.Renderer, error) {
	newDriver, err := newRegistry().Constructor(cfg.Engine.Backend)
	if err != nil {
		return nil, err
	}

	locales, err := newLocales(cfg, logger)
	if err != nil {
		return nil, err
	}

	return document.NewRenderer(newDriver, locales, document.Defaults{
		Locale: cfg.Locale.Default,
		Format: cfg.Engine.Format,
	}, logger), nil
}
