package config

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Cache is the Shared-memory Cache singleton named in spec.md §4.7: a
// lazily-initialized, read-only view of configuration visible to every
// component. Each Config snapshot it holds is immutable; Watch swaps in
// a new snapshot atomically on file change rather than mutating one in
// place, so the per-snapshot immutability invariant always holds.
type Cache struct {
	current atomic.Pointer[Config]
	logger  *slog.Logger
}

// NewCache wraps an already-loaded Config in a Cache.
func NewCache(initial *Config, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{logger: logger}
	c.current.Store(initial)
	return c
}

// Get returns the current immutable Config snapshot.
func (c *Cache) Get() *Config {
	return c.current.Load()
}

// Watch starts a fsnotify Watcher on the snapshot's config file and
// installs a replacement snapshot whenever it changes. It returns
// immediately; the watch runs until ctx is cancelled.
func (c *Cache) Watch(ctx context.Context) error {
	path := c.Get().ConfigPath
	w := NewWatcher(path, c.logger)
	if err := w.Start(ctx); err != nil {
		return err
	}
	go func() {
		for range w.Events() {
			next, err := Reload(path)
			if err != nil {
				c.logger.Error("config reload failed, keeping previous snapshot", "error", err)
				continue
			}
			c.current.Store(next)
			c.logger.Info("config reloaded")
		}
	}()
	return nil
}
