package tokens

import (
	"context"
	"time"

	"wireviz-web/internal/infra/logging"
)

// TokenRepository loads the full token set from the backing store.
type TokenRepository interface {
	LoadTokens(ctx context.Context) (map[string]Entry, error)
}

// Reloader keeps a Cache in sync with the repository. A failed load keeps the
// previous cache contents, so a database outage degrades to stale tokens
// instead of locking everyone out.
type Reloader struct {
	repo     TokenRepository
	cache    *Cache
	interval time.Duration
}

func NewReloader(repo TokenRepository, cache *Cache, interval time.Duration) *Reloader {
	return &Reloader{repo: repo, cache: cache, interval: interval}
}

// LoadOnce fetches the token set and replaces the cache on success.
func (r *Reloader) LoadOnce(ctx context.Context) error {
	m, err := r.repo.LoadTokens(ctx)
	if err != nil {
		return err
	}
	r.cache.Replace(m)
	return nil
}

// Start refreshes the cache on the configured interval until ctx is done.
func (r *Reloader) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.LoadOnce(ctx); err != nil {
					logging.Error("API token reload failed", "error", err.Error())
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
