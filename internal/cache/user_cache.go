package cache

import (
	"context"
	"errors"
	"time"

	"github.com/eko/gocache/lib/v4/store"
	"github.com/jon4hz/shortlink/internal/config"
	"github.com/jon4hz/shortlink/internal/database"
)

// UserCachePrefix is prepended to the email or apikey a user is cached under.
const UserCachePrefix = "user-"

// UserCache shadows user rows keyed by their email and apikey.
type UserCache struct {
	users *PrefixedCache[database.User]
	ttl   time.Duration
}

// NewUserCache creates a user cache backed by the configured store.
func NewUserCache(cfg *config.CacheConfig) *UserCache {
	if cfg == nil {
		cfg = &config.CacheConfig{Type: config.CacheTypeMemory, TTL: time.Hour}
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &UserCache{
		users: NewPrefixedCache[database.User](newCacheInstanceByType(cfg), cfg.Type, UserCachePrefix),
		ttl:   ttl,
	}
}

// Get returns the user cached under identity.
func (c *UserCache) Get(ctx context.Context, identity string) (*database.User, error) {
	u, err := c.users.Get(ctx, identity)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Set caches the user under identity for the configured TTL.
func (c *UserCache) Set(ctx context.Context, identity string, user *database.User) error {
	return c.users.Set(ctx, identity, *user, store.WithExpiration(c.ttl))
}

// Delete drops the entry for identity. Missing entries are not an error.
func (c *UserCache) Delete(ctx context.Context, identity string) error {
	err := c.users.Delete(ctx, identity)
	if IsMiss(err) {
		return nil
	}
	return err
}

// Clear drops every cached entry.
func (c *UserCache) Clear(ctx context.Context) error {
	return c.users.Clear(ctx)
}

// TTL returns the expiry applied to new entries.
func (c *UserCache) TTL() time.Duration {
	return c.ttl
}

type Stats struct {
	Hits             int    `json:"hits"`
	Miss             int    `json:"miss"`
	SetSuccess       int    `json:"setSuccess"`
	SetError         int    `json:"setError"`
	DeleteSuccess    int    `json:"deleteSuccess"`
	DeleteError      int    `json:"deleteError"`
	InvalidateErrors int    `json:"invalidateErrors"`
	CacheName        string `json:"cacheName"`
	CacheType        string `json:"cacheType"`
}

// GetStats returns the codec statistics of the user cache.
func (c *UserCache) GetStats() *Stats {
	s := c.users.GetStats()
	return &Stats{
		Hits:             s.Hits,
		Miss:             s.Miss,
		SetSuccess:       s.SetSuccess,
		SetError:         s.SetError,
		DeleteSuccess:    s.DeleteSuccess,
		DeleteError:      s.DeleteError,
		InvalidateErrors: s.InvalidateError,
		CacheName:        "users",
		CacheType:        string(c.users.GetType()),
	}
}

// IsMiss reports whether err means the key was absent.
func IsMiss(err error) bool {
	if err == nil {
		return false
	}
	var nfPtr *store.NotFound
	if errors.As(err, &nfPtr) {
		return true
	}
	var nf store.NotFound
	return errors.As(err, &nf)
}
