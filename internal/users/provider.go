// Package users resolves the display fields copied into hangout pointers.
// Lookups go to the users table, optionally fronted by a Redis cache with
// separate TTLs for hits and for unknown users.
package users

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/hangout-reservations/internal/logger"
	"github.com/iliyamo/hangout-reservations/internal/model"
	"github.com/iliyamo/hangout-reservations/internal/repository"
)

// Provider returns the summary of a user.  ok is false when the user does
// not exist; that is not an error.
type Provider interface {
	Get(ctx context.Context, userID string) (summary model.UserSummary, ok bool, err error)
}

// Lookup is the subset of the user repository the provider needs.
type Lookup interface {
	GetByID(ctx context.Context, id string) (model.User, error)
}

// RepoProvider reads straight from the repository.
type RepoProvider struct{ repo Lookup }

func NewRepoProvider(repo Lookup) *RepoProvider { return &RepoProvider{repo: repo} }

func (p *RepoProvider) Get(ctx context.Context, userID string) (model.UserSummary, bool, error) {
	u, err := p.repo.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.UserSummary{}, false, nil
	}
	if err != nil {
		return model.UserSummary{}, false, err
	}
	return model.UserSummary{DisplayName: u.DisplayName, ImagePath: u.ImagePath}, true, nil
}

// CachedProvider caches results of another provider in Redis.  Both found
// and not-found outcomes are cached; errors are not.  A Redis failure falls
// through to the wrapped provider.
type CachedProvider struct {
	next   Provider
	rdb    *redis.Client
	ttl    time.Duration
	negTTL time.Duration
	prefix string
	log    *logger.Logger
}

// absent marks a cached not-found result.
const absent = "-"

func NewCachedProvider(next Provider, rdb *redis.Client, ttl, negTTL time.Duration, prefix string, log *logger.Logger) *CachedProvider {
	if prefix == "" {
		prefix = "usr"
	}
	return &CachedProvider{next: next, rdb: rdb, ttl: ttl, negTTL: negTTL, prefix: prefix, log: logger.OrNop(log)}
}

func (p *CachedProvider) key(userID string) string { return p.prefix + ":" + userID }

func (p *CachedProvider) Get(ctx context.Context, userID string) (model.UserSummary, bool, error) {
	key := p.key(userID)
	raw, err := p.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		if raw == absent {
			return model.UserSummary{}, false, nil
		}
		var s model.UserSummary
		if jerr := json.Unmarshal([]byte(raw), &s); jerr == nil {
			return s, true, nil
		}
		p.log.Warn("discarding malformed user cache entry", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		p.log.Debug("user cache read failed", "key", key, "error", err)
	}

	s, ok, err := p.next.Get(ctx, userID)
	if err != nil {
		return s, ok, err
	}
	val, ttl := absent, p.negTTL
	if ok {
		b, _ := json.Marshal(s)
		val, ttl = string(b), p.ttl
	}
	if ttl > 0 {
		if err := p.rdb.Set(ctx, key, val, ttl).Err(); err != nil {
			p.log.Debug("user cache write failed", "key", key, "error", err)
		}
	}
	return s, ok, nil
}

// Evict drops the cached entry of a user.  Directory.Save calls it after
// every profile write.
func (p *CachedProvider) Evict(ctx context.Context, userID string) error {
	return p.rdb.Del(ctx, p.key(userID)).Err()
}

// New picks the cached provider when enabled and Redis is reachable, and
// the plain repository provider otherwise.
func New(repo Lookup, rdb *redis.Client, enabled bool, ttl, negTTL time.Duration, prefix string, log *logger.Logger) Provider {
	base := NewRepoProvider(repo)
	if !enabled || rdb == nil {
		return base
	}
	return NewCachedProvider(base, rdb, ttl, negTTL, prefix, log)
}

// Evicter drops cached lookups.
type Evicter interface {
	Evict(ctx context.Context, userID string) error
}

// Writer stores user profiles.
type Writer interface {
	Save(ctx context.Context, u model.User) error
}

// Directory is a Provider that also accepts profile writes.  A Save is
// seen by the next Get: the cached entry of the user, hit or not-found,
// is evicted once the write commits.  Profiles changed outside Save stay
// cached until their TTL runs out.
type Directory struct {
	Provider
	repo Writer
	log  *logger.Logger
}

func NewDirectory(repo Writer, p Provider, log *logger.Logger) *Directory {
	return &Directory{Provider: p, repo: repo, log: logger.OrNop(log)}
}

// Save writes u and evicts its cache entry.  A failed eviction is logged
// only; the entry still expires with its TTL.
func (d *Directory) Save(ctx context.Context, u model.User) error {
	if err := d.repo.Save(ctx, u); err != nil {
		return err
	}
	if ev, ok := d.Provider.(Evicter); ok {
		if err := ev.Evict(ctx, u.ID); err != nil {
			d.log.Warn("user cache eviction failed", "user_id", u.ID, "error", err)
		}
	}
	return nil
}
