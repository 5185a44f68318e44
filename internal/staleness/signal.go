// Package staleness maintains per-group last-modified markers.  A marker
// only moves forward; readers pair it with the group id to form a token and
// skip re-fetching a feed whose token has not changed.
package staleness

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/hangout-reservations/internal/repository"
)

// Signal sets and reads group markers.
type Signal interface {
	Touch(ctx context.Context, groupIDs ...string) error
	Marker(ctx context.Context, groupID string) (int64, error)
}

// Token is the freshness token of a group at marker m.
func Token(groupID string, m int64) string {
	return groupID + ":" + strconv.FormatInt(m, 10)
}

type clock func() time.Time

// RedisSignal keeps markers in Redis.  The script stores max(current+1, now)
// so a marker strictly increases even when the clock stalls or goes back.
type RedisSignal struct {
	rdb    *redis.Client
	prefix string
	now    clock
}

var bumpScript = redis.NewScript(`
    local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
    local now_ms = tonumber(ARGV[1])
    local nxt = cur + 1
    if now_ms > nxt then nxt = now_ms end
    redis.call('SET', KEYS[1], nxt)
    return nxt
`)

func NewRedisSignal(rdb *redis.Client, prefix string) *RedisSignal {
	if prefix == "" {
		prefix = "grp:marker"
	}
	return &RedisSignal{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *RedisSignal) key(groupID string) string { return s.prefix + ":" + groupID }

func (s *RedisSignal) Touch(ctx context.Context, groupIDs ...string) error {
	var errs []error
	now := s.now().UnixMilli()
	for _, g := range groupIDs {
		if err := bumpScript.Run(ctx, s.rdb, []string{s.key(g)}, now).Err(); err != nil {
			errs = append(errs, fmt.Errorf("touch %s: %w", g, err))
		}
	}
	return errors.Join(errs...)
}

func (s *RedisSignal) Marker(ctx context.Context, groupID string) (int64, error) {
	n, err := s.rdb.Get(ctx, s.key(groupID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// StoreSignal keeps markers as items in the group partitions.  It is used
// when Redis is not configured.
type StoreSignal struct {
	repo *repository.MarkerRepo
	now  clock
}

func NewStoreSignal(repo *repository.MarkerRepo) *StoreSignal {
	return &StoreSignal{repo: repo, now: time.Now}
}

func (s *StoreSignal) Touch(ctx context.Context, groupIDs ...string) error {
	var errs []error
	now := s.now().UnixMilli()
	for _, g := range groupIDs {
		if _, err := s.repo.Bump(ctx, g, now); err != nil {
			errs = append(errs, fmt.Errorf("touch %s: %w", g, err))
		}
	}
	return errors.Join(errs...)
}

func (s *StoreSignal) Marker(ctx context.Context, groupID string) (int64, error) {
	return s.repo.Get(ctx, groupID)
}

// New returns the Redis signal when rdb is set and the store signal
// otherwise.
func New(rdb *redis.Client, prefix string, markers *repository.MarkerRepo) Signal {
	if rdb != nil {
		return NewRedisSignal(rdb, prefix)
	}
	return NewStoreSignal(markers)
}
