package config

import "time"

// TxnConfig tunes the optimistic write loop and the pointer maintainer.
type TxnConfig struct {
	MaxRetries        int
	BatchSize         int
	Jitter            time.Duration // 0 retries without delay
	PointerMaxRetries int
}

// MaxBatchSize is the largest batch the store accepts in one transaction.
const MaxBatchSize = 100

func LoadTxnConfig() TxnConfig {
	c := TxnConfig{
		MaxRetries:        envInt("TXN_MAX_RETRIES", 5),
		BatchSize:         envInt("TXN_BATCH_SIZE", 90),
		Jitter:            envDur("TXN_RETRY_JITTER", 0),
		PointerMaxRetries: envInt("POINTER_MAX_RETRIES", 5),
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = 1
	}
	if c.BatchSize < 1 {
		c.BatchSize = 90
	}
	if c.BatchSize > MaxBatchSize {
		c.BatchSize = MaxBatchSize
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	if c.PointerMaxRetries < 1 {
		c.PointerMaxRetries = 1
	}
	return c
}

// UserCacheConfig controls the Redis cache in front of user lookups.
// Absent users are cached for NegativeTTL.
type UserCacheConfig struct {
	Enabled     bool
	TTL         time.Duration
	NegativeTTL time.Duration
	Prefix      string
}

func LoadUserCacheConfig() UserCacheConfig {
	return UserCacheConfig{
		Enabled:     envBool("USER_CACHE_ENABLED", true),
		TTL:         envDur("USER_CACHE_TTL", 10*time.Minute),
		NegativeTTL: envDur("USER_CACHE_NEGATIVE_TTL", time.Minute),
		Prefix:      envStr("USER_CACHE_PREFIX", "usr"),
	}
}

// StalenessConfig names the Redis keys of the group markers.
type StalenessConfig struct {
	Prefix string
}

func LoadStalenessConfig() StalenessConfig {
	return StalenessConfig{Prefix: envStr("STALENESS_PREFIX", "grp:marker")}
}
