package storage

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreType selects a driver.
type StoreType string

const (
	StoreTypeFile     StoreType = "file"
	StoreTypeMemory   StoreType = "memory"
	StoreTypeRedis    StoreType = "redis"
	StoreTypeSupabase StoreType = "supabase"
)

// StoreOption configures NewStore.
type StoreOption func(*storeConfig)

type storeConfig struct {
	dir         string
	redisClient *redis.Client
	redisTTL    time.Duration
	supabase    SupabaseConfig
}

// WithDirectory sets the results directory of the file store.
func WithDirectory(dir string) StoreOption {
	return func(c *storeConfig) {
		c.dir = dir
	}
}

// WithRedisClient sets the client of the redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithRedisTTL sets the expiry of interview records in redis.
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.redisTTL = ttl
	}
}

// WithSupabase sets the supabase connection.
func WithSupabase(cfg SupabaseConfig) StoreOption {
	return func(c *storeConfig) {
		c.supabase = cfg
	}
}

// NewStore creates a store of the given type. Redis requires WithRedisClient; supabase
// requires WithSupabase.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	config := &storeConfig{}
	for _, opt := range opts {
		opt(config)
	}

	switch storeType {
	case StoreTypeFile, "":
		return NewFileStore(config.dir), nil

	case StoreTypeMemory:
		return NewMemoryStore(), nil

	case StoreTypeRedis:
		if config.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return NewRedisStore(config.redisClient, config.redisTTL), nil

	case StoreTypeSupabase:
		return NewSupabaseStore(config.supabase)

	default:
		return nil, ErrInvalidStoreType
	}
}
