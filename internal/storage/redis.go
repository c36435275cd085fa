package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisRecordPrefix = "interview:"
	redisSetupPrefix  = "setup:"
)

// RedisStore keeps records as JSON strings. A zero TTL keeps interview records forever;
// setups always expire.
type RedisStore struct {
	client   *redis.Client
	ttl      time.Duration
	setupTTL time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client:   client,
		ttl:      ttl,
		setupTTL: 7 * 24 * time.Hour,
	}
}

// Save uses SETNX so a key is written at most once.
func (s *RedisStore) Save(ctx context.Context, record *InterviewRecord) error {
	if err := validateKey(record.Key); err != nil {
		return err
	}
	val, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, redisRecordPrefix+record.Key, val, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, key string) (*InterviewRecord, error) {
	var record InterviewRecord
	if err := s.get(ctx, redisRecordPrefix+key, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	keys := []string{}
	iter := s.client.Scan(ctx, 0, redisRecordPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), redisRecordPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisStore) CreateSetup(ctx context.Context, setup *SetupRecord) error {
	if err := validateKey(setup.ID); err != nil {
		return err
	}
	val, err := json.Marshal(setup)
	if err != nil {
		return fmt.Errorf("marshal setup: %w", err)
	}

	ok, err := s.client.SetNX(ctx, redisSetupPrefix+setup.ID, val, s.setupTTL).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

func (s *RedisStore) GetSetup(ctx context.Context, id string) (*SetupRecord, error) {
	var setup SetupRecord
	if err := s.get(ctx, redisSetupPrefix+id, &setup); err != nil {
		return nil, err
	}
	return &setup, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) get(ctx context.Context, key string, v any) error {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get: %w", err)
	}
	if err := json.Unmarshal([]byte(val), v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
