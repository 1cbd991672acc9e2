package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/ggoodman/webadmin-go/identity"
)

// Config for the Redis-backed admin list. Defaults can be loaded via envdecode.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// Key holding the admin SET. ENV: WEBADMIN_REDIS_KEY
	Key string `env:"WEBADMIN_REDIS_KEY,default=webadmin:serverAdmins"`
}

// Store is an admins.Backend keeping the set in a Redis SET, so several
// server processes can share one admin list.
type Store struct {
	client *redis.Client
	key    string
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	cl := redis.NewClient(&redis.Options{Addr: addr})
	if err := cl.Ping(ctx).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	key := cfg.Key
	if key == "" {
		key = "webadmin:serverAdmins"
	}
	return &Store{client: cl, key: key}, nil
}

// ConfigFromEnv decodes Config from the environment.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode redis config: %w", err)
	}
	return cfg, nil
}

// NewFromEnv builds a Store using envdecode to populate Config.
func NewFromEnv(ctx context.Context) (*Store, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg)
}

// Close closes the Redis client.
func (s *Store) Close() error { return s.client.Close() }

// Key returns the Redis key holding the set.
func (s *Store) Key() string { return s.key }

// ReadAll returns the members of the set. A key that was never written
// reads as an empty set.
func (s *Store) ReadAll(ctx context.Context) ([]identity.Identity, error) {
	members, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	out := make([]identity.Identity, 0, len(members))
	for _, m := range members {
		out = append(out, identity.Identity(m))
	}
	return out, nil
}

// WriteAll replaces the set in a single MULTI/EXEC transaction.
func (s *Store) WriteAll(ctx context.Context, ids []identity.Identity) error {
	members := make([]any, 0, len(ids))
	for _, id := range ids {
		members = append(members, id.String())
	}
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.key)
		if len(members) > 0 {
			p.SAdd(ctx, s.key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis replace admin set: %w", err)
	}
	return nil
}
