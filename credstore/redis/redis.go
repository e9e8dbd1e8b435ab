// Package redis provides a Redis implementation of the session.Store
// interface, for deployments where several worker processes share one
// session and must observe each other's refreshes.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/threatalytics/threatalytics-go/pkg/session"
)

const (
	tokensKey = "tokens"
	timeKey   = "token_time"
)

// Config holds Redis store configuration.
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "threatalytics:")
	KeyPrefix string

	// TTL is the expiration applied to stored credentials.
	// Zero means no expiration.
	TTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "threatalytics:",
		TTL:       0,
	}
}

// Store implements session.Store using Redis.
type Store struct {
	client redis.UniversalClient
	config Config
}

// New creates a new Redis credential store.
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring.
func New(client redis.UniversalClient, config Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "threatalytics:"
	}

	return &Store{
		client: client,
		config: config,
	}, nil
}

// Read implements session.Store.
func (s *Store) Read(ctx context.Context) (session.Bundle, error) {
	data, err := s.client.Get(ctx, s.key(tokensKey)).Result()
	if err == redis.Nil {
		return session.Bundle{}, nil
	}
	if err != nil {
		return session.Bundle{}, fmt.Errorf("read credentials: %w", err)
	}

	var bundle session.Bundle
	if err := json.Unmarshal([]byte(data), &bundle); err != nil {
		return session.Bundle{}, fmt.Errorf("decode credentials: %w", err)
	}
	return bundle, nil
}

// Write implements session.Store.
func (s *Store) Write(ctx context.Context, bundle session.Bundle) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := s.client.Set(ctx, s.key(tokensKey), data, s.config.TTL).Err(); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Clear implements session.Store.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key(tokensKey), s.key(timeKey)).Err(); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

// ReadRefreshTime implements session.Store.
func (s *Store) ReadRefreshTime(ctx context.Context) (time.Time, error) {
	data, err := s.client.Get(ctx, s.key(timeKey)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read refresh time: %w", err)
	}

	millis, err := strconv.ParseInt(data, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode refresh time: %w", err)
	}
	return time.UnixMilli(millis), nil
}

// WriteRefreshTime implements session.Store.
func (s *Store) WriteRefreshTime(ctx context.Context, t time.Time) error {
	value := strconv.FormatInt(t.UnixMilli(), 10)
	if err := s.client.Set(ctx, s.key(timeKey), value, s.config.TTL).Err(); err != nil {
		return fmt.Errorf("write refresh time: %w", err)
	}
	return nil
}

func (s *Store) key(suffix string) string {
	return s.config.KeyPrefix + suffix
}
