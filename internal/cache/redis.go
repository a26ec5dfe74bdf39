package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tripdesk/apiserver/config"
)

const lookupsKey = "tripdesk:cache:destination-lookups"

// NewClient connects to the configured Redis. It returns nil when no URL is
// configured.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// LookupCache caches the destination countries and states lists. All entries
// live in one hash so a single delete invalidates them together.
type LookupCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLookupCache(client *redis.Client, ttl time.Duration) *LookupCache {
	return &LookupCache{client: client, ttl: ttl}
}

// CountriesField and StatesField name the cached lists.
func CountriesField() string {
	return "countries"
}

func StatesField(country string) string {
	return "states:" + country
}

// Get returns the cached list for field. A miss reports ok=false.
func (c *LookupCache) Get(ctx context.Context, field string) ([]string, bool, error) {
	data, err := c.client.HGet(ctx, lookupsKey, field).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, false, err
	}
	return values, true, nil
}

func (c *LookupCache) Set(ctx context.Context, field string, values []string) error {
	payload, err := json.Marshal(values)
	if err != nil {
		return err
	}
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, lookupsKey, field, payload)
	pipe.Expire(ctx, lookupsKey, c.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Invalidate drops every cached list.
func (c *LookupCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, lookupsKey).Err()
}
