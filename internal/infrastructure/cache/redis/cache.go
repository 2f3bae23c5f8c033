package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

const defaultPrefix = "statute:embed:"

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// Cache is the shared second-tier vector cache.
type Cache struct {
	client *goredis.Client
	ttl    time.Duration
	prefix string
}

func New(ctx context.Context, cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, domain.WrapError(domain.ErrTransientRemote, "redis ping", err)
	}
	return NewWithClient(client, cfg.TTL, cfg.Prefix), nil
}

func NewWithClient(client *goredis.Client, ttl time.Duration, prefix string) *Cache {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Cache{client: client, ttl: ttl, prefix: prefix}
}

type storedVector struct {
	Values []float32 `json:"v"`
	Model  string    `json:"m"`
}

func (c *Cache) Get(ctx context.Context, key string) (domain.EmbeddingVector, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.EmbeddingVector{}, false, nil
	}
	if err != nil {
		return domain.EmbeddingVector{}, false, domain.WrapError(domain.ErrTransientRemote, "redis get", err)
	}
	var stored storedVector
	if err := json.Unmarshal(raw, &stored); err != nil {
		return domain.EmbeddingVector{}, false, fmt.Errorf("decode cached vector: %w", err)
	}
	return domain.EmbeddingVector{Values: stored.Values, Model: stored.Model}, true, nil
}

func (c *Cache) Put(ctx context.Context, key string, vec domain.EmbeddingVector) error {
	raw, err := json.Marshal(storedVector{Values: vec.Values, Model: vec.Model})
	if err != nil {
		return fmt.Errorf("encode vector: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		return domain.WrapError(domain.ErrTransientRemote, "redis set", err)
	}
	return nil
}

// Clear removes every key under the cache prefix.
func (c *Cache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 500).Iterator()
	batch := make([]string, 0, 500)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return domain.WrapError(domain.ErrTransientRemote, "redis del", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return domain.WrapError(domain.ErrTransientRemote, "redis scan", err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return domain.WrapError(domain.ErrTransientRemote, "redis del", err)
		}
	}
	return nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}
