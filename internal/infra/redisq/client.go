package redisq

import (
	"context"
	"fmt"
	"scanq/internal/config"
	"scanq/internal/domain"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Client struct {
	Cfg config.Redis
	Rdb *redis.Client

	mu     sync.Mutex
	opened bool
}

func New(cfg config.Redis) *Client {
	log.Info().Msgf("using redis at %s", cfg.Addr)
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Client{Cfg: cfg, Rdb: c}
}

// Connect pings the server.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis connection failed: %w", domain.ErrStoreUnavailable, err)
	}
	log.Ctx(ctx).Info().Msg("connected to redis")
	return nil
}

// Open connects once; later calls are no-ops after a successful open.
func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.opened {
		return nil
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	c.opened = true
	return nil
}

func (c *Client) Close() error {
	return c.Rdb.Close()
}

func (c *Client) key(name string) string {
	prefix := c.Cfg.KeyPrefix
	if prefix == "" {
		prefix = "scanq"
	}
	return prefix + ":" + name
}
