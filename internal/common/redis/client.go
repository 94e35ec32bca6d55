package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/edgecomet/revalidator/internal/common/configtypes"
)

const connectTimeout = 5 * time.Second

// Client wraps go-redis with logged, wrapped errors for the render cache store
type Client struct {
	rdb    *redis.Client
	logger *zap.Logger
	addr   string
}

// NewClient connects to the render cache Redis and pings it before returning
func NewClient(cfg *configtypes.RedisConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	client := &Client{rdb: rdb, logger: logger, addr: cfg.Addr}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("render cache redis at %s unreachable: %w", cfg.Addr, err)
	}

	logger.Info("Connected to render cache Redis",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB))

	return client, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		c.logger.Warn("Render cache ping failed", zap.String("addr", c.addr), zap.Error(err))
		return err
	}
	return nil
}

func (c *Client) HGet(ctx context.Context, key, field string) (string, error) {
	result, err := c.rdb.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		c.logger.Error("Redis HGET failed",
			zap.String("key", key),
			zap.String("field", field),
			zap.Error(err))
		return "", fmt.Errorf("redis hget failed: %w", err)
	}
	return result, nil
}

func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	result, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		c.logger.Error("Redis HGETALL failed",
			zap.String("key", key),
			zap.Error(err))
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	return result, nil
}

// HScanAll walks a hash with HSCAN instead of loading it with one HGETALL
func (c *Client) HScanAll(ctx context.Context, key string, fn func(field, value string) error) error {
	var cursor uint64
	for {
		kv, next, err := c.rdb.HScan(ctx, key, cursor, "*", 500).Result()
		if err != nil {
			c.logger.Error("Redis HSCAN failed",
				zap.String("key", key),
				zap.Uint64("cursor", cursor),
				zap.Error(err))
			return fmt.Errorf("redis hscan failed: %w", err)
		}
		for i := 0; i+1 < len(kv); i += 2 {
			if err := fn(kv[i], kv[i+1]); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	result, err := c.rdb.SMembers(ctx, key).Result()
	if err != nil {
		c.logger.Error("Redis SMEMBERS failed",
			zap.String("key", key),
			zap.Error(err))
		return nil, fmt.Errorf("redis smembers failed: %w", err)
	}
	return result, nil
}

// Pipelined runs fn inside a MULTI/EXEC transaction
func (c *Client) Pipelined(ctx context.Context, op string, fn func(redis.Pipeliner) error) error {
	if _, err := c.rdb.TxPipelined(ctx, fn); err != nil {
		c.logger.Error("Redis pipeline failed",
			zap.String("op", op),
			zap.Error(err))
		return fmt.Errorf("redis %s pipeline failed: %w", op, err)
	}
	return nil
}

func (c *Client) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	result, err := c.rdb.Eval(ctx, script, keys, args...).Result()
	if err != nil {
		c.logger.Error("Redis EVAL failed",
			zap.Int("num_keys", len(keys)),
			zap.Int("num_args", len(args)),
			zap.Error(err))
		return nil, fmt.Errorf("redis eval failed: %w", err)
	}
	return result, nil
}

// Publish sends message on channel and returns the number of receivers
func (c *Client) Publish(ctx context.Context, channel string, message interface{}) (int64, error) {
	receivers, err := c.rdb.Publish(ctx, channel, message).Result()
	if err != nil {
		c.logger.Error("Redis PUBLISH failed",
			zap.String("channel", channel),
			zap.Error(err))
		return 0, fmt.Errorf("redis publish failed: %w", err)
	}
	return receivers, nil
}

// Subscribe opens a Pub/Sub subscription; the caller closes it
func (c *Client) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return c.rdb.Subscribe(ctx, channels...)
}

func (c *Client) Close() error {
	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Close(); err != nil {
		c.logger.Error("Failed to close Redis client", zap.Error(err))
		return err
	}
	c.logger.Debug("Redis client closed")
	return nil
}
