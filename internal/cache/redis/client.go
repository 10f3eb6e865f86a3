package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Muchai10/safeguardcrawler/internal/sentiment"
	"github.com/Muchai10/safeguardcrawler/pkg/logger"
)

// Daily counters outlive their day a little so a late read still sees them.
const dailyCounterTTL = 48 * time.Hour

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func sentimentKey(textHash string) string {
	return "sentiment:" + textHash
}

func cyclesKey(day string) string {
	return "scan:cycles:" + day
}

func (c *Client) SetSentiment(ctx context.Context, textHash string, res *sentiment.Result, ttl time.Duration) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal sentiment: %w", err)
	}

	err = c.client.Set(ctx, sentimentKey(textHash), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set sentiment cache: %w", err)
	}

	logger.Debug("Sentiment cached", zap.String("text_hash", textHash), zap.Duration("ttl", ttl))
	return nil
}

func (c *Client) GetSentiment(ctx context.Context, textHash string) (*sentiment.Result, bool, error) {
	data, err := c.client.Get(ctx, sentimentKey(textHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get sentiment cache: %w", err)
	}

	var res sentiment.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal sentiment: %w", err)
	}

	logger.Debug("Sentiment cache hit", zap.String("text_hash", textHash))
	return &res, true, nil
}

// IncrementDailyCycles bumps the counter for day (YYYY-MM-DD, local time) and
// returns the new value.
func (c *Client) IncrementDailyCycles(ctx context.Context, day string) (int64, error) {
	key := cyclesKey(day)

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, dailyCounterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment cycle counter: %w", err)
	}
	return incr.Val(), nil
}

func (c *Client) GetDailyCycles(ctx context.Context, day string) (int64, error) {
	val, err := c.client.Get(ctx, cyclesKey(day)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get cycle counter: %w", err)
	}
	return val, nil
}
