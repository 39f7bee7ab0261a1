package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/jwebster45206/campaign-engine/pkg/storage"
	"github.com/redis/go-redis/v9"
)

// campaignsKey is the set of every campaign id with stored documents.
const campaignsKey = "campaigns"

// RedisStorage implements storage.BlobStore with one Redis string per
// campaign document.
type RedisStorage struct {
	client *redis.Client
	logger *slog.Logger
}

// Ensure RedisStorage implements BlobStore interface
var _ storage.BlobStore = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance. redisURL may be a
// redis:// URL or a bare host:port.
func NewRedisStorage(redisURL string, logger *slog.Logger) (*RedisStorage, error) {
	opts := &redis.Options{Addr: redisURL}
	if strings.Contains(redisURL, "://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	}

	return &RedisStorage{
		client: redis.NewClient(opts),
		logger: logger,
	}, nil
}

// Client exposes the underlying client so other Redis-backed services can
// share the connection pool.
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

func documentKey(campaignID, name string) string {
	return "campaign:" + campaignID + ":" + name
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Document operations

func (r *RedisStorage) Get(ctx context.Context, campaignID, name string) ([]byte, error) {
	data, err := r.client.Get(ctx, documentKey(campaignID, name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.logger.Error("Failed to load document", "campaign_id", campaignID, "name", name, "error", err)
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *RedisStorage) Put(ctx context.Context, campaignID, name string, data []byte) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, documentKey(campaignID, name), data, 0)
		pipe.SAdd(ctx, campaignsKey, campaignID)
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save document", "campaign_id", campaignID, "name", name, "error", err)
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Delete(ctx context.Context, campaignID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx,
			documentKey(campaignID, storage.ContentFile),
			documentKey(campaignID, storage.StateFile),
		)
		pipe.SRem(ctx, campaignsKey, campaignID)
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to delete campaign", "campaign_id", campaignID, "error", err)
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) List(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, campaignsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers failed: %w", err)
	}
	slices.Sort(ids)
	return ids, nil
}
