package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"polls-service/internal/database"
	"polls-service/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DashboardCacheKey   = "polls:dashboard"
	ResultsChannelGlob  = "poll:*:results"
	flashTTL            = 10 * time.Minute
	migrationStatusHash = "db:migration:status"
)

func ResultsChannel(pollID uint) string {
	return fmt.Sprintf("poll:%d:results", pollID)
}

func flashKey(userID uint) string {
	return fmt.Sprintf("user:%d:flash", userID)
}

type RedisService struct {
	client *database.RedisClient
}

func NewRedisService(client *database.RedisClient) *RedisService {
	return &RedisService{
		client: client,
	}
}

// =============================================================================
// Flash Messages
// =============================================================================

// AddFlash queues a message for the next page the user renders.
func (r *RedisService) AddFlash(ctx context.Context, userID uint, level, message string) error {
	data, err := json.Marshal(models.Flash{Level: level, Message: message})
	if err != nil {
		return fmt.Errorf("failed to marshal flash: %w", err)
	}

	pipe := r.client.GetClient().Pipeline()
	pipe.RPush(ctx, flashKey(userID), data)
	pipe.Expire(ctx, flashKey(userID), flashTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("Failed to store flash", "userID", userID, "error", err)
		return err
	}
	return nil
}

// PopFlashes returns and clears the queued messages.
func (r *RedisService) PopFlashes(ctx context.Context, userID uint) ([]models.Flash, error) {
	pipe := r.client.GetClient().TxPipeline()
	lrange := pipe.LRange(ctx, flashKey(userID), 0, -1)
	pipe.Del(ctx, flashKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	flashes := make([]models.Flash, 0, len(lrange.Val()))
	for _, raw := range lrange.Val() {
		var f models.Flash
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			slog.Warn("Dropping malformed flash", "userID", userID, "error", err)
			continue
		}
		flashes = append(flashes, f)
	}
	return flashes, nil
}

// =============================================================================
// PubSub Operations
// =============================================================================

func (r *RedisService) PublishPollResults(ctx context.Context, pollID uint, results interface{}) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	err = r.client.GetClient().Publish(ctx, ResultsChannel(pollID), data).Err()
	if err != nil {
		slog.Error("Failed to publish poll results", "pollID", pollID, "error", err)
		return err
	}

	slog.Debug("Published poll results", "pollID", pollID)
	return nil
}

func (r *RedisService) PSubscribe(ctx context.Context, patterns ...string) *redis.PubSub {
	pubsub := r.client.GetClient().PSubscribe(ctx, patterns...)
	slog.Debug("Pattern subscribed to channels", "patterns", patterns)
	return pubsub
}

// =============================================================================
// Rate Limiting
// =============================================================================

func (r *RedisService) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-window).UnixNano()

	pipe := r.client.GetClient().Pipeline()

	// Remove old entries
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart))

	// Count current entries
	pipe.ZCard(ctx, key)

	// Add current request
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())})

	// Set expiration
	pipe.Expire(ctx, key, window)

	results, err := pipe.Exec(ctx)
	if err != nil {
		return false, err
	}

	count := results[1].(*redis.IntCmd).Val()

	return count < int64(limit), nil
}

// =============================================================================
// Migration State Management
// =============================================================================

func (r *RedisService) SetMigrationState(ctx context.Context, version string, status string) error {
	return r.client.GetClient().HSet(ctx, migrationStatusHash, map[string]interface{}{
		"version":    version,
		"status":     status,
		"updated_at": time.Now().Unix(),
	}).Err()
}

func (r *RedisService) GetMigrationState(ctx context.Context) (map[string]string, error) {
	return r.client.GetClient().HGetAll(ctx, migrationStatusHash).Result()
}

// =============================================================================
// Cache Operations
// =============================================================================

func (r *RedisService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return r.client.GetClient().Set(ctx, key, data, expiration).Err()
}

// Get decodes key into dest. A missing key reports found=false and no error.
func (r *RedisService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.client.GetClient().Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, json.Unmarshal([]byte(data), dest)
}

func (r *RedisService) Delete(ctx context.Context, keys ...string) error {
	return r.client.GetClient().Del(ctx, keys...).Err()
}
