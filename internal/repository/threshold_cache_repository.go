package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"plant-monitor-service/internal/models"

	"github.com/redis/go-redis/v9"
)

const thresholdsKey = "plantmon:thresholds"

// ThresholdCacheRepository is the local tier of the threshold editor. It
// keeps the last committed settings so a restart without the document
// store still has the operator's values.
type ThresholdCacheRepository struct {
	redisClient *redis.Client
}

func NewThresholdCacheRepository(redisClient *redis.Client) *ThresholdCacheRepository {
	return &ThresholdCacheRepository{redisClient: redisClient}
}

func (r *ThresholdCacheRepository) LoadThresholds(ctx context.Context) (*models.ThresholdSettings, error) {
	raw, err := r.redisClient.Get(ctx, thresholdsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read thresholds from redis: %w", err)
	}
	return decodeThresholds(raw)
}

func (r *ThresholdCacheRepository) SaveThresholds(ctx context.Context, settings models.ThresholdSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal thresholds: %w", err)
	}
	if err := r.redisClient.Set(ctx, thresholdsKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to write thresholds to redis: %w", err)
	}
	return nil
}

// decodeThresholds fills missing keys from the defaults.
func decodeThresholds(raw []byte) (*models.ThresholdSettings, error) {
	settings := models.DefaultThresholdSettings()
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("failed to decode cached thresholds: %w", err)
	}
	return &settings, nil
}
