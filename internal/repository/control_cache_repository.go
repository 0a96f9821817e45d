package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"plant-monitor-service/internal/models"

	"github.com/redis/go-redis/v9"
)

const controlsKey = "plantmon:controls"

// ControlCacheRepository keeps the last saved control settings in Redis.
type ControlCacheRepository struct {
	redisClient *redis.Client
}

func NewControlCacheRepository(redisClient *redis.Client) *ControlCacheRepository {
	return &ControlCacheRepository{redisClient: redisClient}
}

func (r *ControlCacheRepository) LoadControls(ctx context.Context) (*models.ControlSettings, error) {
	raw, err := r.redisClient.Get(ctx, controlsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read control settings from redis: %w", err)
	}
	return decodeControls(raw)
}

func (r *ControlCacheRepository) SaveControls(ctx context.Context, settings models.ControlSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal control settings: %w", err)
	}
	if err := r.redisClient.Set(ctx, controlsKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to write control settings to redis: %w", err)
	}
	return nil
}

// decodeControls goes through the document decoder so sections missing from
// an older cache entry keep their defaults.
func decodeControls(raw []byte) (*models.ControlSettings, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode cached control settings: %w", err)
	}
	settings := models.DecodeControlSettings(doc, models.DefaultControlSettings())
	return &settings, nil
}
