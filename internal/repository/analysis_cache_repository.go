package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"plant-monitor-service/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	latestAnalysisKey = "plantmon:analysis:latest"
	latestAnalysisTTL = 48 * time.Hour
)

type AnalysisCacheRepository struct {
	redisClient *redis.Client
}

func NewAnalysisCacheRepository(redisClient *redis.Client) *AnalysisCacheRepository {
	return &AnalysisCacheRepository{redisClient: redisClient}
}

func (r *AnalysisCacheRepository) SetLatest(ctx context.Context, result models.AnalysisResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}
	return r.redisClient.Set(ctx, latestAnalysisKey, raw, latestAnalysisTTL).Err()
}

func (r *AnalysisCacheRepository) GetLatest(ctx context.Context) (*models.AnalysisResult, error) {
	raw, err := r.redisClient.Get(ctx, latestAnalysisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest analysis: %w", err)
	}
	var result models.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode latest analysis: %w", err)
	}
	return &result, nil
}
