package repository

import (
	"context"
	"fmt"

	"plant-monitor-service/internal/models"

	"github.com/redis/go-redis/v9"
)

const alertStateKey = "plantmon:alert_state"

// AlertStateRepository keeps the last status of each metric in one hash.
type AlertStateRepository struct {
	redisClient *redis.Client
}

func NewAlertStateRepository(redisClient *redis.Client) *AlertStateRepository {
	return &AlertStateRepository{redisClient: redisClient}
}

func (r *AlertStateRepository) LoadStatuses(ctx context.Context) (map[models.Metric]models.Status, error) {
	raw, err := r.redisClient.HGetAll(ctx, alertStateKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read alert state: %w", err)
	}
	return decodeAlertState(raw), nil
}

func (r *AlertStateRepository) SaveStatus(ctx context.Context, metric models.Metric, status models.Status) error {
	if err := r.redisClient.HSet(ctx, alertStateKey, string(metric), string(status)).Err(); err != nil {
		return fmt.Errorf("failed to save alert state for %s: %w", metric, err)
	}
	return nil
}

// decodeAlertState drops unknown metrics and statuses.
func decodeAlertState(raw map[string]string) map[models.Metric]models.Status {
	known := make(map[models.Metric]bool, len(models.AllMetrics))
	for _, m := range models.AllMetrics {
		known[m] = true
	}
	out := make(map[models.Metric]models.Status, len(raw))
	for k, v := range raw {
		status := models.Status(v)
		if !known[models.Metric(k)] || (status != models.StatusNormal && status != models.StatusAlert) {
			continue
		}
		out[models.Metric(k)] = status
	}
	return out
}
