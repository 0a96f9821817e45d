package repository

import (
	"context"
	"fmt"
	"log/slog"

	"plant-monitor-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const MaxAnalysisHistory = 200

type AnalysisRepository struct {
	db *sqlx.DB
}

func NewAnalysisRepository(db *sqlx.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Create(ctx context.Context, result *models.AnalysisResult) error {
	query := `
		INSERT INTO plant_analysis (id, status, disease, confidence, issue, recommendations, fallback, source, image_object, created_at)
		VALUES (:id, :status, :disease, :confidence, :issue, :recommendations, :fallback, :source, :image_object, :created_at)`

	if _, err := r.db.NamedExecContext(ctx, query, result); err != nil {
		slog.Error("failed to insert plant analysis", "id", result.ID, "error", err)
		return fmt.Errorf("failed to create plant analysis: %w", err)
	}
	return nil
}

// ListRecent returns up to limit results, newest first.
func (r *AnalysisRepository) ListRecent(ctx context.Context, limit int) ([]models.AnalysisResult, error) {
	if limit <= 0 || limit > MaxAnalysisHistory {
		limit = MaxAnalysisHistory
	}
	query := `
		SELECT id, status, disease, confidence, issue, recommendations, fallback, source, image_object, created_at
		FROM plant_analysis
		ORDER BY created_at DESC
		LIMIT $1`

	results := []models.AnalysisResult{}
	if err := r.db.SelectContext(ctx, &results, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list plant analyses: %w", err)
	}
	return results, nil
}

func (r *AnalysisRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
