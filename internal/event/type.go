package event

import (
	"time"

	"plant-monitor-service/internal/models"

	"github.com/google/uuid"
)

const (
	AlertQueue    string = "plant_alert_events"
	AnalysisQueue string = "plant_analysis_events"
)

// AnalysisEventModel is published after every completed analysis.
type AnalysisEventModel struct {
	ID         uuid.UUID             `json:"id"`
	Diagnosis  string                `json:"diagnosis"`
	Status     models.AnalysisStatus `json:"status"`
	Disease    *models.DiseaseOption `json:"disease"`
	Confidence int                   `json:"confidence"`
	Fallback   bool                  `json:"fallback"`
	Source     string                `json:"source"`
	Timestamp  time.Time             `json:"timestamp"`
}

func NewAnalysisEvent(r models.AnalysisResult) AnalysisEventModel {
	return AnalysisEventModel{
		ID:         r.ID,
		Diagnosis:  r.Diagnosis(),
		Status:     r.Status,
		Disease:    r.Disease,
		Confidence: r.Confidence,
		Fallback:   r.Fallback,
		Source:     r.Source,
		Timestamp:  r.Timestamp,
	}
}
