package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"plant-monitor-service/internal/ai/gemini"
	"plant-monitor-service/internal/metrics"
	"plant-monitor-service/internal/models"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

var (
	ErrImageRequired    = errors.New("image is required")
	ErrInvalidImage     = errors.New("image is not a valid base64 data URI")
	ErrModelUnavailable = errors.New("vision model unavailable")
)

// VisionModel answers a prompt about one image with free text.
type VisionModel interface {
	Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// AnalysisHistory persists results.
type AnalysisHistory interface {
	Create(ctx context.Context, result *models.AnalysisResult) error
	ListRecent(ctx context.Context, limit int) ([]models.AnalysisResult, error)
}

// AnalysisCache keeps the latest result for fast reads.
type AnalysisCache interface {
	SetLatest(ctx context.Context, result models.AnalysisResult) error
	GetLatest(ctx context.Context) (*models.AnalysisResult, error)
}

// ImageArchive stores analysed photos and returns their object name.
type ImageArchive interface {
	ArchivePhoto(ctx context.Context, id uuid.UUID, data []byte, contentType string) (string, error)
}

// AnalysisPublisher announces completed analyses.
type AnalysisPublisher interface {
	PublishAnalysis(ctx context.Context, result models.AnalysisResult) error
}

// SnapshotProvider returns the snapshot used when a request carries no readings.
type SnapshotProvider interface {
	CurrentSnapshot() models.SensorSnapshot
}

// AnalysisError is returned when the model could not be called. Kind is
// machine readable.
type AnalysisError struct {
	Kind string
	Err  error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

type DiagnoseRequest struct {
	Image    []byte
	MIMEType string
	// Readings overrides the synchronized snapshot field by field.
	Readings map[string]any
	Source   string
}

type DiseaseAnalysisService struct {
	model   VisionModel
	breaker *gobreaker.CircuitBreaker
	sensors SnapshotProvider
	history AnalysisHistory
	cache   AnalysisCache
	archive ImageArchive
	events  AnalysisPublisher
	now     func() time.Time

	mu             sync.RWMutex
	latestFallback *models.AnalysisResult
}

type BreakerSettings struct {
	MaxFailures int
	OpenTimeout time.Duration
}

func NewDiseaseAnalysisService(model VisionModel, sensors SnapshotProvider, breaker BreakerSettings) *DiseaseAnalysisService {
	fails := breaker.MaxFailures
	if fails <= 0 {
		fails = 3
	}
	return &DiseaseAnalysisService{
		model:   model,
		sensors: sensors,
		now:     time.Now,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "vision-model",
			Timeout: breaker.OpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= uint32(fails)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

func (s *DiseaseAnalysisService) WithHistory(h AnalysisHistory) *DiseaseAnalysisService {
	s.history = h
	return s
}

func (s *DiseaseAnalysisService) WithCache(c AnalysisCache) *DiseaseAnalysisService {
	s.cache = c
	return s
}

func (s *DiseaseAnalysisService) WithArchive(a ImageArchive) *DiseaseAnalysisService {
	s.archive = a
	return s
}

func (s *DiseaseAnalysisService) WithPublisher(p AnalysisPublisher) *DiseaseAnalysisService {
	s.events = p
	return s
}

// Diagnose builds the prompt, calls the model once and normalizes its reply.
// Only a failed model call returns an error; unparseable replies produce a
// fallback diagnosis.
func (s *DiseaseAnalysisService) Diagnose(ctx context.Context, req DiagnoseRequest) (*models.AnalysisResult, error) {
	if len(req.Image) == 0 {
		return nil, ErrImageRequired
	}
	mimeType := req.MIMEType
	if mimeType == "" {
		mimeType = gemini.DetectImageMIMEType(req.Image)
	}

	snapshot := s.snapshotFor(req.Readings)
	prompt := gemini.BuildDiagnosisPrompt(snapshot, models.DiseaseVocabulary)

	start := s.now()
	raw, err := s.breaker.Execute(func() (any, error) {
		return s.model.Generate(ctx, prompt, req.Image, mimeType)
	})
	metrics.AnalysisDuration.Observe(s.now().Sub(start).Seconds())
	if err != nil {
		metrics.AnalysisRequests.WithLabelValues("error").Inc()
		kind := "model_call_failed"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			kind = "model_circuit_open"
		}
		slog.Error("vision model call failed", "kind", kind, "error", err)
		return nil, &AnalysisError{Kind: kind, Err: fmt.Errorf("%w: %v", ErrModelUnavailable, err)}
	}

	diagnosis := ParseDiagnosis(raw.(string))
	outcome := "structured"
	if diagnosis.Fallback {
		outcome = "fallback"
		slog.Warn("model reply could not be parsed, using fallback diagnosis", "raw_length", len(raw.(string)))
	}
	metrics.AnalysisRequests.WithLabelValues(outcome).Inc()

	source := req.Source
	if source == "" {
		source = models.SourceEndpoint
	}
	result := &models.AnalysisResult{
		ID:              uuid.New(),
		Status:          diagnosis.Status,
		Disease:         diagnosis.Disease,
		Confidence:      models.ClampConfidence(diagnosis.Confidence),
		Issue:           diagnosis.Issue,
		Recommendations: diagnosis.Recommendations,
		Fallback:        diagnosis.Fallback,
		Source:          source,
		Timestamp:       s.now().UTC(),
	}

	s.record(ctx, result, req.Image, mimeType)
	return result, nil
}

// Latest returns the most recent result from the cache, then the history.
func (s *DiseaseAnalysisService) Latest(ctx context.Context) (*models.AnalysisResult, error) {
	if s.cache != nil {
		latest, err := s.cache.GetLatest(ctx)
		if err != nil {
			slog.Warn("failed to read latest analysis from cache", "error", err)
		} else if latest != nil {
			return latest, nil
		}
	}
	if s.history != nil {
		recent, err := s.history.ListRecent(ctx, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to load latest analysis: %w", err)
		}
		if len(recent) > 0 {
			return &recent[0], nil
		}
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestFallback, nil
}

func (s *DiseaseAnalysisService) History(ctx context.Context, limit int) ([]models.AnalysisResult, error) {
	if s.history == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.latestFallback != nil {
			return []models.AnalysisResult{*s.latestFallback}, nil
		}
		return []models.AnalysisResult{}, nil
	}
	return s.history.ListRecent(ctx, limit)
}

func (s *DiseaseAnalysisService) snapshotFor(readings map[string]any) models.SensorSnapshot {
	var current *models.SensorSnapshot
	if s.sensors != nil {
		snap := s.sensors.CurrentSnapshot()
		current = &snap
	}
	if len(readings) == 0 {
		if current != nil {
			return *current
		}
		return models.BaselineSnapshot(s.now())
	}
	return models.DecodeSensorSnapshot(readings, current, s.now())
}

// record stores the result; failures are logged and never fail the analysis.
func (s *DiseaseAnalysisService) record(ctx context.Context, result *models.AnalysisResult, image []byte, mimeType string) {
	if s.archive != nil {
		object, err := s.archive.ArchivePhoto(ctx, result.ID, image, mimeType)
		if err != nil {
			slog.Error("failed to archive analysed photo", "analysis_id", result.ID, "error", err)
		} else {
			result.ImageObject = &object
		}
	}
	if s.history != nil {
		if err := s.history.Create(ctx, result); err != nil {
			slog.Error("failed to persist analysis", "analysis_id", result.ID, "error", err)
		}
	}
	if s.cache != nil {
		if err := s.cache.SetLatest(ctx, *result); err != nil {
			slog.Error("failed to cache latest analysis", "analysis_id", result.ID, "error", err)
		}
	}
	if s.events != nil {
		if err := s.events.PublishAnalysis(ctx, *result); err != nil {
			slog.Error("failed to publish analysis event", "analysis_id", result.ID, "error", err)
		}
	}
	if s.history == nil && s.cache == nil {
		latest := *result
		s.mu.Lock()
		s.latestFallback = &latest
		s.mu.Unlock()
	}
}

// DecodeImageDataURI accepts "data:<mime>;base64,<payload>" or bare base64.
func DecodeImageDataURI(value string) ([]byte, string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, "", ErrImageRequired
	}

	mimeType := ""
	payload := value
	if strings.HasPrefix(value, "data:") {
		header, data, found := strings.Cut(value, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return nil, "", ErrInvalidImage
		}
		mimeType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		if !strings.HasPrefix(mimeType, "image/") {
			return nil, "", fmt.Errorf("%w: unsupported media type %q", ErrInvalidImage, mimeType)
		}
		payload = data
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(payload)
	}
	if err != nil || len(decoded) == 0 {
		return nil, "", ErrInvalidImage
	}
	if mimeType == "" {
		mimeType = gemini.DetectImageMIMEType(decoded)
	}
	return decoded, mimeType, nil
}

// EncodeImageDataURI is the inverse of DecodeImageDataURI.
func EncodeImageDataURI(data []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = gemini.DetectImageMIMEType(data)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
