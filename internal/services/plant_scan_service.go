package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"plant-monitor-service/internal/models"
)

var ErrNoCapture = errors.New("no device capture available")

// Capture is one photo uploaded by the IoT camera.
type Capture struct {
	Name        string
	ContentType string
	Data        []byte
	CapturedAt  time.Time
}

// CaptureSource returns the newest device capture.
type CaptureSource interface {
	LatestCapture(ctx context.Context) (*Capture, error)
}

// Analyzer submits one image for diagnosis. It never fails; transport
// problems come back as a degraded result.
type Analyzer interface {
	Analyze(ctx context.Context, imageDataURI string, snapshot models.SensorSnapshot) models.AnalysisResult
}

// RunSchedule reports when a scheduled job fires next.
type RunSchedule interface {
	NextRun() time.Time
}

// PlantScanService runs the periodic automatic analysis of device captures.
type PlantScanService struct {
	mu         sync.Mutex
	source     CaptureSource
	analyzer   Analyzer
	sensors    SnapshotProvider
	interval   time.Duration
	schedule   RunSchedule
	lastObject string
	lastResult *models.AnalysisResult
	now        func() time.Time
}

func NewPlantScanService(source CaptureSource, analyzer Analyzer, sensors SnapshotProvider, interval time.Duration) *PlantScanService {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &PlantScanService{
		source:   source,
		analyzer: analyzer,
		sensors:  sensors,
		interval: interval,
		now:      time.Now,
	}
}

// WithSchedule attaches the scheduler driving Run.
func (s *PlantScanService) WithSchedule(schedule RunSchedule) *PlantScanService {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedule = schedule
	return s
}

func (s *PlantScanService) Interval() time.Duration {
	return s.interval
}

// NextScanIn returns the time left until the next scheduled scan, never
// negative. Without a running schedule it is one full interval.
func (s *PlantScanService) NextScanIn() time.Duration {
	s.mu.Lock()
	schedule := s.schedule
	s.mu.Unlock()
	if schedule == nil {
		return s.interval
	}
	next := schedule.NextRun()
	if next.IsZero() {
		return s.interval
	}
	left := next.Sub(s.now())
	if left < 0 {
		return 0
	}
	return left
}

func (s *PlantScanService) LastResult() *models.AnalysisResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastResult == nil {
		return nil
	}
	r := *s.lastResult
	return &r
}

// Run analyses the newest capture. A capture that was already analysed is
// skipped.
func (s *PlantScanService) Run(ctx context.Context) error {
	if s.source == nil || s.analyzer == nil {
		return fmt.Errorf("scan is not configured")
	}

	capture, err := s.source.LatestCapture(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch latest capture: %w", err)
	}
	if capture == nil || len(capture.Data) == 0 {
		slog.Info("scheduled scan found no capture")
		return ErrNoCapture
	}

	s.mu.Lock()
	seen := capture.Name != "" && capture.Name == s.lastObject
	s.mu.Unlock()
	if seen {
		slog.Info("scheduled scan skipped, capture already analysed", "object", capture.Name)
		return nil
	}

	snapshot := models.BaselineSnapshot(s.now())
	if s.sensors != nil {
		snapshot = s.sensors.CurrentSnapshot()
	}

	result := s.analyzer.Analyze(ctx, EncodeImageDataURI(capture.Data, capture.ContentType), snapshot)
	result.Source = models.SourceScheduled

	s.mu.Lock()
	s.lastObject = capture.Name
	s.lastResult = &result
	s.mu.Unlock()

	slog.Info("scheduled scan completed",
		"object", capture.Name,
		"status", result.Status,
		"diagnosis", result.Diagnosis(),
		"confidence", result.Confidence)
	return nil
}
