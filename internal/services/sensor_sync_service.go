package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"plant-monitor-service/internal/database/docstore"
	"plant-monitor-service/internal/models"
)

// ErrSyncClosed is returned by Start when Close won the race.
var ErrSyncClosed = errors.New("sensor sync closed during start")

// TelemetrySink receives every decoded snapshot, e.g. for time-series history.
type TelemetrySink interface {
	WriteSnapshot(ctx context.Context, snapshot models.SensorSnapshot) error
}

// StatusObserver is told about every evaluation of a live snapshot.
type StatusObserver interface {
	Observe(ctx context.Context, snapshot models.SensorSnapshot, settings models.ThresholdSettings, statuses models.MetricStatuses)
}

// SensorSyncService mirrors the readings and thresholds documents into typed
// state. It starts in Loading and moves between Live and Degraded with every
// readings event until Close.
type SensorSyncService struct {
	store    docstore.Store
	editor   *ThresholdEditorService
	sink     TelemetrySink
	observer StatusObserver
	now      func() time.Time

	mu         sync.RWMutex
	state      models.SyncState
	lastGood   *models.SensorSnapshot
	unsubs     []docstore.Unsubscribe
	started    bool
	closed     bool
	sinkCtx    context.Context
	sinkCancel context.CancelFunc
}

func NewSensorSyncService(store docstore.Store, editor *ThresholdEditorService) *SensorSyncService {
	now := time.Now
	settings := models.DefaultThresholdSettings()
	if editor != nil {
		settings = editor.Settings()
	}
	baseline := models.BaselineSnapshot(now())
	return &SensorSyncService{
		store:  store,
		editor: editor,
		now:    now,
		state: models.SyncState{
			Phase:      models.PhaseLoading,
			Snapshot:   baseline,
			Stale:      true,
			Thresholds: settings,
			Statuses:   EvaluateSnapshot(baseline, settings),
			UpdatedAt:  baseline.CapturedAt,
		},
	}
}

// WithTelemetrySink forwards snapshots to sink. Must be called before Start.
func (s *SensorSyncService) WithTelemetrySink(sink TelemetrySink) *SensorSyncService {
	s.sink = sink
	return s
}

// WithStatusObserver forwards evaluations to observer. Must be called before Start.
func (s *SensorSyncService) WithStatusObserver(observer StatusObserver) *SensorSyncService {
	s.observer = observer
	return s
}

// Start subscribes to both documents. The subscriptions live until Close.
func (s *SensorSyncService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return fmt.Errorf("sensor sync already started or closed")
	}
	s.started = true
	s.sinkCtx, s.sinkCancel = context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Unlock()

	readingsUnsub, err := s.store.Subscribe(ctx, docstore.ReadingsPath, s.handleReadings)
	if err != nil {
		s.degrade(fmt.Errorf("failed to subscribe to readings: %w", err))
		return err
	}
	thresholdsUnsub, err := s.store.Subscribe(ctx, docstore.ThresholdsPath, s.handleThresholds)
	if err != nil {
		readingsUnsub()
		s.degrade(fmt.Errorf("failed to subscribe to thresholds: %w", err))
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		readingsUnsub()
		thresholdsUnsub()
		return ErrSyncClosed
	}
	s.unsubs = append(s.unsubs, readingsUnsub, thresholdsUnsub)
	s.mu.Unlock()

	slog.Info("sensor sync started", "readings", docstore.ReadingsPath, "thresholds", docstore.ThresholdsPath)
	return nil
}

// Close releases both subscriptions and waits for in-flight callbacks.
func (s *SensorSyncService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubs := s.unsubs
	s.unsubs = nil
	cancel := s.sinkCancel
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
	slog.Info("sensor sync closed")
}

// State returns a copy of the current state.
func (s *SensorSyncService) State() models.SyncState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// CurrentSnapshot returns the snapshot the dashboard currently shows.
func (s *SensorSyncService) CurrentSnapshot() models.SensorSnapshot {
	return s.State().Snapshot
}

func (s *SensorSyncService) handleReadings(evt docstore.Event) {
	if evt.Err != nil {
		s.degrade(evt.Err)
		return
	}
	if !evt.Exists {
		s.degrade(fmt.Errorf("document %s does not exist", evt.Path))
		return
	}

	s.mu.Lock()
	snapshot := models.DecodeSensorSnapshot(evt.Data, s.lastGood, s.now())
	s.lastGood = &snapshot
	settings := s.currentSettings()
	statuses := EvaluateSnapshot(snapshot, settings)
	s.state = models.SyncState{
		Phase:      models.PhaseLive,
		Snapshot:   snapshot,
		Stale:      false,
		Thresholds: settings,
		Statuses:   statuses,
		UpdatedAt:  s.now(),
	}
	ctx := s.sinkCtx
	s.mu.Unlock()

	s.forward(ctx, snapshot, settings, statuses)
}

func (s *SensorSyncService) handleThresholds(evt docstore.Event) {
	if evt.Err != nil {
		slog.Error("thresholds subscription failed, keeping committed settings", "error", evt.Err)
		return
	}
	if !evt.Exists {
		slog.Warn("thresholds document absent, keeping committed settings", "path", evt.Path)
		return
	}

	s.mu.Lock()
	settings := models.DecodeThresholdSettings(evt.Data, s.currentSettings())
	if err := settings.Validate(); err != nil {
		slog.Warn("remote thresholds contain an inverted range, commits of that group will be rejected", "error", err)
	}
	if s.editor != nil {
		s.editor.ApplyRemote(settings)
	}
	s.state.Thresholds = settings
	s.state.Statuses = EvaluateSnapshot(s.state.Snapshot, settings)
	s.state.UpdatedAt = s.now()
	s.mu.Unlock()

	slog.Info("threshold settings synchronized")
}

// degrade moves to Degraded, keeping the last good snapshot or the baseline.
func (s *SensorSyncService) degrade(cause error) {
	slog.Warn("sensor sync degraded", "error", cause)

	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := models.BaselineSnapshot(s.now())
	if s.lastGood != nil {
		snapshot = *s.lastGood
	}
	settings := s.currentSettings()
	s.state = models.SyncState{
		Phase:      models.PhaseDegraded,
		Snapshot:   snapshot,
		Error:      cause.Error(),
		Stale:      true,
		Thresholds: settings,
		Statuses:   EvaluateSnapshot(snapshot, settings),
		UpdatedAt:  s.now(),
	}
}

// currentSettings must be called with s.mu held.
func (s *SensorSyncService) currentSettings() models.ThresholdSettings {
	if s.editor != nil {
		return s.editor.Settings()
	}
	return s.state.Thresholds
}

func (s *SensorSyncService) forward(ctx context.Context, snapshot models.SensorSnapshot, settings models.ThresholdSettings, statuses models.MetricStatuses) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.sink != nil {
		if err := s.sink.WriteSnapshot(ctx, snapshot); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
	}
	if s.observer != nil {
		s.observer.Observe(ctx, snapshot, settings, statuses)
	}
}
