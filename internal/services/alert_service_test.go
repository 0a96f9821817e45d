package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"plant-monitor-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

type memoryAlertState struct {
	mu       sync.Mutex
	statuses map[models.Metric]models.Status
	loadErr  error
}

func (m *memoryAlertState) LoadStatuses(ctx context.Context) (map[models.Metric]models.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := map[models.Metric]models.Status{}
	for k, v := range m.statuses {
		out[k] = v
	}
	return out, nil
}

func (m *memoryAlertState) SaveStatus(ctx context.Context, metric models.Metric, status models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statuses == nil {
		m.statuses = map[models.Metric]models.Status{}
	}
	m.statuses[metric] = status
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.AlertEvent
	err    error
}

func (r *recordingNotifier) Notify(ctx context.Context, evt models.AlertEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return r.err
}

func observe(a *AlertService, snap models.SensorSnapshot) {
	settings := models.DefaultThresholdSettings()
	a.Observe(context.Background(), snap, settings, EvaluateSnapshot(snap, settings))
}

func inRangeSnapshot() models.SensorSnapshot {
	return models.SensorSnapshot{
		Temperature:  25,
		Humidity:     65,
		SoilMoisture: 50,
		Nitrogen:     120,
		Phosphorus:   85,
		Potassium:    95,
		Infrared:     680,
		CapturedAt:   time.Now(),
	}
}

// ============================================================================
// TEST SUITE 1: TRANSITIONS
// ============================================================================

func TestAlertService_NoEventsWhileNormal(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := NewAlertService(nil, notifier)

	observe(svc, inRangeSnapshot())
	observe(svc, inRangeSnapshot())

	assert.Empty(t, notifier.events)
	assert.Empty(t, svc.Recent())
}

func TestAlertService_RaisesOnceAndClears(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := NewAlertService(nil, notifier)

	hot := inRangeSnapshot()
	hot.Temperature = 35
	observe(svc, hot)
	observe(svc, hot)
	observe(svc, inRangeSnapshot())

	require.Len(t, notifier.events, 2)
	raised, cleared := notifier.events[0], notifier.events[1]
	assert.Equal(t, models.AlertRaised, raised.Kind)
	assert.Equal(t, models.MetricTemperature, raised.Metric)
	assert.Equal(t, 35.0, raised.Value)
	assert.Equal(t, "25 ±3", raised.Expected)
	assert.Equal(t, models.StatusNormal, raised.Previous)
	assert.Equal(t, models.StatusAlert, raised.Current)
	assert.Equal(t, models.AlertCleared, cleared.Kind)
	assert.NotEqual(t, raised.ID, cleared.ID)

	recent := svc.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, models.AlertCleared, recent[0].Kind)
}

func TestAlertService_RestoresSavedState(t *testing.T) {
	state := &memoryAlertState{statuses: map[models.Metric]models.Status{
		models.MetricHumidity: models.StatusAlert,
	}}
	notifier := &recordingNotifier{}
	svc := NewAlertService(state, notifier)

	dry := inRangeSnapshot()
	dry.Humidity = 20
	observe(svc, dry)

	assert.Empty(t, notifier.events, "already alerting before restart")
	assert.Equal(t, models.StatusAlert, svc.Statuses()[models.MetricHumidity])

	observe(svc, inRangeSnapshot())
	require.Len(t, notifier.events, 1)
	assert.Equal(t, models.AlertCleared, notifier.events[0].Kind)
	assert.Equal(t, models.StatusNormal, state.statuses[models.MetricHumidity])
}

func TestAlertService_StateLoadFailureAssumesNormal(t *testing.T) {
	state := &memoryAlertState{loadErr: errors.New("redis down")}
	notifier := &recordingNotifier{}
	svc := NewAlertService(state, notifier)

	low := inRangeSnapshot()
	low.Nitrogen = 50
	observe(svc, low)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, models.MetricNitrogen, notifier.events[0].Metric)
}

func TestAlertService_NotifierFailureDoesNotStopOthers(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("smtp refused")}
	ok := &recordingNotifier{}
	svc := NewAlertService(nil, failing, ok)

	wet := inRangeSnapshot()
	wet.SoilMoisture = 90
	observe(svc, wet)

	assert.Len(t, failing.events, 1)
	assert.Len(t, ok.events, 1)
}

func TestAlertService_RecentIsBounded(t *testing.T) {
	svc := NewAlertService(nil)
	hot := inRangeSnapshot()
	hot.Temperature = 40

	for i := 0; i < recentAlertLimit; i++ {
		observe(svc, hot)
		observe(svc, inRangeSnapshot())
	}

	assert.Len(t, svc.Recent(), recentAlertLimit)
}
