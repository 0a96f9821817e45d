package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"plant-monitor-service/internal/database/docstore"
	"plant-monitor-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

type stubCaptureSource struct {
	capture *Capture
	err     error
}

func (s *stubCaptureSource) LatestCapture(ctx context.Context) (*Capture, error) {
	return s.capture, s.err
}

type recordingAnalyzer struct {
	mu        sync.Mutex
	uris      []string
	snapshots []models.SensorSnapshot
}

func (r *recordingAnalyzer) Analyze(ctx context.Context, uri string, snap models.SensorSnapshot) models.AnalysisResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uris = append(r.uris, uri)
	r.snapshots = append(r.snapshots, snap)
	return models.AnalysisResult{Status: models.AnalysisHealthy, Confidence: 90, Timestamp: time.Now()}
}

// ============================================================================
// TEST SUITE 1: SCHEDULED SCAN
// ============================================================================

func TestPlantScan_AnalysesNewestCaptureOnce(t *testing.T) {
	source := &stubCaptureSource{capture: &Capture{Name: "cam/2024-01-01.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}}
	analyzer := &recordingAnalyzer{}
	snap := models.BaselineSnapshot(time.Now())
	snap.Temperature = 29
	svc := NewPlantScanService(source, analyzer, fixedSnapshot{snap}, time.Hour)

	require.NoError(t, svc.Run(context.Background()))
	require.NoError(t, svc.Run(context.Background()))

	require.Len(t, analyzer.uris, 1)
	assert.True(t, strings.HasPrefix(analyzer.uris[0], "data:image/png;base64,"))
	assert.Equal(t, 29.0, analyzer.snapshots[0].Temperature)

	last := svc.LastResult()
	require.NotNil(t, last)
	assert.Equal(t, models.SourceScheduled, last.Source)
}

func TestPlantScan_NoCapture(t *testing.T) {
	svc := NewPlantScanService(&stubCaptureSource{}, &recordingAnalyzer{}, nil, time.Hour)

	err := svc.Run(context.Background())

	assert.ErrorIs(t, err, ErrNoCapture)
	assert.Nil(t, svc.LastResult())
}

func TestPlantScan_SourceError(t *testing.T) {
	svc := NewPlantScanService(&stubCaptureSource{err: errors.New("bucket missing")}, &recordingAnalyzer{}, nil, time.Hour)

	err := svc.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket missing")
}

type fixedSchedule struct{ next time.Time }

func (f fixedSchedule) NextRun() time.Time { return f.next }

func TestPlantScan_NextScanIn(t *testing.T) {
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	now := base
	svc := NewPlantScanService(nil, nil, nil, 24*time.Hour)
	svc.now = func() time.Time { return now }

	assert.Equal(t, 24*time.Hour, svc.NextScanIn(), "no schedule attached")

	svc.WithSchedule(fixedSchedule{})
	assert.Equal(t, 24*time.Hour, svc.NextScanIn(), "schedule not running yet")

	svc.WithSchedule(fixedSchedule{next: base.Add(24 * time.Hour)})
	now = base.Add(23 * time.Hour)
	assert.Equal(t, time.Hour, svc.NextScanIn())

	now = base.Add(25 * time.Hour)
	assert.Equal(t, time.Duration(0), svc.NextScanIn())
}

// ============================================================================
// TEST SUITE 2: SIMULATOR
// ============================================================================

func TestInfraredReading_StaysInBand(t *testing.T) {
	for i := 0; i < 200; i++ {
		now := time.UnixMilli(int64(i) * 7919 * 1000)
		u := float64(i%100) / 100
		v := InfraredReading(now, u)
		assert.GreaterOrEqual(t, v, 680.0-25-1)
		assert.LessOrEqual(t, v, 680.0+25)
		assert.Equal(t, math.Floor(v), v)
	}
}

func TestSensorSimulator_TickWritesReadings(t *testing.T) {
	store := docstore.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	sim := NewSensorSimulator(store, 42)

	require.NoError(t, sim.Tick(context.Background()))

	doc, err := store.Get(context.Background(), docstore.ReadingsPath)
	require.NoError(t, err)
	require.True(t, doc.Exists)
	snap := models.DecodeSensorSnapshot(doc.Data, nil, time.Now())
	assert.InDelta(t, models.BaselineTemperature, snap.Temperature, 1.6)
	assert.InDelta(t, models.BaselineNitrogen, snap.Nitrogen, 8.5)
	assert.GreaterOrEqual(t, snap.Humidity, 0.0)
	assert.LessOrEqual(t, snap.Humidity, 100.0)
}

func TestSensorSimulator_SameSeedSameSequence(t *testing.T) {
	a := NewSensorSimulator(nil, 7)
	b := NewSensorSimulator(nil, 7)
	fixed := time.Unix(1700000000, 0)
	a.now = func() time.Time { return fixed }
	b.now = func() time.Time { return fixed }

	assert.Equal(t, a.Next(), b.Next())
}

func TestSensorSimulator_StoreFailure(t *testing.T) {
	store := docstore.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	store.FailWrites(errors.New("write denied"))

	err := NewSensorSimulator(store, 1).Tick(context.Background())

	assert.ErrorContains(t, err, "write denied")
}
