package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"plant-monitor-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TEST SUITE 1: SUCCESS
// ============================================================================

func TestAnalyze_Success(t *testing.T) {
	var got models.AnalyzePlantRequest
	var source string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		source = r.Header.Get(SourceHeader)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"6f1c2c9e-5d1a-4b8e-9b7a-0c2d3e4f5a6b","diagnosis":"Root Rot","status":"diseased","disease":"Root Rot","confidence":81,"issue":"soggy roots","recommendations":"Reduce watering","timestamp":"2024-05-01T10:00:00Z","fallback":false}`))
	}))
	defer srv.Close()

	c := NewAnalysisClient(srv.URL, time.Second, models.SourceScheduled)
	snap := models.BaselineSnapshot(time.Now())

	result := c.Analyze(context.Background(), "data:image/png;base64,AAAA", snap)

	assert.Equal(t, models.AnalysisDiseased, result.Status)
	require.NotNil(t, result.Disease)
	assert.Equal(t, models.DiseaseRootRot, *result.Disease)
	assert.Equal(t, 81, result.Confidence)
	assert.Equal(t, models.SourceScheduled, result.Source)
	assert.False(t, result.Fallback)
	assert.Equal(t, models.SourceScheduled, source)
	assert.Equal(t, "data:image/png;base64,AAAA", got.Image)
	assert.Equal(t, models.BaselineNitrogen, got.SensorReadings["nitrogen"])
	assert.False(t, c.InProgress())
}

// ============================================================================
// TEST SUITE 2: DEGRADED RESULTS
// ============================================================================

func TestAnalyze_NetworkErrorDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewAnalysisClient(url, time.Second, "")
	result := c.Analyze(context.Background(), "data:image/png;base64,AAAA", models.BaselineSnapshot(time.Now()))

	assert.Equal(t, models.AnalysisHealthy, result.Status)
	assert.Equal(t, 0, result.Confidence)
	assert.True(t, result.Fallback)
	assert.Contains(t, result.Recommendations, "could not be reached")
	assert.Contains(t, result.Recommendations, "Temperature: 26.8°C")
	assert.False(t, c.InProgress())
}

func TestAnalyze_ServerErrorDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"vision model unavailable","kind":"model_call_failed","details":"quota"}`))
	}))
	defer srv.Close()

	c := NewAnalysisClient(srv.URL, time.Second, "")
	result := c.Analyze(context.Background(), "data:image/png;base64,AAAA", models.BaselineSnapshot(time.Now()))

	assert.Equal(t, 0, result.Confidence)
	assert.Contains(t, result.Recommendations, "model_call_failed")
	assert.Contains(t, result.Recommendations, "Nitrogen (N): 118 mg/kg")
}

func TestAnalyze_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	result := NewAnalysisClient(srv.URL, time.Second, "").Analyze(context.Background(), "x", models.BaselineSnapshot(time.Now()))

	assert.Contains(t, result.Recommendations, "HTTP 502")
}

func TestAnalyze_ConcurrentCallIsRejected(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		once.Do(func() { close(entered) })
		<-release
		_, _ = w.Write([]byte(`{"status":"healthy","confidence":90,"recommendations":"ok"}`))
	}))
	defer srv.Close()

	c := NewAnalysisClient(srv.URL, 5*time.Second, "")
	snap := models.BaselineSnapshot(time.Now())

	done := make(chan models.AnalysisResult)
	go func() { done <- c.Analyze(context.Background(), "x", snap) }()
	<-entered
	assert.True(t, c.InProgress())

	second := c.Analyze(context.Background(), "x", snap)
	assert.Equal(t, 0, second.Confidence)
	assert.Contains(t, second.Recommendations, "already in progress")

	close(release)
	first := <-done
	assert.Equal(t, 90, first.Confidence)
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
	assert.False(t, c.InProgress())
}
