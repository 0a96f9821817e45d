package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"plant-monitor-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

const onePixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

type stubModel struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   int
	prompts []string
	mimes   []string
}

func (m *stubModel) Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.mimes = append(m.mimes, mimeType)
	return m.reply, m.err
}

type fixedSnapshot struct {
	snapshot models.SensorSnapshot
}

func (f fixedSnapshot) CurrentSnapshot() models.SensorSnapshot {
	return f.snapshot
}

type memoryHistory struct {
	mu      sync.Mutex
	results []models.AnalysisResult
	err     error
}

func (h *memoryHistory) Create(ctx context.Context, r *models.AnalysisResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.results = append([]models.AnalysisResult{*r}, h.results...)
	return nil
}

func (h *memoryHistory) ListRecent(ctx context.Context, limit int) ([]models.AnalysisResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit > len(h.results) {
		limit = len(h.results)
	}
	return append([]models.AnalysisResult(nil), h.results[:limit]...), nil
}

type recordingArchive struct {
	objects map[uuid.UUID]string
}

func (a *recordingArchive) ArchivePhoto(ctx context.Context, id uuid.UUID, data []byte, contentType string) (string, error) {
	if a.objects == nil {
		a.objects = map[uuid.UUID]string{}
	}
	name := id.String() + ".png"
	a.objects[id] = name
	return name, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	data, mime, err := DecodeImageDataURI("data:image/png;base64," + onePixelPNG)
	require.NoError(t, err)
	require.Equal(t, "image/png", mime)
	return data
}

// ============================================================================
// TEST SUITE 1: IMAGE DECODING
// ============================================================================

func TestDecodeImageDataURI(t *testing.T) {
	t.Run("data uri", func(t *testing.T) {
		data, mime, err := DecodeImageDataURI("data:image/png;base64," + onePixelPNG)
		require.NoError(t, err)
		assert.Equal(t, "image/png", mime)
		assert.NotEmpty(t, data)
	})

	t.Run("bare base64 detects mime", func(t *testing.T) {
		_, mime, err := DecodeImageDataURI(onePixelPNG)
		require.NoError(t, err)
		assert.Equal(t, "image/png", mime)
	})

	t.Run("empty", func(t *testing.T) {
		_, _, err := DecodeImageDataURI("  ")
		assert.ErrorIs(t, err, ErrImageRequired)
	})

	t.Run("not base64", func(t *testing.T) {
		_, _, err := DecodeImageDataURI("data:image/png;base64,@@@")
		assert.ErrorIs(t, err, ErrInvalidImage)
	})

	t.Run("non image media type", func(t *testing.T) {
		_, _, err := DecodeImageDataURI("data:text/plain;base64,aGVsbG8=")
		assert.ErrorIs(t, err, ErrInvalidImage)
	})

	t.Run("round trip", func(t *testing.T) {
		data := pngBytes(t)
		again, mime, err := DecodeImageDataURI(EncodeImageDataURI(data, ""))
		require.NoError(t, err)
		assert.Equal(t, "image/png", mime)
		assert.Equal(t, data, again)
	})
}

// ============================================================================
// TEST SUITE 2: DIAGNOSE
// ============================================================================

func TestDiagnose_StructuredReply(t *testing.T) {
	model := &stubModel{reply: "Here you go:\n```json\n{\"status\":\"diseased\",\"disease\":\"Powdery Mildew\",\"confidence\":88,\"issue\":\"white patches\",\"recommendations\":\"Apply sulfur\"}\n```"}
	svc := NewDiseaseAnalysisService(model, fixedSnapshot{models.BaselineSnapshot(time.Now())}, BreakerSettings{})

	result, err := svc.Diagnose(context.Background(), DiagnoseRequest{Image: pngBytes(t)})

	require.NoError(t, err)
	assert.Equal(t, models.AnalysisDiseased, result.Status)
	require.NotNil(t, result.Disease)
	assert.Equal(t, models.DiseasePowderyMildew, *result.Disease)
	assert.Equal(t, 88, result.Confidence)
	assert.False(t, result.Fallback)
	assert.Equal(t, models.SourceEndpoint, result.Source)
	assert.NotEqual(t, uuid.Nil, result.ID)
	assert.Equal(t, "Powdery Mildew", result.Diagnosis())
	assert.Equal(t, []string{"image/png"}, model.mimes)
}

func TestDiagnose_UnparseableReplyFallsBack(t *testing.T) {
	model := &stubModel{reply: "The plant looks healthy and strong."}
	svc := NewDiseaseAnalysisService(model, nil, BreakerSettings{})

	result, err := svc.Diagnose(context.Background(), DiagnoseRequest{Image: pngBytes(t)})

	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Equal(t, models.AnalysisHealthy, result.Status)
	assert.Equal(t, DefaultConfidence, result.Confidence)
	assert.Equal(t, "The plant looks healthy and strong.", result.Recommendations)
}

func TestDiagnose_PromptCarriesSnapshotAndOverrides(t *testing.T) {
	model := &stubModel{reply: `{"status":"healthy","confidence":90,"recommendations":"ok"}`}
	svc := NewDiseaseAnalysisService(model, fixedSnapshot{models.BaselineSnapshot(time.Now())}, BreakerSettings{})

	_, err := svc.Diagnose(context.Background(), DiagnoseRequest{
		Image:    pngBytes(t),
		Readings: map[string]any{"temperature": 31.5},
	})

	require.NoError(t, err)
	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "Temperature: 31.5°C")
	assert.Contains(t, model.prompts[0], "Nitrogen (N): 118 mg/kg")
	for _, d := range models.DiseaseVocabulary {
		assert.Contains(t, model.prompts[0], string(d))
	}
}

func TestDiagnose_EmptyImage(t *testing.T) {
	model := &stubModel{}
	svc := NewDiseaseAnalysisService(model, nil, BreakerSettings{})

	_, err := svc.Diagnose(context.Background(), DiagnoseRequest{})

	assert.ErrorIs(t, err, ErrImageRequired)
	assert.Zero(t, model.calls)
}

func TestDiagnose_ModelFailureIsSingleAttempt(t *testing.T) {
	model := &stubModel{err: errors.New("quota exceeded")}
	svc := NewDiseaseAnalysisService(model, nil, BreakerSettings{MaxFailures: 5})

	_, err := svc.Diagnose(context.Background(), DiagnoseRequest{Image: pngBytes(t)})

	var analysisErr *AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, "model_call_failed", analysisErr.Kind)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.True(t, strings.Contains(err.Error(), "quota exceeded"))
	assert.Equal(t, 1, model.calls)
}

func TestDiagnose_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	model := &stubModel{err: errors.New("unavailable")}
	svc := NewDiseaseAnalysisService(model, nil, BreakerSettings{MaxFailures: 2, OpenTimeout: time.Minute})
	ctx := context.Background()
	img := pngBytes(t)

	_, _ = svc.Diagnose(ctx, DiagnoseRequest{Image: img})
	_, _ = svc.Diagnose(ctx, DiagnoseRequest{Image: img})
	_, err := svc.Diagnose(ctx, DiagnoseRequest{Image: img})

	var analysisErr *AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, "model_circuit_open", analysisErr.Kind)
	assert.Equal(t, 2, model.calls)
}

// ============================================================================
// TEST SUITE 3: RECORDING
// ============================================================================

func TestDiagnose_RecordsHistoryAndArchive(t *testing.T) {
	model := &stubModel{reply: `{"status":"healthy","confidence":95,"recommendations":"fine"}`}
	history := &memoryHistory{}
	archive := &recordingArchive{}
	svc := NewDiseaseAnalysisService(model, nil, BreakerSettings{}).WithHistory(history).WithArchive(archive)
	ctx := context.Background()

	first, err := svc.Diagnose(ctx, DiagnoseRequest{Image: pngBytes(t), Source: models.SourceScheduled})
	require.NoError(t, err)
	second, err := svc.Diagnose(ctx, DiagnoseRequest{Image: pngBytes(t)})
	require.NoError(t, err)

	require.NotNil(t, first.ImageObject)
	assert.Equal(t, archive.objects[first.ID], *first.ImageObject)

	latest, err := svc.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)

	all, err := svc.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, models.SourceScheduled, all[1].Source)
}

func TestDiagnose_HistoryFailureDoesNotFailAnalysis(t *testing.T) {
	model := &stubModel{reply: `{"status":"healthy","confidence":95,"recommendations":"fine"}`}
	history := &memoryHistory{err: errors.New("db down")}
	svc := NewDiseaseAnalysisService(model, nil, BreakerSettings{}).WithHistory(history)

	result, err := svc.Diagnose(context.Background(), DiagnoseRequest{Image: pngBytes(t)})

	require.NoError(t, err)
	assert.Equal(t, models.AnalysisHealthy, result.Status)
}

func TestLatest_WithoutPersistenceKeepsLastInMemory(t *testing.T) {
	model := &stubModel{reply: `{"status":"healthy","confidence":70,"recommendations":"fine"}`}
	svc := NewDiseaseAnalysisService(model, nil, BreakerSettings{})
	ctx := context.Background()

	none, err := svc.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	result, err := svc.Diagnose(ctx, DiagnoseRequest{Image: pngBytes(t)})
	require.NoError(t, err)

	latest, err := svc.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, result.ID, latest.ID)
}
