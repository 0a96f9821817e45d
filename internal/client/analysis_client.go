package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"plant-monitor-service/internal/models"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// SourceHeader tells the endpoint who submitted the analysis.
const SourceHeader = "X-Analysis-Source"

// AnalysisClient submits images to the analysis endpoint. It never returns
// an error: every failure becomes a degraded result.
type AnalysisClient struct {
	http       *resty.Client
	endpoint   string
	source     string
	inProgress atomic.Bool
	now        func() time.Time
}

func NewAnalysisClient(endpoint string, timeout time.Duration, source string) *AnalysisClient {
	c := resty.New()
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	c.SetHeader("Content-Type", "application/json")
	if source == "" {
		source = models.SourceEndpoint
	}
	return &AnalysisClient{http: c, endpoint: endpoint, source: source, now: time.Now}
}

// InProgress reports whether a request is in flight.
func (a *AnalysisClient) InProgress() bool {
	return a.inProgress.Load()
}

// Analyze makes a single attempt. A call made while another is in flight
// returns a degraded result without sending anything.
func (a *AnalysisClient) Analyze(ctx context.Context, imageDataURI string, snapshot models.SensorSnapshot) models.AnalysisResult {
	if !a.inProgress.CompareAndSwap(false, true) {
		return a.degraded("an analysis is already in progress", snapshot)
	}
	defer a.inProgress.Store(false)

	body := models.AnalyzePlantRequest{
		Image:          imageDataURI,
		SensorReadings: snapshot.ToReadings(),
	}

	var ok models.AnalysisResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetHeader(SourceHeader, a.source).
		SetBody(body).
		Post(a.endpoint)
	if err != nil {
		slog.Error("analysis request failed", "endpoint", a.endpoint, "error", err)
		return a.degraded(fmt.Sprintf("the analysis service could not be reached (%v)", err), snapshot)
	}
	if resp.StatusCode() != 200 {
		cause := describeFailure(resp.StatusCode(), resp.Body())
		slog.Error("analysis endpoint returned an error", "status", resp.StatusCode(), "cause", cause)
		return a.degraded(cause, snapshot)
	}
	if err := json.Unmarshal(resp.Body(), &ok); err != nil {
		slog.Error("analysis response is not valid JSON", "error", err)
		return a.degraded("the analysis service returned an unreadable response", snapshot)
	}

	result := ok.ToResult(a.source)
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = a.now().UTC()
	}
	return result
}

func (a *AnalysisClient) degraded(cause string, snapshot models.SensorSnapshot) models.AnalysisResult {
	var b strings.Builder
	b.WriteString("## Analysis unavailable\n\n")
	b.WriteString("The plant photo could not be analysed: ")
	b.WriteString(cause)
	b.WriteString(".\n\n### Last known sensor readings\n")
	for _, line := range snapshot.Lines() {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\nPlease try again later.")

	return models.AnalysisResult{
		ID:              uuid.New(),
		Status:          models.AnalysisHealthy,
		Confidence:      0,
		Recommendations: b.String(),
		Fallback:        true,
		Source:          a.source,
		Timestamp:       a.now().UTC(),
	}
}

func describeFailure(status int, body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Kind    string `json:"kind"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		if e.Kind != "" {
			return fmt.Sprintf("the analysis service failed with %s: %s", e.Kind, e.Error)
		}
		return "the analysis service failed: " + e.Error
	}
	return fmt.Sprintf("the analysis service answered with HTTP %d", status)
}
