package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"plant-monitor-service/internal/metrics"
	"plant-monitor-service/internal/models"

	"github.com/google/uuid"
)

// AlertStateStore remembers the last known status per metric across restarts.
type AlertStateStore interface {
	LoadStatuses(ctx context.Context) (map[models.Metric]models.Status, error)
	SaveStatus(ctx context.Context, metric models.Metric, status models.Status) error
}

// AlertNotifier delivers one alert transition.
type AlertNotifier interface {
	Notify(ctx context.Context, event models.AlertEvent) error
}

// AlertService turns per-metric status changes into alert events. A metric
// starts as Normal unless the state store says otherwise, so the first alert
// reading raises exactly once.
type AlertService struct {
	mu        sync.Mutex
	store     AlertStateStore
	notifiers []AlertNotifier
	statuses  map[models.Metric]models.Status
	loaded    bool
	recent    []models.AlertEvent
	now       func() time.Time
}

const recentAlertLimit = 50

func NewAlertService(store AlertStateStore, notifiers ...AlertNotifier) *AlertService {
	return &AlertService{
		store:     store,
		notifiers: notifiers,
		statuses:  make(map[models.Metric]models.Status, len(models.AllMetrics)),
		now:       time.Now,
	}
}

// Observe implements StatusObserver.
func (a *AlertService) Observe(ctx context.Context, snapshot models.SensorSnapshot, settings models.ThresholdSettings, statuses models.MetricStatuses) {
	events := a.transitions(ctx, snapshot, settings, statuses)

	for _, metric := range models.AllMetrics {
		metrics.SensorReading.WithLabelValues(string(metric)).Set(MetricValue(metric, snapshot))
		gauge := 0.0
		if statuses.Get(metric) == models.StatusAlert {
			gauge = 1
		}
		metrics.MetricAlert.WithLabelValues(string(metric)).Set(gauge)
	}

	for _, evt := range events {
		metrics.AlertTransitions.WithLabelValues(string(evt.Metric), string(evt.Kind)).Inc()
		slog.Info("threshold alert transition",
			"metric", evt.Metric,
			"kind", evt.Kind,
			"value", evt.Value,
			"expected", evt.Expected)

		if a.store != nil {
			if err := a.store.SaveStatus(ctx, evt.Metric, evt.Current); err != nil {
				slog.Error("failed to save alert state", "metric", evt.Metric, "error", err)
			}
		}
		for _, n := range a.notifiers {
			if err := n.Notify(ctx, evt); err != nil {
				slog.Error("alert notification failed", "metric", evt.Metric, "kind", evt.Kind, "error", err)
			}
		}
	}
}

// Recent returns the latest transitions, newest first.
func (a *AlertService) Recent() []models.AlertEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.AlertEvent, len(a.recent))
	for i, evt := range a.recent {
		out[len(a.recent)-1-i] = evt
	}
	return out
}

// Statuses returns the status currently tracked for every metric.
func (a *AlertService) Statuses() map[models.Metric]models.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[models.Metric]models.Status, len(models.AllMetrics))
	for _, m := range models.AllMetrics {
		out[m] = a.statusLocked(m)
	}
	return out
}

func (a *AlertService) transitions(ctx context.Context, snapshot models.SensorSnapshot, settings models.ThresholdSettings, statuses models.MetricStatuses) []models.AlertEvent {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.loaded {
		a.loaded = true
		if a.store != nil {
			saved, err := a.store.LoadStatuses(ctx)
			if err != nil {
				slog.Warn("failed to load alert state, assuming normal", "error", err)
			}
			for m, st := range saved {
				a.statuses[m] = st
			}
		}
	}

	var events []models.AlertEvent
	for _, metric := range models.AllMetrics {
		current := statuses.Get(metric)
		if current == "" {
			continue
		}
		previous := a.statusLocked(metric)
		if previous == current {
			continue
		}
		a.statuses[metric] = current

		kind := models.AlertRaised
		if current == models.StatusNormal {
			kind = models.AlertCleared
		}
		evt := models.AlertEvent{
			ID:         uuid.NewString(),
			Kind:       kind,
			Metric:     metric,
			Value:      MetricValue(metric, snapshot),
			Expected:   PolicyFor(metric, settings).Describe(),
			Previous:   previous,
			Current:    current,
			OccurredAt: a.now().UTC(),
		}
		events = append(events, evt)
		a.recent = append(a.recent, evt)
	}
	if over := len(a.recent) - recentAlertLimit; over > 0 {
		a.recent = a.recent[over:]
	}
	return events
}

func (a *AlertService) statusLocked(metric models.Metric) models.Status {
	if st, ok := a.statuses[metric]; ok {
		return st
	}
	return models.StatusNormal
}
