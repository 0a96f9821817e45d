package models

import "time"

type Status string

const (
	StatusNormal Status = "normal"
	StatusAlert  Status = "alert"
)

type Metric string

const (
	MetricTemperature  Metric = "temperature"
	MetricHumidity     Metric = "humidity"
	MetricSoilMoisture Metric = "soilMoisture"
	MetricNitrogen     Metric = "nitrogen"
	MetricPhosphorus   Metric = "phosphorus"
	MetricPotassium    Metric = "potassium"
)

var AllMetrics = []Metric{
	MetricTemperature,
	MetricHumidity,
	MetricSoilMoisture,
	MetricNitrogen,
	MetricPhosphorus,
	MetricPotassium,
}

// MetricStatuses is the badge state of every evaluated metric.
type MetricStatuses struct {
	Temperature  Status `json:"temperature"`
	Humidity     Status `json:"humidity"`
	SoilMoisture Status `json:"soilMoisture"`
	Nitrogen     Status `json:"nitrogen"`
	Phosphorus   Status `json:"phosphorus"`
	Potassium    Status `json:"potassium"`
}

func (m MetricStatuses) Get(metric Metric) Status {
	switch metric {
	case MetricTemperature:
		return m.Temperature
	case MetricHumidity:
		return m.Humidity
	case MetricSoilMoisture:
		return m.SoilMoisture
	case MetricNitrogen:
		return m.Nitrogen
	case MetricPhosphorus:
		return m.Phosphorus
	case MetricPotassium:
		return m.Potassium
	}
	return ""
}

type SyncPhase string

const (
	PhaseLoading  SyncPhase = "loading"
	PhaseLive     SyncPhase = "live"
	PhaseDegraded SyncPhase = "degraded"
)

// SyncState is the synchronizer's externally visible state. It is returned
// by value and never shared.
type SyncState struct {
	Phase      SyncPhase         `json:"phase"`
	Snapshot   SensorSnapshot    `json:"snapshot"`
	Error      string            `json:"error,omitempty"`
	Stale      bool              `json:"stale"`
	Thresholds ThresholdSettings `json:"thresholds"`
	Statuses   MetricStatuses    `json:"statuses"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

type AlertKind string

const (
	AlertRaised  AlertKind = "raised"
	AlertCleared AlertKind = "cleared"
)

// AlertEvent is emitted when a metric changes between Normal and Alert.
type AlertEvent struct {
	ID         string    `json:"id"`
	Kind       AlertKind `json:"kind"`
	Metric     Metric    `json:"metric"`
	Value      float64   `json:"value"`
	Expected   string    `json:"expected"`
	Previous   Status    `json:"previous"`
	Current    Status    `json:"current"`
	OccurredAt time.Time `json:"occurredAt"`
}
