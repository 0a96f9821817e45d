package services

import (
	"fmt"
	"math"

	"plant-monitor-service/internal/models"
)

// Policy decides whether a reading is acceptable.
type Policy interface {
	Allows(value float64) bool
	Describe() string
}

// RangePolicy accepts values in [Min, Max].
type RangePolicy struct {
	Min float64
	Max float64
}

func (p RangePolicy) Allows(value float64) bool {
	if !isFinite(p.Min) || !isFinite(p.Max) {
		return false
	}
	return value >= p.Min && value <= p.Max
}

func (p RangePolicy) Describe() string {
	return fmt.Sprintf("%v-%v", p.Min, p.Max)
}

// AbsoluteTolerancePolicy accepts values within Tolerance of Target.
type AbsoluteTolerancePolicy struct {
	Target    float64
	Tolerance float64
}

func (p AbsoluteTolerancePolicy) Allows(value float64) bool {
	if !isFinite(p.Target) || !isFinite(p.Tolerance) {
		return false
	}
	return math.Abs(value-p.Target) <= math.Max(p.Tolerance, 0)
}

func (p AbsoluteTolerancePolicy) Describe() string {
	return fmt.Sprintf("%v ±%v", p.Target, p.Tolerance)
}

// ProportionalTolerancePolicy accepts values within Fraction*|Target| of
// Target. With Target == 0 the band is empty, so any nonzero deviation alerts.
type ProportionalTolerancePolicy struct {
	Target   float64
	Fraction float64
}

func (p ProportionalTolerancePolicy) Allows(value float64) bool {
	if !isFinite(p.Target) || !isFinite(p.Fraction) {
		return false
	}
	band := math.Max(p.Fraction, 0) * math.Abs(p.Target)
	return math.Abs(value-p.Target) <= band
}

func (p ProportionalTolerancePolicy) Describe() string {
	return fmt.Sprintf("%v ±%v%%", p.Target, p.Fraction*100)
}

// Evaluate maps a reading to a status. It is total: NaN, infinite and
// negative readings are always Alert because IEEE comparisons against NaN
// would otherwise fall through as Normal.
func Evaluate(value float64, policy Policy) models.Status {
	if !isFinite(value) || value < 0 || policy == nil {
		return models.StatusAlert
	}
	if policy.Allows(value) {
		return models.StatusNormal
	}
	return models.StatusAlert
}

// PolicyFor returns the policy configured for metric.
func PolicyFor(metric models.Metric, settings models.ThresholdSettings) Policy {
	switch metric {
	case models.MetricTemperature:
		return AbsoluteTolerancePolicy{Target: settings.TemperatureTarget, Tolerance: models.TemperatureTolerance}
	case models.MetricHumidity:
		return RangePolicy{Min: settings.HumidityMin, Max: settings.HumidityMax}
	case models.MetricSoilMoisture:
		return RangePolicy{Min: settings.MoistureMin, Max: settings.MoistureMax}
	case models.MetricNitrogen:
		return ProportionalTolerancePolicy{Target: settings.NpkN, Fraction: models.NPKToleranceFraction}
	case models.MetricPhosphorus:
		return ProportionalTolerancePolicy{Target: settings.NpkP, Fraction: models.NPKToleranceFraction}
	case models.MetricPotassium:
		return ProportionalTolerancePolicy{Target: settings.NpkK, Fraction: models.NPKToleranceFraction}
	}
	return nil
}

// MetricValue returns the reading of metric in snapshot.
func MetricValue(metric models.Metric, s models.SensorSnapshot) float64 {
	switch metric {
	case models.MetricTemperature:
		return s.Temperature
	case models.MetricHumidity:
		return s.Humidity
	case models.MetricSoilMoisture:
		return s.SoilMoisture
	case models.MetricNitrogen:
		return s.Nitrogen
	case models.MetricPhosphorus:
		return s.Phosphorus
	case models.MetricPotassium:
		return s.Potassium
	}
	return math.NaN()
}

func EvaluateSnapshot(s models.SensorSnapshot, settings models.ThresholdSettings) models.MetricStatuses {
	eval := func(m models.Metric) models.Status {
		return Evaluate(MetricValue(m, s), PolicyFor(m, settings))
	}
	return models.MetricStatuses{
		Temperature:  eval(models.MetricTemperature),
		Humidity:     eval(models.MetricHumidity),
		SoilMoisture: eval(models.MetricSoilMoisture),
		Nitrogen:     eval(models.MetricNitrogen),
		Phosphorus:   eval(models.MetricPhosphorus),
		Potassium:    eval(models.MetricPotassium),
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
