package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Baseline values used when a reading has never been observed for a field.
const (
	BaselineTemperature  = 26.8
	BaselineHumidity     = 65.0
	BaselineSoilMoisture = 52.0
	BaselineNitrogen     = 118.0
	BaselinePhosphorus   = 92.0
	BaselinePotassium    = 87.0
	BaselineInfrared     = 680.0
)

// SensorSnapshot is one complete set of plant readings. Values are never
// mutated after decoding; a new snapshot replaces the previous one.
type SensorSnapshot struct {
	Temperature  float64   `json:"temperature" firestore:"temperature"`
	Humidity     float64   `json:"humidity" firestore:"humidity"`
	SoilMoisture float64   `json:"soilMoisture" firestore:"moisture"`
	Nitrogen     float64   `json:"nitrogen" firestore:"N"`
	Phosphorus   float64   `json:"phosphorus" firestore:"P"`
	Potassium    float64   `json:"potassium" firestore:"K"`
	Infrared     float64   `json:"infrared" firestore:"infrared"`
	PhLevel      *float64  `json:"phLevel,omitempty" firestore:"phLevel,omitempty"`
	CapturedAt   time.Time `json:"capturedAt" firestore:"timestamp"`
}

// BaselineSnapshot returns the snapshot shown before any reading arrives.
func BaselineSnapshot(now time.Time) SensorSnapshot {
	return SensorSnapshot{
		Temperature:  BaselineTemperature,
		Humidity:     BaselineHumidity,
		SoilMoisture: BaselineSoilMoisture,
		Nitrogen:     BaselineNitrogen,
		Phosphorus:   BaselinePhosphorus,
		Potassium:    BaselinePotassium,
		Infrared:     BaselineInfrared,
		CapturedAt:   now,
	}
}

var (
	soilMoistureKeys = []string{"soilMoisture", "moisture"}
	nitrogenKeys     = []string{"nitrogen", "N"}
	phosphorusKeys   = []string{"phosphorus", "P"}
	potassiumKeys    = []string{"potassium", "K"}
	infraredKeys     = []string{"infrared", "lightLevel"}
	capturedAtKeys   = []string{"capturedAt", "timestamp"}
)

// DecodeSensorSnapshot maps a raw document into a snapshot. Fields that are
// missing or not numeric take the value from prev, or the baseline when prev
// is nil. Humidity and soil moisture are clamped to [0,100].
func DecodeSensorSnapshot(raw map[string]any, prev *SensorSnapshot, now time.Time) SensorSnapshot {
	base := BaselineSnapshot(now)
	if prev != nil {
		base = *prev
	}

	snap := SensorSnapshot{
		Temperature:  numberField(raw, base.Temperature, "temperature"),
		Humidity:     clampPercent(numberField(raw, base.Humidity, "humidity")),
		SoilMoisture: clampPercent(numberField(raw, base.SoilMoisture, soilMoistureKeys...)),
		Nitrogen:     numberField(raw, base.Nitrogen, nitrogenKeys...),
		Phosphorus:   numberField(raw, base.Phosphorus, phosphorusKeys...),
		Potassium:    numberField(raw, base.Potassium, potassiumKeys...),
		Infrared:     numberField(raw, base.Infrared, infraredKeys...),
		PhLevel:      base.PhLevel,
		CapturedAt:   now,
	}
	if ph, ok := lookupNumber(raw, "phLevel", "ph"); ok {
		snap.PhLevel = &ph
	}
	if ts, ok := lookupTime(raw, capturedAtKeys...); ok {
		snap.CapturedAt = ts
	}
	return snap
}

// ToDocument renders the snapshot with the field names the device firmware writes.
func (s SensorSnapshot) ToDocument() map[string]any {
	doc := map[string]any{
		"temperature": s.Temperature,
		"humidity":    s.Humidity,
		"moisture":    s.SoilMoisture,
		"N":           s.Nitrogen,
		"P":           s.Phosphorus,
		"K":           s.Potassium,
		"infrared":    s.Infrared,
		"timestamp":   s.CapturedAt,
	}
	if s.PhLevel != nil {
		doc["phLevel"] = *s.PhLevel
	}
	return doc
}

// ToReadings renders the snapshot in the analysis request shape.
func (s SensorSnapshot) ToReadings() map[string]any {
	readings := map[string]any{
		"temperature":  s.Temperature,
		"humidity":     s.Humidity,
		"soilMoisture": s.SoilMoisture,
		"nitrogen":     s.Nitrogen,
		"phosphorus":   s.Phosphorus,
		"potassium":    s.Potassium,
		"infrared":     s.Infrared,
	}
	if s.PhLevel != nil {
		readings["phLevel"] = *s.PhLevel
	}
	return readings
}

// Lines renders the snapshot as human readable lines, used by both the model
// prompt and degraded analysis results.
func (s SensorSnapshot) Lines() []string {
	lines := []string{
		fmt.Sprintf("Temperature: %s°C", formatReading(s.Temperature)),
		fmt.Sprintf("Humidity: %s%%", formatReading(s.Humidity)),
		fmt.Sprintf("Soil Moisture: %s%%", formatReading(s.SoilMoisture)),
		fmt.Sprintf("Nitrogen (N): %s mg/kg", formatReading(s.Nitrogen)),
		fmt.Sprintf("Phosphorus (P): %s mg/kg", formatReading(s.Phosphorus)),
		fmt.Sprintf("Potassium (K): %s mg/kg", formatReading(s.Potassium)),
		fmt.Sprintf("Infrared light: %s nm", formatReading(s.Infrared)),
	}
	if s.PhLevel != nil {
		lines = append(lines, fmt.Sprintf("pH: %s", formatReading(*s.PhLevel)))
	}
	return lines
}

func formatReading(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func numberField(raw map[string]any, fallback float64, keys ...string) float64 {
	if v, ok := lookupNumber(raw, keys...); ok {
		return v
	}
	return fallback
}

func lookupNumber(raw map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		value, present := raw[key]
		if !present {
			continue
		}
		if v, ok := toFloat(value); ok {
			return v, true
		}
	}
	return 0, false
}

// toFloat accepts the numeric shapes produced by Firestore, JSON and MQTT
// payloads. NaN and infinities count as absent.
func toFloat(value any) (float64, bool) {
	var v float64
	switch n := value.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int32:
		v = float64(n)
	case int64:
		v = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func lookupTime(raw map[string]any, keys ...string) (time.Time, bool) {
	for _, key := range keys {
		switch t := raw[key].(type) {
		case time.Time:
			if !t.IsZero() {
				return t, true
			}
		case string:
			if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
				return parsed, true
			}
		case float64, int64, int, json.Number:
			if ms, ok := toFloat(t); ok && ms > 0 {
				return time.UnixMilli(int64(ms)), true
			}
		}
	}
	return time.Time{}, false
}

func clampPercent(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
