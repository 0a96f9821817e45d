package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// ============================================================================
// DEFAULTING
// ============================================================================

func TestDecodeSensorSnapshot_EmptyDocumentUsesBaseline(t *testing.T) {
	snap := DecodeSensorSnapshot(map[string]any{}, nil, fixedNow)

	assert.Equal(t, BaselineSnapshot(fixedNow), snap)
	assert.Nil(t, snap.PhLevel)
}

func TestDecodeSensorSnapshot_MissingNitrogenUsesPrevious(t *testing.T) {
	prev := DecodeSensorSnapshot(map[string]any{"nitrogen": 131.0}, nil, fixedNow)

	next := DecodeSensorSnapshot(map[string]any{"temperature": 24.0}, &prev, fixedNow.Add(time.Minute))

	assert.Equal(t, 131.0, next.Nitrogen)
	assert.Equal(t, 24.0, next.Temperature)
}

func TestDecodeSensorSnapshot_MissingNitrogenWithoutPreviousUsesBaseline(t *testing.T) {
	snap := DecodeSensorSnapshot(map[string]any{"temperature": 24.0}, nil, fixedNow)

	assert.Equal(t, BaselineNitrogen, snap.Nitrogen)
}

func TestDecodeSensorSnapshot_NonNumericFieldsAreTreatedAsMissing(t *testing.T) {
	raw := map[string]any{
		"temperature": "warm",
		"humidity":    math.NaN(),
		"moisture":    nil,
		"N":           math.Inf(1),
	}

	snap := DecodeSensorSnapshot(raw, nil, fixedNow)

	assert.Equal(t, BaselineTemperature, snap.Temperature)
	assert.Equal(t, BaselineHumidity, snap.Humidity)
	assert.Equal(t, BaselineSoilMoisture, snap.SoilMoisture)
	assert.Equal(t, BaselineNitrogen, snap.Nitrogen)
}

// ============================================================================
// ALIASES AND NUMERIC SHAPES
// ============================================================================

func TestDecodeSensorSnapshot_AcceptsStoreAliases(t *testing.T) {
	raw := map[string]any{
		"temperature": int64(27),
		"humidity":    float32(61.5),
		"moisture":    48,
		"N":           "110",
		"P":           json.Number("80"),
		"K":           90.0,
		"lightLevel":  700.0,
		"phLevel":     6.4,
	}

	snap := DecodeSensorSnapshot(raw, nil, fixedNow)

	assert.Equal(t, 27.0, snap.Temperature)
	assert.Equal(t, 61.5, snap.Humidity)
	assert.Equal(t, 48.0, snap.SoilMoisture)
	assert.Equal(t, 110.0, snap.Nitrogen)
	assert.Equal(t, 80.0, snap.Phosphorus)
	assert.Equal(t, 90.0, snap.Potassium)
	assert.Equal(t, 700.0, snap.Infrared)
	require.NotNil(t, snap.PhLevel)
	assert.Equal(t, 6.4, *snap.PhLevel)
}

func TestDecodeSensorSnapshot_CanonicalNamesWinOverAliases(t *testing.T) {
	snap := DecodeSensorSnapshot(map[string]any{"soilMoisture": 30.0, "moisture": 70.0}, nil, fixedNow)

	assert.Equal(t, 30.0, snap.SoilMoisture)
}

func TestDecodeSensorSnapshot_ClampsPercentages(t *testing.T) {
	snap := DecodeSensorSnapshot(map[string]any{"humidity": 140.0, "moisture": -12.0}, nil, fixedNow)

	assert.Equal(t, 100.0, snap.Humidity)
	assert.Equal(t, 0.0, snap.SoilMoisture)
}

func TestDecodeSensorSnapshot_Timestamp(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	fromTime := DecodeSensorSnapshot(map[string]any{"timestamp": ts}, nil, fixedNow)
	fromString := DecodeSensorSnapshot(map[string]any{"timestamp": ts.Format(time.RFC3339)}, nil, fixedNow)
	fromMillis := DecodeSensorSnapshot(map[string]any{"timestamp": float64(ts.UnixMilli())}, nil, fixedNow)
	missing := DecodeSensorSnapshot(map[string]any{}, nil, fixedNow)

	assert.True(t, ts.Equal(fromTime.CapturedAt))
	assert.True(t, ts.Equal(fromString.CapturedAt))
	assert.True(t, ts.Equal(fromMillis.CapturedAt))
	assert.Equal(t, fixedNow, missing.CapturedAt)
}

func TestSensorSnapshot_DocumentRoundTrip(t *testing.T) {
	ph := 6.8
	original := BaselineSnapshot(fixedNow)
	original.PhLevel = &ph

	decoded := DecodeSensorSnapshot(original.ToDocument(), nil, fixedNow.Add(time.Hour))

	assert.Equal(t, original, decoded)
}

func TestSensorSnapshot_Lines(t *testing.T) {
	lines := BaselineSnapshot(fixedNow).Lines()

	assert.Contains(t, lines, "Temperature: 26.8°C")
	assert.Contains(t, lines, "Nitrogen (N): 118 mg/kg")
	assert.Len(t, lines, 7)
}
