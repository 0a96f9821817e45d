package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultControlSettings_Valid(t *testing.T) {
	assert.NoError(t, DefaultControlSettings().Validate())
}

func TestControlSettings_ValidateReportsEveryProblem(t *testing.T) {
	s := DefaultControlSettings()
	s.NPK.Potassium.Min, s.NPK.Potassium.Max = 140, 130
	s.Watering.Interval = 0
	s.Lighting.Blue = 120

	err := s.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "npk.potassium range inverted")
	assert.Contains(t, err.Error(), "watering.interval")
	assert.Contains(t, err.Error(), "lighting.blue")
}

func TestDecodeControlSettings_DocumentRoundTrip(t *testing.T) {
	s := DefaultControlSettings()
	s.Environmental.Temperature = ControlRange{Min: 18, Max: 26, Interval: 10}
	s.Lighting.Green = 75

	assert.Equal(t, s, DecodeControlSettings(s.ToDocument(), DefaultControlSettings()))
}

func TestDecodeControlSettings_PatchKeepsUntouchedValues(t *testing.T) {
	raw := map[string]any{
		"npk":      map[string]any{"nitrogen": map[string]any{"max": int64(160), "interval": "often"}},
		"watering": map[string]any{"amount": 8.0},
		"lighting": "off",
	}

	got := DecodeControlSettings(raw, DefaultControlSettings())

	assert.Equal(t, ControlRange{Min: 100, Max: 160, Interval: 15}, got.NPK.Nitrogen)
	assert.Equal(t, WateringControls{Amount: 8, Interval: 5}, got.Watering)
	assert.Equal(t, DefaultControlSettings().Lighting, got.Lighting)
}
