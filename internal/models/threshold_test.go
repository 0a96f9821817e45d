package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeThresholdSettings_DocumentFieldNames(t *testing.T) {
	raw := map[string]any{
		"temperature": 27.0,
		"humidityMin": 55.0,
		"humidityMax": 75.0,
		"npkRatioN":   int64(130),
	}

	settings := DecodeThresholdSettings(raw, DefaultThresholdSettings())

	assert.Equal(t, 27.0, settings.TemperatureTarget)
	assert.Equal(t, 55.0, settings.HumidityMin)
	assert.Equal(t, 75.0, settings.HumidityMax)
	assert.Equal(t, 130.0, settings.NpkN)
	assert.Equal(t, 40.0, settings.MoistureMin, "missing fields keep the previous value")
	assert.Equal(t, 85.0, settings.NpkP)
}

func TestThresholdSettings_DocumentRoundTrip(t *testing.T) {
	settings := ThresholdSettings{
		TemperatureTarget: 23.5,
		HumidityMin:       50,
		HumidityMax:       80,
		MoistureMin:       35,
		MoistureMax:       65,
		NpkN:              100,
		NpkP:              70,
		NpkK:              90,
	}

	assert.Equal(t, settings, DecodeThresholdSettings(settings.ToDocument(), DefaultThresholdSettings()))
}

func TestThresholdSettings_Validate(t *testing.T) {
	assert.NoError(t, DefaultThresholdSettings().Validate())

	inverted := DefaultThresholdSettings()
	inverted.MoistureMin = 70
	assert.Error(t, inverted.Validate())

	equal := DefaultThresholdSettings()
	equal.HumidityMin, equal.HumidityMax = 65, 65
	assert.NoError(t, equal.Validate())
}

func TestThresholdSettings_ValidateFieldScopesToGroup(t *testing.T) {
	inverted := DefaultThresholdSettings()
	inverted.MoistureMin, inverted.MoistureMax = 70, 50

	err := inverted.ValidateField(FieldMoisture)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "moisture")
	assert.NoError(t, inverted.ValidateField(FieldHumidity))
	assert.NoError(t, inverted.ValidateField(FieldTemperature))
}

func TestThresholdField_Keys(t *testing.T) {
	assert.Equal(t, []string{KeyHumidityMin, KeyHumidityMax}, FieldHumidity.Keys())
	assert.Equal(t, []string{KeyTemperatureTarget}, FieldTemperature.Keys())
	assert.Nil(t, ThresholdField("light").Keys())
	assert.False(t, ThresholdField("light").IsValid())
}

func TestParseDiseaseOption(t *testing.T) {
	d, ok := ParseDiseaseOption("  powdery   mildew ")
	assert.True(t, ok)
	assert.Equal(t, DiseasePowderyMildew, d)

	d, ok = ParseDiseaseOption("Damping-Off")
	assert.True(t, ok)
	assert.Equal(t, DiseaseDampingOff, d)

	d, ok = ParseDiseaseOption("HEALTHY")
	assert.True(t, ok)
	assert.Equal(t, DiseaseHealthy, d)

	_, ok = ParseDiseaseOption("Late Blight")
	assert.False(t, ok)
	assert.Len(t, DiseaseVocabulary, 11)
}
