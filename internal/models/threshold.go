package models

import "fmt"

const (
	TemperatureTolerance = 3.0
	NPKToleranceFraction = 0.15
)

// ThresholdSettings holds the operator targets. Humidity and soil moisture
// are ranges; temperature and NPK are scalar targets with an implicit tolerance.
type ThresholdSettings struct {
	TemperatureTarget float64 `json:"temperatureTarget"`
	HumidityMin       float64 `json:"humidityMin"`
	HumidityMax       float64 `json:"humidityMax"`
	MoistureMin       float64 `json:"moistureMin"`
	MoistureMax       float64 `json:"moistureMax"`
	NpkN              float64 `json:"npkN"`
	NpkP              float64 `json:"npkP"`
	NpkK              float64 `json:"npkK"`
}

func DefaultThresholdSettings() ThresholdSettings {
	return ThresholdSettings{
		TemperatureTarget: 25,
		HumidityMin:       60,
		HumidityMax:       70,
		MoistureMin:       40,
		MoistureMax:       60,
		NpkN:              120,
		NpkP:              85,
		NpkK:              95,
	}
}

// Setting keys. The editor, the HTTP draft API and the Redis local tier all
// address values by these names.
const (
	KeyTemperatureTarget = "temperatureTarget"
	KeyHumidityMin       = "humidityMin"
	KeyHumidityMax       = "humidityMax"
	KeyMoistureMin       = "moistureMin"
	KeyMoistureMax       = "moistureMax"
	KeyNpkN              = "npkN"
	KeyNpkP              = "npkP"
	KeyNpkK              = "npkK"
)

// Field names of the remote thresholds document.
var thresholdDocumentFields = map[string]string{
	KeyTemperatureTarget: "temperature",
	KeyHumidityMin:       "humidityMin",
	KeyHumidityMax:       "humidityMax",
	KeyMoistureMin:       "moistureMin",
	KeyMoistureMax:       "moistureMax",
	KeyNpkN:              "npkRatioN",
	KeyNpkP:              "npkRatioP",
	KeyNpkK:              "npkRatioK",
}

// ThresholdField is an edit group: the set of keys edited together.
type ThresholdField string

const (
	FieldTemperature ThresholdField = "temperature"
	FieldHumidity    ThresholdField = "humidity"
	FieldMoisture    ThresholdField = "moisture"
	FieldNpkN        ThresholdField = "npkN"
	FieldNpkP        ThresholdField = "npkP"
	FieldNpkK        ThresholdField = "npkK"
)

var fieldKeys = map[ThresholdField][]string{
	FieldTemperature: {KeyTemperatureTarget},
	FieldHumidity:    {KeyHumidityMin, KeyHumidityMax},
	FieldMoisture:    {KeyMoistureMin, KeyMoistureMax},
	FieldNpkN:        {KeyNpkN},
	FieldNpkP:        {KeyNpkP},
	FieldNpkK:        {KeyNpkK},
}

// Keys returns the setting keys of the group, or nil for an unknown group.
func (f ThresholdField) Keys() []string {
	keys := fieldKeys[f]
	if keys == nil {
		return nil
	}
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

func (f ThresholdField) IsValid() bool {
	_, ok := fieldKeys[f]
	return ok
}

// Value returns the value stored under key.
func (s ThresholdSettings) Value(key string) (float64, bool) {
	switch key {
	case KeyTemperatureTarget:
		return s.TemperatureTarget, true
	case KeyHumidityMin:
		return s.HumidityMin, true
	case KeyHumidityMax:
		return s.HumidityMax, true
	case KeyMoistureMin:
		return s.MoistureMin, true
	case KeyMoistureMax:
		return s.MoistureMax, true
	case KeyNpkN:
		return s.NpkN, true
	case KeyNpkP:
		return s.NpkP, true
	case KeyNpkK:
		return s.NpkK, true
	}
	return 0, false
}

// WithValue returns a copy of s with key set to v.
func (s ThresholdSettings) WithValue(key string, v float64) (ThresholdSettings, error) {
	switch key {
	case KeyTemperatureTarget:
		s.TemperatureTarget = v
	case KeyHumidityMin:
		s.HumidityMin = v
	case KeyHumidityMax:
		s.HumidityMax = v
	case KeyMoistureMin:
		s.MoistureMin = v
	case KeyMoistureMax:
		s.MoistureMax = v
	case KeyNpkN:
		s.NpkN = v
	case KeyNpkP:
		s.NpkP = v
	case KeyNpkK:
		s.NpkK = v
	default:
		return s, fmt.Errorf("unknown threshold key %q", key)
	}
	return s, nil
}

// Validate reports the first inverted range of any group.
func (s ThresholdSettings) Validate() error {
	for _, field := range []ThresholdField{FieldHumidity, FieldMoisture} {
		if err := s.ValidateField(field); err != nil {
			return err
		}
	}
	return nil
}

// ValidateField reports an inverted range within field only. Scalar groups
// always pass.
func (s ThresholdSettings) ValidateField(field ThresholdField) error {
	var lo, hi float64
	switch field {
	case FieldHumidity:
		lo, hi = s.HumidityMin, s.HumidityMax
	case FieldMoisture:
		lo, hi = s.MoistureMin, s.MoistureMax
	default:
		return nil
	}
	if lo > hi {
		return fmt.Errorf("%s range inverted: min %v > max %v", field, lo, hi)
	}
	return nil
}

// ToDocument renders the full thresholds document. Writes always replace
// the whole document.
func (s ThresholdSettings) ToDocument() map[string]any {
	doc := make(map[string]any, len(thresholdDocumentFields))
	for key, field := range thresholdDocumentFields {
		v, _ := s.Value(key)
		doc[field] = v
	}
	return doc
}

// DecodeThresholdSettings maps a thresholds document onto prev, keeping the
// previous value for every missing or non-numeric field.
func DecodeThresholdSettings(raw map[string]any, prev ThresholdSettings) ThresholdSettings {
	out := prev
	for key, field := range thresholdDocumentFields {
		v, ok := lookupNumber(raw, field, key)
		if !ok {
			continue
		}
		out, _ = out.WithValue(key, v)
	}
	return out
}
