package models

import (
	"errors"
	"fmt"
)

// ControlRange is a min/max band the controller holds a value in, checked
// every Interval minutes.
type ControlRange struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Interval float64 `json:"interval"`
}

type NutrientControls struct {
	Nitrogen   ControlRange `json:"nitrogen"`
	Phosphorus ControlRange `json:"phosphorus"`
	Potassium  ControlRange `json:"potassium"`
}

type EnvironmentalControls struct {
	Temperature ControlRange `json:"temperature"`
	Humidity    ControlRange `json:"humidity"`
}

// WateringControls doses Amount ml every Interval hours.
type WateringControls struct {
	Amount   float64 `json:"amount"`
	Interval float64 `json:"interval"`
}

// LightingControls holds RGB channel intensities in percent, adjusted every
// Interval minutes.
type LightingControls struct {
	Red      float64 `json:"red"`
	Green    float64 `json:"green"`
	Blue     float64 `json:"blue"`
	Interval float64 `json:"interval"`
}

// ControlSettings drives the automated dosing, climate, watering and
// lighting actuators. Unlike ThresholdSettings it is saved as one unit.
type ControlSettings struct {
	NPK           NutrientControls      `json:"npk"`
	Environmental EnvironmentalControls `json:"environmental"`
	Watering      WateringControls      `json:"watering"`
	Lighting      LightingControls      `json:"lighting"`
}

func DefaultControlSettings() ControlSettings {
	return ControlSettings{
		NPK: NutrientControls{
			Nitrogen:   ControlRange{Min: 100, Max: 150, Interval: 15},
			Phosphorus: ControlRange{Min: 80, Max: 120, Interval: 15},
			Potassium:  ControlRange{Min: 90, Max: 130, Interval: 15},
		},
		Environmental: EnvironmentalControls{
			Temperature: ControlRange{Min: 20, Max: 30, Interval: 15},
			Humidity:    ControlRange{Min: 60, Max: 70, Interval: 15},
		},
		Watering: WateringControls{Amount: 5, Interval: 5},
		Lighting: LightingControls{Red: 80, Green: 60, Blue: 40, Interval: 15},
	}
}

// Validate reports every out-of-bounds value at once.
func (s ControlSettings) Validate() error {
	var errs []error
	ranges := []struct {
		name string
		r    ControlRange
	}{
		{"npk.nitrogen", s.NPK.Nitrogen},
		{"npk.phosphorus", s.NPK.Phosphorus},
		{"npk.potassium", s.NPK.Potassium},
		{"environmental.temperature", s.Environmental.Temperature},
		{"environmental.humidity", s.Environmental.Humidity},
	}
	for _, rr := range ranges {
		if rr.r.Min > rr.r.Max {
			errs = append(errs, fmt.Errorf("%s range inverted: min %v > max %v", rr.name, rr.r.Min, rr.r.Max))
		}
		if rr.r.Interval <= 0 {
			errs = append(errs, fmt.Errorf("%s interval must be positive", rr.name))
		}
	}

	if s.Watering.Amount < 0 {
		errs = append(errs, errors.New("watering.amount must not be negative"))
	}
	if s.Watering.Interval <= 0 {
		errs = append(errs, errors.New("watering.interval must be positive"))
	}

	for name, v := range map[string]float64{
		"lighting.red":   s.Lighting.Red,
		"lighting.green": s.Lighting.Green,
		"lighting.blue":  s.Lighting.Blue,
	} {
		if v < 0 || v > 100 {
			errs = append(errs, fmt.Errorf("%s must be within 0..100, got %v", name, v))
		}
	}
	if s.Lighting.Interval <= 0 {
		errs = append(errs, errors.New("lighting.interval must be positive"))
	}

	return errors.Join(errs...)
}

// ToDocument renders the nested controls document.
func (s ControlSettings) ToDocument() map[string]any {
	rng := func(r ControlRange) map[string]any {
		return map[string]any{"min": r.Min, "max": r.Max, "interval": r.Interval}
	}
	return map[string]any{
		"npk": map[string]any{
			"nitrogen":   rng(s.NPK.Nitrogen),
			"phosphorus": rng(s.NPK.Phosphorus),
			"potassium":  rng(s.NPK.Potassium),
		},
		"environmental": map[string]any{
			"temperature": rng(s.Environmental.Temperature),
			"humidity":    rng(s.Environmental.Humidity),
		},
		"watering": map[string]any{
			"amount":   s.Watering.Amount,
			"interval": s.Watering.Interval,
		},
		"lighting": map[string]any{
			"red":      s.Lighting.Red,
			"green":    s.Lighting.Green,
			"blue":     s.Lighting.Blue,
			"interval": s.Lighting.Interval,
		},
	}
}

// DecodeControlSettings maps a controls document onto prev. Missing or
// non-numeric leaves keep the previous value, so a partial document is a
// patch.
func DecodeControlSettings(raw map[string]any, prev ControlSettings) ControlSettings {
	out := prev

	npk := section(raw, "npk")
	out.NPK.Nitrogen = decodeRange(section(npk, "nitrogen"), out.NPK.Nitrogen)
	out.NPK.Phosphorus = decodeRange(section(npk, "phosphorus"), out.NPK.Phosphorus)
	out.NPK.Potassium = decodeRange(section(npk, "potassium"), out.NPK.Potassium)

	env := section(raw, "environmental")
	out.Environmental.Temperature = decodeRange(section(env, "temperature"), out.Environmental.Temperature)
	out.Environmental.Humidity = decodeRange(section(env, "humidity"), out.Environmental.Humidity)

	watering := section(raw, "watering")
	assignNumber(watering, "amount", &out.Watering.Amount)
	assignNumber(watering, "interval", &out.Watering.Interval)

	lighting := section(raw, "lighting")
	assignNumber(lighting, "red", &out.Lighting.Red)
	assignNumber(lighting, "green", &out.Lighting.Green)
	assignNumber(lighting, "blue", &out.Lighting.Blue)
	assignNumber(lighting, "interval", &out.Lighting.Interval)

	return out
}

func decodeRange(raw map[string]any, prev ControlRange) ControlRange {
	assignNumber(raw, "min", &prev.Min)
	assignNumber(raw, "max", &prev.Max)
	assignNumber(raw, "interval", &prev.Interval)
	return prev
}

// section returns the nested object under key, or nil.
func section(raw map[string]any, key string) map[string]any {
	if raw == nil {
		return nil
	}
	m, _ := raw[key].(map[string]any)
	return m
}

func assignNumber(raw map[string]any, key string, dst *float64) {
	if v, ok := lookupNumber(raw, key); ok {
		*dst = v
	}
}
