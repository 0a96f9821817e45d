package services

import (
	"math"
	"math/rand"
	"testing"

	"plant-monitor-service/internal/models"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// RANGE POLICY
// ============================================================================

func TestEvaluate_RangePolicy(t *testing.T) {
	policy := RangePolicy{Min: 40, Max: 60}

	assert.Equal(t, models.StatusNormal, Evaluate(40, policy), "lower bound is inclusive")
	assert.Equal(t, models.StatusNormal, Evaluate(52, policy))
	assert.Equal(t, models.StatusNormal, Evaluate(60, policy), "upper bound is inclusive")
	assert.Equal(t, models.StatusAlert, Evaluate(39.9, policy))
	assert.Equal(t, models.StatusAlert, Evaluate(60.1, policy))
}

func TestEvaluate_RangePolicyProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		a, b := rng.Float64()*100, rng.Float64()*100
		lo, hi := math.Min(a, b), math.Max(a, b)
		value := rng.Float64() * 120

		want := models.StatusAlert
		if lo <= value && value <= hi {
			want = models.StatusNormal
		}
		assert.Equal(t, want, Evaluate(value, RangePolicy{Min: lo, Max: hi}), "value=%v range=[%v,%v]", value, lo, hi)
	}
}

func TestEvaluate_InvertedRangeAlwaysAlerts(t *testing.T) {
	policy := RangePolicy{Min: 70, Max: 60}

	for _, v := range []float64{55, 60, 65, 70, 75} {
		assert.Equal(t, models.StatusAlert, Evaluate(v, policy))
	}
}

// ============================================================================
// TOLERANCE POLICIES
// ============================================================================

func TestEvaluate_AbsoluteTolerancePolicy(t *testing.T) {
	policy := AbsoluteTolerancePolicy{Target: 25, Tolerance: 3}

	assert.Equal(t, models.StatusNormal, Evaluate(22, policy))
	assert.Equal(t, models.StatusNormal, Evaluate(28, policy))
	assert.Equal(t, models.StatusAlert, Evaluate(28.01, policy))
	assert.Equal(t, models.StatusAlert, Evaluate(21.5, policy))
}

func TestEvaluate_AbsoluteTolerancePolicyProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		target := rng.Float64() * 50
		tolerance := rng.Float64() * 10
		value := rng.Float64() * 70

		want := models.StatusAlert
		if math.Abs(value-target) <= tolerance {
			want = models.StatusNormal
		}
		assert.Equal(t, want, Evaluate(value, AbsoluteTolerancePolicy{Target: target, Tolerance: tolerance}))
	}
}

func TestEvaluate_ProportionalPolicyTargetIsAlwaysNormal(t *testing.T) {
	for _, target := range []float64{0.5, 1, 85, 95, 120, 1e6} {
		assert.Equal(t, models.StatusNormal, Evaluate(target, ProportionalTolerancePolicy{Target: target, Fraction: 0.15}))
	}
}

func TestEvaluate_ProportionalPolicyBand(t *testing.T) {
	policy := ProportionalTolerancePolicy{Target: 120, Fraction: 0.15}

	assert.Equal(t, models.StatusNormal, Evaluate(103, policy))
	assert.Equal(t, models.StatusNormal, Evaluate(137, policy))
	assert.Equal(t, models.StatusAlert, Evaluate(101, policy))
	assert.Equal(t, models.StatusAlert, Evaluate(139, policy))
}

func TestEvaluate_ProportionalPolicyZeroTarget(t *testing.T) {
	policy := ProportionalTolerancePolicy{Target: 0, Fraction: 0.15}

	assert.Equal(t, models.StatusNormal, Evaluate(0, policy))
	assert.Equal(t, models.StatusAlert, Evaluate(0.0001, policy), "any nonzero deviation alerts when target is zero")
}

// ============================================================================
// NON-FINITE AND NEGATIVE INPUTS
// ============================================================================

func TestEvaluate_NaNAndNegativeInputsAlert(t *testing.T) {
	policies := []Policy{
		RangePolicy{Min: 0, Max: 100},
		AbsoluteTolerancePolicy{Target: 25, Tolerance: 3},
		ProportionalTolerancePolicy{Target: 120, Fraction: 0.15},
	}
	for _, p := range policies {
		assert.Equal(t, models.StatusAlert, Evaluate(math.NaN(), p), p.Describe())
		assert.Equal(t, models.StatusAlert, Evaluate(math.Inf(1), p), p.Describe())
		assert.Equal(t, models.StatusAlert, Evaluate(-1, p), p.Describe())
	}
}

func TestEvaluate_NaNPolicyParametersAlert(t *testing.T) {
	assert.Equal(t, models.StatusAlert, Evaluate(50, RangePolicy{Min: math.NaN(), Max: 100}))
	assert.Equal(t, models.StatusAlert, Evaluate(50, RangePolicy{Min: 0, Max: math.NaN()}))
	assert.Equal(t, models.StatusAlert, Evaluate(25, AbsoluteTolerancePolicy{Target: math.NaN(), Tolerance: 3}))
	assert.Equal(t, models.StatusAlert, Evaluate(25, AbsoluteTolerancePolicy{Target: 25, Tolerance: math.Inf(1)}))
	assert.Equal(t, models.StatusAlert, Evaluate(120, ProportionalTolerancePolicy{Target: 120, Fraction: math.NaN()}))
	assert.Equal(t, models.StatusAlert, Evaluate(120, nil))
}

// ============================================================================
// SNAPSHOT EVALUATION
// ============================================================================

func TestEvaluateSnapshot_Defaults(t *testing.T) {
	snap := models.SensorSnapshot{
		Temperature:  26.8,
		Humidity:     65,
		SoilMoisture: 52,
		Nitrogen:     118,
		Phosphorus:   92,
		Potassium:    87,
	}

	statuses := EvaluateSnapshot(snap, models.DefaultThresholdSettings())

	assert.Equal(t, models.MetricStatuses{
		Temperature:  models.StatusNormal,
		Humidity:     models.StatusNormal,
		SoilMoisture: models.StatusNormal,
		Nitrogen:     models.StatusNormal,
		Phosphorus:   models.StatusNormal,
		Potassium:    models.StatusNormal,
	}, statuses)
}

func TestEvaluateSnapshot_FlagsOutOfBandMetrics(t *testing.T) {
	snap := models.SensorSnapshot{
		Temperature:  31,
		Humidity:     45,
		SoilMoisture: 52,
		Nitrogen:     60,
		Phosphorus:   85,
		Potassium:    95,
	}

	statuses := EvaluateSnapshot(snap, models.DefaultThresholdSettings())

	assert.Equal(t, models.StatusAlert, statuses.Temperature)
	assert.Equal(t, models.StatusAlert, statuses.Humidity)
	assert.Equal(t, models.StatusNormal, statuses.SoilMoisture)
	assert.Equal(t, models.StatusAlert, statuses.Nitrogen)
	assert.Equal(t, models.StatusNormal, statuses.Phosphorus)
	assert.Equal(t, models.StatusNormal, statuses.Potassium)
}
