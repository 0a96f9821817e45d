package services

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"plant-monitor-service/internal/database/docstore"
	"plant-monitor-service/internal/models"
)

// SensorSimulator stands in for the IoT device when no real document store
// is configured. It writes readings around the baselines.
type SensorSimulator struct {
	mu    sync.Mutex
	store docstore.Store
	rng   *rand.Rand
	now   func() time.Time
}

func NewSensorSimulator(store docstore.Store, seed uint64) *SensorSimulator {
	return &SensorSimulator{
		store: store,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:   time.Now,
	}
}

// Next returns the next simulated snapshot.
func (s *SensorSimulator) Next() models.SensorSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	return models.SensorSnapshot{
		Temperature:  round1(s.jitter(models.BaselineTemperature, 1.5)),
		Humidity:     round1(math.Min(100, math.Max(0, s.jitter(models.BaselineHumidity, 4)))),
		SoilMoisture: round1(math.Min(100, math.Max(0, s.jitter(models.BaselineSoilMoisture, 4)))),
		Nitrogen:     math.Round(s.jitter(models.BaselineNitrogen, 8)),
		Phosphorus:   math.Round(s.jitter(models.BaselinePhosphorus, 6)),
		Potassium:    math.Round(s.jitter(models.BaselinePotassium, 6)),
		Infrared:     InfraredReading(now, s.rng.Float64()),
		CapturedAt:   now,
	}
}

// Tick writes one simulated reading to the readings document.
func (s *SensorSimulator) Tick(ctx context.Context) error {
	snap := s.Next()
	if err := s.store.Set(ctx, docstore.ReadingsPath, snap.ToDocument()); err != nil {
		return fmt.Errorf("failed to write simulated reading: %w", err)
	}
	return nil
}

// InfraredReading is 680 plus a slow sine of amplitude 20 plus uniform noise
// in [-5,5). u must be in [0,1).
func InfraredReading(now time.Time, u float64) float64 {
	timeVariation := math.Sin(float64(now.UnixMilli())/100000) * 20
	randomVariation := (u - 0.5) * 10
	return math.Floor(models.BaselineInfrared + timeVariation + randomVariation)
}

func (s *SensorSimulator) jitter(base, spread float64) float64 {
	return base + (s.rng.Float64()*2-1)*spread
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
