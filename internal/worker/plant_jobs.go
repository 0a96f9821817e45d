package worker

import (
	"context"
	"errors"
	"log/slog"

	"plant-monitor-service/internal/services"
)

const (
	SimulatorJobName = "sensor-simulator"
	ScanJobName      = "plant-scan"
)

func SimulatorJob(sim *services.SensorSimulator) Job {
	return func(ctx context.Context) error {
		return sim.Tick(ctx)
	}
}

// ScanJob runs one scheduled scan. A bucket without a new capture is not an error.
func ScanJob(scan *services.PlantScanService) Job {
	return func(ctx context.Context) error {
		err := scan.Run(ctx)
		if errors.Is(err, services.ErrNoCapture) {
			slog.Info("scheduled scan skipped", "reason", err)
			return nil
		}
		return err
	}
}
