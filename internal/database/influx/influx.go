package influx

import (
	"context"
	"fmt"
	"log"
	"time"

	"plant-monitor-service/internal/config"
	"plant-monitor-service/internal/models"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

const (
	DefaultHistoryMinutes = 1440
	DefaultHistoryLimit   = 100
	MaxHistoryLimit       = 5000
)

// TelemetryStore keeps every synchronized snapshot as one point with a
// field per metric.
type TelemetryStore struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	org         string
	bucket      string
	measurement string
}

func NewTelemetryStore(cfg config.InfluxConfig) (*TelemetryStore, error) {
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("influx config incomplete")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if ok, err := client.Ping(ctx); err != nil || !ok {
		client.Close()
		return nil, fmt.Errorf("failed to reach InfluxDB at %s: %v", cfg.URL, err)
	}

	log.Printf("Connected to InfluxDB at %s, bucket %s", cfg.URL, cfg.Bucket)
	return &TelemetryStore{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		org:         cfg.Org,
		bucket:      cfg.Bucket,
		measurement: cfg.Measurement,
	}, nil
}

// WriteSnapshot implements services.TelemetrySink.
func (t *TelemetryStore) WriteSnapshot(ctx context.Context, snapshot models.SensorSnapshot) error {
	fields := map[string]interface{}{}
	for k, v := range snapshot.ToReadings() {
		fields[k] = v
	}
	ts := snapshot.CapturedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	point := influxdb2.NewPoint(t.measurement, map[string]string{"source": "plant"}, fields, ts)
	if err := t.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("error writing to InfluxDB: %w", err)
	}
	return nil
}

// QueryHistory returns snapshots from the last minutes, newest first.
func (t *TelemetryStore) QueryHistory(ctx context.Context, minutes, limit int) ([]models.SensorSnapshot, error) {
	minutes, limit = NormalizeHistoryWindow(minutes, limit)

	res, err := t.client.QueryAPI(t.org).Query(ctx, BuildHistoryFlux(t.bucket, t.measurement, minutes, limit))
	if err != nil {
		return nil, fmt.Errorf("influx query failed: %w", err)
	}
	defer res.Close()

	out := make([]models.SensorSnapshot, 0, limit)
	for res.Next() {
		rec := res.Record()
		out = append(out, models.DecodeSensorSnapshot(rec.Values(), nil, rec.Time().UTC()))
	}
	if res.Err() != nil {
		return out, fmt.Errorf("influx iteration failed: %w", res.Err())
	}
	return out, nil
}

func (t *TelemetryStore) Ping(ctx context.Context) error {
	ok, err := t.client.Ping(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("influx not ready")
	}
	return nil
}

func (t *TelemetryStore) Close() {
	t.client.Close()
}

func NormalizeHistoryWindow(minutes, limit int) (int, int) {
	if minutes <= 0 {
		minutes = DefaultHistoryMinutes
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return minutes, limit
}

// BuildHistoryFlux pivots fields into one row per timestamp.
func BuildHistoryFlux(bucket, measurement string, minutes, limit int) string {
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> sort(columns: ["_time"], desc: true)
  |> limit(n: %d)
`, bucket, minutes, measurement, limit)
}
