package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"plant-monitor-service/internal/ai/gemini"
	"plant-monitor-service/internal/client"
	"plant-monitor-service/internal/config"
	"plant-monitor-service/internal/database/docstore"
	"plant-monitor-service/internal/database/influx"
	"plant-monitor-service/internal/database/minio"
	"plant-monitor-service/internal/database/postgres"
	"plant-monitor-service/internal/database/redis"
	"plant-monitor-service/internal/event"
	"plant-monitor-service/internal/google"
	"plant-monitor-service/internal/handlers"
	"plant-monitor-service/internal/models"
	"plant-monitor-service/internal/repository"
	"plant-monitor-service/internal/services"
	"plant-monitor-service/internal/worker"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func setupLogging(logDir string) (*os.File, error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("Recovered from panic: %v\n", r)
		}
	}()

	fmt.Println("Log directory:", logDir)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	logFileName := fmt.Sprintf("log_%s.log", time.Now().Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	return file, nil
}

// healthCheck reports one collaborator for /checkhealth.
type healthCheck struct {
	name string
	ping func(ctx context.Context) error
}

func main() {
	cfg := config.New()

	logFile, err := setupLogging(cfg.LogDir)
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Printf("Failed to set up file logging, using stderr: %v", err)
	} else {
		defer logFile.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var checks []healthCheck

	// Document store
	var store docstore.Store
	var firestoreStore *docstore.FirestoreStore
	simulated := false
	if cfg.FirebaseCfg.IsConfigured() {
		firestoreStore, err = docstore.NewFirestoreStore(ctx, cfg.FirebaseCfg)
		if err != nil {
			log.Printf("error connecting to Firestore, falling back to in-memory store: %v", err)
		}
	} else {
		log.Println("Firebase credentials not configured, using in-memory store with simulated readings")
	}
	if firestoreStore != nil {
		store = firestoreStore
	} else {
		store = docstore.NewMemoryStore()
		simulated = true
	}
	defer store.Close()

	// Redis
	var redisClient *redis.Client
	if cfg.RedisCfg.IsConfigured() {
		redisClient, err = redis.NewRedisClient(cfg.RedisCfg, 3)
		if err != nil {
			log.Printf("error connecting to Redis, continuing without cache: %v", err)
		} else {
			defer redisClient.Close()
			checks = append(checks, healthCheck{name: "redis", ping: redisClient.Ping})
		}
	}

	// Postgres
	var analysisRepo *repository.AnalysisRepository
	if cfg.PostgresCfg.IsConfigured() {
		db, err := postgres.ConnectWithRetry(cfg.PostgresCfg, 5)
		if err != nil {
			log.Printf("error connect to database, analysis history disabled: %s", err)
		} else {
			defer db.Close()
			analysisRepo = repository.NewAnalysisRepository(db)
			checks = append(checks, healthCheck{name: "postgres", ping: analysisRepo.Ping})
		}
	}

	// MinIO
	var photoRepo *repository.PhotoRepository
	if cfg.MinioCfg.IsConfigured() {
		minioClient, err := minio.NewMinioClient(cfg.MinioCfg)
		if err != nil {
			log.Printf("error connecting to MinIO, photo archive disabled: %v", err)
		} else {
			photoRepo = repository.NewPhotoRepository(minioClient)
			checks = append(checks, healthCheck{name: "minio", ping: minioClient.Ping})
		}
	}

	// RabbitMQ
	var publisher *event.PlantEventPublisher
	if cfg.RabbitMQCfg.IsConfigured() {
		rabbit, err := event.ConnectRabbitMQ(cfg.RabbitMQCfg, 5)
		if err != nil {
			log.Printf("error connecting to RabbitMQ, events disabled: %v", err)
		} else {
			defer rabbit.Close()
			publisher = event.NewPlantEventPublisher(rabbit.Channel())
			checks = append(checks, healthCheck{name: "rabbitmq", ping: func(context.Context) error {
				if rabbit.IsClosed() {
					return fmt.Errorf("connection closed")
				}
				return publisher.HealthCheck()
			}})
		}
	}

	// InfluxDB
	var telemetry *influx.TelemetryStore
	if cfg.InfluxCfg.IsConfigured() {
		telemetry, err = influx.NewTelemetryStore(cfg.InfluxCfg)
		if err != nil {
			log.Printf("error connecting to InfluxDB, telemetry history disabled: %v", err)
			telemetry = nil
		} else {
			defer telemetry.Close()
			checks = append(checks, healthCheck{name: "influxdb", ping: telemetry.Ping})
		}
	}

	// Vision model
	var model services.VisionModel = gemini.SimulatedModel{}
	if cfg.GeminiCfg.IsConfigured() {
		var clients []*gemini.GeminiClient
		for i, key := range cfg.GeminiCfg.APIKeys {
			c, err := gemini.NewGenAIClient(ctx, key, cfg.GeminiCfg.FlashName)
			if err != nil {
				log.Printf("error creating Gemini client %d: %v", i, err)
				continue
			}
			clients = append(clients, c)
		}
		if len(clients) > 0 {
			selector := gemini.NewGeminiClientSelector(clients)
			defer selector.Close()
			model = selector
			log.Printf("Gemini client selector ready with %d keys", len(clients))
		}
	}
	if _, ok := model.(gemini.SimulatedModel); ok {
		log.Println("Gemini API key not configured, using simulated vision model")
	}

	// Thresholds and sensor sync
	var localThresholds services.ThresholdLocalStore
	if redisClient != nil {
		localThresholds = repository.NewThresholdCacheRepository(redisClient.GetClient())
	}
	editorService := services.NewThresholdEditorService(store, localThresholds)
	editorService.Load(ctx)

	var localControls services.ControlLocalStore
	if redisClient != nil {
		localControls = repository.NewControlCacheRepository(redisClient.GetClient())
	}
	controlService := services.NewControlSettingsService(store, localControls)
	controlService.Load(ctx)
	if err := controlService.Watch(ctx); err != nil {
		slog.Error("control settings watch failed to start", "error", err)
	}
	defer controlService.Close()

	var notifiers []services.AlertNotifier
	if publisher != nil {
		notifiers = append(notifiers, publisher)
	}
	if firestoreStore != nil {
		push, err := google.NewFirebaseService(ctx, firestoreStore.App(), cfg.FirebaseCfg.AlertTopic)
		if err != nil {
			log.Printf("error initializing Firebase messaging, push alerts disabled: %v", err)
		} else {
			notifiers = append(notifiers, push)
		}
	}
	if cfg.SMTPCfg.IsConfigured() {
		notifiers = append(notifiers, google.NewEmailService(cfg.SMTPCfg))
	}
	var alertState services.AlertStateStore
	if redisClient != nil {
		alertState = repository.NewAlertStateRepository(redisClient.GetClient())
	}
	alertService := services.NewAlertService(alertState, notifiers...)

	syncService := services.NewSensorSyncService(store, editorService).WithStatusObserver(alertService)
	if telemetry != nil {
		syncService.WithTelemetrySink(telemetry)
	}
	if err := syncService.Start(ctx); err != nil {
		slog.Error("sensor sync failed to start", "error", err)
	}
	defer syncService.Close()

	// Disease analysis
	analysisService := services.NewDiseaseAnalysisService(model, syncService, services.BreakerSettings{
		MaxFailures: cfg.AnalysisCfg.BreakerFailures,
		OpenTimeout: cfg.AnalysisCfg.BreakerOpenWindow,
	})
	if analysisRepo != nil {
		analysisService.WithHistory(analysisRepo)
	}
	if redisClient != nil {
		analysisService.WithCache(repository.NewAnalysisCacheRepository(redisClient.GetClient()))
	}
	if photoRepo != nil {
		analysisService.WithArchive(photoRepo)
	}
	if publisher != nil {
		analysisService.WithPublisher(publisher)
	}

	// Background jobs
	pool := worker.NewWorkingPool("plant-jobs", cfg.WorkerCfg.NumWorkers, cfg.WorkerCfg.QueueSize)
	pool.JobTimeout = cfg.AnalysisCfg.ClientTimeout + 30*time.Second
	var workerWg sync.WaitGroup
	workerWg.Add(1)
	go pool.Start(ctx, &workerWg)

	if simulated {
		simulator := services.NewSensorSimulator(store, uint64(time.Now().UnixNano()))
		simScheduler := worker.NewJobScheduler("simulator", cfg.WorkerCfg.SimulatorInterval, pool)
		simScheduler.RunAtStart = true
		simScheduler.AddJob(worker.SimulatorJobName, worker.SimulatorJob(simulator))
		go simScheduler.Run(ctx)
	}

	var scanService *services.PlantScanService
	if photoRepo != nil {
		analysisClient := client.NewAnalysisClient(cfg.AnalysisCfg.EndpointURL, cfg.AnalysisCfg.ClientTimeout, models.SourceScheduled)
		scanService = services.NewPlantScanService(photoRepo, analysisClient, syncService, cfg.WorkerCfg.ScanInterval)
		scanScheduler := worker.NewJobScheduler("plant-scan", cfg.WorkerCfg.ScanInterval, pool)
		scanScheduler.AddJob(worker.ScanJobName, worker.ScanJob(scanService))
		scanService.WithSchedule(scanScheduler)
		go scanScheduler.Run(ctx)
	} else {
		log.Println("MinIO not configured, scheduled plant scan disabled")
	}

	// MQTT device ingest
	if cfg.MQTTCfg.IsConfigured() {
		mqttClient, err := event.NewMQTTClient(cfg.MQTTCfg, 5)
		if err != nil {
			log.Printf("error connecting to MQTT broker, device ingest disabled: %v", err)
		} else {
			bridge := event.NewMQTTBridge(mqttClient, cfg.MQTTCfg.Topic, store)
			go func() {
				if err := bridge.Run(ctx); err != nil {
					log.Printf("MQTT bridge error: %v", err)
				}
			}()
		}
	}

	// HTTP
	app := fiber.New(fiber.Config{
		BodyLimit: 16 * 1024 * 1024,
	})
	app.Use(recoverer.New())
	app.Use(cors.New())

	app.Get("/checkhealth", func(c fiber.Ctx) error {
		status := "ok"
		components := fiber.Map{}
		for _, check := range checks {
			checkCtx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
			err := check.ping(checkCtx)
			cancel()
			if err != nil {
				status = "degraded"
				components[check.name] = err.Error()
				continue
			}
			components[check.name] = "ok"
		}
		syncState := syncService.State()
		components["sensor_sync"] = string(syncState.Phase)
		if syncState.Phase == models.PhaseDegraded {
			status = "degraded"
		}
		components["simulated_readings"] = simulated
		if publisher != nil {
			components["event_publisher"] = publisher.GetStats()
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":     status,
			"components": components,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.NewAnalysisHandler(analysisService, scanService).Register(app)
	handlers.NewSensorHandler(syncService, alertService, historyOrNil(telemetry)).Register(app)
	operatorAuth := handlers.NewOperatorAuth(cfg.AuthCfg)
	handlers.NewThresholdHandler(editorService, operatorAuth).Register(app)
	handlers.NewControlHandler(controlService, operatorAuth).Register(app)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := app.Listen(fmt.Sprintf("0.0.0.0:%s", cfg.Port)); err != nil {
			log.Fatalf("Error starting server: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}
	cancel()
	workerWg.Wait()
	log.Println("Server stopped")
}

// historyOrNil keeps a missing store from becoming a non-nil interface.
func historyOrNil(t *influx.TelemetryStore) handlers.TelemetryHistory {
	if t == nil {
		return nil
	}
	return t
}
