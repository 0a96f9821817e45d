package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type PlantMonitorConfig struct {
	Port        string
	LogDir      string
	FirebaseCfg FirebaseConfig
	GeminiCfg   GeminiAPIConfig
	PostgresCfg PostgresConfig
	RedisCfg    RedisConfig
	MinioCfg    MinioConfig
	RabbitMQCfg RabbitMQConfig
	InfluxCfg   InfluxConfig
	MQTTCfg     MQTTConfig
	SMTPCfg     SMTPConfig
	AnalysisCfg AnalysisConfig
	WorkerCfg   WorkerConfig
	AuthCfg     AuthConfig
}

type FirebaseConfig struct {
	CredentialsPath string
	ProjectID       string
	AlertTopic      string
}

type GeminiAPIConfig struct {
	APIKeys   []string
	FlashName string
}

type PostgresConfig struct {
	DBname   string
	Username string
	Password string
	Host     string
	Port     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type MinioConfig struct {
	MinioURL       string
	MinioAccessKey string
	MinioSecretKey string
	MinioLocation  string
	MinioSecure    string
}

type RabbitMQConfig struct {
	Username string
	Password string
	Host     string
	Port     string
}

type InfluxConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
}

type MQTTConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	ClientID string
	Topic    string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	AlertEmail string
}

type AnalysisConfig struct {
	EndpointURL       string
	ClientTimeout     time.Duration
	BreakerFailures   int
	BreakerOpenWindow time.Duration
}

type WorkerConfig struct {
	NumWorkers        int
	QueueSize         int
	SimulatorInterval time.Duration
	ScanInterval      time.Duration
}

// AuthConfig guards the settings write routes. Without a secret they are
// open and the service must sit on a trusted network.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// New loads an optional .env file and builds the service configuration from the environment.
func New() *PlantMonitorConfig {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded, using process environment: %v", err)
	}

	port := getEnvOrDefault("PORT", "8090")
	return &PlantMonitorConfig{
		Port:   port,
		LogDir: getEnvOrDefault("LOG_DIR", "/plantmon/log/plant_monitor_service"),
		FirebaseCfg: FirebaseConfig{
			CredentialsPath: getEnvOrDefault("FIREBASE_CREDENTIALS", ""),
			ProjectID:       getEnvOrDefault("FIREBASE_PROJECT_ID", ""),
			AlertTopic:      getEnvOrDefault("FIREBASE_ALERT_TOPIC", "plant-alerts"),
		},
		GeminiCfg: GeminiAPIConfig{
			APIKeys:   splitKeys(getEnvOrDefault("GEMINI_KEY", "")),
			FlashName: getEnvOrDefault("GEMINI_FLASH_MODEL", "gemini-2.5-flash"),
		},
		PostgresCfg: PostgresConfig{
			DBname:   getEnvOrDefault("POSTGRES_DB", "plant_monitor"),
			Username: getEnvOrDefault("POSTGRES_USER", ""),
			Password: getEnvOrDefault("POSTGRES_PASSWORD", ""),
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
		},
		RedisCfg: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", ""),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		MinioCfg: MinioConfig{
			MinioURL:       getEnvOrDefault("MINIO_ENDPOINT", ""),
			MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", "minio"),
			MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", "minio123"),
			MinioLocation:  getEnvOrDefault("MINIO_LOCATION", "us-east-1"),
			MinioSecure:    getEnvOrDefault("MINIO_SECURE", "false"),
		},
		RabbitMQCfg: RabbitMQConfig{
			Username: getEnvOrDefault("RABBITMQ_USER", "admin"),
			Password: getEnvOrDefault("RABBITMQ_PWD", "admin"),
			Host:     getEnvOrDefault("RABBITMQ_HOST", ""),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
		},
		InfluxCfg: InfluxConfig{
			URL:         getEnvOrDefault("INFLUX_URL", ""),
			Token:       getEnvOrDefault("INFLUX_TOKEN", ""),
			Org:         getEnvOrDefault("INFLUX_ORG", "plantmon"),
			Bucket:      getEnvOrDefault("INFLUX_BUCKET", "plant-telemetry"),
			Measurement: getEnvOrDefault("INFLUX_MEASUREMENT", "plant_readings"),
		},
		MQTTCfg: MQTTConfig{
			Host:     getEnvOrDefault("MQTT_HOST", ""),
			Port:     getEnvAsInt("MQTT_PORT", 1883),
			Username: getEnvOrDefault("MQTT_USER", ""),
			Password: getEnvOrDefault("MQTT_PASSWORD", ""),
			ClientID: getEnvOrDefault("MQTT_CLIENT_ID", "plant-monitor-service"),
			Topic:    getEnvOrDefault("MQTT_TOPIC", "plantmon/readings"),
		},
		SMTPCfg: SMTPConfig{
			Host:       getEnvOrDefault("SMTP_HOST", "smtp.gmail.com"),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnvOrDefault("SMTP_EMAIL", ""),
			Password:   getEnvOrDefault("SMTP_PASSWORD", ""),
			AlertEmail: getEnvOrDefault("ALERT_EMAIL", ""),
		},
		AnalysisCfg: AnalysisConfig{
			EndpointURL:       getEnvOrDefault("ANALYSIS_ENDPOINT_URL", "http://localhost:"+port+"/plant/public/api/v2/analyze-plant"),
			ClientTimeout:     getEnvAsDuration("ANALYSIS_CLIENT_TIMEOUT", 90*time.Second),
			BreakerFailures:   getEnvAsInt("ANALYSIS_BREAKER_FAILURES", 3),
			BreakerOpenWindow: getEnvAsDuration("ANALYSIS_BREAKER_OPEN", 30*time.Second),
		},
		WorkerCfg: WorkerConfig{
			NumWorkers:        getEnvAsInt("WORKER_COUNT", 2),
			QueueSize:         getEnvAsInt("WORKER_QUEUE_SIZE", 16),
			SimulatorInterval: getEnvAsDuration("SIMULATOR_INTERVAL", 5*time.Second),
			ScanInterval:      getEnvAsDuration("SCAN_INTERVAL", 24*time.Hour),
		},
		AuthCfg: AuthConfig{
			JWTSecret: getEnvOrDefault("OPERATOR_JWT_SECRET", ""),
			Issuer:    getEnvOrDefault("OPERATOR_JWT_ISSUER", ""),
		},
	}
}

func (c AuthConfig) IsConfigured() bool {
	return c.JWTSecret != ""
}

func (c FirebaseConfig) IsConfigured() bool {
	return c.CredentialsPath != "" && c.ProjectID != ""
}

func (c GeminiAPIConfig) IsConfigured() bool {
	return len(c.APIKeys) > 0
}

func (c PostgresConfig) IsConfigured() bool {
	return c.Host != "" && c.Username != ""
}

func (c RedisConfig) IsConfigured() bool {
	return c.Host != ""
}

func (c MinioConfig) IsConfigured() bool {
	return c.MinioURL != ""
}

func (c RabbitMQConfig) IsConfigured() bool {
	return c.Host != ""
}

func (c InfluxConfig) IsConfigured() bool {
	return c.URL != "" && c.Token != ""
}

func (c MQTTConfig) IsConfigured() bool {
	return c.Host != ""
}

func (c SMTPConfig) IsConfigured() bool {
	return c.Email != "" && c.Password != "" && c.AlertEmail != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		log.Printf("invalid integer for %s=%q, using default %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("invalid duration for %s=%q, using default %v", key, value, defaultValue)
	}
	return defaultValue
}

// splitKeys accepts a comma separated list so several Gemini keys can share load.
func splitKeys(raw string) []string {
	keys := make([]string, 0)
	for _, key := range strings.Split(raw, ",") {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}
