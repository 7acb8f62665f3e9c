package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"sanitization-status-backend/internal/engine"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Engine     EngineConfig     `yaml:"engine"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Auth       AuthConfig       `yaml:"auth"`
}

// WorkerPoolConfig holds the configuration for the notification and persistence workers.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queue_size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	RequestIPHeader string        `yaml:"request_ip_header"`
	RateLimitPerSec float64       `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	CacheTTLSeconds int           `yaml:"cache_ttl_seconds"`
	CacheTTL        time.Duration `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// EngineConfig holds the recognized engine options in file-friendly units.
type EngineConfig struct {
	CleaningIntervalMinutes    int     `yaml:"cleaning_interval_minutes"`
	AttentionThresholdMinutes  int     `yaml:"attention_escalation_threshold_minutes"`
	SessionTimeoutSeconds      int     `yaml:"session_timeout_seconds"`
	MinimumCleaningTimeSeconds int     `yaml:"minimum_cleaning_time_seconds"`
	CoverageThreshold          float64 `yaml:"coverage_threshold"`
	AlertTimeoutMinutes        int     `yaml:"alert_timeout_minutes"`
	MissedCleaningAlert        *bool   `yaml:"missed_cleaning_alert"`
	DelayedCleaningAlert       *bool   `yaml:"delayed_cleaning_alert"`
	AlertRetention             int     `yaml:"alert_retention"`
}

// Settings converts the file values to engine settings.
func (e EngineConfig) Settings() engine.Settings {
	return engine.Settings{
		CleaningIntervalAfterSuccess: time.Duration(e.CleaningIntervalMinutes) * time.Minute,
		AttentionEscalationThreshold: time.Duration(e.AttentionThresholdMinutes) * time.Minute,
		SessionTimeout:               time.Duration(e.SessionTimeoutSeconds) * time.Second,
		MinimumCleaningTime:          time.Duration(e.MinimumCleaningTimeSeconds) * time.Second,
		CoverageThreshold:            e.CoverageThreshold,
		AlertTimeout:                 time.Duration(e.AlertTimeoutMinutes) * time.Minute,
		MissedCleaningAlert:          e.MissedCleaningAlert == nil || *e.MissedCleaningAlert,
		DelayedCleaningAlert:         e.DelayedCleaningAlert == nil || *e.DelayedCleaningAlert,
	}
}

// SchedulerConfig controls the overdue scan loop. When interval_seconds is
// unset the scan cadence follows the engine's alert timeout.
type SchedulerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
}

// MQTTConfig controls the detection sample subscriber.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
}

// AuthConfig holds the JWT secret used to verify operator tokens.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// LoadEnv loads a .env file if one exists. A missing file is not an error.
func LoadEnv(path string) {
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		log.Printf("could not load %s: %v", path, err)
	}
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv lets secrets come from the environment instead of the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("VAPID_PUBLIC_KEY"); v != "" {
		cfg.Push.PublicKey = v
	}
	if v := os.Getenv("VAPID_PRIVATE_KEY"); v != "" {
		cfg.Push.PrivateKey = v
	}
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
}

func applyDefaults(cfg *Config) error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 5
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 10
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}
	cfg.Server.CacheTTL = time.Duration(cfg.Server.CacheTTLSeconds) * time.Second

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	switch cfg.Database.Driver {
	case "":
		log.Printf("database.driver is not set; defaulting to postgres")
		cfg.Database.Driver = "postgres"
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", cfg.Database.Driver)
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 100
	}

	defaults := engine.DefaultSettings()
	if cfg.Engine.CleaningIntervalMinutes == 0 {
		cfg.Engine.CleaningIntervalMinutes = int(defaults.CleaningIntervalAfterSuccess / time.Minute)
	}
	if cfg.Engine.AttentionThresholdMinutes == 0 {
		cfg.Engine.AttentionThresholdMinutes = int(defaults.AttentionEscalationThreshold / time.Minute)
	}
	if cfg.Engine.SessionTimeoutSeconds == 0 {
		cfg.Engine.SessionTimeoutSeconds = int(defaults.SessionTimeout / time.Second)
	}
	if cfg.Engine.MinimumCleaningTimeSeconds == 0 {
		cfg.Engine.MinimumCleaningTimeSeconds = int(defaults.MinimumCleaningTime / time.Second)
	}
	if cfg.Engine.CoverageThreshold == 0 {
		cfg.Engine.CoverageThreshold = defaults.CoverageThreshold
	}
	if cfg.Engine.AlertTimeoutMinutes == 0 {
		cfg.Engine.AlertTimeoutMinutes = int(defaults.AlertTimeout / time.Minute)
	}
	if err := cfg.Engine.Settings().Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	if cfg.Scheduler.IntervalSeconds < 0 {
		return fmt.Errorf("scheduler.interval_seconds must not be negative, got %d", cfg.Scheduler.IntervalSeconds)
	}
	cfg.Scheduler.Interval = time.Duration(cfg.Scheduler.IntervalSeconds) * time.Second

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if cfg.MQTT.Topic == "" {
			cfg.MQTT.Topic = "sanitization/samples"
		}
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = "sanitization-backend"
		}
	}
	return nil
}
