package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Viewer     ViewerConfig     `yaml:"viewer"`
	Blob       BlobConfig       `yaml:"blob"`
	Push       PushConfig       `yaml:"push"`
	Audit      AuditConfig      `yaml:"audit"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Metrics    MetricsConfig    `yaml:"metrics"`

	// Warnings lists settings replaced by a fallback while loading. The
	// caller logs them once a logger exists.
	Warnings []string `yaml:"-"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// AuditConfig sizes the asynchronous history writer.
type AuditConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port             int     `yaml:"port"`
	ActingUserHeader string  `yaml:"acting_user_header"`
	RateLimitPerSec  float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst   int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds  int     `yaml:"cache_ttl_seconds"`
	MaxUploadMB      int     `yaml:"max_upload_mb"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// LogConfig selects the log level and encoder.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// ViewerConfig describes the bridge to the 3D model viewer.
type ViewerConfig struct {
	Enabled            bool              `yaml:"enabled"`
	BridgeURL          string            `yaml:"bridge_url"`
	Headers            map[string]string `yaml:"headers"`
	HTTPProxy          string            `yaml:"http_proxy"`
	TimeoutSeconds     int               `yaml:"timeout_seconds"`
	PollIntervalMillis int               `yaml:"poll_interval_millis"`
	PollInterval       time.Duration     `yaml:"-"`
	PaintBatchSize     int               `yaml:"paint_batch_size"`
	Palette            PaletteConfig     `yaml:"palette"`
}

// PaletteConfig maps each color group to an RGB triple.
type PaletteConfig struct {
	Neutral          [3]uint8 `yaml:"neutral"`
	Pending          [3]uint8 `yaml:"pending"`
	Confirmed        [3]uint8 `yaml:"confirmed"`
	Missing          [3]uint8 `yaml:"missing"`
	AddedFromVehicle [3]uint8 `yaml:"added_from_vehicle"`
	AddedFromModel   [3]uint8 `yaml:"added_from_model"`
}

// BlobConfig configures photo storage.
type BlobConfig struct {
	MongoURI      string `yaml:"mongo_uri"`
	Database      string `yaml:"database"`
	Bucket        string `yaml:"bucket"`
	PublicBaseURL string `yaml:"public_base_url"`
	NodeID        int64  `yaml:"node_id"`
}

// MetricsConfig holds the prometheus namespace.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

// Load reads the configuration from the given path. A .env file next to the
// process, when present, is loaded first so secrets can override the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

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
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("VAPID_PRIVATE_KEY"); v != "" {
		cfg.Push.PrivateKey = v
	}
	if v := os.Getenv("BLOB_MONGO_URI"); v != "" {
		cfg.Blob.MongoURI = v
	}
	if v := os.Getenv("VIEWER_BRIDGE_URL"); v != "" {
		cfg.Viewer.BridgeURL = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ActingUserHeader == "" {
		cfg.Server.ActingUserHeader = "X-Acting-User"
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 20
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = 20
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Viewer.PollIntervalMillis <= 0 {
		cfg.Viewer.PollIntervalMillis = 1500
	}
	cfg.Viewer.PollInterval = time.Duration(cfg.Viewer.PollIntervalMillis) * time.Millisecond
	if cfg.Viewer.TimeoutSeconds <= 0 {
		cfg.Viewer.TimeoutSeconds = 10
	}
	if cfg.Viewer.PaintBatchSize <= 0 {
		cfg.Viewer.PaintBatchSize = 500
	}
	if cfg.Viewer.Palette == (PaletteConfig{}) {
		cfg.Viewer.Palette = DefaultPalette()
	}

	if cfg.Blob.Database == "" {
		cfg.Blob.Database = "site_delivery"
	}
	if cfg.Blob.Bucket == "" {
		cfg.Blob.Bucket = "arrival_photos"
	}
	if cfg.Blob.NodeID <= 0 {
		cfg.Blob.NodeID = 1
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.Warnings = append(cfg.Warnings, "worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	if cfg.Audit.Workers <= 0 {
		cfg.Audit.Workers = 2
	}
	if cfg.Audit.QueueSize <= 0 {
		cfg.Audit.QueueSize = 256
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "site_delivery"
	}
}

// DefaultPalette is the color scheme used when none is configured.
func DefaultPalette() PaletteConfig {
	return PaletteConfig{
		Neutral:          [3]uint8{200, 200, 200},
		Pending:          [3]uint8{245, 158, 11},
		Confirmed:        [3]uint8{34, 197, 94},
		Missing:          [3]uint8{239, 68, 68},
		AddedFromVehicle: [3]uint8{59, 130, 246},
		AddedFromModel:   [3]uint8{168, 85, 247},
	}
}
