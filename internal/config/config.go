// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Browser BrowserConfig `mapstructure:"browser"`
	Capture CaptureConfig `mapstructure:"capture"`
	Probe   ProbeConfig   `mapstructure:"probe"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// BrowserConfig configures the headless browser engine.
type BrowserConfig struct {
	ExecPath       string  `mapstructure:"exec_path"`
	MaxParallel    int     `mapstructure:"max_parallel"`
	NavTimeoutSec  int     `mapstructure:"nav_timeout_seconds"`
	WindowWidth    int     `mapstructure:"window_width"`
	WindowHeight   int     `mapstructure:"window_height"`
	CapturesPerSec float64 `mapstructure:"captures_per_second"`
}

// CaptureConfig holds capture option defaults and output encoding.
type CaptureConfig struct {
	Mode        int     `mapstructure:"mode"`
	NightMode   int     `mapstructure:"night_mode"`
	Lang        string  `mapstructure:"lang"`
	Radius      int     `mapstructure:"radius"`
	Scale       float64 `mapstructure:"scale"`
	WaitSeconds float64 `mapstructure:"wait_seconds"`
	JPEGQuality int     `mapstructure:"jpeg_quality"`
}

// ProbeConfig governs the pre-flight HTTP check.
type ProbeConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// WorkerConfig governs the async capture pipeline.
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	QueueDepth  int `mapstructure:"queue_depth"`
}

// StorageConfig selects and parameterizes the blob backend.
type StorageConfig struct {
	Backend     string      `mapstructure:"backend"`
	Prefix      string      `mapstructure:"prefix"`
	ContentType string      `mapstructure:"content_type"`
	Local       LocalConfig `mapstructure:"local"`
	GCS         GCSConfig   `mapstructure:"gcs"`
	MinIO       MinIOConfig `mapstructure:"minio"`
}

// LocalConfig holds filesystem blob store settings.
type LocalConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// GCSConfig holds Google Cloud Storage settings.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// MinIOConfig holds MinIO/S3 settings. PublicEndpoint is used to build the
// externally reachable file URL returned to clients.
type MinIOConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	Bucket         string `mapstructure:"bucket"`
	Secure         bool   `mapstructure:"secure"`
	PublicEndpoint string `mapstructure:"public_endpoint"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Storage backend names accepted in storage.backend.
const (
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMinIO  = "minio"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TWEETSHOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvKeys(v)
	bindLegacyEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("browser.max_parallel", 2)
	v.SetDefault("browser.nav_timeout_seconds", 30)
	v.SetDefault("browser.window_width", 1200)
	v.SetDefault("browser.window_height", 1600)
	v.SetDefault("browser.captures_per_second", 1.0)
	v.SetDefault("capture.mode", 3)
	v.SetDefault("capture.night_mode", 0)
	v.SetDefault("capture.lang", "en")
	v.SetDefault("capture.radius", 15)
	v.SetDefault("capture.scale", 1.0)
	v.SetDefault("capture.wait_seconds", 5.0)
	v.SetDefault("capture.jpeg_quality", 95)
	v.SetDefault("probe.enabled", true)
	v.SetDefault("probe.user_agent", "tweetshot/1.0")
	v.SetDefault("probe.timeout_seconds", 10)
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.queue_depth", 64)
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.prefix", "captures")
	v.SetDefault("storage.content_type", "image/jpeg")
	v.SetDefault("storage.minio.endpoint", "localhost:9000")
	v.SetDefault("storage.minio.bucket", "tweetcaptures")
	v.SetDefault("db.table", "captures")
	v.SetDefault("logging.development", false)
}

// bindEnvKeys registers keys that carry no default so AutomaticEnv still
// surfaces them to Unmarshal. Viper only consults the environment for keys it
// already knows about.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"auth.enabled",
		"auth.api_key",
		"storage.local.base_dir",
		"storage.gcs.bucket",
		"db.dsn",
		"db.max_conns",
		"pubsub.project_id",
		"pubsub.topic_name",
	} {
		_ = v.BindEnv(key)
	}
}

// bindLegacyEnv honors the environment names the original deployment used.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("browser.exec_path", "TWEETSHOT_BROWSER_EXEC_PATH", "CHROME_DRIVER")
	_ = v.BindEnv("storage.minio.endpoint", "TWEETSHOT_STORAGE_MINIO_ENDPOINT", "MINIO_ENDPOINT")
	_ = v.BindEnv("storage.minio.access_key", "TWEETSHOT_STORAGE_MINIO_ACCESS_KEY", "MINIO_ACCESS_KEY")
	_ = v.BindEnv("storage.minio.secret_key", "TWEETSHOT_STORAGE_MINIO_SECRET_KEY", "MINIO_SECRET_KEY")
	_ = v.BindEnv("storage.minio.bucket", "TWEETSHOT_STORAGE_MINIO_BUCKET", "MINIO_BUCKET")
	_ = v.BindEnv("storage.minio.secure", "TWEETSHOT_STORAGE_MINIO_SECURE", "MINIO_SECURE")
	_ = v.BindEnv("storage.minio.public_endpoint", "TWEETSHOT_STORAGE_MINIO_PUBLIC_ENDPOINT", "MINIO_PUBLIC_ENDPOINT")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Browser.MaxParallel <= 0 {
		return fmt.Errorf("browser.max_parallel must be > 0")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0")
	}
	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		return fmt.Errorf("capture.jpeg_quality must be between 1 and 100")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendLocal:
		if c.Storage.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir is required for the local backend")
		}
	case BackendGCS:
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("storage.gcs.bucket is required for the gcs backend")
		}
	case BackendMinIO:
		if c.Storage.MinIO.Endpoint == "" || c.Storage.MinIO.Bucket == "" {
			return fmt.Errorf("storage.minio.endpoint and storage.minio.bucket are required for the minio backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	return nil
}

// NavTimeout converts the browser navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSec) * time.Second
}

// RequestTimeout converts the HTTP server timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

// DefaultWait converts the configured settle wait into a duration.
func (c Config) DefaultWait() time.Duration {
	return time.Duration(c.Capture.WaitSeconds * float64(time.Second))
}
