package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Backend    BackendConfig
	Server     ServerConfig
	Upload     UploadConfig
	DB         DBConfig
	S3         S3Config
	Log        LogConfig
	CORS       CORSConfig
	Extraction ExtractionConfig
	Seed       SeedConfig
}

// BackendConfig holds the settings the client uses to reach the extraction backend.
type BackendConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	TimeoutSecs int    `mapstructure:"timeout_secs"`
}

// Timeout returns the per-request timeout. Event streams are not bound by it.
func (b *BackendConfig) Timeout() time.Duration {
	if b.TimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(b.TimeoutSecs) * time.Second
}

// ServerConfig holds sandbox HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// UploadConfig holds upload validation settings.
type UploadConfig struct {
	MaxUploadMB int64 `mapstructure:"max_upload_mb"`
}

// MaxBytes returns the upload limit in bytes.
func (u *UploadConfig) MaxBytes() int64 {
	return u.MaxUploadMB * 1024 * 1024
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DBConfig holds PostgreSQL connection settings. When Enabled is false the
// sandbox keeps documents and orders in memory.
type DBConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds AWS S3 settings. When Enabled is false uploads are kept in memory.
type S3Config struct {
	Enabled   bool   `mapstructure:"enabled"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	Service string `mapstructure:"service"`
}

// ExtractionConfig holds sandbox extraction worker settings.
type ExtractionConfig struct {
	FixturePath string        `mapstructure:"fixture_path"`
	Concurrency int           `mapstructure:"concurrency"`
	QueueSize   int           `mapstructure:"queue_size"`
	StageDelay  time.Duration `mapstructure:"stage_delay"`
}

// SeedConfig points at a sales order workbook loaded into an empty order store.
type SeedConfig struct {
	WorkbookPath string `mapstructure:"workbook_path"`
}

// Load reads configuration from environment variables with the SCANORDER_ prefix.
// A .env file in the working directory is loaded first when present; variables
// already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SCANORDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Backend defaults
	v.SetDefault("backend.base_url", "http://localhost:8080")
	v.SetDefault("backend.timeout_secs", 30)

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.environment", "development")

	// Upload defaults
	v.SetDefault("upload.max_upload_mb", 20)

	// DB defaults
	v.SetDefault("db.enabled", false)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "scanorder")
	v.SetDefault("db.password", "scanorder_secret")
	v.SetDefault("db.name", "scanorder_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// S3 defaults
	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "scanorder-uploads")
	v.SetDefault("s3.endpoint", "")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.service", "scanorder")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Extraction defaults
	v.SetDefault("extraction.fixture_path", "")
	v.SetDefault("extraction.concurrency", 2)
	v.SetDefault("extraction.queue_size", 64)
	v.SetDefault("extraction.stage_delay", "300ms")

	// Seed defaults
	v.SetDefault("seed.workbook_path", "")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"backend.base_url":        "SCANORDER_BACKEND_BASE_URL",
		"backend.timeout_secs":    "SCANORDER_BACKEND_TIMEOUT_SECS",
		"server.port":             "SCANORDER_SERVER_PORT",
		"server.read_timeout":     "SCANORDER_SERVER_READ_TIMEOUT",
		"server.write_timeout":    "SCANORDER_SERVER_WRITE_TIMEOUT",
		"server.environment":      "SCANORDER_SERVER_ENVIRONMENT",
		"upload.max_upload_mb":    "SCANORDER_UPLOAD_MAX_UPLOAD_MB",
		"db.enabled":              "SCANORDER_DB_ENABLED",
		"db.host":                 "SCANORDER_DB_HOST",
		"db.port":                 "SCANORDER_DB_PORT",
		"db.user":                 "SCANORDER_DB_USER",
		"db.password":             "SCANORDER_DB_PASSWORD",
		"db.name":                 "SCANORDER_DB_NAME",
		"db.sslmode":              "SCANORDER_DB_SSLMODE",
		"db.max_open":             "SCANORDER_DB_MAX_OPEN",
		"db.max_idle":             "SCANORDER_DB_MAX_IDLE",
		"s3.enabled":              "SCANORDER_S3_ENABLED",
		"s3.region":               "SCANORDER_S3_REGION",
		"s3.bucket":               "SCANORDER_S3_BUCKET",
		"s3.endpoint":             "SCANORDER_S3_ENDPOINT",
		"s3.access_key":           "SCANORDER_S3_ACCESS_KEY",
		"s3.secret_key":           "SCANORDER_S3_SECRET_KEY",
		"log.level":               "SCANORDER_LOG_LEVEL",
		"log.format":              "SCANORDER_LOG_FORMAT",
		"log.service":             "SCANORDER_LOG_SERVICE",
		"cors.allowed_origins":    "SCANORDER_CORS_ALLOWED_ORIGINS",
		"extraction.fixture_path": "SCANORDER_EXTRACTION_FIXTURE_PATH",
		"extraction.concurrency":  "SCANORDER_EXTRACTION_CONCURRENCY",
		"extraction.queue_size":   "SCANORDER_EXTRACTION_QUEUE_SIZE",
		"extraction.stage_delay":  "SCANORDER_EXTRACTION_STAGE_DELAY",
		"seed.workbook_path":      "SCANORDER_SEED_WORKBOOK_PATH",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	cfg.Backend = BackendConfig{
		BaseURL:     strings.TrimRight(v.GetString("backend.base_url"), "/"),
		TimeoutSecs: v.GetInt("backend.timeout_secs"),
	}

	// Hosting platforms set PORT. Use it if SCANORDER_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("SCANORDER_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.Upload = UploadConfig{
		MaxUploadMB: v.GetInt64("upload.max_upload_mb"),
	}
	cfg.DB = DBConfig{
		Enabled:  v.GetBool("db.enabled"),
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.S3 = S3Config{
		Enabled:   v.GetBool("s3.enabled"),
		Region:    v.GetString("s3.region"),
		Bucket:    v.GetString("s3.bucket"),
		Endpoint:  v.GetString("s3.endpoint"),
		AccessKey: v.GetString("s3.access_key"),
		SecretKey: v.GetString("s3.secret_key"),
	}
	cfg.Log = LogConfig{
		Level:   v.GetString("log.level"),
		Format:  v.GetString("log.format"),
		Service: v.GetString("log.service"),
	}

	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: corsOrigins,
	}

	cfg.Extraction = ExtractionConfig{
		FixturePath: v.GetString("extraction.fixture_path"),
		Concurrency: v.GetInt("extraction.concurrency"),
		QueueSize:   v.GetInt("extraction.queue_size"),
		StageDelay:  v.GetDuration("extraction.stage_delay"),
	}

	cfg.Seed = SeedConfig{
		WorkbookPath: v.GetString("seed.workbook_path"),
	}

	if cfg.Backend.BaseURL == "" {
		return nil, fmt.Errorf("backend.base_url must not be empty")
	}
	if cfg.Upload.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("upload.max_upload_mb must be positive, got %d", cfg.Upload.MaxUploadMB)
	}

	return cfg, nil
}
