// Package config defines the global configuration structure for the
// Rainbowcast service. Configuration is loaded once at process initialization
// and is immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved from the OS environment, with an optional .env file for
// local development. Any missing required value or invalid format causes the
// application to fail immediately on startup.
package config

import "time"

// Config is the top-level configuration struct for the Rainbowcast service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"rainbowcast"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// Domain Configurations
	Server     ServerConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	Model      ModelConfig
	Prediction PredictionConfig
	Retention  RetentionConfig

	// Build Metadata (injected via ldflags, not env)
	Build BuildInfo
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`

	// RequestTimeout is the soft deadline applied to each request context.
	RequestTimeout time.Duration `envconfig:"SERVER_REQUEST_TIMEOUT" default:"29s"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
// The database is an optional dependency: prediction history and statistics
// degrade without it, but the prediction path keeps working.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// CacheConfig holds Redis connection parameters and the prediction cache TTL.
// Like the database, the cache is best-effort: an unreachable Redis degrades
// every lookup to a miss and every write to a no-op.
type CacheConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`

	// TTL is fixed per deployment and applied uniformly to every entry.
	TTL time.Duration `envconfig:"PREDICTION_CACHE_TTL" default:"300s"`

	DialTimeout time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"2s"`
	ReadTimeout time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"1s"`
}

// ModelConfig holds trained model artifact location and reload behavior.
type ModelConfig struct {
	Path string `envconfig:"MODEL_PATH" default:"models/rainbow_model.json"`

	// WatchReload enables hot reload of the model artifact on file change.
	WatchReload bool `envconfig:"MODEL_WATCH_RELOAD" default:"true"`
}

// PredictionConfig holds inference and presentation-layer parameters.
type PredictionConfig struct {
	// Threshold is the probability cutoff above which a prediction is
	// classified positive. A bundle may carry its own threshold, which wins.
	Threshold float64 `envconfig:"PREDICTION_THRESHOLD" default:"0.5" validate:"min=0,max=1"`

	// PeakWindowThreshold is the minimum probability for an hour to count
	// toward a peak window in time-series forecasts.
	PeakWindowThreshold float64 `envconfig:"PEAK_WINDOW_THRESHOLD" default:"0.5" validate:"min=0,max=1"`

	// MaxBatchSize and MaxForecastHours are request caps enforced by the
	// HTTP layer, not by the prediction core.
	MaxBatchSize     int `envconfig:"MAX_BATCH_SIZE" default:"100" validate:"min=1"`
	MaxForecastHours int `envconfig:"MAX_FORECAST_HOURS" default:"168" validate:"min=1"`

	// BatchConcurrency bounds concurrent batch item predictions.
	BatchConcurrency int `envconfig:"BATCH_CONCURRENCY" default:"8" validate:"min=1"`
}

// RetentionConfig holds parameters for the prediction history retention job.
type RetentionConfig struct {
	// Days is how long prediction records stay queryable before archival.
	Days int `envconfig:"RETENTION_DAYS" default:"90" validate:"min=1"`

	ArchiveDir string `envconfig:"RETENTION_ARCHIVE_DIR" default:"archives"`
	BatchSize  int    `envconfig:"RETENTION_BATCH_SIZE" default:"500" validate:"min=1"`
}

// BuildInfo carries compile-time build metadata.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}
