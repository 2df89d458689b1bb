// Package config defines the global configuration structure for the floodwatch
// service. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Struct Defaults (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup.
package config

import (
	"time"

	"floodwatch/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// EnvProd is the APP_ENV value for production. Threshold scaling is disabled
// (divisor 1) only in this environment.
const EnvProd = "prod"

// DefaultTestScaleDivisor is the threshold divisor applied outside production
// when ALERT_THRESHOLD_SCALE is not set explicitly. Dividing every
// return-period threshold by 25 makes alerts easy to trip against ordinary
// flows during development and staging.
const DefaultTestScaleDivisor = 25

// Config is the top-level configuration struct for the floodwatch service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"floodwatch"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server        ServerConfig
	Database      DatabaseConfig
	Upstream      UpstreamConfig
	Push          PushConfig
	Alert         AlertConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration for the on-demand trigger API.
type ServerConfig struct {
	Port        string       `envconfig:"PORT" default:"8080"`
	AdminAPIKey SecretString `envconfig:"ADMIN_API_KEY" validate:"required"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// UpstreamConfig holds the hydrologic forecast API endpoint and timeouts.
// Forecasts, return-period thresholds, and reach metadata are all served by
// the same upstream host.
type UpstreamConfig struct {
	BaseURL     string        `envconfig:"HYDRO_API_BASE_URL" validate:"required,url"`
	CallTimeout time.Duration `envconfig:"HYDRO_CALL_TIMEOUT" default:"30s"`
}

// PushConfig holds push transport credentials and tuning.
type PushConfig struct {
	ServerKey SecretString  `envconfig:"FCM_SERVER_KEY" validate:"required"`
	Endpoint  string        `envconfig:"FCM_ENDPOINT" default:"https://fcm.googleapis.com"`
	Timeout   time.Duration `envconfig:"FCM_TIMEOUT" default:"10s"`
}

// AlertConfig holds the alert pipeline tuning knobs.
type AlertConfig struct {
	// CooldownWindow is the minimum time between two dispatched alerts for
	// the same (user, reach) pair.
	CooldownWindow time.Duration `envconfig:"ALERT_COOLDOWN_WINDOW" default:"6h"`

	// ThresholdScaleDivisor divides every return-period threshold before
	// comparison. Zero means "resolve from environment": 1 in prod,
	// DefaultTestScaleDivisor otherwise. It is never applied to the forecast
	// side.
	ThresholdScaleDivisor float64 `envconfig:"ALERT_THRESHOLD_SCALE" default:"0" validate:"gte=0"`

	// SweepConcurrency bounds the number of users evaluated in parallel.
	SweepConcurrency int `envconfig:"SWEEP_CONCURRENCY" default:"8" validate:"gte=1"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Floodwatch"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
}

// ScaleDivisor returns the effective threshold scale divisor for the
// configured environment. An explicit ALERT_THRESHOLD_SCALE always wins;
// otherwise production gets 1 and every other environment gets the default
// test divisor.
func (c *Config) ScaleDivisor() float64 {
	if c.Alert.ThresholdScaleDivisor > 0 {
		return c.Alert.ThresholdScaleDivisor
	}
	if c.IsProd() {
		return 1
	}
	return DefaultTestScaleDivisor
}

// IsProd reports whether the service is running in production.
func (c *Config) IsProd() bool {
	return c.Environment == EnvProd
}
