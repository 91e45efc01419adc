package app

import (
	"errors"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the portal and its worker.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"24h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	RecordsAPIURL     string        `envconfig:"RECORDS_API_URL" default:"http://127.0.0.1:8081/api"`
	RecordsAPITimeout time.Duration `envconfig:"RECORDS_API_TIMEOUT" default:"15s"`

	ExpiringWindowDays int           `envconfig:"EXPIRING_WINDOW_DAYS" default:"30"`
	SearchDebounce     time.Duration `envconfig:"SEARCH_DEBOUNCE" default:"300ms"`
	AnalyticsCacheTTL  time.Duration `envconfig:"ANALYTICS_CACHE_TTL" default:"5m"`

	GotenbergURL string `envconfig:"GOTENBERG_URL" default:""`

	WorkerUsername    string `envconfig:"WORKER_USERNAME"`
	WorkerPassword    string `envconfig:"WORKER_PASSWORD"`
	RenewalScanCron   string `envconfig:"RENEWAL_SCAN_CRON" default:"0 7 * * *"`
	WarmupCron        string `envconfig:"ANALYTICS_WARMUP_CRON" default:"*/30 * * * *"`
	WorkerMetricsAddr string `envconfig:"WORKER_METRICS_ADDR" default:""`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.SessionSecret == "" {
		return errors.New("session secret must be provided")
	}
	if c.CSRFSecret == "" {
		return errors.New("csrf secret must be provided")
	}
	u, err := url.Parse(c.RecordsAPIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("RECORDS_API_URL must be an absolute URL")
	}
	if c.ExpiringWindowDays <= 0 {
		return errors.New("EXPIRING_WINDOW_DAYS must be positive")
	}
	if c.SearchDebounce < 0 {
		return errors.New("SEARCH_DEBOUNCE must not be negative")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// WorkerCredentials reports whether the worker can sign in to the API.
func (c *Config) WorkerCredentials() bool {
	return c != nil && c.WorkerUsername != "" && c.WorkerPassword != ""
}
