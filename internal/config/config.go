// Package config defines the process configuration, loaded from environment
// variables with documented defaults. Construction-time injection replaces
// any process-wide state: the loaded struct is passed explicitly into the
// transport, pipeline and server.
package config

import (
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root configuration for the gateway process.
type Config struct {
	App   App
	Ozon  Ozon
	Redis Redis
	Log   Log
}

// App holds the HTTP gateway settings.
type App struct {
	Host string `env:"APP_HOST" env-default:"0.0.0.0"`
	Port string `env:"APP_PORT" env-default:"8001"`

	// MaxPeriodDays caps the requested reporting period. Longer periods are
	// rejected before the pipeline is invoked.
	MaxPeriodDays int `env:"MAX_PERIOD_DAYS" env-default:"30"`

	ReadTimeout  time.Duration `env:"APP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout time.Duration `env:"APP_WRITE_TIMEOUT" env-default:"300s"`
	IdleTimeout  time.Duration `env:"APP_IDLE_TIMEOUT" env-default:"60s"`
}

// Ozon holds the Seller API transport and pipeline tuning.
type Ozon struct {
	BaseURL        string        `env:"OZON_BASE_URL" env-default:"https://api-seller.ozon.ru"`
	RequestTimeout time.Duration `env:"OZON_REQUEST_TIMEOUT" env-default:"30s"`
	MaxRetries     int           `env:"OZON_MAX_RETRIES" env-default:"3"`
	RetryBaseDelay time.Duration `env:"OZON_RETRY_BASE_DELAY" env-default:"1s"`

	PageLimit    int           `env:"OZON_PAGE_LIMIT" env-default:"1000"`
	ChunkWidth   int           `env:"OZON_CHUNK_WIDTH" env-default:"10"`
	ChunkDelay   time.Duration `env:"OZON_CHUNK_DELAY" env-default:"500ms"`
	PaceInterval time.Duration `env:"OZON_PACE_INTERVAL" env-default:"300ms"`

	// UseMock serves fixture data from an in-process mock Seller API
	// instead of the real upstream. For local development and 1C
	// integration testing only.
	UseMock bool `env:"USE_MOCK" env-default:"false"`
}

// Redis holds the optional detail cache settings.
type Redis struct {
	Enabled  bool   `env:"REDIS_ENABLED" env-default:"false"`
	Addr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
	Password string `env:"REDIS_PASSWORD"`

	CacheTTL    time.Duration `env:"CACHE_TTL" env-default:"5m"`
	CachePrefix string        `env:"CACHE_PREFIX" env-default:"ozon_fbo"`
}

// Log holds the logging settings.
type Log struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Pretty bool   `env:"LOG_PRETTY" env-default:"false"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load for process startup: the service cannot run without a
// valid configuration, so any error is fatal.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}
