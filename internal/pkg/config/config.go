package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	Mongo      MongoConfig
	Redis      RedisConfig
	Receiving  ReceivingConfig
	OCR        OCRConfig
	Dispatcher DispatcherConfig
}

type MongoConfig struct {
	URI         string `env:"MONGO_URI,           default=mongodb://localhost:27017"`
	Database    string `env:"MONGO_DB,            default=parcel_intake"`
	MaxPoolSize uint64 `env:"MONGO_MAX_POOL_SIZE, default=50"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR,      default=localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,        default=0"`
	IndexTTL time.Duration `env:"REDIS_INDEX_TTL, default=72h"`
}

// ReceivingConfig points at the remote functions that verify recipients and
// record packages.
type ReceivingConfig struct {
	URL     string        `env:"RECEIVING_URL,     default=http://localhost:9000"`
	APIKey  string        `env:"RECEIVING_API_KEY"`
	Timeout time.Duration `env:"RECEIVING_TIMEOUT, default=10s"`
}

// OCRConfig enables label photo reading. Leaving the endpoint empty turns
// the label endpoint off.
type OCRConfig struct {
	Endpoint string `env:"OCR_ENDPOINT"`
	Key      string `env:"OCR_KEY"`
	Language string `env:"OCR_LANGUAGE, default=en"`
}

type DispatcherConfig struct {
	Workers int `env:"DISPATCHER_WORKERS, default=8"`
}

// OCREnabled reports whether label reading is configured.
func (c *Config) OCREnabled() bool {
	return c.OCR.Endpoint != "" && c.OCR.Key != ""
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadWith(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadWith reads configuration from l and checks the settings the service
// cannot start without.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	if cfg.IsProduction() && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}
	return &cfg, nil
}
