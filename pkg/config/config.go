package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"1s"`
		CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
	} `yaml:"server"`
	Log struct {
		Level     string `yaml:"level" default:"info"`
		Format    string `yaml:"format" default:"console"`
		Output    string `yaml:"output" default:"stdout"`
		Collector struct {
			Enabled   bool          `yaml:"enabled"`
			Topic     string        `yaml:"topic" default:"pricedrop.logs"`
			Interval  time.Duration `yaml:"interval" default:"30s"`
			Threshold int           `yaml:"threshold" default:"100"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Predict struct {
		DefaultThreshold float64       `yaml:"default_threshold" default:"0.5"`
		FreshnessTTL     time.Duration `yaml:"freshness_ttl" default:"24h"`
		LookbackDays     int           `yaml:"lookback_days" default:"365"`
	} `yaml:"predict"`
	Model struct {
		URL            string        `yaml:"url" default:"http://ml_service:8000/predict/down"`
		ForecastURL    string        `yaml:"forecast_url" default:"http://127.0.0.1:5000/predict"`
		Timeout        time.Duration `yaml:"timeout" default:"3s"`
		DefaultVersion string        `yaml:"default_version" default:"v1.0"`
	} `yaml:"model"`
	History struct {
		Backend string `yaml:"backend" default:"clickhouse"`
		Table   string `yaml:"table" default:"pricedrop.price_history"`
		// Seed is a JSON file of price points loaded into the memory backend.
		Seed string `yaml:"seed"`
	} `yaml:"history"`
	Predictions struct {
		Backend string `yaml:"backend" default:"postgres"`
		Cache   struct {
			Enabled bool          `yaml:"enabled"`
			TTL     time.Duration `yaml:"ttl" default:"24h"`
			// LocalTTL bounds the in-process layer in front of Redis.
			LocalTTL  time.Duration `yaml:"local_ttl" default:"1m"`
			LocalSize int           `yaml:"local_size" default:"10000"`
		} `yaml:"cache"`
		Events struct {
			Enabled bool   `yaml:"enabled"`
			Topic   string `yaml:"topic" default:"pricedrop.predictions"`
		} `yaml:"events"`
	} `yaml:"predictions"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"pricedrop"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		Compression      string        `yaml:"compression" default:"lz4"`
		MaxOpenConns     int           `yaml:"max_open_conns" default:"10"`
		MaxIdleConns     int           `yaml:"max_idle_conns" default:"5"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Postgres struct {
		DSN             string        `yaml:"dsn"`
		MaxOpenConns    int           `yaml:"max_open_conns" default:"10"`
		MaxIdleConns    int           `yaml:"max_idle_conns" default:"5"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"5m"`
	} `yaml:"postgres"`
	Redis struct {
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size" default:"10"`
		Prefix   string `yaml:"prefix" default:"pricedrop"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers      []string      `yaml:"brokers"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"50ms"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		Async        bool          `yaml:"async" default:"true"`
	} `yaml:"kafka"`
	RateLimit struct {
		Enabled      bool    `yaml:"enabled" default:"true"`
		Capacity     float64 `yaml:"capacity" default:"20"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"5"`
		// PruneSchedule is a cron spec for dropping idle client buckets.
		PruneSchedule string `yaml:"prune_schedule" default:"@every 1m"`
	} `yaml:"rate_limit"`
}

// Default returns a configuration populated only from struct defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	return &c, nil
}

// Load reads and validates a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides it with environment
// variables. envFiles (default ".env") are read first; missing files are
// skipped and variables already set in the process win. Validation runs once
// the overrides are applied.
func LoadWithEnv(path string, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("ML_SERVICE_URL"); v != "" {
		c.Model.URL = v
	}
	if v := os.Getenv("ML_FORECAST_URL"); v != "" {
		c.Model.ForecastURL = v
	}
	if v := os.Getenv("MODEL_VERSION"); v != "" {
		c.Model.DefaultVersion = v
	}
	if v := os.Getenv("MODEL_TIMEOUT_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MODEL_TIMEOUT_MS: %w", err)
		}
		c.Model.Timeout = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("PRICE_DROP_THRESHOLD"); v != "" {
		th, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("PRICE_DROP_THRESHOLD: %w", err)
		}
		c.Predict.DefaultThreshold = th
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if th := c.Predict.DefaultThreshold; th < 0 || th > 1 {
		return fmt.Errorf("predict.default_threshold must be within [0,1], got %v", th)
	}
	if c.Predict.FreshnessTTL <= 0 {
		return fmt.Errorf("predict.freshness_ttl must be positive")
	}
	if c.Predict.LookbackDays <= 0 {
		return fmt.Errorf("predict.lookback_days must be positive")
	}
	if c.Model.Timeout <= 0 {
		return fmt.Errorf("model.timeout must be positive")
	}
	switch c.History.Backend {
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required for history.backend=clickhouse")
		}
	case "memory":
	default:
		return fmt.Errorf("history.backend must be 'clickhouse' or 'memory', got '%s'", c.History.Backend)
	}
	switch c.Predictions.Backend {
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required for predictions.backend=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("predictions.backend must be 'postgres' or 'memory', got '%s'", c.Predictions.Backend)
	}
	if (c.Predictions.Events.Enabled || c.Log.Collector.Enabled) && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when events or log collector are enabled")
	}
	return nil
}
