// config/config.go
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StoreMongo    = "mongo"
	StorePostgres = "postgres"

	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Cache     CacheConfig     `yaml:"cache"`
	Secrets   SecretsConfig   `yaml:"secrets"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	BaseURL        string   `yaml:"base_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type StoreConfig struct {
	Type     string         `yaml:"type"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type CacheConfig struct {
	Type  string      `yaml:"type"`
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SecretsConfig struct {
	TTL              time.Duration `yaml:"ttl"`
	BcryptCost       int           `yaml:"bcrypt_cost"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	MaxMessageLength int           `yaml:"max_message_length"`
}

type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min"`
	RevealPerMin   int  `yaml:"reveal_per_min"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           5000,
			BaseURL:        "http://localhost:5000",
			AllowedOrigins: []string{"http://localhost:4200"},
		},
		Store: StoreConfig{
			Type: StoreMemory,
			Mongo: MongoConfig{
				URI:      "mongodb://localhost:27017",
				Database: "confess",
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Cache: CacheConfig{
			Type: CacheMemory,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				Password: "",
				DB:       0,
			},
		},
		Secrets: SecretsConfig{
			TTL:              24 * time.Hour,
			BcryptCost:       10,
			SweepInterval:    time.Hour,
			MaxMessageLength: 10000,
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 100,
			RevealPerMin:   20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds a Config from defaults, then the YAML file at path (if any),
// then a .env file in the working directory, then the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, err
		}
	}

	// Variables already set in the environment win over .env.
	_ = godotenv.Load()

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is OK, use defaults
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

func (c *Config) loadFromEnv() {
	// Server
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("FRONTEND_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}

	// Document store
	if v := os.Getenv("STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		c.Store.Mongo.URI = v
	}
	if v := os.Getenv("MONGO_DATABASE"); v != "" {
		c.Store.Mongo.Database = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Store.Postgres.DSN = v
	}

	// Cache
	if v := os.Getenv("CACHE_TYPE"); v != "" {
		c.Cache.Type = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		port := os.Getenv("REDIS_PORT")
		if port == "" {
			port = "6379"
		}
		c.Cache.Redis.Addr = v + ":" + port
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Cache.Redis.DB = db
		}
	}

	// Secrets
	if v := os.Getenv("SECRET_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			c.Secrets.TTL = ttl
		}
	}
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		if cost, err := strconv.Atoi(v); err == nil {
			c.Secrets.BcryptCost = cost
		}
	}
	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Secrets.SweepInterval = d
		}
	}
	if v := os.Getenv("MAX_MESSAGE_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Secrets.MaxMessageLength = n
		}
	}

	if v := os.Getenv("RATE_LIMIT_ENABLED"); v != "" {
		c.RateLimit.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("RATE_LIMIT_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.RequestsPerMin = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_REVEAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.RevealPerMin = n
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	switch c.Store.Type {
	case StoreMemory:
	case StoreMongo:
		if c.Store.Mongo.URI == "" {
			return fmt.Errorf("mongo uri is required when store type is 'mongo'")
		}
		if c.Store.Mongo.Database == "" {
			return fmt.Errorf("mongo database is required when store type is 'mongo'")
		}
	case StorePostgres:
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("postgres dsn is required when store type is 'postgres'")
		}
	default:
		return fmt.Errorf("invalid store type: %s (must be 'memory', 'mongo' or 'postgres')", c.Store.Type)
	}

	switch c.Cache.Type {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required when cache type is 'redis'")
		}
	default:
		return fmt.Errorf("invalid cache type: %s (must be 'memory' or 'redis')", c.Cache.Type)
	}

	if c.Secrets.TTL <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	if c.Secrets.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive")
	}

	if c.Secrets.BcryptCost < bcrypt.MinCost || c.Secrets.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	if c.Secrets.MaxMessageLength < 0 {
		return fmt.Errorf("max_message_length must not be negative")
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerMin < 1 || c.RateLimit.RevealPerMin < 1) {
		return fmt.Errorf("rate limits must be at least 1 per minute when enabled")
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be 'json' or 'text')", c.Log.Format)
	}

	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SlogLevel parses the configured level name.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level: %s", l.Level)
	}
	return level, nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
