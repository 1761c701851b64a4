package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "PANTRY_"

type Store string

const (
	StoreMySQL  Store = "mysql"
	StoreSQLite Store = "sqlite"
	StoreRemote Store = "remote"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
	LogMode  string `yaml:"log_mode"`

	Store  StoreConfig  `yaml:"store"`
	Redis  RedisConfig  `yaml:"redis"`
	Remote RemoteConfig `yaml:"remote"`

	// MutationConcurrency bounds the per-record operations in flight for one mutation.
	MutationConcurrency int `yaml:"mutation_concurrency"`
}

type StoreConfig struct {
	Driver Store  `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig enables the idempotency guard. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	PoolSize int    `yaml:"pool_size"`
}

type RemoteConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		GRPCAddr: ":50051",
		LogMode:  "prod",
		Store: StoreConfig{
			Driver: StoreMySQL,
			DSN:    "root:root@tcp(localhost:3306)/pantry?parseTime=true",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 100,
		},
		Remote: RemoteConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 10 * time.Second,
		},
		MutationConcurrency: 8,
	}
}

// Load layers defaults, then the YAML file at path (if any), then PANTRY_*
// environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	str("HTTP_ADDR", &c.HTTPAddr)
	str("GRPC_ADDR", &c.GRPCAddr)
	str("LOG_MODE", &c.LogMode)
	str("STORE_DSN", &c.Store.DSN)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REMOTE_BASE_URL", &c.Remote.BaseURL)

	if v, ok := lookup(envPrefix + "STORE_DRIVER"); ok {
		c.Store.Driver = Store(strings.ToLower(strings.TrimSpace(v)))
	}
	if v, ok := lookup(envPrefix + "REDIS_POOL_SIZE"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sREDIS_POOL_SIZE: %w", envPrefix, err)
		}
		c.Redis.PoolSize = n
	}
	if v, ok := lookup(envPrefix + "MUTATION_CONCURRENCY"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sMUTATION_CONCURRENCY: %w", envPrefix, err)
		}
		c.MutationConcurrency = n
	}
	if v, ok := lookup(envPrefix + "REMOTE_TIMEOUT"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sREMOTE_TIMEOUT: %w", envPrefix, err)
		}
		c.Remote.Timeout = d
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case StoreMySQL, StoreSQLite:
		if c.Store.DSN == "" {
			return fmt.Errorf("store dsn is required for driver %s", c.Store.Driver)
		}
	case StoreRemote:
		if c.Remote.BaseURL == "" {
			return fmt.Errorf("remote base_url is required for driver %s", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.MutationConcurrency < 1 {
		return fmt.Errorf("mutation_concurrency must be at least 1, got %d", c.MutationConcurrency)
	}
	switch c.LogMode {
	case "dev", "prod":
	default:
		return fmt.Errorf("unknown log mode %q", c.LogMode)
	}
	return nil
}
