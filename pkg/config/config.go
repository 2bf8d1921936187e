package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Auth struct {
		Tokens []string `yaml:"tokens"`
	} `yaml:"auth"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	TradingDay struct {
		Cutoff   string `yaml:"cutoff"`   // "HH:MM" in Timezone
		Timezone string `yaml:"timezone"` // IANA name
	} `yaml:"trading_day"`
	Cache struct {
		Redis struct {
			Host         string        `yaml:"host"`
			Port         int           `yaml:"port"`
			Password     string        `yaml:"password"`
			DB           int           `yaml:"db"`
			PoolSize     int           `yaml:"pool_size"`
			PoolTimeout  time.Duration `yaml:"pool_timeout"`
			MinIdleConns int           `yaml:"min_idle_conns"`
			Prefix       string        `yaml:"prefix"`
		} `yaml:"redis"`
		MemoryMaxSize int `yaml:"memory_max_size"`
		TTL           struct {
			Snapshot time.Duration `yaml:"snapshot"`
			Drivers  time.Duration `yaml:"drivers"`
			Regime   time.Duration `yaml:"regime"`
			Events   time.Duration `yaml:"events"`
		} `yaml:"ttl"`
	} `yaml:"cache"`
	ClickHouse struct {
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		Database     string        `yaml:"database"`
		User         string        `yaml:"user"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		AsyncInsert  bool          `yaml:"async_insert"`
		WaitForAsync bool          `yaml:"wait_for_async_insert"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"clickhouse"`
	Generator struct {
		ServiceURL string        `yaml:"service_url"`
		Timeout    time.Duration `yaml:"timeout"`
		Retries    int           `yaml:"retries"`
	} `yaml:"generator"`
	Quotes struct {
		Enabled        bool          `yaml:"enabled"`
		WebSocketURL   string        `yaml:"websocket_url"`
		APIKey         string        `yaml:"api_key"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"quotes"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		MaxAttempts  int      `yaml:"max_attempts"`
	} `yaml:"kafka"`
	Scheduler struct {
		Enabled  bool   `yaml:"enabled"`
		Snapshot string `yaml:"snapshot"`
		Drivers  string `yaml:"drivers"`
		Regime   string `yaml:"regime"`
		Events   string `yaml:"events"`
	} `yaml:"scheduler"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("AUTH_TOKENS"); v != "" {
		c.Auth.Tokens = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Cache.Redis.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("GENERATOR_URL"); v != "" {
		c.Generator.ServiceURL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("QUOTES_API_KEY"); v != "" {
		c.Quotes.APIKey = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.TradingDay.Cutoff == "" {
		c.TradingDay.Cutoff = "01:00"
	}
	if c.TradingDay.Timezone == "" {
		c.TradingDay.Timezone = "Asia/Shanghai"
	}
	if c.Cache.TTL.Snapshot == 0 {
		c.Cache.TTL.Snapshot = 300 * time.Second
	}
	if c.Cache.TTL.Drivers == 0 {
		c.Cache.TTL.Drivers = 1800 * time.Second
	}
	if c.Cache.TTL.Regime == 0 {
		c.Cache.TTL.Regime = 1800 * time.Second
	}
	if c.Cache.TTL.Events == 0 {
		c.Cache.TTL.Events = 1800 * time.Second
	}
	if c.Generator.Timeout == 0 {
		c.Generator.Timeout = 90 * time.Second
	}
	if c.Generator.Retries == 0 {
		c.Generator.Retries = 3
	}
	if c.Scheduler.Snapshot == "" {
		c.Scheduler.Snapshot = "0 1 * * *"
	}
	if c.Scheduler.Drivers == "" {
		c.Scheduler.Drivers = "10 1 * * *"
	}
	if c.Scheduler.Regime == "" {
		c.Scheduler.Regime = "20 1 * * *"
	}
	if c.Scheduler.Events == "" {
		c.Scheduler.Events = "20 1 * * *"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Auth.Tokens) == 0 {
		return fmt.Errorf("auth.tokens cannot be empty")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Generator.ServiceURL == "" {
		return fmt.Errorf("generator.service_url is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
