package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development"`
	Server      ServerConfig     `yaml:"server"`
	Logging     LoggingConfig    `yaml:"logging"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Engine      EngineConfig     `yaml:"engine"`
	Costs       CostsConfig      `yaml:"costs"`
	Drift       DriftConfig      `yaml:"drift"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	Redis       RedisConfig      `yaml:"redis"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Snapshot    SnapshotConfig   `yaml:"snapshot"`
	Stream      StreamConfig     `yaml:"stream"`
	Breaker     BreakerConfig    `yaml:"breaker"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	RateLimit       struct {
		Enabled           bool    `yaml:"enabled" default:"true"`
		RequestsPerSecond float64 `yaml:"requests_per_second" default:"50"`
		Burst             int     `yaml:"burst" default:"100"`
	} `yaml:"rate_limit"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" default:"info"`
	Format     string `yaml:"format" default:"json"`
	Output     string `yaml:"output" default:"stdout"`
	TimeFormat string `yaml:"time_format"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type EngineConfig struct {
	LearningRate float64 `yaml:"learning_rate" default:"0.05"`
	// DefaultSlippage applies to outcomes that carry no slippage. Zero means the cost
	// model's MARKET slippage is used.
	DefaultSlippage float64            `yaml:"default_slippage"`
	OutcomeHistory  int                `yaml:"outcome_history" default:"10000"`
	LedgerCapacity  int                `yaml:"ledger_capacity" default:"10000"`
	HorizonWeights  map[string]float64 `yaml:"horizon_weights"`
}

type CostsConfig struct {
	MarketSlippageBps float64 `yaml:"market_slippage_bps" default:"15"`
	LimitSlippageBps  float64 `yaml:"limit_slippage_bps" default:"5"`
	StopSlippageBps   float64 `yaml:"stop_slippage_bps" default:"25"`
	CommissionBps     float64 `yaml:"commission_bps" default:"5"`
	SellTaxBps        float64 `yaml:"sell_tax_bps" default:"5"`
	StampTaxBps       float64 `yaml:"stamp_tax_bps" default:"2"`
}

type DriftConfig struct {
	HistoryCapacity    int     `yaml:"history_capacity" default:"100"`
	ModelDriftMedium   float64 `yaml:"model_drift_medium" default:"0.05"`
	ModelDriftHigh     float64 `yaml:"model_drift_high" default:"0.10"`
	ModelDriftCritical float64 `yaml:"model_drift_critical" default:"0.15"`
	AccuracyDecline    float64 `yaml:"accuracy_decline" default:"0.05"`
	MinAccuracy        float64 `yaml:"min_accuracy" default:"0.70"`
	ConfidenceDrift    float64 `yaml:"confidence_drift" default:"0.10"`
}

type KafkaConfig struct {
	Enabled             bool     `yaml:"enabled"`
	Brokers             []string `yaml:"brokers"`
	OutcomeTopic        string   `yaml:"outcome_topic" default:"fusion.trade-outcomes"`
	MetricsTopic        string   `yaml:"metrics_topic" default:"fusion.drift-metrics"`
	RecommendationTopic string   `yaml:"recommendation_topic" default:"fusion.retrain-recommendations"`
	Producer            struct {
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"snappy"`
		MaxAttempts  int           `yaml:"max_attempts" default:"5"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"10ms"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"producer"`
	// Consumer workers bound parallelism across partitions. A partition is always
	// handled by a single worker in offset order.
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"fusion-engine"`
		Workers    int           `yaml:"workers" default:"4"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
	} `yaml:"consumer"`
}

type RedisConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr" default:"localhost:6379"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	KeyPrefix    string        `yaml:"key_prefix" default:"fusion"`
	TTL          time.Duration `yaml:"ttl" default:"24h"`
	PoolSize     int           `yaml:"pool_size" default:"10"`
	MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
	PoolTimeout  time.Duration `yaml:"pool_timeout" default:"4s"`
	DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"fusion"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	Table            string        `yaml:"table" default:"trade_ledger"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert" default:"true"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	MaxOpenConns     int           `yaml:"max_open_conns" default:"10"`
	MaxIdleConns     int           `yaml:"max_idle_conns" default:"5"`
	ConnMaxLifetime  time.Duration `yaml:"conn_max_lifetime" default:"5m"`
}

type SnapshotConfig struct {
	// Interval between engine state snapshots. Zero disables the ticker.
	Interval time.Duration `yaml:"interval" default:"30s"`
}

// StreamConfig controls the websocket event stream served at /api/stream.
type StreamConfig struct {
	Enabled        bool          `yaml:"enabled" default:"true"`
	PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	WriteTimeout   time.Duration `yaml:"write_timeout" default:"5s"`
	SendBuffer     int           `yaml:"send_buffer" default:"32"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// BreakerConfig tunes the circuit breakers around external adapters.
type BreakerConfig struct {
	ConsecutiveFailures uint32        `yaml:"consecutive_failures" default:"3"`
	Interval            time.Duration `yaml:"interval" default:"60s"`
	Timeout             time.Duration `yaml:"timeout" default:"30s"`
}

// Load reads and parses a YAML configuration file on top of the struct defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the struct defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
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
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("APP_ENV"); ok && v != "" {
		c.Environment = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup("HTTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v, ok := lookup("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
	if v, ok := lookup("CLICKHOUSE_HOST"); ok && v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v, ok := lookup("CLICKHOUSE_PASSWORD"); ok {
		c.ClickHouse.Password = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Engine.LearningRate <= 0 || c.Engine.LearningRate > 1 {
		return fmt.Errorf("engine.learning_rate must be in (0, 1], got %v", c.Engine.LearningRate)
	}
	if c.Engine.DefaultSlippage < 0 {
		return fmt.Errorf("engine.default_slippage cannot be negative")
	}
	if c.Engine.OutcomeHistory <= 0 || c.Engine.LedgerCapacity <= 0 {
		return fmt.Errorf("engine history capacities must be positive")
	}
	for h, w := range c.Engine.HorizonWeights {
		if w < 0 {
			return fmt.Errorf("engine.horizon_weights[%s] cannot be negative", h)
		}
	}
	for name, bps := range map[string]float64{
		"market_slippage_bps": c.Costs.MarketSlippageBps,
		"limit_slippage_bps":  c.Costs.LimitSlippageBps,
		"stop_slippage_bps":   c.Costs.StopSlippageBps,
		"commission_bps":      c.Costs.CommissionBps,
		"sell_tax_bps":        c.Costs.SellTaxBps,
		"stamp_tax_bps":       c.Costs.StampTaxBps,
	} {
		if bps < 0 {
			return fmt.Errorf("costs.%s cannot be negative", name)
		}
	}
	d := c.Drift
	if !(d.ModelDriftMedium <= d.ModelDriftHigh && d.ModelDriftHigh <= d.ModelDriftCritical) {
		return fmt.Errorf("drift model thresholds must be ordered medium <= high <= critical")
	}
	if d.HistoryCapacity <= 0 {
		return fmt.Errorf("drift.history_capacity must be positive")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
		}
		if c.Kafka.Consumer.GroupID == "" {
			return fmt.Errorf("kafka.consumer.group_id is required")
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Table == "" {
		return fmt.Errorf("clickhouse.table is required when clickhouse is enabled")
	}
	if c.Snapshot.Interval < 0 {
		return fmt.Errorf("snapshot.interval cannot be negative")
	}
	if c.Stream.Enabled && (c.Stream.PingInterval <= 0 || c.Stream.WriteTimeout <= 0 || c.Stream.SendBuffer <= 0) {
		return fmt.Errorf("stream ping_interval, write_timeout and send_buffer must be positive")
	}
	return nil
}
