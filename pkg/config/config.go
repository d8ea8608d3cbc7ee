package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
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
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		// Collector aggregates repeated errors and ships them to kafka.log_topic.
		Collector struct {
			Enabled       bool          `yaml:"enabled"`
			FlushInterval time.Duration `yaml:"flush_interval"`
			MaxBatchSize  int           `yaml:"max_batch_size"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Forecast struct {
		Model          string        `yaml:"model"`
		LookBack       int           `yaml:"look_back"`
		HorizonDefault int           `yaml:"horizon_default"`
		HorizonMax     int           `yaml:"horizon_max"`
		TrainRatio     float64       `yaml:"train_ratio"`
		Epochs         int           `yaml:"epochs"`
		HiddenSize     int           `yaml:"hidden_size"`
		LearningRate   float64       `yaml:"learning_rate"`
		Seed           int64         `yaml:"seed"`
		CacheTTL       time.Duration `yaml:"cache_ttl"`
		Workers        int           `yaml:"workers"`
		QueueTimeout   time.Duration `yaml:"queue_timeout"`
		HistoryPeriod  string        `yaml:"history_period"`
	} `yaml:"forecast"`
	Provider struct {
		Type         string            `yaml:"type"`
		YahooBaseURL string            `yaml:"yahoo_base_url"`
		Timeout      time.Duration     `yaml:"timeout"`
		HistoryTTL   time.Duration     `yaml:"history_ttl"`
		Aliases      map[string]string `yaml:"aliases"`
	} `yaml:"provider"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled       bool     `yaml:"enabled"`
		Brokers       []string `yaml:"brokers"`
		ForecastTopic string   `yaml:"forecast_topic"`
		LogTopic      string   `yaml:"log_topic"`
		WarmupTopic   string   `yaml:"warmup_topic"`
		RequiredAcks  int      `yaml:"required_acks"`
		Compression   string   `yaml:"compression"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		// Consumer reads warm-up requests from WarmupTopic.
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		BarsTable        string        `yaml:"bars_table"`
		// Archive copies bars fetched from yahoo into BarsTable.
		Archive bool `yaml:"archive"`
	} `yaml:"clickhouse"`
	RateLimit struct {
		Enabled  bool    `yaml:"enabled"`
		Capacity float64 `yaml:"capacity"`
		Refill   float64 `yaml:"refill_per_sec"`
	} `yaml:"ratelimit"`
	Market struct {
		OverviewSymbols []string `yaml:"overview_symbols"`
	} `yaml:"market"`
	Warmup struct {
		Enabled  bool     `yaml:"enabled"`
		Cron     string   `yaml:"cron"`
		Symbols  []string `yaml:"symbols"`
		Horizons []int    `yaml:"horizons"`
	} `yaml:"warmup"`
}

// DefaultAliases maps demo tickers onto listed symbols.
var DefaultAliases = map[string]string{
	"TECHCORP":   "AAPL",
	"DATASOFT":   "MSFT",
	"CLOUDNET":   "GOOGL",
	"AUTOMAX":    "TSLA",
	"MOTORX":     "F",
	"PETROLIUM":  "XOM",
	"OILGAS":     "CVX",
	"FINBANK":    "JPM",
	"INVESTCO":   "GS",
	"PHARMALIFE": "JNJ",
	"MEDITECH":   "PFE",
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.ApplyDefaults()
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
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("PRICECAST_MODEL"); v != "" {
		c.Forecast.Model = v
	}
	if v := getenv("PRICECAST_PROVIDER"); v != "" {
		c.Provider.Type = v
	}
	if v := getenv("PRICECAST_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("WARMUP_SYMBOLS"); v != "" {
		c.Warmup.Symbols = splitList(v)
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 2 * time.Minute
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Collector.FlushInterval == 0 {
		c.Log.Collector.FlushInterval = 30 * time.Second
	}
	if c.Log.Collector.MaxBatchSize == 0 {
		c.Log.Collector.MaxBatchSize = 100
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	f := &c.Forecast
	if f.Model == "" {
		f.Model = "lstm"
	}
	if f.LookBack == 0 {
		f.LookBack = 60
	}
	if f.HorizonDefault == 0 {
		f.HorizonDefault = 90
	}
	if f.HorizonMax == 0 {
		f.HorizonMax = 365
	}
	if f.TrainRatio == 0 {
		f.TrainRatio = 0.8
	}
	if f.Epochs == 0 {
		f.Epochs = 20
	}
	if f.HiddenSize == 0 {
		f.HiddenSize = 16
	}
	if f.LearningRate == 0 {
		f.LearningRate = 0.01
	}
	if f.Seed == 0 {
		f.Seed = 42
	}
	if f.CacheTTL == 0 {
		f.CacheTTL = time.Hour
	}
	if f.Workers == 0 {
		f.Workers = runtime.NumCPU()
	}
	if f.QueueTimeout == 0 {
		f.QueueTimeout = 30 * time.Second
	}
	if f.HistoryPeriod == "" {
		f.HistoryPeriod = "2y"
	}

	p := &c.Provider
	if p.Type == "" {
		p.Type = "yahoo"
	}
	if p.YahooBaseURL == "" {
		p.YahooBaseURL = "https://query1.finance.yahoo.com"
	}
	if p.Timeout == 0 {
		p.Timeout = 10 * time.Second
	}
	if p.HistoryTTL == 0 {
		p.HistoryTTL = 15 * time.Minute
	}
	if p.Aliases == nil {
		p.Aliases = make(map[string]string, len(DefaultAliases))
		for k, v := range DefaultAliases {
			p.Aliases[k] = v
		}
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "pricecast:"
	}
	if c.Kafka.ForecastTopic == "" {
		c.Kafka.ForecastTopic = "pricecast.forecasts"
	}
	if c.Kafka.LogTopic == "" {
		c.Kafka.LogTopic = "pricecast.logs"
	}
	if c.Kafka.WarmupTopic == "" {
		c.Kafka.WarmupTopic = "pricecast.warmup"
	}
	kc := &c.Kafka.Consumer
	if kc.GroupID == "" {
		kc.GroupID = "pricecast-warmup"
	}
	if kc.Workers == 0 {
		kc.Workers = 2
	}
	if kc.RetryMax == 0 {
		kc.RetryMax = 3
	}
	if kc.BackoffMin == 0 {
		kc.BackoffMin = 100 * time.Millisecond
	}
	if kc.BackoffMax == 0 {
		kc.BackoffMax = 5 * time.Second
	}
	if c.ClickHouse.Port == 0 {
		c.ClickHouse.Port = 9000
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "default"
	}
	if c.ClickHouse.BarsTable == "" {
		c.ClickHouse.BarsTable = "daily_bars"
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 10
	}
	if c.RateLimit.Refill == 0 {
		c.RateLimit.Refill = 0.5
	}
	if c.Warmup.Cron == "" {
		c.Warmup.Cron = "0 */30 * * * *"
	}
	if len(c.Warmup.Horizons) == 0 {
		c.Warmup.Horizons = []int{c.Forecast.HorizonDefault}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Forecast.Model {
	case "lstm", "neural", "trend", "heuristic":
	default:
		return fmt.Errorf("forecast.model must be 'lstm' or 'trend', got '%s'", c.Forecast.Model)
	}
	if c.Forecast.LookBack < 1 {
		return fmt.Errorf("forecast.look_back must be positive")
	}
	if c.Forecast.HorizonMax < 1 {
		return fmt.Errorf("forecast.horizon_max must be positive")
	}
	if c.Forecast.HorizonDefault < 1 || c.Forecast.HorizonDefault > c.Forecast.HorizonMax {
		return fmt.Errorf("forecast.horizon_default must be within [1, %d]", c.Forecast.HorizonMax)
	}
	if c.Forecast.TrainRatio <= 0 || c.Forecast.TrainRatio >= 1 {
		return fmt.Errorf("forecast.train_ratio must be in (0, 1)")
	}
	if c.Forecast.Workers < 1 {
		return fmt.Errorf("forecast.workers must be positive")
	}
	if c.Provider.Type != "yahoo" && c.Provider.Type != "clickhouse" {
		return fmt.Errorf("provider.type must be 'yahoo' or 'clickhouse', got '%s'", c.Provider.Type)
	}
	if c.Provider.Type == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for the clickhouse provider")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Kafka.Consumer.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("kafka.consumer requires kafka.enabled")
	}
	if c.ClickHouse.Archive && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for clickhouse.archive")
	}
	for _, h := range c.Warmup.Horizons {
		if h < 1 || h > c.Forecast.HorizonMax {
			return fmt.Errorf("warmup.horizons entry %d outside [1, %d]", h, c.Forecast.HorizonMax)
		}
	}
	if c.Warmup.Enabled && len(c.Warmup.Symbols) == 0 {
		return fmt.Errorf("warmup.symbols cannot be empty when warmup is enabled")
	}
	return nil
}
