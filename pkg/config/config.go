package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"MarketPulse/pkg/util"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" env:"APP_ENV"`
	Server      struct {
		Host            string        `yaml:"host" env:"HOST"`
		Port            int           `yaml:"port" env:"PORT"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		AllowOrigins    []string      `yaml:"allow_origins" env:"ALLOW_ORIGINS" envSeparator:","`
		SlowThreshold   time.Duration `yaml:"slow_threshold"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
		Output string `yaml:"output" env:"LOG_OUTPUT"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Ingest struct {
		Key       string  `yaml:"key" env:"INGEST_KEY"`
		RateLimit float64 `yaml:"rate_limit"`
		Burst     int     `yaml:"burst"`
		MaxBatch  int     `yaml:"max_batch"`
	} `yaml:"ingest"`
	Insights struct {
		RingCapacity      int           `yaml:"ring_capacity"`
		IVHistoryCap      int           `yaml:"iv_history_cap"`
		BreadthUniverse   []string      `yaml:"breadth_universe" env:"BREADTH_LIST" envSeparator:","`
		IVUniverse        []string      `yaml:"iv_universe" env:"IV_LIST" envSeparator:","`
		SentimentUniverse []string      `yaml:"sentiment_universe" env:"SENTIMENT_LIST" envSeparator:","`
		PatternUniverse   []string      `yaml:"pattern_universe" env:"PATTERN_LIST" envSeparator:","`
		VolaUnderlyings   []string      `yaml:"vola_underlyings"`
		SummaryTimeframes []string      `yaml:"summary_timeframes"`
		PatternTimeframes []string      `yaml:"pattern_timeframes"`
		UOATopN           int           `yaml:"uoa_top_n"`
		RecomputeInterval time.Duration `yaml:"recompute_interval" env:"RECOMPUTE_INTERVAL"`
		PushOnIngest      bool          `yaml:"push_on_ingest" env:"PUSH_ON_INGEST"`
		PushDebounce      time.Duration `yaml:"push_debounce"`
		ComputeTimeout    time.Duration `yaml:"compute_timeout"`
		Trend             struct {
			Clamp        float64 `yaml:"clamp"`
			Threshold    float64 `yaml:"threshold"`
			FullStrength float64 `yaml:"full_strength"`
		} `yaml:"trend"`
		Patterns struct {
			BreakoutLookback int     `yaml:"breakout_lookback"`
			SMAWindow        int     `yaml:"sma_window"`
			PullbackReturn   float64 `yaml:"pullback_return"`
			IntradayRun      int     `yaml:"intraday_run"`
			MinBars          int     `yaml:"min_bars"`
			MaxSignals       int     `yaml:"max_signals"`
		} `yaml:"patterns"`
		MirrorTTL time.Duration `yaml:"mirror_ttl"`
	} `yaml:"insights"`
	WebSocket struct {
		SendBuffer int `yaml:"send_buffer"`
	} `yaml:"websocket"`
	Kafka struct {
		Enabled       bool     `yaml:"enabled" env:"KAFKA_ENABLED"`
		Brokers       []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
		EventsTopic   string   `yaml:"events_topic" env:"KAFKA_EVENTS_TOPIC"`
		InsightsTopic string   `yaml:"insights_topic" env:"KAFKA_INSIGHTS_TOPIC"`
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
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED"`
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
		Prefix   string `yaml:"prefix"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled" env:"CLICKHOUSE_ENABLED"`
		Host         string        `yaml:"host" env:"CLICKHOUSE_HOST"`
		Port         int           `yaml:"port"`
		Database     string        `yaml:"database"`
		User         string        `yaml:"user" env:"CLICKHOUSE_USER"`
		Password     string        `yaml:"password" env:"CLICKHOUSE_PASSWORD"`
		Table        string        `yaml:"table"`
		UseHTTP      bool          `yaml:"use_http"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		MaxExecution time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Tradier struct {
		BaseURL string        `yaml:"base_url" env:"TRADIER_BASE"`
		Token   string        `yaml:"token" env:"TRADIER_TOKEN"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"tradier"`
	Finnhub struct {
		Enabled        bool          `yaml:"enabled" env:"FINNHUB_ENABLED"`
		APIKey         string        `yaml:"api_key" env:"FINNHUB_API_KEY"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbols        []string      `yaml:"symbols" env:"SYMBOLS" envSeparator:","`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		Throttle       time.Duration `yaml:"throttle"`
	} `yaml:"finnhub"`
	Bars struct {
		Source   string        `yaml:"source" env:"BARS_SOURCE"` // tradier, clickhouse or none
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"bars"`
}

// Load reads and parses a YAML configuration file, applying defaults for
// anything left unset.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	c.resolveBarSource()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env (when present), the YAML file, then environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	c.applyDefaults()
	c.resolveBarSource()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Default returns a config populated with the built-in defaults.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	setInt(&c.Server.Port, 8080)
	setDur(&c.Server.ReadTimeout, 10*time.Second)
	setDur(&c.Server.WriteTimeout, 10*time.Second)
	setDur(&c.Server.ShutdownTimeout, 10*time.Second)
	setDur(&c.Server.SlowThreshold, 500*time.Millisecond)
	setStr(&c.Log.Level, "info")
	setStr(&c.Log.Format, "json")
	setStr(&c.Log.Output, "stdout")
	setStr(&c.Metrics.Path, "/metrics")

	setFloat(&c.Ingest.RateLimit, 200)
	setInt(&c.Ingest.Burst, 400)
	setInt(&c.Ingest.MaxBatch, 1000)

	in := &c.Insights
	setInt(&in.RingCapacity, 2000)
	setInt(&in.IVHistoryCap, 252)
	setSymbols(&in.BreadthUniverse, "SPY", "QQQ", "IWM", "DIA", "AAPL", "MSFT", "NVDA", "AMZN", "META", "GOOGL", "TSLA", "AMD", "NFLX", "AVGO", "JPM", "XOM")
	setSymbols(&in.IVUniverse, "SPY", "QQQ", "IWM", "AAPL", "NVDA", "TSLA")
	setSymbols(&in.SentimentUniverse, "SPY", "QQQ", "IWM", "AAPL", "MSFT", "NVDA", "TSLA")
	setSymbols(&in.PatternUniverse, "SPY", "QQQ", "IWM", "AAPL", "MSFT", "NVDA", "AMZN", "META", "TSLA", "AMD")
	setSymbols(&in.VolaUnderlyings, "SPY", "QQQ", "IWM")
	c.Finnhub.Symbols = util.NormalizeSymbols(c.Finnhub.Symbols)
	setList(&in.SummaryTimeframes, "daily")
	setList(&in.PatternTimeframes, "5m", "daily")
	setInt(&in.UOATopN, 6)
	setDur(&in.RecomputeInterval, 15*time.Second)
	setDur(&in.PushDebounce, time.Second)
	setDur(&in.ComputeTimeout, 10*time.Second)
	setDur(&in.MirrorTTL, 24*time.Hour)
	setFloat(&in.Trend.Clamp, 0.02)
	setFloat(&in.Trend.Threshold, 0.0005)
	setFloat(&in.Trend.FullStrength, 0.01)
	setInt(&in.Patterns.BreakoutLookback, 20)
	setInt(&in.Patterns.SMAWindow, 20)
	setFloat(&in.Patterns.PullbackReturn, -0.01)
	setInt(&in.Patterns.IntradayRun, 6)
	setInt(&in.Patterns.MinBars, 22)
	setInt(&in.Patterns.MaxSignals, 12)

	setInt(&c.WebSocket.SendBuffer, 64)

	setStr(&c.Kafka.EventsTopic, "market-events")
	setStr(&c.Kafka.InsightsTopic, "insights")
	setStr(&c.Kafka.Consumer.GroupID, "marketpulse")
	setInt(&c.Kafka.Consumer.Workers, 4)
	setInt(&c.Kafka.Consumer.BufferSize, 256)
	setInt(&c.Kafka.Consumer.RetryMax, 3)
	setDur(&c.Kafka.Consumer.BackoffMin, 100*time.Millisecond)
	setDur(&c.Kafka.Consumer.BackoffMax, 2*time.Second)
	setInt(&c.Kafka.Producer.MaxAttempts, 5)
	setDur(&c.Kafka.Producer.Linger, 50*time.Millisecond)

	setStr(&c.Redis.Addr, "localhost:6379")
	setStr(&c.Redis.Prefix, "marketpulse")
	setInt(&c.Redis.PoolSize, 10)

	setStr(&c.ClickHouse.Host, "localhost")
	setInt(&c.ClickHouse.Port, 9000)
	setStr(&c.ClickHouse.Database, "default")
	setStr(&c.ClickHouse.User, "default")
	setStr(&c.ClickHouse.Table, "candles")

	setStr(&c.Tradier.BaseURL, "https://api.tradier.com/v1")
	setDur(&c.Tradier.Timeout, 10*time.Second)

	setStr(&c.Finnhub.WebSocketURL, "wss://ws.finnhub.io")
	setDur(&c.Finnhub.ReconnectDelay, 5*time.Second)
	setDur(&c.Finnhub.PingInterval, 30*time.Second)
	setDur(&c.Finnhub.Throttle, 250*time.Millisecond)

	setDur(&c.Bars.CacheTTL, time.Minute)
}

// resolveBarSource picks tradier when a token is configured and no source was named.
func (c *Config) resolveBarSource() {
	if c.Bars.Source != "" {
		return
	}
	if c.Tradier.Token != "" {
		c.Bars.Source = "tradier"
	} else {
		c.Bars.Source = "none"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level: %s", c.Log.Level)
	}
	if len(c.Insights.BreadthUniverse) == 0 {
		return fmt.Errorf("insights.breadth_universe cannot be empty")
	}
	if c.Insights.RingCapacity <= 0 || c.Insights.IVHistoryCap <= 0 {
		return fmt.Errorf("insights ring_capacity and iv_history_cap must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Finnhub.Enabled {
		if c.Finnhub.APIKey == "" {
			return fmt.Errorf("finnhub.api_key is required when finnhub is enabled")
		}
		if len(c.Finnhub.Symbols) == 0 {
			return fmt.Errorf("finnhub.symbols cannot be empty when finnhub is enabled")
		}
	}
	switch c.Bars.Source {
	case "", "none":
	case "tradier":
		if c.Tradier.Token == "" {
			return fmt.Errorf("tradier.token is required for bars.source=tradier")
		}
	case "clickhouse":
		if !c.ClickHouse.Enabled {
			return fmt.Errorf("clickhouse.enabled must be true for bars.source=clickhouse")
		}
	default:
		return fmt.Errorf("bars.source must be 'tradier', 'clickhouse' or 'none', got '%s'", c.Bars.Source)
	}
	return nil
}

func setStr(p *string, def string) {
	if *p == "" {
		*p = def
	}
}

func setInt(p *int, def int) {
	if *p == 0 {
		*p = def
	}
}

func setFloat(p *float64, def float64) {
	if *p == 0 {
		*p = def
	}
}

func setDur(p *time.Duration, def time.Duration) {
	if *p == 0 {
		*p = def
	}
}

func setList(p *[]string, def ...string) {
	if len(*p) == 0 {
		*p = def
	}
}

func setSymbols(p *[]string, def ...string) {
	*p = util.NormalizeSymbols(*p)
	setList(p, def...)
}
