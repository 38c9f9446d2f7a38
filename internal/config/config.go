package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"SignalSentinel/internal/cache"
	"SignalSentinel/internal/correlation"
	"SignalSentinel/internal/logger"
	"SignalSentinel/internal/scheduler"
)

// DefaultSymbols is the watch list used when none is configured.
var DefaultSymbols = []string{"EURUSD", "GBPUSD", "USDJPY", "AAPL", "MSFT", "BTCUSD"}

// Config holds all application configuration.
type Config struct {
	Log         logger.Config      `yaml:"log"`
	DataSource  DataSource         `yaml:"data_source"`
	Cache       Cache              `yaml:"cache"`
	Signal      Signal             `yaml:"signal"`
	Correlation correlation.Config `yaml:"correlation"`
	Risk        Risk               `yaml:"risk"`
	Schedule    Schedule           `yaml:"schedule"`
	Store       Store              `yaml:"store"`
	Telegram    Telegram           `yaml:"telegram"`
	HTTP        HTTP               `yaml:"http"`
	Kafka       Kafka              `yaml:"kafka"`
	Symbols     []string           `yaml:"symbols" validate:"dive,required,uppercase"`
	Workers     int                `yaml:"workers" default:"1" validate:"gte=1,lte=16"`
	Proxy       string             `yaml:"proxy"`
}

// DataSource selects and configures the market data provider.
type DataSource struct {
	Provider  string        `yaml:"provider" default:"alphavantage" validate:"oneof=alphavantage mock"`
	BaseURL   string        `yaml:"base_url" default:"https://www.alphavantage.co" validate:"url"`
	APIKey    string        `yaml:"api_key"`
	IsPremium bool          `yaml:"is_premium"`
	Timeout   time.Duration `yaml:"timeout" default:"20s" validate:"gt=0"`
	// Crypto routes crypto symbols to a dedicated provider; empty keeps
	// them on Provider.
	Crypto     string `yaml:"crypto" validate:"omitempty,oneof=binance"`
	BinanceURL string `yaml:"binance_url" default:"https://api.binance.com" validate:"url"`
}

// Plan is the cache lifetime and call spacing implied by the subscription.
type Plan struct {
	CacheTTL        time.Duration
	MinCallInterval time.Duration
}

// Plan returns {60s, 1s} for premium keys and {300s, 12s} otherwise.
func (d DataSource) Plan() Plan {
	if d.IsPremium {
		return Plan{CacheTTL: 60 * time.Second, MinCallInterval: time.Second}
	}
	return Plan{CacheTTL: 300 * time.Second, MinCallInterval: 12 * time.Second}
}

// Cache overrides for the rate-limited cache. Zero TTL and MinInterval
// follow the data source plan.
type Cache struct {
	TTL         time.Duration `yaml:"ttl"`
	MinInterval time.Duration `yaml:"min_interval"`
	MaxWait     time.Duration `yaml:"max_wait" default:"30s" validate:"gt=0"`
	MaxEntries  int           `yaml:"max_entries" default:"1000" validate:"gte=10"`
	Slack       float64       `yaml:"slack" default:"0.2" validate:"gt=0,lt=1"`
}

type Signal struct {
	DepthThreshold float64 `yaml:"depth_threshold" default:"5.0" validate:"gt=0"`
	BuyThreshold   float64 `yaml:"buy_threshold" default:"0.3" validate:"gt=0"`
	SellThreshold  float64 `yaml:"sell_threshold" default:"-0.3" validate:"lt=0"`
	DepthLevels    int     `yaml:"depth_levels" default:"20" validate:"gte=1"`
}

type Risk struct {
	// AccountBalance enables position sizing on alerts when positive.
	AccountBalance float64 `yaml:"account_balance" validate:"gte=0"`
}

type Schedule struct {
	DecisionCron    string `yaml:"decision_cron" default:"@every 5m" validate:"required"`
	CorrelationCron string `yaml:"correlation_cron" default:"@every 24h" validate:"required"`
	RunOnStart      bool   `yaml:"run_on_start"`
}

type Store struct {
	Driver     string `yaml:"driver" default:"sqlite" validate:"oneof=sqlite redis memory"`
	SQLitePath string `yaml:"sqlite_path" default:"data/signal_sentinel.db"`
	Redis      Redis  `yaml:"redis"`
}

type Redis struct {
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Prefix   string `yaml:"prefix" default:"sentinel"`
}

type Telegram struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	Commands bool   `yaml:"commands"`
}

// HTTP configures the read API and the /metrics endpoint.
type HTTP struct {
	Disabled bool   `yaml:"disabled"`
	Addr     string `yaml:"addr" default:":8080"`
	Stream   bool   `yaml:"stream"`
}

// Kafka publishes decisions when Brokers is non-empty.
type Kafka struct {
	Brokers     []string      `yaml:"brokers" validate:"dive,hostname_port"`
	Topic       string        `yaml:"topic" default:"sentinel.decisions"`
	Compression string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	Timeout     time.Duration `yaml:"timeout" default:"10s" validate:"gt=0"`
}

// Enabled reports whether decisions are published to Kafka.
func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = append([]string(nil), DefaultSymbols...)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("ALPHAVANTAGE_PREMIUM"); v != "" {
		premium, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ALPHAVANTAGE_PREMIUM: %w", err)
		}
		cfg.DataSource.IsPremium = premium
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Store.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v, strings.TrimSpace)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		cfg.Symbols = splitList(v, func(s string) string { return strings.ToUpper(strings.TrimSpace(s)) })
	}
	return nil
}

func splitList(v string, norm func(string) string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = norm(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var validate = validator.New()

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return describe(err)
	}
	if c.DataSource.Provider == "alphavantage" && c.DataSource.APIKey == "" {
		return errors.New("data_source.api_key is required for alphavantage")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return errors.New("telegram.bot_token and telegram.chat_id must be set together")
	}
	if c.Store.Driver == "redis" && c.Store.Redis.Addr == "" {
		return errors.New("store.redis.addr is required for the redis driver")
	}
	if c.Store.Driver == "sqlite" && c.Store.SQLitePath == "" {
		return errors.New("store.sqlite_path is required for the sqlite driver")
	}
	if opts := c.CacheOptions(); opts.MaxWait < opts.MinInterval {
		return fmt.Errorf("cache.max_wait (%s) must be at least the min call interval (%s)", opts.MaxWait, opts.MinInterval)
	}
	for name, spec := range map[string]string{
		"schedule.decision_cron":    c.Schedule.DecisionCron,
		"schedule.correlation_cron": c.Schedule.CorrelationCron,
	} {
		if _, err := scheduler.Parser.Parse(spec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// CacheOptions merges the plan with explicit cache overrides.
func (c *Config) CacheOptions() cache.Options {
	plan := c.DataSource.Plan()
	opts := cache.Options{
		TTL:          plan.CacheTTL,
		MinInterval:  plan.MinCallInterval,
		MaxWait:      c.Cache.MaxWait,
		FetchTimeout: c.DataSource.Timeout,
		MaxEntries:   c.Cache.MaxEntries,
		Slack:        c.Cache.Slack,
	}
	if c.Cache.TTL > 0 {
		opts.TTL = c.Cache.TTL
	}
	if c.Cache.MinInterval > 0 {
		opts.MinInterval = c.Cache.MinInterval
	}
	return opts
}

// describe turns the first validation failure into a readable error.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt", "gte", "lt", "lte":
		return fmt.Errorf("%s must be %s %s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	default:
		return fmt.Errorf("%s failed validation: %s", field, fe.Tag())
	}
}
