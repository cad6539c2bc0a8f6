package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"bullionrates/internal/rates"
)

type Conversion struct {
	// IncludeTaxes is kept as text: only "true" (any case) enables taxes.
	IncludeTaxes string  `json:"include_taxes" yaml:"include_taxes" env:"INCLUDE_TAXES" env-default:"false" env-description:"apply import duty and GST"`
	ImportDuty   float64 `json:"import_duty" yaml:"import_duty" env:"GOLD_IMPORT_DUTY" env-default:"0.155" env-description:"import duty rate"`
	GST          float64 `json:"gst" yaml:"gst" env:"GOLD_GST" env-default:"0.03" env-description:"GST rate"`
}

// Manual rates are INR per gram overrides; 0 leaves the live rate in place.
type Manual struct {
	GoldRate   float64 `json:"gold_rate" yaml:"gold_rate" env:"MANUAL_GOLD_RATE" env-default:"0" env-description:"22K gold override, INR per gram"`
	SilverRate float64 `json:"silver_rate" yaml:"silver_rate" env:"MANUAL_SILVER_RATE" env-default:"0" env-description:"silver override, INR per gram"`
}

type Feed struct {
	BaseURL      string        `json:"base_url" yaml:"base_url" env:"FEED_BASE_URL" env-default:"https://query1.finance.yahoo.com" env-description:"chart API base URL"`
	Source       string        `json:"source" yaml:"source" env:"FEED_SOURCE" env-default:"Yahoo Finance" env-description:"source label in the result"`
	Period       string        `json:"period" yaml:"period" env:"FEED_PERIOD" env-default:"1d" env-description:"lookback window"`
	Interval     string        `json:"interval" yaml:"interval" env:"FEED_INTERVAL" env-default:"1m" env-description:"sampling interval"`
	Threads      bool          `json:"threads" yaml:"threads" env:"FEED_THREADS" env-default:"true" env-description:"fetch symbols in parallel"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout" env:"REQUEST_TIMEOUT" env-default:"15s" env-description:"HTTP timeout and run deadline"`
	GoldSymbol   string        `json:"gold_symbol" yaml:"gold_symbol" env:"GOLD_SYMBOL" env-default:"GC=F"`
	SilverSymbol string        `json:"silver_symbol" yaml:"silver_symbol" env:"SILVER_SYMBOL" env-default:"SI=F"`
	USDINRSymbol string        `json:"usdinr_symbol" yaml:"usdinr_symbol" env:"USDINR_SYMBOL" env-default:"USDINR=X"`

	MaxRequestsPerMinute int           `json:"max_requests_per_minute" yaml:"max_requests_per_minute" env:"FEED_MAX_RPM" env-default:"30"`
	Burst                int           `json:"burst" yaml:"burst" env:"FEED_BURST" env-default:"3"`
	MinInterval          time.Duration `json:"min_interval" yaml:"min_interval" env:"FEED_MIN_INTERVAL" env-default:"0s"`
	CacheTTL             time.Duration `json:"cache_ttl" yaml:"cache_ttl" env:"CACHE_TTL" env-default:"60s"`
	CacheMaxItems        int           `json:"cache_max_items" yaml:"cache_max_items" env:"CACHE_MAX_ITEMS" env-default:"64"`
}

type Server struct {
	Port string `json:"port" yaml:"port" env:"PORT" env-default:"8080"`
	// AdminToken guards PUT /api/manual-rates; empty disables the endpoint.
	AdminToken string `json:"admin_token" yaml:"admin_token" env:"ADMIN_TOKEN"`
}

type Redis struct {
	Addr     string `json:"addr" yaml:"addr" env:"REDIS_ADDR" env-description:"enables the shared feed cache"`
	Password string `json:"password" yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `json:"db" yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Postgres struct {
	URL      string `json:"url" yaml:"url" env:"DATABASE_URL" env-description:"enables the snapshot history sink"`
	MaxConns int    `json:"max_conns" yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"4"`
}

type Kafka struct {
	Brokers []string `json:"brokers" yaml:"brokers" env:"KAFKA_BROKERS" env-separator:"," env-description:"enables the Kafka sink"`
	Topic   string   `json:"topic" yaml:"topic" env:"KAFKA_TOPIC" env-default:"bullion-rates"`
}

type Log struct {
	Level  string `json:"level" yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `json:"format" yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

type Config struct {
	Conversion Conversion `json:"conversion" yaml:"conversion"`
	Manual     Manual     `json:"manual" yaml:"manual"`
	Feed       Feed       `json:"feed" yaml:"feed"`
	Server     Server     `json:"server" yaml:"server"`
	Redis      Redis      `json:"redis" yaml:"redis"`
	Postgres   Postgres   `json:"postgres" yaml:"postgres"`
	Kafka      Kafka      `json:"kafka" yaml:"kafka"`
	Log        Log        `json:"log" yaml:"log"`
}

// Load reads configuration from path (JSON or YAML by extension) and the
// environment. Environment variables always win over file values. If path
// is empty, config.json in the working directory is used when present; a
// missing file falls back to environment and defaults.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}

	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	present := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// Usage returns a flag.Usage replacement that also lists environment variables.
func Usage(header func()) func() {
	var cfg Config
	return cleanenv.FUsage(os.Stderr, &cfg, nil, header)
}

// Validate checks ranges that cleanenv cannot express.
func (c Config) Validate() error {
	if math.IsNaN(c.Conversion.ImportDuty) || c.Conversion.ImportDuty < 0 {
		return fmt.Errorf("conversion.import_duty must be >= 0, got %v", c.Conversion.ImportDuty)
	}
	if math.IsNaN(c.Conversion.GST) || c.Conversion.GST < 0 {
		return fmt.Errorf("conversion.gst must be >= 0, got %v", c.Conversion.GST)
	}
	if !(c.Manual.GoldRate >= 0) || !(c.Manual.SilverRate >= 0) || math.IsInf(c.Manual.GoldRate, 0) || math.IsInf(c.Manual.SilverRate, 0) {
		return errors.New("manual.gold_rate and manual.silver_rate must be finite and >= 0")
	}
	if strings.TrimSpace(c.Feed.Period) == "" || strings.TrimSpace(c.Feed.Interval) == "" {
		return errors.New("feed.period and feed.interval are required")
	}
	if c.Feed.GoldSymbol == "" || c.Feed.SilverSymbol == "" || c.Feed.USDINRSymbol == "" {
		return errors.New("feed symbols are required")
	}
	if c.Feed.Timeout <= 0 {
		return fmt.Errorf("feed.timeout must be > 0, got %s", c.Feed.Timeout)
	}
	if c.Feed.MaxRequestsPerMinute < 0 || c.Feed.Burst < 0 || c.Feed.CacheMaxItems < 0 {
		return errors.New("feed rate limit and cache sizes must be >= 0")
	}
	if c.Postgres.MaxConns < 1 {
		return fmt.Errorf("postgres.max_conns must be >= 1, got %d", c.Postgres.MaxConns)
	}
	return nil
}

// RatesConversion projects the tax settings used by the converter.
func (c Config) RatesConversion() rates.Conversion {
	return rates.Conversion{
		IncludeTaxes: strings.EqualFold(strings.TrimSpace(c.Conversion.IncludeTaxes), "true"),
		ImportDuty:   c.Conversion.ImportDuty,
		GST:          c.Conversion.GST,
	}
}

// Rates builds the pipeline configuration.
func (c Config) Rates() rates.Config {
	return rates.Config{
		Symbols: rates.Symbols{
			Gold:   c.Feed.GoldSymbol,
			Silver: c.Feed.SilverSymbol,
			USDINR: c.Feed.USDINRSymbol,
		},
		Period:     c.Feed.Period,
		Interval:   c.Feed.Interval,
		Source:     c.Feed.Source,
		Conversion: c.RatesConversion(),
	}
}

// ManualRates returns the configured overrides.
func (c Config) ManualRates() rates.Manual {
	return rates.Manual{Gold: c.Manual.GoldRate, Silver: c.Manual.SilverRate}
}
