package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/freight-cli/internal/calendar"
	"github.com/sells-group/freight-cli/internal/dedup"
	"github.com/sells-group/freight-cli/internal/invoice"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Dedup    DedupConfig    `yaml:"dedup" mapstructure:"dedup"`
	Redis    RedisConfig    `yaml:"redis" mapstructure:"redis"`
	Calendar CalendarConfig `yaml:"calendar" mapstructure:"calendar"`
	Freight  FreightConfig  `yaml:"freight" mapstructure:"freight"`
	Invoice  InvoiceConfig  `yaml:"invoice" mapstructure:"invoice"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Orders   OrdersConfig   `yaml:"orders" mapstructure:"orders"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// DedupConfig configures processed-document tracking.
type DedupConfig struct {
	Mode           string `yaml:"mode" mapstructure:"mode"`
	Driver         string `yaml:"driver" mapstructure:"driver"`
	StaleAfterSecs int    `yaml:"stale_after_secs" mapstructure:"stale_after_secs"`
}

// StaleAfter returns the reservation timeout.
func (d DedupConfig) StaleAfter() time.Duration {
	return time.Duration(d.StaleAfterSecs) * time.Second
}

// RedisConfig holds the Redis connection used by the redis dedup driver.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

// CalendarConfig configures working-day computation and the holiday source.
type CalendarConfig struct {
	RestDay          string   `yaml:"rest_day" mapstructure:"rest_day"`
	OutagePolicy     string   `yaml:"outage_policy" mapstructure:"outage_policy"`
	MaxWalkDays      int      `yaml:"max_walk_days" mapstructure:"max_walk_days"`
	HolidayURL       string   `yaml:"holiday_url" mapstructure:"holiday_url"`
	ExtraHolidays    []string `yaml:"extra_holidays" mapstructure:"extra_holidays"`
	FetchTimeoutSecs int      `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	RatePerSecond    float64  `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RetryAttempts    int      `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// FreightConfig holds rate resolution settings.
type FreightConfig struct {
	LowVolumeThreshold int `yaml:"low_volume_threshold" mapstructure:"low_volume_threshold"`
}

// InvoiceConfig holds invoice aggregation settings.
type InvoiceConfig struct {
	TaxRate         string `yaml:"tax_rate" mapstructure:"tax_rate"`
	Rounding        string `yaml:"rounding" mapstructure:"rounding"`
	CurrencyPlaces  int32  `yaml:"currency_places" mapstructure:"currency_places"`
	Taxonomy        string `yaml:"taxonomy" mapstructure:"taxonomy"`
	PaymentTermDays int    `yaml:"payment_term_days" mapstructure:"payment_term_days"`
}

// PipelineConfig holds per-document processing settings.
type PipelineConfig struct {
	DocumentTimeoutSecs int `yaml:"document_timeout_secs" mapstructure:"document_timeout_secs"`
	LedgerRetryAttempts int `yaml:"ledger_retry_attempts" mapstructure:"ledger_retry_attempts"`
	LedgerRetryInitMs   int `yaml:"ledger_retry_initial_ms" mapstructure:"ledger_retry_initial_ms"`
	LedgerRetryMaxMs    int `yaml:"ledger_retry_max_ms" mapstructure:"ledger_retry_max_ms"`
}

// OrdersConfig configures the drop directory and order file output.
type OrdersConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	DropDir   string `yaml:"drop_dir" mapstructure:"drop_dir"`
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml, environment variables, and defaults.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FREIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "freight.db")
	v.SetDefault("dedup.mode", "check")
	v.SetDefault("dedup.driver", "store")
	v.SetDefault("dedup.stale_after_secs", 600)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.prefix", dedup.DefaultRedisPrefix)
	v.SetDefault("calendar.rest_day", "sunday")
	v.SetDefault("calendar.outage_policy", string(calendar.PolicyFailOpen))
	v.SetDefault("calendar.max_walk_days", 366)
	v.SetDefault("calendar.holiday_url", calendar.DefaultHolidayURL)
	v.SetDefault("calendar.extra_holidays", []string{})
	v.SetDefault("calendar.fetch_timeout_secs", 15)
	v.SetDefault("calendar.rate_per_second", 5)
	v.SetDefault("calendar.retry_attempts", 3)
	v.SetDefault("freight.low_volume_threshold", 5)
	v.SetDefault("invoice.tax_rate", "0.10")
	v.SetDefault("invoice.rounding", string(invoice.RoundHalfUp))
	v.SetDefault("invoice.currency_places", 0)
	v.SetDefault("invoice.taxonomy", string(invoice.TaxonomyAuto))
	v.SetDefault("invoice.payment_term_days", invoice.DefaultPaymentTermDays)
	v.SetDefault("pipeline.document_timeout_secs", 120)
	v.SetDefault("pipeline.ledger_retry_attempts", 3)
	v.SetDefault("pipeline.ledger_retry_initial_ms", 200)
	v.SetDefault("pipeline.ledger_retry_max_ms", 5000)
	v.SetDefault("orders.enabled", true)
	v.SetDefault("orders.drop_dir", "inbox")
	v.SetDefault("orders.output_dir", "orders")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is one of ingest,
// invoice, destinations, holidays, or serve.
func (c *Config) Validate(mode string) error {
	var errs []string
	add := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "ingest":
		_, err := dedup.ParseMode(c.Dedup.Mode)
		add(err)
		switch c.Dedup.Driver {
		case "store", "memory":
		case "redis":
			if c.Redis.Addr == "" {
				errs = append(errs, "redis.addr is required when dedup.driver is redis")
			}
		default:
			errs = append(errs, "dedup.driver must be store, redis, or memory")
		}
		if c.Dedup.StaleAfterSecs < 0 {
			errs = append(errs, "dedup.stale_after_secs must be >= 0")
		}
		if c.Freight.LowVolumeThreshold < 1 {
			errs = append(errs, "freight.low_volume_threshold must be >= 1")
		}
		if c.Pipeline.DocumentTimeoutSecs < 0 {
			errs = append(errs, "pipeline.document_timeout_secs must be >= 0")
		}
		errs = append(errs, c.calendarErrors()...)
	case "holidays":
		errs = append(errs, c.calendarErrors()...)
	case "invoice", "serve":
		errs = append(errs, c.invoiceErrors()...)
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "destinations":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) calendarErrors() []string {
	var errs []string
	if _, err := calendar.ParseWeekday(c.Calendar.RestDay); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := calendar.ParsePolicy(c.Calendar.OutagePolicy); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := calendar.ParseStaticSource(c.Calendar.ExtraHolidays); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Calendar.MaxWalkDays < 0 {
		errs = append(errs, "calendar.max_walk_days must be >= 0")
	}
	return errs
}

func (c *Config) invoiceErrors() []string {
	var errs []string
	if _, err := c.Invoice.Rate(); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := invoice.ParseRounding(c.Invoice.Rounding); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := invoice.ParseTaxonomy(c.Invoice.Taxonomy); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Invoice.CurrencyPlaces < 0 {
		errs = append(errs, "invoice.currency_places must be >= 0")
	}
	if c.Invoice.PaymentTermDays < 1 {
		errs = append(errs, "invoice.payment_term_days must be >= 1")
	}
	return errs
}

// Rate parses the configured tax rate.
func (i InvoiceConfig) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(i.TaxRate))
	if err != nil {
		return decimal.Zero, eris.Wrapf(err, "invoice.tax_rate %q is not a number", i.TaxRate)
	}
	if rate.IsNegative() {
		return decimal.Zero, eris.Errorf("invoice.tax_rate must be >= 0, got %s", rate)
	}
	return rate, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
