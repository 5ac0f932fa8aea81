package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"metalpulse/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Quotes    QuotesConfig    `mapstructure:"quotes"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	API       APIConfig       `mapstructure:"api"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs the alert polling cadence.
type SchedulerConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	AlignToStart   bool          `mapstructure:"align_to_start"`
	RunImmediately bool          `mapstructure:"run_immediately"`
	StartupDelay   time.Duration `mapstructure:"startup_delay"`
}

// QuotesConfig tunes the aggregation engine.
type QuotesConfig struct {
	CacheTTL        time.Duration          `mapstructure:"cache_ttl"`
	MaxChangePct    float64                `mapstructure:"max_change_pct"`
	BreakerCooldown time.Duration          `mapstructure:"breaker_cooldown"`
	Ranges          map[string]RangeConfig `mapstructure:"ranges"`
}

// RangeConfig overrides the plausible price band of one symbol.
type RangeConfig struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// ProvidersConfig captures upstream price sources in priority order:
// stooq, goldapi, metalprice, chainlink.
type ProvidersConfig struct {
	Stooq      StooqConfig      `mapstructure:"stooq"`
	GoldAPI    GoldAPIConfig    `mapstructure:"goldapi"`
	MetalPrice MetalPriceConfig `mapstructure:"metalprice"`
	Chainlink  ChainlinkConfig  `mapstructure:"chainlink"`
	// Cooldowns overrides the breaker cooldown per provider name.
	Cooldowns map[string]time.Duration `mapstructure:"cooldowns"`
}

// StooqConfig covers the free CSV endpoint.
type StooqConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// GoldAPIConfig covers gold-api spot quotes.
type GoldAPIConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// MetalPriceConfig covers metalpriceapi batch rates.
type MetalPriceConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ChainlinkConfig covers on-chain price feeds.
type ChainlinkConfig struct {
	Enabled        bool              `mapstructure:"enabled"`
	RPCURL         string            `mapstructure:"rpc_url"`
	Feeds          map[string]string `mapstructure:"feeds"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
}

// AlertingConfig defines alert evaluation and delivery.
type AlertingConfig struct {
	Enabled bool         `mapstructure:"enabled"`
	Resend  ResendConfig `mapstructure:"resend"`
}

// ResendConfig 描述 Resend 邮件告警参数。
type ResendConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	FromEmail      string        `mapstructure:"from_email"`
	FromName       string        `mapstructure:"from_name"`
	APIBase        string        `mapstructure:"api_base"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// APIConfig sets HTTP listener behaviour.
type APIConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("METALPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "metalpulse")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "1m")
	v.SetDefault("scheduler.align_to_start", false)
	v.SetDefault("scheduler.run_immediately", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("quotes.cache_ttl", "60s")
	v.SetDefault("quotes.max_change_pct", 15.0)
	v.SetDefault("quotes.breaker_cooldown", "30m")

	v.SetDefault("providers.stooq.enabled", true)
	v.SetDefault("providers.stooq.base_url", "https://stooq.com")
	v.SetDefault("providers.stooq.user_agent", "metalpulse/1.0")
	v.SetDefault("providers.stooq.request_timeout", "10s")

	v.SetDefault("providers.goldapi.enabled", false)
	v.SetDefault("providers.goldapi.base_url", "https://www.goldapi.io/api")
	v.SetDefault("providers.goldapi.request_timeout", "10s")

	v.SetDefault("providers.metalprice.enabled", false)
	v.SetDefault("providers.metalprice.base_url", "https://api.metalpriceapi.com/v1")
	v.SetDefault("providers.metalprice.request_timeout", "10s")

	v.SetDefault("providers.chainlink.enabled", false)
	v.SetDefault("providers.chainlink.request_timeout", "10s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.resend.api_base", "https://api.resend.com")
	v.SetDefault("alerting.resend.from_name", "MetalPulse")
	v.SetDefault("alerting.resend.request_timeout", "10s")

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.listen_addr", ":8080")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Quotes.CacheTTL < 0 {
		return fmt.Errorf("quotes.cache_ttl cannot be negative")
	}
	if c.Quotes.MaxChangePct <= 0 {
		return fmt.Errorf("quotes.max_change_pct must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Providers.GoldAPI.Enabled && c.Providers.GoldAPI.APIKey == "" {
		return fmt.Errorf("providers.goldapi.api_key 必须配置")
	}
	if c.Providers.MetalPrice.Enabled && c.Providers.MetalPrice.APIKey == "" {
		return fmt.Errorf("providers.metalprice.api_key 必须配置")
	}
	if c.Providers.Chainlink.Enabled && c.Providers.Chainlink.RPCURL == "" {
		return fmt.Errorf("providers.chainlink.rpc_url 必须配置")
	}
	if c.Alerting.Enabled {
		if c.Alerting.Resend.APIKey == "" {
			return fmt.Errorf("alerting.resend.api_key 必须配置")
		}
		if c.Alerting.Resend.FromEmail == "" {
			return fmt.Errorf("alerting.resend.from_email 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
