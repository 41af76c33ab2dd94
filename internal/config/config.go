package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/Paint3141/precious-metals/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Symbols   SymbolsConfig   `mapstructure:"symbols"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
	Import    ImportConfig    `mapstructure:"import"`
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

// SchedulerConfig governs fetch/check cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// SymbolsConfig declares the tracked instrument universe.
type SymbolsConfig struct {
	Commodities []CommodityConfig `mapstructure:"commodities"`
	Currencies  []string          `mapstructure:"currencies"`
}

// CommodityConfig describes one tracked commodity and its price source.
type CommodityConfig struct {
	Symbol string `mapstructure:"symbol"`
	Name   string `mapstructure:"name"`
	// Source selects the upstream: goldapi, metalprice, or chainlink.
	Source string `mapstructure:"source"`
	// Feed is the Chainlink aggregator address; only for source=chainlink.
	Feed         string `mapstructure:"feed"`
	FeedDecimals int    `mapstructure:"feed_decimals"`
}

// FetchConfig groups upstream price source connectivity.
type FetchConfig struct {
	GoldAPI      GoldAPIConfig      `mapstructure:"gold_api"`
	MetalPrice   MetalPriceConfig   `mapstructure:"metal_price"`
	ExchangeRate ExchangeRateConfig `mapstructure:"exchange_rate"`
	Ethereum     EthereumConfig     `mapstructure:"ethereum"`
}

// GoldAPIConfig captures gold-api.com connectivity.
type GoldAPIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// MetalPriceConfig captures metalpriceapi.com connectivity.
type MetalPriceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ExchangeRateConfig captures exchangerate-api.com connectivity.
type ExchangeRateConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// EthereumConfig covers on-chain feed access.
type EthereumConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AlertingConfig defines movement windows and routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Windows  []WindowConfig `mapstructure:"windows"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// WindowConfig defines one lookback window with its threshold and cooldown.
type WindowConfig struct {
	Label        string        `mapstructure:"label"`
	Period       time.Duration `mapstructure:"period"`
	ThresholdPct float64       `mapstructure:"threshold_pct"`
	Cooldown     time.Duration `mapstructure:"cooldown"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// ImportConfig maps CSV columns onto tracked symbols.
type ImportConfig struct {
	TimeColumn string            `mapstructure:"time_column"`
	TimeLayout string            `mapstructure:"time_layout"`
	Columns    map[string]string `mapstructure:"columns"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("METALSWATCHER")
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

	applyFallbacks(&cfg)

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
	v.SetDefault("app.name", "metalswatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "15m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x4d455441))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("symbols.currencies", []string{"GBP", "EUR", "CNY", "JPY", "RUB"})

	v.SetDefault("fetch.gold_api.base_url", "https://api.gold-api.com")
	v.SetDefault("fetch.gold_api.request_timeout", "10s")
	v.SetDefault("fetch.gold_api.user_agent", "metalswatcher/1.0")

	v.SetDefault("fetch.metal_price.base_url", "https://api.metalpriceapi.com/v1")
	v.SetDefault("fetch.metal_price.request_timeout", "10s")

	v.SetDefault("fetch.exchange_rate.base_url", "https://v6.exchangerate-api.com/v6")
	v.SetDefault("fetch.exchange_rate.request_timeout", "12s")

	v.SetDefault("fetch.ethereum.request_timeout", "10s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("import.time_column", "time")
	v.SetDefault("import.time_layout", "2006-01-02 15:04:05")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

// applyFallbacks fills the structured defaults viper cannot express well.
func applyFallbacks(cfg *Config) {
	if len(cfg.Symbols.Commodities) == 0 {
		cfg.Symbols.Commodities = DefaultCommodities()
	}
	if len(cfg.Alerting.Windows) == 0 {
		cfg.Alerting.Windows = DefaultWindows()
	}
	for i := range cfg.Symbols.Commodities {
		if cfg.Symbols.Commodities[i].Source == "" {
			cfg.Symbols.Commodities[i].Source = "goldapi"
		}
	}
	if len(cfg.Import.Columns) == 0 {
		cfg.Import.Columns = map[string]string{
			"XAUUSD": "XAU",
			"XAGUSD": "XAG",
			"XPTUSD": "XPT",
			"XPDUSD": "XPD",
		}
	}
}

// CommodityName returns the display name for a tracked symbol.
func (c *Config) CommodityName(symbol string) string {
	for _, commodity := range c.Symbols.Commodities {
		if commodity.Symbol == symbol {
			if commodity.Name != "" {
				return commodity.Name
			}
			break
		}
	}
	return symbol
}

// DefaultCommodities returns the tracked commodity universe.
func DefaultCommodities() []CommodityConfig {
	return []CommodityConfig{
		{Symbol: "XAU", Name: "Gold", Source: "goldapi"},
		{Symbol: "XAG", Name: "Silver", Source: "goldapi"},
		{Symbol: "XPT", Name: "Platinum", Source: "metalprice"},
		{Symbol: "XPD", Name: "Palladium", Source: "goldapi"},
		{Symbol: "BTC", Name: "Bitcoin", Source: "goldapi"},
		{Symbol: "HG", Name: "Copper (per pound)", Source: "goldapi"},
	}
}

// DefaultWindows returns the daily/weekly/monthly movement windows.
func DefaultWindows() []WindowConfig {
	return []WindowConfig{
		{Label: "daily", Period: 24 * time.Hour, ThresholdPct: 2, Cooldown: 24 * time.Hour},
		{Label: "weekly", Period: 7 * 24 * time.Hour, ThresholdPct: 5, Cooldown: 7 * 24 * time.Hour},
		{Label: "monthly", Period: 30 * 24 * time.Hour, ThresholdPct: 10, Cooldown: 30 * 24 * time.Hour},
	}
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
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}

	seen := make(map[string]struct{}, len(c.Symbols.Commodities))
	for _, commodity := range c.Symbols.Commodities {
		if commodity.Symbol == "" {
			return fmt.Errorf("symbols.commodities entries require a symbol")
		}
		if _, dup := seen[commodity.Symbol]; dup {
			return fmt.Errorf("symbols.commodities: duplicate symbol %q", commodity.Symbol)
		}
		seen[commodity.Symbol] = struct{}{}

		switch commodity.Source {
		case "goldapi", "metalprice":
		case "chainlink":
			if commodity.Feed == "" {
				return fmt.Errorf("symbols.commodities: %s uses chainlink but has no feed address", commodity.Symbol)
			}
		default:
			return fmt.Errorf("symbols.commodities: %s has unknown source %q", commodity.Symbol, commodity.Source)
		}
	}

	labels := make(map[string]struct{}, len(c.Alerting.Windows))
	for _, window := range c.Alerting.Windows {
		if window.Label == "" {
			return fmt.Errorf("alerting.windows entries require a label")
		}
		if _, dup := labels[window.Label]; dup {
			return fmt.Errorf("alerting.windows: duplicate label %q", window.Label)
		}
		labels[window.Label] = struct{}{}
		if window.Period <= 0 {
			return fmt.Errorf("alerting.windows: %s period must be greater than zero", window.Label)
		}
		if window.ThresholdPct < 0 {
			return fmt.Errorf("alerting.windows: %s threshold_pct cannot be negative", window.Label)
		}
		if window.Cooldown <= 0 {
			return fmt.Errorf("alerting.windows: %s cooldown must be greater than zero", window.Label)
		}
	}

	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
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
