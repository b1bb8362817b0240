// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	VenueK      VenueKConfig      `mapstructure:"venue_k"`
	VenueP      VenuePConfig      `mapstructure:"venue_p"`
	Risk        RiskConfig        `mapstructure:"risk"`
	Detection   DetectionConfig   `mapstructure:"detection"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name           string   `mapstructure:"name"`
	Environment    string   `mapstructure:"environment"`
	LogLevel       string   `mapstructure:"log_level"`
	SimulationMode bool     `mapstructure:"simulation_mode"`
	Keywords       []string `mapstructure:"keywords"`
	TUIMode        bool     `mapstructure:"-"` // set at runtime, not from config file
}

// VenueKConfig holds connection and fee settings for venue K.
type VenueKConfig struct {
	WebSocketURL   string        `mapstructure:"websocket_url"`
	RESTBaseURL    string        `mapstructure:"rest_base_url"`
	TakerFeeRate   float64       `mapstructure:"taker_fee_rate"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimitRPM   int           `mapstructure:"rate_limit_rpm"`
}

// TakerFeeRateDecimal returns the taker fee rate as a decimal.Decimal.
func (c *VenueKConfig) TakerFeeRateDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.TakerFeeRate)
}

// VenuePConfig holds connection, fee and custody settings for venue P.
type VenuePConfig struct {
	WebSocketURL    string        `mapstructure:"websocket_url"`
	RESTBaseURL     string        `mapstructure:"rest_base_url"`
	FlatFeePerShare float64       `mapstructure:"flat_fee_per_share"`
	SafeWalletAddr  string        `mapstructure:"safe_wallet_address"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	RateLimitRPM    int           `mapstructure:"rate_limit_rpm"`
}

// FlatFeePerShareDecimal returns the flat per-contract fee as a decimal.Decimal.
func (c *VenuePConfig) FlatFeePerShareDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.FlatFeePerShare)
}

// SafeWalletAddress returns the configured safe-wallet address, validated as
// an Ethereum-style address (venue P settles through an on-chain custody wallet).
func (c *VenuePConfig) SafeWalletAddress() common.Address {
	return common.HexToAddress(c.SafeWalletAddr)
}

// RiskConfig holds RiskGate thresholds, expressed as fractions of bankroll.
type RiskConfig struct {
	MaxRiskPerTrade    float64       `mapstructure:"max_risk_per_trade"`
	MaxDailyLoss       float64       `mapstructure:"max_daily_loss"`
	MaxNetExposure     float64       `mapstructure:"max_net_exposure"`
	BalanceSyncSeconds time.Duration `mapstructure:"balance_sync_seconds"`
	BalanceCacheFresh  time.Duration `mapstructure:"-"`
}

func (c *RiskConfig) MaxRiskPerTradeDecimal() decimal.Decimal { return decimal.NewFromFloat(c.MaxRiskPerTrade) }
func (c *RiskConfig) MaxDailyLossDecimal() decimal.Decimal    { return decimal.NewFromFloat(c.MaxDailyLoss) }
func (c *RiskConfig) MaxNetExposureDecimal() decimal.Decimal  { return decimal.NewFromFloat(c.MaxNetExposure) }

// DetectionConfig holds Matcher/Detector/cooldown thresholds.
type DetectionConfig struct {
	MinProfit         float64       `mapstructure:"min_profit"`
	CooldownSeconds   time.Duration `mapstructure:"cooldown_seconds"`
	PairCooldownSec   time.Duration `mapstructure:"pair_cooldown_seconds"`
	BookFreshnessMs   time.Duration `mapstructure:"book_freshness_ms"`
	DetectCacheMs     time.Duration `mapstructure:"detect_cache_ms"`
	TitleSimilarity   float64       `mapstructure:"title_similarity_threshold"`
	ProbSpreadTrigger float64       `mapstructure:"prob_spread_trigger"`
}

func (c *DetectionConfig) MinProfitDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfit)
}

// PersistenceConfig holds the embedded relational store path.
type PersistenceConfig struct {
	SQLitePath string `mapstructure:"sqlite_path"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ARB")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Risk.BalanceCacheFresh = 10 * time.Second

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")
	v.BindEnv("app.simulation_mode", "ARB_SIMULATION_MODE", "SIMULATION_MODE")

	v.BindEnv("venue_k.websocket_url", "ARB_VENUEK_WS_URL", "VENUEK_WS_URL")
	v.BindEnv("venue_k.rest_base_url", "ARB_VENUEK_REST_URL", "VENUEK_REST_URL")
	v.BindEnv("venue_k.taker_fee_rate", "ARB_VENUEK_TAKER_FEE_RATE")

	v.BindEnv("venue_p.websocket_url", "ARB_VENUEP_WS_URL", "VENUEP_WS_URL")
	v.BindEnv("venue_p.rest_base_url", "ARB_VENUEP_REST_URL", "VENUEP_REST_URL")
	v.BindEnv("venue_p.flat_fee_per_share", "ARB_VENUEP_FLAT_FEE")
	v.BindEnv("venue_p.safe_wallet_address", "ARB_VENUEP_SAFE_WALLET", "VENUEP_SAFE_WALLET")

	v.BindEnv("risk.max_risk_per_trade", "ARB_MAX_RISK_PER_TRADE")
	v.BindEnv("risk.max_daily_loss", "ARB_MAX_DAILY_LOSS")
	v.BindEnv("risk.max_net_exposure", "ARB_MAX_NET_EXPOSURE")

	v.BindEnv("detection.min_profit", "ARB_MIN_PROFIT")

	v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "arbitrage-bot")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.simulation_mode", true)
	v.SetDefault("app.keywords", []string{})

	v.SetDefault("venue_k.websocket_url", "wss://trading-api.venuek.example/ws")
	v.SetDefault("venue_k.rest_base_url", "https://trading-api.venuek.example")
	v.SetDefault("venue_k.taker_fee_rate", 0.01)
	v.SetDefault("venue_k.request_timeout", "5s")
	v.SetDefault("venue_k.rate_limit_rpm", 600)

	v.SetDefault("venue_p.websocket_url", "wss://ws-subscriptions.venuep.example/ws")
	v.SetDefault("venue_p.rest_base_url", "https://clob.venuep.example")
	v.SetDefault("venue_p.flat_fee_per_share", 0.001)
	v.SetDefault("venue_p.safe_wallet_address", "0x0000000000000000000000000000000000000000")
	v.SetDefault("venue_p.request_timeout", "5s")
	v.SetDefault("venue_p.rate_limit_rpm", 600)

	v.SetDefault("risk.max_risk_per_trade", 0.90)
	v.SetDefault("risk.max_daily_loss", 0.20)
	v.SetDefault("risk.max_net_exposure", 0.50)
	v.SetDefault("risk.balance_sync_seconds", "30s")

	v.SetDefault("detection.min_profit", 0.01)
	v.SetDefault("detection.cooldown_seconds", "60s")
	v.SetDefault("detection.pair_cooldown_seconds", "15s")
	v.SetDefault("detection.book_freshness_ms", "500ms")
	v.SetDefault("detection.detect_cache_ms", "100ms")
	v.SetDefault("detection.title_similarity_threshold", 0.6)
	v.SetDefault("detection.prob_spread_trigger", 0.15)

	v.SetDefault("persistence.sqlite_path", "arbitrage-bot.db")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "arbitrage-bot")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration. A failure here is fatal at init
// (§7 ConfigInvalid): the bot refuses to start.
func (c *Config) Validate() error {
	if c.VenueK.WebSocketURL == "" {
		return fmt.Errorf("venue_k.websocket_url is required")
	}
	if c.VenueP.WebSocketURL == "" {
		return fmt.Errorf("venue_p.websocket_url is required")
	}
	if !common.IsHexAddress(c.VenueP.SafeWalletAddr) {
		return fmt.Errorf("invalid venue_p.safe_wallet_address: %s", c.VenueP.SafeWalletAddr)
	}
	if c.Risk.MaxRiskPerTrade <= 0 || c.Risk.MaxRiskPerTrade > 1 {
		return fmt.Errorf("risk.max_risk_per_trade must be in (0, 1]")
	}
	if c.Risk.MaxDailyLoss <= 0 || c.Risk.MaxDailyLoss > 1 {
		return fmt.Errorf("risk.max_daily_loss must be in (0, 1]")
	}
	if c.Risk.MaxNetExposure <= 0 || c.Risk.MaxNetExposure > 1 {
		return fmt.Errorf("risk.max_net_exposure must be in (0, 1]")
	}
	return nil
}
