package config

import (
	"fmt"
	"strings"
	"time"
	// schedule.timezone must resolve in minimal containers without zoneinfo
	_ "time/tzdata"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"aave-hf-watcher/internal/chain"
	"aave-hf-watcher/internal/logging"
)

const (
	// MinPollInterval is the floor applied to monitor.poll_interval.
	MinPollInterval = time.Second

	// Pushover rejects emergency retries below 30s and expiries above 3h.
	minPushoverRetry  = 30 * time.Second
	maxPushoverExpire = 10800 * time.Second

	ChannelPushover = "pushover"
	ChannelTelegram = "telegram"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Position  PositionConfig  `mapstructure:"position"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Prices    PricesConfig    `mapstructure:"prices"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates optional PostgreSQL history storage.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs loop start-up.
type SchedulerConfig struct {
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// PositionConfig identifies the monitored position.
type PositionConfig struct {
	Wallet      string `mapstructure:"wallet"`
	Chain       string `mapstructure:"chain"`
	PoolAddress string `mapstructure:"pool_address"`
}

// EthereumConfig covers on-chain data access.
type EthereumConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// PricesConfig names the two reference assets and their Chainlink feeds.
type PricesConfig struct {
	PrimarySymbol   string `mapstructure:"primary_symbol"`
	PrimaryFeed     string `mapstructure:"primary_feed"`
	SecondarySymbol string `mapstructure:"secondary_symbol"`
	SecondaryFeed   string `mapstructure:"secondary_feed"`
}

// MonitorConfig drives the alert engine and poll loop.
type MonitorConfig struct {
	HFThreshold    float64       `mapstructure:"hf_threshold"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	PollIntervalMS int64         `mapstructure:"poll_interval_ms"`
}

// ScheduleConfig drives the daily reports.
type ScheduleConfig struct {
	MorningHour int    `mapstructure:"morning_hour"`
	EveningHour int    `mapstructure:"evening_hour"`
	Timezone    string `mapstructure:"timezone"`
}

// AlertingConfig defines notification routing.
type AlertingConfig struct {
	Channels    []string       `mapstructure:"channels"`
	ActionURL   string         `mapstructure:"action_url"`
	ActionLabel string         `mapstructure:"action_label"`
	Timeout     time.Duration  `mapstructure:"timeout"`
	Pushover    PushoverConfig `mapstructure:"pushover"`
	Telegram    TelegramConfig `mapstructure:"telegram"`
}

// PushoverConfig 描述 Pushover 推送参数。
type PushoverConfig struct {
	AppToken string        `mapstructure:"app_token"`
	UserKey  string        `mapstructure:"user_key"`
	Sound    string        `mapstructure:"sound"`
	Retry    time.Duration `mapstructure:"retry"`
	Expire   time.Duration `mapstructure:"expire"`
	APIURL   string        `mapstructure:"api_url"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// MetricsConfig exposes Prometheus metrics when Listen is set.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, .env, environment, and defaults.
func Load(path string) (*Config, error) {
	// a missing .env is the normal case in containers
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("HFWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

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

	cfg.normalize()
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
	v.SetDefault("app.name", "hfwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.advisory_lock_key", int64(0x68667763))

	v.SetDefault("position.wallet", "")
	v.SetDefault("position.chain", "arbitrum")
	v.SetDefault("position.pool_address", "")

	v.SetDefault("ethereum.rpc_url", "")
	v.SetDefault("ethereum.request_timeout", "10s")

	v.SetDefault("prices.primary_symbol", "ETH")
	v.SetDefault("prices.primary_feed", "")
	v.SetDefault("prices.secondary_symbol", "BTC")
	v.SetDefault("prices.secondary_feed", "")

	v.SetDefault("monitor.hf_threshold", 1.3)
	v.SetDefault("monitor.poll_interval", "15s")
	v.SetDefault("monitor.poll_interval_ms", 0)

	v.SetDefault("schedule.morning_hour", 8)
	v.SetDefault("schedule.evening_hour", 20)
	v.SetDefault("schedule.timezone", "UTC")

	v.SetDefault("alerting.channels", []string{ChannelPushover})
	v.SetDefault("alerting.action_url", "https://app.aave.com/")
	v.SetDefault("alerting.action_label", "AAVE App")
	v.SetDefault("alerting.timeout", "10s")
	v.SetDefault("alerting.pushover.app_token", "")
	v.SetDefault("alerting.pushover.user_key", "")
	v.SetDefault("alerting.pushover.sound", "echo")
	v.SetDefault("alerting.pushover.retry", "60s")
	v.SetDefault("alerting.pushover.expire", "3600s")
	v.SetDefault("alerting.pushover.api_url", "https://api.pushover.net/1/messages.json")
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("metrics.listen", "")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

// bindLegacyEnv keeps the bare variable names older deployments export.
func bindLegacyEnv(v *viper.Viper) error {
	legacy := map[string]string{
		"position.wallet":             "WALLET",
		"position.chain":              "CHAIN",
		"position.pool_address":       "POOL_ADDRESS",
		"ethereum.rpc_url":            "RPC_URL",
		"monitor.hf_threshold":        "HF_THRESHOLD",
		"monitor.poll_interval_ms":    "POLL_INTERVAL_MS",
		"alerting.pushover.app_token": "PUSHOVER_APP_TOKEN",
		"alerting.pushover.user_key":  "PUSHOVER_USER_KEY",
	}
	for key, env := range legacy {
		prefixed := "HFWATCHER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	return nil
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

func (c *Config) normalize() {
	if c.Monitor.PollIntervalMS > 0 {
		c.Monitor.PollInterval = time.Duration(c.Monitor.PollIntervalMS) * time.Millisecond
	}
	if c.Monitor.PollInterval > 0 && c.Monitor.PollInterval < MinPollInterval {
		c.Monitor.PollInterval = MinPollInterval
	}
	for i, ch := range c.Alerting.Channels {
		c.Alerting.Channels[i] = strings.ToLower(strings.TrimSpace(ch))
	}
}

// Validate performs sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Position.Wallet == "" {
		return fmt.Errorf("position.wallet must be configured")
	}
	if !common.IsHexAddress(c.Position.Wallet) {
		return fmt.Errorf("position.wallet %q is not a valid address", c.Position.Wallet)
	}
	if _, err := c.Network(); err != nil {
		return err
	}
	if c.Monitor.HFThreshold <= 0 || c.Monitor.HFThreshold > 100 {
		return fmt.Errorf("monitor.hf_threshold must be within (0, 100], got %v", c.Monitor.HFThreshold)
	}
	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("monitor.poll_interval must be greater than zero")
	}
	if err := validateHour("schedule.morning_hour", c.Schedule.MorningHour); err != nil {
		return err
	}
	if err := validateHour("schedule.evening_hour", c.Schedule.EveningHour); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Prices.PrimarySymbol == "" || c.Prices.SecondarySymbol == "" {
		return fmt.Errorf("prices.primary_symbol and prices.secondary_symbol must be set")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return c.validateAlerting()
}

func (c *Config) validateAlerting() error {
	p := c.Alerting.Pushover
	if p.Retry < minPushoverRetry {
		return fmt.Errorf("alerting.pushover.retry must be at least %s", minPushoverRetry)
	}
	if p.Expire <= 0 || p.Expire > maxPushoverExpire {
		return fmt.Errorf("alerting.pushover.expire must be within (0, %s]", maxPushoverExpire)
	}

	for _, ch := range c.Alerting.Channels {
		switch ch {
		case ChannelPushover:
			if p.AppToken == "" || p.UserKey == "" {
				return fmt.Errorf("alerting.pushover.app_token 与 user_key 必须配置")
			}
		case ChannelTelegram:
			if c.Alerting.Telegram.BotToken == "" {
				return fmt.Errorf("alerting.telegram.bot_token 必须配置")
			}
			if c.Alerting.Telegram.ChatID == "" {
				return fmt.Errorf("alerting.telegram.chat_id 必须配置")
			}
		default:
			return fmt.Errorf("alerting.channels: unknown channel %q", ch)
		}
	}
	return nil
}

func validateHour(key string, hour int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("%s must be within 0-23, got %d", key, hour)
	}
	return nil
}

// Network resolves the chain preset together with any address overrides.
func (c *Config) Network() (chain.Network, error) {
	return chain.Resolve(c.Position.Chain, chain.Overrides{
		PoolAddress:   c.Position.PoolAddress,
		RPCURL:        c.Ethereum.RPCURL,
		PrimaryFeed:   c.Prices.PrimaryFeed,
		SecondaryFeed: c.Prices.SecondaryFeed,
	})
}

// Location loads the schedule timezone.
func (c *Config) Location() (*time.Location, error) {
	tz := c.Schedule.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone %q: %w", tz, err)
	}
	return loc, nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
