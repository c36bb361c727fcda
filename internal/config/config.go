package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Cron      CronConfig      `mapstructure:"cron"`
	Challenge ChallengeConfig `mapstructure:"challenge"`
	Market    MarketConfig    `mapstructure:"market"`
	Seed      SeedConfig      `mapstructure:"seed"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr     string        `mapstructure:"http_addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

type LogConfig struct {
	Level             string        `mapstructure:"level"`
	Encoding          string        `mapstructure:"encoding"`
	Development       bool          `mapstructure:"development"`
	Sampling          bool          `mapstructure:"sampling"`
	DisableCaller     bool          `mapstructure:"disable_caller"`
	DisableStacktrace bool          `mapstructure:"disable_stacktrace"`
	File              LogFileConfig `mapstructure:"file"`
}

// LogFileConfig enables a rotating file sink next to stderr when Path is set.
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	SlowQuery       time.Duration `mapstructure:"slow_query"`
}

// RedisConfig selects the shared cache. An empty Addr keeps the cache in process memory.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type AuthConfig struct {
	JWTSecret        string        `mapstructure:"jwt_secret"`
	TokenTTL         time.Duration `mapstructure:"token_ttl"`
	PasswordIter     int           `mapstructure:"password_iterations"`
	MinPasswordChars int           `mapstructure:"min_password_chars"`
}

type CronConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Evaluate    string        `mapstructure:"evaluate"`
	MarketWarm  string        `mapstructure:"market_warm"`
	EvalTimeout time.Duration `mapstructure:"eval_timeout"`
}

// ChallengeConfig carries the evaluation thresholds in percent and the account bootstrap amounts.
type ChallengeConfig struct {
	MaxTotalLossPct   float64 `mapstructure:"max_total_loss_pct"`
	MaxDailyLossPct   float64 `mapstructure:"max_daily_loss_pct"`
	ProfitTargetPct   float64 `mapstructure:"profit_target_pct"`
	EvaluateWorkers   int     `mapstructure:"evaluate_workers"`
	DemoBalance       float64 `mapstructure:"demo_balance"`
	TrialBalance      float64 `mapstructure:"trial_balance"`
	WithdrawMinProfit float64 `mapstructure:"withdraw_min_profit"`
	LeaderboardSize   int     `mapstructure:"leaderboard_size"`
}

type MarketConfig struct {
	FreshTTL       time.Duration `mapstructure:"fresh_ttl"`
	StaleTTL       time.Duration `mapstructure:"stale_ttl"`
	Timeout        time.Duration `mapstructure:"timeout"`
	StreamInterval time.Duration `mapstructure:"stream_interval"`
	Binance        BinanceConfig `mapstructure:"binance"`
	Frankfurter    FXConfig      `mapstructure:"frankfurter"`
}

type BinanceConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	BaseURL string   `mapstructure:"base_url"`
	Symbols []string `mapstructure:"symbols"`
}

type FXConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	BaseURL string   `mapstructure:"base_url"`
	Symbols []string `mapstructure:"symbols"`
}

type SeedConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
	DemoEmail     string `mapstructure:"demo_email"`
	DemoPassword  string `mapstructure:"demo_password"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("log.file.path", "")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.max_age_days", 14)
	v.SetDefault("log.file.compress", true)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("db.slow_query", "500ms")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "tradesense:")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.password_iterations", 100000)
	v.SetDefault("auth.min_password_chars", 6)
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.evaluate", "@every 60s")
	v.SetDefault("cron.market_warm", "@every 30s")
	v.SetDefault("cron.eval_timeout", "50s")

	v.SetDefault("challenge.max_total_loss_pct", 10)
	v.SetDefault("challenge.max_daily_loss_pct", 5)
	v.SetDefault("challenge.profit_target_pct", 10)
	v.SetDefault("challenge.evaluate_workers", 8)
	v.SetDefault("challenge.demo_balance", 10000)
	v.SetDefault("challenge.trial_balance", 2000)
	v.SetDefault("challenge.withdraw_min_profit", 1000)
	v.SetDefault("challenge.leaderboard_size", 10)

	v.SetDefault("market.fresh_ttl", "30s")
	v.SetDefault("market.stale_ttl", "10m")
	v.SetDefault("market.timeout", "8s")
	v.SetDefault("market.stream_interval", "5s")
	v.SetDefault("market.binance.enabled", true)
	v.SetDefault("market.binance.base_url", "")
	v.SetDefault("market.binance.symbols", []string{"BTC-USD", "ETH-USD"})
	v.SetDefault("market.frankfurter.enabled", true)
	v.SetDefault("market.frankfurter.base_url", "https://api.frankfurter.app")
	v.SetDefault("market.frankfurter.symbols", []string{"EURUSD=X"})

	v.SetDefault("seed.enabled", true)
	v.SetDefault("seed.admin_email", "admin@tradesense.ma")
	v.SetDefault("seed.demo_email", "trader@tradesense.ma")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
