// Package config loads bot configuration from an optional YAML file, a
// .env file, and environment variable overrides (in that order of
// precedence, env winning).
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/model"
)

// Config holds all tunable parameters of the bot.
//
// Several constants varied across observed deployments of the original
// system (hold duration 3000 vs 5000 ms, RSI thresholds 70/30 vs 75/25,
// advisory confidence 70 vs 75). They are deliberately configuration here,
// with the most recent observed values as defaults.
type Config struct {
	// Trading parameters
	Stake      float64 `yaml:"stake"`
	TakeProfit float64 `yaml:"take_profit"`
	StopLoss   float64 `yaml:"stop_loss"`
	Asset      string  `yaml:"asset"`
	Symbol     string  `yaml:"symbol"` // Deriv symbol, e.g. "R_100"
	Strategy   string  `yaml:"strategy"`
	APIToken   string  `yaml:"api_token"`

	// Engine parameters
	BufferCapacity  int           `yaml:"buffer_capacity"`
	HoldDuration    time.Duration `yaml:"hold_duration"`
	PayoutRatio     float64       `yaml:"payout_ratio"`
	InitialBalance  float64       `yaml:"initial_balance"`
	InitialPrice    float64       `yaml:"initial_price"`
	SimTickInterval time.Duration `yaml:"sim_tick_interval"`
	SimAmplitude    float64       `yaml:"sim_amplitude"`

	// Indicator parameters
	RSIPeriod     int `yaml:"rsi_period"`
	SMAFastPeriod int `yaml:"sma_fast_period"`
	SMASlowPeriod int `yaml:"sma_slow_period"`

	// Strategy thresholds
	RSIUpper            float64 `yaml:"rsi_upper"`
	RSILower            float64 `yaml:"rsi_lower"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// Advisory oracle
	AdvisoryInterval time.Duration `yaml:"advisory_interval"`
	AdvisoryWindow   int           `yaml:"advisory_window"`
	AdvisoryTimeout  time.Duration `yaml:"advisory_timeout"`
	GeminiAPIKey     string        `yaml:"gemini_api_key"`
	GeminiModel      string        `yaml:"gemini_model"`

	// Infrastructure (all optional)
	MetricsAddr      string `yaml:"metrics_addr"`
	RedisAddr        string `yaml:"redis_addr"`
	RedisPassword    string `yaml:"redis_password"`
	JournalPath      string `yaml:"journal_path"`
	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
}

// Default returns a Config populated with the default values.
func Default() Config {
	return Config{
		Stake:      50,
		TakeProfit: 100,
		StopLoss:   50,
		Asset:      "Volatility 100",
		Symbol:     "R_100",
		Strategy:   string(model.StrategyRSIReversal),

		BufferCapacity:  60,
		HoldDuration:    5 * time.Second,
		PayoutRatio:     0.95,
		InitialBalance:  10000,
		InitialPrice:    6350.50,
		SimTickInterval: time.Second,
		SimAmplitude:    3,

		RSIPeriod:     14,
		SMAFastPeriod: 5,
		SMASlowPeriod: 10,

		RSIUpper:            75,
		RSILower:            25,
		ConfidenceThreshold: 75,

		AdvisoryInterval: 5 * time.Second,
		AdvisoryWindow:   20,
		AdvisoryTimeout:  10 * time.Second,
		GeminiModel:      "gemini-2.5-flash",

		MetricsAddr: ":9090",
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// it exists), then .env, then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			log.Printf("[config] %s not found, using defaults", path)
		default:
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("[config] no .env file, using environment as-is")
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.APIToken, "DERIV_API_TOKEN")
	setString(&c.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.Symbol, "DERIV_SYMBOL")
	setString(&c.Strategy, "BOT_STRATEGY")
	setString(&c.MetricsAddr, "METRICS_ADDR")
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.RedisPassword, "REDIS_PASSWORD")
	setString(&c.JournalPath, "JOURNAL_PATH")
	setString(&c.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.TelegramChatID, "TELEGRAM_CHAT_ID")
	setFloat(&c.Stake, "BOT_STAKE")
	setFloat(&c.TakeProfit, "BOT_TAKE_PROFIT")
	setFloat(&c.StopLoss, "BOT_STOP_LOSS")
	setDuration(&c.HoldDuration, "HOLD_DURATION")
	setDuration(&c.AdvisoryInterval, "ADVISORY_INTERVAL")
}

// Validate checks invariants the engine relies on.
func (c *Config) Validate() error {
	if c.Stake <= 0 {
		return fmt.Errorf("config: stake must be > 0, got %v", c.Stake)
	}
	if c.BufferCapacity <= 0 {
		return fmt.Errorf("config: buffer_capacity must be > 0, got %d", c.BufferCapacity)
	}
	if c.SMAFastPeriod >= c.SMASlowPeriod {
		return fmt.Errorf("config: sma_fast_period (%d) must be < sma_slow_period (%d)",
			c.SMAFastPeriod, c.SMASlowPeriod)
	}
	if c.RSILower >= c.RSIUpper {
		return fmt.Errorf("config: rsi_lower (%v) must be < rsi_upper (%v)", c.RSILower, c.RSIUpper)
	}
	if !model.StrategyType(c.Strategy).Valid() {
		return fmt.Errorf("config: unknown strategy %q", c.Strategy)
	}
	return nil
}

// Settings extracts the runtime-mutable bot settings from the config.
func (c *Config) Settings() model.Settings {
	return model.Settings{
		Stake:      c.Stake,
		TakeProfit: c.TakeProfit,
		StopLoss:   c.StopLoss,
		Asset:      c.Asset,
		Strategy:   model.StrategyType(c.Strategy),
		APIToken:   c.APIToken,
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			log.Printf("[config] skipping invalid %s=%q: %v", key, v, err)
			return
		}
		*dst = f
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Printf("[config] skipping invalid %s=%q: %v", key, v, err)
			return
		}
		*dst = d
	}
}
