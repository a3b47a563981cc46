// Package config loads the bot's runtime configuration from the environment,
// falling back to a local .env file during development. It follows the
// teacher's getEnv*-with-default helper style rather than a struct-tag
// binding library, since that is the only configuration idiom this project's
// reference corpus demonstrates.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// RiskConfig mirrors the risk manager's admission and kill-switch thresholds.
type RiskConfig struct {
	MaxPositionPct   float64
	MaxDrawdownPct   float64
	MinBankroll      float64
	StartingBankroll float64
	MaxExposure      float64
}

// MarketConfig names one threshold market this bot trades, plus the spot
// symbol it is cross-referenced against. Mirrors the teacher's single
// config-driven MarketConfig the bot defaults to when no market list is
// supplied explicitly.
type MarketConfig struct {
	MarketID   string
	YesTokenID string
	NoTokenID  string
	SpotSymbol string
	Threshold  float64
}

// Config is the fully resolved set of inputs the bot needs to start.
type Config struct {
	Debug bool

	// Venue (prediction-market) credentials and endpoints.
	PrivateKey       string // account identity, conveyed as POLY-ADDRESS
	VenueAPIKey      string
	VenueSecret      string // base64
	VenuePassphrase  string
	VenueBaseURL     string
	VenueWSURL       string

	// Spot cross-reference feed.
	SpotWSURLs  []string
	SpotRESTURL string

	// Persistence.
	DBPath string

	// Control plane.
	ControlPlanePort int

	// Polling interval for the venue REST quotes feed, the redundant
	// lower-frequency companion to the venue WS feed.
	VenueQuotesInterval time.Duration

	// Secondary operator surface (optional).
	TelegramToken  string
	TelegramChatID int64

	Risk RiskConfig

	// Markets to trade. Defaults to a single BTC threshold market, mirroring
	// the teacher's single-default-market behavior when no explicit list is
	// configured.
	Markets []MarketConfig
}

// Load reads configuration from the environment, loading a .env file first
// if one is present (missing .env is not an error — the teacher's main()
// treats it the same way: warn and continue with whatever the environment
// already has).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file loaded, relying on process environment")
	}

	cfg := &Config{
		Debug: getEnvBool("DEBUG", false),

		PrivateKey:      os.Getenv("PRIVATE_KEY"),
		VenueAPIKey:     os.Getenv("POLYMARKET_API_KEY"),
		VenueSecret:     os.Getenv("POLYMARKET_SECRET"),
		VenuePassphrase: os.Getenv("POLYMARKET_PASSPHRASE"),
		VenueBaseURL:    getEnv("POLYMARKET_CLOB_URL", "https://clob.polymarket.com"),
		VenueWSURL:      getEnv("POLYMARKET_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),

		SpotWSURLs:  []string{getEnv("SPOT_WS_URL", "wss://stream.binance.com:9443/ws")},
		SpotRESTURL: getEnv("SPOT_REST_URL", "https://api.binance.com/api/v3/ticker/price"),

		DBPath: getEnv("DB_PATH", "bot.db"),

		ControlPlanePort: getEnvInt("DASHBOARD_PORT", 3001),

		VenueQuotesInterval: getEnvDuration("VENUE_QUOTES_INTERVAL", 10*time.Second),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		Risk: RiskConfig{
			MaxPositionPct:   getEnvFloat("RISK_MAX_POSITION_PCT", 0.05),
			MaxDrawdownPct:   getEnvFloat("RISK_MAX_DRAWDOWN_PCT", 0.30),
			MinBankroll:      getEnvFloat("RISK_MIN_BANKROLL", 350.0),
			StartingBankroll: getEnvFloat("RISK_STARTING_BANKROLL", 500.0),
			MaxExposure:      getEnvFloat("RISK_MAX_EXPOSURE", 100.0),
		},
	}

	cfg.Markets = []MarketConfig{
		{
			MarketID:   getEnv("MARKET_ID", "btc_15m"),
			YesTokenID: getEnv("MARKET_YES_TOKEN_ID", ""),
			NoTokenID:  getEnv("MARKET_NO_TOKEN_ID", ""),
			SpotSymbol: getEnv("MARKET_SPOT_SYMBOL", "BTCUSDT"),
			Threshold:  getEnvFloat("MARKET_THRESHOLD", 100000.0),
		},
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("PRIVATE_KEY is required")
	}
	if cfg.VenueAPIKey == "" {
		return nil, fmt.Errorf("POLYMARKET_API_KEY is required")
	}
	if cfg.VenueSecret == "" {
		return nil, fmt.Errorf("POLYMARKET_SECRET is required")
	}
	if cfg.VenuePassphrase == "" {
		return nil, fmt.Errorf("POLYMARKET_PASSPHRASE is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
