// Package config loads application configuration from environment
// variables, with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"pricefeed/internal/adapter/telegram/middleware"
)

// Config holds application configuration values.
type Config struct {
	Env string `validate:"required,oneof=dev prod"`

	HTTP struct {
		Addr string `validate:"required"`
	}

	Log struct {
		ConsoleLevel string `validate:"required,oneof=debug info warn error"`
		FileLevel    string `validate:"required,oneof=debug info warn error"`
		File         string
	}

	Fetch struct {
		MaxRetries  int           `validate:"min=0"`
		Timeout     time.Duration `validate:"gt=0"`
		BaseBackoff time.Duration `validate:"gt=0"`
	}

	Jupiter struct {
		PriceURL string `validate:"required,url"`
		PerpsURL string `validate:"required,url"`
	}

	Raydium struct {
		URL string `validate:"required,url"`
	}

	Feed struct {
		// RefreshSchedule is a cron expression with seconds,
		// e.g. "0 * * * * *" for every minute.
		RefreshSchedule string `validate:"required"`
		PerpsWallet     string
	}

	DB struct {
		Path string `validate:"required"`
	}

	Telegram struct {
		// Token is optional: without it the bot is disabled and only
		// the HTTP API runs.
		Token      string
		AllowedIDs []int64
	}
}

var validate = validator.New()

// Load reads configuration from environment variables and an optional .env
// file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	c.Env = getenv("ENV", "prod")
	c.HTTP.Addr = getenv("HTTP_ADDR", ":8080")

	c.Log.ConsoleLevel = strings.ToLower(getenv("LOG_CONSOLE_LEVEL", "info"))
	c.Log.FileLevel = strings.ToLower(getenv("LOG_FILE_LEVEL", "debug"))
	c.Log.File = getenv("LOG_FILE", "data/logs/pricefeed.log")

	var err error
	if c.Fetch.MaxRetries, err = getenvInt("FETCH_MAX_RETRIES", 3); err != nil {
		return Config{}, err
	}
	if c.Fetch.Timeout, err = getenvDuration("FETCH_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if c.Fetch.BaseBackoff, err = getenvDuration("FETCH_BASE_BACKOFF", 2*time.Second); err != nil {
		return Config{}, err
	}

	c.Jupiter.PriceURL = getenv("JUPITER_PRICE_URL", "https://api.jup.ag/price/v2")
	c.Jupiter.PerpsURL = getenv("JUPITER_PERPS_URL", "https://perps-api.jup.ag/v1")
	c.Raydium.URL = getenv("RAYDIUM_URL", "https://api-v3.raydium.io")

	c.Feed.RefreshSchedule = getenv("REFRESH_SCHEDULE", "0 * * * * *")
	c.Feed.PerpsWallet = os.Getenv("PERPS_WALLET")

	c.DB.Path = getenv("DB_PATH", "data/pricefeed.sqlite")

	c.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	c.Telegram.AllowedIDs = middleware.ParseAllowedIDs(os.Getenv("TELEGRAM_ALLOWED_IDS"))

	if err := validate.Struct(c); err != nil {
		return Config{}, err
	}
	return c, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func getenvDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}
