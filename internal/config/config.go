// Package config loads the server configuration from an optional YAML
// file with environment overrides.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Quotes   Quotes   `yaml:"quotes"`
	News     News     `yaml:"news"`
	Auth     Auth     `yaml:"auth"`
	Trading  Trading  `yaml:"trading"`
}

type HTTP struct {
	Port            string        `yaml:"port" env:"PORT" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"HTTP_REQUEST_TIMEOUT" env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
	StaticDir       string        `yaml:"static_dir" env:"STATIC_DIR"`
}

// Postgres is optional; an empty URL selects the in-memory store.
type Postgres struct {
	URL     string `yaml:"url" env:"DATABASE_URL"`
	Migrate bool   `yaml:"migrate" env:"DATABASE_MIGRATE" env-default:"true"`
}

// Redis is optional and only used in front of Postgres.
type Redis struct {
	URL string        `yaml:"url" env:"REDIS_URL"`
	TTL time.Duration `yaml:"ttl" env:"REDIS_TTL" env-default:"30s"`
}

type Quotes struct {
	APIKey      string        `yaml:"api_key" env:"ALPHA_VANTAGE_API_KEY"`
	BaseURL     string        `yaml:"base_url" env:"ALPHA_VANTAGE_URL" env-default:"https://www.alphavantage.co/query"`
	Timeout     time.Duration `yaml:"timeout" env:"QUOTE_TIMEOUT" env-default:"5s"`
	FallbackMin string        `yaml:"fallback_min" env:"QUOTE_FALLBACK_MIN" env-default:"1.00"`
	FallbackMax string        `yaml:"fallback_max" env:"QUOTE_FALLBACK_MAX" env-default:"200.00"`
}

type News struct {
	APIKey  string `yaml:"api_key" env:"NEWS_API_KEY"`
	BaseURL string `yaml:"base_url" env:"NEWS_API_URL" env-default:"https://newsapi.org/v2/everything"`
	Limit   int    `yaml:"limit" env:"NEWS_LIMIT" env-default:"10"`
}

// Auth configures session tokens. An empty secret makes the server
// generate one at startup, so sessions do not survive a restart.
type Auth struct {
	JWTSecret  string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL   time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"168h"`
	CookieName string        `yaml:"cookie_name" env:"AUTH_COOKIE" env-default:"token"`
}

type Trading struct {
	StartingBalance string `yaml:"starting_balance" env:"STARTING_BALANCE" env-default:"10000"`
}

// Load reads path when it is non-empty, otherwise the environment only.
// Environment variables override file values in both cases.
func Load(path string) (*Config, error) {
	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	balance, err := decimal.NewFromString(c.Trading.StartingBalance)
	if err != nil {
		return fmt.Errorf("trading.starting_balance: %w", err)
	}
	if balance.IsNegative() {
		return errors.New("trading.starting_balance must not be negative")
	}

	lo, hi, err := c.Quotes.fallbackBounds()
	if err != nil {
		return err
	}
	if !lo.IsPositive() || hi.LessThan(lo) {
		return fmt.Errorf("quotes: fallback range [%s, %s] must be positive and ordered", lo, hi)
	}
	if c.News.Limit <= 0 {
		return errors.New("news.limit must be positive")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	if c.Auth.CookieName == "" {
		return errors.New("auth.cookie_name is required")
	}
	return nil
}

// StartingBalanceValue is the validated starting balance.
func (c *Config) StartingBalanceValue() decimal.Decimal {
	return decimal.RequireFromString(c.Trading.StartingBalance)
}

// FallbackRange is the validated synthetic price range.
func (c *Config) FallbackRange() (min, max decimal.Decimal) {
	min, max, _ = c.Quotes.fallbackBounds()
	return min, max
}

func (q Quotes) fallbackBounds() (decimal.Decimal, decimal.Decimal, error) {
	lo, err := decimal.NewFromString(q.FallbackMin)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("quotes.fallback_min: %w", err)
	}
	hi, err := decimal.NewFromString(q.FallbackMax)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("quotes.fallback_max: %w", err)
	}
	return lo, hi, nil
}
