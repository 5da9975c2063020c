package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.HTTP.Port)
	}
	if cfg.Auth.TokenTTL != 7*24*time.Hour {
		t.Errorf("expected 7 day token ttl, got %s", cfg.Auth.TokenTTL)
	}
	if cfg.Auth.CookieName != "token" {
		t.Errorf("expected cookie name token, got %s", cfg.Auth.CookieName)
	}
	if !cfg.StartingBalanceValue().Equal(decimal.NewFromInt(10000)) {
		t.Errorf("expected starting balance 10000, got %s", cfg.StartingBalanceValue())
	}
	lo, hi := cfg.FallbackRange()
	if !lo.Equal(decimal.NewFromInt(1)) || !hi.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected fallback range [1, 200], got [%s, %s]", lo, hi)
	}
	if cfg.News.Limit != 10 {
		t.Errorf("expected news limit 10, got %d", cfg.News.Limit)
	}
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := strings.Join([]string{
		"http:",
		"  port: \"9000\"",
		"quotes:",
		"  timeout: 2s",
		"trading:",
		"  starting_balance: \"2500.50\"",
	}, "\n")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PORT", "9100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Port != "9100" {
		t.Errorf("expected env override 9100, got %s", cfg.HTTP.Port)
	}
	if cfg.Quotes.Timeout != 2*time.Second {
		t.Errorf("expected quote timeout 2s, got %s", cfg.Quotes.Timeout)
	}
	if !cfg.StartingBalanceValue().Equal(decimal.RequireFromString("2500.50")) {
		t.Errorf("expected starting balance 2500.50, got %s", cfg.StartingBalanceValue())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"balance not a number", "STARTING_BALANCE", "lots"},
		{"negative balance", "STARTING_BALANCE", "-1"},
		{"fallback min zero", "QUOTE_FALLBACK_MIN", "0"},
		{"fallback inverted", "QUOTE_FALLBACK_MAX", "0.50"},
		{"news limit", "NEWS_LIMIT", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(""); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}
