package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/storefrontlab/storefront-api/internal/pricing"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	CartTTL             time.Duration
	CatalogCacheTTL     time.Duration
	CatalogDefaultLimit int
	CatalogMaxLimit     int
	IdempotencyTTL      time.Duration
	RateLimitPerMinute  int
	BodyLimitBytes      int64
	WorkerConcurrency   int

	BulkQtyThreshold      int
	BulkDiscountPct       decimal.Decimal
	MemberDiscountPct     decimal.Decimal
	TaxRatePct            decimal.Decimal
	FlatShippingCost      decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	defaults := pricing.DefaultConfig()
	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		CartTTL:             parseDuration(k.String("CART_TTL"), "168h"),
		CatalogCacheTTL:     parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		CatalogDefaultLimit: intOrDefault(k.Int("CATALOG_DEFAULT_LIMIT"), 20),
		CatalogMaxLimit:     intOrDefault(k.Int("CATALOG_MAX_LIMIT"), 100),
		IdempotencyTTL:      parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimitPerMinute:  intOrDefault(k.Int("RATE_LIMIT_PER_MINUTE"), 120),
		BodyLimitBytes:      int64(intOrDefault(k.Int("BODY_LIMIT_BYTES"), 1<<20)),
		WorkerConcurrency:   intOrDefault(k.Int("WORKER_CONCURRENCY"), 4),

		BulkQtyThreshold:      intOrDefault(k.Int("PRICING_BULK_QTY_THRESHOLD"), defaults.BulkQtyThreshold),
		BulkDiscountPct:       parseDecimal(k.String("PRICING_BULK_DISCOUNT_PCT"), defaults.BulkPercent),
		MemberDiscountPct:     parseDecimal(k.String("PRICING_MEMBER_DISCOUNT_PCT"), defaults.MemberPercent),
		TaxRatePct:            parseDecimal(k.String("PRICING_TAX_RATE_PCT"), defaults.TaxRate),
		FlatShippingCost:      parseDecimal(k.String("PRICING_FLAT_SHIPPING_COST"), defaults.FlatShippingCost),
		FreeShippingThreshold: parseDecimal(k.String("PRICING_FREE_SHIPPING_THRESHOLD"), defaults.FreeShippingThreshold),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

// Pricing assembles the engine configuration from the loaded values.
func (c *Config) Pricing() pricing.Config {
	return pricing.Config{
		BulkQtyThreshold:      c.BulkQtyThreshold,
		BulkPercent:           c.BulkDiscountPct,
		MemberPercent:         c.MemberDiscountPct,
		TaxRate:               c.TaxRatePct,
		FlatShippingCost:      c.FlatShippingCost,
		FreeShippingThreshold: c.FreeShippingThreshold,
	}
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func intOrDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseDecimal(value string, fallback decimal.Decimal) decimal.Decimal {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil || d.IsNegative() {
		return fallback
	}
	return d
}

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests overrides environment variables for the duration of a Load call.
func LoadForTests(vars map[string]string) (*Config, error) {
	original := make(map[string]string, len(vars))
	for key := range vars {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, vars[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
